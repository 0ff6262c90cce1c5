package seal

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/tenderapi"
)

func sampleEvaluation(t *testing.T) (core.EvaluationParameters, *core.Evaluation) {
	t.Helper()

	tender := core.Tender{
		ID:   "T-1",
		Lots: []core.Lot{{ID: "1"}, {ID: "2"}},
		Bidders: []core.Bidder{
			{Name: "Acme", Offers: []core.BidderOffer{{LotID: "1", Amount: 100, PhaseAPassed: true}, {LotID: "2", Amount: 80, PhaseAPassed: true}}},
			{Name: "Beta", Offers: []core.BidderOffer{{LotID: "1", Amount: 110, PhaseAPassed: true}, {LotID: "2", Amount: 90, PhaseAPassed: true}}},
		},
	}
	params := core.DefaultParameters(core.LowestPrice)

	ev, err := core.Evaluate(tender, params)
	assert.NoError(t, err)
	return params, ev
}

func TestSealAndVerify(t *testing.T) {
	km, err := NewKeyManager()
	assert.NoError(t, err)

	params, ev := sampleEvaluation(t)
	issued := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	record := NewRecord("eval-1", "T-1", params, ev, issued)

	sealed, err := km.Seal(record)
	assert.NoError(t, err)
	check.True(t, len(sealed) > 0)

	result, err := Verify(sealed, km.PublicKey, ev.Lots)
	assert.NoError(t, err)
	check.True(t, result.SignatureValid)
	check.True(t, result.DigestChecked)
	check.True(t, result.DigestMatch)
	check.True(t, result.IsValid())

	check.Equal(t, "eval-1", result.Record.EvaluationID)
	check.Equal(t, "lowest_price", result.Record.Method)
	check.Equal(t, map[string]string{"1": "Acme", "2": "Beta"}, result.Record.Winners)
	check.Equal(t, issued, result.Record.IssuedTime())
	check.Equal(t, core.ComputeParametersDigest(params), result.Record.ParametersDigest)
}

func TestVerify_WrongKey(t *testing.T) {
	km, _ := NewKeyManager()
	other, _ := NewKeyManager()

	params, ev := sampleEvaluation(t)
	sealed, err := km.Seal(NewRecord("eval-2", "T-1", params, ev, time.Now()))
	assert.NoError(t, err)

	result, err := Verify(sealed, other.PublicKey, nil)
	assert.NoError(t, err)
	check.False(t, result.SignatureValid)
	check.False(t, result.DigestChecked)
	check.False(t, result.IsValid())
}

func TestVerify_DigestMismatch(t *testing.T) {
	km, _ := NewKeyManager()
	params, ev := sampleEvaluation(t)
	sealed, err := km.Seal(NewRecord("eval-3", "T-1", params, ev, time.Now()))
	assert.NoError(t, err)

	tampered := core.AllocateSingleLot(ev.Lots)
	for lotID := range tampered {
		tampered[lotID][0].Amount++
	}

	result, err := Verify(sealed, km.PublicKey, tampered)
	assert.NoError(t, err)
	check.True(t, result.SignatureValid)
	check.False(t, result.DigestMatch)
	check.False(t, result.IsValid())
}

func TestVerify_ForeignSigner(t *testing.T) {
	km, _ := NewKeyManager()
	params, ev := sampleEvaluation(t)
	sealed, err := km.Seal(NewRecord("eval-4", "T-1", params, ev, time.Now()))
	assert.NoError(t, err)

	forger, _ := NewKeyManager()
	forged, err := forger.Seal(&Record{EvaluationID: "eval-4", TenderID: "T-1", ResultsDigest: "deadbeef"})
	assert.NoError(t, err)

	result, err := Verify(forged, km.PublicKey, nil)
	assert.NoError(t, err)
	check.False(t, result.SignatureValid)

	good, err := Verify(sealed, km.PublicKey, nil)
	assert.NoError(t, err)
	check.True(t, good.IsValid())
}

func TestVerify_Malformed(t *testing.T) {
	km, _ := NewKeyManager()

	_, err := Verify(tenderapi.SealedRecord("not cbor"), km.PublicKey, nil)
	check.Error(t, err)

	_, err = Verify(tenderapi.SealedRecord("x"), nil, nil)
	check.Error(t, err)
}

func TestSeal_TransportRoundTrip(t *testing.T) {
	km, _ := NewKeyManager()
	params, ev := sampleEvaluation(t)
	sealed, err := km.Seal(NewRecord("eval-5", "T-1", params, ev, time.Now()))
	assert.NoError(t, err)

	compressed, err := sealed.EncodeBase64().CompressGzip()
	assert.NoError(t, err)
	restored, err := compressed.Decompress()
	assert.NoError(t, err)

	record, err := ExtractRecord(restored)
	assert.NoError(t, err)
	check.Equal(t, "eval-5", record.EvaluationID)
}

func TestMarshalRecord_Deterministic(t *testing.T) {
	record := &Record{
		EvaluationID: "eval-6",
		Winners:      map[string]string{"10": "C", "2": "B", "1": "A"},
		IssuedAt:     1700000000,
	}

	first, err := MarshalRecord(record)
	assert.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := MarshalRecord(record)
		assert.NoError(t, err)
		check.Equal(t, first, again)
	}

	decoded, err := UnmarshalRecord(first)
	assert.NoError(t, err)
	check.Equal(t, record, decoded)
}

func TestSeal_NilRecord(t *testing.T) {
	km, _ := NewKeyManager()
	_, err := km.Seal(nil)
	check.Error(t, err)
}
