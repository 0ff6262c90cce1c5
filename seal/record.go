package seal

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/cloudx-io/opentender/core"
)

// Record is the signed statement about one evaluation run. It carries
// digests rather than the full results so it stays small enough to travel
// in URLs.
type Record struct {
	EvaluationID     string            `cbor:"evaluation_id" json:"evaluation_id"`
	TenderID         string            `cbor:"tender_id" json:"tender_id"`
	Method           string            `cbor:"method" json:"method"`
	ResultsDigest    string            `cbor:"results_digest" json:"results_digest"`
	ParametersDigest string            `cbor:"parameters_digest" json:"parameters_digest"`
	Winners          map[string]string `cbor:"winners" json:"winners"`
	IssuedAt         int64             `cbor:"issued_at" json:"issued_at"` // unix seconds
}

// NewRecord builds the record for a finished evaluation.
func NewRecord(evaluationID, tenderID string, params core.EvaluationParameters, ev *core.Evaluation, issuedAt time.Time) *Record {
	return &Record{
		EvaluationID:     evaluationID,
		TenderID:         tenderID,
		Method:           params.Method.String(),
		ResultsDigest:    core.ComputeResultsDigest(ev.Lots),
		ParametersDigest: core.ComputeParametersDigest(params),
		Winners:          ev.Lots.Winners(),
		IssuedAt:         issuedAt.Unix(),
	}
}

// IssuedTime returns IssuedAt as a UTC time.
func (r *Record) IssuedTime() time.Time {
	return time.Unix(r.IssuedAt, 0).UTC()
}

// encMode produces Core Deterministic CBOR so the same record always
// encodes to the same bytes.
var encMode = func() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor encode mode: %v", err))
	}
	return mode
}()

// MarshalRecord encodes a record as deterministic CBOR.
func MarshalRecord(r *Record) ([]byte, error) {
	data, err := encMode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

// UnmarshalRecord decodes a CBOR record payload.
func UnmarshalRecord(data []byte) (*Record, error) {
	var r Record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &r, nil
}
