package core

import (
	"crypto/sha256"
	"fmt"
	"testing"
)

func isHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

func TestComputeResultsDigest(t *testing.T) {
	results := LotResults{
		"1": {
			{Participant: Participant{Name: "Acme"}, Amount: 90, TechnicalScore: 100, Qualifies: true, IsWinner: true},
		},
	}

	digest := ComputeResultsDigest(results)
	if !isHex64(digest) {
		t.Errorf("ComputeResultsDigest() = %q, want 64 hex characters", digest)
	}

	// Verify exact hash calculation
	expectedData := "lot:\"1\"\n\"Acme\"|false|90.000000|100.000000|0.000000|0.000000|true|true\n"
	expectedHash := fmt.Sprintf("%x", sha256.Sum256([]byte(expectedData)))
	if digest != expectedHash {
		t.Errorf("ComputeResultsDigest() = %v, want %v", digest, expectedHash)
	}
}

func TestComputeResultsDigest_LotOrderIndependentOfMap(t *testing.T) {
	a := LotResults{"10": nil, "2": nil, "B": nil}
	b := LotResults{"B": nil, "2": nil, "10": nil}

	if ComputeResultsDigest(a) != ComputeResultsDigest(b) {
		t.Errorf("digest depends on map construction order")
	}

	expectedHash := fmt.Sprintf("%x", sha256.Sum256([]byte("lot:\"2\"\nlot:\"10\"\nlot:\"B\"\n")))
	if got := ComputeResultsDigest(a); got != expectedHash {
		t.Errorf("ComputeResultsDigest() = %v, want %v", got, expectedHash)
	}
}

func TestComputeResultsDigest_SensitiveToWinner(t *testing.T) {
	rows := []RowResult{
		{Participant: Participant{Name: "X"}, Amount: 80, Qualifies: true, IsWinner: true},
		{Participant: Participant{Name: "Y"}, Amount: 90, Qualifies: true},
	}
	moved := []RowResult{rows[0], rows[1]}
	moved[0].IsWinner, moved[1].IsWinner = false, true

	if ComputeResultsDigest(LotResults{"1": rows}) == ComputeResultsDigest(LotResults{"1": moved}) {
		t.Errorf("moving the winner should change the digest")
	}
}

func TestComputeResultsDigest_SeparatorsInNames(t *testing.T) {
	x := RowResult{Participant: Participant{Name: "X"}, Amount: 1}
	y := RowResult{Participant: Participant{Name: "Y"}, Amount: 2}
	twoRows := LotResults{"1": {x, y}}

	// One row whose name spells out X's whole line followed by Y's name.
	forged := y
	forged.Participant.Name = "X|false|1.000000|0.000000|0.000000|0.000000|false|false\nY"
	oneRow := LotResults{"1": {forged}}

	if ComputeResultsDigest(twoRows) == ComputeResultsDigest(oneRow) {
		t.Errorf("a name containing separators must not collide with a different result set")
	}

	// Same trick across lots with a newline in the lot id.
	if ComputeResultsDigest(LotResults{"1": nil, "2": nil}) == ComputeResultsDigest(LotResults{"1\nlot:2": nil}) {
		t.Errorf("a lot id containing separators must not collide with two lots")
	}
}

func TestComputeParametersDigest(t *testing.T) {
	params := DefaultParameters(AbsolutePoints)
	params.TechnicalScores = map[string]float64{"B": 50, "A": 60}
	params.LotTechnicalScores = map[string]map[string]float64{"10": {"A": 1}, "2": {"A": 2}}
	params.Disqualified = []string{"Zeta", "alpha"}

	digest := ComputeParametersDigest(params)
	if !isHex64(digest) {
		t.Errorf("ComputeParametersDigest() = %q, want 64 hex characters", digest)
	}

	expectedData := "absolute_points|70.000000|49.000000|30.000000|0.000000|0.000000" +
		`|scores|"A":60.000000|"B":50.000000` +
		`|lot:"2"|"A":2.000000|lot:"10"|"A":1.000000` +
		`|disqualified:"alpha","zeta"|single_lot:true`
	expectedHash := fmt.Sprintf("%x", sha256.Sum256([]byte(expectedData)))
	if digest != expectedHash {
		t.Errorf("ComputeParametersDigest() = %v, want %v", digest, expectedHash)
	}

	params.ApplySingleLotRule = false
	if ComputeParametersDigest(params) == digest {
		t.Errorf("single lot flag should change the digest")
	}
}

func TestComputeParametersDigest_SeparatorsInNames(t *testing.T) {
	split := EvaluationParameters{Method: LowestPrice, TechnicalScores: map[string]float64{"A": 1, "B": 2}}
	joined := EvaluationParameters{Method: LowestPrice, TechnicalScores: map[string]float64{"A:1.000000|B": 2}}

	if ComputeParametersDigest(split) == ComputeParametersDigest(joined) {
		t.Errorf("a name containing separators must not collide with two scores")
	}
}
