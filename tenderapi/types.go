package tenderapi

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudx-io/opentender/core"
)

// Request and response type tags used on the wire.
const (
	TypePing               = "ping"
	TypePong               = "pong"
	TypeKeyRequest         = "key_request"
	TypeKeyResponse        = "key_response"
	TypeEvaluationRequest  = "evaluation_request"
	TypeEvaluationResponse = "evaluation_response"
	TypeError              = "error"
)

// EvaluationRequest asks the evaluation service to evaluate one tender.
type EvaluationRequest struct {
	Type       string             `json:"type"`
	RequestID  string             `json:"request_id,omitempty"`
	Tender     core.Tender        `json:"tender"`
	Parameters core.RawParameters `json:"parameters"`
	// PhaseAFailures are merged into the disqualified list (document_id -1 only).
	PhaseAFailures []core.PhaseAFailure `json:"phase_a_failures,omitempty"`
	Seal           bool                 `json:"seal"`
	Timestamp      time.Time            `json:"timestamp"`
}

// EvaluationResponse is the outcome of an EvaluationRequest.
type EvaluationResponse struct {
	Type             string                `json:"type"`
	Success          bool                  `json:"success"`
	Message          string                `json:"message"`
	EvaluationID     string                `json:"evaluation_id,omitempty"`
	Method           string                `json:"method,omitempty"`
	Lots             core.LotResults       `json:"lots,omitempty"`
	LotOrder         []string              `json:"lot_order,omitempty"`
	Winners          map[string]string     `json:"winners,omitempty"`
	Duplicates       []core.DuplicateOffer `json:"duplicates,omitempty"`
	ResultsDigest    string                `json:"results_digest,omitempty"`
	ParametersDigest string                `json:"parameters_digest,omitempty"`
	SealedRecord     SealedRecordBase64    `json:"sealed_record,omitempty"`
	ProcessingTime   int64                 `json:"processing_time_ms"`
}

// KeyResponse carries the public half of the sealing key.
type KeyResponse struct {
	Type         string `json:"type"`
	KeyAlgorithm string `json:"key_algorithm"` // e.g., "ECDSA-P256"
	PublicKey    string `json:"public_key"`    // PEM format
}

// SealedRecord is a raw COSE_Sign1 message over an evaluation record.
type SealedRecord []byte

// SealedRecordBase64 is a standard base64 encoding of a SealedRecord, used in JSON.
type SealedRecordBase64 string

// SealedRecordURLBase64 is the unpadded URL-safe base64 form of a SealedRecord.
type SealedRecordURLBase64 string

// SealedRecordGzip is a gzip-compressed SealedRecord in unpadded URL-safe base64.
type SealedRecordGzip string

// EncodeBase64 encodes the record for JSON transport.
func (s SealedRecord) EncodeBase64() SealedRecordBase64 {
	return SealedRecordBase64(base64.StdEncoding.EncodeToString(s))
}

// EncodeURLSafe encodes the record for query strings and file names.
func (s SealedRecord) EncodeURLSafe() SealedRecordURLBase64 {
	return SealedRecordURLBase64(base64.RawURLEncoding.EncodeToString(s))
}

// CompressGzip compresses the record and encodes it URL-safe. Output is
// deterministic for the same input.
func (s SealedRecord) CompressGzip() (SealedRecordGzip, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(s); err != nil {
		return "", fmt.Errorf("gzip write: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("gzip close: %w", err)
	}
	return SealedRecordGzip(base64.RawURLEncoding.EncodeToString(buf.Bytes())), nil
}

func (s SealedRecordBase64) String() string {
	return string(s)
}

// Decode returns the raw record bytes.
func (s SealedRecordBase64) Decode() (SealedRecord, error) {
	b, err := base64.StdEncoding.DecodeString(string(s))
	if err != nil {
		return nil, fmt.Errorf("decode sealed record base64: %w", err)
	}
	return SealedRecord(b), nil
}

// CompressGzip converts directly from the JSON form to the compressed form.
func (s SealedRecordBase64) CompressGzip() (SealedRecordGzip, error) {
	raw, err := s.Decode()
	if err != nil {
		return "", err
	}
	return raw.CompressGzip()
}

func (s SealedRecordURLBase64) String() string {
	return string(s)
}

// Decode accepts the URL-safe form with or without padding.
func (s SealedRecordURLBase64) Decode() (SealedRecord, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(string(s), "="))
	if err != nil {
		return nil, fmt.Errorf("decode sealed record base64url: %w", err)
	}
	return SealedRecord(b), nil
}

func (s SealedRecordGzip) String() string {
	return string(s)
}

// Decompress returns the raw record bytes.
func (s SealedRecordGzip) Decompress() (SealedRecord, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(string(s))
	if err != nil {
		return nil, fmt.Errorf("decode base64url: %w", err)
	}
	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("read gzip: %w", err)
	}
	return SealedRecord(raw), nil
}
