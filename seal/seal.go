package seal

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/veraison/go-cose"

	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/tenderapi"
)

// Sealer signs evaluation records. KeyManager is the production
// implementation; tests may substitute their own.
type Sealer interface {
	Seal(record *Record) (tenderapi.SealedRecord, error)
}

// Seal wraps the CBOR encoded record in a COSE_Sign1 message signed with ES256.
func (km *KeyManager) Seal(record *Record) (tenderapi.SealedRecord, error) {
	if record == nil {
		return nil, errors.New("record is nil")
	}

	payload, err := MarshalRecord(record)
	if err != nil {
		return nil, err
	}

	signer, err := cose.NewSigner(cose.AlgorithmES256, km.privateKey)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Payload = payload
	if err := msg.Sign(rand.Reader, nil, signer); err != nil {
		return nil, fmt.Errorf("sign record: %w", err)
	}

	sealed, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("marshal COSE_Sign1: %w", err)
	}
	return tenderapi.SealedRecord(sealed), nil
}

// ExtractRecord decodes the record carried by a sealed message without
// checking its signature.
func ExtractRecord(sealed tenderapi.SealedRecord) (*Record, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(sealed); err != nil {
		return nil, fmt.Errorf("parse COSE_Sign1: %w", err)
	}
	return UnmarshalRecord(msg.Payload)
}

// Verify checks a sealed record against the sealing public key. When results
// is non-nil, their digest is also compared with the one in the record.
//
// Returns:
//   - VerificationResult with per-check outcomes (call IsValid for the verdict)
//   - error if the input cannot be parsed at all
func Verify(sealed tenderapi.SealedRecord, publicKey *ecdsa.PublicKey, results core.LotResults) (*VerificationResult, error) {
	if publicKey == nil {
		return nil, errors.New("public key is nil")
	}

	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(sealed); err != nil {
		return nil, fmt.Errorf("parse COSE_Sign1: %w", err)
	}

	record, err := UnmarshalRecord(msg.Payload)
	if err != nil {
		return nil, err
	}

	result := &VerificationResult{Record: record, DigestMatch: true}

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, publicKey)
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("COSE signature verification failed: %v", err))
	} else {
		result.SignatureValid = true
		result.ValidationDetails = append(result.ValidationDetails, "COSE signature valid (ES256)")
	}

	if results != nil {
		result.DigestChecked = true
		computed := core.ComputeResultsDigest(results)
		if computed == record.ResultsDigest {
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Results digest matches: %s", computed))
		} else {
			result.DigestMatch = false
			result.ValidationDetails = append(result.ValidationDetails,
				fmt.Sprintf("Results digest mismatch: record %s, computed %s", record.ResultsDigest, computed))
		}
	}

	return result, nil
}
