package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/seal"
	"github.com/cloudx-io/opentender/tenderapi"
)

func main() {
	var (
		recordInput    = flag.String("record", "", "Sealed record: file path or inline string (base64, base64url or gzip form)")
		publicKeyInput = flag.String("public-key", "", "Sealing public key PEM (file path or inline PEM)")
		resultsInput   = flag.String("results", "", "Optional evaluation response or lot results JSON to compare digests against")
		outputFormat   = flag.String("format", "text", "Output format: text or json")
		inspect        = flag.Bool("inspect", false, "Print the record contents without verifying the signature")
		help           = flag.Bool("help", false, "Show usage information")
	)

	flag.Parse()

	if *help {
		showUsage()
		os.Exit(0)
	}

	if *recordInput == "" || (*publicKeyInput == "" && !*inspect) {
		showUsage()
		fmt.Fprintf(os.Stderr, "\nError: --record and --public-key are required\n")
		os.Exit(2)
	}

	sealed, err := decodeSealedRecord(strings.TrimSpace(string(readInput(*recordInput))))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading record: %v\n", err)
		os.Exit(2)
	}

	if *inspect {
		if err := inspectRecord(os.Stdout, sealed, *outputFormat); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading record: %v\n", err)
			os.Exit(2)
		}
		os.Exit(0)
	}

	publicKey, err := seal.ParsePublicKeyPEM(readInput(*publicKeyInput))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading public key: %v\n", err)
		os.Exit(2)
	}

	var results core.LotResults
	if *resultsInput != "" {
		results, err = parseResults(readInput(*resultsInput))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading results: %v\n", err)
			os.Exit(2)
		}
	}

	result, err := seal.Verify(sealed, publicKey, results)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Verification error: %v\n", err)
		os.Exit(2)
	}

	if *outputFormat == "json" {
		outputJSON(result)
	} else {
		outputText(result)
	}

	if !result.IsValid() {
		os.Exit(1)
	}
	os.Exit(0)
}

func showUsage() {
	fmt.Println("Evaluation Record Validator")
	fmt.Println()
	fmt.Println("Verifies the signature of a sealed evaluation record and, optionally,")
	fmt.Println("that a set of results matches the digest it carries.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  record-validator --record <record> --public-key <pem> [options]")
	fmt.Println("  record-validator --record <record> --inspect [--format <text|json>]")
	fmt.Println()
	fmt.Println("Required Flags:")
	fmt.Println("  --record <record>                 Sealed record (sealed_record field of an evaluation response)")
	fmt.Println("  --public-key <pem>                Public key from a key_request")
	fmt.Println()
	fmt.Println("Optional Flags:")
	fmt.Println("  --results <json>                  Evaluation response or {lot_id: rows} JSON")
	fmt.Println("  --format <text|json>              Output format (default: text)")
	fmt.Println("  --inspect                         Print the record without verifying it")
	fmt.Println("  --help                            Show this help message")
	fmt.Println()
	fmt.Println("Each flag accepts either a file path or the value inline.")
	fmt.Println()
	fmt.Println("Exit Codes:")
	fmt.Println("  0 - Record valid")
	fmt.Println("  1 - Record invalid")
	fmt.Println("  2 - Invalid input or runtime error")
}

func readInput(input string) []byte {
	// Try reading as file first
	if data, err := os.ReadFile(input); err == nil {
		return data
	}
	return []byte(input)
}

// decodeSealedRecord accepts any of the transport encodings of a record. The
// gzip form is tried first since its header check is the strictest.
func decodeSealedRecord(s string) (tenderapi.SealedRecord, error) {
	if s == "" {
		return nil, fmt.Errorf("empty record")
	}
	if raw, err := tenderapi.SealedRecordGzip(s).Decompress(); err == nil {
		return raw, nil
	}
	if raw, err := tenderapi.SealedRecordBase64(s).Decode(); err == nil {
		return raw, nil
	}
	return tenderapi.SealedRecordURLBase64(s).Decode()
}

// parseResults accepts either a full evaluation response or bare lot results.
func parseResults(data []byte) (core.LotResults, error) {
	var response tenderapi.EvaluationResponse
	if err := json.Unmarshal(data, &response); err == nil && response.Type == tenderapi.TypeEvaluationResponse {
		if response.Lots == nil {
			return core.LotResults{}, nil
		}
		return response.Lots, nil
	}

	var results core.LotResults
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}
	if results == nil {
		results = core.LotResults{}
	}
	return results, nil
}

func outputText(result *seal.VerificationResult) {
	fmt.Println("Evaluation Record Validator")
	fmt.Println("===========================")
	fmt.Println()

	if r := result.Record; r != nil {
		printRecord(os.Stdout, r)
	}

	fmt.Println("Summary:")
	fmt.Printf("  Signature Valid:         %v\n", result.SignatureValid)
	if result.DigestChecked {
		fmt.Printf("  Results Digest Match:    %v\n", result.DigestMatch)
	} else {
		fmt.Printf("  Results Digest Match:    not checked\n")
	}

	fmt.Println()
	fmt.Println("Details:")
	for _, detail := range result.ValidationDetails {
		fmt.Printf("  - %s\n", detail)
	}

	fmt.Println()
	fmt.Println("===========================")
	if result.IsValid() {
		fmt.Println("VALIDATION: ✓ PASSED")
		fmt.Println("Exit Code: 0")
	} else {
		fmt.Println("VALIDATION: ✗ FAILED")
		fmt.Println("Exit Code: 1")
	}
}

func outputJSON(result *seal.VerificationResult) {
	output := map[string]any{
		"valid":           result.IsValid(),
		"signature_valid": result.SignatureValid,
		"digest_checked":  result.DigestChecked,
		"digest_match":    result.DigestMatch,
		"record":          result.Record,
		"details":         result.ValidationDetails,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(data))
}

func printRecord(w io.Writer, r *seal.Record) {
	fmt.Fprintln(w, "Record:")
	fmt.Fprintf(w, "  Evaluation ID:           %s\n", r.EvaluationID)
	fmt.Fprintf(w, "  Tender ID:               %s\n", r.TenderID)
	fmt.Fprintf(w, "  Method:                  %s\n", r.Method)
	fmt.Fprintf(w, "  Issued At:               %s\n", r.IssuedTime().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "  Results Digest:          %s\n", r.ResultsDigest)
	fmt.Fprintf(w, "  Lots Awarded:            %d\n", len(r.Winners))
	fmt.Fprintln(w)
}

// inspectRecord prints what a sealed record claims. The signature is not
// checked.
func inspectRecord(w io.Writer, sealed tenderapi.SealedRecord, format string) error {
	record, err := seal.ExtractRecord(sealed)
	if err != nil {
		return err
	}

	if format == "json" {
		data, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	printRecord(w, record)
	lotIDs := make([]string, 0, len(record.Winners))
	for lotID := range record.Winners {
		lotIDs = append(lotIDs, lotID)
	}
	slices.SortFunc(lotIDs, core.CompareLotIDs)
	fmt.Fprintln(w, "Winners:")
	for _, lotID := range lotIDs {
		fmt.Fprintf(w, "  Lot %s: %s\n", lotID, record.Winners[lotID])
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Signature: NOT VERIFIED")
	return nil
}
