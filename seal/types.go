package seal

// VerificationResult contains the outcome of verifying a sealed record.
type VerificationResult struct {
	Record            *Record
	SignatureValid    bool
	DigestChecked     bool // results were supplied and compared
	DigestMatch       bool // true when DigestChecked is false
	ValidationDetails []string
}

// IsValid returns true if all verification checks passed
func (r *VerificationResult) IsValid() bool {
	return r.SignatureValid && r.DigestMatch
}
