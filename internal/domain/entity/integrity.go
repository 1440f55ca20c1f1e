package entity

import "time"

// HashAlgorithmSHA256 is the only algorithm currently produced. The field
// is stored per record so historical links stay verifiable if the
// algorithm ever changes.
const HashAlgorithmSHA256 = "SHA-256"

// DocumentIntegrity is one link of a request's tamper-evidence hash
// chain. Append-only except for the verification bookkeeping fields
// (VerificationCount, LastVerifiedAt, IsTampered), which are never
// hashed themselves.
type DocumentIntegrity struct {
	ID                string     `json:"id"`
	RequestID         string     `json:"request_id"`
	ContentHash       string     `json:"content_hash"`
	PreviousHash      string     `json:"previous_hash,omitempty"`
	HashAlgorithm     string     `json:"hash_algorithm"`
	DocumentVersion   int        `json:"document_version"`
	MetadataHash      string     `json:"metadata_hash"`
	CreatedAt         time.Time  `json:"created_at"`
	CreatedBy         string     `json:"created_by"`
	VerificationCount int        `json:"verification_count"`
	LastVerifiedAt    *time.Time `json:"last_verified_at,omitempty"`
	IsTampered        bool       `json:"is_tampered"`
}

// IntegrityVerification is the structured outcome of a verification run.
// A negative outcome is a reportable result, not an error.
type IntegrityVerification struct {
	RequestID         string    `json:"request_id"`
	IsValid           bool      `json:"is_valid"`
	VerifiedAt        time.Time `json:"verified_at"`
	ContentHashValid  bool      `json:"content_hash_valid"`
	MetadataHashValid bool      `json:"metadata_hash_valid"`
	ChainValid        bool      `json:"chain_valid"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	TamperedFields    []string  `json:"tampered_fields"`
}

// IntegrityChain is a request's full chain in version order together
// with its validity and, when broken, the first bad version.
type IntegrityChain struct {
	RequestID       string               `json:"request_id"`
	Chain           []*DocumentIntegrity `json:"chain"`
	IsValid         bool                 `json:"is_valid"`
	BrokenAtVersion int                  `json:"broken_at_version,omitempty"`
}
