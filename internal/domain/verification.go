package domain

import "time"

// PendingVerification is the server-side record of a code awaiting verification.
// One record per email; a new request overwrites the previous one.
type PendingVerification struct {
	Email     string    `json:"email"`
	CodeHash  string    `json:"code_hash"`
	ProofID   string    `json:"proof_id"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at now.
func (p *PendingVerification) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// ProofPurpose tags stateless proofs so they cannot be replayed as other token kinds.
const ProofPurpose = "verify_code"

// StatelessProof is the self-contained copy of a pending verification handed to the client.
// Verifier is a keyed MAC over the code, never the plaintext.
type StatelessProof struct {
	ID        string
	Email     string
	Verifier  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
