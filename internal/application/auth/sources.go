package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aurachatapp/aurachat-premium/internal/domain"
)

const (
	pathStore = "store"
	pathProof = "proof"
)

// candidate is the verifier material a ProofSource found for an identity.
type candidate struct {
	path      string
	verifier  string
	proofID   string
	expiresAt time.Time
	record    *domain.PendingVerification
}

func (c *candidate) expired(now time.Time) bool {
	if c.record != nil {
		return c.record.Expired(now)
	}
	return now.After(c.expiresAt)
}

// ProofSource yields the pending code for an identity from one place. A source
// that has nothing returns (nil, nil) so the next source is consulted. proof is
// the already verified stateless proof, or nil when none was submitted.
type ProofSource interface {
	Lookup(ctx context.Context, email string, proof *domain.StatelessProof) (*candidate, error)
}

type localStoreSource struct {
	store pendingStore
}

func (s localStoreSource) Lookup(ctx context.Context, email string, _ *domain.StatelessProof) (*candidate, error) {
	rec, err := s.store.Get(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load pending code: %v: %w", err, domain.ErrInternal)
	}
	return &candidate{
		path:      pathStore,
		verifier:  rec.CodeHash,
		proofID:   rec.ProofID,
		expiresAt: rec.ExpiresAt,
		record:    rec,
	}, nil
}

type signedTokenSource struct {
	ledger proofLedger
}

func (s signedTokenSource) Lookup(ctx context.Context, email string, p *domain.StatelessProof) (*candidate, error) {
	if p == nil {
		return nil, nil
	}
	if p.Email != email {
		return nil, fmt.Errorf("proof issued for another identity: %w", domain.ErrInvalidProof)
	}
	used, err := s.ledger.Consumed(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("check proof ledger: %v: %w", err, domain.ErrInternal)
	}
	if used {
		return nil, fmt.Errorf("proof already redeemed: %w", domain.ErrNoPendingCode)
	}
	return &candidate{
		path:      pathProof,
		verifier:  p.Verifier,
		proofID:   p.ID,
		expiresAt: p.ExpiresAt,
	}, nil
}
