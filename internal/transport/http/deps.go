package http

import (
	"context"
	"time"

	"github.com/aurachatapp/aurachat-premium/internal/domain"
	"github.com/aurachatapp/aurachat-premium/internal/pkg/otp"
)

// PendingRepository stores at most one outstanding code per email.
type PendingRepository interface {
	Put(ctx context.Context, v *domain.PendingVerification) error
	Get(ctx context.Context, email string) (*domain.PendingVerification, error)
	Delete(ctx context.Context, email string) error
}

// ProofLedger remembers redeemed stateless proofs, and wrong codes tried against
// them, until they expire.
type ProofLedger interface {
	Consume(ctx context.Context, proofID string, expiresAt time.Time) error
	Consumed(ctx context.Context, proofID string) (bool, error)
	RecordFailure(ctx context.Context, proofID string, expiresAt time.Time) (int, error)
}

// SessionRepository maps opaque session tokens to sessions.
type SessionRepository interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, token string) (*domain.Session, error)
	Delete(ctx context.Context, token string) error
}

// CustomerRepository caches billing customer ids by email.
type CustomerRepository interface {
	GetCustomerID(ctx context.Context, email string) (string, error)
	PutCustomerID(ctx context.Context, email, customerID string) error
}

// BillingProvider is the external source of customers and subscriptions.
type BillingProvider interface {
	FindCustomer(ctx context.Context, email string) (*domain.Customer, error)
	ListSubscriptions(ctx context.Context, customerID string) ([]domain.Subscription, error)
}

// ProofCodec encodes and decodes stateless proofs.
type ProofCodec interface {
	Encode(p domain.StatelessProof) (string, error)
	Decode(token string) (*domain.StatelessProof, error)
}

// CodeHasher generates codes and checks them against stored verifiers.
type CodeHasher interface {
	Generate() (otp.Code, error)
	Seal(email, code string) string
	Match(email, verifier, code string) bool
}
