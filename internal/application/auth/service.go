package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aurachatapp/aurachat-premium/internal/domain"
	"github.com/aurachatapp/aurachat-premium/internal/infrastructure/mail"
	"github.com/aurachatapp/aurachat-premium/internal/observability"
	"github.com/aurachatapp/aurachat-premium/internal/pkg/id"
	"github.com/aurachatapp/aurachat-premium/internal/pkg/keylock"
	"github.com/aurachatapp/aurachat-premium/internal/pkg/otp"
)

type VerifyRequest struct {
	Email string
	Code  string
	Proof string
}

type CodeResult struct {
	Proof     string
	ExpiresAt time.Time
	DebugCode string
}

type VerifyResult struct {
	Session *domain.Session
	// Premium is nil when billing could not be reached.
	Premium *bool
}

type Service interface {
	RequestCode(ctx context.Context, email string) (*CodeResult, error)
	VerifyCode(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
}

type pendingStore interface {
	Put(ctx context.Context, v *domain.PendingVerification) error
	Get(ctx context.Context, email string) (*domain.PendingVerification, error)
	Delete(ctx context.Context, email string) error
}

type proofLedger interface {
	Consume(ctx context.Context, proofID string, expiresAt time.Time) error
	Consumed(ctx context.Context, proofID string) (bool, error)
	RecordFailure(ctx context.Context, proofID string, expiresAt time.Time) (int, error)
}

type proofCodec interface {
	Encode(p domain.StatelessProof) (string, error)
	Decode(token string) (*domain.StatelessProof, error)
}

type codeHasher interface {
	Generate() (otp.Code, error)
	Seal(email, code string) string
	Match(email, verifier, code string) bool
}

type sessionIssuer interface {
	Issue(ctx context.Context, email string, premiumHint bool) (*domain.Session, error)
}

type entitlementResolver interface {
	Resolve(ctx context.Context, email string) (*domain.Entitlement, error)
}

type service struct {
	pending      pendingStore
	ledger       proofLedger
	codec        proofCodec
	hasher       codeHasher
	mailer       mail.Mailer
	sessions     sessionIssuer
	entitlements entitlementResolver
	sources      []ProofSource
	locks        *keylock.Map
	log          *zap.Logger
	metrics      *observability.Metrics
	now          func() time.Time

	codeTTL     time.Duration
	mailTimeout time.Duration
	maxAttempts int
	debugEcho   bool
	bypass      bool
}

type ServiceDeps struct {
	Pending      pendingStore
	Ledger       proofLedger
	Proofs       proofCodec
	Hasher       codeHasher
	Mailer       mail.Mailer
	Sessions     sessionIssuer
	Entitlements entitlementResolver
	Locks        *keylock.Map
	Log          *zap.Logger
	Metrics      *observability.Metrics
	Now          func() time.Time

	CodeTTL     time.Duration
	MailTimeout time.Duration
	// MaxAttempts of zero disables the lockout.
	MaxAttempts int
	// DebugEcho returns the plaintext code to the caller. Development only.
	DebugEcho bool
	// Bypass accepts any well-formed code. Development only.
	Bypass bool
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		pending:      deps.Pending,
		ledger:       deps.Ledger,
		codec:        deps.Proofs,
		hasher:       deps.Hasher,
		mailer:       deps.Mailer,
		sessions:     deps.Sessions,
		entitlements: deps.Entitlements,
		locks:        deps.Locks,
		log:          deps.Log,
		metrics:      deps.Metrics,
		now:          deps.Now,
		codeTTL:      deps.CodeTTL,
		mailTimeout:  deps.MailTimeout,
		maxAttempts:  deps.MaxAttempts,
		debugEcho:    deps.DebugEcho,
		bypass:       deps.Bypass,
	}
	if s.locks == nil {
		s.locks = keylock.New(0)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.codeTTL <= 0 {
		s.codeTTL = 10 * time.Minute
	}
	if s.mailTimeout <= 0 {
		s.mailTimeout = 10 * time.Second
	}
	s.sources = []ProofSource{
		localStoreSource{store: s.pending},
		signedTokenSource{ledger: s.ledger},
	}
	return s
}

func (s *service) RequestCode(ctx context.Context, email string) (*CodeResult, error) {
	email, err := domain.ParseIdentity(email)
	if err != nil {
		return nil, err
	}

	code, err := s.hasher.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate code: %v: %w", err, domain.ErrInternal)
	}
	now := s.now().UTC()
	rec := &domain.PendingVerification{
		Email:     email,
		CodeHash:  code.Hash,
		ProofID:   id.New(),
		ExpiresAt: now.Add(s.codeTTL).Truncate(time.Second),
	}
	proof, err := s.codec.Encode(domain.StatelessProof{
		ID:        rec.ProofID,
		Email:     email,
		Verifier:  s.hasher.Seal(email, code.Plain),
		IssuedAt:  now,
		ExpiresAt: rec.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode proof: %v: %w", err, domain.ErrInternal)
	}

	msg, err := mail.CodeMessage(email, code.Plain, s.codeTTL)
	if err != nil {
		return nil, fmt.Errorf("render code mail: %v: %w", err, domain.ErrInternal)
	}
	mailCtx, cancel := context.WithTimeout(ctx, s.mailTimeout)
	err = s.mailer.Send(mailCtx, msg)
	cancel()
	if err != nil {
		s.metrics.CodeSent("failed")
		s.log.Warn("code delivery failed", zap.String("email", observability.MaskEmail(email)), zap.Error(err))
		return nil, fmt.Errorf("deliver code: %v: %w", err, domain.ErrUpstream)
	}

	if err := s.store(ctx, rec); err != nil {
		return nil, err
	}
	s.metrics.CodeSent("sent")
	s.log.Info("code sent", zap.String("email", observability.MaskEmail(email)), zap.Time("expires_at", rec.ExpiresAt))

	res := &CodeResult{Proof: proof, ExpiresAt: rec.ExpiresAt}
	if s.debugEcho {
		res.DebugCode = code.Plain
	}
	return res, nil
}

// store replaces any pending record for the identity. The replaced record's
// proof is retired so its code cannot come back through the stateless path.
func (s *service) store(ctx context.Context, rec *domain.PendingVerification) error {
	unlock := s.locks.Lock(rec.Email)
	defer unlock()

	if prev, err := s.pending.Get(ctx, rec.Email); err == nil && prev.ProofID != "" {
		if err := s.ledger.Consume(ctx, prev.ProofID, prev.ExpiresAt); err != nil {
			s.log.Warn("could not retire replaced proof", zap.String("proof_id", prev.ProofID), zap.Error(err))
		}
	}
	if err := s.pending.Put(ctx, rec); err != nil {
		return fmt.Errorf("store pending code: %v: %w", err, domain.ErrInternal)
	}
	return nil
}

func (s *service) VerifyCode(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	email, path, err := s.redeem(ctx, req)
	if err != nil {
		s.metrics.Verified(domain.Reason(err), path)
		return nil, err
	}
	s.metrics.Verified("ok", path)

	sess, err := s.sessions.Issue(ctx, email, false)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	res := &VerifyResult{Session: sess}

	ent, err := s.entitlements.Resolve(ctx, email)
	if err != nil {
		s.log.Warn("premium unknown at sign-in", zap.String("email", observability.MaskEmail(email)), zap.Error(err))
		return res, nil
	}
	res.Premium = &ent.Premium
	return res, nil
}

// redeem checks the submitted code under the identity lock and, on success,
// makes it unusable. It returns the verified identity and the path that matched.
func (s *service) redeem(ctx context.Context, req VerifyRequest) (string, string, error) {
	if !otp.ValidFormat(req.Code) {
		return "", "", fmt.Errorf("malformed code: %w", domain.ErrBadCode)
	}

	// A submitted proof must be intact and match the identity even when the
	// store record ends up being the one checked.
	email := domain.NormalizeEmail(req.Email)
	var proof *domain.StatelessProof
	if req.Proof != "" {
		p, err := s.codec.Decode(req.Proof)
		if err != nil {
			return "", pathProof, err
		}
		proof = p
		if email == "" {
			email = p.Email
		}
	}
	email, err := domain.ParseIdentity(email)
	if err != nil {
		return "", "", err
	}
	if proof != nil && proof.Email != email {
		return "", pathProof, fmt.Errorf("proof issued for another identity: %w", domain.ErrInvalidProof)
	}

	unlock := s.locks.Lock(email)
	defer unlock()

	var c *candidate
	for _, src := range s.sources {
		c, err = src.Lookup(ctx, email, proof)
		if err != nil {
			return "", "", err
		}
		if c != nil {
			break
		}
	}
	if c == nil {
		return "", "", fmt.Errorf("no code requested for identity: %w", domain.ErrNoPendingCode)
	}

	if c.expired(s.now()) {
		if c.record != nil {
			s.dropRecord(ctx, email)
		}
		return "", c.path, fmt.Errorf("code expired at %s: %w", c.expiresAt.Format(time.RFC3339), domain.ErrExpired)
	}

	if !s.bypass && !s.hasher.Match(email, c.verifier, req.Code) {
		return "", c.path, s.recordFailure(ctx, c)
	}
	if s.bypass {
		s.log.Warn("code comparison bypassed", zap.String("email", observability.MaskEmail(email)))
	}

	if c.proofID != "" {
		if err := s.ledger.Consume(ctx, c.proofID, c.expiresAt); err != nil {
			return "", c.path, fmt.Errorf("retire proof: %v: %w", err, domain.ErrInternal)
		}
	}
	if c.record != nil {
		if err := s.pending.Delete(ctx, email); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return "", c.path, fmt.Errorf("delete redeemed code: %v: %w", err, domain.ErrInternal)
		}
	}
	return email, c.path, nil
}

// recordFailure counts a wrong code against the store record, or against the
// proof in the ledger when only the proof is left. Once the limit is reached the
// record is dropped and its proof retired.
func (s *service) recordFailure(ctx context.Context, c *candidate) error {
	badCode := fmt.Errorf("code mismatch: %w", domain.ErrBadCode)
	if c.record == nil {
		return s.recordProofFailure(ctx, c, badCode)
	}

	rec := *c.record
	rec.Attempts++
	if s.maxAttempts > 0 && rec.Attempts >= s.maxAttempts {
		if rec.ProofID != "" {
			if err := s.ledger.Consume(ctx, rec.ProofID, rec.ExpiresAt); err != nil {
				return fmt.Errorf("retire proof: %v: %w", err, domain.ErrInternal)
			}
		}
		s.dropRecord(ctx, rec.Email)
		s.log.Info("code locked out", zap.String("email", observability.MaskEmail(rec.Email)), zap.Int("attempts", rec.Attempts))
		return badCode
	}
	if err := s.pending.Put(ctx, &rec); err != nil {
		s.log.Warn("could not record failed attempt", zap.String("email", observability.MaskEmail(rec.Email)), zap.Error(err))
	}
	return badCode
}

func (s *service) recordProofFailure(ctx context.Context, c *candidate, badCode error) error {
	if s.maxAttempts <= 0 || c.proofID == "" {
		return badCode
	}
	n, err := s.ledger.RecordFailure(ctx, c.proofID, c.expiresAt)
	if err != nil {
		return fmt.Errorf("record failed attempt: %v: %w", err, domain.ErrInternal)
	}
	if n >= s.maxAttempts {
		if err := s.ledger.Consume(ctx, c.proofID, c.expiresAt); err != nil {
			return fmt.Errorf("retire proof: %v: %w", err, domain.ErrInternal)
		}
		s.log.Info("proof locked out", zap.String("proof_id", c.proofID), zap.Int("attempts", n))
	}
	return badCode
}

func (s *service) dropRecord(ctx context.Context, email string) {
	if err := s.pending.Delete(ctx, email); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.log.Warn("could not delete pending code", zap.String("email", observability.MaskEmail(email)), zap.Error(err))
	}
}
