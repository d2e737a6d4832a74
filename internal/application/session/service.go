package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aurachatapp/aurachat-premium/internal/domain"
	jwtinfra "github.com/aurachatapp/aurachat-premium/internal/infrastructure/jwt"
	"github.com/aurachatapp/aurachat-premium/internal/pkg/id"
	pkgtoken "github.com/aurachatapp/aurachat-premium/internal/pkg/token"
)

const (
	ModeJWT    = "jwt"
	ModeOpaque = "opaque"
)

// Info is what an authenticated caller learns about itself.
type Info struct {
	Email   string
	Premium bool
}

type Service interface {
	Issue(ctx context.Context, email string, premiumHint bool) (*domain.Session, error)
	Validate(ctx context.Context, bearer string) (*domain.Session, error)
	GetSession(ctx context.Context, bearer string) (*Info, error)
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, token string) (*domain.Session, error)
	Delete(ctx context.Context, token string) error
}

type jwtSigner interface {
	Sign(email, sessionID string) (string, time.Time, error)
	Verify(token string) (*jwtinfra.Claims, error)
}

type entitlementResolver interface {
	Resolve(ctx context.Context, email string) (*domain.Entitlement, error)
}

type service struct {
	mode         string
	store        sessionStore
	signer       jwtSigner
	entitlements entitlementResolver
	ttl          time.Duration
	log          *zap.Logger
	now          func() time.Time
}

type ServiceDeps struct {
	Mode         string
	Store        sessionStore
	Signer       jwtSigner
	Entitlements entitlementResolver
	TTL          time.Duration
	Log          *zap.Logger
	Now          func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		mode:         deps.Mode,
		store:        deps.Store,
		signer:       deps.Signer,
		entitlements: deps.Entitlements,
		ttl:          deps.TTL,
		log:          deps.Log,
		now:          deps.Now,
	}
	if s.mode == "" {
		s.mode = ModeJWT
	}
	if s.ttl <= 0 {
		s.ttl = 30 * 24 * time.Hour
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Issue(ctx context.Context, email string, premiumHint bool) (*domain.Session, error) {
	now := s.now().UTC()
	if s.mode == ModeJWT {
		signed, exp, err := s.signer.Sign(email, id.New())
		if err != nil {
			return nil, fmt.Errorf("sign session: %v: %w", err, domain.ErrInternal)
		}
		return &domain.Session{Token: signed, Email: email, CreatedAt: now, ExpiresAt: exp}, nil
	}

	tok, err := pkgtoken.NewOpaque()
	if err != nil {
		return nil, fmt.Errorf("session token: %v: %w", err, domain.ErrInternal)
	}
	sess := &domain.Session{
		Token:       tok,
		Email:       email,
		PremiumHint: premiumHint,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %v: %w", err, domain.ErrInternal)
	}
	return sess, nil
}

// Validate recovers the session behind a bearer credential. Signed tokens are
// checked locally; anything else is looked up in the session store.
func (s *service) Validate(ctx context.Context, bearer string) (*domain.Session, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return nil, fmt.Errorf("missing session token: %w", domain.ErrUnauthenticated)
	}

	if pkgtoken.LooksSigned(bearer) {
		if s.signer == nil {
			return nil, fmt.Errorf("signed sessions disabled: %w", domain.ErrUnauthenticated)
		}
		claims, err := s.signer.Verify(bearer)
		if err != nil {
			return nil, fmt.Errorf("verify session: %v: %w", err, domain.ErrUnauthenticated)
		}
		sess := &domain.Session{Token: bearer, Email: claims.Email}
		if claims.IssuedAt != nil {
			sess.CreatedAt = claims.IssuedAt.Time
		}
		if claims.ExpiresAt != nil {
			sess.ExpiresAt = claims.ExpiresAt.Time
		}
		return sess, nil
	}

	if s.store == nil {
		return nil, fmt.Errorf("opaque sessions disabled: %w", domain.ErrUnauthenticated)
	}
	sess, err := s.store.Get(ctx, bearer)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("unknown session: %w", domain.ErrUnauthenticated)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %v: %w", err, domain.ErrInternal)
	}
	if sess.Expired(s.now()) {
		if err := s.store.Delete(ctx, bearer); err != nil {
			s.log.Warn("could not delete expired session", zap.Error(err))
		}
		return nil, fmt.Errorf("session expired: %w", domain.ErrUnauthenticated)
	}
	return sess, nil
}

// GetSession validates bearer and re-derives premium from billing on every call.
func (s *service) GetSession(ctx context.Context, bearer string) (*Info, error) {
	sess, err := s.Validate(ctx, bearer)
	if err != nil {
		return nil, err
	}
	ent, err := s.entitlements.Resolve(ctx, sess.Email)
	if err != nil {
		return nil, err
	}
	return &Info{Email: sess.Email, Premium: ent.Premium}, nil
}
