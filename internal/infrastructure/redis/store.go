package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aurachatapp/aurachat-premium/internal/domain"
)

// expiredGrace keeps a pending record readable briefly past its expiry so a late
// submission is reported as expired rather than missing.
const expiredGrace = time.Minute

// Store keeps every record under a namespaced key with a native TTL, so Redis
// itself does the sweeping.
type Store struct {
	r      redis.Cmdable
	prefix string
	now    func() time.Time
}

func NewStore(r redis.Cmdable, prefix string) *Store {
	return &Store{r: r, prefix: prefix, now: time.Now}
}

func (s *Store) key(kind, id string) string {
	if s.prefix == "" {
		return kind + ":" + id
	}
	return s.prefix + ":" + kind + ":" + id
}

func (s *Store) ttlUntil(t time.Time) time.Duration {
	if d := t.Sub(s.now()); d > time.Second {
		return d
	}
	return time.Second
}

func (s *Store) Pending() *PendingRepo    { return &PendingRepo{s: s} }
func (s *Store) Ledger() *LedgerRepo      { return &LedgerRepo{s: s} }
func (s *Store) Sessions() *SessionRepo   { return &SessionRepo{s: s} }
func (s *Store) Customers() *CustomerRepo { return &CustomerRepo{s: s} }

func (s *Store) setJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.r.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *Store) getJSON(ctx context.Context, key string, v interface{}) error {
	b, err := s.r.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("unmarshal %s: %v: %w", key, err, domain.ErrInternal)
	}
	return nil
}

type PendingRepo struct{ s *Store }

func (r *PendingRepo) Put(ctx context.Context, v *domain.PendingVerification) error {
	return r.s.setJSON(ctx, r.s.key("pending", v.Email), v, r.s.ttlUntil(v.ExpiresAt)+expiredGrace)
}

func (r *PendingRepo) Get(ctx context.Context, email string) (*domain.PendingVerification, error) {
	var v domain.PendingVerification
	if err := r.s.getJSON(ctx, r.s.key("pending", email), &v); err != nil {
		return nil, fmt.Errorf("pending verification: %w", err)
	}
	return &v, nil
}

func (r *PendingRepo) Delete(ctx context.Context, email string) error {
	return r.s.r.Del(ctx, r.s.key("pending", email)).Err()
}

type LedgerRepo struct{ s *Store }

func (r *LedgerRepo) Consume(ctx context.Context, proofID string, expiresAt time.Time) error {
	return r.s.r.Set(ctx, r.s.key("proof", proofID), "1", r.s.ttlUntil(expiresAt)).Err()
}

func (r *LedgerRepo) Consumed(ctx context.Context, proofID string) (bool, error) {
	n, err := r.s.r.Exists(ctx, r.s.key("proof", proofID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// RecordFailure increments the wrong-code counter for a proof. The counter
// expires with the proof.
func (r *LedgerRepo) RecordFailure(ctx context.Context, proofID string, expiresAt time.Time) (int, error) {
	key := r.s.key("proof-fail", proofID)
	var incr *redis.IntCmd
	_, err := r.s.r.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.Expire(ctx, key, r.s.ttlUntil(expiresAt))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	return int(incr.Val()), nil
}

type SessionRepo struct{ s *Store }

func (r *SessionRepo) Put(ctx context.Context, sess *domain.Session) error {
	return r.s.setJSON(ctx, r.s.key("session", sess.Token), sess, r.s.ttlUntil(sess.ExpiresAt))
}

func (r *SessionRepo) Get(ctx context.Context, token string) (*domain.Session, error) {
	var sess domain.Session
	if err := r.s.getJSON(ctx, r.s.key("session", token), &sess); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return &sess, nil
}

func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	return r.s.r.Del(ctx, r.s.key("session", token)).Err()
}

type CustomerRepo struct{ s *Store }

func (r *CustomerRepo) GetCustomerID(ctx context.Context, email string) (string, error) {
	id, err := r.s.r.Get(ctx, r.s.key("customer", email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("customer: %w", domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return id, nil
}

func (r *CustomerRepo) PutCustomerID(ctx context.Context, email, customerID string) error {
	return r.s.r.Set(ctx, r.s.key("customer", email), customerID, 0).Err()
}
