// Package memory is an in-process store for pending codes, consumed proofs, sessions
// and billing customer ids. When opened with a path it snapshots itself to disk after
// every mutation so codes survive a restart.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/aurachatapp/aurachat-premium/internal/domain"
)

type failureEntry struct {
	Count     int       `json:"count"`
	ExpiresAt time.Time `json:"expires_at"`
}

type customerEntry struct {
	ID       string    `json:"id"`
	CachedAt time.Time `json:"cached_at"`
}

// Store owns all maps behind one mutex. Use the typed repos returned by
// Pending, Ledger, Sessions and Customers.
type Store struct {
	mu        sync.Mutex
	path      string
	pending   map[string]domain.PendingVerification
	consumed  map[string]time.Time
	failures  map[string]failureEntry
	sessions  map[string]domain.Session
	customers map[string]customerEntry
}

// New returns a volatile store.
func New() *Store {
	return &Store{
		pending:   make(map[string]domain.PendingVerification),
		consumed:  make(map[string]time.Time),
		failures:  make(map[string]failureEntry),
		sessions:  make(map[string]domain.Session),
		customers: make(map[string]customerEntry),
	}
}

// Open returns a store persisted at path, loading any existing snapshot.
func Open(path string) (*Store, error) {
	s := New()
	s.path = path
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Pending() *PendingRepo    { return &PendingRepo{s: s} }
func (s *Store) Ledger() *LedgerRepo      { return &LedgerRepo{s: s} }
func (s *Store) Sessions() *SessionRepo   { return &SessionRepo{s: s} }
func (s *Store) Customers() *CustomerRepo { return &CustomerRepo{s: s} }

// mutate runs fn under the lock and persists when fn reports a change. A change
// that cannot be persisted is rolled back.
func (s *Store) mutate(fn func() bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var prev snapshot
	if s.path != "" {
		prev = s.cloneLocked()
	}
	if !fn() {
		return nil
	}
	if err := s.persistLocked(); err != nil {
		s.restoreLocked(prev)
		return fmt.Errorf("persist store: %v: %w", err, domain.ErrInternal)
	}
	return nil
}

func (s *Store) cloneLocked() snapshot {
	return snapshot{
		Pending:   maps.Clone(s.pending),
		Consumed:  maps.Clone(s.consumed),
		Failures:  maps.Clone(s.failures),
		Sessions:  maps.Clone(s.sessions),
		Customers: maps.Clone(s.customers),
	}
}

func (s *Store) restoreLocked(snap snapshot) {
	s.pending = snap.Pending
	s.consumed = snap.Consumed
	s.failures = snap.Failures
	s.sessions = snap.Sessions
	s.customers = snap.Customers
}

// PendingRepo stores one pending verification per email.
type PendingRepo struct{ s *Store }

func (r *PendingRepo) Put(_ context.Context, v *domain.PendingVerification) error {
	return r.s.mutate(func() bool {
		r.s.pending[v.Email] = *v
		return true
	})
}

func (r *PendingRepo) Get(_ context.Context, email string) (*domain.PendingVerification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.pending[email]
	if !ok {
		return nil, fmt.Errorf("pending verification: %w", domain.ErrNotFound)
	}
	return &v, nil
}

func (r *PendingRepo) Delete(_ context.Context, email string) error {
	return r.s.mutate(func() bool {
		if _, ok := r.s.pending[email]; !ok {
			return false
		}
		delete(r.s.pending, email)
		return true
	})
}

func (r *PendingRepo) Sweep(_ context.Context, now time.Time) (int, error) {
	n := 0
	err := r.s.mutate(func() bool {
		for k, v := range r.s.pending {
			if v.Expired(now) {
				delete(r.s.pending, k)
				n++
			}
		}
		return n > 0
	})
	return n, err
}

// LedgerRepo remembers consumed proof ids, and wrong-code counts per proof, until
// the proof itself expires.
type LedgerRepo struct{ s *Store }

func (r *LedgerRepo) Consume(_ context.Context, proofID string, expiresAt time.Time) error {
	return r.s.mutate(func() bool {
		r.s.consumed[proofID] = expiresAt
		return true
	})
}

func (r *LedgerRepo) Consumed(_ context.Context, proofID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.consumed[proofID]
	return ok, nil
}

func (r *LedgerRepo) RecordFailure(_ context.Context, proofID string, expiresAt time.Time) (int, error) {
	var n int
	err := r.s.mutate(func() bool {
		e := r.s.failures[proofID]
		e.Count++
		e.ExpiresAt = expiresAt
		r.s.failures[proofID] = e
		n = e.Count
		return true
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *LedgerRepo) Sweep(_ context.Context, now time.Time) (int, error) {
	n := 0
	err := r.s.mutate(func() bool {
		for k, exp := range r.s.consumed {
			if exp.Before(now) {
				delete(r.s.consumed, k)
				n++
			}
		}
		for k, e := range r.s.failures {
			if e.ExpiresAt.Before(now) {
				delete(r.s.failures, k)
				n++
			}
		}
		return n > 0
	})
	return n, err
}

// SessionRepo maps opaque session tokens to sessions.
type SessionRepo struct{ s *Store }

func (r *SessionRepo) Put(_ context.Context, sess *domain.Session) error {
	return r.s.mutate(func() bool {
		r.s.sessions[sess.Token] = *sess
		return true
	})
}

func (r *SessionRepo) Get(_ context.Context, token string) (*domain.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[token]
	if !ok {
		return nil, fmt.Errorf("session: %w", domain.ErrNotFound)
	}
	return &sess, nil
}

func (r *SessionRepo) Delete(_ context.Context, token string) error {
	return r.s.mutate(func() bool {
		if _, ok := r.s.sessions[token]; !ok {
			return false
		}
		delete(r.s.sessions, token)
		return true
	})
}

func (r *SessionRepo) Sweep(_ context.Context, now time.Time) (int, error) {
	n := 0
	err := r.s.mutate(func() bool {
		for k, sess := range r.s.sessions {
			if sess.Expired(now) {
				delete(r.s.sessions, k)
				n++
			}
		}
		return n > 0
	})
	return n, err
}

// CustomerRepo caches email to billing customer id.
type CustomerRepo struct{ s *Store }

func (r *CustomerRepo) GetCustomerID(_ context.Context, email string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.customers[email]
	if !ok {
		return "", fmt.Errorf("customer: %w", domain.ErrNotFound)
	}
	return e.ID, nil
}

func (r *CustomerRepo) PutCustomerID(_ context.Context, email, customerID string) error {
	return r.s.mutate(func() bool {
		r.s.customers[email] = customerEntry{ID: customerID, CachedAt: time.Now().UTC()}
		return true
	})
}
