package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentity(t *testing.T) {
	id, err := ParseIdentity("  Alice@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", id)

	_, err = ParseIdentity("   ")
	assert.Equal(t, ReasonEmailRequired, Reason(err))
	assert.ErrorIs(t, err, ErrValidation)

	for _, bad := range []string{"nope", "a@", "@b.io", "a b@c.io", strings.Repeat("a", 250) + "@x.io"} {
		_, err = ParseIdentity(bad)
		assert.Equal(t, ReasonInvalidEmail, Reason(err), bad)
	}
}

func TestReason(t *testing.T) {
	cases := map[string]error{
		"":                    nil,
		ReasonInvalidRequest:  ErrValidation,
		ReasonInvalidEmail:    fmt.Errorf("wrap: %w", NewValidationError(ReasonInvalidEmail)),
		ReasonNoPendingCode:   fmt.Errorf("lookup: %w", ErrNoPendingCode),
		ReasonExpired:         ErrExpired,
		ReasonBadCode:         ErrBadCode,
		ReasonInvalidProof:    ErrInvalidProof,
		ReasonUnauthenticated: ErrUnauthenticated,
		ReasonUpstream:        fmt.Errorf("stripe: timeout: %w", ErrUpstream),
		ReasonServerError:     errors.New("anything else"),
	}
	for want, err := range cases {
		assert.Equal(t, want, Reason(err))
	}
	assert.Equal(t, ReasonServerError, Reason(ErrInternal))
}

func TestPendingVerification_Expired(t *testing.T) {
	exp := time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)
	p := &PendingVerification{ExpiresAt: exp}
	assert.False(t, p.Expired(exp.Add(-time.Second)))
	assert.False(t, p.Expired(exp))
	assert.True(t, p.Expired(exp.Add(time.Second)))
}

func TestSession_Expired(t *testing.T) {
	exp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &Session{ExpiresAt: exp}
	assert.False(t, s.Expired(exp.Add(-time.Second)))
	assert.True(t, s.Expired(exp))
}

func TestSubscriptionStatus_IsEntitled(t *testing.T) {
	assert.True(t, SubscriptionActive.IsEntitled())
	assert.True(t, SubscriptionTrialing.IsEntitled())
	for _, s := range []SubscriptionStatus{SubscriptionCanceled, SubscriptionPastDue, SubscriptionUnpaid,
		SubscriptionIncomplete, SubscriptionIncompleteExpired, SubscriptionPaused, "unknown"} {
		assert.False(t, s.IsEntitled(), s)
	}
}
