package domain

import "time"

// Session binds a verified email to a bearer credential.
// Token is what the client presents as its bearer: the lookup key for opaque
// sessions, the full signed JWT otherwise.
type Session struct {
	Token       string    `json:"token"`
	Email       string    `json:"email"`
	PremiumHint bool      `json:"premium_hint"`
	CreatedAt   time.Time `json:"created"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
