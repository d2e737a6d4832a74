package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aurachatapp/aurachat-premium/internal/domain"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 16 << 10

// ErrorEnvelope is the body of every non-2xx response.
type ErrorEnvelope struct {
	Error string `json:"error"`
}

// OKEnvelope is returned by endpoints with nothing else to say.
type OKEnvelope struct {
	OK bool `json:"ok"`
}

// CodeEnvelope answers /auth/start. Token and PendingToken carry the same proof.
type CodeEnvelope struct {
	OK           bool      `json:"ok"`
	Token        string    `json:"token"`
	PendingToken string    `json:"pendingToken"`
	ExpiresAt    time.Time `json:"expires_at"`
	Code         string    `json:"code,omitempty"`
}

// VerifyEnvelope answers /auth/verify. Premium is null when billing was unreachable.
type VerifyEnvelope struct {
	Token   string `json:"token"`
	Session string `json:"session"`
	Premium *bool  `json:"premium"`
}

// MeEnvelope answers /me.
type MeEnvelope struct {
	Email   string `json:"email"`
	Premium bool   `json:"premium"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, ErrorEnvelope{Error: reason})
}

// writeServiceError maps a service error to its status and reason. Only the
// reason reaches the client; the wrapped detail is logged for 5xx.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	}
	writeError(w, status, domain.Reason(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrNoPendingCode),
		errors.Is(err, domain.ErrExpired),
		errors.Is(err, domain.ErrBadCode),
		errors.Is(err, domain.ErrInvalidProof):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return domain.NewValidationError(domain.ReasonInvalidRequest)
}
