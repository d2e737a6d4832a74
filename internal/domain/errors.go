package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrNoPendingCode   = errors.New("no pending code")
	ErrExpired         = errors.New("code expired")
	ErrBadCode         = errors.New("bad code")
	ErrInvalidProof    = errors.New("invalid proof")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUpstream        = errors.New("upstream failure")
	ErrInternal        = errors.New("internal error")
)

// Stable machine-readable reasons returned to clients.
const (
	ReasonEmailRequired   = "email_required"
	ReasonInvalidEmail    = "invalid_email"
	ReasonInvalidRequest  = "invalid_request"
	ReasonNoPendingCode   = "no_pending_code"
	ReasonExpired         = "expired"
	ReasonBadCode         = "bad_code"
	ReasonInvalidProof    = "invalid_proof"
	ReasonUnauthenticated = "unauthenticated"
	ReasonUpstream        = "upstream_error"
	ReasonTooManyRequests = "too_many_requests"
	ReasonServerError     = "server_error"
)

// ValidationError is a user-fixable input problem carrying its own reason.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError returns an error matching ErrValidation with the given reason.
func NewValidationError(reason string) error {
	return &ValidationError{Reason: reason}
}

// Reason maps any service error onto the client-visible reason string.
// Unknown errors collapse to ReasonServerError.
func Reason(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Reason
	case errors.Is(err, ErrValidation):
		return ReasonInvalidRequest
	case errors.Is(err, ErrNoPendingCode):
		return ReasonNoPendingCode
	case errors.Is(err, ErrExpired):
		return ReasonExpired
	case errors.Is(err, ErrBadCode):
		return ReasonBadCode
	case errors.Is(err, ErrInvalidProof):
		return ReasonInvalidProof
	case errors.Is(err, ErrUnauthenticated):
		return ReasonUnauthenticated
	case errors.Is(err, ErrUpstream):
		return ReasonUpstream
	default:
		return ReasonServerError
	}
}
