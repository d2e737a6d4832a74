package domain

import (
	"strings"

	"github.com/aurachatapp/aurachat-premium/internal/pkg/validate"
)

// NormalizeEmail returns the canonical identity key for an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ParseIdentity normalizes email and checks that it is a usable address.
func ParseIdentity(email string) (string, error) {
	id := NormalizeEmail(email)
	if id == "" {
		return "", NewValidationError(ReasonEmailRequired)
	}
	if err := validate.Var(id, "email,max=254"); err != nil {
		return "", NewValidationError(ReasonInvalidEmail)
	}
	return id, nil
}
