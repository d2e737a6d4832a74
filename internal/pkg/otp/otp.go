// Package otp generates numeric one-time codes and the verifiers used to check them.
package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Length is the number of digits in a code.
const Length = 6

const macPrefix = "mac:"

var maxCode = big.NewInt(1_000_000)

// Code is a freshly generated code. Plain is delivered once and never persisted.
type Code struct {
	Plain string
	Hash  string
}

// Hasher produces and checks code verifiers. Store records use a salted bcrypt hash;
// stateless proofs carry a keyed MAC so the verifier cannot be brute-forced offline.
type Hasher struct {
	cost   int
	macKey []byte
}

// NewHasher returns a Hasher. A cost of 0 selects bcrypt.DefaultCost.
func NewHasher(macKey []byte, cost int) *Hasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost, macKey: macKey}
}

// Generate draws a uniformly random code from crypto/rand and hashes it.
func (h *Hasher) Generate() (Code, error) {
	n, err := rand.Int(rand.Reader, maxCode)
	if err != nil {
		return Code{}, fmt.Errorf("generate code: %w", err)
	}
	plain := fmt.Sprintf("%06d", n.Int64())
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return Code{}, fmt.Errorf("hash code: %w", err)
	}
	return Code{Plain: plain, Hash: string(hash)}, nil
}

// Seal returns the keyed verifier for code bound to email.
func (h *Hasher) Seal(email, code string) string {
	return macPrefix + base64.RawURLEncoding.EncodeToString(h.mac(email, code))
}

// Match reports whether code matches verifier for email. Both verifier forms are accepted.
func (h *Hasher) Match(email, verifier, code string) bool {
	if rest, ok := strings.CutPrefix(verifier, macPrefix); ok {
		want, err := base64.RawURLEncoding.DecodeString(rest)
		if err != nil {
			return false
		}
		return hmac.Equal(want, h.mac(email, code))
	}
	return bcrypt.CompareHashAndPassword([]byte(verifier), []byte(code)) == nil
}

func (h *Hasher) mac(email, code string) []byte {
	m := hmac.New(sha256.New, h.macKey)
	m.Write([]byte(email))
	m.Write([]byte{0})
	m.Write([]byte(code))
	return m.Sum(nil)
}

// ValidFormat reports whether s is exactly Length ASCII digits.
func ValidFormat(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
