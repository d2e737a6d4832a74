package jwtinfra

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aurachatapp/aurachat-premium/internal/domain"
)

type proofClaims struct {
	Email    string `json:"email"`
	Verifier string `json:"cmac"`
	Purpose  string `json:"purpose"`
	jwt.RegisteredClaims
}

// ProofCodec encodes pending verifications as HS256 tokens so a code stays
// verifiable when the server-side store has lost its record.
type ProofCodec struct {
	key []byte
}

func NewProofCodec(secret string) (*ProofCodec, error) {
	if secret == "" {
		return nil, errors.New("proof secret is empty")
	}
	return &ProofCodec{key: []byte(secret)}, nil
}

func (c *ProofCodec) Encode(p domain.StatelessProof) (string, error) {
	claims := proofClaims{
		Email:    p.Email,
		Verifier: p.Verifier,
		Purpose:  domain.ProofPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Email,
			ID:        p.ID,
			IssuedAt:  jwt.NewNumericDate(p.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(p.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign proof: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and structure of a proof. Expiry is not checked here;
// the caller compares ExpiresAt so it can report an expired code distinctly.
func (c *ProofCodec) Decode(tokenStr string) (*domain.StatelessProof, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &proofClaims{}, func(t *jwt.Token) (interface{}, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse proof: %v: %w", err, domain.ErrInvalidProof)
	}
	claims, ok := token.Claims.(*proofClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("proof claims: %w", domain.ErrInvalidProof)
	}
	switch {
	case claims.Purpose != domain.ProofPurpose:
		return nil, fmt.Errorf("proof purpose %q: %w", claims.Purpose, domain.ErrInvalidProof)
	case claims.Email == "" || claims.Subject != claims.Email:
		return nil, fmt.Errorf("proof identity: %w", domain.ErrInvalidProof)
	case claims.ID == "" || claims.Verifier == "" || claims.ExpiresAt == nil:
		return nil, fmt.Errorf("proof incomplete: %w", domain.ErrInvalidProof)
	}
	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	return &domain.StatelessProof{
		ID:        claims.ID,
		Email:     claims.Email,
		Verifier:  claims.Verifier,
		IssuedAt:  issuedAt,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
