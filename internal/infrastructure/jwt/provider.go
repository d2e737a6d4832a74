package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aurachatapp/aurachat-premium/internal/config"
)

// sessionPurpose separates session tokens from proofs, which may share the HS256 key.
const sessionPurpose = "session"

// Claims holds the session JWT payload fields.
type Claims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Provider signs and verifies session JWTs. RS256 is used when a PEM key pair is
// configured, HS256 with the shared secret otherwise.
type Provider struct {
	method    jwt.SigningMethod
	signKey   interface{}
	verifyKey interface{}
	expiry    time.Duration
	now       func() time.Time
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	if cfg.JWTPrivateKeyPath != "" && cfg.JWTPublicKeyPath != "" {
		privKey, pubKey, err := loadRSAKeys(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath)
		if err != nil {
			return nil, err
		}
		return &Provider{method: jwt.SigningMethodRS256, signKey: privKey, verifyKey: pubKey, expiry: cfg.SessionTTL, now: time.Now}, nil
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("no JWT key pair or secret configured")
	}
	secret := []byte(cfg.JWTSecret)
	return &Provider{method: jwt.SigningMethodHS256, signKey: secret, verifyKey: secret, expiry: cfg.SessionTTL, now: time.Now}, nil
}

func loadRSAKeys(privPath, pubPath string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	privBytes, err := os.ReadFile(privPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parse public key: %w", err)
	}
	return privKey, pubKey, nil
}

// Algorithm returns the JWS alg used for signing.
func (p *Provider) Algorithm() string { return p.method.Alg() }

// Sign mints a session token for email with the given id and returns its expiry.
func (p *Provider) Sign(email, sessionID string) (string, time.Time, error) {
	now := p.now()
	expiresAt := now.Add(p.expiry)
	claims := Claims{
		Email:   email,
		Purpose: sessionPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ID:        sessionID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(p.method, claims)
	signed, err := token.SignedString(p.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return p.verifyKey, nil
	},
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Purpose != sessionPurpose {
		return nil, fmt.Errorf("token purpose %q is not a session", claims.Purpose)
	}
	if claims.Email == "" || claims.Subject != claims.Email {
		return nil, errors.New("token subject mismatch")
	}
	return claims, nil
}
