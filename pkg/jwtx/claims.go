package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is the lifetime of a login session token.
const DefaultSessionTTL = 24 * time.Hour

// Claims are session-token claims shared by the issuer and every consuming
// endpoint.
type Claims struct {
	jwt.RegisteredClaims

	// Canonical identity the account registered with (E.164 phone or
	// lower-cased email)
	Identity string `json:"identity"`

	// "phone" or "email"
	Kind string `json:"kind,omitempty"`

	// "user" or "admin"
	Role string `json:"role,omitempty"`
}

// NewSessionClaims builds minimally-correct claims for an account session.
func NewSessionClaims(
	accountID, identity, kind, role string,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Identity: identity,
		Kind:     kind,
		Role:     role,
	}
}

// AccountID returns the subject claim.
func (c *Claims) AccountID() string { return c.Subject }

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}
