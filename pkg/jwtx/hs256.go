package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HMAC secret accepted, matching the SHA-256
// block output size.
const MinSecretLength = 32

// HS256Signer signs claims with a shared server secret.
type HS256Signer struct {
	secret []byte
}

// NewSignerHS256 creates a signer, rejecting secrets shorter than
// MinSecretLength bytes.
func NewSignerHS256(secret []byte) (*HS256Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	return &HS256Signer{secret: secret}, nil
}

func (s *HS256Signer) Alg() string { return jwt.SigningMethodHS256.Alg() }

// Sign takes your claims and turns them into a signed JWT string.
func (s *HS256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// HS256Verifier validates tokens produced by an HS256Signer sharing the same
// secret.
type HS256Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifierHS256 creates a verifier. A nil now defaults to time.Now.
func NewVerifierHS256(secret []byte, issuer string, now func() time.Time) *HS256Verifier {
	if now == nil {
		now = time.Now
	}
	return &HS256Verifier{secret: secret, issuer: issuer, now: now}
}

// Verify validates the JWT string and returns its parsed Claims. Failures are
// reported as ErrMalformed, ErrInvalidSig, ErrExpired, ErrNotYetValid or
// ErrIssuer.
func (v *HS256Verifier) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)

	var claims Claims
	token, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return Claims{}, classify(err)
	}
	if !token.Valid {
		return Claims{}, ErrInvalidClaim
	}

	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return Claims{}, err
	}
	if claims.Subject == "" || claims.Identity == "" {
		return Claims{}, ErrInvalidClaim
	}

	return claims, nil
}

// classify maps golang-jwt validation errors onto the package sentinels.
// Signature problems are checked first so a tampered expired token still
// reports a bad signature.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		// Unexpected alg
		return fmt.Errorf("%w: %v", ErrAlgMismatch, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ErrNotYetValid
	default:
		return fmt.Errorf("%w: %v", ErrInvalidClaim, err)
	}
}
