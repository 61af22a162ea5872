package service

import (
	"errors"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
	"github.com/aussiebroadwan/admitgate/pkg/jwtx"
)

// Session is a signed session token and its validity window.
type Session struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SessionIssuer mints and validates HS256 session tokens.
type SessionIssuer struct {
	Signer   jwtx.Signer
	Verifier jwtx.Verifier
	Issuer   string
	TTL      time.Duration
	Now      func() time.Time
}

// NewSessionIssuer builds an issuer whose signer and verifier share secret
// and clock.
func NewSessionIssuer(secret []byte, issuer string, ttl time.Duration, clock func() time.Time) (*SessionIssuer, error) {
	signer, err := jwtx.NewSignerHS256(secret)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = jwtx.DefaultSessionTTL
	}

	return &SessionIssuer{
		Signer:   signer,
		Verifier: jwtx.NewVerifierHS256(secret, issuer, clock),
		Issuer:   issuer,
		TTL:      ttl,
		Now:      clock,
	}, nil
}

// Issue signs a session for account a.
func (s *SessionIssuer) Issue(a domain.Account) (Session, error) {
	if a.ID == "" || a.Identity.IsZero() {
		return Session{}, errors.New("session: account id and identity are required")
	}

	ttl := s.TTL
	if ttl <= 0 {
		ttl = jwtx.DefaultSessionTTL
	}
	// JWT dates have second precision
	issuedAt := now(s.Now).Truncate(time.Second)

	claims := jwtx.NewSessionClaims(a.ID, a.Identity.Value, string(a.Identity.Kind), string(a.Role), ttl, s.Issuer, issuedAt)
	token, err := s.Signer.Sign(claims)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(ttl),
	}, nil
}

// Validate checks the signature and expiry of token and returns its claims.
// Failures are ErrTokenMalformed, ErrTokenInvalidSignature or ErrTokenExpired
// (or another jwtx sentinel for wrong issuer or algorithm).
func (s *SessionIssuer) Validate(token string) (jwtx.Claims, error) {
	return s.Verifier.Verify(token)
}

// HasRole is the single authorization check used by every protected
// operation.
func HasRole(claims jwtx.Claims, required domain.Role) bool {
	return domain.ParseRole(claims.Role).Satisfies(required)
}
