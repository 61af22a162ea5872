package service_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
	"github.com/aussiebroadwan/admitgate/internal/auth/service"
	"github.com/aussiebroadwan/admitgate/pkg/jwtx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccount(role domain.Role) domain.Account {
	return domain.Account{
		ID:       "01JNK0000000000000000000AB",
		Identity: domain.MustParseIdentity(domain.KindPhone, "+84901234567"),
		Role:     role,
		Active:   true,
	}
}

func TestSessionIssuer_IssueAndValidate(t *testing.T) {
	clock := newClock()
	s, err := service.NewSessionIssuer([]byte(testSecret), "admitgate", 0, clock.Now)
	require.NoError(t, err)

	session, err := s.Issue(testAccount(domain.RoleUser))
	require.NoError(t, err)
	assert.Equal(t, baseTime, session.IssuedAt)
	assert.Equal(t, baseTime.Add(jwtx.DefaultSessionTTL), session.ExpiresAt)

	claims, err := s.Validate(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "+84901234567", claims.Identity)
	assert.Equal(t, "phone", claims.Kind)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, "admitgate", claims.Issuer)
}

func TestSessionIssuer_Expired(t *testing.T) {
	clock := newClock()
	s, err := service.NewSessionIssuer([]byte(testSecret), "admitgate", time.Hour, clock.Now)
	require.NoError(t, err)

	session, err := s.Issue(testAccount(domain.RoleUser))
	require.NoError(t, err)

	clock.Advance(time.Hour + time.Second)
	_, err = s.Validate(session.Token)
	assert.ErrorIs(t, err, service.ErrTokenExpired)
}

func TestSessionIssuer_InvalidSignature(t *testing.T) {
	clock := newClock()
	s, err := service.NewSessionIssuer([]byte(testSecret), "admitgate", 0, clock.Now)
	require.NoError(t, err)
	other, err := service.NewSessionIssuer([]byte(strings.Repeat("x", 32)), "admitgate", 0, clock.Now)
	require.NoError(t, err)

	session, err := other.Issue(testAccount(domain.RoleAdmin))
	require.NoError(t, err)

	_, err = s.Validate(session.Token)
	assert.ErrorIs(t, err, service.ErrTokenInvalidSignature)
}

func TestSessionIssuer_Malformed(t *testing.T) {
	s, err := service.NewSessionIssuer([]byte(testSecret), "admitgate", 0, nil)
	require.NoError(t, err)

	for _, tok := range []string{"", "abc", "a.b.c"} {
		_, err := s.Validate(tok)
		assert.ErrorIs(t, err, service.ErrTokenMalformed, tok)
	}
}

func TestSessionIssuer_WeakSecret(t *testing.T) {
	_, err := service.NewSessionIssuer([]byte("short"), "admitgate", 0, nil)
	assert.ErrorIs(t, err, jwtx.ErrWeakSecret)
}

func TestHasRole(t *testing.T) {
	user := jwtx.Claims{Role: "user"}
	admin := jwtx.Claims{Role: "admin"}
	unknown := jwtx.Claims{Role: "root"}

	assert.True(t, service.HasRole(user, domain.RoleUser))
	assert.False(t, service.HasRole(user, domain.RoleAdmin))
	assert.True(t, service.HasRole(admin, domain.RoleUser))
	assert.True(t, service.HasRole(admin, domain.RoleAdmin))
	assert.False(t, service.HasRole(unknown, domain.RoleAdmin))
}
