package cryptox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	pepper, err := LoadPepper(filepath.Join(t.TempDir(), "pepper"))
	require.NoError(t, err)
	return NewPasswordHasher(pepper)
}

func TestHash(t *testing.T) {
	h := newTestHasher(t)

	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "Passw0rd"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"long password", strings.Repeat("a", 100)},
		{"empty password", ""},
		{"unicode password", "Mật khẩu 2026"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(tt.password)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"), "hash should be in PHC format")

			parts := strings.Split(hash, "$")
			require.Len(t, parts, 6, "PHC hash should have 6 parts")
			require.Contains(t, parts[3], "m=19456")
			require.Contains(t, parts[3], "t=2")
			require.Contains(t, parts[3], "p=1")

			require.NoError(t, h.Verify(tt.password, hash))
		})
	}
}

func TestHash_UniqueSalts(t *testing.T) {
	h := newTestHasher(t)

	hash1, err := h.Hash("Passw0rd")
	require.NoError(t, err)
	hash2, err := h.Hash("Passw0rd")
	require.NoError(t, err)

	require.NotEqual(t, hash1, hash2, "hashes should differ due to unique salts")
	require.NoError(t, h.Verify("Passw0rd", hash1))
	require.NoError(t, h.Verify("Passw0rd", hash2))
}

func TestVerify_WrongPassword(t *testing.T) {
	h := newTestHasher(t)
	hash, err := h.Hash("Correct1")
	require.NoError(t, err)

	for _, wrong := range []string{"Wrong1", "correct1", "Correct1 ", "", strings.Repeat("x", 10000)} {
		require.ErrorIs(t, h.Verify(wrong, hash), ErrPasswordMismatch)
	}
}

func TestVerify_PepperMatters(t *testing.T) {
	hash, err := NewPasswordHasher("pepper-one").Hash("Passw0rd")
	require.NoError(t, err)

	require.NoError(t, NewPasswordHasher("pepper-one").Verify("Passw0rd", hash))
	require.ErrorIs(t, NewPasswordHasher("pepper-two").Verify("Passw0rd", hash), ErrPasswordMismatch)
}

func TestVerify_InvalidHashFormat(t *testing.T) {
	h := newTestHasher(t)

	tests := []struct {
		name        string
		invalidHash string
	}{
		{"empty hash", ""},
		{"wrong algorithm", "$scrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"missing parts", "$argon2id$v=19$m=19456"},
		{"malformed parameters", "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{"invalid base64 salt", "$argon2id$v=19$m=19456,t=2,p=1$!!!invalid!!!$aGFzaA"},
		{"wrong version", "$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Verify("Passw0rd", tt.invalidHash)
			require.Error(t, err)
			require.NotErrorIs(t, err, ErrPasswordMismatch)
		})
	}
}

func TestVerify_LegacyBcrypt(t *testing.T) {
	h := newTestHasher(t)
	legacy, err := bcrypt.GenerateFromPassword([]byte("Legacy123"), bcrypt.MinCost)
	require.NoError(t, err)

	require.True(t, IsBcryptHash(string(legacy)))
	require.NoError(t, h.Verify("Legacy123", string(legacy)))
	require.ErrorIs(t, h.Verify("legacy123", string(legacy)), ErrPasswordMismatch)
}

func TestLoadPepper_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pepper")

	first, err := LoadPepper(path)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := LoadPepper(path)
	require.NoError(t, err)
	require.Equal(t, first, second)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadPepper_Ephemeral(t *testing.T) {
	a, err := LoadPepper("")
	require.NoError(t, err)
	b, err := LoadPepper("")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestGeneratePassword(t *testing.T) {
	for range 20 {
		pw, err := GeneratePassword()
		require.NoError(t, err)
		require.Len(t, pw, 16)
		require.True(t, strings.ContainsAny(pw, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"))
		require.True(t, strings.ContainsAny(pw, "abcdefghijklmnopqrstuvwxyz"))
		require.True(t, strings.ContainsAny(pw, "0123456789"))
	}
}
