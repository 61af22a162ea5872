// Package storetest is a driver-independent contract suite for store.Store
// implementations.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
	"github.com/aussiebroadwan/admitgate/internal/auth/store"
	"github.com/aussiebroadwan/admitgate/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, migrated, empty store.
type Factory func(t *testing.T) store.Store

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// Run executes the full contract suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("accounts", func(t *testing.T) { RunAccounts(t, newStore) })
	t.Run("pending otps", func(t *testing.T) { RunPendingOtps(t, newStore) })
}

func newAccount(identity domain.Identity) domain.Account {
	return domain.Account{
		ID:           idx.New().String(),
		Identity:     identity,
		DisplayName:  "Test Student",
		PasswordHash: "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		Role:         domain.RoleUser,
		Active:       true,
		CreatedAt:    base,
		UpdatedAt:    base,
	}
}

// RunAccounts checks the account repository contract.
func RunAccounts(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		a := newAccount(domain.MustParseIdentity(domain.KindPhone, "+84901234567"))
		require.NoError(t, s.Accounts().CreateAccount(ctx, a))

		byID, err := s.Accounts().GetAccountByID(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, a.Identity, byID.Identity)
		require.Equal(t, a.DisplayName, byID.DisplayName)
		require.Equal(t, a.PasswordHash, byID.PasswordHash)
		require.Equal(t, domain.RoleUser, byID.Role)
		require.True(t, byID.Active)
		require.True(t, base.Equal(byID.CreatedAt))

		byIdentity, err := s.Accounts().GetAccountByIdentity(ctx, "+84901234567")
		require.NoError(t, err)
		require.Equal(t, a.ID, byIdentity.ID)
	})

	t.Run("missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Accounts().GetAccountByIdentity(ctx, "nobody@example.com")
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = s.Accounts().GetAccountByID(ctx, idx.New().String())
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate identity", func(t *testing.T) {
		s := newStore(t)
		id := domain.MustParseIdentity(domain.KindEmail, "user@example.com")
		require.NoError(t, s.Accounts().CreateAccount(ctx, newAccount(id)))

		err := s.Accounts().CreateAccount(ctx, newAccount(id))
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("concurrent duplicate identity", func(t *testing.T) {
		s := newStore(t)
		id := domain.MustParseIdentity(domain.KindEmail, "race@example.com")

		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = s.Accounts().CreateAccount(ctx, newAccount(id))
			}()
		}
		wg.Wait()

		created := 0
		for _, err := range errs {
			if err == nil {
				created++
				continue
			}
			require.ErrorIs(t, err, store.ErrAlreadyExists)
		}
		require.Equal(t, 1, created)
	})

	t.Run("update password and active", func(t *testing.T) {
		s := newStore(t)
		a := newAccount(domain.MustParseIdentity(domain.KindEmail, "user@example.com"))
		require.NoError(t, s.Accounts().CreateAccount(ctx, a))

		later := base.Add(time.Hour)
		require.NoError(t, s.Accounts().UpdatePasswordHash(ctx, a.ID, "new-hash", later))
		require.NoError(t, s.Accounts().SetActive(ctx, a.ID, false, later))

		got, err := s.Accounts().GetAccountByID(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, "new-hash", got.PasswordHash)
		require.False(t, got.Active)
		require.True(t, later.Equal(got.UpdatedAt))

		require.ErrorIs(t, s.Accounts().UpdatePasswordHash(ctx, idx.New().String(), "x", later), store.ErrNotFound)
		require.ErrorIs(t, s.Accounts().SetActive(ctx, idx.New().String(), true, later), store.ErrNotFound)
	})
}

func newOtp(identity domain.Identity, hash string, ttl time.Duration) domain.PendingOtp {
	return domain.PendingOtp{
		Identity:  identity,
		CodeHash:  hash,
		ExpiresAt: base.Add(ttl),
		CreatedAt: base,
	}
}

// RunPendingOtps checks the pending code repository contract.
func RunPendingOtps(t *testing.T, newStore Factory) {
	ctx := context.Background()
	phone := domain.MustParseIdentity(domain.KindPhone, "+84901234567")

	t.Run("upsert replaces", func(t *testing.T) {
		s := newStore(t)
		otps := s.PendingOtps()

		require.NoError(t, otps.UpsertOtp(ctx, newOtp(phone, "first", 90*time.Second)))
		_, err := otps.IncrementOtpAttempts(ctx, phone.Value)
		require.NoError(t, err)

		require.NoError(t, otps.UpsertOtp(ctx, newOtp(phone, "second", 90*time.Second)))

		got, err := otps.GetOtp(ctx, phone.Value)
		require.NoError(t, err)
		require.Equal(t, "second", got.CodeHash)
		require.Equal(t, phone, got.Identity)
		require.Zero(t, got.Attempts, "upsert resets attempts")
		require.True(t, base.Add(90*time.Second).Equal(got.ExpiresAt))

		require.ErrorIs(t, otps.ConsumeOtp(ctx, phone.Value, "first", base), store.ErrNotFound)
		require.NoError(t, otps.ConsumeOtp(ctx, phone.Value, "second", base))
	})

	t.Run("consume is single use", func(t *testing.T) {
		s := newStore(t)
		otps := s.PendingOtps()
		require.NoError(t, otps.UpsertOtp(ctx, newOtp(phone, "hash", 90*time.Second)))

		require.NoError(t, otps.ConsumeOtp(ctx, phone.Value, "hash", base.Add(time.Second)))
		require.ErrorIs(t, otps.ConsumeOtp(ctx, phone.Value, "hash", base.Add(time.Second)), store.ErrNotFound)

		_, err := otps.GetOtp(ctx, phone.Value)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("consume respects expiry", func(t *testing.T) {
		s := newStore(t)
		otps := s.PendingOtps()
		require.NoError(t, otps.UpsertOtp(ctx, newOtp(phone, "hash", 90*time.Second)))

		require.ErrorIs(t, otps.ConsumeOtp(ctx, phone.Value, "hash", base.Add(91*time.Second)), store.ErrNotFound)
		require.ErrorIs(t, otps.ConsumeOtp(ctx, phone.Value, "hash", base.Add(90*time.Second+time.Millisecond)), store.ErrNotFound)

		// Still present until garbage collected
		_, err := otps.GetOtp(ctx, phone.Value)
		require.NoError(t, err)

		// Boundary instant is still valid
		require.NoError(t, otps.ConsumeOtp(ctx, phone.Value, "hash", base.Add(90*time.Second)))
	})

	t.Run("concurrent consume", func(t *testing.T) {
		s := newStore(t)
		otps := s.PendingOtps()
		require.NoError(t, otps.UpsertOtp(ctx, newOtp(phone, "hash", 90*time.Second)))

		var wg sync.WaitGroup
		errs := make([]error, 10)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = otps.ConsumeOtp(ctx, phone.Value, "hash", base)
			}()
		}
		wg.Wait()

		ok := 0
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}
			require.ErrorIs(t, err, store.ErrNotFound)
		}
		require.Equal(t, 1, ok)
	})

	t.Run("attempts", func(t *testing.T) {
		s := newStore(t)
		otps := s.PendingOtps()

		_, err := otps.IncrementOtpAttempts(ctx, phone.Value)
		require.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, otps.UpsertOtp(ctx, newOtp(phone, "hash", 90*time.Second)))
		for want := 1; want <= 3; want++ {
			n, err := otps.IncrementOtpAttempts(ctx, phone.Value)
			require.NoError(t, err)
			require.Equal(t, want, n)
		}
	})

	t.Run("delete and garbage collect", func(t *testing.T) {
		s := newStore(t)
		otps := s.PendingOtps()
		email := domain.MustParseIdentity(domain.KindEmail, "user@example.com")

		require.NoError(t, otps.UpsertOtp(ctx, newOtp(phone, "a", 90*time.Second)))
		require.NoError(t, otps.UpsertOtp(ctx, newOtp(email, "b", 180*time.Second)))

		n, err := otps.DeleteExpiredOtps(ctx, base.Add(120*time.Second))
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		_, err = otps.GetOtp(ctx, phone.Value)
		require.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, otps.DeleteOtp(ctx, email.Value))
		require.NoError(t, otps.DeleteOtp(ctx, email.Value), "deleting a missing code is not an error")
		_, err = otps.GetOtp(ctx, email.Value)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}
