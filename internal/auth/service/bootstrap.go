package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
	"github.com/aussiebroadwan/admitgate/internal/auth/store"
	"github.com/aussiebroadwan/admitgate/pkg/cryptox"
	"github.com/aussiebroadwan/admitgate/pkg/idx"
	"github.com/aussiebroadwan/admitgate/pkg/slogx"
)

// BootstrapService seeds the first admin account so the admin endpoints are
// reachable on a fresh database.
type BootstrapService struct {
	Store     store.Store
	Passwords *cryptox.PasswordHasher
	Now       func() time.Time
}

// BootstrapResult describes what EnsureAdmin did. GeneratedPassword is only
// set when the account was created without a configured password.
type BootstrapResult struct {
	Account           domain.Account
	Created           bool
	GeneratedPassword string
}

// EnsureAdmin creates an admin account for id unless an account already holds
// that identity. An empty password is replaced by a generated one.
func (s *BootstrapService) EnsureAdmin(ctx context.Context, id domain.Identity, password string) (BootstrapResult, error) {
	l := slogx.FromContext(ctx).With(slogx.Identity(id.Value))

	// 1. Existing account wins
	existing, err := s.Store.Accounts().GetAccountByIdentity(ctx, id.Value)
	if err == nil {
		if existing.Role != domain.RoleAdmin {
			l.Warn("bootstrap identity exists without admin role", slog.String("account_id", existing.ID))
		}
		return BootstrapResult{Account: existing}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return BootstrapResult{}, storeUnavailable(err)
	}

	// 2. Pick the password
	var generated string
	if password == "" {
		generated, err = cryptox.GeneratePassword()
		if err != nil {
			return BootstrapResult{}, err
		}
		password = generated
	} else if err := domain.ValidatePassword(password); err != nil {
		return BootstrapResult{}, err
	}

	hash, err := s.Passwords.Hash(password)
	if err != nil {
		return BootstrapResult{}, err
	}

	// 3. Create the admin
	at := now(s.Now)
	account := domain.Account{
		ID:           idx.NewAt(at).String(),
		Identity:     id,
		DisplayName:  "Administrator",
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Active:       true,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	if err := s.Store.Accounts().CreateAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Lost a race with another instance
			existing, gerr := s.Store.Accounts().GetAccountByIdentity(ctx, id.Value)
			if gerr != nil {
				return BootstrapResult{}, storeUnavailable(gerr)
			}
			return BootstrapResult{Account: existing}, nil
		}
		return BootstrapResult{}, storeUnavailable(err)
	}

	l.Info("bootstrap admin created", slog.String("account_id", account.ID))
	return BootstrapResult{Account: account, Created: true, GeneratedPassword: generated}, nil
}
