package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
	"github.com/aussiebroadwan/admitgate/internal/auth/store"
	"github.com/aussiebroadwan/admitgate/pkg/cryptox"
	"github.com/aussiebroadwan/admitgate/pkg/idx"
	"github.com/aussiebroadwan/admitgate/pkg/jwtx"
	"github.com/aussiebroadwan/admitgate/pkg/slogx"
)

// MaxDisplayNameLength bounds the stored display name, in runes.
const MaxDisplayNameLength = 64

// CredentialService drives the account flows: availability check,
// registration, login and password reset.
type CredentialService struct {
	Store     store.Store
	Otp       *OtpManager
	Sessions  *SessionIssuer
	Passwords *cryptox.PasswordHasher

	// CountryCode is prepended to national-format phone numbers.
	CountryCode string

	// RequireCodeOnRegister makes Register consume the submitted code itself
	// instead of trusting that VerifyCode ran first.
	RequireCodeOnRegister bool

	Now func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

type RegisterInput struct {
	Kind        domain.IdentityKind
	Identity    string
	DisplayName string
	Password    string
	Code        string
}

type ResetPasswordInput struct {
	Kind            domain.IdentityKind
	Identity        string
	Code            string
	NewPassword     string
	ConfirmPassword string
}

// ParseIdentity canonicalises raw for kind.
func (s *CredentialService) ParseIdentity(kind domain.IdentityKind, raw string) (domain.Identity, error) {
	cc := s.CountryCode
	if cc == "" {
		cc = domain.DefaultCountryCode
	}
	return domain.ParseIdentity(kind, raw, cc)
}

// CheckIdentityAvailable fails with ErrAlreadyRegistered if an account holds
// the identity, otherwise issues a registration code for it.
func (s *CredentialService) CheckIdentityAvailable(ctx context.Context, kind domain.IdentityKind, raw string) (OtpHandle, error) {
	id, err := s.ParseIdentity(kind, raw)
	if err != nil {
		return OtpHandle{}, err
	}

	taken, err := s.exists(ctx, id)
	if err != nil {
		return OtpHandle{}, err
	}
	if taken {
		return OtpHandle{}, ErrAlreadyRegistered
	}

	return s.Otp.RequestCode(ctx, id, domain.PurposeRegistration)
}

// VerifyCode consumes the pending code for the identity.
func (s *CredentialService) VerifyCode(ctx context.Context, kind domain.IdentityKind, raw, code string) error {
	id, err := s.ParseIdentity(kind, raw)
	if err != nil {
		return err
	}
	return s.Otp.VerifyCode(ctx, id, code)
}

// ResendCode replaces the pending code for the identity.
func (s *CredentialService) ResendCode(ctx context.Context, kind domain.IdentityKind, raw string, purpose domain.OtpPurpose) (OtpHandle, error) {
	id, err := s.ParseIdentity(kind, raw)
	if err != nil {
		return OtpHandle{}, err
	}
	if purpose == "" {
		purpose = domain.PurposeVerification
	}
	return s.Otp.ResendCode(ctx, id, purpose)
}

// Register creates an active user account.
//
// Unless RequireCodeOnRegister is set, in.Code is not checked here: callers
// are expected to have run VerifyCode for the identity beforehand.
//
// With RequireCodeOnRegister the code is consumed before the insert, as there
// is no way to undo an insert if the code turns out to be wrong. An identity
// that is already registered is rejected before the code is touched. Two
// concurrent registrations for one identity can both pass that check; the
// loser then gets ErrAlreadyRegistered with its code spent, which costs
// nothing since the identity can no longer be registered.
func (s *CredentialService) Register(ctx context.Context, in RegisterInput) (domain.Account, error) {
	l := slogx.FromContext(ctx)

	// 1. Validate input
	id, err := s.ParseIdentity(in.Kind, in.Identity)
	if err != nil {
		return domain.Account{}, err
	}
	if err := domain.ValidatePassword(in.Password); err != nil {
		return domain.Account{}, err
	}

	// 2. Check the identity is free
	taken, err := s.exists(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}
	if taken {
		return domain.Account{}, ErrAlreadyRegistered
	}

	// 3. Optionally consume the code in the same call
	if s.RequireCodeOnRegister {
		if err := s.Otp.VerifyCode(ctx, id, in.Code); err != nil {
			return domain.Account{}, err
		}
	}

	// 4. Hash and insert
	hash, err := s.Passwords.Hash(in.Password)
	if err != nil {
		return domain.Account{}, err
	}

	at := now(s.Now)
	account := domain.Account{
		ID:           idx.NewAt(at).String(),
		Identity:     id,
		DisplayName:  displayName(in.DisplayName, id),
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Active:       true,
		CreatedAt:    at,
		UpdatedAt:    at,
	}

	if err := s.Store.Accounts().CreateAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Account{}, ErrAlreadyRegistered
		}
		l.Error("failed to create account", slogx.Identity(id.Value), slog.Any("error", err))
		return domain.Account{}, storeUnavailable(err)
	}

	l.Info("account registered", slog.String("account_id", account.ID), slogx.Identity(id.Value))
	return account, nil
}

// Login checks the password for an identity and issues a session. Unknown
// identities and wrong passwords both yield ErrInvalidCredentials.
func (s *CredentialService) Login(ctx context.Context, kind domain.IdentityKind, raw, password string) (domain.Account, Session, error) {
	l := slogx.FromContext(ctx)

	// 1. Parse identity
	id, err := s.ParseIdentity(kind, raw)
	if err != nil {
		return domain.Account{}, Session{}, err
	}

	// 2. Look up account; hash anyway on a miss
	account, err := s.Store.Accounts().GetAccountByIdentity(ctx, id.Value)
	if errors.Is(err, store.ErrNotFound) {
		s.burnHash(password)
		l.Info("login failed", slogx.Identity(id.Value), slog.String("reason", "unknown_identity"))
		return domain.Account{}, Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.Account{}, Session{}, storeUnavailable(err)
	}

	// 3. Verify password
	if err := s.Passwords.Verify(password, account.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Error("stored password hash unusable", slog.String("account_id", account.ID), slog.Any("error", err))
		}
		l.Info("login failed", slogx.Identity(id.Value), slog.String("reason", "bad_password"))
		return domain.Account{}, Session{}, ErrInvalidCredentials
	}

	// 4. Account must be active
	if !account.Active {
		l.Info("login refused", slog.String("account_id", account.ID), slog.String("reason", "disabled"))
		return domain.Account{}, Session{}, ErrAccountDisabled
	}

	// 5. Upgrade legacy bcrypt hashes
	if cryptox.IsBcryptHash(account.PasswordHash) {
		s.rehash(ctx, account, password)
	}

	// 6. Issue session
	session, err := s.Sessions.Issue(account)
	if err != nil {
		return domain.Account{}, Session{}, err
	}

	l.Info("login succeeded", slog.String("account_id", account.ID))
	return account, session, nil
}

// RequestPasswordReset issues a password-reset code for a registered
// identity, or fails with ErrNotRegistered.
func (s *CredentialService) RequestPasswordReset(ctx context.Context, kind domain.IdentityKind, raw string) (OtpHandle, error) {
	id, err := s.ParseIdentity(kind, raw)
	if err != nil {
		return OtpHandle{}, err
	}

	taken, err := s.exists(ctx, id)
	if err != nil {
		return OtpHandle{}, err
	}
	if !taken {
		return OtpHandle{}, ErrNotRegistered
	}

	return s.Otp.RequestCode(ctx, id, domain.PurposePasswordReset)
}

// ResetPassword replaces the password after consuming the reset code.
func (s *CredentialService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	l := slogx.FromContext(ctx)

	// 1. Validate input
	id, err := s.ParseIdentity(in.Kind, in.Identity)
	if err != nil {
		return err
	}
	if in.NewPassword != in.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if err := domain.ValidatePassword(in.NewPassword); err != nil {
		return err
	}

	// 2. Account must exist
	account, err := s.Store.Accounts().GetAccountByIdentity(ctx, id.Value)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotRegistered
	}
	if err != nil {
		return storeUnavailable(err)
	}

	// 3. Consume the code
	if err := s.Otp.VerifyCode(ctx, id, in.Code); err != nil {
		return err
	}

	// 4. Store new hash
	if err := s.setPassword(ctx, account.ID, in.NewPassword); err != nil {
		return err
	}

	l.Info("password reset", slog.String("account_id", account.ID))
	return nil
}

// ChangePassword replaces the password of a signed-in account after checking
// the current one.
func (s *CredentialService) ChangePassword(ctx context.Context, accountID, current, next, confirm string) error {
	if next != confirm {
		return ErrPasswordMismatch
	}
	if err := domain.ValidatePassword(next); err != nil {
		return err
	}

	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotRegistered
	}
	if err != nil {
		return storeUnavailable(err)
	}
	if !account.Active {
		return ErrAccountDisabled
	}
	if err := s.Passwords.Verify(current, account.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	if err := s.setPassword(ctx, account.ID, next); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("password changed", slog.String("account_id", account.ID))
	return nil
}

// SetActive enables or disables an account and returns it.
func (s *CredentialService) SetActive(ctx context.Context, accountID string, active bool) (domain.Account, error) {
	err := s.Store.Accounts().SetActive(ctx, accountID, active, now(s.Now))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, ErrNotRegistered
	}
	if err != nil {
		return domain.Account{}, storeUnavailable(err)
	}

	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if err != nil {
		return domain.Account{}, storeUnavailable(err)
	}

	slogx.FromContext(ctx).Info("account active flag changed",
		slog.String("account_id", accountID),
		slog.Bool("active", active),
	)
	return account, nil
}

// Authenticate validates a session token and loads its account. The role in
// the returned claims is refreshed from the account.
func (s *CredentialService) Authenticate(ctx context.Context, token string) (domain.Account, jwtx.Claims, error) {
	claims, err := s.Sessions.Validate(token)
	if err != nil {
		return domain.Account{}, jwtx.Claims{}, err
	}

	account, err := s.Store.Accounts().GetAccountByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, jwtx.Claims{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.Account{}, jwtx.Claims{}, storeUnavailable(err)
	}
	if !account.Active {
		return domain.Account{}, jwtx.Claims{}, ErrAccountDisabled
	}

	claims.Role = string(account.Role)
	return account, claims, nil
}

// Authorize fails with ErrForbidden unless claims carry required.
func (s *CredentialService) Authorize(claims jwtx.Claims, required domain.Role) error {
	if !HasRole(claims, required) {
		return ErrForbidden
	}
	return nil
}

func (s *CredentialService) exists(ctx context.Context, id domain.Identity) (bool, error) {
	_, err := s.Store.Accounts().GetAccountByIdentity(ctx, id.Value)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, storeUnavailable(err)
	}
}

func (s *CredentialService) setPassword(ctx context.Context, accountID, password string) error {
	hash, err := s.Passwords.Hash(password)
	if err != nil {
		return err
	}

	err = s.Store.Accounts().UpdatePasswordHash(ctx, accountID, hash, now(s.Now))
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotRegistered
	}
	if err != nil {
		return storeUnavailable(err)
	}
	return nil
}

func (s *CredentialService) rehash(ctx context.Context, account domain.Account, password string) {
	if err := s.setPassword(ctx, account.ID, password); err != nil {
		slogx.FromContext(ctx).Warn("failed to upgrade legacy password hash",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
	}
}

// burnHash spends roughly the cost of a real verification so unknown
// identities are not distinguishable by timing.
func (s *CredentialService) burnHash(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.Passwords.Hash("Unused-dummy-0")
	})
	if s.dummyHash != "" {
		_ = s.Passwords.Verify(password, s.dummyHash)
	}
}

func displayName(raw string, id domain.Identity) string {
	name := strings.Join(strings.Fields(raw), " ")
	if name == "" {
		return slogx.MaskIdentity(id.Value)
	}
	if r := []rune(name); len(r) > MaxDisplayNameLength {
		name = string(r[:MaxDisplayNameLength])
	}
	return name
}
