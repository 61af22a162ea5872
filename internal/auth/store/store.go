package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, mongo)
// implement this and expose sub-repositories to keep concerns tidy and
// testable.
//
// Every mutation the services rely on for correctness is a single atomic
// statement in each driver (upsert, conditional delete, unique insert), so
// there is no transaction surface.
type Store interface {
	Accounts() Accounts
	PendingOtps() PendingOtps

	// ApplyMigrations brings the schema (tables, indexes) up to date.
	ApplyMigrations(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type Accounts interface {
	// GetAccountByID returns an account by its ULID.
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetAccountByIdentity looks up the account keyed by a canonical phone
	// number or email address.
	GetAccountByIdentity(ctx context.Context, identity string) (domain.Account, error)

	// CreateAccount inserts a new account. Returns ErrAlreadyExists when the
	// identity (or id) is already taken.
	CreateAccount(ctx context.Context, a domain.Account) error

	// UpdatePasswordHash replaces the password hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error

	// SetActive toggles the active flag and bumps updated_at.
	SetActive(ctx context.Context, id string, active bool, now time.Time) error
}

type PendingOtps interface {
	// UpsertOtp stores p as the only pending code for its identity, replacing
	// any earlier one and resetting its attempt counter.
	UpsertOtp(ctx context.Context, p domain.PendingOtp) error

	// GetOtp returns the pending code for identity, expired or not.
	GetOtp(ctx context.Context, identity string) (domain.PendingOtp, error)

	// ConsumeOtp atomically deletes the pending code for identity if its
	// hash equals codeHash and it has not expired at now. Returns ErrNotFound
	// when nothing was deleted, so at most one concurrent caller succeeds.
	ConsumeOtp(ctx context.Context, identity, codeHash string, now time.Time) error

	// IncrementOtpAttempts bumps the failed attempt counter and returns the
	// new value.
	IncrementOtpAttempts(ctx context.Context, identity string) (int, error)

	// DeleteOtp removes the pending code for identity, if any.
	DeleteOtp(ctx context.Context, identity string) error

	// DeleteExpiredOtps garbage collects codes that expired before the given
	// time and returns how many were removed.
	DeleteExpiredOtps(ctx context.Context, before time.Time) (int64, error)
}

// PendingOtpBackend is a standalone pending-code store that can be layered
// over a Store with WithPendingOtps.
type PendingOtpBackend interface {
	PendingOtps
	Ping(ctx context.Context) error
	Close() error
}

type overlay struct {
	Store
	otps PendingOtpBackend
}

// WithPendingOtps returns a Store that keeps accounts in base but serves
// pending codes from otps. Ping and Close fan out to both.
func WithPendingOtps(base Store, otps PendingOtpBackend) Store {
	return &overlay{Store: base, otps: otps}
}

func (o *overlay) PendingOtps() PendingOtps { return o.otps }

func (o *overlay) Ping(ctx context.Context) error {
	if err := o.Store.Ping(ctx); err != nil {
		return err
	}
	return o.otps.Ping(ctx)
}

func (o *overlay) Close() error {
	return errors.Join(o.otps.Close(), o.Store.Close())
}
