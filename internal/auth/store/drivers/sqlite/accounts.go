package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
)

type accountsRepo struct {
	db *sql.DB
}

const selectAccount = `
SELECT id, identity, kind, display_name, password_hash, role, active, created_at_ms, updated_at_ms
FROM accounts`

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx, selectAccount+` WHERE id = ?`, id)
	return scanAccount(row)
}

func (r *accountsRepo) GetAccountByIdentity(ctx context.Context, identity string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx, selectAccount+` WHERE identity = ?`, identity)
	return scanAccount(row)
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO accounts (id, identity, kind, display_name, password_hash, role, active, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.Identity.Value,
		string(a.Identity.Kind),
		a.DisplayName,
		a.PasswordHash,
		string(a.Role),
		a.Active,
		toMillis(a.CreatedAt),
		toMillis(a.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *accountsRepo) UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ?, updated_at_ms = ? WHERE id = ?`,
		hash, toMillis(now), id,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *accountsRepo) SetActive(ctx context.Context, id string, active bool, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET active = ?, updated_at_ms = ? WHERE id = ?`,
		active, toMillis(now), id,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func scanAccount(row *sql.Row) (domain.Account, error) {
	var (
		a                domain.Account
		kind, role       string
		created, updated int64
	)
	err := row.Scan(
		&a.ID,
		&a.Identity.Value,
		&kind,
		&a.DisplayName,
		&a.PasswordHash,
		&role,
		&a.Active,
		&created,
		&updated,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	a.Identity.Kind = domain.IdentityKind(kind)
	a.Role = domain.ParseRole(role)
	a.CreatedAt = fromMillis(created)
	a.UpdatedAt = fromMillis(updated)
	return a, nil
}
