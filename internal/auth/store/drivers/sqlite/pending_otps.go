package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
)

type pendingOtpsRepo struct {
	db *sql.DB
}

func (r *pendingOtpsRepo) UpsertOtp(ctx context.Context, p domain.PendingOtp) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO pending_otps (identity, kind, code_hash, attempts, expires_at_ms, created_at_ms)
VALUES (?, ?, ?, 0, ?, ?)
ON CONFLICT (identity) DO UPDATE SET
    kind          = excluded.kind,
    code_hash     = excluded.code_hash,
    attempts      = 0,
    expires_at_ms = excluded.expires_at_ms,
    created_at_ms = excluded.created_at_ms`,
		p.Identity.Value,
		string(p.Identity.Kind),
		p.CodeHash,
		toMillis(p.ExpiresAt),
		toMillis(p.CreatedAt),
	)
	return err
}

func (r *pendingOtpsRepo) GetOtp(ctx context.Context, identity string) (domain.PendingOtp, error) {
	var (
		p                domain.PendingOtp
		kind             string
		expires, created int64
	)
	err := r.db.QueryRowContext(ctx, `
SELECT identity, kind, code_hash, attempts, expires_at_ms, created_at_ms
FROM pending_otps WHERE identity = ?`, identity,
	).Scan(&p.Identity.Value, &kind, &p.CodeHash, &p.Attempts, &expires, &created)
	if err != nil {
		return domain.PendingOtp{}, mapNotFound(err)
	}

	p.Identity.Kind = domain.IdentityKind(kind)
	p.ExpiresAt = fromMillis(expires)
	p.CreatedAt = fromMillis(created)
	return p, nil
}

func (r *pendingOtpsRepo) ConsumeOtp(ctx context.Context, identity, codeHash string, now time.Time) error {
	// Single statement: match, freshness and removal happen atomically.
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_otps WHERE identity = ? AND code_hash = ? AND expires_at_ms >= ?`,
		identity, codeHash, toMillis(now),
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *pendingOtpsRepo) IncrementOtpAttempts(ctx context.Context, identity string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx,
		`UPDATE pending_otps SET attempts = attempts + 1 WHERE identity = ? RETURNING attempts`,
		identity,
	).Scan(&attempts)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return attempts, nil
}

func (r *pendingOtpsRepo) DeleteOtp(ctx context.Context, identity string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_otps WHERE identity = ?`, identity)
	return err
}

func (r *pendingOtpsRepo) DeleteExpiredOtps(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_otps WHERE expires_at_ms < ?`, toMillis(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
