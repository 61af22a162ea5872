// Package redis serves pending one-time codes from Redis so short-lived
// code traffic stays off the account database. It implements
// store.PendingOtpBackend and is layered with store.WithPendingOtps.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
	"github.com/aussiebroadwan/admitgate/internal/auth/store"
	"github.com/redis/go-redis/v9"
)

// DefaultRetention keeps an expired code around long enough to answer
// "expired" rather than "not found".
const DefaultRetention = time.Hour

// Options configure the backend connection.
type Options struct {
	Addr      string
	Password  string
	DB        int
	Prefix    string        // key namespace, defaults to "admitgate:"
	Retention time.Duration // defaults to DefaultRetention
}

// Backend keeps each pending code in a hash at {prefix}otp:{identity} plus a
// sorted set of identities scored by expiry for sweeps. Scripts assume a
// standalone (non-cluster) deployment.
type Backend struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration
}

// consume deletes the code only if the hash matches and it is still fresh.
var consumeScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'code_hash', 'expires_at_ms')
if not v[1] or v[1] ~= ARGV[1] then
  return 0
end
if tonumber(v[2]) < tonumber(ARGV[2]) then
  return 0
end
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[3])
return 1
`)

var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

var sweepScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
local n = 0
for _, id in ipairs(ids) do
  n = n + redis.call('DEL', ARGV[2] .. id)
  redis.call('ZREM', KEYS[1], id)
end
return n
`)

// New connects to Redis and verifies it responds.
func New(ctx context.Context, opts Options) (*Backend, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return NewFromClient(rdb, opts.Prefix, opts.Retention), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(rdb *redis.Client, prefix string, retention time.Duration) *Backend {
	if prefix == "" {
		prefix = "admitgate:"
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Backend{rdb: rdb, prefix: prefix, retention: retention}
}

func (b *Backend) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *Backend) Close() error { return b.rdb.Close() }

func (b *Backend) otpPrefix() string          { return b.prefix + "otp:" }
func (b *Backend) key(identity string) string { return b.otpPrefix() + identity }
func (b *Backend) expiryIndex() string        { return b.prefix + "otp-expiry" }

func millis(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func (b *Backend) UpsertOtp(ctx context.Context, p domain.PendingOtp) error {
	key := b.key(p.Identity.Value)

	// Key TTL is relative so it does not depend on the caller's clock.
	ttl := p.ExpiresAt.Sub(p.CreatedAt) + b.retention
	if ttl <= 0 {
		ttl = b.retention
	}

	_, err := b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]any{
			"kind":          string(p.Identity.Kind),
			"code_hash":     p.CodeHash,
			"attempts":      0,
			"expires_at_ms": millis(p.ExpiresAt),
			"created_at_ms": millis(p.CreatedAt),
		})
		pipe.PExpire(ctx, key, ttl)
		pipe.ZAdd(ctx, b.expiryIndex(), redis.Z{
			Score:  float64(p.ExpiresAt.UnixMilli()),
			Member: p.Identity.Value,
		})
		return nil
	})
	return err
}

func (b *Backend) GetOtp(ctx context.Context, identity string) (domain.PendingOtp, error) {
	fields, err := b.rdb.HGetAll(ctx, b.key(identity)).Result()
	if err != nil {
		return domain.PendingOtp{}, err
	}
	if len(fields) == 0 {
		return domain.PendingOtp{}, store.ErrNotFound
	}

	p := domain.PendingOtp{
		Identity: domain.Identity{Kind: domain.IdentityKind(fields["kind"]), Value: identity},
		CodeHash: fields["code_hash"],
	}
	if p.Attempts, err = strconv.Atoi(fields["attempts"]); err != nil {
		return domain.PendingOtp{}, fmt.Errorf("redis: attempts: %w", err)
	}
	if p.ExpiresAt, err = parseMillis(fields["expires_at_ms"]); err != nil {
		return domain.PendingOtp{}, fmt.Errorf("redis: expires_at: %w", err)
	}
	if p.CreatedAt, err = parseMillis(fields["created_at_ms"]); err != nil {
		return domain.PendingOtp{}, fmt.Errorf("redis: created_at: %w", err)
	}
	return p, nil
}

func (b *Backend) ConsumeOtp(ctx context.Context, identity, codeHash string, now time.Time) error {
	n, err := consumeScript.Run(ctx, b.rdb,
		[]string{b.key(identity), b.expiryIndex()},
		codeHash, now.UnixMilli(), identity,
	).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (b *Backend) IncrementOtpAttempts(ctx context.Context, identity string) (int, error) {
	n, err := incrementScript.Run(ctx, b.rdb, []string{b.key(identity)}).Int()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, store.ErrNotFound
	}
	return n, nil
}

func (b *Backend) DeleteOtp(ctx context.Context, identity string) error {
	_, err := b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.key(identity))
		pipe.ZRem(ctx, b.expiryIndex(), identity)
		return nil
	})
	return err
}

func (b *Backend) DeleteExpiredOtps(ctx context.Context, before time.Time) (int64, error) {
	n, err := sweepScript.Run(ctx, b.rdb,
		[]string{b.expiryIndex()},
		before.UnixMilli(), b.otpPrefix(),
	).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
