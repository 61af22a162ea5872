package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
	"github.com/aussiebroadwan/admitgate/internal/auth/store"
	authredis "github.com/aussiebroadwan/admitgate/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/admitgate/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/admitgate/internal/auth/store/storetest"
	"github.com/aussiebroadwan/admitgate/pkg/idx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

// overlayFactory layers a namespaced Redis backend over an in-memory sqlite
// account store.
func overlayFactory(addr string) storetest.Factory {
	return func(t *testing.T) store.Store {
		ctx := context.Background()

		base, err := sqlite.NewStore(":memory:")
		require.NoError(t, err)
		require.NoError(t, base.ApplyMigrations(ctx))

		otps, err := authredis.New(ctx, authredis.Options{
			Addr:   addr,
			Prefix: "test:" + idx.New().String() + ":",
		})
		require.NoError(t, err)

		s := store.WithPendingOtps(base, otps)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}
}

func TestBackendContract(t *testing.T) {
	if testing.Short() {
		t.Skip("container test")
	}
	storetest.Run(t, overlayFactory(startRedis(t)))
}

func TestBackendKeyTTL(t *testing.T) {
	if testing.Short() {
		t.Skip("container test")
	}
	addr := startRedis(t)
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	b := authredis.NewFromClient(rdb, "ttl:", 10*time.Minute)
	t.Cleanup(func() { _ = b.Close() })

	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC) // clock far in the past
	id := domain.MustParseIdentity(domain.KindPhone, "+84901234567")
	require.NoError(t, b.UpsertOtp(ctx, domain.PendingOtp{
		Identity:  id,
		CodeHash:  "hash",
		ExpiresAt: now.Add(90 * time.Second),
		CreatedAt: now,
	}))

	ttl, err := rdb.PTTL(ctx, "ttl:otp:"+id.Value).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, 10*time.Minute)
	require.LessOrEqual(t, ttl, 10*time.Minute+90*time.Second)

	_, err = b.GetOtp(ctx, id.Value)
	require.NoError(t, err)
}
