package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
	"github.com/aussiebroadwan/admitgate/internal/auth/notify"
	"github.com/aussiebroadwan/admitgate/internal/auth/service"
	"github.com/aussiebroadwan/admitgate/internal/auth/store"
	"github.com/aussiebroadwan/admitgate/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/admitgate/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock { return &fakeClock{t: baseTime} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	Store    store.Store
	Clock    *fakeClock
	Notifier *notify.Recorder
	Otp      *service.OtpManager
	Sessions *service.SessionIssuer
	Creds    *service.CredentialService
}

func newStore(t *testing.T) store.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations(context.Background()))
	return s
}

// staleAccountsStore reports every identity as unregistered, as a reader
// racing a concurrent insert would see it.
type staleAccountsStore struct{ store.Store }

func (s staleAccountsStore) Accounts() store.Accounts { return staleAccounts{s.Store.Accounts()} }

type staleAccounts struct{ store.Accounts }

func (staleAccounts) GetAccountByIdentity(context.Context, string) (domain.Account, error) {
	return domain.Account{}, store.ErrNotFound
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		Store:    newStore(t),
		Clock:    newClock(),
		Notifier: &notify.Recorder{},
	}

	h.Otp = &service.OtpManager{
		Store:    h.Store,
		Notifier: h.Notifier,
		Pepper:   "test-pepper",
		PhoneTTL: 90 * time.Second,
		EmailTTL: 180 * time.Second,
		Now:      h.Clock.Now,
	}

	sessions, err := service.NewSessionIssuer([]byte(testSecret), "admitgate-test", 24*time.Hour, h.Clock.Now)
	require.NoError(t, err)
	h.Sessions = sessions

	h.Creds = &service.CredentialService{
		Store:     h.Store,
		Otp:       h.Otp,
		Sessions:  h.Sessions,
		Passwords: cryptox.NewPasswordHasher("test-pepper"),
		Now:       h.Clock.Now,
	}
	return h
}

// lastCode returns the most recent code delivered to identity.
func (h *harness) lastCode(t *testing.T, identity string) string {
	t.Helper()

	sent, ok := h.Notifier.Last(identity)
	require.True(t, ok, "no message sent to %s", identity)
	return sent.Message.Code
}

func fixedCode(code string) func() (string, error) {
	return func() (string, error) { return code, nil }
}
