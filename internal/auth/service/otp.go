package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
	"github.com/aussiebroadwan/admitgate/internal/auth/notify"
	"github.com/aussiebroadwan/admitgate/internal/auth/store"
	"github.com/aussiebroadwan/admitgate/pkg/cryptox"
	"github.com/aussiebroadwan/admitgate/pkg/slogx"
)

const (
	DefaultPhoneOtpTTL     = 90 * time.Second
	DefaultEmailOtpTTL     = 180 * time.Second
	DefaultDeliveryTimeout = 10 * time.Second
)

// OtpManager issues, delivers and single-use verifies numeric codes, one
// pending code per identity.
type OtpManager struct {
	Store    store.Store
	Notifier notify.Notifier
	Pepper   string // keys code fingerprints; codes are never stored in clear

	PhoneTTL time.Duration
	EmailTTL time.Duration

	// MaxAttempts > 0 discards a code after that many mismatches. Zero keeps
	// the code valid until it expires or is consumed.
	MaxAttempts int

	DeliveryTimeout time.Duration

	Now      func() time.Time
	Generate func() (string, error) // defaults to cryptox.GenerateNumericCode
}

// OtpHandle reports what happened when a code was issued. A created code is
// verifiable whether or not delivery was confirmed.
type OtpHandle struct {
	Identity    domain.Identity
	ExpiresAt   time.Time
	CodeCreated bool
	Delivered   bool
	DeliveryErr error
}

// TTL returns the code lifetime for an identity kind.
func (m *OtpManager) TTL(kind domain.IdentityKind) time.Duration {
	if kind == domain.KindEmail {
		if m.EmailTTL > 0 {
			return m.EmailTTL
		}
		return DefaultEmailOtpTTL
	}
	if m.PhoneTTL > 0 {
		return m.PhoneTTL
	}
	return DefaultPhoneOtpTTL
}

// RequestCode replaces any pending code for id with a fresh one and hands it
// to the notifier. Only a storage failure fails the call; delivery failures
// are logged and reported in the handle.
func (m *OtpManager) RequestCode(ctx context.Context, id domain.Identity, purpose domain.OtpPurpose) (OtpHandle, error) {
	l := slogx.FromContext(ctx).With(slogx.Identity(id.Value), slog.String("purpose", string(purpose)))

	// 1. Draw the code
	generate := m.Generate
	if generate == nil {
		generate = cryptox.GenerateNumericCode
	}
	code, err := generate()
	if err != nil {
		return OtpHandle{}, err
	}

	// 2. Persist it, replacing any earlier code for this identity
	// Drivers keep millisecond timestamps
	issuedAt := now(m.Now).Truncate(time.Millisecond)
	ttl := m.TTL(id.Kind)
	pending := domain.PendingOtp{
		Identity:  id,
		CodeHash:  m.fingerprint(id, code),
		ExpiresAt: issuedAt.Add(ttl),
		CreatedAt: issuedAt,
	}
	if err := m.Store.PendingOtps().UpsertOtp(ctx, pending); err != nil {
		l.Error("failed to store otp", slog.Any("error", err))
		return OtpHandle{}, storeUnavailable(err)
	}

	handle := OtpHandle{
		Identity:    id,
		ExpiresAt:   pending.ExpiresAt,
		CodeCreated: true,
	}

	// 3. Deliver; the code stays valid even if this fails
	handle.DeliveryErr = m.deliver(ctx, id, notify.Render(purpose, code, ttl))
	handle.Delivered = handle.DeliveryErr == nil
	if handle.DeliveryErr != nil {
		l.Warn("otp delivery failed", slog.Any("error", handle.DeliveryErr))
	} else {
		l.Info("otp issued", slog.Time("expires_at", pending.ExpiresAt))
	}

	return handle, nil
}

// ResendCode issues a replacement code. Semantics match RequestCode.
func (m *OtpManager) ResendCode(ctx context.Context, id domain.Identity, purpose domain.OtpPurpose) (OtpHandle, error) {
	slogx.FromContext(ctx).Debug("otp resend requested", slogx.Identity(id.Value))
	return m.RequestCode(ctx, id, purpose)
}

func (m *OtpManager) deliver(ctx context.Context, id domain.Identity, msg notify.Message) error {
	if m.Notifier == nil {
		return &notify.DeliveryError{Channel: string(id.Kind), Err: notify.ErrNoChannel}
	}

	timeout := m.DeliveryTimeout
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return m.Notifier.Send(dctx, id, msg)
}

// VerifyCode consumes the pending code for id if code matches and has not
// expired. Failures are ErrOtpNotFound, ErrOtpExpired, ErrOtpMismatch or
// ErrOtpAttemptsExceeded.
func (m *OtpManager) VerifyCode(ctx context.Context, id domain.Identity, code string) error {
	l := slogx.FromContext(ctx).With(slogx.Identity(id.Value))
	at := now(m.Now)
	otps := m.Store.PendingOtps()

	// 1. Consume atomically; only one concurrent caller can succeed
	err := otps.ConsumeOtp(ctx, id.Value, m.fingerprint(id, code), ceilMillis(at))
	if err == nil {
		l.Info("otp verified")
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		l.Error("failed to consume otp", slog.Any("error", err))
		return storeUnavailable(err)
	}

	// 2. Work out why nothing was consumed
	pending, err := otps.GetOtp(ctx, id.Value)
	if errors.Is(err, store.ErrNotFound) {
		return ErrOtpNotFound
	}
	if err != nil {
		return storeUnavailable(err)
	}
	if pending.ExpiredAt(at) {
		return ErrOtpExpired
	}

	// 3. Mismatch, optionally bounded
	if m.MaxAttempts <= 0 {
		l.Info("otp mismatch")
		return ErrOtpMismatch
	}

	attempts, err := otps.IncrementOtpAttempts(ctx, id.Value)
	if errors.Is(err, store.ErrNotFound) {
		// Consumed or replaced meanwhile
		return ErrOtpMismatch
	}
	if err != nil {
		return storeUnavailable(err)
	}
	if attempts >= m.MaxAttempts {
		if err := otps.DeleteOtp(ctx, id.Value); err != nil {
			return storeUnavailable(err)
		}
		l.Warn("otp discarded after too many attempts", slog.Int("attempts", attempts))
		return ErrOtpAttemptsExceeded
	}

	l.Info("otp mismatch", slog.Int("attempts", attempts))
	return ErrOtpMismatch
}

// ceilMillis rounds t up to the next millisecond so a millisecond-precision
// "expires_at >= now" comparison never accepts a code past its expiry.
func ceilMillis(t time.Time) time.Time {
	if c := t.Truncate(time.Millisecond); !c.Equal(t) {
		return c.Add(time.Millisecond)
	}
	return t
}

func (m *OtpManager) fingerprint(id domain.Identity, code string) string {
	return cryptox.KeyedFingerprint(m.Pepper, "otp", id.Value, code)
}
