package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
	"github.com/aussiebroadwan/admitgate/internal/auth/notify"
	"github.com/aussiebroadwan/admitgate/internal/auth/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	phone = domain.MustParseIdentity(domain.KindPhone, "+84901234567")
	email = domain.MustParseIdentity(domain.KindEmail, "user@example.com")
)

func TestRequestCode_IssuesAndDelivers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	handle, err := h.Otp.RequestCode(ctx, phone, domain.PurposeRegistration)
	require.NoError(t, err)

	assert.True(t, handle.CodeCreated)
	assert.True(t, handle.Delivered)
	assert.NoError(t, handle.DeliveryErr)
	assert.Equal(t, baseTime.Add(90*time.Second), handle.ExpiresAt)

	code := h.lastCode(t, phone.Value)
	assert.Regexp(t, `^[1-9]\d{5}$`, code)

	// Stored value is a fingerprint, never the code
	pending, err := h.Store.PendingOtps().GetOtp(ctx, phone.Value)
	require.NoError(t, err)
	assert.NotContains(t, pending.CodeHash, code)
}

func TestRequestCode_TTLPerKind(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ph, err := h.Otp.RequestCode(ctx, phone, domain.PurposeVerification)
	require.NoError(t, err)
	em, err := h.Otp.RequestCode(ctx, email, domain.PurposeVerification)
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, ph.ExpiresAt.Sub(baseTime))
	assert.Equal(t, 180*time.Second, em.ExpiresAt.Sub(baseTime))
}

func TestRequestCode_DeliveryFailureStillCreatesCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.Notifier.Err = errors.New("gateway down")

	handle, err := h.Otp.RequestCode(ctx, phone, domain.PurposeRegistration)
	require.NoError(t, err)
	assert.True(t, handle.CodeCreated)
	assert.False(t, handle.Delivered)
	assert.Error(t, handle.DeliveryErr)

	// The code is still verifiable
	require.NoError(t, h.Otp.VerifyCode(ctx, phone, h.lastCode(t, phone.Value)))
}

func TestRequestCode_NoNotifier(t *testing.T) {
	h := newHarness(t)
	h.Otp.Notifier = nil

	handle, err := h.Otp.RequestCode(context.Background(), email, domain.PurposeRegistration)
	require.NoError(t, err)
	assert.True(t, handle.CodeCreated)
	assert.ErrorIs(t, handle.DeliveryErr, notify.ErrNoChannel)
}

func TestVerifyCode_SingleUse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.Otp.RequestCode(ctx, email, domain.PurposeRegistration)
	require.NoError(t, err)
	code := h.lastCode(t, email.Value)

	require.NoError(t, h.Otp.VerifyCode(ctx, email, code))
	assert.ErrorIs(t, h.Otp.VerifyCode(ctx, email, code), service.ErrOtpNotFound)
}

func TestVerifyCode_NothingPending(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.Otp.VerifyCode(context.Background(), phone, "123456"), service.ErrOtpNotFound)
}

func TestVerifyCode_Mismatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.Otp.Generate = fixedCode("482913")

	_, err := h.Otp.RequestCode(ctx, phone, domain.PurposeRegistration)
	require.NoError(t, err)

	assert.ErrorIs(t, h.Otp.VerifyCode(ctx, phone, "000000"), service.ErrOtpMismatch)
	// Unlimited attempts by default; the real code still works
	assert.ErrorIs(t, h.Otp.VerifyCode(ctx, phone, "111111"), service.ErrOtpMismatch)
	require.NoError(t, h.Otp.VerifyCode(ctx, phone, "482913"))
}

func TestVerifyCode_ExpiredAfterPhoneTTL(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.Otp.Generate = fixedCode("482913")

	_, err := h.Otp.RequestCode(ctx, phone, domain.PurposeRegistration)
	require.NoError(t, err)

	h.Clock.Advance(91 * time.Second)
	assert.ErrorIs(t, h.Otp.VerifyCode(ctx, phone, "482913"), service.ErrOtpExpired)
}

func TestVerifyCode_ValidAtExactExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.Otp.Generate = fixedCode("482913")

	_, err := h.Otp.RequestCode(ctx, phone, domain.PurposeRegistration)
	require.NoError(t, err)

	h.Clock.Advance(90 * time.Second)
	require.NoError(t, h.Otp.VerifyCode(ctx, phone, "482913"))
}

func TestVerifyCode_SubMillisecondExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.Otp.Generate = fixedCode("482913")

	// Issued part way through a millisecond
	h.Clock.Advance(400 * time.Microsecond)
	handle, err := h.Otp.RequestCode(ctx, phone, domain.PurposeRegistration)
	require.NoError(t, err)
	assert.Equal(t, baseTime.Add(90*time.Second), handle.ExpiresAt)

	// Just under a millisecond past expiry
	h.Clock.Advance(90*time.Second + 200*time.Microsecond)
	assert.ErrorIs(t, h.Otp.VerifyCode(ctx, phone, "482913"), service.ErrOtpExpired)
}

func TestVerifyCode_ValidJustBeforeExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.Otp.Generate = fixedCode("482913")

	_, err := h.Otp.RequestCode(ctx, phone, domain.PurposeRegistration)
	require.NoError(t, err)

	h.Clock.Advance(90*time.Second - 300*time.Microsecond)
	require.NoError(t, h.Otp.VerifyCode(ctx, phone, "482913"))
}

func TestVerifyCode_ExpiredWinsOverMismatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.Otp.Generate = fixedCode("482913")

	_, err := h.Otp.RequestCode(ctx, email, domain.PurposeRegistration)
	require.NoError(t, err)

	h.Clock.Advance(181 * time.Second)
	assert.ErrorIs(t, h.Otp.VerifyCode(ctx, email, "000000"), service.ErrOtpExpired)
}

func TestResendCode_ReplacesEarlierCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.Otp.Generate = fixedCode("111111")
	_, err := h.Otp.RequestCode(ctx, phone, domain.PurposeRegistration)
	require.NoError(t, err)

	h.Clock.Advance(30 * time.Second)
	h.Otp.Generate = fixedCode("222222")
	handle, err := h.Otp.ResendCode(ctx, phone, domain.PurposeRegistration)
	require.NoError(t, err)
	assert.Equal(t, h.Clock.Now().Add(90*time.Second), handle.ExpiresAt)

	assert.ErrorIs(t, h.Otp.VerifyCode(ctx, phone, "111111"), service.ErrOtpMismatch)
	require.NoError(t, h.Otp.VerifyCode(ctx, phone, "222222"))
}

func TestVerifyCode_ConcurrentExactlyOneSucceeds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.Otp.Generate = fixedCode("482913")

	_, err := h.Otp.RequestCode(ctx, phone, domain.PurposeRegistration)
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		notFound  atomic.Int32
		start     = make(chan struct{})
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := h.Otp.VerifyCode(ctx, phone, "482913")
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, service.ErrOtpNotFound):
				notFound.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(workers-1), notFound.Load())
}

func TestVerifyCode_MaxAttempts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.Otp.MaxAttempts = 3
	h.Otp.Generate = fixedCode("482913")

	_, err := h.Otp.RequestCode(ctx, phone, domain.PurposeRegistration)
	require.NoError(t, err)

	assert.ErrorIs(t, h.Otp.VerifyCode(ctx, phone, "000001"), service.ErrOtpMismatch)
	assert.ErrorIs(t, h.Otp.VerifyCode(ctx, phone, "000002"), service.ErrOtpMismatch)
	assert.ErrorIs(t, h.Otp.VerifyCode(ctx, phone, "000003"), service.ErrOtpAttemptsExceeded)

	// Code is gone
	assert.ErrorIs(t, h.Otp.VerifyCode(ctx, phone, "482913"), service.ErrOtpNotFound)
}

func TestRequestCode_ResetsAttempts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.Otp.MaxAttempts = 2
	h.Otp.Generate = fixedCode("482913")

	_, err := h.Otp.RequestCode(ctx, phone, domain.PurposeRegistration)
	require.NoError(t, err)
	assert.ErrorIs(t, h.Otp.VerifyCode(ctx, phone, "000001"), service.ErrOtpMismatch)

	_, err = h.Otp.ResendCode(ctx, phone, domain.PurposeRegistration)
	require.NoError(t, err)
	assert.ErrorIs(t, h.Otp.VerifyCode(ctx, phone, "000001"), service.ErrOtpMismatch)
	require.NoError(t, h.Otp.VerifyCode(ctx, phone, "482913"))
}

func TestRequestCode_StoreFailure(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.Store.Close())

	_, err := h.Otp.RequestCode(context.Background(), phone, domain.PurposeRegistration)
	assert.ErrorIs(t, err, service.ErrStoreUnavailable)
	assert.Equal(t, 0, h.Notifier.Count())
}
