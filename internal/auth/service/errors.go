package service

import (
	"errors"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
	"github.com/aussiebroadwan/admitgate/pkg/jwtx"
)

var (
	ErrInvalidFormat = domain.ErrInvalidFormat
	ErrWeakPassword  = domain.ErrWeakPassword

	ErrAlreadyRegistered  = errors.New("already_registered")
	ErrNotRegistered      = errors.New("not_registered")
	ErrPasswordMismatch   = errors.New("password_mismatch")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAccountDisabled    = errors.New("account_disabled")
	ErrForbidden          = errors.New("forbidden")

	ErrOtpNotFound         = errors.New("otp_not_found")
	ErrOtpExpired          = errors.New("otp_expired")
	ErrOtpMismatch         = errors.New("otp_mismatch")
	ErrOtpAttemptsExceeded = errors.New("otp_attempts_exceeded")

	// ErrStoreUnavailable wraps any storage failure; the cause stays
	// reachable through errors.Is/As.
	ErrStoreUnavailable = errors.New("store_unavailable")

	ErrTokenMalformed        = jwtx.ErrMalformed
	ErrTokenExpired          = jwtx.ErrExpired
	ErrTokenInvalidSignature = jwtx.ErrInvalidSig
)

func storeUnavailable(err error) error {
	return errors.Join(ErrStoreUnavailable, err)
}
