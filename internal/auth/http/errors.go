package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/admitgate/internal/auth/service"
	"github.com/aussiebroadwan/admitgate/pkg/authsdk"
	"github.com/aussiebroadwan/admitgate/pkg/httpx"
	"github.com/aussiebroadwan/admitgate/pkg/jwtx"
	"github.com/aussiebroadwan/admitgate/pkg/slogx"
)

type errorMapping struct {
	err    error
	status int
	code   string
	desc   string
}

// Order matters: the first match wins.
var errorTable = []errorMapping{
	{service.ErrInvalidFormat, http.StatusBadRequest, authsdk.ErrorCodeInvalidFormat, "identity is not a valid phone number or email address"},
	{service.ErrWeakPassword, http.StatusBadRequest, authsdk.ErrorCodeWeakPassword, "password needs at least 6 characters with an upper case letter, a lower case letter and a digit"},
	{service.ErrPasswordMismatch, http.StatusBadRequest, authsdk.ErrorCodePasswordMismatch, "password confirmation does not match"},
	{service.ErrAlreadyRegistered, http.StatusConflict, authsdk.ErrorCodeAlreadyRegistered, "identity is already registered"},
	{service.ErrNotRegistered, http.StatusNotFound, authsdk.ErrorCodeNotRegistered, "no account for this identity"},
	{service.ErrOtpNotFound, http.StatusBadRequest, authsdk.ErrorCodeOtpNotFound, "no pending code, request a new one"},
	{service.ErrOtpExpired, http.StatusBadRequest, authsdk.ErrorCodeOtpExpired, "code has expired, request a new one"},
	{service.ErrOtpMismatch, http.StatusBadRequest, authsdk.ErrorCodeOtpMismatch, "code does not match"},
	{service.ErrOtpAttemptsExceeded, http.StatusTooManyRequests, authsdk.ErrorCodeOtpAttemptsExceeded, "too many wrong codes, request a new one"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials, "invalid identity or password"},
	{service.ErrAccountDisabled, http.StatusForbidden, authsdk.ErrorCodeAccountDisabled, "account is disabled"},
	{service.ErrForbidden, http.StatusForbidden, authsdk.ErrorCodeForbidden, "insufficient role"},
	{service.ErrStoreUnavailable, http.StatusServiceUnavailable, authsdk.ErrorCodeStoreUnavailable, "storage is temporarily unavailable"},
}

var tokenErrors = []error{
	jwtx.ErrMalformed,
	jwtx.ErrAlgMismatch,
	jwtx.ErrInvalidSig,
	jwtx.ErrIssuer,
	jwtx.ErrExpired,
	jwtx.ErrNotYetValid,
	jwtx.ErrInvalidClaim,
}

// writeServiceError maps a service error onto a JSON error response.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	l := slogx.FromContext(r.Context())

	for _, tokenErr := range tokenErrors {
		if errors.Is(err, tokenErr) {
			httpx.WriteBearerError(w, tokenErr.Error())
			return
		}
	}

	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				l.Error("request failed", slog.Any("error", err))
			}
			httpx.WriteError(w, m.status, m.code, m.desc)
			return
		}
	}

	l.Error("unhandled error", slog.Any("error", err))
	httpx.WriteError(w, http.StatusInternalServerError, authsdk.ErrorCodeServerError, "internal server error")
}

// writeAuthError renders a bearer authentication failure. Disabled accounts
// and storage faults keep their own status; everything else is invalid_token.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrStoreUnavailable) || errors.Is(err, service.ErrAccountDisabled) {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteBearerError(w, "token verification failed")
}

func writeBadRequest(w http.ResponseWriter, err error) {
	httpx.WriteError(w, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, err.Error())
}
