package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	ErrorCodeInvalidRequest      = "invalid_request"
	ErrorCodeInvalidFormat       = "invalid_format"
	ErrorCodeWeakPassword        = "weak_password"
	ErrorCodePasswordMismatch    = "password_mismatch"
	ErrorCodeAlreadyRegistered   = "already_registered"
	ErrorCodeNotRegistered       = "not_registered"
	ErrorCodeOtpNotFound         = "otp_not_found"
	ErrorCodeOtpExpired          = "otp_expired"
	ErrorCodeOtpMismatch         = "otp_mismatch"
	ErrorCodeOtpAttemptsExceeded = "otp_attempts_exceeded"
	ErrorCodeInvalidCredentials  = "invalid_credentials"
	ErrorCodeAccountDisabled     = "account_disabled"
	ErrorCodeInvalidToken        = "invalid_token"
	ErrorCodeForbidden           = "forbidden"
	ErrorCodeRateLimited         = "rate_limited"
	ErrorCodeStoreUnavailable    = "store_unavailable"
	ErrorCodeServerError         = "server_error"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches on error code, so errors.Is(err, ErrOtpExpired) holds for any
// response carrying "otp_expired".
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidRequest      = &APIError{Code: ErrorCodeInvalidRequest}
	ErrInvalidFormat       = &APIError{Code: ErrorCodeInvalidFormat}
	ErrWeakPassword        = &APIError{Code: ErrorCodeWeakPassword}
	ErrPasswordMismatch    = &APIError{Code: ErrorCodePasswordMismatch}
	ErrAlreadyRegistered   = &APIError{Code: ErrorCodeAlreadyRegistered}
	ErrNotRegistered       = &APIError{Code: ErrorCodeNotRegistered}
	ErrOtpNotFound         = &APIError{Code: ErrorCodeOtpNotFound}
	ErrOtpExpired          = &APIError{Code: ErrorCodeOtpExpired}
	ErrOtpMismatch         = &APIError{Code: ErrorCodeOtpMismatch}
	ErrOtpAttemptsExceeded = &APIError{Code: ErrorCodeOtpAttemptsExceeded}
	ErrInvalidCredentials  = &APIError{Code: ErrorCodeInvalidCredentials}
	ErrAccountDisabled     = &APIError{Code: ErrorCodeAccountDisabled}
	ErrInvalidToken        = &APIError{Code: ErrorCodeInvalidToken}
	ErrForbidden           = &APIError{Code: ErrorCodeForbidden}
	ErrRateLimited         = &APIError{Code: ErrorCodeRateLimited}
	ErrStoreUnavailable    = &APIError{Code: ErrorCodeStoreUnavailable}
	ErrServerError         = &APIError{Code: ErrorCodeServerError}
)

// parseErrorResponse turns a non-2xx response into an *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	// Fallback: create generic error from status code
	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
