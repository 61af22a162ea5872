package authsdk

import "time"

const (
	ChannelPhone = "phone"
	ChannelEmail = "email"
)

// ============================================================================
// Requests
// ============================================================================

// IdentityRequest carries a phone number or email address. National phone
// numbers are accepted and normalised to E.164.
type IdentityRequest struct {
	Identity string `json:"identity"`
}

type VerifyRequest struct {
	Identity string `json:"identity"`
	Code     string `json:"code"`
}

type ResendRequest struct {
	Identity string `json:"identity"`

	// Purpose shapes the delivered message: "registration",
	// "password_reset" or "verification" (default)
	Purpose string `json:"purpose,omitempty"`
}

type RegisterRequest struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"display_name,omitempty"`
	Password    string `json:"password"`

	// Code is the code previously accepted by the verify endpoint. It is only
	// checked when the server runs with REGISTER_REQUIRE_CODE.
	Code string `json:"code,omitempty"`
}

type LoginRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

type ResetPasswordRequest struct {
	Identity        string `json:"identity"`
	Code            string `json:"code"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type SetActiveRequest struct {
	Active bool `json:"active"`
}

// ============================================================================
// Responses
// ============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// OtpResponse describes an issued code. A code is always created when this
// is returned; Delivered reports whether the notifier confirmed sending it.
type OtpResponse struct {
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int       `json:"expires_in"`
	Delivered bool      `json:"delivered"`
}

type AccountResponse struct {
	ID          string    `json:"id"`
	Identity    string    `json:"identity"`
	Kind        string    `json:"kind"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// LoginResponse carries the session token.
type LoginResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   int             `json:"expires_in"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Account     AccountResponse `json:"account"`
}

// SessionResponse is the validated view of a session token.
type SessionResponse struct {
	AccountID string    `json:"account_id"`
	Identity  string    `json:"identity"`
	Kind      string    `json:"kind"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports each dependency checked by /readyz.
type HealthChecks struct {
	Store string `json:"store"`
}
