package authsdk

import (
	"context"
	"net/http"
	"time"
)

// Session holds a session token. Sessions are not refreshed; log in again
// once ExpiresAt has passed.
type Session struct {
	client    *SDKClient
	token     string
	expiresAt time.Time
	account   AccountResponse
}

func newSession(client *SDKClient, login *LoginResponse) *Session {
	return &Session{
		client:    client,
		token:     login.AccessToken,
		expiresAt: login.ExpiresAt,
		account:   login.Account,
	}
}

// Token returns the raw bearer token.
func (s *Session) Token() string { return s.token }

// ExpiresAt returns when the token stops being accepted.
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// Account returns the account returned at login. Empty for sessions built
// with NewSessionFromToken.
func (s *Session) Account() AccountResponse { return s.account }

// Expired reports whether the token is past its expiry.
func (s *Session) Expired() bool {
	return !s.expiresAt.IsZero() && time.Now().After(s.expiresAt)
}

// Validate asks the service to check the token and returns its claims.
func (s *Session) Validate(ctx context.Context) (*SessionResponse, error) {
	resp, err := s.client.doRequest(ctx, http.MethodGet, "/v1/session", nil, s.token)
	if err != nil {
		return nil, err
	}

	var info SessionResponse
	if err := decodeJSON(resp, &info, http.StatusOK); err != nil {
		return nil, err
	}
	return &info, nil
}

// ChangePassword replaces the signed-in account's password.
func (s *Session) ChangePassword(ctx context.Context, current, next, confirm string) error {
	resp, err := s.client.doRequest(ctx, http.MethodPost, "/v1/account/password", ChangePasswordRequest{
		CurrentPassword: current,
		NewPassword:     next,
		ConfirmPassword: confirm,
	}, s.token)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// SetAccountActive enables or disables another account. Requires the admin
// role.
func (s *Session) SetAccountActive(ctx context.Context, accountID string, active bool) (*AccountResponse, error) {
	resp, err := s.client.doRequest(ctx, http.MethodPost, "/v1/admin/accounts/"+accountID+"/active",
		SetActiveRequest{Active: active}, s.token)
	if err != nil {
		return nil, err
	}

	var account AccountResponse
	if err := decodeJSON(resp, &account, http.StatusOK); err != nil {
		return nil, err
	}
	return &account, nil
}
