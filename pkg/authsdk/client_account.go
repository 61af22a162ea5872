package authsdk

import (
	"context"
	"net/http"
)

// Register creates an account for an identity that has completed
// VerifyCode.
func (c *SDKClient) Register(ctx context.Context, channel string, req RegisterRequest) (*AccountResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/"+channel+"/register", req, "")
	if err != nil {
		return nil, err
	}

	var account AccountResponse
	if err := decodeJSON(resp, &account, http.StatusCreated); err != nil {
		return nil, err
	}
	return &account, nil
}

// Login exchanges credentials for a Session.
func (c *SDKClient) Login(ctx context.Context, channel, identity, password string) (*Session, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/"+channel+"/login",
		LoginRequest{Identity: identity, Password: password}, "")
	if err != nil {
		return nil, err
	}

	var login LoginResponse
	if err := decodeJSON(resp, &login, http.StatusOK); err != nil {
		return nil, err
	}
	return newSession(c, &login), nil
}

// ResetPassword sets a new password using a code from RequestPasswordReset.
func (c *SDKClient) ResetPassword(ctx context.Context, channel string, req ResetPasswordRequest) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/"+channel+"/password/reset", req, "")
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
