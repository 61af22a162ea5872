package authsdk

import (
	"context"
	"net/http"
)

// CheckIdentity confirms the identity is not registered and sends it a
// registration code.
func (c *SDKClient) CheckIdentity(ctx context.Context, channel, identity string) (*OtpResponse, error) {
	return c.postOtp(ctx, "/v1/"+channel+"/check", IdentityRequest{Identity: identity})
}

// VerifyCode consumes the pending code for identity.
func (c *SDKClient) VerifyCode(ctx context.Context, channel, identity, code string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/"+channel+"/verify",
		VerifyRequest{Identity: identity, Code: code}, "")
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// ResendCode replaces the pending code for identity with a fresh one.
func (c *SDKClient) ResendCode(ctx context.Context, channel, identity, purpose string) (*OtpResponse, error) {
	return c.postOtp(ctx, "/v1/"+channel+"/resend", ResendRequest{Identity: identity, Purpose: purpose})
}

// RequestPasswordReset sends a password reset code to a registered identity.
func (c *SDKClient) RequestPasswordReset(ctx context.Context, channel, identity string) (*OtpResponse, error) {
	return c.postOtp(ctx, "/v1/"+channel+"/password/forgot", IdentityRequest{Identity: identity})
}

func (c *SDKClient) postOtp(ctx context.Context, path string, payload any) (*OtpResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, path, payload, "")
	if err != nil {
		return nil, err
	}

	var otp OtpResponse
	if err := decodeJSON(resp, &otp, http.StatusAccepted); err != nil {
		return nil, err
	}
	return &otp, nil
}
