/*
Package authsdk provides a client SDK for the admitgate identity service.

# Overview

The service verifies that a caller controls a phone number or email address
with a six-digit one-time code, registers password accounts for verified
identities and issues 24 hour session tokens on login.

Every identity flow is addressed by channel:

	authsdk.ChannelPhone // "phone"
	authsdk.ChannelEmail // "email"

# SDKClient vs Session

  - SDKClient: unauthenticated flows (check, verify, resend, register, login,
    password reset) and health probes
  - Session: operations that need a bearer token

Registration:

	client := authsdk.NewSDKClient("https://auth.example.com")

	otp, err := client.CheckIdentity(ctx, authsdk.ChannelEmail, "user@example.com")
	// ... user reads the code ...
	err = client.VerifyCode(ctx, authsdk.ChannelEmail, "user@example.com", code)
	account, err := client.Register(ctx, authsdk.ChannelEmail, authsdk.RegisterRequest{
		Identity:    "user@example.com",
		DisplayName: "User",
		Password:    "Passw0rd",
		Code:        code,
	})

Login and session use:

	session, err := client.Login(ctx, authsdk.ChannelEmail, "user@example.com", "Passw0rd")
	info, err := session.Validate(ctx)

# Errors

Non-2xx responses are returned as *APIError. Sentinels compare by error code,
so errors.Is works across the wire:

	if errors.Is(err, authsdk.ErrOtpExpired) {
		otp, err = client.ResendCode(ctx, authsdk.ChannelPhone, phone, "")
	}
*/
package authsdk
