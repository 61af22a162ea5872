package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
	"github.com/aussiebroadwan/admitgate/internal/auth/service"
	"github.com/aussiebroadwan/admitgate/pkg/authsdk"
	"github.com/aussiebroadwan/admitgate/pkg/httpx"
)

// IdentityHandler serves the code and account flows of one channel.
type IdentityHandler struct {
	Kind        domain.IdentityKind
	Credentials *service.CredentialService
}

func (h *IdentityHandler) otpResponse(handle service.OtpHandle) authsdk.OtpResponse {
	return authsdk.OtpResponse{
		Identity:  handle.Identity.Value,
		ExpiresAt: handle.ExpiresAt,
		ExpiresIn: int(h.Credentials.Otp.TTL(h.Kind) / time.Second),
		Delivered: handle.Delivered,
	}
}

// HandleCheck starts registration for an unregistered identity.
//
//	@Summary		Check identity and send a registration code
//	@Description	Fails with already_registered if an account holds the identity. Otherwise a six-digit code is created and handed to the notifier; the code is valid even when delivered is false.
//	@Tags			Identity
//	@Accept			json
//	@Produce		json
//	@Param			channel	path		string					true	"phone or email"
//	@Param			request	body		authsdk.IdentityRequest	true	"Identity"
//	@Success		202		{object}	authsdk.OtpResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_format"
//	@Failure		409		{object}	authsdk.ErrorResponse	"already_registered"
//	@Failure		503		{object}	authsdk.ErrorResponse	"store_unavailable"
//	@Router			/v1/{channel}/check [post].
func (h *IdentityHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	var req authsdk.IdentityRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	handle, err := h.Credentials.CheckIdentityAvailable(r.Context(), h.Kind, req.Identity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, h.otpResponse(handle))
}

// HandleVerify consumes a pending code.
//
//	@Summary		Verify a code
//	@Description	Consumes the pending code for the identity. A code can be used once.
//	@Tags			Identity
//	@Accept			json
//	@Param			channel	path	string					true	"phone or email"
//	@Param			request	body	authsdk.VerifyRequest	true	"Identity and code"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse	"otp_not_found, otp_expired or otp_mismatch"
//	@Failure		429	{object}	authsdk.ErrorResponse	"otp_attempts_exceeded"
//	@Router			/v1/{channel}/verify [post].
func (h *IdentityHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	if err := h.Credentials.VerifyCode(r.Context(), h.Kind, req.Identity, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleResend replaces the pending code.
//
//	@Summary		Resend a code
//	@Description	Replaces any pending code for the identity with a new one.
//	@Tags			Identity
//	@Accept			json
//	@Produce		json
//	@Param			channel	path		string					true	"phone or email"
//	@Param			request	body		authsdk.ResendRequest	true	"Identity and optional purpose"
//	@Success		202		{object}	authsdk.OtpResponse
//	@Failure		400		{object}	authsdk.ErrorResponse
//	@Router			/v1/{channel}/resend [post].
func (h *IdentityHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResendRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	purpose := domain.OtpPurpose(req.Purpose)
	switch purpose {
	case "", domain.PurposeRegistration, domain.PurposePasswordReset, domain.PurposeVerification:
	default:
		httpx.WriteError(w, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "unknown purpose")
		return
	}

	handle, err := h.Credentials.ResendCode(r.Context(), h.Kind, req.Identity, purpose)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, h.otpResponse(handle))
}

// HandleRegister creates an account.
//
//	@Summary		Register an account
//	@Description	Creates an account for an identity whose code was accepted by the verify endpoint.
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Param			channel	path		string					true	"phone or email"
//	@Param			request	body		authsdk.RegisterRequest	true	"Registration"
//	@Success		201		{object}	authsdk.AccountResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_format or weak_password"
//	@Failure		409		{object}	authsdk.ErrorResponse	"already_registered"
//	@Router			/v1/{channel}/register [post].
func (h *IdentityHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	account, err := h.Credentials.Register(r.Context(), service.RegisterInput{
		Kind:        h.Kind,
		Identity:    req.Identity,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		Code:        req.Code,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, accountResponse(account))
}

// HandleLogin issues a session token.
//
//	@Summary		Log in
//	@Description	Exchanges identity and password for a 24 hour session token. Unknown identities and wrong passwords both return invalid_credentials.
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Param			channel	path		string				true	"phone or email"
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.LoginResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"invalid_credentials"
//	@Failure		403		{object}	authsdk.ErrorResponse	"account_disabled"
//	@Router			/v1/{channel}/login [post].
func (h *IdentityHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	account, session, err := h.Credentials.Login(r.Context(), h.Kind, req.Identity, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
		AccessToken: session.Token,
		TokenType:   "Bearer",
		ExpiresIn:   int(session.ExpiresAt.Sub(session.IssuedAt) / time.Second),
		ExpiresAt:   session.ExpiresAt,
		Account:     accountResponse(account),
	})
}

// HandleForgot sends a password reset code.
//
//	@Summary		Request a password reset code
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Param			channel	path		string					true	"phone or email"
//	@Param			request	body		authsdk.IdentityRequest	true	"Identity"
//	@Success		202		{object}	authsdk.OtpResponse
//	@Failure		404		{object}	authsdk.ErrorResponse	"not_registered"
//	@Router			/v1/{channel}/password/forgot [post].
func (h *IdentityHandler) HandleForgot(w http.ResponseWriter, r *http.Request) {
	var req authsdk.IdentityRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	handle, err := h.Credentials.RequestPasswordReset(r.Context(), h.Kind, req.Identity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, h.otpResponse(handle))
}

// HandleReset sets a new password with a reset code.
//
//	@Summary		Reset password
//	@Tags			Account
//	@Accept			json
//	@Param			channel	path	string							true	"phone or email"
//	@Param			request	body	authsdk.ResetPasswordRequest	true	"Code and new password"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse	"password_mismatch, weak_password or otp errors"
//	@Failure		404	{object}	authsdk.ErrorResponse	"not_registered"
//	@Router			/v1/{channel}/password/reset [post].
func (h *IdentityHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	err := h.Credentials.ResetPassword(r.Context(), service.ResetPasswordInput{
		Kind:            h.Kind,
		Identity:        req.Identity,
		Code:            req.Code,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func accountResponse(a domain.Account) authsdk.AccountResponse {
	return authsdk.AccountResponse{
		ID:          a.ID,
		Identity:    a.Identity.Value,
		Kind:        string(a.Identity.Kind),
		DisplayName: a.DisplayName,
		Role:        string(a.Role),
		Active:      a.Active,
		CreatedAt:   a.CreatedAt,
	}
}
