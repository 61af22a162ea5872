package http

import (
	"net/http"

	"github.com/aussiebroadwan/admitgate/internal/auth/service"
	"github.com/aussiebroadwan/admitgate/pkg/authsdk"
	"github.com/aussiebroadwan/admitgate/pkg/httpx"
)

type SessionHandler struct {
	Credentials *service.CredentialService
}

// HandleValidate returns the claims of the presented session token.
//
//	@Summary		Validate session
//	@Tags			Session
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.SessionResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Router			/v1/session [get].
func (h *SessionHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		httpx.WriteBearerError(w, "missing bearer token")
		return
	}

	resp := authsdk.SessionResponse{
		AccountID: claims.Subject,
		Identity:  claims.Identity,
		Kind:      claims.Kind,
		Role:      claims.Role,
	}
	if claims.IssuedAt != nil {
		resp.IssuedAt = claims.IssuedAt.UTC()
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.UTC()
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleChangePassword replaces the caller's password.
//
//	@Summary		Change password
//	@Tags			Session
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.ChangePasswordRequest	true	"Current and new password"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse
//	@Failure		401	{object}	authsdk.ErrorResponse
//	@Router			/v1/account/password [post].
func (h *SessionHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ChangePasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	err := h.Credentials.ChangePassword(r.Context(), httpx.AccountIDFromContext(r.Context()),
		req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
