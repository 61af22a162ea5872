package http

import (
	"net/http"

	"github.com/aussiebroadwan/admitgate/internal/auth/service"
	"github.com/aussiebroadwan/admitgate/pkg/authsdk"
	"github.com/aussiebroadwan/admitgate/pkg/httpx"
)

type AdminHandler struct {
	Credentials *service.CredentialService
}

// HandleSetActive enables or disables an account.
//
//	@Summary		Enable or disable an account
//	@Tags			Admin
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Account ID"
//	@Param			request	body		authsdk.SetActiveRequest	true	"Active flag"
//	@Success		200		{object}	authsdk.AccountResponse
//	@Failure		403		{object}	authsdk.ErrorResponse	"forbidden"
//	@Failure		404		{object}	authsdk.ErrorResponse	"not_registered"
//	@Router			/v1/admin/accounts/{id}/active [post].
func (h *AdminHandler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SetActiveRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	account, err := h.Credentials.SetActive(r.Context(), r.PathValue("id"), req.Active)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, accountResponse(account))
}
