package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/onboard/internal/onboard/service"
	"github.com/aussiebroadwan/onboard/pkg/httpx"
	"github.com/aussiebroadwan/onboard/pkg/onboardsdk"
)

type InvitationsHandler struct {
	Orchestrator *service.Orchestrator
}

// HandleAccept godoc
//
//	@Summary		Accept Invitation
//	@Description	Redeems the emailed token, sets the username and password and activates the account.
//	@Description	A token works once.
//	@Tags			Invitations
//	@Accept			json
//	@Produce		json
//	@Param			request	body		onboardsdk.AcceptInvitationRequest	true	"token, username, password"
//	@Success		200		{object}	onboardsdk.UserResponse
//	@Failure		400		{object}	onboardsdk.ErrorResponse	"expired, already used or invalid input"
//	@Failure		404		{object}	onboardsdk.ErrorResponse	"unknown token"
//	@Failure		409		{object}	onboardsdk.ErrorResponse	"username taken"
//	@Failure		429		{object}	onboardsdk.ErrorResponse
//	@Router			/invitations/accept [post].
func (h *InvitationsHandler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	var req onboardsdk.AcceptInvitationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	switch {
	case strings.TrimSpace(req.Token) == "":
		writeBadRequest(w, "token is required")
		return
	case strings.TrimSpace(req.Username) == "":
		writeBadRequest(w, "username is required")
		return
	case req.Password == "":
		writeBadRequest(w, "password is required")
		return
	}

	u, err := h.Orchestrator.AcceptInvitation(r.Context(), service.AcceptRequest{
		Token:    strings.TrimSpace(req.Token),
		FullName: req.FullName,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, r, err, "accept invitation")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

// HandleResend godoc
//
//	@Summary		Resend Invitation
//	@Description	Rotates the token of a pending or failed invitation and emails the new link.
//	@Description	The previous link stops working.
//	@Tags			Invitations
//	@Produce		json
//	@Security		BasicAuth
//	@Param			id	path		string	true	"Invitation ID"
//	@Success		200	{object}	onboardsdk.ResendInvitationResponse
//	@Failure		400	{object}	onboardsdk.ErrorResponse	"not resendable or expired"
//	@Failure		401	{object}	onboardsdk.ErrorResponse
//	@Failure		404	{object}	onboardsdk.ErrorResponse
//	@Router			/invitations/{id}/resend [post].
func (h *InvitationsHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	inv, status, err := h.Orchestrator.ResendInvitation(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, "resend invitation")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, onboardsdk.ResendInvitationResponse{
		Invitation:  toInvitationResponse(inv, time.Now()),
		EmailStatus: toEmailStatus(status),
	})
}

// HandleCancel godoc
//
//	@Summary		Cancel Invitation
//	@Description	Closes an open invitation so its link can no longer be used.
//	@Tags			Invitations
//	@Produce		json
//	@Security		BasicAuth
//	@Param			id	path		string	true	"Invitation ID"
//	@Success		200	{object}	onboardsdk.InvitationResponse
//	@Failure		400	{object}	onboardsdk.ErrorResponse	"already closed or expired"
//	@Failure		401	{object}	onboardsdk.ErrorResponse
//	@Failure		404	{object}	onboardsdk.ErrorResponse
//	@Router			/invitations/{id}/cancel [post].
func (h *InvitationsHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Orchestrator.CancelInvitation(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, "cancel invitation")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toInvitationResponse(inv, time.Now()))
}
