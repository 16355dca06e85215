package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
	"github.com/aussiebroadwan/onboard/internal/onboard/service"
	"github.com/aussiebroadwan/onboard/pkg/httpx"
	"github.com/aussiebroadwan/onboard/pkg/onboardsdk"
)

type UsersHandler struct {
	Orchestrator *service.Orchestrator
}

// HandleCreate godoc
//
//	@Summary		Invite User
//	@Description	Creates an invited user with a pending invitation and emails the activation link.
//	@Description	The user record is authoritative; emailStatus and crmStatus report the best-effort side effects.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Security		BasicAuth
//	@Param			request	body		onboardsdk.CreateUserRequest	true	"email plus first_name and last_name, or full_name"
//	@Success		201		{object}	onboardsdk.CreateUserResponse
//	@Failure		400		{object}	onboardsdk.ErrorResponse
//	@Failure		401		{object}	onboardsdk.ErrorResponse
//	@Failure		409		{object}	onboardsdk.ErrorResponse	"email already registered"
//	@Failure		429		{object}	onboardsdk.ErrorResponse	"retryAfter in seconds"
//	@Failure		500		{object}	onboardsdk.ErrorResponse
//	@Router			/users [post].
func (h *UsersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req onboardsdk.CreateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeBadRequest(w, "email is required")
		return
	}

	fullName := req.FullName
	if fullName == "" {
		fullName = req.Name
	}

	res, err := h.Orchestrator.InviteUser(r.Context(), service.InviteRequest{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		FullName:  fullName,
		Role:      domain.Role(strings.ToLower(strings.TrimSpace(req.Role))),
	})
	if err != nil {
		writeServiceError(w, r, err, "invite user")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, onboardsdk.CreateUserResponse{
		UserResponse: toUserResponse(res.User),
		Invitation:   toInvitationResponse(res.Invitation, time.Now()),
		EmailStatus:  toEmailStatus(res.Email),
		CRMStatus: onboardsdk.CRMStatus{
			Synced:    res.CRM.Synced,
			ContactID: res.CRM.ContactID,
			Created:   res.CRM.Created,
			Error:     res.CRM.Error,
		},
	})
}

// HandleDelete godoc
//
//	@Summary		Delete User
//	@Description	Deletes the user, its invitations and agent page. Profile images and the CRM contact are
//	@Description	cleaned up after the deletion commits; their outcome is reported but never fails the request.
//	@Tags			Users
//	@Produce		json
//	@Security		BasicAuth
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	onboardsdk.DeleteUserResponse
//	@Failure		401	{object}	onboardsdk.ErrorResponse
//	@Failure		404	{object}	onboardsdk.ErrorResponse
//	@Failure		500	{object}	onboardsdk.ErrorResponse
//	@Router			/users/{id} [delete].
func (h *UsersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	res, err := h.Orchestrator.DeleteUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, "delete user")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, onboardsdk.DeleteUserResponse{
		UserID:  res.UserID,
		Email:   res.Email,
		Deleted: true,
		Cleanup: onboardsdk.CleanupReport{
			ProfileImage: onboardsdk.CleanupStatus(res.ProfileImage),
			CRMContact:   onboardsdk.CleanupStatus(res.CRMContact),
		},
	})
}
