package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/onboard/internal/onboard/service"
	"github.com/aussiebroadwan/onboard/pkg/httpx"
	"github.com/aussiebroadwan/onboard/pkg/onboardsdk"
)

type AuditHandler struct {
	Audit *service.AuditService
}

// ServeHTTP godoc
//
//	@Summary		Query Audit Log
//	@Description	Lists audit entries for one resource, newest first.
//	@Tags			Audit
//	@Produce		json
//	@Security		BasicAuth
//	@Param			resource_id		query		string	true	"Resource ID (user, invitation, CRM contact or agent page)"
//	@Param			resource_type	query		string	false	"user, invitation, crm_contact or agent_page"
//	@Param			limit			query		int		false	"Max entries (default 100, max 1000)"
//	@Success		200				{object}	onboardsdk.AuditListResponse
//	@Failure		400				{object}	onboardsdk.ErrorResponse
//	@Failure		401				{object}	onboardsdk.ErrorResponse
//	@Router			/audit [get].
func (h *AuditHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := h.Audit.ListByResource(r.Context(), q.Get("resource_type"), q.Get("resource_id"), limit)
	if err != nil {
		writeServiceError(w, r, err, "list audit")
		return
	}

	out := onboardsdk.AuditListResponse{Entries: make([]onboardsdk.AuditEntry, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, toAuditEntry(e))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
