package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
	"github.com/aussiebroadwan/onboard/internal/onboard/store"
	"github.com/aussiebroadwan/onboard/pkg/httpx"
	"github.com/aussiebroadwan/onboard/pkg/idx"
	"github.com/aussiebroadwan/onboard/pkg/slogx"
)

// Audit actions.
const (
	ActionUserInvited      = "user.invited"
	ActionEmailSent        = "invitation.email_sent"
	ActionEmailFailed      = "invitation.email_failed"
	ActionInvitationAccept = "invitation.accepted"
	ActionInvitationCancel = "invitation.cancelled"
	ActionInvitationResent = "invitation.resent"
	ActionCRMUpsert        = "crm.upsert"
	ActionCRMNote          = "crm.note"
	ActionCRMDelete        = "crm.delete"
	ActionUserActivated    = "user.activated"
	ActionUserSuspended    = "user.suspended"
	ActionAgentPageCreated = "agent_page.created"
	ActionUserDeleted      = "user.deleted"
	ActionCleanupImage     = "cleanup.profile_image"
	ActionWebhookReceived  = "webhook.received"
	ActionWebhookIgnored   = "webhook.ignored"
)

// ActorSystem is recorded when no request actor is known.
const ActorSystem = "system"

const (
	defaultAuditQueryLimit = 100
	maxAuditQueryLimit     = 1000
	auditWriteTimeout      = 5 * time.Second
)

// AuditService appends to the audit log. Writes never fail the caller.
type AuditService struct {
	Store store.Store
}

// Record appends e, filling in id, timestamp and request metadata. A failed
// write is logged and dropped.
func (a *AuditService) Record(ctx context.Context, e domain.AuditEntry) {
	if e.ID == "" {
		e.ID = idx.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if meta, ok := httpx.RequestMetaFrom(ctx); ok {
		if e.Actor == "" {
			e.Actor = meta.Actor
		}
		if e.IP == "" {
			e.IP = meta.IP
		}
		if e.UserAgent == "" {
			e.UserAgent = meta.UserAgent
		}
	}
	if e.Actor == "" {
		e.Actor = ActorSystem
	}

	// The entry describes something that already happened
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := a.Store.AuditLog().AppendAudit(wctx, e); err != nil {
		slogx.FromContext(ctx).Warn("audit write failed",
			slog.String("action", e.Action),
			slog.String("resource_type", e.ResourceType),
			slog.String("resource_id", e.ResourceID),
			slog.Any("error", err),
		)
	}
}

func (a *AuditService) ListByResource(
	ctx context.Context,
	resourceType, resourceID string,
	limit int,
) ([]domain.AuditEntry, error) {
	if resourceID == "" {
		return nil, fmt.Errorf("%w: resource_id is required", domain.ErrInvalid)
	}
	switch {
	case limit <= 0:
		limit = defaultAuditQueryLimit
	case limit > maxAuditQueryLimit:
		limit = maxAuditQueryLimit
	}

	entries, err := a.Store.AuditLog().ListAuditByResource(ctx, resourceType, resourceID, limit)
	if err != nil {
		return nil, storeError("list audit", err)
	}
	return entries, nil
}
