package http

import (
	"time"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
	"github.com/aussiebroadwan/onboard/internal/onboard/service"
	"github.com/aussiebroadwan/onboard/pkg/onboardsdk"
)

func toUserResponse(u domain.User) onboardsdk.UserResponse {
	return onboardsdk.UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName,
		Username:  u.Username,
		Role:      string(u.Role),
		Status:    string(u.Status),
	}
}

// toInvitationResponse reports the effective status, so an expired
// invitation shows as expired whatever is stored.
func toInvitationResponse(inv domain.Invitation, now time.Time) onboardsdk.InvitationResponse {
	return onboardsdk.InvitationResponse{
		ID:             inv.ID,
		UserID:         inv.UserID,
		Email:          inv.Email,
		Status:         string(inv.EffectiveStatus(now)),
		ExpiresAt:      inv.ExpiresAt,
		EmailAttempts:  inv.EmailAttempts,
		EmailMessageID: inv.EmailMessageID,
		EmailLastError: inv.EmailLastError,
		EmailSentAt:    inv.EmailSentAt,
		AcceptedAt:     inv.AcceptedAt,
		CancelledAt:    inv.CancelledAt,
		CreatedAt:      inv.CreatedAt,
	}
}

func toEmailStatus(s service.EmailStatus) onboardsdk.EmailStatus {
	return onboardsdk.EmailStatus{
		Sent:      s.Sent,
		MessageID: s.MessageID,
		Error:     s.Error,
		Attempts:  s.Attempts,
		Provider:  s.Provider,
	}
}

func toAuditEntry(e domain.AuditEntry) onboardsdk.AuditEntry {
	return onboardsdk.AuditEntry{
		ID:           e.ID,
		Actor:        e.Actor,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Details:      e.Details,
		IP:           e.IP,
		UserAgent:    e.UserAgent,
		CreatedAt:    e.CreatedAt,
	}
}
