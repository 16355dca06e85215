package domain

import "time"

type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationSent      InvitationStatus = "sent"
	InvitationFailed    InvitationStatus = "failed"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationCancelled InvitationStatus = "cancelled"

	// InvitationExpired is never stored. It is what EffectiveStatus reports
	// for an open invitation past its expiry.
	InvitationExpired InvitationStatus = "expired"
)

// OpenInvitationStatuses are the non-terminal stored statuses. At most one
// invitation per user may be in one of these at a time.
var OpenInvitationStatuses = []InvitationStatus{
	InvitationPending,
	InvitationSent,
	InvitationFailed,
}

// IsOpen reports whether s is a non-terminal stored status.
func (s InvitationStatus) IsOpen() bool {
	return s == InvitationPending || s == InvitationSent || s == InvitationFailed
}

// CanTransitionTo reports whether a stored transition from s to next is legal.
func (s InvitationStatus) CanTransitionTo(next InvitationStatus) bool {
	switch s {
	case InvitationPending:
		return next == InvitationSent || next == InvitationFailed ||
			next == InvitationCancelled || next == InvitationAccepted
	case InvitationSent:
		return next == InvitationAccepted || next == InvitationCancelled
	case InvitationFailed:
		return next == InvitationSent || next == InvitationCancelled ||
			next == InvitationAccepted
	}
	return false
}

// DefaultInvitationTTL is how long an invitation link stays valid.
const DefaultInvitationTTL = 24 * time.Hour

type Invitation struct {
	ID        string
	UserID    string
	Email     string
	TokenHash string // FingerprintToken of the emailed token
	Status    InvitationStatus
	ExpiresAt time.Time

	EmailMessageID *string
	EmailProvider  *string
	EmailAttempts  int
	EmailLastError *string
	EmailSentAt    *time.Time

	AcceptedAt  *time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsExpired reports whether the invitation's time window has closed. It
// ignores the stored status on purpose.
func (i Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// EffectiveStatus is the status as the outside world should see it.
func (i Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if i.Status.IsOpen() && i.IsExpired(now) {
		return InvitationExpired
	}
	return i.Status
}
