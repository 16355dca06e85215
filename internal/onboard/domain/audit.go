package domain

import "time"

// Audit resource types.
const (
	ResourceUser       = "user"
	ResourceInvitation = "invitation"
	ResourceContact    = "crm_contact"
	ResourceAgentPage  = "agent_page"
)

// AuditEntry is an immutable record of a state transition or external call
// outcome. Entries are only ever appended.
type AuditEntry struct {
	ID           string
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]any
	IP           string
	UserAgent    string
	CreatedAt    time.Time
}
