package domain

import "time"

// AgentPage is the public profile page an active agent gets once the CRM
// tags them into the downline. It is linked to the CRM contact that caused it.
type AgentPage struct {
	ID           string
	UserID       string
	Slug         string
	CRMContactID *string
	CreatedAt    time.Time
}
