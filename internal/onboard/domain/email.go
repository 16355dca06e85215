package domain

import "time"

// EmailOutcome is what gets persisted on an invitation after a dispatch.
type EmailOutcome struct {
	Success   bool
	MessageID string
	Error     string
	Attempts  int
	Provider  string
	Timestamp time.Time
}
