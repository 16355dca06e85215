// Package email sends invitation emails through one or more delivery
// providers and always reports a single structured Result.
package email

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
)

// ErrPermanent marks a provider failure that retrying the same provider
// cannot fix (bad address, rejected sender). The dispatcher moves on to the
// next provider.
var ErrPermanent = errors.New("email: permanent failure")

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string

	// IdempotencyKey is forwarded to providers that support it so a retried
	// request cannot deliver twice.
	IdempotencyKey string
}

// Provider is one delivery backend.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg Message) (messageID string, err error)
}

// Result is the dispatcher's only output. The JSON shape is part of the
// admin API contract.
type Result struct {
	Success         bool      `json:"success"`
	MessageID       string    `json:"messageId,omitempty"`
	Error           string    `json:"error,omitempty"`
	Attempts        int       `json:"attempts"`
	Timestamp       time.Time `json:"timestamp"`
	ServiceProvider string    `json:"serviceProvider,omitempty"`
}

// Outcome converts r into what gets persisted on the invitation.
func (r Result) Outcome() domain.EmailOutcome {
	return domain.EmailOutcome{
		Success:   r.Success,
		MessageID: r.MessageID,
		Error:     r.Error,
		Attempts:  r.Attempts,
		Provider:  r.ServiceProvider,
		Timestamp: r.Timestamp,
	}
}

// Sender is what the orchestrator needs from a Dispatcher.
type Sender interface {
	Send(ctx context.Context, msg Message) Result
}
