// Package crm is a thin, retrying client for a GoHighLevel style contacts
// API. It normalizes the CRM's inconsistent success and duplicate shapes into
// one result and maps failures onto the domain error taxonomy.
package crm

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
)

// Contact is the subset of a CRM contact we read and write.
type Contact struct {
	ID         string   `json:"id,omitempty"`
	LocationID string   `json:"locationId,omitempty"`
	Email      string   `json:"email,omitempty"`
	FirstName  string   `json:"firstName,omitempty"`
	LastName   string   `json:"lastName,omitempty"`
	Name       string   `json:"name,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// UpsertResult describes how an Upsert landed.
type UpsertResult struct {
	Contact Contact

	// Created is false when the contact already existed and was updated.
	Created bool

	// Attempts counts HTTP requests made, retries included.
	Attempts int
}

// Client is the normalized CRM surface the orchestrator depends on.
type Client interface {
	// Lookup finds a contact by email. domain.ErrNotFound when absent.
	Lookup(ctx context.Context, email string) (Contact, error)

	// Upsert creates the contact, or updates it when the CRM reports a
	// duplicate.
	Upsert(ctx context.Context, c Contact) (UpsertResult, error)

	AddNote(ctx context.Context, contactID, body string) error

	// DeleteContact removes a contact. An already missing contact is not an error.
	DeleteContact(ctx context.Context, contactID string) error
}

// ErrDisabled is returned by Disabled for every call.
var ErrDisabled = fmt.Errorf("crm not configured: %w", domain.ErrUnavailable)

// Disabled is used when no API key is configured. Every call fails fast with
// ErrDisabled, so callers can tell "no CRM" from a CRM outage.
type Disabled struct{}

func (Disabled) Lookup(context.Context, string) (Contact, error) { return Contact{}, ErrDisabled }

func (Disabled) Upsert(context.Context, Contact) (UpsertResult, error) {
	return UpsertResult{}, ErrDisabled
}

func (Disabled) AddNote(context.Context, string, string) error { return ErrDisabled }

func (Disabled) DeleteContact(context.Context, string) error { return ErrDisabled }
