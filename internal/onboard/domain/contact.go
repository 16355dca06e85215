package domain

import "strings"

// LifecycleAction is what a CRM tag asks us to do with a contact.
type LifecycleAction string

const (
	ActionOnboard LifecycleAction = "onboard"
	ActionSuspend LifecycleAction = "suspend"
	ActionIgnore  LifecycleAction = "ignore"
)

// ContactEvent is a normalized CRM webhook delivery.
type ContactEvent struct {
	Provider  string
	WebhookID string // provider delivery id, empty when the CRM omits it
	ContactID string
	Email     string
	FirstName string
	LastName  string
	FullName  string
	Phone     string
	Tags      []string
	Action    LifecycleAction
}

// NormalizeEmail lower-cases and trims an address. Every lookup and insert
// goes through it so uniqueness holds regardless of how the address was typed.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SplitName splits a full name on its first run of whitespace.
// "Ada King Lovelace" becomes ("Ada", "King Lovelace").
func SplitName(full string) (first, last string) {
	fields := strings.Fields(full)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

// JoinName is the inverse of SplitName, tolerating either half missing.
func JoinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

// ContactOutcome is what handling a ContactEvent ended up doing.
type ContactOutcome string

const (
	OutcomeInvited          ContactOutcome = "invited"
	OutcomeAlreadyInvited   ContactOutcome = "already_invited"
	OutcomeAgentPageCreated ContactOutcome = "agent_page_created"
	OutcomeAgentPageExists  ContactOutcome = "agent_page_exists"
	OutcomeSuspended        ContactOutcome = "suspended"
	OutcomeNoop             ContactOutcome = "noop"
	OutcomeIgnored          ContactOutcome = "ignored"
	OutcomeDuplicate        ContactOutcome = "duplicate_delivery"
)
