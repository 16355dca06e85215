package webhook

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
	"github.com/tidwall/gjson"
)

var ErrMalformed = fmt.Errorf("webhook: body is not a JSON object: %w", domain.ErrInvalid)

// accessor pulls one logical field out of a payload.
type accessor func(root gjson.Result) (string, bool)

func path(p string) accessor {
	return func(root gjson.Result) (string, bool) {
		v := root.Get(p)
		if !v.Exists() || v.IsObject() || v.IsArray() {
			return "", false
		}
		s := strings.TrimSpace(v.String())
		return s, s != ""
	}
}

func paths(ps ...string) []accessor {
	out := make([]accessor, len(ps))
	for i, p := range ps {
		out[i] = path(p)
	}
	return out
}

// firstOf returns the first accessor that finds something.
func firstOf(root gjson.Result, accessors []accessor) string {
	for _, get := range accessors {
		if v, ok := get(root); ok {
			return v
		}
	}
	return ""
}

// Candidate locations per field, most specific first. The CRM moves fields
// around depending on which workflow trigger fired; a new convention is one
// more entry here.
var (
	webhookIDPaths = paths("webhookId", "webhook_id", "eventId", "event_id")
	contactIDPaths = paths("contact_id", "contactId", "contact.id", "payload.contact.id", "payload.id", "customData.contact_id")
	emailPaths     = paths("email", "contact.email", "payload.contact.email", "payload.email", "customData.email")
	firstNamePaths = paths("first_name", "firstName", "contact.first_name", "contact.firstName", "payload.contact.firstName", "payload.firstName", "customData.first_name")
	lastNamePaths  = paths("last_name", "lastName", "contact.last_name", "contact.lastName", "payload.contact.lastName", "payload.lastName", "customData.last_name")
	fullNamePaths  = paths("full_name", "fullName", "name", "contact.name", "contact.full_name", "payload.contact.name", "payload.name", "customData.full_name")
	phonePaths     = paths("phone", "contact.phone", "payload.contact.phone", "payload.phone")
	tagPaths       = []string{"tags", "contact.tags", "payload.contact.tags", "payload.tags", "customData.tags", "tag"}
)

// Extract normalizes a raw delivery. It only fails for bodies that are not
// JSON objects; missing fields are reported by Missing.
func Extract(body []byte) (domain.ContactEvent, error) {
	if !gjson.ValidBytes(body) {
		return domain.ContactEvent{}, ErrMalformed
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return domain.ContactEvent{}, ErrMalformed
	}

	ev := domain.ContactEvent{
		WebhookID: firstOf(root, webhookIDPaths),
		ContactID: firstOf(root, contactIDPaths),
		Email:     domain.NormalizeEmail(firstOf(root, emailPaths)),
		FirstName: firstOf(root, firstNamePaths),
		LastName:  firstOf(root, lastNamePaths),
		FullName:  firstOf(root, fullNamePaths),
		Phone:     firstOf(root, phonePaths),
		Tags:      extractTags(root),
	}

	if ev.FullName != "" && ev.FirstName == "" && ev.LastName == "" {
		ev.FirstName, ev.LastName = domain.SplitName(ev.FullName)
	}
	if ev.FullName == "" {
		ev.FullName = domain.JoinName(ev.FirstName, ev.LastName)
	}
	return ev, nil
}

// extractTags accepts an array or a comma separated string.
func extractTags(root gjson.Result) []string {
	for _, p := range tagPaths {
		v := root.Get(p)
		if !v.Exists() {
			continue
		}

		var raw []string
		if v.IsArray() {
			for _, t := range v.Array() {
				raw = append(raw, t.String())
			}
		} else {
			raw = strings.Split(v.String(), ",")
		}

		var tags []string
		for _, t := range raw {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		if len(tags) > 0 {
			return tags
		}
	}
	return nil
}

// Missing lists the required fields ev lacks for action.
func Missing(ev domain.ContactEvent, action domain.LifecycleAction) []string {
	var missing []string
	switch action {
	case domain.ActionOnboard:
		if ev.FirstName == "" {
			missing = append(missing, "first_name")
		}
		if ev.LastName == "" {
			missing = append(missing, "last_name")
		}
		if ev.Email == "" {
			missing = append(missing, "email")
		}
	case domain.ActionSuspend:
		if ev.Email == "" && ev.ContactID == "" {
			missing = append(missing, "email")
		}
	}
	return missing
}

// KeysPresent flattens the keys of body two levels deep, so an operator can
// see what a misconfigured workflow actually sent.
func KeysPresent(body []byte) []string {
	var keys []string
	gjson.ParseBytes(body).ForEach(func(k, v gjson.Result) bool {
		keys = append(keys, k.String())
		if v.IsObject() {
			v.ForEach(func(k2, _ gjson.Result) bool {
				keys = append(keys, k.String()+"."+k2.String())
				return true
			})
		}
		return true
	})
	sort.Strings(keys)
	return keys
}

// MissingFieldsError is a payload that parsed but lacks what the action needs.
type MissingFieldsError struct {
	Missing     []string
	KeysPresent []string
}

func (e *MissingFieldsError) Error() string {
	return "webhook: missing required fields: " + strings.Join(e.Missing, ", ")
}

func (e *MissingFieldsError) Is(target error) bool { return target == domain.ErrInvalid }

// AsMissingFields unwraps err into a *MissingFieldsError.
func AsMissingFields(err error) (*MissingFieldsError, bool) {
	var mf *MissingFieldsError
	ok := errors.As(err, &mf)
	return mf, ok
}
