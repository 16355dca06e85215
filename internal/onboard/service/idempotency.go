package service

import (
	"context"
	"errors"
	"strings"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
	"github.com/aussiebroadwan/onboard/internal/onboard/store"
	"github.com/google/uuid"
)

type KeyKind int

const (
	KeyEmail KeyKind = iota
	KeyContact
)

// Key identifies a person independently of which trigger mentioned them.
type Key struct {
	Kind  KeyKind
	Value string
}

func KeyForEmail(email string) Key { return Key{Kind: KeyEmail, Value: domain.NormalizeEmail(email)} }

func KeyForContact(contactID string) Key {
	return Key{Kind: KeyContact, Value: strings.TrimSpace(contactID)}
}

func (k Key) String() string {
	if k.Kind == KeyContact {
		return "contact:" + k.Value
	}
	return "email:" + k.Value
}

// IdempotencyResolver finds the user a trigger refers to, if one exists,
// before anything is written.
type IdempotencyResolver struct {
	Store store.Store
}

// Resolve returns the user for k and whether one was found.
func (r *IdempotencyResolver) Resolve(ctx context.Context, k Key) (domain.User, bool, error) {
	if k.Value == "" {
		return domain.User{}, false, nil
	}

	var u domain.User
	var err error
	if k.Kind == KeyContact {
		u, err = r.Store.Users().GetUserByCRMContactID(ctx, k.Value)
	} else {
		u, err = r.Store.Users().GetUserByEmail(ctx, k.Value)
	}

	switch {
	case err == nil:
		return u, true, nil
	case errors.Is(err, store.ErrNotFound):
		return domain.User{}, false, nil
	}
	return domain.User{}, false, storeError("resolve "+k.String(), err)
}

// ResolveContact tries the CRM contact id first, since the email on a
// contact can change, then falls back to the email.
func (r *IdempotencyResolver) ResolveContact(ctx context.Context, contactID, email string) (domain.User, bool, error) {
	for _, k := range []Key{KeyForContact(contactID), KeyForEmail(email)} {
		u, ok, err := r.Resolve(ctx, k)
		if err != nil || ok {
			return u, ok, err
		}
	}
	return domain.User{}, false, nil
}

var emailKeyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/aussiebroadwan/onboard/email"))

// EmailDedupKey is the provider Idempotency-Key for one dispatch of an
// invitation. Retries within a dispatch share it; a resend rotates the token
// hash and so gets a new key.
func EmailDedupKey(invitationID, tokenHash string) string {
	return uuid.NewSHA1(emailKeyNamespace, []byte(invitationID+"/"+tokenHash)).String()
}
