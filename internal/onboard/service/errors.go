package service

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
	"github.com/aussiebroadwan/onboard/internal/onboard/store"
)

var (
	ErrInvalidEmail    = fmt.Errorf("%w: a valid email address is required", domain.ErrInvalid)
	ErrInvalidName     = fmt.Errorf("%w: first and last name, or a full name, is required", domain.ErrInvalid)
	ErrInvalidRole     = fmt.Errorf("%w: role must be admin or user", domain.ErrInvalid)
	ErrInvalidUsername = fmt.Errorf("%w: username must be 3-32 characters of a-z, 0-9, '.', '_' or '-'", domain.ErrInvalid)
	ErrWeakPassword    = fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalid, MinPasswordLength)

	ErrEmailTaken    = fmt.Errorf("%w: email already registered", domain.ErrConflict)
	ErrUsernameTaken = fmt.Errorf("%w: username already taken", domain.ErrConflict)

	ErrInvitationNotFound  = fmt.Errorf("%w: invitation not found", domain.ErrNotFound)
	ErrInvitationExpired   = fmt.Errorf("%w: invitation has expired", domain.ErrExpired)
	ErrInvitationUsed      = fmt.Errorf("%w: invitation has already been accepted", domain.ErrAlreadyUsed)
	ErrInvitationCancelled = fmt.Errorf("%w: invitation was cancelled", domain.ErrInvalid)
	ErrInvitationClosed    = fmt.Errorf("%w: invitation is not in a state that allows this", domain.ErrInvalid)

	// ErrInvitationMoved is a conditional write that lost to a concurrent one.
	ErrInvitationMoved = fmt.Errorf("%w: invitation changed concurrently", domain.ErrConflict)

	// ErrInvitationOpen means the user still holds a usable invitation.
	ErrInvitationOpen = fmt.Errorf("%w: user already has an open invitation", domain.ErrConflict)

	ErrUserNotFound = fmt.Errorf("%w: user not found", domain.ErrNotFound)
)

// storeError maps a store error onto the domain taxonomy. Anything that is
// not a recognised store outcome means the store itself is in trouble.
func storeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case errors.Is(err, store.ErrAlreadyExists), errors.Is(err, store.ErrStale):
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrUnavailable, err)
}
