package domain

import "errors"

// Error taxonomy shared by every package. Callers wrap these with %w and
// match them with errors.Is; transport layers map them to status codes.
var (
	// ErrConflict is a uniqueness violation (email, username, token).
	ErrConflict = errors.New("conflict")

	// ErrNotFound is an unknown id or token.
	ErrNotFound = errors.New("not found")

	// ErrExpired is a time based invalidation.
	ErrExpired = errors.New("expired")

	// ErrAlreadyUsed is a re-submission of a terminal action.
	ErrAlreadyUsed = errors.New("already used")

	// ErrUnauthorized is a signature or credential failure.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalid is a payload validation failure or an illegal transition.
	ErrInvalid = errors.New("invalid")

	// ErrUnavailable is a downstream outage (database, CRM, email provider).
	ErrUnavailable = errors.New("unavailable")

	// ErrInternal is anything unexpected.
	ErrInternal = errors.New("internal error")
)

// IsExpected reports whether err is an outcome the caller caused and should
// see as-is. These are never logged as errors.
func IsExpected(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrAlreadyUsed) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalid)
}
