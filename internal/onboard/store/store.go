package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrStale is returned by conditional updates when the row exists but is
	// no longer in one of the expected source states, i.e. somebody else got
	// there first.
	ErrStale = errors.New("store: stale state")

	// ErrTxUnsupported is returned by WithTx from stores that cannot span a
	// transaction over several tables.
	ErrTxUnsupported = errors.New("store: transactions unsupported")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement it. Repositories hang off it as methods so a Tx can hand out the
// same repositories bound to the transaction.
type Store interface {
	Users() Users
	Invitations() Invitations
	AgentPages() AgentPages
	AuditLog() AuditLog

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn inside a transaction, committing when fn returns nil and
	// rolling back otherwise. Inside fn use only the tx, never the outer
	// store, or single connection drivers will deadlock.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts a new user. Returns ErrAlreadyExists when the email
	// (or username, or CRM contact id) is taken.
	CreateUser(ctx context.Context, u domain.User) error

	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail expects an already normalised (lower case) email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	GetUserByCRMContactID(ctx context.Context, contactID string) (domain.User, error)

	// ActivateUser moves an invited user to active and sets their login
	// details. ErrStale when the user is not invited anymore.
	ActivateUser(ctx context.Context, id string, a Activation) error

	// UpdateUserStatus moves a user from one of from to to. ErrStale when the
	// current status is not in from.
	UpdateUserStatus(ctx context.Context, id string, from []domain.UserStatus, to domain.UserStatus) error

	// LinkCRMContact sets crm_contact_id if it is still empty. Linking an
	// already linked user is a silent no-op.
	LinkCRMContact(ctx context.Context, id, contactID string) error

	// DeleteUser removes the row. Dependents must be deleted first.
	DeleteUser(ctx context.Context, id string) error
}

// Activation carries the fields set when an invitation is accepted.
type Activation struct {
	Username     string
	FullName     string
	PasswordHash string
}

type Invitations interface {
	// CreateInvitation inserts a new invitation. ErrAlreadyExists when the
	// token hash collides or the user already has an open invitation.
	CreateInvitation(ctx context.Context, inv domain.Invitation) error

	GetInvitationByID(ctx context.Context, id string) (domain.Invitation, error)
	GetInvitationByTokenHash(ctx context.Context, hash string) (domain.Invitation, error)

	// GetOpenInvitationForUser returns the user's pending/sent/failed
	// invitation, if any.
	GetOpenInvitationForUser(ctx context.Context, userID string) (domain.Invitation, error)

	// ListInvitationsForUser returns every invitation, newest first.
	ListInvitationsForUser(ctx context.Context, userID string) ([]domain.Invitation, error)

	// RecordEmailOutcome applies a dispatch outcome: status becomes sent or
	// failed, attempts are added, message id / last error are updated.
	// ErrStale unless the current status is in from.
	RecordEmailOutcome(ctx context.Context, id string, from []domain.InvitationStatus, outcome domain.EmailOutcome) error

	// TransitionInvitation moves the invitation to to, stamping at into the
	// matching timestamp column. ErrStale unless the current status is in from.
	TransitionInvitation(ctx context.Context, id string, from []domain.InvitationStatus, to domain.InvitationStatus, at time.Time) error

	// RotateToken replaces the token hash on an open invitation.
	RotateToken(ctx context.Context, id, newHash string) error

	DeleteInvitationsForUser(ctx context.Context, userID string) error
}

type AgentPages interface {
	// CreateAgentPage inserts a page. ErrAlreadyExists if the user has one.
	CreateAgentPage(ctx context.Context, p domain.AgentPage) error
	GetAgentPageByUserID(ctx context.Context, userID string) (domain.AgentPage, error)
	DeleteAgentPagesForUser(ctx context.Context, userID string) error
}

type AuditLog interface {
	// AppendAudit writes an entry. Entries are never updated or deleted.
	AppendAudit(ctx context.Context, e domain.AuditEntry) error

	// ListAuditByResource returns entries for one resource, newest first.
	// An empty resourceType matches any type.
	ListAuditByResource(ctx context.Context, resourceType, resourceID string, limit int) ([]domain.AuditEntry, error)
}
