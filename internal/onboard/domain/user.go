package domain

import "time"

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

type UserStatus string

const (
	UserInvited   UserStatus = "invited"
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
)

// CanTransitionTo reports whether moving from s to next is legal. Accounts
// only ever move forward: invited -> active -> suspended.
func (s UserStatus) CanTransitionTo(next UserStatus) bool {
	switch s {
	case UserInvited:
		return next == UserActive
	case UserActive:
		return next == UserSuspended
	}
	return false
}

type User struct {
	ID        string
	Email     string // lower case, unique
	FirstName string
	LastName  string
	FullName  string
	Username  *string // set on acceptance
	Role      Role
	Status    UserStatus

	PasswordHash    *string // argon2id PHC, set on acceptance
	CRMContactID    *string // populated lazily by the first CRM write or webhook
	ProfileImageKey *string // object key in the profile image bucket

	CreatedAt time.Time
	UpdatedAt time.Time
}
