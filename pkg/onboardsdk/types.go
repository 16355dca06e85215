package onboardsdk

import "time"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`

	// RetryAfter is set on 429 responses, in seconds.
	RetryAfter int `json:"retryAfter,omitempty"`
}

// CreateUserRequest is the body of POST /users. Give either first and last
// name, or a full name (name is accepted as an alias).
type CreateUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	FullName  string `json:"full_name,omitempty"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role,omitempty" enums:"admin,user"`
}

type UserResponse struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	FullName  string  `json:"full_name"`
	Username  *string `json:"username"`
	Role      string  `json:"role"`
	Status    string  `json:"status" enums:"invited,active,suspended"`
}

// EmailStatus reports the invitation email dispatch.
type EmailStatus struct {
	Sent      bool   `json:"sent"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
	Attempts  int    `json:"attempts"`
	Provider  string `json:"provider,omitempty"`
}

// CRMStatus reports the CRM contact sync.
type CRMStatus struct {
	Synced    bool   `json:"synced"`
	ContactID string `json:"contactId,omitempty"`
	Created   bool   `json:"created,omitempty"`
	Error     string `json:"error,omitempty"`
}

type InvitationResponse struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Email          string     `json:"email"`
	Status         string     `json:"status" enums:"pending,sent,failed,accepted,cancelled,expired"`
	ExpiresAt      time.Time  `json:"expires_at"`
	EmailAttempts  int        `json:"email_attempts"`
	EmailMessageID *string    `json:"email_message_id,omitempty"`
	EmailLastError *string    `json:"email_last_error,omitempty"`
	EmailSentAt    *time.Time `json:"email_sent_at,omitempty"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CreateUserResponse is the 201 body of POST /users: the user fields at the
// top level plus the best-effort side effects.
type CreateUserResponse struct {
	UserResponse
	Invitation  InvitationResponse `json:"invitation"`
	EmailStatus EmailStatus        `json:"emailStatus"`
	CRMStatus   CRMStatus          `json:"crmStatus"`
}

type AcceptInvitationRequest struct {
	Token    string `json:"token"`
	FullName string `json:"full_name,omitempty"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type ResendInvitationResponse struct {
	Invitation  InvitationResponse `json:"invitation"`
	EmailStatus EmailStatus        `json:"emailStatus"`
}

// CleanupStatus is one post-deletion cleanup step: ok, failed or skipped.
type CleanupStatus struct {
	Status string `json:"status" enums:"ok,failed,skipped"`
	Error  string `json:"error,omitempty"`
}

type DeleteUserResponse struct {
	UserID  string        `json:"user_id"`
	Email   string        `json:"email"`
	Deleted bool          `json:"deleted"`
	Cleanup CleanupReport `json:"cleanup"`
}

type CleanupReport struct {
	ProfileImage CleanupStatus `json:"profile_image"`
	CRMContact   CleanupStatus `json:"crm_contact"`
}

type AuditEntry struct {
	ID           string         `json:"id"`
	Actor        string         `json:"actor"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Details      map[string]any `json:"details,omitempty"`
	IP           string         `json:"ip,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

type AuditListResponse struct {
	Entries []AuditEntry `json:"entries"`
}

// AuditQuery filters GET /audit. ResourceID is required.
type AuditQuery struct {
	ResourceType string
	ResourceID   string
	Limit        int
}

type HealthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}
