package onboard_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/onboard/pkg/onboardsdk"
	"github.com/stretchr/testify/require"
)

// TestInviteAndAccept covers the admin onboarding flow:
// 1. Invite a user
// 2. Redeem the emailed token
// 3. Replay the token
// 4. Read the audit trail
func TestInviteAndAccept(t *testing.T) {
	c := setupOnboardContainer(t, relaxedLimits)

	// Step 1: Invite
	created, token := inviteUser(t, c, "Grace@Example.com", "Grace Hopper")
	require.Equal(t, "grace@example.com", created.Email)
	require.Equal(t, "sent", created.Invitation.Status)
	require.False(t, created.CRMStatus.Synced, "CRM is not configured")

	t.Logf("Invited user %s (invitation %s)", created.ID, created.Invitation.ID)

	// Step 2: Accept
	user, err := c.Public.AcceptInvitation(t.Context(), onboardsdk.AcceptInvitationRequest{
		Token:    token,
		Username: "grace",
		Password: "compiler-1952",
	})
	require.NoError(t, err)
	require.Equal(t, created.ID, user.ID)
	require.Equal(t, "active", user.Status)
	require.Equal(t, "grace", user.Username)

	// Step 3: A token works once
	_, err = c.Public.AcceptInvitation(t.Context(), onboardsdk.AcceptInvitationRequest{
		Token:    token,
		Username: "grace2",
		Password: "compiler-1952",
	})
	requireAPIError(t, err, http.StatusBadRequest, onboardsdk.ErrorCodeAlreadyUsed)

	// Step 4: Audit trail, newest first
	audit, err := c.Admin.ListAudit(t.Context(), onboardsdk.AuditQuery{ResourceType: "user", ResourceID: created.ID})
	require.NoError(t, err)

	actions := make([]string, 0, len(audit.Entries))
	for _, e := range audit.Entries {
		actions = append(actions, e.Action)
	}
	require.Contains(t, actions, "user.invited")
	require.Contains(t, actions, "user.activated")

	t.Logf("Audit actions: %v", actions)
}

// TestInviteConflicts verifies an address can only be invited once,
// whatever its case.
func TestInviteConflicts(t *testing.T) {
	c := setupOnboardContainer(t, relaxedLimits)

	inviteUser(t, c, "dup@example.com", "First Invite")

	_, err := c.Admin.CreateUser(t.Context(), onboardsdk.CreateUserRequest{Email: "DUP@example.com", FullName: "Second Invite"})
	requireAPIError(t, err, http.StatusConflict, onboardsdk.ErrorCodeConflict)
}

// TestAcceptRejections verifies acceptance input and token failures.
func TestAcceptRejections(t *testing.T) {
	c := setupOnboardContainer(t, relaxedLimits)

	_, err := c.Public.AcceptInvitation(t.Context(), onboardsdk.AcceptInvitationRequest{
		Token:    "never-issued",
		Username: "nobody",
		Password: "long-enough-password",
	})
	requireAPIError(t, err, http.StatusNotFound, onboardsdk.ErrorCodeNotFound)

	first, firstToken := inviteUser(t, c, "first@example.com", "First User")
	_, secondToken := inviteUser(t, c, "second@example.com", "Second User")

	_, err = c.Public.AcceptInvitation(t.Context(), onboardsdk.AcceptInvitationRequest{
		Token:    firstToken,
		Username: "taken",
		Password: "long-enough-password",
	})
	require.NoError(t, err)

	// Usernames are unique across users
	_, err = c.Public.AcceptInvitation(t.Context(), onboardsdk.AcceptInvitationRequest{
		Token:    secondToken,
		Username: "taken",
		Password: "long-enough-password",
	})
	requireAPIError(t, err, http.StatusConflict, onboardsdk.ErrorCodeConflict)

	_, err = c.Public.AcceptInvitation(t.Context(), onboardsdk.AcceptInvitationRequest{
		Token:    secondToken,
		Username: "second",
		Password: "short",
	})
	requireAPIError(t, err, http.StatusBadRequest, onboardsdk.ErrorCodeInvalidRequest)

	t.Logf("First user %s active, second still invited", first.ID)
}

// TestCancelAndDelete covers the remaining admin operations.
func TestCancelAndDelete(t *testing.T) {
	c := setupOnboardContainer(t, relaxedLimits)

	created, token := inviteUser(t, c, "leaver@example.com", "Soon Gone")

	cancelled, err := c.Admin.CancelInvitation(t.Context(), created.Invitation.ID)
	require.NoError(t, err)
	require.Equal(t, "cancelled", cancelled.Status)

	_, err = c.Public.AcceptInvitation(t.Context(), onboardsdk.AcceptInvitationRequest{
		Token:    token,
		Username: "leaver",
		Password: "long-enough-password",
	})
	requireAPIError(t, err, http.StatusBadRequest, "")

	// Cancelled invitations are closed for resend too
	_, err = c.Admin.ResendInvitation(t.Context(), created.Invitation.ID)
	requireAPIError(t, err, http.StatusBadRequest, onboardsdk.ErrorCodeInvalidRequest)

	deleted, err := c.Admin.DeleteUser(t.Context(), created.ID)
	require.NoError(t, err)
	require.True(t, deleted.Deleted)
	require.Equal(t, "skipped", deleted.Cleanup.CRMContact.Status, "CRM is not configured")
	require.Equal(t, "skipped", deleted.Cleanup.ProfileImage.Status, "blob storage is not configured")

	_, err = c.Admin.DeleteUser(t.Context(), created.ID)
	requireAPIError(t, err, http.StatusNotFound, onboardsdk.ErrorCodeNotFound)
}
