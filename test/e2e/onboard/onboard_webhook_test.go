package onboard_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/onboard/pkg/onboardsdk"
	"github.com/stretchr/testify/require"
)

type webhookResult struct {
	Status  string `json:"status"`
	Action  string `json:"action"`
	Outcome string `json:"outcome"`
}

func deliverWebhook(t *testing.T, c *onboardContainer, body string) (int, webhookResult) {
	t.Helper()

	resp, err := http.Post(c.BaseURL+"/webhooks/ghl", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out webhookResult
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

// TestWebhookOnboardsContact covers the CRM driven flow. Outside production
// an unconfigured key lets unsigned deliveries through.
// 1. Deliver the onboarding tag for a new contact
// 2. Deliver it again
// 3. Accept the emailed invitation
// 4. Deliver the suspension tag
func TestWebhookOnboardsContact(t *testing.T) {
	c := setupOnboardContainer(t, relaxedLimits)

	onboard := `{"contact":{"id":"crm-1","email":"Agent@Example.com","firstName":"Alex","lastName":"Agent"},"tags":["active downline"]}`

	// Step 1
	code, res := deliverWebhook(t, c, onboard)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "onboard", res.Action)
	require.Equal(t, "invited", res.Outcome)

	token := c.latestToken(t, "agent@example.com")

	// Step 2: re-delivery does not send a second email
	code, res = deliverWebhook(t, c, onboard)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "already_invited", res.Outcome)

	// The admin API sees the same user
	_, err := c.Admin.CreateUser(t.Context(), onboardsdk.CreateUserRequest{Email: "agent@example.com", FullName: "Alex Agent"})
	requireAPIError(t, err, http.StatusConflict, onboardsdk.ErrorCodeConflict)

	// Step 3
	user, err := c.Public.AcceptInvitation(t.Context(), onboardsdk.AcceptInvitationRequest{
		Token:    token,
		Username: "alex",
		Password: "long-enough-password",
	})
	require.NoError(t, err)
	require.Equal(t, "active", user.Status)

	// Step 4
	code, res = deliverWebhook(t, c, `{"contact":{"id":"crm-1","email":"agent@example.com"},"tags":["account suspended"]}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "suspend", res.Action)
	require.Equal(t, "suspended", res.Outcome)
}

// TestWebhookRejections verifies malformed and unknown deliveries.
func TestWebhookRejections(t *testing.T) {
	c := setupOnboardContainer(t, relaxedLimits)

	code, _ := deliverWebhook(t, c, `{"contact":`)
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = deliverWebhook(t, c, `{"contact":{"id":"crm-2"},"tags":["active downline"]}`)
	require.Equal(t, http.StatusBadRequest, code, "email is required")

	code, res := deliverWebhook(t, c, `{"contact":{"id":"crm-3","email":"x@example.com"},"tags":["newsletter"]}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ignored", res.Status)

	resp, err := http.Post(c.BaseURL+"/webhooks/unknown", "application/json", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
