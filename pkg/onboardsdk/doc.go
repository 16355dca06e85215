/*
Package onboardsdk is a Go client for the onboarding service, and the home of
its request and response types.

Public endpoints (health checks, invitation acceptance) work with a plain
client. Admin endpoints need the Basic-Auth credentials configured on the
server:

	client := onboardsdk.NewClient("https://onboard.example.com").
		WithAdminCredentials("admin", os.Getenv("ONBOARD_ADMIN_PASSWORD"))

	created, err := client.CreateUser(ctx, onboardsdk.CreateUserRequest{
		Email:    "ada@example.com",
		FullName: "Ada Lovelace",
	})
	if err != nil {
		var apiErr *onboardsdk.APIError
		if errors.As(err, &apiErr) && apiErr.Code == onboardsdk.ErrorCodeConflict {
			// already invited
		}
		return err
	}
	if !created.EmailStatus.Sent {
		log.Printf("user created but the email failed: %s", created.EmailStatus.Error)
	}

The user record is authoritative. EmailStatus and CRMStatus are best effort
and reported separately so callers can tell "the account exists" from "the
email may not have arrived".
*/
package onboardsdk
