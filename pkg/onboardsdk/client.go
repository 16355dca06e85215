package onboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to one onboarding service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	adminUser     string
	adminPassword string
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithAdminCredentials returns a copy of c that authenticates admin calls.
func (c *Client) WithAdminCredentials(username, password string) *Client {
	cp := *c
	cp.adminUser = username
	cp.adminPassword = password
	return &cp
}

func (c *Client) do(ctx context.Context, method, path string, in any, admin bool) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.SetBasicAuth(c.adminUser, c.adminPassword)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// decodeJSON reads resp into target, or returns an *APIError when the status
// is not expected.
func decodeJSON(resp *http.Response, target any, expected int) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != expected {
		return parseErrorResponse(resp, body)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func call[T any](c *Client, ctx context.Context, method, path string, in any, admin bool, expected int) (*T, error) {
	resp, err := c.do(ctx, method, path, in, admin)
	if err != nil {
		return nil, err
	}
	var out T
	if err := decodeJSON(resp, &out, expected); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateUser invites a new user. Admin only.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*CreateUserResponse, error) {
	return call[CreateUserResponse](c, ctx, http.MethodPost, "/users", req, true, http.StatusCreated)
}

// DeleteUser removes a user and reports the external cleanup. Admin only.
func (c *Client) DeleteUser(ctx context.Context, id string) (*DeleteUserResponse, error) {
	return call[DeleteUserResponse](c, ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, true, http.StatusOK)
}

// AcceptInvitation redeems the emailed token and activates the account.
func (c *Client) AcceptInvitation(ctx context.Context, req AcceptInvitationRequest) (*UserResponse, error) {
	return call[UserResponse](c, ctx, http.MethodPost, "/invitations/accept", req, false, http.StatusOK)
}

// ResendInvitation emails a fresh link for a pending or failed invitation.
// Admin only.
func (c *Client) ResendInvitation(ctx context.Context, id string) (*ResendInvitationResponse, error) {
	path := "/invitations/" + url.PathEscape(id) + "/resend"
	return call[ResendInvitationResponse](c, ctx, http.MethodPost, path, nil, true, http.StatusOK)
}

// CancelInvitation closes an open invitation. Admin only.
func (c *Client) CancelInvitation(ctx context.Context, id string) (*InvitationResponse, error) {
	path := "/invitations/" + url.PathEscape(id) + "/cancel"
	return call[InvitationResponse](c, ctx, http.MethodPost, path, nil, true, http.StatusOK)
}

// ListAudit returns audit entries for one resource, newest first. Admin only.
func (c *Client) ListAudit(ctx context.Context, q AuditQuery) (*AuditListResponse, error) {
	v := url.Values{}
	v.Set("resource_id", q.ResourceID)
	if q.ResourceType != "" {
		v.Set("resource_type", q.ResourceType)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return call[AuditListResponse](c, ctx, http.MethodGet, "/audit?"+v.Encode(), nil, true, http.StatusOK)
}

func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return call[HealthResponse](c, ctx, http.MethodGet, "/livez", nil, false, http.StatusOK)
}

func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return call[HealthResponse](c, ctx, http.MethodGet, "/readyz", nil, false, http.StatusOK)
}
