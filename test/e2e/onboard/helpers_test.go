package onboard_test

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"maps"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/onboard/pkg/onboardsdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Container setup and shared assertions for the onboarding service
 * end-to-end tests. Emails are only logged in these runs, so accept tokens
 * are read back from the container logs.
 */

const (
	testImageName = "onboard-test:latest"

	adminUsername = "admin"
	adminPassword = "e2e-admin-password"

	acceptURL = "https://app.example.com/accept"
)

// relaxedLimits keeps the many rapid requests of a test from tripping the
// production limits.
var relaxedLimits = map[string]string{
	"RATE_LIMIT_STRICT_REQUESTS":   "1000",
	"RATE_LIMIT_MODERATE_REQUESTS": "1000",
}

// TestMain builds the image once for the whole package.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	fmt.Fprintf(os.Stdout, "Building Onboard Service Docker image...")
	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up Onboard Service Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	cmd := exec.CommandContext(context.Background(), "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/onboard/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	return cmd.Run()
}

func cleanupDockerImage() {
	_ = exec.CommandContext(context.Background(), "docker", "rmi", "-f", testImageName).Run()
}

type onboardContainer struct {
	container testcontainers.Container
	BaseURL   string
	Admin     *onboardsdk.Client
	Public    *onboardsdk.Client
}

// setupOnboardContainer starts the service with CRM and email providers
// unconfigured. extraEnv entries override the defaults.
func setupOnboardContainer(t *testing.T, extraEnv map[string]string) *onboardContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("e2e tests need Docker")
	}
	ctx := context.Background()

	env := map[string]string{
		"ENV":                   "test",
		"LOG_LEVEL":             "info",
		"LOG_FORMAT":            "json",
		"ADMIN_USERNAME":        adminUsername,
		"ADMIN_PASSWORD":        adminPassword,
		"INVITATION_ACCEPT_URL": acceptURL,
	}
	maps.Copy(env, extraEnv)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        testImageName,
			ExposedPorts: []string{"8080/tcp"},
			Env:          env,
			WaitingFor: wait.ForHTTP("/livez").
				WithPort("8080/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)

	baseURL := fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
	return &onboardContainer{
		container: container,
		BaseURL:   baseURL,
		Admin:     onboardsdk.NewClient(baseURL).WithAdminCredentials(adminUsername, adminPassword),
		Public:    onboardsdk.NewClient(baseURL),
	}
}

// latestToken waits for the logged invitation email to address and returns
// the token from its accept link. Resends log a new email, the last wins.
func (c *onboardContainer) latestToken(t *testing.T, address string) string {
	t.Helper()

	var token string
	require.Eventually(t, func() bool {
		tok, err := c.scanLogsForToken(address)
		if err != nil {
			return false
		}
		token = tok
		return token != ""
	}, 10*time.Second, 200*time.Millisecond, "no invitation email logged for %s", address)
	return token
}

func (c *onboardContainer) scanLogsForToken(address string) (string, error) {
	logs, err := c.container.Logs(context.Background())
	if err != nil {
		return "", err
	}
	defer logs.Close()

	var token string
	sc := bufio.NewScanner(logs)
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if i := strings.IndexByte(string(line), '{'); i > 0 {
			line = line[i:]
		}

		var entry struct {
			Msg  string `json:"msg"`
			To   string `json:"to"`
			Text string `json:"text"`
		}
		if json.Unmarshal(line, &entry) != nil || entry.To != address || entry.Text == "" {
			continue
		}
		if tok := tokenFromText(entry.Text); tok != "" {
			token = tok
		}
	}
	return token, sc.Err()
}

func tokenFromText(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, acceptURL) {
			continue
		}
		u, err := url.Parse(line)
		if err != nil {
			return ""
		}
		return u.Query().Get("token")
	}
	return ""
}

// inviteUser creates a user through the admin API and returns it with the
// token from its invitation email.
func inviteUser(t *testing.T, c *onboardContainer, address, name string) (*onboardsdk.CreateUserResponse, string) {
	t.Helper()

	created, err := c.Admin.CreateUser(t.Context(), onboardsdk.CreateUserRequest{Email: address, FullName: name})
	require.NoError(t, err, "invite should succeed")
	require.Equal(t, "invited", created.Status)
	require.True(t, created.EmailStatus.Sent, "log provider always succeeds")
	require.Equal(t, "log", created.EmailStatus.Provider)

	return created, c.latestToken(t, created.Email)
}

// requireAPIError asserts err is an API error with the given status.
func requireAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	require.Error(t, err)

	var apiErr *onboardsdk.APIError
	require.ErrorAs(t, err, &apiErr, "expected an API error, got %v", err)
	require.Equal(t, status, apiErr.StatusCode, apiErr.Description)
	if code != "" {
		require.Equal(t, code, apiErr.Code)
	}
}

func assertHealthy(t *testing.T, health *onboardsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
