package app

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/onboard/internal/onboard/crm"
	"github.com/aussiebroadwan/onboard/internal/onboard/email"
	"github.com/aussiebroadwan/onboard/pkg/httpx"
	"github.com/aussiebroadwan/onboard/pkg/onboardsdk"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.LogLevel = "error"
	cfg.Database.File = filepath.Join(dir, "onboard.db")
	cfg.PepperFile = filepath.Join(dir, "pepper")
	cfg.Admin.Password = "secret"
	return cfg
}

func TestNewWiresLocalDefaults(t *testing.T) {
	app, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.closeBackends() })

	// No keys configured: CRM off, emails only logged, limits per process
	require.IsType(t, crm.Disabled{}, app.orchestrator.CRM)
	require.Nil(t, app.orchestrator.Images)
	require.IsType(t, &httpx.LocalLimiter{}, app.router.Limiters.Strict)

	d, ok := app.orchestrator.Email.(*email.Dispatcher)
	require.True(t, ok)
	require.NotNil(t, d)

	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health onboardsdk.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, map[string]string{"database": "ok"}, health.Checks)
	require.Equal(t, BuildVersion, health.Version)

	raw, ok := app.db.(interface{ DB() *sql.DB })
	require.True(t, ok)
	var mode string
	require.NoError(t, raw.DB().QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	require.Equal(t, "wal", mode)
}

func TestNewTrustsConfiguredProxies(t *testing.T) {
	cfg := testConfig(t)
	cfg.TrustedProxies = []string{"10.0.0.0/8"}

	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.closeBackends() })

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.RemoteAddr = "10.0.0.2:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.5")
	require.Equal(t, "203.0.113.5", app.router.TrustedProxies.ClientIP(req))
}

func TestNewPersistsPepper(t *testing.T) {
	cfg := testConfig(t)

	first, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, first.closeBackends())

	require.FileExists(t, cfg.PepperFile)

	second, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, second.closeBackends())
}

func TestNewRejectsBadRedisURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisURL = "not-a-url://"

	_, err := New(cfg)
	require.ErrorContains(t, err, "parse REDIS_URL")
}

func TestNewFailsOnUnreadableWebhookKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Webhook.PublicKeyFile = filepath.Join(t.TempDir(), "missing.pem")

	_, err := New(cfg)
	require.ErrorContains(t, err, "read public key")
}
