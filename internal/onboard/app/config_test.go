package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.False(t, cfg.Production())
	require.Equal(t, 7*24*time.Hour, cfg.Invitation.TTL)
	require.Equal(t, []string{"active downline"}, cfg.Webhook.OnboardTags)
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yamlPath := filepath.Join(dir, "onboard.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
port: 9000
database:
  driver: postgres
  dsn: postgres://onboard@localhost/onboard
invitation:
  ttl: 48h
  accept_url: https://app.example.com/accept
crm:
  location_id: loc-1
`), 0o600))

	// .env fills in what the environment does not set
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ADMIN_PASSWORD=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("ADMIN_PASSWORD") })

	t.Setenv(ConfigFileEnv, yamlPath)
	t.Setenv("PORT", "9100")
	t.Setenv("WEBHOOK_ONBOARD_TAGS", "active downline,vip")
	t.Setenv("RATE_LIMIT_STRICT_REQUESTS", "3")
	t.Setenv("CRM_TIMEOUT", "2s")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,192.168.1.1")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, 9100, cfg.Port, "env beats yaml")
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "postgres://onboard@localhost/onboard", cfg.Database.DSN)
	require.Equal(t, 48*time.Hour, cfg.Invitation.TTL)
	require.Equal(t, "https://app.example.com/accept", cfg.Invitation.AcceptURL)
	require.Equal(t, "loc-1", cfg.CRM.LocationID)
	require.Equal(t, 2*time.Second, cfg.CRM.Timeout)
	require.Equal(t, "from-dotenv", cfg.Admin.Password)
	require.Equal(t, []string{"active downline", "vip"}, cfg.Webhook.OnboardTags)
	require.Equal(t, []string{"10.0.0.0/8", "192.168.1.1"}, cfg.TrustedProxies)

	require.Equal(t, 3, cfg.RateLimit.Strict.Requests)
	require.Equal(t, time.Minute, cfg.RateLimit.Strict.Window, "unset fields keep their default")
	require.Equal(t, "Onboard", cfg.Invitation.AppName)
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not a number"), 0o600))
	t.Setenv(ConfigFileEnv, path)

	_, err := LoadConfig()
	require.ErrorContains(t, err, "parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Port = 0 }, "port 0 out of range"},
		{"driver", func(c *Config) { c.Database.Driver = "mysql" }, `unknown database driver "mysql"`},
		{"postgres dsn", func(c *Config) { c.Database.Driver = "postgres" }, "DATABASE_DSN is required"},
		{"sqlite file", func(c *Config) { c.Database.File = "" }, "DATABASE_FILE is required"},
		{"admin password in production", func(c *Config) { c.Env = "production" }, "ADMIN_PASSWORD is required"},
		{"ttl", func(c *Config) { c.Invitation.TTL = 0 }, "INVITATION_TTL must be positive"},
		{"accept url", func(c *Config) { c.Invitation.AcceptURL = "" }, "INVITATION_ACCEPT_URL is required"},
		{"rate limit", func(c *Config) { c.RateLimit.Moderate.Window = 0 }, "rate limit profile moderate"},
		{"email provider in production", func(c *Config) { c.Env = "production"; c.Admin.Password = "x" }, "EMAIL_PRIMARY_API_KEY is required"},
		{"trusted proxies", func(c *Config) { c.TrustedProxies = []string{"10.0.0.0/40"} }, "TRUSTED_PROXIES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	t.Run("reports every problem", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Port = -1
		cfg.Invitation.TTL = 0
		err := cfg.Validate()
		require.ErrorContains(t, err, "port -1")
		require.ErrorContains(t, err, "INVITATION_TTL")
	})
}

func TestProductionNeedsMailProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Env = "production"
	cfg.Admin.Password = "secret"
	cfg.Email.Primary.APIKey = "re_key"
	require.NoError(t, cfg.Validate())
}

func TestProduction(t *testing.T) {
	for env, want := range map[string]bool{"prod": true, "Production": true, "dev": false, "staging": false} {
		require.Equal(t, want, Config{Env: env}.Production(), env)
	}
}
