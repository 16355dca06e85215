package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/aussiebroadwan/onboard/internal/onboard/webhook"
	"github.com/aussiebroadwan/onboard/pkg/httpx"
)

// ConfigFileEnv names the optional YAML file layered under the environment.
const ConfigFileEnv = "ONBOARD_CONFIG_FILE"

type Config struct {
	Env                 string        `yaml:"env"                   env:"ENV"`                   // dev, staging, production (default: dev)
	LogLevel            string        `yaml:"log_level"             env:"LOG_LEVEL"`             // debug, info, warn, error (default: info)
	LogFormat           string        `yaml:"log_format"            env:"LOG_FORMAT"`            // json, text (default: json)
	Port                int           `yaml:"port"                  env:"PORT"`                  // default: 8080
	ShutdownGracePeriod time.Duration `yaml:"shutdown_grace_period" env:"SHUTDOWN_GRACE_PERIOD"` // default: 10s
	PepperFile          string        `yaml:"pepper_file"           env:"PEPPER_FILE"`           // default: ./pepper
	RedisURL            string        `yaml:"redis_url"             env:"REDIS_URL"`             // optional, enables the shared rate limiter
	OTLPEndpoint        string        `yaml:"otlp_endpoint"         env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TrustedProxies      []string      `yaml:"trusted_proxies"       env:"TRUSTED_PROXIES" envSeparator:","` // IPs or CIDRs allowed to set X-Forwarded-For

	Database   DatabaseConfig   `yaml:"database"   envPrefix:"DATABASE_"`
	Admin      AdminConfig      `yaml:"admin"      envPrefix:"ADMIN_"`
	Invitation InvitationConfig `yaml:"invitation" envPrefix:"INVITATION_"`
	CRM        CRMConfig        `yaml:"crm"        envPrefix:"CRM_"`
	Email      EmailConfig      `yaml:"email"      envPrefix:"EMAIL_"`
	Webhook    WebhookConfig    `yaml:"webhook"    envPrefix:"WEBHOOK_"`
	Blob       BlobConfig       `yaml:"blob"       envPrefix:"MINIO_"`
	Tasks      TasksConfig      `yaml:"tasks"      envPrefix:"TASKS_"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"` // sqlite or postgres (default: sqlite)
	File   string `yaml:"file"   env:"FILE"`   // sqlite only (default: ./onboard.db)
	DSN    string `yaml:"dsn"    env:"DSN"`    // postgres only
}

type AdminConfig struct {
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
}

type InvitationConfig struct {
	TTL       time.Duration `yaml:"ttl"        env:"TTL"`        // default: 7 days
	AcceptURL string        `yaml:"accept_url" env:"ACCEPT_URL"` // link base, the token is appended as ?token=
	AppName   string        `yaml:"app_name"   env:"APP_NAME"`
}

type CRMConfig struct {
	BaseURL    string        `yaml:"base_url"    env:"BASE_URL"`
	APIKey     string        `yaml:"api_key"     env:"API_KEY"` // empty disables the CRM
	LocationID string        `yaml:"location_id" env:"LOCATION_ID"`
	Timeout    time.Duration `yaml:"timeout"     env:"TIMEOUT"`
	Backoff    time.Duration `yaml:"backoff"     env:"BACKOFF"`
}

type EmailProviderConfig struct {
	Name     string `yaml:"name"     env:"NAME"`
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
	APIKey   string `yaml:"api_key"  env:"API_KEY"`
}

type EmailConfig struct {
	From                string              `yaml:"from"                  env:"FROM"`
	AttemptsPerProvider int                 `yaml:"attempts_per_provider" env:"ATTEMPTS_PER_PROVIDER"`
	Backoff             time.Duration       `yaml:"backoff"               env:"BACKOFF"`
	Timeout             time.Duration       `yaml:"timeout"               env:"TIMEOUT"`
	Primary             EmailProviderConfig `yaml:"primary"               envPrefix:"PRIMARY_"`
	Fallback            EmailProviderConfig `yaml:"fallback"              envPrefix:"FALLBACK_"`
}

type WebhookConfig struct {
	Provider      string   `yaml:"provider"        env:"PROVIDER"`
	PublicKeyFile string   `yaml:"public_key_file" env:"PUBLIC_KEY_FILE"`
	OnboardTags   []string `yaml:"onboard_tags"    env:"ONBOARD_TAGS" envSeparator:","`
	SuspendTags   []string `yaml:"suspend_tags"    env:"SUSPEND_TAGS" envSeparator:","`
}

type BlobConfig struct {
	Endpoint  string `yaml:"endpoint"   env:"ENDPOINT"` // empty disables profile image cleanup
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	Bucket    string `yaml:"bucket"     env:"BUCKET"`
	UseSSL    bool   `yaml:"use_ssl"    env:"USE_SSL"`
}

type TasksConfig struct {
	Workers   int           `yaml:"workers"    env:"WORKERS"`
	QueueSize int           `yaml:"queue_size" env:"QUEUE_SIZE"`
	Timeout   time.Duration `yaml:"timeout"    env:"TIMEOUT"`
}

type RateLimitProfile struct {
	Requests int           `yaml:"requests" env:"REQUESTS"`
	Window   time.Duration `yaml:"window"   env:"WINDOW"`
}

func (p RateLimitProfile) toHTTPX() httpx.RateLimitConfig {
	return httpx.RateLimitConfig{RequestsPerWindow: p.Requests, Window: p.Window, Burst: p.Requests}
}

type RateLimitConfig struct {
	Strict   RateLimitProfile `yaml:"strict"   envPrefix:"STRICT_"`
	Moderate RateLimitProfile `yaml:"moderate" envPrefix:"MODERATE_"`
}

func DefaultConfig() Config {
	return Config{
		Env:                 "dev",
		LogLevel:            "info",
		LogFormat:           "json",
		Port:                8080,
		ShutdownGracePeriod: 10 * time.Second,
		PepperFile:          "pepper",
		Database: DatabaseConfig{
			Driver: "sqlite",
			File:   "onboard.db",
		},
		Admin: AdminConfig{Username: "admin"},
		Invitation: InvitationConfig{
			TTL:       7 * 24 * time.Hour,
			AcceptURL: "http://localhost:3000/accept-invitation",
			AppName:   "Onboard",
		},
		CRM: CRMConfig{
			Timeout: 10 * time.Second,
			Backoff: 500 * time.Millisecond,
		},
		Email: EmailConfig{
			From:                "Onboard <no-reply@localhost>",
			AttemptsPerProvider: 2,
			Backoff:             250 * time.Millisecond,
			Timeout:             10 * time.Second,
			Primary:             EmailProviderConfig{Name: "resend", Endpoint: "https://api.resend.com"},
		},
		Webhook: WebhookConfig{
			Provider:    "ghl",
			OnboardTags: []string{webhook.DefaultOnboardTag},
			SuspendTags: []string{webhook.DefaultSuspendTag},
		},
		Blob: BlobConfig{Bucket: "onboard"},
		Tasks: TasksConfig{
			Workers:   4,
			QueueSize: 256,
			Timeout:   30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Strict:   profileOf(httpx.StrictLimit),
			Moderate: profileOf(httpx.ModerateLimit),
		},
	}
}

func profileOf(c httpx.RateLimitConfig) RateLimitProfile {
	return RateLimitProfile{Requests: c.RequestsPerWindow, Window: c.Window}
}

// LoadConfig layers, lowest first: defaults, the YAML file named by
// ONBOARD_CONFIG_FILE, .env, then the process environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.File == "" {
			errs = append(errs, errors.New("DATABASE_FILE is required for sqlite"))
		}
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}

	if c.Production() && c.Admin.Password == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD is required in production"))
	}
	// Without a provider key emails are only logged, accept links included
	if c.Production() && c.Email.Primary.APIKey == "" {
		errs = append(errs, errors.New("EMAIL_PRIMARY_API_KEY is required in production"))
	}
	if _, err := httpx.NewTrustedProxies(c.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %w", err))
	}
	if c.Invitation.TTL <= 0 {
		errs = append(errs, errors.New("INVITATION_TTL must be positive"))
	}
	if c.Invitation.AcceptURL == "" {
		errs = append(errs, errors.New("INVITATION_ACCEPT_URL is required"))
	}
	if c.Webhook.Provider == "" {
		errs = append(errs, errors.New("WEBHOOK_PROVIDER is required"))
	}

	for name, p := range map[string]RateLimitProfile{
		"strict":   c.RateLimit.Strict,
		"moderate": c.RateLimit.Moderate,
	} {
		if p.Requests <= 0 || p.Window <= 0 {
			errs = append(errs, fmt.Errorf("rate limit profile %s needs positive requests and window", name))
		}
	}

	return errors.Join(errs...)
}

// Production gates the strict behaviours: unsigned webhooks are refused, and
// an admin password and an email provider are mandatory.
func (c Config) Production() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}
