package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/onboard/internal/onboard/blob"
	"github.com/aussiebroadwan/onboard/internal/onboard/crm"
	"github.com/aussiebroadwan/onboard/internal/onboard/email"
	httpapi "github.com/aussiebroadwan/onboard/internal/onboard/http"
	"github.com/aussiebroadwan/onboard/internal/onboard/ratelimit"
	"github.com/aussiebroadwan/onboard/internal/onboard/service"
	"github.com/aussiebroadwan/onboard/internal/onboard/store"
	"github.com/aussiebroadwan/onboard/internal/onboard/store/drivers/postgres"
	"github.com/aussiebroadwan/onboard/internal/onboard/store/drivers/sqlite"
	"github.com/aussiebroadwan/onboard/internal/onboard/webhook"
	"github.com/aussiebroadwan/onboard/pkg/cryptox"
	"github.com/aussiebroadwan/onboard/pkg/httpx"
	"github.com/aussiebroadwan/onboard/pkg/slogx"
)

const serviceName = "onboard"

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application owns every long lived dependency of the service.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	redis  *redis.Client
	images *blob.Store
	tasks  *service.TaskRunner

	shutdownTracing func(context.Context) error

	audit        *service.AuditService
	orchestrator *service.Orchestrator

	server *http.Server
	router *httpapi.Router
}

func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: serviceName,
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	ctx := context.Background()

	shutdown, err := setupTracing(ctx, cfg.OTLPEndpoint, serviceName, BuildVersion, cfg.Env)
	if err != nil {
		return nil, err
	}
	app.shutdownTracing = shutdown

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initBackends(ctx); err != nil {
		app.closeBackends()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		app.closeBackends()
		return nil, err
	}
	if err := app.initHTTP(); err != nil {
		app.closeBackends()
		return nil, err
	}

	return app, nil
}

// Run serves until SIGINT/SIGTERM or a listener failure.
func (app *Application) Run() error {
	app.tasks.Start()

	app.logger.Info("onboard service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"database", app.cfg.Database.Driver,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.closeBackends()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown stops accepting requests, lets in-flight ones finish, drains the
// task queue so queued CRM notes still go out, then closes the backends.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down onboard service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.tasks.Stop()

	if err := app.shutdownTracing(ctx); err != nil {
		app.logger.Warn("error flushing traces", "error", err)
	}

	err := app.closeBackends()
	app.logger.Info("onboard service stopped")
	return err
}

func (app *Application) closeBackends() error {
	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	for _, err := range errs {
		app.logger.Error("error closing backend", "error", err)
	}
	return errors.Join(errs...)
}

func (app *Application) initDatabase() error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.Database.Driver {
	case "postgres":
		db, err = postgres.NewStore(app.cfg.Database.DSN)
	default:
		db, err = sqlite.NewStore(sqlite.FileDSN(app.cfg.Database.File))
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}
	app.db = db

	app.logger.Info("database migrations applied", "driver", app.cfg.Database.Driver)
	return nil
}

// initBackends connects the optional shared backends. Neither is required
// to serve: without Redis limits are per process, without MinIO profile
// image cleanup reports skipped.
func (app *Application) initBackends(ctx context.Context) error {
	if app.cfg.RedisURL != "" {
		opts, err := redis.ParseURL(app.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		app.redis = redis.NewClient(opts)
		app.logger.Info("rate limits shared through redis", "addr", opts.Addr)
	}

	if app.cfg.Blob.Endpoint != "" {
		images, err := blob.New(blob.Config{
			Endpoint:  app.cfg.Blob.Endpoint,
			AccessKey: app.cfg.Blob.AccessKey,
			SecretKey: app.cfg.Blob.SecretKey,
			Bucket:    app.cfg.Blob.Bucket,
			UseSSL:    app.cfg.Blob.UseSSL,
		})
		if err != nil {
			return err
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := images.EnsureBucket(pingCtx); err != nil {
			app.logger.Warn("profile image bucket not reachable yet", "bucket", app.cfg.Blob.Bucket, "error", err)
		}
		app.images = images
	}
	return nil
}

func (app *Application) initServices() error {
	pepper, err := cryptox.LoadPepper(app.cfg.PepperFile)
	if err != nil {
		return err
	}

	app.tasks = service.NewTaskRunner(app.logger,
		app.cfg.Tasks.Workers,
		app.cfg.Tasks.QueueSize,
		app.cfg.Tasks.Timeout,
	)
	app.audit = &service.AuditService{Store: app.db}

	app.orchestrator = &service.Orchestrator{
		Store:       app.db,
		Invitations: &service.InvitationService{Store: app.db, TTL: app.cfg.Invitation.TTL},
		Resolver:    &service.IdempotencyResolver{Store: app.db},
		Audit:       app.audit,
		CRM: crm.New(crm.Config{
			BaseURL:    app.cfg.CRM.BaseURL,
			APIKey:     app.cfg.CRM.APIKey,
			LocationID: app.cfg.CRM.LocationID,
			Timeout:    app.cfg.CRM.Timeout,
			Backoff:    app.cfg.CRM.Backoff,
		}),
		Email:          app.newMailer(),
		Tasks:          app.tasks,
		Hasher:         cryptox.NewPasswordHasher(pepper),
		AppName:        app.cfg.Invitation.AppName,
		AcceptURL:      app.cfg.Invitation.AcceptURL,
		CRMTimeout:     app.cfg.CRM.Timeout,
		CleanupTimeout: app.cfg.Tasks.Timeout,
	}
	// Images must stay a nil interface when blob storage is off
	if app.images != nil {
		app.orchestrator.Images = app.images
	}

	if app.cfg.CRM.APIKey == "" {
		app.logger.Warn("CRM_API_KEY not set, CRM sync disabled")
	}
	return nil
}

// newMailer builds the dispatcher: the primary provider, then the fallback
// when it has a key. With no key at all emails are only logged.
func (app *Application) newMailer() *email.Dispatcher {
	var providers []email.Provider
	for _, p := range []EmailProviderConfig{app.cfg.Email.Primary, app.cfg.Email.Fallback} {
		if p.APIKey == "" {
			continue
		}
		providers = append(providers, &email.APIProvider{
			ProviderName: p.Name,
			Endpoint:     p.Endpoint,
			APIKey:       p.APIKey,
			From:         app.cfg.Email.From,
		})
	}
	if len(providers) == 0 {
		app.logger.Warn("no email provider key set, invitation emails will only be logged")
		providers = append(providers, email.LogProvider{})
	}

	return email.NewDispatcher(email.DispatcherConfig{
		AttemptsPerProvider: app.cfg.Email.AttemptsPerProvider,
		Backoff:             app.cfg.Email.Backoff,
		Timeout:             app.cfg.Email.Timeout,
	}, providers...)
}

func (app *Application) initHTTP() error {
	verifier, err := webhook.LoadVerifier(app.cfg.Webhook.PublicKeyFile, app.cfg.Production())
	if err != nil {
		return err
	}
	if !verifier.Enabled() {
		app.logger.Warn("webhook signature verification disabled, no public key configured",
			"production", app.cfg.Production())
	}

	proxies, err := httpx.NewTrustedProxies(app.cfg.TrustedProxies)
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(BuildVersion, app.logger)
	router.TrustedProxies = proxies
	router.Orchestrator = app.orchestrator
	router.Audit = app.audit
	router.Webhooks = webhook.NewHandler(app.orchestrator, webhook.Provider{
		Name:     app.cfg.Webhook.Provider,
		Verifier: verifier,
		Router:   webhook.NewRouter(app.cfg.Webhook.OnboardTags, app.cfg.Webhook.SuspendTags),
	})
	router.AdminUsername = app.cfg.Admin.Username
	router.AdminPassword = app.cfg.Admin.Password
	router.Limiters = app.limiters()
	router.ReadyChecks = app.readyChecks()
	router.ApplyRoutes()

	app.router = router
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}

func (app *Application) limiters() httpapi.Limiters {
	rl := app.cfg.RateLimit
	if app.redis == nil {
		return httpapi.Limiters{
			Strict:   httpx.NewLocalLimiter(rl.Strict.toHTTPX()),
			Moderate: httpx.NewLocalLimiter(rl.Moderate.toHTTPX()),
		}
	}
	return httpapi.Limiters{
		Strict:   ratelimit.NewRedisLimiter(app.redis, "onboard:rl:strict", rl.Strict.toHTTPX()),
		Moderate: ratelimit.NewRedisLimiter(app.redis, "onboard:rl:moderate", rl.Moderate.toHTTPX()),
	}
}

func (app *Application) readyChecks() []httpapi.ReadyCheck {
	checks := []httpapi.ReadyCheck{{Name: "database", Ping: app.db.Ping}}

	// Both fail soft at request time, so they only inform readiness
	if app.redis != nil {
		checks = append(checks, httpapi.ReadyCheck{
			Name:     "redis",
			Ping:     func(ctx context.Context) error { return app.redis.Ping(ctx).Err() },
			Optional: true,
		})
	}
	if app.images != nil {
		checks = append(checks, httpapi.ReadyCheck{Name: "blob", Ping: app.images.Ping, Optional: true})
	}
	return checks
}
