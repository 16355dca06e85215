package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/onboard/internal/onboard/metrics"
	"github.com/aussiebroadwan/onboard/pkg/slogx"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/aussiebroadwan/onboard/internal/onboard/email"

var errNoProviders = errors.New("email: no provider configured")

type DispatcherConfig struct {
	// AttemptsPerProvider is how many times each provider is tried before
	// falling through to the next one. Defaults to 2.
	AttemptsPerProvider int

	// Backoff is the fixed wait between attempts on the same provider.
	Backoff time.Duration

	// Timeout bounds a single provider call.
	Timeout time.Duration
}

// Dispatcher tries each provider in order (primary, then fallbacks).
type Dispatcher struct {
	cfg       DispatcherConfig
	providers []Provider
	now       func() time.Time
}

func NewDispatcher(cfg DispatcherConfig, providers ...Provider) *Dispatcher {
	if cfg.AttemptsPerProvider <= 0 {
		cfg.AttemptsPerProvider = 2
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 250 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Dispatcher{cfg: cfg, providers: providers, now: time.Now}
}

// Send delivers msg. It never returns an error and never panics; every
// failure ends up in the Result.
func (d *Dispatcher) Send(ctx context.Context, msg Message) Result {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "email.send")
	defer span.End()

	log := slogx.FromContext(ctx)
	attempts := 0
	lastErr := errNoProviders
	lastProvider := ""

	for _, p := range d.providers {
		lastProvider = p.Name()
		start := time.Now()

		operation := func() (string, error) {
			attempts++
			id, err := d.attempt(ctx, p, msg)
			if errors.Is(err, ErrPermanent) {
				return "", backoff.Permanent(err)
			}
			return id, err
		}
		notify := func(err error, wait time.Duration) {
			log.Warn("email send failed, retrying",
				slog.String("provider", p.Name()),
				slog.Duration("backoff", wait),
				slog.Any("error", err),
			)
		}

		policy := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(d.cfg.Backoff), uint64(d.cfg.AttemptsPerProvider-1)),
			ctx,
		)
		id, err := backoff.RetryNotifyWithData(operation, policy, notify)
		metrics.ObserveExternal("email", p.Name(), start, err)

		if err == nil {
			span.SetAttributes(
				attribute.String("email.provider", p.Name()),
				attribute.Int("email.attempts", attempts),
			)
			return Result{
				Success:         true,
				MessageID:       id,
				Attempts:        attempts,
				Timestamp:       d.now().UTC(),
				ServiceProvider: p.Name(),
			}
		}

		lastErr = err
		log.Warn("email provider exhausted",
			slog.String("provider", p.Name()),
			slog.Any("error", err),
		)
		if ctx.Err() != nil {
			break
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return Result{
		Success:         false,
		Error:           lastErr.Error(),
		Attempts:        attempts,
		Timestamp:       d.now().UTC(),
		ServiceProvider: lastProvider,
	}
}

// attempt makes one provider call, converting a panic into an error.
func (d *Dispatcher) attempt(ctx context.Context, p Provider, msg Message) (id string, err error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("email: provider %s panicked: %v", p.Name(), r)
		}
	}()

	return p.Send(ctx, msg)
}
