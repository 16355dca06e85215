package httpx

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/aussiebroadwan/onboard/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit. Fixed window
	// limiters ignore it.
	Burst int
}

// Default profiles. The app config can override each of them.
var (
	// StrictLimit guards account creation.
	StrictLimit = RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5}

	// ModerateLimit guards invitation acceptance, which is token guessing
	// territory, and the remaining admin routes.
	ModerateLimit = RateLimitConfig{RequestsPerWindow: 20, Window: time.Minute, Burst: 20}
)

// Decision is the result of a single Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the caller identified by key may proceed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// LimiterFunc adapts a function to Limiter. Mostly useful for tests.
type LimiterFunc func(ctx context.Context, key string) (Decision, error)

func (f LimiterFunc) Allow(ctx context.Context, key string) (Decision, error) { return f(ctx, key) }

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes (e.g., IP address).
type KeyExtractor func(*http.Request) string

// StaticKeyExtractor prefixes every key, so several routes can share one
// limiter backend without sharing a budget.
func StaticKeyExtractor(prefix string, inner KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		key := inner(r)
		if key == "" {
			return ""
		}
		return prefix + ":" + key
	}
}

// LocalLimiter is a process local Limiter built on one token bucket per key.
// It approximates a fixed window of RequestsPerWindow per Window.
type LocalLimiter struct {
	config   RateLimitConfig
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit

	mu          sync.Mutex
	lastCleanup time.Time
}

// NewLocalLimiter returns a LocalLimiter for config.
func NewLocalLimiter(config RateLimitConfig) *LocalLimiter {
	if config.Burst <= 0 {
		config.Burst = config.RequestsPerWindow
	}
	return &LocalLimiter{
		config:      config,
		rate:        rate.Limit(float64(config.RequestsPerWindow) / config.Window.Seconds()),
		lastCleanup: time.Now(),
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (Decision, error) {
	limiter := l.get(key)

	d := Decision{Limit: l.config.RequestsPerWindow}
	if limiter.Allow() {
		d.Allowed = true
		d.Remaining = int(limiter.Tokens())
		return d, nil
	}

	// Peek at when the next token lands without consuming it
	reservation := limiter.Reserve()
	d.RetryAfter = reservation.Delay()
	reservation.Cancel()
	return d, nil
}

func (l *LocalLimiter) get(key string) *rate.Limiter {
	if limiter, ok := l.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	actual, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.rate, l.config.Burst))
	l.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup drops limiters whose bucket has refilled, they carry no state
// worth keeping. Runs at most every five minutes.
func (l *LocalLimiter) maybeCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) < 5*time.Minute {
		return
	}
	l.lastCleanup = time.Now()

	l.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(l.config.Burst) {
			l.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitResponse is the 429 body. RetryAfter is in whole seconds.
type RateLimitResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RetryAfter       int    `json:"retryAfter"`
}

// RateLimit rejects requests the limiter refuses with 429. A limiter error
// (say the shared counter store is down) lets the request through: an outage
// of the abuse guard should not become an outage of the endpoint.
func RateLimit(limiter Limiter, keyExtractor KeyExtractor) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			key := keyExtractor(r)
			if key == "" {
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			d, err := limiter.Allow(ctx, key)
			if err != nil {
				log.Warn("rate limit: limiter unavailable, allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			if d.Allowed {
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := max(int((d.RetryAfter + time.Second - 1) / time.Second), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			log.Warn("rate limit exceeded",
				"key", key,
				"endpoint", r.URL.Path,
				"retry_after", retryAfter,
			)

			WriteJSON(w, http.StatusTooManyRequests, RateLimitResponse{
				Error:            "rate_limit_exceeded",
				ErrorDescription: "Too many requests. Please try again later.",
				RetryAfter:       retryAfter,
			})
		})
	}
}
