package httpx_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/onboard/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/users", nil)
	req.RemoteAddr = ip + ":12345"
	return req
}

func TestStaticKeyExtractor(t *testing.T) {
	req := requestFrom("192.168.1.1")

	static := httpx.StaticKeyExtractor("users", httpx.IPKeyExtractor)
	require.Equal(t, "users:192.168.1.1", static(req))

	empty := httpx.StaticKeyExtractor("users", func(*http.Request) string { return "" })
	require.Empty(t, empty(req))
}

func TestRateLimitLocal(t *testing.T) {
	t.Run("blocks requests over limit", func(t *testing.T) {
		limiter := httpx.NewLocalLimiter(httpx.RateLimitConfig{RequestsPerWindow: 3, Window: time.Minute, Burst: 3})
		h := httpx.RateLimit(limiter, httpx.IPKeyExtractor)(okHandler())

		for i := range 3 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, requestFrom("192.168.1.1"))
			require.Equal(t, http.StatusOK, rec.Code, "request %d should succeed", i+1)
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("192.168.1.1"))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.NotEmpty(t, rec.Header().Get("Retry-After"))

		var body httpx.RateLimitResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "rate_limit_exceeded", body.Error)
		require.GreaterOrEqual(t, body.RetryAfter, 1)
	})

	t.Run("different keys are tracked separately", func(t *testing.T) {
		limiter := httpx.NewLocalLimiter(httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1})
		h := httpx.RateLimit(limiter, httpx.IPKeyExtractor)(okHandler())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("192.168.1.1"))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("192.168.1.1"))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, requestFrom("192.168.1.2"))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rotating X-Forwarded-For does not reset the budget", func(t *testing.T) {
		limiter := httpx.NewLocalLimiter(httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2})
		tp, err := httpx.NewTrustedProxies(nil)
		require.NoError(t, err)
		h := httpx.RateLimit(limiter, tp.ClientIP)(okHandler())

		codes := map[int]int{}
		for i := range 10 {
			req := requestFrom("198.51.100.7")
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			codes[rec.Code]++
		}
		require.Equal(t, map[int]int{http.StatusOK: 2, http.StatusTooManyRequests: 8}, codes)
	})
}

func TestRateLimit_InjectedLimiter(t *testing.T) {
	t.Run("retry after is rounded up to whole seconds", func(t *testing.T) {
		deny := httpx.LimiterFunc(func(context.Context, string) (httpx.Decision, error) {
			return httpx.Decision{Allowed: false, Limit: 5, RetryAfter: 2500 * time.Millisecond}, nil
		})

		rec := httptest.NewRecorder()
		httpx.RateLimit(deny, httpx.IPKeyExtractor)(okHandler()).ServeHTTP(rec, requestFrom("10.0.0.1"))

		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.Equal(t, "3", rec.Header().Get("Retry-After"))
		require.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	})

	t.Run("limiter errors fail open", func(t *testing.T) {
		broken := httpx.LimiterFunc(func(context.Context, string) (httpx.Decision, error) {
			return httpx.Decision{}, errors.New("redis: connection refused")
		})

		rec := httptest.NewRecorder()
		httpx.RateLimit(broken, httpx.IPKeyExtractor)(okHandler()).ServeHTTP(rec, requestFrom("10.0.0.1"))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("empty key is allowed", func(t *testing.T) {
		var calls int
		counting := httpx.LimiterFunc(func(context.Context, string) (httpx.Decision, error) {
			calls++
			return httpx.Decision{}, nil
		})

		rec := httptest.NewRecorder()
		httpx.RateLimit(counting, func(*http.Request) string { return "" })(okHandler()).ServeHTTP(rec, requestFrom("10.0.0.1"))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Zero(t, calls, "limiter should not be consulted without a key")
	})
}

func TestRateLimitProfiles(t *testing.T) {
	for name, config := range map[string]httpx.RateLimitConfig{
		"strict":   httpx.StrictLimit,
		"moderate": httpx.ModerateLimit,
	} {
		t.Run(name, func(t *testing.T) {
			require.Positive(t, config.RequestsPerWindow)
			require.Positive(t, config.Window)
			require.Positive(t, config.Burst)
		})
	}

	require.Less(t, httpx.StrictLimit.RequestsPerWindow, httpx.ModerateLimit.RequestsPerWindow)
}
