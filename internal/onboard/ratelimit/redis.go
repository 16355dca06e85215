// Package ratelimit provides Limiter backends shared across instances.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/onboard/internal/onboard/metrics"
	"github.com/aussiebroadwan/onboard/pkg/httpx"
)

// RedisLimiter is a fixed window counter in Redis. Every instance pointing at
// the same Redis shares the budget. Counts are approximate at window edges.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	config httpx.RateLimitConfig

	now func() time.Time
}

func NewRedisLimiter(client redis.UniversalClient, prefix string, config httpx.RateLimitConfig) *RedisLimiter {
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if prefix == "" {
		prefix = "onboard:ratelimit"
	}
	return &RedisLimiter{client: client, prefix: prefix, config: config, now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (httpx.Decision, error) {
	now := l.now()
	window := l.config.Window.Milliseconds()
	slot := now.UnixMilli() / window
	k := fmt.Sprintf("%s:%s:%d", l.prefix, key, slot)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.PExpire(ctx, k, l.config.Window)
		return nil
	})
	if err != nil {
		return httpx.Decision{}, fmt.Errorf("ratelimit: redis: %w", err)
	}

	count := int(incr.Val())
	d := httpx.Decision{
		Allowed:   count <= l.config.RequestsPerWindow,
		Limit:     l.config.RequestsPerWindow,
		Remaining: max(l.config.RequestsPerWindow-count, 0),
	}
	if !d.Allowed {
		d.RetryAfter = time.Duration((slot+1)*window-now.UnixMilli()) * time.Millisecond
	}
	return d, nil
}

// Counted records refusals from inner against route.
func Counted(route string, inner httpx.Limiter) httpx.Limiter {
	return httpx.LimiterFunc(func(ctx context.Context, key string) (httpx.Decision, error) {
		d, err := inner.Allow(ctx, key)
		if err == nil && !d.Allowed {
			metrics.RateLimited.WithLabelValues(route).Inc()
		}
		return d, err
	})
}
