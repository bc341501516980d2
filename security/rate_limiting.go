package security

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis  redis.Cmdable
	limit  int64
	window time.Duration
}

func NewRateLimiter(redisClient redis.Cmdable, perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	return &RateLimiter{redis: redisClient, limit: int64(perMinute), window: time.Minute}
}

// Limit applies a fixed-window request limit per client IP to the routes of one scope.
// Redis failures let the request through.
func (r *RateLimiter) Limit(scope string) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		ctx := e.Request.Context()
		key := fmt.Sprintf("ratelimit:%s:%s", scope, clientIP(e.Request))

		count, err := r.redis.Incr(ctx, key).Result()
		if err != nil {
			slog.Warn("Rate limiter unavailable", "error", err, "scope", scope)
			return e.Next()
		}
		if count == 1 {
			r.redis.Expire(ctx, key, r.window)
		}
		if count > r.limit {
			e.Response.Header().Set("Retry-After", fmt.Sprintf("%d", int(r.window.Seconds())))
			return deny(e, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
		}

		return e.Next()
	}
}

// AntiBot rejects clients that announce themselves as crawlers.
func (r *RateLimiter) AntiBot() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if isSuspiciousUserAgent(e.Request.Header.Get("User-Agent")) {
			return deny(e, http.StatusForbidden, "Access denied")
		}
		return e.Next()
	}
}

// clientIP is the peer address of the request without its port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isSuspiciousUserAgent(ua string) bool {
	if ua == "" {
		return true
	}
	ua = strings.ToLower(ua)
	for _, pattern := range []string{"bot", "crawler", "spider", "scraper"} {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
