package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/foxshrine/shrine-api/internal/config"
)

// tokenBucketScript refills and takes from a per-key bucket atomically.
// Returns {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])
	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	local elapsed = math.max(0, now_ms - last_refill)
	local intervals = math.floor(elapsed / interval_ms)
	if intervals > 0 then
		tokens = math.min(capacity, tokens + (intervals * refill_tokens))
		last_refill = last_refill + (intervals * interval_ms)
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)
	return { allowed, tokens, retry_after_ms }
`)

// RateLimit returns a Redis token-bucket limiter keyed by client IP and
// route. Disabled config or a nil Redis client yields a pass-through, and
// Redis errors fail open: limiting is a guard, not a dependency.
func RateLimit(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			key := cfg.Prefix + ":" + ip + ":" + c.Request().Method + ":" + c.Path()

			vals, err := tokenBucketScript.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL/time.Second),
			).Int64Slice()
			if err != nil || len(vals) != 3 {
				return next(c)
			}
			allowed, remaining, retryMs := vals[0] == 1, vals[1], vals[2]

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if !allowed {
				secs := int(math.Ceil(float64(retryMs) / 1000.0))
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"success":    false,
					"message":    "rate limit exceeded",
					"retryAfter": secs,
				})
			}
			return next(c)
		}
	}
}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error { return next(c) }
}
