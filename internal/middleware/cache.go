package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/foxshrine/shrine-api/internal/config"
)

// cachedResponse is the Redis payload for one cached response.
type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// bodyRecorder captures the response body while forwarding it to the
// client. Bodies past the limit set overflowed and are not buffered
// further; an overflowed response must not be cached.
type bodyRecorder struct {
	http.ResponseWriter
	status     int
	buf        bytes.Buffer
	limit      int
	overflowed bool
}

func (w *bodyRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	if w.limit > 0 && w.buf.Len()+len(b) > w.limit {
		w.overflowed = true
	}
	if !w.overflowed {
		w.buf.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

// ResponseCache caches successful responses of the configured methods in
// Redis, keyed by route and query string. Only anonymous requests are
// served from cache: authenticated config reads carry per-user fields and
// trigger audit entries, so they always hit the handlers.
func ResponseCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			if c.Request().Header.Get("Authorization") != "" {
				return next(c)
			}

			key := cacheKey(cfg.Prefix, c)
			ctx := c.Request().Context()

			if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
				var cached cachedResponse
				if json.Unmarshal(raw, &cached) == nil {
					c.Response().Header().Set(echo.HeaderContentType, cached.ContentType)
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(cached.Status)
					_, _ = c.Response().Write(cached.Body)
					return nil
				}
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}

			if rec.status == http.StatusOK && !rec.overflowed {
				payload, err := json.Marshal(cachedResponse{
					Status:      rec.status,
					ContentType: c.Response().Header().Get(echo.HeaderContentType),
					Body:        rec.buf.Bytes(),
				})
				if err == nil {
					_ = rdb.SetEx(context.Background(), key, payload, cfg.TTL).Err()
				}
			}
			return nil
		}
	}
}

// cacheKey hashes the concrete request path, not the route pattern, so
// parameterized routes get one entry per parameter value.
func cacheKey(prefix string, c echo.Context) string {
	sum := sha1.Sum([]byte(c.Request().URL.Path + "?" + c.Request().URL.RawQuery))
	return fmt.Sprintf("%s:%x", prefix, sum)
}
