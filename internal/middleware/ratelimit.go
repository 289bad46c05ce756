package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/enrollment-lottery/internal/config"
)

// fixedWindow increments the counter of the current window and sets its
// expiry on first use.  It returns the count and the window's remaining
// time to live in milliseconds.
var fixedWindow = redis.NewScript(`
	local n = redis.call('INCR', KEYS[1])
	if n == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	return { n, ttl }
`)

// RateLimit limits each subject to cfg.Limit requests per cfg.Window on a
// route.  With rate limiting disabled or no Redis client it is a no-op,
// and Redis errors let the request through.
func RateLimit(cfg config.RateLimitConfig, rdb redis.Scripter, log *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if log == nil {
		log = slog.Default()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			ctx := c.Request().Context()
			vals, err := fixedWindow.Run(ctx, rdb, []string{key}, cfg.Window.Milliseconds()).Int64Slice()
			if err != nil || len(vals) != 2 {
				log.WarnContext(ctx, "rate limiter unavailable", slog.String("key", key), slog.Any("err", err))
				return next(c)
			}
			count, ttl := vals[0], time.Duration(vals[1])*time.Millisecond

			remaining := int64(cfg.Limit) - count
			if remaining < 0 {
				remaining = 0
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(cfg.Limit) {
				secs := int((ttl + time.Second - 1) / time.Second)
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

// rateKey scopes the counter to the subject (or client IP when anonymous)
// and the route.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	who := Subject(c)
	if who == "" {
		who = "ip:" + c.RealIP()
	}
	route := c.Request().Method + " " + c.Path()
	return strings.Join([]string{cfg.Prefix, who, route}, ":")
}
