package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisRateLimitWindow = time.Second

// RedisRateLimit returns middleware enforcing a fixed-window limit shared
// across all instances. Each request INCRs a per-key counter; the first hit
// in a window sets its expiry. Counts above the per-second allowance get 429.
// The burst allowance only applies to the in-process limiter; the shared
// window is strict.
//
// When Redis is unreachable requests pass through, so a cache outage slows
// nothing down.
func RedisRateLimit(client *redis.Client, cfg RateLimitConfig, logger zerolog.Logger) echo.MiddlewareFunc {
	limit := int64(cfg.RequestsPerSecond)
	if limit < 1 {
		limit = 1
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := "rl:" + rateLimitKey(c)

			count, err := client.Incr(ctx, key).Result()
			if err != nil {
				logger.Warn().Err(err).Msg("rate limit store unavailable")
				return next(c)
			}
			if count == 1 {
				if err := client.Expire(ctx, key, redisRateLimitWindow).Err(); err != nil {
					logger.Warn().Err(err).Msg("rate limit expiry failed")
				}
			}

			c.Response().Header().Set("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
			if count > limit {
				c.Response().Header().Set("Retry-After", "1")
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}

			remaining := limit - count
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			return next(c)
		}
	}
}
