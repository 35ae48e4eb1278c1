package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"artvault/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// CodeRateLimited is the error code of a 429 response.
const CodeRateLimited = "RATE_LIMITED"

// ErrLimiterUnavailable is returned when counting needs Redis and none is configured.
var ErrLimiterUnavailable = errors.New("rate limiter: redis not configured")

// Limit is a fixed-window budget for one named action.
type Limit struct {
	Name   string
	Max    int
	Window time.Duration
	// FailClosed rejects requests with 503 when the counter store is down
	// instead of letting them through.
	FailClosed bool
}

// RateLimiter counts requests per caller in Redis under rl:<action>:<caller>.
type RateLimiter struct {
	rdb    *redis.Client
	bypass bool
}

// NewRateLimiter returns a limiter backed by rdb. Limits are not enforced
// when env is development, test or stress (empty counts as development).
func NewRateLimiter(rdb *redis.Client, env string) *RateLimiter {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "development", "test", "stress":
		return &RateLimiter{rdb: rdb, bypass: true}
	}
	return &RateLimiter{rdb: rdb}
}

// Allow records one hit by caller against limit and reports how many hits
// remain in the current window.
func (l *RateLimiter) Allow(ctx context.Context, limit Limit, caller string) (remaining int, ok bool, err error) {
	if l.bypass {
		return limit.Max, true, nil
	}
	if l.rdb == nil {
		return 0, false, ErrLimiterUnavailable
	}

	key := "rl:" + limit.Name + ":" + caller
	hits, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, false, err
	}
	if hits == 1 {
		if err := l.rdb.Expire(ctx, key, limit.Window).Err(); err != nil {
			return 0, false, err
		}
	}
	remaining = limit.Max - int(hits)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, hits <= int64(limit.Max), nil
}

// Handler enforces limit per authenticated user, falling back to client IP.
func (l *RateLimiter) Handler(limit Limit) fiber.Handler {
	retryAfter := strconv.Itoa(int(limit.Window.Seconds()))
	return func(c *fiber.Ctx) error {
		caller := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
			caller = "user:" + strconv.FormatUint(uint64(uid), 10)
		}

		remaining, ok, err := l.Allow(c.UserContext(), limit, caller)
		if err != nil {
			if !limit.FailClosed {
				return c.Next()
			}
			Logger.WarnContext(c.UserContext(), "rate limiter unavailable, rejecting",
				"limit", limit.Name, "error", err)
			return models.RespondWithAppError(c, models.NewUnavailableError("rate limiter", err))
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(limit.Max))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			c.Set(fiber.HeaderRetryAfter, retryAfter)
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many " + strings.ReplaceAll(limit.Name, "_", " ") + " requests, try again later",
				Code:  CodeRateLimited,
			})
		}
		return c.Next()
	}
}
