package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"artvault/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var commentLimit = Limit{Name: "create_comment", Max: 2, Window: time.Minute}

func limiterWithRedis(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRateLimiter(rdb, "production"), mr
}

func TestRateLimiter_BypassedOutsideProduction(t *testing.T) {
	for _, env := range []string{"", "development", "TEST", "stress"} {
		l := NewRateLimiter(nil, env)
		for i := 0; i < 5; i++ {
			remaining, ok, err := l.Allow(context.Background(), commentLimit, "ip:1.2.3.4")
			require.NoError(t, err, env)
			assert.True(t, ok, env)
			assert.Equal(t, commentLimit.Max, remaining, env)
		}
	}
}

func TestRateLimiter_AllowCountsWindow(t *testing.T) {
	l, mr := limiterWithRedis(t)
	ctx := context.Background()

	var got []bool
	for i := 0; i < 3; i++ {
		_, ok, err := l.Allow(ctx, commentLimit, "user:9")
		require.NoError(t, err)
		got = append(got, ok)
	}
	assert.Equal(t, []bool{true, true, false}, got)
	assert.Equal(t, time.Minute, mr.TTL("rl:create_comment:user:9"))

	// Another caller has its own budget.
	_, ok, err := l.Allow(ctx, commentLimit, "user:10")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(time.Minute + time.Second)
	_, ok, err = l.Allow(ctx, commentLimit, "user:9")
	require.NoError(t, err)
	assert.True(t, ok, "budget resets after the window")
}

func TestRateLimiter_WithoutRedis(t *testing.T) {
	l := NewRateLimiter(nil, "production")
	_, ok, err := l.Allow(context.Background(), commentLimit, "ip:1.2.3.4")
	assert.ErrorIs(t, err, ErrLimiterUnavailable)
	assert.False(t, ok)

	tests := []struct {
		name   string
		limit  Limit
		status int
	}{
		{"fail open", commentLimit, http.StatusOK},
		{"fail closed", Limit{Name: "signup", Max: 1, Window: time.Minute, FailClosed: true}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Post("/x", l.Handler(tt.limit), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
			resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/x", nil))
			require.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestRateLimiter_Handler(t *testing.T) {
	l, mr := limiterWithRedis(t)

	app := fiber.New()
	app.Post("/api/posts/:id/comments", func(c *fiber.Ctx) error {
		c.Locals("userID", uint(3))
		return c.Next()
	}, l.Handler(commentLimit), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	send := func() *http.Response {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/posts/1/comments", nil))
		require.NoError(t, err)
		return resp
	}

	first := send()
	_ = first.Body.Close()
	assert.Equal(t, http.StatusCreated, first.StatusCode)
	assert.Equal(t, "2", first.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header.Get("X-RateLimit-Remaining"))

	_ = send().Body.Close()

	limited := send()
	defer func() { _ = limited.Body.Close() }()
	assert.Equal(t, http.StatusTooManyRequests, limited.StatusCode)
	assert.Equal(t, "60", limited.Header.Get(fiber.HeaderRetryAfter))
	assert.Equal(t, "0", limited.Header.Get("X-RateLimit-Remaining"))

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(limited.Body).Decode(&body))
	assert.Equal(t, CodeRateLimited, body.Code)
	assert.Equal(t, "Too many create comment requests, try again later", body.Error)

	assert.Equal(t, []string{"rl:create_comment:user:3"}, mr.Keys())
}
