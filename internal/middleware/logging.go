package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is the process-wide structured logger. It starts from the process
// environment; ConfigureLogger rebuilds it once configuration is loaded.
var Logger = NewLogger(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"), os.Stdout)

// ConfigureLogger replaces Logger with one for the loaded environment and
// level. Call it before serving.
func ConfigureLogger(env, level string) {
	Logger = NewLogger(env, level, os.Stdout)
}

type contextKey string

// Context keys copied onto every record logged with a *Context method.
const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
	TraceIDKey   contextKey = "trace_id"
)

// NewLogger builds a logger writing JSON in production and text elsewhere.
// level is one of debug, info, warn or error; anything else means info.
func NewLogger(env, level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var base slog.Handler
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod":
		base = slog.NewJSONHandler(w, opts)
	default:
		base = slog.NewTextHandler(w, opts)
	}
	return slog.New(requestScoped{base})
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// requestScoped stamps request, user and trace identifiers from ctx onto records.
type requestScoped struct {
	slog.Handler
}

func (h requestScoped) Handle(ctx context.Context, r slog.Record) error {
	if v, ok := ctx.Value(RequestIDKey).(string); ok && v != "" {
		r.AddAttrs(slog.String(string(RequestIDKey), v))
	}
	if v, ok := ctx.Value(UserIDKey).(uint); ok && v != 0 {
		r.AddAttrs(slog.Uint64(string(UserIDKey), uint64(v)))
	}
	if v, ok := ctx.Value(TraceIDKey).(string); ok && v != "" {
		r.AddAttrs(slog.String(string(TraceIDKey), v))
	}
	return h.Handler.Handle(ctx, r)
}

func (h requestScoped) WithAttrs(attrs []slog.Attr) slog.Handler {
	return requestScoped{h.Handler.WithAttrs(attrs)}
}

func (h requestScoped) WithGroup(name string) slog.Handler {
	return requestScoped{h.Handler.WithGroup(name)}
}

// ContextMiddleware moves the request ID, trace ID and authenticated user
// from Fiber locals into the user context so service code can log with them.
// Auth handlers add the user ID themselves once a token is verified.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if rid, ok := c.Locals("requestid").(string); ok {
			ctx = context.WithValue(ctx, RequestIDKey, rid)
		}
		if tid, ok := c.Locals("traceID").(string); ok {
			ctx = context.WithValue(ctx, TraceIDKey, tid)
		}
		if uid, ok := c.Locals("userID").(uint); ok {
			ctx = context.WithValue(ctx, UserIDKey, uid)
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// StructuredLogger logs one line per request. Server errors log at error
// level, client errors at warn. Successful requests to quiet paths (probes,
// the metrics scrape) are only logged at debug.
func StructuredLogger(quiet ...string) fiber.Handler {
	skip := make(map[string]struct{}, len(quiet))
	for _, p := range quiet {
		skip[p] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}

		attrs := []slog.Attr{
			slog.String("method", c.Method()),
			slog.String("route", route),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			slog.Int("bytes", len(c.Response().Body())),
			slog.String("ip", c.IP()),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}

		level := slog.LevelInfo
		switch {
		case status >= fiber.StatusInternalServerError:
			level = slog.LevelError
		case status >= fiber.StatusBadRequest:
			level = slog.LevelWarn
		default:
			if _, ok := skip[c.Path()]; ok {
				level = slog.LevelDebug
			}
		}
		Logger.LogAttrs(c.UserContext(), level, "http request", attrs...)
		return err
	}
}
