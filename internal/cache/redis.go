// Package cache holds the shared Redis client, cache-aside reads and the
// key inventory used for invalidation.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"artvault/internal/observability"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

var client *redis.Client

// errorCounter counts failed commands per command name. redis.Nil is a miss,
// not a failure.
type errorCounter struct{}

func (errorCounter) DialHook(next redis.DialHook) redis.DialHook { return next }

func (errorCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		return countFailure(cmd.Name(), next(ctx, cmd))
	}
}

func (errorCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		return countFailure("pipeline", next(ctx, cmds))
	}
}

func countFailure(name string, err error) error {
	if err != nil && !errors.Is(err, redis.Nil) {
		observability.RedisErrorRate.WithLabelValues(name).Inc()
	}
	return err
}

// Connect dials Redis at target, either a redis:// URL or a bare host:port,
// and pings it.
func Connect(ctx context.Context, target string) (*redis.Client, error) {
	opts := &redis.Options{Addr: target}
	if strings.Contains(target, "://") {
		parsed, err := redis.ParseURL(target)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// SetClient installs c as the package client and counts its failed
// commands. nil turns caching off.
func SetClient(c *redis.Client) {
	if c != nil {
		c.AddHook(errorCounter{})
	}
	client = c
}

// Client returns the package client, nil when Redis is not configured.
func Client() *redis.Client {
	return client
}

// Aside implements cache-aside for JSON-encodable values. On a hit dest is
// filled from Redis; on a miss fetch fills dest and the result is stored for
// ttl. Redis failures fall through to fetch.
func Aside(ctx context.Context, key string, dest interface{}, ttl time.Duration, fetch func() error) error {
	family := keyFamily(key)
	if client == nil {
		return fetch()
	}

	raw, err := client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			observability.CacheLookups.WithLabelValues(family, "hit").Inc()
			return nil
		}
		client.Del(ctx, key)
	case errors.Is(err, redis.Nil):
	default:
		observability.CacheLookups.WithLabelValues(family, "error").Inc()
		return fetch()
	}

	observability.CacheLookups.WithLabelValues(family, "miss").Inc()
	if err := fetch(); err != nil {
		return err
	}
	if payload, err := json.Marshal(dest); err == nil {
		client.Set(ctx, key, payload, ttl)
	}
	return nil
}

func keyFamily(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
