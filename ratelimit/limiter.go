// Package ratelimit admits at most Quota requests per identifier in a fixed
// window that opens on the identifier's first request.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/creastat/quizstore/session"
)

const (
	DefaultQuota  = 5
	DefaultWindow = 60 * time.Second
)

// checkScript is the read-then-increment step run atomically on the server.
// A plain GET followed by INCR lets concurrent requests from one identifier
// all read the same count and overshoot the quota; inside one script they
// cannot interleave.
//
// KEYS[1] identifier, ARGV[1] quota, ARGV[2] window in seconds.
// Returns 1 when admitted, 0 when rejected.
var checkScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
	redis.call('SET', KEYS[1], 1, 'EX', ARGV[2])
	return 1
end
if redis.call('TTL', KEYS[1]) == -1 then
	redis.call('EXPIRE', KEYS[1], ARGV[2])
end
if tonumber(current) < tonumber(ARGV[1]) then
	redis.call('INCR', KEYS[1])
	return 1
end
return 0
`)

// Checker decides whether a request from identifier may proceed.
type Checker interface {
	Check(ctx context.Context, identifier string) (bool, error)
}

// Config holds rate limit configuration
type Config struct {
	Quota  int           // Default: 5
	Window time.Duration // Default: 60 seconds, whole seconds only
	Logger logrus.FieldLogger
}

// Limiter is a fixed-window rate limiter backed by Redis.
type Limiter struct {
	provider *session.Provider[*redis.Client]
	quota    int
	window   int64
	logger   logrus.FieldLogger
}

// New creates a Limiter on the given Redis provider.
func New(provider *session.Provider[*redis.Client], cfg Config) *Limiter {
	if cfg.Quota <= 0 {
		cfg.Quota = DefaultQuota
	}
	if cfg.Window < time.Second {
		cfg.Window = DefaultWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	return &Limiter{
		provider: provider,
		quota:    cfg.Quota,
		window:   int64(cfg.Window / time.Second),
		logger:   cfg.Logger,
	}
}

// Check admits the request when identifier has used fewer than Quota requests
// in its current window, counting this one. A rejected request does not count.
// Errors from Redis are returned; the caller decides how to fail.
func (l *Limiter) Check(ctx context.Context, identifier string) (bool, error) {
	admitted, err := session.Retry(ctx, l.provider, func(ctx context.Context, client *redis.Client) (int64, error) {
		return checkScript.Run(ctx, client, []string{identifier}, l.quota, l.window).Int64()
	})
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if admitted == 0 {
		l.logger.WithField("client", identifier).Debug("rate limit exceeded")
		return false, nil
	}
	return true, nil
}

// Compile-time check that Limiter implements Checker
var _ Checker = (*Limiter)(nil)
