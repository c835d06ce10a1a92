package drivers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/creastat/quizstore/session"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration // Default: 5 seconds
}

// Redis returns a dialer that creates a Redis client and pings it.
func Redis(cfg RedisConfig) session.Dialer[*redis.Client] {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultConnectTimeout
	}

	return func(ctx context.Context) (*redis.Client, error) {
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Addr,
			Password:    cfg.Password,
			DB:          cfg.DB,
			DialTimeout: cfg.DialTimeout,
		})

		ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		return client, nil
	}
}

// IsRedisTransport reports whether err means the Redis connection is gone.
// redis.Nil and server replies such as WRONGTYPE are not transport errors.
func IsRedisTransport(err error) bool {
	if err == nil || isContextErr(err) || errors.Is(err, redis.Nil) {
		return false
	}
	if errors.Is(err, redis.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
