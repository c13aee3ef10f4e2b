package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/accord/internal/config"
	"github.com/redis/go-redis/v9"
)

var ErrRedisNotReady = errors.New("redis is not ready")

// ConnectRedis parses REDIS_URL and retries until the server answers a ping.
func ConnectRedis(ctx context.Context, cfg *config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout*time.Duration(max(cfg.RetryAttempts, 1))+cfg.RetryInterval)
	defer cancel()

	var lastErr error
	attempts := max(cfg.RetryAttempts, 1)
	for attempt := range attempts {
		client := redis.NewClient(opts)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			logger.Info("redis connection established", slog.String("addr", opts.Addr))
			return client, nil
		}
		_ = client.Close()

		logger.Warn("redis connection attempt failed",
			slog.Int("attempt", attempt+1),
			slog.Any("error", lastErr),
		)

		if attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrRedisNotReady, lastErr)
}
