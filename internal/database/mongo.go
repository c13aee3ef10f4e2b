package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/accord/internal/config"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var ErrMongoNotReady = errors.New("mongo is not ready")

// ConnectMongo dials the document store, retrying until it answers a ping.
func ConnectMongo(ctx context.Context, cfg *config.MongoConfig, logger *slog.Logger) (*mongo.Client, error) {
	var lastErr error
	attempts := max(cfg.RetryAttempts, 1)
	for attempt := range attempts {
		client, err := mongo.Connect(
			options.Client().
				ApplyURI(cfg.URI).
				SetConnectTimeout(cfg.ConnectTimeout).
				SetRetryWrites(true).
				SetRetryReads(true),
		)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
			err = client.Ping(pingCtx, nil)
			cancel()
			if err == nil {
				logger.Info("mongo connection established", slog.String("database", cfg.Database))
				return client, nil
			}
			_ = client.Disconnect(context.Background())
		}
		lastErr = err

		logger.Warn("mongo connection attempt failed",
			slog.Int("attempt", attempt+1),
			slog.Any("error", err),
		)

		if attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrMongoNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrMongoNotReady, lastErr)
}
