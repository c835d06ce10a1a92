package drivers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/creastat/quizstore/session"
)

// MongoConfig holds MongoDB connection configuration.
type MongoConfig struct {
	URI                    string
	ServerSelectionTimeout time.Duration // Default: 5 seconds
}

// Mongo returns a dialer that connects a MongoDB client and pings the primary.
func Mongo(cfg MongoConfig) session.Dialer[*mongo.Client] {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.ServerSelectionTimeout == 0 {
		cfg.ServerSelectionTimeout = defaultConnectTimeout
	}

	return func(ctx context.Context) (*mongo.Client, error) {
		opts := options.Client().
			ApplyURI(cfg.URI).
			SetServerSelectionTimeout(cfg.ServerSelectionTimeout)

		client, err := mongo.Connect(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to connect mongo: %w", err)
		}

		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("failed to ping mongo: %w", err)
		}
		return client, nil
	}
}

// IsMongoTransport reports whether err means the MongoDB client lost its
// servers. Write and command errors from a reachable server are not transport
// errors.
func IsMongoTransport(err error) bool {
	if err == nil || isContextErr(err) {
		return false
	}
	if errors.Is(err, mongo.ErrClientDisconnected) {
		return true
	}
	return mongo.IsNetworkError(err) || mongo.IsTimeout(err)
}
