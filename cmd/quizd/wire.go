package main

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/creastat/quizstore/cache"
	"github.com/creastat/quizstore/config"
	"github.com/creastat/quizstore/docstore"
	_ "github.com/creastat/quizstore/docstore/mongo"
	_ "github.com/creastat/quizstore/docstore/supabase"
	"github.com/creastat/quizstore/postgres"
	"github.com/creastat/quizstore/queue"
	"github.com/creastat/quizstore/quiz"
	"github.com/creastat/quizstore/session"
	"github.com/creastat/quizstore/session/drivers"
)

// app holds every dependency of the service. Connections are made lazily,
// so building it never touches the network.
type app struct {
	store     *postgres.Client
	docs      docstore.Store
	publisher *queue.AMQPPublisher
	redis     *session.Provider[*redis.Client]
	service   *quiz.Service
}

func newApp(cfg *config.Config, logger *logrus.Logger) (*app, error) {
	store, err := postgres.New(postgres.Config{
		PostgresConfig: drivers.PostgresConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Name,
			SSLMode:  cfg.Postgres.SSLMode,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	docs, err := docstore.NewStore(docstore.StoreType(cfg.DocStore.Type),
		docstore.WithMongo(drivers.MongoConfig{URI: cfg.DocStore.Mongo.URI}, cfg.DocStore.Mongo.Database),
		docstore.WithSupabase(drivers.SupabaseConfig{
			URL:    cfg.DocStore.Supabase.URL,
			APIKey: cfg.DocStore.Supabase.Key,
		}, cfg.DocStore.Supabase.Table),
		docstore.WithLogger(logger),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create document store: %w", err)
	}

	publisher := queue.New(queue.Config{
		AMQPConfig: drivers.AMQPConfig{URL: cfg.AMQP.URL},
		Logger:     logger,
	})

	redisProvider := session.New("redis", drivers.Redis(drivers.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}),
		session.WithClassifier(drivers.IsRedisTransport),
		session.WithLogger(logger),
	)

	service := quiz.New(store, docs, publisher, cache.NewRedis(redisProvider, ""), quiz.Config{
		CacheTTL: cfg.Cache.TTL,
		Logger:   logger,
	})

	return &app{
		store:     store,
		docs:      docs,
		publisher: publisher,
		redis:     redisProvider,
		service:   service,
	}, nil
}

func (a *app) Close() error {
	return errors.Join(
		a.store.Close(),
		a.docs.Close(),
		a.publisher.Close(),
		a.redis.Close(),
	)
}
