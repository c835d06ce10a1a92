package docstore

import (
	"github.com/sirupsen/logrus"

	"github.com/creastat/quizstore/session/drivers"
)

// StoreOption is a functional option for configuring a document store.
type StoreOption func(*StoreConfig)

// StoreConfig holds configuration for every document store type. Each type
// reads only its own fields.
type StoreConfig struct {
	Mongo         drivers.MongoConfig
	MongoDatabase string // Default: ramayanquiz

	Supabase      drivers.SupabaseConfig
	SupabaseTable string // Default: question_documents

	Logger logrus.FieldLogger
}

// WithMongo sets the MongoDB connection and database.
func WithMongo(cfg drivers.MongoConfig, database string) StoreOption {
	return func(c *StoreConfig) {
		c.Mongo = cfg
		c.MongoDatabase = database
	}
}

// WithSupabase sets the Supabase project and table.
func WithSupabase(cfg drivers.SupabaseConfig, table string) StoreOption {
	return func(c *StoreConfig) {
		c.Supabase = cfg
		c.SupabaseTable = table
	}
}

// WithLogger sets the logger used by the store.
func WithLogger(logger logrus.FieldLogger) StoreOption {
	return func(c *StoreConfig) {
		c.Logger = logger
	}
}
