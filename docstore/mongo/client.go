// Package mongo stores question documents in MongoDB.
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/creastat/quizstore"
	"github.com/creastat/quizstore/docstore"
	"github.com/creastat/quizstore/session"
	"github.com/creastat/quizstore/session/drivers"
)

const (
	defaultDatabase = "ramayanquiz"
	collectionName  = "questions"
)

func init() {
	docstore.Register(docstore.StoreTypeMongo, func(cfg docstore.StoreConfig) (docstore.Store, error) {
		return New(Config{
			MongoConfig: cfg.Mongo,
			Database:    cfg.MongoDatabase,
			Logger:      cfg.Logger,
		})
	})
}

// Config holds MongoDB connection configuration
type Config struct {
	drivers.MongoConfig
	Database string             // Default: ramayanquiz
	Logger   logrus.FieldLogger // Default: logrus standard logger
}

// Client implements docstore.Store for MongoDB
type Client struct {
	provider *session.Provider[*mongo.Client]
	database string
	now      func() time.Time
}

// document is the BSON form of docstore.Document. Optional fields are stored
// as null rather than omitted.
type document struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Question   string             `bson:"question"`
	Kanda      *string            `bson:"kanda"`
	Tags       []string           `bson:"tags"`
	Difficulty *string            `bson:"difficulty"`
	Answers    []answer           `bson:"answers"`
	CreatedAt  time.Time          `bson:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at"`
}

type answer struct {
	Answer    string `bson:"answer"`
	IsCorrect bool   `bson:"is_correct"`
}

// New creates a new MongoDB client. The connection is made on first use.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	provider := session.New("mongo", drivers.Mongo(cfg.MongoConfig),
		session.WithClassifier(drivers.IsMongoTransport),
		session.WithLogger(cfg.Logger),
	)
	return NewWithProvider(provider, cfg.Database), nil
}

// NewWithProvider creates a client on an existing session provider.
func NewWithProvider(provider *session.Provider[*mongo.Client], database string) *Client {
	if database == "" {
		database = defaultDatabase
	}
	return &Client{
		provider: provider,
		database: database,
		now:      time.Now,
	}
}

func (c *Client) collection(client *mongo.Client) *mongo.Collection {
	return client.Database(c.database).Collection(collectionName)
}

// CreateQuestion implements docstore.Store.
func (c *Client) CreateQuestion(ctx context.Context, q quizstore.Question) (string, error) {
	doc := toBSON(docstore.NewDocument(q, c.now()))

	return session.Retry(ctx, c.provider, func(ctx context.Context, client *mongo.Client) (string, error) {
		res, err := c.collection(client).InsertOne(ctx, doc)
		if err != nil {
			return "", fmt.Errorf("failed to insert document: %w", err)
		}
		return idString(res.InsertedID), nil
	})
}

// CreateQuestionsBulk implements docstore.Store.
func (c *Client) CreateQuestionsBulk(ctx context.Context, questions []quizstore.Question) ([]string, error) {
	if len(questions) == 0 {
		return []string{}, nil
	}

	now := c.now()
	docs := make([]any, len(questions))
	for i, q := range questions {
		docs[i] = toBSON(docstore.NewDocument(q, now))
	}

	return session.Retry(ctx, c.provider, func(ctx context.Context, client *mongo.Client) ([]string, error) {
		res, err := c.collection(client).InsertMany(ctx, docs)
		if err != nil {
			return nil, fmt.Errorf("failed to insert documents: %w", err)
		}
		ids := make([]string, len(res.InsertedIDs))
		for i, id := range res.InsertedIDs {
			ids[i] = idString(id)
		}
		return ids, nil
	})
}

// GetQuestions implements docstore.Store.
func (c *Client) GetQuestions(ctx context.Context, limit, offset int) ([]docstore.Document, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(offset))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	return session.Retry(ctx, c.provider, func(ctx context.Context, client *mongo.Client) ([]docstore.Document, error) {
		cursor, err := c.collection(client).Find(ctx, bson.D{}, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to find documents: %w", err)
		}

		var found []document
		if err := cursor.All(ctx, &found); err != nil {
			return nil, fmt.Errorf("failed to decode documents: %w", err)
		}

		docs := make([]docstore.Document, len(found))
		for i, d := range found {
			docs[i] = fromBSON(d)
		}
		return docs, nil
	})
}

// UpdateDifficulty implements docstore.Store.
func (c *Client) UpdateDifficulty(ctx context.Context, question string, difficulty quizstore.Difficulty) (int64, error) {
	filter := bson.D{{Key: "question", Value: question}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "difficulty", Value: optional(string(difficulty))},
		{Key: "updated_at", Value: c.now().UTC()},
	}}}

	return session.Retry(ctx, c.provider, func(ctx context.Context, client *mongo.Client) (int64, error) {
		res, err := c.collection(client).UpdateMany(ctx, filter, update)
		if err != nil {
			return 0, fmt.Errorf("failed to update difficulty: %w", err)
		}
		return res.ModifiedCount, nil
	})
}

// CreateCollections creates the questions collection.
func (c *Client) CreateCollections(ctx context.Context) error {
	return session.Do(ctx, c.provider, func(ctx context.Context, client *mongo.Client) error {
		if err := client.Database(c.database).CreateCollection(ctx, collectionName); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		return nil
	})
}

// DropCollections drops every collection this store writes to.
func (c *Client) DropCollections(ctx context.Context) error {
	return session.Do(ctx, c.provider, func(ctx context.Context, client *mongo.Client) error {
		if err := c.collection(client).Drop(ctx); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
		return nil
	})
}

// Health implements docstore.Store.
func (c *Client) Health(ctx context.Context) error {
	return session.Do(ctx, c.provider, func(ctx context.Context, client *mongo.Client) error {
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			return fmt.Errorf("failed to ping mongo: %w", err)
		}
		return nil
	})
}

// Close implements docstore.Store.
func (c *Client) Close() error {
	return c.provider.Close()
}

func toBSON(d docstore.Document) document {
	answers := make([]answer, len(d.Answers))
	for i, a := range d.Answers {
		answers[i] = answer{Answer: a.Answer, IsCorrect: a.IsCorrect}
	}
	return document{
		Question:   d.Question,
		Kanda:      optional(string(d.Kanda)),
		Tags:       d.Tags,
		Difficulty: optional(string(d.Difficulty)),
		Answers:    answers,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func fromBSON(d document) docstore.Document {
	answers := make([]docstore.Answer, len(d.Answers))
	for i, a := range d.Answers {
		answers[i] = docstore.Answer{Answer: a.Answer, IsCorrect: a.IsCorrect}
	}
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}

	doc := docstore.Document{
		ID:        d.ID.Hex(),
		Question:  d.Question,
		Tags:      tags,
		Answers:   answers,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.Kanda != nil {
		doc.Kanda = quizstore.Kanda(*d.Kanda)
	}
	if d.Difficulty != nil {
		doc.Difficulty = quizstore.Difficulty(*d.Difficulty)
	}
	return doc
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func idString(id any) string {
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(id)
}

// Compile-time check that Client implements docstore.Store
var _ docstore.Store = (*Client)(nil)
