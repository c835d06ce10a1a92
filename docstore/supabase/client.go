// Package supabase stores question documents in a Supabase table, with the
// answers kept in a JSON column.
package supabase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"github.com/creastat/quizstore"
	"github.com/creastat/quizstore/docstore"
	"github.com/creastat/quizstore/session"
	"github.com/creastat/quizstore/session/drivers"
)

const defaultTable = "question_documents"

func init() {
	docstore.Register(docstore.StoreTypeSupabase, func(cfg docstore.StoreConfig) (docstore.Store, error) {
		return New(Config{
			SupabaseConfig: cfg.Supabase,
			Table:          cfg.SupabaseTable,
			Logger:         cfg.Logger,
		})
	})
}

// Config holds Supabase connection configuration
type Config struct {
	drivers.SupabaseConfig
	Table  string             // Default: question_documents
	Logger logrus.FieldLogger // Default: logrus standard logger
}

// Client implements docstore.Store using Supabase
type Client struct {
	provider *session.Provider[*supabase.Client]
	table    string
	now      func() time.Time
}

// row is a question_documents row.
type row struct {
	ID         string            `json:"id,omitempty"`
	Question   string            `json:"question"`
	Kanda      *string           `json:"kanda"`
	Tags       []string          `json:"tags"`
	Difficulty *string           `json:"difficulty"`
	Answers    []docstore.Answer `json:"answers"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// New creates a new Supabase document store
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: supabase URL is required", quizstore.ErrInvalidConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: supabase API key is required", quizstore.ErrInvalidConfig)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	provider := session.New("supabase", drivers.Supabase(cfg.SupabaseConfig),
		session.WithClassifier(drivers.IsSupabaseTransport),
		session.WithLogger(cfg.Logger),
	)
	return NewWithProvider(provider, cfg.Table), nil
}

// NewWithProvider creates a document store on an existing session provider.
func NewWithProvider(provider *session.Provider[*supabase.Client], table string) *Client {
	if table == "" {
		table = defaultTable
	}
	return &Client{
		provider: provider,
		table:    table,
		now:      time.Now,
	}
}

// CreateQuestion implements docstore.Store.
func (c *Client) CreateQuestion(ctx context.Context, q quizstore.Question) (string, error) {
	ids, err := c.insert(ctx, []row{toRow(docstore.NewDocument(q, c.now()))})
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("failed to insert document: no row returned")
	}
	return ids[0], nil
}

// CreateQuestionsBulk implements docstore.Store.
func (c *Client) CreateQuestionsBulk(ctx context.Context, questions []quizstore.Question) ([]string, error) {
	if len(questions) == 0 {
		return []string{}, nil
	}

	now := c.now()
	rows := make([]row, len(questions))
	for i, q := range questions {
		rows[i] = toRow(docstore.NewDocument(q, now))
	}
	return c.insert(ctx, rows)
}

func (c *Client) insert(ctx context.Context, rows []row) ([]string, error) {
	return session.Retry(ctx, c.provider, func(ctx context.Context, client *supabase.Client) ([]string, error) {
		var inserted []row
		_, err := client.From(c.table).
			Insert(rows, false, "", "representation", "").
			ExecuteTo(&inserted)
		if err != nil {
			return nil, fmt.Errorf("failed to insert documents: %w", err)
		}

		ids := make([]string, len(inserted))
		for i, r := range inserted {
			ids[i] = r.ID
		}
		return ids, nil
	})
}

// GetQuestions implements docstore.Store.
func (c *Client) GetQuestions(ctx context.Context, limit, offset int) ([]docstore.Document, error) {
	return session.Retry(ctx, c.provider, func(ctx context.Context, client *supabase.Client) ([]docstore.Document, error) {
		query := client.From(c.table).
			Select("*", "", false).
			Order("created_at", &postgrest.OrderOpts{Ascending: true})
		if limit > 0 {
			query = query.Range(offset, offset+limit-1, "")
		} else if offset > 0 {
			query = query.Range(offset, math.MaxInt32, "")
		}

		var rows []row
		if _, err := query.ExecuteTo(&rows); err != nil {
			return nil, fmt.Errorf("failed to get documents: %w", err)
		}

		docs := make([]docstore.Document, len(rows))
		for i, r := range rows {
			docs[i] = fromRow(r)
		}
		return docs, nil
	})
}

// UpdateDifficulty implements docstore.Store.
func (c *Client) UpdateDifficulty(ctx context.Context, question string, difficulty quizstore.Difficulty) (int64, error) {
	values := map[string]any{
		"difficulty": optional(string(difficulty)),
		"updated_at": c.now().UTC(),
	}

	return session.Retry(ctx, c.provider, func(ctx context.Context, client *supabase.Client) (int64, error) {
		var updated []row
		_, err := client.From(c.table).
			Update(values, "representation", "").
			Eq("question", question).
			ExecuteTo(&updated)
		if err != nil {
			return 0, fmt.Errorf("failed to update difficulty: %w", err)
		}
		return int64(len(updated)), nil
	})
}

// Health implements docstore.Store.
func (c *Client) Health(ctx context.Context) error {
	return session.Do(ctx, c.provider, func(ctx context.Context, client *supabase.Client) error {
		var rows []row
		if _, err := client.From(c.table).Select("id", "", false).Limit(1, "").ExecuteTo(&rows); err != nil {
			return fmt.Errorf("failed to check supabase health: %w", err)
		}
		return nil
	})
}

// Close implements docstore.Store.
func (c *Client) Close() error {
	// The client holds no connections; this only drops the cached handle.
	return c.provider.Close()
}

func toRow(d docstore.Document) row {
	return row{
		Question:   d.Question,
		Kanda:      optional(string(d.Kanda)),
		Tags:       d.Tags,
		Difficulty: optional(string(d.Difficulty)),
		Answers:    d.Answers,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func fromRow(r row) docstore.Document {
	doc := docstore.Document{
		ID:        r.ID,
		Question:  r.Question,
		Tags:      r.Tags,
		Answers:   r.Answers,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	if doc.Answers == nil {
		doc.Answers = []docstore.Answer{}
	}
	if r.Kanda != nil {
		doc.Kanda = quizstore.Kanda(*r.Kanda)
	}
	if r.Difficulty != nil {
		doc.Difficulty = quizstore.Difficulty(*r.Difficulty)
	}
	return doc
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Compile-time check that Client implements docstore.Store
var _ docstore.Store = (*Client)(nil)
