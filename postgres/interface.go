package postgres

import (
	"context"

	"github.com/creastat/quizstore"
)

// DefaultLimit is the page size used when a ListFilter leaves Limit at zero.
const DefaultLimit = 20

// Store provides access to questions and answers in PostgreSQL.
type Store interface {
	// Health runs a trivial query against the database
	Health(ctx context.Context) error

	// CreateTables creates the enum types and the questions and answers tables
	CreateTables(ctx context.Context) error

	// DropTables drops everything CreateTables and Migrate created. Be careful.
	DropTables(ctx context.Context) error

	// Migrate adds the enrichment columns. Safe to run repeatedly.
	Migrate(ctx context.Context) error

	// CreateQuestion inserts a question and its answers in one transaction and
	// returns the new question id. Duplicate text yields *quizstore.ConstraintError.
	CreateQuestion(ctx context.Context, q quizstore.Question) (int64, error)

	// CreateQuestionsBulk inserts each question in its own transaction,
	// skipping duplicates instead of failing the batch.
	CreateQuestionsBulk(ctx context.Context, questions []quizstore.Question) (*BulkResult, error)

	// FetchQuestion returns a question with its answers, or quizstore.ErrNotFound
	FetchQuestion(ctx context.Context, id int64) (*quizstore.Question, error)

	// FetchQuestionAnswers returns the answers of a question in insertion order
	FetchQuestionAnswers(ctx context.Context, questionID int64) ([]quizstore.Answer, error)

	// ListQuestions returns one page of questions with all of their answers.
	// Limit and Offset apply to questions, never to answers.
	ListQuestions(ctx context.Context, filter ListFilter) ([]quizstore.Question, error)

	// RecentQuestionsCount counts questions with an id greater than lastID
	RecentQuestionsCount(ctx context.Context, lastID int64) (int, error)

	// QuestionsSince counts questions with an id greater than lastID and
	// returns the highest id among them, both from one snapshot. The id is
	// lastID when there are none.
	QuestionsSince(ctx context.Context, lastID int64) (int, int64, error)

	// MostRecentQuestionID returns the highest question id, 0 when there are none
	MostRecentQuestionID(ctx context.Context) (int64, error)

	// QuestionsMissingInformation returns id and text of questions not yet enriched
	QuestionsMissingInformation(ctx context.Context) ([]quizstore.Question, error)

	// ListDifficulties returns id, text and difficulty of every question
	ListDifficulties(ctx context.Context) ([]quizstore.Question, error)

	// Close closes the underlying connection pool
	Close() error
}

// ListFilter selects a page of questions.
type ListFilter struct {
	Limit      int // Default: 20
	Offset     int
	Difficulty quizstore.Difficulty // Empty means any difficulty
}

// BulkResult is the outcome of CreateQuestionsBulk.
type BulkResult struct {
	// InsertedIDs holds the ids of the created questions in input order.
	InsertedIDs []int64 `json:"inserted_ids"`
	// Inserted holds the 1-based input positions matching InsertedIDs.
	Inserted []int `json:"-"`
	// Skipped holds the 1-based input positions rejected as duplicates.
	Skipped []int `json:"skipped_rows"`
}
