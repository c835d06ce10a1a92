// Package quiz coordinates the stores behind the HTTP API: it validates
// input, writes to both stores, caches reads and queues enrichment work.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/creastat/quizstore"
	"github.com/creastat/quizstore/cache"
	"github.com/creastat/quizstore/docstore"
	"github.com/creastat/quizstore/postgres"
	"github.com/creastat/quizstore/queue"
)

// DefaultCacheTTL is how long a listed page is served from cache.
const DefaultCacheTTL = 60 * time.Second

// Config holds service configuration
type Config struct {
	CacheTTL time.Duration // Default: 60 seconds
	Logger   logrus.FieldLogger
}

// Service implements the question use cases.
type Service struct {
	store     postgres.Store
	docs      docstore.Store
	publisher queue.Publisher
	cache     cache.Cache
	cacheTTL  time.Duration
	validate  *validate
	logger    logrus.FieldLogger
	checks    []check
}

// New creates a Service. The cache is used for health checks too when it
// has a Health method.
func New(store postgres.Store, docs docstore.Store, publisher queue.Publisher, c cache.Cache, cfg Config) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	s := &Service{
		store:     store,
		docs:      docs,
		publisher: publisher,
		cache:     c,
		cacheTTL:  cfg.CacheTTL,
		validate:  newValidate(),
		logger:    cfg.Logger,
	}

	s.checks = []check{
		{"postgres", store.Health},
		{"docstore", docs.Health},
		{"queue", publisher.Health},
	}
	if h, ok := c.(interface{ Health(context.Context) error }); ok {
		s.checks = append(s.checks, check{"redis", h.Health})
	}
	return s
}

// ListParams selects a page of questions.
type ListParams struct {
	Limit      int
	Offset     int
	Difficulty quizstore.Difficulty
}

// CacheKey returns the cache key of the page, "{offset}-{limit}" with
// "-{difficulty}" appended when filtering.
func (p ListParams) CacheKey() string {
	key := fmt.Sprintf("%d-%d", p.Offset, p.Limit)
	if p.Difficulty != "" {
		key += "-" + string(p.Difficulty)
	}
	return key
}

// List returns a page of questions with their answers, served from cache when
// the same page was read within the cache TTL.
func (s *Service) List(ctx context.Context, params ListParams) ([]quizstore.Question, error) {
	if params.Limit == 0 {
		params.Limit = postgres.DefaultLimit
	}
	if params.Limit < 0 {
		return nil, &quizstore.ValidationError{Field: "limit", Reason: "must be positive"}
	}
	if params.Offset < 0 {
		return nil, &quizstore.ValidationError{Field: "offset", Reason: "must not be negative"}
	}
	if params.Difficulty != "" && !params.Difficulty.Valid() {
		return nil, &quizstore.ValidationError{Field: "difficulty", Reason: "must be one of easy, medium, hard"}
	}

	key := params.CacheKey()
	var questions []quizstore.Question
	found, err := s.cache.Get(ctx, key, &questions)
	if err != nil {
		return nil, err
	}
	if found {
		return questions, nil
	}

	questions, err = s.store.ListQuestions(ctx, postgres.ListFilter{
		Limit:      params.Limit,
		Offset:     params.Offset,
		Difficulty: params.Difficulty,
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, questions, s.cacheTTL); err != nil {
		return nil, err
	}
	return questions, nil
}

// CreateResult is the outcome of Create.
type CreateResult struct {
	Question   quizstore.Question
	DocumentID string
	// EnrichmentErr is set when the enrichment task could not be queued.
	// The question itself was stored.
	EnrichmentErr error
}

// DualWriteError reports a question committed to PostgreSQL but missing from
// the document store. The stores are not rolled back against each other.
type DualWriteError struct {
	QuestionID int64
	Err        error
}

func (e *DualWriteError) Error() string {
	return fmt.Sprintf("question %d stored in postgres but not in document store: %v", e.QuestionID, e.Err)
}

func (e *DualWriteError) Unwrap() error { return e.Err }

// Create validates q and stores it in both stores, then queues its
// translation. On a document store failure the result is still returned,
// together with a *DualWriteError.
func (s *Service) Create(ctx context.Context, q quizstore.Question) (*CreateResult, error) {
	if err := s.validate.question(q); err != nil {
		return nil, err
	}

	id, err := s.store.CreateQuestion(ctx, q)
	if err != nil {
		return nil, err
	}
	logger := s.logger.WithField("question_id", id)

	created, err := s.store.FetchQuestion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch created question: %w", err)
	}
	result := &CreateResult{Question: *created}

	if err := s.publisher.Publish(ctx, queue.QueueTranslate, queue.TranslateTask(id)); err != nil {
		logger.WithError(err).Warn("failed to queue translation")
		result.EnrichmentErr = err
	}

	docID, err := s.docs.CreateQuestion(ctx, *created)
	if err != nil {
		logger.WithError(err).Error("question missing from document store")
		return result, &DualWriteError{QuestionID: id, Err: err}
	}
	result.DocumentID = docID

	return result, nil
}

// BulkResult is the outcome of CreateBulk, per store.
type BulkResult struct {
	InsertedIDs []int64
	// Skipped holds the 1-based rows rejected as duplicates.
	Skipped []int
	// DocumentIDs holds the document ids of the inserted rows. Empty when
	// DocumentErr is set.
	DocumentIDs []string
	DocumentErr error
	// Enqueued counts translation tasks queued; EnqueueErr is the last
	// failure, if any.
	Enqueued   int
	EnqueueErr error
}

// CreateBulk validates every row, then inserts them into PostgreSQL one by
// one, skipping duplicates. Only inserted rows are copied to the document
// store and queued for translation.
//
// When PostgreSQL fails part way, the rows inserted so far are still copied
// and queued, and the error is returned with the result.
func (s *Service) CreateBulk(ctx context.Context, questions []quizstore.Question) (*BulkResult, error) {
	if len(questions) == 0 {
		return nil, &quizstore.ValidationError{Reason: "no questions to create"}
	}
	for i, q := range questions {
		if err := s.validate.question(q); err != nil {
			var ve *quizstore.ValidationError
			if errors.As(err, &ve) {
				return nil, &quizstore.ValidationError{Field: fmt.Sprintf("row %d: %s", i+1, ve.Field), Reason: ve.Reason}
			}
			return nil, err
		}
	}

	rel, relErr := s.store.CreateQuestionsBulk(ctx, questions)
	if rel == nil {
		return nil, relErr
	}

	result := &BulkResult{
		InsertedIDs: rel.InsertedIDs,
		Skipped:     rel.Skipped,
		DocumentIDs: []string{},
	}
	if len(rel.InsertedIDs) == 0 {
		return result, relErr
	}

	inserted := make([]quizstore.Question, len(rel.Inserted))
	for i, pos := range rel.Inserted {
		inserted[i] = questions[pos-1]
		inserted[i].ID = rel.InsertedIDs[i]
	}

	docIDs, err := s.docs.CreateQuestionsBulk(ctx, inserted)
	if err != nil {
		s.logger.WithError(err).WithField("count", len(inserted)).Error("questions missing from document store")
		result.DocumentErr = err
	} else {
		result.DocumentIDs = docIDs
	}

	for _, id := range rel.InsertedIDs {
		if err := s.publisher.Publish(ctx, queue.QueueTranslate, queue.TranslateTask(id)); err != nil {
			s.logger.WithError(err).WithField("question_id", id).Warn("failed to queue translation")
			result.EnqueueErr = err
			continue
		}
		result.Enqueued++
	}

	return result, relErr
}

type check struct {
	name string
	fn   func(context.Context) error
}

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	Name string
	Err  error
}

// Health checks every dependency and returns one result per dependency, in a
// fixed order.
func (s *Service) Health(ctx context.Context) []CheckResult {
	results := make([]CheckResult, len(s.checks))
	for i, c := range s.checks {
		results[i] = CheckResult{Name: c.name, Err: c.fn(ctx)}
		if results[i].Err != nil {
			s.logger.WithError(results[i].Err).WithField("dependency", c.name).Warn("health check failed")
		}
	}
	return results
}

// Healthy reports whether every check passed.
func Healthy(results []CheckResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return false
		}
	}
	return true
}
