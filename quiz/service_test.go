package quiz_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/creastat/quizstore"
	"github.com/creastat/quizstore/cache"
	"github.com/creastat/quizstore/docstore"
	"github.com/creastat/quizstore/postgres"
	"github.com/creastat/quizstore/queue"
	"github.com/creastat/quizstore/quiz"
)

// fakeStore keeps questions in memory and rejects duplicate text like the
// unique index does.
type fakeStore struct {
	postgres.Store

	mu        sync.Mutex
	questions []quizstore.Question
	listCalls int
	healthErr error
	failAt    int // 1-based bulk position that fails with a non-constraint error
}

func (s *fakeStore) CreateQuestion(ctx context.Context, q quizstore.Question) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.questions {
		if existing.Text == q.Text {
			return 0, &quizstore.ConstraintError{Constraint: "questions_question_key", Value: q.Text}
		}
	}
	q.ID = int64(len(s.questions) + 1)
	s.questions = append(s.questions, q)
	return q.ID, nil
}

func (s *fakeStore) CreateQuestionsBulk(ctx context.Context, questions []quizstore.Question) (*postgres.BulkResult, error) {
	result := &postgres.BulkResult{InsertedIDs: []int64{}, Skipped: []int{}}
	for i, q := range questions {
		if i+1 == s.failAt {
			return result, errors.New("failed to create question at row 3: boom")
		}
		id, err := s.CreateQuestion(ctx, q)
		if errors.Is(err, quizstore.ErrConstraint) {
			result.Skipped = append(result.Skipped, i+1)
			continue
		}
		result.InsertedIDs = append(result.InsertedIDs, id)
		result.Inserted = append(result.Inserted, i+1)
	}
	return result, nil
}

func (s *fakeStore) FetchQuestion(ctx context.Context, id int64) (*quizstore.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id < 1 || int(id) > len(s.questions) {
		return nil, quizstore.ErrNotFound
	}
	q := s.questions[id-1]
	return &q, nil
}

func (s *fakeStore) ListQuestions(ctx context.Context, filter postgres.ListFilter) ([]quizstore.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++

	var matching []quizstore.Question
	for _, q := range s.questions {
		if filter.Difficulty == "" || q.Difficulty == filter.Difficulty {
			matching = append(matching, q)
		}
	}
	if filter.Offset >= len(matching) {
		return []quizstore.Question{}, nil
	}
	end := min(filter.Offset+filter.Limit, len(matching))
	return matching[filter.Offset:end], nil
}

func (s *fakeStore) ListDifficulties(ctx context.Context) ([]quizstore.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]quizstore.Question(nil), s.questions...), nil
}

func (s *fakeStore) QuestionsMissingInformation(ctx context.Context) ([]quizstore.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var missing []quizstore.Question
	for _, q := range s.questions {
		if q.Information == nil {
			missing = append(missing, quizstore.Question{ID: q.ID, Text: q.Text})
		}
	}
	return missing, nil
}

func (s *fakeStore) Health(ctx context.Context) error { return s.healthErr }

type published struct {
	queue string
	task  queue.Task
}

type fakePublisher struct {
	mu        sync.Mutex
	sent      []published
	err       error
	healthErr error
}

func (p *fakePublisher) Publish(ctx context.Context, name string, task queue.Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{queue: name, task: task})
	return nil
}

func (p *fakePublisher) Health(ctx context.Context) error { return p.healthErr }
func (p *fakePublisher) Close() error                     { return nil }

// failingDocs wraps a memory store and fails every write.
type failingDocs struct {
	*docstore.MemoryStore
	err error
}

func (d *failingDocs) CreateQuestion(ctx context.Context, q quizstore.Question) (string, error) {
	return "", d.err
}

func (d *failingDocs) CreateQuestionsBulk(ctx context.Context, questions []quizstore.Question) ([]string, error) {
	return nil, d.err
}

func (d *failingDocs) Health(ctx context.Context) error { return d.err }

type fixture struct {
	store   *fakeStore
	docs    docstore.Store
	pub     *fakePublisher
	service *quiz.Service
}

func newFixture(t *testing.T, docs docstore.Store) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	if docs == nil {
		docs = docstore.NewMemoryStore()
	}
	f := &fixture{store: &fakeStore{}, docs: docs, pub: &fakePublisher{}}
	f.service = quiz.New(f.store, f.docs, f.pub, cache.NewMemory(), quiz.Config{Logger: logger})
	return f
}

func question(text string) quizstore.Question {
	return quizstore.Question{
		Text:       text,
		Difficulty: quizstore.DifficultyEasy,
		Kanda:      quizstore.KandaBala,
		Tags:       []string{"people"},
		Answers: []quizstore.Answer{
			{Text: "Valmiki", IsCorrect: true},
			{Text: "Vyasa"},
		},
	}
}

func TestListParams_CacheKey(t *testing.T) {
	tests := []struct {
		params quiz.ListParams
		want   string
	}{
		{quiz.ListParams{Limit: 20}, "0-20"},
		{quiz.ListParams{Limit: 10, Offset: 30}, "30-10"},
		{quiz.ListParams{Limit: 5, Offset: 0, Difficulty: quizstore.DifficultyHard}, "0-5-hard"},
	}

	for _, tt := range tests {
		if got := tt.params.CacheKey(); got != tt.want {
			t.Errorf("CacheKey(%+v) = %q, want %q", tt.params, got, tt.want)
		}
	}
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	for _, text := range []string{"Q1", "Q2", "Q3"} {
		if _, err := f.store.CreateQuestion(ctx, question(text)); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("miss then hit", func(t *testing.T) {
		first, err := f.service.List(ctx, quiz.ListParams{Limit: 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(first) != 2 || first[0].Text != "Q1" {
			t.Fatalf("unexpected page: %+v", first)
		}

		// Written after the first read: the cached page must not see it.
		if _, err := f.store.CreateQuestion(ctx, question("Q0")); err != nil {
			t.Fatal(err)
		}

		second, err := f.service.List(ctx, quiz.ListParams{Limit: 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(second) != 2 || second[1].Text != first[1].Text {
			t.Errorf("expected cached page, got %+v", second)
		}
		if f.store.listCalls != 1 {
			t.Errorf("expected 1 store read, got %d", f.store.listCalls)
		}
	})

	t.Run("default limit shares the key", func(t *testing.T) {
		calls := f.store.listCalls
		if _, err := f.service.List(ctx, quiz.ListParams{}); err != nil {
			t.Fatal(err)
		}
		if _, err := f.service.List(ctx, quiz.ListParams{Limit: postgres.DefaultLimit}); err != nil {
			t.Fatal(err)
		}
		if f.store.listCalls != calls+1 {
			t.Errorf("expected one store read for both calls, got %d", f.store.listCalls-calls)
		}
	})

	t.Run("invalid params", func(t *testing.T) {
		for _, params := range []quiz.ListParams{
			{Limit: -1},
			{Offset: -5},
			{Difficulty: "impossible"},
		} {
			_, err := f.service.List(ctx, params)
			if !errors.Is(err, quizstore.ErrValidation) {
				t.Errorf("List(%+v): expected validation error, got %v", params, err)
			}
		}
	})
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("writes both stores and queues translation", func(t *testing.T) {
		f := newFixture(t, nil)

		res, err := f.service.Create(ctx, question("Who wrote the Ramayana?"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Question.ID != 1 || res.DocumentID == "" || res.EnrichmentErr != nil {
			t.Errorf("unexpected result: %+v", res)
		}

		docs, _ := f.docs.GetQuestions(ctx, 0, 0)
		if len(docs) != 1 || docs[0].Question != "Who wrote the Ramayana?" {
			t.Errorf("unexpected documents: %+v", docs)
		}

		if len(f.pub.sent) != 1 {
			t.Fatalf("expected 1 task, got %d", len(f.pub.sent))
		}
		sent := f.pub.sent[0]
		if sent.queue != queue.QueueTranslate || sent.task.Args[0] != int64(1) {
			t.Errorf("unexpected task: %+v", sent)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		f := newFixture(t, nil)
		if _, err := f.service.Create(ctx, question("Q1")); err != nil {
			t.Fatal(err)
		}

		_, err := f.service.Create(ctx, question("Q1"))
		if !errors.Is(err, quizstore.ErrConstraint) {
			t.Errorf("expected constraint error, got %v", err)
		}
		if len(f.pub.sent) != 1 {
			t.Errorf("expected no task for the duplicate, got %d tasks", len(f.pub.sent))
		}
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name  string
			mut   func(q *quizstore.Question)
			field string
		}{
			{"missing text", func(q *quizstore.Question) { q.Text = "" }, "question"},
			{"unknown kanda", func(q *quizstore.Question) { q.Kanda = "Eighth Kanda" }, "kanda"},
			{"unknown difficulty", func(q *quizstore.Question) { q.Difficulty = "trivial" }, "difficulty"},
			{"empty answer", func(q *quizstore.Question) { q.Answers[1].Text = "" }, "answers[1].answer"},
			{"long tag", func(q *quizstore.Question) { q.Tags = []string{"abcdefghijklmnopqrstuvwxyz"} }, "tags[0]"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t, nil)
				q := question("Q1")
				tt.mut(&q)

				_, err := f.service.Create(ctx, q)
				var ve *quizstore.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected validation error, got %v", err)
				}
				if ve.Field != tt.field {
					t.Errorf("expected field %q, got %q", tt.field, ve.Field)
				}
				if len(f.store.questions) != 0 {
					t.Error("expected nothing stored")
				}
			})
		}
	})

	t.Run("document store failure", func(t *testing.T) {
		docErr := errors.New("mongo down")
		f := newFixture(t, &failingDocs{MemoryStore: docstore.NewMemoryStore(), err: docErr})

		res, err := f.service.Create(ctx, question("Q1"))
		var dw *quiz.DualWriteError
		if !errors.As(err, &dw) {
			t.Fatalf("expected dual write error, got %v", err)
		}
		if dw.QuestionID != 1 || !errors.Is(err, docErr) {
			t.Errorf("unexpected error: %+v", dw)
		}
		if res == nil || res.Question.ID != 1 {
			t.Errorf("expected the committed question in the result, got %+v", res)
		}
		if len(f.pub.sent) != 1 {
			t.Errorf("expected translation queued anyway, got %d tasks", len(f.pub.sent))
		}
	})

	t.Run("queue failure", func(t *testing.T) {
		f := newFixture(t, nil)
		f.pub.err = errors.New("broker down")

		res, err := f.service.Create(ctx, question("Q1"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.EnrichmentErr == nil {
			t.Error("expected enrichment error")
		}
		if res.DocumentID == "" {
			t.Error("expected document written")
		}
	})
}

func TestService_CreateBulk(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate in the middle", func(t *testing.T) {
		f := newFixture(t, nil)
		if _, err := f.store.CreateQuestion(ctx, question("Q2")); err != nil {
			t.Fatal(err)
		}

		res, err := f.service.CreateBulk(ctx, []quizstore.Question{question("Q1"), question("Q2"), question("Q3")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.InsertedIDs) != 2 || res.InsertedIDs[0] != 2 || res.InsertedIDs[1] != 3 {
			t.Errorf("unexpected inserted ids: %v", res.InsertedIDs)
		}
		if len(res.Skipped) != 1 || res.Skipped[0] != 2 {
			t.Errorf("expected row 2 skipped, got %v", res.Skipped)
		}

		docs, _ := f.docs.GetQuestions(ctx, 0, 0)
		if len(docs) != 2 || docs[0].Question != "Q1" || docs[1].Question != "Q3" {
			t.Errorf("expected only inserted rows copied, got %+v", docs)
		}
		if len(res.DocumentIDs) != 2 || res.DocumentErr != nil {
			t.Errorf("unexpected document outcome: %v, %v", res.DocumentIDs, res.DocumentErr)
		}
		if res.Enqueued != 2 || len(f.pub.sent) != 2 {
			t.Errorf("expected 2 tasks, got %d", res.Enqueued)
		}
	})

	t.Run("invalid row rejects the batch", func(t *testing.T) {
		f := newFixture(t, nil)
		bad := question("Q2")
		bad.Difficulty = "trivial"

		_, err := f.service.CreateBulk(ctx, []quizstore.Question{question("Q1"), bad})
		var ve *quizstore.ValidationError
		if !errors.As(err, &ve) || ve.Field != "row 2: difficulty" {
			t.Fatalf("expected row 2 validation error, got %v", err)
		}
		if len(f.store.questions) != 0 {
			t.Error("expected nothing stored")
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		f := newFixture(t, nil)
		if _, err := f.service.CreateBulk(ctx, nil); !errors.Is(err, quizstore.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("relational failure keeps earlier rows", func(t *testing.T) {
		f := newFixture(t, nil)
		f.store.failAt = 3

		res, err := f.service.CreateBulk(ctx, []quizstore.Question{question("Q1"), question("Q2"), question("Q3")})
		if err == nil {
			t.Fatal("expected error")
		}
		if res == nil || len(res.InsertedIDs) != 2 {
			t.Fatalf("expected partial result, got %+v", res)
		}
		if len(res.DocumentIDs) != 2 || res.Enqueued != 2 {
			t.Errorf("expected inserted rows copied and queued, got %+v", res)
		}
	})

	t.Run("document store failure", func(t *testing.T) {
		f := newFixture(t, &failingDocs{MemoryStore: docstore.NewMemoryStore(), err: errors.New("down")})

		res, err := f.service.CreateBulk(ctx, []quizstore.Question{question("Q1")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.DocumentErr == nil || len(res.DocumentIDs) != 0 {
			t.Errorf("expected document error, got %+v", res)
		}
		if res.Enqueued != 1 {
			t.Errorf("expected task queued, got %d", res.Enqueued)
		}
	})
}

func TestService_Health(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	results := f.service.Health(ctx)
	if !quiz.Healthy(results) {
		t.Errorf("expected healthy, got %+v", results)
	}
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Name
	}
	if len(names) != 3 || names[0] != "postgres" || names[1] != "docstore" || names[2] != "queue" {
		t.Errorf("unexpected checks: %v", names)
	}

	f.pub.healthErr = quizstore.ErrUnavailable
	results = f.service.Health(ctx)
	if quiz.Healthy(results) {
		t.Error("expected unhealthy")
	}
	if results[2].Err == nil || results[0].Err != nil {
		t.Errorf("expected only the queue check to fail, got %+v", results)
	}
}
