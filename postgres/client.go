package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/creastat/quizstore"
	"github.com/creastat/quizstore/rowgroup"
	"github.com/creastat/quizstore/session"
	"github.com/creastat/quizstore/session/drivers"
)

const uniqueViolation = "23505"

// Config holds PostgreSQL connection configuration
type Config struct {
	drivers.PostgresConfig
	Logger logrus.FieldLogger // Default: logrus standard logger
}

// Client implements the Store interface on database/sql over pgx
type Client struct {
	provider *session.Provider[*sql.DB]
	logger   logrus.FieldLogger
}

// New creates a new PostgreSQL client. The connection is made on first use.
func New(cfg Config) (*Client, error) {
	if cfg.Database == "" {
		return nil, fmt.Errorf("%w: postgres database name is required", quizstore.ErrInvalidConfig)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	provider := session.New("postgres", drivers.Postgres(cfg.PostgresConfig),
		session.WithClassifier(drivers.IsPostgresTransport),
		session.WithLogger(cfg.Logger),
	)
	return NewWithProvider(provider, cfg.Logger), nil
}

// NewWithProvider creates a client on an existing session provider.
func NewWithProvider(provider *session.Provider[*sql.DB], logger logrus.FieldLogger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		provider: provider,
		logger:   logger.WithField("backend", "postgres"),
	}
}

// Health implements Store.
func (c *Client) Health(ctx context.Context) error {
	return session.Do(ctx, c.provider, func(ctx context.Context, db *sql.DB) error {
		var one int
		if err := db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
			return fmt.Errorf("failed to check postgres health: %w", err)
		}
		return nil
	})
}

// CreateQuestion implements Store.
func (c *Client) CreateQuestion(ctx context.Context, q quizstore.Question) (int64, error) {
	id, err := c.insertWithReplay(ctx, q)
	if err != nil {
		var ce *quizstore.ConstraintError
		if errors.As(err, &ce) {
			c.logger.WithField("question", q.Text).Info("duplicate question rejected")
		}
		return 0, err
	}
	return id, nil
}

// CreateQuestionsBulk implements Store.
//
// Every item runs in its own transaction under its own retry, so a stale
// connection replays one item and never the items before it. A non-constraint
// failure stops the batch; the result gathered so far is returned with it.
func (c *Client) CreateQuestionsBulk(ctx context.Context, questions []quizstore.Question) (*BulkResult, error) {
	result := &BulkResult{
		InsertedIDs: []int64{},
		Inserted:    []int{},
		Skipped:     []int{},
	}

	for i, q := range questions {
		position := i + 1

		id, err := c.insertWithReplay(ctx, q)
		if errors.Is(err, quizstore.ErrConstraint) {
			c.logger.WithFields(logrus.Fields{"row": position, "question": q.Text}).Info("skipping duplicate question")
			result.Skipped = append(result.Skipped, position)
			continue
		}
		if err != nil {
			return result, fmt.Errorf("failed to create question at row %d: %w", position, err)
		}

		result.InsertedIDs = append(result.InsertedIDs, id)
		result.Inserted = append(result.Inserted, position)
	}

	return result, nil
}

// insertWithReplay runs insertQuestion under Retry. A unique violation on the
// replayed attempt means the first commit reached the server before the
// connection dropped, so the id of the stored row is returned instead.
func (c *Client) insertWithReplay(ctx context.Context, q quizstore.Question) (int64, error) {
	attempt := 0
	return session.Retry(ctx, c.provider, func(ctx context.Context, db *sql.DB) (int64, error) {
		attempt++
		id, err := insertQuestion(ctx, db, q)
		if attempt == 1 || !errors.Is(err, quizstore.ErrConstraint) {
			return id, err
		}

		var stored int64
		if lookupErr := db.QueryRowContext(ctx,
			`SELECT id FROM questions WHERE question = $1`, q.Text,
		).Scan(&stored); lookupErr != nil {
			if errors.Is(lookupErr, sql.ErrNoRows) {
				return 0, err
			}
			return 0, fmt.Errorf("failed to look up replayed question: %w", lookupErr)
		}
		c.logger.WithField("question_id", stored).Warn("insert replayed after lost commit acknowledgement")
		return stored, nil
	})
}

// insertQuestion writes q and its answers in one transaction.
func insertQuestion(ctx context.Context, db *sql.DB, q quizstore.Question) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	tags := q.Tags
	if tags == nil {
		tags = []string{}
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO questions (question, kanda, tags, difficulty) VALUES ($1, $2, $3, $4) RETURNING id`,
		q.Text, nullable(string(q.Kanda)), tags, nullable(string(q.Difficulty)),
	).Scan(&id)
	if err != nil {
		return 0, constraintError(err, q.Text)
	}

	for _, a := range q.Answers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO answers (question_id, answer, is_correct) VALUES ($1, $2, $3)`,
			id, a.Text, a.IsCorrect,
		); err != nil {
			return 0, fmt.Errorf("failed to insert answer: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit question: %w", err)
	}
	return id, nil
}

// ListQuestions implements Store.
//
// The page is taken on question ids first; the join then fetches every answer
// of exactly those questions, so Limit counts questions and not joined rows.
func (c *Client) ListQuestions(ctx context.Context, filter ListFilter) ([]quizstore.Question, error) {
	if filter.Limit < 0 {
		return nil, &quizstore.ValidationError{Field: "limit", Reason: "must not be negative"}
	}
	if filter.Offset < 0 {
		return nil, &quizstore.ValidationError{Field: "offset", Reason: "must not be negative"}
	}
	if filter.Limit == 0 {
		filter.Limit = DefaultLimit
	}

	return session.Retry(ctx, c.provider, func(ctx context.Context, db *sql.DB) ([]quizstore.Question, error) {
		ids, err := pageIDs(ctx, db, filter)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []quizstore.Question{}, nil
		}
		return questionsWithAnswers(ctx, db, ids)
	})
}

func pageIDs(ctx context.Context, db *sql.DB, filter ListFilter) ([]int64, error) {
	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`SELECT id FROM questions`)
	if filter.Difficulty != "" {
		args = append(args, string(filter.Difficulty))
		query.WriteString(` WHERE difficulty = $1`)
	}
	args = append(args, filter.Limit, filter.Offset)
	fmt.Fprintf(&query, ` ORDER BY id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list question ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan question id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list question ids: %w", err)
	}
	return ids, nil
}

const joinSelect = `SELECT q.id, q.question, q.difficulty::text, q.kanda::text, COALESCE(array_to_json(q.tags), '[]'::json), q.information, q.question_hindi, q.question_telugu, a.id, a.answer, a.is_correct, a.answer_hindi, a.answer_telugu FROM questions q LEFT JOIN answers a ON q.id = a.question_id`

// joinRow is one row of the questions/answers left join.
type joinRow struct {
	id             int64
	text           string
	difficulty     sql.NullString
	kanda          sql.NullString
	tags           []string
	information    sql.NullString
	questionHindi  sql.NullString
	questionTelugu sql.NullString

	answerID     sql.NullInt64
	answer       sql.NullString
	isCorrect    sql.NullBool
	answerHindi  sql.NullString
	answerTelugu sql.NullString
}

func questionsWithAnswers(ctx context.Context, db *sql.DB, ids []int64) ([]quizstore.Question, error) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}
	query := joinSelect + ` WHERE q.id IN (` + strings.Join(placeholders, ", ") + `) ORDER BY q.id, a.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var joined []joinRow
	for rows.Next() {
		var (
			r    joinRow
			tags []byte
		)
		if err := rows.Scan(
			&r.id, &r.text, &r.difficulty, &r.kanda, &tags, &r.information, &r.questionHindi, &r.questionTelugu,
			&r.answerID, &r.answer, &r.isCorrect, &r.answerHindi, &r.answerTelugu,
		); err != nil {
			return nil, fmt.Errorf("failed to scan question row: %w", err)
		}
		if err := json.Unmarshal(tags, &r.tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags of question %d: %w", r.id, err)
		}
		joined = append(joined, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	groups := rowgroup.Fold(joined,
		func(r joinRow) int64 { return r.id },
		joinRow.question,
		joinRow.answerOf,
	)

	questions := make([]quizstore.Question, len(groups))
	for i, g := range groups {
		questions[i] = g.Parent
		questions[i].Answers = g.Children
	}
	return questions, nil
}

func (r joinRow) question() quizstore.Question {
	tags := r.tags
	if tags == nil {
		tags = []string{}
	}
	return quizstore.Question{
		ID:             r.id,
		Text:           r.text,
		Kanda:          quizstore.Kanda(r.kanda.String),
		Tags:           tags,
		Difficulty:     quizstore.Difficulty(r.difficulty.String),
		Information:    stringPtr(r.information),
		QuestionHindi:  stringPtr(r.questionHindi),
		QuestionTelugu: stringPtr(r.questionTelugu),
	}
}

// answerOf returns false for the all-null answer half of a question without
// answers.
func (r joinRow) answerOf() (quizstore.Answer, bool) {
	if !r.answerID.Valid {
		return quizstore.Answer{}, false
	}
	return quizstore.Answer{
		ID:           r.answerID.Int64,
		QuestionID:   r.id,
		Text:         r.answer.String,
		IsCorrect:    r.isCorrect.Bool,
		AnswerHindi:  stringPtr(r.answerHindi),
		AnswerTelugu: stringPtr(r.answerTelugu),
	}, true
}

// FetchQuestion implements Store.
func (c *Client) FetchQuestion(ctx context.Context, id int64) (*quizstore.Question, error) {
	questions, err := session.Retry(ctx, c.provider, func(ctx context.Context, db *sql.DB) ([]quizstore.Question, error) {
		return questionsWithAnswers(ctx, db, []int64{id})
	})
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, quizstore.ErrNotFound
	}
	return &questions[0], nil
}

// FetchQuestionAnswers implements Store.
func (c *Client) FetchQuestionAnswers(ctx context.Context, questionID int64) ([]quizstore.Answer, error) {
	return session.Retry(ctx, c.provider, func(ctx context.Context, db *sql.DB) ([]quizstore.Answer, error) {
		rows, err := db.QueryContext(ctx,
			`SELECT id, answer, is_correct, answer_hindi, answer_telugu FROM answers WHERE question_id = $1 ORDER BY id`,
			questionID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch answers: %w", err)
		}
		defer rows.Close()

		answers := []quizstore.Answer{}
		for rows.Next() {
			var (
				a             quizstore.Answer
				isCorrect     sql.NullBool
				hindi, telugu sql.NullString
			)
			if err := rows.Scan(&a.ID, &a.Text, &isCorrect, &hindi, &telugu); err != nil {
				return nil, fmt.Errorf("failed to scan answer: %w", err)
			}
			a.QuestionID = questionID
			a.IsCorrect = isCorrect.Bool
			a.AnswerHindi = stringPtr(hindi)
			a.AnswerTelugu = stringPtr(telugu)
			answers = append(answers, a)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to fetch answers: %w", err)
		}
		return answers, nil
	})
}

// RecentQuestionsCount implements Store.
func (c *Client) RecentQuestionsCount(ctx context.Context, lastID int64) (int, error) {
	n, _, err := c.QuestionsSince(ctx, lastID)
	return n, err
}

// QuestionsSince implements Store.
func (c *Client) QuestionsSince(ctx context.Context, lastID int64) (int, int64, error) {
	type since struct {
		n      int
		newest int64
	}
	res, err := session.Retry(ctx, c.provider, func(ctx context.Context, db *sql.DB) (since, error) {
		var r since
		err := db.QueryRowContext(ctx,
			`SELECT count(id), COALESCE(max(id), $1) FROM questions WHERE id > $1`, lastID).
			Scan(&r.n, &r.newest)
		if err != nil {
			return since{}, fmt.Errorf("failed to count recent questions: %w", err)
		}
		return r, nil
	})
	return res.n, res.newest, err
}

// MostRecentQuestionID implements Store.
func (c *Client) MostRecentQuestionID(ctx context.Context) (int64, error) {
	return session.Retry(ctx, c.provider, func(ctx context.Context, db *sql.DB) (int64, error) {
		var id int64
		err := db.QueryRowContext(ctx, `SELECT id FROM questions ORDER BY id DESC LIMIT 1`).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("failed to get most recent question id: %w", err)
		}
		return id, nil
	})
}

// QuestionsMissingInformation implements Store.
func (c *Client) QuestionsMissingInformation(ctx context.Context) ([]quizstore.Question, error) {
	return c.listShallow(ctx, `SELECT id, question, NULL::text FROM questions WHERE information IS NULL ORDER BY id`)
}

// ListDifficulties implements Store.
func (c *Client) ListDifficulties(ctx context.Context) ([]quizstore.Question, error) {
	return c.listShallow(ctx, `SELECT id, question, difficulty::text FROM questions ORDER BY id`)
}

// listShallow runs a query selecting id, question and difficulty.
func (c *Client) listShallow(ctx context.Context, query string) ([]quizstore.Question, error) {
	return session.Retry(ctx, c.provider, func(ctx context.Context, db *sql.DB) ([]quizstore.Question, error) {
		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to list questions: %w", err)
		}
		defer rows.Close()

		questions := []quizstore.Question{}
		for rows.Next() {
			var (
				q          quizstore.Question
				difficulty sql.NullString
			)
			if err := rows.Scan(&q.ID, &q.Text, &difficulty); err != nil {
				return nil, fmt.Errorf("failed to scan question: %w", err)
			}
			q.Difficulty = quizstore.Difficulty(difficulty.String)
			questions = append(questions, q)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to list questions: %w", err)
		}
		return questions, nil
	})
}

// Close implements Store.
func (c *Client) Close() error {
	return c.provider.Close()
}

// constraintError converts a unique violation into *quizstore.ConstraintError.
func constraintError(err error, value string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &quizstore.ConstraintError{Constraint: pgErr.ConstraintName, Value: value, Err: err}
	}
	return fmt.Errorf("failed to insert question: %w", err)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

// Compile-time check that Client implements Store
var _ Store = (*Client)(nil)
