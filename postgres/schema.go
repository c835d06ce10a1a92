package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/creastat/quizstore/session"
)

const (
	typeDifficultyCreate = `CREATE TYPE difficulty AS ENUM ('easy', 'medium', 'hard')`

	typeKandaCreate = `CREATE TYPE kanda AS ENUM ('Bala Kanda', 'Ayodhya Kanda', 'Aranya Kanda', 'Kishkinda Kanda', 'Sundara Kanda', 'Lanka Kanda', 'Uttara Kanda')`

	tableQuestionCreate = `
CREATE TABLE questions (
    id serial PRIMARY KEY,
    question text NOT NULL UNIQUE,
    created_at timestamp NOT NULL DEFAULT CURRENT_TIMESTAMP,
    modified_at timestamp NOT NULL DEFAULT CURRENT_TIMESTAMP,
    kanda kanda,
    tags varchar(20) ARRAY,
    difficulty difficulty
)`

	// Answer text is not unique: different questions can share answers.
	tableAnswerCreate = `
CREATE TABLE answers (
    id serial PRIMARY KEY,
    question_id integer NOT NULL REFERENCES questions(id),
    answer text NOT NULL,
    created_at timestamp NOT NULL DEFAULT CURRENT_TIMESTAMP,
    modified_at timestamp NOT NULL DEFAULT CURRENT_TIMESTAMP,
    is_correct boolean DEFAULT false
)`
)

var createStatements = []string{
	typeDifficultyCreate,
	typeKandaCreate,
	tableQuestionCreate,
	tableAnswerCreate,
}

var dropStatements = []string{
	`DROP TABLE IF EXISTS answers`,
	`DROP TABLE IF EXISTS questions`,
	`DROP TYPE IF EXISTS difficulty`,
	`DROP TYPE IF EXISTS kanda`,
}

var migrateStatements = []string{
	`ALTER TABLE questions ADD IF NOT EXISTS information text`,
	`ALTER TABLE questions ADD IF NOT EXISTS question_hindi text`,
	`ALTER TABLE answers ADD IF NOT EXISTS answer_hindi text`,
	`ALTER TABLE questions ADD IF NOT EXISTS question_telugu text`,
	`ALTER TABLE answers ADD IF NOT EXISTS answer_telugu text`,
}

// CreateTables implements Store.
func (c *Client) CreateTables(ctx context.Context) error {
	if err := c.execAll(ctx, createStatements); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// DropTables implements Store.
func (c *Client) DropTables(ctx context.Context) error {
	if err := c.execAll(ctx, dropStatements); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	return nil
}

// Migrate implements Store.
func (c *Client) Migrate(ctx context.Context) error {
	if err := c.execAll(ctx, migrateStatements); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// execAll runs statements in a single transaction.
func (c *Client) execAll(ctx context.Context, statements []string) error {
	return session.Do(ctx, c.provider, func(ctx context.Context, db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}
