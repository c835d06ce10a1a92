// Package docstore defines the document-store side of the dual write: each
// question is stored as one document with its answers embedded.
package docstore

import (
	"context"
	"time"

	"github.com/creastat/quizstore"
)

// Store is a technology-agnostic interface for the question document store.
// Implementations exist for MongoDB, Supabase and memory.
type Store interface {
	// CreateQuestion stores q as a single document and returns its id.
	CreateQuestion(ctx context.Context, q quizstore.Question) (string, error)

	// CreateQuestionsBulk stores every question and returns the ids in order.
	CreateQuestionsBulk(ctx context.Context, questions []quizstore.Question) ([]string, error)

	// GetQuestions returns documents in insertion order.
	GetQuestions(ctx context.Context, limit, offset int) ([]Document, error)

	// UpdateDifficulty sets the difficulty of every document whose text is
	// question and returns the number of documents changed.
	UpdateDifficulty(ctx context.Context, question string, difficulty quizstore.Difficulty) (int64, error)

	// Health checks that the store is reachable.
	Health(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Document is the stored shape of a question.
type Document struct {
	ID         string               `json:"id,omitempty"`
	Question   string               `json:"question"`
	Kanda      quizstore.Kanda      `json:"kanda,omitempty"`
	Tags       []string             `json:"tags"`
	Difficulty quizstore.Difficulty `json:"difficulty,omitempty"`
	Answers    []Answer             `json:"answers"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// Answer is an answer embedded in a Document.
type Answer struct {
	Answer    string `json:"answer"`
	IsCorrect bool   `json:"is_correct"`
}

// NewDocument builds the document for q. The store sets no timestamps of its
// own, so both are taken from now.
func NewDocument(q quizstore.Question, now time.Time) Document {
	tags := q.Tags
	if tags == nil {
		tags = []string{}
	}

	answers := make([]Answer, len(q.Answers))
	for i, a := range q.Answers {
		answers[i] = Answer{Answer: a.Text, IsCorrect: a.IsCorrect}
	}

	now = now.UTC()
	return Document{
		Question:   q.Text,
		Kanda:      q.Kanda,
		Tags:       tags,
		Difficulty: q.Difficulty,
		Answers:    answers,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
