package quiz

import (
	"context"
	"fmt"

	"github.com/creastat/quizstore/postgres"
	"github.com/creastat/quizstore/queue"
)

// Backfill copies every question from PostgreSQL into the document store,
// pageSize questions at a time, until a page comes back empty. It returns the
// number of documents written.
func (s *Service) Backfill(ctx context.Context, pageSize int) (int, error) {
	if pageSize <= 0 {
		pageSize = postgres.DefaultLimit
	}

	total := 0
	for offset := 0; ; offset += pageSize {
		page, err := s.store.ListQuestions(ctx, postgres.ListFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return total, fmt.Errorf("failed to read page at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			return total, nil
		}

		ids, err := s.docs.CreateQuestionsBulk(ctx, page)
		if err != nil {
			return total, fmt.Errorf("failed to copy page at offset %d: %w", offset, err)
		}
		total += len(ids)
		s.logger.WithField("offset", offset).WithField("count", len(ids)).Info("copied questions to document store")
	}
}

// SyncDifficulty copies the difficulty of every PostgreSQL question to the
// documents with the same question text. It returns the number of documents
// modified.
func (s *Service) SyncDifficulty(ctx context.Context) (int64, error) {
	questions, err := s.store.ListDifficulties(ctx)
	if err != nil {
		return 0, err
	}

	var modified int64
	for _, q := range questions {
		n, err := s.docs.UpdateDifficulty(ctx, q.Text, q.Difficulty)
		if err != nil {
			return modified, fmt.Errorf("failed to sync difficulty of question %d: %w", q.ID, err)
		}
		modified += n
	}
	return modified, nil
}

// EnqueueMissingInformation queues an information task for every question
// whose information has not been filled in yet. It returns the number of
// tasks queued.
func (s *Service) EnqueueMissingInformation(ctx context.Context) (int, error) {
	questions, err := s.store.QuestionsMissingInformation(ctx)
	if err != nil {
		return 0, err
	}

	for i, q := range questions {
		if err := s.publisher.Publish(ctx, queue.QueueInformation, queue.InformationTask(q.ID)); err != nil {
			return i, fmt.Errorf("failed to queue information task for question %d: %w", q.ID, err)
		}
	}
	s.logger.WithField("count", len(questions)).Info("queued information tasks")
	return len(questions), nil
}
