// Package queue publishes deferred tasks to RabbitMQ for the enrichment
// workers. Consuming is done elsewhere.
package queue

import (
	"context"
)

// Queue names the workers listen on.
const (
	QueueTranslate   = "translate-hindi"
	QueueInformation = "question-information"
)

// Task is one unit of deferred work. The consumer imports Module and calls
// Function with Args, so the JSON field names are fixed.
type Task struct {
	Module   string `json:"module_name"`
	Function string `json:"function_name"`
	Args     []any  `json:"args"`
}

// TranslateTask asks the workers to translate a created question.
func TranslateTask(questionID int64) Task {
	return Task{Module: "translate", Function: "translate_question", Args: []any{questionID}}
}

// InformationTask asks the workers to fill in the information of a question.
func InformationTask(questionID int64) Task {
	return Task{Module: "question_information", Function: "question_information", Args: []any{questionID}}
}

// Publisher sends tasks to named queues.
type Publisher interface {
	// Publish sends task to queue, declaring the queue durable if needed.
	Publish(ctx context.Context, queue string, task Task) error

	// Health checks that the broker channel is open.
	Health(ctx context.Context) error

	// Close closes the channel and its connection.
	Close() error
}
