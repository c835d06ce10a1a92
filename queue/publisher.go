package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/creastat/quizstore"
	"github.com/creastat/quizstore/session"
	"github.com/creastat/quizstore/session/drivers"
)

// Channel is the part of an AMQP channel the publisher uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// Config holds RabbitMQ connection configuration
type Config struct {
	drivers.AMQPConfig
	Logger logrus.FieldLogger // Default: logrus standard logger
}

// AMQPPublisher implements Publisher over RabbitMQ.
type AMQPPublisher struct {
	provider *session.Provider[Channel]
	logger   logrus.FieldLogger

	// declared remembers which queues exist on declaredOn. A new channel
	// starts with an empty set.
	mu         sync.Mutex
	declaredOn Channel
	declared   map[string]bool
}

// New creates a publisher. The connection is made on first use.
func New(cfg Config) *AMQPPublisher {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	dial := drivers.AMQP(cfg.AMQPConfig)
	provider := session.New("rabbitmq", func(ctx context.Context) (Channel, error) {
		ch, err := dial(ctx)
		if err != nil {
			return nil, err
		}
		return ch, nil
	},
		session.WithClassifier(drivers.IsAMQPTransport),
		session.WithLogger(cfg.Logger),
	)
	return NewWithProvider(provider, cfg.Logger)
}

// NewWithProvider creates a publisher on an existing session provider.
func NewWithProvider(provider *session.Provider[Channel], logger logrus.FieldLogger) *AMQPPublisher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AMQPPublisher{
		provider: provider,
		logger:   logger.WithField("backend", "rabbitmq"),
		declared: make(map[string]bool),
	}
}

// Publish implements Publisher.
func (p *AMQPPublisher) Publish(ctx context.Context, queue string, task Task) error {
	if task.Args == nil {
		task.Args = []any{}
	}
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	err = session.Do(ctx, p.provider, func(ctx context.Context, ch Channel) error {
		if err := p.declare(ch, queue); err != nil {
			return err
		}
		return ch.PublishWithContext(ctx, "", queue, false, false, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}

	p.logger.WithFields(logrus.Fields{
		"queue":      queue,
		"message_id": msg.MessageId,
		"function":   task.Function,
	}).Debug("task published")
	return nil
}

func (p *AMQPPublisher) declare(ch Channel, queue string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.declaredOn != ch {
		p.declaredOn = ch
		p.declared = make(map[string]bool)
	}
	if p.declared[queue] {
		return nil
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	p.declared[queue] = true
	return nil
}

// Health implements Publisher. A closed channel is replaced once.
func (p *AMQPPublisher) Health(ctx context.Context) error {
	return session.Do(ctx, p.provider, func(ctx context.Context, ch Channel) error {
		if ch.IsClosed() {
			return &quizstore.TransportError{Backend: "rabbitmq", Err: amqp.ErrClosed}
		}
		return nil
	})
}

// Close implements Publisher.
func (p *AMQPPublisher) Close() error {
	return p.provider.Close()
}

// Compile-time check that AMQPPublisher implements Publisher
var _ Publisher = (*AMQPPublisher)(nil)
