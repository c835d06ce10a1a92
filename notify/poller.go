// Package notify tells connected clients when new questions are added.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultInterval is the time between two polls.
const DefaultInterval = 5 * time.Second

// Source reports new questions. postgres.Client satisfies it.
type Source interface {
	MostRecentQuestionID(ctx context.Context) (int64, error)

	// QuestionsSince returns the number of questions after lastID and the
	// newest id among them, read together.
	QuestionsSince(ctx context.Context, lastID int64) (int, int64, error)
}

// Sink receives notifications for one connected peer.
type Sink interface {
	// Send delivers a text message to the peer.
	Send(ctx context.Context, msg string) error

	// Disconnected reports whether the peer has gone away.
	Disconnected() bool
}

// Config holds poller configuration
type Config struct {
	Interval time.Duration // Default: 5 seconds
	Logger   logrus.FieldLogger
}

// Poller watches a Source for questions newer than the last one it has seen.
type Poller struct {
	source   Source
	interval time.Duration
	logger   logrus.FieldLogger
}

// New creates a Poller.
func New(source Source, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Poller{
		source:   source,
		interval: cfg.Interval,
		logger:   cfg.Logger,
	}
}

// Message is the notification text for n new questions.
func Message(n int) string {
	return fmt.Sprintf("%d new question(s) added", n)
}

// Run polls until ctx is done or the sink disconnects, sending one message
// per poll that found new questions. It returns nil when the peer left or ctx
// ended, and the send error if delivering a message failed.
//
// A failed poll is logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context, sink Sink) error {
	lastID, err := p.source.MostRecentQuestionID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read most recent question: %w", err)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if sink.Disconnected() {
			return nil
		}

		n, newest, err := p.poll(ctx, lastID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.WithError(err).WithField("last_id", lastID).Warn("failed to poll for new questions")
			continue
		}
		if n == 0 {
			continue
		}

		if sink.Disconnected() {
			return nil
		}
		if err := sink.Send(ctx, Message(n)); err != nil {
			return fmt.Errorf("failed to send notification: %w", err)
		}
		lastID = newest
	}
}

// poll returns how many questions follow lastID and the newest id.
func (p *Poller) poll(ctx context.Context, lastID int64) (int, int64, error) {
	n, newest, err := p.source.QuestionsSince(ctx, lastID)
	if err != nil || n == 0 {
		return 0, lastID, err
	}
	return n, newest, nil
}
