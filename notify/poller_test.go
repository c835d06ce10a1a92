package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/creastat/quizstore/notify"
)

type fakeSource struct {
	mu     sync.Mutex
	ids    []int64
	failed int
	// polled receives once per QuestionsSince call, when not nil.
	polled chan struct{}
	// afterPoll runs after each QuestionsSince call with its count, outside
	// the lock.
	afterPoll func(n int)
}

func (s *fakeSource) add(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, id)
}

func (s *fakeSource) MostRecentQuestionID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ids) == 0 {
		return 0, nil
	}
	return s.ids[len(s.ids)-1], nil
}

func (s *fakeSource) QuestionsSince(ctx context.Context, lastID int64) (int, int64, error) {
	n, newest, err := s.since(lastID)
	if s.polled != nil {
		select {
		case s.polled <- struct{}{}:
		default:
		}
	}
	if s.afterPoll != nil {
		s.afterPoll(n)
	}
	return n, newest, err
}

func (s *fakeSource) since(lastID int64) (int, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed > 0 {
		s.failed--
		return 0, 0, errors.New("connection refused")
	}
	n, newest := 0, lastID
	for _, id := range s.ids {
		if id > lastID {
			n++
			newest = max(newest, id)
		}
	}
	return n, newest, nil
}

type fakeSink struct {
	mu       sync.Mutex
	messages []string
	gone     bool
	sent     chan string
}

func newSink() *fakeSink {
	return &fakeSink{sent: make(chan string, 16)}
}

func (s *fakeSink) Send(ctx context.Context, msg string) error {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.sent <- msg
	return nil
}

func (s *fakeSink) Disconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gone
}

func (s *fakeSink) disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gone = true
}

func newPoller(source notify.Source) *notify.Poller {
	logger, _ := test.NewNullLogger()
	return notify.New(source, notify.Config{Interval: time.Millisecond, Logger: logger})
}

func run(ctx context.Context, p *notify.Poller, sink notify.Sink) <-chan error {
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, sink) }()
	return done
}

func TestMessage(t *testing.T) {
	if got := notify.Message(3); got != "3 new question(s) added" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestRun_NotifiesNewQuestions(t *testing.T) {
	source := &fakeSource{ids: []int64{1, 2}}
	sink := newSink()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := run(ctx, newPoller(source), sink)

	// Existing questions are not announced.
	select {
	case msg := <-sink.sent:
		t.Fatalf("unexpected message before new questions: %q", msg)
	case <-time.After(20 * time.Millisecond):
	}

	source.add(3)
	source.add(4)

	select {
	case msg := <-sink.sent:
		if msg != "2 new question(s) added" {
			t.Errorf("unexpected message %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a notification")
	}

	// Already announced questions are not announced again.
	select {
	case msg := <-sink.sent:
		t.Fatalf("unexpected repeated message %q", msg)
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("expected nil on cancellation, got %v", err)
	}
}

func TestRun_StopsWhenPeerDisconnects(t *testing.T) {
	source := &fakeSource{}
	sink := newSink()

	done := run(context.Background(), newPoller(source), sink)
	sink.disconnect()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil after disconnect, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected poller to stop after disconnect")
	}
}

func TestRun_SurvivesPollErrors(t *testing.T) {
	source := &fakeSource{failed: 3, polled: make(chan struct{}, 1)}
	sink := newSink()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := run(ctx, newPoller(source), sink)

	// The first poll runs after the starting id was read, and fails.
	select {
	case <-source.polled:
	case <-time.After(time.Second):
		t.Fatal("expected a poll")
	}
	source.add(1)

	select {
	case msg := <-sink.sent:
		if msg != "1 new question(s) added" {
			t.Errorf("unexpected message %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a notification after transient failures")
	}

	cancel()
	<-done
}

func TestRun_AnnouncesQuestionsAddedDuringPoll(t *testing.T) {
	source := &fakeSource{polled: make(chan struct{}, 1)}
	sink := newSink()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var once sync.Once
	source.afterPoll = func(n int) {
		if n > 0 {
			// Committed right after the poll counted question 1.
			once.Do(func() { source.add(2) })
		}
	}

	done := run(ctx, newPoller(source), sink)
	select {
	case <-source.polled:
	case <-time.After(time.Second):
		t.Fatal("expected a poll")
	}
	source.add(1)

	for i, want := range []string{"1 new question(s) added", "1 new question(s) added"} {
		select {
		case msg := <-sink.sent:
			if msg != want {
				t.Errorf("message %d: unexpected %q", i+1, msg)
			}
		case <-time.After(time.Second):
			t.Fatalf("expected message %d", i+1)
		}
	}

	cancel()
	<-done
}
