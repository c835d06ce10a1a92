// Package session keeps one lazily created, process-wide connection handle per
// backend and transparently replaces it when it goes stale.
//
// A Provider is shared by every caller of a backend. Callers never hold on to
// a handle: they run their operation through Do or Retry, which hand out the
// current handle and, when the operation fails with a transport error,
// recreate the handle and run the operation exactly once more.
package session

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/creastat/quizstore"
)

// entry is an immutable snapshot of the cached handle.
type entry[H any] struct {
	handle H
	gen    uint64
}

// Provider owns the shared handle of one backend.
type Provider[H any] struct {
	name     string
	dial     Dialer[H]
	classify Classifier
	logger   logrus.FieldLogger

	// mu serializes handle construction. Readers never take it.
	mu      sync.Mutex
	gen     uint64
	current atomic.Pointer[entry[H]]
}

// New creates a Provider for the named backend. No connection is made until
// the first Acquire.
func New[H any](name string, dial Dialer[H], opts ...Option) *Provider[H] {
	cfg := &providerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logrus.StandardLogger()
	}

	return &Provider[H]{
		name:     name,
		dial:     dial,
		classify: cfg.classify,
		logger:   cfg.logger.WithField("backend", name),
	}
}

// Name returns the backend name used in errors and logs.
func (p *Provider[H]) Name() string {
	return p.name
}

// Acquire returns the cached handle, creating it first if there is none or if
// force is set. A replaced handle is closed in the background.
// Construction failures are returned as *quizstore.ConnectionError and are
// not retried.
func (p *Provider[H]) Acquire(ctx context.Context, force bool) (H, error) {
	e, err := p.acquire(ctx, force)
	if err != nil {
		var zero H
		return zero, err
	}
	return e.handle, nil
}

// Generation returns the number of handles created so far, 0 before the first.
func (p *Provider[H]) Generation() uint64 {
	if e := p.current.Load(); e != nil {
		return e.gen
	}
	return 0
}

// Close closes the current handle. The next Acquire creates a new one.
func (p *Provider[H]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.current.Swap(nil)
	if prev == nil {
		return nil
	}
	return closeHandle(prev.handle)
}

func (p *Provider[H]) acquire(ctx context.Context, force bool) (*entry[H], error) {
	if !force {
		if e := p.current.Load(); e != nil {
			return e, nil
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !force {
		if e := p.current.Load(); e != nil {
			return e, nil
		}
	}
	return p.replace(ctx)
}

// renew replaces the handle of generation gen. When another caller already
// replaced it, the newer handle is returned without dialing again.
func (p *Provider[H]) renew(ctx context.Context, gen uint64) (*entry[H], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e := p.current.Load(); e != nil && e.gen != gen {
		return e, nil
	}
	return p.replace(ctx)
}

// replace dials a new handle and publishes it. Must be called with p.mu held.
// On failure the previous handle, if any, stays in place.
func (p *Provider[H]) replace(ctx context.Context) (*entry[H], error) {
	handle, err := p.dial(ctx)
	if err != nil {
		p.logger.WithError(err).Error("failed to create connection")
		return nil, &quizstore.ConnectionError{Backend: p.name, Err: err}
	}

	p.gen++
	next := &entry[H]{handle: handle, gen: p.gen}
	prev := p.current.Swap(next)
	p.logger.WithField("generation", next.gen).Info("connection established")

	if prev != nil {
		// In-flight users of the old handle fail over on their own retry.
		go func(old H, gen uint64) {
			if err := closeHandle(old); err != nil {
				p.logger.WithError(err).WithField("generation", gen).Debug("failed to close replaced connection")
			}
		}(prev.handle, prev.gen)
	}

	return next, nil
}

// closeHandle closes handles that know how to close themselves.
func closeHandle(h any) error {
	switch c := h.(type) {
	case io.Closer:
		return c.Close()
	case interface{ Disconnect(context.Context) error }:
		return c.Disconnect(context.Background())
	}
	return nil
}
