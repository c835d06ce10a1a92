package session

import (
	"context"
	"errors"

	"github.com/creastat/quizstore"
)

// Retry runs op with the current handle. If op fails with a transport error,
// the handle is recreated and op runs exactly once more; a second transport
// failure is returned as *quizstore.TransportError. Any other error is
// returned untouched and never retried.
//
// op may run twice, so it must not leave partial effects behind when it
// fails, which holds for a single transaction or a single command.
func Retry[H any, T any](ctx context.Context, p *Provider[H], op func(context.Context, H) (T, error)) (T, error) {
	var zero T

	e, err := p.acquire(ctx, false)
	if err != nil {
		return zero, err
	}

	res, err := op(ctx, e.handle)
	if err == nil || ctx.Err() != nil || !p.isTransport(err) {
		return res, err
	}

	p.logger.WithError(err).WithField("generation", e.gen).Warn("transport failure, recreating connection")

	e, err = p.renew(ctx, e.gen)
	if err != nil {
		return zero, err
	}

	res, err = op(ctx, e.handle)
	if err != nil && p.isTransport(err) {
		return zero, p.transportError(err)
	}
	return res, err
}

// Do is Retry for operations without a result.
func Do[H any](ctx context.Context, p *Provider[H], op func(context.Context, H) error) error {
	_, err := Retry(ctx, p, func(ctx context.Context, h H) (struct{}, error) {
		return struct{}{}, op(ctx, h)
	})
	return err
}

func (p *Provider[H]) isTransport(err error) bool {
	var te *quizstore.TransportError
	if errors.As(err, &te) {
		return true
	}
	return p.classify != nil && p.classify(err)
}

func (p *Provider[H]) transportError(err error) error {
	var te *quizstore.TransportError
	if errors.As(err, &te) {
		return err
	}
	return &quizstore.TransportError{Backend: p.name, Err: err}
}
