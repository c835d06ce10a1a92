package session

import "context"

// Dialer builds a new connection handle from configuration.
// It must either return a usable handle or an error, never a half-built one.
type Dialer[H any] func(ctx context.Context) (H, error)

// Classifier reports whether err means the connection itself is unusable
// (dropped, reset, closed by the server) rather than the statement having
// failed.
type Classifier func(err error) bool
