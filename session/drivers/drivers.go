// Package drivers provides session dialers and transport classifiers for the
// backends this service talks to.
package drivers

import (
	"context"
	"errors"
	"time"
)

const defaultConnectTimeout = 5 * time.Second

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
