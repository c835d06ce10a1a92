package drivers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/supabase-community/supabase-go"

	"github.com/creastat/quizstore/session"
)

// SupabaseConfig holds Supabase connection configuration.
type SupabaseConfig struct {
	URL    string
	APIKey string
}

// Supabase returns a dialer that creates a Supabase client. The client is
// stateless HTTP, so dialing never touches the network.
func Supabase(cfg SupabaseConfig) session.Dialer[*supabase.Client] {
	return func(ctx context.Context) (*supabase.Client, error) {
		if cfg.URL == "" {
			return nil, fmt.Errorf("supabase URL is required")
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("supabase API key is required")
		}

		client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create supabase client: %w", err)
		}
		return client, nil
	}
}

// IsSupabaseTransport reports whether err is a network failure talking to the
// Supabase REST endpoint.
func IsSupabaseTransport(err error) bool {
	if err == nil || isContextErr(err) {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
