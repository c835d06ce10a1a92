package drivers

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/creastat/quizstore/session"
)

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host            string
	Port            int // Default: 5432
	User            string
	Password        string
	Database        string
	SSLMode         string        // Default: disable
	ApplicationName string        // Default: quizd
	ConnectTimeout  time.Duration // Default: 5 seconds
	MaxOpenConns    int           // Default: 10
}

func (cfg *PostgresConfig) applyDefaults() {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.ApplicationName == "" {
		cfg.ApplicationName = "quizd"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 10
	}
}

// DSN renders cfg as a keyword/value connection string.
func (cfg PostgresConfig) DSN() string {
	cfg.applyDefaults()

	pairs := []struct{ k, v string }{
		{"host", cfg.Host},
		{"port", fmt.Sprint(cfg.Port)},
		{"user", cfg.User},
		{"password", cfg.Password},
		{"dbname", cfg.Database},
		{"sslmode", cfg.SSLMode},
		{"application_name", cfg.ApplicationName},
		{"connect_timeout", fmt.Sprint(timeoutSeconds(cfg.ConnectTimeout))},
	}

	var b strings.Builder
	for _, p := range pairs {
		if p.v == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p.k)
		b.WriteString("='")
		b.WriteString(strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(p.v))
		b.WriteByte('\'')
	}
	return b.String()
}

// timeoutSeconds rounds d up to whole seconds. libpq reads 0 as no timeout,
// so the result is never below 1.
func timeoutSeconds(d time.Duration) int64 {
	secs := int64((d + time.Second - 1) / time.Second)
	return max(secs, 1)
}

// Postgres returns a dialer that opens a database/sql pool over pgx and
// verifies it with a ping.
func Postgres(cfg PostgresConfig) session.Dialer[*sql.DB] {
	cfg.applyDefaults()
	dsn := cfg.DSN()

	return func(ctx context.Context) (*sql.DB, error) {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		db.SetMaxOpenConns(cfg.MaxOpenConns)

		ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping postgres: %w", err)
		}
		return db, nil
	}
}

// IsPostgresTransport reports whether err means the connection to PostgreSQL
// is broken, as opposed to a query-level failure.
func IsPostgresTransport(err error) bool {
	if err == nil || isContextErr(err) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception; 57P01-57P03 are server shutdown.
		return strings.HasPrefix(pgErr.Code, "08") ||
			pgErr.Code == "57P01" || pgErr.Code == "57P02" || pgErr.Code == "57P03"
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return pgconn.SafeToRetry(err)
}
