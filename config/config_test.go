package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != ":8000" {
		t.Errorf("expected :8000, got %s", cfg.Server.Addr)
	}
	if cfg.Postgres.Port != 5432 || cfg.Postgres.SSLMode != "disable" {
		t.Errorf("unexpected postgres defaults: %+v", cfg.Postgres)
	}
	if cfg.DocStore.Type != "mongo" || cfg.DocStore.Mongo.URI != "mongodb://localhost:27017/" {
		t.Errorf("unexpected docstore defaults: %+v", cfg.DocStore)
	}
	if cfg.RateLimit.Quota != 5 || cfg.RateLimit.Window != time.Minute {
		t.Errorf("unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
	if cfg.Cache.TTL != time.Minute || cfg.Feed.Interval != 5*time.Second {
		t.Errorf("unexpected cache or feed defaults: %+v %+v", cfg.Cache, cfg.Feed)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "quiz")
	t.Setenv("MONGODB_CONNECTION_STRING", "mongodb://mongo:27017/")
	t.Setenv("ADMIN_PASSWORD", "hunter2")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Postgres.Host != "db.internal" || cfg.Postgres.Port != 6543 || cfg.Postgres.Name != "quiz" {
		t.Errorf("unexpected postgres config: %+v", cfg.Postgres)
	}
	if cfg.DocStore.Mongo.URI != "mongodb://mongo:27017/" {
		t.Errorf("unexpected mongo uri: %s", cfg.DocStore.Mongo.URI)
	}
	if cfg.Auth.AdminPassword != "hunter2" {
		t.Errorf("unexpected admin password: %q", cfg.Auth.AdminPassword)
	}
	if cfg.Redis.DB != 3 || cfg.Cache.TTL != 90*time.Second || cfg.Log.Format != "json" {
		t.Errorf("derived env names not applied: %+v %+v %+v", cfg.Redis, cfg.Cache, cfg.Log)
	}
}

func TestLoad_LegacyEnvWins(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "derived")
	t.Setenv("DB_HOST", "legacy")
	t.Setenv("AUTH_JWT_SECRET", "derived-secret")
	t.Setenv("JWT_SECRET", "legacy-secret")
	t.Setenv("POSTGRES_USER", "derived-only")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Postgres.Host != "legacy" {
		t.Errorf("expected legacy, got %s", cfg.Postgres.Host)
	}
	if cfg.Auth.JWTSecret != "legacy-secret" {
		t.Errorf("expected legacy-secret, got %s", cfg.Auth.JWTSecret)
	}
	// The derived name still applies when the legacy one is unset.
	if cfg.Postgres.User != "derived-only" {
		t.Errorf("expected derived-only, got %s", cfg.Postgres.User)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizd.yaml")
	content := `
server:
  addr: ":9000"
postgres:
  name: fromfile
docstore:
  type: supabase
  supabase:
    url: https://example.supabase.co
    key: anon
ratelimit:
  quota: 10
  window: 30s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SERVER_ADDR", ":9100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != ":9100" {
		t.Errorf("expected env to override file, got %s", cfg.Server.Addr)
	}
	if cfg.Postgres.Name != "fromfile" || cfg.Postgres.Host != "localhost" {
		t.Errorf("unexpected postgres config: %+v", cfg.Postgres)
	}
	if cfg.DocStore.Type != "supabase" || cfg.DocStore.Supabase.Table != "question_documents" {
		t.Errorf("unexpected docstore config: %+v", cfg.DocStore)
	}
	if cfg.RateLimit.Quota != 10 || cfg.RateLimit.Window != 30*time.Second {
		t.Errorf("unexpected rate limit config: %+v", cfg.RateLimit)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error")
	}
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"DB_NAME", "JWT_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %s in %q", want, err)
		}
	}

	cfg.Postgres.Name = "quiz"
	cfg.Auth.JWTSecret = strings.Repeat("s", 32)
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.DocStore.Type = "supabase"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "SUPABASE_URL") {
		t.Errorf("expected supabase error, got %v", err)
	}
}
