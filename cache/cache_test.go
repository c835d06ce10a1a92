package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/creastat/quizstore/session"
	"github.com/creastat/quizstore/session/drivers"
)

type page struct {
	IDs []int64 `json:"ids"`
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	logger, _ := test.NewNullLogger()
	provider := session.New("redis", drivers.Redis(drivers.RedisConfig{Addr: mr.Addr()}),
		session.WithClassifier(drivers.IsRedisTransport),
		session.WithLogger(logger),
	)
	defer provider.Close()

	c := NewRedis(provider, "questions:")
	ctx := context.Background()

	var got page
	found, err := c.Get(ctx, "0-20", &got)
	if err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}

	if err := c.Set(ctx, "0-20", page{IDs: []int64{1, 2}}, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ttl := mr.TTL("questions:0-20"); ttl != time.Minute {
		t.Errorf("expected native TTL of 1m, got %v", ttl)
	}

	found, err = c.Get(ctx, "0-20", &got)
	if err != nil || !found {
		t.Fatalf("expected hit, got found=%v err=%v", found, err)
	}
	if len(got.IDs) != 2 || got.IDs[1] != 2 {
		t.Errorf("unexpected cached value: %+v", got)
	}

	mr.FastForward(61 * time.Second)
	if found, _ := c.Get(ctx, "0-20", &got); found {
		t.Error("expected entry to expire")
	}
}

func TestMemoryCache(t *testing.T) {
	now := time.Date(2025, 5, 9, 0, 0, 0, 0, time.UTC)
	c := NewMemory()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if err := c.Set(ctx, "0-20-easy", page{IDs: []int64{3}}, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got page
	if found, err := c.Get(ctx, "0-20-easy", &got); err != nil || !found {
		t.Fatalf("expected hit, got found=%v err=%v", found, err)
	}
	if len(got.IDs) != 1 || got.IDs[0] != 3 {
		t.Errorf("unexpected cached value: %+v", got)
	}

	now = now.Add(time.Minute)
	if found, _ := c.Get(ctx, "0-20-easy", &got); found {
		t.Error("expected entry to expire after its TTL")
	}
	if _, ok := c.entries["0-20-easy"]; ok {
		t.Error("expected expired entry to be evicted")
	}
}

func TestMemoryCache_DecodeError(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	_ = c.Set(ctx, "k", "not a page", time.Minute)

	var got page
	if _, err := c.Get(ctx, "k", &got); err == nil {
		t.Error("expected decode error")
	}
}

func TestRedisCache_Health(t *testing.T) {
	mr := miniredis.RunT(t)
	logger, _ := test.NewNullLogger()
	provider := session.New("redis", drivers.Redis(drivers.RedisConfig{Addr: mr.Addr()}),
		session.WithClassifier(drivers.IsRedisTransport),
		session.WithLogger(logger),
	)
	defer provider.Close()

	c := NewRedis(provider, "")
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
