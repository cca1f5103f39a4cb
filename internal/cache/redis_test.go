package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestProvider(t *testing.T) *RedisProvider {
	t.Helper()
	srv := miniredis.RunT(t)
	provider, err := NewRedisProvider(srv.Addr(), "", "", 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = provider.Close() })
	return provider
}

func TestRedisProviderRoundTrip(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	if err := p.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := p.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("unexpected value: %q", got)
	}

	if err := p.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := p.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss after delete, got %v", err)
	}
}

func TestRedisProviderMiss(t *testing.T) {
	p := newTestProvider(t)

	if _, err := p.Get(context.Background(), "absent"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestRedisProviderSetNX(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	ok, err := p.SetNX(ctx, "lock", []byte("a"), time.Minute)
	if err != nil || !ok {
		t.Fatalf("first SetNX should win: ok=%v err=%v", ok, err)
	}
	ok, err = p.SetNX(ctx, "lock", []byte("b"), time.Minute)
	if err != nil {
		t.Fatalf("second SetNX: %v", err)
	}
	if ok {
		t.Fatalf("second SetNX should not overwrite")
	}
}
