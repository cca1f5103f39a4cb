// Package cache provides the byte-value cache used to memoize embedding
// lookups between analysis runs.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss signals that a key was not found.
var ErrCacheMiss = errors.New("cache miss")

// Provider is the minimal cache surface the engine depends on. A ttl of zero
// means no expiry.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	Close() error
}

// NoopProvider satisfies Provider without storing anything. It is the default
// when caching is disabled; every Get misses.
type NoopProvider struct{}

func (NoopProvider) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (NoopProvider) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return true, nil
}

func (NoopProvider) Del(context.Context, string) error { return nil }

func (NoopProvider) Close() error { return nil }
