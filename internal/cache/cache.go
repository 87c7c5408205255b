package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrMiss is returned by Backend.Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Backend is the minimal surface the cache layer needs from the underlying
// key-value engine. It is injected so the orchestrator's read paths can be
// exercised against an in-memory fake.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Cache is a cache-aside layer over a Backend with JSON serialization.
type Cache struct {
	backend Backend
}

func New(backend Backend) *Cache {
	return &Cache{backend: backend}
}

// GetOrCompute returns the cached value under key, or invokes compute,
// stores its result with the given TTL, and returns it. Backend failures on
// the read path propagate rather than silently falling through to compute;
// masking a cache outage with recomputation would amplify load on the store
// exactly when it can least afford it.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var zero T

	data, err := c.backend.Get(ctx, key)
	if err == nil {
		var value T
		if unmarshalErr := json.Unmarshal(data, &value); unmarshalErr != nil {
			return zero, fmt.Errorf("cache: decode %q: %w", key, unmarshalErr)
		}
		return value, nil
	}
	if !errors.Is(err, ErrMiss) {
		return zero, fmt.Errorf("cache: read %q: %w", key, err)
	}

	value, err := compute(ctx)
	if err != nil {
		return zero, err
	}

	data, err = json.Marshal(value)
	if err != nil {
		return zero, fmt.Errorf("cache: encode %q: %w", key, err)
	}
	if err := c.backend.Set(ctx, key, data, ttl); err != nil {
		// The computed value is correct regardless; a write failure only
		// costs the next caller a recompute.
		log.WithError(err).WithField("key", key).Warn("cache store failed")
	}
	return value, nil
}

// Peek returns the cached value under key without computing anything on a
// miss. The second result reports whether the key was present.
func Peek[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	var zero T
	data, err := c.backend.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("cache: read %q: %w", key, err)
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return zero, false, fmt.Errorf("cache: decode %q: %w", key, err)
	}
	return value, true, nil
}

// Put stores a value under key with the given TTL.
func (c *Cache) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}
	return c.backend.Set(ctx, key, data, ttl)
}

// InvalidateByPattern deletes every key matching a glob-style pattern.
func (c *Cache) InvalidateByPattern(ctx context.Context, pattern string) error {
	return c.backend.DeleteByPattern(ctx, pattern)
}

// InvalidateTask purges every entry that could reflect the given task: its
// own key plus all list and count entries, since those are derived from
// predicates over tasks and cannot be selectively invalidated.
func (c *Cache) InvalidateTask(ctx context.Context, taskID string) error {
	for _, pattern := range []string{TaskKey(taskID), ListPattern, CountPattern} {
		if err := c.backend.DeleteByPattern(ctx, pattern); err != nil {
			return fmt.Errorf("cache: invalidate %q: %w", pattern, err)
		}
	}
	return nil
}
