// Package cache memoizes expensive, deterministic computations by key.
package cache

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Result values passed to the lookup hook.
const (
	ResultHit  = "hit"
	ResultMiss = "miss"
)

// Memo is a TTL cache in front of a compute function. Concurrent misses for the same key
// share a single computation. Values must be treated as read-only by callers.
type Memo[T any] struct {
	store    *gocache.Cache
	group    singleflight.Group
	onLookup func(result string)
}

// Option configures a Memo.
type Option func(*options)

type options struct {
	onLookup func(result string)
}

// WithLookupHook registers a callback invoked with ResultHit or ResultMiss on every lookup.
func WithLookupHook(fn func(result string)) Option {
	return func(o *options) {
		o.onLookup = fn
	}
}

// NewMemo creates a memo whose entries expire after ttl and are purged every cleanupInterval.
func NewMemo[T any](ttl, cleanupInterval time.Duration, opts ...Option) *Memo[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Memo[T]{
		store:    gocache.New(ttl, cleanupInterval),
		onLookup: o.onLookup,
	}
}

// Get returns the cached value for key, if present and unexpired.
func (m *Memo[T]) Get(key string) (T, bool) {
	if val, found := m.store.Get(key); found {
		if typed, ok := val.(T); ok {
			return typed, true
		}
	}
	var zero T
	return zero, false
}

// GetOrCompute returns the cached value for key or runs compute and caches its result.
// Errors are returned to every waiter and never cached.
func (m *Memo[T]) GetOrCompute(key string, compute func() (T, error)) (T, error) {
	if val, ok := m.Get(key); ok {
		m.record(ResultHit)
		return val, nil
	}
	m.record(ResultMiss)

	v, err, _ := m.group.Do(key, func() (interface{}, error) {
		// Another caller may have filled the entry while this one waited.
		if val, ok := m.Get(key); ok {
			return val, nil
		}
		val, err := compute()
		if err != nil {
			return nil, err
		}
		m.store.SetDefault(key, val)
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache: unexpected value type %T for key %s", v, key)
	}
	return typed, nil
}

// Flush drops every entry.
func (m *Memo[T]) Flush() {
	m.store.Flush()
}

// Len returns the number of entries, including expired ones not yet purged.
func (m *Memo[T]) Len() int {
	return m.store.ItemCount()
}

func (m *Memo[T]) record(result string) {
	if m.onLookup != nil {
		m.onLookup(result)
	}
}
