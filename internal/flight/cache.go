package flight

import (
	"context"
	"fmt"
	"sync"
	"time"

	"main/internal/notify"
)

type status uint8

const (
	statusIdle status = iota
	statusPending
	statusCompleted
	statusFailed
)

// Fetch produces the value for a key. The first caller to find a key
// idle or stale runs it; everyone else attaches to the in-flight result.
// Callers wrap it with whatever retry policy they need before handing it
// in.
type Fetch[V any] func(context.Context) (V, error)

type entry[V any] struct {
	status status
	value  V
	err    error
	at     time.Time
	done   chan struct{}
}

// Cache memoizes one fetch per key within a freshness window. At most one
// fetch is in flight per key at any instant; a completed value younger
// than the window satisfies requests without an upstream call.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[V]

	name     string
	window   time.Duration
	notifier notify.Notifier
	observe  func(kind string)
	now      func() time.Time
}

func New[K comparable, V any](name string, window time.Duration, notifier notify.Notifier) *Cache[K, V] {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Cache[K, V]{
		entries:  make(map[K]*entry[V]),
		name:     name,
		window:   window,
		notifier: notifier,
		now:      time.Now,
	}
}

// Observe registers a hook receiving one outcome kind per Get: "attach"
// for a waiter joining an in-flight fetch, "hit" for a fresh cached
// value, "fetch" for an owned upstream call, "error" when that call
// fails. Returns the cache for construction chaining.
func (c *Cache[K, V]) Observe(fn func(kind string)) *Cache[K, V] {
	c.observe = fn
	return c
}

// Get resolves the value for key, collapsing concurrent identical
// requests into a single fetch. Waiters receive the in-flight result,
// success or failure, without triggering a second upstream call.
func (c *Cache[K, V]) Get(ctx context.Context, key K, fetch Fetch[V]) (V, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	now := c.now()

	if ok {
		switch e.status {
		case statusPending:
			done := e.done
			c.mu.Unlock()
			c.count("attach")
			c.event(notify.SeverityInfo, "attached to the pending fetch for %v", key)
			select {
			case <-done:
			case <-ctx.Done():
				var zero V
				return zero, ctx.Err()
			}
			c.mu.Lock()
			value, err := e.value, e.err
			c.mu.Unlock()
			return value, err
		case statusCompleted:
			if now.Sub(e.at) < c.window {
				value := e.value
				c.mu.Unlock()
				c.count("hit")
				c.event(notify.SeverityInfo, "served %v from the fresh window", key)
				return value, nil
			}
		}
	}

	// Idle, stale or failed: this caller owns the fetch.
	e = &entry[V]{status: statusPending, at: now, done: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()
	c.count("fetch")
	c.event(notify.SeverityInfo, "fetch created for %v", key)

	value, err := fetch(ctx)

	c.mu.Lock()
	e.value, e.err = value, err
	e.at = c.now()
	if err != nil {
		e.status = statusFailed
	} else {
		e.status = statusCompleted
	}
	close(e.done)
	c.mu.Unlock()

	if err != nil {
		c.count("error")
		c.event(notify.SeverityError, "fetch for %v failed: %v", key, err)
	} else {
		c.event(notify.SeverityInfo, "fetch for %v completed", key)
	}
	return value, err
}

// LastKnown reads the most recent completed value regardless of age. It
// never satisfies Get's freshness contract; it exists for opportunistic
// reads only.
func (c *Cache[K, V]) LastKnown(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.status != statusCompleted {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Invalidate drops the entry for key so the next Get refetches.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.status != statusPending {
		delete(c.entries, key)
	}
}

func (c *Cache[K, V]) count(kind string) {
	if c.observe != nil {
		c.observe(kind)
	}
}

func (c *Cache[K, V]) event(severity notify.Severity, format string, args ...any) {
	c.notifier.Notify(notify.Event{
		Severity: severity,
		Category: c.name,
		Message:  fmt.Sprintf(format, args...),
		At:       c.now(),
	})
}
