// Package cache provides an in-memory key/value store whose entries expire
// after a per-entry timeout, and a Source decorator built on it.
package cache

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

// Defaults used when no option overrides them.
const (
	DefaultTimeout       = 5 * time.Minute
	DefaultSweepInterval = 500 * time.Millisecond
)

// entry wraps a cached value with its creation time and timeout.
type entry[V any] struct {
	value     V
	createdAt time.Time
	timeout   time.Duration
}

// valid reports whether now < createdAt + timeout.
func (e *entry[V]) valid(now time.Time) bool {
	return now.Before(e.createdAt.Add(e.timeout))
}

type options struct {
	timeout  time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Cache.
type Option func(*options)

// WithTimeout sets the timeout applied by Set.
// Defaults to DefaultTimeout (5m) if not specified.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithSweepInterval sets how often expired entries are swept.
// Defaults to DefaultSweepInterval (500ms) if not specified.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		o.interval = d
	}
}

// WithClock replaces time.Now as the cache's time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the logger used to report disposal failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Cache is a thread-safe key/value store with per-entry expiry.
//
// Expired entries are removed lazily by Get and periodically by a background
// sweep. Values implementing io.Closer are closed exactly once when their
// entry is removed, whether by sweep, Remove, overwrite or Close.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[V]

	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger

	closed    bool
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Cache and starts its background sweep.
// Close must be called when the Cache is no longer needed.
func New[K comparable, V any](opts ...Option) *Cache[K, V] {
	o := options{
		timeout:  DefaultTimeout,
		interval: DefaultSweepInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	c := &Cache[K, V]{
		entries: make(map[K]*entry[V]),
		timeout: o.timeout,
		now:     o.now,
		logger:  o.logger,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.sweepLoop(o.interval)
	return c
}

// Get returns the value stored for key.
// The bool result is false if the key is absent or its entry has expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	if !e.valid(c.now()) {
		delete(c.entries, key)
		c.mu.Unlock()
		c.dispose(e)
		var zero V
		return zero, false
	}
	c.mu.Unlock()
	return e.value, true
}

// Set stores value under key using the cache's default timeout.
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetWithTimeout(key, value, c.timeout)
}

// SetWithTimeout stores value under key with the given timeout.
// An existing entry for key is removed (and disposed) first. After Close the
// value is disposed immediately and not stored.
func (c *Cache[K, V]) SetWithTimeout(key K, value V, timeout time.Duration) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.dispose(&entry[V]{value: value})
		return
	}
	old, replaced := c.entries[key]
	if replaced {
		delete(c.entries, key)
	}
	c.entries[key] = &entry[V]{
		value:     value,
		createdAt: c.now(),
		timeout:   timeout,
	}
	c.mu.Unlock()

	if replaced {
		c.dispose(old)
	}
}

// Remove deletes the entry for key, disposing its value.
// Returns false if there was no entry.
func (c *Cache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	c.mu.Unlock()

	if ok {
		c.dispose(e)
	}
	return ok
}

// Len returns the number of stored entries, including expired entries the
// sweep has not removed yet.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetOrLoad returns the cached value for key, calling load and caching its
// result on a miss. Errors are not cached. Concurrent misses for the same key
// may each call load.
func (c *Cache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

// Close stops the background sweep, waits for it to exit and removes every
// remaining entry. Close is safe to call multiple times.
func (c *Cache[K, V]) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
		<-c.done

		c.mu.Lock()
		c.closed = true
		remaining := c.entries
		c.entries = make(map[K]*entry[V])
		c.mu.Unlock()

		for _, e := range remaining {
			c.dispose(e)
		}
	})
	return nil
}

func (c *Cache[K, V]) sweepLoop(interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep removes all expired entries.
func (c *Cache[K, V]) sweep() {
	now := c.now()

	c.mu.Lock()
	var expired []*entry[V]
	for key, e := range c.entries {
		if !e.valid(now) {
			delete(c.entries, key)
			expired = append(expired, e)
		}
	}
	c.mu.Unlock()

	for _, e := range expired {
		c.dispose(e)
	}
}

// dispose closes the entry's value if it owns a resource.
// Callers must have already unlinked e from the map.
func (c *Cache[K, V]) dispose(e *entry[V]) {
	closer, ok := any(e.value).(io.Closer)
	if !ok || closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		c.logger.Warn("cache dispose", "err", err)
	}
}
