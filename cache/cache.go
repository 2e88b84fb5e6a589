// Package cache holds fetched server state keyed by resource, with
// staleness windows, invalidation, and an index from server records to the
// entries that contain them.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultStaleTime = 5 * time.Minute
	DefaultGCTime    = 10 * time.Minute
)

type EventType int

const (
	EventUpdated     EventType = iota // Value written by a fetch or a mutation
	EventInvalidated                  // Marked for refetch
	EventRemoved                      // Dropped from the cache
)

// Event tells subscribers an entry changed.
type Event struct {
	Type EventType
	Key  Key
}

type entry struct {
	key        Key
	value      any
	hasValue   bool
	fetchedAt  time.Time
	usedAt     time.Time
	staleAfter time.Duration
	invalid    bool
	gen        uint64 // Bumped by every write and invalidation
	fetching   int
	refs       []Ref
}

type indexer struct {
	prefix Key
	refs   func(value any) []Ref
}

// Cache is safe for concurrent use. Every write is applied under one lock,
// so readers never see a half patched entry.
type Cache struct {
	mu           sync.RWMutex
	entries      map[string]*entry
	refIndex     map[Ref]map[string]struct{}
	indexers     []indexer
	flights      singleflight.Group
	staleTime    time.Duration
	gcTime       time.Duration
	nowFunc      func() time.Time
	logger       zerolog.Logger
	provider     metric.MeterProvider
	metrics      *metrics
	subscribers  map[int]func(Event)
	nextSubscrib int
}

type Option func(*Cache)

func WithNowFunc(now func() time.Time) Option {
	return func(c *Cache) {
		c.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithStaleTime sets the staleness window for queries that do not set their own.
func WithStaleTime(d time.Duration) Option {
	return func(c *Cache) {
		c.staleTime = d
	}
}

// WithGCTime sets how long an unused entry is kept before Prune drops it.
func WithGCTime(d time.Duration) Option {
	return func(c *Cache) {
		c.gcTime = d
	}
}

func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *Cache) {
		c.provider = provider
	}
}

func New(options ...Option) (*Cache, error) {
	c := &Cache{
		entries:     make(map[string]*entry),
		refIndex:    make(map[Ref]map[string]struct{}),
		staleTime:   DefaultStaleTime,
		gcTime:      DefaultGCTime,
		nowFunc:     time.Now,
		logger:      log.Logger,
		subscribers: make(map[int]func(Event)),
	}
	for _, opt := range options {
		opt(c)
	}
	if c.provider == nil {
		c.provider = otel.GetMeterProvider()
	}
	m, err := newMetrics(c.provider)
	if err != nil {
		return nil, err
	}
	c.metrics = m
	return c, nil
}

// Index registers refs to extract the server records held by values stored
// under prefix. Register indexers before storing values.
func (c *Cache) Index(prefix Key, refs func(value any) []Ref) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexers = append(c.indexers, indexer{prefix: prefix.clone(), refs: refs})
}

// Subscribe registers fn for cache events and returns a function that removes it.
// fn is called without the cache lock held.
func (c *Cache) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSubscrib
	c.nextSubscrib++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

func (c *Cache) emit(events []Event) {
	if len(events) == 0 {
		return
	}
	c.mu.RLock()
	fns := make([]func(Event), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, e := range events {
		for _, fn := range fns {
			fn(e)
		}
	}
}

// entryLocked returns the entry for key, creating an empty one. c.mu must be held.
func (c *Cache) entryLocked(key Key) *entry {
	id := key.String()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{key: key.clone(), staleAfter: c.staleTime, usedAt: c.nowFunc()}
		c.entries[id] = e
	}
	return e
}

// writeLocked stores value as the authoritative state of e. c.mu must be held.
func (c *Cache) writeLocked(e *entry, value any) {
	now := c.nowFunc()
	e.value = value
	e.hasValue = true
	e.fetchedAt = now
	e.usedAt = now
	e.invalid = false
	e.gen++
	c.reindexLocked(e)
}

func (c *Cache) reindexLocked(e *entry) {
	id := e.key.String()
	for _, ref := range e.refs {
		if keys, ok := c.refIndex[ref]; ok {
			delete(keys, id)
			if len(keys) == 0 {
				delete(c.refIndex, ref)
			}
		}
	}
	e.refs = nil
	if !e.hasValue {
		return
	}
	for _, ix := range c.indexers {
		if !e.key.HasPrefix(ix.prefix) {
			continue
		}
		for _, ref := range ix.refs(e.value) {
			keys, ok := c.refIndex[ref]
			if !ok {
				keys = make(map[string]struct{})
				c.refIndex[ref] = keys
			}
			keys[id] = struct{}{}
			e.refs = append(e.refs, ref)
		}
	}
}

func (c *Cache) deleteLocked(e *entry) {
	e.hasValue = false
	c.reindexLocked(e)
	delete(c.entries, e.key.String())
}

// matchLocked returns the entries whose keys start with prefix. c.mu must be held.
func (c *Cache) matchLocked(prefix Key) []*entry {
	var matched []*entry
	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			matched = append(matched, e)
		}
	}
	return matched
}

// Invalidate marks every entry under prefix stale, so the next read fetches.
// A fetch already in flight for those entries will not overwrite them.
func (c *Cache) Invalidate(prefix Key) int {
	c.mu.Lock()
	var events []Event
	for _, e := range c.matchLocked(prefix) {
		e.invalid = true
		e.gen++
		c.flights.Forget(e.key.String())
		if e.hasValue {
			events = append(events, Event{Type: EventInvalidated, Key: e.key.clone()})
		}
	}
	c.mu.Unlock()

	c.emit(events)
	return len(events)
}

// Remove drops every entry under prefix.
func (c *Cache) Remove(prefix Key) int {
	c.mu.Lock()
	var events []Event
	for _, e := range c.matchLocked(prefix) {
		if e.hasValue {
			events = append(events, Event{Type: EventRemoved, Key: e.key.clone()})
		}
		c.flights.Forget(e.key.String())
		c.deleteLocked(e)
	}
	c.mu.Unlock()

	c.emit(events)
	return len(events)
}

// Clear drops everything. Fetches in flight will not repopulate the cache.
func (c *Cache) Clear() {
	c.Remove(nil)
}

// Prune drops entries that have not been read or written within the GC time
// and are not being fetched.
func (c *Cache) Prune() int {
	cutoff := c.nowFunc().Add(-c.gcTime)

	c.mu.Lock()
	var events []Event
	for _, e := range c.entries {
		if e.fetching > 0 || !e.usedAt.Before(cutoff) {
			continue
		}
		if e.hasValue {
			events = append(events, Event{Type: EventRemoved, Key: e.key.clone()})
		}
		c.deleteLocked(e)
	}
	c.mu.Unlock()

	c.emit(events)
	return len(events)
}

// RunJanitor calls Prune every interval until ctx is done.
func (c *Cache) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Prune(); n > 0 {
				c.logger.Debug().Int("entries", n).Msg("pruned unused cache entries")
			}
		}
	}
}

// Keys returns the keys that hold a value referencing ref.
func (c *Cache) Keys(ref Ref) []Key {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var keys []Key
	for id := range c.refIndex[ref] {
		if e, ok := c.entries[id]; ok {
			keys = append(keys, e.key.clone())
		}
	}
	return keys
}

// IsFetching reports whether a fetch for key is in flight.
func (c *Cache) IsFetching(key Key) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key.String()]
	return ok && e.fetching > 0
}

// IsStale reports whether key has no usable fresh value.
func (c *Cache) IsStale(key Key) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key.String()]
	return !ok || !c.freshLocked(e)
}

func (c *Cache) freshLocked(e *entry) bool {
	return e.hasValue && !e.invalid && c.nowFunc().Sub(e.fetchedAt) < e.staleAfter
}

// Len returns the number of entries holding a value.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, e := range c.entries {
		if e.hasValue {
			n++
		}
	}
	return n
}
