package cache

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jrsteele09/go-brief-portal/internal/errors"
)

// RetryPolicy bounds how a failed fetch is retried. Attempt n waits
// min(InitialInterval*2^n, MaxInterval).
type RetryPolicy struct {
	MaxRetries      int
	ShouldRetry     func(err error) bool // nil retries every error
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var (
	DefaultRetry = RetryPolicy{MaxRetries: 3, InitialInterval: time.Second, MaxInterval: 30 * time.Second}
	NoRetry      = RetryPolicy{}
)

// Query describes how to load the value stored under Key.
type Query[T any] struct {
	Key       Key
	Fetch     func(ctx context.Context) (T, error)
	StaleTime time.Duration // Zero uses the cache default
	Retry     RetryPolicy
}

// Fetch returns the cached value when it is fresh, otherwise loads it.
// Concurrent fetches of one key share a single load.
func Fetch[T any](ctx context.Context, c *Cache, q Query[T]) (T, error) {
	c.mu.Lock()
	e := c.entryLocked(q.Key)
	e.usedAt = c.nowFunc()
	if q.StaleTime > 0 {
		e.staleAfter = q.StaleTime
	}
	if c.freshLocked(e) {
		if v, ok := e.value.(T); ok {
			c.mu.Unlock()
			c.metrics.hit(ctx, q.Key)
			return v, nil
		}
	}
	c.mu.Unlock()

	c.metrics.miss(ctx, q.Key)
	return load(ctx, c, q)
}

// Refetch loads the value regardless of freshness.
func Refetch[T any](ctx context.Context, c *Cache, q Query[T]) (T, error) {
	c.mu.Lock()
	e := c.entryLocked(q.Key)
	e.usedAt = c.nowFunc()
	if q.StaleTime > 0 {
		e.staleAfter = q.StaleTime
	}
	c.mu.Unlock()

	c.metrics.miss(ctx, q.Key)
	return load(ctx, c, q)
}

func load[T any](ctx context.Context, c *Cache, q Query[T]) (T, error) {
	var zero T
	id := q.Key.String()
	// The load outlives any single caller that joined it.
	detached := context.WithoutCancel(ctx)

	ch := c.flights.DoChan(id, func() (any, error) {
		c.mu.Lock()
		e := c.entryLocked(q.Key)
		gen := e.gen
		e.fetching++
		c.mu.Unlock()

		v, err := retry(detached, c, q)

		c.mu.Lock()
		e.fetching--
		stored := false
		if current, ok := c.entries[id]; err == nil && ok && current == e && e.gen == gen {
			c.writeLocked(e, v)
			stored = true
		}
		c.mu.Unlock()

		if err != nil {
			c.metrics.fetchError(detached, q.Key)
			return nil, err
		}
		if stored {
			c.emit([]Event{{Type: EventUpdated, Key: q.Key.clone()}})
		}
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, errors.Wrapf(errors.ErrInvalidRequest, "[cache.Fetch] %s holds a different type", id)
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func retry[T any](ctx context.Context, c *Cache, q Query[T]) (T, error) {
	p := q.Retry
	if p.MaxRetries <= 0 {
		return q.Fetch(ctx)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	if b.InitialInterval <= 0 {
		b.InitialInterval = DefaultRetry.InitialInterval
	}
	b.MaxInterval = p.MaxInterval
	if b.MaxInterval <= 0 {
		b.MaxInterval = DefaultRetry.MaxInterval
	}
	b.Multiplier = 2
	b.RandomizationFactor = 0

	v, err := backoff.Retry(ctx, func() (T, error) {
		v, err := q.Fetch(ctx)
		if err != nil && p.ShouldRetry != nil && !p.ShouldRetry(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debug().Err(err).Str("key", q.Key.String()).Dur("retry_in", next).Msg("fetch failed, retrying")
		}),
	)
	// The final attempt returns its error as-is, including the permanent wrapper.
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	return v, err
}

// Get returns the cached value for key, fresh or not.
func Get[T any](c *Cache, key Key) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var zero T
	e, ok := c.entries[key.String()]
	if !ok || !e.hasValue {
		return zero, false
	}
	v, ok := e.value.(T)
	return v, ok
}

// Set stores value under key as fresh data. A fetch already in flight for
// key will not overwrite it.
func Set[T any](c *Cache, key Key, value T) {
	c.mu.Lock()
	c.writeLocked(c.entryLocked(key), value)
	c.mu.Unlock()

	c.emit([]Event{{Type: EventUpdated, Key: key.clone()}})
}

// Update applies fn to the value under key if one of type T is present.
// The patch is applied under the cache lock.
func Update[T any](c *Cache, key Key, fn func(T) T) bool {
	c.mu.Lock()
	e, ok := c.entries[key.String()]
	if !ok || !e.hasValue {
		c.mu.Unlock()
		return false
	}
	v, ok := e.value.(T)
	if !ok {
		c.mu.Unlock()
		return false
	}
	patchLocked(c, e, fn(v))
	c.mu.Unlock()

	c.emit([]Event{{Type: EventUpdated, Key: key.clone()}})
	return true
}

// PatchRefs applies fn to every value of type T that references ref and
// returns the number of entries patched.
func PatchRefs[T any](c *Cache, ref Ref, fn func(key Key, value T) T) int {
	c.mu.Lock()
	var events []Event
	for id := range c.refIndex[ref] {
		e, ok := c.entries[id]
		if !ok || !e.hasValue {
			continue
		}
		v, ok := e.value.(T)
		if !ok {
			continue
		}
		patchLocked(c, e, fn(e.key.clone(), v))
		events = append(events, Event{Type: EventUpdated, Key: e.key.clone()})
	}
	c.mu.Unlock()

	c.emit(events)
	return len(events)
}

// patchLocked replaces the value of e and keeps its fetch time, so a patch
// does not extend the staleness window. c.mu must be held.
func patchLocked(c *Cache, e *entry, value any) {
	e.value = value
	e.usedAt = c.nowFunc()
	e.gen++
	c.reindexLocked(e)
}

// Poll refetches q immediately and then every interval until ctx is done,
// passing each result to onResult.
func Poll[T any](ctx context.Context, c *Cache, q Query[T], interval time.Duration, onResult func(T, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		v, err := Refetch(ctx, c, q)
		if ctx.Err() != nil {
			return
		}
		if onResult != nil {
			onResult(v, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
