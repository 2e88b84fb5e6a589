package cache_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-brief-portal/cache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testFixture struct {
	cache  *cache.Cache
	clock  *clock
	reader *sdkmetric.ManualReader
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	clk := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	reader := sdkmetric.NewManualReader()
	c, err := cache.New(
		cache.WithNowFunc(clk.Now),
		cache.WithLogger(zerolog.Nop()),
		cache.WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))),
	)
	require.NoError(t, err)
	return &testFixture{cache: c, clock: clk, reader: reader}
}

func (f *testFixture) counter(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, f.reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

type counted struct {
	calls atomic.Int32
	value string
}

func (c *counted) query(key cache.Key) cache.Query[string] {
	return cache.Query[string]{
		Key: key,
		Fetch: func(context.Context) (string, error) {
			n := c.calls.Add(1)
			return fmt.Sprintf("%s-%d", c.value, n), nil
		},
		StaleTime: time.Minute,
	}
}

func TestFetchServesFreshEntryWithoutLoading(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	src := &counted{value: "brief"}
	q := src.query(cache.Key{"briefs", "detail", "1"})

	v, err := cache.Fetch(ctx, f.cache, q)
	require.NoError(t, err)
	require.Equal(t, "brief-1", v)

	f.clock.Advance(30 * time.Second)
	v, err = cache.Fetch(ctx, f.cache, q)
	require.NoError(t, err)
	require.Equal(t, "brief-1", v)
	require.EqualValues(t, 1, src.calls.Load())

	require.EqualValues(t, 1, f.counter(t, "cache.hits"))
	require.EqualValues(t, 1, f.counter(t, "cache.misses"))
}

func TestFetchReloadsStaleEntry(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	src := &counted{value: "brief"}
	q := src.query(cache.Key{"briefs", "detail", "1"})

	_, err := cache.Fetch(ctx, f.cache, q)
	require.NoError(t, err)
	require.False(t, f.cache.IsStale(q.Key))

	f.clock.Advance(time.Minute)
	require.True(t, f.cache.IsStale(q.Key))

	v, err := cache.Fetch(ctx, f.cache, q)
	require.NoError(t, err)
	require.Equal(t, "brief-2", v)
}

func TestInvalidateByPrefix(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	src := &counted{value: "v"}

	for _, key := range []cache.Key{{"briefs", "list"}, {"briefs", "detail", "1"}, {"users", "detail", "1"}} {
		_, err := cache.Fetch(ctx, f.cache, src.query(key))
		require.NoError(t, err)
	}

	require.Equal(t, 2, f.cache.Invalidate(cache.Key{"briefs"}))
	require.True(t, f.cache.IsStale(cache.Key{"briefs", "list"}))
	require.True(t, f.cache.IsStale(cache.Key{"briefs", "detail", "1"}))
	require.False(t, f.cache.IsStale(cache.Key{"users", "detail", "1"}))

	// Invalidated data stays readable until the refetch lands.
	v, ok := cache.Get[string](f.cache, cache.Key{"briefs", "list"})
	require.True(t, ok)
	require.Equal(t, "v-1", v)
}

func TestConcurrentFetchesShareOneLoad(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	q := cache.Query[int]{
		Key: cache.Key{"notifications", "unread"},
		Fetch: func(context.Context) (int, error) {
			calls.Add(1)
			<-release
			return 7, nil
		},
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := cache.Fetch(ctx, f.cache, q)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool { return f.cache.IsFetching(q.Key) }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, calls.Load())
	for _, v := range results {
		require.Equal(t, 7, v)
	}
	require.False(t, f.cache.IsFetching(q.Key))
}

func TestFetchStartedBeforeWriteDoesNotOverwrite(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	key := cache.Key{"briefs", "detail", "1"}

	started := make(chan struct{})
	release := make(chan struct{})
	q := cache.Query[string]{
		Key: key,
		Fetch: func(context.Context) (string, error) {
			close(started)
			<-release
			return "from-server", nil
		},
	}

	done := make(chan string)
	go func() {
		v, _ := cache.Fetch(ctx, f.cache, q)
		done <- v
	}()

	<-started
	cache.Set(f.cache, key, "written")
	close(release)
	require.Equal(t, "from-server", <-done)

	v, ok := cache.Get[string](f.cache, key)
	require.True(t, ok)
	require.Equal(t, "written", v)
}

func TestClearDuringFetchIsNotResurrected(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	key := cache.Key{"auth", "me"}

	started := make(chan struct{})
	release := make(chan struct{})
	q := cache.Query[string]{
		Key: key,
		Fetch: func(context.Context) (string, error) {
			close(started)
			<-release
			return "jane", nil
		},
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = cache.Fetch(ctx, f.cache, q)
	}()

	<-started
	f.cache.Clear()
	close(release)
	<-done

	_, ok := cache.Get[string](f.cache, key)
	require.False(t, ok)
	require.Zero(t, f.cache.Len())
}

func TestRetryPolicy(t *testing.T) {
	errBoom := errors.New("boom")
	errFatal := errors.New("fatal")

	tests := []struct {
		name      string
		policy    cache.RetryPolicy
		fail      error
		wantCalls int32
	}{
		{
			name:      "no retry",
			policy:    cache.NoRetry,
			fail:      errBoom,
			wantCalls: 1,
		},
		{
			name:      "bounded retries",
			policy:    cache.RetryPolicy{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond},
			fail:      errBoom,
			wantCalls: 4,
		},
		{
			name: "skip predicate",
			policy: cache.RetryPolicy{
				MaxRetries:      3,
				InitialInterval: time.Millisecond,
				ShouldRetry:     func(err error) bool { return !errors.Is(err, errFatal) },
			},
			fail:      errFatal,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			var calls atomic.Int32
			q := cache.Query[string]{
				Key: cache.Key{"briefs", "stats"},
				Fetch: func(context.Context) (string, error) {
					calls.Add(1)
					return "", tt.fail
				},
				Retry: tt.policy,
			}

			_, err := cache.Fetch(context.Background(), f.cache, q)
			require.Error(t, err)
			require.True(t, errors.Is(err, tt.fail))
			require.Equal(t, tt.fail, err)
			require.Equal(t, tt.wantCalls, calls.Load())
			require.EqualValues(t, 1, f.counter(t, "cache.fetch_errors"))
		})
	}
}

func TestRetryRecovers(t *testing.T) {
	f := setupTestFixture(t)
	var calls atomic.Int32
	q := cache.Query[string]{
		Key: cache.Key{"users", "detail", "1"},
		Fetch: func(context.Context) (string, error) {
			if calls.Add(1) < 3 {
				return "", errors.New("flaky")
			}
			return "ok", nil
		},
		Retry: cache.RetryPolicy{MaxRetries: 3, InitialInterval: time.Millisecond},
	}

	v, err := cache.Fetch(context.Background(), f.cache, q)
	require.NoError(t, err)
	require.Equal(t, "ok", v)
	require.EqualValues(t, 3, calls.Load())
}

type discussion struct {
	ID      string
	BriefID string
}

func TestPatchRefsTouchesOnlyReferencingEntries(t *testing.T) {
	f := setupTestFixture(t)
	f.cache.Index(cache.Key{"discussions"}, func(value any) []cache.Ref {
		list, _ := value.([]discussion)
		refs := make([]cache.Ref, 0, len(list))
		for _, d := range list {
			refs = append(refs, cache.Ref{Kind: "discussion", ID: d.ID})
		}
		return refs
	})

	briefKey := cache.Key{"discussions", "brief", "b1"}
	mineKey := cache.Key{"discussions", "mine"}
	otherKey := cache.Key{"discussions", "brief", "b2"}
	cache.Set(f.cache, briefKey, []discussion{{ID: "d1", BriefID: "b1"}, {ID: "d2", BriefID: "b1"}})
	cache.Set(f.cache, mineKey, []discussion{{ID: "d1", BriefID: "b1"}})
	cache.Set(f.cache, otherKey, []discussion{{ID: "d3", BriefID: "b2"}})

	ref := cache.Ref{Kind: "discussion", ID: "d1"}
	require.ElementsMatch(t, []string{briefKey.String(), mineKey.String()}, keyStrings(f.cache.Keys(ref)))

	var events []cache.Event
	unsubscribe := f.cache.Subscribe(func(e cache.Event) { events = append(events, e) })
	defer unsubscribe()

	n := cache.PatchRefs(f.cache, ref, func(_ cache.Key, list []discussion) []discussion {
		out := list[:0:0]
		for _, d := range list {
			if d.ID != ref.ID {
				out = append(out, d)
			}
		}
		return out
	})
	require.Equal(t, 2, n)
	require.Len(t, events, 2)

	v, _ := cache.Get[[]discussion](f.cache, briefKey)
	require.Equal(t, []discussion{{ID: "d2", BriefID: "b1"}}, v)
	v, _ = cache.Get[[]discussion](f.cache, mineKey)
	require.Empty(t, v)
	v, _ = cache.Get[[]discussion](f.cache, otherKey)
	require.Len(t, v, 1)

	require.Empty(t, f.cache.Keys(ref))
}

func keyStrings(keys []cache.Key) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.String())
	}
	return out
}

func TestUpdateRequiresMatchingValue(t *testing.T) {
	f := setupTestFixture(t)
	key := cache.Key{"notifications", "unread"}

	require.False(t, cache.Update(f.cache, key, func(n int) int { return n - 1 }))

	cache.Set(f.cache, key, 3)
	require.True(t, cache.Update(f.cache, key, func(n int) int { return n - 1 }))
	require.False(t, cache.Update(f.cache, key, func(s string) string { return s }))

	v, ok := cache.Get[int](f.cache, key)
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestPruneDropsUnusedEntries(t *testing.T) {
	f := setupTestFixture(t)
	cache.Set(f.cache, cache.Key{"briefs", "list"}, "old")
	f.clock.Advance(6 * time.Minute)
	cache.Set(f.cache, cache.Key{"briefs", "detail", "1"}, "new")
	f.clock.Advance(5 * time.Minute)

	require.Equal(t, 1, f.cache.Prune())
	_, ok := cache.Get[string](f.cache, cache.Key{"briefs", "list"})
	require.False(t, ok)
	_, ok = cache.Get[string](f.cache, cache.Key{"briefs", "detail", "1"})
	require.True(t, ok)
}

func TestRemoveEmitsEvents(t *testing.T) {
	f := setupTestFixture(t)
	cache.Set(f.cache, cache.Key{"briefs", "list"}, "a")
	cache.Set(f.cache, cache.Key{"briefs", "detail", "1"}, "b")

	var removed []string
	unsubscribe := f.cache.Subscribe(func(e cache.Event) {
		if e.Type == cache.EventRemoved {
			removed = append(removed, e.Key.String())
		}
	})
	defer unsubscribe()

	require.Equal(t, 1, f.cache.Remove(cache.Key{"briefs", "detail"}))
	require.Equal(t, []string{"briefs/detail/1"}, removed)
	require.Equal(t, 1, f.cache.Len())
}

func TestPollRefetchesOnInterval(t *testing.T) {
	f := setupTestFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	q := cache.Query[int]{
		Key: cache.Key{"notifications", "unread"},
		Fetch: func(context.Context) (int, error) {
			return int(calls.Add(1)), nil
		},
		StaleTime: time.Hour,
	}

	results := make(chan int, 16)
	go cache.Poll(ctx, f.cache, q, 5*time.Millisecond, func(n int, err error) {
		require.NoError(t, err)
		results <- n
	})

	require.Equal(t, 1, <-results)
	require.Equal(t, 2, <-results)
	require.Equal(t, 3, <-results)
	cancel()
}

func TestFetchCancelledCallerLeavesLoadRunning(t *testing.T) {
	f := setupTestFixture(t)
	key := cache.Key{"briefs", "list"}
	release := make(chan struct{})
	q := cache.Query[string]{
		Key: key,
		Fetch: func(ctx context.Context) (string, error) {
			<-release
			return "briefs", ctx.Err()
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error)
	go func() {
		_, err := cache.Fetch(ctx, f.cache, q)
		errs <- err
	}()
	require.Eventually(t, func() bool { return f.cache.IsFetching(key) }, time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-errs, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		v, ok := cache.Get[string](f.cache, key)
		return ok && v == "briefs"
	}, time.Second, time.Millisecond)
}
