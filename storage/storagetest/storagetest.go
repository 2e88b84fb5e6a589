// Package storagetest holds behaviour every storage.Storage must share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-brief-portal/storage"
	"github.com/stretchr/testify/require"
)

// Run exercises a Storage returned by newStorage. Each subtest gets a fresh one.
func Run(t *testing.T, newStorage func(t *testing.T) storage.Storage) {
	t.Helper()

	t.Run("get missing", func(t *testing.T) {
		s := newStorage(t)
		v, ok, err := s.Get(context.Background(), "accessToken")
		require.NoError(t, err)
		require.False(t, ok)
		require.Empty(t, v)
	})

	t.Run("set then get", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "accessToken", "a1"))
		require.NoError(t, s.Set(ctx, "accessToken", "a2"))

		v, ok, err := s.Get(ctx, "accessToken")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "a2", v)
	})

	t.Run("remove is idempotent", func(t *testing.T) {
		s := newStorage(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "refreshToken", "r1"))
		require.NoError(t, s.Remove(ctx, "refreshToken", "user"))
		require.NoError(t, s.Remove(ctx, "refreshToken", "user"))

		_, ok, err := s.Get(ctx, "refreshToken")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("watch reports changes with origin", func(t *testing.T) {
		s := newStorage(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes, err := s.Watch(ctx)
		require.NoError(t, err)

		writeCtx := storage.WithOrigin(ctx, "tab-1")
		require.NoError(t, s.Set(writeCtx, "theme", "dark"))
		require.NoError(t, s.Remove(writeCtx, "theme"))
		require.NoError(t, s.Remove(writeCtx, "theme"))

		require.Equal(t, storage.Change{Key: "theme", Value: "dark", Origin: "tab-1"}, next(t, changes))
		require.Equal(t, storage.Change{Key: "theme", Removed: true, Origin: "tab-1"}, next(t, changes))

		select {
		case c := <-changes:
			t.Fatalf("unexpected change for missing key: %+v", c)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("watch closes when context ends", func(t *testing.T) {
		s := newStorage(t)
		ctx, cancel := context.WithCancel(context.Background())
		changes, err := s.Watch(ctx)
		require.NoError(t, err)
		cancel()

		require.Eventually(t, func() bool {
			select {
			case _, ok := <-changes:
				return !ok
			default:
				return false
			}
		}, 2*time.Second, 10*time.Millisecond)
	})
}

func next(t *testing.T, changes <-chan storage.Change) storage.Change {
	t.Helper()
	select {
	case c, ok := <-changes:
		require.True(t, ok, "change channel closed")
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
	return storage.Change{}
}
