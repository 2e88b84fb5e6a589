package sqlitestorage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-brief-portal/storage"
	"github.com/jrsteele09/go-brief-portal/storage/sqlitestorage"
	"github.com/jrsteele09/go-brief-portal/storage/storagetest"
	"github.com/stretchr/testify/require"
)

func TestStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		s, err := sqlitestorage.Open(filepath.Join(t.TempDir(), "session.db"), "default")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")
	ctx := context.Background()

	s, err := sqlitestorage.Open(path, "default")
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "refreshToken", "r1"))
	require.NoError(t, s.Close())

	reopened, err := sqlitestorage.Open(path, "default")
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get(ctx, "refreshToken")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "r1", v)
}

func TestProfilesAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	ctx := context.Background()

	work, err := sqlitestorage.Open(path, "work")
	require.NoError(t, err)
	defer work.Close()
	require.NoError(t, work.Set(ctx, "accessToken", "work-token"))

	home, err := sqlitestorage.Open(path, "home")
	require.NoError(t, err)
	defer home.Close()

	_, ok, err := home.Get(ctx, "accessToken")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOpenRequiresProfile(t *testing.T) {
	_, err := sqlitestorage.Open(filepath.Join(t.TempDir(), "session.db"), " ")
	require.Error(t, err)
}
