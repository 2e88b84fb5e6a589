package memstorage_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-brief-portal/internal/errors"
	"github.com/jrsteele09/go-brief-portal/storage"
	"github.com/jrsteele09/go-brief-portal/storage/memstorage"
	"github.com/jrsteele09/go-brief-portal/storage/storagetest"
	"github.com/stretchr/testify/require"
)

func TestStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		s := memstorage.New()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestClosedStorage(t *testing.T) {
	s := memstorage.New()
	require.NoError(t, s.Close())

	err := s.Set(context.Background(), "k", "v")
	require.True(t, errors.Is(err, errors.ErrStorageClosed))

	changes, err := s.Watch(context.Background())
	require.NoError(t, err)
	_, ok := <-changes
	require.False(t, ok)
}
