package memstorage

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-brief-portal/internal/errors"
	"github.com/jrsteele09/go-brief-portal/storage"
)

// Storage keeps values in memory. Two session stores sharing one Storage
// behave like two tabs of the same browser origin.
type Storage struct {
	mu     sync.RWMutex
	values map[string]string
	events *storage.Broadcaster
	closed bool
}

var _ storage.Storage = (*Storage)(nil)

func New() *Storage {
	return &Storage{
		values: make(map[string]string),
		events: storage.NewBroadcaster(),
	}
}

func (s *Storage) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, errors.ErrStorageClosed
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.ErrStorageClosed
	}
	s.values[key] = value
	s.mu.Unlock()

	s.events.Publish(storage.Change{Key: key, Value: value, Origin: storage.OriginFrom(ctx)})
	return nil
}

func (s *Storage) Remove(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.ErrStorageClosed
	}
	changes := make([]storage.Change, 0, len(keys))
	for _, key := range keys {
		if _, ok := s.values[key]; !ok {
			continue
		}
		delete(s.values, key)
		changes = append(changes, storage.Change{Key: key, Removed: true, Origin: storage.OriginFrom(ctx)})
	}
	s.mu.Unlock()

	s.events.Publish(changes...)
	return nil
}

func (s *Storage) Watch(ctx context.Context) (<-chan storage.Change, error) {
	return s.events.Subscribe(ctx), nil
}

func (s *Storage) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.events.Close()
	return nil
}
