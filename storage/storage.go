// Package storage defines the durable key/value store that holds the
// session between runs, and the change feed other holders of the same
// profile use to stay in sync.
package storage

import (
	"context"
	"sync"
)

// Change describes a write made to a key, by this or another holder of the store.
type Change struct {
	Key     string
	Value   string
	Removed bool
	Origin  string // Writer identity taken from the write's context, see WithOrigin
}

type originKey struct{}

// WithOrigin tags writes made with ctx so watchers can recognise their own changes.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFrom returns the writer identity attached by WithOrigin.
func OriginFrom(ctx context.Context) string {
	origin, _ := ctx.Value(originKey{}).(string)
	return origin
}

// Storage is a string key/value store scoped to one profile.
type Storage interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes keys. Missing keys are not an error.
	Remove(ctx context.Context, keys ...string) error
	// Watch streams changes until ctx is done, then closes the channel.
	Watch(ctx context.Context) (<-chan Change, error)
	Close() error
}

const watchBuffer = 64

// Broadcaster fans changes out to watchers inside one process.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan Change]struct{}
	closed bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Change]struct{})}
}

// Subscribe registers a watcher that is removed when ctx is done.
func (b *Broadcaster) Subscribe(ctx context.Context) <-chan Change {
	ch := make(chan Change, watchBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(ch)
	}()
	return ch
}

func (b *Broadcaster) unsubscribe(ch chan Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// Publish delivers changes to every watcher. A watcher whose buffer is full
// misses the change rather than blocking the writer.
func (b *Broadcaster) Publish(changes ...Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		for _, c := range changes {
			select {
			case ch <- c:
			default:
			}
		}
	}
}

// Close closes every watcher channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
