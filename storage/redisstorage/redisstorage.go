package redisstorage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-brief-portal/storage"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "briefportal"

// Storage keeps values in Redis so several processes can share one session.
// Every write is published on the profile's change channel.
type Storage struct {
	client     *redis.Client
	profile    string
	ownsClient bool
}

var _ storage.Storage = (*Storage)(nil)

type changeMessage struct {
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Removed bool   `json:"removed,omitempty"`
	Origin  string `json:"origin,omitempty"`
}

// Open connects to the Redis server at addr.
func Open(ctx context.Context, addr, password string, db int, profile string) (*Storage, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "[redisstorage.Open] ping %s", addr)
	}
	s, err := New(rdb, profile)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	s.ownsClient = true
	return s, nil
}

// New wraps an existing client. The caller keeps ownership of client.
func New(client *redis.Client, profile string) (*Storage, error) {
	if client == nil {
		return nil, errors.New("[redisstorage.New] client is required")
	}
	if strings.TrimSpace(profile) == "" {
		return nil, errors.New("[redisstorage.New] profile is required")
	}
	return &Storage{client: client, profile: profile}, nil
}

func (s *Storage) key(k string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, s.profile, k)
}

func (s *Storage) channel() string {
	return fmt.Sprintf("%s:%s:changes", keyPrefix, s.profile)
}

func (s *Storage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "[redisstorage.Get] %s", key)
	}
	return v, true, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return errors.Wrapf(err, "[redisstorage.Set] %s", key)
	}
	return s.publish(ctx, changeMessage{Key: key, Value: value, Origin: storage.OriginFrom(ctx)})
}

func (s *Storage) Remove(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		n, err := s.client.Del(ctx, s.key(key)).Result()
		if err != nil {
			return errors.Wrapf(err, "[redisstorage.Remove] %s", key)
		}
		if n == 0 {
			continue
		}
		if err := s.publish(ctx, changeMessage{Key: key, Removed: true, Origin: storage.OriginFrom(ctx)}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) publish(ctx context.Context, msg changeMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "[redisstorage.publish] marshal")
	}
	if err := s.client.Publish(ctx, s.channel(), payload).Err(); err != nil {
		return errors.Wrap(err, "[redisstorage.publish]")
	}
	return nil
}

// Watch subscribes to the profile's change channel. The subscription is
// confirmed before Watch returns, so no later write is missed.
func (s *Storage) Watch(ctx context.Context) (<-chan storage.Change, error) {
	pubsub := s.client.Subscribe(ctx, s.channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, errors.Wrap(err, "[redisstorage.Watch] subscribe")
	}

	out := make(chan storage.Change, 64)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-messages:
				if !ok {
					return
				}
				var msg changeMessage
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					log.Err(err).Str("channel", m.Channel).Msg("discarding malformed storage change")
					continue
				}
				select {
				case out <- storage.Change{Key: msg.Key, Value: msg.Value, Removed: msg.Removed, Origin: msg.Origin}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *Storage) Close() error {
	if s.ownsClient {
		return s.client.Close()
	}
	return nil
}
