package sqlitestorage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jrsteele09/go-brief-portal/storage"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

// Storage persists values in a SQLite table, one row per profile and key.
// Change events are delivered to watchers of this Storage value only.
type Storage struct {
	db      *sql.DB
	profile string
	ownsDB  bool
	events  *storage.Broadcaster
	nowFunc func() time.Time
}

var _ storage.Storage = (*Storage)(nil)

// Open opens (creating if needed) the database file at path.
func Open(path, profile string) (*Storage, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, errors.Wrap(err, "[sqlitestorage.Open] create data folder")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "[sqlitestorage.Open] open database")
	}
	db.SetMaxOpenConns(1)

	s, err := New(db, profile)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// New uses an existing database handle. The caller keeps ownership of db.
func New(db *sql.DB, profile string) (*Storage, error) {
	if strings.TrimSpace(profile) == "" {
		return nil, errors.New("[sqlitestorage.New] profile is required")
	}
	s := &Storage{
		db:      db,
		profile: profile,
		events:  storage.NewBroadcaster(),
		nowFunc: time.Now,
	}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS session_values (
        profile TEXT NOT NULL,
        key TEXT NOT NULL,
        value TEXT NOT NULL,
        updated_at DATETIME NOT NULL,
        PRIMARY KEY (profile, key)
    );`
	if _, err := s.db.ExecContext(context.Background(), query); err != nil {
		return errors.Wrap(err, "[sqlitestorage.migrate]")
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM session_values WHERE profile = ? AND key = ?`,
		s.profile, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "[sqlitestorage.Get] %s", key)
	}
	return value, true, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO session_values (profile, key, value, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT (profile, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.profile, key, value, s.nowFunc().UTC(),
	)
	if err != nil {
		return errors.Wrapf(err, "[sqlitestorage.Set] %s", key)
	}
	s.events.Publish(storage.Change{Key: key, Value: value, Origin: storage.OriginFrom(ctx)})
	return nil
}

func (s *Storage) Remove(ctx context.Context, keys ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "[sqlitestorage.Remove] begin")
	}
	defer func() { _ = tx.Rollback() }()

	changes := make([]storage.Change, 0, len(keys))
	for _, key := range keys {
		res, err := tx.ExecContext(ctx, `DELETE FROM session_values WHERE profile = ? AND key = ?`, s.profile, key)
		if err != nil {
			return errors.Wrapf(err, "[sqlitestorage.Remove] %s", key)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			changes = append(changes, storage.Change{Key: key, Removed: true, Origin: storage.OriginFrom(ctx)})
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "[sqlitestorage.Remove] commit")
	}
	s.events.Publish(changes...)
	return nil
}

func (s *Storage) Watch(ctx context.Context) (<-chan storage.Change, error) {
	return s.events.Subscribe(ctx), nil
}

func (s *Storage) Close() error {
	s.events.Close()
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
