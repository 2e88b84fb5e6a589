package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-brief-portal/model"
	"github.com/jrsteele09/go-brief-portal/storage"
	"github.com/jrsteele09/go-brief-portal/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Keys under which the session is persisted.
const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
	UserKey         = "user"
	ThemeKey        = "theme"
)

var credentialKeys = []string{AccessTokenKey, RefreshTokenKey, UserKey}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Tokens is a snapshot of the stored credentials. Empty strings and a nil
// User mean the value is absent.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	User         *model.User
}

// Store persists the credential pair and the cached user profile.
type Store struct {
	storage storage.Storage
	origin  string
	logger  zerolog.Logger
	nowFunc func() time.Time
}

type Option func(*Store)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		s.nowFunc = now
	}
}

// WithOrigin names this store's writes. Watch skips changes carrying it.
func WithOrigin(origin string) Option {
	return func(s *Store) {
		s.origin = origin
	}
}

func New(st storage.Storage, options ...Option) (*Store, error) {
	if st == nil {
		return nil, errors.New("[session.New] storage is required")
	}
	s := &Store{
		storage: st,
		logger:  log.Logger,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.origin == "" {
		s.origin = uuid.NewString()
	}
	return s, nil
}

func (s *Store) Origin() string {
	return s.origin
}

func (s *Store) writeCtx(ctx context.Context) context.Context {
	return storage.WithOrigin(ctx, s.origin)
}

// SetTokens overwrites the credential pair and profile.
func (s *Store) SetTokens(ctx context.Context, accessToken, refreshToken string, user *model.User) error {
	ctx = s.writeCtx(ctx)
	if err := s.storage.Set(ctx, AccessTokenKey, accessToken); err != nil {
		return errors.Wrap(err, "[Store.SetTokens] access token")
	}
	if err := s.storage.Set(ctx, RefreshTokenKey, refreshToken); err != nil {
		return errors.Wrap(err, "[Store.SetTokens] refresh token")
	}
	return s.SetUser(ctx, user)
}

// SetAccessToken replaces only the access token, as a refresh does.
func (s *Store) SetAccessToken(ctx context.Context, accessToken string) error {
	if err := s.storage.Set(s.writeCtx(ctx), AccessTokenKey, accessToken); err != nil {
		return errors.Wrap(err, "[Store.SetAccessToken]")
	}
	return nil
}

func (s *Store) SetUser(ctx context.Context, user *model.User) error {
	ctx = s.writeCtx(ctx)
	if user == nil {
		return errors.Wrap(s.storage.Remove(ctx, UserKey), "[Store.SetUser] remove")
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "[Store.SetUser] marshal")
	}
	if err := s.storage.Set(ctx, UserKey, string(raw)); err != nil {
		return errors.Wrap(err, "[Store.SetUser]")
	}
	return nil
}

// ClearTokens removes the credential pair and profile. The theme is kept.
func (s *Store) ClearTokens(ctx context.Context) error {
	if err := s.storage.Remove(s.writeCtx(ctx), credentialKeys...); err != nil {
		return errors.Wrap(err, "[Store.ClearTokens]")
	}
	return nil
}

// GetTokens never fails. Unreadable values are logged and reported absent.
func (s *Store) GetTokens(ctx context.Context) Tokens {
	return Tokens{
		AccessToken:  s.get(ctx, AccessTokenKey),
		RefreshToken: s.get(ctx, RefreshTokenKey),
		User:         s.User(ctx),
	}
}

func (s *Store) AccessToken(ctx context.Context) string {
	return s.get(ctx, AccessTokenKey)
}

func (s *Store) RefreshToken(ctx context.Context) string {
	return s.get(ctx, RefreshTokenKey)
}

// User returns the cached profile, or nil when absent or unreadable.
func (s *Store) User(ctx context.Context) *model.User {
	raw := s.get(ctx, UserKey)
	if raw == "" {
		return nil
	}
	var user model.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.logger.Err(err).Msg("error parsing stored user")
		return nil
	}
	return &user
}

func (s *Store) get(ctx context.Context, key string) string {
	v, ok, err := s.storage.Get(ctx, key)
	if err != nil {
		s.logger.Err(err).Str("key", key).Msg("error reading session storage")
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

// IsTokenExpired reports whether raw is past its expiry. Undecodable tokens are expired.
func (s *Store) IsTokenExpired(raw string) bool {
	return token.IsExpired(raw, s.nowFunc())
}

// IsAuthenticated only checks that an access token is stored, not that it is valid.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	return s.AccessToken(ctx) != ""
}

// Theme returns the stored theme preference, light by default.
func (s *Store) Theme(ctx context.Context) Theme {
	if Theme(s.get(ctx, ThemeKey)) == ThemeDark {
		return ThemeDark
	}
	return ThemeLight
}

func (s *Store) SetTheme(ctx context.Context, theme Theme) error {
	if theme != ThemeLight && theme != ThemeDark {
		return errors.Errorf("[Store.SetTheme] unknown theme %q", theme)
	}
	return errors.Wrap(s.storage.Set(s.writeCtx(ctx), ThemeKey, string(theme)), "[Store.SetTheme]")
}

// OAuth2Token returns the stored credentials as a bearer token, or nil when
// no access token is stored. Expiry is zero when the token has no exp claim.
func (s *Store) OAuth2Token(ctx context.Context) *oauth2.Token {
	tokens := s.GetTokens(ctx)
	if tokens.AccessToken == "" {
		return nil
	}
	expiry, _ := token.Expiry(tokens.AccessToken)
	return &oauth2.Token{
		AccessToken:  tokens.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: tokens.RefreshToken,
		Expiry:       expiry,
	}
}

// Watch streams changes to session keys made by other holders of the storage.
func (s *Store) Watch(ctx context.Context) (<-chan storage.Change, error) {
	changes, err := s.storage.Watch(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[Store.Watch]")
	}
	out := make(chan storage.Change)
	go func() {
		defer close(out)
		for c := range changes {
			if c.Origin == s.origin || !isSessionKey(c.Key) {
				continue
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func isSessionKey(key string) bool {
	switch key {
	case AccessTokenKey, RefreshTokenKey, UserKey, ThemeKey:
		return true
	}
	return false
}
