package session_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jrsteele09/go-brief-portal/internal/utils"
	"github.com/jrsteele09/go-brief-portal/model"
	"github.com/jrsteele09/go-brief-portal/session"
	"github.com/jrsteele09/go-brief-portal/storage"
	"github.com/jrsteele09/go-brief-portal/storage/memstorage"
	"github.com/jrsteele09/go-brief-portal/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testUser() *model.User {
	return &model.User{
		ID:        "user-1",
		Email:     "jane@example.com",
		Name:      "Jane Client",
		Role:      model.RoleClient,
		Company:   utils.Ptr("Acme"),
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
}

func newStore(t *testing.T, st storage.Storage) *session.Store {
	t.Helper()
	s, err := session.New(st,
		session.WithLogger(zerolog.Nop()),
		session.WithNowFunc(func() time.Time { return testNow }),
	)
	require.NoError(t, err)
	return s
}

func TestSetTokensRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, memstorage.New())

	require.NoError(t, s.SetTokens(ctx, "access-1", "refresh-1", testUser()))

	tokens := s.GetTokens(ctx)
	require.Equal(t, "access-1", tokens.AccessToken)
	require.Equal(t, "refresh-1", tokens.RefreshToken)
	require.Equal(t, testUser(), tokens.User)
	require.True(t, s.IsAuthenticated(ctx))
}

func TestClearTokensIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, memstorage.New())
	require.NoError(t, s.SetTokens(ctx, "access-1", "refresh-1", testUser()))
	require.NoError(t, s.SetTheme(ctx, session.ThemeDark))

	require.NoError(t, s.ClearTokens(ctx))
	require.NoError(t, s.ClearTokens(ctx))

	require.Equal(t, session.Tokens{}, s.GetTokens(ctx))
	require.False(t, s.IsAuthenticated(ctx))
	require.Equal(t, session.ThemeDark, s.Theme(ctx))
}

func TestSetAccessTokenKeepsRefreshToken(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, memstorage.New())
	require.NoError(t, s.SetTokens(ctx, "access-1", "refresh-1", testUser()))

	require.NoError(t, s.SetAccessToken(ctx, "access-2"))

	tokens := s.GetTokens(ctx)
	require.Equal(t, "access-2", tokens.AccessToken)
	require.Equal(t, "refresh-1", tokens.RefreshToken)
	require.NotNil(t, tokens.User)
}

type brokenStorage struct {
	storage.Storage
}

func (brokenStorage) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}

func TestGetTokensNeverFails(t *testing.T) {
	ctx := context.Background()

	t.Run("storage error", func(t *testing.T) {
		s := newStore(t, brokenStorage{memstorage.New()})
		require.Equal(t, session.Tokens{}, s.GetTokens(ctx))
		require.False(t, s.IsAuthenticated(ctx))
	})

	t.Run("corrupt user", func(t *testing.T) {
		st := memstorage.New()
		require.NoError(t, st.Set(ctx, session.AccessTokenKey, "access-1"))
		require.NoError(t, st.Set(ctx, session.UserKey, "{not json"))

		s := newStore(t, st)
		tokens := s.GetTokens(ctx)
		require.Equal(t, "access-1", tokens.AccessToken)
		require.Nil(t, tokens.User)
	})
}

func TestIsTokenExpired(t *testing.T) {
	s := newStore(t, memstorage.New())
	issuer := token.NewIssuer(token.NewHMACSigner("secret"), token.WithNowFunc(func() time.Time { return testNow }))

	fresh, _, err := issuer.Issue("user-1", "jane@example.com", "CLIENT")
	require.NoError(t, err)
	require.False(t, s.IsTokenExpired(fresh))

	issuer.SetTTL(-time.Minute)
	stale, _, err := issuer.Issue("user-1", "jane@example.com", "CLIENT")
	require.NoError(t, err)
	require.True(t, s.IsTokenExpired(stale))

	require.True(t, s.IsTokenExpired("definitely.not.ajwt"))
	require.True(t, s.IsTokenExpired(""))
}

func TestTheme(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, memstorage.New())

	require.Equal(t, session.ThemeLight, s.Theme(ctx))
	require.NoError(t, s.SetTheme(ctx, session.ThemeDark))
	require.Equal(t, session.ThemeDark, s.Theme(ctx))
	require.Error(t, s.SetTheme(ctx, "sepia"))
}

func TestOAuth2Token(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, memstorage.New())
	require.Nil(t, s.OAuth2Token(ctx))

	issuer := token.NewIssuer(token.NewHMACSigner("secret"),
		token.WithNowFunc(func() time.Time { return testNow }),
		token.WithTTL(time.Hour),
	)
	access, _, err := issuer.Issue("user-1", "jane@example.com", "CLIENT")
	require.NoError(t, err)
	require.NoError(t, s.SetTokens(ctx, access, "refresh-1", testUser()))

	tok := s.OAuth2Token(ctx)
	require.NotNil(t, tok)
	req, err := http.NewRequest(http.MethodGet, "http://localhost/api/briefs", nil)
	require.NoError(t, err)
	tok.SetAuthHeader(req)
	require.Equal(t, "Bearer "+access, req.Header.Get("Authorization"))
	require.Equal(t, "refresh-1", tok.RefreshToken)
	require.Equal(t, testNow.Add(time.Hour).Unix(), tok.Expiry.Unix())
}

func TestWatchSkipsOwnWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shared := memstorage.New()
	tab1 := newStore(t, shared)
	tab2 := newStore(t, shared)

	changes, err := tab1.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, tab1.SetTokens(ctx, "access-1", "refresh-1", testUser()))
	require.NoError(t, shared.Set(ctx, "unrelated", "x"))
	require.NoError(t, tab2.ClearTokens(ctx))

	seen := map[string]bool{}
	for len(seen) < 3 {
		select {
		case c := <-changes:
			require.True(t, c.Removed, "own write leaked: %+v", c)
			require.NotEqual(t, "unrelated", c.Key)
			seen[c.Key] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, saw %v", seen)
		}
	}
	require.True(t, seen[session.AccessTokenKey])
}

func TestNewRequiresStorage(t *testing.T) {
	_, err := session.New(nil)
	require.Error(t, err)
}
