// Package auth owns the authentication state of one portal session: login,
// logout, refresh, and resolving the current user.
package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jrsteele09/go-brief-portal/cache"
	"github.com/jrsteele09/go-brief-portal/gateway"
	apperrors "github.com/jrsteele09/go-brief-portal/internal/errors"
	"github.com/jrsteele09/go-brief-portal/model"
	"github.com/jrsteele09/go-brief-portal/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultCheckInterval = 30 * time.Second
	meStaleTime          = 5 * time.Minute
	loginFailedMessage   = "Login failed"
)

// MeKey is the cache key of the current user query.
var MeKey = cache.Key{"auth", "me"}

// LoginResult is what Login reports. Error is a user facing message.
type LoginResult struct {
	Success bool
	Error   string
}

// Snapshot is a consistent view of the session for rendering.
type Snapshot struct {
	State   State
	User    *model.User
	Loading bool
}

type RoleCheck struct {
	HasRole      bool
	IsAuthorized bool
	Loading      bool
	User         *model.User
}

// Manager is created once per session and passed to whatever needs auth state.
type Manager struct {
	sessions      *session.Store
	gateway       *gateway.Client
	cache         *cache.Cache
	logger        zerolog.Logger
	loginPath     string
	checkInterval time.Duration
	retry         cache.RetryPolicy

	mu             sync.Mutex
	state          State
	loggingIn      int
	subscribers    map[int]func(Event)
	nextSubscriber int
	stopRefresh    func()
}

type Option func(*Manager)

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithLoginPath sets the redirect carried by session expiry events.
func WithLoginPath(path string) Option {
	return func(m *Manager) {
		m.loginPath = path
	}
}

// WithCheckInterval sets how often Watch checks the stored access token.
func WithCheckInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.checkInterval = d
	}
}

// WithRetry replaces the retry policy of the current user query. The policy
// never retries a 401.
func WithRetry(policy cache.RetryPolicy) Option {
	return func(m *Manager) {
		m.retry = policy
	}
}

func New(sessions *session.Store, gw *gateway.Client, c *cache.Cache, options ...Option) (*Manager, error) {
	if sessions == nil {
		return nil, errors.New("[auth.New] session store is required")
	}
	if gw == nil {
		return nil, errors.New("[auth.New] gateway is required")
	}
	if c == nil {
		return nil, errors.New("[auth.New] cache is required")
	}

	m := &Manager{
		sessions:      sessions,
		gateway:       gw,
		cache:         c,
		logger:        log.Logger,
		loginPath:     gateway.DefaultLoginPath,
		checkInterval: DefaultCheckInterval,
		retry:         cache.DefaultRetry,
		subscribers:   make(map[int]func(Event)),
	}
	for _, opt := range options {
		opt(m)
	}
	m.retry.ShouldRetry = func(err error) bool {
		return gateway.KindOf(err) != gateway.KindUnauthorized
	}
	if sessions.IsAuthenticated(context.Background()) {
		m.state = StateAuthenticated
	}
	m.stopRefresh = gw.OnRefresh(m.onRefresh)
	return m, nil
}

// Close detaches the manager from the gateway.
func (m *Manager) Close() {
	m.stopRefresh()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) onRefresh(event gateway.RefreshEvent) {
	switch event.Phase {
	case gateway.RefreshStarted:
		m.setState(StateRefreshing)
	case gateway.RefreshSucceeded:
		m.setState(StateAuthenticated)
		m.cache.Invalidate(MeKey)
	case gateway.RefreshFailed:
		// The gateway has already cleared the stored credentials.
		m.cache.Clear()
		m.setState(StateAnonymous)
		code := gateway.CodeOf(event.Err)
		if code == "" {
			code = model.CodeTokenExpired
		}
		m.authError(ContextRefresh, code, AuthErrorMessage(code))
		m.emit(Event{Type: EventSessionExpired, Redirect: event.Redirect, Err: apperrors.ErrSessionExpired})
	}
}

// Login exchanges credentials for a session. It never returns an error;
// failures are reported in the result.
func (m *Manager) Login(ctx context.Context, email, password string) LoginResult {
	m.mu.Lock()
	m.loggingIn++
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.loggingIn--
		m.mu.Unlock()
	}()
	m.setState(StateAuthenticating)

	var resp model.LoginResponse
	err := m.gateway.Do(ctx, gateway.Request{
		Method:    http.MethodPost,
		Path:      "/auth/login",
		Body:      model.LoginCredentials{Email: email, Password: password},
		Anonymous: true,
	}, &resp)
	if err == nil && resp.AccessToken == "" {
		err = &gateway.Error{Kind: gateway.KindDecode, Message: "login response carried no access token"}
	}
	if err == nil {
		err = m.sessions.SetTokens(ctx, resp.AccessToken, resp.RefreshToken, &resp.User)
	}
	if err != nil {
		m.logger.Err(err).Str("email", email).Msg("login failed")
		if clearErr := m.sessions.ClearTokens(ctx); clearErr != nil {
			m.logger.Err(clearErr).Msg("error clearing credentials")
		}
		m.setState(StateAnonymous)

		message := loginFailedMessage
		if gateway.CodeOf(err) != "" && gateway.MessageOf(err) != "" {
			message = gateway.MessageOf(err)
		}
		m.authError(ContextLogin, gateway.CodeOf(err), message)
		return LoginResult{Error: message}
	}

	user := resp.User
	cache.Set(m.cache, MeKey, &user)
	m.setState(StateAuthenticated)
	m.logger.Info().Str("user", user.ID).Msg("logged in")
	return LoginResult{Success: true}
}

// Logout tells the server the session is over, then clears local state
// whatever the server said.
func (m *Manager) Logout(ctx context.Context) {
	if m.sessions.IsAuthenticated(ctx) {
		err := m.gateway.Do(ctx, gateway.Request{
			Method: http.MethodPost,
			Path:   "/auth/logout",
			Body:   model.RefreshRequest{RefreshToken: m.sessions.RefreshToken(ctx)},
		}, nil)
		if err != nil {
			m.logger.Warn().Err(err).Msg("logout call failed, clearing local session anyway")
			m.authError(ContextLogout, gateway.CodeOf(err), AuthErrorMessage(gateway.CodeOf(err)))
		}
	}

	if err := m.sessions.ClearTokens(ctx); err != nil {
		m.logger.Err(err).Msg("error clearing credentials")
	}
	m.cache.Clear()
	m.setState(StateAnonymous)
}

// RefreshToken replaces the access token using the stored refresh token.
// On failure all stored credentials are cleared.
func (m *Manager) RefreshToken(ctx context.Context) error {
	_, err := m.gateway.Refresh(ctx)
	return errors.Wrap(err, "[Manager.RefreshToken]")
}

func (m *Manager) meQuery() cache.Query[*model.User] {
	return cache.Query[*model.User]{
		Key: MeKey,
		Fetch: func(ctx context.Context) (*model.User, error) {
			var user model.User
			if err := m.gateway.Get(ctx, "/auth/me", &user); err != nil {
				return nil, err
			}
			if err := m.sessions.SetUser(ctx, &user); err != nil {
				m.logger.Err(err).Msg("error storing user profile")
			}
			return &user, nil
		},
		StaleTime: meStaleTime,
		Retry:     m.retry,
	}
}

// CurrentUser resolves the signed in user. It only queries the server while
// an access token is stored.
func (m *Manager) CurrentUser(ctx context.Context) (*model.User, error) {
	if !m.sessions.IsAuthenticated(ctx) {
		return nil, errors.Wrap(apperrors.ErrNotAuthenticated, "[Manager.CurrentUser]")
	}
	user, err := cache.Fetch(ctx, m.cache, m.meQuery())
	if err != nil {
		if gateway.KindOf(err) == gateway.KindForbidden {
			m.authError(ContextUnauthorized, gateway.CodeOf(err), AuthErrorMessage(model.CodeForbidden))
		}
		return nil, errors.Wrap(err, "[Manager.CurrentUser]")
	}
	return user, nil
}

// user is the profile known without a network call: the cached "me" result,
// else the profile stored with the credentials.
func (m *Manager) user(ctx context.Context) *model.User {
	if !m.sessions.IsAuthenticated(ctx) {
		return nil
	}
	if u, ok := cache.Get[*model.User](m.cache, MeKey); ok && u != nil {
		return u
	}
	return m.sessions.User(ctx)
}

// IsAuthenticated requires both a stored token and a known profile.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	return m.user(ctx) != nil
}

// IsLoading reports whether the user query or a login is in flight.
func (m *Manager) IsLoading() bool {
	m.mu.Lock()
	loggingIn := m.loggingIn > 0
	m.mu.Unlock()
	return loggingIn || m.cache.IsFetching(MeKey)
}

func (m *Manager) Snapshot(ctx context.Context) Snapshot {
	return Snapshot{
		State:   m.State(),
		User:    m.user(ctx),
		Loading: m.IsLoading(),
	}
}

// RequireRole reports whether the current user holds role.
func (m *Manager) RequireRole(ctx context.Context, role model.RoleType) RoleCheck {
	user := m.user(ctx)
	hasRole := user != nil && user.Role == role
	return RoleCheck{
		HasRole:      hasRole,
		IsAuthorized: hasRole && m.sessions.IsAuthenticated(ctx),
		Loading:      m.IsLoading(),
		User:         user,
	}
}
