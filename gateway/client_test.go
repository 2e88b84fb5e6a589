package gateway_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-brief-portal/gateway"
	"github.com/jrsteele09/go-brief-portal/internal/errors"
	"github.com/jrsteele09/go-brief-portal/model"
	"github.com/jrsteele09/go-brief-portal/session"
	"github.com/jrsteele09/go-brief-portal/storage/memstorage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	staleToken   = "stale-access"
	freshToken   = "fresh-access"
	refreshToken = "refresh-1"
)

// testFixture is a backend that accepts only freshToken and counts refreshes.
type testFixture struct {
	server        *httptest.Server
	store         *session.Store
	client        *gateway.Client
	refreshCalls  atomic.Int32
	refreshDelay  time.Duration
	refreshStatus int
	alwaysReject  bool
	mu            sync.Mutex
	bodies        []string
}

func writeEnvelope(w http.ResponseWriter, status int, env map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{refreshStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		time.Sleep(f.refreshDelay)
		if r.Header.Get("Authorization") != "" {
			t.Errorf("refresh call carried credentials")
		}
		var req model.RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if f.refreshStatus != http.StatusOK || req.RefreshToken != refreshToken {
			writeEnvelope(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"error":   map[string]string{"code": "TOKEN_INVALID", "message": "Invalid refresh token"},
			})
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{"accessToken": freshToken}})
	})
	mux.HandleFunc("/api/briefs", func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.bodies = append(f.bodies, string(raw))
		f.mu.Unlock()

		if f.alwaysReject || r.Header.Get("Authorization") != "Bearer "+freshToken {
			writeEnvelope(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"error":   map[string]string{"code": "TOKEN_EXPIRED", "message": "Token expired"},
			})
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]any{"briefs": []map[string]string{{"id": "b1", "status": "PENDING"}}, "total": 1},
		})
	})
	mux.HandleFunc("/api/status/", func(w http.ResponseWriter, r *http.Request) {
		switch strings.TrimPrefix(r.URL.Path, "/api/status/") {
		case "403":
			writeEnvelope(w, http.StatusForbidden, map[string]any{"success": false, "error": map[string]string{"code": "FORBIDDEN", "message": "Admins only"}})
		case "404":
			writeEnvelope(w, http.StatusNotFound, map[string]any{"success": false, "error": map[string]string{"code": "BRIEF_NOT_FOUND", "message": "Brief not found"}})
		case "422":
			writeEnvelope(w, http.StatusUnprocessableEntity, map[string]any{"success": false, "error": map[string]string{"code": "VALIDATION_ERROR", "message": "Project name is required"}})
		case "409":
			writeEnvelope(w, http.StatusConflict, map[string]any{"success": false, "error": map[string]string{"code": "BRIEF_ALREADY_EXISTS", "message": "Duplicate"}})
		case "500":
			writeEnvelope(w, http.StatusInternalServerError, map[string]any{"success": false})
		case "502":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>bad gateway</html>"))
		case "envelope-failure":
			writeEnvelope(w, http.StatusOK, map[string]any{"success": false, "message": "Nothing to see"})
		case "slow":
			time.Sleep(300 * time.Millisecond)
			writeEnvelope(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{}})
		}
	})
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{"status": "ok"}})
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	store, err := session.New(memstorage.New(), session.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	f.store = store

	client, err := gateway.New(f.server.URL+"/api", store, gateway.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	f.client = client
	return f
}

func (f *testFixture) signIn(t *testing.T, access string) {
	t.Helper()
	require.NoError(t, f.store.SetTokens(context.Background(), access, refreshToken, &model.User{ID: "user-1", Role: model.RoleClient}))
}

func TestAttachesBearerToken(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t, freshToken)

	var list model.BriefList
	require.NoError(t, f.client.Get(context.Background(), "/briefs", &list))
	require.Len(t, list.Briefs, 1)
	require.Equal(t, model.StatusPending, list.Briefs[0].Status)
	require.Zero(t, f.refreshCalls.Load())
}

func TestExpiredTokenIsRefreshedAndRequestRetried(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t, staleToken)

	var events []gateway.RefreshPhase
	unsubscribe := f.client.OnRefresh(func(e gateway.RefreshEvent) { events = append(events, e.Phase) })
	defer unsubscribe()

	var list model.BriefList
	err := f.client.Post(context.Background(), "/briefs", map[string]string{"projectName": "Site"}, &list)
	require.NoError(t, err)
	require.Len(t, list.Briefs, 1)

	require.EqualValues(t, 1, f.refreshCalls.Load())
	require.Equal(t, freshToken, f.store.AccessToken(context.Background()))
	require.Equal(t, refreshToken, f.store.RefreshToken(context.Background()))
	require.Equal(t, []gateway.RefreshPhase{gateway.RefreshStarted, gateway.RefreshSucceeded}, events)

	// The body is sent unchanged on the retry.
	require.Len(t, f.bodies, 2)
	require.Equal(t, f.bodies[0], f.bodies[1])
	require.JSONEq(t, `{"projectName":"Site"}`, f.bodies[1])
}

func TestConcurrentUnauthorizedRequestsShareOneRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.refreshDelay = 100 * time.Millisecond
	f.signIn(t, staleToken)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var list model.BriefList
			errs <- f.client.Get(context.Background(), "/briefs", &list)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, f.refreshCalls.Load())
}

func TestRefreshFailureClearsCredentials(t *testing.T) {
	f := setupTestFixture(t)
	f.refreshStatus = http.StatusUnauthorized
	f.signIn(t, staleToken)

	var failures []gateway.RefreshEvent
	f.client.OnRefresh(func(e gateway.RefreshEvent) {
		if e.Phase == gateway.RefreshFailed {
			failures = append(failures, e)
		}
	})

	err := f.client.Get(context.Background(), "/briefs", nil)
	require.Error(t, err)
	require.Equal(t, gateway.KindUnauthorized, gateway.KindOf(err))
	require.Equal(t, model.CodeTokenInvalid, gateway.CodeOf(err))

	require.Equal(t, session.Tokens{}, f.store.GetTokens(context.Background()))
	require.Len(t, failures, 1)
	require.Equal(t, "/login", failures[0].Redirect)

	// Without credentials, later 401s fail without calling the backend again.
	err = f.client.Get(context.Background(), "/briefs", nil)
	require.True(t, errors.Is(err, errors.ErrNoRefreshToken))
	require.EqualValues(t, 1, f.refreshCalls.Load())
}

func TestMissingRefreshTokenIsRefreshFailure(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.SetAccessToken(context.Background(), staleToken))

	err := f.client.Get(context.Background(), "/briefs", nil)
	require.True(t, errors.Is(err, errors.ErrNoRefreshToken))
	require.Equal(t, gateway.KindUnauthorized, gateway.KindOf(err))
	require.Zero(t, f.refreshCalls.Load())
	require.False(t, f.store.IsAuthenticated(context.Background()))
}

func TestOnlyOneRetryAfterRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.alwaysReject = true
	f.signIn(t, staleToken)

	err := f.client.Get(context.Background(), "/briefs", nil)
	require.Equal(t, gateway.KindUnauthorized, gateway.KindOf(err))
	require.Equal(t, http.StatusUnauthorized, gateway.StatusOf(err))
	require.EqualValues(t, 1, f.refreshCalls.Load())
	require.Len(t, f.bodies, 2)
}

func TestAnonymousRequestsSkipCredentials(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t, freshToken)

	err := f.client.Do(context.Background(), gateway.Request{Method: http.MethodGet, Path: "/briefs", Anonymous: true}, nil)
	require.Equal(t, gateway.KindUnauthorized, gateway.KindOf(err))
	require.Zero(t, f.refreshCalls.Load())
	require.True(t, f.store.IsAuthenticated(context.Background()))
}

func TestStatusClassification(t *testing.T) {
	f := setupTestFixture(t)
	f.signIn(t, freshToken)

	tests := []struct {
		path    string
		kind    gateway.Kind
		code    model.ErrorCode
		message string
	}{
		{"/status/403", gateway.KindForbidden, model.CodeForbidden, "Admins only"},
		{"/status/404", gateway.KindNotFound, model.CodeBriefNotFound, "Brief not found"},
		{"/status/422", gateway.KindValidation, model.CodeValidationError, "Project name is required"},
		{"/status/409", gateway.KindAPI, model.CodeBriefAlreadyExists, "Duplicate"},
		{"/status/500", gateway.KindServer, "", "Internal Server Error"},
		{"/status/502", gateway.KindServer, "", "Bad Gateway"},
		{"/status/envelope-failure", gateway.KindAPI, "", "Nothing to see"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var out map[string]any
			err := f.client.Get(context.Background(), tt.path, &out)
			require.Error(t, err)
			require.Equal(t, tt.kind, gateway.KindOf(err))
			require.Equal(t, tt.code, gateway.CodeOf(err))
			require.Equal(t, tt.message, gateway.MessageOf(err))
			require.False(t, gateway.IsTransport(err))
		})
	}
	require.Zero(t, f.refreshCalls.Load())
}

func TestTransportErrors(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		f := setupTestFixture(t)
		client, err := gateway.New(f.server.URL+"/api", f.store,
			gateway.WithLogger(zerolog.Nop()),
			gateway.WithTimeout(50*time.Millisecond),
		)
		require.NoError(t, err)

		err = client.Get(context.Background(), "/status/slow", nil)
		require.Equal(t, gateway.KindTimeout, gateway.KindOf(err))
		require.True(t, gateway.IsTransport(err))
	})

	t.Run("network", func(t *testing.T) {
		f := setupTestFixture(t)
		url := f.server.URL
		f.server.Close()

		client, err := gateway.New(url+"/api", f.store, gateway.WithLogger(zerolog.Nop()))
		require.NoError(t, err)
		err = client.Get(context.Background(), "/briefs", nil)
		require.Equal(t, gateway.KindNetwork, gateway.KindOf(err))
		require.Zero(t, gateway.StatusOf(err))
	})
}

func TestHealth(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.client.Health(context.Background()))
}

func TestNewValidatesBaseURL(t *testing.T) {
	_, err := gateway.New("not a url", nil)
	require.Error(t, err)
}

func TestHandleResponse(t *testing.T) {
	t.Run("unwraps data", func(t *testing.T) {
		var out model.UnreadCount
		err := gateway.HandleResponse(&gateway.Envelope{Success: true, Data: json.RawMessage(`{"unreadCount":3}`)}, &out)
		require.NoError(t, err)
		require.Equal(t, 3, out.UnreadCount)
	})

	t.Run("embedded message", func(t *testing.T) {
		err := gateway.HandleResponse(&gateway.Envelope{Error: &gateway.APIError{Code: model.CodeBriefNotFound, Message: "Brief not found"}}, nil)
		require.Equal(t, "Brief not found", gateway.MessageOf(err))
		require.Equal(t, model.CodeBriefNotFound, gateway.CodeOf(err))
	})

	t.Run("fallback message", func(t *testing.T) {
		var out model.UnreadCount
		err := gateway.HandleResponse(&gateway.Envelope{Success: true}, &out)
		require.Equal(t, "Unknown API error", gateway.MessageOf(err))
	})

	t.Run("no data needed", func(t *testing.T) {
		require.NoError(t, gateway.HandleResponse(&gateway.Envelope{Success: true, Message: "Marked"}, nil))
	})
}
