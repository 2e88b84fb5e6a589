package fakebackend_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-brief-portal/internal/fakebackend"
	"github.com/jrsteele09/go-brief-portal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    model.ErrorCode `json:"code"`
		Message string          `json:"message"`
	} `json:"error"`
}

type testFixture struct {
	backend *fakebackend.Backend
	server  *httptest.Server
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	b := fakebackend.New(fakebackend.WithLogger(zerolog.Nop()))
	require.NoError(t, b.Seed())
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return &testFixture{backend: b, server: srv}
}

func (f *testFixture) call(t *testing.T, method, path, bearer string, body any) (int, response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.server.URL+fakebackend.APIPrefix+path, reader)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (f *testFixture) login(t *testing.T, email, password string) model.LoginResponse {
	t.Helper()
	status, resp := f.call(t, http.MethodPost, "/auth/login", "", model.LoginCredentials{Email: email, Password: password})
	require.Equal(t, http.StatusOK, status)
	var login model.LoginResponse
	require.NoError(t, json.Unmarshal(resp.Data, &login))
	return login
}

func TestLogin(t *testing.T) {
	f := setupTestFixture(t)

	login := f.login(t, "jane@acme.test", "client123")
	require.NotEmpty(t, login.AccessToken)
	require.NotEmpty(t, login.RefreshToken)
	require.Equal(t, model.RoleClient, login.User.Role)

	status, resp := f.call(t, http.MethodPost, "/auth/login", "", model.LoginCredentials{Email: "jane@acme.test", Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, status)
	require.False(t, resp.Success)
	require.Equal(t, model.CodeAuthFailed, resp.Error.Code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	f := setupTestFixture(t)

	status, resp := f.call(t, http.MethodGet, "/briefs", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, model.CodeUnauthorized, resp.Error.Code)

	status, resp = f.call(t, http.MethodGet, "/briefs", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, model.CodeTokenInvalid, resp.Error.Code)
}

func TestClientCannotChangeStatus(t *testing.T) {
	f := setupTestFixture(t)
	login := f.login(t, "jane@acme.test", "client123")

	_, resp := f.call(t, http.MethodGet, "/briefs", login.AccessToken, nil)
	var list model.BriefList
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list.Briefs, 1)

	status, resp := f.call(t, http.MethodPut, "/briefs/"+list.Briefs[0].ID, login.AccessToken,
		model.UpdateBriefStatusRequest{Status: model.StatusReviewed})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, model.CodeForbidden, resp.Error.Code)
}

func TestExpireSessionsThenRefresh(t *testing.T) {
	f := setupTestFixture(t)
	login := f.login(t, "admin@agency.test", "admin123")

	f.backend.ExpireSessions()
	status, resp := f.call(t, http.MethodGet, "/auth/me", login.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, model.CodeTokenExpired, resp.Error.Code)

	status, resp = f.call(t, http.MethodPost, "/auth/refresh", "", model.RefreshRequest{RefreshToken: login.RefreshToken})
	require.Equal(t, http.StatusOK, status)
	var refreshed model.RefreshResponse
	require.NoError(t, json.Unmarshal(resp.Data, &refreshed))

	status, _ = f.call(t, http.MethodGet, "/auth/me", refreshed.AccessToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, f.backend.Calls("POST /auth/refresh"))
	require.Equal(t, 2, f.backend.Calls("GET /auth/me"))
}

func TestFailNext(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.FailNext("GET /health", http.StatusInternalServerError, model.CodeInternalServerError, "boom", 1)

	status, resp := f.call(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "boom", resp.Error.Message)

	status, _ = f.call(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)
}

func TestUnknownRoute(t *testing.T) {
	f := setupTestFixture(t)
	status, resp := f.call(t, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, model.CodeRouteNotFound, resp.Error.Code)
}
