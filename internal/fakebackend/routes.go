package fakebackend

import (
	"context"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/jrsteele09/go-brief-portal/internal/middleware"
	"github.com/jrsteele09/go-brief-portal/model"
	"github.com/jrsteele09/go-brief-portal/token"
	"github.com/pkg/errors"
)

const APIPrefix = "/api"

type contextKey int

const (
	accountKey contextKey = iota
	claimsKey
)

func (b *Backend) routes() *mux.Router {
	router := mux.NewRouter()
	api := router.PathPrefix(APIPrefix).Subrouter()

	public := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.ChainMiddleware(h, b.apiMiddleware()...)
	}
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.ChainMiddleware(h, append(b.apiMiddleware(), b.requireAuth)...)
	}
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.ChainMiddleware(h, append(b.apiMiddleware(), b.requireAuth, b.requireAdmin)...)
	}

	api.HandleFunc("/health", public(b.handleHealth)).Methods(http.MethodGet)

	api.HandleFunc("/auth/login", public(b.handleLogin)).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", public(b.handleRefresh)).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", authed(b.handleLogout)).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", authed(b.handleMe)).Methods(http.MethodGet)

	api.HandleFunc("/users/{id}", authed(b.handleGetUser)).Methods(http.MethodGet)

	api.HandleFunc("/briefs", authed(b.handleListBriefs)).Methods(http.MethodGet)
	api.HandleFunc("/briefs", authed(b.handleCreateBrief)).Methods(http.MethodPost)
	api.HandleFunc("/briefs/statistics", authed(b.handleBriefStatistics)).Methods(http.MethodGet)
	api.HandleFunc("/briefs/{id}", authed(b.handleGetBrief)).Methods(http.MethodGet)
	api.HandleFunc("/briefs/{id}", admin(b.handleUpdateBriefStatus)).Methods(http.MethodPut)
	api.HandleFunc("/briefs/{id}/deliverables", authed(b.handleListDeliverables)).Methods(http.MethodGet)
	api.HandleFunc("/briefs/{id}/deliverables", admin(b.handleAddDeliverable)).Methods(http.MethodPost)
	api.HandleFunc("/briefs/{id}/discussions", authed(b.handleListDiscussions)).Methods(http.MethodGet)
	api.HandleFunc("/briefs/{id}/discussions", authed(b.handlePostDiscussion)).Methods(http.MethodPost)

	api.HandleFunc("/discussions/search", admin(b.handleSearchDiscussions)).Methods(http.MethodGet)
	api.HandleFunc("/discussions/my", authed(b.handleMyDiscussions)).Methods(http.MethodGet)
	api.HandleFunc("/discussions/{id}", admin(b.handleDeleteDiscussion)).Methods(http.MethodDelete)

	api.HandleFunc("/notifications", authed(b.handleListNotifications)).Methods(http.MethodGet)
	api.HandleFunc("/notifications/unread", authed(b.handleUnreadCount)).Methods(http.MethodGet)
	api.HandleFunc("/notifications/read-all", authed(b.handleMarkAllRead)).Methods(http.MethodPut)
	api.HandleFunc("/notifications/{id}/read", authed(b.handleMarkRead)).Methods(http.MethodPut)

	router.NotFoundHandler = public(func(w http.ResponseWriter, r *http.Request) {
		b.writeError(w, http.StatusNotFound, model.CodeRouteNotFound, "Route not found")
	})
	return router
}

// apiMiddleware runs on every route. offline must come first so it sees the
// original response writer.
func (b *Backend) apiMiddleware() []middleware.Middleware {
	return []middleware.Middleware{
		b.offlineMiddleware,
		middleware.Recover(b.logger),
		middleware.Logging(b.logger, b.env),
		b.controlMiddleware,
	}
}

// routeName is the counter and failure key of r, e.g. "PUT /briefs/{id}".
func routeName(r *http.Request) string {
	path := r.URL.Path
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			path = tmpl
		}
	}
	return r.Method + " " + strings.TrimPrefix(path, APIPrefix)
}

func (b *Backend) offlineMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		offline := b.offline
		b.mu.Unlock()
		if !offline {
			next(w, r)
			return
		}
		hj, ok := w.(http.Hijacker)
		if !ok {
			b.writeError(w, http.StatusServiceUnavailable, model.CodeInternalServerError, "offline")
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			b.logger.Err(err).Msg("error hijacking connection")
			return
		}
		conn.Close()
	}
}

// controlMiddleware counts calls and applies injected failures and delays.
func (b *Backend) controlMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := routeName(r)

		b.mu.Lock()
		b.calls[name]++
		delay := b.delay
		var injected *failure
		if f, ok := b.failures[name]; ok && f.times > 0 {
			f.times--
			injected = f
		}
		b.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if injected != nil {
			b.writeError(w, injected.status, injected.code, injected.message)
			return
		}
		next(w, r)
	}
}

func (b *Backend) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			b.writeError(w, http.StatusUnauthorized, model.CodeUnauthorized, "Access token required")
			return
		}

		claims, err := b.issuer.Verify(raw)
		if err != nil {
			if errors.Is(err, jwtlib.ErrTokenExpired) {
				b.writeError(w, http.StatusUnauthorized, model.CodeTokenExpired, "Access token expired")
				return
			}
			b.writeError(w, http.StatusUnauthorized, model.CodeTokenInvalid, "Invalid access token")
			return
		}
		if b.revoked.IsRevoked(claims.ID) {
			b.writeError(w, http.StatusUnauthorized, model.CodeTokenExpired, "Access token expired")
			return
		}

		b.mu.Lock()
		acc, ok := b.accounts[claims.Subject]
		b.mu.Unlock()
		if !ok {
			b.writeError(w, http.StatusUnauthorized, model.CodeUserNotFound, "User not found")
			return
		}

		ctx := context.WithValue(r.Context(), accountKey, acc)
		ctx = context.WithValue(ctx, claimsKey, claims)
		next(w, r.WithContext(ctx))
	}
}

func (b *Backend) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !accountFrom(r).user.IsAdmin() {
			b.writeError(w, http.StatusForbidden, model.CodeForbidden, "Admin access required")
			return
		}
		next(w, r)
	}
}

func accountFrom(r *http.Request) *account {
	acc, _ := r.Context().Value(accountKey).(*account)
	return acc
}

func claimsFrom(r *http.Request) *token.Claims {
	claims, _ := r.Context().Value(claimsKey).(*token.Claims)
	return claims
}
