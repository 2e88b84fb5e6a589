package fakebackend

import (
	"time"

	"github.com/jrsteele09/go-brief-portal/model"
)

// Calls returns how many requests reached route, e.g. "POST /auth/refresh".
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

func (b *Backend) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = make(map[string]int)
}

// FailNext makes the next times requests to route fail with status and code.
func (b *Backend) FailNext(route string, status int, code model.ErrorCode, message string, times int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = &failure{status: status, code: code, message: message, times: times}
}

// SetOffline drops every connection without a response while offline is true.
func (b *Backend) SetOffline(offline bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.offline = offline
}

// SetDelay holds every request for d before it is handled.
func (b *Backend) SetDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
}

// ExpireSessions rejects every access token issued so far. Refresh tokens
// stay valid.
func (b *Backend) ExpireSessions() {
	b.mu.Lock()
	issued := b.issued
	b.issued = make(map[string]time.Time)
	b.mu.Unlock()

	for jti, exp := range issued {
		b.revoked.Add(jti, exp)
	}
}

// RevokeRefreshTokens forgets every refresh token, so the next refresh fails.
func (b *Backend) RevokeRefreshTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshTokens = make(map[string]string)
}

// Cleanup drops revocation entries for tokens that have expired anyway.
func (b *Backend) Cleanup() {
	b.revoked.Cleanup()
}
