package auth

import (
	"context"
	"time"

	apperrors "github.com/jrsteele09/go-brief-portal/internal/errors"
	"github.com/jrsteele09/go-brief-portal/session"
	"github.com/pkg/errors"
)

// Restore brings a stored session back at start-up. An expired access token
// is refreshed; if that fails the credentials are cleared.
func (m *Manager) Restore(ctx context.Context) error {
	tokens := m.sessions.GetTokens(ctx)
	if tokens.AccessToken == "" {
		m.setState(StateAnonymous)
		return nil
	}
	if !m.sessions.IsTokenExpired(tokens.AccessToken) {
		m.setState(StateAuthenticated)
		return nil
	}

	m.logger.Info().Msg("stored access token expired, refreshing")
	if err := m.RefreshToken(ctx); err != nil {
		m.setState(StateAnonymous)
		return errors.Wrap(err, "[Manager.Restore]")
	}
	return nil
}

// Watch keeps the manager in step with the stored session until ctx is done.
// The access token is checked every check interval, and changes made by other
// holders of the storage are re-validated as they arrive.
func (m *Manager) Watch(ctx context.Context) error {
	changes, err := m.sessions.Watch(ctx)
	if err != nil {
		return errors.Wrap(err, "[Manager.Watch]")
	}

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	m.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.check(ctx)
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			switch {
			case change.Key == session.AccessTokenKey && change.Removed:
				m.logger.Info().Msg("access token removed elsewhere, ending session")
				m.expire()
			case change.Key == session.UserKey:
				m.cache.Invalidate(MeKey)
				m.check(ctx)
			default:
				m.check(ctx)
			}
		}
	}
}

func (m *Manager) check(ctx context.Context) {
	access := m.sessions.AccessToken(ctx)
	if access == "" {
		if m.State() != StateAnonymous {
			m.expire()
		}
		return
	}

	if m.State() == StateAnonymous {
		m.cache.Invalidate(MeKey)
		m.setState(StateAuthenticated)
	}
	if m.sessions.IsTokenExpired(access) {
		m.logger.Debug().Msg("access token expired, refreshing")
		if err := m.RefreshToken(ctx); err != nil {
			m.logger.Debug().Err(err).Msg("background refresh failed")
		}
	}
}

func (m *Manager) expire() {
	m.cache.Clear()
	m.setState(StateAnonymous)
	m.emit(Event{Type: EventSessionExpired, Redirect: m.loginPath, Err: apperrors.ErrSessionExpired})
}
