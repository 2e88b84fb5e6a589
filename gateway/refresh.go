package gateway

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-brief-portal/internal/errors"
	"github.com/jrsteele09/go-brief-portal/model"
)

const refreshKey = "refresh"

type RefreshPhase int

const (
	RefreshStarted RefreshPhase = iota
	RefreshSucceeded
	RefreshFailed
)

func (p RefreshPhase) String() string {
	switch p {
	case RefreshStarted:
		return "started"
	case RefreshSucceeded:
		return "succeeded"
	case RefreshFailed:
		return "failed"
	}
	return "unknown"
}

// RefreshEvent reports progress of a credential refresh. A failed refresh
// has already cleared the stored credentials; Redirect names the login
// entry point the user should be sent to.
type RefreshEvent struct {
	Phase    RefreshPhase
	Err      error
	Redirect string
}

// refreshResult remembers which token the last refresh replaced, so a 401
// that arrives after the flight has landed does not start another one.
type refreshResult struct {
	stale string
	fresh string
	err   error
	done  bool
}

// OnRefresh registers fn for refresh events and returns a function that removes it.
func (c *Client) OnRefresh(fn func(RefreshEvent)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Client) emit(event RefreshEvent) {
	c.mu.Lock()
	fns := make([]func(RefreshEvent), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}

// Refresh exchanges the stored refresh token for a new access token. Concurrent
// callers share one request. On failure the stored credentials are cleared.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	if c.creds == nil {
		return "", errors.Wrapf(errors.ErrNotAuthenticated, "[Client.Refresh] no credential store")
	}
	stale := ""
	if tok := c.creds.OAuth2Token(ctx); tok != nil {
		stale = tok.AccessToken
	}
	return c.flight(ctx, stale)
}

// refreshFor repairs the credentials after a request sent with stale got a 401.
func (c *Client) refreshFor(ctx context.Context, stale string) (string, error) {
	if tok := c.creds.OAuth2Token(ctx); tok != nil && tok.AccessToken != "" && tok.AccessToken != stale {
		return tok.AccessToken, nil
	}

	c.mu.Lock()
	last := c.last
	c.mu.Unlock()
	if stale != "" && last.done && last.stale == stale {
		return last.fresh, last.err
	}
	return c.flight(ctx, stale)
}

func (c *Client) flight(ctx context.Context, stale string) (string, error) {
	// The refresh outlives any single caller that joined it.
	detached := context.WithoutCancel(ctx)
	ch := c.refreshGroup.DoChan(refreshKey, func() (any, error) {
		fresh, err := c.refresh(detached)
		c.mu.Lock()
		c.last = refreshResult{stale: stale, fresh: fresh, err: err, done: true}
		c.mu.Unlock()
		return fresh, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", &Error{Kind: KindNetwork, Message: "request cancelled", Err: ctx.Err()}
	}
}

func (c *Client) refresh(ctx context.Context) (string, error) {
	c.emit(RefreshEvent{Phase: RefreshStarted})

	refreshToken := c.creds.RefreshToken(ctx)
	if refreshToken == "" {
		return "", c.refreshFailed(ctx, &Error{
			Kind:    KindUnauthorized,
			Status:  http.StatusUnauthorized,
			Code:    model.CodeUnauthorized,
			Message: errors.ErrNoRefreshToken.Error(),
			Err:     errors.ErrNoRefreshToken,
		})
	}

	var out model.RefreshResponse
	err := c.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      c.refreshPath,
		Body:      model.RefreshRequest{RefreshToken: refreshToken},
		Anonymous: true,
	}, &out)
	if err == nil && out.AccessToken == "" {
		err = &Error{Kind: KindDecode, Message: "refresh response carried no access token"}
	}
	if err != nil {
		return "", c.refreshFailed(ctx, err)
	}

	if err := c.creds.SetAccessToken(ctx, out.AccessToken); err != nil {
		return "", c.refreshFailed(ctx, errors.Wrapf(err, "[Client.refresh] store access token"))
	}

	c.logger.Debug().Msg("access token refreshed")
	c.emit(RefreshEvent{Phase: RefreshSucceeded})
	return out.AccessToken, nil
}

func (c *Client) refreshFailed(ctx context.Context, err error) error {
	c.logger.Err(err).Msg("token refresh failed, clearing credentials")
	if clearErr := c.creds.ClearTokens(ctx); clearErr != nil {
		c.logger.Err(clearErr).Msg("error clearing credentials")
	}
	c.emit(RefreshEvent{Phase: RefreshFailed, Err: err, Redirect: c.loginPath})
	return err
}
