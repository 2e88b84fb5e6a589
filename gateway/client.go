package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-brief-portal/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultRefreshPath = "/auth/refresh"
	DefaultLoginPath   = "/login"
	maxBodyBytes       = 10 << 20
)

// Credentials is the part of the session store the gateway reads and repairs.
type Credentials interface {
	OAuth2Token(ctx context.Context) *oauth2.Token
	RefreshToken(ctx context.Context) string
	SetAccessToken(ctx context.Context, accessToken string) error
	ClearTokens(ctx context.Context) error
}

// Request describes one backend call.
type Request struct {
	Method    string
	Path      string     // Relative to the base URL, e.g. "/briefs/123"
	Query     url.Values // Optional query string
	Body      any        // Marshalled as JSON when not nil
	Anonymous bool       // Send without credentials and never refresh
}

// Client is the single outbound channel to the backend.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	creds       Credentials
	logger      zerolog.Logger
	refreshPath string
	loginPath   string

	refreshGroup singleflight.Group
	mu           sync.Mutex
	last         refreshResult
	listeners    map[int]func(RefreshEvent)
	nextListener int
}

type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout is kept as given.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithRefreshPath(path string) Option {
	return func(c *Client) {
		c.refreshPath = path
	}
}

// WithLoginPath sets the location carried by session expiry events.
func WithLoginPath(path string) Option {
	return func(c *Client) {
		c.loginPath = path
	}
}

// New creates a gateway for baseURL. creds may be nil for a client that only
// makes anonymous calls.
func New(baseURL string, creds Credentials, options ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "[gateway.New] invalid base URL %q", baseURL)
	}

	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		creds:       creds,
		logger:      log.Logger,
		refreshPath: DefaultRefreshPath,
		loginPath:   DefaultLoginPath,
		listeners:   make(map[int]func(RefreshEvent)),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, out)
}

// Health reports whether the backend answers its health check.
func (c *Client) Health(ctx context.Context) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: "/health", Anonymous: true}, nil)
}

// Do sends req and decodes the envelope's data into out (which may be nil).
// A 401 triggers one credential refresh and one retry of req.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	var body []byte
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return &Error{Kind: KindDecode, Message: "could not encode request body", Err: err}
		}
		body = raw
	}

	var tok *oauth2.Token
	if !req.Anonymous && c.creds != nil {
		tok = c.creds.OAuth2Token(ctx)
	}

	status, env, err := c.send(ctx, req, body, tok)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && !req.Anonymous && c.creds != nil {
		sent := ""
		if tok != nil {
			sent = tok.AccessToken
		}
		fresh, err := c.refreshFor(ctx, sent)
		if err != nil {
			return err
		}
		status, env, err = c.send(ctx, req, body, &oauth2.Token{AccessToken: fresh, TokenType: "Bearer"})
		if err != nil {
			return err
		}
	}

	if err := c.statusError(req, status, env); err != nil {
		return err
	}
	return HandleResponse(env, out)
}

func (c *Client) send(ctx context.Context, req Request, body []byte, tok *oauth2.Token) (int, *Envelope, error) {
	endpoint := c.baseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, reader)
	if err != nil {
		return 0, nil, &Error{Kind: KindNetwork, Message: "could not build request", Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if tok != nil && tok.AccessToken != "" {
		tok.SetAuthHeader(httpReq)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, c.transportError(req, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, c.transportError(req, err)
	}

	env := &Envelope{}
	if len(bytes.TrimSpace(raw)) == 0 || json.Unmarshal(raw, env) != nil {
		// Non-JSON bodies (proxies, HTML error pages) keep only their status.
		env = nil
	}
	return resp.StatusCode, env, nil
}

func (c *Client) transportError(req Request, err error) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		c.logger.Warn().Str("method", req.Method).Str("path", req.Path).Msg("request timeout")
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	c.logger.Error().Err(err).Str("method", req.Method).Str("path", req.Path).Msg("network error")
	return &Error{Kind: KindNetwork, Message: "network error", Err: err}
}

func (c *Client) statusError(req Request, status int, env *Envelope) error {
	if status >= 200 && status < 300 {
		if env == nil {
			return &Error{Kind: KindDecode, Status: status, Message: "response was not a JSON envelope"}
		}
		return nil
	}

	gwErr := &Error{Kind: kindForStatus(status), Status: status, Message: http.StatusText(status)}
	if env != nil {
		gwErr.Code = env.errorCode()
		if msg := env.errorMessage(); msg != unknownAPIError {
			gwErr.Message = msg
		}
	}

	event := c.logger.Debug()
	switch gwErr.Kind {
	case KindForbidden:
		event = c.logger.Warn()
	case KindServer:
		event = c.logger.Error()
	}
	event.Str("method", req.Method).Str("path", req.Path).Int("status", status).Msg(gwErr.Message)
	return gwErr
}
