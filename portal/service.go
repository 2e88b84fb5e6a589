// Package portal is the set of named reads and writes the portal performs
// against the backend. Reads go through the cache. Each write makes one
// backend call and then brings every cached copy of the record it touched up
// to date.
package portal

import (
	"context"
	"strings"
	"time"

	"github.com/jrsteele09/go-brief-portal/cache"
	"github.com/jrsteele09/go-brief-portal/gateway"
	apperrors "github.com/jrsteele09/go-brief-portal/internal/errors"
	"github.com/jrsteele09/go-brief-portal/model"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultPollInterval = 30 * time.Second

// Notifier shows transient messages about completed or failed writes.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Success(message string) {
	n.Logger.Info().Msg(message)
}

func (n LogNotifier) Error(message string) {
	n.Logger.Error().Msg(message)
}

type Service struct {
	gateway         *gateway.Client
	cache           *cache.Cache
	notifier        Notifier
	logger          zerolog.Logger
	currentUser     func(ctx context.Context) *model.User
	nowFunc         func() time.Time
	pollInterval    time.Duration
	initialInterval time.Duration
	maxInterval     time.Duration
}

type Option func(*Service)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithCurrentUser supplies the signed in user, used to author optimistic
// discussion messages.
func WithCurrentUser(fn func(ctx context.Context) *model.User) Option {
	return func(s *Service) {
		s.currentUser = fn
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Service) {
		s.nowFunc = now
	}
}

// WithPollInterval sets how often WatchUnreadCount refetches.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		s.pollInterval = d
	}
}

// WithBackoff sets the first and largest wait between read retries.
func WithBackoff(initial, max time.Duration) Option {
	return func(s *Service) {
		s.initialInterval = initial
		s.maxInterval = max
	}
}

func New(gw *gateway.Client, c *cache.Cache, options ...Option) (*Service, error) {
	if gw == nil {
		return nil, errors.New("[portal.New] gateway is required")
	}
	if c == nil {
		return nil, errors.New("[portal.New] cache is required")
	}
	s := &Service{
		gateway:         gw,
		cache:           c,
		logger:          log.Logger,
		currentUser:     func(context.Context) *model.User { return nil },
		nowFunc:         time.Now,
		pollInterval:    DefaultPollInterval,
		initialInterval: cache.DefaultRetry.InitialInterval,
		maxInterval:     cache.DefaultRetry.MaxInterval,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{Logger: s.logger}
	}
	registerIndexers(c)
	return s, nil
}

// retryable reports whether repeating a failed read could help. Auth,
// permission, missing and invalid requests never change on their own.
func retryable(err error) bool {
	switch gateway.KindOf(err) {
	case gateway.KindUnauthorized, gateway.KindForbidden, gateway.KindNotFound, gateway.KindValidation:
		return false
	}
	return true
}

func (s *Service) retry(maxRetries int) cache.RetryPolicy {
	return cache.RetryPolicy{
		MaxRetries:      maxRetries,
		ShouldRetry:     retryable,
		InitialInterval: s.initialInterval,
		MaxInterval:     s.maxInterval,
	}
}

// fail reports a failed write through the notifier and wraps err for the caller.
func (s *Service) fail(op string, err error, lookup func(model.ErrorCode) string) error {
	s.logger.Err(err).Str("op", op).Msg("portal write failed")
	s.notifier.Error(ErrorMessage(err, lookup))
	return errors.Wrap(err, "[Service."+op+"]")
}

// validID rejects ids that could not name a single record in a URL path.
func validID(id string) bool {
	return strings.TrimSpace(id) != "" && !strings.ContainsAny(id, "/?#% \t\n")
}

func invalidID(op, id string) error {
	return apperrors.Wrapf(apperrors.ErrInvalidID, "[Service.%s] %q", op, id)
}
