package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jrsteele09/go-brief-portal/auth"
	"github.com/jrsteele09/go-brief-portal/cache"
	"github.com/jrsteele09/go-brief-portal/gateway"
	"github.com/jrsteele09/go-brief-portal/guard"
	"github.com/jrsteele09/go-brief-portal/internal/config"
	"github.com/jrsteele09/go-brief-portal/internal/logging"
	"github.com/jrsteele09/go-brief-portal/model"
	"github.com/jrsteele09/go-brief-portal/portal"
	"github.com/jrsteele09/go-brief-portal/session"
	"github.com/jrsteele09/go-brief-portal/storage"
	"github.com/jrsteele09/go-brief-portal/storage/memstorage"
	"github.com/jrsteele09/go-brief-portal/storage/redisstorage"
	"github.com/jrsteele09/go-brief-portal/storage/sqlitestorage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// app is the client stack one command runs against.
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	out      io.Writer
	styles   styles
	storage  storage.Storage
	ownsSt   bool
	sessions *session.Store
	gateway  *gateway.Client
	cache    *cache.Cache
	auth     *auth.Manager
	portal   *portal.Service
	stopAuth func()
}

func newApp(ctx context.Context, cfg config.Config, st storage.Storage, out, errOut io.Writer) (*app, error) {
	a := &app{
		cfg:    cfg,
		out:    out,
		logger: logging.Setup(cfg.GetEnv(), cfg.GetLogLevel(), errOut),
	}

	if st == nil {
		opened, err := openStorage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		st = opened
		a.ownsSt = true
	}
	a.storage = st

	sessions, err := session.New(st, session.WithLogger(a.logger))
	if err != nil {
		return nil, a.closeOnError(err)
	}
	a.sessions = sessions
	a.styles = newStyles(sessions.Theme(ctx))

	a.gateway, err = gateway.New(cfg.GetAPIURL(), sessions,
		gateway.WithLogger(a.logger),
		gateway.WithTimeout(time.Duration(cfg.GetRequestTimeoutSeconds())*time.Second),
		gateway.WithLoginPath(guard.LoginPath),
	)
	if err != nil {
		return nil, a.closeOnError(err)
	}

	a.cache, err = cache.New(
		cache.WithLogger(a.logger),
		cache.WithStaleTime(cfg.GetStaleTime()),
		cache.WithGCTime(cfg.GetGCTime()),
	)
	if err != nil {
		return nil, a.closeOnError(err)
	}

	a.auth, err = auth.New(sessions, a.gateway, a.cache,
		auth.WithLogger(a.logger),
		auth.WithLoginPath(guard.LoginPath),
		auth.WithCheckInterval(cfg.GetSessionCheckInterval()),
	)
	if err != nil {
		return nil, a.closeOnError(err)
	}
	a.stopAuth = a.auth.Subscribe(a.onAuthEvent)

	a.portal, err = portal.New(a.gateway, a.cache,
		portal.WithLogger(a.logger),
		portal.WithNotifier(notifier{out: out, styles: a.styles}),
		portal.WithCurrentUser(sessions.User),
		portal.WithPollInterval(cfg.GetUnreadPollInterval()),
	)
	if err != nil {
		return nil, a.closeOnError(err)
	}

	if err := a.auth.Restore(ctx); err != nil {
		a.logger.Debug().Err(err).Msg("stored session could not be restored")
	}
	return a, nil
}

func openStorage(ctx context.Context, cfg config.Config) (storage.Storage, error) {
	switch backend := cfg.GetStorageBackend(); backend {
	case "memory":
		return memstorage.New(), nil
	case "redis":
		return redisstorage.Open(ctx, cfg.GetRedisAddr(), cfg.GetRedisPassword(), cfg.GetRedisDB(), cfg.GetProfile())
	case "sqlite", "":
		return sqlitestorage.Open(cfg.GetSQLitePath(), cfg.GetProfile())
	default:
		return nil, errors.Errorf("[cli.openStorage] unknown storage backend %q", backend)
	}
}

func (a *app) closeOnError(err error) error {
	if closeErr := a.Close(); closeErr != nil {
		a.logger.Err(closeErr).Msg("error closing client")
	}
	return err
}

func (a *app) Close() error {
	if a.stopAuth != nil {
		a.stopAuth()
	}
	if a.auth != nil {
		a.auth.Close()
	}
	if a.ownsSt && a.storage != nil {
		return a.storage.Close()
	}
	return nil
}

func (a *app) onAuthEvent(e auth.Event) {
	switch e.Type {
	case auth.EventSessionExpired:
		fmt.Fprintln(a.out, a.styles.warn.Render("Your session has ended. Run `briefctl login` to sign in again."))
	case auth.EventAuthError:
		if e.Context != auth.ContextLogin {
			fmt.Fprintln(a.out, a.styles.err.Render(auth.AuthErrorMessage(e.Code)))
		}
	}
}

// require gates a command the way the portal gates a page.
func (a *app) require(ctx context.Context, role model.RoleType) error {
	decision := guard.Evaluate(guard.SessionFrom(a.auth.Snapshot(ctx)), role)
	switch decision.Outcome {
	case guard.Admit:
		return nil
	case guard.Suspend:
		return errors.New("session is still loading, try again")
	}
	if decision.Location == guard.LoginPath {
		return errors.New("not signed in, run `briefctl login`")
	}
	return errors.Errorf("this command needs the %s role", role)
}
