// Package cli is briefctl, a terminal client for the brief portal.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/jrsteele09/go-brief-portal/internal/config"
	"github.com/jrsteele09/go-brief-portal/storage"
	"github.com/spf13/cobra"
)

type Option func(*runner)

// WithConfig skips loading configuration from the environment.
func WithConfig(cfg config.Config) Option {
	return func(r *runner) {
		r.cfg = cfg
	}
}

// WithStorage runs commands against st instead of the configured backend.
// The caller keeps ownership of st.
func WithStorage(st storage.Storage) Option {
	return func(r *runner) {
		r.storage = st
	}
}

func WithStdin(in io.Reader) Option {
	return func(r *runner) {
		r.stdin = in
	}
}

// runner builds a fresh client stack for every command invocation.
type runner struct {
	cfg        config.Config
	storage    storage.Storage
	stdin      io.Reader
	configFile string
}

type action func(cmd *cobra.Command, a *app, args []string) error

func (r *runner) run(fn action) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg := r.cfg
		if cfg == nil {
			if cfg, err = loadConfig(r.configFile); err != nil {
				return err
			}
		}
		a, err := newApp(cmd.Context(), cfg, r.storage, cmd.OutOrStdout(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := a.Close(); err == nil {
				err = closeErr
			}
		}()
		return fn(cmd, a, args)
	}
}

// ExecuteContext runs briefctl with the process arguments.
func ExecuteContext(ctx context.Context, opts ...Option) error {
	return NewRootCmd(opts...).ExecuteContext(ctx)
}

func NewRootCmd(opts ...Option) *cobra.Command {
	r := &runner{stdin: os.Stdin}
	for _, opt := range opts {
		opt(r)
	}

	root := &cobra.Command{
		Use:           "briefctl",
		Short:         "Work with website briefs from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&r.configFile, "config", "", "YAML config file (defaults to $CONFIG_FILE)")

	root.AddCommand(
		newLoginCmd(r),
		newLogoutCmd(r),
		newWhoamiCmd(r),
		newBriefsCmd(r),
		newDeliverablesCmd(r),
		newDiscussionsCmd(r),
		newNotificationsCmd(r),
		newThemeCmd(r),
		newHealthCmd(r),
	)
	return root
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		path = config.GetEnv("CONFIG_FILE", "")
	}
	if path == "" {
		return config.New(), nil
	}
	return config.Load(path)
}
