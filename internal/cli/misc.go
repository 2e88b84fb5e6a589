package cli

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/go-brief-portal/session"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newThemeCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark]",
		Short:     "Show or set the colour theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(session.ThemeLight), string(session.ThemeDark)},
		RunE: r.run(func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			if len(args) == 0 {
				fmt.Fprintln(a.out, a.sessions.Theme(ctx))
				return nil
			}
			theme := session.Theme(strings.ToLower(args[0]))
			if theme != session.ThemeLight && theme != session.ThemeDark {
				return errors.Errorf("unknown theme %q", args[0])
			}
			if err := a.sessions.SetTheme(ctx, theme); err != nil {
				return err
			}
			fmt.Fprintln(a.out, newStyles(theme).ok.Render("Theme set to "+string(theme)))
			return nil
		}),
	}
}

func newHealthCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the portal API is reachable",
		Args:  cobra.NoArgs,
		RunE: r.run(func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.gateway.Health(cmd.Context()); err != nil {
				return errors.Wrapf(err, "%s is not healthy", a.gateway.BaseURL())
			}
			fmt.Fprintln(a.out, a.styles.ok.Render(a.gateway.BaseURL()+" is healthy"))
			return nil
		}),
	}
}
