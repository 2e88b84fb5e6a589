package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/jrsteele09/go-brief-portal/internal/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newLoginCmd(r *runner) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the portal",
		Args:  cobra.NoArgs,
		RunE: r.run(func(cmd *cobra.Command, a *app, _ []string) error {
			if password == "" {
				line, err := bufio.NewReader(r.stdin).ReadString('\n')
				if err != nil && err != io.EOF {
					return errors.Wrap(err, "read password")
				}
				password = strings.TrimRight(line, "\r\n")
			}

			result := a.auth.Login(cmd.Context(), email, password)
			if !result.Success {
				return errors.New(result.Error)
			}
			fmt.Fprintln(a.out, a.styles.ok.Render("Signed in as "+a.sessions.User(cmd.Context()).Name))
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password, read from stdin when empty")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: r.run(func(cmd *cobra.Command, a *app, _ []string) error {
			a.auth.Logout(cmd.Context())
			fmt.Fprintln(a.out, "Signed out")
			return nil
		}),
	}
}

func newWhoamiCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user",
		Args:  cobra.NoArgs,
		RunE: r.run(func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.require(cmd.Context(), ""); err != nil {
				return err
			}
			user, err := a.auth.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s\n", a.styles.label.Render(user.Name), a.styles.muted.Render("<"+user.Email+">"))
			fmt.Fprintf(a.out, "role: %s\n", user.Role)
			fmt.Fprintf(a.out, "company: %s\n", utils.DerefOr(user.Company, "-"))
			return nil
		}),
	}
}
