package cli

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-brief-portal/auth"
	"github.com/jrsteele09/go-brief-portal/gateway"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newNotificationsCmd(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"inbox"},
		Short:   "Read your notifications",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: r.run(func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.require(cmd.Context(), ""); err != nil {
				return err
			}
			notifications, err := a.portal.Notifications(cmd.Context())
			if err != nil {
				return err
			}
			if len(notifications) == 0 {
				fmt.Fprintln(a.out, a.styles.muted.Render("Nothing new"))
				return nil
			}
			for _, n := range notifications {
				marker := a.styles.ok.Render("●")
				if n.IsRead {
					marker = " "
				}
				fmt.Fprintf(a.out, "%s %s %s\n", marker, a.styles.label.Render(n.Title), a.styles.muted.Render(n.ID))
				fmt.Fprintf(a.out, "  %s\n", n.Message)
			}
			return nil
		}),
	}

	unread := &cobra.Command{
		Use:   "unread",
		Short: "Print the unread count",
		Args:  cobra.NoArgs,
		RunE: r.run(func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.require(cmd.Context(), ""); err != nil {
				return err
			}
			count, err := a.portal.UnreadCount(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, count)
			return nil
		}),
	}

	read := &cobra.Command{
		Use:   "read <notification-id>",
		Short: "Mark a notification read",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.require(cmd.Context(), ""); err != nil {
				return err
			}
			return a.portal.MarkNotificationRead(cmd.Context(), args[0])
		}),
	}

	readAll := &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification read",
		Args:  cobra.NoArgs,
		RunE: r.run(func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.require(cmd.Context(), ""); err != nil {
				return err
			}
			return a.portal.MarkAllNotificationsRead(cmd.Context())
		}),
	}

	watch := &cobra.Command{
		Use:   "watch",
		Short: "Follow the unread count until interrupted",
		Args:  cobra.NoArgs,
		RunE: r.run(func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.require(cmd.Context(), ""); err != nil {
				return err
			}
			return watchUnread(cmd.Context(), a)
		}),
	}

	cmd.AddCommand(list, unread, read, readAll, watch)
	return cmd
}

// watchUnread polls the unread count while keeping the session fresh. It
// stops when ctx is done or the session ends.
func watchUnread(ctx context.Context, a *app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := a.auth.Subscribe(func(e auth.Event) {
		if e.Type == auth.EventSessionExpired {
			cancel()
		}
	})
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.auth.Watch(ctx)
	})
	g.Go(func() error {
		a.cache.RunJanitor(ctx, a.cfg.GetGCTime())
		return nil
	})
	g.Go(func() error {
		last := -1
		a.portal.WatchUnreadCount(ctx, func(count int, err error) {
			if err != nil {
				if gateway.IsTransport(err) {
					fmt.Fprintln(a.out, a.styles.warn.Render("offline, retrying"))
				}
				return
			}
			if count != last {
				fmt.Fprintf(a.out, "unread: %d\n", count)
				last = count
			}
		})
		return nil
	})
	return g.Wait()
}
