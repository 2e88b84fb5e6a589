package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jrsteele09/go-brief-portal/model"
	"github.com/spf13/cobra"
)

func newDiscussionsCmd(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "discussions",
		Aliases: []string{"msg"},
		Short:   "Read and post brief discussions",
	}

	list := &cobra.Command{
		Use:   "list <brief-id>",
		Short: "Show the discussion thread of a brief",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.require(cmd.Context(), ""); err != nil {
				return err
			}
			thread, err := a.portal.BriefDiscussions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printDiscussions(a, thread, false)
			return nil
		}),
	}

	post := &cobra.Command{
		Use:   "post <brief-id> <message...>",
		Short: "Post a message to a brief's thread",
		Args:  cobra.MinimumNArgs(2),
		RunE: r.run(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.require(cmd.Context(), ""); err != nil {
				return err
			}
			_, err := a.portal.PostDiscussion(cmd.Context(), args[0], strings.Join(args[1:], " "))
			return err
		}),
	}

	del := &cobra.Command{
		Use:   "delete <discussion-id>",
		Short: "Delete a message",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.require(cmd.Context(), model.RoleAdmin); err != nil {
				return err
			}
			return a.portal.DeleteDiscussion(cmd.Context(), args[0])
		}),
	}

	search := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search messages across every brief",
		Args:  cobra.MinimumNArgs(1),
		RunE: r.run(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.require(cmd.Context(), model.RoleAdmin); err != nil {
				return err
			}
			found, err := a.portal.SearchDiscussions(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			printDiscussions(a, found, true)
			return nil
		}),
	}

	mine := &cobra.Command{
		Use:   "mine",
		Short: "Show messages on your briefs",
		Args:  cobra.NoArgs,
		RunE: r.run(func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.require(cmd.Context(), ""); err != nil {
				return err
			}
			mine, err := a.portal.MyDiscussions(cmd.Context())
			if err != nil {
				return err
			}
			printDiscussions(a, mine, true)
			return nil
		}),
	}

	cmd.AddCommand(list, post, del, search, mine)
	return cmd
}

func printDiscussions(a *app, discussions []model.Discussion, withBrief bool) {
	if len(discussions) == 0 {
		fmt.Fprintln(a.out, a.styles.muted.Render("No messages"))
		return
	}
	for _, d := range discussions {
		printDiscussion(a.out, a.styles, d, withBrief)
	}
}

func printDiscussion(out io.Writer, s styles, d model.Discussion, withBrief bool) {
	author := "Unknown"
	if d.User != nil && d.User.Name != "" {
		author = d.User.Name
	}
	if d.IsFromAdmin {
		author += " (agency)"
	}
	header := s.label.Render(author) + " " + s.muted.Render(d.Timestamp.Format(timeLayout)+" "+d.ID)
	if withBrief && d.Brief != nil {
		header += " " + s.title.Render(d.Brief.ProjectName)
	}
	fmt.Fprintln(out, header)
	fmt.Fprintf(out, "  %s\n", d.Message)
}
