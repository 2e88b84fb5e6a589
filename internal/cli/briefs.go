package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-brief-portal/internal/utils"
	"github.com/jrsteele09/go-brief-portal/model"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const timeLayout = "2006-01-02 15:04"

func newBriefsCmd(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "briefs",
		Aliases: []string{"brief"},
		Short:   "List, inspect and manage briefs",
	}
	cmd.AddCommand(
		newBriefListCmd(r),
		newBriefShowCmd(r),
		newBriefCreateCmd(r),
		newBriefStatusCmd(r),
		newBriefStatsCmd(r),
	)
	return cmd
}

func newBriefListCmd(r *runner) *cobra.Command {
	var clientID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List briefs visible to you",
		Args:  cobra.NoArgs,
		RunE: r.run(func(cmd *cobra.Command, a *app, _ []string) error {
			ctx := cmd.Context()
			if err := a.require(ctx, ""); err != nil {
				return err
			}

			var (
				briefs []model.Brief
				err    error
			)
			if clientID != "" {
				briefs, err = a.portal.BriefsByClient(ctx, clientID)
			} else {
				briefs, err = a.portal.ListBriefs(ctx)
			}
			if err != nil {
				return err
			}
			if len(briefs) == 0 {
				fmt.Fprintln(a.out, a.styles.muted.Render("No briefs yet"))
				return nil
			}

			admin := a.sessions.User(ctx).IsAdmin()
			headers := []string{"ID", "PROJECT", "STATUS", "UPDATED"}
			if admin {
				headers = []string{"ID", "PROJECT", "CLIENT", "STATUS", "UPDATED"}
			}
			t := a.styles.table(headers...)
			for _, b := range briefs {
				row := []string{b.ID, b.ProjectName}
				if admin {
					row = append(row, a.portal.ClientName(ctx, b.ClientID))
				}
				t.Row(append(row, a.styles.renderStatus(b.Status), b.UpdatedAt.Format(timeLayout))...)
			}
			fmt.Fprintln(a.out, t.String())
			return nil
		}),
	}
	cmd.Flags().StringVar(&clientID, "client", "", "only briefs of this client")
	return cmd
}

func newBriefShowCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "show <brief-id>",
		Short: "Show a brief with its deliverables",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			if err := a.require(ctx, ""); err != nil {
				return err
			}
			brief, err := a.portal.GetBrief(ctx, args[0])
			if err != nil {
				return err
			}
			deliverables, err := a.portal.BriefDeliverables(ctx, brief.ID)
			if err != nil {
				return err
			}

			var b strings.Builder
			fmt.Fprintf(&b, "%s  %s\n", a.styles.title.Render(brief.ProjectName), a.styles.renderStatus(brief.Status))
			fmt.Fprintf(&b, "%s\n\n", brief.ProjectDescription)
			field := func(name, value string) {
				if value != "" {
					fmt.Fprintf(&b, "%s %s\n", a.styles.label.Render(name+":"), value)
				}
			}
			field("Client", a.portal.ClientName(ctx, brief.ClientID))
			field("Website", brief.WebsiteType)
			field("Brand", brief.BrandName)
			field("Slogan", utils.Deref(brief.BrandSlogan))
			field("Colours", strings.TrimSuffix(brief.MainColor+" "+utils.Deref(brief.SecondaryColor), " "))
			field("Font", brief.FontPreference)
			field("Mood", strings.Join(brief.MoodTheme, ", "))
			field("References", strings.Join(brief.ReferenceLinks, " "))
			field("Notes", utils.Deref(brief.AdditionalNotes))
			field("Updated", brief.UpdatedAt.Format(timeLayout))
			fmt.Fprintln(a.out, a.styles.box.Render(strings.TrimRight(b.String(), "\n")))

			if len(deliverables) > 0 {
				fmt.Fprintln(a.out, a.styles.label.Render("Deliverables"))
				for _, d := range deliverables {
					fmt.Fprintf(a.out, "  [%s] %s %s\n", d.Type, d.Title, a.styles.muted.Render(d.Link))
				}
			}
			return nil
		}),
	}
}

func newBriefCreateCmd(r *runner) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit a new brief from a YAML file",
		Args:  cobra.NoArgs,
		RunE: r.run(func(cmd *cobra.Command, a *app, _ []string) error {
			ctx := cmd.Context()
			if err := a.require(ctx, model.RoleClient); err != nil {
				return err
			}
			raw, err := os.ReadFile(file)
			if err != nil {
				return errors.Wrap(err, "read brief file")
			}
			var req model.CreateBriefRequest
			if err := yaml.Unmarshal(raw, &req); err != nil {
				return errors.Wrap(err, "parse brief file")
			}
			for _, field := range []**string{&req.BrandSlogan, &req.SecondaryColor, &req.LogoAssets, &req.AdditionalNotes} {
				*field = utils.OptionalString(utils.Deref(*field))
			}
			brief, err := a.portal.CreateBrief(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, brief.ID)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "brief YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newBriefStatusCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "status <brief-id> <status>",
		Short: "Move a brief to another workflow status",
		Args:  cobra.ExactArgs(2),
		RunE: r.run(func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			if err := a.require(ctx, model.RoleAdmin); err != nil {
				return err
			}
			status, ok := model.ParseBriefStatus(args[1])
			if !ok {
				return errors.Errorf("unknown status %q, expected one of %v", args[1], model.BriefStatuses)
			}
			brief, err := a.portal.UpdateBriefStatus(ctx, args[0], status)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s is now %s\n", brief.ProjectName, a.styles.renderStatus(brief.Status))
			return nil
		}),
	}
}

func newBriefStatsCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count briefs by status",
		Args:  cobra.NoArgs,
		RunE: r.run(func(cmd *cobra.Command, a *app, _ []string) error {
			ctx := cmd.Context()
			if err := a.require(ctx, model.RoleAdmin); err != nil {
				return err
			}
			stats, err := a.portal.BriefStatistics(ctx)
			if err != nil {
				return err
			}
			t := a.styles.table("STATUS", "BRIEFS")
			for _, status := range model.BriefStatuses {
				t.Row(a.styles.renderStatus(status), strconv.Itoa(stats.Count(status)))
			}
			t.Row(a.styles.label.Render("TOTAL"), strconv.Itoa(stats.Total))
			fmt.Fprintln(a.out, t.String())
			return nil
		}),
	}
}

func newDeliverablesCmd(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deliverables",
		Short: "Manage brief deliverables",
	}

	var req model.CreateDeliverableRequest
	var kind string
	add := &cobra.Command{
		Use:   "add <brief-id>",
		Short: "Attach a deliverable link to a brief",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			if err := a.require(ctx, model.RoleAdmin); err != nil {
				return err
			}
			req.Type = model.DeliverableType(strings.ToUpper(kind))
			d, err := a.portal.AddDeliverable(ctx, args[0], req)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, d.ID)
			return nil
		}),
	}
	add.Flags().StringVar(&req.Title, "title", "", "deliverable title")
	add.Flags().StringVar(&req.Description, "description", "", "deliverable description")
	add.Flags().StringVar(&req.Link, "link", "", "deliverable URL")
	add.Flags().StringVar(&kind, "type", string(model.DeliverableFigma), "FIGMA, PROTOTYPE, WEBSITE or DOCUMENT")
	_ = add.MarkFlagRequired("title")
	_ = add.MarkFlagRequired("link")

	list := &cobra.Command{
		Use:   "list <brief-id>",
		Short: "List deliverables of a brief",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			if err := a.require(ctx, ""); err != nil {
				return err
			}
			deliverables, err := a.portal.BriefDeliverables(ctx, args[0])
			if err != nil {
				return err
			}
			t := a.styles.table("ID", "TYPE", "TITLE", "LINK")
			for _, d := range deliverables {
				t.Row(d.ID, string(d.Type), d.Title, d.Link)
			}
			fmt.Fprintln(a.out, t.String())
			return nil
		}),
	}

	cmd.AddCommand(add, list)
	return cmd
}
