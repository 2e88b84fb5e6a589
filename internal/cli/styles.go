package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/jrsteele09/go-brief-portal/model"
	"github.com/jrsteele09/go-brief-portal/session"
)

type palette struct {
	title, muted, ok, warn, err lipgloss.Color
	status                      map[model.BriefStatus]lipgloss.Color
}

var palettes = map[session.Theme]palette{
	session.ThemeLight: {
		title: "25", muted: "244", ok: "28", warn: "130", err: "160",
		status: map[model.BriefStatus]lipgloss.Color{
			model.StatusPending:    "130",
			model.StatusReviewed:   "25",
			model.StatusInProgress: "91",
			model.StatusCompleted:  "28",
		},
	},
	session.ThemeDark: {
		title: "111", muted: "245", ok: "114", warn: "221", err: "203",
		status: map[model.BriefStatus]lipgloss.Color{
			model.StatusPending:    "221",
			model.StatusReviewed:   "111",
			model.StatusInProgress: "177",
			model.StatusCompleted:  "114",
		},
	},
}

type styles struct {
	title  lipgloss.Style
	label  lipgloss.Style
	muted  lipgloss.Style
	ok     lipgloss.Style
	warn   lipgloss.Style
	err    lipgloss.Style
	status map[model.BriefStatus]lipgloss.Style
	box    lipgloss.Style
}

func newStyles(theme session.Theme) styles {
	p, ok := palettes[theme]
	if !ok {
		p = palettes[session.ThemeLight]
	}
	s := styles{
		title:  lipgloss.NewStyle().Bold(true).Foreground(p.title),
		label:  lipgloss.NewStyle().Bold(true),
		muted:  lipgloss.NewStyle().Foreground(p.muted),
		ok:     lipgloss.NewStyle().Foreground(p.ok),
		warn:   lipgloss.NewStyle().Foreground(p.warn),
		err:    lipgloss.NewStyle().Bold(true).Foreground(p.err),
		status: make(map[model.BriefStatus]lipgloss.Style),
		box:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.muted).Padding(0, 1),
	}
	for status, color := range p.status {
		s.status[status] = lipgloss.NewStyle().Bold(true).Foreground(color)
	}
	return s
}

func (s styles) renderStatus(status model.BriefStatus) string {
	if style, ok := s.status[status]; ok {
		return style.Render(string(status))
	}
	return string(status)
}

func (s styles) table(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.muted).
		Headers(headers...)
}

// notifier prints write results from the portal service.
type notifier struct {
	out    io.Writer
	styles styles
}

func (n notifier) Success(message string) {
	fmt.Fprintln(n.out, n.styles.ok.Render("✓ "+message))
}

func (n notifier) Error(message string) {
	fmt.Fprintln(n.out, n.styles.err.Render("✗ "+message))
}
