package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/taskaroo/internal/task"
	"github.com/dshills/taskaroo/internal/ui"
	"github.com/dshills/taskaroo/internal/view"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List tasks grouped by file or tag",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			repo := a.Repository()
			switch format {
			case "text":
				printTree(cmd.OutOrStdout(), repo, time.Now())
				return nil
			case "json":
				return printJSON(cmd.OutOrStdout(), repo, time.Now())
			default:
				return fmt.Errorf("unknown format %q (must be text or json)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format (text, json)")
	return cmd
}

// outputWidth returns the terminal width of w, or 0 when w is not a
// terminal.
func outputWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// printTree writes the grouped view followed by the status line. Lines
// are truncated to the terminal width when writing to a terminal.
func printTree(w io.Writer, repo *task.Repository, now time.Time) {
	width := outputWidth(w)
	line := func(s string) {
		if width > 0 {
			s = ui.Truncate(s, width)
		}
		fmt.Fprintln(w, s)
	}

	records := repo.All()
	nodes := view.Build(records, repo.GroupBy())

	posWidth := 0
	for _, r := range records {
		posWidth = max(posWidth, ui.Width(r.Position()))
	}

	for i, group := range nodes {
		if i > 0 {
			line("")
		}
		header := group.Label
		if group.Key != group.Label {
			header += "  " + group.Key
		}
		line(fmt.Sprintf("%s (%d)", header, len(group.Children)))
		for _, child := range group.Children {
			rec := child.Record
			flags := ""
			if rec.Overdue(now) {
				flags = "  [overdue]"
			}
			if rec.Done {
				flags += "  [done]"
			}
			line("  " + ui.PadRight(rec.Position(), posWidth) + "  " + child.Label + flags)
		}
	}
	if len(nodes) > 0 {
		line("")
	}

	status := view.StatusText(repo.Count())
	if repo.Count() != repo.Total() {
		status += fmt.Sprintf(" (of %d)", repo.Total())
	}
	line(status)
}

type jsonTask struct {
	Tag      string `json:"tag"`
	Path     string `json:"path"`
	Line     int    `json:"line"`
	Text     string `json:"text"`
	Severity string `json:"severity"`
	Due      string `json:"due,omitempty"`
	Overdue  bool   `json:"overdue,omitempty"`
	Label    string `json:"label"`
}

type jsonList struct {
	Count   int        `json:"count"`
	Total   int        `json:"total"`
	GroupBy string     `json:"group_by"`
	Filter  string     `json:"filter,omitempty"`
	Tasks   []jsonTask `json:"tasks"`
}

func printJSON(w io.Writer, repo *task.Repository, now time.Time) error {
	records := repo.All()
	out := jsonList{
		Count:   repo.Count(),
		Total:   repo.Total(),
		GroupBy: string(repo.GroupBy()),
		Filter:  repo.FilterText(),
		Tasks:   make([]jsonTask, len(records)),
	}
	for i, r := range records {
		out.Tasks[i] = jsonTask{
			Tag:      r.Tag,
			Path:     r.Location.Path,
			Line:     r.Location.Line + 1,
			Text:     r.Text,
			Severity: r.Severity.String(),
			Due:      r.DueText,
			Overdue:  r.Overdue(now),
			Label:    r.Label(),
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
