package main

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/taskaroo/internal/task"
	"github.com/dshills/taskaroo/internal/view"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize tasks by tag and severity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			s := a.Repository().Stats(time.Now())
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Tasks:\t%s in %d files\n", view.StatusText(s.Count), s.Files)
			if s.Count != s.Total {
				fmt.Fprintf(w, "Unfiltered:\t%d\n", s.Total)
			}
			fmt.Fprintf(w, "Overdue:\t%d\n", s.Overdue)

			tags := make([]string, 0, len(s.ByTag))
			for tag := range s.ByTag {
				tags = append(tags, tag)
			}
			sort.Slice(tags, func(i, j int) bool {
				if s.ByTag[tags[i]] != s.ByTag[tags[j]] {
					return s.ByTag[tags[i]] > s.ByTag[tags[j]]
				}
				return tags[i] < tags[j]
			})
			for _, tag := range tags {
				fmt.Fprintf(w, "  %s\t%d\n", tag, s.ByTag[tag])
			}
			for _, sev := range []task.Severity{task.SeverityHigh, task.SeverityMedium, task.SeverityLow} {
				fmt.Fprintf(w, "  %s\t%d\n", sev, s.BySeverity[sev])
			}
			return w.Flush()
		},
	}
}
