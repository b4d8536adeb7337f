package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/taskaroo/internal/scan"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "List tasks and rescan whenever files change",
		Long: `List tasks, then watch the workspace and print the list again after
every burst of file changes. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			printTree(out, a.Repository(), time.Now())

			return a.Watch(cmd.Context(), func(res *scan.Result, err error) {
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "rescan failed: %v\n", err)
					return
				}
				if res.Superseded {
					return
				}
				fmt.Fprintf(out, "\n--- %s: rescanned %d files in %s ---\n",
					time.Now().Format(time.TimeOnly), res.Files, res.Duration.Round(time.Millisecond))
				printTree(out, a.Repository(), time.Now())
			})
		},
	}
}
