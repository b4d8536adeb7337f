package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/taskaroo/internal/task"
	"github.com/dshills/taskaroo/internal/view"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export tasks as \"label (path:line)\" lines",
		Long: `Export the filtered tasks, one per line, as "label (path:line)".

Without --output the lines are written to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			records := a.Repository().All()
			if len(records) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No tasks to export.")
				return nil
			}

			if output == "" {
				w := cmd.OutOrStdout()
				if _, err := view.WriteExport(w, records); err != nil {
					return err
				}
				fmt.Fprintln(w)
				return nil
			}

			n, err := exportFile(output, records)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", view.StatusText(n), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write instead of stdout")
	return cmd
}

// exportFile writes the export lines to path. A failed close is an error,
// since buffered data may not have reached the disk.
func exportFile(path string, records []task.Record) (n int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating export file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			n, err = 0, fmt.Errorf("closing export file: %w", cerr)
		}
	}()
	return view.WriteExport(f, records)
}
