package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dshills/taskaroo/internal/task"
	"github.com/dshills/taskaroo/internal/view"
)

func newNextCmd(opts *rootOptions, forward bool) *cobra.Command {
	name, dir, find := "next", "after", view.Next
	if !forward {
		name, dir, find = "prev", "before", view.Previous
	}

	return &cobra.Command{
		Use:   name + " FILE LINE",
		Short: fmt.Sprintf("Print the task in FILE closest %s LINE", dir),
		Long: fmt.Sprintf(`Print the position of the closest task in FILE %s the one-based LINE,
as path:line. The filter applies.`, dir),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := parseLine(args[1])
			if err != nil {
				return err
			}

			a, err := opts.loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, ok := find(a.Repository().All(), a.ResolvePath(args[0]), line-1)
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "No %s TODO found in this file.\n", longName(forward))
				return nil
			}
			printPosition(cmd, rec)
			return nil
		},
	}
}

func longName(forward bool) string {
	if forward {
		return "next"
	}
	return "previous"
}

func printPosition(cmd *cobra.Command, rec task.Record) {
	fmt.Fprintln(cmd.OutOrStdout(), rec.Position())
}

// parseLine parses a one-based line number.
func parseLine(s string) (int, error) {
	line, err := strconv.Atoi(s)
	if err != nil || line < 1 {
		return 0, fmt.Errorf("invalid line %q: must be a positive number", s)
	}
	return line, nil
}
