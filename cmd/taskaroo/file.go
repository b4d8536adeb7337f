package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/taskaroo/internal/app"
)

func newFileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "file PATH",
		Short: "List the tasks of a single file",
		Long: `Scan one file and list its tasks by line, whether or not the
include and exclude globs select it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.FileTasks(args[0])
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks in this file.")
				return nil
			}
			for _, rec := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%5d  %s\n", rec.Location.Line+1, rec.Label())
			}
			return nil
		},
	}
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add PATH LINE TAG [TEXT...]",
		Short: "Insert a marker comment above a line",
		Long: `Insert "TAG: TEXT" as a comment above the one-based LINE of PATH.
The comment syntax follows the file extension and the new line copies
the indentation of the line below it. LINE may be one past the end.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := parseLine(args[1])
			if err != nil {
				return err
			}

			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, found, err := a.AddMarker(args[0], line, args[2], strings.Join(args[3:], " "))
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s comment at %s:%d (not matched by the configured comment tokens: %s)\n",
					strings.ToUpper(args[2]), args[0], line, app.CommentSyntax(args[0]).Open)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\t%s\n", rec.Position(), rec.Label())
			return nil
		},
	}
}
