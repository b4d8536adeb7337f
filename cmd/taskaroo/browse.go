package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/taskaroo/internal/task"
	"github.com/dshills/taskaroo/internal/ui"
)

var errNotTerminal = errors.New("browse needs an interactive terminal")

func newBrowseCmd(opts *rootOptions) *cobra.Command {
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse tasks interactively",
		Long: `Browse tasks in a full-screen terminal view.

Keys:
  j/k, arrows   move
  enter, space  expand or collapse a group, open a task in $EDITOR
  /             edit the filter (enter keeps it, esc restores it)
  g             toggle grouping by file or tag
  x             toggle done (kept for this session only)
  n/p           next or previous task in the same file
  r             rescan
  q             quit

Without $VISUAL or $EDITOR, opening a task prints its position and exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
				return errNotTerminal
			}

			a, err := opts.loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if a.Config().Watch.Enabled && !noWatch {
				go func() {
					if err := a.Watch(ctx, nil); err != nil {
						a.Logger().Warn("watch: %v", err)
					}
				}()
			}

			// Logs would corrupt the screen.
			a.Logger().Disable()
			defer a.Logger().Enable()

			browser := ui.NewBrowser(a, ui.WithLogger(a.Logger()), ui.WithTitle("taskaroo "+a.Root()))
			editor := editorCommand()
			for {
				screen, err := tcell.NewScreen()
				if err != nil {
					return fmt.Errorf("opening terminal: %w", err)
				}
				rec, err := browser.Run(ctx, screen)
				if err != nil || rec == nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				if len(editor) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), rec.Position())
					return nil
				}
				if err := openEditor(ctx, editor, *rec); err != nil {
					return err
				}
			}
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not rescan on file changes")
	return cmd
}

// editorCommand returns $VISUAL or $EDITOR split into words.
func editorCommand() []string {
	for _, name := range []string{"VISUAL", "EDITOR"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return strings.Fields(v)
		}
	}
	return nil
}

// editorArgs returns the command line opening rec at its line.
func editorArgs(editor []string, rec task.Record) []string {
	args := append([]string(nil), editor...)
	line := strconv.Itoa(rec.Location.Line + 1)
	switch filepath.Base(editor[0]) {
	case "code", "code-insiders", "cursor":
		args = append(args, "--goto", rec.Location.Path+":"+line)
	default:
		args = append(args, "+"+line, rec.Location.Path)
	}
	return args
}

func openEditor(ctx context.Context, editor []string, rec task.Record) error {
	args := editorArgs(editor, rec)
	c := exec.CommandContext(ctx, args[0], args[1:]...)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("running %s: %w", args[0], err)
	}
	return nil
}
