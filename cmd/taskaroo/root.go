package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/taskaroo/internal/app"
	"github.com/dshills/taskaroo/internal/config"
	"github.com/dshills/taskaroo/internal/logging"
)

// rootOptions are the global flags shared by every command.
type rootOptions struct {
	configPath string
	workspace  string
	logLevel   string
	tags       []string
	include    []string
	exclude    []string
	filter     string
	groupBy    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	listCmd := newListCmd(opts)
	root := &cobra.Command{
		Use:   "taskaroo",
		Short: "Find and browse TODO comments in a project",
		Long: `taskaroo scans a project's source files for marker comments such as
TODO, FIXME, HACK and URGENT and lists them grouped by file or tag.

A marker is a comment token followed by a tag, an optional due date,
an optional severity marker and the task text:

  // TODO(2025-01-01)!: fix the race

'!' marks high severity and '?' low severity.

Examples:
  taskaroo                        # List tasks in the current directory
  taskaroo -g tag -f race         # Group by tag, filter on "race"
  taskaroo next main.go 12        # Next task in main.go after line 12
  taskaroo browse                 # Interactive browser`,
		RunE:          listCmd.RunE,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Flags().AddFlagSet(listCmd.Flags())

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file path")
	pf.StringVarP(&opts.workspace, "workspace", "w", ".", "workspace directory to scan")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringSliceVar(&opts.tags, "tags", nil, "tags to recognize (default TODO,FIXME,HACK,URGENT)")
	pf.StringSliceVar(&opts.include, "include", nil, "include globs, relative to the workspace")
	pf.StringSliceVar(&opts.exclude, "exclude", nil, "exclude globs, relative to the workspace")
	pf.StringVarP(&opts.filter, "filter", "f", "", "only show tasks whose label or path contains text")
	pf.StringVarP(&opts.groupBy, "group-by", "g", "", "group by file or tag")

	root.AddCommand(
		listCmd,
		newExportCmd(opts),
		newNextCmd(opts, true),
		newNextCmd(opts, false),
		newFileCmd(opts),
		newAddCmd(opts),
		newStatsCmd(opts),
		newWatchCmd(opts),
		newBrowseCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the configuration and applies flags set on cmd.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loader := &config.Loader{Workspace: o.workspace, Path: o.configPath}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("tags") {
		cfg.Tags = o.tags
	}
	if flags.Changed("include") {
		cfg.Include = o.include
	}
	if flags.Changed("exclude") {
		cfg.Exclude = o.exclude
	}
	if flags.Changed("filter") {
		cfg.Filter = o.filter
	}
	if flags.Changed("group-by") {
		cfg.GroupBy = o.groupBy
	}
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp builds the application for cmd. Logs go to the command's stderr.
func (o *rootOptions) newApp(cmd *cobra.Command) (*app.Application, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger(logging.LoggerConfig{
		Level:  cfg.LogLevel(),
		Output: cmd.ErrOrStderr(),
		Prefix: "taskaroo",
		JSON:   cfg.Log.JSON,
	})
	a, err := app.New(app.Options{
		Workspace: o.workspace,
		Config:    cfg,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// loadApp builds the application and runs the first scan.
func (o *rootOptions) loadApp(cmd *cobra.Command) (*app.Application, error) {
	a, err := o.newApp(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := a.Refresh(cmd.Context()); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("scanning %s: %w", o.workspace, err)
	}
	return a, nil
}
