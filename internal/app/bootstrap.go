package app

import (
	"os"
	"path/filepath"

	"github.com/dshills/taskaroo/internal/config"
	"github.com/dshills/taskaroo/internal/logging"
	"github.com/dshills/taskaroo/internal/marker"
	"github.com/dshills/taskaroo/internal/notify"
	"github.com/dshills/taskaroo/internal/plugin/lua"
	"github.com/dshills/taskaroo/internal/project/vfs"
	"github.com/dshills/taskaroo/internal/scan"
	"github.com/dshills/taskaroo/internal/task"
)

// bootstrapper handles component initialization with proper cleanup on failure.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

// newBootstrapper creates a new bootstrapper for the application.
func newBootstrapper(app *Application, opts Options) *bootstrapper {
	return &bootstrapper{
		app:       app,
		opts:      opts,
		initOrder: make([]string, 0, 8),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	steps := []func() error{
		b.initConfig,
		b.initLogger,
		b.initFS,
		b.initRepository,
		b.initParser,
		b.initHook,
		b.initScanner,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			b.cleanup()
			return err
		}
	}
	return nil
}

func (b *bootstrapper) initConfig() error {
	cfg := b.opts.Config
	if cfg == nil {
		loaded, err := config.Load(b.opts.Workspace, b.opts.ConfigPath)
		if err != nil {
			return &InitError{Component: "config", Err: err}
		}
		cfg = loaded
	} else if err := cfg.Validate(); err != nil {
		return &InitError{Component: "config", Err: err}
	}

	b.app.config = cfg
	b.initOrder = append(b.initOrder, "config")
	return nil
}

func (b *bootstrapper) initLogger() error {
	logger := b.opts.Logger
	if logger == nil {
		out := b.opts.LogOutput
		if out == nil {
			out = os.Stderr
		}
		logger = logging.NewLogger(logging.LoggerConfig{
			Level:  b.app.config.LogLevel(),
			Output: out,
			Prefix: "taskaroo",
			JSON:   b.app.config.Log.JSON,
		})
	}

	b.app.logger = logger
	b.initOrder = append(b.initOrder, "logger")
	logger.Debug("loaded %s", b.app.config)
	return nil
}

func (b *bootstrapper) initFS() error {
	fsys := b.opts.FS
	if fsys == nil {
		fsys = vfs.NewOSFS()
	}

	root := b.opts.Workspace
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return &InitError{Component: "workspace", Err: err}
	}

	b.app.fs = fsys
	b.app.root = root
	b.app.absRoot = abs
	b.initOrder = append(b.initOrder, "fs")
	return nil
}

func (b *bootstrapper) initRepository() error {
	cfg := b.app.config

	b.app.notifier = notify.New()
	b.app.repo = task.NewRepository(
		task.WithNotifier(b.app.notifier),
		task.WithLocale(cfg.Language()),
	)
	b.app.repo.SetGroupBy(cfg.GroupMode())
	b.app.repo.SetFilterText(cfg.Filter)
	b.initOrder = append(b.initOrder, "repository")
	return nil
}

func (b *bootstrapper) initParser() error {
	parser, err := marker.New(b.app.config.MarkerOptions())
	if err != nil {
		return &InitError{Component: "parser", Err: err}
	}
	b.app.parser = parser
	b.initOrder = append(b.initOrder, "parser")
	return nil
}

func (b *bootstrapper) initHook() error {
	script := b.app.config.Hooks.Script
	if script == "" {
		return nil
	}
	if !filepath.IsAbs(script) {
		script = filepath.Join(b.app.root, script)
	}

	hook, err := lua.LoadHook(script, lua.WithLogger(b.app.logger))
	if err != nil {
		return &InitError{Component: "hook", Err: err}
	}
	if !hook.Active() {
		b.app.logger.Warn("hook script %s defines no %s function", script, lua.TaskHookName)
	}

	b.app.hook = hook
	b.initOrder = append(b.initOrder, "hook")
	return nil
}

func (b *bootstrapper) initScanner() error {
	opts := []scan.Option{scan.WithLogger(b.app.logger)}
	if b.app.hook != nil {
		opts = append(opts, scan.WithHook(b.app.hook))
	}

	scanner, err := scan.New(b.app.fs, b.app.parser, b.app.config.ScanConfig(b.app.root), opts...)
	if err != nil {
		return &InitError{Component: "scanner", Err: err}
	}

	b.app.scanner = scanner
	b.app.refresher = scan.NewRefresher(scanner, b.app.repo)
	b.initOrder = append(b.initOrder, "scanner")
	return nil
}

// cleanup releases initialized components in reverse order.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		b.cleanupComponent(b.initOrder[i])
	}
}

// cleanupComponent cleans up a single component.
func (b *bootstrapper) cleanupComponent(component string) {
	switch component {
	case "hook":
		if b.app.hook != nil {
			_ = b.app.hook.Close()
			b.app.hook = nil
		}
	case "repository":
		if b.app.notifier != nil {
			b.app.notifier.Close()
		}
		b.app.repo = nil
	case "scanner":
		b.app.scanner = nil
		b.app.refresher = nil
	}
}
