// Package app wires configuration, scanning, hooks and the task
// repository together and owns their lifecycle. The CLI and the terminal
// browser both drive an Application.
package app

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/dshills/taskaroo/internal/config"
	"github.com/dshills/taskaroo/internal/logging"
	"github.com/dshills/taskaroo/internal/marker"
	"github.com/dshills/taskaroo/internal/notify"
	"github.com/dshills/taskaroo/internal/plugin/lua"
	"github.com/dshills/taskaroo/internal/project/vfs"
	"github.com/dshills/taskaroo/internal/project/watcher"
	"github.com/dshills/taskaroo/internal/scan"
	"github.com/dshills/taskaroo/internal/task"
)

// Application is the composition root of taskaroo.
type Application struct {
	mu sync.RWMutex

	config *config.Config
	logger *logging.Logger

	fs      vfs.FS
	root    string
	absRoot string

	notifier  *notify.Notifier
	repo      *task.Repository
	parser    *marker.Parser
	hook      *lua.Hook
	scanner   *scan.Scanner
	refresher *scan.Refresher

	closed atomic.Bool
	opts   Options
}

// Options configures the application.
type Options struct {
	// Workspace is the directory to scan. Defaults to ".".
	Workspace string

	// ConfigPath names an explicit config file.
	ConfigPath string

	// Config, if set, is used instead of loading one. It is validated.
	Config *config.Config

	// FS is the file system to scan. Defaults to the OS file system.
	FS vfs.FS

	// Logger overrides the logger built from the configuration.
	Logger *logging.Logger

	// LogOutput receives log output when Logger is nil. Defaults to stderr.
	LogOutput io.Writer
}

// New creates a new Application with the given options.
func New(opts Options) (*Application, error) {
	app := &Application{opts: opts}
	if err := newBootstrapper(app, opts).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// Config returns the effective configuration.
func (app *Application) Config() *config.Config {
	return app.config
}

// Logger returns the application logger.
func (app *Application) Logger() *logging.Logger {
	return app.logger
}

// Repository returns the task repository.
func (app *Application) Repository() *task.Repository {
	return app.repo
}

// Notifier returns the change notifier shared with the repository.
func (app *Application) Notifier() *notify.Notifier {
	return app.notifier
}

// Scanner returns the scanner.
func (app *Application) Scanner() *scan.Scanner {
	return app.scanner
}

// Root returns the workspace directory as given.
func (app *Application) Root() string {
	return app.root
}

// Refresh rescans the workspace and loads the result unless a newer
// refresh overtook it.
func (app *Application) Refresh(ctx context.Context) (*scan.Result, error) {
	if app.closed.Load() {
		return nil, ErrClosed
	}
	res, err := app.refresher.Refresh(ctx)
	if err != nil {
		return nil, NewOperationError("refresh", app.root, err)
	}
	return res, nil
}

// ResolvePath maps a path given relative to the working directory onto
// the form used by scanned records.
func (app *Application) ResolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	rel, err := filepath.Rel(app.absRoot, abs)
	if err != nil {
		return abs
	}
	return filepath.Join(app.root, rel)
}

// FileTasks scans a single file and returns its records in line order.
func (app *Application) FileTasks(path string) ([]task.Record, error) {
	if app.closed.Load() {
		return nil, ErrClosed
	}
	records, err := app.scanner.ScanFile(app.ResolvePath(path))
	if err != nil {
		return records, NewOperationError("scan", path, err)
	}
	return records, nil
}

// Watch rescans whenever files below the workspace change, until ctx is
// done. Bursts are debounced and at most one scan runs at a time; onRefresh
// is called after every scan.
func (app *Application) Watch(ctx context.Context, onRefresh func(*scan.Result, error)) error {
	if app.closed.Load() {
		return ErrClosed
	}
	log := app.logger.WithComponent("watch")

	w, err := watcher.NewFSNotifyWatcher(watcher.WithIgnore(app.ignored))
	if err != nil {
		return NewOperationError("watch", app.root, err)
	}
	if err := w.WatchRecursive(app.absRoot); err != nil {
		_ = w.Close()
		return NewOperationError("watch", app.root, err)
	}

	deb := watcher.NewDebouncer(w, app.config.Watch.Debounce.Std())
	defer deb.Close()

	runner := watcher.NewSerialRunner(func(ctx context.Context) {
		res, err := app.Refresh(ctx)
		if err != nil && ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Error("rescan failed: %v", err)
		}
		if onRefresh != nil {
			onRefresh(res, err)
		}
	})
	defer runner.Wait()

	log.Info("watching %s", app.absRoot)
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-deb.Batches():
			if !ok {
				return nil
			}
			log.Debug("%d paths changed: %v", len(batch.Events), batch.Paths())
			app.forgetChanged(batch.Paths())
			runner.Trigger(ctx)
		case err, ok := <-deb.Errors():
			if !ok {
				return nil
			}
			log.Warn("watcher: %v", err)
		}
	}
}

// forgetChanged drops cached parses for paths reported by the watcher.
// Watcher paths are absolute; cache keys use the workspace path form.
func (app *Application) forgetChanged(paths []string) {
	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = app.ResolvePath(p)
	}
	app.scanner.Forget(keys...)
}

// ignored filters watcher events through the exclude globs.
func (app *Application) ignored(path string, isDir bool) bool {
	rel, err := scan.Relative(app.absRoot, path)
	if err != nil || rel == "." {
		return false
	}
	enum := app.scanner.Enumerator()
	if isDir {
		return enum.Pruned(rel)
	}
	return enum.Excluded(rel)
}

// Close releases the hook and the notifier. It is safe to call twice.
func (app *Application) Close() error {
	if !app.closed.CompareAndSwap(false, true) {
		return nil
	}

	app.mu.Lock()
	defer app.mu.Unlock()

	var err error
	if app.hook != nil {
		err = app.hook.Close()
	}
	app.notifier.Close()
	return err
}
