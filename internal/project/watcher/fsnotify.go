package watcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// eventBuffer is the capacity of the event and error channels.
const eventBuffer = 256

// FSNotifyWatcher implements Watcher using fsnotify. fsnotify watches
// single directories, so every directory below the root that is not
// ignored gets its own watch, including directories created later.
type FSNotifyWatcher struct {
	mu     sync.RWMutex
	fsw    *fsnotify.Watcher
	ignore IgnoreFunc
	dirs   map[string]struct{}
	closed bool

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewFSNotifyWatcher creates a watcher. Nothing is watched until
// WatchRecursive is called.
func NewFSNotifyWatcher(opts ...WatcherOption) (*FSNotifyWatcher, error) {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &FSNotifyWatcher{
		fsw:    fsw,
		ignore: cfg.Ignore,
		dirs:   make(map[string]struct{}),
		events: make(chan Event, eventBuffer),
		errors: make(chan error, eventBuffer),
		done:   make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// WatchRecursive watches root and every directory below it that the
// ignore filter lets through. Directories already watched are skipped.
func (w *FSNotifyWatcher) WatchRecursive(root string) error {
	if w.isClosed() {
		return ErrWatcherClosed
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrPathNotExist
		}
		return err
	}
	if !info.IsDir() {
		return w.add(abs)
	}

	return filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != abs && w.ignored(p, true) {
			return filepath.SkipDir
		}
		if err := w.add(p); err != nil {
			if errors.Is(err, ErrWatcherClosed) {
				return err
			}
			w.sendError(err)
		}
		return nil
	})
}

// add watches one directory.
func (w *FSNotifyWatcher) add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if _, ok := w.dirs[dir]; ok {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = struct{}{}
	return nil
}

// forget drops path and everything below it from the watched set.
// fsnotify removes the kernel watches itself; a directory created again
// at the same path must be watchable afresh.
func (w *FSNotifyWatcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	prefix := path + string(filepath.Separator)
	for dir := range w.dirs {
		if dir == path || strings.HasPrefix(dir, prefix) {
			delete(w.dirs, dir)
		}
	}
}

// Events returns the event channel.
func (w *FSNotifyWatcher) Events() <-chan Event {
	return w.events
}

// Errors returns the error channel.
func (w *FSNotifyWatcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher and closes both channels. It is safe to call
// more than once.
func (w *FSNotifyWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.done)
	w.mu.Unlock()

	w.wg.Wait()
	close(w.events)
	close(w.errors)
	return w.fsw.Close()
}

// WatchedPaths returns the watched directories, sorted.
func (w *FSNotifyWatcher) WatchedPaths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	paths := make([]string, 0, len(w.dirs))
	for p := range w.dirs {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

func (w *FSNotifyWatcher) isClosed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.closed
}

func (w *FSNotifyWatcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

func (w *FSNotifyWatcher) handle(ev fsnotify.Event) {
	op := convertOp(ev.Op)
	// Permission changes never change file content.
	if op == 0 || op == OpChmod {
		return
	}

	if op.Has(OpRemove) || op.Has(OpRename) {
		w.forget(ev.Name)
	}

	isDir := false
	if op.Has(OpCreate) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			isDir = true
		}
	}
	if w.ignored(ev.Name, isDir) {
		return
	}

	w.sendEvent(Event{Path: ev.Name, Op: op, Timestamp: time.Now()})

	if isDir {
		if err := w.WatchRecursive(ev.Name); err != nil && !errors.Is(err, ErrWatcherClosed) {
			w.sendError(err)
		}
	}
}

func convertOp(in fsnotify.Op) Op {
	var op Op
	for _, m := range []struct {
		from fsnotify.Op
		to   Op
	}{
		{fsnotify.Create, OpCreate},
		{fsnotify.Write, OpWrite},
		{fsnotify.Remove, OpRemove},
		{fsnotify.Rename, OpRename},
		{fsnotify.Chmod, OpChmod},
	} {
		if in.Has(m.from) {
			op |= m.to
		}
	}
	return op
}

func (w *FSNotifyWatcher) ignored(path string, isDir bool) bool {
	return w.ignore != nil && w.ignore(path, isDir)
}

// sendEvent drops the event when the buffer is full. Any buffered event
// already leads to a full rescan, so nothing is lost.
func (w *FSNotifyWatcher) sendEvent(ev Event) {
	select {
	case w.events <- ev:
	default:
	}
}

func (w *FSNotifyWatcher) sendError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

var _ Watcher = (*FSNotifyWatcher)(nil)
