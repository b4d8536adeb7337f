// Package watcher detects file system changes below a workspace and turns
// bursts of them into single rescan signals.
//
// FSNotifyWatcher reports raw events. Debouncer coalesces every event of a
// burst, whatever its path, into one Batch delivered after a quiet period.
// SerialRunner runs the rescan so that at most one is in flight.
package watcher

import (
	"errors"
	"sort"
	"time"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed = errors.New("watcher is closed")
	ErrPathNotExist  = errors.New("path does not exist")
)

// Op represents the type of file system operation.
type Op uint32

const (
	// OpCreate indicates a file or directory was created.
	OpCreate Op = 1 << iota
	// OpWrite indicates a file was written to.
	OpWrite
	// OpRemove indicates a file or directory was removed.
	OpRemove
	// OpRename indicates a file or directory was renamed.
	OpRename
	// OpChmod indicates file permissions were changed.
	OpChmod
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	case OpChmod:
		return "CHMOD"
	default:
		return "UNKNOWN"
	}
}

// Has returns true if the operation includes the given op.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Event represents a file system change event.
type Event struct {
	// Path is the absolute path of the affected file or directory.
	Path string

	// Op is the operation that occurred.
	Op Op

	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Batch is a coalesced burst of events, one entry per path.
type Batch struct {
	Events []Event
}

// Paths returns the affected paths, sorted.
func (b Batch) Paths() []string {
	paths := make([]string, len(b.Events))
	for i, e := range b.Events {
		paths[i] = e.Path
	}
	sort.Strings(paths)
	return paths
}

// Watcher monitors file system changes.
type Watcher interface {
	// WatchRecursive watches a directory and all subdirectories that are
	// not ignored.
	WatchRecursive(path string) error

	// Events returns the channel of file change events.
	// The channel is closed when the watcher is closed.
	Events() <-chan Event

	// Errors returns the channel of watcher errors.
	// The channel is closed when the watcher is closed.
	Errors() <-chan error

	// Close stops the watcher and releases resources.
	Close() error
}

// IgnoreFunc reports whether a path should be ignored.
type IgnoreFunc func(path string, isDir bool) bool

// Config holds watcher options.
type Config struct {
	// Ignore filters out paths before events are emitted. Ignored
	// directories are not watched.
	Ignore IgnoreFunc
}

// WatcherOption configures a watcher.
type WatcherOption func(*Config)

// WithIgnore sets the ignore filter.
func WithIgnore(fn IgnoreFunc) WatcherOption {
	return func(c *Config) {
		c.Ignore = fn
	}
}
