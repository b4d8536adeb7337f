// Package vfs provides the file system abstraction used by the scanner.
//
// The FS interface allows swapping the operating system for an in-memory
// file system in tests.
package vfs

import (
	"io/fs"
	"time"
)

// FS is the subset of file system operations the project needs.
type FS interface {
	// ReadFile reads the entire file content.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating it if necessary.
	WriteFile(path string, data []byte, perm fs.FileMode) error

	// Stat returns file information.
	Stat(path string) (FileInfo, error)

	// WalkDir walks the tree rooted at root in lexical order.
	// Returning SkipDir from fn for a directory skips its contents;
	// returning SkipAll stops the walk without error.
	WalkDir(root string, fn WalkFunc) error
}

// FileInfo describes a file or directory.
type FileInfo struct {
	path    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
}

// NewFileInfo creates a FileInfo.
func NewFileInfo(path string, size int64, mode fs.FileMode, modTime time.Time) FileInfo {
	return FileInfo{path: path, size: size, mode: mode, modTime: modTime}
}

// Path returns the full path.
func (fi FileInfo) Path() string { return fi.path }

// Size returns the file size in bytes.
func (fi FileInfo) Size() int64 { return fi.size }

// Mode returns the file mode.
func (fi FileInfo) Mode() fs.FileMode { return fi.mode }

// ModTime returns the modification time.
func (fi FileInfo) ModTime() time.Time { return fi.modTime }

// IsDir returns true if this is a directory.
func (fi FileInfo) IsDir() bool { return fi.mode.IsDir() }

// IsRegular returns true if this is a regular file.
func (fi FileInfo) IsRegular() bool { return fi.mode.IsRegular() }

// WalkFunc is called for every path visited by WalkDir.
type WalkFunc func(path string, info FileInfo, err error) error

// SkipDir skips the directory being visited.
var SkipDir = fs.SkipDir

// SkipAll stops the walk.
var SkipAll = fs.SkipAll
