package vfs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// OSFS implements FS on the operating system's file system.
type OSFS struct{}

// NewOSFS creates an OS file system.
func NewOSFS() *OSFS {
	return &OSFS{}
}

// Ensure OSFS implements FS.
var _ FS = (*OSFS)(nil)

// ReadFile reads the entire file content.
func (f *OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes data to a file, creating it if necessary.
func (f *OSFS) WriteFile(path string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(path, data, perm)
}

// Stat returns file information.
func (f *OSFS) Stat(path string) (FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	return NewFileInfo(path, info.Size(), info.Mode(), info.ModTime()), nil
}

// WalkDir walks the file tree rooted at root. Entries that cannot be
// stat'ed are reported to fn with their error.
func (f *OSFS) WalkDir(root string, fn WalkFunc) error {
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fn(p, FileInfo{}, err)
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return fn(p, FileInfo{}, infoErr)
		}
		return fn(p, NewFileInfo(p, info.Size(), info.Mode(), info.ModTime()), nil)
	})
	if errors.Is(err, SkipAll) {
		return nil
	}
	return err
}
