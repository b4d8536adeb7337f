package scan

import (
	"errors"
	"fmt"

	"github.com/dshills/taskaroo/internal/project/vfs"
)

// DefaultMaxFileSize is the largest file the reader accepts.
const DefaultMaxFileSize = 2 << 20

// Reader reads text files as decoded lines.
type Reader struct {
	fs      vfs.FS
	maxSize int64
}

// NewReader creates a reader. A maxSize of zero means DefaultMaxFileSize.
func NewReader(fsys vfs.FS, maxSize int64) *Reader {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Reader{fs: fsys, maxSize: maxSize}
}

// MaxFileSize returns the size limit in bytes.
func (r *Reader) MaxFileSize() int64 {
	return r.maxSize
}

// Stat returns file info for a readable regular file within the size limit.
func (r *Reader) Stat(path string) (vfs.FileInfo, error) {
	info, err := r.fs.Stat(path)
	if err != nil {
		return vfs.FileInfo{}, err
	}
	if !info.IsRegular() {
		return vfs.FileInfo{}, ErrNotRegular
	}
	if info.Size() > r.maxSize {
		return vfs.FileInfo{}, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size())
	}
	return info, nil
}

// ReadLines reads and decodes a file and splits it into lines.
func (r *Reader) ReadLines(path string) ([]string, error) {
	if _, err := r.Stat(path); err != nil {
		return nil, err
	}
	content, err := r.fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if int64(len(content)) > r.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(content))
	}

	lines, err := vfs.DecodeLines(content)
	if errors.Is(err, vfs.ErrBinaryContent) {
		return nil, ErrBinaryFile
	}
	return lines, err
}
