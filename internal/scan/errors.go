package scan

import (
	"errors"
	"fmt"
)

// Standard errors returned by the scan package.
var (
	// ErrFileTooLarge indicates the file exceeds the maximum size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrBinaryFile indicates the file appears to be binary.
	ErrBinaryFile = errors.New("binary file")

	// ErrNotRegular indicates the path is not a regular file.
	ErrNotRegular = errors.New("not a regular file")

	// ErrHook indicates the task hook failed for a record.
	ErrHook = errors.New("task hook failed")
)

// FileError records a failure to scan one file. The scan continues.
type FileError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *FileError) Unwrap() error {
	return e.Err
}
