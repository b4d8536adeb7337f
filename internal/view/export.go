package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/taskaroo/internal/task"
)

// ExportLines renders records as "label (path:line)" with one-based lines.
func ExportLines(records []task.Record) []string {
	lines := make([]string, len(records))
	for i, r := range records {
		lines[i] = fmt.Sprintf("%s (%s)", r.Label(), r.Position())
	}
	return lines
}

// WriteExport writes the export lines joined by newlines, without a
// trailing newline, and returns the number of records written.
func WriteExport(w io.Writer, records []task.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if _, err := io.WriteString(w, strings.Join(ExportLines(records), "\n")); err != nil {
		return 0, fmt.Errorf("writing export: %w", err)
	}
	return len(records), nil
}

// StatusText returns "1 task" or "N tasks".
func StatusText(n int) string {
	if n == 1 {
		return "1 task"
	}
	return fmt.Sprintf("%d tasks", n)
}
