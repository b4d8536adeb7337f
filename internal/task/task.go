// Package task defines task records extracted from marker comments and the
// repository that filters, sorts and counts them.
package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidGroupBy is returned by ParseGroupBy for unknown modes.
var ErrInvalidGroupBy = errors.New("invalid group-by mode")

// DateLayout is the layout of due date annotations.
const DateLayout = "2006-01-02"

// Severity is the urgency of a task, derived from its marker character.
type Severity int

const (
	// SeverityLow is marked with a trailing '?'.
	SeverityLow Severity = iota
	// SeverityMedium is the default when no marker is present.
	SeverityMedium
	// SeverityHigh is marked with a trailing '!'.
	SeverityHigh
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Marker returns the source marker character, or "" for medium.
func (s Severity) Marker() string {
	switch s {
	case SeverityLow:
		return "?"
	case SeverityHigh:
		return "!"
	default:
		return ""
	}
}

// ParseSeverity parses a severity name. Unknown names report false.
func ParseSeverity(name string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "low":
		return SeverityLow, true
	case "medium":
		return SeverityMedium, true
	case "high":
		return SeverityHigh, true
	default:
		return SeverityMedium, false
	}
}

// Location identifies a zero-based line within a file.
type Location struct {
	Path string
	Line int
}

// String returns the one-based "path:line" form.
func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.Path, l.Line+1)
}

// Record is one marker found on one line of one file.
type Record struct {
	// Tag is the canonical upper-case tag.
	Tag string

	// Location is where the marker was found.
	Location Location

	// Text is the trimmed comment content after the marker.
	Text string

	// Severity is derived from an optional '!' or '?' marker.
	Severity Severity

	// SeverityMarked reports whether a marker character was present.
	SeverityMarked bool

	// DueText is the raw date annotation, empty if none matched.
	DueText string

	// DueDate is set only if DueText is a real calendar date.
	DueDate *time.Time

	// Done is never derived from source text; hosts toggle it in memory.
	Done bool
}

// Label returns "TAG (Due: date) [marker]: text", omitting absent parts.
func (r Record) Label() string {
	var b strings.Builder
	b.WriteString(r.Tag)
	if r.DueText != "" {
		b.WriteString(" (Due: ")
		b.WriteString(r.DueText)
		b.WriteString(")")
	}
	if r.SeverityMarked {
		if m := r.Severity.Marker(); m != "" {
			b.WriteString(" [")
			b.WriteString(m)
			b.WriteString("]")
		}
	}
	if r.Text != "" {
		b.WriteString(": ")
		b.WriteString(r.Text)
	}
	return b.String()
}

// Position returns the one-based "path:line" of the record.
func (r Record) Position() string {
	return r.Location.String()
}

// Overdue reports whether the due date is before the calendar day of now.
func (r Record) Overdue(now time.Time) bool {
	if r.DueDate == nil {
		return false
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return r.DueDate.Before(today)
}

// GroupBy selects how the view is projected into a hierarchy.
type GroupBy string

const (
	// GroupByFile groups records under their source file.
	GroupByFile GroupBy = "file"
	// GroupByTag groups records under their tag.
	GroupByTag GroupBy = "tag"
)

// ParseGroupBy accepts "file", "by-file", "tag" and "by-tag" in any case.
func ParseGroupBy(s string) (GroupBy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "file", "by-file":
		return GroupByFile, nil
	case "tag", "by-tag":
		return GroupByTag, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidGroupBy, s)
	}
}

// Toggle returns the other grouping mode.
func (g GroupBy) Toggle() GroupBy {
	if g == GroupByTag {
		return GroupByFile
	}
	return GroupByTag
}
