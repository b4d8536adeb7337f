package ui

import (
	"github.com/gdamore/tcell/v2"

	"github.com/dshills/taskaroo/internal/task"
)

// Theme holds the styles used by the browser.
type Theme struct {
	Default  tcell.Style
	Header   tcell.Style
	Status   tcell.Style
	Group    tcell.Style
	Selected tcell.Style
	Position tcell.Style
	Done     tcell.Style
	Overdue  tcell.Style
	High     tcell.Style
	Low      tcell.Style
}

// DefaultTheme returns the default styles.
func DefaultTheme() Theme {
	base := tcell.StyleDefault
	return Theme{
		Default:  base,
		Header:   base.Bold(true).Reverse(true),
		Status:   base.Reverse(true),
		Group:    base.Bold(true).Foreground(tcell.ColorTeal),
		Selected: base.Reverse(true),
		Position: base.Dim(true),
		Done:     base.Dim(true).StrikeThrough(true),
		Overdue:  base.Foreground(tcell.ColorRed).Bold(true),
		High:     base.Foreground(tcell.ColorRed),
		Low:      base.Foreground(tcell.ColorGray),
	}
}

// taskStyle returns the style of a task row.
func (t Theme) taskStyle(rec task.Record, overdue bool) tcell.Style {
	switch {
	case rec.Done:
		return t.Done
	case overdue:
		return t.Overdue
	case rec.Severity == task.SeverityHigh:
		return t.High
	case rec.Severity == task.SeverityLow:
		return t.Low
	default:
		return t.Default
	}
}
