package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"
)

// ellipsis marks truncated text.
const ellipsis = "…"

// Width returns the display width of s in terminal cells.
func Width(s string) int {
	return uniseg.StringWidth(s)
}

// Truncate shortens s to at most width cells, ending in an ellipsis when
// anything was cut. Grapheme clusters are never split.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if uniseg.StringWidth(s) <= width {
		return s
	}

	limit := width - uniseg.StringWidth(ellipsis)
	var b strings.Builder
	used := 0
	state := -1
	rest := s
	for len(rest) > 0 {
		var cluster string
		var w int
		cluster, rest, w, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if used+w > limit {
			break
		}
		b.WriteString(cluster)
		used += w
	}
	b.WriteString(ellipsis)
	return b.String()
}

// PadRight pads s with spaces to width cells.
func PadRight(s string, width int) string {
	if w := uniseg.StringWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// drawText writes s at (x, y) clipped to width cells and returns the
// number of cells used.
func drawText(screen tcell.Screen, x, y, width int, s string, style tcell.Style) int {
	used := 0
	g := uniseg.NewGraphemes(Truncate(s, width))
	for g.Next() {
		runes := g.Runes()
		w := g.Width()
		if w == 0 {
			continue
		}
		screen.SetContent(x+used, y, runes[0], runes[1:], style)
		used += w
	}
	return used
}

// fillRow paints cells [x, x+width) of row y with spaces.
func fillRow(screen tcell.Screen, x, y, width int, style tcell.Style) {
	for i := 0; i < width; i++ {
		screen.SetContent(x+i, y, ' ', nil, style)
	}
}
