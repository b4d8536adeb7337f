// Package ui implements the interactive terminal task browser.
package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/taskaroo/internal/logging"
	"github.com/dshills/taskaroo/internal/notify"
	"github.com/dshills/taskaroo/internal/scan"
	"github.com/dshills/taskaroo/internal/task"
	"github.com/dshills/taskaroo/internal/view"
)

// Source supplies the browser with tasks.
type Source interface {
	Repository() *task.Repository
	Notifier() *notify.Notifier
	Refresh(ctx context.Context) (*scan.Result, error)
}

// Messages shown on the status line.
const (
	msgNoNext     = "No next TODO found in this file."
	msgNoPrevious = "No previous TODO found in this file."
	msgRescanning = "Rescanning..."
)

// Interrupt payloads posted to the event loop.
type (
	refreshDone struct {
		res *scan.Result
		err error
	}
	repoChanged struct{}
	stopLoop    struct{}
)

// Browser is a two-level task tree drawn with tcell. Its selection,
// collapsed groups and message survive across Run calls.
type Browser struct {
	src    Source
	repo   *task.Repository
	theme  Theme
	logger *logging.Logger
	now    func() time.Time

	title     string
	rows      []view.Row
	collapsed map[string]bool
	cursor    int
	offset    int
	selected  string

	filtering   bool
	filterBuf   []rune
	filterSaved string

	message string
}

// Option configures a Browser.
type Option func(*Browser)

// WithTheme sets the styles.
func WithTheme(t Theme) Option {
	return func(b *Browser) { b.theme = t }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(b *Browser) { b.logger = l }
}

// WithClock sets the time source used for overdue highlighting.
func WithClock(now func() time.Time) Option {
	return func(b *Browser) { b.now = now }
}

// WithTitle sets the header text.
func WithTitle(title string) Option {
	return func(b *Browser) { b.title = title }
}

// NewBrowser creates a browser over src.
func NewBrowser(src Source, opts ...Option) *Browser {
	b := &Browser{
		src:       src,
		repo:      src.Repository(),
		theme:     DefaultTheme(),
		logger:    logging.Discard(),
		now:       time.Now,
		title:     "taskaroo",
		collapsed: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.WithComponent("ui")
	b.rebuild()
	return b
}

// Run takes over screen until the user quits, opens a task or ctx is done.
// It returns the task to open, or nil on quit. The screen is finalized
// before Run returns.
func (b *Browser) Run(ctx context.Context, screen tcell.Screen) (*task.Record, error) {
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("initializing screen: %w", err)
	}
	defer screen.Fini()
	screen.HideCursor()

	sub := b.src.Notifier().Subscribe(func(notify.Change) {
		_ = screen.PostEvent(tcell.NewEventInterrupt(repoChanged{}))
	})
	defer sub.Unsubscribe()

	stop := context.AfterFunc(ctx, func() {
		_ = screen.PostEvent(tcell.NewEventInterrupt(stopLoop{}))
	})
	defer stop()

	b.rebuild()
	for {
		b.draw(screen)

		ev := screen.PollEvent()
		if ev == nil {
			return nil, nil
		}
		switch ev := ev.(type) {
		case *tcell.EventResize:
			screen.Sync()
		case *tcell.EventInterrupt:
			switch d := ev.Data().(type) {
			case stopLoop:
				return nil, ctx.Err()
			case repoChanged:
				b.rebuild()
			case refreshDone:
				b.finishRefresh(d)
			}
		case *tcell.EventKey:
			rec, quit := b.handleKey(ctx, screen, ev)
			if rec != nil || quit {
				return rec, nil
			}
		}
	}
}

// handleKey applies one key press. It returns a record to open or quit.
func (b *Browser) handleKey(ctx context.Context, screen tcell.Screen, ev *tcell.EventKey) (*task.Record, bool) {
	if b.filtering {
		b.handleFilterKey(ev)
		return nil, false
	}
	b.message = ""

	switch ev.Key() {
	case tcell.KeyCtrlC, tcell.KeyEscape:
		return nil, true
	case tcell.KeyUp:
		b.move(-1)
	case tcell.KeyDown:
		b.move(1)
	case tcell.KeyHome:
		b.moveTo(0)
	case tcell.KeyEnd:
		b.moveTo(len(b.rows) - 1)
	case tcell.KeyPgUp:
		b.move(-b.pageSize(screen))
	case tcell.KeyPgDn:
		b.move(b.pageSize(screen))
	case tcell.KeyEnter:
		return b.activate(), false
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return nil, true
		case 'j':
			b.move(1)
		case 'k':
			b.move(-1)
		case ' ':
			return b.activate(), false
		case '/':
			b.filtering = true
			b.filterSaved = b.repo.FilterText()
			b.filterBuf = []rune(b.filterSaved)
		case 'g':
			b.repo.SetGroupBy(b.repo.GroupBy().Toggle())
			b.rebuild()
		case 'x':
			b.toggleDone()
		case 'n':
			b.jump(true)
		case 'p':
			b.jump(false)
		case 'r':
			b.message = msgRescanning
			go func() {
				res, err := b.src.Refresh(ctx)
				_ = screen.PostEvent(tcell.NewEventInterrupt(refreshDone{res: res, err: err}))
			}()
		}
	}
	return nil, false
}

// handleFilterKey edits the filter. The repository is filtered as the
// text changes; Escape restores the previous filter.
func (b *Browser) handleFilterKey(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEnter:
		b.filtering = false
		return
	case tcell.KeyEscape, tcell.KeyCtrlC:
		b.filtering = false
		b.filterBuf = []rune(b.filterSaved)
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(b.filterBuf) > 0 {
			b.filterBuf = b.filterBuf[:len(b.filterBuf)-1]
		}
	case tcell.KeyCtrlU:
		b.filterBuf = nil
	case tcell.KeyRune:
		b.filterBuf = append(b.filterBuf, ev.Rune())
	default:
		return
	}
	b.repo.SetFilterText(string(b.filterBuf))
	b.rebuild()
}

func (b *Browser) finishRefresh(d refreshDone) {
	switch {
	case d.err != nil:
		b.message = "Rescan failed: " + d.err.Error()
		b.logger.Warn("rescan failed: %v", d.err)
	case d.res.Superseded:
		// A newer scan owns the view.
	case len(d.res.Failures) > 0:
		b.message = fmt.Sprintf("Rescanned %d files, %d skipped", d.res.Files, len(d.res.Failures))
	default:
		b.message = fmt.Sprintf("Rescanned %d files", d.res.Files)
	}
	b.rebuild()
}

// rebuild recomputes the rows from the repository and keeps the selection
// on the same node when it is still visible.
func (b *Browser) rebuild() {
	nodes := view.Build(b.repo.All(), b.repo.GroupBy())
	b.rows = view.Flatten(nodes, func(key string) bool { return !b.collapsed[key] })

	if b.selected != "" {
		for i, row := range b.rows {
			if row.Node.Key == b.selected {
				b.cursor = i
				return
			}
		}
	}
	b.moveTo(b.cursor)
}

func (b *Browser) move(delta int) {
	b.moveTo(b.cursor + delta)
}

func (b *Browser) moveTo(i int) {
	if i >= len(b.rows) {
		i = len(b.rows) - 1
	}
	if i < 0 {
		i = 0
	}
	b.cursor = i
	if len(b.rows) == 0 {
		b.selected = ""
		return
	}
	b.selected = b.rows[i].Node.Key
}

func (b *Browser) current() (view.Row, bool) {
	if b.cursor < 0 || b.cursor >= len(b.rows) {
		return view.Row{}, false
	}
	return b.rows[b.cursor], true
}

// activate toggles a group or returns the task under the cursor.
func (b *Browser) activate() *task.Record {
	row, ok := b.current()
	if !ok {
		return nil
	}
	if row.Node.IsGroup() {
		b.collapsed[row.Node.Key] = row.Expanded
		b.rebuild()
		return nil
	}
	rec := *row.Node.Record
	return &rec
}

func (b *Browser) toggleDone() {
	row, ok := b.current()
	if !ok || row.Node.IsGroup() {
		return
	}
	rec := row.Node.Record
	b.repo.SetDone(rec.Location, !rec.Done)
	b.rebuild()
}

// jump selects the next or previous task in the file of the selected task.
func (b *Browser) jump(forward bool) {
	row, ok := b.current()
	if !ok || row.Node.IsGroup() {
		return
	}
	loc := row.Node.Record.Location

	var (
		rec   task.Record
		found bool
	)
	if forward {
		rec, found = view.Next(b.repo.All(), loc.Path, loc.Line)
	} else {
		rec, found = view.Previous(b.repo.All(), loc.Path, loc.Line)
	}
	if !found {
		b.message = msgNoPrevious
		if forward {
			b.message = msgNoNext
		}
		return
	}
	b.reveal(rec)
}

// reveal expands the group holding rec and selects it.
func (b *Browser) reveal(rec task.Record) {
	group := rec.Location.Path
	if b.repo.GroupBy() == task.GroupByTag {
		group = rec.Tag
	}
	delete(b.collapsed, group)
	b.selected = rec.Position()
	b.rebuild()
}

func (b *Browser) pageSize(screen tcell.Screen) int {
	_, h := screen.Size()
	if h <= 3 {
		return 1
	}
	return h - 3
}

// draw renders the header, the visible rows and the status line.
func (b *Browser) draw(screen tcell.Screen) {
	screen.Clear()
	w, h := screen.Size()
	if w <= 0 || h <= 0 {
		return
	}

	header := fmt.Sprintf(" %s  group: %s", b.title, b.repo.GroupBy())
	if f := b.repo.FilterText(); f != "" {
		header += "  filter: " + f
	}
	fillRow(screen, 0, 0, w, b.theme.Header)
	drawText(screen, 0, 0, w, header, b.theme.Header)

	listHeight := h - 2
	b.scrollTo(listHeight)
	if len(b.rows) == 0 && listHeight > 0 {
		drawText(screen, 1, 1, w-1, "No tasks.", b.theme.Position)
	}
	for i := 0; i < listHeight && b.offset+i < len(b.rows); i++ {
		idx := b.offset + i
		b.drawRow(screen, 1+i, w, b.rows[idx], idx == b.cursor)
	}

	if h < 2 {
		screen.Show()
		return
	}
	status := " " + view.StatusText(b.repo.Count())
	if b.repo.Count() != b.repo.Total() {
		status += fmt.Sprintf(" (of %d)", b.repo.Total())
	}
	if b.message != "" {
		status += "  " + b.message
	}
	fillRow(screen, 0, h-1, w, b.theme.Status)
	if b.filtering {
		prompt := "/" + string(b.filterBuf)
		n := drawText(screen, 0, h-1, w, prompt, b.theme.Status)
		screen.ShowCursor(n, h-1)
	} else {
		drawText(screen, 0, h-1, w, status, b.theme.Status)
		screen.HideCursor()
	}
	screen.Show()
}

func (b *Browser) scrollTo(height int) {
	if height <= 0 {
		return
	}
	if b.cursor < b.offset {
		b.offset = b.cursor
	}
	if b.cursor >= b.offset+height {
		b.offset = b.cursor - height + 1
	}
	if last := len(b.rows) - height; b.offset > last {
		b.offset = last
	}
	if b.offset < 0 {
		b.offset = 0
	}
}

func (b *Browser) drawRow(screen tcell.Screen, y, w int, row view.Row, selected bool) {
	n := row.Node
	var (
		text  string
		style tcell.Style
		pos   string
	)
	if n.IsGroup() {
		arrow := "▸"
		if row.Expanded {
			arrow = "▾"
		}
		text = fmt.Sprintf("%s %s (%d)", arrow, n.Label, len(n.Children))
		style = b.theme.Group
	} else {
		rec := *n.Record
		box := "[ ] "
		if rec.Done {
			box = "[x] "
		}
		text = "    " + box + n.Label
		style = b.theme.taskStyle(rec, rec.Overdue(b.now()))
		pos = filepath.Base(rec.Location.Path) + fmt.Sprintf(":%d", rec.Location.Line+1)
	}
	if selected {
		style = b.theme.Selected
		fillRow(screen, 0, y, w, style)
	}

	x := 1
	avail := w - x
	if pos != "" && Width(text)+Width(pos)+3 <= avail {
		posStyle := b.theme.Position
		if selected {
			posStyle = style
		}
		drawText(screen, w-Width(pos)-1, y, Width(pos), pos, posStyle)
		avail -= Width(pos) + 2
	}
	drawText(screen, x, y, avail, text, style)
}
