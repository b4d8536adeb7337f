package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/taskaroo/internal/marker"
	"github.com/dshills/taskaroo/internal/notify"
	"github.com/dshills/taskaroo/internal/scan"
	"github.com/dshills/taskaroo/internal/task"
)

type fakeSource struct {
	repo     *task.Repository
	notifier *notify.Notifier
	refresh  func(ctx context.Context) (*scan.Result, error)
}

func (f *fakeSource) Repository() *task.Repository { return f.repo }
func (f *fakeSource) Notifier() *notify.Notifier   { return f.notifier }
func (f *fakeSource) Refresh(ctx context.Context) (*scan.Result, error) {
	if f.refresh == nil {
		return &scan.Result{}, nil
	}
	return f.refresh(ctx)
}

func records() []task.Record {
	p := marker.MustNew(marker.DefaultOptions())
	var out []task.Record
	out = append(out, p.Parse("/ws/a.ts", []string{"x()", "", "// TODO(2025-01-01)!: fix race", "", "", "", "", "", "// FIXME: later"})...)
	out = append(out, p.Parse("/ws/b.ts", []string{"// TODO: second file"})...)
	return out
}

func newSource() *fakeSource {
	n := notify.New()
	repo := task.NewRepository(task.WithNotifier(n))
	repo.Load(records())
	return &fakeSource{repo: repo, notifier: n}
}

func fixedClock() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	s := tcell.NewSimulationScreen("")
	require.NoError(t, s.Init())
	s.SetSize(70, 10)
	t.Cleanup(s.Fini)
	return s
}

func screenLines(s tcell.SimulationScreen) []string {
	cells, w, h := s.GetContents()
	lines := make([]string, h)
	for y := 0; y < h; y++ {
		var b strings.Builder
		for x := 0; x < w; x++ {
			c := cells[y*w+x]
			if len(c.Runes) == 0 {
				b.WriteRune(' ')
				continue
			}
			b.WriteString(string(c.Runes))
		}
		lines[y] = strings.TrimRight(b.String(), " ")
	}
	return lines
}

func key(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func special(k tcell.Key) *tcell.EventKey {
	return tcell.NewEventKey(k, 0, tcell.ModNone)
}

func press(b *Browser, s tcell.Screen, events ...*tcell.EventKey) (*task.Record, bool) {
	var (
		rec  *task.Record
		quit bool
	)
	for _, ev := range events {
		rec, quit = b.handleKey(context.Background(), s, ev)
	}
	b.draw(s)
	return rec, quit
}

func TestBrowser_Draw(t *testing.T) {
	s := newScreen(t)
	b := NewBrowser(newSource(), WithClock(fixedClock))
	b.draw(s)

	lines := screenLines(s)
	assert.Contains(t, lines[0], "taskaroo")
	assert.Contains(t, lines[0], "group: file")
	assert.Contains(t, lines[1], "▾ a.ts (2)")
	assert.Contains(t, lines[2], "[ ] TODO (Due: 2025-01-01) [!]: fix race")
	assert.True(t, strings.HasSuffix(lines[2], "a.ts:3"))
	assert.Contains(t, lines[3], "[ ] FIXME: later")
	assert.Contains(t, lines[4], "▾ b.ts (1)")
	assert.Contains(t, lines[5], "TODO: second file")
	assert.Contains(t, lines[9], "3 tasks")
}

func TestBrowser_Empty(t *testing.T) {
	s := newScreen(t)
	n := notify.New()
	b := NewBrowser(&fakeSource{repo: task.NewRepository(task.WithNotifier(n)), notifier: n})
	b.draw(s)

	lines := screenLines(s)
	assert.Contains(t, lines[1], "No tasks.")
	assert.Contains(t, lines[9], "0 tasks")

	rec, quit := press(b, s, special(tcell.KeyEnter), key('x'), key('n'), key('j'))
	assert.Nil(t, rec)
	assert.False(t, quit)
}

func TestBrowser_MoveAndOpen(t *testing.T) {
	s := newScreen(t)
	b := NewBrowser(newSource())

	rec, _ := press(b, s, key('j'), key('j'))
	assert.Nil(t, rec)
	assert.Equal(t, 2, b.cursor)

	rec, _ = press(b, s, key('k'), special(tcell.KeyEnter))
	require.NotNil(t, rec)
	assert.Equal(t, "/ws/a.ts", rec.Location.Path)
	assert.Equal(t, 2, rec.Location.Line)

	press(b, s, special(tcell.KeyEnd))
	assert.Equal(t, 4, b.cursor)
	press(b, s, special(tcell.KeyDown))
	assert.Equal(t, 4, b.cursor)
	press(b, s, special(tcell.KeyHome), special(tcell.KeyUp))
	assert.Equal(t, 0, b.cursor)
}

func TestBrowser_Collapse(t *testing.T) {
	s := newScreen(t)
	b := NewBrowser(newSource())

	press(b, s, key(' '))
	lines := screenLines(s)
	assert.Contains(t, lines[1], "▸ a.ts (2)")
	assert.Contains(t, lines[2], "▾ b.ts (1)")
	assert.Len(t, b.rows, 3)

	press(b, s, special(tcell.KeyEnter))
	assert.Len(t, b.rows, 5)
}

func TestBrowser_Filter(t *testing.T) {
	s := newScreen(t)
	src := newSource()
	b := NewBrowser(src)

	press(b, s, key('/'), key('f'), key('i'), key('x'))
	assert.True(t, b.filtering)
	assert.Equal(t, "fix", src.repo.FilterText())
	assert.Equal(t, 2, src.repo.Count(), "matches fix race and FIXME")
	assert.Contains(t, screenLines(s)[9], "/fix")

	press(b, s, special(tcell.KeyBackspace2), special(tcell.KeyBackspace2), special(tcell.KeyBackspace2),
		key('r'), key('a'), key('c'), key('e'), special(tcell.KeyEnter))
	assert.False(t, b.filtering)
	lines := screenLines(s)
	assert.Contains(t, lines[0], "filter: race")
	assert.Contains(t, lines[9], "1 task (of 3)")

	press(b, s, key('/'), special(tcell.KeyBackspace2), special(tcell.KeyEscape))
	assert.Equal(t, "race", src.repo.FilterText())

	press(b, s, key('/'), special(tcell.KeyCtrlU), special(tcell.KeyEnter))
	assert.Equal(t, "", src.repo.FilterText())
	assert.Equal(t, 3, src.repo.Count())
}

func TestBrowser_ToggleGroup(t *testing.T) {
	s := newScreen(t)
	src := newSource()
	b := NewBrowser(src)

	press(b, s, key('g'))
	assert.Equal(t, task.GroupByTag, src.repo.GroupBy())
	lines := screenLines(s)
	assert.Contains(t, lines[0], "group: tag")
	assert.Contains(t, lines[1], "▾ TODO (2)")
	assert.Contains(t, lines[4], "▾ FIXME (1)")
}

func TestBrowser_ToggleDone(t *testing.T) {
	s := newScreen(t)
	src := newSource()
	b := NewBrowser(src)

	press(b, s, key('x'))
	assert.False(t, src.repo.All()[0].Done, "groups cannot be marked")

	press(b, s, key('j'), key('x'))
	assert.True(t, src.repo.All()[0].Done)
	assert.Contains(t, screenLines(s)[2], "[x] TODO")

	press(b, s, key('x'))
	assert.False(t, src.repo.All()[0].Done)
}

func TestBrowser_NextPrevious(t *testing.T) {
	s := newScreen(t)
	b := NewBrowser(newSource())

	press(b, s, key('j'), key('n'))
	assert.Equal(t, 2, b.cursor)
	assert.Equal(t, "/ws/a.ts:9", b.selected)

	press(b, s, key('n'))
	assert.Equal(t, 2, b.cursor)
	assert.Contains(t, screenLines(s)[9], msgNoNext)

	press(b, s, key('p'))
	assert.Equal(t, 1, b.cursor)
	press(b, s, key('p'))
	assert.Contains(t, screenLines(s)[9], msgNoPrevious)
}

func TestBrowser_NextExpandsGroup(t *testing.T) {
	s := newScreen(t)
	b := NewBrowser(newSource())

	press(b, s, key('j'))
	b.collapsed["/ws/a.ts"] = true
	b.selected = "/ws/a.ts:3"

	b.reveal(records()[1])
	assert.False(t, b.collapsed["/ws/a.ts"])
	assert.Equal(t, "/ws/a.ts:9", b.rows[b.cursor].Node.Key)
}

func TestBrowser_Quit(t *testing.T) {
	s := newScreen(t)
	b := NewBrowser(newSource())

	_, quit := press(b, s, key('q'))
	assert.True(t, quit)
	_, quit = press(b, s, special(tcell.KeyEscape))
	assert.True(t, quit)
}

func waitFor(t *testing.T, s tcell.SimulationScreen, want string) {
	t.Helper()
	assert.Eventually(t, func() bool {
		for _, l := range screenLines(s) {
			if strings.Contains(l, want) {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "screen never showed %q", want)
}

type runResult struct {
	rec *task.Record
	err error
}

func TestBrowser_Run(t *testing.T) {
	s := tcell.NewSimulationScreen("")
	b := NewBrowser(newSource())

	done := make(chan runResult, 1)
	go func() {
		rec, err := b.Run(context.Background(), s)
		done <- runResult{rec, err}
	}()

	waitFor(t, s, "3 tasks")
	s.InjectKey(tcell.KeyRune, 'j', tcell.ModNone)
	s.InjectKey(tcell.KeyEnter, 0, tcell.ModNone)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		require.NotNil(t, r.rec)
		assert.Equal(t, "TODO", r.rec.Tag)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestBrowser_RunRescan(t *testing.T) {
	src := newSource()
	more := append(records(), task.Record{Tag: "HACK", Location: task.Location{Path: "/ws/c.ts"}})
	src.refresh = func(context.Context) (*scan.Result, error) {
		src.repo.Load(more)
		return &scan.Result{Files: 3, Records: more}, nil
	}

	s := tcell.NewSimulationScreen("")
	b := NewBrowser(src)
	done := make(chan runResult, 1)
	go func() {
		rec, err := b.Run(context.Background(), s)
		done <- runResult{rec, err}
	}()

	waitFor(t, s, "3 tasks")
	s.InjectKey(tcell.KeyRune, 'r', tcell.ModNone)
	waitFor(t, s, "4 tasks  Rescanned 3 files")
	s.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)

	select {
	case r := <-done:
		assert.NoError(t, r.err)
		assert.Nil(t, r.rec)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestBrowser_RunRescanError(t *testing.T) {
	src := newSource()
	src.refresh = func(context.Context) (*scan.Result, error) {
		return nil, errors.New("disk on fire")
	}

	s := tcell.NewSimulationScreen("")
	b := NewBrowser(src)
	done := make(chan runResult, 1)
	go func() {
		rec, err := b.Run(context.Background(), s)
		done <- runResult{rec, err}
	}()

	waitFor(t, s, "3 tasks")
	s.InjectKey(tcell.KeyRune, 'r', tcell.ModNone)
	waitFor(t, s, "Rescan failed: disk on fire")
	s.InjectKey(tcell.KeyCtrlC, 0, tcell.ModNone)
	<-done
}

func TestBrowser_RunCancelled(t *testing.T) {
	s := tcell.NewSimulationScreen("")
	b := NewBrowser(newSource())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan runResult, 1)
	go func() {
		rec, err := b.Run(ctx, s)
		done <- runResult{rec, err}
	}()

	waitFor(t, s, "3 tasks")
	cancel()

	select {
	case r := <-done:
		assert.ErrorIs(t, r.err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 5))
	assert.Equal(t, "hell…", Truncate("hello world", 5))
	assert.Equal(t, "日…", Truncate("日本語", 4))
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, 6, Width("日本語"))
	assert.Equal(t, "ab  ", PadRight("ab", 4))
	assert.Equal(t, "abcd", PadRight("abcd", 2))
}
