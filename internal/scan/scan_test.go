package scan

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/taskaroo/internal/marker"
	"github.com/dshills/taskaroo/internal/project/vfs"
	"github.com/dshills/taskaroo/internal/task"
)

func newFixture() *vfs.MemFS {
	m := vfs.NewMemFS()
	m.AddFile("/ws/src/a.ts", "const x = 1; // TODO: fix x\n// FIXME(2025-01-01)!: urgent\n")
	m.AddFile("/ws/src/b.py", "# HACK? maybe\nprint(1)\n")
	m.AddFile("/ws/node_modules/dep/index.js", "// TODO: not ours\n")
	m.AddFile("/ws/.git/config", "# TODO: no\n")
	m.AddFile("/ws/README.txt", "TODO: not a source file\n")
	return m
}

func newScanner(t *testing.T, fsys vfs.FS, opts ...Option) *Scanner {
	t.Helper()
	s, err := New(fsys, marker.MustNew(marker.DefaultOptions()), Config{
		Root:    "/ws",
		Exclude: DefaultExclude,
	}, opts...)
	require.NoError(t, err)
	return s
}

func TestEnumerator_Defaults(t *testing.T) {
	e, err := NewEnumerator(newFixture(), nil, DefaultExclude)
	require.NoError(t, err)

	files, err := e.Enumerate(context.Background(), "/ws")
	require.NoError(t, err)
	assert.Equal(t, []string{"/ws/src/a.ts", "/ws/src/b.py"}, files)
}

func TestEnumerator_Patterns(t *testing.T) {
	e, err := NewEnumerator(vfs.NewMemFS(), []string{"**/*.go", "docs/*.md"}, []string{"**/vendor/**"})
	require.NoError(t, err)

	assert.True(t, e.Included("main.go"))
	assert.True(t, e.Included("internal/a/b.go"))
	assert.True(t, e.Included("docs/x.md"))
	assert.False(t, e.Included("docs/sub/x.md"))
	assert.False(t, e.Included("vendor/x/y.go"))
	assert.True(t, e.Excluded("a/vendor/b.go"))
}

func TestEnumerator_Pruned(t *testing.T) {
	e, err := NewEnumerator(vfs.NewMemFS(), nil, DefaultExclude)
	require.NoError(t, err)

	assert.True(t, e.Pruned("node_modules"))
	assert.True(t, e.Pruned("web/node_modules"))
	assert.True(t, e.Pruned(".git"))
	assert.False(t, e.Pruned("src"))
	assert.False(t, e.Pruned("node_modules_backup"))
}

func TestEnumerator_OneLevelExcludeKeepsSubdirectories(t *testing.T) {
	tests := []struct {
		name    string
		exclude string
	}{
		{"anchored", "gen/*"},
		{"any depth", "**/gen/*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := vfs.NewMemFS()
			m.AddFile("/ws/gen/a.go", "// TODO: generated\n")
			m.AddFile("/ws/gen/sub/b.go", "// TODO: kept\n")

			e, err := NewEnumerator(m, []string{"**/*.go"}, []string{tt.exclude})
			require.NoError(t, err)

			assert.False(t, e.Pruned("gen"))
			assert.True(t, e.Excluded("gen/a.go"))
			assert.True(t, e.Included("gen/sub/b.go"))

			files, err := e.Enumerate(context.Background(), "/ws")
			require.NoError(t, err)
			assert.Equal(t, []string{"/ws/gen/sub/b.go"}, files)
		})
	}
}

func TestEnumerator_RecursiveExcludePrunes(t *testing.T) {
	e, err := NewEnumerator(vfs.NewMemFS(), nil, []string{"gen/**", "build"})
	require.NoError(t, err)

	assert.True(t, e.Pruned("gen"))
	assert.True(t, e.Pruned("gen/sub"))
	// A glob naming only the directory itself excludes no file below it.
	assert.False(t, e.Pruned("build"))
}

func TestEnumerator_InvalidGlob(t *testing.T) {
	_, err := NewEnumerator(vfs.NewMemFS(), []string{"[abc"}, nil)
	assert.Error(t, err)
}

func TestEnumerator_MissingRoot(t *testing.T) {
	e, err := NewEnumerator(vfs.NewMemFS(), nil, nil)
	require.NoError(t, err)
	_, err = e.Enumerate(context.Background(), "/missing")
	assert.Error(t, err)
}

func TestEnumerator_Cancelled(t *testing.T) {
	e, err := NewEnumerator(newFixture(), nil, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Enumerate(ctx, "/ws")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReader(t *testing.T) {
	m := vfs.NewMemFS()
	m.AddFile("/a.go", "line1\r\nline2")
	m.AddFile("/big.go", strings.Repeat("x", 64))
	m.AddFile("/bin.go", "a\x00b")
	m.AddFile("/dir/x.go", "")

	r := NewReader(m, 32)
	lines, err := r.ReadLines("/a.go")
	require.NoError(t, err)
	assert.Equal(t, []string{"line1", "line2"}, lines)

	_, err = r.ReadLines("/big.go")
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = r.ReadLines("/bin.go")
	assert.ErrorIs(t, err, ErrBinaryFile)

	_, err = r.ReadLines("/dir")
	assert.ErrorIs(t, err, ErrNotRegular)

	assert.Equal(t, int64(DefaultMaxFileSize), NewReader(m, 0).MaxFileSize())
}

func TestScanner_Scan(t *testing.T) {
	s := newScanner(t, newFixture())

	res, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, res.ID)
	assert.Equal(t, 2, res.Files)
	assert.Empty(t, res.Failures)
	require.Len(t, res.Records, 3)

	first := res.Records[0]
	assert.Equal(t, "TODO", first.Tag)
	assert.Equal(t, "fix x", first.Text)
	assert.Equal(t, task.Location{Path: "/ws/src/a.ts", Line: 0}, first.Location)

	second := res.Records[1]
	assert.Equal(t, task.SeverityHigh, second.Severity)
	require.NotNil(t, second.DueDate)

	third := res.Records[2]
	assert.Equal(t, "HACK", third.Tag)
	assert.Equal(t, task.SeverityLow, third.Severity)
}

func TestScanner_FailuresDoNotAbort(t *testing.T) {
	m := newFixture()
	m.AddFile("/ws/src/bin.go", "\x00\x01")

	s := newScanner(t, m)
	res, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "/ws/src/bin.go", res.Failures[0].Path)
	assert.ErrorIs(t, res.Failures[0], ErrBinaryFile)
	assert.Len(t, res.Records, 3)
}

func TestScanner_CacheServesFreshRecords(t *testing.T) {
	m := newFixture()
	stamp := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return stamp })
	m.AddFile("/ws/src/a.ts", "// TODO(2025-02-02): cached\n")

	s := newScanner(t, m)
	first, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, first.CacheHits)

	second, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second.CacheHits)
	assert.Equal(t, first.Records, second.Records)
	assert.NotSame(t, first.Records[0].DueDate, second.Records[0].DueDate)

	// Size change invalidates.
	m.AddFile("/ws/src/a.ts", "// TODO: changed text\n")
	third, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, third.CacheHits)
	assert.Equal(t, "changed text", third.Records[0].Text)

	s.Purge()
	fourth, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, fourth.CacheHits)
}

func TestScanner_ForgetDropsSameSizeEdits(t *testing.T) {
	m := newFixture()
	stamp := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return stamp })

	s := newScanner(t, m)
	_, err := s.Scan(context.Background())
	require.NoError(t, err)

	// Same length, same mod time: the cache cannot tell.
	m.AddFile("/ws/src/b.py", "# TODO? maybe\nprint(1)\n")
	stale, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stale.CacheHits)

	s.Forget("/ws/src/b.py")
	fresh, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.CacheHits)
	tags := make([]string, len(fresh.Records))
	for i, r := range fresh.Records {
		tags[i] = r.Tag
	}
	assert.Contains(t, tags, "TODO")
	assert.NotContains(t, tags, "HACK")

	// Forgetting a directory drops every file below it.
	s.Forget("/ws/src")
	again, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, again.CacheHits)
}

func TestScanner_Cancelled(t *testing.T) {
	s := newScanner(t, newFixture())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanner_ScanFile(t *testing.T) {
	s := newScanner(t, newFixture())

	records, err := s.ScanFile("/ws/README.txt")
	require.NoError(t, err)
	assert.Empty(t, records, "no comment token before the tag")

	records, err = s.ScanFile("/ws/node_modules/dep/index.js")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = s.ScanFile("/ws/nope.go")
	var fe *FileError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "/ws/nope.go", fe.Path)
}

type funcHook func(task.Record) (task.Record, bool, error)

func (f funcHook) Apply(r task.Record) (task.Record, bool, error) { return f(r) }

func TestScanner_Hook(t *testing.T) {
	hook := funcHook(func(r task.Record) (task.Record, bool, error) {
		switch r.Tag {
		case "HACK":
			return r, false, nil
		case "FIXME":
			return r, true, errors.New("script error")
		}
		r.Severity = task.SeverityHigh
		return r, true, nil
	})

	s := newScanner(t, newFixture(), WithHook(hook))
	res, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Records, 2)
	assert.Equal(t, task.SeverityHigh, res.Records[0].Severity)
	assert.Equal(t, "FIXME", res.Records[1].Tag)

	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0], ErrHook)
	assert.Contains(t, res.Failures[0].Error(), "line 2")
}

type recordingLoader struct {
	mu    sync.Mutex
	loads [][]task.Record
}

func (l *recordingLoader) Load(records []task.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads = append(l.loads, records)
}

func TestRefresher_Loads(t *testing.T) {
	loader := &recordingLoader{}
	r := NewRefresher(newScanner(t, newFixture()), loader)

	res, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Superseded)
	require.Len(t, loader.loads, 1)
	assert.Len(t, loader.loads[0], 3)
	assert.Equal(t, uint64(1), r.Generation())
}

func TestRefresher_LastLoadWins(t *testing.T) {
	m := newFixture()
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	// The first scan blocks in the hook until a second refresh completes.
	hook := funcHook(func(r task.Record) (task.Record, bool, error) {
		blocked := false
		once.Do(func() { blocked = true })
		if blocked {
			close(entered)
			<-release
		}
		return r, true, nil
	})

	loader := &recordingLoader{}
	r := NewRefresher(newScanner(t, m, WithHook(hook)), loader)

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := r.Refresh(context.Background())
		done <- outcome{res, err}
	}()

	<-entered
	m.AddFile("/ws/src/c.go", "// URGENT: newest\n")
	newer, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, newer.Superseded)

	close(release)
	older := <-done
	require.NoError(t, older.err)
	assert.True(t, older.res.Superseded)

	require.Len(t, loader.loads, 1)
	assert.Len(t, loader.loads[0], 4)
}

func TestRefresher_ScanError(t *testing.T) {
	s, err := New(vfs.NewMemFS(), marker.MustNew(marker.DefaultOptions()), Config{Root: "/missing"})
	require.NoError(t, err)
	loader := &recordingLoader{}

	_, err = NewRefresher(s, loader).Refresh(context.Background())
	assert.Error(t, err)
	assert.Empty(t, loader.loads)
}
