package task

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/taskaroo/internal/notify"
)

func rec(path string, line int, tag, text string) Record {
	return Record{
		Tag:      tag,
		Location: Location{Path: path, Line: line},
		Text:     text,
		Severity: SeverityMedium,
	}
}

func sample() []Record {
	return []Record{
		rec("b.ts", 5, "TODO", "second b"),
		rec("a.ts", 8, "FIXME", "broken parser"),
		rec("b.ts", 2, "FIXME", "first b"),
		rec("a.ts", 3, "TODO", "fix race"),
		rec("lib/c.go", 0, "HACK", "temporary"),
	}
}

func positions(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Position()
	}
	return out
}

func assertSorted(t *testing.T, records []Record) {
	t.Helper()
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1].Location, records[i].Location
		if prev.Path == cur.Path {
			assert.LessOrEqual(t, prev.Line, cur.Line, "lines out of order at %d", i)
		}
	}
}

func TestRepository_LoadSorts(t *testing.T) {
	r := NewRepository()
	r.Load(sample())

	assert.Equal(t, []string{"a.ts:4", "a.ts:9", "b.ts:3", "b.ts:6", "lib/c.go:1"}, positions(r.All()))
	assert.Equal(t, 5, r.Count())
	assert.Equal(t, 5, r.Total())
}

func TestRepository_SortIsTotalOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	paths := []string{"src/z.go", "src/a.go", "Src/b.go", "docs/readme.md", "a.ts"}

	var records []Record
	for i := 0; i < 200; i++ {
		records = append(records, rec(paths[rng.Intn(len(paths))], rng.Intn(50), "TODO", "x"))
	}

	r := NewRepository()
	r.Load(records)
	all := r.All()
	require.Len(t, all, 200)
	assertSorted(t, all)

	// Records for one path are contiguous.
	seen := map[string]bool{}
	for i, rec := range all {
		if i > 0 && all[i-1].Location.Path != rec.Location.Path {
			assert.False(t, seen[rec.Location.Path], "path %s split in view", rec.Location.Path)
		}
		seen[rec.Location.Path] = true
	}
}

func TestRepository_LoadReplaces(t *testing.T) {
	r := NewRepository()
	r.Load(sample())
	r.Load([]Record{rec("z.go", 1, "TODO", "only")})

	assert.Equal(t, []string{"z.go:2"}, positions(r.All()))
	assert.Equal(t, 1, r.Total())
}

func TestRepository_LoadCopiesInput(t *testing.T) {
	in := sample()
	r := NewRepository()
	r.Load(in)
	in[0].Text = "mutated"

	for _, rec := range r.All() {
		assert.NotEqual(t, "mutated", rec.Text)
	}
}

func TestRepository_Filter(t *testing.T) {
	r := NewRepository()
	r.Load(sample())

	r.SetFilterText("FIXME")
	assert.Equal(t, []string{"a.ts:9", "b.ts:3"}, positions(r.All()))
	assert.Equal(t, 2, r.Count())
	assert.Equal(t, 5, r.Total())

	// Matches the path, case-insensitively.
	r.SetFilterText("LIB/")
	assert.Equal(t, []string{"lib/c.go:1"}, positions(r.All()))

	r.SetFilterText("nonexistenttext")
	assert.Equal(t, 0, r.Count())
	assert.Empty(t, r.All())
}

func TestRepository_FilterIdempotentAndReversible(t *testing.T) {
	r := NewRepository()
	r.Load(sample())
	full := r.All()

	r.SetFilterText("b")
	once := r.All()
	r.SetFilterText("b")
	assert.Equal(t, once, r.All())
	assertSorted(t, once)

	r.SetFilterText("")
	assert.Equal(t, full, r.All())
}

func TestRepository_FilterMatchesLabelParts(t *testing.T) {
	r := NewRepository()
	high := rec("a.ts", 1, "TODO", "ship it")
	high.Severity = SeverityHigh
	high.SeverityMarked = true
	high.DueText = "2025-01-01"
	r.Load([]Record{high, rec("a.ts", 2, "TODO", "other")})

	r.SetFilterText("due: 2025")
	require.Equal(t, 1, r.Count())
	assert.Equal(t, 1, r.All()[0].Location.Line)

	r.SetFilterText("[!]")
	assert.Equal(t, 1, r.Count())
}

func TestRepository_GroupBy(t *testing.T) {
	r := NewRepository()
	assert.Equal(t, GroupByFile, r.GroupBy())

	r.SetGroupBy(GroupByTag)
	assert.Equal(t, GroupByTag, r.GroupBy())
}

func TestRepository_SetDone(t *testing.T) {
	r := NewRepository()
	r.Load(sample())

	assert.True(t, r.SetDone(Location{Path: "a.ts", Line: 3}, true))
	assert.False(t, r.SetDone(Location{Path: "a.ts", Line: 4}, true))

	r.SetFilterText("race")
	require.Equal(t, 1, r.Count())
	assert.True(t, r.All()[0].Done, "done flag must survive filtering")

	// A rescan produces fresh records.
	r.Load(sample())
	for _, rec := range r.All() {
		assert.False(t, rec.Done)
	}
}

func TestRepository_Notifications(t *testing.T) {
	n := notify.New()
	var changes []notify.Change
	n.Subscribe(func(c notify.Change) { changes = append(changes, c) })

	r := NewRepository(WithNotifier(n))
	r.Load(sample())
	r.SetFilterText("TODO")
	r.SetGroupBy(GroupByTag)
	r.SetDone(Location{Path: "a.ts", Line: 3}, true)

	require.Len(t, changes, 4)
	assert.Equal(t, notify.ChangeRefresh, changes[0].Type)
	assert.Equal(t, 5, changes[0].Count)
	assert.Equal(t, notify.ChangeFilter, changes[1].Type)
	assert.Equal(t, 2, changes[1].Count)
	assert.Equal(t, 5, changes[1].Total)
	assert.Equal(t, notify.ChangeGroup, changes[2].Type)
	assert.Equal(t, notify.ChangeDone, changes[3].Type)
}

func TestRepository_ObserverCanReadBack(t *testing.T) {
	n := notify.New()
	r := NewRepository(WithNotifier(n))

	var count int
	n.Subscribe(func(notify.Change) { count = r.Count() })
	r.Load(sample())

	assert.Equal(t, 5, count)
}

func TestRepository_Stats(t *testing.T) {
	records := sample()
	records[0].DueDate = date(t, "2020-01-01")
	records[1].Severity = SeverityHigh
	records[2].Done = true

	r := NewRepository()
	r.Load(records)
	s := r.Stats(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, 5, s.Count)
	assert.Equal(t, 3, s.Files)
	assert.Equal(t, 1, s.Overdue)
	assert.Equal(t, 1, s.Done)
	assert.Equal(t, 2, s.ByTag["TODO"])
	assert.Equal(t, 2, s.ByTag["FIXME"])
	assert.Equal(t, 1, s.BySeverity[SeverityHigh])
	assert.Equal(t, 4, s.BySeverity[SeverityMedium])
}
