package task

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) *time.Time {
	t.Helper()
	d, err := time.Parse(DateLayout, s)
	require.NoError(t, err)
	return &d
}

func TestSeverity_StringAndMarker(t *testing.T) {
	tests := []struct {
		sev    Severity
		name   string
		marker string
	}{
		{SeverityLow, "low", "?"},
		{SeverityMedium, "medium", ""},
		{SeverityHigh, "high", "!"},
		{Severity(42), "unknown", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.sev.String())
		assert.Equal(t, tt.marker, tt.sev.Marker())
	}
}

func TestParseSeverity(t *testing.T) {
	sev, ok := ParseSeverity(" HIGH ")
	assert.True(t, ok)
	assert.Equal(t, SeverityHigh, sev)

	sev, ok = ParseSeverity("urgent")
	assert.False(t, ok)
	assert.Equal(t, SeverityMedium, sev)
}

func TestRecord_Label(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{
			name: "full",
			rec: Record{
				Tag: "TODO", Text: "fix race", DueText: "2025-01-01",
				DueDate: date(t, "2025-01-01"), Severity: SeverityHigh, SeverityMarked: true,
			},
			want: "TODO (Due: 2025-01-01) [!]: fix race",
		},
		{
			name: "tag only",
			rec:  Record{Tag: "HACK", Severity: SeverityMedium},
			want: "HACK",
		},
		{
			name: "low marker no text",
			rec:  Record{Tag: "FIXME", Severity: SeverityLow, SeverityMarked: true},
			want: "FIXME [?]",
		},
		{
			name: "unparseable date kept as written",
			rec:  Record{Tag: "TODO", DueText: "2025-13-40", Text: "later"},
			want: "TODO (Due: 2025-13-40): later",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.Label())
		})
	}
}

func TestRecord_Position(t *testing.T) {
	rec := Record{Location: Location{Path: "src/a.ts", Line: 2}}
	assert.Equal(t, "src/a.ts:3", rec.Position())
}

func TestRecord_Overdue(t *testing.T) {
	now := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

	assert.False(t, Record{}.Overdue(now))
	assert.True(t, Record{DueDate: date(t, "2025-06-09")}.Overdue(now))
	assert.False(t, Record{DueDate: date(t, "2025-06-10")}.Overdue(now))
	assert.False(t, Record{DueDate: date(t, "2025-07-01")}.Overdue(now))
}

func TestParseGroupBy(t *testing.T) {
	for _, in := range []string{"file", "by-file", "FILE"} {
		g, err := ParseGroupBy(in)
		require.NoError(t, err)
		assert.Equal(t, GroupByFile, g)
	}
	for _, in := range []string{"tag", "By-Tag"} {
		g, err := ParseGroupBy(in)
		require.NoError(t, err)
		assert.Equal(t, GroupByTag, g)
	}

	_, err := ParseGroupBy("severity")
	assert.True(t, errors.Is(err, ErrInvalidGroupBy))
}

func TestGroupBy_Toggle(t *testing.T) {
	assert.Equal(t, GroupByTag, GroupByFile.Toggle())
	assert.Equal(t, GroupByFile, GroupByTag.Toggle())
}
