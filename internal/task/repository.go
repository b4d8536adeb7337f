package task

import (
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/dshills/taskaroo/internal/notify"
)

// Repository holds the unfiltered task set of the latest scan and derives
// the filtered, sorted view from it.
//
// The raw set is never mutated by filtering; changing the filter back to ""
// restores every record. Every derived view is ordered by file path (locale
// collation) and then line.
type Repository struct {
	mu sync.RWMutex

	raw  []Record
	view []Record

	filterText string
	groupBy    GroupBy

	collator *collate.Collator
	folder   cases.Caser
	notifier *notify.Notifier
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithNotifier publishes view changes to n.
func WithNotifier(n *notify.Notifier) RepositoryOption {
	return func(r *Repository) {
		r.notifier = n
	}
}

// WithLocale sets the collation language used to order file paths.
func WithLocale(tag language.Tag) RepositoryOption {
	return func(r *Repository) {
		r.collator = collate.New(tag)
	}
}

// NewRepository creates an empty repository grouped by file.
func NewRepository(opts ...RepositoryOption) *Repository {
	r := &Repository{
		groupBy:  GroupByFile,
		collator: collate.New(language.Und),
		folder:   cases.Fold(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load replaces the raw set wholesale and recomputes the view.
func (r *Repository) Load(records []Record) {
	r.mu.Lock()
	r.raw = make([]Record, len(records))
	copy(r.raw, records)
	r.recompute()
	change := r.changeLocked(notify.ChangeRefresh)
	r.mu.Unlock()

	r.publish(change)
}

// SetFilterText sets the case-insensitive substring filter.
func (r *Repository) SetFilterText(text string) {
	r.mu.Lock()
	r.filterText = text
	r.recompute()
	change := r.changeLocked(notify.ChangeFilter)
	r.mu.Unlock()

	r.publish(change)
}

// SetGroupBy sets the grouping mode.
func (r *Repository) SetGroupBy(mode GroupBy) {
	r.mu.Lock()
	r.groupBy = mode
	r.recompute()
	change := r.changeLocked(notify.ChangeGroup)
	r.mu.Unlock()

	r.publish(change)
}

// FilterText returns the current filter text.
func (r *Repository) FilterText() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.filterText
}

// GroupBy returns the current grouping mode.
func (r *Repository) GroupBy() GroupBy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.groupBy
}

// Count returns the size of the filtered view.
func (r *Repository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.view)
}

// Total returns the size of the raw set.
func (r *Repository) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.raw)
}

// All returns a copy of the filtered, sorted view.
func (r *Repository) All() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, len(r.view))
	copy(out, r.view)
	return out
}

// SetDone sets the in-memory done flag of the record at loc.
// It reports false if no record lives at loc.
func (r *Repository) SetDone(loc Location, done bool) bool {
	r.mu.Lock()
	found := false
	for i := range r.raw {
		if r.raw[i].Location == loc {
			r.raw[i].Done = done
			found = true
		}
	}
	if !found {
		r.mu.Unlock()
		return false
	}
	for i := range r.view {
		if r.view[i].Location == loc {
			r.view[i].Done = done
		}
	}
	change := r.changeLocked(notify.ChangeDone)
	r.mu.Unlock()

	r.publish(change)
	return true
}

// Stats summarizes the filtered view.
type Stats struct {
	Count      int
	Total      int
	Files      int
	Overdue    int
	Done       int
	ByTag      map[string]int
	BySeverity map[Severity]int
}

// Stats returns aggregate counts over the filtered view as of now.
func (r *Repository) Stats(now time.Time) Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		Count:      len(r.view),
		Total:      len(r.raw),
		ByTag:      make(map[string]int),
		BySeverity: make(map[Severity]int),
	}
	files := make(map[string]bool)
	for _, rec := range r.view {
		files[rec.Location.Path] = true
		s.ByTag[rec.Tag]++
		s.BySeverity[rec.Severity]++
		if rec.Overdue(now) {
			s.Overdue++
		}
		if rec.Done {
			s.Done++
		}
	}
	s.Files = len(files)
	return s
}

// recompute derives the view from the raw set. Caller holds mu.
func (r *Repository) recompute() {
	view := make([]Record, 0, len(r.raw))
	if r.filterText == "" {
		view = append(view, r.raw...)
	} else {
		needle := r.folder.String(r.filterText)
		for _, rec := range r.raw {
			if strings.Contains(r.folder.String(rec.Label()), needle) ||
				strings.Contains(r.folder.String(rec.Location.Path), needle) {
				view = append(view, rec)
			}
		}
	}

	sort.SliceStable(view, func(i, j int) bool {
		return r.less(view[i], view[j])
	})
	r.view = view
}

// less orders by collated path, then raw path, then line.
func (r *Repository) less(a, b Record) bool {
	if a.Location.Path != b.Location.Path {
		if c := r.collator.CompareString(a.Location.Path, b.Location.Path); c != 0 {
			return c < 0
		}
		return a.Location.Path < b.Location.Path
	}
	return a.Location.Line < b.Location.Line
}

func (r *Repository) changeLocked(t notify.ChangeType) notify.Change {
	return notify.Change{Type: t, Count: len(r.view), Total: len(r.raw)}
}

func (r *Repository) publish(change notify.Change) {
	if r.notifier != nil {
		r.notifier.Notify(change)
	}
}
