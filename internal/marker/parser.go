// Package marker finds marker comments (TODO, FIXME, ...) in lines of text.
//
// A marker line is recognized by a single composite pattern:
//
//	<comment token> <tag>[(YYYY-MM-DD)][!|?][:|-] <text>
//
// Matching is line-local. Multi-line comment bodies are not tracked, so a
// marker inside a block comment is only found when its line carries one of
// the configured comment tokens.
package marker

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/taskaroo/internal/task"
)

// ErrInvalidAnchor is returned for unknown anchor names.
var ErrInvalidAnchor = errors.New("invalid anchor")

// Anchor controls where in a line the comment token may appear.
type Anchor string

const (
	// AnchorAnywhere accepts the token anywhere, including after code.
	AnchorAnywhere Anchor = "anywhere"
	// AnchorLineStart accepts the token only after leading whitespace.
	AnchorLineStart Anchor = "line-start"
)

// ParseAnchor parses an anchor name. Empty means AnchorAnywhere.
func ParseAnchor(s string) (Anchor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "anywhere":
		return AnchorAnywhere, nil
	case "line-start", "start":
		return AnchorLineStart, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAnchor, s)
	}
}

// DefaultTags are recognized when no tags are configured.
var DefaultTags = []string{"TODO", "FIXME", "HACK", "URGENT"}

// DefaultCommentTokens are the comment starts recognized by default.
var DefaultCommentTokens = []string{"//", "#", "--", ";", "<!--"}

// closers are trailing comment terminators removed when StripClosers is set.
var closers = []string{"-->", "*/"}

// Options configures a Parser.
type Options struct {
	// Tags are the recognized tags, matched case-insensitively.
	Tags []string

	// CommentTokens are the recognized comment starts.
	CommentTokens []string

	// Anchor controls where the comment token may appear.
	Anchor Anchor

	// StripClosers removes a trailing "-->" or "*/" from the text.
	StripClosers bool
}

// DefaultOptions returns the default parser options.
func DefaultOptions() Options {
	return Options{
		Tags:          append([]string(nil), DefaultTags...),
		CommentTokens: append([]string(nil), DefaultCommentTokens...),
		Anchor:        AnchorAnywhere,
		StripClosers:  true,
	}
}

// Match is the raw result of matching one line.
type Match struct {
	Tag      string // upper-cased
	DueText  string // "" if absent
	Severity string // "!", "?" or ""
	Text     string // trimmed
}

// Parser extracts task records from lines.
// A Parser is immutable and safe for concurrent use.
type Parser struct {
	opts  Options
	regex *regexp.Regexp // nil when nothing can match
}

// Capture groups of the composite pattern.
const (
	groupTag = iota + 1
	groupDue
	groupSeverity
	groupText
)

// New compiles a parser. An empty tag or token set yields a parser that
// matches nothing.
func New(opts Options) (*Parser, error) {
	if opts.Anchor == "" {
		opts.Anchor = AnchorAnywhere
	}
	if opts.Anchor != AnchorAnywhere && opts.Anchor != AnchorLineStart {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAnchor, opts.Anchor)
	}

	tags := normalize(opts.Tags, true)
	tokens := normalize(opts.CommentTokens, false)
	opts.Tags = tags
	opts.CommentTokens = tokens

	p := &Parser{opts: opts}
	if len(tags) == 0 || len(tokens) == 0 {
		return p, nil
	}

	re, err := regexp.Compile(buildPattern(tags, tokens, opts.Anchor))
	if err != nil {
		return nil, fmt.Errorf("compiling marker pattern: %w", err)
	}
	p.regex = re
	return p, nil
}

// MustNew is like New but panics on error.
func MustNew(opts Options) *Parser {
	p, err := New(opts)
	if err != nil {
		panic(err)
	}
	return p
}

// Options returns the normalized options of the parser.
func (p *Parser) Options() Options {
	o := p.opts
	o.Tags = append([]string(nil), p.opts.Tags...)
	o.CommentTokens = append([]string(nil), p.opts.CommentTokens...)
	return o
}

// Tags returns the recognized tags in canonical form.
func (p *Parser) Tags() []string {
	return append([]string(nil), p.opts.Tags...)
}

// ParseLine matches a single line.
func (p *Parser) ParseLine(line string) (Match, bool) {
	if p.regex == nil {
		return Match{}, false
	}

	m := p.regex.FindStringSubmatch(line)
	if m == nil {
		return Match{}, false
	}

	text := strings.TrimSpace(m[groupText])
	if p.opts.StripClosers {
		text = stripClosers(text)
	}

	return Match{
		Tag:      strings.ToUpper(m[groupTag]),
		DueText:  m[groupDue],
		Severity: m[groupSeverity],
		Text:     text,
	}, true
}

// Parse returns one record per matching line. Line numbers are zero-based.
func (p *Parser) Parse(path string, lines []string) []task.Record {
	if p.regex == nil {
		return nil
	}

	var records []task.Record
	for i, line := range lines {
		m, ok := p.ParseLine(line)
		if !ok {
			continue
		}
		records = append(records, m.Record(task.Location{Path: path, Line: i}))
	}
	return records
}

// Record builds a task record for the match at loc.
func (m Match) Record(loc task.Location) task.Record {
	return task.Record{
		Tag:            m.Tag,
		Location:       loc,
		Text:           m.Text,
		Severity:       ParseSeverity(m.Severity),
		SeverityMarked: m.Severity != "",
		DueText:        m.DueText,
		DueDate:        ParseDueDate(m.DueText),
	}
}

// ParseSeverity maps '!' to high, '?' to low and anything else to medium.
func ParseSeverity(marker string) task.Severity {
	switch marker {
	case "!":
		return task.SeverityHigh
	case "?":
		return task.SeverityLow
	default:
		return task.SeverityMedium
	}
}

// ParseDueDate parses a YYYY-MM-DD date. Invalid dates return nil.
func ParseDueDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	d, err := time.Parse(task.DateLayout, s)
	if err != nil {
		return nil
	}
	return &d
}

// buildPattern assembles the composite marker expression.
func buildPattern(tags, tokens []string, anchor Anchor) string {
	var b strings.Builder
	b.WriteString("(?i)")
	if anchor == AnchorLineStart {
		b.WriteString(`^\s*`)
	}

	b.WriteString("(?:")
	b.WriteString(alternation(tokens))
	b.WriteString(`)\s*`)

	b.WriteString("(")
	for i, tag := range tags {
		if i > 0 {
			b.WriteString("|")
		}
		b.WriteString(regexp.QuoteMeta(tag))
		if endsInWordChar(tag) {
			b.WriteString(`\b`)
		}
	}
	b.WriteString(")")

	b.WriteString(`(?:\((\d{4}-\d{2}-\d{2})\))?`)
	b.WriteString(`([!?])?`)
	b.WriteString(`\s*[:\-]?\s*(.*)`)
	return b.String()
}

// alternation quotes and joins items, longest first.
func alternation(items []string) string {
	sorted := append([]string(nil), items...)
	sortLongestFirst(sorted)
	quoted := make([]string, len(sorted))
	for i, s := range sorted {
		quoted[i] = regexp.QuoteMeta(s)
	}
	return strings.Join(quoted, "|")
}

// normalize trims, drops empties and duplicates, optionally upper-cases,
// and orders longest first so alternations prefer the longest tag.
func normalize(items []string, upper bool) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if upper {
			s = strings.ToUpper(s)
		}
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sortLongestFirst(out)
	return out
}

func sortLongestFirst(items []string) {
	sort.SliceStable(items, func(i, j int) bool {
		return utf8.RuneCountInString(items[i]) > utf8.RuneCountInString(items[j])
	})
}

func endsInWordChar(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r == '_' || (r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)))
}

func stripClosers(text string) string {
	for _, c := range closers {
		if strings.HasSuffix(text, c) {
			return strings.TrimSpace(strings.TrimSuffix(text, c))
		}
	}
	return text
}
