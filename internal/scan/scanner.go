// Package scan enumerates project files, reads them and extracts task
// records with the marker parser.
package scan

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/taskaroo/internal/logging"
	"github.com/dshills/taskaroo/internal/marker"
	"github.com/dshills/taskaroo/internal/project/vfs"
	"github.com/dshills/taskaroo/internal/task"
)

// DefaultCacheSize is the number of files whose parsed records are cached.
const DefaultCacheSize = 4096

// Hook inspects each parsed record. Returning keep=false drops the record.
type Hook interface {
	Apply(rec task.Record) (out task.Record, keep bool, err error)
}

// Result is the outcome of one scan.
type Result struct {
	// ID identifies the scan in logs.
	ID uuid.UUID

	// Root is the scanned directory.
	Root string

	// Records are the tasks found, in enumeration order.
	Records []task.Record

	// Files is the number of files enumerated.
	Files int

	// CacheHits counts files served from the parse cache.
	CacheHits int

	// Failures lists the files that could not be scanned.
	Failures []*FileError

	// Duration is the wall time of the scan.
	Duration time.Duration

	// Superseded is set by Refresher when a newer refresh won.
	Superseded bool
}

type cacheEntry struct {
	modTime time.Time
	size    int64
	records []task.Record
}

// Config configures a scanner.
type Config struct {
	// Root is the directory to scan.
	Root string

	// Include and Exclude are doublestar globs over root-relative paths.
	Include []string
	Exclude []string

	// MaxFileSize is the largest file read, in bytes.
	MaxFileSize int64

	// CacheSize bounds the parse cache; zero means DefaultCacheSize.
	CacheSize int
}

// Option configures optional scanner collaborators.
type Option func(*Scanner)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithHook sets the record hook.
func WithHook(h Hook) Option {
	return func(s *Scanner) { s.hook = h }
}

// Scanner drives enumeration, reading and parsing. It is safe for
// concurrent use.
type Scanner struct {
	root   string
	enum   *Enumerator
	reader *Reader
	parser *marker.Parser
	hook   Hook
	cache  *lru.Cache[string, cacheEntry]
	logger *logging.Logger
}

// New creates a scanner over fsys.
func New(fsys vfs.FS, parser *marker.Parser, cfg Config, opts ...Option) (*Scanner, error) {
	enum, err := NewEnumerator(fsys, cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, err
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("creating parse cache: %w", err)
	}

	s := &Scanner{
		root:   cfg.Root,
		enum:   enum,
		reader: NewReader(fsys, cfg.MaxFileSize),
		parser: parser,
		cache:  cache,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("scan")
	return s, nil
}

// Root returns the scanned directory.
func (s *Scanner) Root() string {
	return s.root
}

// Enumerator returns the file enumerator.
func (s *Scanner) Enumerator() *Enumerator {
	return s.enum
}

// Scan enumerates the root and extracts records from every file.
// Per-file failures are collected in the result. Cancellation is checked
// between files.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{ID: uuid.New(), Root: s.root}
	log := s.logger.WithField("scan", res.ID.String())

	files, err := s.enum.Enumerate(ctx, s.root)
	if err != nil {
		return nil, err
	}
	res.Files = len(files)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, hit, failure := s.scanFile(path)
		if hit {
			res.CacheHits++
		}
		if failure != nil {
			res.Failures = append(res.Failures, failure)
			log.Warn("skipping %s: %v", path, failure.Err)
		}
		res.Records = append(res.Records, records...)
	}

	res.Duration = time.Since(start)
	log.Info("scanned %d files, %d tasks, %d failures in %s",
		res.Files, len(res.Records), len(res.Failures), res.Duration)
	return res, nil
}

// ScanFile extracts the records of a single file regardless of the
// include and exclude globs.
func (s *Scanner) ScanFile(path string) ([]task.Record, error) {
	records, _, failure := s.scanFile(path)
	if failure != nil {
		return records, failure
	}
	return records, nil
}

func (s *Scanner) scanFile(path string) ([]task.Record, bool, *FileError) {
	records, hit, err := s.parseFile(path)
	if err != nil {
		return nil, false, &FileError{Path: path, Err: err}
	}
	if s.hook == nil {
		return records, hit, nil
	}

	out := records[:0]
	var hookErr error
	for _, rec := range records {
		applied, keep, err := s.hook.Apply(rec)
		if err != nil {
			if hookErr == nil {
				hookErr = fmt.Errorf("%w: line %d: %v", ErrHook, rec.Location.Line+1, err)
			}
			out = append(out, rec)
			continue
		}
		if keep {
			out = append(out, applied)
		}
	}
	if hookErr != nil {
		return out, hit, &FileError{Path: path, Err: hookErr}
	}
	return out, hit, nil
}

// parseFile returns fresh records for path, from the cache when the file's
// mod time and size are unchanged.
func (s *Scanner) parseFile(path string) ([]task.Record, bool, error) {
	info, err := s.reader.Stat(path)
	if err != nil {
		return nil, false, err
	}
	if e, ok := s.cache.Get(path); ok && e.size == info.Size() && e.modTime.Equal(info.ModTime()) {
		return cloneRecords(e.records), true, nil
	}

	lines, err := s.reader.ReadLines(path)
	if err != nil {
		s.cache.Remove(path)
		return nil, false, err
	}
	records := s.parser.Parse(path, lines)
	s.cache.Add(path, cacheEntry{modTime: info.ModTime(), size: info.Size(), records: records})
	return cloneRecords(records), false, nil
}

// Purge empties the parse cache.
func (s *Scanner) Purge() {
	s.cache.Purge()
}

// Forget drops the cached records of the given paths and of every file
// below them. A same-size edit within the file system's timestamp
// granularity is invisible to the (mod time, size) check, so callers that
// know a path changed should forget it before the next scan.
func (s *Scanner) Forget(paths ...string) {
	if len(paths) == 0 {
		return
	}
	for _, key := range s.cache.Keys() {
		for _, p := range paths {
			if key == p || strings.HasPrefix(key, p+string(filepath.Separator)) {
				s.cache.Remove(key)
				break
			}
		}
	}
}

func cloneRecords(in []task.Record) []task.Record {
	if len(in) == 0 {
		return nil
	}
	out := make([]task.Record, len(in))
	for i, r := range in {
		if r.DueDate != nil {
			d := *r.DueDate
			r.DueDate = &d
		}
		out[i] = r
	}
	return out
}
