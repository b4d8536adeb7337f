package scan

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar"

	"github.com/dshills/taskaroo/internal/project/vfs"
)

// DefaultInclude matches the source files scanned when no include globs
// are configured.
var DefaultInclude = []string{"**/*.{ts,js,jsx,tsx,py,java,go,cs,cpp,c,h,html,rb,rs,php,sh}"}

// DefaultExclude skips dependency and VCS directories.
var DefaultExclude = []string{"**/node_modules/**", "**/.git/**"}

// probe is a synthetic path segment used to test whether an exclude glob
// covers everything below a directory.
const probe = "\x00"

// Enumerator lists the files of a tree that match include globs and no
// exclude glob. Globs are matched against root-relative slash paths.
type Enumerator struct {
	fs      vfs.FS
	include []string
	exclude []string
}

// NewEnumerator creates an enumerator. Empty include means DefaultInclude.
// Malformed globs are rejected.
func NewEnumerator(fsys vfs.FS, include, exclude []string) (*Enumerator, error) {
	if len(include) == 0 {
		include = DefaultInclude
	}
	for _, p := range append(append([]string(nil), include...), exclude...) {
		if _, err := doublestar.Match(p, "x"); err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", p, err)
		}
	}
	return &Enumerator{
		fs:      fsys,
		include: append([]string(nil), include...),
		exclude: append([]string(nil), exclude...),
	}, nil
}

// Included reports whether a root-relative slash path should be scanned.
func (e *Enumerator) Included(rel string) bool {
	return matchAny(e.include, rel) && !matchAny(e.exclude, rel)
}

// Excluded reports whether a root-relative slash path matches an exclude glob.
func (e *Enumerator) Excluded(rel string) bool {
	return matchAny(e.exclude, rel)
}

// Pruned reports whether every path below the directory rel is excluded,
// so the walk can skip it. A single glob must match both a direct child
// and a grandchild: "gen/*" excludes the files of gen but not gen/sub/b.go.
func (e *Enumerator) Pruned(rel string) bool {
	child := rel + "/" + probe
	grandchild := child + "/" + probe
	for _, p := range e.exclude {
		if ok, _ := doublestar.Match(p, child); !ok {
			continue
		}
		if ok, _ := doublestar.Match(p, grandchild); ok {
			return true
		}
	}
	return false
}

// Enumerate walks root and returns the matching regular files, sorted.
// Unreadable directories are skipped.
func (e *Enumerator) Enumerate(ctx context.Context, root string) ([]string, error) {
	var files []string
	err := e.fs.WalkDir(root, func(p string, info vfs.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}

		rel, relErr := Relative(root, p)
		if relErr != nil || rel == "." {
			return nil
		}
		if info.IsDir() {
			if e.Pruned(rel) {
				return vfs.SkipDir
			}
			return nil
		}
		if info.IsRegular() && e.Included(rel) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerating %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}

// Relative returns path relative to root in slash form.
func Relative(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
