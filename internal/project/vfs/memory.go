package vfs

import (
	"errors"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"
)

var errIsDir = syscall.EISDIR

// MemFS implements FS in memory. Directories are implied by the files
// stored beneath them. Paths are slash-separated and rooted at "/".
//
// MemFS is safe for concurrent use.
type MemFS struct {
	mu    sync.RWMutex
	files map[string]*memFile
	clock func() time.Time
}

type memFile struct {
	content []byte
	mode    fs.FileMode
	modTime time.Time
}

// NewMemFS creates an empty in-memory file system.
func NewMemFS() *MemFS {
	return &MemFS{
		files: make(map[string]*memFile),
		clock: time.Now,
	}
}

// Ensure MemFS implements FS.
var _ FS = (*MemFS)(nil)

// SetClock overrides the time source used for modification times.
func (m *MemFS) SetClock(clock func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

// AddFile stores content at filePath, creating parent directories.
func (m *MemFS) AddFile(filePath, content string) {
	_ = m.WriteFile(filePath, []byte(content), 0o644)
}

// ReadFile reads the entire file content.
func (m *MemFS) ReadFile(filePath string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath = clean(filePath)
	f, ok := m.files[filePath]
	if !ok {
		if m.isDirLocked(filePath) {
			return nil, &fs.PathError{Op: "read", Path: filePath, Err: errIsDir}
		}
		return nil, &fs.PathError{Op: "read", Path: filePath, Err: fs.ErrNotExist}
	}

	content := make([]byte, len(f.content))
	copy(content, f.content)
	return content, nil
}

// WriteFile writes data to a file, creating it and its parents if necessary.
func (m *MemFS) WriteFile(filePath string, data []byte, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	filePath = clean(filePath)
	if m.isDirLocked(filePath) {
		return &fs.PathError{Op: "write", Path: filePath, Err: errIsDir}
	}

	content := make([]byte, len(data))
	copy(content, data)
	m.files[filePath] = &memFile{content: content, mode: perm, modTime: m.clock()}
	return nil
}

// Remove deletes a file.
func (m *MemFS) Remove(filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	filePath = clean(filePath)
	if _, ok := m.files[filePath]; !ok {
		return &fs.PathError{Op: "remove", Path: filePath, Err: fs.ErrNotExist}
	}
	delete(m.files, filePath)
	return nil
}

// Stat returns file information.
func (m *MemFS) Stat(filePath string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath = clean(filePath)
	if f, ok := m.files[filePath]; ok {
		return NewFileInfo(filePath, int64(len(f.content)), f.mode, f.modTime), nil
	}
	if m.isDirLocked(filePath) {
		return NewFileInfo(filePath, 0, fs.ModeDir|0o755, time.Time{}), nil
	}
	return FileInfo{}, &fs.PathError{Op: "stat", Path: filePath, Err: fs.ErrNotExist}
}

// WalkDir walks the tree rooted at root in lexical path order.
func (m *MemFS) WalkDir(root string, fn WalkFunc) error {
	root = clean(root)
	rootInfo, err := m.Stat(root)
	if err != nil {
		return fn(root, FileInfo{}, err)
	}

	entries := []FileInfo{rootInfo}
	if rootInfo.IsDir() {
		entries = append(entries, m.below(root)...)
	}

	skipped := ""
	for _, info := range entries {
		p := info.Path()
		if skipped != "" && strings.HasPrefix(p, skipped) {
			continue
		}
		if err := fn(p, info, nil); err != nil {
			switch {
			case errors.Is(err, SkipAll):
				return nil
			case errors.Is(err, SkipDir) && info.IsDir():
				skipped = strings.TrimSuffix(p, "/") + "/"
			case errors.Is(err, SkipDir):
				// SkipDir on a file skips the rest of its directory.
				skipped = strings.TrimSuffix(path.Dir(p), "/") + "/"
			default:
				return err
			}
		}
	}
	return nil
}

// below returns every file and directory strictly under dir, sorted.
func (m *MemFS) below(dir string) []FileInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := strings.TrimSuffix(dir, "/") + "/"
	dirs := make(map[string]bool)
	var out []FileInfo

	for p, f := range m.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		out = append(out, NewFileInfo(p, int64(len(f.content)), f.mode, f.modTime))
		for d := path.Dir(p); len(d) > len(dir) && strings.HasPrefix(d, prefix); d = path.Dir(d) {
			dirs[d] = true
		}
	}
	for d := range dirs {
		out = append(out, NewFileInfo(d, 0, fs.ModeDir|0o755, time.Time{}))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path() < out[j].Path() })
	return out
}

// isDirLocked reports whether any file lives under dir. Caller holds mu.
func (m *MemFS) isDirLocked(dir string) bool {
	if dir == "/" {
		return true
	}
	prefix := dir + "/"
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func clean(p string) string {
	p = path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	return p
}
