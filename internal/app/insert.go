package app

import (
	"bytes"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dshills/taskaroo/internal/project/vfs"
	"github.com/dshills/taskaroo/internal/task"
)

// CommentStyle is the line comment syntax of a file type.
type CommentStyle struct {
	Open  string
	Close string
}

// Format renders body as a comment.
func (c CommentStyle) Format(body string) string {
	if c.Close == "" {
		return c.Open + " " + body
	}
	return c.Open + " " + body + " " + c.Close
}

var (
	slashComment = CommentStyle{Open: "//"}
	hashComment  = CommentStyle{Open: "#"}
	htmlComment  = CommentStyle{Open: "<!--", Close: "-->"}
	blockComment = CommentStyle{Open: "/*", Close: "*/"}
)

// CommentSyntax returns the comment style for a file name by extension.
func CommentSyntax(path string) CommentStyle {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "py", "sh", "bash", "rb", "yaml", "yml", "toml", "pl", "r":
		return hashComment
	case "html", "htm", "xml", "md", "vue", "svelte":
		return htmlComment
	case "css", "scss", "less":
		return blockComment
	default:
		return slashComment
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// InsertMarker writes "TAG: text" as a comment above the one-based line.
// Line may be one past the last line to append. The new line copies the
// indentation of the line it lands above and the file's line ending.
func InsertMarker(fsys vfs.FS, path string, line int, tag, text string) error {
	info, err := fsys.Stat(path)
	if err != nil {
		return err
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return err
	}
	switch vfs.DetectEncoding(data) {
	case vfs.EncodingUTF16LE, vfs.EncodingUTF16BE:
		return fmt.Errorf("%w: %s", ErrUnsupportedEncoding, path)
	}
	if vfs.IsBinary(data) {
		return fmt.Errorf("%w: %s", ErrUnsupportedEncoding, path)
	}

	bom := bytes.HasPrefix(data, utf8BOM)
	data = bytes.TrimPrefix(data, utf8BOM)

	eol := "\n"
	if bytes.Contains(data, []byte("\r\n")) {
		eol = "\r\n"
	}
	trailing := len(data) > 0 && bytes.HasSuffix(data, []byte("\n"))

	lines := vfs.SplitLines(string(data))
	if line < 1 || line > len(lines)+1 {
		return fmt.Errorf("%w: %d (file has %d lines)", ErrInvalidLine, line, len(lines))
	}

	indent := ""
	if line <= len(lines) {
		indent = leadingSpace(lines[line-1])
	} else if len(lines) > 0 {
		indent = leadingSpace(lines[len(lines)-1])
	}

	body := strings.ToUpper(tag)
	if text = strings.TrimSpace(text); text != "" {
		body += ": " + text
	}
	comment := indent + CommentSyntax(path).Format(body)
	lines = slices.Insert(lines, line-1, comment)

	var buf bytes.Buffer
	if bom {
		buf.Write(utf8BOM)
	}
	buf.WriteString(strings.Join(lines, eol))
	if trailing || line == len(lines) {
		buf.WriteString(eol)
	}
	return fsys.WriteFile(path, buf.Bytes(), info.Mode().Perm())
}

func leadingSpace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

// AddMarker inserts a marker comment and rescans the file. found reports
// whether the configured parser recognizes the new comment.
func (app *Application) AddMarker(path string, line int, tag, text string) (rec task.Record, found bool, err error) {
	if app.closed.Load() {
		return rec, false, ErrClosed
	}
	tag = strings.ToUpper(strings.TrimSpace(tag))
	if !slices.Contains(app.parser.Tags(), tag) {
		return rec, false, NewOperationError("add", path, fmt.Errorf("%w: %q", ErrUnknownTag, tag))
	}

	resolved := app.ResolvePath(path)
	app.mu.Lock()
	err = InsertMarker(app.fs, resolved, line, tag, text)
	app.mu.Unlock()
	if err != nil {
		return rec, false, NewOperationError("add", path, err)
	}
	app.logger.Info("added %s at %s:%d", tag, resolved, line)

	records, err := app.scanner.ScanFile(resolved)
	if err != nil {
		return rec, false, NewOperationError("scan", path, err)
	}
	for _, r := range records {
		if r.Location.Line == line-1 {
			return r, true, nil
		}
	}
	return rec, false, nil
}
