package lua

import (
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/taskaroo/internal/logging"
	"github.com/dshills/taskaroo/internal/task"
)

// TaskHookName is the global function called for every parsed task.
const TaskHookName = "on_task"

// Hook passes parsed task records through a user script's on_task
// function.
//
// on_task receives a table {tag, text, path, line, severity, due} with a
// one-based line. Returning false drops the record; returning a table may
// override severity ("low", "medium" or "high"); returning nothing or true
// keeps it unchanged.
type Hook struct {
	state  *State
	path   string
	active bool
}

// HookOption configures a Hook.
type HookOption func(*hookConfig)

type hookConfig struct {
	logger  *logging.Logger
	timeout []StateOption
}

// WithLogger routes the script's print output to the logger at info level.
func WithLogger(l *logging.Logger) HookOption {
	return func(c *hookConfig) { c.logger = l }
}

// WithTimeout bounds each script call.
func WithTimeout(d time.Duration) HookOption {
	return func(c *hookConfig) { c.timeout = append(c.timeout, WithExecutionTimeout(d)) }
}

// LoadHook runs the script at path and prepares its on_task function.
func LoadHook(path string, opts ...HookOption) (*Hook, error) {
	return newHook(path, func(s *State) error { return s.DoFile(path) }, opts...)
}

// NewHookFromString runs code as the hook script.
func NewHookFromString(code string, opts ...HookOption) (*Hook, error) {
	return newHook("<string>", func(s *State) error { return s.DoString(code) }, opts...)
}

func newHook(name string, load func(*State) error, opts ...HookOption) (*Hook, error) {
	cfg := &hookConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	state := NewState(cfg.timeout...)
	if cfg.logger != nil {
		log := cfg.logger.WithComponent("hook").WithField("script", name)
		state.SetPrint(func(msg string) { log.Info("%s", msg) })
	}

	if err := load(state); err != nil {
		state.Close()
		return nil, fmt.Errorf("loading hook script %s: %w", name, err)
	}

	return &Hook{
		state:  state,
		path:   name,
		active: state.HasFunction(TaskHookName),
	}, nil
}

// Active reports whether the script defines on_task.
func (h *Hook) Active() bool {
	return h.active
}

// Path returns the script location.
func (h *Hook) Path() string {
	return h.path
}

// Apply calls on_task for rec. Errors leave rec unchanged and kept.
func (h *Hook) Apply(rec task.Record) (task.Record, bool, error) {
	if !h.active {
		return rec, true, nil
	}

	ret, err := h.state.Call(TaskHookName, h.recordTable(rec))
	if err != nil {
		return rec, true, err
	}

	switch v := ret.(type) {
	case *lua.LNilType:
		return rec, true, nil
	case lua.LBool:
		return rec, bool(v), nil
	case *lua.LTable:
		return applyTable(rec, v)
	default:
		return rec, true, fmt.Errorf("%w: %s", ErrBadResult, ret.Type())
	}
}

// Close releases the Lua state.
func (h *Hook) Close() error {
	return h.state.Close()
}

func (h *Hook) recordTable(rec task.Record) *lua.LTable {
	t := h.state.NewTable()
	t.RawSetString("tag", lua.LString(rec.Tag))
	t.RawSetString("text", lua.LString(rec.Text))
	t.RawSetString("path", lua.LString(rec.Location.Path))
	t.RawSetString("line", lua.LNumber(rec.Location.Line+1))
	t.RawSetString("severity", lua.LString(rec.Severity.String()))
	if rec.DueText != "" {
		t.RawSetString("due", lua.LString(rec.DueText))
	}
	return t
}

func applyTable(rec task.Record, t *lua.LTable) (task.Record, bool, error) {
	sev := t.RawGetString("severity")
	if sev == lua.LNil {
		return rec, true, nil
	}
	s, ok := sev.(lua.LString)
	if !ok {
		return rec, true, fmt.Errorf("%w: severity must be a string, got %s", ErrBadResult, sev.Type())
	}
	parsed, ok := task.ParseSeverity(string(s))
	if !ok {
		return rec, true, fmt.Errorf("%w: unknown severity %q", ErrBadResult, string(s))
	}
	rec.Severity = parsed
	rec.SeverityMarked = parsed != task.SeverityMedium
	return rec, true, nil
}
