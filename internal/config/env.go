package config

import (
	"strconv"
	"strings"
)

// EnvLoader applies prefixed environment variables to a Config.
type EnvLoader struct {
	prefix string
	lookup LookupFunc
}

// NewEnvLoader creates an environment loader. The prefix should include
// the trailing underscore (e.g., "TASKAROO_").
func NewEnvLoader(prefix string, lookup LookupFunc) *EnvLoader {
	return &EnvLoader{prefix: prefix, lookup: lookup}
}

// envSetter parses one variable into the config.
type envSetter func(cfg *Config, value string) error

// envMapping maps variable names (without prefix) to setters.
var envMapping = map[string]envSetter{
	"TAGS":           func(c *Config, v string) error { c.Tags = splitList(v); return nil },
	"COMMENT_TOKENS": func(c *Config, v string) error { c.CommentTokens = splitList(v); return nil },
	"ANCHOR":         func(c *Config, v string) error { c.Anchor = v; return nil },
	"STRIP_CLOSERS":  func(c *Config, v string) error { return setBool(&c.StripClosers, v) },
	"INCLUDE":        func(c *Config, v string) error { c.Include = splitList(v); return nil },
	"EXCLUDE":        func(c *Config, v string) error { c.Exclude = splitList(v); return nil },
	"MAX_FILE_SIZE": func(c *Config, v string) error {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return err
		}
		c.MaxFileSize = n
		return nil
	},
	"GROUP_BY":       func(c *Config, v string) error { c.GroupBy = v; return nil },
	"FILTER":         func(c *Config, v string) error { c.Filter = v; return nil },
	"LOCALE":         func(c *Config, v string) error { c.Locale = v; return nil },
	"WATCH_ENABLED":  func(c *Config, v string) error { return setBool(&c.Watch.Enabled, v) },
	"WATCH_DEBOUNCE": func(c *Config, v string) error { return c.Watch.Debounce.UnmarshalText([]byte(v)) },
	"HOOKS_SCRIPT":   func(c *Config, v string) error { c.Hooks.Script = v; return nil },
	"LOG_LEVEL":      func(c *Config, v string) error { c.Log.Level = v; return nil },
	"LOG_JSON":       func(c *Config, v string) error { return setBool(&c.Log.JSON, v) },
}

// EnvNames returns the full names of the recognised variables.
func (l *EnvLoader) EnvNames() []string {
	names := make([]string, 0, len(envMapping))
	for name := range envMapping {
		names = append(names, l.prefix+name)
	}
	return names
}

// Apply sets every recognised variable that is present. Empty values are
// treated as set.
func (l *EnvLoader) Apply(cfg *Config) error {
	for name, set := range envMapping {
		full := l.prefix + name
		val, ok := l.lookup(full)
		if !ok {
			continue
		}
		if err := set(cfg, val); err != nil {
			return &ParseError{Path: "env:" + full, Message: err.Error(), Err: err}
		}
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setBool(dst *bool, s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		*dst = true
	case "false", "no", "off", "0":
		*dst = false
	default:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		*dst = b
	}
	return nil
}
