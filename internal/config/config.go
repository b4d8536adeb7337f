// Package config loads taskaroo settings.
//
// Sources are applied in increasing precedence:
//
//	1. Built-in defaults
//	2. Workspace config file (taskaroo.toml or .taskaroo.yaml)
//	3. Workspace .env file (never overrides the process environment)
//	4. TASKAROO_* environment variables
//	5. Command line flags (applied by the caller)
package config

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/dshills/taskaroo/internal/logging"
	"github.com/dshills/taskaroo/internal/marker"
	"github.com/dshills/taskaroo/internal/project/watcher"
	"github.com/dshills/taskaroo/internal/scan"
	"github.com/dshills/taskaroo/internal/task"
)

// Duration is a time.Duration written as a string such as "500ms".
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalYAML parses a duration scalar.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// WatchConfig configures file watching.
type WatchConfig struct {
	Enabled  bool     `toml:"enabled" yaml:"enabled"`
	Debounce Duration `toml:"debounce" yaml:"debounce"`
}

// HooksConfig configures the task hook script.
type HooksConfig struct {
	Script string `toml:"script" yaml:"script"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
	JSON  bool   `toml:"json" yaml:"json"`
}

// Config holds all taskaroo settings.
type Config struct {
	Tags          []string `toml:"tags" yaml:"tags"`
	CommentTokens []string `toml:"comment_tokens" yaml:"comment_tokens"`
	Anchor        string   `toml:"anchor" yaml:"anchor"`
	StripClosers  bool     `toml:"strip_closers" yaml:"strip_closers"`

	Include     []string `toml:"include" yaml:"include"`
	Exclude     []string `toml:"exclude" yaml:"exclude"`
	MaxFileSize int64    `toml:"max_file_size" yaml:"max_file_size"`

	GroupBy string `toml:"group_by" yaml:"group_by"`
	Filter  string `toml:"filter" yaml:"filter"`
	Locale  string `toml:"locale" yaml:"locale"`

	Watch WatchConfig `toml:"watch" yaml:"watch"`
	Hooks HooksConfig `toml:"hooks" yaml:"hooks"`
	Log   LogConfig   `toml:"log" yaml:"log"`

	// Source is the config file that was loaded, if any.
	Source string `toml:"-" yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Tags:          append([]string(nil), marker.DefaultTags...),
		CommentTokens: append([]string(nil), marker.DefaultCommentTokens...),
		Anchor:        string(marker.AnchorAnywhere),
		StripClosers:  true,
		Include:       append([]string(nil), scan.DefaultInclude...),
		Exclude:       append([]string(nil), scan.DefaultExclude...),
		MaxFileSize:   scan.DefaultMaxFileSize,
		GroupBy:       string(task.GroupByFile),
		Locale:        "und",
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: Duration(watcher.DefaultDebounce),
		},
		Log: LogConfig{Level: "warn"},
	}
}

// Normalize canonicalises list settings: tags are upper-cased, blanks are
// dropped and duplicates removed.
func (c *Config) Normalize() {
	c.Tags = dedupe(c.Tags, strings.ToUpper)
	c.CommentTokens = dedupe(c.CommentTokens, nil)
	c.Include = dedupe(c.Include, nil)
	c.Exclude = dedupe(c.Exclude, nil)
	c.Anchor = strings.ToLower(strings.TrimSpace(c.Anchor))
	c.GroupBy = strings.ToLower(strings.TrimSpace(c.GroupBy))
}

// Validate checks every setting and reports all failures at once.
func (c *Config) Validate() error {
	var errs ValidationErrors
	fail := func(path, msg string, value any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: value})
	}

	if _, err := task.ParseGroupBy(c.GroupBy); err != nil {
		fail("group_by", "must be file or tag", c.GroupBy)
	}
	if _, err := marker.ParseAnchor(c.Anchor); err != nil {
		fail("anchor", "must be anywhere or line-start", c.Anchor)
	}
	if c.MaxFileSize < 0 {
		fail("max_file_size", "must not be negative", c.MaxFileSize)
	}
	if c.Watch.Debounce < 0 {
		fail("watch.debounce", "must not be negative", c.Watch.Debounce.Std())
	}
	if _, err := language.Parse(c.Locale); c.Locale != "" && err != nil {
		fail("locale", "not a BCP 47 language tag", c.Locale)
	}
	if c.Log.Level != "" && !logging.ValidLevel(c.Log.Level) {
		fail("log.level", "must be debug, info, warn or error", c.Log.Level)
	}
	for _, tag := range c.Tags {
		if strings.ContainsAny(tag, " \t") {
			fail("tags", "must not contain whitespace", tag)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// MarkerOptions returns the parser options.
func (c *Config) MarkerOptions() marker.Options {
	anchor, err := marker.ParseAnchor(c.Anchor)
	if err != nil {
		anchor = marker.AnchorAnywhere
	}
	return marker.Options{
		Tags:          append([]string(nil), c.Tags...),
		CommentTokens: append([]string(nil), c.CommentTokens...),
		Anchor:        anchor,
		StripClosers:  c.StripClosers,
	}
}

// ScanConfig returns the scanner configuration for root.
func (c *Config) ScanConfig(root string) scan.Config {
	return scan.Config{
		Root:        root,
		Include:     append([]string(nil), c.Include...),
		Exclude:     append([]string(nil), c.Exclude...),
		MaxFileSize: c.MaxFileSize,
	}
}

// GroupMode returns the grouping mode, defaulting to by-file.
func (c *Config) GroupMode() task.GroupBy {
	mode, err := task.ParseGroupBy(c.GroupBy)
	if err != nil {
		return task.GroupByFile
	}
	return mode
}

// Language returns the collation language, defaulting to und.
func (c *Config) Language() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.Und
	}
	return tag
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() logging.LogLevel {
	return logging.ParseLogLevel(c.Log.Level)
}

// String summarises where the configuration came from.
func (c *Config) String() string {
	src := c.Source
	if src == "" {
		src = "defaults"
	}
	return fmt.Sprintf("config(%s, tags=%s, group_by=%s)", src, strings.Join(c.Tags, ","), c.GroupBy)
}

func dedupe(items []string, transform func(string) string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if transform != nil {
			item = transform(item)
		}
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
