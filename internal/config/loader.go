package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileNames are the config files looked up in the workspace, in order.
var FileNames = []string{"taskaroo.toml", ".taskaroo.toml", ".taskaroo.yaml", ".taskaroo.yml"}

// EnvPrefix is the prefix of environment variables read by the loader.
const EnvPrefix = "TASKAROO_"

// LookupFunc looks up an environment variable.
type LookupFunc func(key string) (string, bool)

// Loader builds a Config from files and the environment.
type Loader struct {
	// Workspace is searched for config and .env files.
	Workspace string

	// Path names an explicit config file. It must exist.
	Path string

	// Lookup reads the process environment. Defaults to os.LookupEnv.
	Lookup LookupFunc
}

// Load builds a configuration for workspace, reading path if it is not
// empty, and validates it.
func Load(workspace, path string) (*Config, error) {
	l := &Loader{Workspace: workspace, Path: path}
	cfg, err := l.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load applies every source over the defaults. The result is normalised
// but not validated, so callers can apply flags first.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	path, err := l.findFile()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
		cfg.Source = path
	}

	lookup, err := l.envLookup()
	if err != nil {
		return nil, err
	}
	if err := NewEnvLoader(EnvPrefix, lookup).Apply(cfg); err != nil {
		return nil, err
	}

	cfg.Normalize()
	return cfg, nil
}

func (l *Loader) findFile() (string, error) {
	if l.Path != "" {
		if _, err := os.Stat(l.Path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("%w: %s", ErrFileNotFound, l.Path)
			}
			return "", err
		}
		return l.Path, nil
	}
	for _, name := range FileNames {
		p := filepath.Join(l.Workspace, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// envLookup layers the workspace .env file beneath the process
// environment.
func (l *Loader) envLookup() (LookupFunc, error) {
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	dotenv := filepath.Join(l.Workspace, ".env")
	vars, err := godotenv.Read(dotenv)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return lookup, nil
		}
		return nil, &ParseError{Path: dotenv, Message: err.Error(), Err: err}
	}

	return func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := vars[key]
		return v, ok
	}, nil
}

// LoadFile decodes a TOML or YAML file over cfg. Unknown keys are errors.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return decodeTOML(cfg, path, bytes.NewReader(data))
	case ".yaml", ".yml":
		return decodeYAML(cfg, path, bytes.NewReader(data))
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func decodeTOML(cfg *Config, path string, r io.Reader) error {
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		pe := &ParseError{Path: path, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			pe.Line, _ = derr.Position()
		}
		return pe
	}
	return nil
}

func decodeYAML(cfg *Config, path string, r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &ParseError{Path: path, Message: err.Error(), Err: err}
	}
	return nil
}
