// Package config loads the engine configuration from hostinterop.yaml.
//
// The file tunes dispatch caching and coercion, sets up logging and declares
// per-class overload groups and hidden members:
//
//	dispatch:
//	  cache_limit: 3
//	  lossless_narrowing: true
//	log:
//	  level: debug
//	classes:
//	  - type: "*bytes.Buffer"
//	    overloads:
//	      write: [Write, WriteString, WriteByte, WriteRune]
//	    hidden: [Grow]
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level hostinterop.yaml configuration.
type Config struct {
	Dispatch DispatchConfig `yaml:"dispatch"`
	Log      LogConfig      `yaml:"log"`
	// Classes lists per-class member customizations.
	Classes []ClassConfig `yaml:"classes,omitempty"`
}

// DispatchConfig tunes call-site caching and argument coercion.
type DispatchConfig struct {
	// CacheLimit is the number of argument shapes a call site caches before
	// it falls back to resolving every call. Defaults to 3.
	CacheLimit *int `yaml:"cache_limit,omitempty"`

	// LosslessNarrowing lets a number that fits a narrower parameter exactly
	// convert at strict priority. Defaults to true.
	LosslessNarrowing *bool `yaml:"lossless_narrowing,omitempty"`
}

// LogConfig configures the zap logger built by NewLogger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level,omitempty"`

	// Development switches to the human-readable console encoder.
	Development bool `yaml:"development,omitempty"`
}

// ClassConfig customizes the members of one registered host type.
type ClassConfig struct {
	// Type is the Go type name as printed by reflect (e.g. "*bytes.Buffer").
	Type string `yaml:"type"`

	// Overloads maps a guest member name to the Go methods grouped under it.
	Overloads map[string][]string `yaml:"overloads,omitempty"`

	// Hidden lists members that are not exposed to guests.
	Hidden []string `yaml:"hidden,omitempty"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// LoadConfig reads and parses a hostinterop.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses hostinterop.yaml content from bytes.
// The path argument is used only for error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for hostinterop.yaml starting from dir and walking up
// to parent directories.
// Returns the path to the config file, or empty string if not found.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return "", nil
		}
		dir = parent
	}
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	if l := c.Dispatch.CacheLimit; l != nil && *l < 0 {
		return fmt.Errorf("%s: dispatch.cache_limit must not be negative, got %d", path, *l)
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s: log.level %q is not one of debug, info, warn, error", path, c.Log.Level)
	}

	seenTypes := make(map[string]int)
	for i, cls := range c.Classes {
		if cls.Type == "" {
			return fmt.Errorf("%s: classes[%d]: type is required", path, i)
		}
		if prev, ok := seenTypes[cls.Type]; ok {
			return fmt.Errorf("%s: classes[%d]: type %q already configured in classes[%d]",
				path, i, cls.Type, prev)
		}
		seenTypes[cls.Type] = i

		for name, methods := range cls.Overloads {
			if name == "" {
				return fmt.Errorf("%s: classes[%d] (%s): overload name is empty", path, i, cls.Type)
			}
			if len(methods) == 0 {
				return fmt.Errorf("%s: classes[%d] (%s): overload %q lists no methods",
					path, i, cls.Type, name)
			}
		}
	}

	return nil
}

// setDefaults fills in default values for omitted fields.
func (c *Config) setDefaults() {
	if c.Dispatch.CacheLimit == nil {
		limit := DefaultCacheLimit
		c.Dispatch.CacheLimit = &limit
	}
	if c.Dispatch.LosslessNarrowing == nil {
		lossless := DefaultLosslessNarrowing
		c.Dispatch.LosslessNarrowing = &lossless
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// CacheLimit returns the effective call-site cache limit.
func (c *Config) CacheLimit() int {
	if c.Dispatch.CacheLimit == nil {
		return DefaultCacheLimit
	}
	return *c.Dispatch.CacheLimit
}

// LosslessNarrowing returns the effective narrowing policy.
func (c *Config) LosslessNarrowing() bool {
	if c.Dispatch.LosslessNarrowing == nil {
		return DefaultLosslessNarrowing
	}
	return *c.Dispatch.LosslessNarrowing
}

// Class returns the customization of a type, if any.
func (c *Config) Class(typeName string) (ClassConfig, bool) {
	for _, cls := range c.Classes {
		if cls.Type == typeName {
			return cls, true
		}
	}
	return ClassConfig{}, false
}
