package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("{}"), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CacheLimit() != DefaultCacheLimit {
		t.Errorf("cache limit = %d, want %d", cfg.CacheLimit(), DefaultCacheLimit)
	}
	if cfg.LosslessNarrowing() != DefaultLosslessNarrowing {
		t.Errorf("lossless narrowing = %v, want %v", cfg.LosslessNarrowing(), DefaultLosslessNarrowing)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("log level = %q, want %q", cfg.Log.Level, DefaultLogLevel)
	}
}

func TestParseConfig_ValidFull(t *testing.T) {
	yaml := `
dispatch:
  cache_limit: 0
  lossless_narrowing: false
log:
  level: debug
  development: true
classes:
  - type: "*bytes.Buffer"
    overloads:
      write: [Write, WriteString]
    hidden: [Grow, Truncate]
`
	cfg, err := ParseConfig([]byte(yaml), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CacheLimit() != 0 {
		t.Errorf("cache limit = %d, want 0", cfg.CacheLimit())
	}
	if cfg.LosslessNarrowing() {
		t.Error("expected lossless narrowing to be off")
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Development {
		t.Errorf("log = %+v", cfg.Log)
	}
	cls, ok := cfg.Class("*bytes.Buffer")
	if !ok {
		t.Fatal("expected *bytes.Buffer class")
	}
	if got := cls.Overloads["write"]; len(got) != 2 || got[0] != "Write" || got[1] != "WriteString" {
		t.Errorf("write overloads = %v", got)
	}
	if len(cls.Hidden) != 2 {
		t.Errorf("hidden = %v", cls.Hidden)
	}
	if _, ok := cfg.Class("*strings.Builder"); ok {
		t.Error("unexpected *strings.Builder class")
	}
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"negative limit", "dispatch:\n  cache_limit: -1\n", "must not be negative"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"missing type", "classes:\n  - hidden: [X]\n", "type is required"},
		{"duplicate type", "classes:\n  - type: T\n  - type: T\n", "already configured"},
		{"empty overload", "classes:\n  - type: T\n    overloads:\n      f: []\n", "lists no methods"},
		{"bad yaml", "dispatch: [", "parsing test.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml), "test.yaml")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte("dispatch:\n  cache_limit: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CacheLimit() != 5 {
		t.Errorf("cache limit = %d, want 5", cfg.CacheLimit())
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFindConfig(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatal(err)
	}

	cfgPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(cfgPath, []byte("log:\n  level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	found, err := FindConfig(subDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != cfgPath {
		t.Errorf("found = %q, want %q", found, cfgPath)
	}

	otherDir := t.TempDir()
	found, err = FindConfig(otherDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != "" {
		t.Errorf("expected empty, got %q", found)
	}
}

func TestNewLogger(t *testing.T) {
	for _, lc := range []LogConfig{{}, {Level: "debug", Development: true}, {Level: "error"}} {
		l, err := NewLogger(lc)
		if err != nil {
			t.Fatalf("NewLogger(%+v): %v", lc, err)
		}
		l.Debug("probe")
	}
	if _, err := NewLogger(LogConfig{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}
