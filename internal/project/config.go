package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied when keli.toml or flags leave a value unset.
const (
	DefaultCompiler      = "keli-compiler-exe"
	DefaultTimeout       = 15 * time.Second
	DefaultScratchPrefix = "__temp__"
	DefaultDebounce      = 150 * time.Millisecond
	DefaultMaxProblems   = 1000
	DefaultLogLevel      = "info"
)

// EnvCompiler overrides [compiler].path.
const EnvCompiler = "KELI_COMPILER"

// Duration decodes TOML strings such as "150ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("negative duration %q", text)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the decoded keli.toml.
type Config struct {
	Compiler CompilerConfig `toml:"compiler"`
	LSP      LSPConfig      `toml:"lsp"`
	Log      LogConfig      `toml:"log"`
}

type CompilerConfig struct {
	Path          string   `toml:"path"`
	Timeout       Duration `toml:"timeout"`
	ScratchPrefix string   `toml:"scratch_prefix"`
}

type LSPConfig struct {
	Debounce    Duration `toml:"debounce"`
	MaxProblems int      `toml:"max_problems"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns the configuration used when no manifest exists.
func DefaultConfig() Config {
	return Config{
		Compiler: CompilerConfig{
			Path:          DefaultCompiler,
			Timeout:       Duration{DefaultTimeout},
			ScratchPrefix: DefaultScratchPrefix,
		},
		LSP: LSPConfig{
			Debounce:    Duration{DefaultDebounce},
			MaxProblems: DefaultMaxProblems,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// Manifest is a located and decoded keli.toml.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

// LoadConfig decodes path on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("compiler", "path") && strings.TrimSpace(cfg.Compiler.Path) == "" {
		return Config{}, fmt.Errorf("%s: [compiler].path is empty", path)
	}
	if cfg.Compiler.Timeout.Duration <= 0 {
		return Config{}, fmt.Errorf("%s: [compiler].timeout must be positive", path)
	}
	if cfg.LSP.MaxProblems < 0 {
		return Config{}, fmt.Errorf("%s: [lsp].max_problems must not be negative", path)
	}
	return cfg, nil
}

// Load finds keli.toml from startDir upwards. When none exists the defaults
// are returned with ok=false.
func Load(startDir string) (*Manifest, bool, error) {
	manifestPath, ok, err := FindManifest(startDir)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return &Manifest{Config: DefaultConfig()}, false, nil
	}
	return LoadFile(manifestPath)
}

// LoadFile decodes an explicit manifest path.
func LoadFile(path string) (*Manifest, bool, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, true, err
	}
	return &Manifest{
		Path:   path,
		Root:   filepath.Dir(path),
		Config: cfg,
	}, true, nil
}

// ApplyEnv overlays environment overrides.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvCompiler)); v != "" {
		c.Compiler.Path = v
	}
}
