// Package config loads cplr.toml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/xyproto/env/v2"
)

// FileName is the configuration file looked up from the working directory
// upwards.
const FileName = "cplr.toml"

// Config is the merged configuration.
type Config struct {
	Compiler CompilerConfig `toml:"compiler"`
	Defaults DefaultsConfig `toml:"defaults"`
	Dump     DumpConfig     `toml:"dump"`
	Cache    CacheConfig    `toml:"cache"`

	// Path is the file the configuration was read from, if any.
	Path string `toml:"-"`
}

type CompilerConfig struct {
	Command string   `toml:"command"`
	Flags   []string `toml:"flags"`
	// Jobs bounds parallel compilation of extra sources; 0 means one per CPU.
	Jobs int `toml:"jobs"`
}

type DefaultsConfig struct {
	SysIncludes []string `toml:"sysincludes"`
	Defines     []string `toml:"defines"`
}

type DumpConfig struct {
	// Filter is a shell command the dump is piped through. Empty selects
	// built-in line numbering.
	Filter string `toml:"filter"`
}

type CacheConfig struct {
	Dir      string `toml:"dir"`
	Disabled bool   `toml:"disabled"`
}

// Default returns the configuration used without a file.
func Default() Config {
	return Config{
		Compiler: CompilerConfig{
			Command: "cc",
			Flags:   []string{"-O0", "-g", "-Wall"},
		},
		Defaults: DefaultsConfig{
			SysIncludes: []string{
				"stdio.h", "stdlib.h", "stdint.h", "stdbool.h", "stddef.h",
				"string.h", "errno.h", "unistd.h", "fcntl.h", "ctype.h",
				"limits.h", "math.h", "time.h", "sys/types.h", "sys/stat.h",
			},
			Defines: []string{"_GNU_SOURCE"},
		},
	}
}

// Find walks up from startDir looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load returns the configuration for a run: defaults, then the file at
// path (or the one found from startDir when path is empty), then the
// environment.
func Load(path, startDir string) (Config, error) {
	cfg := Default()
	if path == "" {
		found, ok, err := Find(startDir)
		if err != nil {
			return Config{}, err
		}
		if ok {
			path = found
		}
	}
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
		cfg.Path = path
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if strings.TrimSpace(cfg.Compiler.Command) == "" {
		return fmt.Errorf("%s: [compiler].command must not be empty", path)
	}
	if cfg.Compiler.Jobs < 0 {
		return fmt.Errorf("%s: [compiler].jobs must not be negative", path)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Compiler.Command = env.Str("CPLR_CC", env.Str("CC", c.Compiler.Command))
	c.Dump.Filter = env.Str("CPLR_DUMP_FILTER", c.Dump.Filter)
	c.Cache.Dir = env.Str("CPLR_CACHE_DIR", c.Cache.Dir)
	if env.Bool("CPLR_NO_CACHE") {
		c.Cache.Disabled = true
	}
	if raw := env.Str("CPLR_JOBS"); raw != "" {
		jobs := env.Int("CPLR_JOBS", -1)
		if jobs < 0 {
			return fmt.Errorf("CPLR_JOBS must be a non-negative integer, got %q", raw)
		}
		c.Compiler.Jobs = jobs
	}
	return nil
}

// CacheDir returns the build cache directory: the configured one, or
// cplr under the user cache directory.
func (c Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	if xdg := env.Str("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "cplr"), nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate user cache dir: %w", err)
	}
	return filepath.Join(base, "cplr"), nil
}
