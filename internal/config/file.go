package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFile represents the structure of orchestrator.yaml
type ConfigFile struct {
	IdentificationModulesDir string `yaml:"identification_modules_dir"`
	ExplorationModulesDir    string `yaml:"exploration_modules_dir"`
	JavaBinary               string `yaml:"java_binary"`
	Concurrency              int    `yaml:"concurrency"`
	Verbosity                string `yaml:"verbosity"`

	Exploration ExplorationFileConfig `yaml:"exploration"`
	Journal     JournalFileConfig     `yaml:"journal"`
}

// ExplorationFileConfig is the exploration section of the config file.
type ExplorationFileConfig struct {
	MaxSolutions     int64  `yaml:"max_solutions"`
	TotalTimeout     string `yaml:"total_timeout"`   // Duration string like "30s", "2h"
	TimeResolution   string `yaml:"time_resolution"` // Duration string like "500ms"
	MemoryResolution int    `yaml:"memory_resolution"`
}

// JournalFileConfig is the journal section of the config file.
type JournalFileConfig struct {
	Enabled  *bool  `yaml:"enabled"`
	Path     string `yaml:"path"`
	KeepRuns *int   `yaml:"keep_runs"`
}

// Load resolves the configuration for runDir: defaults, then the config file
// (explicitPath, or <runDir>/orchestrator.yaml when empty), then the
// environment. A missing default file is not an error; a missing explicit
// file is.
func Load(runDir, explicitPath string) (*Config, error) {
	cfg := Default(runDir)

	path := explicitPath
	if path == "" {
		path = filepath.Join(runDir, FileName)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		var file ConfigFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		if err := file.Apply(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Apply overrides cfg with every setting present in the file.
func (cf *ConfigFile) Apply(cfg *Config) error {
	if cf.IdentificationModulesDir != "" {
		cfg.IdentificationModulesDir = cf.IdentificationModulesDir
	}
	if cf.ExplorationModulesDir != "" {
		cfg.ExplorationModulesDir = cf.ExplorationModulesDir
	}
	if cf.JavaBinary != "" {
		cfg.JavaBinary = cf.JavaBinary
	}
	if cf.Concurrency != 0 {
		cfg.Concurrency = cf.Concurrency
	}
	if cf.Verbosity != "" {
		cfg.Verbosity = cf.Verbosity
	}

	if cf.Exploration.MaxSolutions != 0 {
		cfg.Exploration.MaxSolutions = cf.Exploration.MaxSolutions
	}
	if cf.Exploration.TotalTimeout != "" {
		d, err := parseDuration(cf.Exploration.TotalTimeout)
		if err != nil {
			return fmt.Errorf("invalid exploration.total_timeout: %w", err)
		}
		cfg.Exploration.TotalTimeout = d
	}
	if cf.Exploration.TimeResolution != "" {
		d, err := parseDuration(cf.Exploration.TimeResolution)
		if err != nil {
			return fmt.Errorf("invalid exploration.time_resolution: %w", err)
		}
		cfg.Exploration.TimeResolution = d
	}
	if cf.Exploration.MemoryResolution != 0 {
		cfg.Exploration.MemoryResolution = cf.Exploration.MemoryResolution
	}

	if cf.Journal.Enabled != nil {
		cfg.Journal.Enabled = *cf.Journal.Enabled
	}
	if cf.Journal.Path != "" {
		cfg.Journal.Path = cf.Journal.Path
	}
	if cf.Journal.KeepRuns != nil {
		cfg.Journal.KeepRuns = *cf.Journal.KeepRuns
	}
	return nil
}

// parseDuration accepts Go durations plus a "d" (days) suffix.
func parseDuration(s string) (time.Duration, error) {
	if n := len(s); n > 1 && s[n-1] == 'd' {
		if days, err := strconv.Atoi(s[:n-1]); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}
