// Package config holds the orchestrator's settings.
//
// Settings are resolved in layers, later layers winning:
//
//  1. Defaults (Default)
//  2. The YAML file <run_dir>/orchestrator.yaml, or an explicit path
//  3. IDESYDE_* environment variables
//  4. Command-line flags (applied by the CLI)
//
// Validate is called once all layers are applied.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// FileName is the configuration file looked up inside a run directory.
const FileName = "orchestrator.yaml"

// Verbosity levels accepted by Config.Verbosity.
var Verbosities = []string{"debug", "info", "warn", "error"}

// Config is the full orchestrator configuration.
type Config struct {
	// RunDir is the run directory holding every header of the run.
	RunDir string

	// IdentificationModulesDir is scanned for identification modules.
	// Default: "imodules"
	IdentificationModulesDir string

	// ExplorationModulesDir is scanned for exploration modules.
	// Default: "emodules"
	ExplorationModulesDir string

	// JavaBinary launches JVM archive modules.
	// Default: "java"
	JavaBinary string

	// Concurrency is how many identification modules run at once within a
	// step. 1 runs them sequentially.
	// Default: 1, Range: 1-64
	Concurrency int

	Exploration ExplorationConfig
	Journal     JournalConfig

	// Verbosity is the log level: debug, info, warn or error.
	// Default: "info"
	Verbosity string
}

// ExplorationConfig bounds one exploration.
type ExplorationConfig struct {
	// MaxSolutions stops exploration after this many solutions. <= 0 is unbounded.
	MaxSolutions int64

	// TotalTimeout stops exploration after this much wall-clock time. 0 is unbounded.
	TotalTimeout time.Duration

	// TimeResolution is how finely explorers sample time; the gateway also
	// uses it as its progress reporting interval.
	// Default: 1s
	TimeResolution time.Duration

	// MemoryResolution in megabytes. 0 lets the explorer decide.
	MemoryResolution int
}

// JournalConfig controls the SQLite run journal.
type JournalConfig struct {
	// Enabled turns journaling on.
	// Default: true
	Enabled bool

	// Path of the database. Empty means <run_dir>/journal.db.
	Path string

	// KeepRuns is how many runs the journal retains. 0 keeps everything.
	// Default: 50, Range: 0-10000
	KeepRuns int
}

// Default returns the default configuration for runDir.
func Default(runDir string) *Config {
	return &Config{
		RunDir:                   runDir,
		IdentificationModulesDir: "imodules",
		ExplorationModulesDir:    "emodules",
		JavaBinary:               "java",
		Concurrency:              1,
		Exploration: ExplorationConfig{
			MaxSolutions:     0,
			TotalTimeout:     0,
			TimeResolution:   time.Second,
			MemoryResolution: 0,
		},
		Journal: JournalConfig{
			Enabled:  true,
			KeepRuns: 50,
		},
		Verbosity: "info",
	}
}

// JournalPath returns the effective journal location.
func (c *Config) JournalPath() string {
	if c.Journal.Path != "" {
		return c.Journal.Path
	}
	return filepath.Join(c.RunDir, "journal.db")
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RunDir) == "" {
		return fmt.Errorf("run_dir is required")
	}
	if strings.TrimSpace(c.JavaBinary) == "" {
		return fmt.Errorf("java_binary cannot be empty")
	}
	if c.Concurrency < 1 || c.Concurrency > 64 {
		return fmt.Errorf("concurrency must be between 1 and 64 (got %d)", c.Concurrency)
	}
	if c.Exploration.TotalTimeout < 0 {
		return fmt.Errorf("exploration.total_timeout cannot be negative (got %s)", c.Exploration.TotalTimeout)
	}
	if c.Exploration.TimeResolution < 0 {
		return fmt.Errorf("exploration.time_resolution cannot be negative (got %s)", c.Exploration.TimeResolution)
	}
	if c.Exploration.MemoryResolution < 0 {
		return fmt.Errorf("exploration.memory_resolution cannot be negative (got %d)", c.Exploration.MemoryResolution)
	}
	if c.Journal.KeepRuns < 0 || c.Journal.KeepRuns > 10000 {
		return fmt.Errorf("journal.keep_runs must be between 0 and 10000 (got %d)", c.Journal.KeepRuns)
	}
	if !validVerbosity(c.Verbosity) {
		return fmt.Errorf("verbosity must be one of %s (got %q)", strings.Join(Verbosities, ", "), c.Verbosity)
	}
	return nil
}

func validVerbosity(v string) bool {
	for _, known := range Verbosities {
		if strings.EqualFold(v, known) {
			return true
		}
	}
	return false
}

// String returns a human-readable representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{RunDir: %s, IModules: %s, EModules: %s, Java: %s, Concurrency: %d, "+
			"MaxSolutions: %d, TotalTimeout: %s, TimeResolution: %s, MemoryResolution: %dMB, "+
			"Journal: %t, Verbosity: %s}",
		c.RunDir, c.IdentificationModulesDir, c.ExplorationModulesDir, c.JavaBinary, c.Concurrency,
		c.Exploration.MaxSolutions, c.Exploration.TotalTimeout, c.Exploration.TimeResolution,
		c.Exploration.MemoryResolution, c.Journal.Enabled, c.Verbosity,
	)
}
