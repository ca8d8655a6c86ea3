package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default("run")

	assert.Equal(t, "imodules", cfg.IdentificationModulesDir)
	assert.Equal(t, "emodules", cfg.ExplorationModulesDir)
	assert.Equal(t, "java", cfg.JavaBinary)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, time.Second, cfg.Exploration.TimeResolution)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, filepath.Join("run", "journal.db"), cfg.JournalPath())
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default config is valid", func(*Config) {}, false},
		{"missing run dir", func(c *Config) { c.RunDir = " " }, true},
		{"empty java", func(c *Config) { c.JavaBinary = "" }, true},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, true},
		{"concurrency at maximum", func(c *Config) { c.Concurrency = 64 }, false},
		{"concurrency too high", func(c *Config) { c.Concurrency = 65 }, true},
		{"negative max solutions means unbounded", func(c *Config) { c.Exploration.MaxSolutions = -1 }, false},
		{"negative timeout", func(c *Config) { c.Exploration.TotalTimeout = -time.Second }, true},
		{"negative time resolution", func(c *Config) { c.Exploration.TimeResolution = -1 }, true},
		{"negative memory resolution", func(c *Config) { c.Exploration.MemoryResolution = -1 }, true},
		{"keep runs too high", func(c *Config) { c.Journal.KeepRuns = 10001 }, true},
		{"verbosity is case insensitive", func(c *Config) { c.Verbosity = "DEBUG" }, false},
		{"unknown verbosity", func(c *Config) { c.Verbosity = "chatty" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("run")
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadWithoutFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, Default(dir), cfg)
}

func TestLoadFromRunDir(t *testing.T) {
	dir := t.TempDir()
	content := `
identification_modules_dir: /opt/idesyde/imodules
java_binary: /usr/bin/java17
concurrency: 4
verbosity: debug
exploration:
  max_solutions: 10
  total_timeout: 2h
  time_resolution: 500ms
  memory_resolution: 128
journal:
  enabled: false
  keep_runs: 0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	cfg, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, "/opt/idesyde/imodules", cfg.IdentificationModulesDir)
	assert.Equal(t, "emodules", cfg.ExplorationModulesDir, "unset keys keep their default")
	assert.Equal(t, "/usr/bin/java17", cfg.JavaBinary)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "debug", cfg.Verbosity)
	assert.Equal(t, int64(10), cfg.Exploration.MaxSolutions)
	assert.Equal(t, 2*time.Hour, cfg.Exploration.TotalTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Exploration.TimeResolution)
	assert.Equal(t, 128, cfg.Exploration.MemoryResolution)
	assert.False(t, cfg.Journal.Enabled)
	assert.Equal(t, 0, cfg.Journal.KeepRuns)
}

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("exploration:\n  total_timeout: 1d\n"), 0o644))

	cfg, err := Load(filepath.Join(dir, "run"), path)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.Exploration.TotalTimeout)

	_, err = Load(dir, filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err, "an explicit file must exist")
}

func TestLoadRejectsBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("exploration:\n  total_timeout: soon\n"), 0o644))
	_, err := Load(dir, "")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("concurrency: [1, 2"), 0o644))
	_, err = Load(dir, "")
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("java_binary: /from/file\nconcurrency: 2\n"), 0o644))

	t.Setenv("IDESYDE_JAVA", "/from/env")
	t.Setenv("IDESYDE_MAX_SOLUTIONS", "3")
	t.Setenv("IDESYDE_TOTAL_TIMEOUT", "90s")
	t.Setenv("IDESYDE_JOURNAL", "false")

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.JavaBinary)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, int64(3), cfg.Exploration.MaxSolutions)
	assert.Equal(t, 90*time.Second, cfg.Exploration.TotalTimeout)
	assert.False(t, cfg.Journal.Enabled)
}

func TestEnvRejectsInvalidValues(t *testing.T) {
	t.Setenv("IDESYDE_CONCURRENCY", "many")
	_, err := Load(t.TempDir(), "")
	assert.Error(t, err)
}
