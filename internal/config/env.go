package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ApplyEnv overrides cfg from environment variables.
//
// Environment variables:
//   - IDESYDE_IMODULES_DIR: identification modules directory
//   - IDESYDE_EMODULES_DIR: exploration modules directory
//   - IDESYDE_JAVA: JVM launcher for .jar modules
//   - IDESYDE_CONCURRENCY: identification modules run at once per step
//   - IDESYDE_MAX_SOLUTIONS: exploration solution bound (<= 0 unbounded)
//   - IDESYDE_TOTAL_TIMEOUT: exploration timeout, duration string
//   - IDESYDE_TIME_RESOLUTION: exploration time resolution, duration string
//   - IDESYDE_MEMORY_RESOLUTION: exploration memory resolution in MB
//   - IDESYDE_JOURNAL: enable the run journal (bool)
//   - IDESYDE_JOURNAL_PATH: journal database path
//   - IDESYDE_VERBOSITY: log level
//
// Returns an error if any environment variable has an invalid value.
func ApplyEnv(cfg *Config) error {
	if err := parseEnvString("IDESYDE_IMODULES_DIR", &cfg.IdentificationModulesDir); err != nil {
		return err
	}
	if err := parseEnvString("IDESYDE_EMODULES_DIR", &cfg.ExplorationModulesDir); err != nil {
		return err
	}
	if err := parseEnvString("IDESYDE_JAVA", &cfg.JavaBinary); err != nil {
		return err
	}
	if err := parseEnvInt("IDESYDE_CONCURRENCY", &cfg.Concurrency); err != nil {
		return err
	}
	if err := parseEnvInt64("IDESYDE_MAX_SOLUTIONS", &cfg.Exploration.MaxSolutions); err != nil {
		return err
	}
	if err := parseEnvDuration("IDESYDE_TOTAL_TIMEOUT", &cfg.Exploration.TotalTimeout); err != nil {
		return err
	}
	if err := parseEnvDuration("IDESYDE_TIME_RESOLUTION", &cfg.Exploration.TimeResolution); err != nil {
		return err
	}
	if err := parseEnvInt("IDESYDE_MEMORY_RESOLUTION", &cfg.Exploration.MemoryResolution); err != nil {
		return err
	}
	if err := parseEnvBool("IDESYDE_JOURNAL", &cfg.Journal.Enabled); err != nil {
		return err
	}
	if err := parseEnvString("IDESYDE_JOURNAL_PATH", &cfg.Journal.Path); err != nil {
		return err
	}
	return parseEnvString("IDESYDE_VERBOSITY", &cfg.Verbosity)
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvInt64 parses an int64 from an environment variable
func parseEnvInt64(key string, dest *int64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvDuration parses a duration from an environment variable
func parseEnvDuration(key string, dest *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := parseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) error {
	if value := os.Getenv(key); value != "" {
		*dest = value
	}
	return nil
}
