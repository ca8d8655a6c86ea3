package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forsyde/idesyde-orchestrator/internal/config"
)

var (
	runDir     string
	configPath string
	verbosity  string
)

var rootCmd = &cobra.Command{
	Use:   "idesyde",
	Short: "Design space exploration orchestrator",
	Long: `idesyde turns design models into decision models by running identification
modules to a fixpoint, keeps the dominant decision models, and hands each to
the exploration module that bids best for it.

Everything a run produces lives in the run directory:
  inputs/      design model headers
  identified/  decision models found by identification
  staged/      the decision model currently offered to explorers
  explored/    solutions reported by explorers`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := parseLevel(verbosity)
		if err != nil {
			return err
		}
		setupLogging(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&runDir, "run-dir", "r", "run", "Run directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default <run-dir>/"+config.FileName+")")
	rootCmd.PersistentFlags().StringVarP(&verbosity, "verbosity", "v", "", "Log level: debug, info, warn or error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging sends structured logs to stderr.
func setupLogging(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// parseLevel maps a verbosity name to a log level; empty means info.
func parseLevel(v string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown verbosity %q (want one of %s)", v, strings.Join(config.Verbosities, ", "))
	}
}

// loadConfig resolves the configuration for cmd: defaults, the config file,
// environment, then any flags given on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(runDir, configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// The file or environment may have chosen a level the flag did not override.
	if !cmd.Flags().Changed("verbosity") {
		if level, err := parseLevel(cfg.Verbosity); err == nil {
			setupLogging(level)
		}
	}
	slog.Debug("configuration loaded", "config", cfg.String())
	return cfg, nil
}

// addPassFlags registers the flags shared by run, identify and explore.
func addPassFlags(cmd *cobra.Command) {
	cmd.Flags().String("imodules", "", "Identification modules directory")
	cmd.Flags().String("emodules", "", "Exploration modules directory")
	cmd.Flags().String("java", "", "Java launcher for .jar modules")
	cmd.Flags().IntP("concurrency", "j", 0, "Identification modules run at once per step")
	cmd.Flags().Int64P("max-solutions", "n", 0, "Stop exploring after this many solutions (0: unbounded)")
	cmd.Flags().Duration("total-timeout", 0, "Stop exploring after this long (0: no timeout)")
	cmd.Flags().Duration("time-resolution", 0, "Explorer time sampling and progress interval")
	cmd.Flags().Int("memory-resolution", 0, "Explorer memory sampling in MB")
	cmd.Flags().Bool("no-journal", false, "Do not record the run in the journal")
}

// applyFlags copies explicitly set flags onto cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	cfg.RunDir = runDir
	if flags.Changed("verbosity") {
		cfg.Verbosity = verbosity
	}

	if flags.Lookup("imodules") == nil {
		return
	}
	if flags.Changed("imodules") {
		cfg.IdentificationModulesDir, _ = flags.GetString("imodules")
	}
	if flags.Changed("emodules") {
		cfg.ExplorationModulesDir, _ = flags.GetString("emodules")
	}
	if flags.Changed("java") {
		cfg.JavaBinary, _ = flags.GetString("java")
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("max-solutions") {
		cfg.Exploration.MaxSolutions, _ = flags.GetInt64("max-solutions")
	}
	if flags.Changed("total-timeout") {
		cfg.Exploration.TotalTimeout, _ = flags.GetDuration("total-timeout")
	}
	if flags.Changed("time-resolution") {
		cfg.Exploration.TimeResolution, _ = flags.GetDuration("time-resolution")
	}
	if flags.Changed("memory-resolution") {
		cfg.Exploration.MemoryResolution, _ = flags.GetInt("memory-resolution")
	}
	if noJournal, _ := flags.GetBool("no-journal"); noJournal {
		cfg.Journal.Enabled = false
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
