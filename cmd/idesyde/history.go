package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forsyde/idesyde-orchestrator/internal/storage/sqlite"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show journaled runs",
	Long: `Without arguments, list the most recent runs recorded in the journal.

With a run id (or a unique prefix of one), show its identification steps,
module invocations, solutions, and, with --events, its full event log.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		showEvents, _ := cmd.Flags().GetBool("events")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		journal, err := sqlite.Open(cfg.JournalPath())
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer journal.Close()

		ctx := context.Background()
		if len(args) == 0 {
			return listRuns(ctx, journal, limit)
		}
		return showRun(ctx, journal, args[0], showEvents, limit)
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of runs (or events) to show")
	historyCmd.Flags().BoolP("events", "e", false, "Show the run's event log")
	rootCmd.AddCommand(historyCmd)
}

func listRuns(ctx context.Context, journal *sqlite.Journal, limit int) error {
	runs, err := journal.Runs(ctx, limit)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n", cyan("=== Runs ==="))
	if len(runs) == 0 {
		fmt.Printf("  %s\n\n", gray("No runs journaled"))
		return nil
	}
	for _, r := range runs {
		icon, state := runState(r)
		fmt.Printf("  %s %s  %s  %s\n", icon, r.ID[:min(8, len(r.ID))], r.StartedAt.Local().Format("2006-01-02 15:04:05"), state)
		fmt.Printf("    %s\n", gray(fmt.Sprintf("%d steps | %d identified | %d dominant | %d solutions",
			r.Steps, r.Identified, r.Dominant, r.Solutions)))
	}
	fmt.Println()
	return nil
}

func runState(r *sqlite.Run) (string, string) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	switch {
	case r.Success == nil:
		return yellow("●"), yellow("running or interrupted")
	case *r.Success:
		return green("✓"), green("completed")
	default:
		return red("✗"), red("failed: " + truncateString(r.Error, 60))
	}
}

// findRun resolves a run id or unique prefix among the journaled runs.
func findRun(ctx context.Context, journal *sqlite.Journal, prefix string) (*sqlite.Run, error) {
	runs, err := journal.Runs(ctx, 0)
	if err != nil {
		return nil, err
	}
	var match *sqlite.Run
	for _, r := range runs {
		if !strings.HasPrefix(r.ID, prefix) {
			continue
		}
		if r.ID == prefix {
			return r, nil
		}
		if match != nil {
			return nil, fmt.Errorf("run prefix %q is ambiguous", prefix)
		}
		match = r
	}
	if match == nil {
		return nil, fmt.Errorf("no journaled run matches %q", prefix)
	}
	return match, nil
}

func showRun(ctx context.Context, journal *sqlite.Journal, prefix string, showEvents bool, limit int) error {
	run, err := findRun(ctx, journal, prefix)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	icon, state := runState(run)
	fmt.Printf("\n%s\n", cyan("=== Run "+run.ID+" ==="))
	fmt.Printf("  %s %s\n", icon, state)
	fmt.Printf("  Run directory: %s\n", run.RunDir)
	fmt.Printf("  Started:       %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if run.CompletedAt != nil {
		fmt.Printf("  Completed:     %s (%s)\n", run.CompletedAt.Local().Format("2006-01-02 15:04:05"),
			formatDuration(run.CompletedAt.Sub(run.StartedAt)))
	}

	steps, err := journal.Steps(ctx, run.ID)
	if err != nil {
		return err
	}
	fmt.Printf("\n%s\n", yellow("Identification steps:"))
	for _, s := range steps {
		fmt.Printf("  step %-3d +%-4d %s\n", s.Step, s.NewHeaders, gray(fmt.Sprintf("(%d total)", s.Total)))
	}

	invocations, err := journal.Invocations(ctx, run.ID)
	if err != nil {
		return err
	}
	failed := 0
	for _, inv := range invocations {
		if inv.Failed {
			failed++
		}
	}
	fmt.Printf("\n%s %d invocations", yellow("Modules:"), len(invocations))
	if failed > 0 {
		fmt.Printf(", %s", red(fmt.Sprintf("%d failed", failed)))
	}
	fmt.Println()
	for _, inv := range invocations {
		if !inv.Failed {
			continue
		}
		fmt.Printf("  %s step %d %s exit %d: %s\n", red("✗"), inv.Step, inv.ModuleID, inv.ExitCode, truncateString(firstLine(inv.Error), 60))
	}

	solutions, err := journal.Solutions(ctx, run.ID)
	if err != nil {
		return err
	}
	fmt.Printf("\n%s %d\n", yellow("Solutions:"), len(solutions))
	for _, s := range solutions {
		fmt.Printf("  #%-3d %s %s\n", s.Index, s.ModuleID, gray(s.HeaderPath))
	}

	if showEvents {
		evts, err := journal.Events(ctx, run.ID, limit)
		if err != nil {
			return err
		}
		fmt.Printf("\n%s\n", yellow("Events:"))
		for _, e := range evts {
			displayEvent(e)
		}
	}
	fmt.Println()
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
