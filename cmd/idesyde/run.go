package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forsyde/idesyde-orchestrator/internal/identification"
	"github.com/forsyde/idesyde-orchestrator/internal/orchestrator"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Identify, select and explore",
	Long: `Run a full pass over the run directory:

1. Discover identification and exploration modules
2. Run identification steps until one finds nothing new
3. Keep the dominant decision models
4. Ask every explorer to bid on each dominant model and explore it with the best one

Ctrl+C stops the pass and terminates any running module.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(cmd, (*orchestrator.Orchestrator).Run)
	},
}

var identifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Run identification only",
	Long: `Run identification steps until one finds nothing new, then report the
dominant decision models. Explorers are not called.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(cmd, (*orchestrator.Orchestrator).Identify)
	},
}

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Explore the result of a previous identification",
	Long: `Compute the dominant decision models from the accumulated snapshot left by a
previous identify or run, and explore each with the best bidding explorer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(cmd, (*orchestrator.Orchestrator).Explore)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{runCmd, identifyCmd, exploreCmd} {
		addPassFlags(cmd)
		rootCmd.AddCommand(cmd)
	}
}

func runPass(cmd *cobra.Command, pass func(*orchestrator.Orchestrator, context.Context) (*orchestrator.Report, error)) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	orch, err := orchestrator.New(cfg, orchestrator.Options{Rules: identification.BuiltinRules()})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := pass(orch, ctx)
	if report != nil {
		printReport(report)
	}
	if err != nil {
		return fmt.Errorf("run %s failed: %w", runIDOf(report), err)
	}
	return nil
}

func runIDOf(report *orchestrator.Report) string {
	if report == nil {
		return "(not started)"
	}
	return report.RunID
}

// printReport writes a human summary of a pass to stdout.
func printReport(report *orchestrator.Report) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n", cyan("=== Run "+report.RunID+" ==="))
	fmt.Printf("  Run directory: %s\n", report.RunDir)
	fmt.Printf("  Elapsed:       %s\n", formatDuration(report.Elapsed))

	if id := report.Identification; id != nil {
		fmt.Printf("\n%s\n", yellow("Identification:"))
		fmt.Printf("  Steps:    %d %s\n", id.Steps, gray(fmt.Sprint(id.NewPerStep)))
		fmt.Printf("  Found:    %d decision models\n", len(id.Headers))
		if id.Failures > 0 {
			fmt.Printf("  Failures: %s\n", red(fmt.Sprintf("%d module invocations", id.Failures)))
		}
	}

	fmt.Printf("\n%s\n", yellow("Dominant decision models:"))
	if len(report.Dominant) == 0 {
		fmt.Printf("  %s\n", gray("none"))
	}
	for _, h := range report.Dominant {
		fmt.Printf("  %s %s %s\n", green("●"), h.Category,
			gray(fmt.Sprintf("(%d elements, %d relations)", len(h.CoveredElements), len(h.CoveredRelations))))
	}

	if len(report.Explorations) > 0 {
		fmt.Printf("\n%s\n", yellow("Exploration:"))
	}
	for _, e := range report.Explorations {
		switch {
		case e.ModuleID == "":
			fmt.Printf("  %s %s: %s\n", gray("○"), e.Header.Category, gray("no explorer"))
		case e.Err != nil:
			fmt.Printf("  %s %s by %s: %d solutions, %s\n", red("✗"), e.Header.Category, e.ModuleID, len(e.Solutions), red(e.Err.Error()))
		default:
			fmt.Printf("  %s %s by %s: %d solutions %s\n", green("✓"), e.Header.Category, e.ModuleID, len(e.Solutions), gray("("+e.StopReason+")"))
		}
	}
	fmt.Println()
}
