package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forsyde/idesyde-orchestrator/internal/dominance"
	"github.com/forsyde/idesyde-orchestrator/internal/storage"
	"github.com/forsyde/idesyde-orchestrator/internal/types"
)

var headersCmd = &cobra.Command{
	Use:   "headers [file...]",
	Short: "Show headers of the run directory, or decode header files",
	Long: `Without arguments, list the decision headers of one area of the run
directory (identified by default) or the design headers of inputs/.

With arguments, print each file as indented JSON. Binary (.msgpack) headers
and bodies are decoded; .json files are printed as they are.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			for _, path := range args {
				text, err := decodeFile(path)
				if err != nil {
					return err
				}
				if len(args) > 1 {
					fmt.Printf("%s\n", color.New(color.FgHiBlack).Sprint("# "+path))
				}
				fmt.Println(string(text))
			}
			return nil
		}

		area, _ := cmd.Flags().GetString("area")
		dominantOnly, _ := cmd.Flags().GetBool("dominant")

		rd, err := storage.OpenRunDir(runDir)
		if err != nil {
			return err
		}
		if storage.Area(area) == storage.AreaInputs {
			design, err := rd.LoadDesignHeaders()
			if err != nil {
				return err
			}
			printDesignHeaders(design)
			return nil
		}
		if !knownArea(area) {
			return fmt.Errorf("unknown area %q", area)
		}
		headers, err := rd.LoadDecisionHeaders(storage.Area(area))
		if err != nil {
			return err
		}
		if dominantOnly {
			headers = dominance.DominantDecisionHeaders(headers)
		}
		printDecisionHeaders(headers)
		return nil
	},
}

func init() {
	headersCmd.Flags().StringP("area", "a", string(storage.AreaIdentified), "Run directory area: inputs, identified, staged or explored")
	headersCmd.Flags().BoolP("dominant", "d", false, "Only show dominant decision headers")
	rootCmd.AddCommand(headersCmd)
}

func knownArea(area string) bool {
	for _, a := range storage.Areas {
		if string(a) == area {
			return true
		}
	}
	return false
}

// decodeFile renders a header or body file as indented JSON.
func decodeFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return data, nil
	}
	text, err := types.TextFromBinary[interface{}](data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return text, nil
}

func printDecisionHeaders(headers []types.DecisionHeader) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	if len(headers) == 0 {
		fmt.Println(gray("No decision headers"))
		return
	}
	for _, h := range headers {
		fmt.Printf("%s %s\n", cyan(h.Category), gray(fmt.Sprintf("(%d elements, %d relations)", len(h.CoveredElements), len(h.CoveredRelations))))
		fmt.Printf("  elements:  %s\n", truncateString(strings.Join(h.CoveredElements, ", "), 100))
		if h.BodyPath != nil {
			fmt.Printf("  body:      %s\n", *h.BodyPath)
		}
	}
}

func printDesignHeaders(headers []types.DesignHeader) {
	gray := color.New(color.FgHiBlack).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	if len(headers) == 0 {
		fmt.Println(gray("No design headers"))
		return
	}
	for _, h := range headers {
		fmt.Printf("%s %s\n", cyan(h.Category), gray(fmt.Sprintf("(%d elements, %d relations)", len(h.Elements), len(h.Relations))))
		for _, p := range h.ModelPaths {
			fmt.Printf("  model:     %s\n", p)
		}
	}
}
