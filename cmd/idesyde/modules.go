package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forsyde/idesyde-orchestrator/internal/discovery"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List discovered identification and exploration modules",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		printModules("Identification modules", cfg.IdentificationModulesDir, discovery.Scan(cfg.IdentificationModulesDir))
		printModules("Exploration modules", cfg.ExplorationModulesDir, discovery.Scan(cfg.ExplorationModulesDir))
		return nil
	},
}

func init() {
	modulesCmd.Flags().String("imodules", "", "Identification modules directory")
	modulesCmd.Flags().String("emodules", "", "Exploration modules directory")
	modulesCmd.Flags().String("java", "", "Java launcher for .jar modules")
	rootCmd.AddCommand(modulesCmd)
}

func printModules(title, dir string, reg *discovery.Registry) {
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Printf("%s %s\n", yellow(title+":"), gray(dir))
	if reg.Len() == 0 {
		fmt.Printf("  %s\n", gray("none"))
	}
	for _, m := range reg.Modules() {
		fmt.Printf("  %-32s %s\n", m.ID(), cyan(m.Kind.String()))
		fmt.Printf("    %s\n", gray(m.Path))
	}
	fmt.Println()
}
