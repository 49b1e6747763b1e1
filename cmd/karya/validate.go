package main

import (
	"fmt"
	"strings"

	"github.com/rahul/karya/internal/plan"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <plan-file>",
	Short: "Repair and validate a plan file without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		p, err := plan.LoadFile(args[0], plan.ParseOptions{
			Models:       cfg.ModelAliases(),
			ToolsEnabled: cfg.Planner.EnableToolIntegration,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, w := range plan.Repair(p, cfg.Planner.WriterModel) {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		if err := plan.Validate(p); err != nil {
			return err
		}

		order, err := plan.ExecutionOrder(p)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(order))
		for _, a := range order {
			ids = append(ids, a.ID)
		}
		fmt.Fprintf(out, "Plan is valid: %d action(s)\n", len(p.Actions))
		fmt.Fprintf(out, "Execution order: %s\n", strings.Join(ids, " -> "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
