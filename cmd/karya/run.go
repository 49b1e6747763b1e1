package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rahul/karya/internal/agent"
	"github.com/rahul/karya/internal/plan"
	"github.com/spf13/cobra"
)

var (
	runPlanFile string
	runChatID   string
)

var runCmd = &cobra.Command{
	Use:   "run [goal]",
	Short: "Plan and run a goal, printing the final deliverable",
	Long: `Plan and run a goal. With --plan the plan is read from a YAML or JSON file
instead of being proposed by the model; the goal argument then overrides the
file's goal.`,
	Example: `  karya run "Write a migration guide for the billing service"
  karya run --plan plans/launch.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		goal := strings.TrimSpace(strings.Join(args, " "))
		if goal == "" && runPlanFile == "" {
			return errors.New("a goal or --plan is required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, consoleWriter())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var deliverable string
		if runPlanFile != "" {
			p, err := plan.LoadFile(runPlanFile, plan.ParseOptions{
				Goal:         goal,
				Models:       cfg.ModelAliases(),
				ToolsEnabled: cfg.Planner.EnableToolIntegration,
			})
			if err != nil {
				return err
			}
			if p, err = a.pipe.Run(ctx, runChatID, p); err != nil {
				return runError(p, err)
			}
			deliverable = agent.Deliverable(p, a.pipe.Settings)
		} else {
			deliverable, err = a.pipe.Think(ctx, runChatID, goal)
			if err != nil {
				return runError(nil, err)
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), deliverable)
		return nil
	},
}

func runError(p *plan.Plan, err error) error {
	if errors.Is(err, agent.ErrAborted) && p != nil {
		return fmt.Errorf("run %s aborted: %w", p.ID, err)
	}
	return err
}

func init() {
	runCmd.Flags().StringVarP(&runPlanFile, "plan", "p", "", "run a plan file instead of asking the model for one")
	runCmd.Flags().StringVar(&runChatID, "chat", "cli", "conversation id used for history")
	rootCmd.AddCommand(runCmd)
}
