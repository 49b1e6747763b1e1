package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/rahul/karya/internal/store"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect archived plan runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		history, err := openStore()
		if err != nil {
			return err
		}
		defer history.Close()

		runs, err := history.ListRuns(runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs archived yet.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tCREATED\tGOAL")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Status, r.CreatedAt.Format("2006-01-02 15:04"), shorten(r.Goal, 60))
		}
		return w.Flush()
	},
}

var runsShowJSON bool

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a run's deliverable, or its full plan with --json",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		history, err := openStore()
		if err != nil {
			return err
		}
		defer history.Close()

		r, err := history.GetRun(args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no run with id %s", args[0])
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if runsShowJSON {
			fmt.Fprintln(out, r.Plan)
			return nil
		}
		fmt.Fprintf(out, "Goal: %s\nStatus: %s\n", r.Goal, r.Status)
		if r.Error != "" {
			fmt.Fprintf(out, "Error: %s\n", r.Error)
		}
		if r.Deliverable != "" {
			fmt.Fprintf(out, "\n%s\n", r.Deliverable)
		}
		return nil
	},
}

func openStore() (*store.HistoryStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.NewHistoryStore(cfg.Memory.Path)
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to show")
	runsShowCmd.Flags().BoolVar(&runsShowJSON, "json", false, "print the archived plan JSON")
	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
