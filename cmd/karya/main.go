package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "karya",
	Short: "Karya plans a goal, runs each step under a quality loop and assembles the deliverable",
	Long: `Karya turns a goal into a plan of actions, drafts each action with a
language model, has every draft evaluated and retried with feedback, then
assembles a final deliverable with a stepwise summary and a design review.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (JSON or YAML); KARYA_* env vars override it")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
