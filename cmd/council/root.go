package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "council",
	Short: "Multi-agent pipeline orchestration engine",
	Long: `Council runs multi-agent deliberation pipelines: configured agents
fill positions on teams, execute phases of actions against an LLM
backend, and deliver the consolidated result to a host application.

Pipelines are YAML definitions of phases and actions. Runs can be
paused, resumed and aborted, and user_gavel checkpoints suspend a run
for human review before it continues.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(pipelinesCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(rosterCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
