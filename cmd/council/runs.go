package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/councilhq/council/internal/state"
	"github.com/councilhq/council/pkg/models"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect archived runs",
	Long:  `List archived runs from the project state database.`,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show an archived run's final output",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export an archived run's thread log as text",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsExport,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to list (0 = all)")
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsExportCmd)
}

// openArchive opens the project state database for read access.
func openArchive() (*state.Archive, func(), error) {
	db, err := state.OpenProject(".")
	if err != nil {
		return nil, nil, fmt.Errorf("opening state database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrating state database: %w", err)
	}
	return state.NewArchive(db), func() { db.Close() }, nil
}

func runRunsList(cmd *cobra.Command, args []string) error {
	archive, cleanup, err := openArchive()
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := archive.ListRuns(runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no archived runs")
		return nil
	}

	for _, r := range runs {
		statusColor := color.New(color.FgGreen)
		switch r.Status {
		case models.RunFailed:
			statusColor = color.New(color.FgRed)
		case models.RunAborted:
			statusColor = color.New(color.FgYellow)
		}
		fmt.Printf("%s  %s  %s  %s\n",
			r.ID, r.PipelineID, statusColor.Sprint(r.Status),
			r.StartedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	archive, cleanup, err := openArchive()
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := archive.GetRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run %s (pipeline %s): %s\n", run.ID, run.PipelineID, run.Status)
	if run.Error != "" {
		color.New(color.FgRed).Printf("error: %s\n", run.Error)
	}
	fmt.Println()
	fmt.Println(run.FinalOutput)
	return nil
}

func runRunsExport(cmd *cobra.Command, args []string) error {
	archive, cleanup, err := openArchive()
	if err != nil {
		return err
	}
	defer cleanup()

	text, err := archive.ExportThreadLog(args[0])
	if err != nil {
		return err
	}
	fmt.Print(text)
	return nil
}
