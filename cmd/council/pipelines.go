package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/councilhq/council/internal/config"
	"github.com/councilhq/council/internal/pipeline"
)

var pipelinesDir string

var pipelinesCmd = &cobra.Command{
	Use:   "pipelines",
	Short: "List pipeline definitions",
	Long:  `List the pipeline definitions in the configured pipeline directory.`,
	RunE:  runPipelines,
}

func init() {
	pipelinesCmd.Flags().StringVar(&pipelinesDir, "pipelines", "", "Directory of pipeline YAML definitions")
}

func runPipelines(cmd *cobra.Command, args []string) error {
	dir := pipelinesDir
	if dir == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		dir = cfg.Paths.PipelineDir
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("pipeline directory %s: %w", dir, err)
	}

	store := pipeline.NewStore(nil)
	if _, err := store.LoadDir(dir); err != nil {
		return fmt.Errorf("loading pipelines: %w", err)
	}

	bold := color.New(color.Bold)
	dim := color.New(color.Faint)

	list := store.List()
	if len(list) == 0 {
		fmt.Printf("no pipeline definitions in %s\n", dir)
		return nil
	}
	for _, p := range list {
		actions := 0
		for i := range p.Phases {
			actions += len(p.Phases[i].Actions)
		}
		bold.Printf("%s", p.ID)
		if p.Name != "" {
			fmt.Printf("  %s", p.Name)
		}
		fmt.Println()
		dim.Printf("  %d phase(s), %d action(s)\n", len(p.Phases), actions)
	}
	return nil
}
