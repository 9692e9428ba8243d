package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/councilhq/council/internal/config"
	"github.com/councilhq/council/internal/engine"
	"github.com/councilhq/council/internal/llm"
	"github.com/councilhq/council/internal/persist"
	"github.com/councilhq/council/internal/pipeline"
	"github.com/councilhq/council/internal/registry"
	"github.com/councilhq/council/internal/state"
	"github.com/councilhq/council/internal/tui"
)

var (
	runPipelineDir string
	runRosterPath  string
	runMode        string
	runNoTUI       bool
	runInputFile   string
)

var runCmd = &cobra.Command{
	Use:   "run <pipeline-id> [input]",
	Short: "Execute a pipeline",
	Long: `Execute a pipeline by ID against the configured roster.

The input argument seeds the run's instructions variable. With
--input-file the input is read from a file instead.

By default a TUI monitors the run and surfaces gavel checkpoints for
review. With --no-tui events stream to stdout and gavel checkpoints
are auto-approved.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runPipelineDir, "pipelines", "", "Directory of pipeline YAML definitions")
	runCmd.Flags().StringVar(&runRosterPath, "roster", "", "Roster preset file (agents, pools, positions, teams)")
	runCmd.Flags().StringVar(&runMode, "mode", "", "Delivery mode: synthesis, compilation or injection")
	runCmd.Flags().BoolVar(&runNoTUI, "no-tui", false, "Stream events to stdout instead of the TUI")
	runCmd.Flags().StringVar(&runInputFile, "input-file", "", "Read run input from a file")
}

func runRun(cmd *cobra.Command, args []string) error {
	pipelineID := args[0]

	input := ""
	if len(args) > 1 {
		input = args[1]
	}
	if runInputFile != "" {
		data, err := os.ReadFile(runInputFile)
		if err != nil {
			return fmt.Errorf("reading input file: %w", err)
		}
		input = string(data)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if runMode != "" {
		cfg.Delivery.Mode = runMode
	}

	eng, cleanup, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	runID, err := eng.StartRun(context.Background(), pipelineID, input)
	if err != nil {
		return fmt.Errorf("starting run: %w", err)
	}

	if runNoTUI {
		return streamRun(eng, runID)
	}
	if err := tui.Run(eng, runID, cfg.TUI.RefreshRate); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}

// buildEngine wires the registry, pipeline store, LLM client, archive
// and engine from configuration. The returned cleanup closes the
// archive database.
func buildEngine(cfg *config.Config) (*engine.Engine, func(), error) {
	reg := registry.New()
	if path := rosterPath(cfg); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("reading roster %s: %w", path, err)
		}
		if err := reg.ApplyPreset(data); err != nil {
			return nil, nil, fmt.Errorf("applying roster: %w", err)
		}
	}

	dataDir := cfg.Paths.DataDir
	if dataDir == "" {
		dataDir = filepath.Join(".", ".council")
	}
	backing, err := persist.NewFileStore(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening persistence: %w", err)
	}

	pipelines := pipeline.NewStore(backing)
	var watcher *pipeline.Watcher
	dir := runPipelineDir
	if dir == "" {
		dir = cfg.Paths.PipelineDir
	}
	if _, err := os.Stat(dir); err == nil {
		if n, err := pipelines.LoadDir(dir); err != nil {
			return nil, nil, fmt.Errorf("loading pipelines from %s: %w", dir, err)
		} else if n == 0 {
			fmt.Fprintf(os.Stderr, "warning: no pipeline definitions found in %s\n", dir)
		}
		// Pick up definitions edited between runs.
		if w, err := pipeline.NewWatcher(pipelines, dir); err == nil {
			watcher = w
		} else {
			fmt.Fprintf(os.Stderr, "warning: pipeline watcher disabled: %v\n", err)
		}
	}

	closeWatcher := func() {
		if watcher != nil {
			watcher.Close()
		}
	}

	apiKey, err := config.GetAPIKey(cfg)
	if err != nil && !cfg.AWS.UseBedrock {
		closeWatcher()
		return nil, nil, err
	}
	if apiKey != "" {
		if err := config.ValidateAPIKey(apiKey); err != nil {
			closeWatcher()
			return nil, nil, fmt.Errorf("checking API key: %w", err)
		}
	}
	client, err := llm.NewClient(llm.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        apiKey,
		UseAWSBedrock: cfg.AWS.UseBedrock,
		AWSRegion:     cfg.AWS.Region,
		AWSProfile:    cfg.AWS.Profile,
	})
	if err != nil {
		closeWatcher()
		return nil, nil, fmt.Errorf("creating LLM client: %w", err)
	}

	db, err := state.OpenProject(".")
	if err != nil {
		closeWatcher()
		return nil, nil, fmt.Errorf("opening state database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		closeWatcher()
		db.Close()
		return nil, nil, fmt.Errorf("migrating state database: %w", err)
	}

	eng, err := engine.New(engine.Options{
		Registry:               reg,
		Pipelines:              pipelines,
		Invoker:                llm.NewInvoker(client),
		Presets:                backing,
		Archiver:               state.NewArchive(db),
		Mode:                   engine.DeliveryMode(cfg.Delivery.Mode),
		DefaultRetry:           defaultRetry(cfg),
		DefaultActionTimeout:   cfg.Timeouts.Action,
		DefaultPhaseTimeout:    cfg.Timeouts.Phase,
		DefaultPipelineTimeout: cfg.Timeouts.Pipeline,
		InjectionCacheTTL:      cfg.Delivery.InjectionCacheTTL,
	})
	if err != nil {
		closeWatcher()
		db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		closeWatcher()
		db.Close()
	}
	return eng, cleanup, nil
}

func rosterPath(cfg *config.Config) string {
	if runRosterPath != "" {
		return runRosterPath
	}
	candidate := filepath.Join(".council", "roster.json")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

// streamRun prints events until the run reaches a terminal status,
// auto-approving gavel checkpoints.
func streamRun(eng *engine.Engine, runID string) error {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	dim := color.New(color.Faint)

	for {
		select {
		case req := <-eng.GavelRequests():
			yellow.Printf("gavel checkpoint at %s/%s (auto-approving)\n", req.PhaseID, req.ActionID)
			if err := eng.ResolveGavel(engine.GavelDecision{
				RunID:      req.RunID,
				Resolution: engine.GavelApprove,
			}); err != nil {
				return fmt.Errorf("resolving gavel: %w", err)
			}

		case ev := <-eng.Events():
			switch ev.Type {
			case engine.EventRunCompleted:
				green.Println("run completed")
				run, err := eng.Run(runID)
				if err != nil {
					return err
				}
				fmt.Println(run.FinalOutput)
				return nil
			case engine.EventRunFailed:
				red.Printf("run failed: %v\n", ev.Err)
				return fmt.Errorf("run failed")
			case engine.EventRunAborted:
				yellow.Println("run aborted")
				return nil
			case engine.EventActionFailed:
				red.Printf("action %s failed: %v\n", ev.ActionID, ev.Err)
			case engine.EventPhaseStage:
				dim.Printf("phase %s -> %s\n", ev.PhaseID, ev.Stage)
			default:
				dim.Printf("%s %s\n", ev.Type, ev.ActionID)
			}
		}
	}
}
