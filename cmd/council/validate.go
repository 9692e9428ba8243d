package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/councilhq/council/internal/engine"
	"github.com/councilhq/council/internal/pipeline"
	"github.com/councilhq/council/internal/registry"
)

var validateRosterPath string

var validateCmd = &cobra.Command{
	Use:   "validate <file-or-directory>",
	Short: "Validate pipeline definitions",
	Long: `Validate pipeline YAML definitions without executing them.

Structural errors (empty phases, duplicate action IDs, dangling
references, circular awaits) are reported as errors; unknown prompt
tokens are warnings since they pass through verbatim at run time.

With --roster, participant references are checked against the roster;
without it, only structure is checked.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateRosterPath, "roster", "", "Roster preset file to resolve references against")
}

func runValidate(cmd *cobra.Command, args []string) error {
	var refs pipeline.RefChecker
	if validateRosterPath != "" {
		reg := registry.New()
		data, err := os.ReadFile(validateRosterPath)
		if err != nil {
			return fmt.Errorf("reading roster: %w", err)
		}
		if err := reg.ApplyPreset(data); err != nil {
			return fmt.Errorf("applying roster: %w", err)
		}
		refs = reg
	}

	paths, err := collectYAML(args[0])
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no pipeline definitions found at %s", args[0])
	}

	knownVars := make(map[string]bool)
	for _, name := range engine.DefaultGlobals {
		knownVars[name] = true
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	failed := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		p, err := pipeline.Unmarshal(data)
		if err != nil {
			red.Printf("✗ %s: %v\n", path, err)
			failed++
			continue
		}

		res := pipeline.Validate(p, refs, knownVars)
		for _, w := range res.Warnings {
			yellow.Printf("  warning: %s\n", w)
		}
		if res.Valid() {
			green.Printf("✓ %s (%s)\n", path, p.ID)
			continue
		}
		red.Printf("✗ %s (%s)\n", path, p.ID)
		for _, e := range res.Errors {
			red.Printf("  error: %s\n", e)
		}
		failed++
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d definition(s) invalid", failed, len(paths))
	}
	return nil
}

// collectYAML returns the YAML files at path: the file itself, or every
// *.yaml / *.yml in the directory.
func collectYAML(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(path, e.Name()))
		}
	}
	return paths, nil
}
