package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/councilhq/council/internal/registry"
	"github.com/councilhq/council/pkg/models"
)

var rosterCmd = &cobra.Command{
	Use:   "roster <preset-file>",
	Short: "Inspect a roster preset",
	Long: `Load a roster preset (agents, pools, positions, teams) and print
the resulting organization graph. The preset is validated through the
same paths the engine uses, so a roster that prints here will load at
run time.`,
	Args: cobra.ExactArgs(1),
	RunE: runRoster,
}

func runRoster(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading roster: %w", err)
	}

	reg := registry.New()
	if err := reg.ApplyPreset(data); err != nil {
		return fmt.Errorf("applying roster: %w", err)
	}

	bold := color.New(color.Bold)
	dim := color.New(color.Faint)

	bold.Println("Agents")
	for _, a := range reg.Agents() {
		fmt.Printf("  %s  %s", a.ID, a.Name)
		if a.API.Model != "" {
			dim.Printf("  (%s)", a.API.Model)
		}
		fmt.Println()
	}

	bold.Println("Positions")
	for _, p := range reg.Positions() {
		fmt.Printf("  %s  %s [%s]", p.ID, p.Name, p.Tier)
		switch {
		case p.AgentID != "":
			dim.Printf("  agent=%s", p.AgentID)
		case p.PoolID != "":
			dim.Printf("  pool=%s", p.PoolID)
		default:
			color.New(color.FgYellow).Print("  unfilled")
		}
		fmt.Println()
	}

	bold.Println("Teams")
	for _, t := range reg.Teams() {
		fmt.Printf("  %s  %s", t.ID, t.Name)
		dim.Printf("  leader=%s members=%d", t.LeaderPositionID, len(t.MemberPositionIDs))
		fmt.Println()
	}

	execs := 0
	for _, p := range reg.Positions() {
		if p.Tier == models.TierExecutive && p.Filled() {
			execs++
		}
	}
	dim.Printf("\n%d filled executive position(s)\n", execs)
	return nil
}
