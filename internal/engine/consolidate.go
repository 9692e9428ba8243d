package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/councilhq/council/pkg/models"
)

// actionResult is one resolved action's contribution to consolidation.
// Results are reconciled in definition order regardless of completion
// order, so consolidation input is deterministic for a given pipeline.
type actionResult struct {
	actionID    string
	agentID     string
	output      string
	state       models.ActionState
	err         error
	completedAt time.Time
}

const defaultMergeSeparator = "\n\n---\n\n"

// consolidate folds a phase's resolved action outputs into one phase
// output. The user_gavel mode is consolidated as merge here; the run
// loop gates the merged text through human review afterwards.
func (e *Engine) consolidate(ctx context.Context, phase *models.Phase, results []actionResult, vars *VarStore) (string, error) {
	resolved := make([]actionResult, 0, len(results))
	for _, r := range results {
		if r.state == models.ActionResolved {
			resolved = append(resolved, r)
		}
	}
	if len(resolved) == 0 {
		return "", fmt.Errorf("phase %s: no resolved action outputs to consolidate", phase.ID)
	}

	switch phase.Consolidation {
	case models.ConsolidateLastAction, "":
		return resolved[len(resolved)-1].output, nil

	case models.ConsolidateMerge, models.ConsolidateUserGavel:
		sep := phase.MergeSeparator
		if sep == "" {
			sep = defaultMergeSeparator
		}
		parts := make([]string, len(resolved))
		for i, r := range resolved {
			parts[i] = r.output
		}
		return strings.Join(parts, sep), nil

	case models.ConsolidateDesignated:
		designated := make(map[string]bool, 1)
		for i := range phase.Actions {
			if phase.Actions[i].Designated {
				designated[phase.Actions[i].ID] = true
			}
		}
		for _, r := range resolved {
			if designated[r.actionID] {
				return r.output, nil
			}
		}
		return "", fmt.Errorf("phase %s: designated consolidation but no designated action resolved", phase.ID)

	case models.ConsolidateSynthesize:
		return e.synthesize(ctx, phase, resolved, vars)

	default:
		return "", fmt.Errorf("phase %s: unknown consolidation mode %q", phase.ID, phase.Consolidation)
	}
}

// synthesize invokes the phase's synthesis agent over every resolved
// output and returns its response as the phase output.
func (e *Engine) synthesize(ctx context.Context, phase *models.Phase, resolved []actionResult, vars *VarStore) (string, error) {
	agent := e.registry.Agent(phase.SynthesisAgentID)
	if agent == nil {
		return "", fmt.Errorf("phase %s: synthesis agent %s not found", phase.ID, phase.SynthesisAgentID)
	}

	var b strings.Builder
	b.WriteString("Synthesize the contributions below into a single coherent result. ")
	b.WriteString("Preserve all substantive content; resolve conflicts explicitly.\n")
	for _, r := range resolved {
		fmt.Fprintf(&b, "\n--- contribution (%s) ---\n%s\n", r.actionID, r.output)
	}

	prompt, _ := vars.Substitute(agent.SystemPrompt.Text)
	out, err := e.invoker.Invoke(ctx, agent, prompt, b.String())
	if err != nil {
		return "", &AgentInvocationError{AgentID: agent.ID, Err: err}
	}
	return out, nil
}
