package pipeline

import (
	"fmt"
	"regexp"

	"github.com/councilhq/council/pkg/models"
)

// ValidationResult reports the outcome of a structural pipeline check.
// Errors block execution; warnings do not.
type ValidationResult struct {
	// Errors lists structural problems that block execution.
	Errors []string
	// Warnings lists suspicious but non-blocking findings.
	Warnings []string
}

// Valid returns true when no blocking errors were found.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// RefChecker answers existence questions about agents, positions and
// pools. The registry satisfies this; validation only checks that
// references point at something, not that late dynamic resolution will
// succeed.
type RefChecker interface {
	Agent(id string) *models.Agent
	Position(id string) *models.Position
	Pool(id string) *models.AgentPool
	Team(id string) *models.Team
}

var tokenPattern = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)

// Validate runs all structural checks on a pipeline definition.
func Validate(p *models.Pipeline, refs RefChecker, knownVars map[string]bool) *ValidationResult {
	res := &ValidationResult{}

	if len(p.Phases) == 0 {
		res.errorf("pipeline %s has no phases", p.ID)
	}

	actionIDs := make(map[string]bool)
	for pi := range p.Phases {
		for ai := range p.Phases[pi].Actions {
			id := p.Phases[pi].Actions[ai].ID
			if actionIDs[id] {
				res.errorf("duplicate action id %s", id)
			}
			actionIDs[id] = true
		}
	}

	for pi := range p.Phases {
		ph := &p.Phases[pi]
		if len(ph.Actions) == 0 {
			res.errorf("phase %s has no actions", ph.ID)
		}
		if !ph.Consolidation.Valid() {
			res.errorf("phase %s: unknown consolidation mode %q", ph.ID, ph.Consolidation)
		}
		if ph.Consolidation == models.ConsolidateSynthesize {
			if ph.SynthesisAgentID == "" {
				res.errorf("phase %s: synthesize consolidation with no synthesis agent", ph.ID)
			} else if refs != nil && refs.Agent(ph.SynthesisAgentID) == nil {
				res.errorf("phase %s: synthesis agent %s does not exist", ph.ID, ph.SynthesisAgentID)
			}
		}
		if ph.Consolidation == models.ConsolidateDesignated {
			found := false
			for ai := range ph.Actions {
				if ph.Actions[ai].Designated {
					found = true
					break
				}
			}
			if !found {
				res.errorf("phase %s: designated consolidation with no designated action", ph.ID)
			}
		}

		checkAwaitCycles(ph, res)

		for ai := range ph.Actions {
			a := &ph.Actions[ai]
			validateAction(ph, a, refs, actionIDs, res)
			checkTokens(a, knownVars, res)
		}
	}

	return res
}

// validateAction checks one action's enums, trigger references and
// participant references.
func validateAction(ph *models.Phase, a *models.Action, refs RefChecker, actionIDs map[string]bool, res *ValidationResult) {
	if !a.Type.Valid() {
		res.errorf("action %s: unknown type %q", a.ID, a.Type)
	}
	if !a.Mode.Valid() {
		res.errorf("action %s: unknown execution mode %q", a.ID, a.Mode)
	}
	if !a.Trigger.Valid() {
		res.errorf("action %s: unknown trigger type %q", a.ID, a.Trigger)
	}

	if a.Trigger == models.TriggerAwait {
		if a.AwaitActionID == "" {
			res.errorf("action %s: await trigger without await_action_id", a.ID)
		} else if !actionIDs[a.AwaitActionID] {
			res.errorf("action %s awaits undefined action %s", a.ID, a.AwaitActionID)
		}
	}
	if a.Trigger == models.TriggerOn && a.TriggerEvent == "" {
		res.errorf("action %s: on trigger without trigger_event", a.ID)
	}

	switch a.Type {
	case models.ActionCRUDPipeline, models.ActionRAGPipeline:
		if a.CurationPipelineID == "" {
			res.errorf("action %s: %s type without curation_pipeline_id", a.ID, a.Type)
		}
		// Curation-only actions invoke no participants.
		return
	case models.ActionDeliberativeRAG:
		if a.CurationPipelineID == "" {
			res.errorf("action %s: %s type without curation_pipeline_id", a.ID, a.Type)
		}
	case models.ActionUserGavel, models.ActionSystem:
		// No participants required.
		return
	}

	validateParticipants(a, refs, res)
}

// validateParticipants checks that the participant spec references at least one
// existing agent/position/pool/team. Late dynamic resolution is not
// checked here.
func validateParticipants(a *models.Action, refs RefChecker, res *ValidationResult) {
	if refs == nil {
		return
	}
	spec := &a.Participants
	if !spec.Kind.Valid() {
		res.errorf("action %s: unknown participant kind %q", a.ID, spec.Kind)
		return
	}

	switch spec.Kind {
	case models.ParticipantsExplicit:
		if len(spec.AgentIDs) == 0 && len(spec.PositionIDs) == 0 {
			res.errorf("action %s: explicit participants with no references", a.ID)
		}
		for _, id := range spec.AgentIDs {
			if refs.Agent(id) == nil {
				res.errorf("action %s references unknown agent %s", a.ID, id)
			}
		}
		for _, id := range spec.PositionIDs {
			if refs.Position(id) == nil {
				res.errorf("action %s references unknown position %s", a.ID, id)
			}
		}
	case models.ParticipantsTeam:
		if refs.Team(spec.TeamID) == nil {
			res.errorf("action %s references unknown team %s", a.ID, spec.TeamID)
		}
	case models.ParticipantsPool:
		if refs.Pool(spec.PoolID) == nil {
			res.errorf("action %s references unknown pool %s", a.ID, spec.PoolID)
		}
	case models.ParticipantsDynamic:
		if refs.Agent(spec.DirectorAgentID) == nil {
			res.errorf("action %s references unknown director agent %s", a.ID, spec.DirectorAgentID)
		}
		if len(spec.CandidateAgentIDs) == 0 {
			res.errorf("action %s: dynamic participants with no candidates", a.ID)
		}
		for _, id := range spec.CandidateAgentIDs {
			if refs.Agent(id) == nil {
				res.errorf("action %s references unknown candidate agent %s", a.ID, id)
			}
		}
	case models.ParticipantsAllExecutives:
		// Resolved against the live registry at run time.
	}
}

// checkTokens warns about prompt tokens that no known variable supplies.
// Unresolved tokens pass through verbatim at run time, so this is never
// an error.
func checkTokens(a *models.Action, knownVars map[string]bool, res *ValidationResult) {
	for _, m := range tokenPattern.FindAllStringSubmatch(a.Prompt, -1) {
		name := m[1]
		if knownVars != nil && !knownVars[name] {
			res.warnf("action %s references undefined variable {{%s}}", a.ID, name)
		}
	}
}

// checkAwaitCycles rejects circular await chains within a phase.
func checkAwaitCycles(ph *models.Phase, res *ValidationResult) {
	awaits := make(map[string]string)
	for ai := range ph.Actions {
		a := &ph.Actions[ai]
		if a.Trigger == models.TriggerAwait && a.AwaitActionID != "" {
			awaits[a.ID] = a.AwaitActionID
		}
	}

	for start := range awaits {
		seen := map[string]bool{start: true}
		cur := awaits[start]
		for cur != "" {
			if seen[cur] {
				res.errorf("phase %s: circular await dependency involving action %s", ph.ID, start)
				break
			}
			seen[cur] = true
			cur = awaits[cur]
		}
	}
}
