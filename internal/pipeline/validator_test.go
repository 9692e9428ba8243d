package pipeline

import (
	"strings"
	"testing"

	"github.com/councilhq/council/pkg/models"
)

// fakeRefs is a RefChecker over fixed ID sets.
type fakeRefs struct {
	agents    map[string]bool
	positions map[string]bool
	pools     map[string]bool
	teams     map[string]bool
}

func (f *fakeRefs) Agent(id string) *models.Agent {
	if f.agents[id] {
		return &models.Agent{ID: id}
	}
	return nil
}

func (f *fakeRefs) Position(id string) *models.Position {
	if f.positions[id] {
		return &models.Position{ID: id}
	}
	return nil
}

func (f *fakeRefs) Pool(id string) *models.AgentPool {
	if f.pools[id] {
		return &models.AgentPool{ID: id}
	}
	return nil
}

func (f *fakeRefs) Team(id string) *models.Team {
	if f.teams[id] {
		return &models.Team{ID: id}
	}
	return nil
}

func defaultRefs() *fakeRefs {
	return &fakeRefs{
		agents:    map[string]bool{"writer": true, "editor": true},
		positions: map[string]bool{"publisher": true},
		pools:     map[string]bool{"writers": true},
		teams:     map[string]bool{"core": true},
	}
}

func validPipeline() *models.Pipeline {
	return &models.Pipeline{
		ID: "p1",
		Phases: []models.Phase{{
			ID:            "ph1",
			Consolidation: models.ConsolidateLastAction,
			Actions: []models.Action{{
				ID:      "a1",
				Type:    models.ActionStandard,
				Mode:    models.ExecSync,
				Trigger: models.TriggerSequential,
				Participants: models.ParticipantSpec{
					Kind:     models.ParticipantsExplicit,
					AgentIDs: []string{"writer"},
				},
			}},
		}},
	}
}

func hasError(res *ValidationResult, substr string) bool {
	for _, e := range res.Errors {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

func TestValidatePasses(t *testing.T) {
	res := Validate(validPipeline(), defaultRefs(), nil)
	if !res.Valid() {
		t.Errorf("valid pipeline rejected: %v", res.Errors)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.Pipeline)
		wantErr string
	}{
		{
			name:    "no phases",
			mutate:  func(p *models.Pipeline) { p.Phases = nil },
			wantErr: "has no phases",
		},
		{
			name:    "phase with no actions",
			mutate:  func(p *models.Pipeline) { p.Phases[0].Actions = nil },
			wantErr: "has no actions",
		},
		{
			name: "duplicate action ids",
			mutate: func(p *models.Pipeline) {
				dup := p.Phases[0].Actions[0]
				p.Phases[0].Actions = append(p.Phases[0].Actions, dup)
			},
			wantErr: "duplicate action id",
		},
		{
			name:    "unknown consolidation",
			mutate:  func(p *models.Pipeline) { p.Phases[0].Consolidation = "vote" },
			wantErr: "unknown consolidation mode",
		},
		{
			name:    "unknown action type",
			mutate:  func(p *models.Pipeline) { p.Phases[0].Actions[0].Type = "teleport" },
			wantErr: "unknown type",
		},
		{
			name:    "unknown trigger",
			mutate:  func(p *models.Pipeline) { p.Phases[0].Actions[0].Trigger = "psychic" },
			wantErr: "unknown trigger type",
		},
		{
			name: "await missing target",
			mutate: func(p *models.Pipeline) {
				p.Phases[0].Actions[0].Trigger = models.TriggerAwait
			},
			wantErr: "await trigger without await_action_id",
		},
		{
			name: "await undefined action",
			mutate: func(p *models.Pipeline) {
				p.Phases[0].Actions[0].Trigger = models.TriggerAwait
				p.Phases[0].Actions[0].AwaitActionID = "ghost"
			},
			wantErr: "awaits undefined action",
		},
		{
			name: "on trigger without event",
			mutate: func(p *models.Pipeline) {
				p.Phases[0].Actions[0].Trigger = models.TriggerOn
			},
			wantErr: "on trigger without trigger_event",
		},
		{
			name: "rag without curation pipeline",
			mutate: func(p *models.Pipeline) {
				p.Phases[0].Actions[0].Type = models.ActionRAGPipeline
			},
			wantErr: "without curation_pipeline_id",
		},
		{
			name: "unknown agent reference",
			mutate: func(p *models.Pipeline) {
				p.Phases[0].Actions[0].Participants.AgentIDs = []string{"ghost"}
			},
			wantErr: "unknown agent ghost",
		},
		{
			name: "unknown team reference",
			mutate: func(p *models.Pipeline) {
				p.Phases[0].Actions[0].Participants = models.ParticipantSpec{
					Kind:   models.ParticipantsTeam,
					TeamID: "nope",
				}
			},
			wantErr: "unknown team",
		},
		{
			name: "unknown pool reference",
			mutate: func(p *models.Pipeline) {
				p.Phases[0].Actions[0].Participants = models.ParticipantSpec{
					Kind:   models.ParticipantsPool,
					PoolID: "nope",
				}
			},
			wantErr: "unknown pool",
		},
		{
			name: "designated mode without designated action",
			mutate: func(p *models.Pipeline) {
				p.Phases[0].Consolidation = models.ConsolidateDesignated
			},
			wantErr: "no designated action",
		},
		{
			name: "synthesize without agent",
			mutate: func(p *models.Pipeline) {
				p.Phases[0].Consolidation = models.ConsolidateSynthesize
			},
			wantErr: "synthesize consolidation with no synthesis agent",
		},
		{
			name: "unknown synthesis agent",
			mutate: func(p *models.Pipeline) {
				p.Phases[0].Consolidation = models.ConsolidateSynthesize
				p.Phases[0].SynthesisAgentID = "ghost"
			},
			wantErr: "synthesis agent ghost does not exist",
		},
		{
			name: "dynamic without candidates",
			mutate: func(p *models.Pipeline) {
				p.Phases[0].Actions[0].Participants = models.ParticipantSpec{
					Kind:            models.ParticipantsDynamic,
					DirectorAgentID: "editor",
				}
			},
			wantErr: "no candidates",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPipeline()
			tt.mutate(p)
			res := Validate(p, defaultRefs(), nil)
			if res.Valid() {
				t.Fatalf("pipeline accepted, want error containing %q", tt.wantErr)
			}
			if !hasError(res, tt.wantErr) {
				t.Errorf("errors = %v, want one containing %q", res.Errors, tt.wantErr)
			}
		})
	}
}

func TestValidateAwaitCycle(t *testing.T) {
	p := validPipeline()
	p.Phases[0].Actions = []models.Action{
		{
			ID: "a1", Type: models.ActionStandard, Mode: models.ExecSync,
			Trigger: models.TriggerAwait, AwaitActionID: "a2",
			Participants: models.ParticipantSpec{Kind: models.ParticipantsExplicit, AgentIDs: []string{"writer"}},
		},
		{
			ID: "a2", Type: models.ActionStandard, Mode: models.ExecSync,
			Trigger: models.TriggerAwait, AwaitActionID: "a1",
			Participants: models.ParticipantSpec{Kind: models.ParticipantsExplicit, AgentIDs: []string{"writer"}},
		},
	}

	res := Validate(p, defaultRefs(), nil)
	if !hasError(res, "circular await") {
		t.Errorf("errors = %v, want a circular await finding", res.Errors)
	}
}

func TestValidateUndefinedTokenIsWarningOnly(t *testing.T) {
	p := validPipeline()
	p.Phases[0].Actions[0].Prompt = "Use {{mysteryVar}} here"

	known := map[string]bool{"instructions": true}
	res := Validate(p, defaultRefs(), known)
	if !res.Valid() {
		t.Errorf("undefined token blocked execution: %v", res.Errors)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "mysteryVar") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want one naming mysteryVar", res.Warnings)
	}
}

func TestValidateKnownTokenNoWarning(t *testing.T) {
	p := validPipeline()
	p.Phases[0].Actions[0].Prompt = "Use {{instructions}}"

	res := Validate(p, defaultRefs(), map[string]bool{"instructions": true})
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", res.Warnings)
	}
}

func TestValidateCurationActionNeedsNoParticipants(t *testing.T) {
	p := validPipeline()
	p.Phases[0].Actions[0] = models.Action{
		ID:                 "r1",
		Type:               models.ActionRAGPipeline,
		Mode:               models.ExecSync,
		Trigger:            models.TriggerSequential,
		CurationPipelineID: "kb",
	}

	res := Validate(p, defaultRefs(), nil)
	if !res.Valid() {
		t.Errorf("curation-only action rejected: %v", res.Errors)
	}
}

func TestValidateGavelActionNeedsNoParticipants(t *testing.T) {
	p := validPipeline()
	p.Phases[0].Actions[0] = models.Action{
		ID:      "g1",
		Type:    models.ActionUserGavel,
		Mode:    models.ExecSync,
		Trigger: models.TriggerSequential,
	}

	res := Validate(p, defaultRefs(), nil)
	if !res.Valid() {
		t.Errorf("gavel action rejected: %v", res.Errors)
	}
}
