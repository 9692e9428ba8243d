package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/councilhq/council/internal/registry"
	"github.com/councilhq/council/pkg/models"
)

func resolverRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, id := range []string{"alice", "bob", "carol", "dave"} {
		if err := reg.AddAgent(&models.Agent{ID: id, Name: id}); err != nil {
			t.Fatalf("AddAgent(%s): %v", id, err)
		}
	}
	return reg
}

func agentIDs(ps []Participant) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Agent.ID
	}
	return out
}

func TestResolveExplicitAgents(t *testing.T) {
	reg := resolverRegistry(t)
	r := NewResolver(reg, nil, nil)

	ps, err := r.Resolve(context.Background(), "a1", models.ParticipantSpec{
		Kind:     models.ParticipantsExplicit,
		AgentIDs: []string{"alice", "bob"},
	}, NewVarStore(), "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := agentIDs(ps); len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("participants = %v, want [alice bob]", got)
	}
}

func TestResolveExplicitUnknownAgent(t *testing.T) {
	reg := resolverRegistry(t)
	r := NewResolver(reg, nil, nil)

	_, err := r.Resolve(context.Background(), "a1", models.ParticipantSpec{
		Kind:     models.ParticipantsExplicit,
		AgentIDs: []string{"ghost"},
	}, NewVarStore(), "")

	var uerr *UnresolvedParticipantError
	if !errors.As(err, &uerr) {
		t.Fatalf("err = %v, want *UnresolvedParticipantError", err)
	}
	if uerr.Ref != "ghost" {
		t.Errorf("Ref = %q, want ghost", uerr.Ref)
	}
}

func TestResolveDeduplicates(t *testing.T) {
	reg := resolverRegistry(t)
	r := NewResolver(reg, nil, nil)

	ps, err := r.Resolve(context.Background(), "a1", models.ParticipantSpec{
		Kind:     models.ParticipantsExplicit,
		AgentIDs: []string{"alice", "bob", "alice"},
	}, NewVarStore(), "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := agentIDs(ps); len(got) != 2 {
		t.Errorf("participants = %v, want duplicates removed", got)
	}
}

func TestResolveUnfilledPosition(t *testing.T) {
	reg := resolverRegistry(t)
	if err := reg.AddPosition(&models.Position{ID: "vacant", Name: "Vacant", Tier: models.TierMember}); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	r := NewResolver(reg, nil, nil)

	_, err := r.Resolve(context.Background(), "a1", models.ParticipantSpec{
		Kind:        models.ParticipantsExplicit,
		PositionIDs: []string{"vacant"},
	}, NewVarStore(), "")

	var uerr *UnresolvedParticipantError
	if !errors.As(err, &uerr) {
		t.Fatalf("err = %v, want *UnresolvedParticipantError for an unfilled position", err)
	}
}

func TestResolveTeamLeaderFirst(t *testing.T) {
	reg := resolverRegistry(t)
	positions := map[string]string{"p-lead": "carol", "p-m1": "alice", "p-m2": "bob"}
	for pid, aid := range positions {
		tier := models.TierMember
		if pid == "p-lead" {
			tier = models.TierLeader
		}
		if err := reg.AddPosition(&models.Position{ID: pid, Name: pid, Tier: tier, AgentID: aid}); err != nil {
			t.Fatalf("AddPosition(%s): %v", pid, err)
		}
	}
	if err := reg.AddTeam(&models.Team{
		ID:                "team1",
		Name:              "Team One",
		LeaderPositionID:  "p-lead",
		MemberPositionIDs: []string{"p-m1", "p-lead", "p-m2"},
	}); err != nil {
		t.Fatalf("AddTeam: %v", err)
	}

	r := NewResolver(reg, nil, nil)
	ps, err := r.Resolve(context.Background(), "a1", models.ParticipantSpec{
		Kind:   models.ParticipantsTeam,
		TeamID: "team1",
	}, NewVarStore(), "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	got := agentIDs(ps)
	if len(got) != 3 || got[0] != "carol" {
		t.Errorf("participants = %v, want leader carol first", got)
	}
}

func TestResolvePoolRoundRobin(t *testing.T) {
	reg := resolverRegistry(t)
	if err := reg.AddPool(&models.AgentPool{
		ID:       "pool1",
		AgentIDs: []string{"alice", "bob", "carol"},
		Mode:     models.SelectRoundRobin,
	}); err != nil {
		t.Fatalf("AddPool: %v", err)
	}

	r := NewResolver(reg, nil, nil)
	spec := models.ParticipantSpec{Kind: models.ParticipantsPool, PoolID: "pool1"}

	want := []string{"alice", "bob", "carol", "alice"}
	for i, w := range want {
		ps, err := r.Resolve(context.Background(), "a1", spec, NewVarStore(), "")
		if err != nil {
			t.Fatalf("Resolve #%d: %v", i, err)
		}
		if len(ps) != 1 || ps[0].Agent.ID != w {
			t.Errorf("selection #%d = %v, want %s", i, agentIDs(ps), w)
		}
	}
}

func TestResolvePoolRandomUsesInjectedRand(t *testing.T) {
	reg := resolverRegistry(t)
	if err := reg.AddPool(&models.AgentPool{
		ID:       "pool1",
		AgentIDs: []string{"alice", "bob", "carol"},
		Mode:     models.SelectRandom,
	}); err != nil {
		t.Fatalf("AddPool: %v", err)
	}

	r := NewResolver(reg, nil, nil)
	r.randIntn = func(n int) int { return 2 }

	ps, err := r.Resolve(context.Background(), "a1",
		models.ParticipantSpec{Kind: models.ParticipantsPool, PoolID: "pool1"}, NewVarStore(), "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(ps) != 1 || ps[0].Agent.ID != "carol" {
		t.Errorf("selection = %v, want carol", agentIDs(ps))
	}
}

func TestResolvePoolWeighted(t *testing.T) {
	reg := resolverRegistry(t)
	if err := reg.AddPool(&models.AgentPool{
		ID:       "pool1",
		AgentIDs: []string{"alice", "bob"},
		Mode:     models.SelectWeighted,
		Weights:  map[string]float64{"alice": 1, "bob": 3},
	}); err != nil {
		t.Fatalf("AddPool: %v", err)
	}

	r := NewResolver(reg, nil, nil)
	spec := models.ParticipantSpec{Kind: models.ParticipantsPool, PoolID: "pool1"}

	// roll = randIntn(1e6)/1e6 * total(4). 0 lands on alice; 500000
	// gives roll=2.0, past alice's cumulative weight of 1, so bob.
	r.randIntn = func(n int) int { return 0 }
	ps, err := r.Resolve(context.Background(), "a1", spec, NewVarStore(), "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ps[0].Agent.ID != "alice" {
		t.Errorf("low roll selected %s, want alice", ps[0].Agent.ID)
	}

	r.randIntn = func(n int) int { return 500000 }
	ps, err = r.Resolve(context.Background(), "a1", spec, NewVarStore(), "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ps[0].Agent.ID != "bob" {
		t.Errorf("high roll selected %s, want bob", ps[0].Agent.ID)
	}
}

func TestResolveAllExecutives(t *testing.T) {
	reg := resolverRegistry(t)
	if err := reg.AddPosition(&models.Position{ID: "exec1", Name: "Chief", Tier: models.TierExecutive, AgentID: "alice"}); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	// The mandatory Publisher position exists but is unfilled, so it is
	// not resolved.
	r := NewResolver(reg, nil, nil)

	ps, err := r.Resolve(context.Background(), "a1",
		models.ParticipantSpec{Kind: models.ParticipantsAllExecutives}, NewVarStore(), "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := agentIDs(ps); len(got) != 1 || got[0] != "alice" {
		t.Errorf("participants = %v, want [alice]", got)
	}
}

func TestResolveDynamic(t *testing.T) {
	reg := resolverRegistry(t)
	inv := InvokerFunc(func(ctx context.Context, agent *models.Agent, systemPrompt, input string) (string, error) {
		if agent.ID != "dave" {
			t.Errorf("director = %s, want dave", agent.ID)
		}
		return "bob\n- carol\nnot-a-candidate\n", nil
	})
	r := NewResolver(reg, inv, nil)

	ps, err := r.Resolve(context.Background(), "a1", models.ParticipantSpec{
		Kind:              models.ParticipantsDynamic,
		DirectorAgentID:   "dave",
		CandidateAgentIDs: []string{"alice", "bob", "carol"},
		MaxSelect:         2,
	}, NewVarStore(), "pick reviewers")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := agentIDs(ps); len(got) != 2 || got[0] != "bob" || got[1] != "carol" {
		t.Errorf("participants = %v, want [bob carol]", got)
	}
}

func TestResolveDynamicEmptySelectionIsError(t *testing.T) {
	reg := resolverRegistry(t)
	inv := InvokerFunc(func(ctx context.Context, agent *models.Agent, systemPrompt, input string) (string, error) {
		return "nobody useful", nil
	})
	r := NewResolver(reg, inv, nil)

	_, err := r.Resolve(context.Background(), "a1", models.ParticipantSpec{
		Kind:              models.ParticipantsDynamic,
		DirectorAgentID:   "dave",
		CandidateAgentIDs: []string{"alice"},
	}, NewVarStore(), "")

	var uerr *UnresolvedParticipantError
	if !errors.As(err, &uerr) {
		t.Fatalf("err = %v, want *UnresolvedParticipantError for an empty selection", err)
	}
}

func TestSystemPromptTokensSource(t *testing.T) {
	reg := registry.New()
	if err := reg.AddAgent(&models.Agent{
		ID:   "styled",
		Name: "Styled",
		SystemPrompt: models.SystemPromptSpec{
			Source: models.PromptSourceTokens,
			Text:   "You write in the style of {{styleGuide}}.",
		},
	}); err != nil {
		t.Fatalf("AddAgent: %v", err)
	}

	vars := NewVarStore()
	vars.SetGlobal("styleGuide", "noir fiction")

	r := NewResolver(reg, nil, nil)
	ps, err := r.Resolve(context.Background(), "a1", models.ParticipantSpec{
		Kind:     models.ParticipantsExplicit,
		AgentIDs: []string{"styled"},
	}, vars, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ps[0].SystemPrompt != "You write in the style of noir fiction." {
		t.Errorf("system prompt = %q, want tokens substituted", ps[0].SystemPrompt)
	}
}
