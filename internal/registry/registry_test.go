package registry

import (
	"errors"
	"testing"

	"github.com/councilhq/council/pkg/models"
)

func addAgents(t *testing.T, r *Registry, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := r.AddAgent(&models.Agent{ID: id, Name: id}); err != nil {
			t.Fatalf("AddAgent(%s): %v", id, err)
		}
	}
}

func TestNewSeedsPublisher(t *testing.T) {
	r := New()
	p := r.Position(models.PublisherPositionID)
	if p == nil {
		t.Fatal("Publisher position missing from a fresh registry")
	}
	if p.Tier != models.TierExecutive {
		t.Errorf("Publisher tier = %s, want executive", p.Tier)
	}
}

func TestPublisherCannotBeDeleted(t *testing.T) {
	r := New()
	if err := r.DeletePosition(models.PublisherPositionID); !errors.Is(err, ErrPublisherProtected) {
		t.Errorf("DeletePosition(publisher) = %v, want ErrPublisherProtected", err)
	}
}

func TestAddAgentValidation(t *testing.T) {
	r := New()
	if err := r.AddAgent(nil); err == nil {
		t.Error("AddAgent(nil) = nil error")
	}
	if err := r.AddAgent(&models.Agent{ID: "x"}); err == nil {
		t.Error("AddAgent without name = nil error")
	}

	a := &models.Agent{Name: "Anon"}
	if err := r.AddAgent(a); err != nil {
		t.Fatalf("AddAgent: %v", err)
	}
	if a.ID == "" {
		t.Error("AddAgent left the ID empty")
	}
}

func TestAgentReturnsSnapshot(t *testing.T) {
	r := New()
	addAgents(t, r, "alice")

	snap := r.Agent("alice")
	snap.Name = "mutated"

	if got := r.Agent("alice"); got.Name != "alice" {
		t.Error("mutating a returned agent reached registry state")
	}
	if r.Agent("ghost") != nil {
		t.Error("Agent(ghost) returned an agent")
	}
}

func TestRemoveAgentClearsAssignments(t *testing.T) {
	r := New()
	addAgents(t, r, "alice")
	if err := r.AddPosition(&models.Position{ID: "p1", Name: "P1", Tier: models.TierMember, AgentID: "alice"}); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}

	r.RemoveAgent("alice")
	if p := r.Position("p1"); p.AgentID != "" {
		t.Errorf("position still assigned to removed agent: %q", p.AgentID)
	}
}

func TestAddPoolValidation(t *testing.T) {
	r := New()
	addAgents(t, r, "alice")

	if err := r.AddPool(&models.AgentPool{ID: "empty", Mode: models.SelectRandom}); err == nil {
		t.Error("AddPool with no members = nil error")
	}
	if err := r.AddPool(&models.AgentPool{ID: "badmode", AgentIDs: []string{"alice"}, Mode: "psychic"}); err == nil {
		t.Error("AddPool with unknown mode = nil error")
	}
	if err := r.AddPool(&models.AgentPool{ID: "ghostly", AgentIDs: []string{"ghost"}, Mode: models.SelectRandom}); err == nil {
		t.Error("AddPool with unknown member = nil error")
	}
	if err := r.AddPool(&models.AgentPool{ID: "ok", AgentIDs: []string{"alice"}, Mode: models.SelectRoundRobin}); err != nil {
		t.Errorf("AddPool: %v", err)
	}
}

func TestPositionAgentPoolMutuallyExclusive(t *testing.T) {
	r := New()
	addAgents(t, r, "alice")
	if err := r.AddPool(&models.AgentPool{ID: "pool1", AgentIDs: []string{"alice"}, Mode: models.SelectRandom}); err != nil {
		t.Fatalf("AddPool: %v", err)
	}

	err := r.AddPosition(&models.Position{
		ID: "both", Name: "Both", Tier: models.TierMember,
		AgentID: "alice", PoolID: "pool1",
	})
	if err == nil {
		t.Fatal("AddPosition with both agent and pool = nil error")
	}

	// Assigning one side clears the other.
	if err := r.AddPosition(&models.Position{ID: "p1", Name: "P1", Tier: models.TierMember, AgentID: "alice"}); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	if err := r.AssignPool("p1", "pool1"); err != nil {
		t.Fatalf("AssignPool: %v", err)
	}
	p := r.Position("p1")
	if p.AgentID != "" || p.PoolID != "pool1" {
		t.Errorf("after AssignPool: agent=%q pool=%q", p.AgentID, p.PoolID)
	}

	if err := r.AssignAgent("p1", "alice"); err != nil {
		t.Fatalf("AssignAgent: %v", err)
	}
	p = r.Position("p1")
	if p.AgentID != "alice" || p.PoolID != "" {
		t.Errorf("after AssignAgent: agent=%q pool=%q", p.AgentID, p.PoolID)
	}
}

func TestAddTeamRequiresLeaderMembership(t *testing.T) {
	r := New()
	addAgents(t, r, "alice", "bob")
	for _, pid := range []string{"p1", "p2"} {
		if err := r.AddPosition(&models.Position{ID: pid, Name: pid, Tier: models.TierMember}); err != nil {
			t.Fatalf("AddPosition(%s): %v", pid, err)
		}
	}

	err := r.AddTeam(&models.Team{
		ID: "t1", Name: "T1",
		LeaderPositionID:  "outsider",
		MemberPositionIDs: []string{"p1", "p2"},
	})
	if err == nil {
		t.Error("AddTeam with non-member leader = nil error")
	}

	if err := r.AddTeam(&models.Team{
		ID: "t1", Name: "T1",
		LeaderPositionID:  "p1",
		MemberPositionIDs: []string{"p1", "p2"},
	}); err != nil {
		t.Fatalf("AddTeam: %v", err)
	}

	// Membership is reflected on the positions.
	if p := r.Position("p2"); p.TeamID != "t1" {
		t.Errorf("member position TeamID = %q, want t1", p.TeamID)
	}
}

func TestDeleteTeamCascade(t *testing.T) {
	r := New()
	addAgents(t, r, "alice")
	for _, pid := range []string{"p1", "p2"} {
		if err := r.AddPosition(&models.Position{ID: pid, Name: pid, Tier: models.TierMember}); err != nil {
			t.Fatalf("AddPosition(%s): %v", pid, err)
		}
	}
	if err := r.AddTeam(&models.Team{
		ID: "t1", Name: "T1",
		LeaderPositionID:  "p1",
		MemberPositionIDs: []string{"p1", "p2"},
	}); err != nil {
		t.Fatalf("AddTeam: %v", err)
	}

	if err := r.DeleteTeam("t1", true); err != nil {
		t.Fatalf("DeleteTeam: %v", err)
	}
	if r.Team("t1") != nil {
		t.Error("team still present after delete")
	}
	if r.Position("p1") != nil || r.Position("p2") != nil {
		t.Error("cascade delete left member positions behind")
	}
	// The Publisher survives any cascade.
	if r.Position(models.PublisherPositionID) == nil {
		t.Error("cascade delete removed the Publisher")
	}
}

func TestDeleteTeamWithoutCascade(t *testing.T) {
	r := New()
	addAgents(t, r, "alice")
	if err := r.AddPosition(&models.Position{ID: "p1", Name: "P1", Tier: models.TierMember}); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	if err := r.AddTeam(&models.Team{
		ID: "t1", Name: "T1", LeaderPositionID: "p1", MemberPositionIDs: []string{"p1"},
	}); err != nil {
		t.Fatalf("AddTeam: %v", err)
	}

	if err := r.DeleteTeam("t1", false); err != nil {
		t.Fatalf("DeleteTeam: %v", err)
	}
	p := r.Position("p1")
	if p == nil {
		t.Fatal("non-cascade delete removed the position")
	}
	if p.TeamID != "" {
		t.Errorf("position TeamID = %q after team delete, want cleared", p.TeamID)
	}
}

func TestDeletePositionDetachesFromTeams(t *testing.T) {
	r := New()
	addAgents(t, r, "alice")
	for _, pid := range []string{"p1", "p2"} {
		if err := r.AddPosition(&models.Position{ID: pid, Name: pid, Tier: models.TierMember}); err != nil {
			t.Fatalf("AddPosition(%s): %v", pid, err)
		}
	}
	if err := r.AddTeam(&models.Team{
		ID: "t1", Name: "T1", LeaderPositionID: "p1", MemberPositionIDs: []string{"p1", "p2"},
	}); err != nil {
		t.Fatalf("AddTeam: %v", err)
	}

	if err := r.DeletePosition("p2"); err != nil {
		t.Fatalf("DeletePosition: %v", err)
	}
	team := r.Team("t1")
	if team.HasMember("p2") {
		t.Error("deleted position still listed as team member")
	}
}

func TestExecutives(t *testing.T) {
	r := New()
	addAgents(t, r, "alice")
	if err := r.AddPosition(&models.Position{ID: "chief", Name: "Chief", Tier: models.TierExecutive, AgentID: "alice"}); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	if err := r.AddPosition(&models.Position{ID: "grunt", Name: "Grunt", Tier: models.TierMember}); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}

	execs := r.Executives()
	// chief plus the seeded Publisher.
	if len(execs) != 2 {
		ids := make([]string, len(execs))
		for i, p := range execs {
			ids[i] = p.ID
		}
		t.Errorf("Executives = %v, want [chief publisher]", ids)
	}
}

func TestPresetRoundTrip(t *testing.T) {
	src := New()
	addAgents(t, src, "alice", "bob")
	if err := src.AddPool(&models.AgentPool{ID: "pool1", AgentIDs: []string{"alice", "bob"}, Mode: models.SelectRoundRobin}); err != nil {
		t.Fatalf("AddPool: %v", err)
	}
	if err := src.AddPosition(&models.Position{ID: "p1", Name: "P1", Tier: models.TierLeader, AgentID: "alice"}); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	if err := src.AddTeam(&models.Team{ID: "t1", Name: "T1", LeaderPositionID: "p1", MemberPositionIDs: []string{"p1"}}); err != nil {
		t.Fatalf("AddTeam: %v", err)
	}

	data, err := src.ExportPreset()
	if err != nil {
		t.Fatalf("ExportPreset: %v", err)
	}

	dst := New()
	if err := dst.ApplyPreset(data); err != nil {
		t.Fatalf("ApplyPreset: %v", err)
	}

	if dst.Agent("alice") == nil || dst.Agent("bob") == nil {
		t.Error("agents missing after preset apply")
	}
	if dst.Pool("pool1") == nil {
		t.Error("pool missing after preset apply")
	}
	if dst.Team("t1") == nil {
		t.Error("team missing after preset apply")
	}
	if dst.Position(models.PublisherPositionID) == nil {
		t.Error("Publisher missing after preset apply")
	}
}

func TestApplyPresetRejectsBadPayloadAtomically(t *testing.T) {
	r := New()
	addAgents(t, r, "keeper")

	// Pool references an agent the preset does not define.
	bad := []byte(`{
		"agents": [{"id": "x", "name": "X"}],
		"pools": [{"id": "p", "agent_ids": ["ghost"], "mode": "random"}]
	}`)
	if err := r.ApplyPreset(bad); err == nil {
		t.Fatal("ApplyPreset(bad) = nil error")
	}

	// The registry is unchanged after a failed apply.
	if r.Agent("keeper") == nil {
		t.Error("failed preset apply mutated the registry")
	}
	if r.Agent("x") != nil {
		t.Error("failed preset apply leaked staged agents")
	}
}
