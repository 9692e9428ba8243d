// Package registry holds the council's long-lived configuration: agents,
// agent pools, positions, and teams. It enforces the structural
// invariants of the organization graph; runs consume snapshots of it.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/councilhq/council/pkg/models"
)

// ErrPublisherProtected is returned when deleting the Publisher position.
var ErrPublisherProtected = fmt.Errorf("the Publisher position cannot be deleted")

// Registry is the in-memory store for agents, pools, positions and teams.
// All mutation goes through its methods so invariants hold at all times.
type Registry struct {
	agents    map[string]*models.Agent
	pools     map[string]*models.AgentPool
	positions map[string]*models.Position
	teams     map[string]*models.Team
	mu        sync.RWMutex
}

// New creates a Registry seeded with the mandatory Publisher position.
func New() *Registry {
	r := &Registry{
		agents:    make(map[string]*models.Agent),
		pools:     make(map[string]*models.AgentPool),
		positions: make(map[string]*models.Position),
		teams:     make(map[string]*models.Team),
	}
	r.positions[models.PublisherPositionID] = &models.Position{
		ID:   models.PublisherPositionID,
		Name: "Publisher",
		Tier: models.TierExecutive,
	}
	return r
}

// AddAgent registers an agent. A missing ID is filled in.
func (r *Registry) AddAgent(a *models.Agent) error {
	if a == nil {
		return fmt.Errorf("agent is nil")
	}
	if a.ID == "" {
		a.ID = uuid.New().String()[:8]
	}
	if a.Name == "" {
		return fmt.Errorf("agent %s has no name", a.ID)
	}
	if a.SystemPrompt.Source != "" && !a.SystemPrompt.Source.Valid() {
		return fmt.Errorf("agent %s: unknown prompt source %q", a.ID, a.SystemPrompt.Source)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID] = a
	return nil
}

// Agent returns a copy of the agent with the given ID, or nil.
// Returning a copy gives actions snapshot semantics: registry edits
// after dispatch never reach an in-flight action.
func (r *Registry) Agent(id string) *models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return nil
	}
	return a.Clone()
}

// Agents returns copies of all registered agents, sorted by ID.
func (r *Registry) Agents() []*models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RemoveAgent deletes an agent and clears any position assignment
// referencing it.
func (r *Registry) RemoveAgent(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.agents, id)
	for _, p := range r.positions {
		if p.AgentID == id {
			p.AgentID = ""
		}
	}
}

// AddPool registers an agent pool after validating its members exist.
func (r *Registry) AddPool(p *models.AgentPool) error {
	if p == nil {
		return fmt.Errorf("pool is nil")
	}
	if p.ID == "" {
		p.ID = uuid.New().String()[:8]
	}
	if len(p.AgentIDs) == 0 {
		return fmt.Errorf("pool %s has no members", p.ID)
	}
	if !p.Mode.Valid() {
		return fmt.Errorf("pool %s: unknown selection mode %q", p.ID, p.Mode)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range p.AgentIDs {
		if _, ok := r.agents[id]; !ok {
			return fmt.Errorf("pool %s references unknown agent %s", p.ID, id)
		}
	}
	r.pools[p.ID] = p
	return nil
}

// Pool returns the pool with the given ID, or nil.
func (r *Registry) Pool(id string) *models.AgentPool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[id]
	if !ok {
		return nil
	}
	cp := *p
	cp.AgentIDs = append([]string(nil), p.AgentIDs...)
	return &cp
}

// AddPosition registers a position. Exactly one of AgentID/PoolID may be
// set; a position with both is rejected.
func (r *Registry) AddPosition(p *models.Position) error {
	if p == nil {
		return fmt.Errorf("position is nil")
	}
	if p.ID == "" {
		p.ID = uuid.New().String()[:8]
	}
	if !p.Tier.Valid() {
		return fmt.Errorf("position %s: unknown tier %q", p.ID, p.Tier)
	}
	if p.AgentID != "" && p.PoolID != "" {
		return fmt.Errorf("position %s: agent and pool are mutually exclusive", p.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p.AgentID != "" {
		if _, ok := r.agents[p.AgentID]; !ok {
			return fmt.Errorf("position %s references unknown agent %s", p.ID, p.AgentID)
		}
	}
	if p.PoolID != "" {
		if _, ok := r.pools[p.PoolID]; !ok {
			return fmt.Errorf("position %s references unknown pool %s", p.ID, p.PoolID)
		}
	}
	r.positions[p.ID] = p
	return nil
}

// Position returns a copy of the position with the given ID, or nil.
func (r *Registry) Position(id string) *models.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.positions[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// Positions returns copies of all positions, sorted by ID.
func (r *Registry) Positions() []*models.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Position, 0, len(r.positions))
	for _, p := range r.positions {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AssignAgent fills a position with a fixed agent, clearing any pool
// assignment so the mutual-exclusion invariant holds.
func (r *Registry) AssignAgent(positionID, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.positions[positionID]
	if !ok {
		return fmt.Errorf("unknown position %s", positionID)
	}
	if _, ok := r.agents[agentID]; !ok {
		return fmt.Errorf("unknown agent %s", agentID)
	}
	p.AgentID = agentID
	p.PoolID = ""
	return nil
}

// AssignPool fills a position with an agent pool, clearing any fixed
// agent assignment.
func (r *Registry) AssignPool(positionID, poolID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.positions[positionID]
	if !ok {
		return fmt.Errorf("unknown position %s", positionID)
	}
	if _, ok := r.pools[poolID]; !ok {
		return fmt.Errorf("unknown pool %s", poolID)
	}
	p.PoolID = poolID
	p.AgentID = ""
	return nil
}

// DeletePosition removes a position. The Publisher position is protected.
func (r *Registry) DeletePosition(id string) error {
	if id == models.PublisherPositionID {
		return ErrPublisherProtected
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.positions[id]; !ok {
		return fmt.Errorf("unknown position %s", id)
	}
	delete(r.positions, id)
	for _, t := range r.teams {
		t.MemberPositionIDs = removeString(t.MemberPositionIDs, id)
	}
	return nil
}

// AddTeam registers a team. The leader must be one of the team's
// positions, and every member must exist.
func (r *Registry) AddTeam(t *models.Team) error {
	if t == nil {
		return fmt.Errorf("team is nil")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()[:8]
	}
	if !t.HasMember(t.LeaderPositionID) {
		return fmt.Errorf("team %s: leader %s is not a team member", t.ID, t.LeaderPositionID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range t.MemberPositionIDs {
		p, ok := r.positions[id]
		if !ok {
			return fmt.Errorf("team %s references unknown position %s", t.ID, id)
		}
		p.TeamID = t.ID
	}
	r.teams[t.ID] = t
	return nil
}

// Team returns a copy of the team with the given ID, or nil.
func (r *Registry) Team(id string) *models.Team {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.teams[id]
	if !ok {
		return nil
	}
	cp := *t
	cp.MemberPositionIDs = append([]string(nil), t.MemberPositionIDs...)
	return &cp
}

// Teams returns copies of all teams, sorted by ID.
func (r *Registry) Teams() []*models.Team {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Team, 0, len(r.teams))
	for _, t := range r.teams {
		cp := *t
		cp.MemberPositionIDs = append([]string(nil), t.MemberPositionIDs...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DeleteTeam removes a team. When cascade is true, the team's positions
// are removed as well (the Publisher is never cascaded).
func (r *Registry) DeleteTeam(id string, cascade bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.teams[id]
	if !ok {
		return fmt.Errorf("unknown team %s", id)
	}
	for _, pid := range t.MemberPositionIDs {
		if cascade && pid != models.PublisherPositionID {
			delete(r.positions, pid)
			continue
		}
		if p, ok := r.positions[pid]; ok {
			p.TeamID = ""
		}
	}
	delete(r.teams, id)
	return nil
}

// Executives returns copies of all executive-tier positions, sorted by ID.
func (r *Registry) Executives() []*models.Position {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Position
	for _, p := range r.positions {
		if p.Tier == models.TierExecutive {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
