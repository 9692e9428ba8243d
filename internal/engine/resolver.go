package engine

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/councilhq/council/internal/persist"
	"github.com/councilhq/council/internal/registry"
	"github.com/councilhq/council/pkg/models"
)

// Participant is one resolved agent plus the system prompt it will use
// for this turn.
type Participant struct {
	// Agent is a snapshot of the agent at resolution time.
	Agent *models.Agent
	// SystemPrompt is the fully resolved system prompt text.
	SystemPrompt string
}

// Resolver turns abstract participant specs into ordered, deduplicated
// lists of concrete agents. One Resolver is created per run: pool
// rotation counters live for the run and are discarded with it.
type Resolver struct {
	reg     *registry.Registry
	invoker Invoker
	presets persist.Store

	// rotation holds round-robin cursors keyed by pool ID.
	rotation map[string]int
	// randIntn is swappable for deterministic tests.
	randIntn func(n int) int
	mu       sync.Mutex
}

// NewResolver creates a per-run Resolver. invoker is used only for
// dynamic (director-selected) specs; presets only for preset-sourced
// system prompts. Either may be nil when unused.
func NewResolver(reg *registry.Registry, invoker Invoker, presets persist.Store) *Resolver {
	return &Resolver{
		reg:      reg,
		invoker:  invoker,
		presets:  presets,
		rotation: make(map[string]int),
		randIntn: rand.Intn,
	}
}

// Resolve returns the ordered, deduplicated participants for an action.
// An empty result is reported as UnresolvedParticipantError, never
// silently skipped.
func (r *Resolver) Resolve(ctx context.Context, actionID string, spec models.ParticipantSpec, vars *VarStore, input string) ([]Participant, error) {
	var agents []*models.Agent
	var err error

	switch spec.Kind {
	case models.ParticipantsExplicit:
		agents, err = r.resolveExplicit(actionID, spec)
	case models.ParticipantsTeam:
		agents, err = r.resolveTeam(actionID, spec.TeamID)
	case models.ParticipantsPool:
		agents, err = r.resolvePoolRef(actionID, spec.PoolID)
	case models.ParticipantsDynamic:
		agents, err = r.resolveDynamic(ctx, actionID, spec, input)
	case models.ParticipantsAllExecutives:
		agents, err = r.resolveExecutives(actionID)
	default:
		return nil, fmt.Errorf("action %s: unknown participant kind %q", actionID, spec.Kind)
	}
	if err != nil {
		return nil, err
	}

	agents = dedupeAgents(agents)
	if len(agents) == 0 {
		return nil, &UnresolvedParticipantError{ActionID: actionID}
	}

	out := make([]Participant, 0, len(agents))
	for _, a := range agents {
		prompt, err := r.systemPrompt(a, vars)
		if err != nil {
			return nil, err
		}
		out = append(out, Participant{Agent: a, SystemPrompt: prompt})
	}
	return out, nil
}

// resolveExplicit resolves a fixed list of agent and position IDs.
func (r *Resolver) resolveExplicit(actionID string, spec models.ParticipantSpec) ([]*models.Agent, error) {
	var agents []*models.Agent
	for _, id := range spec.AgentIDs {
		a := r.reg.Agent(id)
		if a == nil {
			return nil, &UnresolvedParticipantError{ActionID: actionID, Ref: id}
		}
		agents = append(agents, a)
	}
	for _, id := range spec.PositionIDs {
		a, err := r.resolvePosition(actionID, id)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, nil
}

// resolvePosition resolves one position to its assigned agent, going
// through the pool's selection mode when a pool is assigned.
func (r *Resolver) resolvePosition(actionID, positionID string) (*models.Agent, error) {
	p := r.reg.Position(positionID)
	if p == nil {
		return nil, &UnresolvedParticipantError{ActionID: actionID, Ref: positionID}
	}
	if p.AgentID != "" {
		a := r.reg.Agent(p.AgentID)
		if a == nil {
			return nil, &UnresolvedParticipantError{ActionID: actionID, Ref: p.AgentID}
		}
		return a, nil
	}
	if p.PoolID != "" {
		return r.selectFromPool(actionID, p.PoolID)
	}
	return nil, &UnresolvedParticipantError{ActionID: actionID, Ref: positionID}
}

// resolveTeam resolves every member of a team, leader first.
func (r *Resolver) resolveTeam(actionID, teamID string) ([]*models.Agent, error) {
	t := r.reg.Team(teamID)
	if t == nil {
		return nil, &UnresolvedParticipantError{ActionID: actionID, Ref: teamID}
	}

	ordered := []string{t.LeaderPositionID}
	for _, id := range t.MemberPositionIDs {
		if id != t.LeaderPositionID {
			ordered = append(ordered, id)
		}
	}

	var agents []*models.Agent
	for _, pid := range ordered {
		a, err := r.resolvePosition(actionID, pid)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, nil
}

// resolvePoolRef resolves a pool spec to one selected agent.
func (r *Resolver) resolvePoolRef(actionID, poolID string) ([]*models.Agent, error) {
	a, err := r.selectFromPool(actionID, poolID)
	if err != nil {
		return nil, err
	}
	return []*models.Agent{a}, nil
}

// selectFromPool picks the next agent from a pool per its mode.
func (r *Resolver) selectFromPool(actionID, poolID string) (*models.Agent, error) {
	pool := r.reg.Pool(poolID)
	if pool == nil || len(pool.AgentIDs) == 0 {
		return nil, &UnresolvedParticipantError{ActionID: actionID, Ref: poolID}
	}

	var agentID string
	switch pool.Mode {
	case models.SelectRoundRobin:
		r.mu.Lock()
		idx := r.rotation[poolID] % len(pool.AgentIDs)
		r.rotation[poolID]++
		r.mu.Unlock()
		agentID = pool.AgentIDs[idx]
	case models.SelectWeighted:
		agentID = r.selectWeighted(pool)
	default: // random
		r.mu.Lock()
		agentID = pool.AgentIDs[r.randIntn(len(pool.AgentIDs))]
		r.mu.Unlock()
	}

	a := r.reg.Agent(agentID)
	if a == nil {
		return nil, &UnresolvedParticipantError{ActionID: actionID, Ref: agentID}
	}
	return a, nil
}

// selectWeighted picks proportionally to configured weights, normalized
// at selection time. Members without a weight get weight 1.
func (r *Resolver) selectWeighted(pool *models.AgentPool) string {
	weights := make([]float64, len(pool.AgentIDs))
	var total float64
	for i, id := range pool.AgentIDs {
		w := 1.0
		if pool.Weights != nil {
			if v, ok := pool.Weights[id]; ok && v > 0 {
				w = v
			}
		}
		weights[i] = w
		total += w
	}

	r.mu.Lock()
	roll := float64(r.randIntn(1_000_000)) / 1_000_000 * total
	r.mu.Unlock()

	var acc float64
	for i, w := range weights {
		acc += w
		if roll < acc {
			return pool.AgentIDs[i]
		}
	}
	return pool.AgentIDs[len(pool.AgentIDs)-1]
}

// resolveExecutives resolves every filled executive-tier position.
func (r *Resolver) resolveExecutives(actionID string) ([]*models.Agent, error) {
	var agents []*models.Agent
	for _, p := range r.reg.Executives() {
		if !p.Filled() {
			continue
		}
		a, err := r.resolvePosition(actionID, p.ID)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, nil
}

// resolveDynamic asks the director agent to pick a subset of the
// candidate set based on the current input.
func (r *Resolver) resolveDynamic(ctx context.Context, actionID string, spec models.ParticipantSpec, input string) ([]*models.Agent, error) {
	director := r.reg.Agent(spec.DirectorAgentID)
	if director == nil {
		return nil, &UnresolvedParticipantError{ActionID: actionID, Ref: spec.DirectorAgentID}
	}
	if r.invoker == nil {
		return nil, fmt.Errorf("action %s: dynamic participants require an invoker", actionID)
	}

	candidates := make(map[string]*models.Agent, len(spec.CandidateAgentIDs))
	var roster []string
	for _, id := range spec.CandidateAgentIDs {
		a := r.reg.Agent(id)
		if a == nil {
			return nil, &UnresolvedParticipantError{ActionID: actionID, Ref: id}
		}
		candidates[id] = a
		roster = append(roster, fmt.Sprintf("%s: %s", a.ID, a.Name))
	}

	prompt := fmt.Sprintf(
		"Select the participants best suited to the request below. "+
			"Respond with one candidate ID per line, nothing else.\n\nCandidates:\n%s\n\nRequest:\n%s",
		strings.Join(roster, "\n"), input)

	resp, err := r.invoker.Invoke(ctx, director, director.SystemPrompt.Text, prompt)
	if err != nil {
		return nil, &AgentInvocationError{AgentID: director.ID, Err: err}
	}

	var selected []*models.Agent
	for _, line := range strings.Split(resp, "\n") {
		id := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if a, ok := candidates[id]; ok {
			selected = append(selected, a)
			if spec.MaxSelect > 0 && len(selected) >= spec.MaxSelect {
				break
			}
		}
	}
	return selected, nil
}

// systemPrompt resolves an agent's system prompt for this turn.
func (r *Resolver) systemPrompt(a *models.Agent, vars *VarStore) (string, error) {
	switch a.SystemPrompt.Source {
	case models.PromptSourcePreset:
		if r.presets != nil && a.SystemPrompt.PresetKey != "" {
			data, err := r.presets.Load(a.SystemPrompt.PresetKey, persist.ScopePreset)
			if err == nil {
				return string(data), nil
			}
			// Fall back to the last resolved text on a missing preset.
		}
		return a.SystemPrompt.Text, nil
	case models.PromptSourceTokens:
		if vars == nil {
			return a.SystemPrompt.Text, nil
		}
		text, _ := vars.Substitute(a.SystemPrompt.Text)
		return text, nil
	default:
		return a.SystemPrompt.Text, nil
	}
}

// dedupeAgents removes duplicate agents preserving first-seen order.
func dedupeAgents(agents []*models.Agent) []*models.Agent {
	seen := make(map[string]bool, len(agents))
	out := agents[:0]
	for _, a := range agents {
		if a == nil || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	return out
}
