package models

// PositionTier classifies a position within the council hierarchy.
type PositionTier string

const (
	// TierExecutive positions sit above teams (e.g. the Publisher).
	TierExecutive PositionTier = "executive"
	// TierLeader positions lead a team.
	TierLeader PositionTier = "leader"
	// TierMember positions are regular team members.
	TierMember PositionTier = "member"
)

// Valid returns true if the tier is a known value.
func (t PositionTier) Valid() bool {
	switch t {
	case TierExecutive, TierLeader, TierMember:
		return true
	default:
		return false
	}
}

// PublisherPositionID is the fixed ID of the mandatory Publisher
// position. It always exists and cannot be deleted.
const PublisherPositionID = "publisher"

// Position is a named organizational role. A filled position is backed
// by exactly one of AgentID or PoolID, never both.
type Position struct {
	// ID is the unique identifier for this position.
	ID string `json:"id" yaml:"id"`
	// Name is the display name of the position.
	Name string `json:"name" yaml:"name"`
	// Tier classifies the position in the hierarchy.
	Tier PositionTier `json:"tier" yaml:"tier"`
	// TeamID is the team this position belongs to, if any.
	TeamID string `json:"team_id,omitempty" yaml:"team_id,omitempty"`
	// AgentID is the fixed agent assigned to the position.
	AgentID string `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	// PoolID is the agent pool assigned to the position.
	PoolID string `json:"pool_id,omitempty" yaml:"pool_id,omitempty"`
}

// Filled returns true if the position has an agent or pool assigned.
func (p *Position) Filled() bool {
	return p.AgentID != "" || p.PoolID != ""
}

// Team groups positions under a leader.
type Team struct {
	// ID is the unique identifier for this team.
	ID string `json:"id" yaml:"id"`
	// Name is the display name of the team.
	Name string `json:"name" yaml:"name"`
	// LeaderPositionID is the position that leads the team. It must be
	// one of the team's positions.
	LeaderPositionID string `json:"leader_position_id" yaml:"leader_position_id"`
	// MemberPositionIDs lists the team's positions in order.
	MemberPositionIDs []string `json:"member_position_ids" yaml:"member_position_ids"`
}

// HasMember returns true if the given position belongs to the team.
func (t *Team) HasMember(positionID string) bool {
	for _, id := range t.MemberPositionIDs {
		if id == positionID {
			return true
		}
	}
	return false
}
