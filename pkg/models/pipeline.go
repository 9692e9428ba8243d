package models

import "time"

// ActionType identifies the atomic unit of work an action performs.
type ActionType string

const (
	// ActionStandard invokes the action's participants directly.
	ActionStandard ActionType = "standard"
	// ActionCRUDPipeline runs an external curation CRUD pipeline.
	ActionCRUDPipeline ActionType = "crud_pipeline"
	// ActionRAGPipeline runs an external retrieval pipeline.
	ActionRAGPipeline ActionType = "rag_pipeline"
	// ActionDeliberativeRAG runs retrieval and then deliberates over the
	// results with the action's participants.
	ActionDeliberativeRAG ActionType = "deliberative_rag"
	// ActionUserGavel suspends the run for human review.
	ActionUserGavel ActionType = "user_gavel"
	// ActionSystem performs an engine-internal step (e.g. variable seed).
	ActionSystem ActionType = "system"
	// ActionCharacterWorkshop spawns a dynamic participant set via a
	// director agent.
	ActionCharacterWorkshop ActionType = "character_workshop"
)

// Valid returns true if the action type is a known value.
func (t ActionType) Valid() bool {
	switch t {
	case ActionStandard, ActionCRUDPipeline, ActionRAGPipeline,
		ActionDeliberativeRAG, ActionUserGavel, ActionSystem,
		ActionCharacterWorkshop:
		return true
	default:
		return false
	}
}

// ExecutionMode determines whether the engine waits on an action.
type ExecutionMode string

const (
	// ExecSync waits for all participants before advancing.
	ExecSync ExecutionMode = "sync"
	// ExecAsync dispatches and reconciles results at phase end.
	ExecAsync ExecutionMode = "async"
)

// Valid returns true if the mode is a known value.
func (m ExecutionMode) Valid() bool {
	return m == ExecSync || m == ExecAsync
}

// TriggerType determines when an action activates within its phase.
type TriggerType string

const (
	// TriggerSequential runs the action in definition order.
	TriggerSequential TriggerType = "sequential"
	// TriggerAwait blocks later actions until the awaited action resolves.
	TriggerAwait TriggerType = "await"
	// TriggerOn activates only when a named event fires within the run.
	TriggerOn TriggerType = "on"
	// TriggerImmediate dispatches without waiting for the engine's turn.
	TriggerImmediate TriggerType = "immediate"
)

// Valid returns true if the trigger type is a known value.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerSequential, TriggerAwait, TriggerOn, TriggerImmediate:
		return true
	default:
		return false
	}
}

// ParticipantKind identifies how an action's participants are specified.
type ParticipantKind string

const (
	// ParticipantsExplicit lists fixed agent or position IDs.
	ParticipantsExplicit ParticipantKind = "explicit"
	// ParticipantsTeam resolves to all members of a team, leader first.
	ParticipantsTeam ParticipantKind = "team"
	// ParticipantsPool resolves one agent via the pool's selection mode.
	ParticipantsPool ParticipantKind = "pool"
	// ParticipantsDynamic asks a director agent to select a subset of
	// candidates based on the current context.
	ParticipantsDynamic ParticipantKind = "dynamic"
	// ParticipantsAllExecutives resolves every executive-tier position.
	ParticipantsAllExecutives ParticipantKind = "all_executives"
)

// Valid returns true if the kind is a known value.
func (k ParticipantKind) Valid() bool {
	switch k {
	case ParticipantsExplicit, ParticipantsTeam, ParticipantsPool,
		ParticipantsDynamic, ParticipantsAllExecutives:
		return true
	default:
		return false
	}
}

// ParticipantSpec describes which agents an action should invoke. The
// fields used depend on Kind.
type ParticipantSpec struct {
	// Kind selects the resolution strategy.
	Kind ParticipantKind `json:"kind" yaml:"kind"`
	// AgentIDs lists fixed agents for the explicit kind.
	AgentIDs []string `json:"agent_ids,omitempty" yaml:"agent_ids,omitempty"`
	// PositionIDs lists positions for the explicit kind.
	PositionIDs []string `json:"position_ids,omitempty" yaml:"position_ids,omitempty"`
	// TeamID names the team for the team kind.
	TeamID string `json:"team_id,omitempty" yaml:"team_id,omitempty"`
	// PoolID names the pool for the pool kind.
	PoolID string `json:"pool_id,omitempty" yaml:"pool_id,omitempty"`
	// DirectorAgentID is the agent that selects participants for the
	// dynamic kind.
	DirectorAgentID string `json:"director_agent_id,omitempty" yaml:"director_agent_id,omitempty"`
	// CandidateAgentIDs is the candidate set for the dynamic kind.
	CandidateAgentIDs []string `json:"candidate_agent_ids,omitempty" yaml:"candidate_agent_ids,omitempty"`
	// MaxSelect caps how many candidates the director may pick (0 = all).
	MaxSelect int `json:"max_select,omitempty" yaml:"max_select,omitempty"`
}

// RetryPolicy bounds action-level retries with a fixed delay.
type RetryPolicy struct {
	// Count is the number of retries after the first failure.
	Count int `json:"count" yaml:"count"`
	// Delay is the fixed wait between attempts.
	Delay time.Duration `json:"delay" yaml:"delay"`
}

// Action is the atomic unit of LLM or tool invocation within a phase.
type Action struct {
	// ID is the unique identifier for this action within the pipeline.
	ID string `json:"id" yaml:"id"`
	// Name is the display name of the action.
	Name string `json:"name" yaml:"name"`
	// Type selects what kind of work the action performs.
	Type ActionType `json:"type" yaml:"type"`
	// Mode selects sync or async execution.
	Mode ExecutionMode `json:"mode" yaml:"mode"`
	// Trigger selects when the action activates.
	Trigger TriggerType `json:"trigger" yaml:"trigger"`
	// TriggerEvent names the run event for the "on" trigger.
	TriggerEvent string `json:"trigger_event,omitempty" yaml:"trigger_event,omitempty"`
	// AwaitActionID names the sibling action the "await" trigger waits on.
	AwaitActionID string `json:"await_action_id,omitempty" yaml:"await_action_id,omitempty"`
	// Participants describes which agents to invoke.
	Participants ParticipantSpec `json:"participants" yaml:"participants"`
	// Prompt is the instruction template; {{tokens}} are substituted
	// from run variables at dispatch time.
	Prompt string `json:"prompt" yaml:"prompt"`
	// OutputVar names the phase-local variable receiving this action's
	// output. Empty means the output is only part of consolidation.
	OutputVar string `json:"output_var,omitempty" yaml:"output_var,omitempty"`
	// Designated marks the action whose output the phase uses under the
	// designated consolidation mode.
	Designated bool `json:"designated,omitempty" yaml:"designated,omitempty"`
	// CurationPipelineID names the external content pipeline for
	// crud_pipeline, rag_pipeline and deliberative_rag actions.
	CurationPipelineID string `json:"curation_pipeline_id,omitempty" yaml:"curation_pipeline_id,omitempty"`
	// Timeout is the per-action budget. Zero means no action budget.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// Retry bounds retries on invocation failure.
	Retry RetryPolicy `json:"retry" yaml:"retry"`
}

// ConsolidationMode determines how a phase folds its action outputs
// into a single phase output.
type ConsolidationMode string

const (
	// ConsolidateLastAction takes the final action's output verbatim.
	ConsolidateLastAction ConsolidationMode = "last_action"
	// ConsolidateSynthesize invokes a synthesis agent over all outputs.
	ConsolidateSynthesize ConsolidationMode = "synthesize"
	// ConsolidateUserGavel suspends for human consolidation.
	ConsolidateUserGavel ConsolidationMode = "user_gavel"
	// ConsolidateMerge concatenates outputs with separators.
	ConsolidateMerge ConsolidationMode = "merge"
	// ConsolidateDesignated uses the flagged action's output only.
	ConsolidateDesignated ConsolidationMode = "designated"
)

// Valid returns true if the mode is a known value.
func (m ConsolidationMode) Valid() bool {
	switch m {
	case ConsolidateLastAction, ConsolidateSynthesize, ConsolidateUserGavel,
		ConsolidateMerge, ConsolidateDesignated:
		return true
	default:
		return false
	}
}

// PhaseStage is a lifecycle hook point within a running phase.
type PhaseStage string

const (
	// StageStart fires when the phase begins.
	StageStart PhaseStage = "START"
	// StageBeforeActions fires before the first action dispatch.
	StageBeforeActions PhaseStage = "BEFORE_ACTIONS"
	// StageInProgress covers action dispatch and reconciliation.
	StageInProgress PhaseStage = "IN_PROGRESS"
	// StageAfterActions fires once every action has resolved.
	StageAfterActions PhaseStage = "AFTER_ACTIONS"
	// StageEnd fires after consolidation, before scope teardown.
	StageEnd PhaseStage = "END"
	// StageRespond fires when the phase output is published.
	StageRespond PhaseStage = "RESPOND"
)

// Phase is an ordered group of actions with a consolidation rule.
type Phase struct {
	// ID is the unique identifier for this phase within the pipeline.
	ID string `json:"id" yaml:"id"`
	// Name is the display name of the phase.
	Name string `json:"name" yaml:"name"`
	// Actions lists the phase's actions in definition order.
	Actions []Action `json:"actions" yaml:"actions"`
	// Consolidation selects how action outputs fold into one.
	Consolidation ConsolidationMode `json:"consolidation" yaml:"consolidation"`
	// SynthesisAgentID names the agent used by the synthesize mode.
	SynthesisAgentID string `json:"synthesis_agent_id,omitempty" yaml:"synthesis_agent_id,omitempty"`
	// MergeSeparator joins outputs under the merge mode.
	MergeSeparator string `json:"merge_separator,omitempty" yaml:"merge_separator,omitempty"`
	// OutputVar names the variable receiving the consolidated output.
	OutputVar string `json:"output_var,omitempty" yaml:"output_var,omitempty"`
	// PromoteOutput promotes OutputVar to the run-global scope when the
	// phase ends instead of letting it expire with the phase.
	PromoteOutput bool `json:"promote_output,omitempty" yaml:"promote_output,omitempty"`
	// ContinueOnActionError skips failed actions instead of failing the run.
	ContinueOnActionError bool `json:"continue_on_action_error,omitempty" yaml:"continue_on_action_error,omitempty"`
	// Timeout is the per-phase budget. Zero means no phase budget.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// ThreadsConfig controls the run's conversation thread log.
type ThreadsConfig struct {
	// Enabled turns thread logging on.
	Enabled bool `json:"enabled" yaml:"enabled"`
	// MaxEntries caps the in-memory thread log (0 = unbounded).
	MaxEntries int `json:"max_entries,omitempty" yaml:"max_entries,omitempty"`
}

// Pipeline is a reusable template of phases. It is cloned into a Run at
// execution time and never mutated by the engine.
type Pipeline struct {
	// ID is the unique identifier for this pipeline.
	ID string `json:"id" yaml:"id"`
	// Name is the display name of the pipeline.
	Name string `json:"name" yaml:"name"`
	// Phases lists the pipeline's phases in execution order.
	Phases []Phase `json:"phases" yaml:"phases"`
	// Threads configures the run's conversation log.
	Threads ThreadsConfig `json:"threads" yaml:"threads"`
	// Metadata holds free-form descriptive fields.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	// Timeout is the whole-pipeline budget. Zero means no budget.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// FindAction returns the action with the given ID and its phase index,
// or nil if no such action exists.
func (p *Pipeline) FindAction(actionID string) (*Action, int) {
	for pi := range p.Phases {
		for ai := range p.Phases[pi].Actions {
			if p.Phases[pi].Actions[ai].ID == actionID {
				return &p.Phases[pi].Actions[ai], pi
			}
		}
	}
	return nil, -1
}

// TokenMapping maps a host-prompt placeholder to a content source for
// the injection delivery mode.
type TokenMapping struct {
	// SourceToken is the placeholder name in the host prompt.
	SourceToken string `json:"source_token" yaml:"source_token"`
	// RAGPipelineID names the curation pipeline that produces content.
	// Empty when StaticValue is used instead.
	RAGPipelineID string `json:"rag_pipeline_id,omitempty" yaml:"rag_pipeline_id,omitempty"`
	// StaticValue substitutes a fixed string instead of running a pipeline.
	StaticValue string `json:"static_value,omitempty" yaml:"static_value,omitempty"`
	// MaxResults caps retrieval results passed to formatting.
	MaxResults int `json:"max_results,omitempty" yaml:"max_results,omitempty"`
	// OutputFormat names the formatting applied to retrieved content.
	OutputFormat string `json:"output_format,omitempty" yaml:"output_format,omitempty"`
	// Enabled toggles the mapping without deleting it.
	Enabled bool `json:"enabled" yaml:"enabled"`
}
