package models

import "time"

// RunStatus represents the lifecycle state of a pipeline run.
type RunStatus string

const (
	// RunIdle indicates the run has been created but not started.
	RunIdle RunStatus = "idle"
	// RunRunning indicates the run is actively executing.
	RunRunning RunStatus = "running"
	// RunPaused indicates the run is suspended (gavel or explicit pause).
	RunPaused RunStatus = "paused"
	// RunCompleted indicates the run finished successfully.
	RunCompleted RunStatus = "completed"
	// RunFailed indicates the run terminated with an error.
	RunFailed RunStatus = "failed"
	// RunAborted indicates the run was deliberately cancelled.
	RunAborted RunStatus = "aborted"
)

// Valid returns true if the status is a known value.
func (s RunStatus) Valid() bool {
	switch s {
	case RunIdle, RunRunning, RunPaused, RunCompleted, RunFailed, RunAborted:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is final.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunAborted:
		return true
	default:
		return false
	}
}

// ActionState represents the resolution of one action within a run.
type ActionState string

const (
	// ActionPending indicates the action has not been dispatched.
	ActionPending ActionState = "pending"
	// ActionDispatched indicates the action is in flight.
	ActionDispatched ActionState = "dispatched"
	// ActionResolved indicates the action completed successfully.
	ActionResolved ActionState = "resolved"
	// ActionFailed indicates the action exhausted its retries.
	ActionFailed ActionState = "failed"
	// ActionSkipped indicates the action was skipped (gavel skip or
	// continue-on-error policy).
	ActionSkipped ActionState = "skipped"
)

// RunVariables is a point-in-time copy of a run's variable scopes:
// the phase-local namespace of the phase that was executing, and the
// run-global namespace. Captured at terminal transition, so failed and
// aborted runs preserve everything accumulated up to that point.
type RunVariables struct {
	// PhaseLocal holds the phase-local scope at capture time.
	PhaseLocal map[string]string `json:"phase_local,omitempty"`
	// Global holds the run-global scope.
	Global map[string]string `json:"global,omitempty"`
}

// ThreadEntry is one line of a run's conversation log.
type ThreadEntry struct {
	// PhaseID is the phase in which the entry was produced.
	PhaseID string `json:"phase_id"`
	// ActionID is the action that produced the entry.
	ActionID string `json:"action_id"`
	// AgentID is the agent that produced the entry, if any.
	AgentID string `json:"agent_id,omitempty"`
	// Role classifies the entry (prompt, response, system, gavel).
	Role string `json:"role"`
	// Text is the entry content.
	Text string `json:"text"`
	// At is when the entry was recorded.
	At time.Time `json:"at"`
}

// Run is one live execution instance of a pipeline. It is owned
// exclusively by the execution engine and is never persisted beyond the
// active session except for thread-log export.
type Run struct {
	// ID is the unique identifier for this run.
	ID string `json:"id"`
	// PipelineID is the pipeline this run executes.
	PipelineID string `json:"pipeline_id"`
	// Status is the current lifecycle state.
	Status RunStatus `json:"status"`
	// PhaseIndex is the index of the phase currently executing.
	PhaseIndex int `json:"phase_index"`
	// ActionIndex is the index of the action cursor within the phase.
	ActionIndex int `json:"action_index"`
	// Stage is the lifecycle hook point the current phase is in.
	Stage PhaseStage `json:"stage"`
	// InitialInput is the input supplied at start.
	InitialInput string `json:"initial_input"`
	// FinalOutput is the pipeline's final consolidated text, populated
	// on completion (and partially on failure or abort).
	FinalOutput string `json:"final_output"`
	// Error holds the terminal error message for failed runs.
	Error string `json:"error,omitempty"`
	// ThreadLog is the conversation log, when thread logging is enabled.
	ThreadLog []ThreadEntry `json:"thread_log,omitempty"`
	// Variables is the variable state at terminal transition.
	Variables RunVariables `json:"variables"`
	// StartedAt is when execution began.
	StartedAt time.Time `json:"started_at"`
	// CompletedAt is when the run reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Snapshot returns a copy of the run safe to hand to subscribers. The
// thread log slice and variable maps are copied so callers cannot
// mutate engine state.
func (r *Run) Snapshot() Run {
	cp := *r
	if r.ThreadLog != nil {
		cp.ThreadLog = make([]ThreadEntry, len(r.ThreadLog))
		copy(cp.ThreadLog, r.ThreadLog)
	}
	cp.Variables.PhaseLocal = copyStringMap(r.Variables.PhaseLocal)
	cp.Variables.Global = copyStringMap(r.Variables.Global)
	return cp
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
