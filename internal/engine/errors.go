package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for request-shape failures. These are rejected
// synchronously and never mutate run state.
var (
	// ErrNotFound indicates the requested pipeline or run is unknown.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyRunning indicates a run is already active in this session.
	ErrAlreadyRunning = errors.New("a run is already active")
	// ErrModeLocked indicates a delivery-mode switch was attempted while
	// a run is active.
	ErrModeLocked = errors.New("delivery mode is locked while a run is active")
	// ErrInvalidGavelResolution indicates an unrecognized gavel
	// resolution; the run stays paused.
	ErrInvalidGavelResolution = errors.New("invalid gavel resolution")
	// ErrNotPaused indicates resume was called on a run that is not paused.
	ErrNotPaused = errors.New("run is not paused")
	// ErrTerminal indicates an operation on a run that already ended.
	ErrTerminal = errors.New("run is in a terminal state")
)

// ValidationError reports structural pipeline problems that block start.
type ValidationError struct {
	// PipelineID is the pipeline that failed validation.
	PipelineID string
	// Problems lists the blocking findings.
	Problems []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("pipeline %s is invalid: %s", e.PipelineID, strings.Join(e.Problems, "; "))
}

// UnresolvedParticipantError indicates a participant spec resolved to
// nothing. An empty participant set for a required action is a failure,
// never a silent no-op.
type UnresolvedParticipantError struct {
	// ActionID is the action whose participants could not be resolved.
	ActionID string
	// Ref is the dangling reference, when one can be named.
	Ref string
}

// Error implements the error interface.
func (e *UnresolvedParticipantError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("action %s: participant %s has no assigned agent or pool", e.ActionID, e.Ref)
	}
	return fmt.Sprintf("action %s: participant spec resolved to no agents", e.ActionID)
}

// AgentInvocationError indicates an external model call failed. It is
// retried per the action's policy before failing the action.
type AgentInvocationError struct {
	// AgentID is the agent whose invocation failed.
	AgentID string
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *AgentInvocationError) Error() string {
	return fmt.Sprintf("agent %s invocation failed: %v", e.AgentID, e.Err)
}

// Unwrap returns the underlying error.
func (e *AgentInvocationError) Unwrap() error { return e.Err }

// TimeoutLevel names which budget a TimeoutError exhausted.
type TimeoutLevel string

const (
	// TimeoutAction is retryable at the action level.
	TimeoutAction TimeoutLevel = "action"
	// TimeoutPhase is fatal for the run.
	TimeoutPhase TimeoutLevel = "phase"
	// TimeoutPipeline is fatal for the run.
	TimeoutPipeline TimeoutLevel = "pipeline"
)

// TimeoutError indicates a budget was exceeded. Action-level timeouts
// are retryable; phase and pipeline timeouts are fatal.
type TimeoutError struct {
	// Level is the budget that was exhausted.
	Level TimeoutLevel
	// Budget is the configured limit.
	Budget time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s budget of %s exceeded", e.Level, e.Budget)
}

// Fatal returns true when the timeout terminates the run.
func (e *TimeoutError) Fatal() bool {
	return e.Level != TimeoutAction
}
