package engine

import (
	"context"
	"sync"
	"time"
)

// GavelResolution is the human's decision on a gavel checkpoint.
type GavelResolution string

const (
	// GavelApprove resumes the run with the gated text unchanged.
	GavelApprove GavelResolution = "approve"
	// GavelEdit resumes with reviewer-supplied replacement text.
	GavelEdit GavelResolution = "edit_and_approve"
	// GavelSkip resumes and discards the gated output.
	GavelSkip GavelResolution = "skip"
)

// Valid returns true if the resolution is one of the three defined
// outcomes. Anything else is an InvalidGavelResolution and leaves the
// run paused.
func (r GavelResolution) Valid() bool {
	switch r {
	case GavelApprove, GavelEdit, GavelSkip:
		return true
	default:
		return false
	}
}

// GavelRequest is sent to the external reviewer when a user_gavel
// action is reached.
type GavelRequest struct {
	// RunID is the paused run.
	RunID string
	// PhaseID is the phase containing the gavel action.
	PhaseID string
	// ActionID is the gavel action.
	ActionID string
	// Text is the current consolidated text under review.
	Text string
	// RequestedAt is when the run paused.
	RequestedAt time.Time
}

// GavelDecision is the reviewer's response to a GavelRequest.
type GavelDecision struct {
	// RunID is the run being resumed.
	RunID string
	// Resolution selects approve, edit_and_approve, or skip.
	Resolution GavelResolution
	// ReplacementText carries the edited text for edit_and_approve.
	ReplacementText string
}

// GavelGate suspends runs at human review checkpoints. The run loop
// blocks in WaitForDecision; the reviewer answers via SubmitDecision
// (wired through Engine.ResolveGavel, which validates the resolution).
type GavelGate struct {
	requestCh chan GavelRequest
	pending   map[string]chan GavelDecision
	mu        sync.RWMutex
}

// NewGavelGate creates a GavelGate.
func NewGavelGate() *GavelGate {
	return &GavelGate{
		requestCh: make(chan GavelRequest, 10),
		pending:   make(map[string]chan GavelDecision),
	}
}

// Requests returns a read-only channel of pending gavel requests.
// External reviewer surfaces (TUI, host UI) listen on this channel.
func (g *GavelGate) Requests() <-chan GavelRequest {
	return g.requestCh
}

// WaitForDecision blocks until the reviewer resolves the checkpoint or
// the context is cancelled. Invalid resolutions never reach this method;
// they are rejected at submission and the wait continues.
func (g *GavelGate) WaitForDecision(ctx context.Context, req GavelRequest) (GavelDecision, error) {
	decisionCh := make(chan GavelDecision, 1)

	g.mu.Lock()
	g.pending[req.RunID] = decisionCh
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.pending, req.RunID)
		g.mu.Unlock()
	}()

	select {
	case g.requestCh <- req:
	case <-ctx.Done():
		return GavelDecision{}, ctx.Err()
	}

	select {
	case d := <-decisionCh:
		return d, nil
	case <-ctx.Done():
		return GavelDecision{}, ctx.Err()
	}
}

// SubmitDecision delivers a reviewer decision for a waiting run.
// Unknown resolutions are rejected with ErrInvalidGavelResolution,
// leaving the run paused for a re-prompt. Decisions for runs that are
// not waiting return ErrNotPaused.
func (g *GavelGate) SubmitDecision(d GavelDecision) error {
	if !d.Resolution.Valid() {
		return ErrInvalidGavelResolution
	}

	g.mu.RLock()
	ch, exists := g.pending[d.RunID]
	g.mu.RUnlock()

	if !exists {
		return ErrNotPaused
	}

	select {
	case ch <- d:
		return nil
	default:
		// Decision already submitted for this checkpoint.
		return nil
	}
}

// HasPending returns true if the run is waiting on a gavel decision.
func (g *GavelGate) HasPending(runID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, exists := g.pending[runID]
	return exists
}
