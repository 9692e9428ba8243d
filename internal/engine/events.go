package engine

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/councilhq/council/pkg/models"
)

// EventType represents the type of engine event.
type EventType string

const (
	// EventRunStarted indicates a run has begun executing.
	EventRunStarted EventType = "run_started"
	// EventRunPaused indicates a run was suspended.
	EventRunPaused EventType = "run_paused"
	// EventRunResumed indicates a paused run re-entered execution.
	EventRunResumed EventType = "run_resumed"
	// EventRunCompleted indicates a run finished successfully.
	EventRunCompleted EventType = "run_completed"
	// EventRunFailed indicates a run terminated with an error.
	EventRunFailed EventType = "run_failed"
	// EventRunAborted indicates a run was deliberately cancelled.
	EventRunAborted EventType = "run_aborted"
	// EventPhaseStage indicates a phase reached a lifecycle hook point.
	EventPhaseStage EventType = "phase_stage"
	// EventActionStarted indicates an action has been dispatched.
	EventActionStarted EventType = "action_started"
	// EventActionCompleted indicates an action resolved successfully.
	EventActionCompleted EventType = "action_completed"
	// EventActionFailed indicates an action exhausted its retries.
	EventActionFailed EventType = "action_failed"
	// EventActionSkipped indicates an action was skipped by policy.
	EventActionSkipped EventType = "action_skipped"
	// EventGavelRequested indicates the run is waiting on human review.
	EventGavelRequested EventType = "gavel_requested"
	// EventGavelResolved indicates human review concluded.
	EventGavelResolved EventType = "gavel_resolved"
	// EventDelivered indicates the final output reached the host.
	EventDelivered EventType = "delivered"
)

// Event is one entry on the engine's typed lifecycle channel. External
// subscribers (UI, logging) receive these read-only; they cannot mutate
// engine state through the channel.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// RunID is the run the event belongs to.
	RunID string
	// Status is the run status at emission time.
	Status models.RunStatus
	// PhaseID is the related phase, if applicable.
	PhaseID string
	// Stage is the phase lifecycle hook, for phase_stage events.
	Stage models.PhaseStage
	// ActionID is the related action, if applicable.
	ActionID string
	// AgentID is the related agent, if applicable.
	AgentID string
	// Message provides additional context about the event.
	Message string
	// Err carries error detail for failure events.
	Err error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// eventEmitter fans engine events out to a buffered channel, dropping
// under sustained backpressure rather than stalling the run loop.
type eventEmitter struct {
	events  chan Event
	dropped atomic.Uint64
}

func newEventEmitter(bufferSize int) *eventEmitter {
	return &eventEmitter{events: make(chan Event, bufferSize)}
}

// emit sends an event, giving a slow receiver a short grace window
// before dropping.
func (e *eventEmitter) emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	select {
	case e.events <- ev:
		return
	default:
	}

	select {
	case e.events <- ev:
	case <-time.After(100 * time.Millisecond):
		count := e.dropped.Add(1)
		if count%10 == 1 {
			log.Printf("[engine] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, ev.Type)
		}
	}
}

// droppedCount returns the total number of dropped events.
func (e *eventEmitter) droppedCount() uint64 {
	return e.dropped.Load()
}
