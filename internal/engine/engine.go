package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/councilhq/council/internal/persist"
	"github.com/councilhq/council/internal/pipeline"
	"github.com/councilhq/council/internal/registry"
	"github.com/councilhq/council/pkg/models"
)

// Archiver persists terminal runs for later inspection. Implementations
// live outside the engine (internal/state).
type Archiver interface {
	// SaveRun stores a terminal run snapshot.
	SaveRun(run *models.Run) error
}

// Options configures a new Engine. Registry, Pipelines and Invoker are
// required; everything else has a working default.
type Options struct {
	// Registry supplies agents, positions, pools and teams.
	Registry *registry.Registry
	// Pipelines supplies pipeline definitions.
	Pipelines *pipeline.Store
	// Invoker performs agent model calls.
	Invoker Invoker
	// Curator serves crud/rag actions and injection mappings. Optional.
	Curator Curator
	// Host receives delivered output. Optional.
	Host Host
	// Presets backs preset-sourced system prompts. Optional.
	Presets persist.Store
	// Archiver persists terminal runs. Optional.
	Archiver Archiver
	// Mode is the initial delivery mode. Defaults to synthesis.
	Mode DeliveryMode
	// EventBuffer sizes the event channel. Defaults to 100.
	EventBuffer int
	// DefaultRetry applies to actions with a zero retry policy.
	DefaultRetry models.RetryPolicy
	// DefaultActionTimeout applies to actions without a budget.
	DefaultActionTimeout time.Duration
	// DefaultPhaseTimeout applies to phases without a budget.
	DefaultPhaseTimeout time.Duration
	// DefaultPipelineTimeout applies to pipelines without a budget.
	DefaultPipelineTimeout time.Duration
	// InjectionCacheTTL bounds injection retrieval caching.
	InjectionCacheTTL time.Duration
}

// Engine executes pipeline runs. At most one run is active at a time;
// starting a second is rejected, never queued.
type Engine struct {
	registry  *registry.Registry
	pipelines *pipeline.Store
	invoker   Invoker
	curator   Curator
	presets   persist.Store
	archiver  Archiver
	delivery  *DeliveryAdapter
	gavel     *GavelGate
	emitter   *eventEmitter
	defaults  Options

	mu     sync.RWMutex
	mode   DeliveryMode
	run    *models.Run
	active *models.Pipeline
	pause  *pauseController
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an Engine from options.
func New(opts Options) (*Engine, error) {
	if opts.Registry == nil || opts.Pipelines == nil || opts.Invoker == nil {
		return nil, fmt.Errorf("engine requires a registry, a pipeline store and an invoker")
	}
	if opts.Mode == "" {
		opts.Mode = ModeSynthesis
	}
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("unknown delivery mode %q", opts.Mode)
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 100
	}
	if opts.InjectionCacheTTL == 0 {
		opts.InjectionCacheTTL = 30 * time.Second
	}

	return &Engine{
		registry:  opts.Registry,
		pipelines: opts.Pipelines,
		invoker:   opts.Invoker,
		curator:   opts.Curator,
		presets:   opts.Presets,
		archiver:  opts.Archiver,
		delivery:  NewDeliveryAdapter(opts.Host, opts.Curator, opts.InjectionCacheTTL),
		gavel:     NewGavelGate(),
		emitter:   newEventEmitter(opts.EventBuffer),
		defaults:  opts,
		mode:      opts.Mode,
	}, nil
}

// Events returns the engine's read-only lifecycle event channel.
func (e *Engine) Events() <-chan Event {
	return e.emitter.events
}

// DroppedEventCount returns how many events were dropped under
// backpressure.
func (e *Engine) DroppedEventCount() uint64 {
	return e.emitter.droppedCount()
}

// GavelRequests returns the channel of pending human-review requests.
func (e *Engine) GavelRequests() <-chan GavelRequest {
	return e.gavel.Requests()
}

// Delivery returns the delivery adapter (token mappings, prompt slot,
// before-generation hook).
func (e *Engine) Delivery() *DeliveryAdapter {
	return e.delivery
}

// Mode returns the active delivery mode.
func (e *Engine) Mode() DeliveryMode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

// SetMode switches the delivery mode. The mode is locked while a run is
// active: switching mid-run is rejected with ErrModeLocked.
func (e *Engine) SetMode(mode DeliveryMode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown delivery mode %q", mode)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run != nil && !e.run.Status.Terminal() {
		return ErrModeLocked
	}
	e.mode = mode
	return nil
}

// StartRun validates and launches a run of the named pipeline. The
// returned ID identifies the run; execution proceeds on a background
// goroutine and is observed through Events.
func (e *Engine) StartRun(ctx context.Context, pipelineID, input string) (string, error) {
	p := e.pipelines.Get(pipelineID)
	if p == nil {
		return "", fmt.Errorf("pipeline %s: %w", pipelineID, ErrNotFound)
	}

	vars := NewVarStore()
	res := pipeline.Validate(p, e.registry, vars.Declared())
	if !res.Valid() {
		return "", &ValidationError{PipelineID: pipelineID, Problems: res.Errors}
	}
	for _, w := range res.Warnings {
		log.Printf("[engine] pipeline %s: %s", pipelineID, w)
	}

	e.mu.Lock()
	if e.run != nil && !e.run.Status.Terminal() {
		e.mu.Unlock()
		return "", ErrAlreadyRunning
	}

	run := &models.Run{
		ID:           uuid.New().String()[:8],
		PipelineID:   pipelineID,
		Status:       models.RunRunning,
		Stage:        models.StageStart,
		InitialInput: input,
		StartedAt:    time.Now(),
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.run = run
	e.active = p
	e.pause = newPauseController()
	e.cancel = cancel
	e.done = make(chan struct{})
	done := e.done
	e.mu.Unlock()

	vars.SetGlobal("instructions", input)

	go func() {
		defer close(done)
		e.executeRun(runCtx, run, p, vars)
	}()

	log.Printf("[engine] run %s started for pipeline %s", run.ID, pipelineID)
	return run.ID, nil
}

// Run returns a snapshot of the run with the given ID, or ErrNotFound.
func (e *Engine) Run(runID string) (models.Run, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.run == nil || e.run.ID != runID {
		return models.Run{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return e.run.Snapshot(), nil
}

// ActiveRun returns a snapshot of the active run, if one exists.
func (e *Engine) ActiveRun() (models.Run, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.run == nil {
		return models.Run{}, false
	}
	return e.run.Snapshot(), true
}

// Pause suspends the run at its next suspension point. Pausing an
// already-paused run is a no-op.
func (e *Engine) Pause(runID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == nil || e.run.ID != runID {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if e.run.Status.Terminal() {
		return ErrTerminal
	}
	if e.run.Status == models.RunPaused {
		return nil
	}

	e.pause.Pause()
	e.run.Status = models.RunPaused
	e.emitter.emit(Event{Type: EventRunPaused, RunID: runID, Status: models.RunPaused})
	return nil
}

// Resume releases a paused run. Resuming a run paused on a gavel
// checkpoint is rejected; the checkpoint must be resolved instead.
func (e *Engine) Resume(runID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == nil || e.run.ID != runID {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if e.run.Status.Terminal() {
		return ErrTerminal
	}
	if e.run.Status != models.RunPaused {
		return ErrNotPaused
	}
	if e.gavel.HasPending(runID) {
		return fmt.Errorf("run %s is waiting on a gavel decision", runID)
	}

	e.run.Status = models.RunRunning
	e.pause.Resume()
	e.emitter.emit(Event{Type: EventRunResumed, RunID: runID, Status: models.RunRunning})
	return nil
}

// Abort cancels the run. The abort is observed at the next suspension
// point; partial output accumulated so far is preserved on the run.
func (e *Engine) Abort(runID string) error {
	e.mu.Lock()
	if e.run == nil || e.run.ID != runID {
		e.mu.Unlock()
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if e.run.Status.Terminal() {
		e.mu.Unlock()
		return ErrTerminal
	}
	cancel := e.cancel
	pause := e.pause
	e.mu.Unlock()

	pause.Stop()
	cancel()
	return nil
}

// ResolveGavel delivers a reviewer decision for a run paused on a gavel
// checkpoint. Invalid resolutions return ErrInvalidGavelResolution and
// leave the run paused.
func (e *Engine) ResolveGavel(d GavelDecision) error {
	return e.gavel.SubmitDecision(d)
}

// Wait blocks until the active run's goroutine exits. Used by one-shot
// CLI runs and tests.
func (e *Engine) Wait() {
	e.mu.RLock()
	done := e.done
	e.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// finishRun moves the run to a terminal status, captures the variable
// scopes onto it, archives it and emits the terminal event. Failed and
// aborted runs keep every variable written before the terminal
// transition.
func (e *Engine) finishRun(run *models.Run, status models.RunStatus, runErr error, vars *VarStore) {
	now := time.Now()

	e.mu.Lock()
	run.Status = status
	run.CompletedAt = &now
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if vars != nil {
		run.Variables.PhaseLocal, run.Variables.Global = vars.Scopes()
	}
	e.mu.Unlock()

	if e.archiver != nil {
		if err := e.archiver.SaveRun(run); err != nil {
			log.Printf("[engine] run %s: archive failed: %v", run.ID, err)
		}
	}

	evType := EventRunCompleted
	switch status {
	case models.RunFailed:
		evType = EventRunFailed
	case models.RunAborted:
		evType = EventRunAborted
	}
	e.emitter.emit(Event{Type: evType, RunID: run.ID, Status: status, Err: runErr})
	log.Printf("[engine] run %s finished: %s", run.ID, status)
}
