package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/councilhq/council/pkg/models"
)

// executeRun drives a run through its pipeline on a dedicated goroutine.
// All mutation of the run happens here or under the engine mutex; public
// operations only toggle the pause controller and cancel the context.
func (e *Engine) executeRun(ctx context.Context, run *models.Run, p *models.Pipeline, vars *VarStore) {
	e.emitter.emit(Event{Type: EventRunStarted, RunID: run.ID, Status: models.RunRunning})

	pipelineBudget := p.Timeout
	if pipelineBudget == 0 {
		pipelineBudget = e.defaults.DefaultPipelineTimeout
	}
	var pipelineDeadline time.Time
	if pipelineBudget > 0 {
		pipelineDeadline = time.Now().Add(pipelineBudget)
	}

	resolver := NewResolver(e.registry, e.invoker, e.presets)
	fired := make(map[string]bool)
	input := run.InitialInput

	for pi := range p.Phases {
		phase := &p.Phases[pi]
		e.setCursor(run, pi, 0, models.StageStart)

		output, err := e.runPhase(ctx, run, phase, vars, resolver, fired, input, pipelineDeadline, pipelineBudget)
		if err != nil {
			if isAbort(ctx, err) {
				e.finishRun(run, models.RunAborted, err, vars)
			} else {
				e.finishRun(run, models.RunFailed, err, vars)
			}
			return
		}

		// Each phase's output becomes the next phase's input and the
		// run's partial final output.
		input = output
		e.mu.Lock()
		run.FinalOutput = output
		e.mu.Unlock()
	}

	e.finishRun(run, models.RunCompleted, nil, vars)

	e.mu.RLock()
	mode := e.mode
	e.mu.RUnlock()
	if err := e.delivery.Deliver(mode, run); err != nil {
		log.Printf("[engine] run %s: delivery failed: %v", run.ID, err)
		return
	}
	e.emitter.emit(Event{Type: EventDelivered, RunID: run.ID, Status: run.Status, Message: string(mode)})
}

// runPhase executes one phase: stage hooks, trigger-ordered dispatch,
// async reconciliation, consolidation and scope teardown.
func (e *Engine) runPhase(ctx context.Context, run *models.Run, phase *models.Phase,
	vars *VarStore, resolver *Resolver, fired map[string]bool, input string,
	pipelineDeadline time.Time, pipelineBudget time.Duration) (string, error) {

	phaseBudget := phase.Timeout
	if phaseBudget == 0 {
		phaseBudget = e.defaults.DefaultPhaseTimeout
	}
	var phaseDeadline time.Time
	if phaseBudget > 0 {
		phaseDeadline = time.Now().Add(phaseBudget)
	}

	suspend := func() error {
		return e.suspensionPoint(ctx, run, phaseDeadline, phaseBudget, pipelineDeadline, pipelineBudget)
	}

	for _, stage := range []models.PhaseStage{models.StageStart, models.StageBeforeActions} {
		if err := suspend(); err != nil {
			return "", err
		}
		e.enterStage(run, phase, stage, fired)
	}

	e.enterStage(run, phase, models.StageInProgress, fired)

	results := make(map[string]actionResult, len(phase.Actions))
	inflight := make(map[string]chan actionResult)
	dispatched := make(map[string]bool)

	dispatch := func(a *models.Action) error {
		if err := suspend(); err != nil {
			return err
		}
		dispatched[a.ID] = true
		if a.Mode == models.ExecAsync {
			ch := make(chan actionResult, 1)
			inflight[a.ID] = ch
			go func(a *models.Action) {
				ch <- e.executeAction(ctx, run, phase, a, vars, resolver, input, phaseDeadline)
			}(a)
			return nil
		}
		r := e.executeAction(ctx, run, phase, a, vars, resolver, input, phaseDeadline)
		return e.recordResult(run, phase, a, r, results, fired, vars)
	}

	// reconcile collects in-flight results in definition order so
	// consolidation input is deterministic.
	reconcile := func() error {
		for i := range phase.Actions {
			a := &phase.Actions[i]
			ch, ok := inflight[a.ID]
			if !ok {
				continue
			}
			delete(inflight, a.ID)
			var r actionResult
			select {
			case r = <-ch:
			case <-ctx.Done():
				return ctx.Err()
			}
			if err := e.recordResult(run, phase, a, r, results, fired, vars); err != nil {
				return err
			}
		}
		return nil
	}

	// Immediate-trigger actions dispatch at phase start without waiting
	// for their turn; they always run as in-flight work.
	for i := range phase.Actions {
		a := &phase.Actions[i]
		if a.Trigger != models.TriggerImmediate {
			continue
		}
		if err := suspend(); err != nil {
			return "", err
		}
		dispatched[a.ID] = true
		ch := make(chan actionResult, 1)
		inflight[a.ID] = ch
		go func(a *models.Action) {
			ch <- e.executeAction(ctx, run, phase, a, vars, resolver, input, phaseDeadline)
		}(a)
	}

	// Main pass in definition order.
	for i := range phase.Actions {
		a := &phase.Actions[i]
		if dispatched[a.ID] {
			continue
		}
		e.setCursor(run, run.PhaseIndex, i, models.StageInProgress)

		switch a.Trigger {
		case models.TriggerOn:
			// Eligible only once its event fires; re-checked below.
			continue

		case models.TriggerAwait:
			if err := e.awaitSibling(ctx, phase, a, results, inflight, fired, run, vars); err != nil {
				if phase.ContinueOnActionError {
					e.skipAction(run, phase, a, results, err)
					continue
				}
				return "", err
			}
			if err := dispatch(a); err != nil {
				return "", err
			}

		default: // sequential
			if err := dispatch(a); err != nil {
				return "", err
			}
		}

		if r, ok := results[a.ID]; ok && r.state == models.ActionFailed && !phase.ContinueOnActionError {
			return "", r.err
		}
	}

	// Reconcile in-flight work, then give on-trigger actions dispatch
	// passes while completions keep firing new events.
	for {
		if err := reconcile(); err != nil {
			return "", err
		}
		if err := e.checkFailures(phase, results); err != nil {
			return "", err
		}

		progressed := false
		for i := range phase.Actions {
			a := &phase.Actions[i]
			if dispatched[a.ID] || a.Trigger != models.TriggerOn || !fired[a.TriggerEvent] {
				continue
			}
			if err := dispatch(a); err != nil {
				return "", err
			}
			progressed = true
		}
		if !progressed && len(inflight) == 0 {
			break
		}
	}
	if err := e.checkFailures(phase, results); err != nil {
		return "", err
	}

	// On-trigger actions whose event never fired are skipped, not failed.
	for i := range phase.Actions {
		a := &phase.Actions[i]
		if !dispatched[a.ID] && a.Trigger == models.TriggerOn {
			e.skipAction(run, phase, a, results, nil)
		}
	}

	if err := suspend(); err != nil {
		return "", err
	}
	e.enterStage(run, phase, models.StageAfterActions, fired)

	ordered := make([]actionResult, 0, len(phase.Actions))
	for i := range phase.Actions {
		if r, ok := results[phase.Actions[i].ID]; ok {
			ordered = append(ordered, r)
		}
	}

	output, err := e.consolidate(ctx, phase, ordered, vars)
	if err != nil {
		return "", fmt.Errorf("phase %s: %w", phase.ID, err)
	}

	if phase.Consolidation == models.ConsolidateUserGavel {
		var skipped bool
		output, skipped, err = e.gavelCheckpoint(ctx, run, phase.ID, "consolidation:"+phase.ID, output, phase.OutputVar, vars)
		if err != nil {
			return "", err
		}
		if skipped {
			// Reviewer discarded the consolidated text; the phase
			// contributes nothing downstream.
			output = ""
		}
	}

	if err := suspend(); err != nil {
		return "", err
	}
	e.enterStage(run, phase, models.StageEnd, fired)

	if phase.OutputVar != "" {
		vars.SetLocal(phase.OutputVar, output)
		if phase.PromoteOutput {
			vars.Promote(phase.OutputVar)
		}
	}
	vars.EndPhase()

	e.enterStage(run, phase, models.StageRespond, fired)
	return output, nil
}

// executeAction runs one action to a result, honoring its type, retry
// policy and per-attempt timeout budget.
func (e *Engine) executeAction(ctx context.Context, run *models.Run, phase *models.Phase, a *models.Action,
	vars *VarStore, resolver *Resolver, input string, phaseDeadline time.Time) actionResult {

	e.emitter.emit(Event{Type: EventActionStarted, RunID: run.ID, Status: models.RunRunning,
		PhaseID: phase.ID, ActionID: a.ID})

	prompt, unresolved := vars.Substitute(a.Prompt)
	if len(unresolved) > 0 {
		log.Printf("[engine] action %s: tokens passed through verbatim: %s", a.ID, strings.Join(unresolved, ", "))
	}
	if prompt == "" {
		prompt = input
	}

	retry := a.Retry
	if retry.Count == 0 && retry.Delay == 0 {
		retry = e.defaults.DefaultRetry
	}
	budget := a.Timeout
	if budget == 0 {
		budget = e.defaults.DefaultActionTimeout
	}

	var output string
	var err error

	switch a.Type {
	case models.ActionSystem:
		// Engine-internal step: the substituted prompt is the output.
		output = prompt

	case models.ActionUserGavel:
		var skipped bool
		output, skipped, err = e.gavelCheckpoint(ctx, run, phase.ID, a.ID, input, a.OutputVar, vars)
		if err == nil && skipped {
			return actionResult{actionID: a.ID, state: models.ActionSkipped, completedAt: time.Now()}
		}

	case models.ActionCRUDPipeline, models.ActionRAGPipeline:
		output, err = invokeWithRetry(ctx, a.ID, retry, func(ctx context.Context) (string, error) {
			return e.runCuration(ctx, a, prompt, budget)
		})

	case models.ActionDeliberativeRAG:
		var retrieved string
		retrieved, err = invokeWithRetry(ctx, a.ID, retry, func(ctx context.Context) (string, error) {
			return e.runCuration(ctx, a, prompt, budget)
		})
		if err == nil {
			deliberation := prompt + "\n\nRetrieved context:\n" + retrieved
			output, err = e.invokeParticipants(ctx, run, phase, a, vars, resolver, deliberation, retry, budget)
		}

	default: // standard, character_workshop
		output, err = e.invokeParticipants(ctx, run, phase, a, vars, resolver, prompt, retry, budget)
	}

	if err != nil {
		return actionResult{actionID: a.ID, state: models.ActionFailed,
			err: fmt.Errorf("action %s: %w", a.ID, err), completedAt: time.Now()}
	}

	e.appendThread(run, phase.ID, a.ID, "", "response", output)
	return actionResult{actionID: a.ID, output: output, state: models.ActionResolved, completedAt: time.Now()}
}

// invokeParticipants resolves the action's participants and invokes each
// in resolution order. Multiple contributions are joined in order.
func (e *Engine) invokeParticipants(ctx context.Context, run *models.Run, phase *models.Phase, a *models.Action,
	vars *VarStore, resolver *Resolver, prompt string, retry models.RetryPolicy, budget time.Duration) (string, error) {

	participants, err := resolver.Resolve(ctx, a.ID, a.Participants, vars, prompt)
	if err != nil {
		return "", err
	}

	var parts []string
	for _, pt := range participants {
		e.appendThread(run, phase.ID, a.ID, pt.Agent.ID, "prompt", prompt)
		out, err := invokeWithRetry(ctx, a.ID, retry, func(ctx context.Context) (string, error) {
			callCtx := ctx
			if budget > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, budget)
				defer cancel()
			}
			text, err := e.invoker.Invoke(callCtx, pt.Agent, pt.SystemPrompt, prompt)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
					return "", &TimeoutError{Level: TimeoutAction, Budget: budget}
				}
				return "", &AgentInvocationError{AgentID: pt.Agent.ID, Err: err}
			}
			return text, nil
		})
		if err != nil {
			return "", err
		}
		e.emitter.emit(Event{Type: EventActionCompleted, RunID: run.ID, Status: models.RunRunning,
			PhaseID: phase.ID, ActionID: a.ID, AgentID: pt.Agent.ID})
		parts = append(parts, out)
	}
	return strings.Join(parts, "\n\n"), nil
}

// runCuration executes an external curation pipeline with a per-attempt
// budget.
func (e *Engine) runCuration(ctx context.Context, a *models.Action, query string, budget time.Duration) (string, error) {
	if e.curator == nil {
		return "", fmt.Errorf("no curator configured for %s action", a.Type)
	}
	callCtx := ctx
	if budget > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}
	out, err := e.curator.ExecutePipeline(callCtx, a.CurationPipelineID, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", &TimeoutError{Level: TimeoutAction, Budget: budget}
		}
		return "", err
	}
	return out, nil
}

// gavelCheckpoint suspends the run for human review of text. Approve
// returns the text unchanged; edit_and_approve returns the replacement;
// skip deletes outputVar and reports skipped=true.
func (e *Engine) gavelCheckpoint(ctx context.Context, run *models.Run, phaseID, actionID, text, outputVar string, vars *VarStore) (string, bool, error) {
	e.mu.Lock()
	prev := run.Status
	run.Status = models.RunPaused
	e.mu.Unlock()

	e.emitter.emit(Event{Type: EventGavelRequested, RunID: run.ID, Status: models.RunPaused,
		PhaseID: phaseID, ActionID: actionID})
	e.appendThread(run, phaseID, actionID, "", "gavel", text)

	decision, err := e.gavel.WaitForDecision(ctx, GavelRequest{
		RunID:       run.ID,
		PhaseID:     phaseID,
		ActionID:    actionID,
		Text:        text,
		RequestedAt: time.Now(),
	})
	if err != nil {
		return "", false, err
	}

	e.mu.Lock()
	run.Status = prev
	e.mu.Unlock()
	e.emitter.emit(Event{Type: EventGavelResolved, RunID: run.ID, Status: prev,
		PhaseID: phaseID, ActionID: actionID, Message: string(decision.Resolution)})

	switch decision.Resolution {
	case GavelEdit:
		return decision.ReplacementText, false, nil
	case GavelSkip:
		if outputVar != "" {
			vars.Delete(outputVar)
		}
		return "", true, nil
	default: // approve
		return text, false, nil
	}
}

// awaitSibling blocks until the awaited action has a resolved result.
func (e *Engine) awaitSibling(ctx context.Context, phase *models.Phase, a *models.Action,
	results map[string]actionResult, inflight map[string]chan actionResult, fired map[string]bool,
	run *models.Run, vars *VarStore) error {

	target := a.AwaitActionID
	if r, ok := results[target]; ok {
		if r.state == models.ActionResolved {
			return nil
		}
		return fmt.Errorf("action %s awaits %s, which did not resolve", a.ID, target)
	}

	ch, ok := inflight[target]
	if !ok {
		return fmt.Errorf("action %s awaits %s, which was never dispatched", a.ID, target)
	}
	delete(inflight, target)

	var r actionResult
	select {
	case r = <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}

	ta, _ := phaseAction(phase, target)
	if err := e.recordResult(run, phase, ta, r, results, fired, vars); err != nil {
		return err
	}
	if r.state != models.ActionResolved {
		return fmt.Errorf("action %s awaits %s, which did not resolve", a.ID, target)
	}
	return nil
}

// recordResult stores a result, applies the output variable, fires the
// action's completion event and emits lifecycle events.
func (e *Engine) recordResult(run *models.Run, phase *models.Phase, a *models.Action,
	r actionResult, results map[string]actionResult, fired map[string]bool, vars *VarStore) error {

	results[a.ID] = r

	switch r.state {
	case models.ActionResolved:
		if a.OutputVar != "" {
			vars.SetLocal(a.OutputVar, r.output)
		}
		fired[a.ID] = true

	case models.ActionFailed:
		e.emitter.emit(Event{Type: EventActionFailed, RunID: run.ID, Status: models.RunRunning,
			PhaseID: phase.ID, ActionID: a.ID, Err: r.err})
		if !phase.ContinueOnActionError {
			if te := asFatalTimeout(r.err); te != nil {
				return te
			}
			return r.err
		}
		log.Printf("[engine] action %s failed, continuing per phase policy: %v", a.ID, r.err)

	case models.ActionSkipped:
		e.emitter.emit(Event{Type: EventActionSkipped, RunID: run.ID, Status: models.RunRunning,
			PhaseID: phase.ID, ActionID: a.ID})
	}
	return nil
}

// checkFailures returns the first fatal failure under the phase policy.
func (e *Engine) checkFailures(phase *models.Phase, results map[string]actionResult) error {
	if phase.ContinueOnActionError {
		return nil
	}
	for i := range phase.Actions {
		if r, ok := results[phase.Actions[i].ID]; ok && r.state == models.ActionFailed {
			return r.err
		}
	}
	return nil
}

// skipAction records a skipped action.
func (e *Engine) skipAction(run *models.Run, phase *models.Phase, a *models.Action,
	results map[string]actionResult, cause error) {
	results[a.ID] = actionResult{actionID: a.ID, state: models.ActionSkipped, err: cause, completedAt: time.Now()}
	e.emitter.emit(Event{Type: EventActionSkipped, RunID: run.ID, Status: models.RunRunning,
		PhaseID: phase.ID, ActionID: a.ID})
}

// suspensionPoint is where pause, abort and the fatal budgets are
// observed between units of work.
func (e *Engine) suspensionPoint(ctx context.Context, run *models.Run,
	phaseDeadline time.Time, phaseBudget time.Duration,
	pipelineDeadline time.Time, pipelineBudget time.Duration) error {

	if err := e.pause.WaitIfPaused(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now()
	if !phaseDeadline.IsZero() && now.After(phaseDeadline) {
		return &TimeoutError{Level: TimeoutPhase, Budget: phaseBudget}
	}
	if !pipelineDeadline.IsZero() && now.After(pipelineDeadline) {
		return &TimeoutError{Level: TimeoutPipeline, Budget: pipelineBudget}
	}
	return nil
}

// enterStage records the stage on the run cursor and announces it as a
// phase_stage event and a fired run event for on-triggers.
func (e *Engine) enterStage(run *models.Run, phase *models.Phase, stage models.PhaseStage, fired map[string]bool) {
	e.mu.Lock()
	run.Stage = stage
	e.mu.Unlock()

	fired["stage:"+string(stage)] = true
	e.emitter.emit(Event{Type: EventPhaseStage, RunID: run.ID, Status: models.RunRunning,
		PhaseID: phase.ID, Stage: stage})
}

// setCursor records the run's phase/action position.
func (e *Engine) setCursor(run *models.Run, phaseIdx, actionIdx int, stage models.PhaseStage) {
	e.mu.Lock()
	run.PhaseIndex = phaseIdx
	run.ActionIndex = actionIdx
	run.Stage = stage
	e.mu.Unlock()
}

// appendThread records a thread-log entry when logging is enabled.
func (e *Engine) appendThread(run *models.Run, phaseID, actionID, agentID, role, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.active
	if p == nil || !p.Threads.Enabled {
		return
	}
	run.ThreadLog = append(run.ThreadLog, models.ThreadEntry{
		PhaseID:  phaseID,
		ActionID: actionID,
		AgentID:  agentID,
		Role:     role,
		Text:     text,
		At:       time.Now(),
	})
	if limit := p.Threads.MaxEntries; limit > 0 && len(run.ThreadLog) > limit {
		run.ThreadLog = run.ThreadLog[len(run.ThreadLog)-limit:]
	}
}

// phaseAction finds an action within a phase by ID.
func phaseAction(phase *models.Phase, id string) (*models.Action, bool) {
	for i := range phase.Actions {
		if phase.Actions[i].ID == id {
			return &phase.Actions[i], true
		}
	}
	return nil, false
}

// isAbort classifies a run-terminating error as an abort rather than a
// failure.
func isAbort(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, errRunStopped)
}

// asFatalTimeout unwraps a fatal (phase or pipeline) timeout.
func asFatalTimeout(err error) *TimeoutError {
	var te *TimeoutError
	if errors.As(err, &te) && te.Fatal() {
		return te
	}
	return nil
}
