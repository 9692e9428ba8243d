package engine

import (
	"context"
	"errors"
	"sync"
)

// errRunStopped is returned by WaitIfPaused when the controller was
// stopped. The run loop treats it as a deliberate abort, not a failure.
var errRunStopped = errors.New("run stopped")

// pauseController manages pause/resume/abort state for a single run.
// The run loop checks it at every suspension point; external callers
// toggle it through the engine's public operations.
type pauseController struct {
	paused  bool
	stopped bool
	mu      sync.RWMutex
	cond    *sync.Cond
}

func newPauseController() *pauseController {
	p := &pauseController{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Pause suspends execution at the next suspension point. Pausing an
// already-paused controller is a no-op, not an error.
func (p *pauseController) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
}

// Resume releases a paused controller.
func (p *pauseController) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		p.paused = false
		p.cond.Broadcast()
	}
}

// Stop unblocks any waiter and marks the controller stopped.
func (p *pauseController) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.stopped = true
		p.cond.Broadcast()
	}
}

// IsPaused returns whether execution is currently paused.
func (p *pauseController) IsPaused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}

// WaitIfPaused blocks while paused. Returns an error if the context is
// cancelled or the controller is stopped.
func (p *pauseController) WaitIfPaused(ctx context.Context) error {
	p.mu.Lock()
	if p.paused && !p.stopped {
		// One goroutine to wake the cond if the context is cancelled.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				p.mu.Lock()
				p.cond.Broadcast()
				p.mu.Unlock()
			case <-done:
			}
		}()

		for p.paused && !p.stopped {
			p.cond.Wait()
			if ctx.Err() != nil {
				close(done)
				p.mu.Unlock()
				return ctx.Err()
			}
		}
		close(done)
	}
	if p.stopped {
		p.mu.Unlock()
		return errRunStopped
	}
	p.mu.Unlock()
	return nil
}
