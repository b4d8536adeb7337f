package watcher

import (
	"context"
	"sync"
)

// SerialRunner runs a function so that at most one call is in flight.
// Triggers arriving while a call runs set a pending flag; when the call
// returns, exactly one follow-up call is made no matter how many
// triggers arrived.
type SerialRunner struct {
	fn func(ctx context.Context)

	mu      sync.Mutex
	running bool
	pending bool
	idle    *sync.Cond
}

// NewSerialRunner creates a runner for fn.
func NewSerialRunner(fn func(ctx context.Context)) *SerialRunner {
	r := &SerialRunner{fn: fn}
	r.idle = sync.NewCond(&r.mu)
	return r
}

// Trigger requests a run. It never blocks on fn.
func (r *SerialRunner) Trigger(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		r.pending = true
		return
	}
	r.running = true
	go r.loop(ctx)
}

// Wait blocks until no call is running or pending.
func (r *SerialRunner) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.running {
		r.idle.Wait()
	}
}

// Running reports whether a call is in flight.
func (r *SerialRunner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *SerialRunner) loop(ctx context.Context) {
	for {
		if ctx.Err() == nil {
			r.fn(ctx)
		}

		r.mu.Lock()
		if !r.pending || ctx.Err() != nil {
			r.pending = false
			r.running = false
			r.idle.Broadcast()
			r.mu.Unlock()
			return
		}
		r.pending = false
		r.mu.Unlock()
	}
}
