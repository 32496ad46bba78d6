// Package runloop provides the wallet's single-threaded cooperative
// scheduler. All wallet state is confined to one loop goroutine; gateway
// callbacks are marshaled back onto it before touching shared state, so the
// core needs no locks.
package runloop

import (
	"context"
	"sync"
)

// Poster accepts tasks for serial execution. The wallet components only
// depend on this interface; tests substitute an immediate-mode
// implementation.
type Poster interface {
	Post(fn func())
}

// Loop runs posted tasks one at a time on a dedicated goroutine.
type Loop struct {
	tasks chan func()

	mu      sync.Mutex
	started bool
	closed  bool
	done    chan struct{}
}

// New builds a loop with a buffered task queue.
func New() *Loop {
	return &Loop{
		tasks: make(chan func(), 256),
		done:  make(chan struct{}),
	}
}

// Start launches the loop goroutine. It returns immediately; tasks posted
// before Start are executed once it runs. Starting twice is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	if l.started || l.closed {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	go func() {
		defer close(l.done)
		for {
			select {
			case <-ctx.Done():
				return
			case fn := <-l.tasks:
				if fn == nil {
					// Stop sentinel: queued work before it has drained.
					return
				}
				fn()
			}
		}
	}()
}

// Post enqueues a task. Posting to a stopped loop drops the task silently;
// by then the owning session is being torn down and the result is moot.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return
	}
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// Stop shuts the loop down. Tasks already queued still run; the call does
// not wait for them.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()
	select {
	case l.tasks <- nil:
	case <-l.done:
	}
}

// Wait blocks until the loop goroutine has exited.
func (l *Loop) Wait() {
	<-l.done
}

// Immediate is a Poster that runs tasks inline on the caller's goroutine.
// Wallet tests use it so every asynchronous hop is deterministic.
type Immediate struct{}

func (Immediate) Post(fn func()) { fn() }
