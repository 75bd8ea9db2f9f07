// Package dispatch provides a serialized task executor.
//
// A Dispatcher runs submitted functions one at a time on a single
// goroutine, in submission order. Clients use it to deliver lifecycle
// callbacks without holding internal locks, and to guarantee that
// callbacks for one connection never interleave.
//
// A Dispatcher may be owned by the client that created it or shared
// across clients. Shutdown is the owner's job: a client closing down
// only drains and stops a dispatcher it created itself.
package dispatch

import (
	"context"
	"errors"
	"sync"
)

// ErrDispatcherClosed is returned when a task is submitted after
// Shutdown has begun.
var ErrDispatcherClosed = errors.New("dispatch: dispatcher closed")

// DefaultQueueSize is the task queue capacity used by New.
const DefaultQueueSize = 64

// Dispatcher executes tasks sequentially on a dedicated goroutine.
type Dispatcher struct {
	tasks chan func()

	mu     sync.Mutex
	closed bool

	done chan struct{}
}

// New creates a dispatcher and starts its worker goroutine.
func New() *Dispatcher {
	return NewWithQueueSize(DefaultQueueSize)
}

// NewWithQueueSize creates a dispatcher with a custom queue capacity.
func NewWithQueueSize(size int) *Dispatcher {
	if size < 1 {
		size = 1
	}
	d := &Dispatcher{
		tasks: make(chan func(), size),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for task := range d.tasks {
		task()
	}
}

// Dispatch submits a task for execution. Tasks run in submission order.
// Dispatch blocks while the queue is full and returns
// ErrDispatcherClosed once Shutdown has begun.
func (d *Dispatcher) Dispatch(task func()) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	// Enqueue under the lock so Shutdown cannot close the channel
	// between the check and the send.
	d.tasks <- task
	d.mu.Unlock()
	return nil
}

// Shutdown stops accepting tasks, then waits for the queue to drain.
// It returns the context's error if the context expires first; queued
// tasks keep running to completion regardless.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.tasks)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the worker goroutine has exited.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}
