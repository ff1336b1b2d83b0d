// Package executor runs tasks one at a time on a single goroutine, standing
// in for a host application's main thread.
//
// Callers hand work over with Do and wait a bounded time for it. A task that
// has not started when the caller gives up is abandoned and never runs; a
// task that is already running is left to finish on its own.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

var (
	// ErrClosed is returned by Do after Close.
	ErrClosed = errors.New("executor closed")
	// ErrNotStarted means the caller gave up before the task was picked up.
	// The task will not run.
	ErrNotStarted = errors.New("task abandoned before it started")
	// ErrStillRunning means the caller gave up while the task was running.
	ErrStillRunning = errors.New("task still running")
	// ErrAlreadyRunning is returned by Run when a worker is already draining the queue.
	ErrAlreadyRunning = errors.New("executor already running")
)

const (
	statePending int32 = iota
	stateRunning
	stateAbandoned
	stateDone
)

type task struct {
	fn    func() error
	state atomic.Int32
	done  chan error
}

// Executor is a single-worker task queue.
type Executor struct {
	tasks     chan *task
	closed    chan struct{}
	closeOnce sync.Once
	running   atomic.Bool
}

// New creates an executor with room for queue tasks waiting to be picked up.
func New(queue int) *Executor {
	if queue < 1 {
		queue = 1
	}
	return &Executor{
		tasks:  make(chan *task, queue),
		closed: make(chan struct{}),
	}
}

// Start runs the worker on its own goroutine locked to an OS thread. Use
// Run instead when the host wants to drive the queue itself.
func (e *Executor) Start() {
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		_ = e.Run(context.Background())
	}()
}

// Run executes queued tasks on the calling goroutine until ctx is done or
// the executor is closed.
func (e *Executor) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer e.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.closed:
			return nil
		case t := <-e.tasks:
			e.exec(t)
		}
	}
}

func (e *Executor) exec(t *task) {
	if !t.state.CompareAndSwap(statePending, stateRunning) {
		return
	}
	t.done <- call(t.fn)
	t.state.Store(stateDone)
}

func call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn()
}

// Do queues fn and waits for it to finish or for ctx to end. When ctx ends
// first, the error wraps ctx.Err() together with ErrNotStarted or
// ErrStillRunning. Do must not be called from inside a task.
func (e *Executor) Do(ctx context.Context, fn func() error) error {
	select {
	case <-e.closed:
		return ErrClosed
	default:
	}

	t := &task{fn: fn, done: make(chan error, 1)}

	select {
	case e.tasks <- t:
	case <-e.closed:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrNotStarted, ctx.Err())
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return e.giveUp(t, ctx.Err())
	case <-e.closed:
		return e.giveUp(t, ErrClosed)
	}
}

func (e *Executor) giveUp(t *task, cause error) error {
	if t.state.CompareAndSwap(statePending, stateAbandoned) {
		return fmt.Errorf("%w: %w", ErrNotStarted, cause)
	}
	// Lost the race: the task finished between the wake-up and the CAS.
	if t.state.Load() == stateDone {
		select {
		case err := <-t.done:
			return err
		default:
		}
	}
	return fmt.Errorf("%w: %w", ErrStillRunning, cause)
}

// Close stops the worker after its current task. Tasks still queued are
// abandoned. Close does not wait for a running task.
func (e *Executor) Close() error {
	e.closeOnce.Do(func() { close(e.closed) })
	return nil
}
