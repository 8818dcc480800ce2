package lua

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Executor errors.
var (
	ErrExecutorClosed = errors.New("lua executor is closed")
	ErrQueueFull      = errors.New("lua executor queue full")
)

// job is one queued operation.
type job struct {
	fn     func() error
	result chan error
}

// Executor serializes every call into one plugin's Lua state through a
// single goroutine.
//
// Callbacks that arrive while Lua is already running (an event emitted from
// inside onload, a click handled during a slow call) must use Go, which
// queues them behind the running job; Do from inside a job would deadlock.
type Executor struct {
	queue     chan job
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once

	onError func(error)
}

// NewExecutor creates an executor. onError receives the failures of jobs
// queued with Go and may be nil.
func NewExecutor(queueSize int, onError func(error)) *Executor {
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Executor{
		queue:   make(chan job, queueSize),
		done:    make(chan struct{}),
		onError: onError,
	}
}

// Run processes jobs until ctx is cancelled or Close is called.
func (e *Executor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.drain(ctx.Err())
			return
		case <-e.done:
			e.drain(ErrExecutorClosed)
			return
		case j := <-e.queue:
			j.result <- execute(j.fn)
			close(j.result)
		}
	}
}

func execute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

func (e *Executor) drain(err error) {
	for {
		select {
		case j := <-e.queue:
			j.result <- err
			close(j.result)
		default:
			return
		}
	}
}

// Do queues fn and waits for it to finish.
func (e *Executor) Do(ctx context.Context, fn func() error) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}

	j := job{fn: fn, result: make(chan error, 1)}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrExecutorClosed
	case e.queue <- j:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err, ok := <-j.result:
		if !ok {
			return ErrExecutorClosed
		}
		return err
	}
}

// Go queues fn without waiting. Failures go to the onError callback.
func (e *Executor) Go(fn func() error) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}

	j := job{fn: fn, result: make(chan error, 1)}
	select {
	case <-e.done:
		return ErrExecutorClosed
	case e.queue <- j:
		go func() {
			if err := <-j.result; err != nil && e.onError != nil {
				e.onError(err)
			}
		}()
		return nil
	default:
		return ErrQueueFull
	}
}

// Flush waits until every job queued before the call has run.
func (e *Executor) Flush(ctx context.Context) error {
	return e.Do(ctx, func() error { return nil })
}

// Close stops the executor. Queued jobs fail with ErrExecutorClosed.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.done)
	})
}

// IsClosed returns true if the executor has been closed.
func (e *Executor) IsClosed() bool {
	return e.closed.Load()
}
