package script

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	plua "github.com/dshills/avatarscript/internal/script/lua"
)

// DefaultQueueSize is used when NewExecutor is given a non-positive size.
const DefaultQueueSize = 100

// call is one queued unit of work.
type call struct {
	fn func() error

	// result receives the outcome and is closed afterwards.
	result chan error
}

// Executor is the control goroutine for a set of runtimes.
//
// gopher-lua's LState is NOT goroutine-safe, and the type registry shared by
// runtimes is unlocked. Every operation on any runtime must therefore happen
// on one goroutine. Executor marshals work from other goroutines (file
// watchers, signal handlers, a frame clock) onto the goroutine running Run.
//
// Usage:
//
//	exec := script.NewExecutor(64)
//	go exec.Run(ctx)
//	defer exec.Close()
//
//	err := exec.Execute(ctx, func() error {
//	    avatar.Tick()
//	    return nil
//	})
type Executor struct {
	queue  chan *call
	closed atomic.Bool
	done   chan struct{}

	closeOnce sync.Once
}

// NewExecutor creates an executor buffering up to queueSize calls.
func NewExecutor(queueSize int) *Executor {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Executor{
		queue: make(chan *call, queueSize),
		done:  make(chan struct{}),
	}
}

// Run processes queued calls until ctx is cancelled or Close is called.
// The goroutine calling Run becomes the control goroutine.
func (e *Executor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.drainQueue(ctx.Err())
			return
		case <-e.done:
			e.drainQueue(ErrExecutorClosed)
			return
		case c := <-e.queue:
			err := e.executeCall(c)
			c.result <- err
			close(c.result)
		}
	}
}

// executeCall runs a single call with panic recovery.
func (e *Executor) executeCall(c *call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor call panicked: %w", plua.Normalize(r))
		}
	}()
	return c.fn()
}

// drainQueue fails every queued call with err.
func (e *Executor) drainQueue(err error) {
	for {
		select {
		case c := <-e.queue:
			c.result <- err
			close(c.result)
		default:
			return
		}
	}
}

// Execute runs fn on the control goroutine and waits for its result.
func (e *Executor) Execute(ctx context.Context, fn func() error) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}

	c := &call{
		fn:     fn,
		result: make(chan error, 1),
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrExecutorClosed
	case e.queue <- c:
	}

	select {
	case <-ctx.Done():
		// The call stays queued and will still run.
		return ctx.Err()
	case err, ok := <-c.result:
		if !ok {
			return ErrExecutorClosed
		}
		return err
	}
}

// Submit queues fn without waiting for it. It fails fast when the queue is
// full.
func (e *Executor) Submit(fn func() error) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}

	c := &call{
		fn:     fn,
		result: make(chan error, 1),
	}

	select {
	case <-e.done:
		return ErrExecutorClosed
	case e.queue <- c:
		return nil
	default:
		return ErrExecutorQueueFull
	}
}

// Close stops the executor. Queued calls fail with ErrExecutorClosed.
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
