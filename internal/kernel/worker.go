package kernel

import (
	"context"
	"fmt"
	"sync"
)

// job is a unit of work run on the worker goroutine.
type job struct {
	fn   func()
	done chan error
}

// worker serializes all engine access through a single goroutine. The
// engine, the validator and stream capture are not safe for concurrent
// use.
type worker struct {
	jobs     chan job
	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func newWorker() *worker {
	w := &worker{
		jobs:    make(chan job, 16),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *worker) loop() {
	defer close(w.stopped)
	for {
		select {
		case j := <-w.jobs:
			j.done <- w.execute(j.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, turning a panic into an error.
func (w *worker) execute(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	fn()
	return nil
}

// Do runs fn on the worker goroutine and waits for it. ctx bounds only
// the wait for the worker to accept fn; once accepted, fn runs to
// completion.
func (w *worker) Do(ctx context.Context, fn func()) error {
	j := job{fn: fn, done: make(chan error, 1)}

	select {
	case <-w.quit:
		return ErrShutdown
	default:
	}

	select {
	case w.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-w.quit:
		return ErrShutdown
	}

	select {
	case err := <-j.done:
		return err
	case <-w.stopped:
		// Stopped before picking up the job
		select {
		case err := <-j.done:
			return err
		default:
			return ErrShutdown
		}
	}
}

// Stop shuts down the worker goroutine. Queued jobs that have not started
// fail with ErrShutdown.
func (w *worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}
