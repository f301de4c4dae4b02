package kernel

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestWorker_Serializes(t *testing.T) {
	w := newWorker()
	defer w.Stop()

	var (
		wg      sync.WaitGroup
		running int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Do(context.Background(), func() {
				// Only the worker goroutine touches these
				running++
				if running > maxSeen {
					maxSeen = running
				}
				running--
			})
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("saw %d concurrent jobs, want 1", maxSeen)
	}
}

func TestWorker_RecoversPanic(t *testing.T) {
	w := newWorker()
	defer w.Stop()

	err := w.Do(context.Background(), func() { panic("kaboom") })
	if err == nil {
		t.Fatal("expected an error from a panicking job")
	}

	ran := false
	if err := w.Do(context.Background(), func() { ran = true }); err != nil || !ran {
		t.Errorf("worker unusable after panic: err=%v ran=%v", err, ran)
	}
}

func TestWorker_Stopped(t *testing.T) {
	w := newWorker()
	w.Stop()
	w.Stop()

	if err := w.Do(context.Background(), func() {}); !errors.Is(err, ErrShutdown) {
		t.Errorf("err = %v, want ErrShutdown", err)
	}
}

func TestWorker_CanceledContext(t *testing.T) {
	w := newWorker()
	defer w.Stop()

	block := make(chan struct{})
	started := make(chan struct{})
	go w.Do(context.Background(), func() {
		close(started)
		<-block
	})
	<-started

	// Fill the queue so the next submission has to wait
	for i := 0; i < cap(w.jobs); i++ {
		w.jobs <- job{fn: func() {}, done: make(chan error, 1)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Do(ctx, func() {}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	close(block)
}
