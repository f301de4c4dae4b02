// Package capture redirects the process-wide standard output and standard
// error streams into buffers for the duration of a single evaluation.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// ErrActive is returned by Capture when another capture is already in
// progress. The streams are left untouched in that case.
var ErrActive = errors.New("stream capture already active")

// active guards the global streams; at most one redirection at a time.
var active atomic.Bool

// Output holds the text written to each stream while a capture was active.
type Output struct {
	Stdout string
	Stderr string
}

// sink drains one pipe into a buffer until the write end is closed.
type sink struct {
	r    *os.File
	w    *os.File
	buf  bytes.Buffer
	err  error
	done chan struct{}
}

func newSink() (*sink, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	s := &sink{r: r, w: w, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		_, s.err = io.Copy(&s.buf, s.r)
	}()
	return s, nil
}

// finish closes the write end and waits for the reader to drain. The
// error is the one that stopped the drain early, if any.
func (s *sink) finish() (string, error) {
	s.w.Close()
	<-s.done
	s.r.Close()
	return s.buf.String(), s.err
}

// Capture swaps os.Stdout and os.Stderr for private pipes, runs body, and
// restores the original files before returning. Restoration happens on
// every exit path; a panic raised by body is re-raised after the streams
// are back in place.
func Capture(body func()) (Output, error) {
	if !active.CompareAndSwap(false, true) {
		return Output{}, ErrActive
	}
	defer active.Store(false)

	stdout, err := newSink()
	if err != nil {
		return Output{}, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := newSink()
	if err != nil {
		stdout.finish()
		return Output{}, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	var out Output
	var outErr, errErr error
	var once sync.Once
	origOut, origErr := os.Stdout, os.Stderr
	restore := func() {
		once.Do(func() {
			os.Stdout, os.Stderr = origOut, origErr
			out.Stdout, outErr = stdout.finish()
			out.Stderr, errErr = stderr.finish()
		})
	}
	defer restore()

	os.Stdout, os.Stderr = stdout.w, stderr.w
	body()
	restore()

	if outErr != nil {
		return out, fmt.Errorf("failed to read captured stdout: %w", outErr)
	}
	if errErr != nil {
		return out, fmt.Errorf("failed to read captured stderr: %w", errErr)
	}
	return out, nil
}
