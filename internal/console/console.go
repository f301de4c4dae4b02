// Package console is a terminal front-end that drives a kernel session
// directly, without a transport in between.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/itsmostafa/gokernel/internal/display"
	"github.com/itsmostafa/gokernel/internal/protocol"
)

// Kernel is the part of a session the console uses.
type Kernel interface {
	Execute(ctx context.Context, counter int, req protocol.ExecuteRequest) (protocol.ExecuteReply, error)
	IsComplete(ctx context.Context, code string) (protocol.IsCompleteReply, error)
	KernelInfo() protocol.KernelInfoReply
	Shutdown(ctx context.Context, restart bool) (protocol.ShutdownReply, error)
}

// Console reads cells from in and renders everything the kernel
// publishes to out. It is the kernel's Publisher.
type Console struct {
	in      io.Reader
	out     io.Writer
	counter int
}

// New creates a console.
func New(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out}
}

// Run reads cells until the input ends or the user types exit, then shuts
// the kernel down. A cell spans several lines while the kernel reports
// it incomplete.
func (c *Console) Run(ctx context.Context, k Kernel) error {
	FormatBanner(c.out, k.KernelInfo())

	scanner := bufio.NewScanner(c.in)
	var cell []string
	for {
		if len(cell) == 0 {
			fmt.Fprint(c.out, inPrompt(c.counter+1))
		} else {
			fmt.Fprint(c.out, continuationPrompt(c.counter+1))
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		if len(cell) == 0 {
			switch strings.TrimSpace(line) {
			case "":
				continue
			case "exit", "quit":
				return c.shutdown(ctx, k)
			}
		}

		cell = append(cell, line)
		code := strings.Join(cell, "\n")
		status, err := k.IsComplete(ctx, code)
		if err != nil {
			return err
		}
		if status.Status == protocol.Incomplete {
			continue
		}
		cell = nil

		c.counter++
		if _, err := k.Execute(ctx, c.counter, protocol.ExecuteRequest{Code: code, StoreHistory: true}); err != nil {
			return fmt.Errorf("execution failed: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	fmt.Fprintln(c.out)
	return c.shutdown(ctx, k)
}

func (c *Console) shutdown(ctx context.Context, k Kernel) error {
	_, err := k.Shutdown(ctx, false)
	return err
}

// DisplayData renders a display_data publication.
func (c *Console) DisplayData(payload display.Payload, metadata, transient map[string]any) {
	FormatDisplay(c.out, payload)
}

// ExecuteResult renders the value of a cell.
func (c *Console) ExecuteResult(counter int, payload display.Payload, metadata map[string]any) {
	FormatResult(c.out, counter, payload)
}

// ExecuteError renders a failed cell.
func (c *Console) ExecuteError(ename, evalue string, traceback []string) {
	FormatError(c.out, ename, evalue)
}

// Stream renders stream text.
func (c *Console) Stream(name, text string) {
	FormatStream(c.out, name, text)
}
