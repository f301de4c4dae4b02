package kernel

import "github.com/itsmostafa/gokernel/internal/display"

// Publisher receives the out-of-band messages a session emits while it
// handles requests. Calls happen on the session's worker goroutine.
type Publisher interface {
	DisplayData(payload display.Payload, metadata, transient map[string]any)
	ExecuteResult(counter int, payload display.Payload, metadata map[string]any)
	ExecuteError(ename, evalue string, traceback []string)
	Stream(name, text string)
}

// discard drops every publication. Silent executions publish through it.
type discard struct{}

func (discard) DisplayData(display.Payload, map[string]any, map[string]any) {}
func (discard) ExecuteResult(int, display.Payload, map[string]any)          {}
func (discard) ExecuteError(string, string, []string)                       {}
func (discard) Stream(string, string)                                       {}
