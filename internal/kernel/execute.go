package kernel

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/itsmostafa/gokernel/internal/capture"
	"github.com/itsmostafa/gokernel/internal/display"
	"github.com/itsmostafa/gokernel/internal/engine"
	"github.com/itsmostafa/gokernel/internal/protocol"
)

const terminator = ';'

// Prefixes of the payloads that carry text captured from a cell or from
// the rendering of its value.
const (
	cellErrorsPrefix    = "Execution of the cell has captured the following errors:\n"
	cellOutputsPrefix   = "Execution of the cell has captured the following outputs:\n"
	outputErrorsPrefix  = "Evaluation of the output has captured the following errors:\n"
	outputOutputsPrefix = "Evaluation of the output has captured the following outputs:\n"
)

// Execute runs one cell. counter is the execution count assigned by the
// front-end; it tags the result publication.
func (s *Session) Execute(ctx context.Context, counter int, req protocol.ExecuteRequest) (protocol.ExecuteReply, error) {
	var reply protocol.ExecuteReply
	err := s.worker.Do(ctx, func() {
		reply = s.execute(counter, req)
	})
	return reply, err
}

func (s *Session) execute(counter int, req protocol.ExecuteRequest) protocol.ExecuteReply {
	s.counter = counter
	s.out = s.pub
	if req.Silent {
		s.out = discard{}
	}
	defer func() { s.out = s.pub }()

	log := s.logger.With("execution_count", counter)
	if strings.TrimSpace(req.Code) == "" {
		return okReply(counter)
	}

	if req.StoreHistory && !req.Silent && s.history != nil {
		if err := s.history.Append(counter, req.Code); err != nil {
			log.Warn("failed to store history", "error", err)
		}
	}

	var (
		res  engine.Result
		val  *engine.Value
		perr error
	)
	out, err := capture.Capture(func() {
		res, val, perr = s.eng.Process(normalize(req.Code))
	})
	if err != nil {
		log.Error("stream capture failed", "error", err)
		return s.fail(counter, &ExecError{Kind: UnknownError, Message: err.Error()})
	}
	if kind, failed := failureKind(res, perr); failed {
		log.Debug("cell failed", "kind", kind, "error", perr)
		return s.fail(counter, &ExecError{Kind: kind, Message: errorText(out.Stderr, perr)})
	}

	s.publishCaptured(out, cellErrorsPrefix, cellOutputsPrefix)

	if val == nil || endsWithTerminator(req.Code) {
		return okReply(counter)
	}

	r := s.materializer.Render(val)
	if r.Failed() {
		kind := renderFailureKind(r)
		log.Debug("rendering failed", "kind", kind, "error", r.Err)
		return s.fail(counter, &ExecError{
			Kind:    kind + WhileEvaluatingOutput,
			Message: errorText(r.Output.Stderr, r.Err),
		})
	}

	s.publishCaptured(r.Output, outputErrorsPrefix, outputOutputsPrefix)
	s.out.ExecuteResult(counter, r.Payload, map[string]any{})
	return okReply(counter)
}

// normalize appends a statement terminator unless the last non-empty
// line is a directive.
func normalize(code string) string {
	trimmed := strings.TrimRightFunc(code, unicode.IsSpace)
	last := trimmed
	if i := strings.LastIndexByte(trimmed, '\n'); i >= 0 {
		last = trimmed[i+1:]
	}
	if strings.HasPrefix(strings.TrimSpace(last), string(engine.DirectiveMarker)) {
		return code
	}
	return code + string(terminator)
}

// endsWithTerminator reports whether the last non-whitespace character of
// code is the statement terminator, which suppresses the result.
func endsWithTerminator(code string) bool {
	trimmed := strings.TrimRightFunc(code, unicode.IsSpace)
	return strings.HasSuffix(trimmed, string(terminator))
}

// renderFailureKind classifies a failed rendering. A snippet that ran but
// returned no usable bundle is an unknown error.
func renderFailureKind(r *display.Rendering) ErrorKind {
	if errors.Is(r.Err, display.ErrMalformedPayload) || errors.Is(r.Err, capture.ErrActive) {
		return UnknownError
	}
	kind, _ := failureKind(r.Result, r.Err)
	return kind
}

// errorText is the message of a failure: the diagnostics the engine wrote
// to stderr, or the error itself when nothing was written.
func errorText(stderr string, err error) string {
	if stderr != "" {
		return stderr
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

func (s *Session) publishCaptured(out capture.Output, errorsPrefix, outputsPrefix string) {
	if out.Stderr != "" {
		s.out.DisplayData(display.Text(errorsPrefix+out.Stderr), map[string]any{}, map[string]any{})
	}
	if out.Stdout != "" {
		s.out.DisplayData(display.Text(outputsPrefix+out.Stdout), map[string]any{}, map[string]any{})
	}
}

func (s *Session) fail(counter int, e *ExecError) protocol.ExecuteReply {
	s.out.ExecuteError(string(e.Kind), e.Message, e.Traceback())
	return protocol.ExecuteReply{
		Status:          protocol.StatusError,
		ExecutionCount:  counter,
		Ename:           string(e.Kind),
		Evalue:          e.Message,
		Traceback:       e.Traceback(),
		Payload:         []any{},
		UserExpressions: map[string]any{},
	}
}

func okReply(counter int) protocol.ExecuteReply {
	return protocol.ExecuteReply{
		Status:          protocol.StatusOK,
		ExecutionCount:  counter,
		Payload:         []any{},
		UserExpressions: map[string]any{},
	}
}
