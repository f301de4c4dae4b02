package kernel

import (
	"errors"

	"github.com/itsmostafa/gokernel/internal/engine"
)

// ErrShutdown is returned for requests submitted after Shutdown.
var ErrShutdown = errors.New("kernel is shut down")

// ErrorKind names the stage at which a cell failed. It becomes the ename
// of the error reply.
type ErrorKind string

const (
	InterpreterException ErrorKind = "Interpreter Exception"
	StandardException    ErrorKind = "Standard Exception"
	InterpreterError     ErrorKind = "Interpreter error"
	UnknownError         ErrorKind = "Unknown error"
)

// WhileEvaluatingOutput is appended to the kind of failures raised while
// rendering a cell's value.
const WhileEvaluatingOutput = " while evaluating output"

// ExecError describes a failed execution.
type ExecError struct {
	Kind    ErrorKind
	Message string
}

func (e *ExecError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Traceback is the single-line traceback sent to the front-end.
func (e *ExecError) Traceback() []string {
	return []string{e.Error()}
}

// failureKind maps the outcome of engine.Process to an error kind. The
// second result is false when the run succeeded.
func failureKind(res engine.Result, err error) (ErrorKind, bool) {
	if err != nil {
		var exc *engine.Exception
		var panicErr *engine.PanicError
		switch {
		case errors.As(err, &exc):
			return InterpreterException, true
		case errors.As(err, &panicErr):
			return UnknownError, true
		default:
			return StandardException, true
		}
	}
	if res != engine.Success {
		return InterpreterError, true
	}
	return "", false
}
