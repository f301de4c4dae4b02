package engine

import (
	"fmt"

	"github.com/dop251/goja"
)

// Result is the engine's own verdict on a Process call, independent of
// any error raised while running the code.
type Result int

const (
	Success Result = iota
	Failure
)

func (r Result) String() string {
	if r == Success {
		return "success"
	}
	return "failure"
}

// Exception is a JavaScript exception thrown by user code and not caught
// inside the cell.
type Exception struct {
	cause *goja.Exception
}

func (e *Exception) Error() string {
	return e.cause.Error()
}

func (e *Exception) Unwrap() error {
	return e.cause
}

// Value returns the thrown JavaScript value.
func (e *Exception) Value() goja.Value {
	return e.cause.Value()
}

// PanicError wraps a recovered panic whose value was not an error.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
