// Package engine wraps a goja runtime as an incremental interpreter: each
// call to Process compiles and runs one cell against the same global
// state, and the value of the last expression is kept for display.
package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"
)

// DirectiveMarker starts a line that is handled by the engine itself
// instead of being compiled as JavaScript.
const DirectiveMarker = '%'

// PinnedFunc is the global through which pinned values are reachable
// from JavaScript.
const PinnedFunc = "$pinned"

// DirectiveFunc handles one directive line. args is the text after the
// directive name, trimmed.
type DirectiveFunc func(args string) error

// Options configures a new Engine.
type Options struct {
	// MaxCallStackSize bounds JavaScript recursion (0 keeps goja's default)
	MaxCallStackSize int

	// IncludePaths are searched, in order, by the %load directive
	IncludePaths []string

	// FS, when set, is exposed to cells as the fs global
	FS *FS
}

// include is a script replayed after every reset.
type include struct {
	name string
	src  string
}

// Engine is a single-threaded incremental JavaScript interpreter. It is
// not safe for concurrent use.
type Engine struct {
	vm      *goja.Runtime
	opts    Options
	typeOf  goja.Callable
	last    *Value
	pins    map[int64]goja.Value
	nextPin int64

	bindings   map[string]any
	bindOrder  []string
	includes   []include
	directives map[string]DirectiveFunc
}

// New creates an engine with the console globals installed.
func New(opts Options) (*Engine, error) {
	e := &Engine{
		opts:       opts,
		pins:       make(map[int64]goja.Value),
		bindings:   make(map[string]any),
		directives: make(map[string]DirectiveFunc),
	}
	e.directives["load"] = e.loadDirective
	e.directives["reset"] = func(string) error { return e.Reset() }

	if err := e.setup(); err != nil {
		return nil, err
	}
	return e, nil
}

// setup builds a fresh runtime and replays bindings and includes.
func (e *Engine) setup() error {
	vm := goja.New()
	if e.opts.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(e.opts.MaxCallStackSize)
	}
	e.vm = vm

	if err := e.setupConsole(); err != nil {
		return fmt.Errorf("failed to setup console: %w", err)
	}

	if e.opts.FS != nil {
		if err := e.opts.FS.install(vm); err != nil {
			return err
		}
	}

	pinned := func(call goja.FunctionCall) goja.Value {
		if v, ok := e.pins[call.Argument(0).ToInteger()]; ok {
			return v
		}
		return goja.Undefined()
	}
	if err := vm.Set(PinnedFunc, pinned); err != nil {
		return fmt.Errorf("failed to set %s: %w", PinnedFunc, err)
	}

	typeOf, err := vm.RunString("(function (v) { return typeof v; })")
	if err != nil {
		return fmt.Errorf("failed to compile typeof helper: %w", err)
	}
	e.typeOf, _ = goja.AssertFunction(typeOf)

	for _, name := range e.bindOrder {
		if err := vm.Set(name, e.bindings[name]); err != nil {
			return fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}
	for _, inc := range e.includes {
		if _, err := vm.RunScript(inc.name, inc.src); err != nil {
			return fmt.Errorf("failed to run %s: %w", inc.name, err)
		}
	}

	return nil
}

// setupConsole installs print and console.* writing to the process-wide
// streams as they are at call time, so stream capture sees the output.
func (e *Engine) setupConsole() error {
	vm := e.vm
	writer := func(stderr bool) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			args := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				args[i] = arg.String()
			}
			w := os.Stdout
			if stderr {
				w = os.Stderr
			}
			fmt.Fprintln(w, strings.Join(args, " "))
			return goja.Undefined()
		}
	}

	if err := vm.Set("print", writer(false)); err != nil {
		return fmt.Errorf("failed to set print: %w", err)
	}

	console := vm.NewObject()
	for name, stderr := range map[string]bool{"log": false, "info": false, "debug": false, "warn": true, "error": true} {
		if err := console.Set(name, writer(stderr)); err != nil {
			return fmt.Errorf("failed to set console.%s: %w", name, err)
		}
	}
	return vm.Set("console", console)
}

// Bind exposes a Go value as a global. Bindings survive Reset.
func (e *Engine) Bind(name string, value any) error {
	if err := e.vm.Set(name, value); err != nil {
		return fmt.Errorf("failed to bind %s: %w", name, err)
	}
	if _, ok := e.bindings[name]; !ok {
		e.bindOrder = append(e.bindOrder, name)
	}
	e.bindings[name] = value
	return nil
}

// Include runs a script and records it so that it is replayed after Reset.
func (e *Engine) Include(name, src string) error {
	if _, err := e.vm.RunScript(name, src); err != nil {
		return fmt.Errorf("failed to run %s: %w", name, err)
	}
	e.includes = append(e.includes, include{name: name, src: src})
	return nil
}

// RegisterDirective adds a %name directive handler.
func (e *Engine) RegisterDirective(name string, fn DirectiveFunc) {
	e.directives[name] = fn
}

// Reset discards all user state and rebuilds the runtime.
func (e *Engine) Reset() error {
	e.last = nil
	e.pins = make(map[int64]goja.Value)
	return e.setup()
}

// Last returns the value produced by the most recent Process call, if any.
func (e *Engine) Last() *Value {
	return e.last
}

// Pin keeps v reachable through $pinned(id) until Unpin is called.
func (e *Engine) Pin(v *Value) int64 {
	e.nextPin++
	e.pins[e.nextPin] = v.raw
	return e.nextPin
}

// Unpin releases a value pinned with Pin.
func (e *Engine) Unpin(id int64) {
	delete(e.pins, id)
}

// chunk is either a directive line or a run of JavaScript lines.
type chunk struct {
	isDirective bool
	directive   string
	args        string
	src         string
}

func splitChunks(code string) []chunk {
	var chunks []chunk
	var js []string
	flush := func() {
		if len(js) > 0 {
			chunks = append(chunks, chunk{src: strings.Join(js, "\n")})
			js = nil
		}
	}

	for _, line := range strings.Split(code, "\n") {
		if isDirectiveLine(line) {
			flush()
			name, args, _ := strings.Cut(strings.TrimSpace(line)[1:], " ")
			chunks = append(chunks, chunk{isDirective: true, directive: name, args: strings.TrimSpace(args)})
			continue
		}
		js = append(js, line)
	}
	flush()
	return chunks
}

// Process compiles and runs one cell. A syntax error or failed directive
// yields Failure with the diagnostic written to os.Stderr. Runtime errors
// are returned: *Exception for uncaught JavaScript exceptions, *PanicError
// for non-error panics, anything else as-is. Error text is also written to
// os.Stderr. The returned value is nil when the cell produced undefined.
func (e *Engine) Process(code string) (res Result, val *Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, val = Failure, nil
			if rerr, ok := r.(error); ok {
				err = rerr
				fmt.Fprintln(os.Stderr, rerr.Error())
				return
			}
			err = &PanicError{Value: r}
		}
	}()

	e.last = nil
	var last goja.Value
	for _, c := range splitChunks(code) {
		if c.isDirective {
			if derr := e.runDirective(c.directive, c.args); derr != nil {
				fmt.Fprintln(os.Stderr, derr.Error())
				return Failure, nil, nil
			}
			last = nil
			continue
		}

		prog, cerr := goja.Compile("cell", c.src, false)
		if cerr != nil {
			fmt.Fprintln(os.Stderr, cerr.Error())
			return Failure, nil, nil
		}

		v, rerr := e.vm.RunProgram(prog)
		if rerr != nil {
			fmt.Fprintln(os.Stderr, rerr.Error())
			var exc *goja.Exception
			if errors.As(rerr, &exc) {
				return Failure, nil, &Exception{cause: exc}
			}
			e.vm.ClearInterrupt()
			return Failure, nil, rerr
		}
		last = v
	}

	if last == nil || goja.IsUndefined(last) {
		return Success, nil, nil
	}
	e.last = newValue(last)
	return Success, e.last, nil
}

func (e *Engine) runDirective(name, args string) error {
	fn, ok := e.directives[name]
	if !ok {
		return fmt.Errorf("unknown directive %c%s", DirectiveMarker, name)
	}
	if err := fn(args); err != nil {
		return fmt.Errorf("%c%s: %w", DirectiveMarker, name, err)
	}
	return nil
}

// loadDirective runs a script file found on the include paths.
func (e *Engine) loadDirective(args string) error {
	if args == "" {
		return errors.New("missing file name")
	}
	path, err := e.resolve(args)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if _, err := e.vm.RunScript(filepath.Base(path), string(src)); err != nil {
		return err
	}
	return nil
}

func (e *Engine) resolve(name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	for _, dir := range e.opts.IncludePaths {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%s not found in include paths", name)
}
