package display

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/itsmostafa/gokernel/internal/capture"
	"github.com/itsmostafa/gokernel/internal/engine"
)

// ErrMalformedPayload is reported when a rendering snippet returns
// something other than an object of strings.
var ErrMalformedPayload = errors.New("rendering did not produce a MIME bundle")

// Engine is the part of the interpreter the materializer drives.
type Engine interface {
	Process(code string) (engine.Result, *engine.Value, error)
	Pin(v *engine.Value) int64
	Unpin(id int64)
}

// Rendering is the outcome of rendering one value.
type Rendering struct {
	Payload Payload

	// Output holds whatever the snippet wrote to stdout/stderr
	Output capture.Output

	Result engine.Result
	Err    error
}

// Failed reports whether the snippet could not produce a payload.
func (r *Rendering) Failed() bool {
	return r.Err != nil || r.Result != engine.Success
}

// Materializer renders engine values by running snippets through the
// engine that produced them.
type Materializer struct {
	eng Engine
}

// NewMaterializer creates a Materializer for eng. The engine must have
// Prelude installed and HostObject bound.
func NewMaterializer(eng Engine) *Materializer {
	return &Materializer{eng: eng}
}

// Render builds the rendering snippet for v and runs it with the standard
// streams captured.
func (m *Materializer) Render(v *engine.Value) *Rendering {
	snippet, release := m.Snippet(v)
	defer release()

	r := &Rendering{}
	var rendered *engine.Value
	out, err := capture.Capture(func() {
		r.Result, rendered, r.Err = m.eng.Process(snippet)
	})
	if err != nil {
		r.Result, r.Err = engine.Failure, err
		return r
	}
	r.Output = out
	if r.Failed() {
		return r
	}

	payload, err := toPayload(rendered)
	if err != nil {
		r.Err = err
		return r
	}
	r.Payload = payload
	return r
}

// Snippet returns the source that renders v, and a func that releases
// any reference the snippet holds.
func (m *Materializer) Snippet(v *engine.Value) (string, func()) {
	class := Classify(v.Type())
	arg, ok := "", false
	if class != Opaque {
		arg, ok = literal(class, v.Export())
	}

	release := func() {}
	if !ok {
		id := m.eng.Pin(v)
		arg = fmt.Sprintf("%s(%d)", engine.PinnedFunc, id)
		release = func() { m.eng.Unpin(id) }
	}

	return fmt.Sprintf("mimeRepresentation(%s, %s.displayPreference(), %s);",
		arg, HostObject, strconv.Quote(v.TypeName())), release
}

func toPayload(v *engine.Value) (Payload, error) {
	if v == nil {
		return nil, ErrMalformedPayload
	}
	bundle, ok := v.Export().(map[string]any)
	if !ok || len(bundle) == 0 {
		return nil, ErrMalformedPayload
	}

	payload := make(Payload, len(bundle))
	for mime, content := range bundle {
		s, ok := content.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s is %T", ErrMalformedPayload, mime, content)
		}
		payload[mime] = s
	}
	return payload, nil
}
