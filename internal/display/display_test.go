package display

import (
	"errors"
	"math"
	"math/big"
	"reflect"
	"strings"
	"testing"

	"github.com/itsmostafa/gokernel/internal/engine"
)

func newRenderingEngine(t *testing.T, pref *Preference) *engine.Engine {
	t.Helper()
	e, err := engine.New(engine.Options{})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	host := map[string]any{
		"displayPreference": func() string { return pref.String() },
		"displayData":       func(map[string]any) {},
	}
	if err := e.Bind(HostObject, host); err != nil {
		t.Fatal(err)
	}
	if err := e.Include("prelude.js", Prelude); err != nil {
		t.Fatalf("failed to install prelude: %v", err)
	}
	return e
}

func evalValue(t *testing.T, e *engine.Engine, code string) *engine.Value {
	t.Helper()
	_, v, err := e.Process(code)
	if err != nil {
		t.Fatalf("Process(%q) failed: %v", code, err)
	}
	if v == nil {
		t.Fatalf("Process(%q) produced no value", code)
	}
	return v
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		typ  reflect.Type
		want StorageClass
	}{
		{name: "nil", typ: nil, want: Opaque},
		{name: "float32", typ: reflect.TypeOf(float32(0)), want: Float},
		{name: "float64", typ: reflect.TypeOf(float64(0)), want: Double},
		{name: "big float", typ: reflect.TypeOf(new(big.Float)), want: LongDouble},
		{name: "int64", typ: reflect.TypeOf(int64(0)), want: Signed},
		{name: "int8", typ: reflect.TypeOf(int8(0)), want: Signed},
		{name: "big int", typ: reflect.TypeOf(new(big.Int)), want: Signed},
		{name: "uint", typ: reflect.TypeOf(uint(0)), want: Unsigned},
		{name: "uint64", typ: reflect.TypeOf(uint64(0)), want: Unsigned},
		{name: "string", typ: reflect.TypeOf(""), want: Opaque},
		{name: "map", typ: reflect.TypeOf(map[string]any{}), want: Opaque},
		{name: "slice", typ: reflect.TypeOf([]any{}), want: Opaque},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.typ); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.typ, got, tt.want)
			}
		})
	}
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		name   string
		class  StorageClass
		value  any
		want   string
		wantOk bool
	}{
		{name: "signed", class: Signed, value: int64(-42), want: "-42", wantOk: true},
		{name: "unsigned", class: Unsigned, value: uint32(7), want: "7", wantOk: true},
		{name: "double", class: Double, value: 1.5, want: "1.5", wantOk: true},
		{name: "float", class: Float, value: float32(0.25), want: "0.25", wantOk: true},
		{name: "nan", class: Double, value: math.NaN(), want: "NaN", wantOk: true},
		{name: "infinity", class: Double, value: math.Inf(-1), want: "-Infinity", wantOk: true},
		{name: "bigint", class: Signed, value: big.NewInt(12345), want: "12345n", wantOk: true},
		{name: "long double", class: LongDouble, value: big.NewFloat(2.5), want: "2.5", wantOk: true},
		{name: "class mismatch", class: Signed, value: "text", wantOk: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := literal(tt.class, tt.value)
			if ok != tt.wantOk || got != tt.want {
				t.Errorf("literal(%v, %v) = (%q, %v), want (%q, %v)", tt.class, tt.value, got, ok, tt.want, tt.wantOk)
			}
		})
	}
}

func TestParsePreference(t *testing.T) {
	if p, err := ParsePreference("LaTeX"); err != nil || p != Latex {
		t.Errorf("ParsePreference(LaTeX) = (%v, %v)", p, err)
	}
	if p, err := ParsePreference(""); err != nil || p != Plain {
		t.Errorf("ParsePreference(\"\") = (%v, %v)", p, err)
	}
	if _, err := ParsePreference("html"); err == nil {
		t.Error("expected an error for an unknown preference")
	}
}

func TestSnippet_ScalarIsInline(t *testing.T) {
	pref := Plain
	e := newRenderingEngine(t, &pref)
	m := NewMaterializer(e)

	snippet, release := m.Snippet(evalValue(t, e, "2 + 2"))
	defer release()

	want := `mimeRepresentation(4, xki.displayPreference(), "int64");`
	if snippet != want {
		t.Errorf("snippet = %q, want %q", snippet, want)
	}
}

func TestSnippet_ObjectIsByReference(t *testing.T) {
	pref := Plain
	e := newRenderingEngine(t, &pref)
	m := NewMaterializer(e)

	snippet, release := m.Snippet(evalValue(t, e, `"hello"`))
	defer release()

	if !strings.HasPrefix(snippet, "mimeRepresentation("+engine.PinnedFunc+"(") {
		t.Errorf("expected a pinned reference, got %q", snippet)
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		pref Preference
		code string
		want Payload
	}{
		{name: "integer", pref: Plain, code: "2 + 2", want: Payload{MIMEPlain: "4"}},
		{name: "double", pref: Plain, code: "3 / 2", want: Payload{MIMEPlain: "1.5"}},
		{name: "string", pref: Plain, code: `"hi"`, want: Payload{MIMEPlain: `"hi"`}},
		{name: "boolean", pref: Plain, code: "1 < 2", want: Payload{MIMEPlain: "true"}},
		{name: "null", pref: Plain, code: "null", want: Payload{MIMEPlain: "null"}},
		{name: "object", pref: Plain, code: "({a: 1, b: [1, 2]})", want: Payload{MIMEPlain: `{"a":1,"b":[1,2]}`}},
		{name: "cyclic object", pref: Plain, code: "var c = {a: 1}; c.self = c; c", want: Payload{MIMEPlain: `{"a":1,"self":"[Circular]"}`}},
		{name: "shared reference", pref: Plain, code: "var o = {}; [o, o]", want: Payload{MIMEPlain: `[{},{}]`}},
		{name: "unserializable object", pref: Plain, code: `({get x() { throw new Error("no"); }})`, want: Payload{MIMEPlain: "[object Object]"}},
		{name: "custom plain", pref: Plain, code: `({toPlain: function () { return "custom"; }})`, want: Payload{MIMEPlain: "custom"}},
		{name: "latex integer", pref: Latex, code: "6 * 7", want: Payload{MIMELatex: "$42$"}},
		{name: "latex vector", pref: Latex, code: "[1, 2, 3]", want: Payload{MIMELatex: `$\left[1, 2, 3\right]$`}},
		{name: "latex matrix", pref: Latex, code: "[[1, 0], [0, 1]]", want: Payload{MIMELatex: `$\begin{pmatrix}1 & 0 \\ 0 & 1\end{pmatrix}$`}},
		{name: "latex string", pref: Latex, code: `"a_b"`, want: Payload{MIMELatex: `$\text{a\_b}$`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pref := tt.pref
			e := newRenderingEngine(t, &pref)
			m := NewMaterializer(e)

			r := m.Render(evalValue(t, e, tt.code))
			if r.Failed() {
				t.Fatalf("render failed: result=%v err=%v stderr=%q", r.Result, r.Err, r.Output.Stderr)
			}
			if !reflect.DeepEqual(r.Payload, tt.want) {
				t.Errorf("payload = %v, want %v", r.Payload, tt.want)
			}
		})
	}
}

func TestRender_CapturesSnippetOutput(t *testing.T) {
	pref := Plain
	e := newRenderingEngine(t, &pref)
	m := NewMaterializer(e)

	v := evalValue(t, e, `({toPlain: function () { console.log("rendering"); console.error("careful"); return "x"; }})`)
	r := m.Render(v)
	if r.Failed() {
		t.Fatalf("render failed: %v", r.Err)
	}
	if r.Output.Stdout != "rendering\n" {
		t.Errorf("stdout = %q, want %q", r.Output.Stdout, "rendering\n")
	}
	if r.Output.Stderr != "careful\n" {
		t.Errorf("stderr = %q, want %q", r.Output.Stderr, "careful\n")
	}
}

func TestRender_ThrowingRendererFails(t *testing.T) {
	pref := Plain
	e := newRenderingEngine(t, &pref)
	m := NewMaterializer(e)

	v := evalValue(t, e, `({toPlain: function () { throw new Error("cannot render"); }})`)
	r := m.Render(v)
	if !r.Failed() {
		t.Fatal("expected render to fail")
	}
	var exc *engine.Exception
	if !errors.As(r.Err, &exc) {
		t.Errorf("expected *engine.Exception, got %T", r.Err)
	}
	if !strings.Contains(r.Output.Stderr, "cannot render") {
		t.Errorf("expected diagnostic on stderr, got %q", r.Output.Stderr)
	}
}

func TestRender_MalformedBundle(t *testing.T) {
	pref := Plain
	e := newRenderingEngine(t, &pref)
	if _, _, err := e.Process("mimeRepresentation = function () { return 5; };"); err != nil {
		t.Fatal(err)
	}
	m := NewMaterializer(e)

	r := m.Render(evalValue(t, e, "1"))
	if !errors.Is(r.Err, ErrMalformedPayload) {
		t.Errorf("expected ErrMalformedPayload, got %v", r.Err)
	}
}

func TestRender_ReleasesReference(t *testing.T) {
	pref := Plain
	e := newRenderingEngine(t, &pref)
	m := NewMaterializer(e)

	r := m.Render(evalValue(t, e, `"pinned"`))
	if r.Failed() {
		t.Fatalf("render failed: %v", r.Err)
	}

	_, v, err := e.Process(engine.PinnedFunc + "(1)")
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Errorf("expected reference to be released, got %v", v.Export())
	}
}
