package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/itsmostafa/gokernel/internal/display"
	"github.com/itsmostafa/gokernel/internal/kernel"
)

func runConsole(t *testing.T, input string) string {
	t.Helper()
	var out bytes.Buffer
	c := New(strings.NewReader(input), &out)
	s, err := kernel.New(c, kernel.Options{})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if err := c.Run(context.Background(), s); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return out.String()
}

func TestConsole_Run(t *testing.T) {
	out := runConsole(t, "1 + 1\nconsole.log(\"hi\");\nexit\n")

	for _, want := range []string{"In [1]:", "Out[1]: 2", "captured the following outputs:\nhi", "In [3]:", "Bye!!"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsole_MultiLineCell(t *testing.T) {
	out := runConsole(t, "function twice(x) {\n  return 2 * x;\n}\ntwice(21)\n")

	if !strings.Contains(out, "...:") {
		t.Errorf("expected a continuation prompt:\n%s", out)
	}
	if !strings.Contains(out, "Out[2]: 42") {
		t.Errorf("expected the second cell to produce 42:\n%s", out)
	}
}

func TestConsole_SingleLineCells(t *testing.T) {
	out := runConsole(t, "/\\(/.test(\"(\")\n/[)]/.test(\")\")\n%display latex\n6 * 7\n")

	if strings.Contains(out, "...:") {
		t.Errorf("no cell should need a continuation line:\n%s", out)
	}
	for _, want := range []string{"Out[1]: true", "Out[2]: true", "Out[4]: $42$"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsole_Error(t *testing.T) {
	out := runConsole(t, "throw new Error(\"nope\")\n")

	if !strings.Contains(out, string(kernel.InterpreterException)+":") || !strings.Contains(out, "nope") {
		t.Errorf("expected the error to be shown:\n%s", out)
	}
}

func TestPayloadText(t *testing.T) {
	tests := []struct {
		name    string
		payload display.Payload
		want    string
	}{
		{name: "plain", payload: display.Payload{display.MIMEPlain: "1", display.MIMELatex: "$1$"}, want: "1"},
		{name: "latex", payload: display.Payload{display.MIMELatex: "$x$"}, want: "$x$"},
		{name: "other", payload: display.Payload{"text/html": "<b>x</b>"}, want: "<b>x</b>"},
		{name: "empty", payload: display.Payload{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := payloadText(tt.payload); got != tt.want {
				t.Errorf("payloadText() = %q, want %q", got, tt.want)
			}
		})
	}
}
