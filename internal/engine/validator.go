package engine

import (
	"strings"

	"github.com/dop251/goja/parser"
)

// Validation is the verdict of a Validator on the input seen so far.
type Validation int

const (
	Complete Validation = iota
	Incomplete
	Mismatch
)

func (v Validation) String() string {
	switch v {
	case Complete:
		return "complete"
	case Incomplete:
		return "incomplete"
	case Mismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// Validator decides whether accumulated input is ready to run. Each
// Validate call continues the input of the previous one until Reset.
type Validator struct {
	input strings.Builder
}

// NewValidator returns an empty validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Reset forgets all input seen so far.
func (v *Validator) Reset() {
	v.input.Reset()
}

// Validate appends line to the pending input and reports whether the
// whole input is complete.
func (v *Validator) Validate(line string) Validation {
	if v.input.Len() > 0 {
		v.input.WriteByte('\n')
	}
	v.input.WriteString(line)

	src := blankDirectives(v.input.String())
	if _, err := parser.ParseFile(nil, "", src, 0); err != nil {
		if strings.Contains(err.Error(), "Unexpected end of input") {
			return Incomplete
		}
		return Mismatch
	}
	return Complete
}

// blankDirectives replaces directive lines with empty ones so the
// remaining JavaScript keeps its line numbers.
func blankDirectives(src string) string {
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		if isDirectiveLine(line) {
			lines[i] = ""
		}
	}
	return strings.Join(lines, "\n")
}

func isDirectiveLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return len(trimmed) > 0 && trimmed[0] == DirectiveMarker
}
