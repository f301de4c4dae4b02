// Package display turns engine values into MIME-keyed display payloads.
// Rendering is self-hosted: a short JavaScript snippet that refers back to
// the value is run through the same engine, and the object it returns is
// the payload.
package display

import (
	_ "embed"
	"fmt"
	"strings"
)

// HostObject is the global through which interpreted code reaches the
// session that owns the engine.
const HostObject = "xki"

// Prelude defines the rendering helpers the snippets call.
//
//go:embed prelude.js
var Prelude string

const (
	MIMEPlain = "text/plain"
	MIMELatex = "text/latex"
)

// Payload maps a MIME type to rendered content.
type Payload map[string]string

// Text returns a plain-text payload.
func Text(s string) Payload {
	return Payload{MIMEPlain: s}
}

// Preference selects the representation used for values.
type Preference int

const (
	Plain Preference = iota
	Latex
)

func (p Preference) String() string {
	if p == Latex {
		return "latex"
	}
	return "plain"
}

// ParsePreference accepts "plain" or "latex", case-insensitively.
func ParsePreference(s string) (Preference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain", "":
		return Plain, nil
	case "latex":
		return Latex, nil
	default:
		return Plain, fmt.Errorf("unknown display preference %q (want plain or latex)", s)
	}
}
