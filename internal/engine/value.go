package engine

import (
	"reflect"

	"github.com/dop251/goja"
)

// Value is a handle on the last value produced by the engine. It stays
// meaningful only until the engine runs its next statement, unless it is
// pinned.
type Value struct {
	raw goja.Value
	typ reflect.Type
}

func newValue(v goja.Value) *Value {
	return &Value{raw: v, typ: v.ExportType()}
}

// Raw returns the underlying goja value.
func (v *Value) Raw() goja.Value {
	return v.raw
}

// Type returns the Go type the value exports to. It is nil for null.
func (v *Value) Type() reflect.Type {
	return v.typ
}

// TypeName is the spelling of Type, or "null" when there is none.
func (v *Value) TypeName() string {
	if v.typ == nil {
		return "null"
	}
	return v.typ.String()
}

// Export converts the value to its Go representation.
func (v *Value) Export() any {
	return v.raw.Export()
}
