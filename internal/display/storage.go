package display

import (
	"math"
	"math/big"
	"reflect"
	"strconv"
)

// StorageClass says how a value is handed to its rendering snippet:
// scalars travel inline as literals, everything else by reference.
type StorageClass int

const (
	Opaque StorageClass = iota
	Float
	Double
	LongDouble
	Signed
	Unsigned
)

func (c StorageClass) String() string {
	switch c {
	case Float:
		return "float"
	case Double:
		return "double"
	case LongDouble:
		return "long double"
	case Signed:
		return "signed"
	case Unsigned:
		return "unsigned"
	default:
		return "opaque"
	}
}

var (
	bigFloatType = reflect.TypeOf((*big.Float)(nil))
	bigIntType   = reflect.TypeOf((*big.Int)(nil))
)

// Classify maps the type a value exports to onto its storage class.
func Classify(t reflect.Type) StorageClass {
	switch t {
	case nil:
		return Opaque
	case bigFloatType:
		return LongDouble
	case bigIntType:
		return Signed
	}

	switch t.Kind() {
	case reflect.Float32:
		return Float
	case reflect.Float64:
		return Double
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Signed
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Unsigned
	default:
		return Opaque
	}
}

// literal spells an inline scalar as JavaScript source. ok is false when
// x does not fit the class, in which case the caller falls back to a
// reference.
func literal(class StorageClass, x any) (src string, ok bool) {
	switch v := x.(type) {
	case *big.Float:
		if class != LongDouble || v == nil {
			return "", false
		}
		if v.IsInf() {
			return floatLiteral(math.Inf(v.Sign()), 64), true
		}
		return v.Text('g', -1), true
	case *big.Int:
		if class != Signed || v == nil {
			return "", false
		}
		return v.String() + "n", true
	}

	rv := reflect.ValueOf(x)
	switch class {
	case Float:
		if rv.Kind() == reflect.Float32 {
			return floatLiteral(rv.Float(), 32), true
		}
	case Double:
		if rv.Kind() == reflect.Float64 {
			return floatLiteral(rv.Float(), 64), true
		}
	case Signed:
		if rv.CanInt() {
			return strconv.FormatInt(rv.Int(), 10), true
		}
	case Unsigned:
		if rv.CanUint() {
			return strconv.FormatUint(rv.Uint(), 10), true
		}
	}
	return "", false
}

func floatLiteral(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}
