package meta

// Well-known value type names used by marker arguments.
const (
	TypeString  = "System.String"
	TypeBool    = "System.Boolean"
	TypeInt32   = "System.Int32"
	TypeInt64   = "System.Int64"
	TypeFloat64 = "System.Double"
	TypeFloat32 = "System.Single"
	TypeInt16   = "System.Int16"
	TypeByte    = "System.Byte"
	TypeObject  = "System.Object"
	TypeTypeRef = "System.Type"
)

// Value is a typed marker argument. V may hold another Value (a boxed
// argument) or a []Value (an array argument).
type Value struct {
	Type string
	V    any
}

// NamedArg is a named field or property assignment on a marker.
type NamedArg struct {
	Name  string
	Value Value
}

// String builds a string-typed value.
func String(s string) Value { return Value{Type: TypeString, V: s} }

// Bool builds a bool-typed value.
func Bool(b bool) Value { return Value{Type: TypeBool, V: b} }

// Int builds an int32-typed value.
func Int(n int32) Value { return Value{Type: TypeInt32, V: n} }

// Int64 builds an int64-typed value.
func Int64(n int64) Value { return Value{Type: TypeInt64, V: n} }

// Float builds a double-typed value.
func Float(f float64) Value { return Value{Type: TypeFloat64, V: f} }

// Array builds an array of elem values; the type name is elem + "[]".
func Array(elem string, items ...Value) Value {
	return Value{Type: elem + "[]", V: append([]Value{}, items...)}
}

// Object boxes v as an object-typed argument.
func Object(v Value) Value { return Value{Type: TypeObject, V: v} }

// Unwrap strips nested boxes and returns the plain Go value. Arrays are
// unwrapped element by element.
func (v Value) Unwrap() any {
	switch x := v.V.(type) {
	case Value:
		return x.Unwrap()
	case *Value:
		if x == nil {
			return nil
		}
		return x.Unwrap()
	case []Value:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = e.Unwrap()
		}
		return out
	}
	return v.V
}

// Types returns the declared type names of vs in order.
func Types(vs []Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Type
	}
	return out
}
