package meta

import (
	"math"
	"reflect"
)

// As converts a decoded value to T. Values of type T are returned as is;
// numeric values convert between integer and float kinds only when the
// conversion is lossless. Anything else reports false.
func As[T any](v any) (T, bool) {
	if x, ok := v.(T); ok {
		return x, true
	}
	var zero T
	rt := reflect.TypeOf(&zero).Elem()
	out, ok := ConvertTo(v, rt)
	if !ok {
		return zero, false
	}
	x, _ := out.Interface().(T)
	return x, true
}

// ConvertTo converts v to a value of type rt using the same rules as As.
// Slices of any convert element by element.
func ConvertTo(v any, rt reflect.Type) (reflect.Value, bool) {
	if v == nil {
		switch rt.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map:
			return reflect.Zero(rt), true
		}
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(rt) {
		out := reflect.New(rt).Elem()
		out.Set(rv)
		return out, true
	}
	out := reflect.New(rt).Elem()
	switch {
	case isInt(rv.Kind()):
		return out, setFromInt(out, rv.Int())
	case isUint(rv.Kind()):
		u := rv.Uint()
		if isUint(rt.Kind()) {
			if out.OverflowUint(u) {
				return out, false
			}
			out.SetUint(u)
			return out, true
		}
		if u > math.MaxInt64 {
			return out, false
		}
		return out, setFromInt(out, int64(u))
	case isFloat(rv.Kind()):
		return out, setFromFloat(out, rv.Float())
	case rv.Kind() == reflect.Slice && rt.Kind() == reflect.Slice:
		n := rv.Len()
		s := reflect.MakeSlice(rt, n, n)
		for i := range n {
			e, ok := ConvertTo(rv.Index(i).Interface(), rt.Elem())
			if !ok {
				return out, false
			}
			s.Index(i).Set(e)
		}
		return s, true
	}
	return out, false
}

func setFromInt(out reflect.Value, n int64) bool {
	switch {
	case isInt(out.Kind()):
		if out.OverflowInt(n) {
			return false
		}
		out.SetInt(n)
	case isUint(out.Kind()):
		if n < 0 || out.OverflowUint(uint64(n)) {
			return false
		}
		out.SetUint(uint64(n))
	case isFloat(out.Kind()):
		f := float64(n)
		if int64(f) != n || out.OverflowFloat(f) {
			return false
		}
		out.SetFloat(f)
	default:
		return false
	}
	return true
}

func setFromFloat(out reflect.Value, f float64) bool {
	switch {
	case isFloat(out.Kind()):
		if out.Kind() == reflect.Float32 && float64(float32(f)) != f {
			return false
		}
		out.SetFloat(f)
	case isInt(out.Kind()):
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 || out.OverflowInt(int64(f)) {
			return false
		}
		out.SetInt(int64(f))
	case isUint(out.Kind()):
		if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 || out.OverflowUint(uint64(f)) {
			return false
		}
		out.SetUint(uint64(f))
	default:
		return false
	}
	return true
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
