package meta

import "testing"

func TestAs(t *testing.T) {
	if v, ok := As[bool](true); !ok || !v {
		t.Error("bool passthrough")
	}
	if v, ok := As[int](int8(12)); !ok || v != 12 {
		t.Errorf("int8 -> int = %v, %v", v, ok)
	}
	if v, ok := As[int32](uint64(7)); !ok || v != 7 {
		t.Errorf("uint64 -> int32 = %v, %v", v, ok)
	}
	if _, ok := As[int8](int64(300)); ok {
		t.Error("int64(300) -> int8 should overflow")
	}
	if _, ok := As[uint](int64(-1)); ok {
		t.Error("negative -> uint should fail")
	}
	if v, ok := As[int](float64(3)); !ok || v != 3 {
		t.Errorf("float 3 -> int = %v, %v", v, ok)
	}
	if _, ok := As[int](3.5); ok {
		t.Error("3.5 -> int should fail")
	}
	if v, ok := As[float64](int32(2)); !ok || v != 2 {
		t.Errorf("int32 -> float64 = %v, %v", v, ok)
	}
	if _, ok := As[string](1); ok {
		t.Error("int -> string should fail")
	}
	if _, ok := As[bool](nil); ok {
		t.Error("nil -> bool should fail")
	}
	if v, ok := As[any](nil); !ok || v != nil {
		t.Error("nil -> any should succeed")
	}
	if v, ok := As[[]string]([]any{"a", "b"}); !ok || len(v) != 2 || v[1] != "b" {
		t.Errorf("[]any -> []string = %v, %v", v, ok)
	}
}
