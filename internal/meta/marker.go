package meta

import (
	"slices"
	"strings"
)

// Marker is a metadata annotation on a declaration.
type Marker struct {
	Type       TypeRef
	Args       []Value
	Fields     []NamedArg
	Properties []NamedArg
}

// NewMarker builds a marker of type fullName declared in scope.
func NewMarker(scope, fullName string, args ...Value) *Marker {
	return &Marker{Type: ParseTypeRef(scope, fullName), Args: args}
}

// WithField appends a named field assignment and returns m.
func (m *Marker) WithField(name string, v Value) *Marker {
	m.Fields = append(m.Fields, NamedArg{Name: name, Value: v})
	return m
}

// WithProperty appends a named property assignment and returns m.
func (m *Marker) WithProperty(name string, v Value) *Marker {
	m.Properties = append(m.Properties, NamedArg{Name: name, Value: v})
	return m
}

// Named returns the named fields followed by the named properties.
func (m *Marker) Named() []NamedArg {
	out := make([]NamedArg, 0, len(m.Fields)+len(m.Properties))
	out = append(out, m.Fields...)
	return append(out, m.Properties...)
}

// Arg returns the unwrapped positional argument i, or nil.
func (m *Marker) Arg(i int) any {
	if i < 0 || i >= len(m.Args) {
		return nil
	}
	return m.Args[i].Unwrap()
}

func (m *Marker) String() string {
	var b strings.Builder
	b.WriteString(m.Type.FullName())
	b.WriteByte('(')
	n := 0
	sep := func() {
		if n > 0 {
			b.WriteString(", ")
		}
		n++
	}
	for _, a := range m.Args {
		sep()
		b.WriteString(formatValue(a))
	}
	for _, na := range m.Named() {
		sep()
		b.WriteString(na.Name)
		b.WriteString(" = ")
		b.WriteString(formatValue(na.Value))
	}
	b.WriteByte(')')
	return b.String()
}

// MarkerList is the ordered marker collection of one declaration. Markers are
// identified by pointer.
type MarkerList struct {
	items []*Marker
}

// Len returns the number of markers.
func (l *MarkerList) Len() int {
	return len(l.items)
}

// All returns a snapshot of the markers in order. Removing markers while
// iterating the snapshot is safe.
func (l *MarkerList) All() []*Marker {
	return slices.Clone(l.items)
}

// Add appends markers.
func (l *MarkerList) Add(ms ...*Marker) {
	for _, m := range ms {
		if m != nil {
			l.items = append(l.items, m)
		}
	}
}

// Contains reports whether m is still attached.
func (l *MarkerList) Contains(m *Marker) bool {
	return slices.Contains(l.items, m)
}

// Remove detaches m. Removing a marker that is not present is a no-op.
func (l *MarkerList) Remove(m *Marker) bool {
	return l.RemoveWhere(func(x *Marker) bool { return x == m }) > 0
}

// RemoveWhere detaches every marker matching pred in a single pass and
// returns how many were removed.
func (l *MarkerList) RemoveWhere(pred func(*Marker) bool) int {
	kept := l.items[:0:0]
	for _, m := range l.items {
		if !pred(m) {
			kept = append(kept, m)
		}
	}
	removed := len(l.items) - len(kept)
	if removed > 0 {
		l.items = kept
	}
	return removed
}

// Find returns the first marker whose type is fullName.
func (l *MarkerList) Find(fullName string) *Marker {
	key := Key(fullName)
	for _, m := range l.items {
		if m.Type.Key() == key {
			return m
		}
	}
	return nil
}

// FindAll returns every marker whose type is fullName.
func (l *MarkerList) FindAll(fullName string) []*Marker {
	key := Key(fullName)
	var out []*Marker
	for _, m := range l.items {
		if m.Type.Key() == key {
			out = append(out, m)
		}
	}
	return out
}
