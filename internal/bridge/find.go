package bridge

import (
	"insider/internal/meta"
)

// FindMethod returns the first method of t named name whose parameter types
// equal params exactly and in order. With no params it finds the
// parameterless overload.
func FindMethod(t *meta.TypeDef, name string, params ...string) *meta.MethodDef {
	if t == nil {
		return nil
	}
	for _, m := range t.Methods {
		if m.Name == name && sameParams(m, params) {
			return m
		}
	}
	return nil
}

// FindMethodByName returns the first method of t named name, whatever its
// signature.
func FindMethodByName(t *meta.TypeDef, name string) *meta.MethodDef {
	if t == nil {
		return nil
	}
	for _, m := range t.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

func sameParams(m *meta.MethodDef, params []string) bool {
	if len(m.Params) != len(params) {
		return false
	}
	for i, p := range m.Params {
		if !p.Type.Is(params[i]) {
			return false
		}
	}
	return true
}

// FindField returns the first field of t named name.
func FindField(t *meta.TypeDef, name string) *meta.FieldDef {
	if t == nil {
		return nil
	}
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// FindProperty returns the first property of t named name.
func FindProperty(t *meta.TypeDef, name string) *meta.PropertyDef {
	if t == nil {
		return nil
	}
	for _, p := range t.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// FindEvent returns the first event of t named name.
func FindEvent(t *meta.TypeDef, name string) *meta.EventDef {
	if t == nil {
		return nil
	}
	for _, e := range t.Events {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// FindMethodRef resolves the declaring type of ref and finds the method it
// names. Unresolvable references return nil.
func (r *Registry) FindMethodRef(ref meta.TypeRef, name string, params ...string) *meta.MethodDef {
	return FindMethod(r.ResolveType(ref), name, params...)
}

// Extends reports whether t derives from the class ancestor, walking base
// types only. A type does not extend itself.
func (r *Registry) Extends(t *meta.TypeDef, ancestor string) bool {
	key := meta.Key(ancestor)
	seen := map[*meta.TypeDef]bool{}
	for cur := t; cur != nil && !seen[cur]; {
		seen[cur] = true
		if cur.BaseType == nil {
			return false
		}
		if cur.BaseType.Key() == key {
			return true
		}
		cur = r.resolveFrom(cur, *cur.BaseType)
	}
	return false
}

// Implements reports whether t or any of its ancestors lists iface, directly
// or through an inherited interface.
func (r *Registry) Implements(t *meta.TypeDef, iface string) bool {
	return r.isSubtype(t, meta.Key(iface), map[*meta.TypeDef]bool{}, false)
}

// IsSubtypeOf walks the base chain of t and, at each level, its interface
// list. A missing base type ends the walk with false. Cyclic hierarchies
// terminate.
func (r *Registry) IsSubtypeOf(t *meta.TypeDef, ancestor string) bool {
	return r.isSubtype(t, meta.Key(ancestor), map[*meta.TypeDef]bool{}, true)
}

func (r *Registry) isSubtype(t *meta.TypeDef, key string, seen map[*meta.TypeDef]bool, bases bool) bool {
	for cur := t; cur != nil && !seen[cur]; {
		seen[cur] = true
		for _, iface := range cur.Interfaces {
			if iface.Key() == key {
				return true
			}
			if r.isSubtype(r.resolveFrom(cur, iface), key, seen, bases) {
				return true
			}
		}
		if cur.BaseType == nil {
			return false
		}
		if bases && cur.BaseType.Key() == key {
			return true
		}
		cur = r.resolveFrom(cur, *cur.BaseType)
	}
	return false
}

// Is reports whether t is the named type or a subtype of it.
func (r *Registry) Is(t *meta.TypeDef, fullName string) bool {
	if t == nil {
		return false
	}
	return meta.SameName(t.FullName(), fullName) || r.IsSubtypeOf(t, fullName)
}

// resolveFrom resolves ref as seen from the module that declares from, so
// unscoped references inside a reference module stay in that module.
func (r *Registry) resolveFrom(from *meta.TypeDef, ref meta.TypeRef) *meta.TypeDef {
	if ref.Scope == "" && from.Module != nil {
		if t := from.Module.FindType(ref.FullName()); t != nil {
			return t
		}
	}
	return r.ResolveType(ref)
}

// MarkersOf returns the markers of d whose type is fullName or derives from it.
func (r *Registry) MarkersOf(d meta.Decl, fullName string) []*meta.Marker {
	var out []*meta.Marker
	for _, m := range d.Markers().All() {
		if m.Type.Is(fullName) {
			out = append(out, m)
			continue
		}
		if r.IsSubtypeOf(r.ResolveType(m.Type), fullName) {
			out = append(out, m)
		}
	}
	return out
}
