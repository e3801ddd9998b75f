package meta

import (
	"io"
	"strings"

	"github.com/google/uuid"
)

// ModuleRef names a module referenced by another module.
type ModuleRef struct {
	Name    string
	Version string
}

// Resolver resolves type references that point outside a module.
type Resolver interface {
	ResolveType(ref TypeRef) *TypeDef
}

// Module is the editable declaration tree of one compiled module. It is
// mutated in place during a weaving pass and written once.
type Module struct {
	Name       string
	MVID       uuid.UUID
	Path       string
	Assembly   *Assembly
	Types      []*TypeDef
	References []ModuleRef
	Symbols    *Symbols

	resolver Resolver
	closer   io.Closer
	closed   bool
}

// New returns an empty module with a fresh MVID.
func New(name string) *Module {
	return &Module{
		Name:     name,
		MVID:     uuid.New(),
		Assembly: &Assembly{Name: name, Version: "1.0.0.0"},
	}
}

// AddType appends t and links its members back to the module.
func (m *Module) AddType(t *TypeDef) *TypeDef {
	t.Module = m
	m.Types = append(m.Types, t)
	linkType(t)
	return t
}

// Link restores every back-reference in the tree. Decoders call it after
// building the tree bottom-up.
func (m *Module) Link() {
	if m.Assembly == nil {
		m.Assembly = &Assembly{Name: m.Name}
	}
	for _, t := range m.Types {
		t.Module = m
		linkType(t)
	}
}

func linkType(t *TypeDef) {
	for _, f := range t.Fields {
		f.DeclaringType = t
	}
	for _, p := range t.Properties {
		p.DeclaringType = t
	}
	for _, e := range t.Events {
		e.DeclaringType = t
	}
	for _, mt := range t.Methods {
		mt.DeclaringType = t
		mt.link()
	}
}

// FindType returns the type named fullName, or nil.
func (m *Module) FindType(fullName string) *TypeDef {
	key := Key(fullName)
	for _, t := range m.Types {
		if Key(t.FullName()) == key {
			return t
		}
	}
	return nil
}

// RemoveTypes drops every type matching pred and returns the removed types.
func (m *Module) RemoveTypes(pred func(*TypeDef) bool) []*TypeDef {
	var removed []*TypeDef
	kept := m.Types[:0:0]
	for _, t := range m.Types {
		if pred(t) {
			removed = append(removed, t)
			continue
		}
		kept = append(kept, t)
	}
	m.Types = kept
	return removed
}

// AddReference records a dependency on another module.
func (m *Module) AddReference(name, version string) {
	for _, r := range m.References {
		if SameName(r.Name, name) {
			return
		}
	}
	m.References = append(m.References, ModuleRef{Name: name, Version: version})
}

// ReferencesPrefix reports whether m lists a reference whose name starts with prefix.
func (m *Module) ReferencesPrefix(prefix string) bool {
	for _, r := range m.References {
		if strings.HasPrefix(r.Name, prefix) {
			return true
		}
	}
	return false
}

// RemoveReferences drops every reference matching pred.
func (m *Module) RemoveReferences(pred func(ModuleRef) bool) []ModuleRef {
	var removed []ModuleRef
	kept := m.References[:0:0]
	for _, r := range m.References {
		if pred(r) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	m.References = kept
	return removed
}

// SetResolver installs the resolver used for cross-module type references.
func (m *Module) SetResolver(r Resolver) { m.resolver = r }

// Resolve resolves ref against m first and then the installed resolver.
func (m *Module) Resolve(ref TypeRef) *TypeDef {
	if ref.Scope == "" || SameName(ref.Scope, m.Name) {
		if t := m.FindType(ref.FullName()); t != nil {
			return t
		}
	}
	if m.resolver != nil {
		return m.resolver.ResolveType(ref)
	}
	return nil
}

// Attach hands m a resource to release on Close.
func (m *Module) Attach(c io.Closer) { m.closer = c }

// Closed reports whether Close has been called.
func (m *Module) Closed() bool { return m.closed }

// Close releases the backing resource and detaches the resolver. Closing
// twice is a no-op.
func (m *Module) Close() error {
	if m == nil || m.closed {
		return nil
	}
	m.closed = true
	m.resolver = nil
	if m.closer == nil {
		return nil
	}
	c := m.closer
	m.closer = nil
	return c.Close()
}

// Walk visits declarations in weaving order: the assembly, then for each type
// its fields, properties, events and methods (parameters before their method)
// and finally the type itself. Walk iterates over snapshots, so visitors may
// add or remove declarations; additions are not visited.
func (m *Module) Walk(visit func(Decl) error) error {
	if m.Assembly != nil {
		if err := visit(m.Assembly); err != nil {
			return err
		}
	}
	for _, t := range append([]*TypeDef(nil), m.Types...) {
		if err := walkType(t, visit); err != nil {
			return err
		}
	}
	return nil
}

func walkType(t *TypeDef, visit func(Decl) error) error {
	for _, f := range append([]*FieldDef(nil), t.Fields...) {
		if err := visit(f); err != nil {
			return err
		}
	}
	for _, p := range append([]*PropertyDef(nil), t.Properties...) {
		if err := visit(p); err != nil {
			return err
		}
	}
	for _, e := range append([]*EventDef(nil), t.Events...) {
		if err := visit(e); err != nil {
			return err
		}
	}
	for _, mt := range append([]*MethodDef(nil), t.Methods...) {
		for _, p := range append([]*ParamDef(nil), mt.Params...) {
			if err := visit(p); err != nil {
				return err
			}
		}
		if err := visit(mt); err != nil {
			return err
		}
	}
	return visit(t)
}
