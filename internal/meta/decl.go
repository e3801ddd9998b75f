package meta

import (
	"strings"

	"insider/internal/il"
)

// Decl is any declaration that can carry markers.
type Decl interface {
	Kind() Kind
	FullName() string
	Markers() *MarkerList
}

// Annotated holds the marker list of a declaration.
type Annotated struct {
	Marks MarkerList
}

// Markers returns the declaration's marker list.
func (a *Annotated) Markers() *MarkerList { return &a.Marks }

// Assembly is the module-level declaration.
type Assembly struct {
	Annotated
	Name    string
	Version string
}

func (a *Assembly) Kind() Kind       { return KindAssembly }
func (a *Assembly) FullName() string { return a.Name }

// TypeDef is a type declared by a module.
type TypeDef struct {
	Annotated
	Module     *Module
	Namespace  string
	Name       string
	BaseType   *TypeRef
	Interfaces []TypeRef
	Abstract   bool
	Interface  bool
	Fields     []*FieldDef
	Properties []*PropertyDef
	Events     []*EventDef
	Methods    []*MethodDef
}

func (t *TypeDef) Kind() Kind { return KindType }

func (t *TypeDef) FullName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// Ref returns a reference to t scoped to its module.
func (t *TypeDef) Ref() TypeRef {
	r := TypeRef{Namespace: t.Namespace, Name: t.Name}
	if t.Module != nil {
		r.Scope = t.Module.Name
	}
	return r
}

// AddField appends a field and links it to t.
func (t *TypeDef) AddField(f *FieldDef) *FieldDef {
	f.DeclaringType = t
	t.Fields = append(t.Fields, f)
	return f
}

// AddProperty appends a property and links it to t.
func (t *TypeDef) AddProperty(p *PropertyDef) *PropertyDef {
	p.DeclaringType = t
	t.Properties = append(t.Properties, p)
	return p
}

// AddEvent appends an event and links it to t.
func (t *TypeDef) AddEvent(e *EventDef) *EventDef {
	e.DeclaringType = t
	t.Events = append(t.Events, e)
	return e
}

// AddMethod appends a method and links it and its parameters to t.
func (t *TypeDef) AddMethod(m *MethodDef) *MethodDef {
	m.DeclaringType = t
	m.link()
	t.Methods = append(t.Methods, m)
	return m
}

// FieldDef is a field of a type.
type FieldDef struct {
	Annotated
	DeclaringType *TypeDef
	Name          string
	Type          TypeRef
	Static        bool
}

func (f *FieldDef) Kind() Kind       { return KindField }
func (f *FieldDef) FullName() string { return memberName(f.DeclaringType, f.Name) }

// PropertyDef is a property of a type.
type PropertyDef struct {
	Annotated
	DeclaringType *TypeDef
	Name          string
	Type          TypeRef
	HasGetter     bool
	HasSetter     bool
}

func (p *PropertyDef) Kind() Kind       { return KindProperty }
func (p *PropertyDef) FullName() string { return memberName(p.DeclaringType, p.Name) }

// EventDef is an event of a type.
type EventDef struct {
	Annotated
	DeclaringType *TypeDef
	Name          string
	Type          TypeRef
}

func (e *EventDef) Kind() Kind       { return KindEvent }
func (e *EventDef) FullName() string { return memberName(e.DeclaringType, e.Name) }

// MethodDef is a method of a type. Body is nil for abstract and extern
// methods.
type MethodDef struct {
	Annotated
	DeclaringType *TypeDef
	Name          string
	Params        []*ParamDef
	Result        TypeRef
	Static        bool
	Virtual       bool
	Abstract      bool
	Body          *il.Body
}

func (m *MethodDef) Kind() Kind { return KindMethod }

// FullName renders "Ns.Type::Name(P1,P2)".
func (m *MethodDef) FullName() string {
	return memberName(m.DeclaringType, m.Name) + "(" + strings.Join(m.ParamTypes(), ",") + ")"
}

// ParamTypes returns the parameter type names in order.
func (m *MethodDef) ParamTypes() []string {
	out := make([]string, len(m.Params))
	for i, p := range m.Params {
		out[i] = p.Type.FullName()
	}
	return out
}

// AddParam appends a parameter and links it to m.
func (m *MethodDef) AddParam(p *ParamDef) *ParamDef {
	m.Params = append(m.Params, p)
	m.link()
	return p
}

// HasBody reports whether m carries instructions that can be edited.
func (m *MethodDef) HasBody() bool {
	return m.Body != nil
}

// EnsureBody returns the method body, creating an empty one when missing.
func (m *MethodDef) EnsureBody() *il.Body {
	if m.Body == nil {
		m.Body = il.NewBody()
	}
	return m.Body
}

// Ref returns a call operand targeting m.
func (m *MethodDef) Ref() il.Ref {
	r := il.Ref{Kind: il.RefMethod, Name: m.Name, Params: m.ParamTypes(), Result: m.Result.FullName()}
	if m.DeclaringType != nil {
		r.Type = m.DeclaringType.FullName()
		if m.DeclaringType.Module != nil {
			r.Scope = m.DeclaringType.Module.Name
		}
	}
	return r
}

func (m *MethodDef) link() {
	for i, p := range m.Params {
		p.Method = m
		p.Index = i
	}
}

// ParamDef is a method parameter.
type ParamDef struct {
	Annotated
	Method *MethodDef
	Index  int
	Name   string
	Type   TypeRef
}

func (p *ParamDef) Kind() Kind { return KindParameter }

func (p *ParamDef) FullName() string {
	if p.Method == nil {
		return p.Name
	}
	return p.Method.FullName() + "::" + p.Name
}

func memberName(t *TypeDef, name string) string {
	if t == nil {
		return name
	}
	return t.FullName() + "::" + name
}

var (
	_ Decl = (*Assembly)(nil)
	_ Decl = (*TypeDef)(nil)
	_ Decl = (*MethodDef)(nil)
	_ Decl = (*FieldDef)(nil)
	_ Decl = (*PropertyDef)(nil)
	_ Decl = (*EventDef)(nil)
	_ Decl = (*ParamDef)(nil)
)
