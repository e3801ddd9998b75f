package meta

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Key returns the identity key for a fully-qualified name. Names coming from
// different modules are compared by their NFC form.
func Key(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// SameName reports whether two fully-qualified names denote the same entity.
func SameName(a, b string) bool {
	return Key(a) == Key(b)
}

// TypeRef is a reference to a type declared in Scope (a module name). An
// empty scope refers to the module holding the reference.
type TypeRef struct {
	Scope     string
	Namespace string
	Name      string
	Args      []TypeRef `msgpack:",omitempty"`
}

// ParseTypeRef splits "Ns.Sub.Name" into namespace and name. Generic
// arguments are not parsed.
func ParseTypeRef(scope, fullName string) TypeRef {
	fullName = strings.TrimSpace(fullName)
	if i := strings.LastIndexByte(fullName, '.'); i >= 0 {
		return TypeRef{Scope: scope, Namespace: fullName[:i], Name: fullName[i+1:]}
	}
	return TypeRef{Scope: scope, Name: fullName}
}

// IsZero reports whether r names nothing.
func (r TypeRef) IsZero() bool {
	return r.Name == "" && r.Namespace == ""
}

// FullName is the namespace-qualified name; generic instances render their
// arguments in angle brackets.
func (r TypeRef) FullName() string {
	return r.render('<', '>', TypeRef.FullName)
}

// ReferenceName is the name used when matching member signatures across the
// live and declarative models. It is the same as FullName.
func (r TypeRef) ReferenceName() string {
	return r.FullName()
}

// ReflectionName renders generic arguments in square brackets, the form the
// live model uses to look types up by name.
func (r TypeRef) ReflectionName() string {
	return r.render('[', ']', TypeRef.ReflectionName)
}

func (r TypeRef) render(open, closeBracket byte, arg func(TypeRef) string) string {
	var b strings.Builder
	if r.Namespace != "" {
		b.WriteString(r.Namespace)
		b.WriteByte('.')
	}
	b.WriteString(r.Name)
	if len(r.Args) > 0 {
		b.WriteByte(open)
		for i, a := range r.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(arg(a))
		}
		b.WriteByte(closeBracket)
	}
	return b.String()
}

// Key returns the identity key of the referenced type.
func (r TypeRef) Key() string {
	return Key(r.FullName())
}

// Is reports whether r names the type fullName, ignoring scope.
func (r TypeRef) Is(fullName string) bool {
	return r.Key() == Key(fullName)
}

// String returns "[scope]full.name" or just the full name.
func (r TypeRef) String() string {
	if r.Scope == "" {
		return r.FullName()
	}
	return "[" + r.Scope + "]" + r.FullName()
}

// SameTypes compares two type lists by ordered identity.
func SameTypes(a []TypeRef, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Is(b[i]) {
			return false
		}
	}
	return true
}
