// Package live holds the executable side of transformer types: Go factories
// registered under the fully-qualified names that modules use for their
// marker types.
package live

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"insider/internal/meta"
)

var (
	// ErrNoConstructor is returned when no constructor matches the argument types.
	ErrNoConstructor = errors.New("no matching constructor")
	// ErrNoMember is returned when hydration names an unknown or unexported member.
	ErrNoMember = errors.New("no settable member")
)

// Ctor is one constructor of a live type. Params are declared type names,
// matched exactly against marker argument types.
type Ctor struct {
	Params []string
	New    func(args []any) (any, error)
}

// Type is a live type.
type Type struct {
	FullName string
	Library  *Library
	Ctors    []Ctor
}

// Constructor returns the constructor whose parameter types equal params in
// order, or nil.
func (t *Type) Constructor(params []string) *Ctor {
	for i := range t.Ctors {
		c := &t.Ctors[i]
		if len(c.Params) != len(params) {
			continue
		}
		match := true
		for j := range params {
			if !meta.SameName(c.Params[j], params[j]) {
				match = false
				break
			}
		}
		if match {
			return c
		}
	}
	return nil
}

// New constructs an instance using the constructor matching params.
func (t *Type) New(params []string, args []any) (any, error) {
	c := t.Constructor(params)
	if c == nil {
		return nil, fmt.Errorf("%s(%s): %w", t.FullName, strings.Join(params, ","), ErrNoConstructor)
	}
	inst, err := c.New(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.FullName, err)
	}
	if inst == nil {
		return nil, fmt.Errorf("%s: constructor returned nil", t.FullName)
	}
	return inst, nil
}

// Hydrate assigns v to the exported field name of inst, which must be a
// pointer to a struct. Numeric values are converted when lossless.
func Hydrate(inst any, name string, v any) error {
	rv := reflect.ValueOf(inst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%s on %T: %w", name, inst, ErrNoMember)
	}
	f := rv.Elem().FieldByName(name)
	if !f.IsValid() || !f.CanSet() {
		return fmt.Errorf("%s on %T: %w", name, inst, ErrNoMember)
	}
	val, ok := meta.ConvertTo(v, f.Type())
	if !ok {
		return fmt.Errorf("%s on %T: cannot assign %T to %s", name, inst, v, f.Type())
	}
	f.Set(val)
	return nil
}

// Arg returns positional argument i converted to T.
func Arg[T any](args []any, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(args) {
		return zero, fmt.Errorf("argument %d missing", i)
	}
	v, ok := meta.As[T](args[i])
	if !ok {
		return zero, fmt.Errorf("argument %d: cannot use %T as %T", i, args[i], zero)
	}
	return v, nil
}

// NoArgs wraps a parameterless factory.
func NoArgs[T any](fn func() T) Ctor {
	return Ctor{New: func([]any) (any, error) { return fn(), nil }}
}

// Library is the live side of one module.
type Library struct {
	Name  string
	types map[string]*Type
	order []string
}

// NewLibrary returns an empty library for module name.
func NewLibrary(name string) *Library {
	return &Library{Name: name, types: make(map[string]*Type)}
}

// Register adds or extends the live type fullName.
func (l *Library) Register(fullName string, ctors ...Ctor) *Type {
	key := meta.Key(fullName)
	t, ok := l.types[key]
	if !ok {
		t = &Type{FullName: fullName, Library: l}
		l.types[key] = t
		l.order = append(l.order, key)
	}
	t.Ctors = append(t.Ctors, ctors...)
	return t
}

// Lookup returns the live type named fullName, or nil.
func (l *Library) Lookup(fullName string) *Type {
	if l == nil {
		return nil
	}
	return l.types[meta.Key(fullName)]
}

// Types returns the registered types in registration order.
func (l *Library) Types() []*Type {
	out := make([]*Type, 0, len(l.order))
	for _, k := range l.order {
		out = append(out, l.types[k])
	}
	return out
}

// Len returns the number of registered types.
func (l *Library) Len() int { return len(l.order) }

// Catalog maps module names to their live libraries.
type Catalog struct {
	libs map[string]*Library
}

// NewCatalog returns a catalog holding libs.
func NewCatalog(libs ...*Library) *Catalog {
	c := &Catalog{libs: make(map[string]*Library)}
	for _, l := range libs {
		c.Add(l)
	}
	return c
}

// Add registers l, merging with an existing library of the same name.
func (c *Catalog) Add(l *Library) {
	key := meta.Key(l.Name)
	existing, ok := c.libs[key]
	if !ok {
		c.libs[key] = l
		return
	}
	for _, t := range l.Types() {
		existing.Register(t.FullName, t.Ctors...)
	}
}

// Library returns the library for module name, or nil.
func (c *Catalog) Library(name string) *Library {
	if c == nil {
		return nil
	}
	return c.libs[meta.Key(name)]
}

// Names returns the sorted library names.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.libs))
	for _, l := range c.libs {
		out = append(out, l.Name)
	}
	sort.Strings(out)
	return slices.Compact(out)
}
