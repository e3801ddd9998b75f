// Package samples ships a small set of ready-made transformers. They double
// as end-to-end fixtures for the weaving pipeline.
package samples

import (
	"fmt"

	"insider/internal/bridge"
	"insider/internal/diag"
	"insider/internal/il"
	"insider/internal/live"
	"insider/internal/meta"
	"insider/internal/support"
	"insider/internal/weaver"
)

const (
	// LibraryName is the module name of the samples library.
	LibraryName = "Samples"
	Namespace   = "Samples"

	Replace          = "Samples.Replace"
	ChangeString     = "Samples.ChangeString"
	Test             = "Samples.Test"
	EnvironmentCheck = "Samples.EnvironmentCheck"

	// DefaultText is what ChangeString writes when no Text is given.
	DefaultText = "I have been modified."
	// DefaultEntry is the method Test registers calls in.
	DefaultEntry = "MakeTests"
)

// Replacer rewrites every instruction with opcode From to opcode To,
// keeping operands.
type Replacer struct {
	weaver.Base
	From il.OpCode
	To   il.OpCode
}

func newReplacer(args []any) (any, error) {
	from, err := live.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	to, err := live.Arg[string](args, 1)
	if err != nil {
		return nil, err
	}
	r := &Replacer{}
	var ok bool
	if r.From, ok = il.Lookup(from); !ok {
		return nil, fmt.Errorf("unknown opcode %q", from)
	}
	if r.To, ok = il.Lookup(to); !ok {
		return nil, fmt.Errorf("unknown opcode %q", to)
	}
	if r.From.Operand != r.To.Operand {
		return nil, fmt.Errorf("%s and %s take different operands", r.From.Name, r.To.Name)
	}
	return r, nil
}

func (r *Replacer) ApplyMethod(m *meta.MethodDef) error {
	if !m.HasBody() {
		return r.Logf(diag.SevWarning, "%s has no body", m.FullName())
	}
	n := 0
	for _, in := range m.Body.Instrs {
		// rewritten in place so branches that target it stay valid
		if in.Is(r.From.Code) {
			in.OpCode = r.To
			n++
		}
	}
	return r.Logf(diag.SevDebug, "replaced %d %s with %s", n, r.From.Name, r.To.Name)
}

// StringChanger sets the operand of the first string load of a method.
type StringChanger struct {
	weaver.Base
	Text string
}

func (c *StringChanger) ApplyMethod(m *meta.MethodDef) error {
	if err := c.Logf(diag.SevInfo, "Modifying %s", m.FullName()); err != nil {
		return err
	}
	i := m.Body.Find(il.CodeLdstr, 0)
	if i < 0 {
		return c.Logf(diag.SevWarning, "%s loads no string", m.FullName())
	}
	return m.Body.ReplaceAt(i, il.Ldstr(c.Text))
}

// Tester registers a call to the marked method, with literal arguments, at
// the start of the entry method of the declaring type's module.
type Tester struct {
	weaver.Base
	TestName  string
	Arguments []any
	Entry     string
}

func newTester(args []any) (any, error) {
	name, err := live.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	t := &Tester{TestName: name, Entry: DefaultEntry}
	if len(args) > 1 {
		rest, ok := args[1].([]any)
		if !ok {
			return nil, fmt.Errorf("argument 1: want an array, got %T", args[1])
		}
		t.Arguments = rest
	}
	return t, nil
}

func (t *Tester) ApplyMethod(m *meta.MethodDef) error {
	entry := t.findEntry()
	if entry == nil {
		return t.Logf(diag.SevError, "entry method %s() not found", t.Entry)
	}
	loads := make([]*il.Instr, 0, len(t.Arguments)+1)
	for i, a := range t.Arguments {
		in, err := il.Load(a)
		if err != nil {
			return fmt.Errorf("test %q argument %d: %w", t.TestName, i, err)
		}
		loads = append(loads, in)
	}
	loads = append(loads, il.Call(m.Ref()))

	hadBody := entry.HasBody() && entry.Body.Len() > 0
	body := entry.EnsureBody()
	if err := body.Prepend(loads...); err != nil {
		return err
	}
	if !hadBody {
		if err := body.Append(il.Ret()); err != nil {
			return err
		}
	}
	return t.Logf(diag.SevDebug, "registered test %q in %s", t.TestName, entry.FullName())
}

func (t *Tester) findEntry() *meta.MethodDef {
	mod := t.Module()
	if mod == nil {
		return nil
	}
	for _, typ := range mod.Types {
		if m := bridge.FindMethod(typ, t.Entry); m != nil {
			return m
		}
	}
	return nil
}

// EnvChecker fails the pass unless setting Key holds Expected and clean-up
// is on.
type EnvChecker struct {
	weaver.Base
	Key      string
	Expected string
}

func (c *EnvChecker) ApplyType(t *meta.TypeDef) error {
	s := c.Settings()
	if !s.Has(c.Key) {
		return c.Logf(diag.SevError, "setting %s is missing", c.Key)
	}
	if v, _ := s.Lookup(c.Key); v != c.Expected {
		return c.Logf(diag.SevError, "setting %s = %v, want %q", c.Key, v, c.Expected)
	}
	if v, _ := s.Lookup(support.KeyCleanUp); v != true {
		return c.Logf(diag.SevError, "%s = %v, want true", support.KeyCleanUp, v)
	}
	return nil
}

// Library returns the live side of the samples.
func Library() *live.Library {
	lib := live.NewLibrary(LibraryName)
	lib.Register(Replace, live.Ctor{
		Params: []string{meta.TypeString, meta.TypeString},
		New:    newReplacer,
	})
	lib.Register(ChangeString, live.NoArgs(func() *StringChanger { return &StringChanger{Text: DefaultText} }))
	lib.Register(Test,
		live.Ctor{Params: []string{meta.TypeString}, New: newTester},
		live.Ctor{Params: []string{meta.TypeString, meta.TypeObject + "[]"}, New: newTester},
	)
	lib.Register(EnvironmentCheck, live.NoArgs(func() *EnvChecker {
		return &EnvChecker{Key: "Foo", Expected: "Bar"}
	}))
	return lib
}

// Module returns the declarative samples module.
func Module() *meta.Module {
	mod := meta.New(LibraryName)
	support.WeaverType(mod, Namespace, "Replace", support.MethodWeaver)
	support.WeaverType(mod, Namespace, "ChangeString", support.MethodWeaver)
	support.WeaverType(mod, Namespace, "Test", support.MethodWeaver)
	support.WeaverType(mod, Namespace, "EnvironmentCheck", support.TypeWeaver)
	return mod
}

// ReplaceMarker builds Replace(from, to) with opcode mnemonics.
func ReplaceMarker(from, to string) *meta.Marker {
	return meta.NewMarker(LibraryName, Replace, meta.String(from), meta.String(to))
}

// ChangeStringMarker builds ChangeString, setting Text when non-empty.
func ChangeStringMarker(text string) *meta.Marker {
	m := meta.NewMarker(LibraryName, ChangeString)
	if text != "" {
		m.WithProperty("Text", meta.String(text))
	}
	return m
}

// TestMarker builds Test(name, args...).
func TestMarker(name string, args ...meta.Value) *meta.Marker {
	boxed := make([]meta.Value, len(args))
	for i, a := range args {
		boxed[i] = meta.Object(a)
	}
	return meta.NewMarker(LibraryName, Test, meta.String(name), meta.Array(meta.TypeObject, boxed...))
}

// EnvironmentCheckMarker builds EnvironmentCheck.
func EnvironmentCheckMarker() *meta.Marker {
	return meta.NewMarker(LibraryName, EnvironmentCheck)
}
