package bridge

import (
	"errors"
	"testing"

	"insider/internal/live"
	"insider/internal/meta"
)

type tagger struct {
	Label string
	Level int
}

func fixture() (*Registry, *meta.Module, *meta.Module) {
	lib := meta.New("Lib")
	lib.AddType(&meta.TypeDef{Namespace: "Lib", Name: "Base", Abstract: true})
	lib.AddType(&meta.TypeDef{Namespace: "Lib", Name: "IApply", Interface: true})
	lib.AddType(&meta.TypeDef{
		Namespace:  "Lib",
		Name:       "IApplyMore",
		Interface:  true,
		Interfaces: []meta.TypeRef{meta.ParseTypeRef("", "Lib.IApply")},
	})
	lib.AddType(&meta.TypeDef{
		Namespace:  "Lib",
		Name:       "Tagger",
		BaseType:   &meta.TypeRef{Namespace: "Lib", Name: "Base"},
		Interfaces: []meta.TypeRef{meta.ParseTypeRef("", "Lib.IApplyMore")},
	})

	host := meta.New("App")
	prog := host.AddType(&meta.TypeDef{
		Namespace: "App",
		Name:      "Derived",
		BaseType:  &meta.TypeRef{Scope: "Lib", Namespace: "Lib", Name: "Tagger"},
	})
	prog.AddMethod(&meta.MethodDef{Name: "Run"})
	run2 := prog.AddMethod(&meta.MethodDef{Name: "Run"})
	run2.AddParam(&meta.ParamDef{Name: "s", Type: meta.ParseTypeRef("", meta.TypeString)})
	prog.AddField(&meta.FieldDef{Name: "f"})
	prog.AddProperty(&meta.PropertyDef{Name: "P"})
	prog.AddEvent(&meta.EventDef{Name: "E"})

	liveLib := live.NewLibrary("Lib")
	liveLib.Register("Lib.Tagger", live.Ctor{
		Params: []string{meta.TypeString},
		New: func(args []any) (any, error) {
			s, err := live.Arg[string](args, 0)
			return &tagger{Label: s}, err
		},
	})

	r := New(live.NewCatalog(liveLib))
	r.Add(lib)
	r.SetHost(host)
	return r, host, lib
}

func TestResolveType(t *testing.T) {
	r, host, lib := fixture()
	if got := r.ResolveType(meta.ParseTypeRef("Lib", "Lib.Tagger")); got == nil || got.Module != lib {
		t.Fatalf("scoped lookup = %v", got)
	}
	if got := r.ResolveType(meta.ParseTypeRef("", "App.Derived")); got == nil || got.Module != host {
		t.Fatalf("unscoped host lookup = %v", got)
	}
	if got := r.ResolveType(meta.ParseTypeRef("App", "Lib.Tagger")); got != nil {
		t.Fatalf("host-scoped lookup leaked into references: %v", got)
	}
	if got := r.ResolveType(meta.ParseTypeRef("Missing", "X.Y")); got != nil {
		t.Fatal("unknown scope resolved")
	}
	added := host.AddType(&meta.TypeDef{Namespace: "App", Name: "Late"})
	if got := r.ResolveType(meta.ParseTypeRef("App", "App.Late")); got != added {
		t.Fatal("type added to host after registration not found")
	}
}

func TestResolveLiveTypeAndPairing(t *testing.T) {
	r, host, lib := fixture()
	if lt := r.ResolveLiveType(meta.ParseTypeRef("Lib", "Lib.Tagger")); lt == nil {
		t.Fatal("live type not found")
	}
	if lt := r.ResolveLiveType(meta.ParseTypeRef("Lib", "Lib.Base")); lt != nil {
		t.Fatal("abstract base has no live type")
	}
	if r.AsDecl(r.AsLive(lib)) != lib {
		t.Fatal("library pairing not symmetric")
	}
	if r.AsLive(host) != nil {
		t.Fatal("host has no live library")
	}
	if r.ResolveModule("lib") != nil {
		t.Fatal("module names are case-sensitive")
	}
}

func TestFindMembers(t *testing.T) {
	_, host, _ := fixture()
	d := host.FindType("App.Derived")
	if m := FindMethod(d, "Run"); m == nil || len(m.Params) != 0 {
		t.Fatalf("parameterless Run = %v", m)
	}
	if m := FindMethod(d, "Run", meta.TypeString); m == nil || len(m.Params) != 1 {
		t.Fatalf("Run(string) = %v", m)
	}
	if m := FindMethod(d, "Run", meta.TypeInt32); m != nil {
		t.Fatal("signature mismatch matched")
	}
	if m := FindMethodByName(d, "Run"); m != d.Methods[0] {
		t.Fatal("first match should win")
	}
	if FindField(d, "f") == nil || FindProperty(d, "P") == nil || FindEvent(d, "E") == nil {
		t.Fatal("member lookup failed")
	}
	if FindField(nil, "f") != nil || FindEvent(d, "missing") != nil {
		t.Fatal("missing member found")
	}
}

func TestSubtypes(t *testing.T) {
	r, host, lib := fixture()
	d := host.FindType("App.Derived")
	tests := []struct {
		name     string
		ancestor string
		sub      bool
		extends  bool
		impl     bool
	}{
		{"direct base", "Lib.Tagger", true, true, false},
		{"base of base", "Lib.Base", true, true, false},
		{"inherited interface", "Lib.IApplyMore", true, false, true},
		{"interface of interface", "Lib.IApply", true, false, true},
		{"self", "App.Derived", false, false, false},
		{"unrelated", "Lib.Other", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.IsSubtypeOf(d, tt.ancestor); got != tt.sub {
				t.Errorf("IsSubtypeOf = %v", got)
			}
			if got := r.Extends(d, tt.ancestor); got != tt.extends {
				t.Errorf("Extends = %v", got)
			}
			if got := r.Implements(d, tt.ancestor); got != tt.impl {
				t.Errorf("Implements = %v", got)
			}
		})
	}
	if !r.Is(d, "App.Derived") {
		t.Error("Is should accept the type itself")
	}
	if r.IsSubtypeOf(lib.FindType("Lib.Base"), "Lib.Tagger") {
		t.Error("root type has no ancestors")
	}
	if r.IsSubtypeOf(nil, "Lib.Base") {
		t.Error("nil type is not a subtype")
	}
}

func TestSubtypeCycleTerminates(t *testing.T) {
	mod := meta.New("Loop")
	mod.AddType(&meta.TypeDef{Name: "A", BaseType: &meta.TypeRef{Name: "B"}})
	mod.AddType(&meta.TypeDef{Name: "B", BaseType: &meta.TypeRef{Name: "A"}})
	r := New(nil)
	r.SetHost(mod)
	if r.IsSubtypeOf(mod.FindType("A"), "C") || r.Extends(mod.FindType("A"), "C") {
		t.Fatal("cycle reported a match")
	}
	if !r.Extends(mod.FindType("A"), "B") {
		t.Fatal("direct base missed")
	}
}

func TestConstruct(t *testing.T) {
	r, _, _ := fixture()
	m := meta.NewMarker("Lib", "Lib.Tagger", meta.Object(meta.String("hot"))).
		WithField("Level", meta.Int(3))
	m.Args[0].Type = meta.TypeString
	inst, err := r.Construct(m)
	if err != nil {
		t.Fatal(err)
	}
	tg := inst.(*tagger)
	if tg.Label != "hot" || tg.Level != 3 {
		t.Fatalf("got %+v", tg)
	}

	bad := meta.NewMarker("Lib", "Lib.Tagger", meta.Int(1))
	if _, err := r.Construct(bad); !errors.Is(err, live.ErrNoConstructor) {
		t.Fatalf("wrong ctor err = %v", err)
	}
	missing := meta.NewMarker("Lib", "Lib.Base")
	if _, err := r.Construct(missing); !errors.Is(err, ErrUnresolved) {
		t.Fatalf("unresolved err = %v", err)
	}
}

func TestMarkersOf(t *testing.T) {
	r, host, _ := fixture()
	d := host.FindType("App.Derived")
	d.Markers().Add(
		meta.NewMarker("Lib", "Lib.Tagger", meta.String("a")),
		meta.NewMarker("", "System.Obsolete"),
	)
	if got := r.MarkersOf(d, "Lib.Base"); len(got) != 1 {
		t.Fatalf("MarkersOf = %v", got)
	}
}
