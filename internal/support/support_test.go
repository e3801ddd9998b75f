package support

import (
	"testing"

	"insider/internal/bridge"
	"insider/internal/live"
	"insider/internal/meta"
)

func TestModuleDeclaresWellKnownTypes(t *testing.T) {
	mod := Module()
	for _, name := range []string{Weaver, SettingHolder, Setting, DefaultSettingValue, Config} {
		if mod.FindType(name) == nil {
			t.Errorf("%s missing", name)
		}
	}
	for _, c := range Capabilities {
		td := mod.FindType(c.Interface)
		if td == nil || !td.Interface {
			t.Errorf("capability %s missing", c.Interface)
		}
	}
	cfg := mod.FindType(Config)
	if len(cfg.Properties) != 3 {
		t.Fatalf("config properties = %d", len(cfg.Properties))
	}
	for _, p := range cfg.Properties {
		if p.Markers().Find(DefaultSettingValue) == nil {
			t.Errorf("%s has no default", p.Name)
		}
	}
}

func TestCapabilityFor(t *testing.T) {
	if CapabilityFor(meta.KindParameter) != ParameterWeaver || CapabilityFor(meta.KindAssembly) != AssemblyWeaver {
		t.Fatal("capability mapping broken")
	}
}

func TestIsSupportReference(t *testing.T) {
	for name, want := range map[string]bool{
		"Insider":        true,
		"Insider.Format": true,
		"InsiderTools":   true,
		"App":            false,
		"MyInsider":      false,
	} {
		if got := IsSupportReference(name); got != want {
			t.Errorf("IsSupportReference(%q) = %v", name, got)
		}
	}
}

func TestConfigMarkerConstructs(t *testing.T) {
	r := bridge.New(live.NewCatalog(Library()))
	r.Add(Module())
	inst, err := r.Construct(ConfigMarker().WithProperty("CleanUp", meta.Bool(false)).WithProperty("Debug", meta.Bool(true)))
	if err != nil {
		t.Fatal(err)
	}
	cfg := inst.(*ConfigValues)
	if cfg.CleanUp || !cfg.Debug || cfg.TreatWarningsAsErrors {
		t.Fatalf("got %+v", cfg)
	}
}

func TestWeaverType(t *testing.T) {
	host := meta.New("App")
	wt := WeaverType(host, "App", "Tracer", MethodWeaver, TypeWeaver)
	r := bridge.New(nil)
	r.Add(Module())
	r.SetHost(host)
	if !r.Extends(wt, Weaver) || !r.Implements(wt, MethodWeaver) || r.Implements(wt, FieldWeaver) {
		t.Fatal("weaver type not wired to support base")
	}
	if !host.ReferencesPrefix(LibraryName) {
		t.Fatal("support reference not recorded")
	}
}
