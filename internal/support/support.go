// Package support declares the weaving-support library: the base transformer
// type, the capability interfaces and the settings markers that modules
// reference to take part in a weaving pass.
package support

import (
	"strings"

	"insider/internal/live"
	"insider/internal/meta"
)

const (
	// LibraryName is the module name of the weaving-support library.
	LibraryName = "Insider"
	// FormatLibraryName is the module name of the binary-format library.
	FormatLibraryName = "Insider.Format"
	// Namespace is the namespace of every well-known type.
	Namespace = "Insider"
)

// Well-known type names.
const (
	Weaver              = "Insider.Weaver"
	SettingHolder       = "Insider.SettingHolder"
	Setting             = "Insider.Setting"
	DefaultSettingValue = "Insider.DefaultSettingValue"
	Config              = "Insider.Config"

	AssemblyWeaver  = "Insider.AssemblyWeaver"
	TypeWeaver      = "Insider.TypeWeaver"
	MethodWeaver    = "Insider.MethodWeaver"
	FieldWeaver     = "Insider.FieldWeaver"
	PropertyWeaver  = "Insider.PropertyWeaver"
	EventWeaver     = "Insider.EventWeaver"
	ParameterWeaver = "Insider.ParameterWeaver"
	ModuleWeaver    = "Insider.ModuleWeaver"
)

// Built-in setting keys.
const (
	KeyCleanUp               = "Insider.CleanUp"
	KeyDebug                 = "Insider.Debug"
	KeyTreatWarningsAsErrors = "Insider.TreatWarningsAsErrors"
)

// Capability pairs a capability interface with the declaration kinds it covers.
type Capability struct {
	Interface string
	Mask      meta.KindMask
}

// Capabilities lists every capability interface.
var Capabilities = []Capability{
	{AssemblyWeaver, meta.MaskAssembly},
	{TypeWeaver, meta.MaskType},
	{MethodWeaver, meta.MaskMethod},
	{FieldWeaver, meta.MaskField},
	{PropertyWeaver, meta.MaskProperty},
	{EventWeaver, meta.MaskEvent},
	{ParameterWeaver, meta.MaskParameter},
	{ModuleWeaver, meta.MaskModule},
}

// CapabilityFor returns the capability interface name for kind k.
func CapabilityFor(k meta.Kind) string {
	for _, c := range Capabilities {
		if c.Mask.Has(k) {
			return c.Interface
		}
	}
	return ""
}

// IsSupportReference reports whether a module reference names the support
// or binary-format library. Matching is by prefix so versioned or split
// support modules are caught too.
func IsSupportReference(name string) bool {
	return strings.HasPrefix(name, LibraryName) || strings.HasPrefix(name, FormatLibraryName)
}

// Module builds a fresh declarative support module.
func Module() *meta.Module {
	mod := meta.New(LibraryName)
	local := func(fullName string) meta.TypeRef { return meta.ParseTypeRef("", fullName) }

	mod.AddType(&meta.TypeDef{Namespace: Namespace, Name: "Weaver", Abstract: true})
	mod.AddType(&meta.TypeDef{Namespace: Namespace, Name: "SettingHolder", Abstract: true})
	mod.AddType(&meta.TypeDef{Namespace: Namespace, Name: "DefaultSettingValue"})

	setting := mod.AddType(&meta.TypeDef{Namespace: Namespace, Name: "Setting"})
	ctor := setting.AddMethod(&meta.MethodDef{Name: ".ctor"})
	ctor.AddParam(&meta.ParamDef{Name: "key", Type: local(meta.TypeString)})
	ctor.AddParam(&meta.ParamDef{Name: "value", Type: local(meta.TypeObject)})

	for _, c := range Capabilities {
		ref := local(c.Interface)
		mod.AddType(&meta.TypeDef{Namespace: ref.Namespace, Name: ref.Name, Interface: true, Abstract: true})
	}

	cfg := mod.AddType(&meta.TypeDef{
		Namespace: Namespace,
		Name:      "Config",
		BaseType:  &meta.TypeRef{Namespace: Namespace, Name: "SettingHolder"},
	})
	for _, d := range []struct {
		name string
		def  bool
	}{
		{"CleanUp", true},
		{"Debug", false},
		{"TreatWarningsAsErrors", false},
	} {
		p := cfg.AddProperty(&meta.PropertyDef{Name: d.name, Type: local(meta.TypeBool), HasGetter: true, HasSetter: true})
		p.Markers().Add(meta.NewMarker("", DefaultSettingValue, meta.Object(meta.Bool(d.def))))
	}
	return mod
}

// ConfigValues is the live form of the Config marker.
type ConfigValues struct {
	CleanUp               bool
	Debug                 bool
	TreatWarningsAsErrors bool
}

// Library builds the live side of the support module.
func Library() *live.Library {
	lib := live.NewLibrary(LibraryName)
	lib.Register(Config, live.NoArgs(func() *ConfigValues { return &ConfigValues{CleanUp: true} }))
	return lib
}

// SettingMarker builds an assembly-level Setting(key, value) marker.
func SettingMarker(key string, value meta.Value) *meta.Marker {
	return meta.NewMarker(LibraryName, Setting, meta.String(key), meta.Object(value))
}

// ConfigMarker builds an empty Config marker; add properties with WithProperty.
func ConfigMarker() *meta.Marker {
	return meta.NewMarker(LibraryName, Config)
}

// WeaverType declares a transformer type in mod extending the support base
// and implementing the given capability interfaces.
func WeaverType(mod *meta.Module, namespace, name string, capabilities ...string) *meta.TypeDef {
	t := &meta.TypeDef{
		Namespace: namespace,
		Name:      name,
		BaseType:  &meta.TypeRef{Scope: LibraryName, Namespace: Namespace, Name: "Weaver"},
	}
	for _, c := range capabilities {
		t.Interfaces = append(t.Interfaces, meta.ParseTypeRef(LibraryName, c))
	}
	mod.AddReference(LibraryName, "1.0.0.0")
	return mod.AddType(t)
}
