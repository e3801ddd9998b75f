package weaver

import (
	"fmt"

	"insider/internal/bridge"
	"insider/internal/diag"
	"insider/internal/meta"
	"insider/internal/settings"
)

// Transformer is implemented by every live transformer value through an
// embedded Base.
type Transformer interface {
	base() *Base
}

// Capability interfaces. A transformer implements the ones matching the
// capability interfaces its declared type lists.
type (
	AssemblyWeaver interface {
		ApplyAssembly(a *meta.Assembly) error
	}
	TypeWeaver interface {
		ApplyType(t *meta.TypeDef) error
	}
	MethodWeaver interface {
		ApplyMethod(m *meta.MethodDef) error
	}
	FieldWeaver interface {
		ApplyField(f *meta.FieldDef) error
	}
	PropertyWeaver interface {
		ApplyProperty(p *meta.PropertyDef) error
	}
	EventWeaver interface {
		ApplyEvent(e *meta.EventDef) error
	}
	ParameterWeaver interface {
		ApplyParameter(p *meta.ParamDef, m *meta.MethodDef) error
	}
	// ModuleWeaver runs once before and once after the declaration walk.
	ModuleWeaver interface {
		ApplyModule(mod *meta.Module, phase Phase) error
	}
)

// Phase tells a module weaver which side of the walk it runs on.
type Phase uint8

const (
	PhaseBefore Phase = iota
	PhaseAfter
)

func (p Phase) String() string {
	if p == PhaseAfter {
		return "after"
	}
	return "before"
}

type logFunc func(sender string, sev diag.Severity, text string) error

// env is what the pipeline hands to a transformer.
type env struct {
	log      logFunc
	settings settings.View
	bridge   *bridge.Registry
	module   *meta.Module
}

// Base is embedded by transformer types. The pipeline injects logging,
// settings and the cross-module registry before the first Apply call.
type Base struct {
	env    *env
	sender string
}

func (b *Base) base() *Base { return b }

// inject sets the environment once; later calls are ignored.
func (b *Base) inject(e *env, sender string) bool {
	if b.env != nil {
		return false
	}
	b.env = e
	b.sender = sender
	return true
}

// Log sends a message to the pipeline. An Error message, or a Warning while
// warnings are treated as errors, stops the pass: the returned error should
// be returned from Apply. The pass stops even when it is not.
func (b *Base) Log(text string, sev diag.Severity) error {
	if b.env == nil || b.env.log == nil {
		return nil
	}
	return b.env.log(b.sender, sev, text)
}

func (b *Base) Logf(sev diag.Severity, format string, args ...any) error {
	return b.Log(fmt.Sprintf(format, args...), sev)
}

// Settings returns the read-only settings of the pass.
func (b *Base) Settings() settings.View {
	if b.env == nil {
		return nil
	}
	return b.env.settings
}

// Module returns the module being woven.
func (b *Base) Module() *meta.Module {
	if b.env == nil {
		return nil
	}
	return b.env.module
}

// Bridge returns the cross-module registry. Lookups that fail return nil.
func (b *Base) Bridge() *bridge.Registry {
	if b.env == nil {
		return nil
	}
	return b.env.bridge
}

// Name returns the full name of the transformer type, once injected.
func (b *Base) Name() string { return b.sender }
