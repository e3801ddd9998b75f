// Package bridge pairs the declarative module tree with the live catalog and
// answers type, member and ancestry questions across every loaded module.
package bridge

import (
	"fmt"
	"slices"

	"insider/internal/live"
	"insider/internal/meta"
)

// Entry is one module known to the registry.
type Entry struct {
	Name   string
	Module *meta.Module
	Live   *live.Library
	types  map[string]*meta.TypeDef
}

// Registry is the cross-module view used during a weaving pass. Reference
// entries are added once at pipeline start; only the host entry changes
// afterwards, as transformers edit the host module.
type Registry struct {
	catalog *live.Catalog
	host    *Entry
	entries map[string]*Entry
	order   []string
}

// New returns a registry that finds live libraries in catalog.
func New(catalog *live.Catalog) *Registry {
	if catalog == nil {
		catalog = live.NewCatalog()
	}
	return &Registry{catalog: catalog, entries: make(map[string]*Entry)}
}

// Catalog returns the live catalog.
func (r *Registry) Catalog() *live.Catalog { return r.catalog }

// Add registers a reference module. Adding a module with a name that is
// already present replaces nothing and returns the existing entry.
func (r *Registry) Add(mod *meta.Module) *Entry {
	key := meta.Key(mod.Name)
	if e, ok := r.entries[key]; ok {
		return e
	}
	e := &Entry{Name: mod.Name, Module: mod, Live: r.catalog.Library(mod.Name)}
	e.index()
	r.entries[key] = e
	r.order = append(r.order, key)
	return e
}

// SetHost registers mod as the module being woven.
func (r *Registry) SetHost(mod *meta.Module) *Entry {
	e := r.Add(mod)
	r.host = e
	return e
}

// Host returns the host entry, or nil before SetHost.
func (r *Registry) Host() *Entry { return r.host }

// Entries returns every entry in registration order.
func (r *Registry) Entries() []*Entry {
	out := make([]*Entry, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.entries[k])
	}
	return out
}

// ResolveModule returns the entry for module name, or nil.
func (r *Registry) ResolveModule(name string) *Entry {
	return r.entries[meta.Key(name)]
}

// AsLive returns the live library paired with a declarative module.
func (r *Registry) AsLive(mod *meta.Module) *live.Library {
	if mod == nil {
		return nil
	}
	if e := r.ResolveModule(mod.Name); e != nil && e.Module == mod {
		return e.Live
	}
	return r.catalog.Library(mod.Name)
}

// AsDecl returns the declarative module paired with a live library.
func (r *Registry) AsDecl(lib *live.Library) *meta.Module {
	if lib == nil {
		return nil
	}
	if e := r.ResolveModule(lib.Name); e != nil {
		return e.Module
	}
	return nil
}

func (e *Entry) index() {
	e.types = make(map[string]*meta.TypeDef, len(e.Module.Types))
	for _, t := range e.Module.Types {
		key := meta.Key(t.FullName())
		if _, dup := e.types[key]; !dup {
			e.types[key] = t
		}
	}
}

// lookup finds a type in the entry. Types added to the module after
// indexing are found by a linear scan, so the host stays current.
func (e *Entry) lookup(fullName string) *meta.TypeDef {
	if t, ok := e.types[meta.Key(fullName)]; ok && slices.Contains(e.Module.Types, t) {
		return t
	}
	return e.Module.FindType(fullName)
}

// ResolveType returns the declaration ref points to, or nil when it cannot
// be resolved. An empty scope or the host scope searches the host first.
func (r *Registry) ResolveType(ref meta.TypeRef) *meta.TypeDef {
	name := ref.FullName()
	if ref.Scope == "" || (r.host != nil && meta.SameName(ref.Scope, r.host.Name)) {
		if r.host != nil {
			if t := r.host.lookup(name); t != nil {
				return t
			}
		}
		if ref.Scope != "" {
			return nil
		}
		for _, e := range r.Entries() {
			if t := e.lookup(name); t != nil {
				return t
			}
		}
		return nil
	}
	if e := r.ResolveModule(ref.Scope); e != nil {
		return e.lookup(name)
	}
	return nil
}

// ResolveLiveType returns the live type ref points to, or nil.
func (r *Registry) ResolveLiveType(ref meta.TypeRef) *live.Type {
	if ref.Scope == "" {
		if t := r.ResolveType(ref); t != nil && t.Module != nil {
			return r.catalog.Library(t.Module.Name).Lookup(t.FullName())
		}
		return nil
	}
	return r.catalog.Library(ref.Scope).Lookup(ref.ReflectionName())
}

// LiveOf returns the live counterpart of a declared type.
func (r *Registry) LiveOf(t *meta.TypeDef) *live.Type {
	if t == nil || t.Module == nil {
		return nil
	}
	return r.catalog.Library(t.Module.Name).Lookup(t.FullName())
}

// String summarizes the registry for diagnostics.
func (r *Registry) String() string {
	host := "<none>"
	if r.host != nil {
		host = r.host.Name
	}
	return fmt.Sprintf("registry(host=%s, modules=%d)", host, len(r.order))
}

var _ meta.Resolver = (*Registry)(nil)
