package settings

import (
	"errors"
	"fmt"

	"insider/internal/bridge"
	"insider/internal/meta"
	"insider/internal/support"
)

// ImportDefaults records the declared defaults of every setting-holder type
// in mod: each field or property carrying a DefaultSettingValue marker maps
// "<type namespace>.<member name>" to the marker value. Explicit values are
// never replaced. It returns the number of defaults written.
func (s *Store) ImportDefaults(mod *meta.Module, r *bridge.Registry) int {
	n := 0
	for _, t := range mod.Types {
		if !r.IsSubtypeOf(t, support.SettingHolder) {
			continue
		}
		write := func(name string, markers *meta.MarkerList) {
			m := markers.Find(support.DefaultSettingValue)
			if m == nil || len(m.Args) == 0 {
				return
			}
			if s.SetDefault(settingKey(t.Namespace, name), m.Arg(0), mod.Name) {
				n++
			}
		}
		for _, f := range t.Fields {
			write(f.Name, f.Markers())
		}
		for _, p := range t.Properties {
			write(p.Name, p.Markers())
		}
	}
	return n
}

// ImportExplicit reads the assembly markers of mod. Setting(key, value)
// markers store value under key; markers of setting-holder types store each
// named field and property under "<marker namespace>.<name>". Later writes
// replace earlier ones. For the host module, consumed markers are removed
// when clean-up is on after the import.
//
// It returns the consumed markers. Setting markers with a non-string key are
// skipped and reported in the joined error.
func (s *Store) ImportExplicit(mod *meta.Module, r *bridge.Registry, host bool) ([]*meta.Marker, error) {
	if mod.Assembly == nil {
		return nil, nil
	}
	var (
		consumed []*meta.Marker
		errs     []error
	)
	for _, m := range mod.Assembly.Markers().All() {
		switch {
		case m.Type.Is(support.Setting):
			key, ok := m.Arg(0).(string)
			if !ok || key == "" || len(m.Args) < 2 {
				errs = append(errs, fmt.Errorf("%s: %s needs a string key and a value", mod.Name, m))
				continue
			}
			s.set(key, m.Arg(1), SourceExplicit, mod.Name)
			consumed = append(consumed, m)
		case isHolder(r, mod, m):
			for _, na := range m.Named() {
				s.set(settingKey(m.Type.Namespace, na.Name), na.Value.Unwrap(), SourceExplicit, mod.Name)
			}
			consumed = append(consumed, m)
		}
	}
	if host && Bool(s, support.KeyCleanUp, true) && len(consumed) > 0 {
		mod.Assembly.Markers().RemoveWhere(func(m *meta.Marker) bool {
			for _, c := range consumed {
				if c == m {
					return true
				}
			}
			return false
		})
	}
	return consumed, errors.Join(errs...)
}

func isHolder(r *bridge.Registry, mod *meta.Module, m *meta.Marker) bool {
	if m.Type.Is(support.Config) {
		return true
	}
	t := mod.Resolve(m.Type)
	if t == nil {
		t = r.ResolveType(m.Type)
	}
	return r.IsSubtypeOf(t, support.SettingHolder)
}

func settingKey(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}
