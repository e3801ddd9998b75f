package bridge

import (
	"errors"
	"fmt"

	"insider/internal/live"
	"insider/internal/meta"
)

// ErrUnresolved is returned when a marker type has no live counterpart.
var ErrUnresolved = errors.New("marker type has no live implementation")

// Construct materializes m as a live value: the constructor matching the
// positional argument types is called with the unwrapped arguments, then
// every named field and property is assigned.
func (r *Registry) Construct(m *meta.Marker) (any, error) {
	lt := r.liveForMarker(m)
	if lt == nil {
		return nil, fmt.Errorf("%s: %w", m.Type.FullName(), ErrUnresolved)
	}
	return ConstructWith(lt, m)
}

// ConstructWith is Construct with an already resolved live type.
func ConstructWith(lt *live.Type, m *meta.Marker) (any, error) {
	args := make([]any, len(m.Args))
	for i, a := range m.Args {
		args[i] = a.Unwrap()
	}
	inst, err := lt.New(meta.Types(m.Args), args)
	if err != nil {
		return nil, err
	}
	for _, na := range m.Named() {
		if err := live.Hydrate(inst, na.Name, na.Value.Unwrap()); err != nil {
			return nil, fmt.Errorf("%s: %w", lt.FullName, err)
		}
	}
	return inst, nil
}

func (r *Registry) liveForMarker(m *meta.Marker) *live.Type {
	if t := r.ResolveType(m.Type); t != nil {
		if lt := r.LiveOf(t); lt != nil {
			return lt
		}
	}
	return r.ResolveLiveType(m.Type)
}
