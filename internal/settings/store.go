// Package settings holds the key/value table assembled from setting markers
// and declared defaults before a weaving pass.
package settings

import (
	"fmt"
	"sort"

	"insider/internal/meta"
	"insider/internal/support"
)

// Source tells where a stored value came from.
type Source uint8

const (
	SourceDefault Source = iota
	SourceExplicit
)

func (s Source) String() string {
	if s == SourceExplicit {
		return "explicit"
	}
	return "default"
}

type entry struct {
	value  any
	source Source
	origin string
}

// View is the read-only face of a Store handed to transformers.
type View interface {
	Lookup(key string) (any, bool)
	Has(key string) bool
	Keys() []string
}

// Store is the settings table of one weaving pass. It is used from the
// pipeline goroutine only.
type Store struct {
	entries map[string]entry
}

// New returns a store seeded with the built-in defaults.
func New() *Store {
	s := &Store{entries: make(map[string]entry)}
	s.SetDefault(support.KeyCleanUp, true, "builtin")
	s.SetDefault(support.KeyDebug, false, "builtin")
	s.SetDefault(support.KeyTreatWarningsAsErrors, false, "builtin")
	return s
}

// Set stores an explicit value, replacing anything stored under key.
func (s *Store) Set(key string, v any) {
	s.set(key, v, SourceExplicit, "")
}

func (s *Store) set(key string, v any, src Source, origin string) {
	s.entries[meta.Key(key)] = entry{value: v, source: src, origin: origin}
}

// SetDefault stores v unless key already holds an explicit value. It reports
// whether the value was written.
func (s *Store) SetDefault(key string, v any, origin string) bool {
	if e, ok := s.entries[meta.Key(key)]; ok && e.source == SourceExplicit {
		return false
	}
	s.set(key, v, SourceDefault, origin)
	return true
}

// Apply stores every pair of m as an explicit value, in key order.
func (s *Store) Apply(m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.set(k, m[k], SourceExplicit, "config")
	}
}

// Lookup returns the raw value stored under key.
func (s *Store) Lookup(key string) (any, bool) {
	e, ok := s.entries[meta.Key(key)]
	return e.value, ok
}

// Has reports whether key holds a value.
func (s *Store) Has(key string) bool {
	_, ok := s.entries[meta.Key(key)]
	return ok
}

// SourceOf returns the provenance of key.
func (s *Store) SourceOf(key string) (Source, string, bool) {
	e, ok := s.entries[meta.Key(key)]
	return e.source, e.origin, ok
}

// Keys returns every key in sorted order.
func (s *Store) Keys() []string {
	out := make([]string, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of stored keys.
func (s *Store) Len() int { return len(s.entries) }

// View returns a read-only view of s.
func (s *Store) View() View { return readOnly{s} }

type readOnly struct{ s *Store }

func (r readOnly) Lookup(key string) (any, bool) { return r.s.Lookup(key) }
func (r readOnly) Has(key string) bool            { return r.s.Has(key) }
func (r readOnly) Keys() []string                 { return r.s.Keys() }

// Get returns the value stored under key converted to T, or def when the key
// is absent or holds an incompatible value. Get never panics.
func Get[T any](v View, key string, def T) T {
	if v == nil {
		return def
	}
	raw, ok := v.Lookup(key)
	if !ok {
		return def
	}
	out, ok := meta.As[T](raw)
	if !ok {
		return def
	}
	return out
}

// Bool is Get for booleans.
func Bool(v View, key string, def bool) bool { return Get(v, key, def) }

// Dump renders the table for diagnostics, one "key = value (source)" line
// per entry.
func (s *Store) Dump() []string {
	out := make([]string, 0, len(s.entries))
	for _, k := range s.Keys() {
		e := s.entries[k]
		out = append(out, fmt.Sprintf("%s = %v (%s)", k, e.value, e.source))
	}
	return out
}
