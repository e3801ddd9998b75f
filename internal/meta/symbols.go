package meta

// SequencePoint maps an instruction index of a method body to a source
// location.
type SequencePoint struct {
	Instr  uint32 `cbor:"1,keyasint"`
	Doc    uint32 `cbor:"2,keyasint"`
	Line   uint32 `cbor:"3,keyasint"`
	Column uint32 `cbor:"4,keyasint"`
}

// Symbols is best-effort debug information attached to a module. Points are
// keyed by method full name.
type Symbols struct {
	Documents []string                   `cbor:"1,keyasint"`
	Points    map[string][]SequencePoint `cbor:"2,keyasint"`
}

// PointsFor returns the sequence points recorded for a method.
func (s *Symbols) PointsFor(m *MethodDef) []SequencePoint {
	if s == nil || m == nil {
		return nil
	}
	return s.Points[m.FullName()]
}
