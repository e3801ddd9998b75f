package meta

// Kind identifies the kind of a declaration.
type Kind uint8

const (
	KindAssembly Kind = iota
	KindType
	KindMethod
	KindField
	KindProperty
	KindEvent
	KindParameter
)

func (k Kind) String() string {
	switch k {
	case KindAssembly:
		return "assembly"
	case KindType:
		return "type"
	case KindMethod:
		return "method"
	case KindField:
		return "field"
	case KindProperty:
		return "property"
	case KindEvent:
		return "event"
	case KindParameter:
		return "parameter"
	}
	return "unknown"
}

// KindMask describes a set of declaration kinds.
type KindMask uint16

const (
	MaskNone     KindMask = 0
	MaskAssembly KindMask = 1 << iota
	MaskType
	MaskMethod
	MaskField
	MaskProperty
	MaskEvent
	MaskParameter
	// MaskModule is not a declaration kind; it marks whole-module hooks.
	MaskModule
)

var kindMasks = [...]KindMask{
	KindAssembly:  MaskAssembly,
	KindType:      MaskType,
	KindMethod:    MaskMethod,
	KindField:     MaskField,
	KindProperty:  MaskProperty,
	KindEvent:     MaskEvent,
	KindParameter: MaskParameter,
}

// Mask returns the single-bit mask for k.
func (k Kind) Mask() KindMask {
	if int(k) < len(kindMasks) {
		return kindMasks[k]
	}
	return MaskNone
}

// Has reports whether m contains kind k.
func (m KindMask) Has(k Kind) bool {
	return m&k.Mask() != 0
}

// Allows reports whether m intersects other.
func (m KindMask) Allows(other KindMask) bool {
	return m&other != 0
}
