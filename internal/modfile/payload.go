package modfile

import (
	"insider/internal/il"
	"insider/internal/meta"
)

// Current schema version - increment when the payload layout changes.
const schemaVersion uint16 = 1

// filePayload is the on-disk form of a module.
type filePayload struct {
	Schema     uint16
	Name       string
	MVID       string
	Assembly   assemblyPayload
	References []meta.ModuleRef
	Types      []typePayload
}

type assemblyPayload struct {
	Name    string
	Version string
	Markers []markerPayload
}

type typePayload struct {
	Namespace  string
	Name       string
	Base       *meta.TypeRef
	Interfaces []meta.TypeRef
	Abstract   bool
	Interface  bool
	Markers    []markerPayload
	Fields     []fieldPayload
	Properties []propertyPayload
	Events     []eventPayload
	Methods    []methodPayload
}

type fieldPayload struct {
	Name    string
	Type    meta.TypeRef
	Static  bool
	Markers []markerPayload
}

type propertyPayload struct {
	Name      string
	Type      meta.TypeRef
	HasGetter bool
	HasSetter bool
	Markers   []markerPayload
}

type eventPayload struct {
	Name    string
	Type    meta.TypeRef
	Markers []markerPayload
}

type methodPayload struct {
	Name     string
	Params   []paramPayload
	Result   meta.TypeRef
	Static   bool
	Virtual  bool
	Abstract bool
	Markers  []markerPayload
	Body     *bodyPayload
}

type paramPayload struct {
	Name    string
	Type    meta.TypeRef
	Markers []markerPayload
}

type bodyPayload struct {
	Instrs     []instrPayload
	Handlers   []handlerPayload
	Locals     []string
	MaxStack   int
	InitLocals bool
}

// instrPayload stores branch targets as instruction indexes.
type instrPayload struct {
	Code    uint16
	Int     int64    `msgpack:",omitempty"`
	Float   float64  `msgpack:",omitempty"`
	Str     string   `msgpack:",omitempty"`
	Target  uint32   `msgpack:",omitempty"`
	Targets []uint32 `msgpack:",omitempty"`
	Ref     *il.Ref  `msgpack:",omitempty"`
}

// handlerPayload boundaries are index+1; zero means "end of body".
type handlerPayload struct {
	Kind         uint8
	TryStart     uint32
	TryEnd       uint32
	HandlerStart uint32
	HandlerEnd   uint32
	CatchType    string
}

type markerPayload struct {
	Type       meta.TypeRef
	Args       []valuePayload
	Fields     []namedPayload
	Properties []namedPayload
}

type namedPayload struct {
	Name  string
	Value valuePayload
}

// valuePayload keeps boxed and array values explicit so they survive the
// round trip through msgpack's untyped decoding.
type valuePayload struct {
	Type   string
	Scalar any
	Boxed  *valuePayload  `msgpack:",omitempty"`
	Items  []valuePayload `msgpack:",omitempty"`
	Array  bool           `msgpack:",omitempty"`
}
