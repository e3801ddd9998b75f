package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity of an event. Lower values are coarser.
type Scope uint8

const (
	ScopePipeline Scope = iota + 1 // one weaving run
	ScopePhase                     // open, process, clean-up, write
	ScopeModule                    // per loaded module
	ScopeMarker                    // one marker application
)

func (s Scope) String() string {
	switch s {
	case ScopePipeline:
		return "pipeline"
	case ScopePhase:
		return "phase"
	case ScopeModule:
		return "module"
	case ScopeMarker:
		return "marker"
	default:
		return "unknown"
	}
}

// Event represents a single trace event.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for root spans
	Name     string // e.g. "open", "marker:App.Replace"
	Detail   string
	Extra    map[string]string
}
