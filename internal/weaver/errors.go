package weaver

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies the outcome of a failed step.
type Kind uint8

const (
	// KindNotApplicable: the marker is not a transformer for this declaration.
	KindNotApplicable Kind = iota
	// KindResolution: a reference could not be resolved.
	KindResolution
	// KindTransformer: a transformer failed or logged a stopping message.
	KindTransformer
	// KindEnvironment: the module files could not be read or written.
	KindEnvironment
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNotApplicable:
		return "not applicable"
	case KindResolution:
		return "resolution"
	case KindTransformer:
		return "transformer"
	case KindEnvironment:
		return "environment"
	case KindUnknown:
		return "unknown"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Fatal reports whether errors of this kind abort the pass.
func (k Kind) Fatal() bool {
	return k >= KindTransformer
}

// Sentinels matched by errors.Is against the Kind of an *Error.
var (
	ErrTransformer = errors.New("transformer failure")
	ErrEnvironment = errors.New("environment failure")
	ErrUnknown     = errors.New("unknown failure")
)

// Error is a failed weaving pass.
type Error struct {
	Kind    Kind
	Message string
	// Target is the full name of the declaration being processed.
	Target string
	// Transformer is the full name of the failing transformer type.
	Transformer string
	// Intended is set when the transformer stopped the pass through Log
	// rather than by failing.
	Intended bool
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("weaver: ")
	b.WriteString(e.Kind.String())
	b.WriteString(" failure")
	if e.Transformer != "" {
		b.WriteString(" in ")
		b.WriteString(e.Transformer)
	}
	if e.Target != "" {
		b.WriteString(" on ")
		b.WriteString(e.Target)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil && (e.Message == "" || e.Err.Error() != e.Message) {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransformer:
		return e.Kind == KindTransformer
	case ErrEnvironment:
		return e.Kind == KindEnvironment
	case ErrUnknown:
		return e.Kind == KindUnknown
	}
	return false
}

// KindOf returns the Kind of err, KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return KindUnknown
}

func unknown(msg string, err error) *Error {
	return &Error{Kind: KindUnknown, Message: msg, Err: err}
}
