package weaver

import (
	"errors"
	"fmt"
	"slices"

	"insider/internal/bridge"
	"insider/internal/diag"
	"insider/internal/live"
	"insider/internal/meta"
	"insider/internal/settings"
	"insider/internal/support"
	"insider/internal/trace"
)

// transformerInfo is one dispatch table row: a declared transformer type,
// its live counterpart and the declaration kinds it handles.
type transformerInfo struct {
	decl *meta.TypeDef
	live *live.Type
	mask meta.KindMask
}

func (ti *transformerInfo) name() string { return ti.decl.FullName() }

// Engine resolves markers to transformers and applies them.
type Engine struct {
	reg     *bridge.Registry
	store   *settings.Store
	report  diag.Reporter
	debug   func(target string)
	tracer  trace.Tracer
	parent  uint64
	table   map[*meta.TypeDef]*transformerInfo
	env     *env
	target  string
	stopped *Error
	applied int
}

// NewEngine returns an engine over reg and store. Messages go to report.
func NewEngine(reg *bridge.Registry, store *settings.Store, report diag.Reporter) *Engine {
	if report == nil {
		report = diag.FuncReporter(nil)
	}
	e := &Engine{
		reg:    reg,
		store:  store,
		report: report,
		tracer: trace.Nop,
		table:  make(map[*meta.TypeDef]*transformerInfo),
	}
	e.env = &env{log: e.log, settings: store.View(), bridge: reg}
	return e
}

// SetDebugHook sets the function called before each transformer when the
// Insider.Debug setting is on.
func (e *Engine) SetDebugHook(fn func(target string)) { e.debug = fn }

// SetTracer records marker applications as points under parent.
func (e *Engine) SetTracer(t trace.Tracer, parent uint64) {
	if t == nil {
		t = trace.Nop
	}
	e.tracer = t
	e.parent = parent
}

// Applied returns the number of markers applied so far.
func (e *Engine) Applied() int { return e.applied }

// Index records every transformer type of every registry module.
func (e *Engine) Index() int {
	n := 0
	for _, ent := range e.reg.Entries() {
		for _, t := range ent.Module.Types {
			if e.lookup(t) != nil {
				n++
			}
		}
	}
	return n
}

// lookup returns the dispatch row of t, building it on first use. Types
// that are not transformers are cached as nil.
func (e *Engine) lookup(t *meta.TypeDef) *transformerInfo {
	if t == nil {
		return nil
	}
	if ti, ok := e.table[t]; ok {
		return ti
	}
	var ti *transformerInfo
	if e.reg.Extends(t, support.Weaver) {
		ti = &transformerInfo{decl: t, live: e.reg.LiveOf(t)}
		for _, c := range support.Capabilities {
			if e.reg.Implements(t, c.Interface) {
				ti.mask |= c.Mask
			}
		}
	}
	e.table[t] = ti
	return ti
}

// Transformers returns the full names of the indexed transformer types.
func (e *Engine) Transformers() []string {
	var out []string
	for _, ti := range e.table {
		if ti != nil {
			out = append(out, ti.name())
		}
	}
	slices.Sort(out)
	return out
}

// ProcessDecl applies every marker of d in order. With clean-up on, the
// applied markers are removed afterwards in one pass. It returns the number
// of markers applied.
func (e *Engine) ProcessDecl(d meta.Decl) (int, error) {
	list := d.Markers()
	if list.Len() == 0 {
		return 0, nil
	}
	var retired []*meta.Marker
	for _, m := range list.All() {
		ok, err := e.Apply(d, m)
		if err != nil {
			return len(retired), err
		}
		if ok {
			retired = append(retired, m)
		}
	}
	if len(retired) > 0 && settings.Bool(e.store, support.KeyCleanUp, true) {
		list.RemoveWhere(func(m *meta.Marker) bool { return slices.Contains(retired, m) })
	}
	return len(retired), nil
}

// Apply runs the transformer behind m on d. It reports whether m named a
// transformer for d's kind; markers that do not are skipped without error.
// The marker is not removed; ProcessDecl does that.
func (e *Engine) Apply(d meta.Decl, m *meta.Marker) (bool, error) {
	// identify
	ti := e.lookup(e.reg.ResolveType(m.Type))
	// filter
	if ti == nil || !ti.mask.Has(d.Kind()) {
		return false, nil
	}
	target := d.FullName()
	if ti.live == nil {
		return true, e.fail(&Error{
			Kind:        KindUnknown,
			Message:     "no live implementation registered",
			Target:      target,
			Transformer: ti.name(),
			Err:         bridge.ErrUnresolved,
		})
	}
	// instantiate and hydrate
	inst, err := construct(ti.live, m)
	if err != nil {
		return true, e.fail(&Error{Kind: KindUnknown, Message: "cannot construct transformer", Target: target, Transformer: ti.name(), Err: err})
	}
	tr, ok := inst.(Transformer)
	if !ok {
		return true, e.fail(&Error{Kind: KindUnknown, Message: fmt.Sprintf("%T does not embed weaver.Base", inst), Target: target, Transformer: ti.name()})
	}
	// inject
	tr.base().inject(e.hostEnv(), ti.name())

	trace.Point(e.tracer, trace.ScopeMarker, "marker:"+ti.name(), target, e.parent)
	if err := e.invoke(tr, ti.name(), d); err != nil {
		return true, err
	}
	e.applied++
	return true, nil
}

// RunModule invokes w as a module weaver for phase. Values embedding Base
// get the pass environment first.
func (e *Engine) RunModule(w ModuleWeaver, name string, mod *meta.Module, phase Phase) error {
	if tr, ok := w.(Transformer); ok {
		tr.base().inject(e.hostEnv(), name)
	}
	return e.call(name, mod.Name, func() error { return w.ApplyModule(mod, phase) })
}

// construct instantiates and hydrates lt for m. A panicking constructor or
// setter is reported as an error.
func construct(lt *live.Type, m *meta.Marker) (inst any, err error) {
	defer func() {
		if r := recover(); r != nil {
			inst, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return bridge.ConstructWith(lt, m)
}

func (e *Engine) hostEnv() *env {
	if h := e.reg.Host(); h != nil {
		e.env.module = h.Module
	}
	return e.env
}

func (e *Engine) invoke(tr Transformer, name string, d meta.Decl) error {
	var fn func() error
	switch d := d.(type) {
	case *meta.Assembly:
		if w, ok := tr.(AssemblyWeaver); ok {
			fn = func() error { return w.ApplyAssembly(d) }
		}
	case *meta.TypeDef:
		if w, ok := tr.(TypeWeaver); ok {
			fn = func() error { return w.ApplyType(d) }
		}
	case *meta.MethodDef:
		if w, ok := tr.(MethodWeaver); ok {
			fn = func() error { return w.ApplyMethod(d) }
		}
	case *meta.FieldDef:
		if w, ok := tr.(FieldWeaver); ok {
			fn = func() error { return w.ApplyField(d) }
		}
	case *meta.PropertyDef:
		if w, ok := tr.(PropertyWeaver); ok {
			fn = func() error { return w.ApplyProperty(d) }
		}
	case *meta.EventDef:
		if w, ok := tr.(EventWeaver); ok {
			fn = func() error { return w.ApplyEvent(d) }
		}
	case *meta.ParamDef:
		if w, ok := tr.(ParameterWeaver); ok {
			fn = func() error { return w.ApplyParameter(d, d.Method) }
		}
	}
	if fn == nil {
		return e.fail(&Error{
			Kind:        KindUnknown,
			Message:     fmt.Sprintf("%T cannot be applied to a %s", tr, d.Kind()),
			Target:      d.FullName(),
			Transformer: name,
		})
	}
	return e.call(name, d.FullName(), fn)
}

// call runs fn as the transformer name working on target. A returned error,
// a panic or a stopping log message ends the pass.
func (e *Engine) call(name, target string, fn func() error) (err error) {
	e.target = target
	e.stopped = nil
	defer func() { e.target = "" }()

	if settings.Bool(e.store, support.KeyDebug, false) && e.debug != nil {
		e.debug(target)
	}
	if err := e.log(name, diag.SevDebug, fmt.Sprintf("Processing %s...", target)); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = e.fail(&Error{
				Kind:        KindTransformer,
				Message:     fmt.Sprintf("panic: %v", r),
				Target:      target,
				Transformer: name,
			})
		}
	}()
	runErr := fn()
	if e.stopped != nil {
		return e.stopped
	}
	if runErr == nil {
		return nil
	}
	var we *Error
	if errors.As(runErr, &we) {
		if we.Target == "" {
			we.Target = target
		}
		if we.Transformer == "" {
			we.Transformer = name
		}
		return e.fail(we)
	}
	return e.fail(&Error{
		Kind:        KindTransformer,
		Message:     runErr.Error(),
		Target:      target,
		Transformer: name,
		Err:         runErr,
	})
}

// log is the function injected into every transformer.
func (e *Engine) log(sender string, sev diag.Severity, text string) error {
	promoted := sev == diag.SevWarning && settings.Bool(e.store, support.KeyTreatWarningsAsErrors, false)
	stop := sev == diag.SevError || promoted
	code := diag.WeaveTransformer
	if promoted {
		code = diag.TrfWarningPromoted
	}
	e.report.Report(diag.Message{
		Code:           code,
		Severity:       sev,
		Text:           text,
		Sender:         sender,
		Target:         e.target,
		StoppedWeaving: stop,
	})
	if !stop {
		return nil
	}
	err := &Error{Kind: KindTransformer, Message: text, Target: e.target, Transformer: sender, Intended: true}
	if e.stopped == nil {
		e.stopped = err
	}
	return e.stopped
}

// fail reports err as the message that stopped weaving and returns it.
// Errors raised through log were reported already.
func (e *Engine) fail(err *Error) *Error {
	if err.Intended {
		return err
	}
	code := diag.TrfFailed
	if errors.Is(err, bridge.ErrUnresolved) {
		code = diag.ResNoLiveType
	}
	e.report.Report(diag.Message{
		Code:           code,
		Severity:       diag.SevError,
		Text:           err.Error(),
		Sender:         err.Transformer,
		Target:         err.Target,
		StoppedWeaving: true,
	})
	return err
}
