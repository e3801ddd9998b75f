// Package weaver runs a weaving pass: it loads a module and its references,
// assembles the settings table, applies every transformer marker in
// declaration order, strips weaving-only content and writes the result.
package weaver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"insider/internal/bridge"
	"insider/internal/diag"
	"insider/internal/live"
	"insider/internal/meta"
	"insider/internal/modfile"
	"insider/internal/observ"
	"insider/internal/settings"
	"insider/internal/support"
	"insider/internal/trace"
)

// State is the pipeline state.
type State uint8

const (
	StateNew State = iota
	StateOpened
	StateProcessing
	StateCleaningUp
	StateWritten
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateOpened:
		return "opened"
	case StateProcessing:
		return "processing"
	case StateCleaningUp:
		return "cleaning-up"
	case StateWritten:
		return "written"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// NamedModuleWeaver is a module weaver registered by the caller.
type NamedModuleWeaver struct {
	Name   string
	Weaver ModuleWeaver
}

// Request configures one weaving pass.
type Request struct {
	Target     string
	Output     string
	References []string
	// Catalog holds the live transformer libraries. The support library is
	// always added.
	Catalog *live.Catalog
	// Settings are applied as explicit values after the references and
	// before the host module.
	Settings         map[string]any
	WarningsAsErrors bool
	Jobs             int
	Reporter         diag.Reporter
	Progress         ProgressSink
	// DebugHook is called before each transformer when Insider.Debug is on.
	DebugHook     func(target string)
	ModuleWeavers []NamedModuleWeaver
	// ScanHooks run after each declaration has been processed.
	ScanHooks []func(meta.Decl)
}

// Result describes a finished pass.
type Result struct {
	OutputPath string
	Applied    int
	Messages   []diag.Message
	Timings    observ.Report
	State      State
}

type moduleHook struct {
	name string
	w    ModuleWeaver
}

// Pipeline is a single weaving pass. It is not safe for concurrent use.
type Pipeline struct {
	req    Request
	state  State
	reg    *bridge.Registry
	store  *settings.Store
	engine *Engine
	host   *meta.Module
	refs   []*meta.Module
	hooks  []moduleHook
	bag    *diag.Bag
	report diag.Reporter
	timer  *observ.Timer
}

// New returns a pipeline for req. Nothing is loaded until Open.
func New(req *Request) *Pipeline {
	r := *req
	if r.Catalog == nil {
		r.Catalog = live.NewCatalog()
	}
	if r.Catalog.Library(support.LibraryName) == nil {
		r.Catalog.Add(support.Library())
	}
	bag := diag.NewBag(0)
	report := diag.Reporter(diag.BagReporter{Bag: bag})
	if r.Reporter != nil {
		report = diag.MultiReporter{report, r.Reporter}
	}
	reg := bridge.New(r.Catalog)
	store := settings.New()
	p := &Pipeline{
		req:    r,
		reg:    reg,
		store:  store,
		bag:    bag,
		report: report,
		timer:  observ.NewTimer(),
	}
	p.engine = NewEngine(reg, store, report)
	p.engine.SetDebugHook(r.DebugHook)
	return p
}

// Weave runs a complete pass for req.
func Weave(ctx context.Context, req *Request) (Result, error) {
	if req == nil {
		return Result{}, fmt.Errorf("missing weave request")
	}
	return New(req).Process(ctx)
}

func (p *Pipeline) State() State               { return p.state }
func (p *Pipeline) Settings() *settings.Store  { return p.store }
func (p *Pipeline) Registry() *bridge.Registry { return p.reg }
func (p *Pipeline) Host() *meta.Module         { return p.host }
func (p *Pipeline) Engine() *Engine            { return p.engine }
func (p *Pipeline) Messages() []diag.Message   { return p.bag.Items() }

// Process opens the pipeline if needed, runs the pass, writes the output
// and closes every module on all paths.
func (p *Pipeline) Process(ctx context.Context) (res Result, err error) {
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopePipeline, "weave", trace.CurrentSpan(ctx))
	ctx = trace.WithSpan(ctx, span)
	defer func() {
		if r := recover(); r != nil {
			err = unknown("unexpected failure", fmt.Errorf("panic: %v", r))
		}
		if cerr := p.Close(); cerr != nil && err == nil {
			err = &Error{Kind: KindEnvironment, Message: "cannot release modules", Err: cerr}
		}
		if err != nil {
			p.state = StateFailed
		}
		res = p.result()
		span.WithExtra("applied", strconv.Itoa(res.Applied)).End(res.State.String())
	}()

	if p.state == StateNew {
		if err := p.Open(ctx); err != nil {
			return res, err
		}
	}
	if p.state != StateOpened {
		return res, unknown(fmt.Sprintf("cannot process a pipeline in state %s", p.state), nil)
	}
	if err := ctx.Err(); err != nil {
		return res, unknown("weaving cancelled", err)
	}

	if err := p.phase(ctx, "process", StageProcess, p.processAll); err != nil {
		return res, err
	}
	if settings.Bool(p.store, support.KeyCleanUp, true) {
		p.state = StateCleaningUp
		if err := p.phase(ctx, "cleanup", StageCleanUp, func(context.Context) error {
			p.cleanUp()
			return nil
		}); err != nil {
			return res, err
		}
	}
	if err := ctx.Err(); err != nil {
		return res, unknown("weaving cancelled", err)
	}
	if err := p.phase(ctx, "write", StageWrite, p.write); err != nil {
		return res, err
	}
	p.state = StateWritten
	return res, nil
}

// phase runs fn as a timed and traced pipeline phase.
func (p *Pipeline) phase(ctx context.Context, name string, stage Stage, fn func(context.Context) error) error {
	span := trace.Begin(trace.FromContext(ctx), trace.ScopePhase, name, trace.CurrentSpan(ctx))
	ctx = trace.WithSpan(ctx, span)
	start := time.Now()
	p.emit("", stage, StatusWorking, nil, 0)
	err := p.timer.Track(name, func() error { return fn(ctx) })
	if err != nil {
		span.End("failed")
		p.state = StateFailed
		p.emit("", stage, StatusError, err, time.Since(start))
		return err
	}
	span.End("")
	p.emit("", stage, StatusDone, nil, time.Since(start))
	return nil
}

// Open loads the references and the host module, builds the registry and
// imports every setting. On failure every loaded module is closed.
func (p *Pipeline) Open(ctx context.Context) (err error) {
	if p.state != StateNew {
		return unknown(fmt.Sprintf("cannot open a pipeline in state %s", p.state), nil)
	}
	defer func() {
		if err != nil {
			p.state = StateFailed
			_ = p.Close()
		}
	}()
	if err := p.phase(ctx, "open", StageOpen, p.load); err != nil {
		return err
	}
	if err := p.phase(ctx, "settings", StageSettings, p.importSettings); err != nil {
		return err
	}
	p.state = StateOpened
	return nil
}

func (p *Pipeline) load(ctx context.Context) error {
	p.reg.Add(support.Module())

	paths := p.referencePaths()
	for _, path := range paths {
		p.emit(path, StageOpen, StatusQueued, nil, 0)
	}
	refs, err := modfile.LoadAll(ctx, paths, p.reg, p.req.Jobs)
	if err != nil {
		return loadError(err)
	}
	for i, mod := range refs {
		if meta.SameName(mod.Name, support.LibraryName) {
			p.report.Report(diag.New(diag.SevDebug, diag.ResSkippedLibrary, "support library provided by the weaver").On(paths[i]))
			_ = mod.Close()
			continue
		}
		p.refs = append(p.refs, mod)
		p.reg.Add(mod)
		p.emit(paths[i], StageOpen, StatusDone, nil, 0)
	}

	p.emit(p.req.Target, StageOpen, StatusWorking, nil, 0)
	host, err := modfile.Load(p.req.Target, p.reg)
	if err != nil {
		p.emit(p.req.Target, StageOpen, StatusError, err, 0)
		return loadError(err)
	}
	modfile.LoadSymbols(host)
	p.host = host
	p.reg.SetHost(host)
	p.emit(p.req.Target, StageOpen, StatusDone, nil, 0)
	return nil
}

// referencePaths drops empty entries and files named like the binary-format
// library.
func (p *Pipeline) referencePaths() []string {
	var out []string
	for _, path := range p.req.References {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if meta.SameName(base, support.FormatLibraryName) {
			p.report.Report(diag.New(diag.SevDebug, diag.ResSkippedLibrary, "binary-format library skipped").On(path))
			continue
		}
		out = append(out, path)
	}
	return out
}

func loadError(err error) *Error {
	if errors.Is(err, modfile.ErrCorrupt) || errors.Is(err, modfile.ErrSchema) {
		return &Error{Kind: KindUnknown, Message: "cannot decode module", Err: err}
	}
	return &Error{Kind: KindEnvironment, Message: "cannot load module", Err: err}
}

// importSettings imports defaults and explicit values of the support
// library and each reference in order, then the configured values, then
// the host module.
func (p *Pipeline) importSettings(context.Context) error {
	for _, ent := range p.reg.Entries() {
		if ent.Module == p.host {
			continue
		}
		p.importModule(ent.Module, false)
	}
	if len(p.req.Settings) > 0 {
		p.store.Apply(p.req.Settings)
		p.report.Report(diag.New(diag.SevDebug, diag.SetConfig, fmt.Sprintf("%d configured settings applied", len(p.req.Settings))))
	}
	if p.req.WarningsAsErrors {
		p.store.Set(support.KeyTreatWarningsAsErrors, true)
	}
	p.importModule(p.host, true)

	for _, line := range p.store.Dump() {
		p.report.Report(diag.New(diag.SevDebug, diag.SetInfo, line))
	}
	n := p.engine.Index()
	p.discoverModuleWeavers()
	p.report.Report(diag.New(diag.SevDebug, diag.WeaveInfo, fmt.Sprintf("%d transformer types, %d module weavers", n, len(p.hooks))))
	return nil
}

func (p *Pipeline) importModule(mod *meta.Module, host bool) {
	p.store.ImportDefaults(mod, p.reg)
	if _, err := p.store.ImportExplicit(mod, p.reg, host); err != nil {
		p.report.Report(diag.New(diag.SevWarning, diag.SetMalformed, err.Error()).On(mod.Name))
	}
}

// discoverModuleWeavers instantiates every concrete type implementing the
// module weaver capability, followed by the weavers of the request.
func (p *Pipeline) discoverModuleWeavers() {
	for _, ent := range p.reg.Entries() {
		for _, t := range ent.Module.Types {
			if t.Abstract || t.Interface || !p.reg.Implements(t, support.ModuleWeaver) {
				continue
			}
			lt := p.reg.LiveOf(t)
			if lt == nil {
				continue
			}
			inst, err := newModuleWeaver(lt)
			if err != nil {
				p.report.Report(diag.New(diag.SevWarning, diag.ResNoLiveType, err.Error()).From(t.FullName()))
				continue
			}
			if w, ok := inst.(ModuleWeaver); ok {
				p.hooks = append(p.hooks, moduleHook{name: t.FullName(), w: w})
			}
		}
	}
	for _, mw := range p.req.ModuleWeavers {
		if mw.Weaver != nil {
			p.hooks = append(p.hooks, moduleHook{name: mw.Name, w: mw.Weaver})
		}
	}
}

func newModuleWeaver(lt *live.Type) (inst any, err error) {
	defer func() {
		if r := recover(); r != nil {
			inst, err = nil, fmt.Errorf("%s: panic: %v", lt.FullName, r)
		}
	}()
	return lt.New(nil, nil)
}

func (p *Pipeline) processAll(ctx context.Context) error {
	p.state = StateProcessing
	p.engine.SetTracer(trace.FromContext(ctx), trace.CurrentSpan(ctx))

	for _, h := range p.hooks {
		if err := p.engine.RunModule(h.w, h.name, p.host, PhaseBefore); err != nil {
			return err
		}
	}
	err := p.host.Walk(func(d meta.Decl) error {
		if _, err := p.engine.ProcessDecl(d); err != nil {
			return err
		}
		for _, hook := range p.req.ScanHooks {
			hook(d)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, h := range p.hooks {
		if err := p.engine.RunModule(h.w, h.name, p.host, PhaseAfter); err != nil {
			return err
		}
	}
	return nil
}

// cleanUp strips transformer types and every reference that only served
// weaving.
func (p *Pipeline) cleanUp() {
	removed := p.host.RemoveTypes(func(t *meta.TypeDef) bool {
		return p.reg.Extends(t, support.Weaver)
	})
	refs := p.host.RemoveReferences(func(r meta.ModuleRef) bool {
		if support.IsSupportReference(r.Name) {
			return true
		}
		ent := p.reg.ResolveModule(r.Name)
		return ent != nil && ent.Module != p.host && ent.Module.ReferencesPrefix(support.LibraryName)
	})
	p.report.Report(diag.New(diag.SevDebug, diag.WeaveCleanUp,
		fmt.Sprintf("removed %d transformer types and %d references", len(removed), len(refs))))
}

func (p *Pipeline) write(context.Context) error {
	if err := modfile.Write(p.host, p.req.Output); err != nil {
		p.emit(p.req.Output, StageWrite, StatusError, err, 0)
		if errors.Is(err, modfile.ErrEncode) {
			// the tree is invalid, not the output location
			p.report.Report(diag.New(diag.SevError, diag.WeaveEncode, err.Error()).On(p.host.Name).Stopping())
			return &Error{
				Kind:    KindUnknown,
				Message: "cannot encode the woven module",
				Target:  p.host.Name,
				Err:     err,
			}
		}
		p.report.Report(diag.New(diag.SevError, diag.EnvWriteFailed, err.Error()).On(p.req.Output).Stopping())
		return &Error{
			Kind:    KindEnvironment,
			Message: "Cannot access target file. Make sure the output directory is not read-only",
			Target:  p.req.Output,
			Err:     err,
		}
	}
	if err := modfile.WriteSymbols(p.host, p.req.Output); err != nil {
		p.report.Report(diag.New(diag.SevWarning, diag.EnvSymbolsSkipped, err.Error()).On(p.req.Output))
	}
	p.emit(p.req.Output, StageWrite, StatusDone, nil, 0)
	return nil
}

// Close releases the host and every reference module. It is safe to call
// more than once.
func (p *Pipeline) Close() error {
	var errs []error
	if p.host != nil {
		errs = append(errs, p.host.Close())
	}
	for _, m := range p.refs {
		errs = append(errs, m.Close())
	}
	return errors.Join(errs...)
}

func (p *Pipeline) result() Result {
	return Result{
		OutputPath: p.outputPath(),
		Applied:    p.engine.Applied(),
		Messages:   append([]diag.Message(nil), p.bag.Items()...),
		Timings:    p.timer.Report(),
		State:      p.state,
	}
}

func (p *Pipeline) outputPath() string {
	if p.state != StateWritten {
		return ""
	}
	if abs, err := filepath.Abs(p.req.Output); err == nil {
		return abs
	}
	return p.req.Output
}

func (p *Pipeline) emit(module string, stage Stage, status Status, err error, elapsed time.Duration) {
	if p.req.Progress == nil {
		return
	}
	p.req.Progress.OnEvent(Event{Module: module, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}
