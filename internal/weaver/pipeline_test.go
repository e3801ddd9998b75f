package weaver_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"insider/internal/diag"
	"insider/internal/il"
	"insider/internal/live"
	"insider/internal/meta"
	"insider/internal/modfile"
	"insider/internal/settings"
	"insider/internal/support"
	"insider/internal/trace"
	"insider/internal/weaver"
)

type replacer struct {
	weaver.Base
	from, to il.OpCode
}

func (r *replacer) ApplyMethod(m *meta.MethodDef) error {
	body := m.EnsureBody()
	for i, in := range body.Instrs {
		if in.Is(r.from.Code) {
			if err := body.ReplaceAt(i, il.Create(r.to.Code, in.Operand)); err != nil {
				return err
			}
		}
	}
	return nil
}

type thrower struct{ weaver.Base }

func (*thrower) ApplyMethod(*meta.MethodDef) error { return errors.New("boom") }

type panicker struct{ weaver.Base }

func (*panicker) ApplyMethod(*meta.MethodDef) error { panic("bad state") }

type careful struct{ weaver.Base }

func (c *careful) ApplyType(t *meta.TypeDef) error {
	return c.Log("suspicious type "+t.Name, diag.SevWarning)
}

// dangler redirects the first instruction to the last one and then replaces
// the target, leaving a branch into nothing.
type dangler struct{ weaver.Base }

func (*dangler) ApplyMethod(m *meta.MethodDef) error {
	body := m.EnsureBody()
	last := body.Len() - 1
	if err := body.Insert(0, il.Br(body.At(last))); err != nil {
		return err
	}
	return body.Replace(last+1, 1, il.LdcI4(7))
}

type recorder struct {
	weaver.Base
	log *[]string
}

func (r *recorder) ApplyModule(mod *meta.Module, phase weaver.Phase) error {
	*r.log = append(*r.log, phase.String()+":"+mod.Name)
	if r.Settings() == nil || r.Module() != mod {
		return errors.New("environment not injected")
	}
	return nil
}

func appLibrary() *live.Library {
	lib := live.NewLibrary("App")
	lib.Register("App.Replace", live.Ctor{
		Params: []string{meta.TypeString, meta.TypeString},
		New: func(args []any) (any, error) {
			from, err := live.Arg[string](args, 0)
			if err != nil {
				return nil, err
			}
			to, err := live.Arg[string](args, 1)
			if err != nil {
				return nil, err
			}
			r := &replacer{}
			var ok bool
			if r.from, ok = il.Lookup(from); !ok {
				return nil, errors.New("unknown opcode " + from)
			}
			if r.to, ok = il.Lookup(to); !ok {
				return nil, errors.New("unknown opcode " + to)
			}
			return r, nil
		},
	})
	lib.Register("App.Thrower", live.NoArgs(func() *thrower { return &thrower{} }))
	lib.Register("App.Panicker", live.NoArgs(func() *panicker { return &panicker{} }))
	lib.Register("App.Careful", live.NoArgs(func() *careful { return &careful{} }))
	lib.Register("App.Dangler", live.NoArgs(func() *dangler { return &dangler{} }))
	lib.Register("App.Exploder", live.NoArgs(func() *thrower { panic("ctor exploded") }))
	return lib
}

// hostModule declares the transformer types and App.Program::Run() with
// body [ldc.i4.1, ret].
func hostModule() (*meta.Module, *meta.MethodDef) {
	mod := meta.New("App")
	support.WeaverType(mod, "App", "Replace", support.MethodWeaver)
	support.WeaverType(mod, "App", "Thrower", support.MethodWeaver)
	support.WeaverType(mod, "App", "Panicker", support.MethodWeaver)
	support.WeaverType(mod, "App", "Careful", support.TypeWeaver)
	support.WeaverType(mod, "App", "Ghost", support.MethodWeaver)
	support.WeaverType(mod, "App", "Dangler", support.MethodWeaver)
	support.WeaverType(mod, "App", "Exploder", support.MethodWeaver)
	mod.AddType(&meta.TypeDef{Namespace: "App", Name: "Plain"})
	prog := mod.AddType(&meta.TypeDef{Namespace: "App", Name: "Program"})
	run := prog.AddMethod(&meta.MethodDef{Name: "Run", Static: true})
	if err := run.EnsureBody().Append(il.LdcI4(1), il.Ret()); err != nil {
		panic(err)
	}
	return mod, run
}

func replaceMarker() *meta.Marker {
	return meta.NewMarker("App", "App.Replace", meta.String("ldc.i4.1"), meta.String("ldc.i4.2"))
}

func save(t *testing.T, dir string, mod *meta.Module) string {
	t.Helper()
	path := filepath.Join(dir, mod.Name+".mod")
	if err := modfile.Write(mod, path); err != nil {
		t.Fatalf("write %s: %v", mod.Name, err)
	}
	return path
}

func request(target, output string, refs ...string) *weaver.Request {
	return &weaver.Request{
		Target:     target,
		Output:     output,
		References: refs,
		Catalog:    live.NewCatalog(appLibrary()),
	}
}

func load(t *testing.T, path string) *meta.Module {
	t.Helper()
	mod, err := modfile.Load(path, nil)
	if err != nil {
		t.Fatalf("load output: %v", err)
	}
	t.Cleanup(func() { _ = mod.Close() })
	return mod
}

func runBody(t *testing.T, mod *meta.Module) *meta.MethodDef {
	t.Helper()
	prog := mod.FindType("App.Program")
	if prog == nil {
		t.Fatal("App.Program missing")
	}
	for _, m := range prog.Methods {
		if m.Name == "Run" {
			return m
		}
	}
	t.Fatal("Run missing")
	return nil
}

func TestReplaceScenario(t *testing.T) {
	dir := t.TempDir()
	mod, run := hostModule()
	run.Markers().Add(replaceMarker())
	target := save(t, dir, mod)
	out := filepath.Join(dir, "out.mod")

	res, err := weaver.Weave(context.Background(), request(target, out))
	if err != nil {
		t.Fatalf("Weave: %v", err)
	}
	if res.State != weaver.StateWritten || res.Applied != 1 || res.OutputPath == "" {
		t.Fatalf("result = %+v", res)
	}

	got := load(t, out)
	m := runBody(t, got)
	if m.Body.Len() != 2 || !m.Body.At(0).Is(il.CodeLdcI42) || !m.Body.At(1).Is(il.CodeRet) {
		t.Fatalf("body =\n%s", m.Body)
	}
	if m.Markers().Len() != 0 {
		t.Fatalf("marker not retired: %v", m.Markers().All())
	}
	if got.FindType("App.Replace") != nil {
		t.Fatal("transformer type survived clean-up")
	}
	if got.FindType("App.Plain") == nil {
		t.Fatal("ordinary type removed")
	}
	if got.ReferencesPrefix(support.LibraryName) {
		t.Fatalf("support reference survived: %v", got.References)
	}
}

func TestThrowingTransformerLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	mod, run := hostModule()
	run.Markers().Add(meta.NewMarker("App", "App.Thrower"))
	target := save(t, dir, mod)
	out := filepath.Join(dir, "out.mod")

	res, err := weaver.Weave(context.Background(), request(target, out))
	if !errors.Is(err, weaver.ErrTransformer) {
		t.Fatalf("err = %v, want transformer failure", err)
	}
	var we *weaver.Error
	if !errors.As(err, &we) || we.Transformer != "App.Thrower" || we.Target != "App.Program::Run()" || we.Intended {
		t.Fatalf("error = %#v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("cause lost: %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("output created: %v", statErr)
	}
	if res.State != weaver.StateFailed || res.OutputPath != "" {
		t.Fatalf("result = %+v", res)
	}
	stopped := slices.ContainsFunc(res.Messages, func(m diag.Message) bool {
		return m.StoppedWeaving && m.Sender == "App.Thrower"
	})
	if !stopped {
		t.Fatalf("no stopping message in %v", res.Messages)
	}
}

func TestPanicIsTransformerFailure(t *testing.T) {
	dir := t.TempDir()
	mod, run := hostModule()
	run.Markers().Add(meta.NewMarker("App", "App.Panicker"))
	target := save(t, dir, mod)

	_, err := weaver.Weave(context.Background(), request(target, filepath.Join(dir, "out.mod")))
	if weaver.KindOf(err) != weaver.KindTransformer || !strings.Contains(err.Error(), "bad state") {
		t.Fatalf("err = %v", err)
	}
}

func TestSettingAndConfigSkipCleanUp(t *testing.T) {
	dir := t.TempDir()
	mod, run := hostModule()
	run.Markers().Add(replaceMarker())
	mod.Assembly.Markers().Add(
		support.SettingMarker("Foo", meta.String("Bar")),
		support.ConfigMarker().WithProperty("CleanUp", meta.Bool(false)),
	)
	target := save(t, dir, mod)
	out := filepath.Join(dir, "out.mod")

	p := weaver.New(request(target, out))
	if err := p.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := settings.Get(p.Settings().View(), "Foo", ""); got != "Bar" {
		t.Fatalf("Foo = %q", got)
	}
	if settings.Bool(p.Settings(), support.KeyCleanUp, true) {
		t.Fatal("Insider.CleanUp should be false")
	}
	if _, err := p.Process(context.Background()); err != nil {
		t.Fatalf("Process: %v", err)
	}

	got := load(t, out)
	if got.FindType("App.Replace") == nil {
		t.Fatal("transformer type removed although clean-up is off")
	}
	if !got.ReferencesPrefix(support.LibraryName) {
		t.Fatal("support reference removed although clean-up is off")
	}
	if got.Assembly.Markers().Len() != 2 {
		t.Fatalf("assembly markers = %v", got.Assembly.Markers().All())
	}
	m := runBody(t, got)
	if m.Markers().Len() != 1 || !m.Body.At(0).Is(il.CodeLdcI42) {
		t.Fatalf("method = %v\n%s", m.Markers().All(), m.Body)
	}
}

func TestWarningsAsErrors(t *testing.T) {
	for _, strict := range []bool{false, true} {
		dir := t.TempDir()
		mod, _ := hostModule()
		mod.FindType("App.Program").Markers().Add(meta.NewMarker("App", "App.Careful"))
		target := save(t, dir, mod)

		req := request(target, filepath.Join(dir, "out.mod"))
		req.WarningsAsErrors = strict
		res, err := weaver.Weave(context.Background(), req)
		if !strict {
			if err != nil {
				t.Fatalf("lenient: %v", err)
			}
			if !slices.ContainsFunc(res.Messages, func(m diag.Message) bool { return m.Severity == diag.SevWarning }) {
				t.Fatalf("warning not reported: %v", res.Messages)
			}
			continue
		}
		var we *weaver.Error
		if !errors.As(err, &we) || we.Kind != weaver.KindTransformer || !we.Intended || we.Target != "App.Program" {
			t.Fatalf("strict: err = %#v", err)
		}
	}
}

func TestNotApplicableMarkersAreSkipped(t *testing.T) {
	dir := t.TempDir()
	mod, run := hostModule()
	run.Markers().Add(
		meta.NewMarker("App", "App.Plain"),
		meta.NewMarker("Ext", "Ext.Unknown"),
	)
	// a method transformer on a type belongs to another declaration kind
	mod.FindType("App.Program").Markers().Add(replaceMarker())
	target := save(t, dir, mod)
	out := filepath.Join(dir, "out.mod")

	res, err := weaver.Weave(context.Background(), request(target, out))
	if err != nil {
		t.Fatalf("Weave: %v", err)
	}
	if res.Applied != 0 {
		t.Fatalf("applied = %d", res.Applied)
	}
	got := load(t, out)
	if n := runBody(t, got).Markers().Len(); n != 2 {
		t.Fatalf("unrelated markers removed, %d left", n)
	}
}

func TestMissingLiveImplementation(t *testing.T) {
	dir := t.TempDir()
	mod, run := hostModule()
	run.Markers().Add(meta.NewMarker("App", "App.Ghost"))
	target := save(t, dir, mod)

	_, err := weaver.Weave(context.Background(), request(target, filepath.Join(dir, "out.mod")))
	if !errors.Is(err, weaver.ErrUnknown) {
		t.Fatalf("err = %v", err)
	}
}

func TestModuleWeaversAndScanHooks(t *testing.T) {
	dir := t.TempDir()
	mod, run := hostModule()
	run.Markers().Add(replaceMarker())
	target := save(t, dir, mod)

	var calls []string
	req := request(target, filepath.Join(dir, "out.mod"))
	req.ModuleWeavers = []weaver.NamedModuleWeaver{{Name: "Test.Recorder", Weaver: &recorder{log: &calls}}}
	req.ScanHooks = []func(meta.Decl){func(d meta.Decl) {
		if d.Kind() == meta.KindMethod || d.Kind() == meta.KindAssembly {
			calls = append(calls, "scan:"+d.FullName())
		}
	}}
	if _, err := weaver.Weave(context.Background(), req); err != nil {
		t.Fatalf("Weave: %v", err)
	}
	want := []string{"before:App", "scan:App", "scan:App.Program::Run()", "after:App"}
	if !slices.Equal(calls, want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
}

func TestReferencesSettingsAndTransitiveCleanUp(t *testing.T) {
	dir := t.TempDir()

	lib := meta.New("Lib")
	lib.AddReference(support.LibraryName, "1.0.0.0")
	holder := lib.AddType(&meta.TypeDef{
		Namespace: "Opts",
		Name:      "Holder",
		BaseType:  &meta.TypeRef{Scope: support.LibraryName, Namespace: support.Namespace, Name: "SettingHolder"},
	})
	f := holder.AddField(&meta.FieldDef{Name: "Mode"})
	f.Markers().Add(meta.NewMarker(support.LibraryName, support.DefaultSettingValue, meta.Object(meta.String("ref"))))
	f2 := holder.AddField(&meta.FieldDef{Name: "Level"})
	f2.Markers().Add(meta.NewMarker(support.LibraryName, support.DefaultSettingValue, meta.Object(meta.Int(3))))
	libPath := save(t, dir, lib)

	plain := meta.New("Plain")
	plainPath := save(t, dir, plain)

	mod, _ := hostModule()
	mod.AddReference("Lib", "1.0.0.0")
	mod.AddReference("Plain", "1.0.0.0")
	mod.Assembly.Markers().Add(support.SettingMarker("Opts.Mode", meta.String("host")))
	target := save(t, dir, mod)
	out := filepath.Join(dir, "out.mod")

	// the binary-format library is never loaded, so a missing file is fine
	req := request(target, out, libPath, filepath.Join(dir, "Insider.Format.mod"), " ", plainPath)
	p := weaver.New(req)
	if err := p.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := settings.Get(p.Settings().View(), "Opts.Mode", ""); got != "host" {
		t.Fatalf("Opts.Mode = %q, host value should win", got)
	}
	if got := settings.Get(p.Settings().View(), "Opts.Level", 0); got != 3 {
		t.Fatalf("Opts.Level = %d", got)
	}
	if _, err := p.Process(context.Background()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	got := load(t, out)
	var names []string
	for _, r := range got.References {
		names = append(names, r.Name)
	}
	if !slices.Equal(names, []string{"Plain"}) {
		t.Fatalf("references = %v", names)
	}
}

func TestWriteFailureIsEnvironment(t *testing.T) {
	dir := t.TempDir()
	mod, _ := hostModule()
	target := save(t, dir, mod)
	out := filepath.Join(dir, "missing", "out.mod")

	_, err := weaver.Weave(context.Background(), request(target, out))
	if !errors.Is(err, weaver.ErrEnvironment) || errors.Is(err, weaver.ErrTransformer) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "Cannot access target file") {
		t.Fatalf("message = %v", err)
	}
}

func TestDanglingBranchIsNotEnvironment(t *testing.T) {
	dir := t.TempDir()
	mod, run := hostModule()
	run.Markers().Add(meta.NewMarker("App", "App.Dangler"))
	target := save(t, dir, mod)
	out := filepath.Join(dir, "out.mod")

	res, err := weaver.Weave(context.Background(), request(target, out))
	if err == nil || errors.Is(err, weaver.ErrEnvironment) {
		t.Fatalf("err = %v, want a non-environment failure", err)
	}
	if !errors.Is(err, modfile.ErrDangling) || strings.Contains(err.Error(), "read-only") {
		t.Fatalf("err = %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("output created: %v", statErr)
	}
	if res.State != weaver.StateFailed {
		t.Fatalf("state = %s", res.State)
	}
}

func TestPanicsDoNotEscapeWeave(t *testing.T) {
	tests := []struct {
		name  string
		setup func(mod *meta.Module, run *meta.MethodDef, req *weaver.Request)
		want  string
	}{
		{
			name: "constructor",
			setup: func(_ *meta.Module, run *meta.MethodDef, _ *weaver.Request) {
				run.Markers().Add(meta.NewMarker("App", "App.Exploder"))
			},
			want: "ctor exploded",
		},
		{
			name: "scan hook",
			setup: func(_ *meta.Module, _ *meta.MethodDef, req *weaver.Request) {
				req.ScanHooks = []func(meta.Decl){func(meta.Decl) { panic("hook exploded") }}
			},
			want: "hook exploded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			mod, run := hostModule()
			out := filepath.Join(dir, "out.mod")
			req := request("", out)
			tt.setup(mod, run, req)
			req.Target = save(t, dir, mod)

			var (
				res weaver.Result
				err error
			)
			func() {
				defer func() {
					if r := recover(); r != nil {
						t.Fatalf("panic escaped Weave: %v", r)
					}
				}()
				res, err = weaver.Weave(context.Background(), req)
			}()
			if weaver.KindOf(err) != weaver.KindUnknown || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v", err)
			}
			if res.State != weaver.StateFailed {
				t.Fatalf("state = %s", res.State)
			}
			if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
				t.Fatalf("output created: %v", statErr)
			}
		})
	}
}

func TestPanickingModuleWeaverIsSkipped(t *testing.T) {
	dir := t.TempDir()
	mod, run := hostModule()
	run.Markers().Add(replaceMarker())
	support.WeaverType(mod, "App", "Bootstrap", support.ModuleWeaver)
	target := save(t, dir, mod)

	req := request(target, filepath.Join(dir, "out.mod"))
	req.Catalog.Library("App").Register("App.Bootstrap",
		live.NoArgs(func() *recorder { panic("bootstrap exploded") }))
	res, err := weaver.Weave(context.Background(), req)
	if err != nil {
		t.Fatalf("Weave: %v", err)
	}
	warned := slices.ContainsFunc(res.Messages, func(m diag.Message) bool {
		return m.Severity == diag.SevWarning && strings.Contains(m.Text, "bootstrap exploded")
	})
	if !warned || res.Applied != 1 {
		t.Fatalf("applied = %d, messages = %v", res.Applied, res.Messages)
	}
}

func TestNewKeepsCallerCatalog(t *testing.T) {
	cat := live.NewCatalog(appLibrary())
	req := &weaver.Request{Target: "a.mod", Output: "b.mod", Catalog: cat}
	weaver.New(req)
	lt := cat.Library(support.LibraryName).Lookup(support.Config)
	if lt == nil {
		t.Fatal("support library not added")
	}
	n := len(lt.Ctors)
	for range 3 {
		weaver.New(req)
	}
	if got := len(cat.Library(support.LibraryName).Lookup(support.Config).Ctors); got != n {
		t.Fatalf("ctors = %d after repeated New, want %d", got, n)
	}
}

func TestMissingHostIsEnvironment(t *testing.T) {
	dir := t.TempDir()
	p := weaver.New(request(filepath.Join(dir, "nope.mod"), filepath.Join(dir, "out.mod")))
	_, err := p.Process(context.Background())
	if weaver.KindOf(err) != weaver.KindEnvironment || p.State() != weaver.StateFailed {
		t.Fatalf("err = %v, state = %s", err, p.State())
	}
}

func TestProgressAndTrace(t *testing.T) {
	dir := t.TempDir()
	mod, run := hostModule()
	run.Markers().Add(replaceMarker())
	target := save(t, dir, mod)

	var events []weaver.Event
	req := request(target, filepath.Join(dir, "out.mod"))
	req.Progress = weaver.SinkFunc(func(e weaver.Event) { events = append(events, e) })
	ring := trace.NewRingTracer(64, trace.LevelDebug)
	ctx := trace.WithTracer(context.Background(), ring)

	res, err := weaver.Weave(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	last := events[len(events)-1]
	if last.Stage != weaver.StageWrite || last.Status != weaver.StatusDone {
		t.Fatalf("last event = %+v", last)
	}
	var names []string
	for _, ev := range ring.Snapshot() {
		if ev.Kind != trace.KindSpanEnd {
			names = append(names, ev.Name)
		}
	}
	for _, want := range []string{"weave", "open", "settings", "process", "marker:App.Replace", "cleanup", "write"} {
		if !slices.Contains(names, want) {
			t.Errorf("trace missing %q: %v", want, names)
		}
	}
	if len(res.Timings.Phases) != 5 {
		t.Fatalf("timings = %+v", res.Timings)
	}
}
