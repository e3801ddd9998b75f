package modfile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"insider/internal/il"
	"insider/internal/meta"
)

func buildModule() *meta.Module {
	mod := meta.New("App")
	mod.AddReference("Insider", "1.0.0.0")
	mod.Assembly.Markers().Add(meta.NewMarker("Insider", "Insider.Setting",
		meta.String("Foo"), meta.Object(meta.Int(42))))

	prog := mod.AddType(&meta.TypeDef{
		Namespace: "App",
		Name:      "Program",
		BaseType:  &meta.TypeRef{Scope: "System", Namespace: "System", Name: "Object"},
	})
	prog.AddField(&meta.FieldDef{Name: "count", Type: meta.ParseTypeRef("", meta.TypeInt32)})

	end := il.Ret()
	mid := il.Ldstr("A")
	body := il.NewBody(
		il.LdcI4(1),
		il.Brtrue(end),
		mid,
		il.Create(il.CodeSwitch, []*il.Instr{mid, end}),
		il.LdcI4(1000),
		il.LdcR8(2.5),
		il.Ldarg(5),
		il.Call(il.Ref{Kind: il.RefMethod, Type: "System.Console", Name: "WriteLine", Params: []string{meta.TypeString}}),
		end,
	)
	body.Handlers = []*il.Handler{{Kind: il.HandlerFinally, TryStart: mid, HandlerStart: end}}
	run := prog.AddMethod(&meta.MethodDef{Name: "Run", Body: body})
	run.AddParam(&meta.ParamDef{Name: "arg", Type: meta.ParseTypeRef("", meta.TypeString)})
	run.Markers().Add(meta.NewMarker("Lib", "Lib.Replace", meta.String("ldc.i4.1"), meta.String("ldc.i4.2")).
		WithProperty("Tags", meta.Value{Type: "System.String[]", V: []meta.Value{meta.String("a"), meta.String("b")}}))
	return mod
}

func roundTrip(t *testing.T, mod *meta.Module) *meta.Module {
	t.Helper()
	var buf bytes.Buffer
	if err := Encode(&buf, mod); err != nil {
		t.Fatal(err)
	}
	out, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestRoundTripPreservesTree(t *testing.T) {
	src := buildModule()
	got := roundTrip(t, src)

	if got.Name != "App" || got.MVID != src.MVID || len(got.References) != 1 {
		t.Fatalf("header = %+v", got)
	}
	setting := got.Assembly.Markers().Find("Insider.Setting")
	if setting == nil || setting.Arg(1) != int32(42) {
		t.Fatalf("setting marker = %v", setting)
	}
	prog := got.FindType("App.Program")
	if prog == nil || prog.BaseType == nil || prog.BaseType.Scope != "System" {
		t.Fatalf("type = %+v", prog)
	}
	run := prog.Methods[0]
	if run.DeclaringType != prog || run.Params[0].Method != run {
		t.Fatal("back-references not restored")
	}
	if got, want := run.Body.String(), src.FindType("App.Program").Methods[0].Body.String(); got != want {
		t.Fatalf("body listing differs:\n%s\nwant:\n%s", got, want)
	}
	m := run.Markers().Find("Lib.Replace")
	tags, ok := m.Properties[0].Value.Unwrap().([]any)
	if !ok || len(tags) != 2 || tags[1] != "b" {
		t.Fatalf("array property = %#v", m.Properties[0].Value)
	}

	zeros := []struct {
		name  string
		value meta.Value
		want  any
	}{
		{"false", meta.Bool(false), false},
		{"int zero", meta.Int(0), int32(0)},
		{"empty string", meta.String(""), ""},
		{"boxed false", meta.Object(meta.Bool(false)), false},
	}
	for _, tt := range zeros {
		t.Run(tt.name, func(t *testing.T) {
			mod := meta.New("Zero")
			mod.Assembly.Markers().Add(meta.NewMarker("Lib", "Lib.Flag", tt.value).
				WithField("Field", tt.value).
				WithProperty("Prop", tt.value))
			m := roundTrip(t, mod).Assembly.Markers().Find("Lib.Flag")
			if m == nil || len(m.Args) != 1 {
				t.Fatalf("marker = %v", m)
			}
			if got := m.Arg(0); got != tt.want {
				t.Fatalf("arg = %#v, want %#v", got, tt.want)
			}
			if m.Args[0].Type != tt.value.Type {
				t.Fatalf("arg type = %q, want %q", m.Args[0].Type, tt.value.Type)
			}
			for _, na := range m.Named() {
				if got := na.Value.Unwrap(); got != tt.want {
					t.Fatalf("%s = %#v, want %#v", na.Name, got, tt.want)
				}
			}
			if len(m.Named()) != 2 {
				t.Fatalf("named = %v", m.Named())
			}
		})
	}
}

func TestRoundTripKeepsBranchIdentity(t *testing.T) {
	got := roundTrip(t, buildModule())
	body := got.FindType("App.Program").Methods[0].Body
	br := body.At(1)
	if br.Operand.(*il.Instr) != body.At(body.Len()-1) {
		t.Fatal("branch does not point at the decoded ret")
	}
	sw := body.At(3).Operand.([]*il.Instr)
	if sw[0] != body.At(2) {
		t.Fatal("switch target not restored")
	}
	h := body.Handlers[0]
	if h.TryStart != body.At(2) || h.TryEnd != nil {
		t.Fatalf("handler = %+v", h)
	}
	if body.At(4).Operand != int32(1000) || body.At(6).Operand != 5 {
		t.Fatalf("operand types not restored: %T %T", body.At(4).Operand, body.At(6).Operand)
	}
}

func TestEncodeRejectsDanglingBranch(t *testing.T) {
	mod := buildModule()
	body := mod.FindType("App.Program").Methods[0].Body
	if err := body.ReplaceAt(body.Len()-1, il.Nop()); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, mod); !errors.Is(err, ErrDangling) {
		t.Fatalf("err = %v", err)
	}
}

func TestDecodeRejectsOtherSchema(t *testing.T) {
	data, err := msgpack.Marshal(&filePayload{Schema: schemaVersion + 1, Name: "X"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(bytes.NewReader(data)); !errors.Is(err, ErrSchema) {
		t.Fatalf("err = %v", err)
	}
	if _, err := Decode(bytes.NewReader([]byte("not msgpack"))); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("garbage err = %v", err)
	}
}

func TestWriteAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "App.mod")
	mod := buildModule()
	before := mod.MVID
	if err := Write(mod, path); err != nil {
		t.Fatal(err)
	}
	if mod.MVID == before {
		t.Fatal("MVID not regenerated")
	}
	loaded, err := Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer loaded.Close()
	if loaded.MVID != mod.MVID || loaded.Path != path {
		t.Fatalf("loaded %v from %s", loaded.MVID, loaded.Path)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func TestWriteFileMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not portable")
	}
	path := filepath.Join(t.TempDir(), "App.mod")
	mode := func() os.FileMode {
		t.Helper()
		fi, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		return fi.Mode().Perm()
	}
	if err := Write(buildModule(), path); err != nil {
		t.Fatal(err)
	}
	if got := mode(); got != 0o644 {
		t.Fatalf("new file mode = %v, want 0644", got)
	}
	if err := os.Chmod(path, 0o640); err != nil {
		t.Fatal(err)
	}
	if err := Write(buildModule(), path); err != nil {
		t.Fatal(err)
	}
	if got := mode(); got != 0o640 {
		t.Fatalf("replaced file mode = %v, want 0640", got)
	}
}

func TestWriteEncodeFailure(t *testing.T) {
	mod := buildModule()
	body := mod.FindType("App.Program").Methods[0].Body
	if err := body.Remove(body.Len()-1, 1); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "App.mod")
	err := Write(mod, path)
	if !errors.Is(err, ErrEncode) || !errors.Is(err, ErrDangling) {
		t.Fatalf("err = %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("output created: %v", statErr)
	}
}

func TestWriteFailureLeavesNoOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "App.mod")
	if err := Write(buildModule(), path); err == nil {
		t.Fatal("write into missing directory succeeded")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("output exists: %v", err)
	}
}

func TestSymbolsSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "App.mod")
	mod := buildModule()
	run := mod.FindType("App.Program").Methods[0]
	mod.Symbols = &meta.Symbols{
		Documents: []string{"Program.cs"},
		Points:    map[string][]meta.SequencePoint{run.FullName(): {{Instr: 0, Line: 10, Column: 5}}},
	}
	if err := Write(mod, path); err != nil {
		t.Fatal(err)
	}
	if err := WriteSymbols(mod, path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer loaded.Close()
	if !LoadSymbols(loaded) {
		t.Fatal("symbols not loaded")
	}
	pts := loaded.Symbols.PointsFor(loaded.FindType("App.Program").Methods[0])
	if len(pts) != 1 || pts[0].Line != 10 {
		t.Fatalf("points = %v", pts)
	}

	bare := meta.New("Bare")
	bare.Path = filepath.Join(dir, "Bare.mod")
	if LoadSymbols(bare) {
		t.Fatal("missing sidecar reported as loaded")
	}
}

func TestLoadAllKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"A", "B", "C", "D"} {
		p := filepath.Join(dir, name+".mod")
		if err := Write(meta.New(name), p); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	mods, err := LoadAll(context.Background(), paths, nil, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i, m := range mods {
		if m.Name != string(rune('A'+i)) {
			t.Fatalf("module %d = %s", i, m.Name)
		}
		_ = m.Close()
	}

	_, err = LoadAll(context.Background(), append(paths, filepath.Join(dir, "nope.mod")), nil, 0)
	if err == nil {
		t.Fatal("missing file not reported")
	}
}
