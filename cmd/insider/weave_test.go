package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"insider/internal/il"
	"insider/internal/meta"
	"insider/internal/modfile"
	"insider/internal/samples"
)

func TestWeaveAndDumpCommands(t *testing.T) {
	saved := color.NoColor
	t.Cleanup(func() { color.NoColor = saved })

	dir := t.TempDir()
	lib := filepath.Join(dir, "Samples.mod")
	if err := modfile.Write(samples.Module(), lib); err != nil {
		t.Fatal(err)
	}
	host := meta.New("App")
	host.AddReference(samples.LibraryName, "1.0.0.0")
	prog := host.AddType(&meta.TypeDef{Namespace: "App", Name: "Program"})
	run := prog.AddMethod(&meta.MethodDef{Name: "Run", Static: true, Body: il.NewBody(il.LdcI4(1), il.Ret())})
	run.Markers().Add(samples.ReplaceMarker("ldc.i4.1", "ldc.i4.2"))
	target := filepath.Join(dir, "App.mod")
	if err := modfile.Write(host, target); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "App.woven.mod")

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"--color=off", "weave", "--ui=off", "--verbosity=debug", "--timings", target, out, " ;" + lib})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("weave: %v\n%s", err, buf.String())
	}
	got := buf.String()
	for _, want := range []string{"[*] Samples.Replace: Processing App.Program::Run()...", "woven " + out, "process", "total"} {
		if !strings.Contains(got, want) {
			t.Errorf("weave output missing %q:\n%s", want, got)
		}
	}

	buf.Reset()
	rootCmd.SetArgs([]string{"dump", out})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("dump: %v", err)
	}
	got = buf.String()
	if !strings.Contains(got, "type App.Program") || !strings.Contains(got, "IL_0000: ldc.i4.2") {
		t.Fatalf("dump output:\n%s", got)
	}
	if strings.Contains(got, "reference Samples") || strings.Contains(got, "Samples.Replace") {
		t.Fatalf("weaving support left in output:\n%s", got)
	}
}
