package trace

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestLevelScopes(t *testing.T) {
	tests := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopePipeline, false},
		{LevelPhase, ScopePhase, true},
		{LevelPhase, ScopeModule, false},
		{LevelDetail, ScopeModule, true},
		{LevelDetail, ScopeMarker, false},
		{LevelDebug, ScopeMarker, true},
	}
	for _, tt := range tests {
		if got := tt.level.ShouldEmit(tt.scope); got != tt.want {
			t.Errorf("%s.ShouldEmit(%s) = %v", tt.level, tt.scope, got)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel accepted garbage")
	}
}

func TestStreamSpans(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDetail, FormatText)
	root := Begin(tr, ScopePhase, "open", 0)
	Begin(tr, ScopeMarker, "marker:App.X", root.ID()).End("")
	root.WithExtra("modules", "2").End("ok")

	out := buf.String()
	if strings.Contains(out, "marker:App.X") {
		t.Fatalf("marker scope emitted at detail level:\n%s", out)
	}
	for _, want := range []string{"→ open", "← open (ok) {modules=2}"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRingWrapsInOrder(t *testing.T) {
	r := NewRingTracer(2, LevelDebug)
	for _, name := range []string{"a", "b", "c"} {
		Point(r, ScopeMarker, name, "", 0)
	}
	evs := r.Snapshot()
	if len(evs) != 2 || evs[0].Name != "b" || evs[1].Name != "c" {
		t.Fatalf("snapshot = %+v", evs)
	}
	var buf bytes.Buffer
	if err := r.Dump(&buf, FormatNDJSON); err != nil {
		t.Fatal(err)
	}
	if strings.Count(buf.String(), "\n") != 2 || !strings.Contains(buf.String(), `"name":"c"`) {
		t.Fatalf("dump = %s", buf.String())
	}
}

func TestContextPropagation(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Fatal("empty context should yield Nop")
	}
	r := NewRingTracer(8, LevelPhase)
	ctx := WithTracer(context.Background(), r)
	span := Begin(FromContext(ctx), ScopePipeline, "weave", 0)
	ctx = WithSpan(ctx, span)
	if CurrentSpan(ctx) != span.ID() || span.ID() == 0 {
		t.Fatalf("span id = %d", CurrentSpan(ctx))
	}
	if d := Begin(Nop, ScopePhase, "x", 0).End(""); d < 0 {
		t.Fatal("negative duration")
	}
}

func TestNewModes(t *testing.T) {
	var buf bytes.Buffer
	tests := []struct {
		mode StorageMode
		want string
	}{
		{ModeStream, "*trace.StreamTracer"},
		{ModeRing, "*trace.RingTracer"},
		{ModeBoth, "*trace.MultiTracer"},
	}
	for _, tt := range tests {
		tr, err := New(Config{Level: LevelPhase, Mode: tt.mode, Output: &buf})
		if err != nil {
			t.Fatalf("New(%s): %v", tt.mode, err)
		}
		if got := fmt.Sprintf("%T", tr); got != tt.want {
			t.Errorf("New(%s) = %s, want %s", tt.mode, got, tt.want)
		}
	}
	if tr, _ := New(Config{}); tr != Nop {
		t.Fatal("off level should yield Nop")
	}
	if m, err := ParseMode(" Ring "); err != nil || m != ModeRing {
		t.Fatalf("ParseMode = %v, %v", m, err)
	}
	if _, err := ParseMode("tape"); err == nil {
		t.Fatal("ParseMode accepted garbage")
	}
}
