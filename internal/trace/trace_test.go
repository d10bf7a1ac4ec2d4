package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"off":    LevelOff,
		"error":  LevelError,
		"phase":  LevelPhase,
		"DETAIL": LevelDetail,
		"debug":  LevelDebug,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestLevelShouldEmit(t *testing.T) {
	if LevelPhase.ShouldEmit(ScopeSection) {
		t.Fatalf("phase level must not emit sections")
	}
	if !LevelDetail.ShouldEmit(ScopeSection) {
		t.Fatalf("detail level must emit sections")
	}
	if LevelDetail.ShouldEmit(ScopeFragment) {
		t.Fatalf("detail level must not emit fragments")
	}
	if !LevelDebug.ShouldEmit(ScopeFragment) {
		t.Fatalf("debug level must emit fragments")
	}
}

func TestStreamTracerText(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelDetail, Output: &buf, Format: FormatText})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := WithTracer(context.Background(), tr)

	span := Begin(FromContext(ctx), ScopeStage, "generate", 0)
	Point(FromContext(ctx), ScopeSection, "section:statement", "2 fragments", span.ID())
	Point(FromContext(ctx), ScopeFragment, "statement_0", "", span.ID())
	span.WithExtra("code", "42").End("ok")

	out := buf.String()
	for _, want := range []string{"→ generate", "• section:statement (2 fragments)", "← generate (ok) {code=42}"} {
		if !strings.Contains(out, want) {
			t.Fatalf("trace output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "statement_0") {
		t.Fatalf("fragment scope leaked at detail level:\n%s", out)
	}
}

func TestStreamTracerNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatNDJSON)
	Begin(tr, ScopeDriver, "cplr", 0).End("")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	var ev map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if ev["kind"] != "begin" || ev["scope"] != "driver" || ev["name"] != "cplr" {
		t.Fatalf("unexpected event %v", ev)
	}
}

func TestNopFromEmptyContext(t *testing.T) {
	tr := FromContext(context.Background())
	if tr.Enabled() {
		t.Fatalf("default tracer should be disabled")
	}
	if s := Begin(tr, ScopeDriver, "x", 0); s.ID() != 0 {
		t.Fatalf("nop span should have zero id")
	}
}
