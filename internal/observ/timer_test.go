package observ

import (
	"strings"
	"testing"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	open := tm.Begin("open")
	tm.End(open, "")
	gen := tm.Begin("generate")
	tm.End(gen, "12 fragments")
	tm.End(99, "ignored")

	rep := tm.Report()
	if len(rep.Steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(rep.Steps))
	}
	if rep.Steps[1].Name != "generate" || rep.Steps[1].Note != "12 fragments" {
		t.Fatalf("unexpected step %+v", rep.Steps[1])
	}
	sum := tm.Summary()
	if !strings.Contains(sum, "generate") || !strings.Contains(sum, "// 12 fragments") || !strings.Contains(sum, "total") {
		t.Fatalf("unexpected summary:\n%s", sum)
	}

	tm.Reset()
	if got := tm.Report(); len(got.Steps) != 0 {
		t.Fatalf("Reset left %d steps", len(got.Steps))
	}
}
