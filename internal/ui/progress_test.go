package ui

import (
	"strings"
	"testing"

	"cplr/internal/buildpipeline"
)

func TestApplyEventTracksFileStatus(t *testing.T) {
	events := make(chan buildpipeline.Event)
	m := NewProgressModel("cplr", []string{"cplr.c", "util.c"}, events).(*progressModel)

	m.applyEvent(buildpipeline.Event{File: "util.c", Stage: buildpipeline.StageCompile, Status: buildpipeline.StatusWorking})
	m.applyEvent(buildpipeline.Event{Stage: buildpipeline.StageLink, Status: buildpipeline.StatusWorking})
	m.applyEvent(buildpipeline.Event{File: "cplr.c", Stage: buildpipeline.StageLink, Status: buildpipeline.StatusCached})
	m.applyEvent(buildpipeline.Event{File: "unknown.c", Stage: buildpipeline.StageLink, Status: buildpipeline.StatusDone})

	if got := m.items[1].status; got != "compiling" {
		t.Fatalf("util.c status = %q, want compiling", got)
	}
	if got := m.items[0].status; got != "cached" {
		t.Fatalf("cplr.c status = %q, want cached", got)
	}
	if m.stageLabel != "linking" {
		t.Fatalf("stage label = %q, want linking", m.stageLabel)
	}
	view := m.View()
	if !strings.Contains(view, "cplr (linking)") || !strings.Contains(view, "util.c") {
		t.Fatalf("unexpected view:\n%s", view)
	}
}

func TestTruncateLongPath(t *testing.T) {
	got := truncate("a/very/long/path/to/file.c", 10)
	if !strings.HasSuffix(got, "...") || len(got) > 10 {
		t.Fatalf("truncate = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in    string
		width int
		want  string
	}{
		{"short.c", 20, "short.c"},
		{"abcdef", 3, "abc"},
		{"anything", 0, "anything"},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.width); got != tc.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
		}
	}
}
