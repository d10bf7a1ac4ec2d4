package buildpipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"cplr/internal/bcache"
)

const fakeCompiler = `#!/bin/sh
out=
prev=
for a in "$@"; do
	if [ "$prev" = "-o" ]; then out=$a; fi
	prev=$a
done
echo "$*" >> "$(dirname "$0")/calls.log"
printf 'fake binary\n' > "$out"
`

const failingCompiler = `#!/bin/sh
echo "statement_0:1: error: boom" >&2
exit 1
`

func writeScript(t *testing.T, body string) (string, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts required")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fakecc")
	if err := os.WriteFile(path, []byte(body), 0o700); err != nil {
		t.Fatal(err)
	}
	return path, filepath.Join(dir, "calls.log")
}

func calls(t *testing.T, log string) []string {
	t.Helper()
	data, err := os.ReadFile(log)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func staticCode(code string) func(context.Context) ([]byte, error) {
	return func(context.Context) ([]byte, error) { return []byte(code), nil }
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) OnEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) has(file string, stage Stage, status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.File == file && ev.Stage == stage && ev.Status == status {
			return true
		}
	}
	return false
}

func TestBuildCompilesExtraSourcesAndLinks(t *testing.T) {
	cc, log := writeScript(t, fakeCompiler)
	work := t.TempDir()
	util := filepath.Join(work, "util.c")
	obj := filepath.Join(work, "prebuilt.o")
	for _, f := range []string{util, obj} {
		if err := os.WriteFile(f, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	out := filepath.Join(work, "bin", "prog")
	sink := &recordingSink{}
	var stdout bytes.Buffer
	res, err := Build(context.Background(), &BuildRequest{
		Generate:       staticCode("int main(void){return 0;}\n"),
		Compiler:       cc,
		Flags:          []string{"-O1"},
		Defines:        []string{"-DX=1"},
		IncludeDirs:    []string{"inc"},
		SysIncludeDirs: []string{"sys"},
		MinilibDirs:    []string{"mlib"},
		LibraryDirs:    []string{"libdir"},
		Libraries:      []string{"m"},
		Files:          []string{util, obj},
		Output:         out,
		Jobs:           2,
		Progress:       sink,
		Stdout:         &stdout,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.Cached || res.OutputPath != out {
		t.Fatalf("result = %+v", res)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if _, err := os.Stat(res.TmpDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("tmp dir kept: %v", err)
	}

	lines := calls(t, log)
	if len(lines) != 2 {
		t.Fatalf("got %d compiler calls, want 2: %q", len(lines), lines)
	}
	compile, link := lines[0], lines[1]
	if !strings.HasPrefix(compile, "-O1 -DX=1 -I inc -isystem sys -I mlib -c "+util+" -o ") ||
		!strings.HasSuffix(compile, "00-util.o") {
		t.Fatalf("compile call = %q", compile)
	}
	if !strings.HasPrefix(link, "-O1 -DX=1 -I inc -isystem sys -I mlib ") ||
		!strings.Contains(link, SourceName+" ") ||
		!strings.Contains(link, "00-util.o "+obj+" -L libdir -lm -o "+out) {
		t.Fatalf("link call = %q", link)
	}

	if !sink.has(util, StageCompile, StatusDone) || !sink.has(SourceName, StageLink, StatusDone) {
		t.Fatalf("missing progress events: %+v", sink.events)
	}
	for _, stage := range []Stage{StageGenerate, StageCompile, StageLink} {
		if !res.Timings.Has(stage) {
			t.Fatalf("no timing for %s", stage)
		}
	}
}

func TestBuildReusesCachedExecutable(t *testing.T) {
	cc, log := writeScript(t, fakeCompiler)
	cache, err := bcache.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "prog")
	req := &BuildRequest{
		Generate: staticCode("int main(void){return 0;}\n"),
		Compiler: cc,
		Output:   out,
		Cache:    cache,
		Stdout:   &bytes.Buffer{},
	}
	first, err := Build(context.Background(), req)
	if err != nil || first.Cached {
		t.Fatalf("first build: cached=%v err=%v", first.Cached, err)
	}
	if err := os.Remove(out); err != nil {
		t.Fatal(err)
	}
	second, err := Build(context.Background(), req)
	if err != nil || !second.Cached {
		t.Fatalf("second build: cached=%v err=%v", second.Cached, err)
	}
	if second.Key != first.Key {
		t.Fatalf("keys differ across identical builds")
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("cached executable not restored: %v", err)
	}
	if n := len(calls(t, log)); n != 1 {
		t.Fatalf("compiler ran %d times, want 1", n)
	}

	req.Generate = staticCode("int main(void){return 1;}\n")
	third, err := Build(context.Background(), req)
	if err != nil || third.Cached {
		t.Fatalf("changed program hit the cache: cached=%v err=%v", third.Cached, err)
	}
}

func TestBuildReportsCompilerDiagnostics(t *testing.T) {
	cc, _ := writeScript(t, failingCompiler)
	sink := &recordingSink{}
	_, err := Build(context.Background(), &BuildRequest{
		Generate: staticCode("broken"),
		Compiler: cc,
		Output:   filepath.Join(t.TempDir(), "prog"),
		Progress: sink,
	})
	if err == nil || !strings.Contains(err.Error(), "statement_0:1: error: boom") {
		t.Fatalf("err = %v", err)
	}
	if !sink.has(SourceName, StageLink, StatusError) {
		t.Fatalf("no error event recorded")
	}
}

func TestBuildMissingCompiler(t *testing.T) {
	_, err := Build(context.Background(), &BuildRequest{
		Generate: staticCode("int main(void){return 0;}"),
		Compiler: filepath.Join(t.TempDir(), "no-such-cc"),
		Output:   filepath.Join(t.TempDir(), "prog"),
	})
	if !errors.Is(err, ErrNoCompiler) {
		t.Fatalf("err = %v, want ErrNoCompiler", err)
	}
}

func TestBuildGenerateError(t *testing.T) {
	boom := errors.New("drain failed")
	_, err := Build(context.Background(), &BuildRequest{
		Generate: func(context.Context) ([]byte, error) { return nil, boom },
		Output:   "prog",
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestBuildPrintsCommands(t *testing.T) {
	cc, _ := writeScript(t, fakeCompiler)
	var stdout bytes.Buffer
	_, err := Build(context.Background(), &BuildRequest{
		Generate:      staticCode("int main(void){return 0;}"),
		Compiler:      cc + " -pipe",
		Output:        filepath.Join(t.TempDir(), "prog"),
		PrintCommands: true,
		Stdout:        &stdout,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), cc+" -pipe ") {
		t.Fatalf("commands not echoed: %q", stdout.String())
	}
}

func TestBuildWithSystemCompiler(t *testing.T) {
	if _, err := exec.LookPath("cc"); err != nil {
		t.Skip("cc not installed")
	}
	out := filepath.Join(t.TempDir(), "hello")
	code := "#line 1 \"statement_0\"\nint main(void) { return 0; }\n"
	if _, err := Build(context.Background(), &BuildRequest{
		Generate: staticCode(code),
		Compiler: "cc",
		Output:   out,
		Stdout:   &bytes.Buffer{},
		Stderr:   &bytes.Buffer{},
	}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil || info.Mode().Perm()&0o100 == 0 {
		t.Fatalf("executable missing: %v", err)
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestBuildCacheTracksIncludedHeaders(t *testing.T) {
	tests := []struct {
		name  string
		code  string
		setup func(t *testing.T, inc, mlib string) string // returns the file to edit
	}{
		{
			name: "local header",
			code: "#include \"mine.h\"\nint main(void){return V;}\n",
			setup: func(t *testing.T, inc, _ string) string {
				p := filepath.Join(inc, "mine.h")
				writeFile(t, p, "#define V 1\n")
				return p
			},
		},
		{
			name: "nested header",
			code: "#include \"outer.h\"\nint main(void){return V;}\n",
			setup: func(t *testing.T, inc, _ string) string {
				writeFile(t, filepath.Join(inc, "outer.h"), "#include \"sub/inner.h\"\n")
				p := filepath.Join(inc, "sub", "inner.h")
				writeFile(t, p, "#define V 1\n")
				return p
			},
		},
		{
			name: "minilib",
			code: "#define minilib_statement\n#include \"tool.m\"\n#undef minilib_statement\nint main(void){return 0;}\n",
			setup: func(t *testing.T, _, mlib string) string {
				p := filepath.Join(mlib, "tool.m")
				writeFile(t, p, "int tool;\n")
				return p
			},
		},
		{
			name: "angle include from a configured dir",
			code: "#include <vendor.h>\nint main(void){return V;}\n",
			setup: func(t *testing.T, inc, _ string) string {
				p := filepath.Join(inc, "vendor.h")
				writeFile(t, p, "#define V 1\n")
				return p
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc, log := writeScript(t, fakeCompiler)
			cache, err := bcache.Open(t.TempDir())
			if err != nil {
				t.Fatal(err)
			}
			work := t.TempDir()
			inc := filepath.Join(work, "inc")
			mlib := filepath.Join(work, "mlib")
			edited := tt.setup(t, inc, mlib)
			req := &BuildRequest{
				Generate:       staticCode(tt.code),
				Compiler:       cc,
				IncludeDirs:    []string{inc},
				SysIncludeDirs: []string{inc},
				MinilibDirs:    []string{mlib},
				Output:         filepath.Join(work, "prog"),
				Cache:          cache,
				Stdout:         &bytes.Buffer{},
			}
			if _, err := Build(context.Background(), req); err != nil {
				t.Fatalf("first build: %v", err)
			}
			again, err := Build(context.Background(), req)
			if err != nil || !again.Cached {
				t.Fatalf("unchanged rebuild: cached=%v err=%v", again.Cached, err)
			}
			writeFile(t, edited, "#define V 2\n")
			res, err := Build(context.Background(), req)
			if err != nil {
				t.Fatalf("build after edit: %v", err)
			}
			if res.Cached {
				t.Fatalf("stale executable reused after %s changed", edited)
			}
			if n := len(calls(t, log)); n != 2 {
				t.Fatalf("compiler ran %d times, want 2", n)
			}
		})
	}
}

func TestBuildCacheNoticesHeaderAppearing(t *testing.T) {
	cc, _ := writeScript(t, fakeCompiler)
	cache, err := bcache.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	work := t.TempDir()
	inc := filepath.Join(work, "inc")
	if err := os.MkdirAll(inc, 0o750); err != nil {
		t.Fatal(err)
	}
	req := &BuildRequest{
		Generate:    staticCode("#include \"late.h\"\nint main(void){return 0;}\n"),
		Compiler:    cc,
		IncludeDirs: []string{inc},
		Output:      filepath.Join(work, "prog"),
		Cache:       cache,
		Stdout:      &bytes.Buffer{},
	}
	first, err := Build(context.Background(), req)
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	writeFile(t, filepath.Join(inc, "late.h"), "int late;\n")
	second, err := Build(context.Background(), req)
	if err != nil || second.Cached || second.Key == first.Key {
		t.Fatalf("new header ignored: cached=%v err=%v", second.Cached, err)
	}
}

func TestScanHeaders(t *testing.T) {
	work := t.TempDir()
	inc := filepath.Join(work, "inc")
	writeFile(t, filepath.Join(inc, "a.h"), "#include \"b.h\"\n#include \"a.h\"\n#include <stdio.h>\n")
	writeFile(t, filepath.Join(inc, "b.h"), "  # include \"gone.h\"\n")
	deps, err := scanHeaders(&BuildRequest{IncludeDirs: []string{inc}}, []byte("#include \"a.h\"\n#include <stdlib.h>\n"))
	if err != nil {
		t.Fatalf("scanHeaders: %v", err)
	}
	want := []string{filepath.Join(inc, "a.h"), filepath.Join(inc, "b.h")}
	if strings.Join(deps.Found, ",") != strings.Join(want, ",") {
		t.Fatalf("found = %q, want %q", deps.Found, want)
	}
	if len(deps.Missing) != 1 || deps.Missing[0] != "gone.h" {
		t.Fatalf("missing = %q, want [gone.h]", deps.Missing)
	}
}
