// Package buildpipeline turns a generated C program into an executable with
// the system C compiler.
package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cplr/internal/bcache"
	"cplr/internal/trace"
)

// BuildRequest configures one build.
type BuildRequest struct {
	// Generate produces the C program. It runs as the generate stage.
	Generate func(ctx context.Context) ([]byte, error)

	Compiler       string
	Flags          []string
	Defines        []string
	IncludeDirs    []string
	SysIncludeDirs []string
	MinilibDirs    []string
	LibraryDirs    []string
	Libraries      []string
	// Files are extra inputs. C sources are compiled first, everything
	// else is handed to the link.
	Files []string

	Output string
	// Jobs bounds parallel compiles; 0 means one per CPU.
	Jobs          int
	KeepTmp       bool
	PrintCommands bool

	Cache    *bcache.Cache
	Progress ProgressSink

	// Stdout receives echoed commands and compiler output. Defaults to
	// os.Stdout.
	Stdout io.Writer
	// Stderr receives compiler warnings. Defaults to os.Stderr.
	Stderr io.Writer
}

// BuildResult captures build artefacts and timings.
type BuildResult struct {
	OutputPath string
	TmpDir     string
	Cached     bool
	Key        bcache.Digest
	Timings    Timings
}

// ProgressFiles returns the names a progress view shows for req.
func ProgressFiles(req *BuildRequest) []string {
	files := make([]string, 0, len(req.Files)+1)
	files = append(files, SourceName)
	files = append(files, req.Files...)
	return files
}

type builder struct {
	req    *BuildRequest
	cc     compiler
	out    io.Writer
	diag   io.Writer
	tmpDir string
	files  []string
	tracer trace.Tracer
	span   uint64
}

// Build generates, compiles and links an executable.
func Build(ctx context.Context, req *BuildRequest) (BuildResult, error) {
	var result BuildResult
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing build request")
	}
	if req.Generate == nil {
		return result, fmt.Errorf("missing program generator")
	}
	if req.Output == "" {
		return result, fmt.Errorf("missing output path")
	}
	reqCopy := *req
	req = &reqCopy
	if req.Compiler == "" {
		req.Compiler = "cc"
	}

	b := &builder{
		req:    req,
		out:    req.Stdout,
		diag:   req.Stderr,
		files:  ProgressFiles(req),
		tracer: trace.FromContext(ctx),
	}
	if b.out == nil {
		b.out = os.Stdout
	}
	if b.diag == nil {
		b.diag = os.Stderr
	}
	var outMu sync.Mutex
	b.out = &syncWriter{mu: &outMu, w: b.out}
	b.diag = &syncWriter{mu: &outMu, w: b.diag}
	span := trace.Begin(b.tracer, trace.ScopeDriver, "build", 0)
	b.span = span.ID()
	defer span.End("")

	emitQueued(req.Progress, b.files)
	result.OutputPath = req.Output

	genStart := time.Now()
	emitStage(req.Progress, b.files[:1], StageGenerate, StatusWorking, nil, 0)
	code, err := b.generate(ctx)
	result.Timings.Set(StageGenerate, time.Since(genStart))
	if err != nil {
		emitStage(req.Progress, b.files, StageGenerate, StatusError, err, 0)
		return result, err
	}
	emitStage(req.Progress, nil, StageGenerate, StatusDone, nil, result.Timings.Duration(StageGenerate))

	key, err := b.cacheKey(code)
	if err != nil {
		emitStage(req.Progress, b.files, StageCompile, StatusError, err, 0)
		return result, err
	}
	result.Key = key
	if req.Cache != nil {
		hit, restoreErr := req.Cache.Restore(key, req.Output)
		if restoreErr != nil {
			fmt.Fprintf(b.diag, "cplr: build cache: %v\n", restoreErr)
		}
		if hit {
			result.Cached = true
			trace.Point(b.tracer, trace.ScopeStage, "cache-hit", key.String(), b.span)
			emitStage(req.Progress, b.files, StageLink, StatusCached, nil, 0)
			return result, nil
		}
	}

	b.cc, err = resolveCompiler(req.Compiler)
	if err != nil {
		emitStage(req.Progress, b.files, StageCompile, StatusError, err, 0)
		return result, err
	}

	b.tmpDir, err = os.MkdirTemp("", "cplr-*")
	if err != nil {
		return result, fmt.Errorf("failed to create tmp dir: %w", err)
	}
	result.TmpDir = b.tmpDir
	if !req.KeepTmp {
		defer func() {
			_ = os.RemoveAll(b.tmpDir)
		}()
	}

	src := filepath.Join(b.tmpDir, SourceName)
	if err := writeSource(src, code); err != nil {
		emitStage(req.Progress, b.files, StageLink, StatusError, err, 0)
		return result, err
	}

	compileStart := time.Now()
	inputs, err := b.compileExtra(ctx)
	result.Timings.Set(StageCompile, time.Since(compileStart))
	if err != nil {
		return result, err
	}

	linkStart := time.Now()
	emitStage(req.Progress, b.files[:1], StageLink, StatusWorking, nil, 0)
	linkSpan := trace.Begin(b.tracer, trace.ScopeStage, "link", b.span)
	if err := os.MkdirAll(filepath.Dir(absOr(req.Output)), 0o750); err != nil {
		linkSpan.End("error")
		return result, fmt.Errorf("failed to create output dir: %w", err)
	}
	err = b.runCommand(ctx, linkArgs(req, src, inputs, req.Output)...)
	result.Timings.Set(StageLink, time.Since(linkStart))
	if err != nil {
		linkSpan.End("error")
		emitStage(req.Progress, b.files, StageLink, StatusError, err, 0)
		return result, err
	}
	linkSpan.End("")

	if req.Cache != nil {
		payload := &bcache.Payload{Compiler: req.Compiler, Args: linkArgs(req, SourceName, req.Files, "a.out")}
		if putErr := req.Cache.Put(key, req.Output, payload); putErr != nil {
			fmt.Fprintf(b.diag, "cplr: build cache: %v\n", putErr)
		}
	}

	emitStage(req.Progress, b.files, StageLink, StatusDone, nil, result.Timings.Sum(Stages...))
	return result, nil
}

func (b *builder) generate(ctx context.Context) ([]byte, error) {
	span := trace.Begin(b.tracer, trace.ScopeStage, "generate", b.span)
	code, err := b.req.Generate(ctx)
	if err != nil {
		span.End("error")
		return nil, err
	}
	span.WithExtra("bytes", fmt.Sprint(len(code))).End("")
	return code, nil
}

// compileExtra compiles every extra C source in parallel and returns the
// link inputs in command-line order.
func (b *builder) compileExtra(ctx context.Context) ([]string, error) {
	inputs := make([]string, len(b.req.Files))
	copy(inputs, b.req.Files)

	jobs := b.req.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	span := trace.Begin(b.tracer, trace.ScopeStage, "compile", b.span)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, file := range b.req.Files {
		file := file
		if !isCSource(file) {
			continue
		}
		obj := objectName(b.tmpDir, i, file)
		inputs[i] = obj
		g.Go(func() error {
			start := time.Now()
			emitFile(b.req.Progress, file, StageCompile, StatusWorking, nil, 0)
			if err := b.runCommand(gctx, compileArgs(b.req, file, obj)...); err != nil {
				emitFile(b.req.Progress, file, StageCompile, StatusError, err, time.Since(start))
				return fmt.Errorf("compile %s: %w", file, err)
			}
			emitFile(b.req.Progress, file, StageCompile, StatusDone, nil, time.Since(start))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.End("error")
		return nil, err
	}
	span.End("")
	return inputs, nil
}

func (b *builder) cacheKey(code []byte) (bcache.Digest, error) {
	req := b.req
	key := bcache.NewKey().
		String(req.Compiler).
		Strings(req.Flags).
		Strings(preprocessorArgs(req)).
		Strings(req.LibraryDirs).
		Strings(req.Libraries).
		Bytes(code)
	for _, file := range req.Files {
		if err := key.File(file); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return bcache.Digest{}, fmt.Errorf("input file %s does not exist", file)
			}
			return bcache.Digest{}, err
		}
	}
	deps, err := scanHeaders(req, code)
	if err != nil {
		return bcache.Digest{}, err
	}
	key.Strings(deps.Dirs)
	for _, header := range deps.Found {
		if err := key.File(header); err != nil {
			return bcache.Digest{}, err
		}
	}
	key.Strings(deps.Missing)
	return key.Sum(), nil
}

func isCSource(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".c")
}

func absOr(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// syncWriter serializes writes from parallel compiles.
type syncWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
