package codegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"cplr/internal/fragment"
	"cplr/internal/observ"
	"cplr/internal/trace"
)

// Options configures a Generator.
type Options struct {
	// TraceLevel 0 disables the trace stream, 1 adds section banners,
	// 2 and above also copies #line directives into it.
	TraceLevel int
	// Verbosity 1 and above reports progress and byte counts on Diag.
	Verbosity int
	// Diag receives the drained trace stream and reports. Defaults to stderr.
	Diag io.Writer
	// Drain opens the filter the trace stream is drained through.
	// Defaults to built-in line numbering.
	Drain DrainOpener
}

// State is the Generator's position in its run lifecycle.
type State uint8

const (
	StateIdle State = iota
	StateOpen
	StateGenerating
	StateClosed
	StateDrained
	StateReported
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "buffers-open"
	case StateGenerating:
		return "generating"
	case StateClosed:
		return "closed"
	case StateDrained:
		return "drained"
	case StateReported:
		return "reported"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Stats reports the size of both streams after a run.
type Stats struct {
	CodeBytes int
	DumpBytes int
}

// Generator assembles fragment stores into program text.
type Generator struct {
	opts    Options
	state   EmissionState
	code    *Stream
	dump    *Stream
	outputs []output
	life    State
	err     error
	timer   *observ.Timer
	tracer  trace.Tracer
	runSpan uint64
}

// New returns an idle Generator.
func New(opts Options) *Generator {
	if opts.Diag == nil {
		opts.Diag = os.Stderr
	}
	if opts.Drain == nil {
		opts.Drain = LineNumbers
	}
	return &Generator{
		opts:   opts,
		timer:  observ.NewTimer(),
		tracer: trace.Nop,
	}
}

// Generate runs one full assembly of store: it opens fresh buffers, emits
// the program, closes the buffers, drains the trace stream and reports.
// Buffers from a previous run are released first.
func (g *Generator) Generate(ctx context.Context, store *fragment.Store, minilibs []string) error {
	if store == nil {
		return errors.New("nil fragment store")
	}
	g.release()
	g.timer.Reset()
	g.tracer = trace.FromContext(ctx)
	span := trace.Begin(g.tracer, trace.ScopeStage, "generate", 0)
	g.runSpan = span.ID()

	if g.opts.Verbosity > 0 {
		fmt.Fprintf(g.opts.Diag, "Generating code\n")
	}

	step := g.timer.Begin("open")
	g.open()
	g.timer.End(step, "")

	step = g.timer.Begin("generate")
	g.life = StateGenerating
	g.generateCode(store, minilibs)
	g.timer.End(step, strconv.Itoa(store.Total())+" fragments")

	step = g.timer.Begin("close")
	g.close()
	g.timer.End(step, "")
	if g.err != nil {
		return g.abort(span, fmt.Errorf("generate: %w", g.err))
	}

	step = g.timer.Begin("drain")
	err := g.drain(ctx)
	g.timer.End(step, "")
	if err != nil {
		return g.abort(span, err)
	}
	g.life = StateDrained

	g.report()
	g.life = StateReported

	stats := g.Stats()
	span.WithExtra("code", strconv.Itoa(stats.CodeBytes)).
		WithExtra("dump", strconv.Itoa(stats.DumpBytes)).
		End("")
	g.life = StateIdle
	return nil
}

// abort ends a failed run. The partial buffers are dropped so Code, Dump
// and Stats never describe a half-written program.
func (g *Generator) abort(span *trace.Span, err error) error {
	span.End("error")
	g.release()
	return err
}

func (g *Generator) release() {
	g.code = nil
	g.dump = nil
	g.outputs = nil
	g.state = EmissionState{}
	g.err = nil
	g.life = StateIdle
}

func (g *Generator) open() {
	g.code = NewStream("code")
	g.outputs = append(g.outputs, output{stream: g.code, markers: true})
	if g.opts.TraceLevel > 0 {
		g.dump = NewStream("dump")
		g.outputs = append(g.outputs, output{
			stream:  g.dump,
			markers: g.opts.TraceLevel >= 2,
			banners: true,
		})
	}
	g.life = StateOpen
}

func (g *Generator) close() {
	for _, o := range g.outputs {
		g.check(o.stream.Close())
	}
	g.life = StateClosed
}

func (g *Generator) drain(ctx context.Context) error {
	if g.dump == nil {
		return nil
	}
	sink, err := g.opts.Drain(ctx, g.opts.Diag)
	if err != nil {
		return fmt.Errorf("open trace filter: %w", err)
	}
	return Drain(g.opts.Diag, sink, g.dump.Bytes())
}

func (g *Generator) report() {
	if g.opts.Verbosity < 1 {
		return
	}
	s := g.Stats()
	fmt.Fprintf(g.opts.Diag, "Generated bytes: %d code, %d dump\n", s.CodeBytes, s.DumpBytes)
}

// Code returns the program text of the last run. It stays valid until the
// next Generate call.
func (g *Generator) Code() []byte {
	if g.code == nil {
		return nil
	}
	return g.code.Bytes()
}

// Dump returns the trace text of the last run, or nil when tracing is off.
func (g *Generator) Dump() []byte {
	if g.dump == nil {
		return nil
	}
	return g.dump.Bytes()
}

// Stats returns the byte counts of the last run.
func (g *Generator) Stats() Stats {
	var s Stats
	if g.code != nil {
		s.CodeBytes = g.code.Len()
	}
	if g.dump != nil {
		s.DumpBytes = g.dump.Len()
	}
	return s
}

// State returns the lifecycle state; it is StateIdle between runs.
func (g *Generator) State() State { return g.life }

// Timings returns the per-step durations of the last run.
func (g *Generator) Timings() observ.Report { return g.timer.Report() }
