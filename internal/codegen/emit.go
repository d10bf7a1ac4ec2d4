package codegen

import (
	"fmt"
	"runtime"
	"strings"
)

// output is one destination stream with its policy.
type output struct {
	stream  *Stream
	markers bool // write #line directives when the state asks for one
	banners bool // accept comment-phase text
}

// emit writes one chunk to every output. The directive decision is taken
// once and shared by all outputs.
func (g *Generator) emit(pos Position, format string, args ...any) {
	marker := g.state.advance(pos)
	for _, o := range g.outputs {
		if pos.Phase == PhaseComment && !o.banners {
			continue
		}
		if marker && o.markers {
			g.check(writeLineDirective(o.stream, pos))
		}
		_, err := fmt.Fprintf(o.stream, format, args...)
		g.check(err)
	}
}

func (g *Generator) emitComment(text string) {
	g.emit(Position{Phase: PhaseComment}, "/* %s */\n", text)
}

// emitInternal writes a skeleton line positioned at the Go source line
// of its caller, so consecutive calls share one directive.
func (g *Generator) emitInternal(text string) {
	_, _, line, ok := runtime.Caller(1)
	if !ok {
		line = 0
	}
	g.emit(Position{Phase: PhaseInternal, Origin: InternalOrigin, Line: line}, "%s", text)
}

func (g *Generator) check(err error) {
	if err != nil && g.err == nil {
		g.err = err
	}
}

func writeLineDirective(s *Stream, pos Position) error {
	_, err := fmt.Fprintf(s, "#line %d \"%s\"\n", pos.Line, escapeOrigin(pos.Origin))
	return err
}

var originEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func escapeOrigin(origin string) string {
	return originEscaper.Replace(origin)
}
