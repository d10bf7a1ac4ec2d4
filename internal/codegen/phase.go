package codegen

import "cplr/internal/fragment"

// Phase is the kind of text being emitted. The zero value means nothing
// has been emitted yet.
type Phase uint8

const (
	PhaseComment Phase = iota + 1
	PhasePreprocessor
	PhaseToplevel
	PhaseStatement
	PhaseInternal
)

func (p Phase) String() string {
	switch p {
	case PhaseComment:
		return "comment"
	case PhasePreprocessor:
		return "preprocessor"
	case PhaseToplevel:
		return "toplevel"
	case PhaseStatement:
		return "statement"
	case PhaseInternal:
		return "internal"
	default:
		return "none"
	}
}

// Position is the synthetic source position of one emitted chunk.
type Position struct {
	Phase  Phase
	Origin string
	Line   int
}

// InternalOrigin names the synthesized program skeleton in #line directives.
const InternalOrigin = "internal"

func phaseOf(c fragment.Category) Phase {
	switch c.Class() {
	case fragment.ClassPreprocessor:
		return PhasePreprocessor
	case fragment.ClassToplevel:
		return PhaseToplevel
	default:
		return PhaseStatement
	}
}
