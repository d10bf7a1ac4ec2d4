package codegen

// EmissionState remembers where the previous chunk came from. It is only
// changed by advance.
type EmissionState struct {
	phase  Phase
	origin string
	line   int
}

// advance reports whether a #line directive must precede a chunk at pos,
// then records pos as the current position. Comments neither need a
// directive nor move the position.
func (s *EmissionState) advance(pos Position) bool {
	if pos.Phase == PhaseComment {
		return false
	}
	var marker bool
	switch {
	case s.phase != pos.Phase:
		marker = true
	case s.origin == "" || s.origin != pos.Origin:
		marker = true
	case pos.Phase == PhasePreprocessor:
		// preprocessor lines are self-delimiting
		marker = false
	default:
		marker = pos.Line != s.line+1
	}
	s.phase = pos.Phase
	s.line = pos.Line
	s.origin = pos.Origin
	return marker
}
