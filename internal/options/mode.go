package options

import (
	"errors"
	"fmt"
	"strings"

	"cplr/internal/fragment"
)

// ErrUnknownMode is returned for a main mode name that names no list.
var ErrUnknownMode = errors.New("unknown mode")

// Mode selects the list that positional arguments are added to.
type Mode uint8

const (
	ModeStatement Mode = iota
	ModeBefore
	ModeAfter
	ModeToplevel
	ModeDeclaration
	ModeFile
)

var modeNames = map[Mode]string{
	ModeStatement:   "statement",
	ModeBefore:      "before",
	ModeAfter:       "after",
	ModeToplevel:    "toplevel",
	ModeDeclaration: "declaration",
	ModeFile:        "file",
}

// modeLetters are the short option letters that select each mode.
var modeLetters = map[string]Mode{
	"e": ModeStatement,
	"b": ModeBefore,
	"a": ModeAfter,
	"t": ModeToplevel,
	"T": ModeDeclaration,
	"f": ModeFile,
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Category returns the fragment category of m. ModeFile has none.
func (m Mode) Category() (fragment.Category, bool) {
	switch m {
	case ModeStatement:
		return fragment.Statement, true
	case ModeBefore:
		return fragment.Before, true
	case ModeAfter:
		return fragment.After, true
	case ModeToplevel:
		return fragment.Toplevel, true
	case ModeDeclaration:
		return fragment.Declaration, true
	default:
		return 0, false
	}
}

// ParseMode accepts a mode name or its option letter.
func ParseMode(s string) (Mode, error) {
	if m, ok := modeLetters[s]; ok {
		return m, nil
	}
	lower := strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == lower {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownMode, s)
}
