// Package fragment holds the ordered fragment lists that make up a cplr
// program: includes, top-level declarations and definitions, and the
// statements spliced into the synthesized main function.
package fragment

import (
	"fmt"
	"strings"
)

// Category names one fragment list.
type Category uint8

const (
	// DefSysInclude holds configured default system headers.
	DefSysInclude Category = iota
	// SysInclude holds system headers requested with -s.
	SysInclude
	// Include holds local headers requested with -i.
	Include
	// Declaration holds top-level declarations requested with -T.
	Declaration
	// Toplevel holds top-level definitions requested with -t.
	Toplevel
	// Before holds statements run ahead of the main statements.
	Before
	// Statement holds the main statements.
	Statement
	// After holds cleanup statements, emitted last-registered first.
	After

	numCategories
)

// Class tells which part of the program a category's fragments belong to.
type Class uint8

const (
	ClassPreprocessor Class = iota + 1
	ClassToplevel
	ClassStatement
)

var categoryNames = [numCategories]string{
	DefSysInclude: "defsysinclude",
	SysInclude:    "sysinclude",
	Include:       "include",
	Declaration:   "declaration",
	Toplevel:      "toplevel",
	Before:        "before",
	Statement:     "statement",
	After:         "after",
}

// Categories returns every category in emission order.
func Categories() []Category {
	out := make([]Category, 0, numCategories)
	for c := Category(0); c < numCategories; c++ {
		out = append(out, c)
	}
	return out
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c < numCategories
}

// String returns the category name used in origins and banners.
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", uint8(c))
	}
	return categoryNames[c]
}

// Class returns the program part the category contributes to.
func (c Category) Class() Class {
	switch c {
	case DefSysInclude, SysInclude, Include:
		return ClassPreprocessor
	case Declaration, Toplevel:
		return ClassToplevel
	case Before, Statement, After:
		return ClassStatement
	default:
		panic(fmt.Sprintf("fragment: invalid category %d", uint8(c)))
	}
}

// Reverse reports whether the category is emitted in reverse insertion order.
func (c Category) Reverse() bool {
	return c == After
}

// ParseCategory converts a category name back to a Category.
func ParseCategory(s string) (Category, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for c, n := range categoryNames {
		if n == name {
			return Category(c), nil
		}
	}
	return 0, fmt.Errorf("unknown fragment category %q", s)
}
