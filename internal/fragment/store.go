package fragment

import (
	"fmt"
	"strings"
)

// Ownership records who owns a fragment's backing text.
type Ownership uint8

const (
	// Borrowed text shares storage with the caller, typically argv.
	Borrowed Ownership = iota
	// Owned text is a private copy made by the store.
	Owned
)

func (o Ownership) String() string {
	if o == Owned {
		return "owned"
	}
	return "borrowed"
}

// Fragment is one opaque unit of program text. Its synthetic line is always 1.
type Fragment struct {
	Text      string
	Ownership Ownership
}

// Store keeps one insertion-ordered list per category.
// A Store is not safe for concurrent mutation.
type Store struct {
	lists [numCategories][]Fragment
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

func (s *Store) list(c Category) *[]Fragment {
	if !c.Valid() {
		panic(fmt.Sprintf("fragment: invalid category %d", uint8(c)))
	}
	return &s.lists[c]
}

// Append adds text to the end of the category. Owned text is copied so the
// caller may reuse its buffer.
func (s *Store) Append(c Category, text string, own Ownership) {
	l := s.list(c)
	if own == Owned {
		text = strings.Clone(text)
	}
	*l = append(*l, Fragment{Text: text, Ownership: own})
}

// IsEmpty reports whether the category has no fragments.
func (s *Store) IsEmpty(c Category) bool {
	return len(*s.list(c)) == 0
}

// Size returns the number of fragments in the category.
func (s *Store) Size(c Category) int {
	return len(*s.list(c))
}

// Total returns the number of fragments across all categories.
func (s *Store) Total() int {
	n := 0
	for i := range s.lists {
		n += len(s.lists[i])
	}
	return n
}

// Fragments returns a copy of the category in insertion order.
func (s *Store) Fragments(c Category) []Fragment {
	l := *s.list(c)
	out := make([]Fragment, len(l))
	copy(out, l)
	return out
}

// Each visits the category in emission order, passing each fragment's
// insertion index. After is visited in reverse.
func (s *Store) Each(c Category, fn func(index int, f Fragment)) {
	l := *s.list(c)
	if c.Reverse() {
		for i := len(l) - 1; i >= 0; i-- {
			fn(i, l[i])
		}
		return
	}
	for i, f := range l {
		fn(i, f)
	}
}

// Clear drops every fragment in every category.
func (s *Store) Clear() {
	for i := range s.lists {
		clear(s.lists[i])
		s.lists[i] = nil
	}
}

// Clone returns an independent copy. Borrowed text is copied into the clone
// and marked owned, so the clone does not depend on the caller's storage.
func (s *Store) Clone() *Store {
	r := NewStore()
	for i, l := range s.lists {
		if len(l) == 0 {
			continue
		}
		cl := make([]Fragment, len(l))
		for j, f := range l {
			if f.Ownership == Borrowed {
				f = Fragment{Text: strings.Clone(f.Text), Ownership: Owned}
			}
			cl[j] = f
		}
		r.lists[i] = cl
	}
	return r
}
