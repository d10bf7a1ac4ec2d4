package options

import (
	"strings"

	"cplr/internal/fragment"
)

// switchMode is the option value that turns a fragment option into a main
// mode switch.
const switchMode = ":"

// modeValue backs -e/-b/-a/-t/-T/-f: each value is added to the option's
// list, except ":" which makes the list the main mode.
type modeValue struct {
	o    *Options
	mode Mode
}

func (v *modeValue) Set(s string) error {
	if s == switchMode {
		v.o.mode = v.mode
		return nil
	}
	v.o.add(v.mode, s)
	return nil
}

func (v *modeValue) String() string { return "" }

func (v *modeValue) Type() string { return "fragment" }

// headerValue backs -s and -i.
type headerValue struct {
	store *fragment.Store
	cat   fragment.Category
}

func (v *headerValue) Set(s string) error {
	v.store.Append(v.cat, s, fragment.Borrowed)
	return nil
}

func (v *headerValue) String() string { return "" }

func (v *headerValue) Type() string { return "header" }

// listValue appends every value, with an optional prefix, in command-line
// order.
type listValue struct {
	list   *[]string
	prefix string
	kind   string
}

func (v *listValue) Set(s string) error {
	*v.list = append(*v.list, v.prefix+s)
	return nil
}

func (v *listValue) String() string {
	if v.list == nil {
		return ""
	}
	return strings.Join(*v.list, ",")
}

func (v *listValue) Type() string { return v.kind }
