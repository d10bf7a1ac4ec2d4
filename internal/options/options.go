// Package options turns a cplr command line into ordered fragment lists and
// compiler settings. Fragment options keep their command-line order, and
// positional arguments go to the list selected by the last mode switch.
package options

import (
	"github.com/spf13/pflag"

	"cplr/internal/fragment"
)

// Options is the parsed command line.
type Options struct {
	Help    bool
	Herald  bool
	Version bool

	Verbose  int
	Dump     int
	Pristine bool

	// Defines holds -D and -U values as compiler arguments ("-DX", "-UX").
	Defines        []string
	IncludeDirs    []string
	SysIncludeDirs []string
	LibraryDirs    []string
	Libraries      []string
	MinilibDirs    []string
	Minilibs       []string
	// Files holds -f inputs: C sources, objects and archives.
	Files []string

	Output string
	EmitC  string

	Store *fragment.Store

	mode Mode
}

// New returns empty options in statement mode.
func New() *Options {
	return &Options{Store: fragment.NewStore()}
}

// Mode returns the current main mode.
func (o *Options) Mode() Mode { return o.mode }

// Register defines every cplr option on fs.
func (o *Options) Register(fs *pflag.FlagSet) {
	fs.SetInterspersed(false)

	fs.BoolVarP(&o.Help, "help", "h", false, "show help")
	fs.BoolVarP(&o.Herald, "herald", "H", false, "show the herald")
	fs.BoolVarP(&o.Version, "version", "V", false, "show the version")

	fs.CountVarP(&o.Verbose, "verbose", "v", "report progress (repeatable)")
	fs.CountVarP(&o.Dump, "dump", "d", "dump the generated program to stderr (repeat to add #line markers)")
	fs.BoolVarP(&o.Pristine, "pristine", "p", false, "skip configured default includes and defines")

	fs.VarP(&listValue{list: &o.Defines, prefix: "-D", kind: "define"}, "define", "D", "define a preprocessor macro")
	fs.VarP(&listValue{list: &o.Defines, prefix: "-U", kind: "macro"}, "undefine", "U", "undefine a preprocessor macro")
	fs.VarP(&listValue{list: &o.IncludeDirs, kind: "dir"}, "include-dir", "I", "add an include directory")
	fs.VarP(&headerValue{store: o.Store, cat: fragment.Include}, "include", "i", "include a local header")
	fs.VarP(&listValue{list: &o.SysIncludeDirs, kind: "dir"}, "sysinclude-dir", "S", "add a system include directory")
	fs.VarP(&headerValue{store: o.Store, cat: fragment.SysInclude}, "sysinclude", "s", "include a system header")

	fs.VarP(&listValue{list: &o.LibraryDirs, kind: "dir"}, "library-dir", "L", "add a library directory")
	fs.VarP(&listValue{list: &o.Libraries, kind: "lib"}, "library", "l", "link a library")
	fs.VarP(&listValue{list: &o.MinilibDirs, kind: "dir"}, "minilib-dir", "M", "add a minilib directory")
	fs.VarP(&listValue{list: &o.Minilibs, kind: "name"}, "minilib", "m", "use a minilib")

	fs.VarP(&modeValue{o: o, mode: ModeStatement}, "statement", "e", "add a statement (':' makes statements the main mode)")
	fs.VarP(&modeValue{o: o, mode: ModeBefore}, "before", "b", "add a statement run first (':' switches mode)")
	fs.VarP(&modeValue{o: o, mode: ModeAfter}, "after", "a", "add a cleanup statement, run last-added first (':' switches mode)")
	fs.VarP(&modeValue{o: o, mode: ModeToplevel}, "toplevel", "t", "add a top-level definition (':' switches mode)")
	fs.VarP(&modeValue{o: o, mode: ModeDeclaration}, "declaration", "T", "add a top-level declaration (':' switches mode)")
	fs.VarP(&modeValue{o: o, mode: ModeFile}, "file", "f", "add a source, object or archive file (':' switches mode)")

	fs.StringVarP(&o.Output, "output", "o", "", "build an executable at this path")
	fs.StringVarP(&o.EmitC, "emit-c", "c", "", "write the generated C program to this path ('-' for stdout)")
}

// Parse parses args with fs, which must have been set up by Register.
func (o *Options) Parse(fs *pflag.FlagSet, args []string) error {
	if len(args) == 0 {
		return nil
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	return o.Resume(fs, fs.Args(), fs.ArgsLenAtDash())
}

// Resume continues after fs stopped at a positional argument. rest holds
// the unparsed arguments and dash the "--" position reported by fs. Every
// positional argument is added in the current mode and parsing restarts
// behind it, so options and positionals interleave in order.
func (o *Options) Resume(fs *pflag.FlagSet, rest []string, dash int) error {
	for {
		if dash >= 0 {
			for _, arg := range rest {
				o.add(o.mode, arg)
			}
			return nil
		}
		if len(rest) == 0 {
			return nil
		}
		o.add(o.mode, rest[0])
		rest = rest[1:]
		if len(rest) == 0 {
			return nil
		}
		if err := fs.Parse(rest); err != nil {
			return err
		}
		rest = fs.Args()
		dash = fs.ArgsLenAtDash()
	}
}

// Add appends text in mode m.
func (o *Options) Add(m Mode, text string) {
	o.add(m, text)
}

func (o *Options) add(m Mode, text string) {
	if c, ok := m.Category(); ok {
		o.Store.Append(c, text, fragment.Borrowed)
		return
	}
	o.Files = append(o.Files, text)
}

// ApplyDefaults adds configured default system headers and macros ahead of
// the command-line ones, unless the options are pristine.
func (o *Options) ApplyDefaults(sysincludes, defines []string) {
	if o.Pristine {
		return
	}
	for _, h := range sysincludes {
		o.Store.Append(fragment.DefSysInclude, h, fragment.Owned)
	}
	if len(defines) == 0 {
		return
	}
	defs := make([]string, 0, len(defines)+len(o.Defines))
	for _, d := range defines {
		defs = append(defs, "-D"+d)
	}
	o.Defines = append(defs, o.Defines...)
}

// TraceLevel returns the trace stream level: the dump count, raised by one
// when verbose output is also on.
func (o *Options) TraceLevel() int {
	if o.Dump == 0 {
		return 0
	}
	if o.Verbose > 0 {
		return o.Dump + 1
	}
	return o.Dump
}

// Empty reports whether the command line holds no fragments or files.
func (o *Options) Empty() bool {
	return o.Store.Total() == 0 && len(o.Files) == 0
}
