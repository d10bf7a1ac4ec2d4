package codegen

import (
	"fmt"
	"strconv"

	"cplr/internal/fragment"
	"cplr/internal/trace"
)

var templates = map[fragment.Category]string{
	fragment.DefSysInclude: "#include <%s>\n",
	fragment.SysInclude:    "#include <%s>\n",
	fragment.Include:       "#include \"%s\"\n",
	fragment.Declaration:   "%s;\n",
	fragment.Toplevel:      "%s;\n",
	fragment.Before:        "    %s;\n",
	fragment.Statement:     "    %s;\n",
	fragment.After:         "    %s;\n",
}

// minilibPhases lists the categories a minilib can contribute to.
var minilibPhases = map[fragment.Category]bool{
	fragment.SysInclude: true,
	fragment.Include:    true,
	fragment.Toplevel:   true,
	fragment.Before:     true,
	fragment.Statement:  true,
	fragment.After:      true,
}

var (
	headCategories = []fragment.Category{
		fragment.DefSysInclude,
		fragment.SysInclude,
		fragment.Include,
		fragment.Declaration,
		fragment.Toplevel,
	}
	bodyCategories = []fragment.Category{
		fragment.Before,
		fragment.Statement,
		fragment.After,
	}
)

// generateCode emits the whole program: file-scope sections, then the
// main function wrapping the statement sections.
func (g *Generator) generateCode(store *fragment.Store, minilibs []string) {
	for _, c := range headCategories {
		g.emitSection(store, c, minilibs)
	}
	g.emitComment("main")
	g.emitInternal("int main(int argc, char **argv) {\n")
	g.emitInternal("    int ret = 0;\n")
	for _, c := range bodyCategories {
		g.emitSection(store, c, minilibs)
	}
	g.emitComment("done")
	g.emitInternal("    return ret;\n")
	g.emitInternal("}\n")
}

func (g *Generator) emitSection(store *fragment.Store, c fragment.Category, minilibs []string) {
	withLibs := minilibPhases[c] && len(minilibs) > 0
	if store.IsEmpty(c) && !withLibs {
		return
	}
	span := trace.Begin(g.tracer, trace.ScopeSection, "section:"+c.String(), g.runSpan)
	g.emitComment(c.String())
	if withLibs && !c.Reverse() {
		g.emitMinilibs(c.String(), minilibs, false)
	}
	phase := phaseOf(c)
	tmpl := templates[c]
	store.Each(c, func(i int, f fragment.Fragment) {
		origin := c.String() + "_" + strconv.Itoa(i)
		trace.Point(g.tracer, trace.ScopeFragment, origin, "", span.ID())
		g.emit(Position{Phase: phase, Origin: origin, Line: 1}, tmpl, f.Text)
	})
	if withLibs && c.Reverse() {
		g.emitMinilibs(c.String(), minilibs, true)
	}
	span.WithExtra("fragments", strconv.Itoa(store.Size(c))).End("")
}

// emitMinilibs includes every minilib once for phase, guarded by the
// minilib_<phase> macro. Cleanup phases include them last-registered first.
func (g *Generator) emitMinilibs(phase string, minilibs []string, reverse bool) {
	if reverse {
		for i := len(minilibs) - 1; i >= 0; i-- {
			g.emitMinilib(phase, minilibs[i], i)
		}
		return
	}
	for i, name := range minilibs {
		g.emitMinilib(phase, name, i)
	}
}

func (g *Generator) emitMinilib(phase, name string, index int) {
	if g.opts.Verbosity > 0 {
		fmt.Fprintf(g.opts.Diag, "Emitting minilib '%s' phase '%s'\n", name, phase)
	}
	pos := Position{Phase: PhasePreprocessor, Origin: fmt.Sprintf("%s_mlib_%d", phase, index), Line: 1}
	g.emit(pos, "#define minilib_%s\n", phase)
	g.emit(pos, "#include \"%s.m\"\n", name)
	g.emit(pos, "#undef minilib_%s\n", phase)
}
