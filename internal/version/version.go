// Package version holds build identification for the cplr CLI.
package version

import (
	"strings"

	"github.com/fatih/color"
)

// These variables can be overridden at build time via -ldflags.
var (
	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)
)

// Pretty returns Version with its major, minor and patch numbers colored.
// Colors follow fatih/color's global switch.
func Pretty() string {
	core, suffix := Version, ""
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core, suffix = core[:i], core[i:]
	}
	parts := strings.SplitN(core, ".", 3)
	if len(parts) != 3 {
		return Version
	}
	return versionMajorColor.Sprint(parts[0]) + "." +
		versionMinorColor.Sprint(parts[1]) + "." +
		versionPatchColor.Sprint(parts[2]) + suffix
}

// Summary is the one-line description shown by help and the herald.
const Summary = "cplr - compile C fragments from the command line"

// Herald returns the long greeting printed by --herald.
func Herald() string {
	var b strings.Builder
	b.WriteString(Summary)
	b.WriteString("\n\n")
	b.WriteString("Includes, declarations, definitions and statements given as arguments\n")
	b.WriteString("are assembled into one C program and handed to the system compiler.\n")
	b.WriteString("Compiler messages point back at the argument that caused them.\n\n")
	b.WriteString("May this be as useful for you as it is for me.\n")
	return b.String()
}
