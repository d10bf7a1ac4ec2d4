// Package main implements the cplr CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cplr/internal/options"
	"cplr/internal/version"
)

const rootLong = `cplr assembles includes, declarations, definitions and statements given on
the command line into one C program. Positional arguments are statements
unless a fragment option with the value ':' selects another list:

  cplr -s stdio.h 'printf("%d\n", 6 * 7)'
  cplr -t : 'int sq(int v) { return v * v; }' -e : 'printf("%d\n", sq(7))' -o sq

Without --output the generated program is written to stdout.`

// newRootCmd builds the root command around a fresh option set.
func newRootCmd() *cobra.Command {
	o := options.New()
	rootCmd := &cobra.Command{
		Use:          "cplr [flags] [fragment...]",
		Short:        version.Summary,
		Long:         rootLong,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootExecution(cmd, args, o)
		},
	}
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	o.Register(rootCmd.Flags())
	rootCmd.Flags().Bool("interactive", false, "read statements from stdin, one program per line")
	rootCmd.Flags().Bool("print-commands", false, "print compiler commands")
	rootCmd.Flags().Bool("keep-tmp", false, "keep the temporary build directory")
	rootCmd.Flags().IntP("jobs", "j", 0, "parallel compiles of extra sources (0 = configured or one per CPU)")

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().String("config", "", "configuration file (default: cplr.toml found from the working directory)")
	rootCmd.PersistentFlags().String("trace", "", "write trace events to this file ('-' for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-format", "auto", "trace format (auto|text|ndjson)")
	rootCmd.PersistentFlags().String("ui", "auto", "progress UI for builds (auto|on|off)")
	return rootCmd
}

// main executes the root command.
// If command execution returns an error, the process exits with status code 1.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
