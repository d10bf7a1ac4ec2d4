package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"cplr/internal/bcache"
	"cplr/internal/buildpipeline"
	"cplr/internal/codegen"
	"cplr/internal/config"
	"cplr/internal/fragment"
	"cplr/internal/options"
	"cplr/internal/version"
)

var errNothingToDo = errors.New("no fragments given (see cplr --help)")

// session carries everything one or more runs over a fragment store share.
type session struct {
	opts   *options.Options
	cfg    config.Config
	gen    *codegen.Generator
	cache  *bcache.Cache
	stdout io.Writer
	stderr io.Writer

	useTUI        bool
	showTimings   bool
	printCommands bool
	keepTmp       bool
	jobs          int
}

func rootExecution(cmd *cobra.Command, args []string, o *options.Options) error {
	if err := o.Resume(cmd.Flags(), args, cmd.ArgsLenAtDash()); err != nil {
		return err
	}
	switch {
	case o.Help:
		return cmd.Help()
	case o.Herald:
		_, err := io.WriteString(cmd.OutOrStdout(), version.Herald())
		return err
	case o.Version:
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "cplr %s\n", version.Pretty())
		return err
	}

	interactive, err := cmd.Flags().GetBool("interactive")
	if err != nil {
		return err
	}
	if o.Empty() && !interactive {
		return errNothingToDo
	}

	s, err := newSession(cmd, o)
	if err != nil {
		return err
	}
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if interactive {
		s.useTUI = false
		return s.interactive(cmd.Context(), cmd.InOrStdin())
	}
	return s.run(cmd.Context(), o.Store)
}

func newSession(cmd *cobra.Command, o *options.Options) (*session, error) {
	root := cmd.Root()
	colorFlag, err := root.PersistentFlags().GetString("color")
	if err != nil {
		return nil, fmt.Errorf("failed to get color flag: %w", err)
	}
	if err := applyColorMode(colorFlag); err != nil {
		return nil, err
	}
	uiValue, err := root.PersistentFlags().GetString("ui")
	if err != nil {
		return nil, fmt.Errorf("failed to get ui flag: %w", err)
	}
	uiModeValue, err := readUIMode(uiValue)
	if err != nil {
		return nil, err
	}
	showTimings, err := root.PersistentFlags().GetBool("timings")
	if err != nil {
		return nil, fmt.Errorf("failed to get timings flag: %w", err)
	}
	printCommands, err := cmd.Flags().GetBool("print-commands")
	if err != nil {
		return nil, err
	}
	keepTmp, err := cmd.Flags().GetBool("keep-tmp")
	if err != nil {
		return nil, err
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return nil, err
	}
	if jobs < 0 {
		return nil, fmt.Errorf("--jobs must not be negative")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if jobs == 0 {
		jobs = cfg.Compiler.Jobs
	}
	o.ApplyDefaults(cfg.Defaults.SysIncludes, cfg.Defaults.Defines)

	s := &session{
		opts:          o,
		cfg:           cfg,
		stdout:        cmd.OutOrStdout(),
		stderr:        cmd.ErrOrStderr(),
		useTUI:        o.Output != "" && o.Verbose == 0 && o.Dump == 0 && shouldUseTUI(uiModeValue),
		showTimings:   showTimings,
		printCommands: printCommands,
		keepTmp:       keepTmp,
		jobs:          jobs,
	}
	s.gen = codegen.New(codegen.Options{
		TraceLevel: o.TraceLevel(),
		Verbosity:  o.Verbose,
		Diag:       s.stderr,
		Drain:      codegen.FilterOpener(cfg.Dump.Filter),
	})
	if o.Output != "" {
		s.cache, err = openCache(cfg)
		if err != nil {
			fmt.Fprintf(s.stderr, "cplr: build cache disabled: %v\n", err)
		}
	}
	return s, nil
}

// run assembles store once and writes or builds the result.
func (s *session) run(ctx context.Context, store *fragment.Store) error {
	if s.opts.Output == "" {
		if err := s.generate(ctx, store); err != nil {
			return err
		}
		if s.showTimings {
			printGeneratorTimings(s.stderr, s.gen.Timings())
		}
		return nil
	}

	req := &buildpipeline.BuildRequest{
		Generate: func(ctx context.Context) ([]byte, error) {
			if err := s.generate(ctx, store); err != nil {
				return nil, err
			}
			return s.gen.Code(), nil
		},
		Compiler:       s.cfg.Compiler.Command,
		Flags:          s.cfg.Compiler.Flags,
		Defines:        s.opts.Defines,
		IncludeDirs:    s.opts.IncludeDirs,
		SysIncludeDirs: s.opts.SysIncludeDirs,
		MinilibDirs:    s.opts.MinilibDirs,
		LibraryDirs:    s.opts.LibraryDirs,
		Libraries:      s.opts.Libraries,
		Files:          s.opts.Files,
		Output:         s.opts.Output,
		Jobs:           s.jobs,
		KeepTmp:        s.keepTmp,
		PrintCommands:  s.printCommands,
		Cache:          s.cache,
		Stdout:         s.stderr,
		Stderr:         s.stderr,
	}

	var (
		res buildpipeline.BuildResult
		err error
	)
	if s.useTUI {
		res, err = runBuildWithUI(ctx, "cplr "+s.opts.Output, req)
	} else {
		res, err = buildpipeline.Build(ctx, req)
	}
	if s.showTimings {
		printGeneratorTimings(s.stderr, s.gen.Timings())
		printStageTimings(s.stderr, res.Timings)
	}
	if err != nil {
		return err
	}
	if s.keepTmp && res.TmpDir != "" {
		fmt.Fprintf(s.stderr, "tmp dir: %s\n", res.TmpDir)
	}
	if s.opts.Verbose > 0 {
		verb := "built"
		if res.Cached {
			verb = "reused cached"
		}
		fmt.Fprintf(s.stderr, "%s %s\n", verb, res.OutputPath)
	}
	return nil
}

// generate runs the assembler and writes the program where --emit-c asks,
// or to stdout when nothing is built.
func (s *session) generate(ctx context.Context, store *fragment.Store) error {
	if err := s.gen.Generate(ctx, store, s.opts.Minilibs); err != nil {
		return err
	}
	target := s.opts.EmitC
	if target == "" && s.opts.Output == "" {
		target = "-"
	}
	return writeCode(s.stdout, target, s.gen.Code())
}

func writeCode(stdout io.Writer, target string, code []byte) error {
	switch target {
	case "":
		return nil
	case "-":
		_, err := stdout.Write(code)
		return err
	default:
		if err := os.WriteFile(target, code, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", target, err)
		}
		return nil
	}
}
