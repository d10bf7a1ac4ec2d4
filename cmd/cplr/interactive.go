package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"cplr/internal/fragment"
	"cplr/internal/options"
)

const interactiveHelp = `Each line is added as a statement and the program is generated again.
Lines that fail are dropped. Commands:
  :<mode> <text>  add text to another list (b, a, t, T, e or a mode name)
  :show           print the current program
  :list           print every fragment with its #line origin
  :reset          drop everything added in this session
  :help           show this text
  :quit           leave
`

var (
	promptColor = color.New(color.FgCyan, color.Bold)
	errorColor  = color.New(color.FgRed, color.Bold)
)

// interactive reads lines from in. Each line is tried on a copy of the
// committed store and kept only when the run succeeds.
func (s *session) interactive(ctx context.Context, in io.Reader) error {
	initial := s.opts.Store.Clone()
	committed := initial.Clone()
	prompt := false
	if f, ok := in.(*os.File); ok {
		prompt = isTerminal(f)
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if prompt {
			promptColor.Fprint(s.stderr, "cplr> ")
		}
		if !scanner.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ":") {
			cmd, rest, _ := strings.Cut(line[1:], " ")
			switch cmd {
			case "q", "quit":
				return nil
			case "h", "help":
				fmt.Fprint(s.stderr, interactiveHelp)
				continue
			case "reset":
				committed = initial.Clone()
				continue
			case "show":
				s.reportError(s.showProgram(ctx, committed))
				continue
			case "list":
				s.reportError(s.listFragments(committed))
				continue
			}
			mode, err := options.ParseMode(cmd)
			if err != nil {
				s.reportError(err)
				continue
			}
			if mode == options.ModeFile {
				s.reportError(fmt.Errorf("files cannot be added interactively"))
				continue
			}
			line = strings.TrimSpace(rest)
			s.reportError(s.try(ctx, &committed, mode, line))
			continue
		}
		s.reportError(s.try(ctx, &committed, options.ModeStatement, line))
	}
	return scanner.Err()
}

func (s *session) try(ctx context.Context, committed **fragment.Store, mode options.Mode, text string) error {
	if text == "" {
		return fmt.Errorf("missing fragment text")
	}
	cat, _ := mode.Category()
	trial := (*committed).Clone()
	trial.Append(cat, text, fragment.Owned)
	if err := s.run(ctx, trial); err != nil {
		return err
	}
	*committed = trial
	return nil
}

func (s *session) showProgram(ctx context.Context, store *fragment.Store) error {
	if err := s.gen.Generate(ctx, store, s.opts.Minilibs); err != nil {
		return err
	}
	_, err := s.stdout.Write(s.gen.Code())
	return err
}

// listFragments prints the store under the origin names used in #line
// directives, so compiler diagnostics can be matched to fragments.
func (s *session) listFragments(store *fragment.Store) error {
	for _, c := range fragment.Categories() {
		for i, f := range store.Fragments(c) {
			if _, err := fmt.Fprintf(s.stdout, "%s_%d\t%s\n", c, i, f.Text); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *session) reportError(err error) {
	if err == nil {
		return
	}
	errorColor.Fprint(s.stderr, "error: ")
	fmt.Fprintln(s.stderr, err)
}
