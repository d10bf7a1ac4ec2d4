package codegen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// ErrDrainUnderrun means the trace filter accepted fewer bytes than offered.
var ErrDrainUnderrun = errors.New("trace filter underrun")

const drainChunk = 4096

// separator brackets the drained trace output.
var separator = strings.Repeat("=", 80)

// DrainOpener starts a filter whose output goes to diag.
type DrainOpener func(ctx context.Context, diag io.Writer) (io.WriteCloser, error)

// Drain writes data through sink in chunks, bracketed by separator lines on
// diag. A short write closes the sink and returns ErrDrainUnderrun.
func Drain(diag io.Writer, sink io.WriteCloser, data []byte) error {
	fmt.Fprintln(diag, separator)
	for done := 0; done < len(data); {
		step := min(len(data)-done, drainChunk)
		n, err := sink.Write(data[done : done+step])
		if n < step {
			_ = sink.Close()
			if err == nil {
				err = io.ErrShortWrite
			}
			return fmt.Errorf("%w: write at offset %d: wrote %d of %d bytes: %w", ErrDrainUnderrun, done, n, step, err)
		}
		done += n
	}
	if err := sink.Close(); err != nil {
		return fmt.Errorf("close trace filter: %w", err)
	}
	fmt.Fprintln(diag, separator)
	return nil
}

// LineNumbers is the default DrainOpener: it numbers lines the way
// "cat -n" does.
func LineNumbers(_ context.Context, diag io.Writer) (io.WriteCloser, error) {
	return NewLineNumberer(diag), nil
}

// LineNumberer prefixes every line with a right-aligned line number.
type LineNumberer struct {
	w       io.Writer
	line    int
	partial []byte
}

// NewLineNumberer returns a LineNumberer writing to w.
func NewLineNumberer(w io.Writer) *LineNumberer {
	return &LineNumberer{w: w}
}

// Write numbers every complete line in p. Incomplete trailing text is held
// until the next Write or Close.
func (l *LineNumberer) Write(p []byte) (int, error) {
	consumed := 0
	for {
		i := bytes.IndexByte(p[consumed:], '\n')
		if i < 0 {
			break
		}
		end := consumed + i + 1
		l.partial = append(l.partial, p[consumed:end]...)
		if err := l.flushLine(); err != nil {
			return consumed, err
		}
		consumed = end
	}
	l.partial = append(l.partial, p[consumed:]...)
	return len(p), nil
}

func (l *LineNumberer) flushLine() error {
	l.line++
	_, err := fmt.Fprintf(l.w, "%6d\t%s", l.line, l.partial)
	l.partial = l.partial[:0]
	return err
}

// Close numbers any unterminated last line.
func (l *LineNumberer) Close() error {
	if len(l.partial) == 0 {
		return nil
	}
	l.partial = append(l.partial, '\n')
	return l.flushLine()
}

// FilterCommand runs an external filter through the shell.
type FilterCommand struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// FilterOpener returns a DrainOpener running command with "sh -c". An empty
// command selects LineNumbers.
func FilterOpener(command string) DrainOpener {
	if strings.TrimSpace(command) == "" {
		return LineNumbers
	}
	return func(ctx context.Context, diag io.Writer) (io.WriteCloser, error) {
		return StartFilter(ctx, command, diag)
	}
}

// StartFilter starts command with its output sent to out.
func StartFilter(ctx context.Context, command string, out io.Writer) (*FilterCommand, error) {
	// #nosec G204 -- the filter command is operator configuration
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdout = out
	cmd.Stderr = out
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %q: %w", command, err)
	}
	return &FilterCommand{cmd: cmd, stdin: stdin}, nil
}

// Write feeds p to the filter's standard input.
func (f *FilterCommand) Write(p []byte) (int, error) {
	return f.stdin.Write(p)
}

// Close ends the filter's input and waits for it to exit.
func (f *FilterCommand) Close() error {
	inErr := f.stdin.Close()
	if err := f.cmd.Wait(); err != nil {
		return fmt.Errorf("%s: %w", strings.Join(f.cmd.Args, " "), err)
	}
	return inErr
}
