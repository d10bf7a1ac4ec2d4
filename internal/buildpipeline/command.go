package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// SourceName is the file the generated program is written to.
const SourceName = "cplr.c"

// ErrNoCompiler is returned when the configured compiler cannot be found.
var ErrNoCompiler = errors.New("C compiler not found")

// compiler is a resolved compiler command, possibly with a launcher
// prefix such as "ccache cc".
type compiler struct {
	name   string
	prefix []string
}

func resolveCompiler(command string) (compiler, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return compiler{}, fmt.Errorf("%w: empty compiler command", ErrNoCompiler)
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		return compiler{}, fmt.Errorf("%w: %s", ErrNoCompiler, fields[0])
	}
	return compiler{name: fields[0], prefix: fields[1:]}, nil
}

// preprocessorArgs returns the defines and include directories shared by
// every compiler invocation.
func preprocessorArgs(req *BuildRequest) []string {
	args := make([]string, 0, len(req.Defines)+2*(len(req.IncludeDirs)+len(req.SysIncludeDirs)+len(req.MinilibDirs)))
	args = append(args, req.Defines...)
	for _, dir := range req.IncludeDirs {
		args = append(args, "-I", dir)
	}
	for _, dir := range req.SysIncludeDirs {
		args = append(args, "-isystem", dir)
	}
	for _, dir := range req.MinilibDirs {
		args = append(args, "-I", dir)
	}
	return args
}

func compileArgs(req *BuildRequest, src, obj string) []string {
	args := append([]string{}, req.Flags...)
	args = append(args, preprocessorArgs(req)...)
	return append(args, "-c", src, "-o", obj)
}

func linkArgs(req *BuildRequest, src string, inputs []string, output string) []string {
	args := append([]string{}, req.Flags...)
	args = append(args, preprocessorArgs(req)...)
	args = append(args, src)
	args = append(args, inputs...)
	for _, dir := range req.LibraryDirs {
		args = append(args, "-L", dir)
	}
	for _, lib := range req.Libraries {
		args = append(args, "-l"+lib)
	}
	return append(args, "-o", output)
}

// objectName maps the i-th extra source to its object file in tmpDir.
func objectName(tmpDir string, i int, src string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(tmpDir, fmt.Sprintf("%02d-%s.o", i, base))
}

func (b *builder) runCommand(ctx context.Context, args ...string) error {
	full := append(append([]string{}, b.cc.prefix...), args...)
	if b.req.PrintCommands {
		_, printErr := fmt.Fprintf(b.out, "%s %s\n", b.cc.name, strings.Join(full, " "))
		if printErr != nil {
			return fmt.Errorf("failed to print command: %w", printErr)
		}
	}
	// #nosec G204 -- the compiler command comes from configuration
	cmd := exec.CommandContext(ctx, b.cc.name, full...)
	cmd.Stdout = b.out
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return err
		}
		return fmt.Errorf("%s: %s", b.cc.name, msg)
	}
	if msg := stderr.String(); msg != "" {
		// warnings from a successful compile
		_, _ = io.WriteString(b.diag, msg)
	}
	return nil
}

func writeSource(path string, code []byte) error {
	if err := os.WriteFile(path, code, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
