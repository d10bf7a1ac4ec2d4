package buildpipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var includeDirective = regexp.MustCompile(`(?m)^[ \t]*#[ \t]*include[ \t]*([<"])([^>"\n]+)[>"]`)

// headerDeps lists the headers a program pulls in from the request's include,
// minilib and system include directories, following nested includes.
type headerDeps struct {
	// Dirs are the searched directories, made absolute.
	Dirs []string
	// Found are resolved header paths in first-seen order.
	Found []string
	// Missing are quoted includes that resolved nowhere.
	Missing []string
}

type depScanner struct {
	dirs []string
	seen map[string]bool
	deps headerDeps
}

// scanHeaders resolves the includes of code the way the compiler searches
// them: the including file's directory for quoted includes, then the -I
// directories (include dirs, then minilib dirs), then -isystem directories.
// Angle includes that resolve nowhere are system headers and are skipped.
func scanHeaders(req *BuildRequest, code []byte) (headerDeps, error) {
	s := &depScanner{seen: make(map[string]bool)}
	for _, group := range [][]string{req.IncludeDirs, req.MinilibDirs, req.SysIncludeDirs} {
		for _, dir := range group {
			s.dirs = append(s.dirs, absOr(dir))
		}
	}
	s.deps.Dirs = s.dirs
	if err := s.scan(code, ""); err != nil {
		return headerDeps{}, err
	}
	return s.deps, nil
}

func (s *depScanner) scan(text []byte, from string) error {
	for _, m := range includeDirective.FindAllSubmatch(text, -1) {
		quoted := string(m[1]) == `"`
		name := string(m[2])
		path, ok := s.resolve(name, quoted, from)
		if !ok {
			if quoted {
				s.deps.Missing = append(s.deps.Missing, name)
			}
			continue
		}
		if s.seen[path] {
			continue
		}
		s.seen[path] = true
		s.deps.Found = append(s.deps.Found, path)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read header %s: %w", path, err)
		}
		if err := s.scan(data, filepath.Dir(path)); err != nil {
			return err
		}
	}
	return nil
}

func (s *depScanner) resolve(name string, quoted bool, from string) (string, bool) {
	if filepath.IsAbs(name) {
		return name, isFile(name)
	}
	if quoted && from != "" {
		if p := filepath.Join(from, name); isFile(p) {
			return p, true
		}
	}
	for _, dir := range s.dirs {
		if p := filepath.Join(dir, name); isFile(p) {
			return p, true
		}
	}
	return "", false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
