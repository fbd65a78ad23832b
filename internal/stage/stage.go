// Package stage tracks pending work as a flat newline-delimited file. The
// same type backs both the staging area (paths queued for the next commit)
// and the local commit log (ids created in this working copy).
package stage

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// implicitIgnores are never staged no matter what the caller passes: the
// metadata directory itself and any git checkout living alongside it.
var implicitIgnores = []string{".garden/", ".git/"}

// Stage is an append-only list of entries persisted at a fixed path. Entries
// keep insertion order; duplicates are allowed and callers dedupe if they
// care.
type Stage struct {
	path string
}

// New returns a Stage over the file at path. The file need not exist yet.
func New(path string) *Stage {
	return &Stage{path: path}
}

// Init creates the backing file if it does not exist. Existing contents are
// left alone, so Init is safe to call on every startup.
func (s *Stage) Init() error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("initializing stage file: %w", err)
	}
	return f.Close()
}

// Files returns every non-empty entry in insertion order. A missing backing
// file reads as empty.
func (s *Stage) Files() ([]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening stage file: %w", err)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			entries = append(entries, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stage file: %w", err)
	}
	return entries, nil
}

// Add appends entries to the stage, one per line.
func (s *Stage) Add(entries ...string) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening stage file: %w", err)
	}
	defer f.Close()

	for _, entry := range entries {
		if entry == "" {
			continue
		}
		if _, err := fmt.Fprintln(f, entry); err != nil {
			return fmt.Errorf("appending to stage file: %w", err)
		}
	}
	return nil
}

// Clear truncates the stage to empty.
func (s *Stage) Clear() error {
	if err := os.WriteFile(s.path, nil, 0o644); err != nil {
		return fmt.Errorf("clearing stage file: %w", err)
	}
	return nil
}

// AddGlob walks the tree under root and stages every regular file not matched
// by the given gitignore-style patterns. The metadata and git directories are
// always excluded. Paths are staged relative to root with forward slashes.
func (s *Stage) AddGlob(root string, ignore []string) error {
	patterns := append(append([]string{}, implicitIgnores...), ignore...)
	matcher := gitignore.CompileIgnoreLines(patterns...)

	var staged []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", p, err)
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if matcher.MatchesPath(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || matcher.MatchesPath(rel) {
			return nil
		}

		staged = append(staged, rel)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", root, err)
	}

	return s.Add(staged...)
}

// ParseIgnoreFile reads a pattern file (one gitignore-style pattern per line,
// '#' comments and blanks skipped). A missing file reads as no patterns.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
