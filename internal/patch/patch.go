// Package patch computes and replays line-level differences between two
// versions of a text file. A Patch is a display artifact: commits store one to
// describe history, but working trees are always reconstructed from pack
// snapshots, never by replaying patches.
package patch

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Mode classifies a single line change.
type Mode string

const (
	ModeAdded   Mode = "added"
	ModeDeleted Mode = "deleted"
)

func (m Mode) valid() bool {
	return m == ModeAdded || m == ModeDeleted
}

// Change is one line-level edit. Line is the new-text index for additions and
// the old-text index for deletions. Unchanged lines are never recorded.
type Change struct {
	Line int    `json:"line"`
	Mode Mode   `json:"mode"`
	Text string `json:"text"`
}

// PatchFile pairs the full previous content of one file with the ordered list
// of changes that produce the new content.
type PatchFile struct {
	Previous string   `json:"previous"`
	Changes  []Change `json:"changes"`
}

// Patch maps working-tree-relative file paths to their changes. Only files
// that actually changed belong in a stored Patch.
type Patch struct {
	Files map[string]PatchFile `json:"files"`
}

// New returns an empty Patch ready to be merged into.
func New() Patch {
	return Patch{Files: make(map[string]PatchFile)}
}

// Merge copies every file entry of other into p, overwriting on collision.
func (p Patch) Merge(other Patch) {
	for path, pf := range other.Files {
		p.Files[path] = pf
	}
}

// paths returns the file paths in lexicographic order so that rendering and
// serialization are deterministic.
func (p Patch) paths() []string {
	paths := make([]string, 0, len(p.Files))
	for path := range p.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// splitLines treats the empty string as zero lines, so that empty-vs-nonempty
// diffs round-trip exactly.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// Diff computes a line-based diff of old vs new and returns a Patch holding a
// single PatchFile for path. Equal lines are discarded; additions carry their
// new-text index and deletions their old-text index, in edit order. No input
// produces an error: empty-vs-empty yields zero changes, empty-vs-nonempty is
// all additions, nonempty-vs-empty all deletions.
func Diff(path, old, new string) Patch {
	oldLines := splitLines(old)
	newLines := splitLines(new)

	p := New()
	p.Files[path] = PatchFile{
		Previous: old,
		Changes:  backtrack(oldLines, newLines, lcsMatrix(oldLines, newLines)),
	}
	return p
}

// lcsMatrix builds the longest-common-subsequence length table for the two
// line slices.
func lcsMatrix(oldLines, newLines []string) [][]int {
	matrix := make([][]int, len(oldLines)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(newLines)+1)
	}

	for i := 1; i <= len(oldLines); i++ {
		for j := 1; j <= len(newLines); j++ {
			if oldLines[i-1] == newLines[j-1] {
				matrix[i][j] = matrix[i-1][j-1] + 1
			} else {
				matrix[i][j] = max(matrix[i-1][j], matrix[i][j-1])
			}
		}
	}

	return matrix
}

// backtrack walks the LCS table from the end and emits changes in forward edit
// order: within a replaced region, deletions precede the additions that take
// their place.
func backtrack(oldLines, newLines []string, lcs [][]int) []Change {
	var reversed []Change

	i, j := len(oldLines), len(newLines)
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && oldLines[i-1] == newLines[j-1]:
			i--
			j--
		case j > 0 && (i == 0 || lcs[i][j-1] >= lcs[i-1][j]):
			reversed = append(reversed, Change{Line: j - 1, Mode: ModeAdded, Text: newLines[j-1]})
			j--
		default:
			reversed = append(reversed, Change{Line: i - 1, Mode: ModeDeleted, Text: oldLines[i-1]})
			i--
		}
	}

	slices.Reverse(reversed)
	return reversed
}

// Apply replays the changes against source and returns the patched text.
// Deletions are recorded at old-text indices, so the running insert/delete
// offset is applied before removing; additions insert at their recorded index
// or append when it exceeds the current length. Out-of-range operations are
// dropped rather than failing. For any PatchFile produced by Diff(old, new),
// Apply(old) returns new.
func (f PatchFile) Apply(source string) string {
	lines := splitLines(source)

	inserts, deletes := 0, 0
	for _, c := range f.Changes {
		switch c.Mode {
		case ModeAdded:
			if c.Line >= len(lines) {
				lines = append(lines, c.Text)
			} else {
				lines = slices.Insert(lines, c.Line, c.Text)
			}
			inserts++
		case ModeDeleted:
			at := c.Line + inserts - deletes
			if at < 0 || at >= len(lines) {
				continue
			}
			lines = slices.Delete(lines, at, at+1)
			deletes++
		}
	}

	return strings.Join(lines, "\n")
}

// Summary reports (total changes, additions, deletions); total is always the
// sum of the other two.
func (f PatchFile) Summary() (total, additions, deletions int) {
	for _, c := range f.Changes {
		switch c.Mode {
		case ModeAdded:
			additions++
		case ModeDeleted:
			deletions++
		}
	}
	return len(f.Changes), additions, deletions
}

// Marshal encodes the Patch as JSON. Map keys are sorted by encoding/json, so
// the output is deterministic for a given Patch.
func Marshal(p Patch) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding patch: %w", err)
	}
	return data, nil
}

// Unmarshal decodes and validates a stored Patch. Unknown change modes are
// rejected rather than silently kept.
func Unmarshal(data []byte) (Patch, error) {
	var p Patch
	if err := json.Unmarshal(data, &p); err != nil {
		return Patch{}, fmt.Errorf("decoding patch: %w", err)
	}
	if p.Files == nil {
		p.Files = make(map[string]PatchFile)
	}
	for path, pf := range p.Files {
		for _, c := range pf.Changes {
			if !c.Mode.valid() {
				return Patch{}, fmt.Errorf("file %s: unknown change mode %q", path, c.Mode)
			}
			if c.Line < 0 {
				return Patch{}, fmt.Errorf("file %s: negative line index %d", path, c.Line)
			}
		}
	}
	return p, nil
}
