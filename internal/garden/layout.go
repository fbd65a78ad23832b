package garden

import "path/filepath"

// Layout resolves every on-disk path of a repository from its working-tree
// root. All metadata lives under <root>/.garden; nothing in the engine reads
// environment variables to find these.
type Layout struct {
	root string
}

// NewLayout returns the layout rooted at the given working tree.
func NewLayout(root string) Layout {
	return Layout{root: root}
}

// Root is the working-tree root.
func (l Layout) Root() string { return l.root }

// Dir is the metadata directory.
func (l Layout) Dir() string { return filepath.Join(l.root, ".garden") }

// InfoFile holds the TOML branch/remote pointers.
func (l Layout) InfoFile() string { return filepath.Join(l.Dir(), "info") }

// ObjectDir holds one pack archive per commit id.
func (l Layout) ObjectDir() string { return filepath.Join(l.Dir(), "objects") }

// DatabaseFile is the sqlite metadata database.
func (l Layout) DatabaseFile() string { return filepath.Join(l.Dir(), "lily.db") }

// TrackerFile is reserved for future file tracking. It is created empty at
// init time and never opened.
func (l Layout) TrackerFile() string { return filepath.Join(l.Dir(), "tracker.db") }

// StageFile lists paths queued for the next commit.
func (l Layout) StageFile() string { return filepath.Join(l.Dir(), "stagefile") }

// LocalFile lists commit ids created in this working copy.
func (l Layout) LocalFile() string { return filepath.Join(l.Dir(), "localfile") }

// WebDir holds rendered static HTML, one subdirectory per branch.
func (l Layout) WebDir() string { return filepath.Join(l.Dir(), "web") }

// BinDir holds the plain-file serialized export.
func (l Layout) BinDir() string { return filepath.Join(l.Dir(), "bin") }
