package garden

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"lily/internal/pack"
	"lily/internal/patch"
	"lily/internal/stage"
)

// CreateCommit records the staged files as a new commit on the named branch.
// The diff base is the latest commit on that branch; a branch with no commits
// diffs against the blank pack. Files present in the base but no longer
// staged are recorded as deletions. The full snapshot pack is written before
// the metadata row so a crash can orphan an object but never a commit. The
// stage is left intact; clearing it is the caller's decision.
func (g *Garden) CreateCommit(branch, message, author string) (Commit, error) {
	if _, err := g.store.BranchByName(branch); err != nil {
		return Commit{}, err
	}

	st := stage.New(g.layout.StageFile())
	staged, err := st.Files()
	if err != nil {
		return Commit{}, err
	}

	base, err := g.basePack(branch)
	if err != nil {
		return Commit{}, err
	}

	content := patch.New()
	seen := make(map[string]bool)
	for _, path := range staged {
		if seen[path] {
			continue
		}
		seen[path] = true

		files, err := expandStaged(g.layout.Root(), path)
		if err != nil {
			return Commit{}, fmt.Errorf("expanding staged entry %s: %w", path, err)
		}
		for _, file := range files {
			if seen[file] && file != path {
				continue
			}
			seen[file] = true

			current, err := os.ReadFile(filepath.Join(g.layout.Root(), file))
			if err != nil {
				return Commit{}, fmt.Errorf("reading staged file %s: %w", file, err)
			}

			previous, _ := base.Get(file)
			d := patch.Diff(file, previous, string(current))
			if len(d.Files[file].Changes) > 0 {
				content.Merge(d)
			}
		}
	}

	// Paths in the base snapshot that are no longer staged were removed from
	// the working set; record them as full deletions.
	for _, path := range base.Paths() {
		if seen[path] {
			continue
		}
		d := patch.Diff(path, mustGet(base, path), "")
		if len(d.Files[path].Changes) > 0 {
			content.Merge(d)
		}
	}

	id := g.idgen.New()
	if _, err := pack.Create(g.layout.ObjectDir(), g.layout.Root(), staged, id); err != nil {
		return Commit{}, err
	}

	c := Commit{
		ID:        id,
		Branch:    branch,
		Timestamp: g.clock.Now().UnixMilli(),
		Author:    author,
		Message:   message,
		Content:   content,
	}
	if err := g.store.InsertCommit(c); err != nil {
		return Commit{}, err
	}

	if err := stage.New(g.layout.LocalFile()).Add(id); err != nil {
		return Commit{}, err
	}

	g.logger.Info("commit created", "id", id, "branch", branch, "files", len(content.Files))
	return c, nil
}

// basePack opens the snapshot of the latest commit on branch, falling back to
// the blank pack when the branch has no commits yet. This is the only place
// ErrNotFound from LatestCommit is absorbed.
func (g *Garden) basePack(branch string) (*pack.Tree, error) {
	latest, err := g.store.LatestCommit(branch)
	if errors.Is(err, ErrNotFound) {
		return pack.OpenID(g.layout.ObjectDir(), pack.BlankID)
	}
	if err != nil {
		return nil, err
	}
	return pack.OpenID(g.layout.ObjectDir(), latest.ID)
}

// expandStaged resolves a staged entry to the regular files it covers: a
// directory entry expands to every file beneath it, everything else stands
// for itself. Paths come back slash-separated relative to root.
func expandStaged(root, entry string) ([]string, error) {
	full := filepath.Join(root, entry)
	info, err := os.Stat(full)
	if err != nil || !info.IsDir() {
		return []string{entry}, nil
	}

	var files []string
	err = filepath.WalkDir(full, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if rel, err := filepath.Rel(root, p); err == nil {
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func mustGet(t *pack.Tree, path string) string {
	content, _ := t.Get(path)
	return content
}
