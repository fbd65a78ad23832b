package garden

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lily/internal/pack"
)

// Serialize exports every branch and commit as plain files under the bin
// directory: branches/<name>/branch.json plus one gzipped JSON document per
// commit. The export is database-independent and is what ExportRepository
// ships alongside the packs.
func (g *Garden) Serialize(verbose bool) error {
	branches, err := g.store.Branches()
	if err != nil {
		return err
	}

	for _, b := range branches {
		branchDir := filepath.Join(g.layout.BinDir(), "branches", b.Name)
		if err := os.MkdirAll(filepath.Join(branchDir, "commits"), 0o755); err != nil {
			return fmt.Errorf("creating export directory: %w", err)
		}

		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encoding branch %s: %w", b.Name, err)
		}
		if err := os.WriteFile(filepath.Join(branchDir, "branch.json"), data, 0o644); err != nil {
			return fmt.Errorf("writing branch %s: %w", b.Name, err)
		}

		commits, err := g.store.Commits(b.Name)
		if err != nil {
			return err
		}
		for _, c := range commits {
			data, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("encoding commit %s: %w", c.ID, err)
			}
			blob, err := pack.Compress(data)
			if err != nil {
				return err
			}

			out := filepath.Join(branchDir, "commits", c.ID+".json.gz")
			if err := os.WriteFile(out, blob, 0o644); err != nil {
				return fmt.Errorf("writing commit %s: %w", c.ID, err)
			}
			if verbose {
				g.logger.Info("commit serialized", "id", c.ID, "branch", b.Name)
			}
		}
	}

	g.logger.Info("repository serialized", "branches", len(branches))
	return nil
}

// Deserialize imports a serialized export rooted at dir (a directory shaped
// like the bin tree) into the metadata store. Ids already present reject the
// import with ErrMustBeUnique; nothing is overwritten.
func (g *Garden) Deserialize(dir string, verbose bool) error {
	branchesDir := filepath.Join(dir, "branches")
	entries, err := os.ReadDir(branchesDir)
	if err != nil {
		return fmt.Errorf("reading export: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		branchDir := filepath.Join(branchesDir, entry.Name())

		var b Branch
		data, err := os.ReadFile(filepath.Join(branchDir, "branch.json"))
		if err != nil {
			return fmt.Errorf("reading branch export: %w", err)
		}
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("decoding branch export %s: %w", entry.Name(), ErrValue)
		}

		if _, err := g.store.Branch(b.ID); err == nil {
			return fmt.Errorf("branch %s: %w", b.ID, ErrMustBeUnique)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := g.store.InsertBranch(b); err != nil {
			return err
		}
		if verbose {
			g.logger.Info("branch imported", "name", b.Name, "id", b.ID)
		}

		if err := g.importCommits(filepath.Join(branchDir, "commits"), verbose); err != nil {
			return err
		}
	}

	g.logger.Info("repository imported", "from", dir)
	return nil
}

func (g *Garden) importCommits(dir string, verbose bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading commit export: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json.gz") {
			continue
		}

		blob, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("reading commit export: %w", err)
		}
		data, err := pack.Decompress(blob)
		if err != nil {
			return fmt.Errorf("decoding commit export %s: %w", entry.Name(), ErrValue)
		}

		var c Commit
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("decoding commit export %s: %w", entry.Name(), ErrValue)
		}

		if _, err := g.store.Commit(c.ID); err == nil {
			return fmt.Errorf("commit %s: %w", c.ID, ErrMustBeUnique)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := g.store.InsertCommit(c); err != nil {
			return err
		}
		if verbose {
			g.logger.Info("commit imported", "id", c.ID)
		}
	}

	return nil
}
