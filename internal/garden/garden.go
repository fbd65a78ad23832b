// Package garden is the version-control engine: it owns the repository
// layout, the branch and commit model, and the interfaces its storage and
// infrastructure implementations satisfy.
package garden

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"lily/internal/pack"
	"lily/internal/stage"
)

// Garden coordinates the metadata store, the pack store and the stage files
// to perform high-level repository operations needed by the CLI.
type Garden struct {
	layout Layout
	store  MetadataStore
	logger Logger
	clock  Clock
	idgen  IDGenerator
}

// New creates a Garden with the provided dependencies. The store must already
// be open against the layout's database file.
func New(layout Layout, store MetadataStore, logger Logger, clock Clock, idgen IDGenerator) *Garden {
	return &Garden{
		layout: layout,
		store:  store,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
	}
}

// Layout returns the resolved on-disk layout.
func (g *Garden) Layout() Layout { return g.layout }

// InitLayout creates the on-disk skeleton of a repository: the metadata and
// object directories, the info file, the reserved tracker database, both
// stage files and the blank bootstrap pack. It is idempotent and must run
// before the metadata database is opened for a fresh repository.
func InitLayout(layout Layout) error {
	if err := os.MkdirAll(layout.ObjectDir(), 0o755); err != nil {
		return fmt.Errorf("creating object directory: %w", err)
	}

	if _, err := os.Stat(layout.InfoFile()); os.IsNotExist(err) {
		if err := writeInfoFile(layout.InfoFile(), DefaultInfo()); err != nil {
			return err
		}
	}

	if _, err := os.Stat(layout.TrackerFile()); os.IsNotExist(err) {
		if err := os.WriteFile(layout.TrackerFile(), nil, 0o644); err != nil {
			return fmt.Errorf("creating tracker file: %w", err)
		}
	}

	if err := stage.New(layout.StageFile()).Init(); err != nil {
		return err
	}
	if err := stage.New(layout.LocalFile()).Init(); err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(layout.ObjectDir(), pack.BlankID)); os.IsNotExist(err) {
		if _, err := pack.Create(layout.ObjectDir(), layout.Root(), nil, pack.BlankID); err != nil {
			return err
		}
	}

	return nil
}

// Init brings the repository to a usable state: the layout skeleton plus the
// default branch. Safe to call on an already-initialized repository.
func (g *Garden) Init() error {
	if err := InitLayout(g.layout); err != nil {
		return err
	}

	_, err := g.store.BranchByName(DefaultBranch)
	if errors.Is(err, ErrNotFound) {
		_, err = g.CreateBranch(DefaultBranch)
	}
	if err != nil {
		return err
	}

	g.logger.Info("repository initialized", "root", g.layout.Root())
	return nil
}

// Info reads the repository pointer file.
func (g *Garden) Info() (Info, error) {
	var info Info
	if _, err := toml.DecodeFile(g.layout.InfoFile(), &info); err != nil {
		return Info{}, fmt.Errorf("reading info file: %w", err)
	}
	return info, nil
}

func writeInfoFile(path string, info Info) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing info file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(info); err != nil {
		return fmt.Errorf("encoding info file: %w", err)
	}
	return nil
}

// CreateBranch records a new branch. Names are not required to be unique;
// only the id is. Name lookups resolve to the earliest branch with that name.
func (g *Garden) CreateBranch(name string) (Branch, error) {
	if name == "" {
		return Branch{}, fmt.Errorf("branch name: %w", ErrValue)
	}

	b := Branch{
		ID:        g.idgen.New(),
		Name:      name,
		Timestamp: g.clock.Now().UnixMilli(),
	}
	if err := g.store.InsertBranch(b); err != nil {
		return Branch{}, err
	}

	g.logger.Info("branch created", "name", name, "id", b.ID)
	return b, nil
}

// SetBranch points the info file's current branch at name. The branch must
// exist; no working-tree files are touched.
func (g *Garden) SetBranch(name string) error {
	if _, err := g.store.BranchByName(name); err != nil {
		return err
	}

	info, err := g.Info()
	if err != nil {
		return err
	}
	info.Branch.Current = name
	if err := writeInfoFile(g.layout.InfoFile(), info); err != nil {
		return err
	}

	g.logger.Info("branch checked out", "name", name)
	return nil
}

// SetRemote records the remote location in the info file. Nothing is
// contacted; the value is a pointer for external tooling.
func (g *Garden) SetRemote(remote string) error {
	info, err := g.Info()
	if err != nil {
		return err
	}
	info.Remote = remote
	if err := writeInfoFile(g.layout.InfoFile(), info); err != nil {
		return err
	}

	g.logger.Info("remote set", "remote", remote)
	return nil
}

// Branch returns a branch by name, the earliest-created when names collide.
func (g *Garden) Branch(name string) (Branch, error) {
	return g.store.BranchByName(name)
}

// Branches returns all branches, newest first.
func (g *Garden) Branches() ([]Branch, error) {
	return g.store.Branches()
}

// Commit returns a commit by id.
func (g *Garden) Commit(id string) (Commit, error) {
	return g.store.Commit(id)
}

// Commits returns all commits on the named branch, newest first.
func (g *Garden) Commits(branch string) ([]Commit, error) {
	return g.store.Commits(branch)
}
