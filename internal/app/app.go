// Package app is the application layer between the CLI and the garden
// engine. It resolves configuration, wires dependencies and exposes
// high-level operations that accept raw strings.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"lily/internal/config"
	"lily/internal/garden"
	"lily/internal/pack"
	"lily/internal/stage"
	"lily/internal/store"
)

// WeedsFile is the repository-level ignore file read when staging with a
// glob.
const WeedsFile = ".weeds"

// App owns the wired Garden plus the resources that must be released on
// Close. The repository root is always the current working directory.
type App struct {
	cfg     *config.Config
	store   garden.MetadataStore
	garden  *garden.Garden
	logFile *os.File
}

// New creates a fully wired App for the given CLI command. When initialize
// is true the on-disk layout is created first; otherwise the working
// directory must already hold a repository. The caller must call Close when
// done.
func New(command string, initialize bool) (*App, error) {
	defaults, err := GetDefaults()
	if err != nil {
		return nil, err
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		// No config file is fine; commands that need user_id check for it.
		cfg = &config.Config{}
	}
	if cfg.LogDir == "" {
		cfg.LogDir = defaults["log_dir"]
	}

	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}
	layout := garden.NewLayout(root)

	if initialize {
		if err := garden.InitLayout(layout); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat(layout.Dir()); err != nil {
		return nil, fmt.Errorf("not a lily repository (no %s): %w", layout.Dir(), garden.ErrNotFound)
	}

	logger, logFile, err := newLogger(cfg.LogDir, command)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(layout.DatabaseFile())
	if err != nil {
		logFile.Close()
		return nil, err
	}

	g := garden.New(layout, st, &slogAdapter{l: logger}, garden.RealClock{}, garden.HashIDGenerator{})

	return &App{
		cfg:     cfg,
		store:   st,
		garden:  g,
		logFile: logFile,
	}, nil
}

// Garden returns the wired engine.
func (a *App) Garden() *garden.Garden { return a.garden }

// Config returns the resolved user configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Close releases the metadata store and the log file.
func (a *App) Close() error {
	err := a.store.Close()
	if a.logFile != nil {
		a.logFile.Close()
	}
	return err
}

// Init brings the repository to a usable state.
func (a *App) Init() error {
	return a.garden.Init()
}

// Add stages the given paths verbatim and returns the stage file path.
func (a *App) Add(paths []string) (string, error) {
	st := stage.New(a.garden.Layout().StageFile())
	if err := st.Add(paths...); err != nil {
		return "", err
	}
	return a.garden.Layout().StageFile(), nil
}

// AddAll stages every file under the repository root not excluded by the
// .weeds file or the configured ignore patterns. Returns the stage file
// path.
func (a *App) AddAll() (string, error) {
	layout := a.garden.Layout()

	patterns, err := stage.ParseIgnoreFile(filepath.Join(layout.Root(), WeedsFile))
	if err != nil {
		return "", err
	}
	patterns = append(patterns, a.cfg.Ignore...)

	st := stage.New(layout.StageFile())
	if err := st.AddGlob(layout.Root(), patterns); err != nil {
		return "", err
	}
	return layout.StageFile(), nil
}

// Clear empties the staging area.
func (a *App) Clear() error {
	return stage.New(a.garden.Layout().StageFile()).Clear()
}

// StagedFiles returns the current staging area contents.
func (a *App) StagedFiles() ([]string, error) {
	return stage.New(a.garden.Layout().StageFile()).Files()
}

// Commit records the staged files on the named branch, falling back to the
// current branch when branch is empty. The author comes from the configured
// user_id and is required. The stage is cleared only after the commit
// succeeds.
func (a *App) Commit(branch, message string) (garden.Commit, error) {
	if a.cfg.UserID == "" {
		return garden.Commit{}, fmt.Errorf("no user_id configured: %w", garden.ErrNotAllowed)
	}

	if branch == "" {
		info, err := a.garden.Info()
		if err != nil {
			return garden.Commit{}, err
		}
		branch = info.Branch.Current
	}

	c, err := a.garden.CreateCommit(branch, message, a.cfg.UserID)
	if err != nil {
		return garden.Commit{}, err
	}

	if err := a.Clear(); err != nil {
		return garden.Commit{}, err
	}
	return c, nil
}

// Checkout points the repository at the named branch, creating it first if
// it does not exist.
func (a *App) Checkout(name string) error {
	if _, err := a.garden.Branch(name); err != nil {
		if _, err := a.garden.CreateBranch(name); err != nil {
			return err
		}
	}
	return a.garden.SetBranch(name)
}

// SetRemote records the remote location in the info file.
func (a *App) SetRemote(remote string) error {
	return a.garden.SetRemote(remote)
}

// Pack exports the whole repository (objects plus serialized metadata) as
// <name>.repo in the working directory.
func (a *App) Pack(name string) (string, error) {
	if err := a.garden.Serialize(false); err != nil {
		return "", err
	}
	layout := a.garden.Layout()
	return pack.ExportRepository(layout.ObjectDir(), layout.BinDir(), name)
}
