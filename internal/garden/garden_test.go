package garden_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lily/internal/garden"
	"lily/internal/pack"
	"lily/internal/stage"
	"lily/internal/testutil"
)

func writeWorkFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func stageFiles(t *testing.T, g *garden.Garden, paths ...string) {
	t.Helper()
	st := stage.New(g.Layout().StageFile())
	if err := st.Clear(); err != nil {
		t.Fatal(err)
	}
	if err := st.Add(paths...); err != nil {
		t.Fatal(err)
	}
}

func TestInit(t *testing.T) {
	g, _ := testutil.NewTestGarden(t)

	layout := g.Layout()
	for _, path := range []string{
		layout.Dir(),
		layout.ObjectDir(),
		layout.InfoFile(),
		layout.TrackerFile(),
		layout.StageFile(),
		layout.LocalFile(),
		filepath.Join(layout.ObjectDir(), pack.BlankID),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing after init: %s", path)
		}
	}

	t.Run("creates default branch", func(t *testing.T) {
		b, err := g.Branch(garden.DefaultBranch)
		if err != nil {
			t.Fatalf("main branch missing: %v", err)
		}
		if b.Name != "main" {
			t.Errorf("got %+v", b)
		}
	})

	t.Run("default info", func(t *testing.T) {
		info, err := g.Info()
		if err != nil {
			t.Fatalf("info: %v", err)
		}
		if info.Branch.Default != "main" || info.Branch.Current != "main" {
			t.Errorf("got %+v", info)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		if err := g.Init(); err != nil {
			t.Fatalf("second init: %v", err)
		}
		branches, err := g.Branches()
		if err != nil {
			t.Fatal(err)
		}
		if len(branches) != 1 {
			t.Errorf("second init duplicated branches: %v", branches)
		}
	})
}

func TestCreateBranch(t *testing.T) {
	g, _ := testutil.NewTestGarden(t)

	b, err := g.CreateBranch("feature")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.ID == "" || b.Timestamp == 0 {
		t.Errorf("branch not fully populated: %+v", b)
	}

	t.Run("duplicate name permitted", func(t *testing.T) {
		b2, err := g.CreateBranch("feature")
		if err != nil {
			t.Fatalf("names are not unique, create failed: %v", err)
		}
		if b2.ID == b.ID {
			t.Errorf("duplicate name must still get its own id: %s", b2.ID)
		}

		// Lookups by name keep resolving to the first branch.
		got, err := g.Branch("feature")
		if err != nil {
			t.Fatal(err)
		}
		if got.ID != b.ID {
			t.Errorf("name lookup: got %s, want the earliest %s", got.ID, b.ID)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		if _, err := g.CreateBranch(""); !errors.Is(err, garden.ErrValue) {
			t.Errorf("expected ErrValue, got %v", err)
		}
	})
}

func TestSetBranch(t *testing.T) {
	g, _ := testutil.NewTestGarden(t)

	if _, err := g.CreateBranch("feature"); err != nil {
		t.Fatal(err)
	}
	if err := g.SetBranch("feature"); err != nil {
		t.Fatalf("set: %v", err)
	}

	info, err := g.Info()
	if err != nil {
		t.Fatal(err)
	}
	if info.Branch.Current != "feature" {
		t.Errorf("current branch: got %s", info.Branch.Current)
	}
	if info.Branch.Default != "main" {
		t.Errorf("default branch should not move: got %s", info.Branch.Default)
	}

	t.Run("unknown branch", func(t *testing.T) {
		if err := g.SetBranch("nope"); !errors.Is(err, garden.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSetRemote(t *testing.T) {
	g, _ := testutil.NewTestGarden(t)

	if err := g.SetRemote("https://garden.example/repo"); err != nil {
		t.Fatalf("set: %v", err)
	}

	info, err := g.Info()
	if err != nil {
		t.Fatal(err)
	}
	if info.Remote != "https://garden.example/repo" {
		t.Errorf("remote: got %s", info.Remote)
	}
}

func TestCreateCommitFirstCommit(t *testing.T) {
	g, root := testutil.NewTestGarden(t)

	writeWorkFile(t, root, "a.txt", "hello\nworld")
	stageFiles(t, g, "a.txt")

	c, err := g.CreateCommit("main", "first", "gardener")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if c.Branch != "main" || c.Author != "gardener" || c.Message != "first" {
		t.Errorf("commit fields: %+v", c)
	}

	// Against an empty base everything is an addition.
	pf, found := c.Content.Files["a.txt"]
	if !found {
		t.Fatal("a.txt missing from patch")
	}
	_, adds, dels := pf.Summary()
	if adds != 2 || dels != 0 {
		t.Errorf("expected 2 additions, got %d/%d", adds, dels)
	}

	t.Run("pack written", func(t *testing.T) {
		tree, err := pack.OpenID(g.Layout().ObjectDir(), c.ID)
		if err != nil {
			t.Fatalf("pack: %v", err)
		}
		if got, _ := tree.Get("a.txt"); got != "hello\nworld" {
			t.Errorf("pack content: %q", got)
		}
	})

	t.Run("local log appended", func(t *testing.T) {
		ids, err := stage.New(g.Layout().LocalFile()).Files()
		if err != nil {
			t.Fatal(err)
		}
		if len(ids) != 1 || ids[0] != c.ID {
			t.Errorf("local log: %v", ids)
		}
	})

	t.Run("stage untouched", func(t *testing.T) {
		files, err := stage.New(g.Layout().StageFile()).Files()
		if err != nil {
			t.Fatal(err)
		}
		if len(files) != 1 {
			t.Errorf("engine must not clear the stage: %v", files)
		}
	})
}

func TestCreateCommitDiffsAgainstLatest(t *testing.T) {
	g, root := testutil.NewTestGarden(t)

	writeWorkFile(t, root, "a.txt", "one\ntwo")
	stageFiles(t, g, "a.txt")
	if _, err := g.CreateCommit("main", "first", "gardener"); err != nil {
		t.Fatal(err)
	}

	writeWorkFile(t, root, "a.txt", "one\n2")
	stageFiles(t, g, "a.txt")
	c2, err := g.CreateCommit("main", "second", "gardener")
	if err != nil {
		t.Fatal(err)
	}

	pf := c2.Content.Files["a.txt"]
	if pf.Previous != "one\ntwo" {
		t.Errorf("diff base should be the previous snapshot, got %q", pf.Previous)
	}
	if got := pf.Apply("one\ntwo"); got != "one\n2" {
		t.Errorf("patch does not replay: %q", got)
	}
}

func TestCreateCommitUnchangedFileOmitted(t *testing.T) {
	g, root := testutil.NewTestGarden(t)

	writeWorkFile(t, root, "same.txt", "steady")
	writeWorkFile(t, root, "edit.txt", "before")
	stageFiles(t, g, "same.txt", "edit.txt")
	if _, err := g.CreateCommit("main", "first", "gardener"); err != nil {
		t.Fatal(err)
	}

	writeWorkFile(t, root, "edit.txt", "after")
	stageFiles(t, g, "same.txt", "edit.txt")
	c, err := g.CreateCommit("main", "second", "gardener")
	if err != nil {
		t.Fatal(err)
	}

	if _, found := c.Content.Files["same.txt"]; found {
		t.Error("unchanged file should not appear in the patch")
	}
	if _, found := c.Content.Files["edit.txt"]; !found {
		t.Error("changed file missing from the patch")
	}
}

func TestCreateCommitCapturesDeletions(t *testing.T) {
	g, root := testutil.NewTestGarden(t)

	writeWorkFile(t, root, "keep.txt", "k")
	writeWorkFile(t, root, "gone.txt", "doomed\nfile")
	stageFiles(t, g, "keep.txt", "gone.txt")
	if _, err := g.CreateCommit("main", "first", "gardener"); err != nil {
		t.Fatal(err)
	}

	os.Remove(filepath.Join(root, "gone.txt"))
	stageFiles(t, g, "keep.txt")
	c, err := g.CreateCommit("main", "second", "gardener")
	if err != nil {
		t.Fatal(err)
	}

	pf, found := c.Content.Files["gone.txt"]
	if !found {
		t.Fatal("deleted file not captured")
	}
	_, adds, dels := pf.Summary()
	if adds != 0 || dels != 2 {
		t.Errorf("expected 2 deletions, got %d/%d", adds, dels)
	}

	// The new snapshot must not contain the deleted file.
	tree, err := pack.OpenID(g.Layout().ObjectDir(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, found := tree.Get("gone.txt"); found {
		t.Error("deleted file still in snapshot")
	}
}

func TestCreateCommitPerBranchBase(t *testing.T) {
	g, root := testutil.NewTestGarden(t)

	writeWorkFile(t, root, "a.txt", "main content")
	stageFiles(t, g, "a.txt")
	if _, err := g.CreateCommit("main", "on main", "gardener"); err != nil {
		t.Fatal(err)
	}

	if _, err := g.CreateBranch("feature"); err != nil {
		t.Fatal(err)
	}

	// A branch with no commits diffs against the blank pack, not main.
	stageFiles(t, g, "a.txt")
	c, err := g.CreateCommit("feature", "on feature", "gardener")
	if err != nil {
		t.Fatal(err)
	}
	pf := c.Content.Files["a.txt"]
	if pf.Previous != "" {
		t.Errorf("feature base should be blank, got %q", pf.Previous)
	}
}

func TestCreateCommitUnreadableStagedDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores permission bits")
	}

	g, root := testutil.NewTestGarden(t)

	writeWorkFile(t, root, "dir/a.txt", "content")
	stageFiles(t, g, "dir")

	full := filepath.Join(root, "dir")
	if err := os.Chmod(full, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(full, 0o755) })

	if _, err := g.CreateCommit("main", "m", "a"); err == nil {
		t.Error("an unreadable staged directory must fail the commit, not drop its files")
	}
}

func TestCreateCommitUnknownBranch(t *testing.T) {
	g, _ := testutil.NewTestGarden(t)

	if _, err := g.CreateCommit("nope", "m", "a"); !errors.Is(err, garden.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	g, root := testutil.NewTestGarden(t)

	writeWorkFile(t, root, "a.txt", "content")
	stageFiles(t, g, "a.txt")
	c, err := g.CreateCommit("main", "first", "gardener")
	if err != nil {
		t.Fatal(err)
	}

	if err := g.Serialize(false); err != nil {
		t.Fatalf("serialize: %v", err)
	}

	branchJSON := filepath.Join(g.Layout().BinDir(), "branches", "main", "branch.json")
	if _, err := os.Stat(branchJSON); err != nil {
		t.Fatalf("branch export missing: %v", err)
	}

	// Import into an initialized repository: only ids must be distinct, so
	// the incoming main coexists with the local one.
	layout2 := garden.NewLayout(t.TempDir())
	g2 := garden.New(layout2, testutil.NewTestStore(t), garden.NewNopLogger(), testutil.FixedClock(), garden.HashIDGenerator{})
	if err := g2.Init(); err != nil {
		t.Fatal(err)
	}
	if err := g2.Deserialize(g.Layout().BinDir(), false); err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	got, err := g2.Commit(c.ID)
	if err != nil {
		t.Fatalf("imported commit missing: %v", err)
	}
	if got.Message != "first" || got.Author != "gardener" {
		t.Errorf("imported commit mismatch: %+v", got)
	}

	branches, err := g2.Branches()
	if err != nil {
		t.Fatal(err)
	}
	if len(branches) != 2 {
		t.Errorf("expected the local and the imported main, got %v", branches)
	}

	t.Run("duplicate import rejected", func(t *testing.T) {
		if err := g2.Deserialize(g.Layout().BinDir(), false); !errors.Is(err, garden.ErrMustBeUnique) {
			t.Errorf("expected ErrMustBeUnique, got %v", err)
		}
	})
}

func TestRender(t *testing.T) {
	g, root := testutil.NewTestGarden(t)

	writeWorkFile(t, root, "a.txt", "<hello>\nworld")
	stageFiles(t, g, "a.txt")
	c, err := g.CreateCommit("main", "first", "gardener")
	if err != nil {
		t.Fatal(err)
	}

	if err := g.Render("main", false); err != nil {
		t.Fatalf("render: %v", err)
	}

	branchDir := filepath.Join(g.Layout().WebDir(), "main")
	for _, page := range []string{
		"index.html",
		filepath.Join(c.ID, "index.html"),
		filepath.Join(c.ID, "tree.html"),
		filepath.Join(c.ID, "files", "a.txt.html"),
	} {
		if _, err := os.Stat(filepath.Join(branchDir, page)); err != nil {
			t.Errorf("missing page %s: %v", page, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(branchDir, c.ID, "files", "a.txt.html"))
	if err != nil {
		t.Fatal(err)
	}
	if !contains(data, "&lt;hello&gt;") {
		t.Error("file page should escape source markup")
	}
	if contains(data, "<hello>") {
		t.Error("raw source markup leaked into file page")
	}

	t.Run("rebuilds from scratch", func(t *testing.T) {
		stale := filepath.Join(branchDir, "stale.html")
		if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := g.Render("main", false); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(stale); !os.IsNotExist(err) {
			t.Error("stale page survived a re-render")
		}
	})

	t.Run("unknown branch", func(t *testing.T) {
		if err := g.Render("nope", false); !errors.Is(err, garden.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func contains(data []byte, s string) bool {
	return strings.Contains(string(data), s)
}
