package testutil

import (
	"testing"

	"lily/internal/garden"
	"lily/internal/store"
)

// NewTestStore creates an in-memory SQLite metadata store with the schema
// applied. The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) garden.MetadataStore {
	t.Helper()

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		st.Close()
	})

	return st
}

// NewTestGarden creates a fully initialized repository rooted at a temp
// directory, wired with a fixed clock and sequential ids. Returns the engine
// and its working-tree root.
func NewTestGarden(t *testing.T) (*garden.Garden, string) {
	t.Helper()

	root := t.TempDir()
	layout := garden.NewLayout(root)
	st := NewTestStore(t)

	g := garden.New(layout, st, garden.NewNopLogger(), FixedClock(), NewStubIDGenerator())
	if err := g.Init(); err != nil {
		t.Fatalf("failed to init repository: %v", err)
	}

	return g, root
}
