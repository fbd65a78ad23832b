package garden

// MetadataStore is the persistence boundary for branches and commits.
// Implementations return ErrNotFound for missing rows, ErrMustBeUnique for
// duplicate ids and ErrValue for rows whose content cannot be decoded.
type MetadataStore interface {
	// InsertBranch records a new branch.
	InsertBranch(b Branch) error

	// Branch returns a branch by id.
	Branch(id string) (Branch, error)

	// BranchByName returns a branch by its unique name.
	BranchByName(name string) (Branch, error)

	// Branches returns all branches, newest first.
	Branches() ([]Branch, error)

	// InsertCommit records a new commit.
	InsertCommit(c Commit) error

	// Commit returns a commit by id.
	Commit(id string) (Commit, error)

	// LatestCommit returns the newest commit on the named branch.
	LatestCommit(branch string) (Commit, error)

	// Commits returns all commits on the named branch, newest first.
	Commits(branch string) ([]Commit, error)

	// Close releases the underlying database.
	Close() error
}
