package garden

import "lily/internal/patch"

// Branch is a named line of history. Timestamp is milliseconds since the
// Unix epoch, matching the commit timestamps.
type Branch struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
}

// Commit is one recorded snapshot. Content is the patch against the previous
// commit on the same branch; the authoritative file state lives in the pack
// stored under the commit's id.
type Commit struct {
	ID        string      `json:"id"`
	Branch    string      `json:"branch"`
	Timestamp int64       `json:"timestamp"`
	Author    string      `json:"author"`
	Message   string      `json:"message"`
	Content   patch.Patch `json:"content"`
}

// BranchPointer names the default branch and the one currently checked out.
type BranchPointer struct {
	Default string `toml:"default"`
	Current string `toml:"current"`
}

// Info is the repository pointer file stored as TOML under the metadata
// directory. It is the only mutable state outside the database.
type Info struct {
	Branch BranchPointer `toml:"branch"`
	Remote string        `toml:"remote"`
}

// DefaultInfo is the Info written by Init for a fresh repository.
func DefaultInfo() Info {
	return Info{
		Branch: BranchPointer{Default: DefaultBranch, Current: DefaultBranch},
	}
}

// DefaultBranch is the branch created at init time.
const DefaultBranch = "main"
