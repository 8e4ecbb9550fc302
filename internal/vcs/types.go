package vcs

// FileStatusKind classifies one path's change relative to HEAD and the index.
type FileStatusKind string

const (
	StatusUntracked  FileStatusKind = "untracked"
	StatusAdded      FileStatusKind = "added"
	StatusModified   FileStatusKind = "modified"
	StatusDeleted    FileStatusKind = "deleted"
	StatusRenamed    FileStatusKind = "renamed"
	StatusConflicted FileStatusKind = "conflicted"
)

// FileStatus is one entry of the working-tree status report. Computed per
// call; never persisted.
type FileStatus struct {
	Path   string         `json:"path"`
	Status FileStatusKind `json:"status"`
	Staged bool           `json:"staged"`
}

// BranchInfo summarizes one local branch.
type BranchInfo struct {
	Name     string `json:"name"`
	IsHead   bool   `json:"isHead"`
	Upstream string `json:"upstream,omitempty"`
	Ahead    int    `json:"ahead"`
	Behind   int    `json:"behind"`
}

// CommitInfo is a read-only projection of one commit.
type CommitInfo struct {
	ID        string `json:"id"`
	ShortID   string `json:"shortId"`
	Message   string `json:"message"`
	Author    string `json:"author"`
	Email     string `json:"email"`
	Timestamp int64  `json:"timestamp"`
}

// DiffLine is one line of a hunk. Origin is ' ' (context), '-' (removed)
// or '+' (added).
type DiffLine struct {
	Content string `json:"content"`
	Origin  byte   `json:"origin"`
}

// DiffHunk is a contiguous block of line changes, 1-based line numbering.
type DiffHunk struct {
	OldStart int        `json:"oldStart"`
	OldLines int        `json:"oldLines"`
	NewStart int        `json:"newStart"`
	NewLines int        `json:"newLines"`
	Lines    []DiffLine `json:"lines"`
}

// FileDiff is the hunk list for one changed file.
type FileDiff struct {
	Path  string     `json:"path"`
	Hunks []DiffHunk `json:"hunks"`
}

// ConflictFile carries the three sides of a merge conflict. Nil pointers
// mean that side has no blob (e.g. add/add conflicts have no ancestor).
type ConflictFile struct {
	Path     string  `json:"path"`
	Ours     *string `json:"ours"`
	Theirs   *string `json:"theirs"`
	Ancestor *string `json:"ancestor"`
}
