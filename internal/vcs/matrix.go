package vcs

import (
	"context"
	"errors"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"

	"gitsidian/internal/logging"
	"gitsidian/internal/vfs"
)

// The status matrix encodes one path's presence across the three trees:
//
//	head    0 absent from HEAD, 1 present
//	workdir 0 absent, 1 identical to HEAD, 2 changed from HEAD (or new)
//	stage   0 absent from index, 1 matches HEAD, 2 matches workdir,
//	        3 differs from both (changed again since staging)
type matrixRow struct {
	path    string
	head    int
	workdir int
	stage   int
}

// decodeMatrix maps one matrix row to its user-facing classification. The
// second return is false for rows that are not emitted (fully unmodified
// paths). The decoder is total over all 24 combinations: combinations with
// no defined meaning fall through to a generic modified classification.
func decodeMatrix(row matrixRow, logger logging.Logger) (FileStatus, bool) {
	entry := FileStatus{Path: row.path}
	switch {
	case row.head == 0 && row.workdir == 2 && row.stage == 0:
		entry.Status = StatusUntracked
	case row.head == 0 && row.workdir == 2 && (row.stage == 2 || row.stage == 3):
		// stage==3 means the file changed again after staging; it is still
		// reported as a staged addition.
		entry.Status = StatusAdded
		entry.Staged = true
	case row.head == 1 && row.workdir == 1 && row.stage == 1:
		return FileStatus{}, false
	case row.head == 1 && row.workdir == 2 && row.stage >= 1:
		entry.Status = StatusModified
		entry.Staged = row.stage != 1
	case row.head == 1 && row.workdir == 0:
		// stage==1 means the index still matches HEAD, so the deletion has
		// not been staged; anything else means the index no longer carries
		// the HEAD version.
		entry.Status = StatusDeleted
		entry.Staged = row.stage != 1
	case row.head == 1 && row.workdir == 1 && row.stage == 0:
		// A tracked, unmodified file missing from the index. No normal
		// sequence of operations produces this; make it visible instead of
		// silently reusing the fallback.
		logger.Warn("unusual status matrix row", "path", row.path, "head", row.head, "workdir", row.workdir, "stage", row.stage)
		entry.Status = StatusModified
		entry.Staged = false
	default:
		entry.Status = StatusModified
		entry.Staged = row.stage != 0 && row.stage != 1
	}
	return entry, true
}

// buildMatrix computes the matrix rows for every path known to HEAD, the
// index or the working tree. Worktree blobs are hashed with the plumbing
// object hash so comparisons match committed blob ids exactly. Paths with
// conflict entries in the index are returned separately.
func buildMatrix(ctx context.Context, repo *git.Repository, adapter *vfs.Adapter) ([]matrixRow, []string, error) {
	headHashes, err := headBlobHashes(repo)
	if err != nil {
		return nil, nil, err
	}

	stageHashes := map[string]plumbing.Hash{}
	conflictSet := map[string]bool{}
	idx, err := repo.Storer.Index()
	if err == nil {
		for _, e := range idx.Entries {
			if isConflictStage(e.Stage) {
				conflictSet[e.Name] = true
				continue
			}
			stageHashes[e.Name] = e.Hash
		}
	}

	workdirHashes, err := worktreeBlobHashes(ctx, adapter)
	if err != nil {
		return nil, nil, err
	}

	paths := map[string]bool{}
	for p := range headHashes {
		paths[p] = true
	}
	for p := range stageHashes {
		paths[p] = true
	}
	for p := range workdirHashes {
		paths[p] = true
	}

	rows := make([]matrixRow, 0, len(paths))
	conflicts := make([]string, 0, len(conflictSet))
	for p := range paths {
		if conflictSet[p] {
			continue
		}
		headHash, inHead := headHashes[p]
		wtHash, inWorkdir := workdirHashes[p]
		stageHash, inStage := stageHashes[p]

		row := matrixRow{path: p}
		if inHead {
			row.head = 1
		}
		switch {
		case !inWorkdir:
			row.workdir = 0
		case inHead && wtHash == headHash:
			row.workdir = 1
		default:
			row.workdir = 2
		}
		switch {
		case !inStage:
			row.stage = 0
		case inHead && stageHash == headHash:
			row.stage = 1
		case inWorkdir && stageHash == wtHash:
			row.stage = 2
		default:
			row.stage = 3
		}
		rows = append(rows, row)
	}
	for p := range conflictSet {
		conflicts = append(conflicts, p)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].path < rows[j].path })
	sort.Strings(conflicts)
	return rows, conflicts, nil
}

// isConflictStage reports whether an index entry belongs to a merge
// conflict. Regular entries carry stage bits of zero.
func isConflictStage(s index.Stage) bool {
	switch s {
	case index.AncestorMode, index.OurMode, index.TheirMode:
		return true
	}
	return false
}

// headBlobHashes maps every file in the HEAD tree to its blob id. An unborn
// HEAD yields an empty map.
func headBlobHashes(repo *git.Repository) (map[string]plumbing.Hash, error) {
	hashes := map[string]plumbing.Hash{}
	ref, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return hashes, nil
	}
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if err != nil {
			break
		}
		if entry.Mode == filemode.Dir {
			continue
		}
		hashes[name] = entry.Hash
	}
	return hashes, nil
}

// worktreeBlobHashes scans the full working tree through the adapter and
// hashes every file as a blob. The scan is repeated on every status call;
// nothing is cached between calls.
func worktreeBlobHashes(ctx context.Context, adapter *vfs.Adapter) (map[string]plumbing.Hash, error) {
	hashes := map[string]plumbing.Hash{}
	var walk func(dir string) error
	walk = func(dir string) error {
		names, err := adapter.ReadDir(ctx, dir)
		if err != nil {
			return err
		}
		for _, name := range names {
			if dir == "" && name == git.GitDirName {
				continue
			}
			full := vfs.Join(dir, name)
			kind, err := adapter.Kind(ctx, full)
			if err != nil {
				return err
			}
			switch kind {
			case vfs.KindDirectory:
				if err := walk(full); err != nil {
					return err
				}
			case vfs.KindFile:
				data, err := adapter.ReadFile(ctx, full)
				if err != nil {
					return err
				}
				hashes[full] = plumbing.ComputeHash(plumbing.BlobObject, data)
			}
		}
		return nil
	}
	if err := walk(""); err != nil {
		return nil, err
	}
	return hashes, nil
}
