package vcs

import (
	"context"
	"strings"
	"testing"

	"gitsidian/internal/config"
	"gitsidian/internal/logging"
	"gitsidian/internal/vfs"
)

func newTestService(t *testing.T) (*Service, *vfs.Adapter) {
	t.Helper()
	adapter := vfs.NewAdapter(vfs.NewMemStore())
	return NewService(adapter, config.Defaults(), logging.Nop()), adapter
}

// newCommittedService returns a service whose vault holds one committed
// file, notes/a.md, plus the commit's id.
func newCommittedService(t *testing.T) (*Service, *vfs.Adapter, string) {
	t.Helper()
	ctx := context.Background()
	svc, adapter := newTestService(t)
	if err := svc.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := adapter.WriteFile(ctx, "notes/a.md", []byte("hello\nworld\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := svc.StageFile(ctx, "notes/a.md"); err != nil {
		t.Fatalf("StageFile: %v", err)
	}
	hash, err := svc.Commit(ctx, "initial")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return svc, adapter, hash
}

func TestServiceInit(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	if svc.IsRepo(ctx) {
		t.Fatal("empty vault reported as a repository")
	}
	if err := svc.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !svc.IsRepo(ctx) {
		t.Fatal("vault not reported as a repository after Init")
	}
	branch, err := svc.CurrentBranch(ctx)
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "master (no commits)" {
		t.Fatalf("unexpected branch before first commit: %q", branch)
	}
	statuses, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) != 0 {
		t.Fatalf("expected clean status, got %+v", statuses)
	}
}

func TestServiceStageAndCommit(t *testing.T) {
	ctx := context.Background()
	svc, adapter := newTestService(t)
	if err := svc.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := adapter.WriteFile(ctx, "notes/a.md", []byte("hello\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	statuses, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Status != StatusUntracked || statuses[0].Staged {
		t.Fatalf("expected one untracked entry, got %+v", statuses)
	}

	if err := svc.StageFile(ctx, "notes/a.md"); err != nil {
		t.Fatalf("StageFile: %v", err)
	}
	statuses, err = svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Status != StatusAdded || !statuses[0].Staged {
		t.Fatalf("expected one staged addition, got %+v", statuses)
	}

	hash, err := svc.Commit(ctx, "initial")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(hash) != 40 {
		t.Fatalf("unexpected commit id %q", hash)
	}
	statuses, err = svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) != 0 {
		t.Fatalf("expected clean status after commit, got %+v", statuses)
	}

	branch, err := svc.CurrentBranch(ctx)
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "master" {
		t.Fatalf("unexpected branch after commit: %q", branch)
	}
}

func TestServiceModifyAndUnstage(t *testing.T) {
	ctx := context.Background()
	svc, adapter, _ := newCommittedService(t)

	if err := adapter.WriteFile(ctx, "notes/a.md", []byte("hello\nthere\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	statuses, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Status != StatusModified || statuses[0].Staged {
		t.Fatalf("expected one unstaged modification, got %+v", statuses)
	}

	if err := svc.StageAll(ctx); err != nil {
		t.Fatalf("StageAll: %v", err)
	}
	statuses, err = svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Status != StatusModified || !statuses[0].Staged {
		t.Fatalf("expected one staged modification, got %+v", statuses)
	}

	if err := svc.UnstageFile(ctx, "notes/a.md"); err != nil {
		t.Fatalf("UnstageFile: %v", err)
	}
	statuses, err = svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Status != StatusModified || statuses[0].Staged {
		t.Fatalf("expected modification back to unstaged, got %+v", statuses)
	}
}

func TestServiceStageDeletion(t *testing.T) {
	ctx := context.Background()
	svc, adapter, _ := newCommittedService(t)

	if err := adapter.Unlink(ctx, "notes/a.md"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	statuses, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Status != StatusDeleted || statuses[0].Staged {
		t.Fatalf("expected one unstaged deletion, got %+v", statuses)
	}

	// Staging a now-missing path records the removal in the index.
	if err := svc.StageFile(ctx, "notes/a.md"); err != nil {
		t.Fatalf("StageFile: %v", err)
	}
	statuses, err = svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Status != StatusDeleted || !statuses[0].Staged {
		t.Fatalf("expected one staged deletion, got %+v", statuses)
	}

	if _, err := svc.Commit(ctx, "remove a.md"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	statuses, err = svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) != 0 {
		t.Fatalf("expected clean status after deletion commit, got %+v", statuses)
	}
}

func TestServiceStageAllCoversAdditionsAndDeletions(t *testing.T) {
	ctx := context.Background()
	svc, adapter, _ := newCommittedService(t)

	if err := adapter.WriteFile(ctx, "notes/new.md", []byte("fresh\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := adapter.Unlink(ctx, "notes/a.md"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if err := svc.StageAll(ctx); err != nil {
		t.Fatalf("StageAll: %v", err)
	}

	statuses, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 entries, got %+v", statuses)
	}
	if statuses[0].Path != "notes/a.md" || statuses[0].Status != StatusDeleted || !statuses[0].Staged {
		t.Fatalf("expected staged deletion for notes/a.md, got %+v", statuses[0])
	}
	if statuses[1].Path != "notes/new.md" || statuses[1].Status != StatusAdded || !statuses[1].Staged {
		t.Fatalf("expected staged addition for notes/new.md, got %+v", statuses[1])
	}

	if _, err := svc.Commit(ctx, "swap notes"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	statuses, err = svc.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) != 0 {
		t.Fatalf("expected clean status after commit, got %+v", statuses)
	}
}

func TestServiceLogAndFileHistory(t *testing.T) {
	ctx := context.Background()
	svc, adapter, first := newCommittedService(t)

	if err := adapter.WriteFile(ctx, "notes/a.md", []byte("hello\nworld\nagain\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := adapter.WriteFile(ctx, "notes/b.md", []byte("other\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := svc.StageAll(ctx); err != nil {
		t.Fatalf("StageAll: %v", err)
	}
	second, err := svc.Commit(ctx, "expand notes")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	commits, err := svc.Log(ctx, 10)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(commits))
	}
	if commits[0].ID != second || commits[1].ID != first {
		t.Fatalf("unexpected log order: %+v", commits)
	}
	if commits[0].ShortID != second[:7] || commits[0].Message != "expand notes" {
		t.Fatalf("unexpected commit projection: %+v", commits[0])
	}
	if commits[0].Author != "Gitsidian User" || commits[0].Email != "user@gitsidian" {
		t.Fatalf("unexpected default signature: %+v", commits[0])
	}

	// b.md was introduced in the second commit only.
	history, err := svc.FileLog(ctx, "notes/b.md", 10)
	if err != nil {
		t.Fatalf("FileLog: %v", err)
	}
	if len(history) != 1 || history[0].ID != second {
		t.Fatalf("unexpected file history for b.md: %+v", history)
	}

	history, err = svc.FileLog(ctx, "notes/a.md", 10)
	if err != nil {
		t.Fatalf("FileLog: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries for a.md, got %+v", history)
	}

	content, err := svc.FileAtCommit(ctx, first, "notes/a.md")
	if err != nil {
		t.Fatalf("FileAtCommit: %v", err)
	}
	if content != "hello\nworld\n" {
		t.Fatalf("unexpected historical content %q", content)
	}
	if _, err := svc.FileAtCommit(ctx, first, "notes/b.md"); err == nil {
		t.Fatal("expected an error for a path absent from the commit")
	}
}

func TestServiceDiff(t *testing.T) {
	ctx := context.Background()
	svc, adapter, _ := newCommittedService(t)

	if err := adapter.WriteFile(ctx, "notes/a.md", []byte("hello\nthere\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := adapter.WriteFile(ctx, "untracked.md", []byte("new\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	diffs, err := svc.Diff(ctx)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	// Untracked files are not part of the HEAD-to-worktree diff.
	if len(diffs) != 1 || diffs[0].Path != "notes/a.md" {
		t.Fatalf("expected a single diff for notes/a.md, got %+v", diffs)
	}
	if len(diffs[0].Hunks) == 0 {
		t.Fatalf("expected hunks for a modified file, got %+v", diffs[0])
	}
	var sawRemoved, sawAdded bool
	for _, h := range diffs[0].Hunks {
		for _, l := range h.Lines {
			if l.Origin == '-' && l.Content == "world" {
				sawRemoved = true
			}
			if l.Origin == '+' && l.Content == "there" {
				sawAdded = true
			}
		}
	}
	if !sawRemoved || !sawAdded {
		t.Fatalf("diff did not carry the expected line changes: %+v", diffs[0].Hunks)
	}
}

func TestServiceBranches(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	if err := svc.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := svc.CreateBranch(ctx, "feature"); err == nil {
		t.Fatal("expected branch creation to fail before the first commit")
	}

	svc, _, _ = newCommittedService(t)
	if err := svc.CreateBranch(ctx, "feature"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := svc.CreateBranch(ctx, "feature"); err == nil {
		t.Fatal("expected duplicate branch creation to fail")
	}

	branches, err := svc.Branches(ctx)
	if err != nil {
		t.Fatalf("Branches: %v", err)
	}
	if len(branches) != 2 {
		t.Fatalf("expected 2 branches, got %+v", branches)
	}
	if branches[0].Name != "feature" || branches[0].IsHead {
		t.Fatalf("unexpected branch entry: %+v", branches[0])
	}
	if branches[1].Name != "master" || !branches[1].IsHead {
		t.Fatalf("unexpected branch entry: %+v", branches[1])
	}

	if err := svc.CheckoutBranch(ctx, "feature"); err != nil {
		t.Fatalf("CheckoutBranch: %v", err)
	}
	branch, err := svc.CurrentBranch(ctx)
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "feature" {
		t.Fatalf("unexpected branch after checkout: %q", branch)
	}
}

func TestServiceConflictsOnCleanRepo(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newCommittedService(t)
	conflicts, err := svc.Conflicts(ctx)
	if err != nil {
		t.Fatalf("Conflicts: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %+v", conflicts)
	}
}

func TestServicePushWithoutRemote(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newCommittedService(t)
	err := svc.Push(ctx, "origin", PushOptions{})
	if err == nil {
		t.Fatal("expected push without a configured remote to fail")
	}
	if !strings.Contains(err.Error(), "origin") || !strings.Contains(err.Error(), config.SettingsFileName) {
		t.Fatalf("error should name the remote and the settings file: %v", err)
	}
}
