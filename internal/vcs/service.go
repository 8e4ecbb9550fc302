package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"gitsidian/internal/config"
	"gitsidian/internal/logging"
	"gitsidian/internal/vfs"
)

const defaultLogLimit = 100

// Service orchestrates version-control operations for one vault. The
// plumbing library never touches the host storage directly: it is handed
// the adapter once, through the billy bridge, at construction. Repositories
// are opened per call; no repository state is cached between operations.
type Service struct {
	adapter  *vfs.Adapter
	fs       *vfs.Bridge
	settings config.Settings
	logger   logging.Logger
}

// PushOptions carries the optional URL override and credentials for Push.
type PushOptions struct {
	URL  string
	Auth transport.AuthMethod
}

// PullOptions carries credentials for Pull.
type PullOptions struct {
	Auth transport.AuthMethod
}

// NewService builds a facade over the given adapter.
func NewService(adapter *vfs.Adapter, settings config.Settings, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{adapter: adapter, fs: vfs.NewBridge(adapter), settings: settings, logger: logger}
}

func (s *Service) storage() (*filesystem.Storage, error) {
	dot, err := s.fs.Chroot(git.GitDirName)
	if err != nil {
		return nil, fmt.Errorf("chroot %s: %w", git.GitDirName, err)
	}
	return filesystem.NewStorage(dot, cache.NewObjectLRUDefault()), nil
}

func (s *Service) open() (*git.Repository, error) {
	st, err := s.storage()
	if err != nil {
		return nil, err
	}
	repo, err := git.Open(st, s.fs)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return repo, nil
}

// Init creates an empty repository in the vault.
func (s *Service) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	st, err := s.storage()
	if err != nil {
		return err
	}
	if _, err := git.Init(st, s.fs); err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	return nil
}

// IsRepo reports whether the vault contains a repository.
func (s *Service) IsRepo(ctx context.Context) bool {
	kind, err := s.adapter.Kind(ctx, git.GitDirName)
	return err == nil && kind == vfs.KindDirectory
}

// Status classifies every changed path in the vault. The full tree is
// scanned on each call.
func (s *Service) Status(ctx context.Context) ([]FileStatus, error) {
	repo, err := s.open()
	if err != nil {
		return nil, err
	}
	rows, conflicts, err := buildMatrix(ctx, repo, s.adapter)
	if err != nil {
		return nil, fmt.Errorf("compute status matrix: %w", err)
	}
	statuses := make([]FileStatus, 0, len(rows)+len(conflicts))
	for _, row := range rows {
		if entry, emit := decodeMatrix(row, s.logger); emit {
			statuses = append(statuses, entry)
		}
	}
	for _, p := range conflicts {
		statuses = append(statuses, FileStatus{Path: p, Status: StatusConflicted})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Path < statuses[j].Path })
	return statuses, nil
}

// StageFile stages one path. An existing file is added to the index; a
// missing one is treated as a staged removal. The branch is chosen by an
// explicit kind lookup, never by probing with a call expected to fail.
func (s *Service) StageFile(ctx context.Context, path string) error {
	path = vfs.Normalize(path)
	repo, err := s.open()
	if err != nil {
		return err
	}
	kind, err := s.adapter.Kind(ctx, path)
	if err != nil {
		return err
	}
	switch kind {
	case vfs.KindFile:
		wt, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("worktree: %w", err)
		}
		if _, err := wt.Add(path); err != nil {
			return fmt.Errorf("stage %s: %w", path, err)
		}
		return nil
	case vfs.KindDirectory:
		return fmt.Errorf("cannot stage %q: path is a directory", path)
	default:
		idx, err := repo.Storer.Index()
		if err != nil {
			return fmt.Errorf("read index: %w", err)
		}
		if _, err := idx.Remove(path); err != nil {
			return fmt.Errorf("stage removal of %s: %w", path, err)
		}
		if err := repo.Storer.SetIndex(idx); err != nil {
			return fmt.Errorf("write index: %w", err)
		}
		return nil
	}
}

// UnstageFile resets one path's index entry to its HEAD version, or drops
// the entry entirely when HEAD does not carry the path (or does not exist
// yet).
func (s *Service) UnstageFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path = vfs.Normalize(path)
	repo, err := s.open()
	if err != nil {
		return err
	}
	idx, err := repo.Storer.Index()
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	if entry, ok := headEntry(repo, path); ok {
		if _, err := idx.Remove(path); err != nil && !errors.Is(err, index.ErrEntryNotFound) {
			return fmt.Errorf("unstage %s: %w", path, err)
		}
		e := idx.Add(path)
		e.Hash = entry.Hash
		e.Mode = entry.Mode
	} else {
		if _, err := idx.Remove(path); err != nil {
			if errors.Is(err, index.ErrEntryNotFound) {
				return nil
			}
			return fmt.Errorf("unstage %s: %w", path, err)
		}
	}
	if err := repo.Storer.SetIndex(idx); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// StageAll stages every change in the vault, additions and deletions alike.
func (s *Service) StageAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	repo, err := s.open()
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("stage all: %w", err)
	}
	return nil
}

// Commit records the staged changes and returns the new commit id.
func (s *Service) Commit(ctx context.Context, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	repo, err := s.open()
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("worktree: %w", err)
	}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: s.signature()})
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return hash.String(), nil
}

func (s *Service) signature() *object.Signature {
	name, email := s.settings.Author.Name, s.settings.Author.Email
	if name == "" {
		name = "Gitsidian User"
	}
	if email == "" {
		email = "user@gitsidian"
	}
	return &object.Signature{Name: name, Email: email, When: time.Now()}
}

// CurrentBranch names the checked-out branch, with explicit spellings for
// the unborn-HEAD and detached states.
func (s *Service) CurrentBranch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	repo, err := s.open()
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		if ref, rerr := repo.Storer.Reference(plumbing.HEAD); rerr == nil && ref.Type() == plumbing.SymbolicReference {
			return fmt.Sprintf("%s (no commits)", ref.Target().Short()), nil
		}
		return "main (no commits)", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return "HEAD (detached)", nil
}

// Branches lists local branches with upstream and ahead/behind counts.
func (s *Service) Branches(ctx context.Context) ([]BranchInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo, err := s.open()
	if err != nil {
		return nil, err
	}
	head, _ := repo.Head()
	cfg, err := repo.Config()
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	iter, err := repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer iter.Close()

	var branches []BranchInfo
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		info := BranchInfo{Name: name, IsHead: head != nil && head.Name() == ref.Name()}
		if bc, ok := cfg.Branches[name]; ok && bc.Remote != "" {
			merge := bc.Merge.Short()
			info.Upstream = bc.Remote + "/" + merge
			if up, uerr := repo.Reference(plumbing.NewRemoteReferenceName(bc.Remote, merge), true); uerr == nil {
				ahead, behind, aerr := aheadBehind(repo, ref.Hash(), up.Hash())
				if aerr != nil {
					s.logger.Warn("ahead/behind failed", "branch", name, "error", aerr)
				} else {
					info.Ahead, info.Behind = ahead, behind
				}
			}
		}
		branches = append(branches, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches, nil
}

// CreateBranch points a new branch at the current HEAD commit.
func (s *Service) CreateBranch(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	repo, err := s.open()
	if err != nil {
		return err
	}
	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("cannot create branch: no commits yet, make an initial commit first")
	}
	refName := plumbing.NewBranchReferenceName(name)
	if _, err := repo.Reference(refName, false); err == nil {
		return fmt.Errorf("branch %q already exists", name)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(refName, head.Hash())); err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	return nil
}

// CheckoutBranch switches the working tree to the named branch.
func (s *Service) CheckoutBranch(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	repo, err := s.open()
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(name)}); err != nil {
		return fmt.Errorf("checkout %s: %w", name, err)
	}
	return nil
}

// Log returns up to maxCount commits reachable from HEAD, newest first. An
// unborn HEAD yields an empty list.
func (s *Service) Log(ctx context.Context, maxCount int) ([]CommitInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo, err := s.open()
	if err != nil {
		return nil, err
	}
	if maxCount <= 0 {
		maxCount = defaultLogLimit
	}
	iter, err := repo.Log(&git.LogOptions{Order: git.LogOrderCommitterTime})
	if err != nil {
		return []CommitInfo{}, nil
	}
	defer iter.Close()

	commits := make([]CommitInfo, 0, maxCount)
	for len(commits) < maxCount {
		c, err := iter.Next()
		if err != nil {
			break
		}
		commits = append(commits, projectCommit(c))
	}
	return commits, nil
}

// FileLog returns the commits that changed one path, newest first. A commit
// counts when the path's blob id differs from the previous commit's, or when
// the path disappears (a deletion). Commits that cannot be read are skipped
// so a single bad object does not abort the whole walk.
func (s *Service) FileLog(ctx context.Context, path string, maxCount int) ([]CommitInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path = vfs.Normalize(path)
	repo, err := s.open()
	if err != nil {
		return nil, err
	}
	if maxCount <= 0 {
		maxCount = defaultLogLimit
	}
	iter, err := repo.Log(&git.LogOptions{Order: git.LogOrderCommitterTime})
	if err != nil {
		return []CommitInfo{}, nil
	}
	defer iter.Close()

	commits := make([]CommitInfo, 0, maxCount)
	for len(commits) < maxCount {
		c, err := iter.Next()
		if err != nil {
			break
		}
		cur, curOK, err := blobAt(c, path)
		if err != nil {
			s.logger.Warn("skip unreadable commit", "commit", c.Hash.String(), "error", err)
			continue
		}
		var prev plumbing.Hash
		prevOK := false
		if c.NumParents() > 0 {
			parent, err := c.Parent(0)
			if err != nil {
				s.logger.Warn("skip unreadable commit", "commit", c.Hash.String(), "error", err)
				continue
			}
			prev, prevOK, err = blobAt(parent, path)
			if err != nil {
				s.logger.Warn("skip unreadable commit", "commit", c.Hash.String(), "error", err)
				continue
			}
		}
		// The commit touched the path when the blob differs from the first
		// parent's, including additions and deletions.
		if curOK != prevOK || (curOK && cur != prev) {
			commits = append(commits, projectCommit(c))
		}
	}
	return commits, nil
}

func blobAt(c *object.Commit, path string) (plumbing.Hash, bool, error) {
	tree, err := c.Tree()
	if err != nil {
		return plumbing.ZeroHash, false, err
	}
	entry, err := tree.FindEntry(path)
	if err != nil {
		return plumbing.ZeroHash, false, nil
	}
	return entry.Hash, true, nil
}

// FileAtCommit returns one file's contents at a specific commit.
func (s *Service) FileAtCommit(ctx context.Context, commitID, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path = vfs.Normalize(path)
	repo, err := s.open()
	if err != nil {
		return "", err
	}
	c, err := repo.CommitObject(plumbing.NewHash(commitID))
	if err != nil {
		return "", fmt.Errorf("find commit %s: %w", commitID, err)
	}
	f, err := c.File(path)
	if err != nil {
		return "", fmt.Errorf("find %s at %s: %w", path, commitID, err)
	}
	content, err := f.Contents()
	if err != nil {
		return "", fmt.Errorf("read %s at %s: %w", path, commitID, err)
	}
	return content, nil
}

// Diff generates line diffs between HEAD and the working tree, staged and
// unstaged changes combined. A failure diffing one file skips that file
// rather than aborting the batch. Binary files are listed with no hunks.
func (s *Service) Diff(ctx context.Context) ([]FileDiff, error) {
	repo, err := s.open()
	if err != nil {
		return nil, err
	}
	rows, _, err := buildMatrix(ctx, repo, s.adapter)
	if err != nil {
		return nil, fmt.Errorf("compute status matrix: %w", err)
	}
	headHashes, err := headBlobHashes(repo)
	if err != nil {
		return nil, err
	}

	var diffs []FileDiff
	for _, row := range rows {
		entry, emit := decodeMatrix(row, s.logger)
		if !emit || entry.Status == StatusUntracked {
			continue
		}
		fd, err := s.diffOne(ctx, repo, row.path, headHashes)
		if err != nil {
			s.logger.Warn("skip file diff", "path", row.path, "error", err)
			continue
		}
		diffs = append(diffs, fd)
	}
	return diffs, nil
}

func (s *Service) diffOne(ctx context.Context, repo *git.Repository, path string, headHashes map[string]plumbing.Hash) (FileDiff, error) {
	var oldData, newData []byte
	if h, ok := headHashes[path]; ok {
		content, err := blobContent(repo, h)
		if err != nil {
			return FileDiff{}, fmt.Errorf("read HEAD blob: %w", err)
		}
		oldData = content
	}
	kind, err := s.adapter.Kind(ctx, path)
	if err != nil {
		return FileDiff{}, err
	}
	if kind == vfs.KindFile {
		newData, err = s.adapter.ReadFile(ctx, path)
		if err != nil {
			return FileDiff{}, err
		}
	}
	if bytes.IndexByte(oldData, 0) >= 0 || bytes.IndexByte(newData, 0) >= 0 {
		return FileDiff{Path: path}, nil
	}
	return FileDiff{Path: path, Hunks: Diff(string(oldData), string(newData))}, nil
}

// Push sends the current branch to the named remote. When the remote is not
// configured, the URL is taken from the push options or the vault settings;
// with no URL anywhere the call fails with a descriptive error rather than
// an errno.
func (s *Service) Push(ctx context.Context, remoteName string, opts PushOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if remoteName == "" {
		remoteName = s.settings.Remote.Name
	}
	if remoteName == "" {
		remoteName = "origin"
	}
	repo, err := s.open()
	if err != nil {
		return err
	}
	remote, err := repo.Remote(remoteName)
	switch {
	case err == nil:
		if len(remote.Config().URLs) == 0 && opts.URL == "" {
			return s.errNoRemoteURL(remoteName)
		}
	case errors.Is(err, git.ErrRemoteNotFound):
		url := opts.URL
		if url == "" {
			url = s.settings.Remote.URL
		}
		if url == "" {
			return s.errNoRemoteURL(remoteName)
		}
		if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: remoteName, URLs: []string{url}}); err != nil {
			return fmt.Errorf("create remote %s: %w", remoteName, err)
		}
	default:
		return fmt.Errorf("resolve remote %s: %w", remoteName, err)
	}
	err = repo.PushContext(ctx, &git.PushOptions{RemoteName: remoteName, Auth: opts.Auth})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("push to %s: %w", remoteName, err)
	}
	return nil
}

func (s *Service) errNoRemoteURL(remoteName string) error {
	return fmt.Errorf("no URL configured for remote %q: set remote.url in %s or pass one explicitly", remoteName, config.SettingsFileName)
}

// Pull fetches from the remote and fast-forwards the current branch. A
// diverged history is reported, not merged automatically.
func (s *Service) Pull(ctx context.Context, opts PullOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	remoteName := s.settings.Remote.Name
	if remoteName == "" {
		remoteName = "origin"
	}
	repo, err := s.open()
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("worktree: %w", err)
	}
	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: remoteName, Auth: opts.Auth})
	switch {
	case err == nil:
		return "Fast-forward merge", nil
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return "Already up to date", nil
	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return "Merge required (histories diverged)", nil
	default:
		return "", fmt.Errorf("pull from %s: %w", remoteName, err)
	}
}

// Conflicts lists merge conflicts with the three blob versions of each path.
func (s *Service) Conflicts(ctx context.Context) ([]ConflictFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo, err := s.open()
	if err != nil {
		return nil, err
	}
	idx, err := repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	byPath := map[string]*ConflictFile{}
	var order []string
	for _, e := range idx.Entries {
		if !isConflictStage(e.Stage) {
			continue
		}
		cf, ok := byPath[e.Name]
		if !ok {
			cf = &ConflictFile{Path: e.Name}
			byPath[e.Name] = cf
			order = append(order, e.Name)
		}
		content, err := blobContent(repo, e.Hash)
		if err != nil {
			s.logger.Warn("unreadable conflict blob", "path", e.Name, "stage", int(e.Stage), "error", err)
			continue
		}
		text := string(content)
		switch e.Stage {
		case index.AncestorMode:
			cf.Ancestor = &text
		case index.OurMode:
			cf.Ours = &text
		case index.TheirMode:
			cf.Theirs = &text
		}
	}
	sort.Strings(order)
	conflicts := make([]ConflictFile, 0, len(order))
	for _, p := range order {
		conflicts = append(conflicts, *byPath[p])
	}
	return conflicts, nil
}

func projectCommit(c *object.Commit) CommitInfo {
	id := c.Hash.String()
	return CommitInfo{
		ID:        id,
		ShortID:   id[:7],
		Message:   c.Message,
		Author:    c.Author.Name,
		Email:     c.Author.Email,
		Timestamp: c.Author.When.Unix(),
	}
}

// headEntry looks one path up in the HEAD tree.
func headEntry(repo *git.Repository, path string) (*object.TreeEntry, bool) {
	ref, err := repo.Head()
	if err != nil {
		return nil, false
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, false
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, false
	}
	entry, err := tree.FindEntry(path)
	if err != nil {
		return nil, false
	}
	return entry, true
}

func blobContent(repo *git.Repository, hash plumbing.Hash) ([]byte, error) {
	blob, err := repo.BlobObject(hash)
	if err != nil {
		return nil, err
	}
	r, err := blob.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// aheadBehind counts commits reachable from exactly one of the two tips.
func aheadBehind(repo *git.Repository, local, upstream plumbing.Hash) (int, int, error) {
	localSet, err := ancestorSet(repo, local)
	if err != nil {
		return 0, 0, err
	}
	upstreamSet, err := ancestorSet(repo, upstream)
	if err != nil {
		return 0, 0, err
	}
	ahead, behind := 0, 0
	for h := range localSet {
		if !upstreamSet[h] {
			ahead++
		}
	}
	for h := range upstreamSet {
		if !localSet[h] {
			behind++
		}
	}
	return ahead, behind, nil
}

func ancestorSet(repo *git.Repository, from plumbing.Hash) (map[plumbing.Hash]bool, error) {
	seen := map[plumbing.Hash]bool{}
	queue := []plumbing.Hash{from}
	for len(queue) > 0 {
		h := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if seen[h] {
			continue
		}
		seen[h] = true
		c, err := repo.CommitObject(h)
		if err != nil {
			return nil, err
		}
		queue = append(queue, c.ParentHashes...)
	}
	return seen, nil
}
