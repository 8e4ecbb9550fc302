package gitsidian

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"gitsidian/internal/logging"
	"gitsidian/internal/storage"
	"gitsidian/internal/storage/catalog"
	"gitsidian/internal/storage/migrate"
	"gitsidian/internal/storage/sqlite"
	"gitsidian/internal/vault"
	"gitsidian/internal/vcs"
	"gitsidian/internal/vfs"
	"gitsidian/internal/watchers"
)

const databaseName = "catalog.db"

// App is the embedding surface: it owns the vault catalog database, the
// watcher service and the open vault sessions, and exposes one method per
// operation a frontend needs.
type App struct {
	db       *sql.DB
	vaults   *vault.Manager
	watchers *watchers.Service
	logger   logging.Logger
	dataDir  string
}

// Options configures App construction. Zero values pick the platform data
// directory, a no-op logger and no change notifications.
type Options struct {
	DataDir string
	Logger  logging.Logger

	// OnVaultChanged is invoked, debounced, when files inside an open vault
	// change on disk.
	OnVaultChanged func(vaultID string)
}

// VaultDTO is the catalog record plus the repository flag the UI needs to
// decide between an "initialize" and a "status" view.
type VaultDTO struct {
	catalog.Vault
	IsGitRepo bool `json:"isGitRepo"`
}

func New(opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	dataDir := opts.DataDir
	if dataDir == "" {
		var err error
		dataDir, err = storage.DataDir()
		if err != nil {
			return nil, err
		}
	}
	db, err := sqlite.Open(filepath.Join(dataDir, databaseName))
	if err != nil {
		return nil, err
	}
	if err := migrate.Up(db); err != nil {
		db.Close()
		return nil, err
	}

	onChange := opts.OnVaultChanged
	if onChange == nil {
		onChange = func(string) {}
	}
	ws := watchers.New(onChange)
	ws.SetLogger(logger)

	return &App{
		db:       db,
		vaults:   vault.NewManager(catalog.NewRepository(db), ws, logger),
		watchers: ws,
		logger:   logger,
		dataDir:  dataDir,
	}, nil
}

// Close stops the watchers and releases the catalog database.
func (a *App) Close() error {
	a.watchers.Stop()
	return a.db.Close()
}

// ListVaults returns the catalog, most recently opened first.
func (a *App) ListVaults(ctx context.Context) ([]catalog.Vault, error) {
	return a.vaults.List(ctx)
}

// OpenVault mounts a directory as a vault and registers it in the catalog.
func (a *App) OpenVault(ctx context.Context, path string) (VaultDTO, error) {
	session, err := a.vaults.Open(ctx, path)
	if err != nil {
		return VaultDTO{}, err
	}
	return VaultDTO{Vault: session.Vault, IsGitRepo: session.VCS.IsRepo(ctx)}, nil
}

// CloseVault drops the open session; the catalog entry stays.
func (a *App) CloseVault(vaultID string) {
	a.vaults.Close(vaultID)
}

// ForgetVault removes the vault from the catalog without touching disk.
func (a *App) ForgetVault(ctx context.Context, vaultID string) error {
	return a.vaults.Forget(ctx, vaultID)
}

func (a *App) session(vaultID string) (*vault.Session, error) {
	s, ok := a.vaults.Get(vaultID)
	if !ok {
		return nil, fmt.Errorf("vault %s is not open", vaultID)
	}
	return s, nil
}

// ReadNote returns a file's contents from an open vault.
func (a *App) ReadNote(ctx context.Context, vaultID, path string) (string, error) {
	s, err := a.session(vaultID)
	if err != nil {
		return "", err
	}
	data, err := s.Adapter.ReadFile(ctx, path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteNote writes a file, creating parent directories as needed.
func (a *App) WriteNote(ctx context.Context, vaultID, path, content string) error {
	s, err := a.session(vaultID)
	if err != nil {
		return err
	}
	return s.Adapter.WriteFile(ctx, path, []byte(content))
}

// DeleteNote removes one file.
func (a *App) DeleteNote(ctx context.Context, vaultID, path string) error {
	s, err := a.session(vaultID)
	if err != nil {
		return err
	}
	return s.Adapter.Unlink(ctx, path)
}

// RenameNote moves a file within the vault.
func (a *App) RenameNote(ctx context.Context, vaultID, oldPath, newPath string) error {
	s, err := a.session(vaultID)
	if err != nil {
		return err
	}
	return s.Adapter.Rename(ctx, oldPath, newPath)
}

// ListDir returns the sorted entry names of a directory.
func (a *App) ListDir(ctx context.Context, vaultID, path string) ([]string, error) {
	s, err := a.session(vaultID)
	if err != nil {
		return nil, err
	}
	return s.Adapter.ReadDir(ctx, path)
}

// MakeDir creates a directory, with parents when recursive is set.
func (a *App) MakeDir(ctx context.Context, vaultID, path string, recursive bool) error {
	s, err := a.session(vaultID)
	if err != nil {
		return err
	}
	return s.Adapter.Mkdir(ctx, path, vfs.MkdirOptions{Recursive: recursive})
}

// RemoveDir deletes a directory, with contents when recursive is set.
func (a *App) RemoveDir(ctx context.Context, vaultID, path string, recursive bool) error {
	s, err := a.session(vaultID)
	if err != nil {
		return err
	}
	return s.Adapter.Rmdir(ctx, path, vfs.RmdirOptions{Recursive: recursive})
}

// StatNote returns file metadata, or a not-found error for absent paths.
func (a *App) StatNote(ctx context.Context, vaultID, path string) (vfs.Stat, error) {
	s, err := a.session(vaultID)
	if err != nil {
		return vfs.Stat{}, err
	}
	return s.Adapter.Stat(ctx, path)
}

// InitRepo creates an empty repository inside the vault.
func (a *App) InitRepo(ctx context.Context, vaultID string) error {
	s, err := a.session(vaultID)
	if err != nil {
		return err
	}
	return s.VCS.Init(ctx)
}

// GitStatus classifies every changed path in the vault.
func (a *App) GitStatus(ctx context.Context, vaultID string) ([]vcs.FileStatus, error) {
	s, err := a.session(vaultID)
	if err != nil {
		return nil, err
	}
	return s.VCS.Status(ctx)
}

// StageFile stages one path, including deletions of missing paths.
func (a *App) StageFile(ctx context.Context, vaultID, path string) error {
	s, err := a.session(vaultID)
	if err != nil {
		return err
	}
	return s.VCS.StageFile(ctx, path)
}

// UnstageFile resets one path's index entry to its HEAD version.
func (a *App) UnstageFile(ctx context.Context, vaultID, path string) error {
	s, err := a.session(vaultID)
	if err != nil {
		return err
	}
	return s.VCS.UnstageFile(ctx, path)
}

// StageAll stages every change in the vault.
func (a *App) StageAll(ctx context.Context, vaultID string) error {
	s, err := a.session(vaultID)
	if err != nil {
		return err
	}
	return s.VCS.StageAll(ctx)
}

// Commit records the staged changes and returns the new commit id.
func (a *App) Commit(ctx context.Context, vaultID, message string) (string, error) {
	s, err := a.session(vaultID)
	if err != nil {
		return "", err
	}
	return s.VCS.Commit(ctx, message)
}

// CurrentBranch names the checked-out branch.
func (a *App) CurrentBranch(ctx context.Context, vaultID string) (string, error) {
	s, err := a.session(vaultID)
	if err != nil {
		return "", err
	}
	return s.VCS.CurrentBranch(ctx)
}

// Branches lists local branches with tracking information.
func (a *App) Branches(ctx context.Context, vaultID string) ([]vcs.BranchInfo, error) {
	s, err := a.session(vaultID)
	if err != nil {
		return nil, err
	}
	return s.VCS.Branches(ctx)
}

// CreateBranch points a new branch at HEAD.
func (a *App) CreateBranch(ctx context.Context, vaultID, name string) error {
	s, err := a.session(vaultID)
	if err != nil {
		return err
	}
	return s.VCS.CreateBranch(ctx, name)
}

// CheckoutBranch switches the vault to the named branch.
func (a *App) CheckoutBranch(ctx context.Context, vaultID, name string) error {
	s, err := a.session(vaultID)
	if err != nil {
		return err
	}
	return s.VCS.CheckoutBranch(ctx, name)
}

// Log returns up to maxCount commits from HEAD, newest first.
func (a *App) Log(ctx context.Context, vaultID string, maxCount int) ([]vcs.CommitInfo, error) {
	s, err := a.session(vaultID)
	if err != nil {
		return nil, err
	}
	return s.VCS.Log(ctx, maxCount)
}

// FileLog returns the commits that changed one path.
func (a *App) FileLog(ctx context.Context, vaultID, path string, maxCount int) ([]vcs.CommitInfo, error) {
	s, err := a.session(vaultID)
	if err != nil {
		return nil, err
	}
	return s.VCS.FileLog(ctx, path, maxCount)
}

// FileAtCommit returns one file's contents at a specific commit.
func (a *App) FileAtCommit(ctx context.Context, vaultID, commitID, path string) (string, error) {
	s, err := a.session(vaultID)
	if err != nil {
		return "", err
	}
	return s.VCS.FileAtCommit(ctx, commitID, path)
}

// DiffAll returns line diffs between HEAD and the working tree.
func (a *App) DiffAll(ctx context.Context, vaultID string) ([]vcs.FileDiff, error) {
	s, err := a.session(vaultID)
	if err != nil {
		return nil, err
	}
	return s.VCS.Diff(ctx)
}

// Push sends the current branch to the configured remote.
func (a *App) Push(ctx context.Context, vaultID, remoteName, remoteURL string) error {
	s, err := a.session(vaultID)
	if err != nil {
		return err
	}
	return s.VCS.Push(ctx, remoteName, vcs.PushOptions{URL: remoteURL})
}

// Pull fetches and fast-forwards the current branch, returning a short
// human-readable outcome.
func (a *App) Pull(ctx context.Context, vaultID string) (string, error) {
	s, err := a.session(vaultID)
	if err != nil {
		return "", err
	}
	return s.VCS.Pull(ctx, vcs.PullOptions{})
}

// Conflicts lists merge conflicts with the three versions of each path.
func (a *App) Conflicts(ctx context.Context, vaultID string) ([]vcs.ConflictFile, error) {
	s, err := a.session(vaultID)
	if err != nil {
		return nil, err
	}
	return s.VCS.Conflicts(ctx)
}
