package vault

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitsidian/internal/config"
	"gitsidian/internal/logging"
	"gitsidian/internal/storage/catalog"
	"gitsidian/internal/vcs"
	"gitsidian/internal/vfs"
)

// Session is one open vault: the sandboxed filesystem surface plus the
// version-control facade bound to it. Sessions are cheap; all repository
// state lives on disk.
type Session struct {
	Vault    catalog.Vault
	Adapter  *vfs.Adapter
	VCS      *vcs.Service
	Settings config.Settings
}

// Manager opens vault directories, registers them in the catalog and keeps
// their filesystem watchers alive.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	catalog  *catalog.Repository
	watchers *watchers
	logger   logging.Logger
}

// watchers is the slice of the watcher service the manager needs; narrowed
// so tests can substitute a stub.
type watchers struct {
	ensure func(vaultID, root string)
	remove func(vaultID string)
}

// WatcherService is implemented by watchers.Service.
type WatcherService interface {
	Ensure(vaultID, root string)
	Remove(vaultID string)
}

func NewManager(cat *catalog.Repository, ws WatcherService, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	m := &Manager{
		sessions: map[string]*Session{},
		catalog:  cat,
		logger:   logger,
	}
	if ws != nil {
		m.watchers = &watchers{ensure: ws.Ensure, remove: ws.Remove}
	} else {
		m.watchers = &watchers{ensure: func(string, string) {}, remove: func(string) {}}
	}
	return m
}

// Open mounts the directory as a vault. The directory is registered in the
// catalog (reopening a known path keeps its stored id) and watched for
// changes. The vault does not need to be a repository yet; IsRepo on the
// session's VCS facade tells the caller.
func (m *Manager) Open(ctx context.Context, path string) (*Session, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve vault path: %w", err)
	}
	store, err := vfs.NewOSStore(abs)
	if err != nil {
		return nil, fmt.Errorf("open vault directory: %w", err)
	}
	adapter := vfs.NewAdapter(store)
	settings, err := config.Load(ctx, adapter)
	if err != nil {
		return nil, err
	}

	record, err := m.catalog.UpsertVault(ctx, catalog.UpsertVaultParams{
		ID:   uuid.NewString(),
		Path: abs,
		Name: filepath.Base(abs),
	})
	if err != nil {
		return nil, err
	}
	if err := m.catalog.MarkVaultOpened(ctx, record.ID, time.Now()); err != nil {
		m.logger.Warn("mark vault opened failed", "vaultID", record.ID, "error", err)
	}

	sessionLogger := m.logger.With("vaultID", record.ID)
	if settings.LogLevel != "" {
		sessionLogger = logging.WithMinLevel(sessionLogger, logging.ParseLevel(settings.LogLevel))
	}
	session := &Session{
		Vault:    record,
		Adapter:  adapter,
		VCS:      vcs.NewService(adapter, settings, sessionLogger),
		Settings: settings,
	}
	m.mu.Lock()
	m.sessions[record.ID] = session
	m.mu.Unlock()
	m.watchers.ensure(record.ID, abs)
	m.logger.Info("vault opened", "vaultID", record.ID, "path", abs)
	return session, nil
}

// Get returns the open session for a vault id.
func (m *Manager) Get(vaultID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[vaultID]
	return s, ok
}

// Close drops the session and its watcher. The catalog entry stays so the
// vault shows up in the recents list.
func (m *Manager) Close(vaultID string) {
	m.mu.Lock()
	_, ok := m.sessions[vaultID]
	delete(m.sessions, vaultID)
	m.mu.Unlock()
	if ok {
		m.watchers.remove(vaultID)
		m.logger.Info("vault closed", "vaultID", vaultID)
	}
}

// List returns the catalog, most recently opened first.
func (m *Manager) List(ctx context.Context) ([]catalog.Vault, error) {
	return m.catalog.ListVaults(ctx)
}

// Forget removes the vault from the catalog and closes any open session.
// The directory on disk is untouched.
func (m *Manager) Forget(ctx context.Context, vaultID string) error {
	m.Close(vaultID)
	return m.catalog.DeleteVault(ctx, vaultID)
}
