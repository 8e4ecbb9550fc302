package watchers

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"gitsidian/internal/logging"
)

// Service watches vault directories and emits debounced change
// notifications so the UI layer can refresh status and diffs.
type Service struct {
	mu           sync.Mutex
	watchers     map[string]*fsnotify.Watcher
	notifyTimers map[string]*time.Timer
	onChange     func(vaultID string)
	logger       logging.Logger
	debounce     time.Duration
}

func New(emitter func(vaultID string)) *Service {
	return &Service{
		watchers:     map[string]*fsnotify.Watcher{},
		notifyTimers: map[string]*time.Timer{},
		onChange:     emitter,
		logger:       logging.Nop(),
		debounce:     200 * time.Millisecond,
	}
}

func (s *Service) SetEmitter(fn func(vaultID string)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Service) SetLogger(l logging.Logger) {
	s.mu.Lock()
	if l != nil {
		s.logger = l
	}
	s.mu.Unlock()
}

func (s *Service) SetDebounce(d time.Duration) {
	s.mu.Lock()
	if d > 0 {
		s.debounce = d
	}
	s.mu.Unlock()
}

// Ensure starts watching the vault's directory tree. Calling it again for a
// known vault re-adds the root, which picks up directories created while the
// watcher was degraded.
func (s *Service) Ensure(vaultID, root string) {
	root = strings.TrimSpace(root)
	if root == "" {
		return
	}
	s.mu.Lock()
	if w, ok := s.watchers[vaultID]; ok {
		s.mu.Unlock()
		if err := w.Add(root); err != nil {
			s.logger.Warn("watcher add root failed", "vaultID", vaultID, "path", root, "error", err)
			if info, statErr := os.Stat(root); statErr == nil && info.IsDir() {
				_ = addRecursive(w, root)
			}
		}
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("watcher create failed", "vaultID", vaultID, "error", err)
		return
	}
	s.watchers[vaultID] = watcher
	s.mu.Unlock()
	if err := addRecursive(watcher, root); err != nil {
		s.logger.Warn("watcher setup error", "vaultID", vaultID, "error", err)
	}
	go s.observe(vaultID, watcher)
}

func (s *Service) Remove(vaultID string) {
	s.mu.Lock()
	if t, ok := s.notifyTimers[vaultID]; ok {
		t.Stop()
		delete(s.notifyTimers, vaultID)
	}
	w, ok := s.watchers[vaultID]
	if ok {
		delete(s.watchers, vaultID)
	}
	s.mu.Unlock()
	if ok {
		_ = w.Close()
	}
}

func (s *Service) Stop() {
	s.mu.Lock()
	timers := make([]*time.Timer, 0, len(s.notifyTimers))
	for _, t := range s.notifyTimers {
		timers = append(timers, t)
	}
	ws := make([]*fsnotify.Watcher, 0, len(s.watchers))
	for _, w := range s.watchers {
		ws = append(ws, w)
	}
	s.notifyTimers = map[string]*time.Timer{}
	s.watchers = map[string]*fsnotify.Watcher{}
	s.mu.Unlock()
	for _, t := range timers {
		if t != nil {
			t.Stop()
		}
	}
	for _, w := range ws {
		if w != nil {
			_ = w.Close()
		}
	}
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if isIgnoredDir(d.Name()) {
			return filepath.SkipDir
		}
		_ = w.Add(path)
		return nil
	})
}

func (s *Service) observe(vaultID string, w *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if isIgnored(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = addRecursive(w, ev.Name)
				}
			}
			s.schedule(vaultID)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", "vaultID", vaultID, "error", err)
		}
	}
}

func isIgnoredDir(name string) bool {
	switch name {
	case ".git", ".obsidian", ".trash":
		return true
	}
	return false
}

func isIgnored(path string) bool {
	if path == "" {
		return false
	}
	sep := string(filepath.Separator)
	for _, dir := range []string{".git", ".obsidian", ".trash"} {
		if strings.Contains(path, sep+dir+sep) {
			return true
		}
	}
	return isIgnoredDir(filepath.Base(path))
}

func (s *Service) schedule(vaultID string) {
	s.mu.Lock()
	if t, ok := s.notifyTimers[vaultID]; ok {
		t.Stop()
	}
	var t *time.Timer
	delay := s.debounce
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	t = time.AfterFunc(delay, func() {
		// The emitter is read under the lock; SetEmitter can swap it while
		// a timer is pending.
		s.mu.Lock()
		emit := s.onChange
		s.mu.Unlock()
		if emit != nil {
			emit(vaultID)
		}
		s.mu.Lock()
		if cur, ok := s.notifyTimers[vaultID]; ok && cur == t {
			delete(s.notifyTimers, vaultID)
		}
		s.mu.Unlock()
	})
	s.notifyTimers[vaultID] = t
	s.mu.Unlock()
}
