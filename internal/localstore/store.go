// Package localstore owns the on-device persisted copy of the user's
// folders, subscribed folders, quick-access tree and scalar flags. Every
// write is shape-validated first; a failed validation leaves the previous
// snapshot intact.
package localstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/promptdeck/promptdeck/internal/model"
)

// SchemaVersion tags the persisted snapshot layout.
const SchemaVersion = 2

type Logger interface {
	Printf(format string, args ...any)
}

type Options struct {
	Backend StateBackend
	Logger  Logger
}

// Manager is the single shared mutable resource of the sync engine. All
// writers go through its validating setters.
type Manager struct {
	mu          sync.RWMutex
	backend     StateBackend
	logger      Logger
	state       persistedState
	initialized bool
}

func NewManager(opts Options) *Manager {
	backend := opts.Backend
	if backend == nil {
		backend = NewInMemoryStateBackend()
	}
	return &Manager{
		backend: backend,
		logger:  opts.Logger,
		state: persistedState{
			SchemaVersion:      SchemaVersion,
			Folders:            []model.Folder{},
			SubscribedFolders:  []model.SubscribedFolder{},
			QuickAccessFolders: []model.QuickAccessFolder{},
		},
	}
}

// Initialize loads the persisted snapshot and seeds the schema version tag.
// It runs once per process lifetime; later calls are no-ops.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return nil
	}
	snapshot, err := m.backend.Load()
	if err != nil {
		return fmt.Errorf("load local state: %w", err)
	}
	if snapshot != nil {
		normalizeLoadedState(snapshot)
		if err := validateState(snapshot); err != nil {
			return fmt.Errorf("persisted state rejected: %w", err)
		}
		m.state = *snapshot
	} else {
		m.logf("no local snapshot yet, starting empty")
	}
	m.state.SchemaVersion = SchemaVersion
	if err := m.backend.Save(&m.state); err != nil {
		return fmt.Errorf("seed local state: %w", err)
	}
	m.initialized = true
	return nil
}

// Reload re-reads the snapshot from the backend, used when the backing file
// changed under us. Invalid or unreadable content keeps the current
// in-memory snapshot.
func (m *Manager) Reload() error {
	snapshot, err := m.backend.Load()
	if err != nil {
		return fmt.Errorf("reload local state: %w", err)
	}
	if snapshot == nil {
		return nil
	}
	normalizeLoadedState(snapshot)
	if err := validateState(snapshot); err != nil {
		return fmt.Errorf("reloaded state rejected: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot.SchemaVersion = SchemaVersion
	m.state = *snapshot
	return nil
}

func (m *Manager) Folders() []model.Folder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneFolders(m.state.Folders)
}

func (m *Manager) SetFolders(folders []model.Folder) error {
	folders = cloneFolders(folders)
	if err := validateFolders(folders); err != nil {
		return fmt.Errorf("%w: %v", model.ErrValidationFailed, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.state
	next.Folders = folders
	return m.commitLocked(next)
}

func (m *Manager) SubscribedFolders() []model.SubscribedFolder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneSubscribedFolders(m.state.SubscribedFolders)
}

func (m *Manager) SetSubscribedFolders(folders []model.SubscribedFolder) error {
	folders = cloneSubscribedFolders(folders)
	if err := validateSubscribedFolders(folders); err != nil {
		return fmt.Errorf("%w: %v", model.ErrValidationFailed, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.state
	next.SubscribedFolders = folders
	return m.commitLocked(next)
}

func (m *Manager) QuickAccessFolders() []model.QuickAccessFolder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneQuickAccessFolders(m.state.QuickAccessFolders)
}

func (m *Manager) SetQuickAccessFolders(folders []model.QuickAccessFolder) error {
	folders = cloneQuickAccessFolders(folders)
	if err := validateQuickAccessFolders(folders); err != nil {
		return fmt.Errorf("%w: %v", model.ErrValidationFailed, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.state
	next.QuickAccessFolders = folders
	return m.commitLocked(next)
}

// ReplaceAll swaps every collection in one validated write, so a sync pull
// never leaves the store mixing two snapshots.
func (m *Manager) ReplaceAll(folders []model.Folder, subscribed []model.SubscribedFolder, quickAccess []model.QuickAccessFolder, syncedAt time.Time) error {
	folders = cloneFolders(folders)
	subscribed = cloneSubscribedFolders(subscribed)
	quickAccess = cloneQuickAccessFolders(quickAccess)
	if err := validateFolders(folders); err != nil {
		return fmt.Errorf("%w: %v", model.ErrValidationFailed, err)
	}
	if err := validateSubscribedFolders(subscribed); err != nil {
		return fmt.Errorf("%w: %v", model.ErrValidationFailed, err)
	}
	if err := validateQuickAccessFolders(quickAccess); err != nil {
		return fmt.Errorf("%w: %v", model.ErrValidationFailed, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.state
	next.Folders = folders
	next.SubscribedFolders = subscribed
	next.QuickAccessFolders = quickAccess
	next.LastSyncedAt = &syncedAt
	return m.commitLocked(next)
}

func (m *Manager) Flags() Flags {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Flags
}

func (m *Manager) SetFlags(flags Flags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.state
	next.Flags = flags
	return m.commitLocked(next)
}

func (m *Manager) LastSyncedAt() *time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.LastSyncedAt == nil {
		return nil
	}
	t := *m.state.LastSyncedAt
	return &t
}

// commitLocked persists the candidate snapshot and only then swaps it in,
// so a failed save leaves both the backend and memory at last-known-good.
func (m *Manager) commitLocked(next persistedState) error {
	if err := m.backend.Save(&next); err != nil {
		return fmt.Errorf("persist local state: %w", err)
	}
	m.state = next
	return nil
}

// Close releases the backing store when it holds external resources, such
// as the Postgres connection pool. File and memory backends are no-ops.
func (m *Manager) Close() error {
	if closer, ok := m.backend.(stateBackendCloser); ok {
		return closer.Close()
	}
	return nil
}

func (m *Manager) logf(format string, args ...any) {
	if m.logger == nil {
		return
	}
	m.logger.Printf(format, args...)
}

func normalizeLoadedState(state *persistedState) {
	if state.Folders == nil {
		state.Folders = []model.Folder{}
	}
	if state.SubscribedFolders == nil {
		state.SubscribedFolders = []model.SubscribedFolder{}
	}
	if state.QuickAccessFolders == nil {
		state.QuickAccessFolders = []model.QuickAccessFolder{}
	}
}

func cloneFolders(folders []model.Folder) []model.Folder {
	out := make([]model.Folder, len(folders))
	for i, folder := range folders {
		folder.Prompts = append([]model.Prompt(nil), folder.Prompts...)
		if folder.Prompts == nil {
			folder.Prompts = []model.Prompt{}
		}
		out[i] = folder
	}
	return out
}

func cloneSubscribedFolders(folders []model.SubscribedFolder) []model.SubscribedFolder {
	out := make([]model.SubscribedFolder, len(folders))
	for i, folder := range folders {
		folder.Prompts = append([]model.Prompt(nil), folder.Prompts...)
		if folder.Prompts == nil {
			folder.Prompts = []model.Prompt{}
		}
		out[i] = folder
	}
	return out
}

func cloneQuickAccessFolders(folders []model.QuickAccessFolder) []model.QuickAccessFolder {
	out := make([]model.QuickAccessFolder, len(folders))
	for i, folder := range folders {
		folder.Items = append([]model.QuickAccessItem(nil), folder.Items...)
		if folder.Items == nil {
			folder.Items = []model.QuickAccessItem{}
		}
		out[i] = folder
	}
	return out
}
