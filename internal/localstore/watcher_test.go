package localstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
)

func TestHandleEventReloadsOnMatchingWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	manager := NewManager(Options{Backend: NewJSONFileStateBackend(path)})
	if err := manager.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	other := NewManager(Options{Backend: NewJSONFileStateBackend(path)})
	if err := other.Initialize(); err != nil {
		t.Fatalf("external handle initialize failed: %v", err)
	}
	if err := other.SetFolders(sampleFolders()); err != nil {
		t.Fatalf("external write failed: %v", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		t.Fatalf("abs failed: %v", err)
	}
	w := &Watcher{manager: manager, path: abs, done: make(chan struct{})}
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})
	if got := manager.Folders(); len(got) != 2 {
		t.Fatalf("expected reloaded folders after write event, got %d", len(got))
	}
}

func TestHandleEventIgnoresOtherFilesAndOps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	manager := NewManager(Options{Backend: NewJSONFileStateBackend(path)})
	if err := manager.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	other := NewManager(Options{Backend: NewJSONFileStateBackend(path)})
	if err := other.Initialize(); err != nil {
		t.Fatalf("external handle initialize failed: %v", err)
	}
	if err := other.SetFolders(sampleFolders()); err != nil {
		t.Fatalf("external write failed: %v", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		t.Fatalf("abs failed: %v", err)
	}
	w := &Watcher{manager: manager, path: abs, done: make(chan struct{})}

	w.handleEvent(fsnotify.Event{Name: filepath.Join(dir, "unrelated.json"), Op: fsnotify.Write})
	if got := manager.Folders(); len(got) != 0 {
		t.Fatalf("expected unrelated file event to be ignored")
	}

	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Chmod})
	if got := manager.Folders(); len(got) != 0 {
		t.Fatalf("expected chmod event to be ignored")
	}
}

func TestHandleEventKeepsSnapshotWhenFileIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	manager := NewManager(Options{Backend: NewJSONFileStateBackend(path)})
	if err := manager.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if err := manager.SetFolders(sampleFolders()); err != nil {
		t.Fatalf("seed folders failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("corrupt write failed: %v", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		t.Fatalf("abs failed: %v", err)
	}
	w := &Watcher{manager: manager, path: abs, done: make(chan struct{})}
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})
	if got := manager.Folders(); len(got) != 2 {
		t.Fatalf("expected snapshot preserved after corrupt external write, got %d folders", len(got))
	}
}

func TestWatchFileStartsAndCloses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	manager := NewManager(Options{Backend: NewJSONFileStateBackend(path)})
	if err := manager.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	w, err := WatchFile(manager, path, nil)
	if err != nil {
		t.Fatalf("watch file failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
}
