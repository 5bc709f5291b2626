// Package syncer reconciles the local snapshot with the remote store. It
// pulls all collections concurrently, assembles them into the local shape
// and commits them in one atomic write, so a failed pull never leaves a
// partially updated snapshot behind.
package syncer

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/promptdeck/promptdeck/internal/localstore"
	"github.com/promptdeck/promptdeck/internal/model"
	"github.com/promptdeck/promptdeck/internal/remote"
)

// Status is the coordinator's externally visible sync state.
type Status string

const (
	StatusIdle             Status = "idle"
	StatusSyncing          Status = "syncing"
	StatusError            Status = "error"
	StatusOffline          Status = "offline"
	StatusNotAuthenticated Status = "not_authenticated"
)

type Logger interface {
	Printf(format string, args ...any)
}

type Options struct {
	Remote    remote.Accessor
	Store     *localstore.Manager
	Principal model.PrincipalProvider
	Logger    Logger
}

// StateSnapshot is a point-in-time view of the coordinator for UIs and
// status endpoints.
type StateSnapshot struct {
	Status       Status
	LastError    string
	LastSyncedAt *time.Time
}

// Coordinator owns all reads and mutations of the synchronized
// collections. Mutations write remote-first and patch the local snapshot
// only after the remote accepted the change.
type Coordinator struct {
	remote    remote.Accessor
	store     *localstore.Manager
	principal model.PrincipalProvider
	logger    Logger

	mu       sync.Mutex
	status   Status
	lastErr  error
	inflight *pendingSync
}

type pendingSync struct {
	done chan struct{}
	err  error
}

func NewCoordinator(opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{
		remote:    opts.Remote,
		store:     opts.Store,
		principal: opts.Principal,
		logger:    logger,
		status:    StatusIdle,
	}
}

func (c *Coordinator) currentUser() *model.User {
	if c.principal == nil {
		return nil
	}
	return c.principal.CurrentUser()
}

func (c *Coordinator) State() StateSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := StateSnapshot{Status: c.status, LastSyncedAt: c.store.LastSyncedAt()}
	if c.lastErr != nil {
		snap.LastError = c.lastErr.Error()
	}
	return snap
}

// MarkOffline parks the coordinator in the offline state. The realtime
// supervisor calls this when its reconnect budget runs out.
func (c *Coordinator) MarkOffline() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusOffline
}

// OnRemoteChange is the debounced refresh hook wired to the realtime
// channel. It refreshes in the background so the event loop never blocks.
func (c *Coordinator) OnRemoteChange() {
	go func() {
		if err := c.PerformSync(context.Background()); err != nil {
			c.logger.Printf("sync: remote-triggered refresh failed: %v", err)
		}
	}()
}

// PerformSync pulls every collection and replaces the local snapshot.
// Concurrent callers share a single in-flight run and all receive its
// result.
func (c *Coordinator) PerformSync(ctx context.Context) error {
	if c.currentUser() == nil {
		c.mu.Lock()
		c.status = StatusNotAuthenticated
		c.lastErr = model.ErrNotAuthenticated
		c.mu.Unlock()
		return model.ErrNotAuthenticated
	}

	c.mu.Lock()
	if c.inflight != nil {
		pending := c.inflight
		c.mu.Unlock()
		select {
		case <-pending.done:
			return pending.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	pending := &pendingSync{done: make(chan struct{})}
	c.inflight = pending
	c.status = StatusSyncing
	c.mu.Unlock()

	err := c.syncOnce(ctx)

	c.mu.Lock()
	c.inflight = nil
	c.lastErr = err
	if err != nil {
		c.status = StatusError
	} else {
		c.status = StatusIdle
	}
	c.mu.Unlock()

	pending.err = err
	close(pending.done)
	return err
}

func (c *Coordinator) syncOnce(ctx context.Context) error {
	var (
		folders       []model.Folder
		prompts       []model.Prompt
		trash         []model.Prompt
		subscriptions []model.SubscribedFolder
		quickAccess   []model.QuickAccessFolder
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		folders, err = c.remote.FetchFolders(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		prompts, err = c.remote.FetchPrompts(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		trash, err = c.remote.FetchTrash(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		subscriptions, err = c.remote.FetchSubscriptions(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		quickAccess, err = c.remote.FetchQuickAccess(groupCtx)
		return err
	})
	if err := group.Wait(); err != nil {
		return err
	}

	trash = c.pruneTrash(ctx, trash)
	assembled := assembleFolders(folders, prompts, trash)
	sortQuickAccess(quickAccess)

	if err := c.store.ReplaceAll(assembled, subscriptions, quickAccess, time.Now().UTC()); err != nil {
		return err
	}
	return nil
}

// assembleFolders attaches prompts to their folders, position-sorted.
// Trashed prompts ride along with their folder so restore has a target,
// but they never count toward ordering of active prompts.
func assembleFolders(folders []model.Folder, prompts, trash []model.Prompt) []model.Folder {
	byFolder := make(map[string][]model.Prompt)
	for _, p := range prompts {
		byFolder[p.FolderID] = append(byFolder[p.FolderID], p)
	}
	for _, p := range trash {
		if p.FolderID != "" {
			byFolder[p.FolderID] = append(byFolder[p.FolderID], p)
		}
	}

	out := make([]model.Folder, len(folders))
	copy(out, folders)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	for i := range out {
		list := byFolder[out[i].ID]
		sort.SliceStable(list, func(a, b int) bool {
			if list[a].Position != list[b].Position {
				return list[a].Position < list[b].Position
			}
			return list[a].ID < list[b].ID
		})
		if list == nil {
			list = []model.Prompt{}
		}
		out[i].Prompts = list
	}
	return out
}

func sortQuickAccess(folders []model.QuickAccessFolder) {
	sort.SliceStable(folders, func(i, j int) bool {
		if folders[i].Position != folders[j].Position {
			return folders[i].Position < folders[j].Position
		}
		return folders[i].ID < folders[j].ID
	})
	for i := range folders {
		items := folders[i].Items
		sort.SliceStable(items, func(a, b int) bool {
			if items[a].Position != items[b].Position {
				return items[a].Position < items[b].Position
			}
			return items[a].ID < items[b].ID
		})
		if items == nil {
			folders[i].Items = []model.QuickAccessItem{}
		}
	}
}

// pruneTrash keeps the most recent entries up to the trash cap and
// hard-deletes the rest remotely. Purge failures are logged, never fatal;
// the stale entry just survives until the next sync.
func (c *Coordinator) pruneTrash(ctx context.Context, trash []model.Prompt) []model.Prompt {
	if len(trash) <= model.MaxTrashEntries {
		return trash
	}
	sorted := make([]model.Prompt, len(trash))
	copy(sorted, trash)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := sorted[i].DeletedAt, sorted[j].DeletedAt
		switch {
		case ti == nil:
			return false
		case tj == nil:
			return true
		default:
			return ti.After(*tj)
		}
	})
	kept := sorted[:model.MaxTrashEntries]
	for _, p := range sorted[model.MaxTrashEntries:] {
		if err := c.remote.PurgePrompt(ctx, p.ID); err != nil {
			c.logger.Printf("sync: pruning trashed prompt %s failed: %v", p.ID, err)
			kept = append(kept, p)
		}
	}
	return kept
}

// resync schedules a full pull after a partially applied remote write, so
// local state converges back to whatever the remote actually holds.
func (c *Coordinator) resync(ctx context.Context) {
	if err := c.PerformSync(ctx); err != nil {
		c.logger.Printf("sync: recovery pull failed: %v", err)
	}
}
