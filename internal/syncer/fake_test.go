package syncer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/promptdeck/promptdeck/internal/model"
	"github.com/promptdeck/promptdeck/internal/remote"
)

// fakeAccessor is an in-memory remote store. Mutations update its state so
// a follow-up pull converges to the same data the coordinator patched
// locally. Individual operations can be armed to fail.
type fakeAccessor struct {
	mu          sync.Mutex
	folders     []model.Folder // prompt lists unused; prompts live below
	prompts     []model.Prompt
	subs        []model.SubscribedFolder
	qaFolders   []model.QuickAccessFolder
	shares      map[string]model.Share // by code
	calls       []string
	failures    map[string]error // "op" or "op#N" for the N-th call of op
	callCounts  map[string]int
	fetchRounds int32

	// fetchGate, when set, blocks FetchFolders until released.
	fetchGate chan struct{}
}

func newFakeAccessor() *fakeAccessor {
	return &fakeAccessor{
		shares:     map[string]model.Share{},
		failures:   map[string]error{},
		callCounts: map[string]int{},
	}
}

var _ remote.Accessor = (*fakeAccessor)(nil)

func (f *fakeAccessor) record(op string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	line := op
	for _, a := range args {
		line += fmt.Sprintf(" %v", a)
	}
	f.calls = append(f.calls, line)
	f.callCounts[op]++
	if err, ok := f.failures[fmt.Sprintf("%s#%d", op, f.callCounts[op])]; ok {
		return err
	}
	if err, ok := f.failures[op]; ok {
		return err
	}
	return nil
}

func (f *fakeAccessor) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAccessor) FetchFolders(ctx context.Context) ([]model.Folder, error) {
	if gate := f.fetchGate; gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	atomic.AddInt32(&f.fetchRounds, 1)
	if err := f.record("FetchFolders"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Folder, len(f.folders))
	copy(out, f.folders)
	for i := range out {
		out[i].Prompts = nil
	}
	return out, nil
}

func (f *fakeAccessor) FetchPrompts(ctx context.Context) ([]model.Prompt, error) {
	if err := f.record("FetchPrompts"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Prompt
	for _, p := range f.prompts {
		if p.Active() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeAccessor) FetchTrash(ctx context.Context) ([]model.Prompt, error) {
	if err := f.record("FetchTrash"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Prompt
	for _, p := range f.prompts {
		if !p.Active() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeAccessor) FetchSubscriptions(ctx context.Context) ([]model.SubscribedFolder, error) {
	if err := f.record("FetchSubscriptions"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SubscribedFolder(nil), f.subs...), nil
}

func (f *fakeAccessor) FetchQuickAccess(ctx context.Context) ([]model.QuickAccessFolder, error) {
	if err := f.record("FetchQuickAccess"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.QuickAccessFolder(nil), f.qaFolders...), nil
}

func (f *fakeAccessor) CreateFolder(ctx context.Context, folder model.Folder) error {
	if err := f.record("CreateFolder", folder.ID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folders = append(f.folders, folder)
	return nil
}

func (f *fakeAccessor) RenameFolder(ctx context.Context, id, name string) error {
	if err := f.record("RenameFolder", id, name); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.folders {
		if f.folders[i].ID == id {
			f.folders[i].Name = name
		}
	}
	return nil
}

func (f *fakeAccessor) DeleteFolder(ctx context.Context, id string) error {
	if err := f.record("DeleteFolder", id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.folders[:0]
	for _, folder := range f.folders {
		if folder.ID != id {
			out = append(out, folder)
		}
	}
	f.folders = out
	prompts := f.prompts[:0]
	for _, p := range f.prompts {
		if p.FolderID != id {
			prompts = append(prompts, p)
		}
	}
	f.prompts = prompts
	return nil
}

func (f *fakeAccessor) SetFolderPosition(ctx context.Context, id string, position int) error {
	if err := f.record("SetFolderPosition", id, position); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.folders {
		if f.folders[i].ID == id {
			f.folders[i].Position = position
		}
	}
	return nil
}

func (f *fakeAccessor) CreatePrompt(ctx context.Context, prompt model.Prompt) error {
	if err := f.record("CreatePrompt", prompt.ID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return nil
}

func (f *fakeAccessor) UpdatePrompt(ctx context.Context, prompt model.Prompt) error {
	if err := f.record("UpdatePrompt", prompt.ID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.prompts {
		if f.prompts[i].ID == prompt.ID {
			f.prompts[i] = prompt
		}
	}
	return nil
}

func (f *fakeAccessor) TrashPrompt(ctx context.Context, id string) error {
	if err := f.record("TrashPrompt", id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	for i := range f.prompts {
		if f.prompts[i].ID == id {
			f.prompts[i].DeletedAt = &now
		}
	}
	return nil
}

func (f *fakeAccessor) RestorePrompt(ctx context.Context, id string) error {
	if err := f.record("RestorePrompt", id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.prompts {
		if f.prompts[i].ID == id {
			f.prompts[i].DeletedAt = nil
		}
	}
	return nil
}

func (f *fakeAccessor) PurgePrompt(ctx context.Context, id string) error {
	if err := f.record("PurgePrompt", id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.prompts[:0]
	for _, p := range f.prompts {
		if p.ID != id {
			out = append(out, p)
		}
	}
	f.prompts = out
	return nil
}

func (f *fakeAccessor) SetPromptPosition(ctx context.Context, id string, position int) error {
	if err := f.record("SetPromptPosition", id, position); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.prompts {
		if f.prompts[i].ID == id {
			f.prompts[i].Position = position
		}
	}
	return nil
}

func (f *fakeAccessor) CreateQuickAccessFolder(ctx context.Context, folder model.QuickAccessFolder) error {
	if err := f.record("CreateQuickAccessFolder", folder.ID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qaFolders = append(f.qaFolders, folder)
	return nil
}

func (f *fakeAccessor) RenameQuickAccessFolder(ctx context.Context, id, name string) error {
	if err := f.record("RenameQuickAccessFolder", id, name); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.qaFolders {
		if f.qaFolders[i].ID == id {
			f.qaFolders[i].Name = name
		}
	}
	return nil
}

func (f *fakeAccessor) DeleteQuickAccessFolder(ctx context.Context, id string) error {
	if err := f.record("DeleteQuickAccessFolder", id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.qaFolders[:0]
	for _, folder := range f.qaFolders {
		if folder.ID != id {
			out = append(out, folder)
		}
	}
	f.qaFolders = out
	return nil
}

func (f *fakeAccessor) SetQuickAccessFolderPosition(ctx context.Context, id string, position int) error {
	if err := f.record("SetQuickAccessFolderPosition", id, position); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.qaFolders {
		if f.qaFolders[i].ID == id {
			f.qaFolders[i].Position = position
		}
	}
	return nil
}

func (f *fakeAccessor) CreateQuickAccessItem(ctx context.Context, item model.QuickAccessItem) error {
	if err := f.record("CreateQuickAccessItem", item.ID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.qaFolders {
		if f.qaFolders[i].ID == item.FolderID {
			f.qaFolders[i].Items = append(f.qaFolders[i].Items, item)
		}
	}
	return nil
}

func (f *fakeAccessor) DeleteQuickAccessItem(ctx context.Context, id string) error {
	if err := f.record("DeleteQuickAccessItem", id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.qaFolders {
		items := f.qaFolders[i].Items[:0]
		for _, item := range f.qaFolders[i].Items {
			if item.ID != id {
				items = append(items, item)
			}
		}
		f.qaFolders[i].Items = items
	}
	return nil
}

func (f *fakeAccessor) MoveQuickAccessItem(ctx context.Context, id, folderID string, position int) error {
	if err := f.record("MoveQuickAccessItem", id, folderID, position); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var moved *model.QuickAccessItem
	for i := range f.qaFolders {
		items := f.qaFolders[i].Items[:0]
		for _, item := range f.qaFolders[i].Items {
			if item.ID == id {
				copied := item
				moved = &copied
				continue
			}
			items = append(items, item)
		}
		f.qaFolders[i].Items = items
	}
	if moved == nil {
		return model.ErrNotFound
	}
	moved.FolderID = folderID
	moved.Position = position
	for i := range f.qaFolders {
		if f.qaFolders[i].ID == folderID {
			f.qaFolders[i].Items = append(f.qaFolders[i].Items, *moved)
		}
	}
	return nil
}

func (f *fakeAccessor) SetQuickAccessItemPosition(ctx context.Context, id string, position int) error {
	if err := f.record("SetQuickAccessItemPosition", id, position); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.qaFolders {
		for j := range f.qaFolders[i].Items {
			if f.qaFolders[i].Items[j].ID == id {
				f.qaFolders[i].Items[j].Position = position
			}
		}
	}
	return nil
}

func (f *fakeAccessor) CreateShare(ctx context.Context, folderID, code, label string) (model.Share, error) {
	if err := f.record("CreateShare", folderID, code); err != nil {
		return model.Share{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	// Re-sharing replaces the previous code for the folder.
	for existing, share := range f.shares {
		if share.FolderID == folderID {
			delete(f.shares, existing)
		}
	}
	share := model.Share{
		ID:       "shr_" + code,
		FolderID: folderID,
		Code:     code,
		Label:    label,
		Active:   true,
	}
	f.shares[code] = share
	return share, nil
}

func (f *fakeAccessor) RevokeShare(ctx context.Context, folderID string) error {
	if err := f.record("RevokeShare", folderID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for code, share := range f.shares {
		if share.FolderID == folderID {
			delete(f.shares, code)
		}
	}
	out := f.subs[:0]
	for _, sub := range f.subs {
		if sub.ID != folderID {
			out = append(out, sub)
		}
	}
	f.subs = out
	return nil
}

func (f *fakeAccessor) ResolveShare(ctx context.Context, code string) (model.SharePreview, error) {
	if err := f.record("ResolveShare", code); err != nil {
		return model.SharePreview{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	share, ok := f.shares[code]
	if !ok {
		return model.SharePreview{}, model.ErrNotFound
	}
	preview := model.SharePreview{}
	for _, folder := range f.folders {
		if folder.ID == share.FolderID {
			preview.FolderName = folder.Name
		}
	}
	for _, p := range f.prompts {
		if p.FolderID == share.FolderID && p.Active() {
			preview.Prompts = append(preview.Prompts, p.Title)
		}
	}
	return preview, nil
}

func (f *fakeAccessor) CreateSubscription(ctx context.Context, code string) (model.SubscribedFolder, error) {
	if err := f.record("CreateSubscription", code); err != nil {
		return model.SubscribedFolder{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	share, ok := f.shares[code]
	if !ok {
		return model.SubscribedFolder{}, model.ErrNotFound
	}
	sub := model.SubscribedFolder{
		ID:             share.FolderID,
		SubscriptionID: "sub_" + code,
	}
	for _, folder := range f.folders {
		if folder.ID == share.FolderID {
			sub.Name = folder.Name
		}
	}
	for _, p := range f.prompts {
		if p.FolderID == share.FolderID && p.Active() {
			sub.Prompts = append(sub.Prompts, p)
		}
	}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeAccessor) DeleteSubscription(ctx context.Context, id string) error {
	if err := f.record("DeleteSubscription", id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.subs[:0]
	for _, sub := range f.subs {
		if sub.SubscriptionID != id {
			out = append(out, sub)
		}
	}
	f.subs = out
	return nil
}
