package syncer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/promptdeck/promptdeck/internal/model"
	"github.com/promptdeck/promptdeck/internal/ordering"
)

func folderRefs(folders []model.Folder) []ordering.Ref {
	refs := make([]ordering.Ref, len(folders))
	for i, f := range folders {
		refs[i] = ordering.Ref{ID: f.ID, Position: f.Position}
	}
	return refs
}

func activePromptRefs(folder model.Folder) []ordering.Ref {
	refs := make([]ordering.Ref, 0, len(folder.Prompts))
	for _, p := range folder.Prompts {
		if p.Active() {
			refs = append(refs, ordering.Ref{ID: p.ID, Position: p.Position})
		}
	}
	return refs
}

// CreateFolder appends a new folder at the end of the user's folder list.
func (c *Coordinator) CreateFolder(ctx context.Context, name string) (model.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Folder{}, model.ErrValidationFailed
	}
	folders := c.store.Folders()
	folder := model.Folder{
		ID:       "fold_" + uuid.NewString(),
		Name:     name,
		Position: ordering.NextPosition(folderRefs(folders)),
		Prompts:  []model.Prompt{},
	}
	if user := c.currentUser(); user != nil {
		folder.OwnerID = user.ID
	}
	if err := c.remote.CreateFolder(ctx, folder); err != nil {
		return model.Folder{}, err
	}
	if err := c.store.SetFolders(append(folders, folder)); err != nil {
		return model.Folder{}, err
	}
	c.scheduleReconcile()
	return folder, nil
}

func (c *Coordinator) RenameFolder(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.ErrValidationFailed
	}
	folders := c.store.Folders()
	idx := folderIndex(folders, id)
	if idx < 0 {
		return model.ErrNotFound
	}
	if err := c.remote.RenameFolder(ctx, id, name); err != nil {
		return err
	}
	folders[idx].Name = name
	if err := c.store.SetFolders(folders); err != nil {
		return err
	}
	c.scheduleReconcile()
	return nil
}

// DeleteFolder removes a folder and compacts the positions of the folders
// after it, persisting each shifted position remotely in index order.
func (c *Coordinator) DeleteFolder(ctx context.Context, id string) error {
	folders := c.store.Folders()
	before := folderRefs(folders)
	after, ok := ordering.Remove(before, id)
	if !ok {
		return model.ErrNotFound
	}
	if err := c.remote.DeleteFolder(ctx, id); err != nil {
		return err
	}
	if err := c.pushFolderPositions(ctx, ordering.Changed(before, after)); err != nil {
		return err
	}
	remaining := applyFolderOrder(folders, after)
	if err := c.store.SetFolders(remaining); err != nil {
		return err
	}
	c.scheduleReconcile()
	return nil
}

// ReorderFolder moves a folder to newIndex and persists every shifted
// position. A failure mid-sequence triggers a full recovery pull instead
// of retrying, since a late middle write could commit out of order. An id
// that is no longer in the list is a stale reorder and is ignored.
func (c *Coordinator) ReorderFolder(ctx context.Context, id string, newIndex int) error {
	folders := c.store.Folders()
	before := folderRefs(folders)
	after, ok := ordering.Reorder(before, id, newIndex)
	if !ok {
		c.logger.Printf("sync: reorder of unknown folder %s ignored", id)
		return nil
	}
	if err := c.pushFolderPositions(ctx, ordering.Changed(before, after)); err != nil {
		return err
	}
	if err := c.store.SetFolders(applyFolderOrder(folders, after)); err != nil {
		return err
	}
	return nil
}

func (c *Coordinator) pushFolderPositions(ctx context.Context, changed []ordering.Ref) error {
	for _, ref := range changed {
		err := c.remote.SetFolderPosition(ctx, ref.ID, ref.Position)
		if err == nil {
			continue
		}
		if errors.Is(err, model.ErrNotFound) {
			c.logger.Printf("sync: folder %s vanished remotely, skipping its position write", ref.ID)
			continue
		}
		c.logger.Printf("sync: folder position write for %s failed, re-pulling: %v", ref.ID, err)
		c.resync(ctx)
		return err
	}
	return nil
}

// CreatePrompt appends a prompt to a folder, enforcing the per-folder
// active prompt cap before any remote write.
func (c *Coordinator) CreatePrompt(ctx context.Context, folderID, title, text string) (model.Prompt, error) {
	title = strings.TrimSpace(title)
	if title == "" || text == "" {
		return model.Prompt{}, model.ErrValidationFailed
	}
	folders := c.store.Folders()
	idx := folderIndex(folders, folderID)
	if idx < 0 {
		return model.Prompt{}, model.ErrNotFound
	}
	folder := folders[idx]
	if folder.ActivePromptCount() >= model.MaxActivePromptsPerFolder {
		return model.Prompt{}, model.ErrCapacityExceeded
	}
	prompt := model.Prompt{
		ID:        "prm_" + uuid.NewString(),
		FolderID:  folderID,
		Title:     title,
		Text:      text,
		Position:  ordering.NextPosition(activePromptRefs(folder)),
		CreatedAt: time.Now().UTC(),
	}
	if user := c.currentUser(); user != nil {
		prompt.OwnerID = user.ID
	}
	if err := c.remote.CreatePrompt(ctx, prompt); err != nil {
		return model.Prompt{}, err
	}
	folders[idx].Prompts = append(folders[idx].Prompts, prompt)
	if err := c.store.SetFolders(folders); err != nil {
		return model.Prompt{}, err
	}
	c.scheduleReconcile()
	return prompt, nil
}

// UpdatePrompt edits a prompt's title and text in place.
func (c *Coordinator) UpdatePrompt(ctx context.Context, id, title, text string) error {
	title = strings.TrimSpace(title)
	if title == "" || text == "" {
		return model.ErrValidationFailed
	}
	folders := c.store.Folders()
	fIdx, pIdx := promptIndex(folders, id)
	if fIdx < 0 {
		return model.ErrNotFound
	}
	updated := folders[fIdx].Prompts[pIdx]
	updated.Title = title
	updated.Text = text
	if err := c.remote.UpdatePrompt(ctx, updated); err != nil {
		return err
	}
	folders[fIdx].Prompts[pIdx] = updated
	if err := c.store.SetFolders(folders); err != nil {
		return err
	}
	c.scheduleReconcile()
	return nil
}

// ReorderPrompt moves a prompt within its folder's active list.
func (c *Coordinator) ReorderPrompt(ctx context.Context, folderID, id string, newIndex int) error {
	folders := c.store.Folders()
	fIdx := folderIndex(folders, folderID)
	if fIdx < 0 {
		return model.ErrNotFound
	}
	before := activePromptRefs(folders[fIdx])
	after, ok := ordering.Reorder(before, id, newIndex)
	if !ok {
		c.logger.Printf("sync: reorder of unknown prompt %s in folder %s ignored", id, folderID)
		return nil
	}
	if err := c.pushPromptPositions(ctx, ordering.Changed(before, after)); err != nil {
		return err
	}
	applyPromptOrder(&folders[fIdx], after)
	if err := c.store.SetFolders(folders); err != nil {
		return err
	}
	return nil
}

// MovePrompt relocates a prompt into another folder at destIndex,
// enforcing the destination's capacity first.
func (c *Coordinator) MovePrompt(ctx context.Context, id, destFolderID string, destIndex int) error {
	folders := c.store.Folders()
	fIdx, pIdx := promptIndex(folders, id)
	if fIdx < 0 {
		return model.ErrNotFound
	}
	dIdx := folderIndex(folders, destFolderID)
	if dIdx < 0 {
		return model.ErrNotFound
	}
	if dIdx == fIdx {
		return c.ReorderPrompt(ctx, destFolderID, id, destIndex)
	}
	if folders[dIdx].ActivePromptCount() >= model.MaxActivePromptsPerFolder {
		return model.ErrCapacityExceeded
	}

	sourceBefore := activePromptRefs(folders[fIdx])
	destBefore := activePromptRefs(folders[dIdx])
	sourceAfter, destAfter, ok := ordering.MoveAcross(sourceBefore, destBefore, id, destIndex)
	if !ok {
		return model.ErrNotFound
	}

	moved := folders[fIdx].Prompts[pIdx]
	moved.FolderID = destFolderID
	for _, ref := range destAfter {
		if ref.ID == id {
			moved.Position = ref.Position
		}
	}
	if err := c.remote.UpdatePrompt(ctx, moved); err != nil {
		return err
	}
	changed := append(ordering.Changed(sourceBefore, sourceAfter), ordering.Changed(destBefore, destAfter)...)
	if err := c.pushPromptPositions(ctx, withoutRef(changed, id)); err != nil {
		return err
	}

	folders[fIdx].Prompts = append(folders[fIdx].Prompts[:pIdx], folders[fIdx].Prompts[pIdx+1:]...)
	folders[dIdx].Prompts = append(folders[dIdx].Prompts, moved)
	applyPromptOrder(&folders[fIdx], sourceAfter)
	applyPromptOrder(&folders[dIdx], destAfter)
	if err := c.store.SetFolders(folders); err != nil {
		return err
	}
	c.scheduleReconcile()
	return nil
}

// TrashPrompt soft-deletes a prompt and compacts its folder's order.
func (c *Coordinator) TrashPrompt(ctx context.Context, id string) error {
	folders := c.store.Folders()
	fIdx, pIdx := promptIndex(folders, id)
	if fIdx < 0 {
		return model.ErrNotFound
	}
	if !folders[fIdx].Prompts[pIdx].Active() {
		return model.ErrNotFound
	}
	if err := c.remote.TrashPrompt(ctx, id); err != nil {
		return err
	}
	before := activePromptRefs(folders[fIdx])
	after, _ := ordering.Remove(before, id)
	if err := c.pushPromptPositions(ctx, ordering.Changed(before, after)); err != nil {
		return err
	}
	now := time.Now().UTC()
	folders[fIdx].Prompts[pIdx].DeletedAt = &now
	applyPromptOrder(&folders[fIdx], after)
	if err := c.store.SetFolders(folders); err != nil {
		return err
	}
	c.scheduleReconcile()
	return nil
}

// RestorePrompt pulls a prompt back out of the trash, appended at the end
// of its folder's active list. The folder cap applies again on restore.
func (c *Coordinator) RestorePrompt(ctx context.Context, id string) error {
	folders := c.store.Folders()
	fIdx, pIdx := promptIndex(folders, id)
	if fIdx < 0 {
		return model.ErrNotFound
	}
	if folders[fIdx].Prompts[pIdx].Active() {
		return model.ErrNotFound
	}
	if folders[fIdx].ActivePromptCount() >= model.MaxActivePromptsPerFolder {
		return model.ErrCapacityExceeded
	}
	if err := c.remote.RestorePrompt(ctx, id); err != nil {
		return err
	}
	restoredPos := ordering.NextPosition(activePromptRefs(folders[fIdx]))
	if err := c.pushPromptPositions(ctx, []ordering.Ref{{ID: id, Position: restoredPos}}); err != nil {
		return err
	}
	folders[fIdx].Prompts[pIdx].DeletedAt = nil
	folders[fIdx].Prompts[pIdx].Position = restoredPos
	if err := c.store.SetFolders(folders); err != nil {
		return err
	}
	c.scheduleReconcile()
	return nil
}

// RecordPromptUse bumps the advisory use counters. Failures are logged
// only; usage metadata never blocks the caller.
func (c *Coordinator) RecordPromptUse(ctx context.Context, id string) {
	folders := c.store.Folders()
	fIdx, pIdx := promptIndex(folders, id)
	if fIdx < 0 {
		return
	}
	now := time.Now().UTC()
	folders[fIdx].Prompts[pIdx].UseCount++
	folders[fIdx].Prompts[pIdx].LastUsedAt = &now
	if err := c.remote.UpdatePrompt(ctx, folders[fIdx].Prompts[pIdx]); err != nil {
		c.logger.Printf("sync: recording prompt use for %s failed: %v", id, err)
		return
	}
	if err := c.store.SetFolders(folders); err != nil {
		c.logger.Printf("sync: persisting prompt use for %s failed: %v", id, err)
	}
}

func (c *Coordinator) pushPromptPositions(ctx context.Context, changed []ordering.Ref) error {
	for _, ref := range changed {
		err := c.remote.SetPromptPosition(ctx, ref.ID, ref.Position)
		if err == nil {
			continue
		}
		if errors.Is(err, model.ErrNotFound) {
			c.logger.Printf("sync: prompt %s vanished remotely, skipping its position write", ref.ID)
			continue
		}
		c.logger.Printf("sync: prompt position write for %s failed, re-pulling: %v", ref.ID, err)
		c.resync(ctx)
		return err
	}
	return nil
}

// scheduleReconcile kicks a background pull so server-computed fields
// converge after an optimistic patch. The caller never waits on it.
func (c *Coordinator) scheduleReconcile() {
	go func() {
		if err := c.PerformSync(context.Background()); err != nil {
			c.logger.Printf("sync: reconcile pull failed: %v", err)
		}
	}()
}

func folderIndex(folders []model.Folder, id string) int {
	for i, f := range folders {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func promptIndex(folders []model.Folder, id string) (int, int) {
	for fi, f := range folders {
		for pi, p := range f.Prompts {
			if p.ID == id {
				return fi, pi
			}
		}
	}
	return -1, -1
}

func withoutRef(refs []ordering.Ref, id string) []ordering.Ref {
	out := refs[:0]
	for _, r := range refs {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

// applyFolderOrder keeps only the folders named by refs, in ref order,
// with ref positions.
func applyFolderOrder(folders []model.Folder, refs []ordering.Ref) []model.Folder {
	byID := make(map[string]model.Folder, len(folders))
	for _, f := range folders {
		byID[f.ID] = f
	}
	out := make([]model.Folder, 0, len(refs))
	for _, ref := range refs {
		f, ok := byID[ref.ID]
		if !ok {
			continue
		}
		f.Position = ref.Position
		out = append(out, f)
	}
	return out
}

// applyPromptOrder rewrites the active prompts of a folder to match refs;
// trashed prompts keep their slot untouched.
func applyPromptOrder(folder *model.Folder, refs []ordering.Ref) {
	positions := make(map[string]int, len(refs))
	for _, ref := range refs {
		positions[ref.ID] = ref.Position
	}
	for i := range folder.Prompts {
		if pos, ok := positions[folder.Prompts[i].ID]; ok {
			folder.Prompts[i].Position = pos
		}
	}
}
