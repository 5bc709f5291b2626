package syncer

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/promptdeck/promptdeck/internal/model"
	"github.com/promptdeck/promptdeck/internal/ordering"
)

func quickAccessRefs(folders []model.QuickAccessFolder) []ordering.Ref {
	refs := make([]ordering.Ref, len(folders))
	for i, f := range folders {
		refs[i] = ordering.Ref{ID: f.ID, Position: f.Position}
	}
	return refs
}

func itemRefs(folder model.QuickAccessFolder) []ordering.Ref {
	refs := make([]ordering.Ref, len(folder.Items))
	for i, item := range folder.Items {
		refs[i] = ordering.Ref{ID: item.ID, Position: item.Position}
	}
	return refs
}

// splitSections partitions quick-access folders into the owned and
// subscribed sections, each position-sorted. Storage order is always the
// owned section followed by the subscribed section.
func splitSections(folders []model.QuickAccessFolder) (owned, subscribed []model.QuickAccessFolder) {
	for _, f := range folders {
		if f.Section() == model.SourceSubscribed {
			subscribed = append(subscribed, f)
		} else {
			owned = append(owned, f)
		}
	}
	sortQuickAccess(owned)
	sortQuickAccess(subscribed)
	return owned, subscribed
}

// CreateQuickAccessFolder appends an empty quick-access folder at the end
// of the owned section. The subscribed section shifts after it, and every
// shifted position is persisted so the global sequence stays contiguous.
func (c *Coordinator) CreateQuickAccessFolder(ctx context.Context, name string) (model.QuickAccessFolder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.QuickAccessFolder{}, model.ErrValidationFailed
	}
	folders := c.store.QuickAccessFolders()
	if len(folders) >= model.MaxQuickAccessFolders {
		return model.QuickAccessFolder{}, model.ErrCapacityExceeded
	}

	owned, subscribed := splitSections(folders)
	folder := model.QuickAccessFolder{
		ID:    "qaf_" + uuid.NewString(),
		Name:  name,
		Items: []model.QuickAccessItem{},
	}
	if user := c.currentUser(); user != nil {
		folder.OwnerID = user.ID
	}

	before := quickAccessRefs(folders)
	after := ordering.Concat(
		append(quickAccessRefs(owned), ordering.Ref{ID: folder.ID}),
		quickAccessRefs(subscribed),
	)
	for _, ref := range after {
		if ref.ID == folder.ID {
			folder.Position = ref.Position
		}
	}
	if err := c.remote.CreateQuickAccessFolder(ctx, folder); err != nil {
		return model.QuickAccessFolder{}, err
	}
	if err := c.pushQuickAccessPositions(ctx, withoutRef(ordering.Changed(before, after), folder.ID)); err != nil {
		return model.QuickAccessFolder{}, err
	}
	if err := c.store.SetQuickAccessFolders(applyQuickAccessOrder(append(folders, folder), after)); err != nil {
		return model.QuickAccessFolder{}, err
	}
	c.scheduleReconcile()
	return folder, nil
}

func (c *Coordinator) RenameQuickAccessFolder(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.ErrValidationFailed
	}
	folders := c.store.QuickAccessFolders()
	idx := quickAccessIndex(folders, id)
	if idx < 0 {
		return model.ErrNotFound
	}
	if err := c.remote.RenameQuickAccessFolder(ctx, id, name); err != nil {
		return err
	}
	folders[idx].Name = name
	if err := c.store.SetQuickAccessFolders(folders); err != nil {
		return err
	}
	c.scheduleReconcile()
	return nil
}

func (c *Coordinator) DeleteQuickAccessFolder(ctx context.Context, id string) error {
	folders := c.store.QuickAccessFolders()
	idx := quickAccessIndex(folders, id)
	if idx < 0 {
		return model.ErrNotFound
	}
	if err := c.remote.DeleteQuickAccessFolder(ctx, id); err != nil {
		return err
	}
	before := quickAccessRefs(folders)
	after, _ := ordering.Remove(before, id)
	if err := c.pushQuickAccessPositions(ctx, ordering.Changed(before, after)); err != nil {
		return err
	}
	remaining := append(folders[:idx:idx], folders[idx+1:]...)
	if err := c.store.SetQuickAccessFolders(applyQuickAccessOrder(remaining, after)); err != nil {
		return err
	}
	c.scheduleReconcile()
	return nil
}

// ReorderQuickAccessFolder moves a folder within its own section, then
// recomputes the global position sequence by concatenating the reordered
// section with the untouched one. The full changed assignment is pushed;
// a partial write would leave the other section out of step.
func (c *Coordinator) ReorderQuickAccessFolder(ctx context.Context, id string, newIndex int) error {
	folders := c.store.QuickAccessFolders()
	idx := quickAccessIndex(folders, id)
	if idx < 0 {
		c.logger.Printf("sync: reorder of unknown quick-access folder %s ignored", id)
		return nil
	}
	owned, subscribed := splitSections(folders)

	var after []ordering.Ref
	if folders[idx].Section() == model.SourceSubscribed {
		section, _ := ordering.Reorder(quickAccessRefs(subscribed), id, newIndex)
		after = ordering.Concat(quickAccessRefs(owned), section)
	} else {
		section, _ := ordering.Reorder(quickAccessRefs(owned), id, newIndex)
		after = ordering.Concat(section, quickAccessRefs(subscribed))
	}

	before := quickAccessRefs(folders)
	if err := c.pushQuickAccessPositions(ctx, ordering.Changed(before, after)); err != nil {
		return err
	}
	if err := c.store.SetQuickAccessFolders(applyQuickAccessOrder(folders, after)); err != nil {
		return err
	}
	return nil
}

// AddQuickAccessItem links a prompt into a quick-access folder. The item
// inherits its source type from where the prompt lives, and the target
// folder must accept that source to keep sections pure.
func (c *Coordinator) AddQuickAccessItem(ctx context.Context, folderID, promptID string) (model.QuickAccessItem, error) {
	folders := c.store.QuickAccessFolders()
	idx := quickAccessIndex(folders, folderID)
	if idx < 0 {
		return model.QuickAccessItem{}, model.ErrNotFound
	}
	if len(folders[idx].Items) >= model.MaxItemsPerQuickAccessFolder {
		return model.QuickAccessItem{}, model.ErrCapacityExceeded
	}

	title, source, sourceLabel, found := c.resolvePrompt(promptID)
	if !found {
		return model.QuickAccessItem{}, model.ErrNotFound
	}
	if !folders[idx].Accepts(source) {
		return model.QuickAccessItem{}, model.ErrValidationFailed
	}

	item := model.QuickAccessItem{
		ID:          "qai_" + uuid.NewString(),
		FolderID:    folderID,
		PromptID:    promptID,
		Title:       title,
		Position:    ordering.NextPosition(itemRefs(folders[idx])),
		SourceType:  source,
		SourceLabel: sourceLabel,
	}
	if err := c.remote.CreateQuickAccessItem(ctx, item); err != nil {
		return model.QuickAccessItem{}, err
	}
	folders[idx].Items = append(folders[idx].Items, item)
	if err := c.store.SetQuickAccessFolders(folders); err != nil {
		return model.QuickAccessItem{}, err
	}
	c.scheduleReconcile()
	return item, nil
}

func (c *Coordinator) RemoveQuickAccessItem(ctx context.Context, id string) error {
	folders := c.store.QuickAccessFolders()
	fIdx, iIdx := quickAccessItemIndex(folders, id)
	if fIdx < 0 {
		return model.ErrNotFound
	}
	if err := c.remote.DeleteQuickAccessItem(ctx, id); err != nil {
		return err
	}
	before := itemRefs(folders[fIdx])
	after, _ := ordering.Remove(before, id)
	if err := c.pushItemPositions(ctx, ordering.Changed(before, after)); err != nil {
		return err
	}
	folders[fIdx].Items = append(folders[fIdx].Items[:iIdx:iIdx], folders[fIdx].Items[iIdx+1:]...)
	applyItemOrder(&folders[fIdx], after)
	if err := c.store.SetQuickAccessFolders(folders); err != nil {
		return err
	}
	c.scheduleReconcile()
	return nil
}

func (c *Coordinator) ReorderQuickAccessItem(ctx context.Context, folderID, id string, newIndex int) error {
	folders := c.store.QuickAccessFolders()
	fIdx := quickAccessIndex(folders, folderID)
	if fIdx < 0 {
		return model.ErrNotFound
	}
	before := itemRefs(folders[fIdx])
	after, ok := ordering.Reorder(before, id, newIndex)
	if !ok {
		c.logger.Printf("sync: reorder of unknown quick-access item %s in %s ignored", id, folderID)
		return nil
	}
	if err := c.pushItemPositions(ctx, ordering.Changed(before, after)); err != nil {
		return err
	}
	applyItemOrder(&folders[fIdx], after)
	if err := c.store.SetQuickAccessFolders(folders); err != nil {
		return err
	}
	return nil
}

// MoveQuickAccessItem relocates an item into another quick-access folder.
// The destination must have room and accept the item's source type.
func (c *Coordinator) MoveQuickAccessItem(ctx context.Context, id, destFolderID string, destIndex int) error {
	folders := c.store.QuickAccessFolders()
	fIdx, iIdx := quickAccessItemIndex(folders, id)
	if fIdx < 0 {
		return model.ErrNotFound
	}
	dIdx := quickAccessIndex(folders, destFolderID)
	if dIdx < 0 {
		return model.ErrNotFound
	}
	if dIdx == fIdx {
		return c.ReorderQuickAccessItem(ctx, destFolderID, id, destIndex)
	}
	item := folders[fIdx].Items[iIdx]
	if len(folders[dIdx].Items) >= model.MaxItemsPerQuickAccessFolder {
		return model.ErrCapacityExceeded
	}
	if !folders[dIdx].Accepts(item.SourceType) {
		return model.ErrValidationFailed
	}

	sourceBefore := itemRefs(folders[fIdx])
	destBefore := itemRefs(folders[dIdx])
	sourceAfter, destAfter, ok := ordering.MoveAcross(sourceBefore, destBefore, id, destIndex)
	if !ok {
		return model.ErrNotFound
	}
	movedPos := 0
	for _, ref := range destAfter {
		if ref.ID == id {
			movedPos = ref.Position
		}
	}
	if err := c.remote.MoveQuickAccessItem(ctx, id, destFolderID, movedPos); err != nil {
		return err
	}
	changed := append(ordering.Changed(sourceBefore, sourceAfter), ordering.Changed(destBefore, destAfter)...)
	if err := c.pushItemPositions(ctx, withoutRef(changed, id)); err != nil {
		return err
	}

	item.FolderID = destFolderID
	item.Position = movedPos
	folders[fIdx].Items = append(folders[fIdx].Items[:iIdx:iIdx], folders[fIdx].Items[iIdx+1:]...)
	folders[dIdx].Items = append(folders[dIdx].Items, item)
	applyItemOrder(&folders[fIdx], sourceAfter)
	applyItemOrder(&folders[dIdx], destAfter)
	if err := c.store.SetQuickAccessFolders(folders); err != nil {
		return err
	}
	c.scheduleReconcile()
	return nil
}

// MenuTree returns the quick-access folders in render order, owned section
// first, capped to the folder and per-folder item limits.
func (c *Coordinator) MenuTree() []model.QuickAccessFolder {
	owned, subscribed := splitSections(c.store.QuickAccessFolders())
	tree := append(owned, subscribed...)
	if len(tree) > model.MaxQuickAccessFolders {
		tree = tree[:model.MaxQuickAccessFolders]
	}
	for i := range tree {
		if len(tree[i].Items) > model.MaxItemsPerQuickAccessFolder {
			tree[i].Items = tree[i].Items[:model.MaxItemsPerQuickAccessFolder]
		}
	}
	return tree
}

// resolvePrompt finds a prompt by id across the owned and subscribed
// hierarchies and reports which side it came from.
func (c *Coordinator) resolvePrompt(promptID string) (title string, source model.SourceType, sourceLabel string, found bool) {
	for _, folder := range c.store.Folders() {
		for _, p := range folder.Prompts {
			if p.ID == promptID && p.Active() {
				return p.Title, model.SourceOwned, folder.Name, true
			}
		}
	}
	for _, folder := range c.store.SubscribedFolders() {
		for _, p := range folder.Prompts {
			if p.ID == promptID && p.Active() {
				label := folder.SourceLabel
				if label == "" {
					label = folder.Name
				}
				return p.Title, model.SourceSubscribed, label, true
			}
		}
	}
	return "", "", "", false
}

// ResolvePromptText maps a prompt id to its body text for paste delivery.
func (c *Coordinator) ResolvePromptText(promptID string) (string, error) {
	for _, folder := range c.store.Folders() {
		for _, p := range folder.Prompts {
			if p.ID == promptID && p.Active() {
				return p.Text, nil
			}
		}
	}
	for _, folder := range c.store.SubscribedFolders() {
		for _, p := range folder.Prompts {
			if p.ID == promptID && p.Active() {
				return p.Text, nil
			}
		}
	}
	return "", model.ErrNotFound
}

func (c *Coordinator) pushQuickAccessPositions(ctx context.Context, changed []ordering.Ref) error {
	for _, ref := range changed {
		err := c.remote.SetQuickAccessFolderPosition(ctx, ref.ID, ref.Position)
		if err == nil {
			continue
		}
		if errors.Is(err, model.ErrNotFound) {
			c.logger.Printf("sync: quick-access folder %s vanished remotely, skipping its position write", ref.ID)
			continue
		}
		c.logger.Printf("sync: quick-access position write for %s failed, re-pulling: %v", ref.ID, err)
		c.resync(ctx)
		return err
	}
	return nil
}

func (c *Coordinator) pushItemPositions(ctx context.Context, changed []ordering.Ref) error {
	for _, ref := range changed {
		err := c.remote.SetQuickAccessItemPosition(ctx, ref.ID, ref.Position)
		if err == nil {
			continue
		}
		if errors.Is(err, model.ErrNotFound) {
			c.logger.Printf("sync: quick-access item %s vanished remotely, skipping its position write", ref.ID)
			continue
		}
		c.logger.Printf("sync: quick-access item position write for %s failed, re-pulling: %v", ref.ID, err)
		c.resync(ctx)
		return err
	}
	return nil
}

func quickAccessIndex(folders []model.QuickAccessFolder, id string) int {
	for i, f := range folders {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func quickAccessItemIndex(folders []model.QuickAccessFolder, id string) (int, int) {
	for fi, f := range folders {
		for ii, item := range f.Items {
			if item.ID == id {
				return fi, ii
			}
		}
	}
	return -1, -1
}

func applyQuickAccessOrder(folders []model.QuickAccessFolder, refs []ordering.Ref) []model.QuickAccessFolder {
	byID := make(map[string]model.QuickAccessFolder, len(folders))
	for _, f := range folders {
		byID[f.ID] = f
	}
	out := make([]model.QuickAccessFolder, 0, len(refs))
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

func applyItemOrder(folder *model.QuickAccessFolder, refs []ordering.Ref) {
	positions := make(map[string]int, len(refs))
	for _, ref := range refs {
		positions[ref.ID] = ref.Position
	}
	for i := range folder.Items {
		if pos, ok := positions[folder.Items[i].ID]; ok {
			folder.Items[i].Position = pos
		}
	}
	items := folder.Items
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].Position < items[j-1].Position; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}
