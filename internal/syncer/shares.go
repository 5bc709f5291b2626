package syncer

import (
	"context"

	"github.com/promptdeck/promptdeck/internal/model"
)

// ShareFolder publishes a folder under a freshly generated share code.
// Sharing an already shared folder issues a new code; the old one stops
// resolving once the remote replaces the share row.
func (c *Coordinator) ShareFolder(ctx context.Context, folderID, label string) (model.Share, error) {
	folders := c.store.Folders()
	if folderIndex(folders, folderID) < 0 {
		return model.Share{}, model.ErrNotFound
	}
	code, err := model.NewShareCode()
	if err != nil {
		return model.Share{}, err
	}
	share, err := c.remote.CreateShare(ctx, folderID, code, label)
	if err != nil {
		return model.Share{}, err
	}
	return share, nil
}

// RevokeShare deactivates the share on a folder. Existing subscribers lose
// the folder on their next pull.
func (c *Coordinator) RevokeShare(ctx context.Context, folderID string) error {
	return c.remote.RevokeShare(ctx, folderID)
}

// PreviewShare resolves a code to its unauthenticated preview so a user
// can inspect a share before subscribing.
func (c *Coordinator) PreviewShare(ctx context.Context, code string) (model.SharePreview, error) {
	return c.remote.ResolveShare(ctx, code)
}

// Subscribe joins a shared folder by code. The subscribed folder shows up
// read-only in the local snapshot immediately; a background pull fills in
// its prompts.
func (c *Coordinator) Subscribe(ctx context.Context, code string) (model.SubscribedFolder, error) {
	subscribed, err := c.remote.CreateSubscription(ctx, code)
	if err != nil {
		return model.SubscribedFolder{}, err
	}
	current := c.store.SubscribedFolders()
	for _, existing := range current {
		if existing.ID == subscribed.ID {
			return subscribed, nil
		}
	}
	if err := c.store.SetSubscribedFolders(append(current, subscribed)); err != nil {
		return model.SubscribedFolder{}, err
	}
	c.scheduleReconcile()
	return subscribed, nil
}

// Unsubscribe drops a subscription and every quick-access item that
// pointed into the departed folder, so the menu never dangles.
func (c *Coordinator) Unsubscribe(ctx context.Context, subscriptionID string) error {
	current := c.store.SubscribedFolders()
	idx := -1
	for i, f := range current {
		if f.SubscriptionID == subscriptionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.ErrNotFound
	}
	if err := c.remote.DeleteSubscription(ctx, subscriptionID); err != nil {
		return err
	}
	departed := current[idx]
	remaining := append(current[:idx:idx], current[idx+1:]...)
	if err := c.store.SetSubscribedFolders(remaining); err != nil {
		return err
	}
	c.dropQuickAccessReferences(ctx, departed)
	c.scheduleReconcile()
	return nil
}

// dropQuickAccessReferences removes quick-access items whose prompt lived
// in the given subscribed folder. Remote cleanup failures are logged; the
// next sync converges them.
func (c *Coordinator) dropQuickAccessReferences(ctx context.Context, departed model.SubscribedFolder) {
	promptIDs := make(map[string]bool, len(departed.Prompts))
	for _, p := range departed.Prompts {
		promptIDs[p.ID] = true
	}
	if len(promptIDs) == 0 {
		return
	}
	for _, folder := range c.store.QuickAccessFolders() {
		for _, item := range folder.Items {
			if item.SourceType != model.SourceSubscribed || !promptIDs[item.PromptID] {
				continue
			}
			if err := c.RemoveQuickAccessItem(ctx, item.ID); err != nil {
				c.logger.Printf("sync: removing dangling quick-access item %s failed: %v", item.ID, err)
			}
		}
	}
}
