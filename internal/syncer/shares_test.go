package syncer

import (
	"context"
	"errors"
	"testing"

	"github.com/promptdeck/promptdeck/internal/localstore"
	"github.com/promptdeck/promptdeck/internal/model"
)

// Two coordinators against the same fake remote play the share scenario:
// A shares a folder, B subscribes by code, A revokes, B's next pull drops
// the folder.
func TestShareSubscribeRevokeLifecycle(t *testing.T) {
	fake := newFakeAccessor()
	fake.folders = []model.Folder{{ID: "fold_f", Name: "Favorites", Position: 0}}
	fake.prompts = []model.Prompt{
		{ID: "prm_1", FolderID: "fold_f", Title: "One", Text: "1", Position: 0, CreatedAt: seedTime(0)},
		{ID: "prm_2", FolderID: "fold_f", Title: "Two", Text: "2", Position: 1, CreatedAt: seedTime(1)},
	}

	ownerStore := localstore.NewManager(localstore.Options{
		Backend: localstore.NewInMemoryStateBackend(),
		Logger:  silentLogger{},
	})
	if err := ownerStore.Initialize(); err != nil {
		t.Fatalf("initialize owner store: %v", err)
	}
	owner := NewCoordinator(Options{
		Remote:    fake,
		Store:     ownerStore,
		Principal: model.StaticPrincipal{User: &model.User{ID: "usr_a"}},
		Logger:    silentLogger{},
	})
	if err := owner.PerformSync(context.Background()); err != nil {
		t.Fatalf("owner sync failed: %v", err)
	}

	share, err := owner.ShareFolder(context.Background(), "fold_f", "my favorites")
	if err != nil {
		t.Fatalf("share failed: %v", err)
	}
	if !model.ValidShareCode(share.Code) {
		t.Fatalf("share code %q must be 12 chars from the share alphabet", share.Code)
	}

	subscriber, subscriberStore := newTestCoordinator(t, fake)

	preview, err := subscriber.PreviewShare(context.Background(), share.Code)
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	if preview.FolderName != "Favorites" || len(preview.Prompts) != 2 {
		t.Fatalf("unexpected preview: %+v", preview)
	}

	sub, err := subscriber.Subscribe(context.Background(), share.Code)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if sub.SubscriptionID == "" {
		t.Fatalf("expected a subscription row")
	}
	subscribed := subscriberStore.SubscribedFolders()
	if len(subscribed) != 1 || len(subscribed[0].Prompts) != 2 {
		t.Fatalf("subscriber must see the folder's prompts read-only, got %+v", subscribed)
	}

	if err := owner.RevokeShare(context.Background(), "fold_f"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if err := subscriber.PerformSync(context.Background()); err != nil {
		t.Fatalf("subscriber re-sync failed: %v", err)
	}
	if got := subscriberStore.SubscribedFolders(); len(got) != 0 {
		t.Fatalf("revoked share must vanish on the next pull, got %+v", got)
	}
}

func TestReShareRegeneratesCode(t *testing.T) {
	fake := newFakeAccessor()
	fake.folders = []model.Folder{{ID: "fold_f", Name: "Favorites", Position: 0}}
	coordinator, _ := newTestCoordinator(t, fake)
	if err := coordinator.PerformSync(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	first, err := coordinator.ShareFolder(context.Background(), "fold_f", "")
	if err != nil {
		t.Fatalf("share failed: %v", err)
	}
	second, err := coordinator.ShareFolder(context.Background(), "fold_f", "")
	if err != nil {
		t.Fatalf("re-share failed: %v", err)
	}
	if first.Code == second.Code {
		t.Fatalf("re-sharing must mint a fresh code")
	}
	if _, err := coordinator.PreviewShare(context.Background(), first.Code); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("old code must stop resolving, got %v", err)
	}
}

func TestShareUnknownFolder(t *testing.T) {
	fake := newFakeAccessor()
	coordinator, _ := newTestCoordinator(t, fake)
	if _, err := coordinator.ShareFolder(context.Background(), "fold_missing", ""); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUnsubscribeDropsDanglingQuickAccessItems(t *testing.T) {
	fake := newFakeAccessor()
	fake.subs = []model.SubscribedFolder{
		{ID: "fold_x", SubscriptionID: "sub_1", Name: "Team", Prompts: []model.Prompt{
			{ID: "prm_sub", FolderID: "fold_x", Title: "Shared", Text: "s", Position: 0, CreatedAt: seedTime(0)},
		}},
	}
	fake.qaFolders = []model.QuickAccessFolder{
		{ID: "qaf_s", Name: "Team", Position: 0, Items: []model.QuickAccessItem{
			{ID: "qai_s", FolderID: "qaf_s", PromptID: "prm_sub", Title: "Shared", Position: 0, SourceType: model.SourceSubscribed},
		}},
	}
	coordinator, store := newTestCoordinator(t, fake)
	if err := coordinator.PerformSync(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if err := coordinator.Unsubscribe(context.Background(), "sub_1"); err != nil {
		t.Fatalf("unsubscribe failed: %v", err)
	}
	if got := store.SubscribedFolders(); len(got) != 0 {
		t.Fatalf("subscription must be gone locally, got %+v", got)
	}
	for _, f := range store.QuickAccessFolders() {
		for _, item := range f.Items {
			if item.PromptID == "prm_sub" {
				t.Fatalf("quick-access item pointing at the departed folder must be removed")
			}
		}
	}

	if err := coordinator.Unsubscribe(context.Background(), "sub_missing"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown subscription, got %v", err)
	}
}
