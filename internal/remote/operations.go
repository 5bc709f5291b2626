package remote

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/promptdeck/promptdeck/internal/model"
)

// Accessor is the full surface of the remote store the sync engine uses.
// The HTTP client implements it; tests stand in a fake.
type Accessor interface {
	FetchFolders(ctx context.Context) ([]model.Folder, error)
	FetchPrompts(ctx context.Context) ([]model.Prompt, error)
	FetchTrash(ctx context.Context) ([]model.Prompt, error)
	FetchSubscriptions(ctx context.Context) ([]model.SubscribedFolder, error)
	FetchQuickAccess(ctx context.Context) ([]model.QuickAccessFolder, error)

	CreateFolder(ctx context.Context, folder model.Folder) error
	RenameFolder(ctx context.Context, id, name string) error
	DeleteFolder(ctx context.Context, id string) error
	SetFolderPosition(ctx context.Context, id string, position int) error

	CreatePrompt(ctx context.Context, prompt model.Prompt) error
	UpdatePrompt(ctx context.Context, prompt model.Prompt) error
	TrashPrompt(ctx context.Context, id string) error
	RestorePrompt(ctx context.Context, id string) error
	PurgePrompt(ctx context.Context, id string) error
	SetPromptPosition(ctx context.Context, id string, position int) error

	CreateQuickAccessFolder(ctx context.Context, folder model.QuickAccessFolder) error
	RenameQuickAccessFolder(ctx context.Context, id, name string) error
	DeleteQuickAccessFolder(ctx context.Context, id string) error
	SetQuickAccessFolderPosition(ctx context.Context, id string, position int) error
	CreateQuickAccessItem(ctx context.Context, item model.QuickAccessItem) error
	DeleteQuickAccessItem(ctx context.Context, id string) error
	MoveQuickAccessItem(ctx context.Context, id, folderID string, position int) error
	SetQuickAccessItemPosition(ctx context.Context, id string, position int) error

	CreateShare(ctx context.Context, folderID, code, label string) (model.Share, error)
	RevokeShare(ctx context.Context, folderID string) error
	ResolveShare(ctx context.Context, code string) (model.SharePreview, error)

	CreateSubscription(ctx context.Context, code string) (model.SubscribedFolder, error)
	DeleteSubscription(ctx context.Context, id string) error
}

var _ Accessor = (*Client)(nil)

// Reads return empty results without touching the network when nobody is
// logged in; a signed-out client simply sees an empty account.

func (c *Client) FetchFolders(ctx context.Context) ([]model.Folder, error) {
	if c.currentUser() == nil {
		return nil, nil
	}
	var out []model.Folder
	if err := c.doJSON(ctx, http.MethodGet, "/v1/folders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FetchPrompts(ctx context.Context) ([]model.Prompt, error) {
	if c.currentUser() == nil {
		return nil, nil
	}
	var out []model.Prompt
	if err := c.doJSON(ctx, http.MethodGet, "/v1/prompts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FetchTrash(ctx context.Context) ([]model.Prompt, error) {
	if c.currentUser() == nil {
		return nil, nil
	}
	var out []model.Prompt
	if err := c.doJSON(ctx, http.MethodGet, "/v1/prompts/trash", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FetchSubscriptions(ctx context.Context) ([]model.SubscribedFolder, error) {
	if c.currentUser() == nil {
		return nil, nil
	}
	var out []model.SubscribedFolder
	if err := c.doJSON(ctx, http.MethodGet, "/v1/subscriptions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FetchQuickAccess(ctx context.Context) ([]model.QuickAccessFolder, error) {
	if c.currentUser() == nil {
		return nil, nil
	}
	var out []model.QuickAccessFolder
	if err := c.doJSON(ctx, http.MethodGet, "/v1/quick-access", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) requirePrincipal() error {
	if c.currentUser() == nil {
		return model.ErrNotAuthenticated
	}
	return nil
}

func (c *Client) CreateFolder(ctx context.Context, folder model.Folder) error {
	if err := c.requirePrincipal(); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, "/v1/folders", folder, nil)
}

func (c *Client) RenameFolder(ctx context.Context, id, name string) error {
	if err := c.requirePrincipal(); err != nil {
		return err
	}
	body := map[string]string{"name": name}
	return c.doJSON(ctx, http.MethodPatch, "/v1/folders/"+url.PathEscape(id), body, nil)
}

func (c *Client) DeleteFolder(ctx context.Context, id string) error {
	if err := c.requirePrincipal(); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodDelete, "/v1/folders/"+url.PathEscape(id), nil, nil)
}

func (c *Client) SetFolderPosition(ctx context.Context, id string, position int) error {
	if err := c.requirePrincipal(); err != nil {
		return err
	}
	body := map[string]int{"position": position}
	return c.doJSON(ctx, http.MethodPatch, "/v1/folders/"+url.PathEscape(id)+"/position", body, nil)
}

func (c *Client) CreatePrompt(ctx context.Context, prompt model.Prompt) error {
	if err := c.requirePrincipal(); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, "/v1/prompts", prompt, nil)
}

func (c *Client) UpdatePrompt(ctx context.Context, prompt model.Prompt) error {
	if err := c.requirePrincipal(); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPut, "/v1/prompts/"+url.PathEscape(prompt.ID), prompt, nil)
}

func (c *Client) TrashPrompt(ctx context.Context, id string) error {
	if err := c.requirePrincipal(); err != nil {
		return err
	}
	body := map[string]string{"deletedAt": time.Now().UTC().Format(time.RFC3339)}
	return c.doJSON(ctx, http.MethodPost, "/v1/prompts/"+url.PathEscape(id)+"/trash", body, nil)
}

func (c *Client) RestorePrompt(ctx context.Context, id string) error {
	if err := c.requirePrincipal(); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, "/v1/prompts/"+url.PathEscape(id)+"/restore", nil, nil)
}

// PurgePrompt removes a trashed prompt permanently.
func (c *Client) PurgePrompt(ctx context.Context, id string) error {
	if err := c.requirePrincipal(); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodDelete, "/v1/prompts/"+url.PathEscape(id), nil, nil)
}

func (c *Client) SetPromptPosition(ctx context.Context, id string, position int) error {
	if err := c.requirePrincipal(); err != nil {
		return err
	}
	body := map[string]int{"position": position}
	return c.doJSON(ctx, http.MethodPatch, "/v1/prompts/"+url.PathEscape(id)+"/position", body, nil)
}

func (c *Client) CreateQuickAccessFolder(ctx context.Context, folder model.QuickAccessFolder) error {
	if err := c.requirePrincipal(); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, "/v1/quick-access", folder, nil)
}

func (c *Client) RenameQuickAccessFolder(ctx context.Context, id, name string) error {
	if err := c.requirePrincipal(); err != nil {
		return err
	}
	body := map[string]string{"name": name}
	return c.doJSON(ctx, http.MethodPatch, "/v1/quick-access/"+url.PathEscape(id), body, nil)
}

func (c *Client) DeleteQuickAccessFolder(ctx context.Context, id string) error {
	if err := c.requirePrincipal(); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodDelete, "/v1/quick-access/"+url.PathEscape(id), nil, nil)
}

func (c *Client) SetQuickAccessFolderPosition(ctx context.Context, id string, position int) error {
	if err := c.requirePrincipal(); err != nil {
		return err
	}
	body := map[string]int{"position": position}
	return c.doJSON(ctx, http.MethodPatch, "/v1/quick-access/"+url.PathEscape(id)+"/position", body, nil)
}

func (c *Client) CreateQuickAccessItem(ctx context.Context, item model.QuickAccessItem) error {
	if err := c.requirePrincipal(); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, "/v1/quick-access-items", item, nil)
}

func (c *Client) DeleteQuickAccessItem(ctx context.Context, id string) error {
	if err := c.requirePrincipal(); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodDelete, "/v1/quick-access-items/"+url.PathEscape(id), nil, nil)
}

func (c *Client) MoveQuickAccessItem(ctx context.Context, id, folderID string, position int) error {
	if err := c.requirePrincipal(); err != nil {
		return err
	}
	body := map[string]any{"folderId": folderID, "position": position}
	return c.doJSON(ctx, http.MethodPatch, "/v1/quick-access-items/"+url.PathEscape(id)+"/move", body, nil)
}

func (c *Client) SetQuickAccessItemPosition(ctx context.Context, id string, position int) error {
	if err := c.requirePrincipal(); err != nil {
		return err
	}
	body := map[string]int{"position": position}
	return c.doJSON(ctx, http.MethodPatch, "/v1/quick-access-items/"+url.PathEscape(id)+"/position", body, nil)
}

func (c *Client) CreateShare(ctx context.Context, folderID, code, label string) (model.Share, error) {
	if err := c.requirePrincipal(); err != nil {
		return model.Share{}, err
	}
	body := map[string]string{"folderId": folderID, "code": code, "label": label}
	var out model.Share
	if err := c.doJSON(ctx, http.MethodPost, "/v1/shares", body, &out); err != nil {
		return model.Share{}, err
	}
	return out, nil
}

func (c *Client) RevokeShare(ctx context.Context, folderID string) error {
	if err := c.requirePrincipal(); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodDelete, "/v1/shares/folder/"+url.PathEscape(folderID), nil, nil)
}

// ResolveShare looks up a share code's preview. It needs no principal so
// people can inspect a share before signing in.
func (c *Client) ResolveShare(ctx context.Context, code string) (model.SharePreview, error) {
	if !model.ValidShareCode(code) {
		return model.SharePreview{}, model.ErrInvalidInput
	}
	var out model.SharePreview
	if err := c.doJSON(ctx, http.MethodGet, "/v1/shares/"+url.PathEscape(code), nil, &out); err != nil {
		return model.SharePreview{}, err
	}
	return out, nil
}

func (c *Client) CreateSubscription(ctx context.Context, code string) (model.SubscribedFolder, error) {
	if err := c.requirePrincipal(); err != nil {
		return model.SubscribedFolder{}, err
	}
	if !model.ValidShareCode(code) {
		return model.SubscribedFolder{}, model.ErrInvalidInput
	}
	body := map[string]string{"code": code}
	var out model.SubscribedFolder
	if err := c.doJSON(ctx, http.MethodPost, "/v1/subscriptions", body, &out); err != nil {
		return model.SubscribedFolder{}, err
	}
	return out, nil
}

func (c *Client) DeleteSubscription(ctx context.Context, id string) error {
	if err := c.requirePrincipal(); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodDelete, "/v1/subscriptions/"+url.PathEscape(id), nil, nil)
}
