package model

import (
	"time"
)

// SourceType tags where a quick-access item's prompt comes from. An item
// references either an owned prompt or a subscribed one, never both.
type SourceType string

const (
	SourceOwned      SourceType = "owned"
	SourceSubscribed SourceType = "subscribed"
)

const (
	// MaxActivePromptsPerFolder caps active (non-trashed) prompts in a folder.
	MaxActivePromptsPerFolder = 10
	// MaxQuickAccessFolders caps quick-access folders per user.
	MaxQuickAccessFolders = 30
	// MaxItemsPerQuickAccessFolder caps items within one quick-access folder.
	MaxItemsPerQuickAccessFolder = 10
	// MaxTrashEntries is the number of most-recent soft-deleted prompts kept
	// per user; older entries are hard-deleted opportunistically.
	MaxTrashEntries = 10
)

type Prompt struct {
	ID         string     `json:"id"`
	FolderID   string     `json:"folderId,omitempty"`
	OwnerID    string     `json:"ownerId,omitempty"`
	Title      string     `json:"title"`
	Text       string     `json:"text"`
	Position   int        `json:"position"`
	UseCount   int        `json:"useCount,omitempty"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
	CreatedAt  time.Time  `json:"timestamp"`
	Imported   bool       `json:"isImported,omitempty"`
}

// Active reports whether the prompt counts toward the per-folder cap.
func (p Prompt) Active() bool {
	return p.DeletedAt == nil
}

type Folder struct {
	ID       string   `json:"id"`
	OwnerID  string   `json:"ownerId,omitempty"`
	Name     string   `json:"name"`
	Position int      `json:"position"`
	Imported bool     `json:"isImported,omitempty"`
	Prompts  []Prompt `json:"prompts"`
}

// ActivePromptCount counts prompts that are not soft-deleted.
func (f Folder) ActivePromptCount() int {
	count := 0
	for _, p := range f.Prompts {
		if p.Active() {
			count++
		}
	}
	return count
}

type Share struct {
	ID        string    `json:"id"`
	FolderID  string    `json:"folderId"`
	Code      string    `json:"code"`
	Label     string    `json:"label,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// SharePreview is the unauthenticated view returned when resolving a code.
type SharePreview struct {
	FolderName  string   `json:"folderName"`
	OwnerLabel  string   `json:"ownerLabel,omitempty"`
	SourceLabel string   `json:"sourceLabel,omitempty"`
	Prompts     []string `json:"prompts"`
}

// SubscribedFolder is the read-only local view of a folder another user
// shared, as of the last sync.
type SubscribedFolder struct {
	ID             string   `json:"id"`
	SubscriptionID string   `json:"subscriptionId"`
	Name           string   `json:"name"`
	OwnerLabel     string   `json:"ownerLabel,omitempty"`
	SourceLabel    string   `json:"sourceLabel,omitempty"`
	Prompts        []Prompt `json:"prompts"`
}

type QuickAccessItem struct {
	ID          string     `json:"id"`
	FolderID    string     `json:"folderId"`
	PromptID    string     `json:"promptId"`
	Title       string     `json:"title"`
	Position    int        `json:"position"`
	SourceType  SourceType `json:"sourceType"`
	SourceLabel string     `json:"sourceLabel,omitempty"`
}

type QuickAccessFolder struct {
	ID       string            `json:"id"`
	OwnerID  string            `json:"ownerId,omitempty"`
	Name     string            `json:"name"`
	Position int               `json:"position"`
	Items    []QuickAccessItem `json:"items"`
}

// Section classifies a quick-access folder. A folder is owned-section if it
// is empty or holds at least one owned item; it is subscribed-section only
// when every item is subscribed. Sections never mix partially.
func (f QuickAccessFolder) Section() SourceType {
	if len(f.Items) == 0 {
		return SourceOwned
	}
	for _, item := range f.Items {
		if item.SourceType != SourceSubscribed {
			return SourceOwned
		}
	}
	return SourceSubscribed
}

// Accepts reports whether an item of the given source type may join the
// folder without breaking section purity.
func (f QuickAccessFolder) Accepts(source SourceType) bool {
	if len(f.Items) == 0 {
		return true
	}
	return f.Section() == source
}

// User is the authenticated principal. A nil *User means not authenticated.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// PrincipalProvider is the boundary contract to the authentication layer.
type PrincipalProvider interface {
	CurrentUser() *User
}

// StaticPrincipal is a fixed principal, used by the agent binary where
// credentials come from configuration.
type StaticPrincipal struct {
	User *User
}

func (p StaticPrincipal) CurrentUser() *User {
	return p.User
}
