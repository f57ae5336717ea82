// Package host defines the browser capabilities tabtree drives: the host
// tab API and the tree extension API.
package host

import (
	"context"
	"errors"

	"github.com/lotas/tabtree/internal/types"
)

// ErrRejected marks a command the browser answered with an error. Such a
// command had no effect, unlike one that timed out.
var ErrRejected = errors.New("rejected by the browser")

// CreateProps describes a tab to create.
type CreateProps struct {
	URL           string `json:"url,omitempty"`
	Title         string `json:"title,omitempty"`
	Active        bool   `json:"active"`
	Discarded     bool   `json:"discarded,omitempty"`
	Pinned        bool   `json:"pinned,omitempty"`
	OpenerTabID   *int   `json:"openerTabId,omitempty"`
	CookieStoreID string `json:"cookieStoreId,omitempty"`
}

// UpdateProps is a partial tab update.
type UpdateProps struct {
	Active *bool `json:"active,omitempty"`
	Pinned *bool `json:"pinned,omitempty"`
}

// Query filters tabs. Zero fields match everything.
type Query struct {
	URL           string `json:"url,omitempty"`
	Active        *bool  `json:"active,omitempty"`
	CurrentWindow bool   `json:"currentWindow,omitempty"`
}

// Tabs is the host tab API.
type Tabs interface {
	Create(ctx context.Context, props CreateProps) (types.Tab, error)
	// Move places ids, in order, at index; -1 means the end of the window.
	Move(ctx context.Context, ids []int, index int) error
	Update(ctx context.Context, id int, props UpdateProps) error
	Query(ctx context.Context, q Query) ([]types.Tab, error)
	Get(ctx context.Context, id int) (types.Tab, error)
	Remove(ctx context.Context, id int) error
	FocusWindow(ctx context.Context, windowID int) error
}

// Tree is the tree extension API.
type Tree interface {
	GetTree(ctx context.Context) ([]*types.RawTab, error)
	Collapse(ctx context.Context, id int) error
	Expand(ctx context.Context, id int) error
	Focus(ctx context.Context, id int) error
}

// Downloader saves a file on the user's side.
type Downloader interface {
	Download(ctx context.Context, filename, mimeType, content string) error
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }
