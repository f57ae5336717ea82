package types

// StateSubtreeCollapsed marks a tab whose subtree is collapsed in the tree
// extension.
const StateSubtreeCollapsed = "subtree-collapsed"

// TabNode is a tab in a normalized forest. It is both the export format and
// the restore input format.
type TabNode struct {
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	ID            int        `json:"id"`
	FavIconURL    string     `json:"favIconUrl,omitempty"`
	Discarded     bool       `json:"discarded"`
	Pinned        bool       `json:"pinned,omitempty"`
	Active        bool       `json:"active,omitempty"`
	CookieStoreID string     `json:"cookieStoreId,omitempty"`
	States        []string   `json:"states,omitempty"`
	Index         *int       `json:"index,omitempty"` // raw sibling position; restore side only
	Children      []*TabNode `json:"children,omitempty"`
}

// HasState reports whether the node carries the given tree-extension state.
func (n *TabNode) HasState(state string) bool {
	for _, s := range n.States {
		if s == state {
			return true
		}
	}
	return false
}

// Collapsed reports whether the node's subtree was collapsed.
func (n *TabNode) Collapsed() bool {
	return n.HasState(StateSubtreeCollapsed)
}

// RawTab is a tab as returned by the tree extension's get-tree call.
// AncestorTabIDs is nearest-first: index 0 is the parent, the last entry
// is the root.
type RawTab struct {
	ID                  int       `json:"id"`
	WindowID            int       `json:"windowId"`
	Index               int       `json:"index"`
	URL                 string    `json:"url"`
	Title               string    `json:"title"`
	FavIconURL          string    `json:"favIconUrl"`
	EffectiveFavIconURL string    `json:"effectiveFavIconUrl"`
	Pinned              bool      `json:"pinned"`
	Discarded           bool      `json:"discarded"`
	Active              bool      `json:"active"`
	CookieStoreID       string    `json:"cookieStoreId"`
	States              []string  `json:"states"`
	AncestorTabIDs      []int     `json:"ancestorTabIds"`
	Children            []*RawTab `json:"children"`
}

// FlatNode is a forest node annotated for tab creation.
type FlatNode struct {
	*TabNode
	OpenerTabID *int // original parent id; nil for roots
	Depth       int
	RootID      int
}

// RestoreState is the progress of the current restore.
type RestoreState struct {
	InProgress bool `json:"inProgress"`
	Loaded     int  `json:"loaded"`
	Total      int  `json:"total"`
}

// Tab is a live tab as reported by the host browser.
type Tab struct {
	ID       int    `json:"id"`
	WindowID int    `json:"windowId"`
	Index    int    `json:"index"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Active   bool   `json:"active"`
}

// Profile is a Firefox profile listed in profiles.ini.
type Profile struct {
	Name        string
	Path        string // absolute profile directory
	IsDefault   bool
	SessionFile string // newest mozlz4 session file; empty when there is none
}

// Readable reports whether an offline export can read the profile.
func (p Profile) Readable() bool { return p.SessionFile != "" }

// CountNodes returns the number of nodes in a forest.
func CountNodes(forest []*TabNode) int {
	n := 0
	for _, node := range forest {
		n += 1 + CountNodes(node.Children)
	}
	return n
}
