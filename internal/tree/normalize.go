// Package tree converts the tree extension's raw tab list into a clean
// forest and flattens forests for tabular export and for tab creation.
package tree

import (
	"github.com/lotas/tabtree/internal/icon"
	"github.com/lotas/tabtree/internal/types"
)

// Normalize converts raw tabs into a rooted forest in which every tab id
// appears at most once.
//
// A tab is a root when it has no ancestors or when its nearest ancestor
// (AncestorTabIDs[0]) is not part of raw. Subtrees come from each tab's own
// Children. The first visit of an id wins; later references to it, including
// cyclic ones, are dropped.
func Normalize(raw []*types.RawTab) []*types.TabNode {
	present := make(map[int]bool, len(raw))
	for _, tab := range raw {
		if tab != nil {
			present[tab.ID] = true
		}
	}

	processed := make(map[int]bool, len(raw))
	roots := make([]*types.TabNode, 0)
	for _, tab := range raw {
		if tab == nil || !IsRoot(tab, present) {
			continue
		}
		if node := buildSubtree(tab, processed); node != nil {
			roots = append(roots, node)
		}
	}
	return roots
}

// IsRoot reports whether tab starts a tree within the set of present ids.
func IsRoot(tab *types.RawTab, present map[int]bool) bool {
	if len(tab.AncestorTabIDs) == 0 {
		return true
	}
	return !present[tab.AncestorTabIDs[0]]
}

func buildSubtree(tab *types.RawTab, processed map[int]bool) *types.TabNode {
	if processed[tab.ID] {
		return nil
	}
	processed[tab.ID] = true

	node := &types.TabNode{
		Title:         tab.Title,
		URL:           tab.URL,
		ID:            tab.ID,
		FavIconURL:    icon.Resolve(tab.URL, tab.FavIconURL, tab.EffectiveFavIconURL),
		Discarded:     tab.Discarded,
		Pinned:        tab.Pinned,
		Active:        tab.Active,
		CookieStoreID: tab.CookieStoreID,
		States:        tab.States,
	}

	for _, child := range tab.Children {
		if child == nil {
			continue
		}
		if c := buildSubtree(child, processed); c != nil {
			node.Children = append(node.Children, c)
		}
	}
	if len(node.Children) == 0 {
		node.Children = nil
	}
	return node
}

// Filter returns a copy of raw without the tabs rejected by keep. A rejected
// tab takes its nested children with it.
func Filter(raw []*types.RawTab, keep func(*types.RawTab) bool) []*types.RawTab {
	result := make([]*types.RawTab, 0, len(raw))
	for _, tab := range raw {
		if tab == nil || !keep(tab) {
			continue
		}
		cp := *tab
		if len(tab.Children) > 0 {
			cp.Children = Filter(tab.Children, keep)
		}
		result = append(result, &cp)
	}
	return result
}

// Nest rebuilds nesting for a flat list of nodes whose hierarchy is only
// given by parent ids. parentOf maps a node id to its nearest ancestor id.
// Nodes whose parent is absent become roots; sibling order follows the
// input order. Cyclic parent chains are broken at the first revisit.
func Nest(flat []*types.TabNode, parentOf map[int]int) []*types.TabNode {
	byID := make(map[int]*types.TabNode, len(flat))
	for _, n := range flat {
		if _, dup := byID[n.ID]; !dup {
			byID[n.ID] = n
		}
	}

	attached := make(map[int]bool, len(flat))
	var roots []*types.TabNode
	for _, n := range flat {
		if attached[n.ID] || byID[n.ID] != n {
			continue
		}
		attached[n.ID] = true
		pid, ok := parentOf[n.ID]
		parent := byID[pid]
		if !ok || parent == nil || parent == n || createsCycle(n.ID, pid, parentOf) {
			roots = append(roots, n)
			continue
		}
		parent.Children = append(parent.Children, n)
	}
	return roots
}

func createsCycle(id, parent int, parentOf map[int]int) bool {
	seen := map[int]bool{id: true}
	for cur := parent; ; {
		if seen[cur] {
			return true
		}
		seen[cur] = true
		next, ok := parentOf[cur]
		if !ok {
			return false
		}
		cur = next
	}
}
