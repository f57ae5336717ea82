package tree

import "github.com/lotas/tabtree/internal/types"

// PathEntry is a node with its ancestor chain (root first, parent last,
// excluding the node itself).
type PathEntry struct {
	Node *types.TabNode
	Path []*types.TabNode
}

// FlattenWithPath flattens a forest depth-first, pre-order.
func FlattenWithPath(forest []*types.TabNode) []PathEntry {
	var out []PathEntry
	for _, root := range forest {
		out = appendWithPath(out, root, nil)
	}
	return out
}

func appendWithPath(out []PathEntry, node *types.TabNode, path []*types.TabNode) []PathEntry {
	out = append(out, PathEntry{Node: node, Path: append([]*types.TabNode(nil), path...)})
	if len(node.Children) == 0 {
		return out
	}
	childPath := append(append([]*types.TabNode(nil), path...), node)
	for _, child := range node.Children {
		out = appendWithPath(out, child, childPath)
	}
	return out
}

// FlattenWithDepth flattens a forest depth-first, pre-order, recording each
// node's original parent, depth and root id. Top-level calls pass nil,
// 0 and nil; a top-level node becomes the root of its own descendants.
func FlattenWithDepth(forest []*types.TabNode, parentID *int, depth int, rootID *int) []types.FlatNode {
	var out []types.FlatNode
	for _, node := range forest {
		root := node.ID
		if rootID != nil {
			root = *rootID
		}
		var opener *int
		if parentID != nil {
			p := *parentID
			opener = &p
		}
		out = append(out, types.FlatNode{
			TabNode:     node,
			OpenerTabID: opener,
			Depth:       depth,
			RootID:      root,
		})
		if len(node.Children) > 0 {
			id := node.ID
			out = append(out, FlattenWithDepth(node.Children, &id, depth+1, &root)...)
		}
	}
	return out
}

// MaxDepth returns the number of levels in the deepest branch of forest.
func MaxDepth(forest []*types.TabNode) int {
	max := 0
	for _, e := range FlattenWithPath(forest) {
		if d := len(e.Path) + 1; d > max {
			max = d
		}
	}
	return max
}
