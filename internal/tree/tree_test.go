package tree

import (
	"testing"

	"github.com/lotas/tabtree/internal/icon"
	"github.com/lotas/tabtree/internal/types"
)

// rawTree builds the shape the tree extension returns for get-tree '*':
// every tab at top level, with children nested as well.
func rawTree() []*types.RawTab {
	grandchild := &types.RawTab{ID: 3, URL: "https://c.example", Title: "C", AncestorTabIDs: []int{2, 1}}
	child := &types.RawTab{ID: 2, URL: "https://b.example", Title: "B", AncestorTabIDs: []int{1}, Children: []*types.RawTab{grandchild}}
	root := &types.RawTab{ID: 1, URL: "https://a.example", Title: "A", Children: []*types.RawTab{child}}
	other := &types.RawTab{ID: 4, URL: "about:config", Title: "Config"}
	return []*types.RawTab{root, child, grandchild, other}
}

func collectIDs(forest []*types.TabNode) []int {
	var ids []int
	for _, e := range FlattenWithPath(forest) {
		ids = append(ids, e.Node.ID)
	}
	return ids
}

func TestNormalizeBuildsForest(t *testing.T) {
	forest := Normalize(rawTree())
	if len(forest) != 2 {
		t.Fatalf("got %d roots, want 2", len(forest))
	}
	if forest[0].ID != 1 || forest[1].ID != 4 {
		t.Errorf("roots = %d,%d, want 1,4", forest[0].ID, forest[1].ID)
	}
	if got := collectIDs(forest); len(got) != 4 {
		t.Errorf("ids = %v, want 4 entries", got)
	}
	if forest[1].FavIconURL != icon.SettingsIconURL {
		t.Errorf("about:config icon = %q", forest[1].FavIconURL)
	}
	if forest[1].Children != nil {
		t.Error("leaf must have no children slice")
	}
}

func TestNormalizeDeduplicates(t *testing.T) {
	raw := rawTree()
	// Tab 1 also appears as a child of 3: a cycle in the raw data.
	raw[2].Children = []*types.RawTab{raw[0]}
	// And tab 2 is listed twice under the root.
	raw[0].Children = append(raw[0].Children, raw[1])

	forest := Normalize(raw)
	seen := map[int]int{}
	for _, id := range collectIDs(forest) {
		seen[id]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("id %d appears %d times", id, n)
		}
	}
	if len(seen) != 4 {
		t.Errorf("got %d distinct ids, want 4", len(seen))
	}
}

func TestNormalizeMissingAncestorBecomesRoot(t *testing.T) {
	raw := []*types.RawTab{
		{ID: 7, URL: "https://orphan.example", AncestorTabIDs: []int{99}},
		{ID: 8, URL: "https://x.example"},
	}
	forest := Normalize(raw)
	if len(forest) != 2 || forest[0].ID != 7 {
		t.Fatalf("expected orphan 7 to be a root, got %v", collectIDs(forest))
	}
}

func TestNormalizeToleratesMissingURL(t *testing.T) {
	forest := Normalize([]*types.RawTab{{ID: 1, Title: "untitled"}})
	if len(forest) != 1 || forest[0].FavIconURL != icon.FallbackIconURL {
		t.Fatalf("unexpected forest %+v", forest)
	}
}

func TestFilterDropsSubtree(t *testing.T) {
	raw := rawTree()
	filtered := Filter(raw, func(tab *types.RawTab) bool { return tab.ID != 2 })
	forest := Normalize(filtered)
	ids := collectIDs(forest)
	for _, id := range ids {
		if id == 2 {
			t.Fatal("filtered tab still present")
		}
	}
	// Tab 3's nearest ancestor (2) is gone, so it becomes a root.
	if len(forest) != 3 {
		t.Errorf("got roots %v, want 1, 3, 4", ids)
	}
	if len(raw[0].Children) != 1 {
		t.Error("Filter must not mutate its input")
	}
}

func TestFlattenWithPath(t *testing.T) {
	forest := Normalize(rawTree())
	entries := FlattenWithPath(forest)
	if len(entries) != types.CountNodes(forest) {
		t.Fatalf("got %d entries, want %d", len(entries), types.CountNodes(forest))
	}
	gc := entries[2]
	if gc.Node.ID != 3 || len(gc.Path) != 2 || gc.Path[0].ID != 1 || gc.Path[1].ID != 2 {
		t.Errorf("grandchild entry = %+v", gc)
	}
	if len(entries[0].Path) != 0 {
		t.Error("root path must be empty")
	}
	if MaxDepth(forest) != 3 {
		t.Errorf("MaxDepth = %d, want 3", MaxDepth(forest))
	}
}

func TestFlattenWithDepth(t *testing.T) {
	forest := Normalize(rawTree())
	flat := FlattenWithDepth(forest, nil, 0, nil)
	if len(flat) != 4 {
		t.Fatalf("got %d nodes", len(flat))
	}
	roots := 0
	for _, n := range flat {
		if n.Depth == 0 {
			roots++
			if n.OpenerTabID != nil || n.RootID != n.ID {
				t.Errorf("root %d: opener=%v root=%d", n.ID, n.OpenerTabID, n.RootID)
			}
		}
	}
	if roots != len(forest) {
		t.Errorf("depth-0 entries = %d, want %d", roots, len(forest))
	}
	gc := flat[2]
	if gc.ID != 3 || gc.Depth != 2 || gc.RootID != 1 || gc.OpenerTabID == nil || *gc.OpenerTabID != 2 {
		t.Errorf("grandchild = id %d depth %d root %d opener %v", gc.ID, gc.Depth, gc.RootID, gc.OpenerTabID)
	}

	// Re-entrant: a second call gives the same result.
	again := FlattenWithDepth(forest, nil, 0, nil)
	for i := range flat {
		if flat[i].ID != again[i].ID || flat[i].Depth != again[i].Depth {
			t.Fatal("FlattenWithDepth is not deterministic")
		}
	}
}

func TestNest(t *testing.T) {
	a := &types.TabNode{ID: 1}
	b := &types.TabNode{ID: 2}
	c := &types.TabNode{ID: 3}
	d := &types.TabNode{ID: 4}
	forest := Nest([]*types.TabNode{a, b, c, d}, map[int]int{2: 1, 3: 2, 4: 42})
	if len(forest) != 2 || forest[0] != a || forest[1] != d {
		t.Fatalf("roots = %v", collectIDs(forest))
	}
	if len(a.Children) != 1 || a.Children[0] != b || len(b.Children) != 1 || b.Children[0] != c {
		t.Error("chain 1 > 2 > 3 not rebuilt")
	}
}

func TestNestBreaksCycles(t *testing.T) {
	a := &types.TabNode{ID: 1}
	b := &types.TabNode{ID: 2}
	forest := Nest([]*types.TabNode{a, b}, map[int]int{1: 2, 2: 1})
	if types.CountNodes(forest) != 2 {
		t.Fatalf("cycle lost nodes: %v", collectIDs(forest))
	}
}
