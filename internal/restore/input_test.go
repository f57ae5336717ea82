package restore

import (
	"testing"

	"github.com/lotas/tabtree/internal/types"
	"github.com/stretchr/testify/require"
)

func collectIDs(forest []*types.TabNode) []int {
	var ids []int
	var walk func([]*types.TabNode)
	walk = func(nodes []*types.TabNode) {
		for _, n := range nodes {
			ids = append(ids, n.ID)
			walk(n.Children)
		}
	}
	walk(forest)
	return ids
}

func TestDecodeInputShapes(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		shape     Shape
		windows   int
		roots     int
		nodes     int
		firstKids int
	}{
		{
			name:      "nested export",
			data:      `[{"id":1,"url":"https://a","children":[{"id":2,"url":"https://b"}]},{"id":3,"url":"https://c"}]`,
			shape:     ShapeForest,
			windows:   1,
			roots:     2,
			nodes:     3,
			firstKids: 1,
		},
		{
			name:      "flat with states",
			data:      `[{"id":1,"url":"https://a","states":["subtree-collapsed"]},{"id":2,"url":"https://b","ancestorTabIds":[1],"states":[]},{"id":3,"url":"https://c","ancestorTabIds":[2,1],"states":[]}]`,
			shape:     ShapeFlatWithStates,
			windows:   1,
			roots:     1,
			nodes:     3,
			firstKids: 1,
		},
		{
			name:      "flat without states",
			data:      `[{"id":1,"url":"https://a"},{"id":2,"url":"https://b","openerTabId":1},{"id":3,"url":"https://c"}]`,
			shape:     ShapeFlatWithoutStates,
			windows:   1,
			roots:     2,
			nodes:     3,
			firstKids: 1,
		},
		{
			name:      "windows object",
			data:      `{"windows":[{"tabs":[{"id":1,"url":"https://a"}]},{"tabs":[{"id":2,"url":"https://b","children":[{"id":3,"url":"https://c"}]}]}]}`,
			shape:     ShapeWindows,
			windows:   2,
			roots:     2,
			nodes:     3,
			firstKids: 0,
		},
		{
			name:      "windows array",
			data:      `[{"tabs":[{"id":1,"url":"https://a"},{"id":2,"url":"https://b","ancestorTabIds":[1]}]}]`,
			shape:     ShapeWindows,
			windows:   1,
			roots:     1,
			nodes:     2,
			firstKids: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := DecodeInput([]byte(tt.data))
			require.NoError(t, err)
			require.Equal(t, tt.shape, in.Shape)
			require.Len(t, in.Windows, tt.windows)
			forest := in.Forest()
			require.Len(t, forest, tt.roots)
			require.Equal(t, tt.nodes, types.CountNodes(forest))
			require.Len(t, forest[0].Children, tt.firstKids)
		})
	}
}

func TestDecodeInputKeepsStates(t *testing.T) {
	in, err := DecodeInput([]byte(`[{"id":1,"url":"https://a","states":["subtree-collapsed"]},{"id":2,"url":"https://b","ancestorTabIds":[1]}]`))
	require.NoError(t, err)
	root := in.Forest()[0]
	require.True(t, root.Collapsed())
	require.Equal(t, 2, root.Children[0].ID)
}

func TestDecodeInputMissingAncestorBecomesRoot(t *testing.T) {
	in, err := DecodeInput([]byte(`[{"id":2,"url":"https://b","ancestorTabIds":[1]},{"id":3,"url":"https://c","ancestorTabIds":[2,1]}]`))
	require.NoError(t, err)
	forest := in.Forest()
	require.Len(t, forest, 1)
	require.Equal(t, 2, forest[0].ID)
	require.Equal(t, 3, forest[0].Children[0].ID)
}

func TestDecodeInputRenumbersDuplicates(t *testing.T) {
	in, err := DecodeInput([]byte(`{"windows":[{"tabs":[{"id":1,"url":"https://a"},{"id":5,"url":"https://b"}]},{"tabs":[{"id":1,"url":"https://c"}]}]}`))
	require.NoError(t, err)
	require.Equal(t, []int{1, 5, 6}, collectIDs(in.Forest()))
	require.Equal(t, "https://c", in.Windows[1][0].URL)
}

func TestDecodeInputRenumbersFlatDuplicates(t *testing.T) {
	in, err := DecodeInput([]byte(`[{"id":1,"url":"https://a"},{"id":1,"url":"https://b"},{"id":2,"url":"https://c","states":[],"ancestorTabIds":[1]}]`))
	require.NoError(t, err)
	require.Equal(t, ShapeFlatWithStates, in.Shape)

	forest := in.Forest()
	require.Len(t, forest, 2)
	require.Equal(t, []int{1, 2, 3}, collectIDs(forest))
	require.Equal(t, "https://a", forest[0].URL)
	require.Equal(t, "https://c", forest[0].Children[0].URL)
	require.Equal(t, "https://b", forest[1].URL)
	require.Equal(t, 3, forest[1].ID)
}

func TestDecodeInputMalformed(t *testing.T) {
	for name, data := range map[string]string{
		"empty":          "",
		"scalar":         `42`,
		"broken":         `[{"id":1,`,
		"no windows":     `{"tabs":[]}`,
		"null tab":       `[null]`,
		"bad tab fields": `[{"id":"x"}]`,
		"bad window":     `{"windows":[{"tabs":{"id":1}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeInput([]byte(data))
			require.ErrorIs(t, err, ErrMalformedInput)
		})
	}
}

func TestDecodeInputEmptyList(t *testing.T) {
	in, err := DecodeInput([]byte(`[]`))
	require.NoError(t, err)
	require.Empty(t, in.Forest())
}

func TestClassify(t *testing.T) {
	tests := map[string]disposition{
		"":                     openDefault,
		"about:blank":          openDefault,
		"about:newtab":         openDefault,
		"about:config":         openPrivileged,
		"file:///etc/hosts":    openPrivileged,
		"javascript:void(0)":   openPrivileged,
		"data:text/html,hi":    openPrivileged,
		"view-source:https://": openPrivileged,
		"https://example.com":  openNormal,
		"moz-extension://x/y":  openNormal,
	}
	for url, want := range tests {
		require.Equal(t, want, classify(url), url)
	}
}

func TestIdentityMapOpener(t *testing.T) {
	ids := IdentityMap{1: 101}
	parentOf := map[int]int{2: 1, 3: 2}

	got, ok := ids.Opener(intPtr(2), parentOf)
	require.True(t, ok)
	require.Equal(t, 101, got)

	_, ok = ids.Opener(nil, parentOf)
	require.False(t, ok)

	_, ok = IdentityMap{}.Opener(intPtr(3), parentOf)
	require.False(t, ok)

	cyclic := map[int]int{1: 2, 2: 1}
	_, ok = IdentityMap{}.Opener(intPtr(1), cyclic)
	require.False(t, ok)
}
