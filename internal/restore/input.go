package restore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lotas/tabtree/internal/tree"
	"github.com/lotas/tabtree/internal/types"
)

// ErrMalformedInput is returned when restore data cannot be decoded.
var ErrMalformedInput = errors.New("malformed restore input")

// Shape is the layout a restore file was written in.
type Shape int

const (
	// ShapeForest is the nested export format.
	ShapeForest Shape = iota
	// ShapeFlatWithStates is a flat tab list carrying tree states.
	ShapeFlatWithStates
	// ShapeFlatWithoutStates is an older flat tab list without states.
	ShapeFlatWithoutStates
	// ShapeWindows wraps tab lists per window.
	ShapeWindows
)

func (s Shape) String() string {
	switch s {
	case ShapeForest:
		return "forest"
	case ShapeFlatWithStates:
		return "flat+states"
	case ShapeFlatWithoutStates:
		return "flat"
	case ShapeWindows:
		return "windows"
	}
	return fmt.Sprintf("Shape(%d)", int(s))
}

// Input is decoded restore data: one forest per window.
type Input struct {
	Shape   Shape
	Windows [][]*types.TabNode
}

// ForestInput wraps an in-memory forest.
func ForestInput(forest []*types.TabNode) Input {
	return Input{Shape: ShapeForest, Windows: [][]*types.TabNode{forest}}
}

// Forest returns every window's trees as one forest, in window order.
func (in Input) Forest() []*types.TabNode {
	var out []*types.TabNode
	for _, w := range in.Windows {
		out = append(out, w...)
	}
	return out
}

// wireTab is a tab in any accepted restore layout.
type wireTab struct {
	types.TabNode
	AncestorTabIDs []int      `json:"ancestorTabIds"`
	OpenerTabID    *int       `json:"openerTabId"`
	Children       []*wireTab `json:"children"`
}

type wireWindow struct {
	Tabs json.RawMessage `json:"tabs"`
}

// DecodeInput detects the layout of data and converts it to window
// forests. Flat lists whose tabs carry ancestorTabIds or openerTabId are
// re-nested; tabs without either become roots. Duplicate ids are
// renumbered so every id is unique within the result.
func DecodeInput(data []byte) (Input, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Input{}, fmt.Errorf("%w: empty input", ErrMalformedInput)
	}

	switch data[0] {
	case '{':
		var wrapped struct {
			Windows []wireWindow `json:"windows"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return Input{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		if wrapped.Windows == nil {
			return Input{}, fmt.Errorf("%w: object without windows", ErrMalformedInput)
		}
		return decodeWindows(wrapped.Windows)
	case '[':
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return Input{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		if isWindowList(items) {
			var windows []wireWindow
			if err := json.Unmarshal(data, &windows); err != nil {
				return Input{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
			}
			return decodeWindows(windows)
		}
		forest, shape, err := decodeTabs(data, items)
		if err != nil {
			return Input{}, err
		}
		in := Input{Shape: shape, Windows: [][]*types.TabNode{forest}}
		uniqueIDs(in.Windows)
		return in, nil
	}
	return Input{}, fmt.Errorf("%w: expected a JSON array or object", ErrMalformedInput)
}

func isWindowList(items []map[string]json.RawMessage) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		_, hasTabs := it["tabs"]
		_, hasURL := it["url"]
		if !hasTabs || hasURL {
			return false
		}
	}
	return true
}

func decodeWindows(windows []wireWindow) (Input, error) {
	in := Input{Shape: ShapeWindows}
	for i, w := range windows {
		if len(w.Tabs) == 0 {
			continue
		}
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(w.Tabs, &items); err != nil {
			return Input{}, fmt.Errorf("%w: window %d: %v", ErrMalformedInput, i, err)
		}
		forest, _, err := decodeTabs(w.Tabs, items)
		if err != nil {
			return Input{}, fmt.Errorf("window %d: %w", i, err)
		}
		in.Windows = append(in.Windows, forest)
	}
	uniqueIDs(in.Windows)
	return in, nil
}

// decodeTabs decodes one tab list, sniffing its shape from the keys of
// its elements.
func decodeTabs(data []byte, items []map[string]json.RawMessage) ([]*types.TabNode, Shape, error) {
	var tabs []*wireTab
	if err := json.Unmarshal(data, &tabs); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	nested, withStates := false, false
	for _, it := range items {
		if it == nil {
			return nil, 0, fmt.Errorf("%w: null tab", ErrMalformedInput)
		}
		if _, ok := it["children"]; ok {
			nested = true
		}
		if _, ok := it["states"]; ok {
			withStates = true
		}
	}

	if nested {
		forest := make([]*types.TabNode, 0, len(tabs))
		for _, t := range tabs {
			forest = append(forest, toNode(t))
		}
		return forest, ShapeForest, nil
	}

	maxID := 0
	for _, t := range tabs {
		if t.ID > maxID {
			maxID = t.ID
		}
	}
	seen := make(map[int]bool, len(tabs))
	flat := make([]*types.TabNode, 0, len(tabs))
	parentOf := make(map[int]int)
	for _, t := range tabs {
		// A repeated id gets a fresh one; references to it keep pointing
		// at the first tab that used it.
		if seen[t.ID] {
			maxID++
			t.ID = maxID
		}
		seen[t.ID] = true
		flat = append(flat, toNode(t))
		switch {
		case len(t.AncestorTabIDs) > 0:
			parentOf[t.ID] = t.AncestorTabIDs[0]
		case t.OpenerTabID != nil:
			parentOf[t.ID] = *t.OpenerTabID
		}
	}
	shape := ShapeFlatWithoutStates
	if withStates {
		shape = ShapeFlatWithStates
	}
	return tree.Nest(flat, parentOf), shape, nil
}

func toNode(t *wireTab) *types.TabNode {
	n := t.TabNode
	n.Children = nil
	for _, c := range t.Children {
		if c != nil {
			n.Children = append(n.Children, toNode(c))
		}
	}
	return &n
}

// uniqueIDs renumbers nodes whose id was already seen, walking windows in
// order, so later duplicates get fresh ids above the largest one in use.
func uniqueIDs(windows [][]*types.TabNode) {
	maxID := 0
	var scan func([]*types.TabNode)
	scan = func(nodes []*types.TabNode) {
		for _, n := range nodes {
			if n.ID > maxID {
				maxID = n.ID
			}
			scan(n.Children)
		}
	}
	for _, w := range windows {
		scan(w)
	}

	seen := make(map[int]bool)
	for _, w := range windows {
		renumber(w, seen, &maxID)
	}
}

func renumber(nodes []*types.TabNode, seen map[int]bool, maxID *int) {
	for _, n := range nodes {
		if seen[n.ID] {
			*maxID++
			n.ID = *maxID
		}
		seen[n.ID] = true
		renumber(n.Children, seen, maxID)
	}
}
