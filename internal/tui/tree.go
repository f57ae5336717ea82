package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabtree/internal/types"
)

// TreeRow is a visible row in the tree.
type TreeRow struct {
	Node  *types.TabNode
	Depth int
}

// TreeModel manages the collapsible tab tree.
type TreeModel struct {
	Forest   []*types.TabNode
	Expanded map[int]bool // tab ID -> expanded
	Cursor   int
	Offset   int // scroll offset
	Width    int
	Height   int
}

// NewTreeModel returns a tree with every subtree expanded unless it was
// saved collapsed.
func NewTreeModel(forest []*types.TabNode) TreeModel {
	m := TreeModel{Forest: forest, Expanded: make(map[int]bool)}
	m.seed(forest)
	return m
}

func (m *TreeModel) seed(nodes []*types.TabNode) {
	for _, n := range nodes {
		if _, ok := m.Expanded[n.ID]; !ok {
			m.Expanded[n.ID] = !n.Collapsed()
		}
		m.seed(n.Children)
	}
}

// SetForest replaces the tree, keeping the expanded state of tabs that
// are still present and clamping the cursor.
func (m *TreeModel) SetForest(forest []*types.TabNode) {
	m.Forest = forest
	if m.Expanded == nil {
		m.Expanded = make(map[int]bool)
	}
	m.seed(forest)
	if n := len(m.VisibleRows()); m.Cursor >= n {
		m.Cursor = max(n-1, 0)
	}
	if m.Offset > m.Cursor {
		m.Offset = m.Cursor
	}
}

// VisibleRows returns the rows not hidden under a collapsed parent.
func (m TreeModel) VisibleRows() []TreeRow {
	var rows []TreeRow
	var walk func([]*types.TabNode, int)
	walk = func(nodes []*types.TabNode, depth int) {
		for _, n := range nodes {
			rows = append(rows, TreeRow{Node: n, Depth: depth})
			if m.Expanded[n.ID] {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(m.Forest, 0)
	return rows
}

// SelectedRow returns the row under the cursor, or nil.
func (m TreeModel) SelectedRow() *TreeRow {
	rows := m.VisibleRows()
	if m.Cursor >= 0 && m.Cursor < len(rows) {
		return &rows[m.Cursor]
	}
	return nil
}

func (m TreeModel) visibleRows() int {
	if m.Height-2 < 1 {
		return 1
	}
	return m.Height - 2 // account for padding
}

// MoveUp moves the cursor up.
func (m *TreeModel) MoveUp() {
	if m.Cursor > 0 {
		m.Cursor--
	}
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
}

// MoveDown moves the cursor down.
func (m *TreeModel) MoveDown() {
	if m.Cursor < len(m.VisibleRows())-1 {
		m.Cursor++
	}
	if m.Cursor >= m.Offset+m.visibleRows() {
		m.Offset = m.Cursor - m.visibleRows() + 1
	}
}

// Toggle expands or collapses the selected subtree.
func (m *TreeModel) Toggle() {
	row := m.SelectedRow()
	if row == nil || len(row.Node.Children) == 0 {
		return
	}
	m.Expanded[row.Node.ID] = !m.Expanded[row.Node.ID]
}

// CollapseOrParent collapses the selected subtree if expanded, or jumps to
// the parent row.
func (m *TreeModel) CollapseOrParent() {
	row := m.SelectedRow()
	if row == nil {
		return
	}
	if len(row.Node.Children) > 0 && m.Expanded[row.Node.ID] {
		m.Expanded[row.Node.ID] = false
		return
	}
	rows := m.VisibleRows()
	for i := m.Cursor - 1; i >= 0; i-- {
		if rows[i].Depth < row.Depth {
			m.Cursor = i
			if m.Cursor < m.Offset {
				m.Offset = m.Cursor
			}
			return
		}
	}
}

// ExpandOrEnter expands the selected subtree if collapsed, or moves to its
// first child if already expanded.
func (m *TreeModel) ExpandOrEnter() {
	row := m.SelectedRow()
	if row == nil || len(row.Node.Children) == 0 {
		return
	}
	if !m.Expanded[row.Node.ID] {
		m.Expanded[row.Node.ID] = true
		return
	}
	m.MoveDown()
}

// View renders the tree.
func (m TreeModel) View() string {
	rows := m.VisibleRows()
	if len(rows) == 0 {
		return "No tabs found."
	}

	visible := m.Height
	if visible < 1 {
		visible = 20
	}
	end := min(m.Offset+visible, len(rows))

	cursorStyle := lipgloss.NewStyle().Bold(true).Reverse(true)
	pinnedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange
	sleepStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))  // grey
	activeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green

	var b strings.Builder
	for i := m.Offset; i < end; i++ {
		row := rows[i]
		n := row.Node

		icon := "  "
		if len(n.Children) > 0 {
			icon = "▶ "
			if m.Expanded[n.ID] {
				icon = "▼ "
			}
		}

		var markers []string
		if n.Active {
			markers = append(markers, activeStyle.Render("●"))
		}
		if n.Pinned {
			markers = append(markers, pinnedStyle.Render("📌"))
		}
		if n.Discarded {
			markers = append(markers, sleepStyle.Render("z"))
		}
		marker := ""
		if len(markers) > 0 {
			marker = strings.Join(markers, "") + " "
		}

		label := n.Title
		if strings.TrimSpace(label) == "" {
			label = n.URL
		}
		if !m.Expanded[n.ID] && len(n.Children) > 0 {
			label += fmt.Sprintf(" (+%d)", types.CountNodes(n.Children))
		}

		prefix := strings.Repeat("  ", row.Depth) + icon
		maxLen := m.Width - lipgloss.Width(prefix) - lipgloss.Width(marker) - 2
		if maxLen < 10 {
			maxLen = 10
		}
		if r := []rune(label); len(r) > maxLen {
			label = string(r[:maxLen-1]) + "…"
		}
		line := prefix + marker + label

		if i == m.Cursor {
			if pad := m.Width - lipgloss.Width(line); pad > 0 {
				line += strings.Repeat(" ", pad)
			}
			line = cursorStyle.Render(line)
		}

		b.WriteString(line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
