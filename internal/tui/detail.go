package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabtree/internal/types"
)

// DetailModel shows information about the selected tab.
type DetailModel struct {
	Width  int
	Height int
}

// ViewNode renders one tab and a summary of its subtree.
func (m DetailModel) ViewNode(n *types.TabNode) string {
	if n == nil {
		return ""
	}

	labelStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	flagStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	var b strings.Builder

	b.WriteString(labelStyle.Render("Title") + "\n")
	title := n.Title
	if r := []rune(title); m.Width > 3 && len(r) > m.Width-2 {
		title = string(r[:m.Width-3]) + "…"
	}
	b.WriteString(title + "\n\n")

	b.WriteString(labelStyle.Render("URL") + "\n")
	url := n.URL
	// Wrap long URLs
	for m.Width > 2 && len(url) > m.Width-2 {
		b.WriteString(url[:m.Width-2] + "\n")
		url = url[m.Width-2:]
	}
	b.WriteString(url + "\n\n")

	b.WriteString(labelStyle.Render("Tab ID") + "\n")
	b.WriteString(fmt.Sprintf("%d\n\n", n.ID))

	if kids := types.CountNodes(n.Children); kids > 0 {
		b.WriteString(labelStyle.Render("Subtree") + "\n")
		b.WriteString(fmt.Sprintf("%d direct, %d total\n\n", len(n.Children), kids))
	}

	if n.CookieStoreID != "" && n.CookieStoreID != "firefox-default" {
		b.WriteString(labelStyle.Render("Container") + "\n")
		b.WriteString(n.CookieStoreID + "\n\n")
	}

	var flags []string
	if n.Active {
		flags = append(flags, "active")
	}
	if n.Pinned {
		flags = append(flags, "pinned")
	}
	if n.Discarded {
		flags = append(flags, "discarded")
	}
	flags = append(flags, n.States...)
	if len(flags) > 0 {
		b.WriteString(labelStyle.Render("Status") + "\n")
		for _, f := range flags {
			b.WriteString(flagStyle.Render(f) + "\n")
		}
	}

	return b.String()
}
