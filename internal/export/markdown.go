package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/lotas/tabtree/internal/types"
)

// Markdown formats a forest as a nested markdown list.
func Markdown(forest []*types.TabNode, exportedAt time.Time) string {
	var b strings.Builder

	n := types.CountNodes(forest)
	noun := "tabs"
	if n == 1 {
		noun = "tab"
	}
	fmt.Fprintf(&b, "# Firefox Tab Tree (%d %s)\n", n, noun)
	fmt.Fprintf(&b, "> Exported %s\n\n", exportedAt.Format("2006-01-02 15:04"))

	for _, root := range forest {
		writeMarkdownNode(&b, root, 0)
	}
	return b.String()
}

func writeMarkdownNode(b *strings.Builder, node *types.TabNode, depth int) {
	title := strings.TrimSpace(node.Title)
	if title == "" {
		title = node.URL
	}
	indent := strings.Repeat("  ", depth)
	if node.URL == "" {
		fmt.Fprintf(b, "%s- %s\n", indent, title)
	} else {
		fmt.Fprintf(b, "%s- [%s](%s) — %s\n", indent, escapeBrackets(title), node.URL, extractDomain(node.URL))
	}
	for _, child := range node.Children {
		writeMarkdownNode(b, child, depth+1)
	}
}

func escapeBrackets(s string) string {
	return strings.NewReplacer("[", `\[`, "]", `\]`).Replace(s)
}
