package export

import (
	"strconv"
	"strings"

	"github.com/lotas/tabtree/internal/i18n"
	"github.com/lotas/tabtree/internal/tree"
	"github.com/lotas/tabtree/internal/types"
)

const placeholderCell = "-"

// TSV renders a forest as the spreadsheet layout used by the import
// workflow: two header rows, then one row per tab with a fixed
// "deepest node" id/title pair, one id/title pair per depth level, the URL
// and a remarks column listing duplicate URLs.
func TSV(forest []*types.TabNode, msgs i18n.Catalog) string {
	flat := tree.FlattenWithPath(forest)

	urlRows := make(map[string][]int)
	for i, item := range flat {
		if item.Node.URL == "" {
			continue
		}
		urlRows[item.Node.URL] = append(urlRows[item.Node.URL], i+1)
	}

	maxDepth := 0
	for _, item := range flat {
		if d := len(item.Path) + 1; d > maxDepth {
			maxDepth = d
		}
	}

	idLabel := msgs.Get(i18n.TSVHeaderID)
	titleLabel := msgs.Get(i18n.TSVHeaderTitle)
	nodeLabel := msgs.Get(i18n.TSVHeaderNode)

	header1 := []string{"", msgs.Get(i18n.TSVHeaderMostDepthNode), ""}
	header2 := []string{"#", idLabel, titleLabel}
	for i := 1; i <= maxDepth; i++ {
		header1 = append(header1, nodeLabel+strconv.Itoa(i), "")
		header2 = append(header2, idLabel, titleLabel)
	}
	header1 = append(header1, "", "")
	header2 = append(header2, msgs.Get(i18n.TSVHeaderURL), msgs.Get(i18n.TSVHeaderRemarks))

	titleUnset := msgs.Get(i18n.TSVRowTitleUnset)

	lines := make([]string, 0, len(flat)+2)
	lines = append(lines, strings.Join(header1, "\t"), strings.Join(header2, "\t"))

	for i, item := range flat {
		pathWithSelf := append(append([]*types.TabNode(nil), item.Path...), item.Node)
		cells := make([]string, 0, HeaderWidth(maxDepth))
		cells = append(cells, strconv.Itoa(i+1), "", "")

		for level := 0; level < maxDepth; level++ {
			if level >= len(pathWithSelf) {
				cells = append(cells, placeholderCell, placeholderCell)
				continue
			}
			tab := pathWithSelf[level]
			id := strconv.Itoa(tab.ID)
			title := cellTitle(tab.Title, titleUnset)
			cells = append(cells, id, title)
			if level == len(pathWithSelf)-1 {
				cells[1], cells[2] = id, title
			}
		}

		cells = append(cells, "'"+item.Node.URL)
		remarks := " "
		if rows := urlRows[item.Node.URL]; item.Node.URL != "" && len(rows) > 1 {
			nums := make([]string, len(rows))
			for j, r := range rows {
				nums[j] = strconv.Itoa(r)
			}
			remarks = msgs.Get(i18n.TSVRowDuplicateFound, strconv.Itoa(len(rows)), strings.Join(nums, ", "))
		}
		cells = append(cells, remarks)
		lines = append(lines, strings.Join(cells, "\t"))
	}

	return strings.Join(lines, "\n")
}

// HeaderWidth is the number of columns for a forest maxDepth levels deep.
func HeaderWidth(maxDepth int) int {
	return 3 + 2*maxDepth + 2
}

// cellTitle trims the title, substitutes unset for an empty one and quotes
// titles that a spreadsheet would turn into links.
func cellTitle(title, unset string) string {
	t := strings.TrimSpace(title)
	if t == "" {
		t = unset
	}
	if strings.HasPrefix(t, "http") {
		t = "'" + t
	}
	return t
}
