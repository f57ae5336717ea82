package snapshot

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/lotas/tabtree/internal/storage"
	"github.com/lotas/tabtree/internal/tree"
	"github.com/lotas/tabtree/internal/types"
	"github.com/samber/lo"
)

// DiffEntry represents a single tab in a diff result.
type DiffEntry struct {
	URL   string
	Title string
	Path  []string // ancestor titles, root first
}

// DiffResult holds the result of comparing two tab trees.
type DiffResult struct {
	RevFrom int // 0 when the older side is not stored
	RevTo   int // 0 when the newer side is not stored
	Added   []DiffEntry // in the newer tree only
	Removed []DiffEntry // in the older tree only
}

// Empty reports whether both trees hold the same URLs.
func (d *DiffResult) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

func entries(forest []*types.TabNode) map[string]DiffEntry {
	out := make(map[string]DiffEntry)
	for _, e := range tree.FlattenWithPath(forest) {
		if _, seen := out[e.Node.URL]; seen {
			continue
		}
		out[e.Node.URL] = DiffEntry{
			URL:   e.Node.URL,
			Title: e.Node.Title,
			Path:  lo.Map(e.Path, func(n *types.TabNode, _ int) string { return n.Title }),
		}
	}
	return out
}

// Diff compares two forests by URL. Entries are sorted by URL.
func Diff(older, newer []*types.TabNode) *DiffResult {
	before, after := entries(older), entries(newer)

	added, removed := lo.Difference(lo.Keys(after), lo.Keys(before))
	sort.Strings(added)
	sort.Strings(removed)

	return &DiffResult{
		Added:   lo.Map(added, func(u string, _ int) DiffEntry { return after[u] }),
		Removed: lo.Map(removed, func(u string, _ int) DiffEntry { return before[u] }),
	}
}

func load(db *sql.DB, source string, rev int) (*storage.Export, error) {
	if rev == 0 {
		exp, err := storage.GetLatestExport(db, source)
		if err != nil {
			return nil, err
		}
		if exp == nil {
			return nil, fmt.Errorf("no exports for %q: %w", source, storage.ErrNotFound)
		}
		return exp, nil
	}
	return storage.GetExport(db, source, rev)
}

// DiffRevs compares two stored exports of source. rev 0 means the latest.
func DiffRevs(db *sql.DB, source string, revFrom, revTo int) (*DiffResult, error) {
	from, err := load(db, source, revFrom)
	if err != nil {
		return nil, err
	}
	to, err := load(db, source, revTo)
	if err != nil {
		return nil, err
	}
	d := Diff(from.Forest, to.Forest)
	d.RevFrom, d.RevTo = from.Rev, to.Rev
	return d, nil
}

// DiffAgainst compares a stored export of source with current. rev 0
// means the latest.
func DiffAgainst(db *sql.DB, source string, rev int, current []*types.TabNode) (*DiffResult, error) {
	from, err := load(db, source, rev)
	if err != nil {
		return nil, err
	}
	d := Diff(from.Forest, current)
	d.RevFrom = from.Rev
	return d, nil
}

func revName(rev int) string {
	if rev == 0 {
		return "current"
	}
	return fmt.Sprintf("#%d", rev)
}

// FormatDiff returns a human-readable string representation of a DiffResult.
func FormatDiff(d *DiffResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Diff %s → %s\n", revName(d.RevFrom), revName(d.RevTo))
	fmt.Fprintf(&sb, "Added: %d  Removed: %d\n", len(d.Added), len(d.Removed))

	write := func(sign string, e DiffEntry) {
		if len(e.Path) > 0 {
			fmt.Fprintf(&sb, "  %s %s [%s]\n", sign, e.URL, strings.Join(e.Path, " › "))
		} else {
			fmt.Fprintf(&sb, "  %s %s\n", sign, e.URL)
		}
	}

	if len(d.Added) > 0 {
		sb.WriteString("\n+ Added:\n")
		for _, e := range d.Added {
			write("+", e)
		}
	}
	if len(d.Removed) > 0 {
		sb.WriteString("\n- Removed:\n")
		for _, e := range d.Removed {
			write("-", e)
		}
	}
	if d.Empty() {
		sb.WriteString("\nNo changes.\n")
	}
	return sb.String()
}
