// Package snapshot keeps exported tab trees in the history database and
// compares them.
package snapshot

import (
	"database/sql"
	"fmt"

	"github.com/lotas/tabtree/internal/applog"
	"github.com/lotas/tabtree/internal/storage"
	"github.com/lotas/tabtree/internal/types"
)

// Create stores forest as a new export of source. It first checks the
// latest export of source and skips saving if the URL sets are identical.
// Returns the rev number, whether a new export was stored, the diff
// against the previous export (nil if first), and error.
func Create(db *sql.DB, source string, forest []*types.TabNode, label string) (rev int, created bool, diff *DiffResult, err error) {
	latest, err := storage.GetLatestExport(db, source)
	if err != nil {
		return 0, false, nil, fmt.Errorf("get latest export: %w", err)
	}

	if latest != nil {
		d := Diff(latest.Forest, forest)
		if d.Empty() {
			applog.Info("snapshot.skipped", "source", source, "rev", latest.Rev)
			return latest.Rev, false, nil, nil
		}
		d.RevFrom = latest.Rev
		diff = d
	}

	newRev, err := storage.SaveExport(db, source, forest, label)
	if err != nil {
		return 0, false, nil, err
	}
	applog.Info("snapshot.created", "rev", newRev, "tabs", types.CountNodes(forest), "source", source)

	if diff != nil {
		diff.RevTo = newRev
	}
	return newRev, true, diff, nil
}
