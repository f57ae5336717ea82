package firefox

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lotas/tabtree/internal/mozlz4"
	"github.com/lotas/tabtree/internal/types"
)

// Session values written by the tree extension through the sessions API are
// kept in each tab's extData as "extension:<addon-id>:<key>" with a
// JSON-encoded value.
const (
	extPersistentID = ":data-persistent-id"
	extAncestors    = ":ancestors"
	extStates       = ":states"
)

// Raw JSON types for Firefox session file parsing.
type rawEntry struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type rawTab struct {
	Entries   []rawEntry        `json:"entries"`
	Index     int               `json:"index"`
	Image     string            `json:"image"`
	Pinned    bool              `json:"pinned"`
	Hidden    bool              `json:"hidden"`
	UserCtxID int               `json:"userContextId"`
	ExtData   map[string]string `json:"extData"`
}

type rawWindow struct {
	Tabs     []rawTab `json:"tabs"`
	Selected int      `json:"selected"`
}

type rawSession struct {
	Windows []rawWindow `json:"windows"`
}

// ParseSession parses raw session JSON into tabs shaped like the tree
// extension's get-tree result. Tab ids are assigned in session order
// starting at 1 and window ids are the 1-based window position. Ancestry
// comes from the tree extension's session values and each tab's Children
// lists its direct children; tabs without ancestry are roots.
func ParseSession(data []byte) ([]*types.RawTab, error) {
	var raw rawSession
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse session JSON: %w", err)
	}

	var tabs []*types.RawTab
	byID := make(map[int]*types.RawTab)
	nextID := 1
	for winIdx, window := range raw.Windows {
		byPersistentID := make(map[string]int)
		ancestors := make(map[int][]string)

		for tabIdx, rt := range window.Tabs {
			if len(rt.Entries) == 0 {
				continue
			}

			// index is 1-based; current page is entries[index-1].
			entryIdx := rt.Index - 1
			if entryIdx < 0 || entryIdx >= len(rt.Entries) {
				entryIdx = len(rt.Entries) - 1
			}
			entry := rt.Entries[entryIdx]

			tab := &types.RawTab{
				ID:         nextID,
				WindowID:   winIdx + 1,
				Index:      tabIdx,
				URL:        entry.URL,
				Title:      entry.Title,
				FavIconURL: rt.Image,
				Pinned:     rt.Pinned,
				Active:     window.Selected == tabIdx+1,
			}
			if rt.UserCtxID > 0 {
				tab.CookieStoreID = fmt.Sprintf("firefox-container-%d", rt.UserCtxID)
			}
			byID[tab.ID] = tab
			nextID++

			for key, value := range rt.ExtData {
				switch {
				case strings.HasSuffix(key, extPersistentID):
					var pid struct {
						ID string `json:"id"`
					}
					if json.Unmarshal([]byte(value), &pid) == nil && pid.ID != "" {
						byPersistentID[pid.ID] = tab.ID
					}
				case strings.HasSuffix(key, extAncestors):
					var ids []string
					if json.Unmarshal([]byte(value), &ids) == nil {
						ancestors[tab.ID] = ids
					}
				case strings.HasSuffix(key, extStates):
					var states []string
					if json.Unmarshal([]byte(value), &states) == nil {
						tab.States = states
					}
				}
			}
			tabs = append(tabs, tab)
		}

		for _, tab := range tabs {
			pids, ok := ancestors[tab.ID]
			if !ok {
				continue
			}
			for _, pid := range pids {
				if id, ok := byPersistentID[pid]; ok {
					tab.AncestorTabIDs = append(tab.AncestorTabIDs, id)
				}
			}
			if len(tab.AncestorTabIDs) > 0 {
				if parent := byID[tab.AncestorTabIDs[0]]; parent != nil {
					parent.Children = append(parent.Children, tab)
				}
			}
		}
	}

	return tabs, nil
}

// ReadSessionFile parses the newest session file of a profile directory.
func ReadSessionFile(profileDir string) ([]*types.RawTab, error) {
	path := SessionFile(profileDir)
	if path == "" {
		return nil, fmt.Errorf("no session file found in %s", profileDir)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	decompressed, err := mozlz4.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompress session file: %w", err)
	}

	return ParseSession(decompressed)
}
