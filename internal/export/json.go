package export

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/lotas/tabtree/internal/types"
)

// JSON formats a forest as the indented JSON array that restore reads back.
func JSON(forest []*types.TabNode) (string, error) {
	if forest == nil {
		forest = []*types.TabNode{}
	}
	b, err := json.MarshalIndent(forest, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FileBaseName returns the base name for an export written at now, e.g.
// firefox_tab_list_20250131_235959. A nil loc means local time.
func FileBaseName(now time.Time, loc *time.Location) string {
	if loc != nil {
		now = now.In(loc)
	}
	return "firefox_tab_list_" + now.Format("20060102_150405")
}

func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Hostname()
}
