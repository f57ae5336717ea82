// Package i18n holds the message catalogs used in exported files and the
// placeholder page.
package i18n

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// Message keys.
const (
	TSVHeaderMostDepthNode = "tsvHeader_MostDepthNode"
	TSVHeaderID            = "tsvHeader_Id"
	TSVHeaderTitle         = "tsvHeader_Title"
	TSVHeaderNode          = "tsvHeader_Node"
	TSVHeaderURL           = "tsvHeader_Url"
	TSVHeaderRemarks       = "tsvHeader_Remarks"
	TSVRowTitleUnset       = "tsvRow_TitleUnset"
	TSVRowDuplicateFound   = "tsvRow_DuplicateFound"
	PlaceholderTitle       = "placeholderTitle"
	PlaceholderDescription = "placeholderDescription"
	PlaceholderCopyButton  = "placeholderCopyButton"
	PlaceholderNoTitle     = "placeholderNoTitle"
	ViewerTitle            = "viewerTitle"
	ErrorNoTabToDisp       = "errorNoTabToDisp"
)

var catalogs = map[language.Tag]map[string]string{
	language.English: {
		TSVHeaderMostDepthNode: "Deepest node",
		TSVHeaderID:            "ID",
		TSVHeaderTitle:         "Title",
		TSVHeaderNode:          "Level ",
		TSVHeaderURL:           "URL",
		TSVHeaderRemarks:       "Remarks",
		TSVRowTitleUnset:       "(no title)",
		TSVRowDuplicateFound:   "Duplicate URL [$1 items No: $2]",
		PlaceholderTitle:       "Restored tab",
		PlaceholderDescription: "This page could not be reopened directly. Its original address is below.",
		PlaceholderCopyButton:  "Copy URL",
		PlaceholderNoTitle:     "No title",
		ViewerTitle:            "Tab tree",
		ErrorNoTabToDisp:       "No tabs to display.",
	},
	language.Japanese: {
		TSVHeaderMostDepthNode: "最下層タブ",
		TSVHeaderID:            "ID",
		TSVHeaderTitle:         "タイトル",
		TSVHeaderNode:          "階層",
		TSVHeaderURL:           "URL",
		TSVHeaderRemarks:       "備考",
		TSVRowTitleUnset:       "（タイトルなし）",
		TSVRowDuplicateFound:   "重複あり [$1件 No: $2]",
		PlaceholderTitle:       "復元情報",
		PlaceholderDescription: "このページは直接開けなかったため、元のURLを表示しています。",
		PlaceholderCopyButton:  "URLをコピー",
		PlaceholderNoTitle:     "タイトルなし",
		ViewerTitle:            "タブツリー",
		ErrorNoTabToDisp:       "表示するタブがありません。",
	},
}

var matcher = language.NewMatcher([]language.Tag{language.English, language.Japanese})

// Catalog looks up messages for one locale.
type Catalog struct {
	tag      language.Tag
	messages map[string]string
}

// New returns the catalog that best matches the given locale names
// (e.g. "ja-JP", "en"). Unknown locales fall back to English.
func New(locales ...string) Catalog {
	_, idx := language.MatchStrings(matcher, locales...)
	tag := []language.Tag{language.English, language.Japanese}[idx]
	return Catalog{tag: tag, messages: catalogs[tag]}
}

// Tag returns the catalog language.
func (c Catalog) Tag() language.Tag {
	return c.tag
}

// Get returns the message for key with $1, $2, ... replaced by subs.
// A missing key returns the key itself.
func (c Catalog) Get(key string, subs ...string) string {
	msg, ok := c.messages[key]
	if !ok {
		msg, ok = catalogs[language.English][key]
	}
	if !ok {
		return key
	}
	for i := len(subs) - 1; i >= 0; i-- {
		msg = strings.ReplaceAll(msg, "$"+strconv.Itoa(i+1), subs[i])
	}
	return msg
}

