// Package icon picks the favicon shown for a tab, following the tree
// extension's display rules for internal pages.
package icon

import "strings"

// Icons bundled with the extension (taken from the tree extension's
// resources) and Firefox's own chrome icons.
const (
	FallbackIconURL        = "/viewer/svg/020_TST/defaultFavicon.svg"
	AddonIconURL           = "/viewer/svg/020_TST/extensions.svg"
	LockIconURL            = "/viewer/svg/020_TST/lockwise.svg"
	FirefoxIconURL         = "chrome://branding/content/icon32.png"
	RobotsIconURL          = "chrome://browser/content/robot.ico"
	PrivateBrowsingIconURL = "chrome://browser/skin/privatebrowsing/favicon.svg"
	BlockedIconURL         = "chrome://global/skin/icons/blocked.svg"
	DeveloperIconURL       = "chrome://global/skin/icons/developer.svg"
	InfoIconURL            = "chrome://global/skin/icons/info.svg"
	PerformanceIconURL     = "chrome://global/skin/icons/performance.svg"
	SettingsIconURL        = "chrome://global/skin/icons/settings.svg"
)

type entry struct {
	prefix string
	icon   string
}

var internalIcons = []entry{
	{"about:about", FirefoxIconURL},
	{"about:addons", AddonIconURL},
	{"about:blank", FallbackIconURL},
	{"about:blocked", BlockedIconURL},
	{"about:buildconfig", FallbackIconURL},
	{"about:cache", FallbackIconURL},
	{"about:cache?device=disk", FallbackIconURL},
	{"about:cache?device=memory", FallbackIconURL},
	{"about:cache?device=offline", FallbackIconURL},
	{"about:certerror", FallbackIconURL},
	{"about:config", SettingsIconURL},
	{"about:crashes", FallbackIconURL},
	{"about:debugging", DeveloperIconURL},
	{"about:home", FirefoxIconURL},
	{"about:jetpack", InfoIconURL},
	{"about:license", FallbackIconURL},
	{"about:logins", LockIconURL},
	{"about:logo", FallbackIconURL},
	{"about:memory", FallbackIconURL},
	{"about:mozilla", FallbackIconURL},
	{"about:neterror", FallbackIconURL},
	{"about:newtab", FirefoxIconURL},
	{"about:performance", PerformanceIconURL},
	{"about:permissions", InfoIconURL},
	{"about:plugins", InfoIconURL},
	{"about:preferences", SettingsIconURL},
	{"about:privatebrowsing", PrivateBrowsingIconURL},
	{"about:robots", RobotsIconURL},
	{"about:sessionrestore", InfoIconURL},
	{"about:support", FirefoxIconURL},
	{"about:sync-tabs", InfoIconURL},
	{"chrome://", FallbackIconURL},
}

// Resolve returns the icon URL for a tab.
//
// The longest table prefix of url wins. Two distinct prefixes of equal
// length cannot both prefix the same url, so the match is unambiguous.
// Without a match, a trusted live favicon is used, then the favicon the
// tree extension computed, then the generic fallback.
func Resolve(url, liveFavIconURL, extensionFavIconURL string) string {
	best := -1
	for i, e := range internalIcons {
		if strings.HasPrefix(url, e.prefix) && (best < 0 || len(e.prefix) > len(internalIcons[best].prefix)) {
			best = i
		}
	}
	switch {
	case best >= 0:
		return internalIcons[best].icon
	case trusted(liveFavIconURL):
		return liveFavIconURL
	case extensionFavIconURL != "":
		return extensionFavIconURL
	default:
		return FallbackIconURL
	}
}

// trusted reports whether a live favicon can be shown outside the browser
// chrome.
func trusted(u string) bool {
	return strings.HasPrefix(u, "https://") ||
		strings.HasPrefix(u, "http://") ||
		strings.HasPrefix(u, "data:image/")
}
