package icon

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		live      string
		extension string
		want      string
	}{
		{"exact table entry", "about:config", "", "", SettingsIconURL},
		{"longest prefix wins", "about:cache?device=disk&x=1", "", "", FallbackIconURL},
		{"prefix of longer about page", "about:preferences#privacy", "https://x/icon.png", "", SettingsIconURL},
		{"chrome scheme", "chrome://browser/content/places.xhtml", "", "", FallbackIconURL},
		{"table beats live favicon", "about:newtab", "https://example.com/f.ico", "", FirefoxIconURL},
		{"live favicon", "https://example.com", "https://example.com/f.ico", "data:image/png;base64,AAA", "https://example.com/f.ico"},
		{"data favicon is trusted", "https://example.com", "data:image/png;base64,AAA", "", "data:image/png;base64,AAA"},
		{"untrusted live falls to extension", "https://example.com", "chrome://mozapps/skin/x.svg", "data:image/svg+xml,EXT", "data:image/svg+xml,EXT"},
		{"extension favicon", "https://example.com", "", "data:image/svg+xml,EXT", "data:image/svg+xml,EXT"},
		{"generic fallback", "https://example.com", "", "", FallbackIconURL},
		{"empty url", "", "", "", FallbackIconURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.url, tt.live, tt.extension); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
