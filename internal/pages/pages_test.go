package pages

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/lotas/tabtree/internal/types"
)

func serve(t *testing.T, p *Pages) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	p.RegisterHTTP(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, rawURL, lang string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	if lang != "" {
		req.Header.Set("Accept-Language", lang)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestPlaceholderURL(t *testing.T) {
	got := PlaceholderURL("http://127.0.0.1:19191/", "about:config", "Config & more")
	u, err := url.Parse(got)
	if err != nil {
		t.Fatal(err)
	}
	if u.Path != PlaceholderPath {
		t.Errorf("path = %q", u.Path)
	}
	if u.Query().Get("url") != "about:config" || u.Query().Get("title") != "Config & more" {
		t.Errorf("query = %v", u.Query())
	}
}

func TestIsViewerURL(t *testing.T) {
	cases := map[string]bool{
		"http://127.0.0.1:19191/viewer":  true,
		"http://localhost:8000/viewer":   true,
		"https://example.com/viewer":     false,
		"http://127.0.0.1:19191/viewer2": false,
		"about:blank":                    false,
	}
	for in, want := range cases {
		if got := IsViewerURL(in); got != want {
			t.Errorf("IsViewerURL(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPlaceholderPage(t *testing.T) {
	ts := serve(t, New(nil, nil))

	target := PlaceholderURL(ts.URL, "about:config", `<script>alert(1)</script>Settings`)
	status, body := get(t, target, "en-US")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if strings.Contains(body, "<script>alert") {
		t.Errorf("title not sanitized:\n%s", body)
	}
	if !strings.Contains(body, ">Settings</h1>") {
		t.Errorf("missing title, got:\n%s", body)
	}
	if !strings.Contains(body, `<code id="url-link">about:config</code>`) {
		t.Errorf("privileged URL should render as text, got:\n%s", body)
	}

	_, body = get(t, PlaceholderURL(ts.URL, "https://a.example/x", ""), "ja")
	if !strings.Contains(body, `href="https://a.example/x"`) {
		t.Errorf("web URL should be a link, got:\n%s", body)
	}
	if !strings.Contains(body, "タイトルなし") {
		t.Errorf("missing localized no-title text, got:\n%s", body)
	}
}

func TestViewerPage(t *testing.T) {
	forest := []*types.TabNode{
		{ID: 1, Title: "Root", URL: "https://a.example", FavIconURL: "https://a.example/favicon.ico", Children: []*types.TabNode{
			{ID: 2, Title: "", URL: "about:config", FavIconURL: "chrome://global/skin/icons/settings.svg"},
		}},
	}
	p := New(
		func(context.Context) ([]*types.TabNode, error) { return forest, nil },
		func() types.RestoreState { return types.RestoreState{InProgress: true, Loaded: 1, Total: 4} },
	)
	ts := serve(t, p)

	_, body := get(t, ts.URL+ViewerPath, "en")
	for _, want := range []string{
		"Tab tree (2)",
		`<li data-tab-id="1"><img src="https://a.example/favicon.ico" alt=""><a href="https://a.example">Root</a>`,
		`<span>about:config</span>`,
		`<progress id="restore-progress" value="1" max="4">`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in:\n%s", want, body)
		}
	}
	if strings.Contains(body, "chrome://") {
		t.Error("chrome:// icon must not be loaded by the page")
	}
}

func TestViewerPage_TreeUnavailable(t *testing.T) {
	p := New(func(context.Context) ([]*types.TabNode, error) { return nil, errors.New("not connected") }, nil)
	ts := serve(t, p)
	status, body := get(t, ts.URL+ViewerPath, "en")
	if status != http.StatusOK || !strings.Contains(body, "No tabs to display.") {
		t.Errorf("status %d body:\n%s", status, body)
	}
}

func TestProgressEndpoint(t *testing.T) {
	p := New(nil, func() types.RestoreState { return types.RestoreState{InProgress: true, Loaded: 3, Total: 9} })
	ts := serve(t, p)
	_, body := get(t, ts.URL+ProgressPath, "")
	var st types.RestoreState
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		t.Fatalf("decode: %v (%s)", err, body)
	}
	if !st.InProgress || st.Loaded != 3 || st.Total != 9 {
		t.Errorf("state = %+v", st)
	}
}
