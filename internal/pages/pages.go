// Package pages serves the HTML pages the extension opens: the
// placeholder for tabs that could not be reopened, the tree viewer and the
// progress endpoint polled by the viewer.
package pages

import (
	"context"
	"encoding/json"
	"html"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/lotas/tabtree/internal/applog"
	"github.com/lotas/tabtree/internal/i18n"
	"github.com/lotas/tabtree/internal/types"
	"github.com/microcosm-cc/bluemonday"
)

const (
	PlaceholderPath = "/placeholder"
	ViewerPath      = "/viewer"
	ProgressPath    = "/api/progress"
)

// PlaceholderURL returns the placeholder page address for a tab that
// cannot be reopened directly. base is the server origin, e.g.
// http://127.0.0.1:19191.
func PlaceholderURL(base, original, title string) string {
	q := url.Values{}
	q.Set("url", original)
	q.Set("title", title)
	return strings.TrimRight(base, "/") + PlaceholderPath + "?" + q.Encode()
}

// ViewerURL returns the viewer page address.
func ViewerURL(base string) string {
	return strings.TrimRight(base, "/") + ViewerPath
}

// IsViewerURL reports whether u points at the viewer page on any origin.
func IsViewerURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") &&
		(parsed.Hostname() == "127.0.0.1" || parsed.Hostname() == "localhost") &&
		parsed.Path == ViewerPath
}

// Pages serves the HTML pages. Forest feeds the viewer and Progress the
// progress endpoint; either may be nil.
type Pages struct {
	Forest   func(ctx context.Context) ([]*types.TabNode, error)
	Progress func() types.RestoreState
}

var strict = bluemonday.StrictPolicy()

// New returns Pages with the given sources.
func New(forest func(ctx context.Context) ([]*types.TabNode, error), progress func() types.RestoreState) *Pages {
	return &Pages{Forest: forest, Progress: progress}
}

// RegisterHTTP mounts the page routes.
func (p *Pages) RegisterHTTP(r chi.Router) {
	r.Get(PlaceholderPath, p.placeholder)
	r.Get(ViewerPath, p.viewer)
	r.Get(ProgressPath, p.progress)
}

func (p *Pages) catalog(r *http.Request) i18n.Catalog {
	return i18n.New(r.Header.Get("Accept-Language"))
}

// clean strips markup from page-supplied text.
func (p *Pages) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// safeHref returns u as a link target when it is safe to follow.
func safeHref(u string) template.URL {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return template.URL(u)
	}
	return ""
}

// safeIcon returns icon as an image source when the browser may load it
// from this origin.
func safeIcon(icon string) template.URL {
	if strings.HasPrefix(icon, "http://") || strings.HasPrefix(icon, "https://") || strings.HasPrefix(icon, "data:image/") {
		return template.URL(icon)
	}
	return ""
}

type placeholderData struct {
	Lang        string
	PageTitle   string
	Title       string
	URL         string
	Href        template.URL
	Description string
	CopyButton  string
}

func (p *Pages) placeholder(w http.ResponseWriter, r *http.Request) {
	msgs := p.catalog(r)
	title := p.clean(r.URL.Query().Get("title"))
	if title == "" {
		title = msgs.Get(i18n.PlaceholderNoTitle)
	}
	original := r.URL.Query().Get("url")

	data := placeholderData{
		Lang:        msgs.Tag().String(),
		PageTitle:   msgs.Get(i18n.PlaceholderTitle) + ": " + title,
		Title:       title,
		URL:         original,
		Href:        safeHref(original),
		Description: msgs.Get(i18n.PlaceholderDescription),
		CopyButton:  msgs.Get(i18n.PlaceholderCopyButton),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := placeholderTmpl.Execute(w, data); err != nil {
		applog.Error("pages.placeholder", err)
	}
}

type viewerNode struct {
	ID       int
	Title    string
	URL      string
	Href     template.URL
	Icon     template.URL
	Children []viewerNode
}

type viewerData struct {
	Lang    string
	Title   string
	Empty   string
	Nodes   []viewerNode
	Count   int
	Loaded  int
	Total   int
	Running bool
}

func (p *Pages) toViewerNodes(forest []*types.TabNode) []viewerNode {
	out := make([]viewerNode, 0, len(forest))
	for _, n := range forest {
		title := p.clean(n.Title)
		if title == "" {
			title = n.URL
		}
		out = append(out, viewerNode{
			ID:       n.ID,
			Title:    title,
			URL:      n.URL,
			Href:     safeHref(n.URL),
			Icon:     safeIcon(n.FavIconURL),
			Children: p.toViewerNodes(n.Children),
		})
	}
	return out
}

func (p *Pages) viewer(w http.ResponseWriter, r *http.Request) {
	msgs := p.catalog(r)
	data := viewerData{
		Lang:  msgs.Tag().String(),
		Title: msgs.Get(i18n.ViewerTitle),
		Empty: msgs.Get(i18n.ErrorNoTabToDisp),
	}
	if p.Forest != nil {
		forest, err := p.Forest(r.Context())
		if err != nil {
			applog.Warn("pages.viewer.tree", "error", err)
		} else {
			data.Nodes = p.toViewerNodes(forest)
			data.Count = types.CountNodes(forest)
		}
	}
	if p.Progress != nil {
		st := p.Progress()
		data.Loaded, data.Total, data.Running = st.Loaded, st.Total, st.InProgress
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := viewerTmpl.Execute(w, data); err != nil {
		applog.Error("pages.viewer", err)
	}
}

func (p *Pages) progress(w http.ResponseWriter, _ *http.Request) {
	var st types.RestoreState
	if p.Progress != nil {
		st = p.Progress()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}
