// Package dispatch answers the requests the extension popup and viewer
// send: exports, viewer actions and restores.
package dispatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/lotas/tabtree/internal/applog"
	"github.com/lotas/tabtree/internal/export"
	"github.com/lotas/tabtree/internal/host"
	"github.com/lotas/tabtree/internal/i18n"
	"github.com/lotas/tabtree/internal/pages"
	"github.com/lotas/tabtree/internal/restore"
	"github.com/lotas/tabtree/internal/snapshot"
	"github.com/lotas/tabtree/internal/tree"
	"github.com/lotas/tabtree/internal/types"
)

// Request types.
const (
	TypeExportJSON      = "export-json"
	TypeExportTSV       = "export-tsv"
	TypeOpenViewer      = "open-viewer"
	TypeViewerData      = "get-viewer-data"
	TypeFocusTab        = "focus-tst-tab"
	TypeDeleteTab       = "delete-tab"
	TypeRestore         = "restore-tabs"
	TypeRestoreProgress = "get-restore-progress"
)

// ErrUnknownType is reported for request types the dispatcher does not
// handle.
var ErrUnknownType = errors.New("unknown message type")

// StorageSource names live exports in the export history.
const StorageSource = "live"

// Request is one request from the extension.
type Request struct {
	Type  string          `json:"type"`
	TabID int             `json:"tabId,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Status is the reply to requests that only succeed or fail.
type Status struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Response is either a Status or a data value.
type Response struct {
	Status *Status
	Value  any
}

// MarshalJSON encodes whichever of Status or Value is set.
func (r Response) MarshalJSON() ([]byte, error) {
	if r.Status != nil {
		return json.Marshal(r.Status)
	}
	return json.Marshal(r.Value)
}

func statusOf(err error) Response {
	if err != nil {
		return Response{Status: &Status{Success: false, Error: err.Error()}}
	}
	return Response{Status: &Status{Success: true}}
}

// Restorer starts restores and reports their progress.
type Restorer interface {
	Start(ctx context.Context, in restore.Input) error
	Progress() types.RestoreState
}

// Dispatcher routes requests to the tab, tree and restore collaborators.
type Dispatcher struct {
	tabs       host.Tabs
	tree       host.Tree
	downloader host.Downloader
	restorer   Restorer
	base       string

	msgs  i18n.Catalog
	loc   *time.Location
	clock clock.Clock
	db    *sql.DB
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCatalog sets the catalog used for TSV labels.
func WithCatalog(c i18n.Catalog) Option {
	return func(d *Dispatcher) { d.msgs = c }
}

// WithLocation sets the time zone of export file names.
func WithLocation(loc *time.Location) Option {
	return func(d *Dispatcher) { d.loc = loc }
}

// WithClock replaces the clock used for export file names.
func WithClock(c clock.Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

// WithStorage keeps every export in the history database.
func WithStorage(db *sql.DB) Option {
	return func(d *Dispatcher) { d.db = db }
}

// New returns a Dispatcher. base is the origin serving the viewer page.
func New(tabs host.Tabs, tr host.Tree, dl host.Downloader, r Restorer, base string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		tabs:       tabs,
		tree:       tr,
		downloader: dl,
		restorer:   r,
		base:       base,
		msgs:       i18n.New(),
		loc:        time.Local,
		clock:      clock.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle answers one request. It never returns an error; failures are
// reported in the Response.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	switch req.Type {
	case TypeExportJSON, TypeExportTSV:
		return statusOf(d.export(ctx, req.Type))
	case TypeOpenViewer:
		return statusOf(d.openViewer(ctx))
	case TypeViewerData:
		forest, err := d.Forest(ctx)
		if err != nil {
			applog.Error("dispatch.viewer_data.failed", err)
			return statusOf(err)
		}
		return Response{Value: forest}
	case TypeFocusTab:
		d.focus(ctx, req.TabID)
		return statusOf(nil)
	case TypeDeleteTab:
		if err := d.tabs.Remove(ctx, req.TabID); err != nil {
			applog.Error("dispatch.delete.failed", err, "tabId", req.TabID)
			return statusOf(err)
		}
		return statusOf(nil)
	case TypeRestore:
		return statusOf(d.restore(ctx, req.Data))
	case TypeRestoreProgress:
		return Response{Value: d.restorer.Progress()}
	}
	applog.Warn("dispatch.unknown_type", "type", req.Type)
	return statusOf(ErrUnknownType)
}

// Forest fetches the live tree, drops the viewer's own tab and normalizes
// the rest.
func (d *Dispatcher) Forest(ctx context.Context) ([]*types.TabNode, error) {
	raw, err := d.tree.GetTree(ctx)
	if err != nil {
		return nil, fmt.Errorf("get tree: %w", err)
	}
	raw = tree.Filter(raw, func(t *types.RawTab) bool { return !pages.IsViewerURL(t.URL) })
	return tree.Normalize(raw), nil
}

func (d *Dispatcher) export(ctx context.Context, kind string) error {
	forest, err := d.Forest(ctx)
	if err != nil {
		applog.Error("dispatch.export.failed", err, "type", kind)
		return err
	}

	name := export.FileBaseName(d.clock.Now(), d.loc)
	var content, mime string
	if kind == TypeExportJSON {
		content, err = export.JSON(forest)
		if err != nil {
			return err
		}
		name += ".json"
		mime = "application/json"
	} else {
		content = export.TSV(forest, d.msgs)
		name += ".tsv"
		mime = "text/tab-separated-values"
	}

	if err := d.downloader.Download(ctx, name, mime, content); err != nil {
		applog.Error("dispatch.download.failed", err, "file", name)
		return fmt.Errorf("download %s: %w", name, err)
	}
	applog.Info("dispatch.export", "file", name, "tabs", types.CountNodes(forest))

	if d.db != nil {
		rev, created, diff, err := snapshot.Create(d.db, StorageSource, forest, name)
		switch {
		case err != nil:
			applog.Warn("dispatch.export.save_failed", "error", err)
		case created && diff != nil:
			applog.Info("dispatch.export.saved", "rev", rev, "added", len(diff.Added), "removed", len(diff.Removed))
		case created:
			applog.Info("dispatch.export.saved", "rev", rev)
		}
	}
	return nil
}

// openViewer activates an open viewer tab or opens a new one.
func (d *Dispatcher) openViewer(ctx context.Context) error {
	viewer := pages.ViewerURL(d.base)
	open, err := d.tabs.Query(ctx, host.Query{URL: viewer})
	if err != nil {
		return fmt.Errorf("query viewer tabs: %w", err)
	}
	if len(open) > 0 {
		return d.tabs.Update(ctx, open[0].ID, host.UpdateProps{Active: host.Bool(true)})
	}
	_, err = d.tabs.Create(ctx, host.CreateProps{URL: viewer, Active: true})
	return err
}

// focus brings a tab's window forward, activates the tab and tells the
// tree extension. Failures are logged only.
func (d *Dispatcher) focus(ctx context.Context, id int) {
	tab, err := d.tabs.Get(ctx, id)
	if err != nil {
		applog.Warn("dispatch.focus.failed", "tabId", id, "error", err)
		return
	}
	if err := d.tabs.FocusWindow(ctx, tab.WindowID); err != nil {
		applog.Warn("dispatch.focus.failed", "windowId", tab.WindowID, "error", err)
		return
	}
	if err := d.tabs.Update(ctx, id, host.UpdateProps{Active: host.Bool(true)}); err != nil {
		applog.Warn("dispatch.focus.failed", "tabId", id, "error", err)
		return
	}
	if err := d.tree.Focus(ctx, id); err != nil {
		applog.Warn("dispatch.focus.tree_failed", "tabId", id, "error", err)
	}
}

func (d *Dispatcher) restore(ctx context.Context, data json.RawMessage) error {
	in, err := restore.DecodeInput(data)
	if err != nil {
		applog.Error("dispatch.restore.rejected", err)
		return err
	}
	if err := d.restorer.Start(ctx, in); err != nil {
		applog.Warn("dispatch.restore.busy", "error", err)
		return err
	}
	applog.Info("dispatch.restore.started", "shape", in.Shape.String(), "windows", len(in.Windows))
	return nil
}
