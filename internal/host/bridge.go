package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lotas/tabtree/internal/progress"
	"github.com/lotas/tabtree/internal/server"
	"github.com/lotas/tabtree/internal/types"
)

// Bridge implements Tabs, Tree, Downloader and progress.Notifier by
// sending commands to the connected extension.
type Bridge struct {
	srv     *server.Server
	timeout time.Duration
}

// NewBridge returns a Bridge over srv. Each command waits at most timeout
// for its answer; zero means no limit beyond the caller's context.
func NewBridge(srv *server.Server, timeout time.Duration) *Bridge {
	return &Bridge{srv: srv, timeout: timeout}
}

func (b *Bridge) call(ctx context.Context, msg server.OutgoingMsg) (server.IncomingMsg, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	resp, err := b.srv.Call(ctx, msg)
	if errors.Is(err, server.ErrRemote) {
		err = fmt.Errorf("%w: %w", ErrRejected, err)
	}
	return resp, err
}

func props(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

func decodeTab(action string, raw json.RawMessage) (types.Tab, error) {
	var tab types.Tab
	if len(raw) == 0 {
		return tab, fmt.Errorf("%s: empty tab in response", action)
	}
	if err := json.Unmarshal(raw, &tab); err != nil {
		return tab, fmt.Errorf("%s: decode tab: %w", action, err)
	}
	return tab, nil
}

func (b *Bridge) Create(ctx context.Context, p CreateProps) (types.Tab, error) {
	resp, err := b.call(ctx, server.OutgoingMsg{Action: "tabs.create", Props: props(p)})
	if err != nil {
		return types.Tab{}, err
	}
	return decodeTab("tabs.create", resp.Tab)
}

func (b *Bridge) Move(ctx context.Context, ids []int, index int) error {
	_, err := b.call(ctx, server.OutgoingMsg{Action: "tabs.move", TabIDs: ids, Index: &index})
	return err
}

func (b *Bridge) Update(ctx context.Context, id int, p UpdateProps) error {
	_, err := b.call(ctx, server.OutgoingMsg{Action: "tabs.update", TabID: id, Props: props(p)})
	return err
}

func (b *Bridge) Query(ctx context.Context, q Query) ([]types.Tab, error) {
	resp, err := b.call(ctx, server.OutgoingMsg{Action: "tabs.query", Props: props(q)})
	if err != nil {
		return nil, err
	}
	var tabs []types.Tab
	if len(resp.Tabs) > 0 {
		if err := json.Unmarshal(resp.Tabs, &tabs); err != nil {
			return nil, fmt.Errorf("tabs.query: decode tabs: %w", err)
		}
	}
	return tabs, nil
}

func (b *Bridge) Get(ctx context.Context, id int) (types.Tab, error) {
	resp, err := b.call(ctx, server.OutgoingMsg{Action: "tabs.get", TabID: id})
	if err != nil {
		return types.Tab{}, err
	}
	return decodeTab("tabs.get", resp.Tab)
}

func (b *Bridge) Remove(ctx context.Context, id int) error {
	_, err := b.call(ctx, server.OutgoingMsg{Action: "tabs.remove", TabID: id})
	return err
}

func (b *Bridge) FocusWindow(ctx context.Context, windowID int) error {
	_, err := b.call(ctx, server.OutgoingMsg{Action: "windows.update", WindowID: windowID})
	return err
}

// GetTree asks the tree extension for every tab.
func (b *Bridge) GetTree(ctx context.Context) ([]*types.RawTab, error) {
	resp, err := b.call(ctx, server.OutgoingMsg{Action: "tst.get-tree"})
	if err != nil {
		return nil, err
	}
	if len(resp.Tabs) == 0 {
		return nil, fmt.Errorf("tst.get-tree: no tree returned")
	}
	var raw []*types.RawTab
	if err := json.Unmarshal(resp.Tabs, &raw); err != nil {
		return nil, fmt.Errorf("tst.get-tree: decode: %w", err)
	}
	return raw, nil
}

func (b *Bridge) Collapse(ctx context.Context, id int) error {
	_, err := b.call(ctx, server.OutgoingMsg{Action: "tst.collapse-tree", TabID: id})
	return err
}

func (b *Bridge) Expand(ctx context.Context, id int) error {
	_, err := b.call(ctx, server.OutgoingMsg{Action: "tst.expand-tree", TabID: id})
	return err
}

func (b *Bridge) Focus(ctx context.Context, id int) error {
	_, err := b.call(ctx, server.OutgoingMsg{Action: "tst.focus", TabID: id})
	return err
}

// Download asks the extension to offer content as a file download.
func (b *Bridge) Download(ctx context.Context, filename, mimeType, content string) error {
	_, err := b.call(ctx, server.OutgoingMsg{
		Action:   "download",
		Filename: filename,
		MimeType: mimeType,
		Content:  content,
	})
	return err
}

// Notify pushes a progress event to the viewer. Pushes are not
// acknowledged.
func (b *Bridge) Notify(_ context.Context, ev progress.Event) error {
	msg := server.OutgoingMsg{Action: string(ev.Kind)}
	if ev.Kind == progress.KindUpdate {
		loaded, total := ev.State.Loaded, ev.State.Total
		msg.Loaded, msg.Total = &loaded, &total
	}
	return b.srv.Send(msg)
}
