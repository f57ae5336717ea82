package restore

import (
	"context"
	"fmt"
	"sync"

	"github.com/lotas/tabtree/internal/host"
	"github.com/lotas/tabtree/internal/progress"
	"github.com/lotas/tabtree/internal/storage"
	"github.com/lotas/tabtree/internal/types"
)

type fakeTabs struct {
	mu      sync.Mutex
	nextID  int
	creates []host.CreateProps
	fail    map[string]bool // URLs or containers the browser rejects
	hang    map[string]bool // URLs or containers whose creation times out
	moves   [][]int
	updates map[int]host.UpdateProps
	focused []int
	gate    chan struct{} // when set, Create blocks until it is closed
}

func newFakeTabs() *fakeTabs {
	return &fakeTabs{nextID: 100, fail: map[string]bool{}, hang: map[string]bool{}, updates: map[int]host.UpdateProps{}}
}

func (f *fakeTabs) Create(_ context.Context, p host.CreateProps) (types.Tab, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, p)
	if f.fail[p.URL] || (p.CookieStoreID != "" && f.fail[p.CookieStoreID]) {
		return types.Tab{}, fmt.Errorf("tabs.create: %w: create refused", host.ErrRejected)
	}
	if f.hang[p.URL] || (p.CookieStoreID != "" && f.hang[p.CookieStoreID]) {
		return types.Tab{}, fmt.Errorf("tabs.create: %w", context.DeadlineExceeded)
	}
	f.nextID++
	return types.Tab{ID: f.nextID, WindowID: 1, URL: p.URL}, nil
}

func (f *fakeTabs) Move(_ context.Context, ids []int, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, append([]int(nil), ids...))
	return nil
}

func (f *fakeTabs) Update(_ context.Context, id int, p host.UpdateProps) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[id] = p
	return nil
}

func (f *fakeTabs) Query(context.Context, host.Query) ([]types.Tab, error) { return nil, nil }

func (f *fakeTabs) Get(_ context.Context, id int) (types.Tab, error) {
	return types.Tab{ID: id, WindowID: 7}, nil
}

func (f *fakeTabs) Remove(context.Context, int) error { return nil }

func (f *fakeTabs) FocusWindow(_ context.Context, windowID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = append(f.focused, windowID)
	return nil
}

type treeCall struct {
	op string
	id int
}

type fakeTree struct {
	mu    sync.Mutex
	calls []treeCall
	err   error
}

func (f *fakeTree) record(op string, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, treeCall{op, id})
	return f.err
}

func (f *fakeTree) GetTree(context.Context) ([]*types.RawTab, error) { return nil, nil }
func (f *fakeTree) Collapse(_ context.Context, id int) error         { return f.record("collapse", id) }
func (f *fakeTree) Expand(_ context.Context, id int) error           { return f.record("expand", id) }
func (f *fakeTree) Focus(_ context.Context, id int) error            { return f.record("focus", id) }

type eventLog struct {
	mu     sync.Mutex
	events []progress.Event
}

func (l *eventLog) Notify(_ context.Context, ev progress.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) count(kind progress.Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

type fakeRecorder struct {
	runs []storage.RestoreRun
}

func (r *fakeRecorder) RecordRun(run storage.RestoreRun) error {
	r.runs = append(r.runs, run)
	return nil
}

func intPtr(i int) *int { return &i }
