// Package progress carries restore progress to whoever is watching: pull
// through Snapshot, push through Notifiers.
package progress

import (
	"context"
	"sync"

	"github.com/lotas/tabtree/internal/applog"
	"github.com/lotas/tabtree/internal/types"
)

// Kind names a push event. The values double as the action names sent to
// the extension.
type Kind string

const (
	KindUpdate   Kind = "update-progress"
	KindComplete Kind = "refresh-view"
)

// Event is one push notification.
type Event struct {
	Kind  Kind
	State types.RestoreState
}

// Notifier receives push events. Errors are logged by the Channel and
// otherwise ignored.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Source is a read-only view of the current restore state.
type Source interface {
	Progress() types.RestoreState
}

// Channel fans progress out to notifiers and answers polls from a Source.
type Channel struct {
	mu        sync.RWMutex
	source    Source
	notifiers []Notifier
}

// New returns a Channel pushing to the given notifiers.
func New(notifiers ...Notifier) *Channel {
	return &Channel{notifiers: notifiers}
}

// Attach sets the state source used by Snapshot.
func (c *Channel) Attach(src Source) {
	c.mu.Lock()
	c.source = src
	c.mu.Unlock()
}

// Subscribe adds a notifier.
func (c *Channel) Subscribe(n Notifier) {
	c.mu.Lock()
	c.notifiers = append(c.notifiers, n)
	c.mu.Unlock()
}

// Snapshot returns the current state, or the idle state when no source is
// attached.
func (c *Channel) Snapshot() types.RestoreState {
	c.mu.RLock()
	src := c.source
	c.mu.RUnlock()
	if src == nil {
		return types.RestoreState{}
	}
	return src.Progress()
}

// Publish pushes a progress update.
func (c *Channel) Publish(ctx context.Context, state types.RestoreState) {
	c.push(ctx, Event{Kind: KindUpdate, State: state})
}

// Complete pushes the completion notice. Callers send it once per restore,
// after their last Publish.
func (c *Channel) Complete(ctx context.Context, state types.RestoreState) {
	c.push(ctx, Event{Kind: KindComplete, State: state})
}

func (c *Channel) push(ctx context.Context, ev Event) {
	c.mu.RLock()
	notifiers := append([]Notifier(nil), c.notifiers...)
	c.mu.RUnlock()

	for _, n := range notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			applog.Warn("progress.push.failed", "kind", string(ev.Kind), "error", err)
		}
	}
}
