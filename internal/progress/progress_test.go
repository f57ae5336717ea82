package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/lotas/tabtree/internal/types"
)

type fixedSource types.RestoreState

func (s fixedSource) Progress() types.RestoreState { return types.RestoreState(s) }

func TestSnapshot(t *testing.T) {
	c := New()
	if got := c.Snapshot(); got != (types.RestoreState{}) {
		t.Errorf("unattached snapshot = %+v", got)
	}
	c.Attach(fixedSource{InProgress: true, Loaded: 3, Total: 7})
	if got := c.Snapshot(); got.Loaded != 3 || got.Total != 7 || !got.InProgress {
		t.Errorf("snapshot = %+v", got)
	}
}

func TestPushSwallowsErrors(t *testing.T) {
	var events []Event
	failing := NotifierFunc(func(context.Context, Event) error {
		return errors.New("viewer closed")
	})
	recording := NotifierFunc(func(_ context.Context, ev Event) error {
		events = append(events, ev)
		return nil
	})

	c := New(failing)
	c.Subscribe(recording)
	ctx := context.Background()
	c.Publish(ctx, types.RestoreState{InProgress: true, Loaded: 1, Total: 2})
	c.Publish(ctx, types.RestoreState{InProgress: true, Loaded: 2, Total: 2})
	c.Complete(ctx, types.RestoreState{Loaded: 2, Total: 2})

	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Kind != KindUpdate || events[2].Kind != KindComplete {
		t.Errorf("kinds = %v, %v", events[0].Kind, events[2].Kind)
	}
	if events[2].State.Loaded != 2 {
		t.Errorf("final state = %+v", events[2].State)
	}
}
