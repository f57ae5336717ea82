// Package restore recreates a tab tree in the live browser: tabs are
// created parents first, linked to their parents through openerTabId,
// moved into their original order and finally collapsed or expanded to
// match the saved tree.
package restore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/lotas/tabtree/internal/applog"
	"github.com/lotas/tabtree/internal/host"
	"github.com/lotas/tabtree/internal/pages"
	"github.com/lotas/tabtree/internal/progress"
	"github.com/lotas/tabtree/internal/storage"
	"github.com/lotas/tabtree/internal/tree"
	"github.com/lotas/tabtree/internal/types"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

// ErrInProgress is returned when a restore is requested while another one
// is running.
var ErrInProgress = errors.New("restore already in progress")

// Recorder stores finished restores.
type Recorder interface {
	RecordRun(run storage.RestoreRun) error
}

// Result describes a finished restore.
type Result struct {
	IDs     IdentityMap
	Created int
	Failed  int
	Skipped int
	// Err holds the first reorder or state replay failure, if any.
	Err error
}

// Orchestrator owns the restore state. It runs at most one restore at a
// time.
type Orchestrator struct {
	tabs     host.Tabs
	tree     host.Tree
	channel  *progress.Channel
	policy   Policy
	clock    clock.Clock
	base     string
	recorder Recorder

	mu    sync.Mutex
	state types.RestoreState
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the clock used for the call rate cap and for batch
// and settle pauses.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithPlaceholderBase sets the origin of the placeholder page.
func WithPlaceholderBase(base string) Option {
	return func(o *Orchestrator) { o.base = base }
}

// WithRecorder records every finished restore.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// New returns an Orchestrator creating tabs through tabs and replaying
// states through tr. tr may be nil, which skips state replay. Progress is
// published on ch, which also gets the Orchestrator as its source.
func New(tabs host.Tabs, tr host.Tree, ch *progress.Channel, policy Policy, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		tabs:    tabs,
		tree:    tr,
		channel: ch,
		policy:  policy,
		clock:   clock.New(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.channel == nil {
		o.channel = progress.New()
	}
	o.channel.Attach(o)
	return o
}

// Progress returns a copy of the current state.
func (o *Orchestrator) Progress() types.RestoreState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Start begins a restore in the background and returns once it is
// accepted. The restore outlives ctx cancellation.
func (o *Orchestrator) Start(ctx context.Context, in Input) error {
	job, err := o.begin(in)
	if err != nil {
		return err
	}
	go o.run(context.WithoutCancel(ctx), job)
	return nil
}

// Restore runs a restore to completion.
func (o *Orchestrator) Restore(ctx context.Context, in Input) (Result, error) {
	job, err := o.begin(in)
	if err != nil {
		return Result{}, err
	}
	return o.run(ctx, job), nil
}

type job struct {
	forest   []*types.TabNode
	work     []types.FlatNode
	parentOf map[int]int
	started  time.Time
}

// begin counts the work and claims the single restore slot.
func (o *Orchestrator) begin(in Input) (*job, error) {
	forest := in.Forest()
	work := o.workList(forest)
	total := 0
	for _, n := range work {
		if !o.skipped(n.URL) {
			total++
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.InProgress {
		return nil, ErrInProgress
	}
	o.state = types.RestoreState{InProgress: true, Loaded: 0, Total: total}

	parentOf := make(map[int]int, len(work))
	for _, n := range work {
		if n.OpenerTabID != nil {
			parentOf[n.ID] = *n.OpenerTabID
		}
	}
	return &job{forest: forest, work: work, parentOf: parentOf, started: o.clock.Now()}, nil
}

// workList flattens the forest in creation order. Both orders create a
// parent before any of its children.
func (o *Orchestrator) workList(forest []*types.TabNode) []types.FlatNode {
	work := tree.FlattenWithDepth(forest, nil, 0, nil)
	if o.policy.Order == OrderBreadthFirst {
		sort.SliceStable(work, func(i, j int) bool { return work[i].Depth < work[j].Depth })
	}
	return work
}

func (o *Orchestrator) skipped(url string) bool {
	return !o.policy.SubstitutePrivileged && classify(url) == openPrivileged
}

func (o *Orchestrator) run(ctx context.Context, j *job) (res Result) {
	res.IDs = make(IdentityMap, len(j.work))

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("restore panicked: %v", r)
			applog.Error("restore.panic", err)
			if res.Err == nil {
				res.Err = err
			}
		}
		o.finish(ctx, j, res)
	}()

	applog.Info("restore.start", "total", o.Progress().Total, "order", string(o.policy.Order))
	o.channel.Publish(ctx, o.Progress())

	o.create(ctx, j, &res)

	if o.policy.Reorder && len(res.IDs) > 0 {
		if err := o.reorder(ctx, j, res.IDs); err != nil {
			applog.Error("restore.reorder.failed", err)
			res.Err = err
		}
	}
	if o.policy.ReplayStates && o.tree != nil {
		if err := o.replayStates(ctx, j, res.IDs); err != nil && res.Err == nil {
			res.Err = err
		}
	}
	o.activate(ctx, j, res.IDs)
	return res
}

// finish releases the restore slot, sends the completion notice and
// records the run.
func (o *Orchestrator) finish(ctx context.Context, j *job, res Result) {
	o.mu.Lock()
	o.state.InProgress = false
	final := o.state
	o.mu.Unlock()

	applog.Info("restore.done", "loaded", final.Loaded, "total", final.Total, "failed", res.Failed, "skipped", res.Skipped)
	o.channel.Complete(ctx, final)

	if o.recorder == nil {
		return
	}
	run := storage.RestoreRun{
		StartedAt:  j.started,
		FinishedAt: o.clock.Now(),
		Total:      final.Total,
		Loaded:     final.Loaded,
		Failed:     res.Failed,
	}
	if res.Err != nil {
		run.Error = res.Err.Error()
	}
	if err := o.recorder.RecordRun(run); err != nil {
		applog.Warn("restore.record.failed", "error", err)
	}
}

func (o *Orchestrator) create(ctx context.Context, j *job, res *Result) {
	var limiter *rate.Limiter
	if o.policy.CallsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(o.policy.CallsPerSecond), 1)
	}

	for _, n := range j.work {
		if o.skipped(n.URL) {
			applog.Warn("restore.skip.privileged", "url", n.URL)
			res.Skipped++
			continue
		}

		props := o.createProps(n)
		if opener, ok := res.IDs.Opener(n.OpenerTabID, j.parentOf); ok {
			props.OpenerTabID = &opener
		}

		if limiter != nil {
			now := o.clock.Now()
			if d := limiter.ReserveN(now, 1).DelayFrom(now); d > 0 {
				o.clock.Sleep(d)
			}
		}

		tab, err := o.createTab(ctx, props)
		if err != nil {
			applog.Error("restore.create.failed", err, "id", n.ID, "url", n.URL)
			res.Failed++
			o.mu.Lock()
			o.state.Total--
			st := o.state
			o.mu.Unlock()
			o.channel.Publish(ctx, st)
			continue
		}

		res.IDs[n.ID] = tab.ID
		res.Created++
		o.mu.Lock()
		o.state.Loaded++
		st := o.state
		o.mu.Unlock()
		o.channel.Publish(ctx, st)

		if o.policy.BatchSize > 0 && o.policy.BatchDelay > 0 && res.Created%o.policy.BatchSize == 0 {
			o.clock.Sleep(o.policy.BatchDelay)
		}
	}
}

// createTab creates a tab, retrying once without the container when the
// browser rejected the container. Other failures, such as a timeout after
// which the tab may exist, are not retried.
func (o *Orchestrator) createTab(ctx context.Context, props host.CreateProps) (types.Tab, error) {
	tab, err := o.tabs.Create(ctx, props)
	if err == nil || props.CookieStoreID == "" || !errors.Is(err, host.ErrRejected) {
		return tab, err
	}
	applog.Warn("restore.create.container", "cookieStoreId", props.CookieStoreID, "error", err)
	props.CookieStoreID = ""
	return o.tabs.Create(ctx, props)
}

// createProps builds the creation request for one node. Tabs are opened in
// the background. A discarded tab carries its title since it never loads;
// a loading tab must not.
func (o *Orchestrator) createProps(n types.FlatNode) host.CreateProps {
	p := host.CreateProps{
		Pinned:        n.Pinned,
		CookieStoreID: n.CookieStoreID,
	}
	switch classify(n.URL) {
	case openDefault:
		p.Discarded = false
	case openPrivileged:
		p.URL = pages.PlaceholderURL(o.base, n.URL, n.Title)
		p.Discarded = false
	default:
		p.URL = n.URL
		p.Discarded = n.Discarded
	}
	if p.Discarded {
		p.Title = n.Title
	}
	return p
}

// reorder moves the created tabs into original sibling order with one
// bulk move to the end of the window, then waits for the tree extension
// to settle.
func (o *Orchestrator) reorder(ctx context.Context, j *job, ids IdentityMap) error {
	var order []int
	var walk func([]*types.TabNode)
	walk = func(nodes []*types.TabNode) {
		sorted := append([]*types.TabNode(nil), nodes...)
		if lo.EveryBy(sorted, func(n *types.TabNode) bool { return n.Index != nil }) {
			sort.SliceStable(sorted, func(a, b int) bool { return *sorted[a].Index < *sorted[b].Index })
		}
		for _, n := range sorted {
			// Pinned tabs stay in the pinned strip.
			if id, ok := ids[n.ID]; ok && !n.Pinned {
				order = append(order, id)
			}
			walk(n.Children)
		}
	}
	walk(j.forest)
	order = lo.Uniq(order)

	if len(order) > 0 {
		if err := o.tabs.Move(ctx, order, -1); err != nil {
			return fmt.Errorf("move %d tabs: %w", len(order), err)
		}
	}
	if o.policy.SettleDelay > 0 {
		o.clock.Sleep(o.policy.SettleDelay)
	}
	return nil
}

// replayStates walks created parents deepest first, collapsing the ones
// saved collapsed and explicitly expanding the rest.
func (o *Orchestrator) replayStates(ctx context.Context, j *job, ids IdentityMap) error {
	parents := lo.Filter(j.work, func(n types.FlatNode, _ int) bool {
		_, created := ids[n.ID]
		return created && len(n.Children) > 0
	})
	sort.SliceStable(parents, func(a, b int) bool { return parents[a].Depth > parents[b].Depth })

	var firstErr error
	for _, n := range parents {
		id := ids[n.ID]
		var err error
		if n.Collapsed() {
			err = o.tree.Collapse(ctx, id)
		} else {
			err = o.tree.Expand(ctx, id)
		}
		if err != nil {
			applog.Warn("restore.state.failed", "id", id, "collapsed", n.Collapsed(), "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("replay state of tab %d: %w", id, err)
			}
		}
	}
	return firstErr
}

// activate re-activates the tab that was active when the tree was saved
// and focuses its window.
func (o *Orchestrator) activate(ctx context.Context, j *job, ids IdentityMap) {
	active, ok := lo.Find(j.work, func(n types.FlatNode) bool { return n.Active })
	if !ok {
		return
	}
	id, ok := ids[active.ID]
	if !ok {
		return
	}
	if err := o.tabs.Update(ctx, id, host.UpdateProps{Active: host.Bool(true)}); err != nil {
		applog.Warn("restore.activate.failed", "id", id, "error", err)
		return
	}
	tab, err := o.tabs.Get(ctx, id)
	if err != nil {
		applog.Warn("restore.focus.failed", "id", id, "error", err)
		return
	}
	if err := o.tabs.FocusWindow(ctx, tab.WindowID); err != nil {
		applog.Warn("restore.focus.failed", "window", tab.WindowID, "error", err)
	}
}
