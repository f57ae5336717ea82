package restore

import (
	"strings"
	"time"
)

// Order is the creation order of the work list.
type Order string

const (
	// OrderPreorder creates tabs depth-first, parents before children.
	OrderPreorder Order = "preorder"
	// OrderBreadthFirst creates every root, then every depth-1 tab, and so
	// on, keeping input order within a level.
	OrderBreadthFirst Order = "breadth-first"
)

// Policy paces and shapes a restore.
type Policy struct {
	// BatchSize successful creations are followed by a BatchDelay pause.
	BatchSize  int
	BatchDelay time.Duration
	// CallsPerSecond caps tab creation calls, measured on the
	// orchestrator's clock; zero means no cap.
	CallsPerSecond float64
	// SettleDelay is the pause after the bulk move, before collapse states
	// are replayed.
	SettleDelay time.Duration
	Order       Order
	// Reorder moves created tabs into their original sibling order.
	Reorder bool
	// ReplayStates collapses and expands subtrees to match the input.
	ReplayStates bool
	// SubstitutePrivileged opens privileged pages as the placeholder page.
	// When false they are skipped and not counted.
	SubstitutePrivileged bool
}

// DefaultPolicy returns the pacing used against a live browser.
func DefaultPolicy() Policy {
	return Policy{
		BatchSize:            10,
		BatchDelay:           500 * time.Millisecond,
		CallsPerSecond:       20,
		SettleDelay:          time.Second,
		Order:                OrderPreorder,
		Reorder:              true,
		ReplayStates:         true,
		SubstitutePrivileged: true,
	}
}

// NoDelay returns DefaultPolicy without any pauses or rate cap.
func NoDelay() Policy {
	p := DefaultPolicy()
	p.BatchDelay = 0
	p.CallsPerSecond = 0
	p.SettleDelay = 0
	return p
}

// Pages the host opens by itself when created without a URL.
var allowList = map[string]bool{
	"about:blank":  true,
	"about:newtab": true,
	"about:home":   true,
}

// Schemes the host refuses to open from an extension.
var privilegedPrefixes = []string{
	"about:",
	"chrome:",
	"file:",
	"javascript:",
	"data:",
	"resource:",
	"view-source:",
}

type disposition int

const (
	openNormal disposition = iota
	openDefault
	openPrivileged
)

func classify(url string) disposition {
	if url == "" || allowList[url] {
		return openDefault
	}
	for _, p := range privilegedPrefixes {
		if strings.HasPrefix(url, p) {
			return openPrivileged
		}
	}
	return openNormal
}
