package events

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Category decides when a listener is invoked relative to the code firing the event.
type Category int

const (
	// Immediate listeners run inline with Fire.
	Immediate Category = iota
	// SyncDeferred listeners run in order when a bundle is flushed.
	SyncDeferred
	// AsyncDeferred listeners run on background workers when a bundle is flushed.
	AsyncDeferred

	numCategories = 3
)

// Categories lists every category in invocation order.
var Categories = []Category{Immediate, SyncDeferred, AsyncDeferred}

func (c Category) String() string {
	switch c {
	case Immediate:
		return "immediate"
	case SyncDeferred:
		return "sync"
	case AsyncDeferred:
		return "async"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c >= Immediate && c < numCategories
}

// ParseCategory parses the configuration spelling of a category. An empty
// string selects Immediate.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "immediate":
		return Immediate, nil
	case "sync", "syncdeferred", "sync-deferred":
		return SyncDeferred, nil
	case "async", "asyncdeferred", "async-deferred":
		return AsyncDeferred, nil
	default:
		return 0, fmt.Errorf("unknown listener category %q", s)
	}
}

// Descriptor describes one registered listener. Descriptors are values: the
// catalog never modifies one after it has been published.
type Descriptor struct {
	Name       string
	Category   Category
	Enabled    bool
	Priority   int
	Events     []string
	Kind       string
	Options    map[string]any
	Listener   Listener
	RetryCount int
}

// Accepts reports whether the listener wants events named name.
// A descriptor without an event list accepts everything.
func (d Descriptor) Accepts(name string) bool {
	return len(d.Events) == 0 || slices.Contains(d.Events, name)
}

// Merge returns the result of re-registering newer over d. Neither input is
// modified.
func (d Descriptor) Merge(newer Descriptor) Descriptor {
	merged := d
	merged.Category = newer.Category
	merged.Enabled = newer.Enabled

	if newer.Priority != 0 {
		merged.Priority = newer.Priority
	}
	if newer.RetryCount != 0 {
		merged.RetryCount = newer.RetryCount
	}
	if newer.Kind != "" {
		merged.Kind = newer.Kind
	}
	if newer.Listener != nil {
		merged.Listener = newer.Listener
	}

	merged.Events = slices.Clone(d.Events)
	for _, ev := range newer.Events {
		if !slices.Contains(merged.Events, ev) {
			merged.Events = append(merged.Events, ev)
		}
	}

	if len(newer.Options) > 0 {
		opts := make(map[string]any, len(d.Options)+len(newer.Options))
		maps.Copy(opts, d.Options)
		maps.Copy(opts, newer.Options)
		merged.Options = opts
	} else {
		merged.Options = maps.Clone(d.Options)
	}

	return merged
}
