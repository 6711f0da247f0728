// Package events keeps the catalog of configured event listeners and delivers
// events to them.
//
// The catalog follows the same copy-on-write discipline as
// pkg/listeners: every mutation builds a new immutable state under a mutex
// and publishes it with one atomic store, so notification never waits for
// registration. The enabled-only view of each category is cached and
// recomputed on demand after any mutation.
package events

import (
	"cmp"
	"maps"
	"reflect"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/grovetools/extcore/errors"
	"github.com/grovetools/extcore/logging"
	"github.com/sirupsen/logrus"
)

type entry struct {
	desc Descriptor
	seq  uint64
}

// catalogState is never modified once published.
type catalogState struct {
	byName  map[string]entry
	lists   [numCategories][]entry
	nextSeq uint64
}

// activeViews holds the enabled-only view per category. A slot whose valid
// flag is false is stale.
type activeViews struct {
	views [numCategories][]Descriptor
	valid [numCategories]bool
}

// Catalog indexes listener descriptors by name and by category.
type Catalog struct {
	mu      sync.Mutex
	state   atomic.Pointer[catalogState]
	active  atomic.Pointer[activeViews]
	factory *Factory
	logger  *logrus.Entry
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithFactory sets the factory used to build listeners from their kind.
func WithFactory(f *Factory) CatalogOption {
	return func(c *Catalog) {
		c.factory = f
	}
}

// WithCatalogLogger sets the catalog logger.
func WithCatalogLogger(logger *logrus.Entry) CatalogOption {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// NewCatalog creates an empty catalog.
func NewCatalog(opts ...CatalogOption) *Catalog {
	c := &Catalog{}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NewLogger("events")
	}
	if c.factory == nil {
		c.factory = NewFactory(WithFactoryLogger(c.logger))
	}
	c.state.Store(&catalogState{byName: map[string]entry{}})
	c.active.Store(&activeViews{})
	return c
}

// Register inserts d, or merges it over the descriptor already registered
// under the same name. A descriptor that cannot be turned into a listener is
// rejected with a LISTENER_INVALID error and the catalog is left unchanged.
func (c *Catalog) Register(d Descriptor) error {
	if d.Name == "" {
		return errors.ListenerInvalid(d.Name, "name is required", nil)
	}
	if !d.Category.Valid() {
		return errors.ListenerInvalid(d.Name, "unknown category "+d.Category.String(), nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state.Load()
	merged := d
	merged.Events = slices.Clone(d.Events)
	merged.Options = maps.Clone(d.Options)
	old, exists := st.byName[d.Name]
	if exists {
		merged = old.desc.Merge(d)
	}

	if d.Listener == nil && needsBuild(old.desc, merged, exists) {
		if merged.Kind == "" {
			return errors.ListenerInvalid(d.Name, "neither a listener nor a kind is set", nil)
		}
		l, err := c.factory.Build(merged)
		if err != nil {
			return errors.ListenerInvalid(d.Name, "cannot build kind "+merged.Kind, err)
		}
		merged.Listener = l
	}

	seq := st.nextSeq
	if exists {
		seq = old.seq
	}
	c.publishLocked(st, entry{desc: merged, seq: seq})

	c.logger.WithFields(logrus.Fields{
		"listener": merged.Name,
		"category": merged.Category.String(),
		"enabled":  merged.Enabled,
		"merged":   exists,
	}).Debug("Registered listener")
	return nil
}

// needsBuild reports whether the listener handle must be (re)built from its kind.
func needsBuild(old, merged Descriptor, exists bool) bool {
	if !exists || merged.Listener == nil {
		return true
	}
	return merged.Kind != old.Kind || !reflect.DeepEqual(merged.Options, old.Options)
}

// Unregister removes the named descriptor. It reports whether one was removed.
func (c *Catalog) Unregister(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state.Load()
	old, ok := st.byName[name]
	if !ok {
		return false
	}

	next := &catalogState{
		byName:  maps.Clone(st.byName),
		lists:   st.lists,
		nextSeq: st.nextSeq,
	}
	delete(next.byName, name)
	next.lists[old.desc.Category] = without(st.lists[old.desc.Category], name)

	c.state.Store(next)
	c.invalidateLocked()
	c.logger.WithField("listener", name).Debug("Unregistered listener")
	return true
}

// Enable re-registers the named descriptor with Enabled set.
func (c *Catalog) Enable(name string) error {
	return c.setEnabled(name, true)
}

// Disable re-registers the named descriptor with Enabled cleared.
func (c *Catalog) Disable(name string) error {
	return c.setEnabled(name, false)
}

func (c *Catalog) setEnabled(name string, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.state.Load()
	old, ok := st.byName[name]
	if !ok {
		return errors.ListenerInvalid(name, "not registered", nil)
	}
	if old.desc.Enabled == enabled {
		return nil
	}
	flipped := old.desc
	flipped.Enabled = enabled
	c.publishLocked(st, entry{desc: old.desc.Merge(flipped), seq: old.seq})
	return nil
}

// publishLocked installs e into a copy of st and invalidates the active views.
func (c *Catalog) publishLocked(st *catalogState, e entry) {
	next := &catalogState{
		byName:  maps.Clone(st.byName),
		lists:   st.lists,
		nextSeq: st.nextSeq,
	}
	if old, ok := st.byName[e.desc.Name]; ok {
		next.lists[old.desc.Category] = without(st.lists[old.desc.Category], e.desc.Name)
	} else {
		next.nextSeq++
	}
	next.byName[e.desc.Name] = e

	cat := e.desc.Category
	list := make([]entry, 0, len(next.lists[cat])+1)
	list = append(list, next.lists[cat]...)
	list = append(list, e)
	slices.SortStableFunc(list, func(a, b entry) int {
		return cmp.Or(cmp.Compare(a.desc.Priority, b.desc.Priority), cmp.Compare(a.seq, b.seq))
	})
	next.lists[cat] = list

	c.state.Store(next)
	c.invalidateLocked()
}

// invalidateLocked marks all three active views stale in one store.
func (c *Catalog) invalidateLocked() {
	c.active.Store(&activeViews{})
}

// without returns a new list lacking name. list is not modified.
func without(list []entry, name string) []entry {
	out := make([]entry, 0, len(list))
	for _, e := range list {
		if e.desc.Name != name {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ActiveListeners returns the enabled descriptors of cat in priority order.
// A valid cached view is read without locking; a stale one is recomputed
// under the catalog mutex. The returned slice belongs to the caller.
func (c *Catalog) ActiveListeners(cat Category) []Descriptor {
	if !cat.Valid() {
		return nil
	}
	if v := c.active.Load(); v.valid[cat] {
		return slices.Clone(v.views[cat])
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.active.Load()
	if v.valid[cat] {
		return slices.Clone(v.views[cat])
	}

	var view []Descriptor
	for _, e := range c.state.Load().lists[cat] {
		if e.desc.Enabled {
			view = append(view, e.desc)
		}
	}

	next := *v
	next.views[cat] = view
	next.valid[cat] = true
	c.active.Store(&next)

	return slices.Clone(view)
}

// Listeners returns every descriptor of cat, enabled or not, in priority order.
func (c *Catalog) Listeners(cat Category) []Descriptor {
	if !cat.Valid() {
		return nil
	}
	list := c.state.Load().lists[cat]
	out := make([]Descriptor, 0, len(list))
	for _, e := range list {
		out = append(out, e.desc)
	}
	return out
}

// HasListener reports whether a descriptor is registered under name.
func (c *Catalog) HasListener(name string) bool {
	_, ok := c.state.Load().byName[name]
	return ok
}

// Lookup returns the descriptor registered under name.
func (c *Catalog) Lookup(name string) (Descriptor, bool) {
	e, ok := c.state.Load().byName[name]
	return e.desc, ok
}

// ListenerNames returns the registered names, sorted.
func (c *Catalog) ListenerNames() []string {
	byName := c.state.Load().byName
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered descriptors.
func (c *Catalog) Len() int {
	return len(c.state.Load().byName)
}
