// Package listeners provides a copy-on-write set of listener handles.
//
// A Registry is read far more often than it is written: notification loops
// call Snapshot on every event while registrations happen at startup or when a
// module is (un)installed. Reads are a single atomic load and never block;
// writers serialize on a mutex, build a new slice and publish it with one
// atomic store. A slice returned by Snapshot is therefore never modified by
// the registry after it was handed out.
package listeners

import (
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
)

// Mode selects how two listeners are compared when detecting duplicates.
type Mode int

const (
	// Equality treats value-equal listeners as the same listener.
	Equality Mode = iota
	// Identity treats only the very same listener (same address) as the same listener.
	Identity
)

func (m Mode) String() string {
	switch m {
	case Identity:
		return "identity"
	default:
		return "equality"
	}
}

// Equaler lets a listener type define its own value equality.
type Equaler[T any] interface {
	Equal(other T) bool
}

// Registry is a concurrency-safe, copy-on-write set of listeners.
// The zero value is not usable; create one with New.
type Registry[T any] struct {
	mu      sync.Mutex
	entries atomic.Pointer[[]T]
	mode    Mode
	equal   func(a, b T) bool
	compare func(a, b T) int
}

// Option configures a Registry.
type Option[T any] func(*Registry[T])

// WithMode sets the duplicate detection mode. The default is Equality.
func WithMode[T any](mode Mode) Option[T] {
	return func(r *Registry[T]) {
		r.mode = mode
	}
}

// WithComparator keeps the listeners ordered by cmp instead of insertion order.
// Listeners comparing equal keep their insertion order.
func WithComparator[T any](cmp func(a, b T) int) Option[T] {
	return func(r *Registry[T]) {
		r.compare = cmp
	}
}

// WithEqualFunc replaces the mode's comparison with eq.
func WithEqualFunc[T any](eq func(a, b T) bool) Option[T] {
	return func(r *Registry[T]) {
		r.equal = eq
	}
}

// New creates an empty registry.
func New[T any](opts ...Option[T]) *Registry[T] {
	r := &Registry[T]{}
	for _, opt := range opts {
		opt(r)
	}
	if r.equal == nil {
		if r.mode == Identity {
			r.equal = identical[T]
		} else {
			r.equal = equivalent[T]
		}
	}
	return r
}

// Mode returns the comparison mode the registry was created with.
func (r *Registry[T]) Mode() Mode {
	return r.mode
}

// Add registers l unless an equivalent listener is already present.
// It reports whether the registry changed.
func (r *Registry[T]) Add(l T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.load()
	if r.indexOf(current, l) >= 0 {
		return false
	}

	next := make([]T, len(current)+1)
	copy(next, current)
	next[len(current)] = l
	if r.compare != nil {
		slices.SortStableFunc(next, r.compare)
	}
	r.entries.Store(&next)
	return true
}

// Remove unregisters the listener equivalent to l.
// It reports whether the registry changed.
func (r *Registry[T]) Remove(l T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.load()
	idx := r.indexOf(current, l)
	if idx < 0 {
		return false
	}

	if len(current) == 1 {
		r.entries.Store(nil)
		return true
	}
	next := make([]T, 0, len(current)-1)
	next = append(next, current[:idx]...)
	next = append(next, current[idx+1:]...)
	r.entries.Store(&next)
	return true
}

// Clear removes every listener.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries.Store(nil)
}

// Contains reports whether a listener equivalent to l is registered.
func (r *Registry[T]) Contains(l T) bool {
	return r.indexOf(r.load(), l) >= 0
}

// Snapshot returns the currently published listeners without copying.
// The slice is shared with other readers and must not be modified.
func (r *Registry[T]) Snapshot() []T {
	return r.load()
}

// SnapshotCopy returns a private copy of the current listeners.
func (r *Registry[T]) SnapshotCopy() []T {
	return slices.Clone(r.load())
}

// Len returns the number of registered listeners.
func (r *Registry[T]) Len() int {
	return len(r.load())
}

// IsEmpty reports whether no listener is registered.
func (r *Registry[T]) IsEmpty() bool {
	return r.Len() == 0
}

func (r *Registry[T]) load() []T {
	if p := r.entries.Load(); p != nil {
		return *p
	}
	return nil
}

func (r *Registry[T]) indexOf(entries []T, l T) int {
	for i, e := range entries {
		if r.equal(e, l) {
			return i
		}
	}
	return -1
}

// equivalent compares by value: an Equaler decides for itself, everything else
// is compared deeply (pointers by what they point to).
func equivalent[T any](a, b T) bool {
	if eq, ok := any(a).(Equaler[T]); ok {
		return eq.Equal(b)
	}
	return reflect.DeepEqual(a, b)
}

// identical compares by reference. Values without an address (numbers,
// strings, plain structs) are identical when they are equal.
func identical[T any](a, b T) bool {
	va, vb := reflect.ValueOf(any(a)), reflect.ValueOf(any(b))
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan, reflect.Func:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if va.Comparable() {
		return va.Equal(vb)
	}
	return false
}
