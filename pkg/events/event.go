package events

import (
	"context"
	"sync"
	"time"
)

// Event names emitted by the module pipeline.
const (
	EventModuleInstalled     = "moduleInstalled"
	EventModuleInstallFailed = "moduleInstallFailed"
	EventScanCompleted       = "scanCompleted"
)

// Event is a single notification.
type Event struct {
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload,omitempty"`
	Time    time.Time      `json:"time"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(name string, payload map[string]any) *Event {
	return &Event{Name: name, Payload: payload, Time: time.Now()}
}

// Listener receives events.
type Listener interface {
	HandleEvent(ctx context.Context, ev *Event) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, ev *Event) error

// HandleEvent calls f.
func (f ListenerFunc) HandleEvent(ctx context.Context, ev *Event) error {
	return f(ctx, ev)
}

// Bundle collects fired events for deferred delivery.
type Bundle struct {
	name string

	mu     sync.Mutex
	events []*Event
}

// NewBundle creates an empty bundle.
func NewBundle(name string) *Bundle {
	return &Bundle{name: name}
}

// Name returns the bundle name.
func (b *Bundle) Name() string {
	return b.name
}

// Add appends ev.
func (b *Bundle) Add(ev *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

// Events returns the collected events in firing order.
func (b *Bundle) Events() []*Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Event(nil), b.events...)
}

// Len returns the number of collected events.
func (b *Bundle) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

type bundleKey struct{}

// WithBundle attaches b to ctx so that Fire records events into it.
func WithBundle(ctx context.Context, b *Bundle) context.Context {
	return context.WithValue(ctx, bundleKey{}, b)
}

// BundleFrom returns the bundle attached to ctx, or nil.
func BundleFrom(ctx context.Context) *Bundle {
	b, _ := ctx.Value(bundleKey{}).(*Bundle)
	return b
}
