package events

import (
	"context"
	"sync"
	"time"

	"github.com/grovetools/extcore/errors"
	"github.com/grovetools/extcore/logging"
	"github.com/grovetools/extcore/pkg/listeners"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultAsyncWorkers bounds concurrent asynchronous deliveries per bundle.
	DefaultAsyncWorkers = 4
	// DefaultRetryDelay is the pause between attempts of a failing async delivery.
	DefaultRetryDelay = 50 * time.Millisecond

	observerName = "observer"
)

// Service delivers events to the listeners of a catalog.
type Service struct {
	catalog    *Catalog
	observers  *listeners.Registry[Listener]
	logger     *logrus.Entry
	workers    int
	retryDelay time.Duration

	mu       sync.Mutex
	inflight []*errgroup.Group
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAsyncWorkers bounds concurrent asynchronous deliveries.
func WithAsyncWorkers(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithRetryDelay sets the pause between async delivery attempts.
func WithRetryDelay(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.retryDelay = d
	}
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(logger *logrus.Entry) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a service reading listeners from catalog.
func NewService(catalog *Catalog, opts ...ServiceOption) *Service {
	s := &Service{
		catalog:    catalog,
		observers:  listeners.New[Listener](listeners.WithMode[Listener](listeners.Identity)),
		workers:    DefaultAsyncWorkers,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewLogger("events")
	}
	return s
}

// Catalog returns the catalog the service reads from.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Observers returns the programmatic listeners that see every fired event
// after the catalog's immediate listeners.
func (s *Service) Observers() *listeners.Registry[Listener] {
	return s.observers
}

// Fire delivers ev to the enabled immediate listeners accepting it, in
// priority order, then to the observers. The first failure stops delivery and
// is returned with code LISTENER_FAILED. If ctx carries a bundle, ev is
// recorded in it for deferred delivery.
func (s *Service) Fire(ctx context.Context, ev *Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if b := BundleFrom(ctx); b != nil {
		b.Add(ev)
	}

	for _, d := range s.catalog.ActiveListeners(Immediate) {
		if !d.Accepts(ev.Name) {
			continue
		}
		if err := d.Listener.HandleEvent(ctx, ev); err != nil {
			return errors.ListenerFailed(d.Name, ev.Name, err)
		}
	}
	for _, o := range s.observers.Snapshot() {
		if err := o.HandleEvent(ctx, ev); err != nil {
			return errors.ListenerFailed(observerName, ev.Name, err)
		}
	}
	return nil
}

// FireBundle delivers the events of b to deferred listeners. Synchronous
// listeners run in order before FireBundle returns; their failures are logged
// and delivery continues. Asynchronous listeners are handed to a bounded
// worker group and retried up to their RetryCount; use WaitForAsync to wait
// for them.
func (s *Service) FireBundle(ctx context.Context, b *Bundle) error {
	evs := b.Events()
	if len(evs) == 0 {
		return nil
	}
	logger := s.logger.WithField("bundle", b.Name())

	for _, d := range s.catalog.ActiveListeners(SyncDeferred) {
		for _, ev := range evs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !d.Accepts(ev.Name) {
				continue
			}
			if err := d.Listener.HandleEvent(ctx, ev); err != nil {
				logger.WithError(errors.ListenerFailed(d.Name, ev.Name, err)).
					Warn("Deferred listener failed")
			}
		}
	}

	async := s.catalog.ActiveListeners(AsyncDeferred)
	if len(async) == 0 {
		return nil
	}

	// Deliveries outlive the caller's request.
	bg := context.WithoutCancel(ctx)
	outer := new(errgroup.Group)
	outer.Go(func() error {
		g := new(errgroup.Group)
		g.SetLimit(s.workers)
		for _, d := range async {
			g.Go(func() error {
				for _, ev := range evs {
					if d.Accepts(ev.Name) {
						s.deliver(bg, logger, d, ev)
					}
				}
				return nil
			})
		}
		return g.Wait()
	})

	s.mu.Lock()
	s.inflight = append(s.inflight, outer)
	s.mu.Unlock()
	return nil
}

// deliver runs one asynchronous delivery with retries.
func (s *Service) deliver(ctx context.Context, logger *logrus.Entry, d Descriptor, ev *Event) {
	var err error
	for attempt := 0; attempt <= d.RetryCount; attempt++ {
		if attempt > 0 && s.retryDelay > 0 {
			time.Sleep(s.retryDelay)
		}
		if err = d.Listener.HandleEvent(ctx, ev); err == nil {
			return
		}
		logger.WithFields(logrus.Fields{
			"listener": d.Name,
			"event":    ev.Name,
			"attempt":  attempt + 1,
		}).WithError(err).Debug("Async delivery attempt failed")
	}
	logger.WithError(errors.ListenerFailed(d.Name, ev.Name, err)).
		WithField("attempts", d.RetryCount+1).
		Error("Async listener gave up")
}

// WaitForAsync blocks until every asynchronous delivery started so far has
// finished, or ctx ends.
func (s *Service) WaitForAsync(ctx context.Context) error {
	s.mu.Lock()
	groups := s.inflight
	s.inflight = nil
	s.mu.Unlock()

	if len(groups) == 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, g := range groups {
			_ = g.Wait()
		}
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		s.inflight = append(groups, s.inflight...)
		s.mu.Unlock()
		return ctx.Err()
	}
}
