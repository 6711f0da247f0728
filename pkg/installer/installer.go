// Package installer installs the modules found by a scanner into a Host.
//
// A scan never stops at the first bad module: every failure is recorded
// and the caller receives one aggregate error once all candidates were
// tried.
package installer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grovetools/extcore/errors"
	"github.com/grovetools/extcore/logging"
	"github.com/grovetools/extcore/pkg/listeners"
	"github.com/grovetools/extcore/pkg/scanner"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Hook is notified after every successful install. With more than one
// worker, hooks are called concurrently.
type Hook interface {
	Installed(ctx context.Context, u Unit)
}

// FailureHook may be implemented by a Hook to also hear about failed
// installs.
type FailureHook interface {
	Failed(ctx context.Context, c scanner.Candidate, err error)
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, u Unit)

// Installed calls f.
func (f HookFunc) Installed(ctx context.Context, u Unit) {
	f(ctx, u)
}

// hookEntry gives every registration its own identity, so the same
// function can be registered twice and removed independently.
type hookEntry struct {
	hook Hook
}

// Report summarizes one Visit.
type Report struct {
	Installed []Unit
	Failures  []error
	// Scanned counts the candidates handed to the host.
	Scanned  int
	Duration time.Duration
}

// Installer drives a scanner and installs what it finds.
type Installer struct {
	host     Host
	scanner  *scanner.Scanner
	workers  int
	debounce time.Duration
	hooks    *listeners.Registry[*hookEntry]
	logger   *logrus.Entry
}

// Option configures an Installer.
type Option func(*Installer)

// WithScanner sets the scanner. The default scans for DefaultPatterns.
func WithScanner(s *scanner.Scanner) Option {
	return func(in *Installer) {
		in.scanner = s
	}
}

// WithWorkers bounds concurrent installs. The default of 1 installs
// sequentially.
func WithWorkers(n int) Option {
	return func(in *Installer) {
		if n > 0 {
			in.workers = n
		}
	}
}

// WithWatchDebounce sets the quiet period Watch waits for per path.
func WithWatchDebounce(d time.Duration) Option {
	return func(in *Installer) {
		in.debounce = d
	}
}

// WithLogger sets the installer logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(in *Installer) {
		in.logger = logger
	}
}

// New creates an installer for host.
func New(host Host, opts ...Option) *Installer {
	in := &Installer{
		host:     host,
		workers:  1,
		debounce: scanner.DefaultDebounce,
		hooks:    listeners.New[*hookEntry](listeners.WithMode[*hookEntry](listeners.Identity)),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.logger == nil {
		in.logger = logging.NewLogger("installer")
	}
	if in.scanner == nil {
		in.scanner = scanner.New(scanner.WithLogger(in.logger))
	}
	return in
}

// OnInstalled registers h and returns a function removing it again.
func (in *Installer) OnInstalled(h Hook) (remove func()) {
	entry := &hookEntry{hook: h}
	in.hooks.Add(entry)
	return func() {
		in.hooks.Remove(entry)
	}
}

// Hooks returns the number of registered hooks.
func (in *Installer) Hooks() int {
	return in.hooks.Len()
}

// Visit scans roots and installs every candidate. Failures do not stop the
// scan; when any occurred the returned error is a *errors.CompoundError
// with code INSTALL_AGGREGATE carrying each of them. Cancelling ctx ends the
// scan early without being reported as a failure. The report is returned in
// both cases.
func (in *Installer) Visit(ctx context.Context, roots ...string) (*Report, error) {
	start := time.Now()
	report := &Report{}
	var mu sync.Mutex

	sc := in.scanner.Visit(ctx, roots...)
	defer sc.Close()

	var g errgroup.Group
	g.SetLimit(in.workers)

	for c := range sc.All() {
		if ctx.Err() != nil {
			break
		}
		report.Scanned++
		g.Go(func() error {
			unit, err := in.install(ctx, c)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failures = append(report.Failures, err)
			case unit != nil:
				report.Installed = append(report.Installed, unit)
			}
			return nil
		})
	}
	_ = g.Wait()

	if scanErr, ok := sc.Err().(*errors.CompoundError); ok && scanErr != nil {
		report.Failures = append(report.Failures, scanErr.Causes...)
	}
	report.Duration = time.Since(start)

	in.logger.WithFields(logrus.Fields{
		"installed": len(report.Installed),
		"failed":    len(report.Failures),
		"scanned":   report.Scanned,
		"duration":  report.Duration.Round(time.Millisecond),
	}).Info("Install pass finished")

	if len(report.Failures) == 0 {
		return report, nil
	}
	return report, errors.NewCompound(errors.ErrCodeInstallAggregate,
		fmt.Sprintf("%d module(s) failed to install", len(report.Failures)), report.Failures)
}

var errNoUnit = errors.New(errors.ErrCodeInstallFailed, "host returned no unit")

// install hands c to the host and notifies hooks. It returns nil, nil when
// the install was abandoned because ctx ended.
func (in *Installer) install(ctx context.Context, c scanner.Candidate) (Unit, error) {
	logger := in.logger.WithField("module", c.Path)

	unit, err := in.host.Install(ctx, c)
	if err == nil && unit == nil {
		err = errNoUnit
	}
	if err != nil {
		if ctx.Err() != nil {
			logger.Debug("Install abandoned after cancellation")
			return nil, nil
		}
		failure := errors.InstallFailed(c.Path, err)
		logger.WithError(err).Warn("Module install failed")
		for _, entry := range in.hooks.Snapshot() {
			if fh, ok := entry.hook.(FailureHook); ok {
				fh.Failed(ctx, c, failure)
			}
		}
		return nil, failure
	}

	for _, entry := range in.hooks.Snapshot() {
		entry.hook.Installed(ctx, unit)
	}
	return unit, nil
}

// Watch installs modules that appear below roots until ctx ends. Failures
// are logged and reported to hooks, not returned.
func (in *Installer) Watch(ctx context.Context, roots ...string) error {
	w := scanner.NewWatcher(in.scanner, scanner.WithDebounce(in.debounce))
	candidates, err := w.Watch(ctx, roots...)
	if err != nil {
		return err
	}

	in.logger.WithField("roots", roots).Info("Watching for new modules")
	for c := range candidates {
		_, _ = in.install(ctx, c)
	}
	return nil
}
