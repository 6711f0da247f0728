// Package scanner discovers deployable modules below a set of root
// directories. Walkers run in the background, one per root, and hand
// candidates to a single pulling consumer through a bounded queue.
package scanner

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grovetools/extcore/errors"
	"github.com/grovetools/extcore/logging"
	"github.com/grovetools/extcore/util/pathutil"
	"github.com/sirupsen/logrus"
)

const (
	DefaultQueueSize    = 64
	DefaultPollInterval = 25 * time.Millisecond
)

// Candidate is a module found by a scan.
type Candidate struct {
	// Path is the absolute path of the module.
	Path string `json:"path"`
	// Root is the scanned root the module was found under.
	Root string `json:"root"`
	// Rel is the slash separated path relative to Root.
	Rel string `json:"rel"`
	// Pattern is the filter pattern that selected the module.
	Pattern string `json:"pattern,omitempty"`
	// Dir reports an exploded (directory) module.
	Dir bool `json:"dir,omitempty"`
}

// Scanner walks roots for modules. A Scanner is immutable once built and
// may start any number of scans.
type Scanner struct {
	filter         Filter
	queueSize      int
	pollInterval   time.Duration
	maxDepth       int
	followSymlinks bool
	logger         *logrus.Entry
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithFilter sets the module filter. The default accepts DefaultPatterns.
func WithFilter(f Filter) Option {
	return func(s *Scanner) {
		s.filter = f
	}
}

// WithQueueSize bounds the number of candidates buffered between the
// walkers and the consumer.
func WithQueueSize(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithPollInterval sets how long Next waits on an empty queue before it
// re-checks the walk state.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scanner) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithMaxDepth limits descent below each root. 0 means unlimited, 1 visits
// only the direct children of a root.
func WithMaxDepth(n int) Option {
	return func(s *Scanner) {
		if n >= 0 {
			s.maxDepth = n
		}
	}
}

// WithFollowSymlinks resolves roots that are symbolic links. Links below a
// root are never followed.
func WithFollowSymlinks(follow bool) Option {
	return func(s *Scanner) {
		s.followSymlinks = follow
	}
}

// WithLogger sets the scanner logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// New creates a Scanner.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		queueSize:    DefaultQueueSize,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.filter == nil {
		// DefaultPatterns always compile.
		s.filter, _ = NewOrFilter()
	}
	if s.logger == nil {
		s.logger = logging.NewLogger("scanner")
	}
	return s
}

// Filter returns the filter the scanner applies.
func (s *Scanner) Filter() Filter {
	return s.filter
}

const (
	stateWalking int32 = iota
	stateDone
)

// Scan is one pass over a set of roots. Candidates are pulled with Next or
// ranged over with All. A Scan is not restartable; call Visit again for a
// fresh walk.
type Scan struct {
	queue    chan Candidate
	poll     time.Duration
	cancel   context.CancelFunc
	state    atomic.Int32
	closed   atomic.Bool
	finished chan struct{}
	once     sync.Once

	mu   sync.Mutex
	errs []error

	scanned atomic.Int64
	logger  *logrus.Entry
}

// Visit starts walking roots in the background and returns the scan
// consuming their results. Cancelling ctx stops the walkers; the scan then
// ends once the queue is drained.
func (s *Scanner) Visit(ctx context.Context, roots ...string) *Scan {
	ctx, cancel := context.WithCancel(ctx)
	sc := &Scan{
		queue:    make(chan Candidate, s.queueSize),
		poll:     s.pollInterval,
		cancel:   cancel,
		finished: make(chan struct{}),
		logger:   s.logger,
	}

	var wg sync.WaitGroup
	for _, root := range roots {
		wg.Add(1)
		go func(root string) {
			defer wg.Done()
			s.walkRoot(ctx, sc, root)
		}(root)
	}

	go func() {
		wg.Wait()
		sc.state.Store(stateDone)
		close(sc.finished)
		cancel()
		s.logger.WithField("entries", sc.scanned.Load()).Debug("Scan finished")
	}()

	return sc
}

func (s *Scanner) walkRoot(ctx context.Context, sc *Scan, root string) {
	logger := s.logger.WithField("root", root)

	abs, err := pathutil.Expand(root)
	if err != nil {
		sc.fail(errors.ScanFailed(root, err))
		return
	}
	if s.followSymlinks {
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
	}

	if _, err := os.Lstat(abs); err != nil {
		if os.IsNotExist(err) {
			logger.Warn("Scan root does not exist, skipping")
			return
		}
		sc.fail(errors.ScanFailed(root, err))
		return
	}

	logger.Debug("Walking scan root")
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, walkErr error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if walkErr != nil {
			if path == abs {
				return walkErr
			}
			logger.WithError(walkErr).WithField("path", path).Warn("Skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == abs {
			return nil
		}
		sc.scanned.Add(1)

		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		depth := strings.Count(rel, "/") + 1

		if pattern, ok := s.filter.Match(rel, d); ok {
			// The entry may have vanished since the directory was read.
			if _, err := os.Lstat(path); err != nil {
				logger.WithField("path", path).Debug("Matched entry no longer exists")
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			c := Candidate{Path: path, Root: abs, Rel: rel, Pattern: pattern, Dir: d.IsDir()}
			select {
			case sc.queue <- c:
			case <-ctx.Done():
				return ctx.Err()
			}
			if d.IsDir() {
				// Exploded modules are not searched for nested modules.
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() && s.maxDepth > 0 && depth >= s.maxDepth {
			return filepath.SkipDir
		}
		return nil
	})

	if err != nil && ctx.Err() == nil {
		sc.fail(errors.ScanFailed(root, err))
	}
}

func (sc *Scan) fail(err error) {
	sc.logger.WithError(err).Error("Scan root failed")
	sc.mu.Lock()
	sc.errs = append(sc.errs, err)
	sc.mu.Unlock()
}

// Next returns the next candidate. It blocks while walkers are still
// running and the queue is empty, and returns false once the walk is done
// and drained, or after Close.
func (sc *Scan) Next() (Candidate, bool) {
	timer := time.NewTimer(sc.poll)
	defer timer.Stop()

	for {
		if sc.closed.Load() {
			return Candidate{}, false
		}

		select {
		case c := <-sc.queue:
			return c, true
		default:
		}

		if sc.state.Load() == stateDone {
			// Every send happened before the state changed.
			select {
			case c := <-sc.queue:
				return c, true
			default:
				return Candidate{}, false
			}
		}

		select {
		case c := <-sc.queue:
			return c, true
		case <-sc.finished:
		case <-timer.C:
			timer.Reset(sc.poll)
		}
	}
}

// All returns the remaining candidates as a sequence. Stopping the range
// early closes the scan.
func (sc *Scan) All() iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for {
			c, ok := sc.Next()
			if !ok {
				return
			}
			if !yield(c) {
				sc.Close()
				return
			}
		}
	}
}

// Close stops the walkers, discards queued candidates and waits for the
// walker goroutines to exit. It is safe to call more than once.
func (sc *Scan) Close() {
	sc.once.Do(func() {
		sc.closed.Store(true)
		sc.cancel()
		for {
			select {
			case <-sc.queue:
			case <-sc.finished:
				for {
					select {
					case <-sc.queue:
					default:
						return
					}
				}
			}
		}
	})
}

// Done is closed once every walker has exited.
func (sc *Scan) Done() <-chan struct{} {
	return sc.finished
}

// Scanned returns the number of entries visited so far.
func (sc *Scan) Scanned() int64 {
	return sc.scanned.Load()
}

// Err returns the failures of roots that could not be walked, or nil.
// Cancellation is not reported.
func (sc *Scan) Err() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if len(sc.errs) == 0 {
		return nil
	}
	return errors.NewCompound(errors.ErrCodeScanFailed, "scan failed", sc.errs)
}
