package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/extcore/errors"
	"github.com/grovetools/extcore/util/pathutil"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is how long a path must stay quiet before it is delivered.
const DefaultDebounce = 200 * time.Millisecond

// Watcher delivers modules that appear or change below a set of roots after
// the initial scan, for hot deployment.
type Watcher struct {
	scanner  *Scanner
	debounce time.Duration
	logger   *logrus.Entry
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets the quiet period applied per path.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher using the filter and depth limit of s.
func NewWatcher(s *Scanner, opts ...WatchOption) *Watcher {
	w := &Watcher{
		scanner:  s,
		debounce: DefaultDebounce,
		logger:   s.logger.WithField("mode", "watch"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type watchRun struct {
	w       *Watcher
	fsw     *fsnotify.Watcher
	roots   []string
	fire    chan string
	mu      sync.Mutex
	pending map[string]*time.Timer
}

// Watch starts watching roots. Candidates are sent on the returned channel
// until ctx ends, when the channel is closed. Missing roots are skipped.
func (w *Watcher) Watch(ctx context.Context, roots ...string) (<-chan Candidate, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create file watcher")
	}

	run := &watchRun{
		w:       w,
		fsw:     fsw,
		fire:    make(chan string),
		pending: make(map[string]*time.Timer),
	}

	for _, root := range roots {
		abs, err := pathutil.Expand(root)
		if err != nil {
			fsw.Close()
			return nil, errors.ScanFailed(root, err)
		}
		if w.scanner.followSymlinks {
			if resolved, err := filepath.EvalSymlinks(abs); err == nil {
				abs = resolved
			}
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			w.logger.WithField("root", root).Warn("Watch root is not a directory, skipping")
			continue
		}
		run.roots = append(run.roots, abs)
		run.addTree(abs)
	}

	out := make(chan Candidate)
	go run.loop(ctx, out)
	return out, nil
}

// addTree watches dir and the directories below it that are not modules.
func (r *watchRun) addTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		root, rel, ok := r.locate(path)
		if ok && rel != "" {
			if _, match := r.w.scanner.filter.Match(rel, d); match {
				return filepath.SkipDir
			}
			if limit := r.w.scanner.maxDepth; limit > 0 && strings.Count(rel, "/")+1 >= limit {
				return filepath.SkipDir
			}
		}
		if err := r.fsw.Add(path); err != nil {
			r.w.logger.WithError(err).WithField("root", root).Warnf("Failed to watch %s", path)
		}
		return nil
	})
}

// locate finds the watched root containing path.
func (r *watchRun) locate(path string) (root, rel string, ok bool) {
	for _, candidate := range r.roots {
		relPath, err := filepath.Rel(candidate, path)
		if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
			continue
		}
		if len(candidate) > len(root) {
			root = candidate
			if relPath == "." {
				relPath = ""
			}
			rel = filepath.ToSlash(relPath)
			ok = true
		}
	}
	return root, rel, ok
}

func (r *watchRun) loop(ctx context.Context, out chan<- Candidate) {
	defer close(out)
	defer r.stopTimers()
	defer r.fsw.Close()

	for {
		select {
		case event, ok := <-r.fsw.Events:
			if !ok {
				return
			}
			r.w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				r.schedule(ctx, event.Name)
			}
		case err, ok := <-r.fsw.Errors:
			if !ok {
				return
			}
			r.w.logger.Errorf("Watcher error: %v", err)
		case path := <-r.fire:
			c, ok := r.candidate(path)
			if !ok {
				continue
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// schedule delivers path once it has been quiet for the debounce period.
func (r *watchRun) schedule(ctx context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.pending[path]; ok {
		t.Reset(r.w.debounce)
		return
	}
	r.pending[path] = time.AfterFunc(r.w.debounce, func() {
		r.mu.Lock()
		delete(r.pending, path)
		r.mu.Unlock()
		select {
		case r.fire <- path:
		case <-ctx.Done():
		}
	})
}

func (r *watchRun) stopTimers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for path, t := range r.pending {
		t.Stop()
		delete(r.pending, path)
	}
}

// candidate tests a settled path against the filter. New directories that
// are not modules are added to the watch.
func (r *watchRun) candidate(path string) (Candidate, bool) {
	root, rel, ok := r.locate(path)
	if !ok || rel == "" {
		return Candidate{}, false
	}
	info, err := os.Lstat(path)
	if err != nil {
		return Candidate{}, false
	}
	d := fs.FileInfoToDirEntry(info)

	if limit := r.w.scanner.maxDepth; limit > 0 && strings.Count(rel, "/")+1 > limit {
		return Candidate{}, false
	}

	pattern, match := r.w.scanner.filter.Match(rel, d)
	if !match {
		if d.IsDir() {
			r.addTree(path)
		}
		return Candidate{}, false
	}
	return Candidate{Path: path, Root: root, Rel: rel, Pattern: pattern, Dir: d.IsDir()}, true
}
