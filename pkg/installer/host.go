package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grovetools/extcore/command"
	"github.com/grovetools/extcore/logging"
	"github.com/grovetools/extcore/pkg/scanner"
	"github.com/grovetools/extcore/state"
	"github.com/grovetools/extcore/util/pathutil"
	"github.com/sirupsen/logrus"
)

// Unit is the handle a Host returns for an installed module.
type Unit interface {
	ID() string
	Path() string
}

// InstalledUnit is the Unit returned by the hosts in this package.
type InstalledUnit struct {
	id     string
	path   string
	Source string
	SHA256 string
	// Reused is set when the module was already installed unchanged.
	Reused bool
}

// NewUnit creates a unit for module id installed at path.
func NewUnit(id, path string) *InstalledUnit {
	return &InstalledUnit{id: id, path: path}
}

// ID returns the module identifier.
func (u *InstalledUnit) ID() string { return u.id }

// Path returns where the module was installed.
func (u *InstalledUnit) Path() string { return u.path }

// Host installs modules into a running system.
type Host interface {
	Install(ctx context.Context, c scanner.Candidate) (Unit, error)
}

// HostFunc adapts a function to Host.
type HostFunc func(ctx context.Context, c scanner.Candidate) (Unit, error)

// Install calls f.
func (f HostFunc) Install(ctx context.Context, c scanner.Candidate) (Unit, error) {
	return f(ctx, c)
}

// DirectoryHost copies modules into a deploy directory and records them in
// a ledger. Installing an unchanged module again is a no-op.
//
// Modules are keyed by their path relative to the scanned root. A module
// whose key is already held by another source fails to install instead of
// replacing it.
type DirectoryHost struct {
	dir    string
	ledger *state.Ledger
	logger *logrus.Entry
	now    func() time.Time

	mu     sync.Mutex
	claims map[string]string // id -> source path
}

// NewDirectoryHost creates a host deploying into dir, creating it if needed.
func NewDirectoryHost(dir string, logger *logrus.Entry) (*DirectoryHost, error) {
	abs, err := pathutil.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve deploy directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create deploy directory: %w", err)
	}
	if logger == nil {
		logger = logging.NewLogger("installer")
	}
	return &DirectoryHost{
		dir:    abs,
		ledger: state.Open(filepath.Join(abs, state.LedgerFile)),
		logger: logger.WithField("host", "directory"),
		now:    time.Now,
		claims: make(map[string]string),
	}, nil
}

// Dir returns the deploy directory.
func (h *DirectoryHost) Dir() string {
	return h.dir
}

// Ledger returns the ledger of installed modules.
func (h *DirectoryHost) Ledger() *state.Ledger {
	return h.ledger
}

// Install copies c below the deploy directory, keeping its path relative
// to the scanned root.
func (h *DirectoryHost) Install(ctx context.Context, c scanner.Candidate) (Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := c.Rel
	if id == "" {
		id = filepath.Base(c.Path)
	}
	if id == state.LedgerFile {
		return nil, fmt.Errorf("module name %s is reserved", id)
	}
	target := filepath.Join(h.dir, filepath.FromSlash(id))

	if err := h.claim(id, c.Path); err != nil {
		return nil, err
	}

	size, sum, err := digest(ctx, c.Path)
	if err != nil {
		return nil, err
	}

	rec, ok, err := h.ledger.Get(id)
	if err != nil {
		return nil, err
	}
	if ok && rec.Source != c.Path && sourceExists(rec.Source) {
		return nil, &CollisionError{ID: id, Source: c.Path, Existing: rec.Source}
	}
	if ok && rec.SHA256 == sum {
		if _, err := os.Lstat(target); err == nil {
			h.logger.WithField("module", id).Debug("Module unchanged, skipping copy")
			return &InstalledUnit{id: id, path: target, Source: c.Path, SHA256: sum, Reused: true}, nil
		}
	}

	if c.Dir {
		err = copyTree(ctx, c.Path, target)
	} else {
		err = copyFile(c.Path, target)
	}
	if err != nil {
		return nil, err
	}

	if err := h.ledger.Put(state.Record{
		ID:          id,
		Source:      c.Path,
		Target:      target,
		Size:        size,
		SHA256:      sum,
		Dir:         c.Dir,
		InstalledAt: h.now().UTC(),
	}); err != nil {
		return nil, err
	}

	h.logger.WithFields(logrus.Fields{"module": id, "size": size}).Info("Module installed")
	return &InstalledUnit{id: id, path: target, Source: c.Path, SHA256: sum}, nil
}

// CollisionError reports a module whose deploy path is already taken by a
// module from another source.
type CollisionError struct {
	ID       string
	Source   string
	Existing string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("module %s from %s collides with the module installed from %s", e.ID, e.Source, e.Existing)
}

// claim reserves id for source while that source exists.
func (h *DirectoryHost) claim(id, source string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.claims[id]; ok && existing != source && sourceExists(existing) {
		return &CollisionError{ID: id, Source: source, Existing: existing}
	}
	h.claims[id] = source
	return nil
}

func sourceExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// digest hashes a file, or every file of a directory in path order.
func digest(ctx context.Context, path string) (int64, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, "", err
	}

	h := sha256.New()
	if !info.IsDir() {
		n, err := hashFile(h, path)
		if err != nil {
			return 0, "", err
		}
		return n, hex.EncodeToString(h.Sum(nil)), nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return 0, "", err
	}
	sort.Strings(files)

	var total int64
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return 0, "", err
		}
		rel, _ := filepath.Rel(path, f)
		io.WriteString(h, filepath.ToSlash(rel)+"\x00")
		n, err := hashFile(h, f)
		if err != nil {
			return 0, "", err
		}
		total += n
	}
	return total, hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(w io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(w, f)
}

// copyFile writes src to dst through a temporary file so a reader never
// sees a partial module.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// copyTree replaces dst with a copy of the directory src.
func copyTree(ctx context.Context, src, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0755)
		case d.Type().IsRegular():
			return copyFile(p, target)
		default:
			// Links and devices inside exploded modules are not copied.
			return nil
		}
	})
}

// CommandHost installs a module by running an external command with the
// module path appended to its arguments.
type CommandHost struct {
	argv    []string
	timeout time.Duration
	builder *command.SafeBuilder
	logger  *logrus.Entry
}

// NewCommandHost creates a host running argv for every module. A zero
// timeout uses the command package default.
func NewCommandHost(argv []string, timeout time.Duration, builder *command.SafeBuilder, logger *logrus.Entry) (*CommandHost, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, fmt.Errorf("command host needs a command")
	}
	if builder == nil {
		builder = command.NewSafeBuilder()
	}
	if logger == nil {
		logger = logging.NewLogger("installer")
	}
	return &CommandHost{
		argv:    append([]string(nil), argv...),
		timeout: timeout,
		builder: builder,
		logger:  logger.WithField("host", "command"),
	}, nil
}

// Install runs the command for c. The module is identified by its relative
// path.
func (h *CommandHost) Install(ctx context.Context, c scanner.Candidate) (Unit, error) {
	if err := h.builder.Validate("modulePath", c.Path); err != nil {
		return nil, err
	}

	args := append(append([]string(nil), h.argv[1:]...), c.Path)
	cmd, err := h.builder.Build(h.argv[0], args...)
	if err != nil {
		return nil, err
	}
	if h.timeout > 0 {
		cmd.WithTimeout(h.timeout)
	}
	cmd.WithEnv("EXTCORE_MODULE="+c.Rel, "EXTCORE_MODULE_ROOT="+c.Root).WithDir(c.Root)

	output, err := cmd.Run(ctx)
	if err != nil {
		return nil, err
	}

	h.logger.WithFields(logrus.Fields{"module": c.Rel, "command": cmd.String()}).Info("Module installed")
	if out := strings.TrimSpace(string(output)); out != "" {
		h.logger.Debug(out)
	}

	id := c.Rel
	if id == "" {
		id = filepath.Base(c.Path)
	}
	return &InstalledUnit{id: id, path: c.Path, Source: c.Path}, nil
}
