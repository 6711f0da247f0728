package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/grovetools/extcore/pkg/installer"
	"github.com/grovetools/extcore/pkg/scanner"
)

// ProgressReporter prints one status line per installed or failed module.
// It is registered as an installer hook.
type ProgressReporter struct {
	mu        sync.Mutex
	out       io.Writer
	start     time.Time
	installed int
	reused    int
	failed    int
}

// NewProgressReporter creates a new progress reporter writing to out
func NewProgressReporter(out io.Writer) *ProgressReporter {
	return &ProgressReporter{
		out:   out,
		start: time.Now(),
	}
}

// Installed implements installer.Hook.
func (p *ProgressReporter) Installed(_ context.Context, u installer.Unit) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := "installed"
	if iu, ok := u.(*installer.InstalledUnit); ok && iu.Reused {
		status = "unchanged"
		p.reused++
	} else {
		p.installed++
	}
	fmt.Fprintf(p.out, "%s %s %s\n", OKStyle.Render("[*]"), u.ID(), MutedStyle.Render(status))
}

// Failed implements installer.FailureHook.
func (p *ProgressReporter) Failed(_ context.Context, c scanner.Candidate, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failed++
	fmt.Fprintf(p.out, "%s %s %s\n", ErrorStyle.Render("[x]"), c.Rel, MutedStyle.Render(err.Error()))
}

// Done prints the totals
func (p *ProgressReporter) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.start).Round(time.Millisecond)
	fmt.Fprintf(p.out, "\n%d installed, %d unchanged, %d failed in %s\n", p.installed, p.reused, p.failed, elapsed)
}
