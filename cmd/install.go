package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grovetools/extcore/cli"
	"github.com/grovetools/extcore/pkg/events"
	"github.com/grovetools/extcore/pkg/installer"
	"github.com/grovetools/extcore/pkg/scanner"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewInstallCmd creates the `install` command.
func NewInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install [root...]",
		Short: "Scan the roots and install every module found",
		Long: `Scans the roots, installs each module into the configured host and fires
the module events through the configured listeners. Failed modules do not stop
the pass; they are reported together at the end and make the command exit
non-zero.

Examples:
  # Install from the configured roots into the configured host
  extcore install

  # Install once, then keep installing modules dropped into ./plugins
  extcore install ./plugins --watch
`,
		RunE: runInstallE,
	}

	cmd.Flags().BoolP("watch", "w", false, "Keep installing new modules until interrupted")
	cmd.Flags().Int("workers", 0, "Concurrent installs (default: modules.workers)")

	return cmd
}

// installReport is the --json form of an install pass.
type installReport struct {
	Installed  []string `json:"installed"`
	Failures   []string `json:"failures"`
	Scanned    int      `json:"scanned"`
	DurationMS int64    `json:"duration_ms"`
}

func runInstallE(cmd *cobra.Command, args []string) error {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}
	opts := cli.GetOptions(cmd)
	logger := cli.GetLogger(cmd, "installer")

	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Modules.Workers = workers
	}
	watch, _ := cmd.Flags().GetBool("watch")
	watch = watch || cfg.Modules.Watch

	roots, err := rootsFrom(args, cfg)
	if err != nil {
		return err
	}
	in, err := newInstaller(cfg, logger)
	if err != nil {
		return err
	}
	svc, err := newEventService(cfg, cli.GetLogger(cmd, "events"))
	if err != nil {
		return err
	}

	in.OnInstalled(&eventHook{svc: svc, logger: logger})
	var progress *cli.ProgressReporter
	if !opts.JSONOutput {
		progress = cli.NewProgressReporter(cmd.OutOrStdout())
		in.OnInstalled(progress)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bundle := events.NewBundle("install")
	report, visitErr := in.Visit(events.WithBundle(ctx, bundle), roots...)

	if err := svc.Fire(events.WithBundle(ctx, bundle), events.NewEvent(events.EventScanCompleted, map[string]any{
		"roots":     roots,
		"scanned":   report.Scanned,
		"installed": len(report.Installed),
		"failed":    len(report.Failures),
	})); err != nil {
		logger.WithError(err).Warn("Listener rejected scan completion")
	}
	if err := svc.FireBundle(ctx, bundle); err != nil {
		logger.WithError(err).Warn("Deferred listeners were interrupted")
	}

	if opts.JSONOutput {
		if err := writeInstallReport(cmd, report); err != nil {
			return err
		}
	} else {
		progress.Done()
	}

	if watch {
		if visitErr != nil {
			logger.WithError(visitErr).Warn("Initial install pass had failures")
		}
		err := in.Watch(ctx, roots...)
		waitForListeners(svc, logger)
		return err
	}

	waitForListeners(svc, logger)
	return visitErr
}

func writeInstallReport(cmd *cobra.Command, report *installer.Report) error {
	out := installReport{
		Installed:  make([]string, 0, len(report.Installed)),
		Failures:   make([]string, 0, len(report.Failures)),
		Scanned:    report.Scanned,
		DurationMS: report.Duration.Milliseconds(),
	}
	for _, u := range report.Installed {
		out.Installed = append(out.Installed, u.ID())
	}
	for _, f := range report.Failures {
		out.Failures = append(out.Failures, f.Error())
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// waitForListeners gives asynchronous listeners a bounded time to finish.
func waitForListeners(svc *events.Service, logger *logrus.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := svc.WaitForAsync(ctx); err != nil {
		logger.WithError(err).Warn("Asynchronous listeners did not finish")
	}
}

// eventHook turns installer notifications into events. Outside an install
// pass every event gets a bundle of its own.
type eventHook struct {
	svc    *events.Service
	logger *logrus.Entry
}

func (h *eventHook) Installed(ctx context.Context, u installer.Unit) {
	payload := map[string]any{"id": u.ID(), "path": u.Path()}
	if iu, ok := u.(*installer.InstalledUnit); ok {
		payload["source"] = iu.Source
		payload["reused"] = iu.Reused
	}
	h.fire(ctx, events.NewEvent(events.EventModuleInstalled, payload))
}

func (h *eventHook) Failed(ctx context.Context, c scanner.Candidate, err error) {
	h.fire(ctx, events.NewEvent(events.EventModuleInstallFailed, map[string]any{
		"id":    c.Rel,
		"path":  c.Path,
		"error": err.Error(),
	}))
}

func (h *eventHook) fire(ctx context.Context, ev *events.Event) {
	if events.BundleFrom(ctx) != nil {
		if err := h.svc.Fire(ctx, ev); err != nil {
			h.logger.WithError(err).Warn("Listener rejected event")
		}
		return
	}

	b := events.NewBundle("watch")
	if err := h.svc.Fire(events.WithBundle(ctx, b), ev); err != nil {
		h.logger.WithError(err).Warn("Listener rejected event")
	}
	if err := h.svc.FireBundle(ctx, b); err != nil {
		h.logger.WithError(err).Warn("Deferred listeners were interrupted")
	}
}
