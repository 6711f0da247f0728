package cmd

import (
	"time"

	"github.com/grovetools/extcore/config"
	"github.com/grovetools/extcore/errors"
	"github.com/grovetools/extcore/pkg/events"
	"github.com/grovetools/extcore/pkg/installer"
	"github.com/grovetools/extcore/pkg/scanner"
	"github.com/grovetools/extcore/util/pathutil"
	"github.com/sirupsen/logrus"
)

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// rootsFrom returns the directories to scan: the arguments when given,
// otherwise the configured roots.
func rootsFrom(args []string, cfg *config.Config) ([]string, error) {
	roots := args
	if len(roots) == 0 {
		roots = cfg.Modules.Roots
	}
	if len(roots) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no module roots given").
			WithDetail("hint", "pass directories as arguments or set modules.roots")
	}
	expanded, err := pathutil.ExpandAll(roots)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid module root")
	}
	return expanded, nil
}

func newScanner(cfg *config.Config, logger *logrus.Entry) (*scanner.Scanner, error) {
	m := cfg.Modules
	filter, err := scanner.NewFilter(m.Match, m.Patterns...)
	if err != nil {
		return nil, err
	}
	return scanner.New(
		scanner.WithFilter(filter),
		scanner.WithQueueSize(m.QueueSize),
		scanner.WithPollInterval(ms(m.PollIntervalMS)),
		scanner.WithMaxDepth(m.MaxDepth),
		scanner.WithFollowSymlinks(m.FollowSymlinks),
		scanner.WithLogger(logger),
	), nil
}

func newHost(cfg *config.Config, logger *logrus.Entry) (installer.Host, error) {
	m := cfg.Modules
	switch m.Host {
	case "command":
		return installer.NewCommandHost(m.Command, ms(m.TimeoutMS), nil, logger)
	default:
		dir, err := pathutil.Expand(m.DeployDir)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid deploy directory").
				WithDetail("deploy_dir", m.DeployDir)
		}
		return installer.NewDirectoryHost(dir, logger)
	}
}

func newInstaller(cfg *config.Config, logger *logrus.Entry) (*installer.Installer, error) {
	s, err := newScanner(cfg, logger)
	if err != nil {
		return nil, err
	}
	host, err := newHost(cfg, logger)
	if err != nil {
		return nil, err
	}
	return installer.New(host,
		installer.WithScanner(s),
		installer.WithWorkers(cfg.Modules.Workers),
		installer.WithWatchDebounce(ms(cfg.Modules.DebounceMS)),
		installer.WithLogger(logger),
	), nil
}

func newEventService(cfg *config.Config, logger *logrus.Entry) (*events.Service, error) {
	catalog := events.NewCatalog(
		events.WithFactory(events.NewFactory(events.WithFactoryLogger(logger))),
		events.WithCatalogLogger(logger),
	)
	if err := events.RegisterConfigured(catalog, cfg.Listeners); err != nil {
		return nil, err
	}
	return events.NewService(catalog, events.WithServiceLogger(logger)), nil
}
