package config

import (
	"fmt"

	"github.com/grovetools/extcore/errors"
	"github.com/grovetools/extcore/logging"
	"github.com/mitchellh/mapstructure"
)

// Defaults applied by SetDefaults.
const (
	DefaultVersion        = "1"
	DefaultMatch          = "or"
	DefaultWorkers        = 1
	DefaultQueueSize      = 64
	DefaultPollIntervalMS = 25
	DefaultHost           = "directory"
	DefaultDeployDir      = "./deploy"
	DefaultTimeoutMS      = 120000
	DefaultDebounceMS     = 200
)

// Config is the top-level extcore.yml document.
type Config struct {
	Version   string           `yaml:"version" toml:"version" json:"version" jsonschema:"description=Configuration version (e.g. '1')"`
	Modules   ModulesConfig    `yaml:"modules,omitempty" toml:"modules,omitempty" json:"modules,omitempty" jsonschema:"description=Module discovery and installation"`
	Listeners []ListenerConfig `yaml:"listeners,omitempty" toml:"listeners,omitempty" json:"listeners,omitempty" jsonschema:"description=Event listeners registered in the catalog"`
	Logging   logging.Config   `yaml:"logging,omitempty" toml:"logging,omitempty" json:"logging,omitempty" jsonschema:"description=Logging configuration"`
}

// ModulesConfig configures the scanner and the installer.
type ModulesConfig struct {
	Roots          []string `yaml:"roots,omitempty" toml:"roots,omitempty" json:"roots,omitempty" jsonschema:"description=Directories scanned for modules"`
	Patterns       []string `yaml:"patterns,omitempty" toml:"patterns,omitempty" json:"patterns,omitempty" jsonschema:"description=Glob patterns selecting module files; a leading ! excludes"`
	Match          string   `yaml:"match,omitempty" toml:"match,omitempty" json:"match,omitempty" jsonschema:"enum=or,enum=and,description=Whether any or all patterns must match"`
	Workers        int      `yaml:"workers,omitempty" toml:"workers,omitempty" json:"workers,omitempty" jsonschema:"minimum=1,description=Concurrent installs"`
	QueueSize      int      `yaml:"queue_size,omitempty" toml:"queue_size,omitempty" json:"queue_size,omitempty" jsonschema:"minimum=1,description=Capacity of the scanner hand-off queue"`
	PollIntervalMS int      `yaml:"poll_interval_ms,omitempty" toml:"poll_interval_ms,omitempty" json:"poll_interval_ms,omitempty" jsonschema:"minimum=1,description=Consumer poll interval in milliseconds"`
	MaxDepth       int      `yaml:"max_depth,omitempty" toml:"max_depth,omitempty" json:"max_depth,omitempty" jsonschema:"minimum=0,description=Maximum walk depth below a root (0 means unlimited)"`
	FollowSymlinks bool     `yaml:"follow_symlinks,omitempty" toml:"follow_symlinks,omitempty" json:"follow_symlinks,omitempty" jsonschema:"description=Resolve roots that are symlinks"`
	Host           string   `yaml:"host,omitempty" toml:"host,omitempty" json:"host,omitempty" jsonschema:"enum=directory,enum=command,description=Where modules are installed"`
	DeployDir      string   `yaml:"deploy_dir,omitempty" toml:"deploy_dir,omitempty" json:"deploy_dir,omitempty" jsonschema:"description=Target directory of the directory host"`
	Command        []string `yaml:"command,omitempty" toml:"command,omitempty" json:"command,omitempty" jsonschema:"description=Command run by the command host; the module path is appended"`
	TimeoutMS      int      `yaml:"timeout_ms,omitempty" toml:"timeout_ms,omitempty" json:"timeout_ms,omitempty" jsonschema:"minimum=1,description=Per-install timeout of the command host in milliseconds"`
	Watch          bool     `yaml:"watch,omitempty" toml:"watch,omitempty" json:"watch,omitempty" jsonschema:"description=Keep watching roots after the initial install"`
	DebounceMS     int      `yaml:"debounce_ms,omitempty" toml:"debounce_ms,omitempty" json:"debounce_ms,omitempty" jsonschema:"minimum=1,description=Quiet period before a changed file is reinstalled"`
}

// ListenerConfig describes one event listener.
type ListenerConfig struct {
	Name       string                 `yaml:"name" toml:"name" json:"name" jsonschema:"required,description=Unique listener name"`
	Kind       string                 `yaml:"kind,omitempty" toml:"kind,omitempty" json:"kind,omitempty" jsonschema:"description=Listener implementation (log or exec)"`
	Category   string                 `yaml:"category,omitempty" toml:"category,omitempty" json:"category,omitempty" jsonschema:"enum=immediate,enum=sync,enum=async,description=When the listener runs"`
	Enabled    *bool                  `yaml:"enabled,omitempty" toml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"description=Whether the listener is active (default: true)"`
	Priority   int                    `yaml:"priority,omitempty" toml:"priority,omitempty" json:"priority,omitempty" jsonschema:"description=Ordering key within the category (ascending)"`
	Events     []string               `yaml:"events,omitempty" toml:"events,omitempty" json:"events,omitempty" jsonschema:"description=Event names the listener accepts (default: all)"`
	RetryCount int                    `yaml:"retry_count,omitempty" toml:"retry_count,omitempty" json:"retry_count,omitempty" jsonschema:"minimum=0,description=Retries of a failing async delivery"`
	Options    map[string]interface{} `yaml:"options,omitempty" toml:"options,omitempty" json:"options,omitempty" jsonschema:"description=Kind-specific options"`
}

// IsEnabled reports the effective enabled flag.
func (l ListenerConfig) IsEnabled() bool {
	return l.Enabled == nil || *l.Enabled
}

// UnmarshalOptions decodes the listener options into target, which must be
// a pointer. Keys are matched against `yaml` tags.
func (l ListenerConfig) UnmarshalOptions(target interface{}) error {
	if l.Options == nil {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(l.Options); err != nil {
		return fmt.Errorf("failed to decode options for listener '%s': %w", l.Name, err)
	}
	return nil
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = DefaultVersion
	}

	m := &c.Modules
	if m.Match == "" {
		m.Match = DefaultMatch
	}
	if m.Workers == 0 {
		m.Workers = DefaultWorkers
	}
	if m.QueueSize == 0 {
		m.QueueSize = DefaultQueueSize
	}
	if m.PollIntervalMS == 0 {
		m.PollIntervalMS = DefaultPollIntervalMS
	}
	if m.Host == "" {
		m.Host = DefaultHost
	}
	if m.Host == "directory" && m.DeployDir == "" {
		m.DeployDir = DefaultDeployDir
	}
	if m.TimeoutMS == 0 {
		m.TimeoutMS = DefaultTimeoutMS
	}
	if m.DebounceMS == 0 {
		m.DebounceMS = DefaultDebounceMS
	}

	for i := range c.Listeners {
		if c.Listeners[i].Category == "" {
			c.Listeners[i].Category = "immediate"
		}
	}
}

// Validate checks rules the schema cannot express.
func (c *Config) Validate() error {
	m := c.Modules
	switch m.Match {
	case "or", "and":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("modules.match must be 'or' or 'and', got '%s'", m.Match))
	}
	if m.Workers < 1 {
		return errors.ConfigInvalid("modules.workers must be at least 1")
	}
	if m.QueueSize < 1 {
		return errors.ConfigInvalid("modules.queue_size must be at least 1")
	}
	if m.MaxDepth < 0 {
		return errors.ConfigInvalid("modules.max_depth cannot be negative")
	}
	switch m.Host {
	case "directory":
		if m.DeployDir == "" {
			return errors.ConfigInvalid("modules.deploy_dir is required for the directory host")
		}
	case "command":
		if len(m.Command) == 0 {
			return errors.ConfigInvalid("modules.command is required for the command host")
		}
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unknown modules.host '%s'", m.Host))
	}

	seen := make(map[string]bool, len(c.Listeners))
	for i, l := range c.Listeners {
		if l.Name == "" {
			return errors.ConfigInvalid(fmt.Sprintf("listeners[%d] has no name", i))
		}
		if seen[l.Name] {
			return errors.ConfigInvalid(fmt.Sprintf("listener '%s' is defined twice", l.Name)).
				WithDetail("listener", l.Name)
		}
		seen[l.Name] = true
		if l.RetryCount < 0 {
			return errors.ConfigInvalid(fmt.Sprintf("listener '%s' has a negative retry_count", l.Name))
		}
	}
	return nil
}
