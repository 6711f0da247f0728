package config

import (
	"github.com/grovetools/extcore/logging"
)

// mergeConfigs merges override configuration into base
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}
	result.Modules = mergeModules(base.Modules, override.Modules)
	result.Listeners = mergeListeners(base.Listeners, override.Listeners)
	result.Logging = mergeLogging(base.Logging, override.Logging)

	return &result
}

func mergeModules(base, override ModulesConfig) ModulesConfig {
	result := base

	if len(override.Roots) > 0 {
		result.Roots = override.Roots
	}
	if len(override.Patterns) > 0 {
		result.Patterns = override.Patterns
	}
	if override.Match != "" {
		result.Match = override.Match
	}
	if override.Workers != 0 {
		result.Workers = override.Workers
	}
	if override.QueueSize != 0 {
		result.QueueSize = override.QueueSize
	}
	if override.PollIntervalMS != 0 {
		result.PollIntervalMS = override.PollIntervalMS
	}
	if override.MaxDepth != 0 {
		result.MaxDepth = override.MaxDepth
	}
	if override.FollowSymlinks {
		result.FollowSymlinks = override.FollowSymlinks
	}
	if override.Host != "" {
		result.Host = override.Host
	}
	if override.DeployDir != "" {
		result.DeployDir = override.DeployDir
	}
	if len(override.Command) > 0 {
		result.Command = override.Command
	}
	if override.TimeoutMS != 0 {
		result.TimeoutMS = override.TimeoutMS
	}
	if override.Watch {
		result.Watch = override.Watch
	}
	if override.DebounceMS != 0 {
		result.DebounceMS = override.DebounceMS
	}

	return result
}

// mergeListeners merges listeners by name. A listener in override replaces
// the set fields of the same-named base listener; new names are appended.
func mergeListeners(base, override []ListenerConfig) []ListenerConfig {
	if len(override) == 0 {
		return base
	}

	result := make([]ListenerConfig, len(base), len(base)+len(override))
	copy(result, base)
	index := make(map[string]int, len(result))
	for i, l := range result {
		index[l.Name] = i
	}

	for _, o := range override {
		i, ok := index[o.Name]
		if !ok {
			index[o.Name] = len(result)
			result = append(result, o)
			continue
		}
		result[i] = mergeListener(result[i], o)
	}
	return result
}

func mergeListener(base, override ListenerConfig) ListenerConfig {
	result := base

	if override.Kind != "" {
		result.Kind = override.Kind
	}
	if override.Category != "" {
		result.Category = override.Category
	}
	if override.Enabled != nil {
		result.Enabled = override.Enabled
	}
	if override.Priority != 0 {
		result.Priority = override.Priority
	}
	if len(override.Events) > 0 {
		result.Events = override.Events
	}
	if override.RetryCount != 0 {
		result.RetryCount = override.RetryCount
	}
	if override.Options != nil {
		merged := make(map[string]interface{}, len(base.Options)+len(override.Options))
		for k, v := range base.Options {
			merged[k] = v
		}
		for k, v := range override.Options {
			merged[k] = v
		}
		result.Options = merged
	}

	return result
}

func mergeLogging(base, override logging.Config) logging.Config {
	result := base

	if override.Level != "" {
		result.Level = override.Level
	}
	if override.ReportCaller {
		result.ReportCaller = override.ReportCaller
	}
	if override.File.Enabled {
		result.File.Enabled = override.File.Enabled
	}
	if override.File.Path != "" {
		result.File.Path = override.File.Path
	}
	if override.Format.Preset != "" {
		result.Format.Preset = override.Format.Preset
	}
	if override.Format.DisableTimestamp {
		result.Format.DisableTimestamp = override.Format.DisableTimestamp
	}
	if override.Format.DisableComponent {
		result.Format.DisableComponent = override.Format.DisableComponent
	}
	if override.Format.StructuredToStderr != "" {
		result.Format.StructuredToStderr = override.Format.StructuredToStderr
	}

	return result
}
