package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SystemPromptChanged reports a new default prompt for chats created
	// from now on. Existing chats keep their stored system message.
	SystemPromptChanged bool
	NewSystemPrompt     string

	// RestartRequired lists settings that changed but only take effect
	// after a restart.
	RestartRequired []string
}

// Empty reports whether d carries no changes at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.SystemPromptChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Tutor.SystemPrompt != new.Tutor.SystemPrompt {
		d.SystemPromptChanged = true
		d.NewSystemPrompt = new.Tutor.SystemPrompt
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Storage.PostgresDSN != new.Storage.PostgresDSN {
		d.RestartRequired = append(d.RestartRequired, "storage.postgres_dsn")
	}

	return d
}
