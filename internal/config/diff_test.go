package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/tiktalk/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: ":8080", LogLevel: config.LogInfo},
		Providers: config.ProvidersConfig{
			LLM: config.ProviderEntry{Name: "openai", Options: map[string]any{"organization": "org"}},
		},
		Tutor: config.TutorConfig{SystemPrompt: "Be kind."},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	d := config.Diff(baseConfig(), baseConfig())
	if !d.Empty() {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()
	updated := baseConfig()
	updated.Server.LogLevel = config.LogDebug

	d := config.Diff(baseConfig(), updated)
	if !d.LogLevelChanged {
		t.Fatal("LogLevelChanged should be true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel: got %q, want debug", d.NewLogLevel)
	}
	if d.SystemPromptChanged {
		t.Error("SystemPromptChanged should be false")
	}
}

func TestDiff_SystemPrompt(t *testing.T) {
	t.Parallel()
	updated := baseConfig()
	updated.Tutor.SystemPrompt = "Be strict."

	d := config.Diff(baseConfig(), updated)
	if !d.SystemPromptChanged || d.NewSystemPrompt != "Be strict." {
		t.Errorf("system prompt diff: got %+v", d)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("RestartRequired: got %v, want none", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	updated := baseConfig()
	updated.Server.ListenAddr = ":9090"
	updated.Providers.LLM.Options = map[string]any{"organization": "other"}
	updated.Storage.PostgresDSN = "postgres://localhost/tiktalk"

	d := config.Diff(baseConfig(), updated)
	for _, want := range []string{"server.listen_addr", "providers", "storage.postgres_dsn"} {
		if !slices.Contains(d.RestartRequired, want) {
			t.Errorf("RestartRequired should contain %q, got %v", want, d.RestartRequired)
		}
	}
	if d.Empty() {
		t.Error("diff should not be empty")
	}
}
