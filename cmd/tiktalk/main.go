// Command tiktalk is the main entry point for the TikTalk language tutor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/tiktalk/internal/app"
	"github.com/MrWong99/tiktalk/internal/config"
	"github.com/MrWong99/tiktalk/internal/observe"
	"github.com/MrWong99/tiktalk/pkg/hfinference"
	"github.com/MrWong99/tiktalk/pkg/provider/llm"
	"github.com/MrWong99/tiktalk/pkg/provider/llm/anyllm"
	oallm "github.com/MrWong99/tiktalk/pkg/provider/llm/openai"
	"github.com/MrWong99/tiktalk/pkg/provider/stt"
	"github.com/MrWong99/tiktalk/pkg/provider/stt/deepgram"
	oastt "github.com/MrWong99/tiktalk/pkg/provider/stt/openai"
	"github.com/MrWong99/tiktalk/pkg/provider/stt/whisper"
	"github.com/MrWong99/tiktalk/pkg/provider/textedit"
	"github.com/MrWong99/tiktalk/pkg/provider/textedit/coedit"
	"github.com/MrWong99/tiktalk/pkg/provider/textedit/llmedit"
	"github.com/MrWong99/tiktalk/pkg/provider/translate"
	"github.com/MrWong99/tiktalk/pkg/provider/translate/llmtranslate"
	"github.com/MrWong99/tiktalk/pkg/provider/translate/marian"
	"github.com/MrWong99/tiktalk/pkg/provider/tts"
	"github.com/MrWong99/tiktalk/pkg/provider/tts/coqui"
	"github.com/MrWong99/tiktalk/pkg/provider/tts/elevenlabs"
	oatts "github.com/MrWong99/tiktalk/pkg/provider/tts/openai"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	envFile := flag.String("env", "", "path to a .env file (default: .env next to the config)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "tiktalk: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "tiktalk: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("tiktalk starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	telemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers,
		app.WithLogLevel(level),
		app.WithVersion(version),
		app.WithMetricsHandler(telemetry.MetricsHandler()),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Hot reload ────────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, application.ApplyConfig)
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
		go reloadOnHangup(ctx, watcher)
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// reloadOnHangup re-reads the configuration whenever the process receives
// SIGHUP, until ctx is done.
func reloadOnHangup(ctx context.Context, w *config.Watcher) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := w.Reload(); err != nil {
				slog.Warn("reload on SIGHUP failed, keeping previous configuration", "err", err)
			}
		}
	}
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// cfg supplies tutor-level settings that some backends consume, such as the
// marian model overrides.
func registerBuiltinProviders(reg *config.Registry, cfg *config.Config) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oallm.WithOrganization(org))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining hosted and local backends go through any-llm and share
	// the same optional APIKey + BaseURL pattern.
	for _, providerName := range []string{
		"anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, whisper.WithTimeout(d))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		return whisper.NewNative(modelPath)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []oastt.Option
		if entry.Model != "" {
			opts = append(opts, oastt.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, oastt.WithBaseURL(entry.BaseURL))
		}
		return oastt.New(entry.APIKey, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		if voice := optString(entry.Options, "default_voice"); voice != "" {
			opts = append(opts, elevenlabs.WithDefaultVoice(voice))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithEndpoint(entry.BaseURL))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := optString(entry.Options, "api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []oatts.Option
		if entry.Model != "" {
			opts = append(opts, oatts.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, oatts.WithBaseURL(entry.BaseURL))
		}
		return oatts.New(entry.APIKey, opts...)
	})

	// ── Translation ───────────────────────────────────────────────────────────

	reg.RegisterTranslate("marian", func(entry config.ProviderEntry, _ llm.Provider) (translate.Provider, error) {
		overrides := make(map[string]marian.Models, len(cfg.Tutor.TranslationModels))
		for code, m := range cfg.Tutor.TranslationModels {
			overrides[code] = marian.Models{
				ToEnglish:   m.ToEnglish,
				FromEnglish: m.FromEnglish,
				TargetToken: m.TargetToken,
			}
		}
		return marian.New(hfClient(entry), marian.WithModels(overrides)), nil
	})

	reg.RegisterTranslate("llm", func(entry config.ProviderEntry, chat llm.Provider) (translate.Provider, error) {
		var opts []llmtranslate.Option
		if n := optInt(entry.Options, "max_tokens"); n > 0 {
			opts = append(opts, llmtranslate.WithMaxTokens(n))
		}
		return llmtranslate.New(chat, opts...), nil
	})

	// ── Text editing ──────────────────────────────────────────────────────────

	reg.RegisterTextEdit("coedit", func(entry config.ProviderEntry, _ llm.Provider) (textedit.Provider, error) {
		var opts []coedit.Option
		if entry.Model != "" {
			opts = append(opts, coedit.WithModel(entry.Model))
		}
		if n := optInt(entry.Options, "max_new_tokens"); n > 0 {
			opts = append(opts, coedit.WithMaxNewTokens(n))
		}
		return coedit.New(hfClient(entry), opts...), nil
	})

	reg.RegisterTextEdit("llm", func(entry config.ProviderEntry, chat llm.Provider) (textedit.Provider, error) {
		var opts []llmedit.Option
		if t, ok := optFloat(entry.Options, "temperature"); ok {
			opts = append(opts, llmedit.WithTemperature(t))
		}
		return llmedit.New(chat, opts...), nil
	})

	for kind, names := range config.ValidProviderNames {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// hfClient builds a hosted-inference client from a provider entry.
func hfClient(entry config.ProviderEntry) *hfinference.Client {
	var opts []hfinference.Option
	if entry.BaseURL != "" {
		opts = append(opts, hfinference.WithBaseURL(entry.BaseURL))
	}
	if d := optDuration(entry.Options, "timeout"); d > 0 {
		opts = append(opts, hfinference.WithTimeout(d))
	}
	return hfinference.New(entry.APIKey, opts...)
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
// The LLM is built first because the llm-backed translation and text-edit
// providers share it.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}
	var err error

	if ps.LLM, err = reg.CreateLLM(cfg.Providers.LLM); err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name)

	if ps.STT, err = reg.CreateSTT(cfg.Providers.STT); err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	if ps.TTS, err = reg.CreateTTS(cfg.Providers.TTS); err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", cfg.Providers.TTS.Name, err)
	}
	slog.Info("provider created", "kind", "tts", "name", cfg.Providers.TTS.Name)

	if ps.Translation, err = reg.CreateTranslate(cfg.Providers.Translation, ps.LLM); err != nil {
		return nil, fmt.Errorf("create translation provider %q: %w", cfg.Providers.Translation.Name, err)
	}
	slog.Info("provider created", "kind", "translation", "name", cfg.Providers.Translation.Name)

	if ps.TextEdit, err = reg.CreateTextEdit(cfg.Providers.TextEdit, ps.LLM); err != nil {
		return nil, fmt.Errorf("create textedit provider %q: %w", cfg.Providers.TextEdit.Name, err)
	}
	slog.Info("provider created", "kind", "textedit", "name", cfg.Providers.TextEdit.Name)

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         TikTalk: startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("LLM", providerLabel(cfg.Providers.LLM))
	printRow("STT", providerLabel(cfg.Providers.STT))
	printRow("TTS", providerLabel(cfg.Providers.TTS))
	printRow("Translation", providerLabel(cfg.Providers.Translation))
	printRow("Text edit", providerLabel(cfg.Providers.TextEdit))
	store := "memory"
	if cfg.Storage.PostgresDSN != "" {
		store = "postgres"
	}
	if cfg.Storage.Objects != nil {
		store += " + minio"
	}
	printRow("Storage", store)
	printRow("Language", cfg.Tutor.DefaultLanguage)
	mcp := "enabled"
	if cfg.Server.DisableMCP {
		mcp = "(disabled)"
	}
	printRow("MCP", mcp)
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func providerLabel(entry config.ProviderEntry) string {
	if entry.Model == "" {
		return entry.Name
	}
	return entry.Name + " / " + entry.Model
}

func printRow(kind, value string) {
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:18]) + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optInt accepts YAML integers and whole floats.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func optFloat(opts map[string]any, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// optDuration parses values such as "30s". Invalid values are ignored.
func optDuration(opts map[string]any, key string) time.Duration {
	d, err := time.ParseDuration(optString(opts, key))
	if err != nil {
		return 0
	}
	return d
}
