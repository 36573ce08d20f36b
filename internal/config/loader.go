package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/tiktalk/pkg/language"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":         {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt":         {"deepgram", "whisper", "whisper-native", "openai"},
	"tts":         {"elevenlabs", "coqui", "openai"},
	"translation": {"marian", "llm"},
	"textedit":    {"coedit", "llm"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. Before decoding, variables from envFile are loaded into the
// process environment without overriding variables that are already set.
// An empty envFile selects ".env" next to path, which may be absent.
func Load(path, envFile string) (*Config, error) {
	if err := loadEnv(path, envFile); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

func loadEnv(configPath, envFile string) error {
	explicit := envFile != ""
	if !explicit {
		envFile = filepath.Join(filepath.Dir(configPath), ".env")
	}
	err := godotenv.Load(envFile)
	if err == nil {
		slog.Debug("loaded environment file", "path", envFile)
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("config: load env %q: %w", envFile, err)
}

// LoadFromReader expands ${VAR} references, decodes a YAML config from r
// and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(ExpandEnv(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} with the value of the environment variable VAR
// and ${VAR:-default} with default when VAR is unset or empty. A bare $ is
// left alone so passwords and prompts survive unchanged.
func ExpandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		sub := envRef.FindSubmatch(m)
		if v := os.Getenv(string(sub[1])); v != "" {
			return []byte(v)
		}
		return sub[2]
	})
}

// ApplyDefaults fills unset fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Tutor.DefaultLanguage == "" {
		cfg.Tutor.DefaultLanguage = language.English.Code
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers: every turn needs all five services.
	for _, p := range []struct {
		kind  string
		entry ProviderEntry
	}{
		{"llm", cfg.Providers.LLM},
		{"stt", cfg.Providers.STT},
		{"tts", cfg.Providers.TTS},
		{"translation", cfg.Providers.Translation},
		{"textedit", cfg.Providers.TextEdit},
	} {
		if p.entry.Name == "" {
			errs = append(errs, fmt.Errorf("providers.%s.name is required", p.kind))
			continue
		}
		validateProviderName(p.kind, p.entry.Name)
	}

	// Storage
	if o := cfg.Storage.Objects; o != nil {
		if o.Endpoint == "" {
			errs = append(errs, errors.New("storage.objects.endpoint is required"))
		}
		if o.Bucket == "" {
			errs = append(errs, errors.New("storage.objects.bucket is required"))
		}
		if cfg.Storage.PostgresDSN == "" {
			slog.Warn("storage.objects is ignored without storage.postgres_dsn; audio stays in memory")
		}
	}
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; chats will be lost on restart")
	}

	// Tutor
	if _, err := language.Parse(cfg.Tutor.DefaultLanguage); cfg.Tutor.DefaultLanguage != "" && err != nil {
		errs = append(errs, fmt.Errorf("tutor.default_language: %w", err))
	}
	errs = append(errs, validateVoice("tutor.voice", cfg.Tutor.Voice))
	for _, code := range sortedKeys(cfg.Tutor.LanguageVoices) {
		prefix := fmt.Sprintf("tutor.language_voices[%s]", code)
		if _, err := language.Parse(code); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", prefix, err))
		}
		errs = append(errs, validateVoice(prefix, cfg.Tutor.LanguageVoices[code]))
	}
	for _, code := range sortedKeys(cfg.Tutor.TranslationModels) {
		if _, err := language.Parse(code); err != nil {
			errs = append(errs, fmt.Errorf("tutor.translation_models[%s]: %w", code, err))
		}
	}
	if t := cfg.Tutor.Reply.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("tutor.reply.temperature %.2f is out of range [0, 2]", *t))
	}
	if cfg.Tutor.Reply.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("tutor.reply.max_tokens %d must not be negative", cfg.Tutor.Reply.MaxTokens))
	}
	if cfg.Tutor.VAD.Threshold < 0 || cfg.Tutor.VAD.Threshold > 32767 {
		errs = append(errs, fmt.Errorf("tutor.vad.threshold %.0f is out of range [0, 32767]", cfg.Tutor.VAD.Threshold))
	}
	if cfg.Tutor.VAD.PaddingMS < 0 {
		errs = append(errs, fmt.Errorf("tutor.vad.padding_ms %d must not be negative", cfg.Tutor.VAD.PaddingMS))
	}

	return errors.Join(errs...)
}

func validateVoice(prefix string, v VoiceConfig) error {
	if v.SpeedFactor != 0 && (v.SpeedFactor < 0.5 || v.SpeedFactor > 2.0) {
		return fmt.Errorf("%s.speed_factor %.2f is out of range [0.5, 2.0]", prefix, v.SpeedFactor)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
