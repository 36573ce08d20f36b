// Package app wires all TikTalk subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject test doubles via functional options (WithChatStore,
// WithObjectStore, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/tiktalk/internal/chatstore"
	"github.com/MrWong99/tiktalk/internal/config"
	"github.com/MrWong99/tiktalk/internal/correction"
	"github.com/MrWong99/tiktalk/internal/health"
	"github.com/MrWong99/tiktalk/internal/observe"
	"github.com/MrWong99/tiktalk/internal/tutor"
	"github.com/MrWong99/tiktalk/internal/web"
	"github.com/MrWong99/tiktalk/internal/web/mcptools"
	"github.com/MrWong99/tiktalk/pkg/audio"
	"github.com/MrWong99/tiktalk/pkg/language"
	"github.com/MrWong99/tiktalk/pkg/objstore"
	"github.com/MrWong99/tiktalk/pkg/provider/llm"
	"github.com/MrWong99/tiktalk/pkg/provider/stt"
	"github.com/MrWong99/tiktalk/pkg/provider/textedit"
	"github.com/MrWong99/tiktalk/pkg/provider/translate"
	"github.com/MrWong99/tiktalk/pkg/provider/tts"
)

// Providers holds one interface value per provider slot. Populated by
// main.go via the config registry. All fields are required.
type Providers struct {
	LLM         llm.Provider
	STT         stt.Provider
	TTS         tts.Provider
	Translation translate.Provider
	TextEdit    textedit.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	version   string

	// Subsystems, initialised in New and torn down in Shutdown.
	store    chatstore.Store
	objects  objstore.Store
	metrics  *observe.Metrics
	logLevel *slog.LevelVar
	tutor    *tutor.Service
	handler  http.Handler
	promH    http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithChatStore injects a chat store instead of creating one from config.
func WithChatStore(s chatstore.Store) Option {
	return func(a *App) { a.store = s }
}

// WithObjectStore injects the audio object store instead of connecting to
// the configured bucket.
func WithObjectStore(o objstore.Store) Option {
	return func(a *App) { a.objects = o }
}

// WithMetrics records metrics on m instead of the global meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h at /metrics instead of the Prometheus default
// registry handler.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.promH = h }
}

// WithLogLevel lets configuration reloads change the level of the logger
// built in main.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		version:   "dev",
	}
	for _, o := range opts {
		o(a)
	}
	if err := providers.validate(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.promH == nil {
		a.promH = promhttp.Handler()
	}

	// ── 1. Storage ───────────────────────────────────────────────────────
	if err := a.initStorage(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init storage: %w", err)
	}

	// ── 2. Tutor ─────────────────────────────────────────────────────────
	if err := a.initTutor(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init tutor: %w", err)
	}

	// ── 3. HTTP surface ──────────────────────────────────────────────────
	a.initHTTP()

	return a, nil
}

func (p *Providers) validate() error {
	if p == nil {
		return errors.New("providers must not be nil")
	}
	var errs []error
	for name, missing := range map[string]bool{
		"llm":         p.LLM == nil,
		"stt":         p.STT == nil,
		"tts":         p.TTS == nil,
		"translation": p.Translation == nil,
		"textedit":    p.TextEdit == nil,
	} {
		if missing {
			errs = append(errs, fmt.Errorf("%s provider is required", name))
		}
	}
	return errors.Join(errs...)
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStorage connects the chat store and, when configured, the audio
// bucket. Without a DSN chats live in memory.
func (a *App) initStorage(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	dsn := a.cfg.Storage.PostgresDSN
	if dsn == "" {
		slog.Warn("no postgres_dsn configured; chats are kept in memory")
		a.store = chatstore.NewMemStore()
		return nil
	}

	if a.objects == nil && a.cfg.Storage.Objects != nil {
		o := a.cfg.Storage.Objects
		m, err := objstore.NewMinio(ctx, objstore.MinioConfig{
			Endpoint:  o.Endpoint,
			AccessKey: o.AccessKey,
			SecretKey: o.SecretKey,
			Bucket:    o.Bucket,
			UseSSL:    o.UseSSL,
		})
		if err != nil {
			return err
		}
		a.objects = m
		slog.Info("audio offloaded to object storage", "endpoint", o.Endpoint, "bucket", o.Bucket)
	}

	var opts []chatstore.PostgresOption
	if a.objects != nil {
		opts = append(opts, chatstore.WithObjectStore(a.objects))
	}
	store, err := chatstore.OpenPostgres(ctx, dsn, opts...)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)
	slog.Info("chat store connected")
	return nil
}

// initTutor builds the correction pipeline and the conversation service.
func (a *App) initTutor() error {
	tc := a.cfg.Tutor
	pivot := translate.NewPivot(a.providers.Translation)
	corrector := correction.New(pivot, a.providers.TextEdit,
		correction.WithStageObserver(tutor.CorrectionObserver(a.metrics)))

	opts := []tutor.Option{
		tutor.WithMetrics(a.metrics),
		tutor.WithNames(tutor.Names{
			STT: a.cfg.Providers.STT.Name,
			LLM: a.cfg.Providers.LLM.Name,
			TTS: a.cfg.Providers.TTS.Name,
		}),
		tutor.WithVoice(configVoice(tc.Voice, a.cfg.Providers.TTS.Name)),
		tutor.WithVAD(audio.VADConfig{
			Threshold: tc.VAD.Threshold,
			Padding:   time.Duration(tc.VAD.PaddingMS) * time.Millisecond,
		}, tc.VAD.Disabled),
	}
	if tc.SystemPrompt != "" {
		opts = append(opts, tutor.WithSystemPrompt(tc.SystemPrompt))
	}
	for code, v := range tc.LanguageVoices {
		l, err := language.Parse(code)
		if err != nil {
			return err
		}
		opts = append(opts, tutor.WithLanguageVoice(l.Code, configVoice(v, a.cfg.Providers.TTS.Name)))
	}
	if tc.Reply.Temperature != nil {
		opts = append(opts, tutor.WithReplyTemperature(*tc.Reply.Temperature))
	}
	if tc.Reply.MaxTokens > 0 {
		opts = append(opts, tutor.WithMaxReplyTokens(tc.Reply.MaxTokens))
	}

	svc, err := tutor.New(tutor.Providers{
		STT:       a.providers.STT,
		Corrector: corrector,
		Pivot:     pivot,
		LLM:       a.providers.LLM,
		TTS:       a.providers.TTS,
		Store:     a.store,
	}, opts...)
	if err != nil {
		return err
	}
	a.tutor = svc
	return nil
}

// initHTTP assembles the router: UI and API, MCP tools, probes and metrics.
func (a *App) initHTTP() {
	checks := []health.Checker{health.Ping("chatstore", a.store)}
	if p, ok := a.objects.(health.Pinger); ok {
		checks = append(checks, health.Ping("objects", p))
	}
	probes := health.New(checks...)

	opts := []web.Option{
		web.WithMetrics(a.metrics),
		web.WithRoutes(probes.Register),
		web.WithRoutes(func(r chi.Router) { r.Handle("/metrics", a.promH) }),
	}
	if l, err := language.Parse(a.cfg.Tutor.DefaultLanguage); err == nil {
		opts = append(opts, web.WithDefaultLanguage(l))
	}
	if !a.cfg.Server.DisableMCP {
		srv := mcptools.NewServer(a.version, mcptools.Tools(a.tutor), a.metrics)
		opts = append(opts, web.WithMCP(mcptools.Handler(srv)))
	}
	a.handler = web.New(a.tutor, opts...).Handler()
}

// Tutor returns the conversation service.
func (a *App) Tutor() *tutor.Service { return a.tutor }

// Handler returns the HTTP handler serving every route.
func (a *App) Handler() http.Handler { return a.handler }

// Addr returns the address the server is listening on, or nil before Run
// has bound it.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run listens on the configured address and serves HTTP until ctx is
// cancelled, then returns ctx.Err(). A server failure is returned
// immediately.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %q: %w", a.cfg.Server.ListenAddr, err)
	}
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.mu.Lock()
	a.server = srv
	a.listener = ln
	a.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		if tls := a.cfg.Server.TLS; tls != nil {
			errCh <- srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
			return
		}
		errCh <- srv.Serve(ln)
	}()

	slog.Info("app running", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil, "mcp", !a.cfg.Server.DisableMCP)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return ctx.Err()
		}
		return fmt.Errorf("app: serve: %w", err)
	}
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable differences between old and new.
// Settings that need a restart are logged and otherwise ignored.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.SystemPromptChanged {
		a.tutor.SetSystemPrompt(d.NewSystemPrompt)
		slog.Info("default system prompt changed")
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("configuration changes require a restart", "settings", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the HTTP server, waiting for in-flight requests, then tears
// down all subsystems in order. It respects the context deadline: if ctx
// expires before all closers finish, remaining closers are skipped and the
// context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		a.mu.Lock()
		srv := a.server
		a.mu.Unlock()
		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil {
				slog.Warn("http shutdown error", "err", err)
				shutdownErr = err
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) closeAll() {
	for _, c := range a.closers {
		_ = c()
	}
	a.closers = nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// configVoice converts a config.VoiceConfig to tts.Voice.
func configVoice(vc config.VoiceConfig, provider string) tts.Voice {
	return tts.Voice{
		ID:          vc.VoiceID,
		Provider:    provider,
		SpeedFactor: vc.SpeedFactor,
	}
}

// slogLevel converts a config.LogLevel to slog.Level.
func slogLevel(l config.LogLevel) slog.Level {
	switch l {
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
