// Package tutor runs learner turns: it transcribes what the learner said,
// corrects it, stores it, asks the reply model for an answer over the
// corrected history, speaks the answer and stores that too.
//
// A [Service] is constructed once at start-up from explicitly built
// provider objects. Turns are serialised; at most one runs at a time and a
// caller waiting for its turn can give up through its context. A failing
// turn is not rolled back: messages stored before the failure stay.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/tiktalk/internal/chatstore"
	"github.com/MrWong99/tiktalk/internal/correction"
	"github.com/MrWong99/tiktalk/internal/observe"
	"github.com/MrWong99/tiktalk/pkg/audio"
	"github.com/MrWong99/tiktalk/pkg/language"
	"github.com/MrWong99/tiktalk/pkg/provider/llm"
	"github.com/MrWong99/tiktalk/pkg/provider/stt"
	"github.com/MrWong99/tiktalk/pkg/provider/translate"
	"github.com/MrWong99/tiktalk/pkg/provider/tts"
)

var (
	// ErrUpstream marks a failed call into a speech, translation, editing
	// or reply model.
	ErrUpstream = correction.ErrUpstream

	// ErrPersistence marks a failed store operation.
	ErrPersistence = errors.New("tutor: persistence failure")

	// ErrNoSpeech is returned when a recording holds no recognisable speech.
	ErrNoSpeech = errors.New("tutor: no speech detected")
)

// Providers are the backends a [Service] drives. All fields are required.
type Providers struct {
	STT       stt.Provider
	Corrector *correction.Corrector
	Pivot     *translate.Pivot
	LLM       llm.Provider
	TTS       tts.Provider
	Store     chatstore.Store
}

func (p Providers) validate() error {
	var errs []error
	if p.STT == nil {
		errs = append(errs, errors.New("tutor: STT provider is required"))
	}
	if p.Corrector == nil {
		errs = append(errs, errors.New("tutor: corrector is required"))
	}
	if p.Pivot == nil {
		errs = append(errs, errors.New("tutor: translator is required"))
	}
	if p.LLM == nil {
		errs = append(errs, errors.New("tutor: LLM provider is required"))
	}
	if p.TTS == nil {
		errs = append(errs, errors.New("tutor: TTS provider is required"))
	}
	if p.Store == nil {
		errs = append(errs, errors.New("tutor: store is required"))
	}
	return errors.Join(errs...)
}

// Turn is the outcome of one learner turn.
type Turn struct {
	// Transcript is what the speech model heard. Empty for typed turns.
	Transcript string

	// User is the stored learner message; its content is a
	// [chatstore.UserContent].
	User chatstore.Message

	// Assistant is the stored reply message.
	Assistant chatstore.Message

	// Record is the correction of the learner's text.
	Record correction.Record

	// Reply is the reply text.
	Reply string

	// ReplyAudio is the spoken reply as a WAV file.
	ReplyAudio []byte
}

// Service orchestrates turns. It is safe for concurrent use.
type Service struct {
	p Providers

	turns *semaphore.Weighted

	metrics     *observe.Metrics
	names       Names
	voice       tts.Voice
	voices      map[string]tts.Voice
	temperature *float64
	maxTokens   int
	vad         audio.VADConfig
	disableVAD  bool

	mu           sync.RWMutex
	systemPrompt string
}

// New creates a Service over p.
func New(p Providers, opts ...Option) (*Service, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	s := &Service{
		p:            p,
		turns:        semaphore.NewWeighted(1),
		names:        Names{STT: "default", LLM: "default", TTS: "default"},
		voices:       make(map[string]tts.Voice),
		systemPrompt: DefaultSystemPrompt,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s, nil
}

// CorrectionObserver reports correction stage timings to m. Pass it to
// [correction.WithStageObserver].
func CorrectionObserver(m *observe.Metrics) correction.StageObserver {
	return func(ctx context.Context, stage string, d time.Duration, err error) {
		m.CorrectionStageDuration.Record(ctx, d.Seconds(),
			metric.WithAttributes(
				attribute.String("stage", stage),
				attribute.String("status", observe.Status(err)),
			),
		)
		observe.Logger(ctx).Debug("correction stage", "stage", stage, "duration", d, "err", err)
	}
}

// SystemPrompt returns the prompt seeded into chats created without one.
func (s *Service) SystemPrompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.systemPrompt
}

// SetSystemPrompt replaces the default prompt for chats created from now
// on. Existing chats keep the system message they were created with. A
// blank prompt restores [DefaultSystemPrompt].
func (s *Service) SetSystemPrompt(prompt string) {
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultSystemPrompt
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemPrompt = prompt
}

// CreateChat creates a chat and stores systemPrompt as its first message.
// A blank prompt selects the service default. If storing the prompt fails
// the chat is kept.
func (s *Service) CreateChat(ctx context.Context, name, systemPrompt string) (chatstore.Chat, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = s.SystemPrompt()
	}
	chat, err := s.p.Store.CreateChat(ctx, name)
	if err != nil {
		return chatstore.Chat{}, storeErr("create chat", err)
	}
	if _, err := s.p.Store.AppendMessage(ctx, chat.ID, chatstore.SystemContent{Content: systemPrompt}, nil); err != nil {
		return chat, storeErr("seed chat", err)
	}
	observe.Logger(ctx).Info("chat created", "chat_id", chat.ID, "name", chat.Name)
	return chat, nil
}

// ListChats returns all chats, oldest first.
func (s *Service) ListChats(ctx context.Context) ([]chatstore.Chat, error) {
	chats, err := s.p.Store.ListChats(ctx)
	if err != nil {
		return nil, storeErr("list chats", err)
	}
	return chats, nil
}

// GetChat returns one chat.
func (s *Service) GetChat(ctx context.Context, chatID string) (chatstore.Chat, error) {
	chat, err := s.p.Store.GetChat(ctx, chatID)
	if err != nil {
		return chatstore.Chat{}, storeErr("get chat", err)
	}
	return chat, nil
}

// DeleteChat deletes a chat and all of its messages.
func (s *Service) DeleteChat(ctx context.Context, chatID string) error {
	if err := s.p.Store.DeleteChat(ctx, chatID); err != nil {
		return storeErr("delete chat", err)
	}
	observe.Logger(ctx).Info("chat deleted", "chat_id", chatID)
	return nil
}

// Messages returns the stored messages of a chat, oldest first.
func (s *Service) Messages(ctx context.Context, chatID string) ([]chatstore.Message, error) {
	msgs, err := s.p.Store.ListMessages(ctx, chatID)
	if err != nil {
		return nil, storeErr("list messages", err)
	}
	return msgs, nil
}

// DeleteMessages clears a chat's history, including its system prompt.
func (s *Service) DeleteMessages(ctx context.Context, chatID string) error {
	if err := s.p.Store.DeleteMessages(ctx, chatID); err != nil {
		return storeErr("delete messages", err)
	}
	return nil
}

// MessageAudio returns the WAV recording stored with a message.
func (s *Service) MessageAudio(ctx context.Context, chatID string, seq int64) ([]byte, error) {
	data, err := s.p.Store.MessageAudio(ctx, chatID, seq)
	if err != nil {
		return nil, storeErr("message audio", err)
	}
	return data, nil
}

// Languages returns the supported learner languages.
func (s *Service) Languages() []language.Language { return language.All() }

// Voices lists the voices offered by the speech backend.
func (s *Service) Voices(ctx context.Context) ([]tts.Voice, error) {
	v, err := s.p.TTS.ListVoices(ctx)
	if err != nil {
		return nil, upstreamErr(ctx, "list voices", err)
	}
	return v, nil
}

// Correct runs the correction pipeline without storing anything.
func (s *Service) Correct(ctx context.Context, text, lang string) (correction.Record, error) {
	rec, err := s.p.Corrector.Correct(ctx, text, lang)
	if err != nil {
		return correction.Record{}, fmt.Errorf("tutor: %w", err)
	}
	s.metrics.RecordScore(ctx, rec.Language, rec.Score)
	return rec, nil
}

// Translate translates text between two supported languages, pivoting
// through English.
func (s *Service) Translate(ctx context.Context, text, from, to string) (string, error) {
	src, err := language.Parse(from)
	if err != nil {
		return "", fmt.Errorf("tutor: translate: %w", err)
	}
	dst, err := language.Parse(to)
	if err != nil {
		return "", fmt.Errorf("tutor: translate: %w", err)
	}
	out, err := s.p.Pivot.Translate(ctx, text, src, dst)
	if err != nil {
		return "", upstreamErr(ctx, "translate", err)
	}
	return out, nil
}

// Answer runs a spoken turn: clip is the learner's recording in lang.
func (s *Service) Answer(ctx context.Context, chatID string, clip audio.Clip, lang string) (Turn, error) {
	l, err := language.Parse(lang)
	if err != nil {
		return Turn{}, fmt.Errorf("tutor: %w", err)
	}
	return s.run(ctx, chatID, l, func(ctx context.Context, t *Turn) (string, []byte, error) {
		start := time.Now()
		ctx, span := observe.StartSpan(ctx, "tutor.transcribe")
		tr, err := s.p.STT.Transcribe(ctx, clip, stt.Config{
			Language:   l.Code,
			DisableVAD: s.disableVAD,
			VAD:        s.vad,
		})
		observe.EndSpan(span, err)
		s.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
		s.metrics.RecordProviderRequest(ctx, s.names.STT, "stt", err)
		if err != nil {
			return "", nil, upstreamErr(ctx, "transcribe", err)
		}
		t.Transcript = tr.Text
		if strings.TrimSpace(tr.Text) == "" {
			return "", nil, ErrNoSpeech
		}
		return tr.Text, audio.EncodeWAV(clip), nil
	})
}

// AnswerText runs a typed turn. It behaves like [Service.Answer] from the
// correction step on and stores no learner audio.
func (s *Service) AnswerText(ctx context.Context, chatID, text, lang string) (Turn, error) {
	l, err := language.Parse(lang)
	if err != nil {
		return Turn{}, fmt.Errorf("tutor: %w", err)
	}
	return s.run(ctx, chatID, l, func(context.Context, *Turn) (string, []byte, error) {
		return text, nil, nil
	})
}

// inputFunc produces the learner's text and the audio to store with it.
type inputFunc func(ctx context.Context, t *Turn) (text string, wav []byte, err error)

func (s *Service) run(ctx context.Context, chatID string, l language.Language, input inputFunc) (turn Turn, err error) {
	if err := s.turns.Acquire(ctx, 1); err != nil {
		return Turn{}, fmt.Errorf("tutor: wait for turn: %w", err)
	}
	defer s.turns.Release(1)

	start := time.Now()
	ctx = observe.WithChat(ctx, chatID)
	ctx, span := observe.StartSpan(ctx, "tutor.turn", trace.WithAttributes(
		attribute.String("language", l.Code),
	))
	s.metrics.ActiveTurns.Add(ctx, 1)
	defer func() {
		s.metrics.ActiveTurns.Add(ctx, -1)
		s.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
		s.metrics.RecordTurn(ctx, l.Code, observe.Status(err))
		observe.EndSpan(span, err)
		log := observe.Logger(ctx).With("language", l.Code, "duration", time.Since(start))
		if err != nil {
			log.Warn("turn failed", "err", err)
			return
		}
		log.Info("turn completed", "score", turn.Record.Score)
	}()

	if _, err := s.p.Store.GetChat(ctx, chatID); err != nil {
		return Turn{}, storeErr("get chat", err)
	}

	text, wav, err := input(ctx, &turn)
	if err != nil {
		return turn, err
	}

	if err := s.correctAndStore(ctx, chatID, text, l, wav, &turn); err != nil {
		return turn, err
	}
	if err := s.reply(ctx, chatID, l, &turn); err != nil {
		return turn, err
	}
	return turn, nil
}

func (s *Service) correctAndStore(ctx context.Context, chatID, text string, l language.Language, wav []byte, t *Turn) error {
	ctx, span := observe.StartSpan(ctx, "tutor.correct")
	rec, err := s.p.Corrector.Correct(ctx, text, l.Code)
	observe.EndSpan(span, err)
	if err != nil {
		return fmt.Errorf("tutor: %w", err)
	}
	t.Record = rec
	s.metrics.RecordScore(ctx, rec.Language, rec.Score)

	t.User, err = s.p.Store.AppendMessage(ctx, chatID, chatstore.UserContent{Record: rec}, wav)
	if err != nil {
		return storeErr("store user message", err)
	}
	return nil
}

func (s *Service) reply(ctx context.Context, chatID string, l language.Language, t *Turn) error {
	history, err := s.p.Store.ListMessages(ctx, chatID)
	if err != nil {
		return storeErr("load history", err)
	}
	msgs := Project(history)
	s.checkContext(ctx, msgs)

	start := time.Now()
	gctx, span := observe.StartSpan(ctx, "tutor.generate")
	resp, err := s.p.LLM.Complete(gctx, llm.CompletionRequest{
		Messages:    msgs,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err == nil && strings.TrimSpace(resp.Content) == "" {
		err = errors.New("empty reply")
	}
	observe.EndSpan(span, err)
	s.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	s.metrics.RecordProviderRequest(ctx, s.names.LLM, "llm", err)
	if err != nil {
		return upstreamErr(ctx, "generate reply", err)
	}
	t.Reply = strings.TrimSpace(resp.Content)

	start = time.Now()
	sctx, span := observe.StartSpan(ctx, "tutor.synthesize")
	clip, err := s.p.TTS.Synthesize(sctx, t.Reply, s.voiceFor(l))
	observe.EndSpan(span, err)
	s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	s.metrics.RecordProviderRequest(ctx, s.names.TTS, "tts", err)
	if err != nil {
		return upstreamErr(ctx, "synthesize", err)
	}
	t.ReplyAudio = audio.EncodeWAV(clip)

	t.Assistant, err = s.p.Store.AppendMessage(ctx, chatID, chatstore.AssistantContent{Content: t.Reply}, t.ReplyAudio)
	if err != nil {
		return storeErr("store reply", err)
	}
	return nil
}

// Project converts stored history into reply-model messages. System and
// assistant messages pass through; a learner message is replaced by its
// rewritten suggestion so the model sees corrected input.
func Project(history []chatstore.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		switch c := m.Content.(type) {
		case chatstore.SystemContent:
			out = append(out, llm.Message{Role: llm.RoleSystem, Content: c.Content})
		case chatstore.UserContent:
			out = append(out, llm.Message{Role: llm.RoleUser, Content: c.Rewritten})
		case chatstore.AssistantContent:
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: c.Content})
		}
	}
	return out
}

// checkContext warns when the history no longer fits the reply model. The
// history is sent unchanged.
func (s *Service) checkContext(ctx context.Context, msgs []llm.Message) {
	window := s.p.LLM.Capabilities().ContextWindow
	if window <= 0 {
		return
	}
	n, err := s.p.LLM.CountTokens(msgs)
	if err != nil {
		return
	}
	if n > window {
		observe.Logger(ctx).Warn("chat history exceeds model context window",
			slog.Int("tokens", n), slog.Int("context_window", window))
	}
}

func (s *Service) voiceFor(l language.Language) tts.Voice {
	v, ok := s.voices[l.Code]
	if !ok {
		v = s.voice
	}
	if v.Language == "" {
		v.Language = l.Code
	}
	return v
}

// storeErr wraps a store failure. Lookups and name conflicts keep their
// store sentinel; everything else is a persistence failure.
func storeErr(action string, err error) error {
	if errors.Is(err, chatstore.ErrNotFound) || errors.Is(err, chatstore.ErrChatExists) || errors.Is(err, chatstore.ErrInvalidName) {
		return fmt.Errorf("tutor: %s: %w", action, err)
	}
	return fmt.Errorf("tutor: %s: %w: %w", action, ErrPersistence, err)
}

// upstreamErr wraps a model failure. Unsupported languages and the caller's
// own cancellation are passed through untagged.
func upstreamErr(ctx context.Context, action string, err error) error {
	if errors.Is(err, ErrUpstream) || errors.Is(err, language.ErrUnsupported) || ctx.Err() != nil {
		return fmt.Errorf("tutor: %s: %w", action, err)
	}
	return fmt.Errorf("tutor: %s: %w: %w", action, ErrUpstream, err)
}
