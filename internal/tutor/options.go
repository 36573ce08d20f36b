package tutor

import (
	"github.com/MrWong99/tiktalk/internal/observe"
	"github.com/MrWong99/tiktalk/pkg/audio"
	"github.com/MrWong99/tiktalk/pkg/provider/tts"
)

// DefaultSystemPrompt seeds chats created without a prompt of their own.
const DefaultSystemPrompt = "You are a friendly language tutor. Keep the conversation going with short, natural replies in the language the learner uses, and ask one follow-up question at a time."

// Names identifies the configured backends in metrics and logs.
type Names struct {
	STT string
	LLM string
	TTS string
}

// Option is a functional option for [Service].
type Option func(*Service)

// WithMetrics records turn metrics on m. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithNames labels provider metrics. Default: all "default".
func WithNames(n Names) Option {
	return func(s *Service) { s.names = n }
}

// WithVoice sets the voice used for replies in any language without a
// dedicated voice.
func WithVoice(v tts.Voice) Option {
	return func(s *Service) { s.voice = v }
}

// WithLanguageVoice sets the voice used for replies in the language with
// the given code.
func WithLanguageVoice(code string, v tts.Voice) Option {
	return func(s *Service) { s.voices[code] = v }
}

// WithSystemPrompt replaces [DefaultSystemPrompt].
func WithSystemPrompt(prompt string) Option {
	return func(s *Service) { s.systemPrompt = prompt }
}

// WithReplyTemperature sets the sampling temperature for replies. Default:
// provider default.
func WithReplyTemperature(t float64) Option {
	return func(s *Service) { s.temperature = &t }
}

// WithMaxReplyTokens caps the length of a reply. Default: provider default.
func WithMaxReplyTokens(n int) Option {
	return func(s *Service) { s.maxTokens = n }
}

// WithVAD tunes silence trimming before transcription. Passing disabled
// true sends clips upstream untrimmed.
func WithVAD(cfg audio.VADConfig, disabled bool) Option {
	return func(s *Service) {
		s.vad = cfg
		s.disableVAD = disabled
	}
}
