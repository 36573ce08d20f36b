// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (a local Coqui server,
// ElevenLabs, or OpenAI) and renders one complete assistant reply as a
// single [audio.Clip]. The clip is stored alongside the reply so that it can
// be replayed later without calling the backend again.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
	"strings"

	"github.com/MrWong99/tiktalk/pkg/audio"
)

// ErrEmptyText is returned by Synthesize when the text holds nothing to speak.
var ErrEmptyText = errors.New("tts: empty text")

// Voice selects how a reply is spoken.
type Voice struct {
	// ID is the provider-specific voice identifier. Empty selects the
	// backend's default voice.
	ID string

	// Name is a human-readable label.
	Name string

	// Provider names the backend the voice belongs to.
	Provider string

	// Language is the ISO 639-1 code of the text being spoken. Multilingual
	// backends use it to pick pronunciation; others ignore it.
	Language string

	// SpeedFactor scales speaking rate. Zero means the backend default.
	SpeedFactor float64
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text as speech. The returned clip is 16-bit PCM at
	// whatever rate the backend produces; callers convert as needed.
	Synthesize(ctx context.Context, text string, voice Voice) (audio.Clip, error)

	// ListVoices returns the voices the backend currently offers.
	ListVoices(ctx context.Context) ([]Voice, error)
}

// Normalize trims text and reports [ErrEmptyText] when nothing is left.
func Normalize(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}
