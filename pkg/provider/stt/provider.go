// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (a local whisper.cpp server,
// in-process whisper.cpp, Deepgram, or OpenAI) and turns one complete
// recorded clip into text. TikTalk records a learner's utterance, stops,
// and sends it whole; there is no streaming session.
//
// Voice-activity filtering is on by default: [Prepare] converts the clip to
// 16 kHz mono and trims leading and trailing silence before any upstream call
// is made. A clip with no detected speech yields an empty [Transcript]
// without contacting the backend.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/tiktalk/pkg/audio"
	"github.com/MrWong99/tiktalk/pkg/language"
)

// Config carries per-request recognition settings.
type Config struct {
	// Language is the ISO 639-1 code of the spoken language. It must be one
	// of the codes in [language.All].
	Language string

	// DisableVAD turns off silence trimming. The zero value keeps it on.
	DisableVAD bool

	// VAD tunes the silence trimmer when it is enabled.
	VAD audio.VADConfig
}

// Segment is a timed span of recognised text.
type Segment struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// Transcript is the result of transcribing one clip.
type Transcript struct {
	// Text is the recognised speech, trimmed of surrounding whitespace.
	Text string

	// Language is the code the clip was transcribed as.
	Language string

	// Confidence is the overall confidence (0.0–1.0). Zero when the backend
	// does not report one.
	Confidence float64

	// Segments holds per-segment detail when the backend provides it.
	Segments []Segment

	// Duration is the length of the audio actually sent upstream, after
	// silence trimming.
	Duration time.Duration
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe recognises the speech in clip. Returns an error wrapping
	// [language.ErrUnsupported] before any upstream call when cfg.Language
	// is not supported.
	Transcribe(ctx context.Context, clip audio.Clip, cfg Config) (Transcript, error)
}

// Prepare validates cfg and converts clip to [audio.SpeechFormat], trimming
// silence unless cfg.DisableVAD is set. voiced is false when the clip holds
// nothing worth sending upstream.
func Prepare(clip audio.Clip, cfg Config) (prepared audio.Clip, lang language.Language, voiced bool, err error) {
	lang, err = language.Parse(cfg.Language)
	if err != nil {
		return audio.Clip{}, language.Language{}, false, fmt.Errorf("stt: %w", err)
	}
	if clip.SampleRate <= 0 || clip.Channels <= 0 {
		return audio.Clip{}, lang, false, fmt.Errorf("stt: invalid clip format %v", clip.Format)
	}
	prepared = audio.Convert(clip, audio.SpeechFormat)
	if cfg.DisableVAD {
		return prepared, lang, !prepared.Empty(), nil
	}
	prepared, voiced = audio.TrimSilence(prepared, cfg.VAD)
	return prepared, lang, voiced, nil
}

// JoinSegments concatenates segment texts with single spaces.
func JoinSegments(segs []Segment) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
