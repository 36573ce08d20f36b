// Package translate defines the Provider interface for text translation
// backends and the [Pivot] router that sends every non-English language
// through English.
//
// Backends only ever translate between English and one other language. A
// pair that does not touch English is not a valid backend request; [Pivot]
// turns such a request into two hops.
package translate

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/tiktalk/pkg/language"
)

// ErrNoEnglish is returned by backends for a pair that does not involve
// English.
var ErrNoEnglish = errors.New("translate: pair does not involve English")

// Pair is the direction of a single translation call.
type Pair struct {
	From language.Language
	To   language.Language
}

// String returns e.g. "de->en".
func (p Pair) String() string { return p.From.Code + "->" + p.To.Code }

// Validate reports [ErrNoEnglish] when neither side is English.
func (p Pair) Validate() error {
	if !p.From.IsEnglish() && !p.To.IsEnglish() {
		return fmt.Errorf("%w: %s", ErrNoEnglish, p)
	}
	return nil
}

// NonEnglish returns the side of the pair that is not English.
func (p Pair) NonEnglish() language.Language {
	if p.From.IsEnglish() {
		return p.To
	}
	return p.From
}

// Provider is the abstraction over any translation backend.
//
// Implementations must be safe for concurrent use and must not keep state
// between calls. A language the backend has no model for yields an error
// wrapping [language.ErrUnsupported].
type Provider interface {
	Translate(ctx context.Context, text string, pair Pair) (string, error)
}

// Pivot routes translations through English. It never calls the backend
// when a side is already English or when source and target match.
type Pivot struct {
	backend Provider
}

// NewPivot wraps backend.
func NewPivot(backend Provider) *Pivot {
	return &Pivot{backend: backend}
}

// ToEnglish translates text from lang into English. English input is
// returned unchanged.
func (p *Pivot) ToEnglish(ctx context.Context, text string, lang language.Language) (string, error) {
	if lang.IsEnglish() {
		return text, nil
	}
	return p.backend.Translate(ctx, text, Pair{From: lang, To: language.English})
}

// FromEnglish translates English text into lang. English output is returned
// unchanged.
func (p *Pivot) FromEnglish(ctx context.Context, text string, lang language.Language) (string, error) {
	if lang.IsEnglish() {
		return text, nil
	}
	return p.backend.Translate(ctx, text, Pair{From: language.English, To: lang})
}

// Translate converts text between any two supported languages, hopping
// through English when neither side is English.
func (p *Pivot) Translate(ctx context.Context, text string, from, to language.Language) (string, error) {
	if from.IsZero() || to.IsZero() {
		return "", fmt.Errorf("translate: %w", language.ErrUnsupported)
	}
	if from == to {
		return text, nil
	}
	english, err := p.ToEnglish(ctx, text, from)
	if err != nil {
		return "", err
	}
	return p.FromEnglish(ctx, english, to)
}
