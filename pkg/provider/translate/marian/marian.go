// Package marian provides a translation backend built on the Helsinki-NLP
// MarianMT models served by the Hugging Face hosted inference API.
//
// Each non-English language has two models: one into English
// (opus-mt-{xx}-en) and one out of it (opus-mt-en-{xx}). Languages without a
// dedicated en-{xx} model use the multi-target en-mul model with a target
// token such as ">>guj<<" prepended to the input.
package marian

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/tiktalk/pkg/hfinference"
	"github.com/MrWong99/tiktalk/pkg/language"
	"github.com/MrWong99/tiktalk/pkg/provider/translate"
)

var _ translate.Provider = (*Provider)(nil)

// Models names the two MarianMT models for one language.
type Models struct {
	// ToEnglish translates {xx} -> en.
	ToEnglish string

	// FromEnglish translates en -> {xx}.
	FromEnglish string

	// TargetToken, when set, is prepended to inputs of FromEnglish
	// (multi-target models only).
	TargetToken string
}

// DefaultModels returns the built-in model table keyed by language code.
func DefaultModels() map[string]Models {
	return map[string]Models{
		"hi": {ToEnglish: "Helsinki-NLP/opus-mt-hi-en", FromEnglish: "Helsinki-NLP/opus-mt-en-hi"},
		"gu": {ToEnglish: "Helsinki-NLP/opus-mt-gu-en", FromEnglish: "Helsinki-NLP/opus-mt-en-mul", TargetToken: ">>guj<<"},
		"ta": {ToEnglish: "Helsinki-NLP/opus-mt-ta-en", FromEnglish: "Helsinki-NLP/opus-mt-en-mul", TargetToken: ">>tam<<"},
		"fr": {ToEnglish: "Helsinki-NLP/opus-mt-fr-en", FromEnglish: "Helsinki-NLP/opus-mt-en-fr"},
		"de": {ToEnglish: "Helsinki-NLP/opus-mt-de-en", FromEnglish: "Helsinki-NLP/opus-mt-en-de"},
		"ja": {ToEnglish: "Helsinki-NLP/opus-mt-ja-en", FromEnglish: "Helsinki-NLP/opus-mt-en-mul", TargetToken: ">>jpn<<"},
	}
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithModels overrides entries of the model table. Fields left empty keep
// their defaults.
func WithModels(overrides map[string]Models) Option {
	return func(p *Provider) {
		for code, m := range overrides {
			cur := p.models[code]
			if m.ToEnglish != "" {
				cur.ToEnglish = m.ToEnglish
			}
			if m.FromEnglish != "" {
				cur.FromEnglish = m.FromEnglish
				cur.TargetToken = m.TargetToken
			}
			p.models[code] = cur
		}
	}
}

// Provider implements translate.Provider on top of an hfinference.Client.
type Provider struct {
	client *hfinference.Client
	models map[string]Models
}

// New creates a Provider that sends requests through client.
func New(client *hfinference.Client, opts ...Option) *Provider {
	p := &Provider{client: client, models: DefaultModels()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, text string, pair translate.Pair) (string, error) {
	if err := pair.Validate(); err != nil {
		return "", err
	}
	if pair.From == pair.To {
		return text, nil
	}
	model, input, err := p.route(text, pair)
	if err != nil {
		return "", err
	}
	out, err := p.client.Translate(ctx, model, input)
	if err != nil {
		return "", fmt.Errorf("marian: translate %s: %w", pair, err)
	}
	return out, nil
}

// route picks the model and input for pair.
func (p *Provider) route(text string, pair translate.Pair) (model, input string, err error) {
	lang := pair.NonEnglish()
	m, ok := p.models[lang.Code]
	if pair.From.IsEnglish() {
		if !ok || m.FromEnglish == "" {
			return "", "", fmt.Errorf("marian: no en->%s model: %w", lang.Code, language.ErrUnsupported)
		}
		if m.TargetToken != "" {
			return m.FromEnglish, m.TargetToken + " " + strings.TrimSpace(text), nil
		}
		return m.FromEnglish, text, nil
	}
	if !ok || m.ToEnglish == "" {
		return "", "", fmt.Errorf("marian: no %s->en model: %w", lang.Code, language.ErrUnsupported)
	}
	return m.ToEnglish, text, nil
}
