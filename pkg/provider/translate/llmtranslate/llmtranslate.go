// Package llmtranslate implements translate.Provider on top of any
// [llm.Provider]. The model is asked, at temperature zero, to return only
// the translated text.
package llmtranslate

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/tiktalk/pkg/provider/llm"
	"github.com/MrWong99/tiktalk/pkg/provider/translate"
)

var _ translate.Provider = (*Provider)(nil)

const systemPromptTemplate = `You are a professional translator. Translate the user's message from %s to %s.

Rules:
- Output ONLY the translation, with no explanations, notes, quotes, or markdown.
- Preserve meaning, tone, and sentence boundaries. Do not correct mistakes in the source.
- Keep names, numbers, and punctuation as they are unless the target language requires otherwise.`

// ErrEmptyTranslation is returned when the model answers with nothing.
var ErrEmptyTranslation = errors.New("llmtranslate: empty translation")

// Option is a functional option for Provider.
type Option func(*Provider)

// WithMaxTokens caps the completion length. Default: 1024.
func WithMaxTokens(n int) Option {
	return func(p *Provider) { p.maxTokens = n }
}

// Provider translates with a chat model. It is safe for concurrent use.
type Provider struct {
	llm       llm.Provider
	maxTokens int
}

// New returns a Provider backed by provider.
func New(provider llm.Provider, opts ...Option) *Provider {
	p := &Provider{llm: provider, maxTokens: 1024}
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
	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(systemPromptTemplate, pair.From.Name, pair.To.Name),
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: text}},
		Temperature:  llm.Temperature(0),
		MaxTokens:    p.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llmtranslate: %s: %w", pair, err)
	}
	out := llm.StripMarkdown(resp.Content)
	if out == "" {
		return "", ErrEmptyTranslation
	}
	return out, nil
}
