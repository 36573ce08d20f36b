// Package coedit provides a textedit.Provider backed by a CoEdIT
// instruction-tuned T5 model (grammarly/coedit-large by default) served by
// the Hugging Face hosted inference API.
package coedit

import (
	"context"
	"fmt"

	"github.com/MrWong99/tiktalk/pkg/hfinference"
	"github.com/MrWong99/tiktalk/pkg/provider/textedit"
)

// DefaultModel is the CoEdIT checkpoint used when none is configured.
const DefaultModel = "grammarly/coedit-large"

const defaultMaxNewTokens = 1000

var _ textedit.Provider = (*Provider)(nil)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithModel overrides [DefaultModel].
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithMaxNewTokens caps the generated length. Default: 1000.
func WithMaxNewTokens(n int) Option {
	return func(p *Provider) { p.maxNewTokens = n }
}

// Provider implements textedit.Provider.
type Provider struct {
	client       *hfinference.Client
	model        string
	maxNewTokens int
}

// New creates a Provider that sends requests through client.
func New(client *hfinference.Client, opts ...Option) *Provider {
	p := &Provider{client: client, model: DefaultModel, maxNewTokens: defaultMaxNewTokens}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Edit implements textedit.Provider. Decoding is greedy so the same input
// always yields the same edit.
func (p *Provider) Edit(ctx context.Context, task textedit.Task, text string) (string, error) {
	if err := task.Validate(); err != nil {
		return "", err
	}
	out, err := p.client.Generate(ctx, p.model, task.Prompt(text), map[string]any{
		"max_new_tokens": p.maxNewTokens,
		"do_sample":      false,
	})
	if err != nil {
		return "", fmt.Errorf("coedit: %s: %w", task, err)
	}
	return out, nil
}
