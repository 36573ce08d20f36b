// Package llmedit implements a language-model-based text editor. Each task's
// instruction prefix becomes the system prompt, and the model is told to
// return only the edited text. Markdown fences that chat models like to add
// are stripped from the answer.
package llmedit

import (
	"context"
	"fmt"

	"github.com/MrWong99/tiktalk/pkg/provider/llm"
	"github.com/MrWong99/tiktalk/pkg/provider/textedit"
)

const defaultTemperature = 0.0

const systemPromptTemplate = `You are an English writing assistant helping a language learner.

Instruction: %s

Rules:
- Apply ONLY the instruction above to the user's text.
- Keep the learner's meaning. Do not add new information.
- Respond with ONLY the edited text: no quotes, no explanations, no markdown.
- If nothing needs to change, return the text unchanged.`

var _ textedit.Provider = (*Editor)(nil)

// Option is a functional option for configuring an [Editor].
type Option func(*Editor)

// WithTemperature sets the sampling temperature. Default: 0 (greedy).
func WithTemperature(temp float64) Option {
	return func(e *Editor) {
		e.temperature = temp
	}
}

// Editor uses an [llm.Provider] to perform text edits. It is safe for
// concurrent use.
//
// To use a specific model, construct the [llm.Provider] with that model
// rather than overriding it per request.
type Editor struct {
	llm         llm.Provider
	temperature float64
}

// New returns a new [Editor] backed by provider.
func New(provider llm.Provider, opts ...Option) *Editor {
	e := &Editor{
		llm:         provider,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Edit implements textedit.Provider. An empty model answer leaves the text
// unchanged.
func (e *Editor) Edit(ctx context.Context, task textedit.Task, text string) (string, error) {
	if err := task.Validate(); err != nil {
		return "", err
	}
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(systemPromptTemplate, task.Prefix()),
		Temperature:  llm.Temperature(e.temperature),
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm editor: %s: %w", task, err)
	}
	out := llm.StripMarkdown(resp.Content)
	if out == "" {
		return text, nil
	}
	return out, nil
}
