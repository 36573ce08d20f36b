// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local chat-completion API (OpenAI,
// Anthropic, Gemini, a local Ollama or llama.cpp server) and exposes the one
// request/response contract TikTalk needs: an ordered list of role/content
// messages in, one assistant message out. The tutor uses it for replies;
// the llmtranslate and llmedit packages reuse it as a translation and
// text-editing backend.
//
// Implementations must be safe for concurrent use.
package llm

import (
	"context"
	"strings"
)

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history, oldest first.
	Messages []Message

	// SystemPrompt is an optional instruction placed before Messages as a
	// "system" message.
	SystemPrompt string

	// Temperature controls output randomness in the range [0.0, 2.0]. Nil
	// leaves the provider default; a pointer to 0 requests greedy decoding,
	// which the correction pipeline relies on for repeatable output.
	Temperature *float64

	// MaxTokens caps the number of completion tokens. Zero means provider
	// default.
	MaxTokens int
}

// CompletionResponse is the assistant's reply.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates the number of tokens messages would consume in
	// the model's context window. The result need not be exact but should
	// not undercount.
	CountTokens(messages []Message) (int, error)

	// Capabilities returns static metadata about the underlying model.
	Capabilities() ModelCapabilities
}

// Temperature returns a pointer to v for use in [CompletionRequest].
func Temperature(v float64) *float64 { return &v }

// EstimateTokens approximates the token count of messages at roughly four
// characters per token plus a small per-message overhead.
func EstimateTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += (len(m.Content)+3)/4 + 4
	}
	return total
}

// StripMarkdown removes the code fences and surrounding quotes that chat
// models like to wrap plain-text answers in.
func StripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "```"); ok {
		// Drop an optional language tag on the opening fence.
		if i := strings.IndexByte(after, '\n'); i >= 0 {
			after = after[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(after), "```")
	}
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
