package llm_test

import (
	"testing"

	"github.com/MrWong99/tiktalk/pkg/provider/llm"
)

func TestCapabilitiesFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model      string
		wantWindow int
		wantOutput int
	}{
		{"gpt-4o-mini", 128_000, 16_384},
		{"GPT-4o", 128_000, 16_384},
		{"gpt-4", 8_192, 4_096},
		{"gpt-3.5-turbo", 16_385, 4_096},
		{"o1-mini", 128_000, 65_536},
		{"o3", 200_000, 100_000},
		{"claude-3-opus-20240229", 200_000, 4_096},
		{"claude-3-5-sonnet-latest", 200_000, 8_192},
		{"gemini-1.5-pro", 2_097_152, 8_192},
		{"gemini-2.0-flash", 1_048_576, 8_192},
		{"llama3.2", 128_000, 4_096},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			t.Parallel()
			got := llm.CapabilitiesFor(tt.model)
			if got.ContextWindow != tt.wantWindow {
				t.Errorf("ContextWindow = %d, want %d", got.ContextWindow, tt.wantWindow)
			}
			if got.MaxOutputTokens != tt.wantOutput {
				t.Errorf("MaxOutputTokens = %d, want %d", got.MaxOutputTokens, tt.wantOutput)
			}
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	t.Parallel()

	if got := llm.EstimateTokens(nil); got != 0 {
		t.Errorf("EstimateTokens(nil) = %d, want 0", got)
	}
	msgs := []llm.Message{
		{Role: llm.RoleUser, Content: "Hello, world!"}, // 13 chars -> 4 + 4
		{Role: llm.RoleAssistant, Content: ""},         // 0 + 4
	}
	if got := llm.EstimateTokens(msgs); got != 12 {
		t.Errorf("EstimateTokens = %d, want 12", got)
	}
}

func TestTemperature(t *testing.T) {
	t.Parallel()

	p := llm.Temperature(0)
	if p == nil || *p != 0 {
		t.Fatalf("Temperature(0) = %v", p)
	}
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"  spaced \n", "spaced"},
		{"```\nI am hungry.\n```", "I am hungry."},
		{"```text\nJ'ai faim.\n```", "J'ai faim."},
		{"```inline```", "inline"},
		{`"quoted"`, "quoted"},
		{`"`, `"`},
	}
	for _, tt := range tests {
		if got := llm.StripMarkdown(tt.in); got != tt.want {
			t.Errorf("StripMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
