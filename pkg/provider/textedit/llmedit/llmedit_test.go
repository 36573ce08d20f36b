package llmedit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/tiktalk/pkg/provider/llm"
	"github.com/MrWong99/tiktalk/pkg/provider/llm/mock"
	"github.com/MrWong99/tiktalk/pkg/provider/textedit"
)

func TestEdit(t *testing.T) {
	m := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "```\nShe goes to school.\n```"}}
	e := New(m)

	out, err := e.Edit(context.Background(), textedit.TaskGrammar, "She go to school.")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if out != "She goes to school." {
		t.Errorf("out = %q", out)
	}

	calls := m.Calls()
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	req := calls[0].Req
	if !strings.Contains(req.SystemPrompt, "Fix grammatical errors in this sentence:") {
		t.Errorf("system prompt missing task prefix: %q", req.SystemPrompt)
	}
	if req.Temperature == nil || *req.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", req.Temperature)
	}
	if req.Messages[0].Role != llm.RoleUser || req.Messages[0].Content != "She go to school." {
		t.Errorf("messages = %+v", req.Messages)
	}
}

func TestEdit_EmptyAnswerKeepsText(t *testing.T) {
	e := New(&mock.Provider{}, WithTemperature(0.3))
	out, err := e.Edit(context.Background(), textedit.TaskCoherence, "Fine as is.")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if out != "Fine as is." {
		t.Errorf("out = %q, want input unchanged", out)
	}
	if e.temperature != 0.3 {
		t.Errorf("temperature = %v, want 0.3", e.temperature)
	}
}

func TestEdit_Errors(t *testing.T) {
	upstream := errors.New("timeout")
	e := New(&mock.Provider{CompleteErr: upstream})
	if _, err := e.Edit(context.Background(), textedit.TaskRewrite, "x"); !errors.Is(err, upstream) {
		t.Errorf("err = %v, want upstream error", err)
	}
	if _, err := e.Edit(context.Background(), textedit.Task("nope"), "x"); err == nil {
		t.Error("expected error for unknown task")
	}
}
