// Package textedit defines the Provider interface for English text-editing
// backends: grammar correction, coherence repair, and simplifying rewrites.
//
// Tasks are phrased the way CoEdIT-style instruction models expect them, as
// a fixed prefix in front of the text. LLM backends reuse the same prefixes
// as their instruction.
package textedit

import (
	"context"
	"fmt"
)

// Task is one kind of edit.
type Task string

const (
	// TaskGrammar fixes grammatical errors.
	TaskGrammar Task = "grammar"

	// TaskCoherence makes the text read coherently.
	TaskCoherence Task = "coherence"

	// TaskRewrite simplifies the text.
	TaskRewrite Task = "rewrite"
)

var prefixes = map[Task]string{
	TaskGrammar:   "Fix grammatical errors in this sentence:",
	TaskCoherence: "Make this text coherent:",
	TaskRewrite:   "Rewrite to make this easier to understand:",
}

// Tasks returns every task in pipeline order.
func Tasks() []Task { return []Task{TaskGrammar, TaskCoherence, TaskRewrite} }

// Prefix returns the instruction for t, or "" for an unknown task.
func (t Task) Prefix() string { return prefixes[t] }

// Validate reports an error for unknown tasks.
func (t Task) Validate() error {
	if _, ok := prefixes[t]; !ok {
		return fmt.Errorf("textedit: unknown task %q", string(t))
	}
	return nil
}

// Prompt returns the instruction prefix followed by text.
func (t Task) Prompt(text string) string { return t.Prefix() + " " + text }

// Provider is the abstraction over any text-editing backend. Input and
// output are English. Implementations must be safe for concurrent use.
type Provider interface {
	Edit(ctx context.Context, task Task, text string) (string, error)
}
