// Package mock provides a test double for [textedit.Provider].
//
// Without an EditFunc the mock returns the text unchanged, which makes the
// correction pipeline score a perfect 100.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/tiktalk/pkg/provider/textedit"
)

// EditCall records a single invocation of Provider.Edit.
type EditCall struct {
	Task textedit.Task
	Text string
}

// Provider is a mock implementation of textedit.Provider.
type Provider struct {
	mu sync.Mutex

	// EditFunc, if set, computes the result.
	EditFunc func(task textedit.Task, text string) (string, error)

	// Responses maps a task to a fixed answer. Consulted when EditFunc is nil.
	Responses map[textedit.Task]string

	// Err, if non-nil, is returned by every call.
	Err error

	// Calls records every call to Edit.
	Calls []EditCall
}

// Edit records the call and returns the configured result.
func (p *Provider) Edit(_ context.Context, task textedit.Task, text string) (string, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, EditCall{Task: task, Text: text})
	fn, resp, err := p.EditFunc, p.Responses, p.Err
	p.mu.Unlock()

	if err != nil {
		return "", err
	}
	if fn != nil {
		return fn(task, text)
	}
	if out, ok := resp[task]; ok {
		return out, nil
	}
	return text, nil
}

// CallCount returns the number of Edit calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

var _ textedit.Provider = (*Provider)(nil)
