// Package mock provides a test double for [translate.Provider].
//
// By default the mock "translates" by tagging the text with the target code,
// e.g. "I am hungry" to French becomes "[fr] I am hungry", and strips a
// matching tag when translating back to English. That keeps round trips
// through the correction pipeline readable in test failures.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/MrWong99/tiktalk/pkg/provider/translate"
)

// TranslateCall records a single invocation of Provider.Translate.
type TranslateCall struct {
	Text string
	Pair translate.Pair
}

// Provider is a mock implementation of translate.Provider.
type Provider struct {
	mu sync.Mutex

	// TranslateFunc, if set, computes the result.
	TranslateFunc func(text string, pair translate.Pair) (string, error)

	// Err, if non-nil, is returned by every call.
	Err error

	// Calls records every call to Translate.
	Calls []TranslateCall
}

// Translate records the call and returns the configured result.
func (p *Provider) Translate(_ context.Context, text string, pair translate.Pair) (string, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, TranslateCall{Text: text, Pair: pair})
	fn, err := p.TranslateFunc, p.Err
	p.mu.Unlock()

	if err != nil {
		return "", err
	}
	if fn != nil {
		return fn(text, pair)
	}
	if pair.To.IsEnglish() {
		return strings.TrimPrefix(text, "["+pair.From.Code+"] "), nil
	}
	return "[" + pair.To.Code + "] " + text, nil
}

// CallsFor returns the recorded calls in the given direction. Thread-safe.
func (p *Provider) CallsFor(toEnglish bool) []TranslateCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []TranslateCall
	for _, c := range p.Calls {
		if c.Pair.To.IsEnglish() == toEnglish {
			out = append(out, c)
		}
	}
	return out
}

// CallCount returns the number of Translate calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

var _ translate.Provider = (*Provider)(nil)
