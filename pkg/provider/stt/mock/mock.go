// Package mock provides a test double for [stt.Provider].
//
// Example:
//
//	p := &mock.Provider{Result: stt.Transcript{Text: "I has go to market yesterday"}}
//	tr, _ := p.Transcribe(ctx, clip, stt.Config{Language: "en"})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/tiktalk/pkg/audio"
	"github.com/MrWong99/tiktalk/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	Clip audio.Clip
	Cfg  stt.Config
}

// Provider is a mock implementation of stt.Provider. It does not validate
// the language; tests exercising validation should use [stt.Prepare].
type Provider struct {
	mu sync.Mutex

	// Result is returned by every Transcribe call. Its Language field is
	// filled from the request when empty.
	Result stt.Transcript

	// Err, if non-nil, is returned instead of Result.
	Err error

	// Calls records every call to Transcribe.
	Calls []TranscribeCall
}

// Transcribe records the call and returns Result, Err.
func (p *Provider) Transcribe(_ context.Context, clip audio.Clip, cfg stt.Config) (stt.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, TranscribeCall{Clip: clip, Cfg: cfg})
	if p.Err != nil {
		return stt.Transcript{}, p.Err
	}
	out := p.Result
	if out.Language == "" {
		out.Language = cfg.Language
	}
	return out, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

var _ stt.Provider = (*Provider)(nil)
