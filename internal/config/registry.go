package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/tiktalk/pkg/provider/llm"
	"github.com/MrWong99/tiktalk/pkg/provider/stt"
	"github.com/MrWong99/tiktalk/pkg/provider/textedit"
	"github.com/MrWong99/tiktalk/pkg/provider/translate"
	"github.com/MrWong99/tiktalk/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// TranslateFactory builds a translation backend. chat is the configured
// reply model, available to backends that translate by prompting it.
type TranslateFactory func(entry ProviderEntry, chat llm.Provider) (translate.Provider, error)

// TextEditFactory builds a text-editing backend. chat is the configured
// reply model.
type TextEditFactory func(entry ProviderEntry, chat llm.Provider) (textedit.Provider, error)

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	llm       map[string]func(ProviderEntry) (llm.Provider, error)
	stt       map[string]func(ProviderEntry) (stt.Provider, error)
	tts       map[string]func(ProviderEntry) (tts.Provider, error)
	translate map[string]TranslateFactory
	textedit  map[string]TextEditFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:       make(map[string]func(ProviderEntry) (llm.Provider, error)),
		stt:       make(map[string]func(ProviderEntry) (stt.Provider, error)),
		tts:       make(map[string]func(ProviderEntry) (tts.Provider, error)),
		translate: make(map[string]TranslateFactory),
		textedit:  make(map[string]TextEditFactory),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterSTT registers an STT provider factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterTranslate registers a translation backend factory under name.
func (r *Registry) RegisterTranslate(name string, factory TranslateFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.translate[name] = factory
}

// RegisterTextEdit registers a text-editing backend factory under name.
func (r *Registry) RegisterTextEdit(name string, factory TextEditFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textedit[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSTT instantiates an STT provider using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTranslate instantiates a translation backend using the factory
// registered under entry.Name.
func (r *Registry) CreateTranslate(entry ProviderEntry, chat llm.Provider) (translate.Provider, error) {
	r.mu.RLock()
	factory, ok := r.translate[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: translation/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry, chat)
}

// CreateTextEdit instantiates a text-editing backend using the factory
// registered under entry.Name.
func (r *Registry) CreateTextEdit(entry ProviderEntry, chat llm.Provider) (textedit.Provider, error) {
	r.mu.RLock()
	factory, ok := r.textedit[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: textedit/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry, chat)
}
