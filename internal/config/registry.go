package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/salesnote/pkg/provider/llm"
	"github.com/MrWong99/salesnote/pkg/provider/transcribe"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a provider of type P from its config entry.
type Factory[P any] func(ProviderEntry) (P, error)

// factories is the name-keyed factory table of one provider kind.
type factories[P any] struct {
	kind   string
	mu     sync.RWMutex
	byName map[string]Factory[P]
}

func (f *factories[P]) register(name string, fn Factory[P]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byName == nil {
		f.byName = make(map[string]Factory[P])
	}
	f.byName[name] = fn
}

func (f *factories[P]) create(entry ProviderEntry) (P, error) {
	f.mu.RLock()
	fn, ok := f.byName[entry.Name]
	f.mu.RUnlock()
	if !ok {
		var zero P
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, f.kind, entry.Name)
	}
	return fn(entry)
}

func (f *factories[P]) names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Sorted(maps.Keys(f.byName))
}

// Registry maps provider names to factories per provider kind. It is safe
// for concurrent use. Registering a name twice keeps the later factory.
type Registry struct {
	llm           factories[llm.Provider]
	transcription factories[transcribe.Provider]
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:           factories[llm.Provider]{kind: "llm"},
		transcription: factories[transcribe.Provider]{kind: "transcription"},
	}
}

// RegisterLLM registers a completion provider factory under name.
func (r *Registry) RegisterLLM(name string, factory Factory[llm.Provider]) {
	r.llm.register(name, factory)
}

// RegisterTranscription registers a transcription provider factory under name.
func (r *Registry) RegisterTranscription(name string, factory Factory[transcribe.Provider]) {
	r.transcription.register(name, factory)
}

// CreateLLM runs the factory registered under entry.Name. It wraps
// [ErrProviderNotRegistered] when there is none.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	return r.llm.create(entry)
}

// CreateTranscription runs the factory registered under entry.Name.
func (r *Registry) CreateTranscription(entry ProviderEntry) (transcribe.Provider, error) {
	return r.transcription.create(entry)
}

// Names returns the sorted registered names for kind ("llm" or
// "transcription"), or nil for an unknown kind.
func (r *Registry) Names(kind string) []string {
	switch kind {
	case r.llm.kind:
		return r.llm.names()
	case r.transcription.kind:
		return r.transcription.names()
	}
	return nil
}
