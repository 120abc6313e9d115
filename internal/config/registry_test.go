package config

import (
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/salesnote/pkg/provider/llm"
	llmmock "github.com/MrWong99/salesnote/pkg/provider/llm/mock"
	"github.com/MrWong99/salesnote/pkg/provider/transcribe"
	transcribemock "github.com/MrWong99/salesnote/pkg/provider/transcribe/mock"
)

func TestRegistry_CreateLLM(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	var got ProviderEntry
	want := &llmmock.Provider{}
	r.RegisterLLM("test", func(e ProviderEntry) (llm.Provider, error) {
		got = e
		return want, nil
	})

	entry := ProviderEntry{Name: "test", Model: "m1", APIKey: "k"}
	p, err := r.CreateLLM(entry)
	if err != nil {
		t.Fatalf("CreateLLM: %v", err)
	}
	if p != want {
		t.Errorf("provider = %v, want the registered instance", p)
	}
	if got.Model != "m1" || got.APIKey != "k" {
		t.Errorf("factory got %+v", got)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if _, err := r.CreateLLM(ProviderEntry{Name: "missing"}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateLLM err = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := r.CreateTranscription(ProviderEntry{Name: "missing"}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateTranscription err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_OverwriteAndFactoryError(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	boom := errors.New("boom")
	r.RegisterTranscription("whisper", func(ProviderEntry) (transcribe.Provider, error) {
		return &transcribemock.Provider{}, nil
	})
	r.RegisterTranscription("whisper", func(ProviderEntry) (transcribe.Provider, error) {
		return nil, boom
	})

	if _, err := r.CreateTranscription(ProviderEntry{Name: "whisper"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want the second factory's error", err)
	}
}

func TestRegistry_Names(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, name := range []string{"openai", "anthropic", "ollama"} {
		r.RegisterLLM(name, func(ProviderEntry) (llm.Provider, error) { return &llmmock.Provider{}, nil })
	}
	r.RegisterTranscription("whisper", func(ProviderEntry) (transcribe.Provider, error) { return &transcribemock.Provider{}, nil })

	if got := r.Names("llm"); !slices.Equal(got, []string{"anthropic", "ollama", "openai"}) {
		t.Errorf("llm names = %v", got)
	}
	if got := r.Names("transcription"); !slices.Equal(got, []string{"whisper"}) {
		t.Errorf("transcription names = %v", got)
	}
	if got := r.Names("tts"); got != nil {
		t.Errorf("unknown kind names = %v, want nil", got)
	}
}
