package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/salesnote/internal/app"
	"github.com/MrWong99/salesnote/internal/config"
	"github.com/MrWong99/salesnote/pkg/provider/llm"
	"github.com/MrWong99/salesnote/pkg/provider/llm/anyllm"
	oallm "github.com/MrWong99/salesnote/pkg/provider/llm/openai"
	"github.com/MrWong99/salesnote/pkg/provider/transcribe"
	"github.com/MrWong99/salesnote/pkg/provider/transcribe/gemini"
	oatranscribe "github.com/MrWong99/salesnote/pkg/provider/transcribe/openai"
	"github.com/MrWong99/salesnote/pkg/provider/transcribe/whisper"
)

// registerBuiltinProviders wires all built-in provider factories into reg.
// ctx bounds client construction for providers that dial at creation.
func registerBuiltinProviders(ctx context.Context, reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	// openai talks to the API directly and also serves OpenAI-compatible
	// servers through base_url.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oallm.WithOrganization(org))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, oallm.WithTimeout(d))
		}
		if seed := optInt(entry.Options, "seed"); seed != 0 {
			opts = append(opts, oallm.WithSeed(int64(seed)))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	// Every other any-llm-go backend takes an optional APIKey and BaseURL.
	// ollama and the llama servers are keyless; a configured key is ignored.
	for _, backend := range anyllm.Backends() {
		if backend == "openai" {
			continue
		}
		keyless := backend == "ollama" || backend == "llamacpp" || backend == "llamafile"
		reg.RegisterLLM(backend, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" && !keyless {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}

	// ── Transcription ─────────────────────────────────────────────────────────

	reg.RegisterTranscription("openai", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		var opts []oatranscribe.Option
		if entry.BaseURL != "" {
			opts = append(opts, oatranscribe.WithBaseURL(entry.BaseURL))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, oatranscribe.WithTimeout(d))
		}
		return oatranscribe.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterTranscription("whisper", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterTranscription("gemini", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		return gemini.New(ctx, entry.APIKey, entry.Model)
	})

	for _, kind := range []string{"llm", "transcription"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	p, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	ps.LLM = p
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name)

	if name := cfg.Providers.Transcription.Name; name != "" {
		t, err := reg.CreateTranscription(cfg.Providers.Transcription)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("unknown transcription provider, dictation disabled", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create transcription provider %q: %w", name, err)
		} else {
			ps.Transcription = t
			slog.Info("provider created", "kind", "transcription", "name", name)
		}
	}

	return ps, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optDuration reads a duration option written either as a Go duration
// string ("30s") or as a number of seconds.
func optDuration(opts map[string]any, key string) time.Duration {
	switch v := opts[key].(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("ignoring invalid duration option", "key", key, "value", v)
			return 0
		}
		return d
	case int:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	default:
		return 0
	}
}

// optInt reads an integer option. YAML decodes whole numbers as int, JSON
// as float64; both are accepted.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
