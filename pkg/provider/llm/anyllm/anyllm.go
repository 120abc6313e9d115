// Package anyllm adapts github.com/mozilla-ai/any-llm-go to [llm.Provider]
// so order extraction can run against any chat backend that library speaks.
//
//	p, err := anyllm.New("anthropic", "claude-3-5-haiku-latest", anyllmlib.WithAPIKey(key))
//
// When no API key option is given, each backend falls back to its usual
// environment variable (ANTHROPIC_API_KEY, MISTRAL_API_KEY, ...).
package anyllm

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/salesnote/pkg/provider/llm"
)

type backendFactory func(opts ...anyllmlib.Option) (anyllmlib.Provider, error)

// backends maps a lower-case backend name to its constructor. Each
// constructor returns a concrete type, so they are lifted into the common
// signature here.
var backends = map[string]backendFactory{
	"openai":    lift(anyllmoai.New),
	"anthropic": lift(anthropic.New),
	"gemini":    lift(gemini.New),
	"ollama":    lift(ollama.New),
	"deepseek":  lift(deepseek.New),
	"mistral":   lift(mistral.New),
	"groq":      lift(groq.New),
	"llamacpp":  lift(llamacpp.New),
	"llamafile": lift(llamafile.New),
}

func lift[P anyllmlib.Provider](f func(...anyllmlib.Option) (P, error)) backendFactory {
	return func(opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
		return f(opts...)
	}
}

// Backends returns the supported backend names in sorted order.
func Backends() []string {
	return slices.Sorted(maps.Keys(backends))
}

// Provider is an [llm.Provider] over one any-llm-go backend and a default
// model.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

// New connects to the backend called name (case-insensitive, see
// [Backends]) with model as the default for requests that leave
// CompletionRequest.Model empty.
func New(name, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if name == "" {
		return nil, errors.New("anyllm: backend name must not be empty")
	}
	if model == "" {
		return nil, errors.New("anyllm: model must not be empty")
	}
	factory, ok := backends[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("anyllm: unsupported backend %q (supported: %s)", name, strings.Join(Backends(), ", "))
	}
	backend, err := factory(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", name, err)
	}
	return &Provider{backend: backend, model: model}, nil
}

// Complete implements llm.Provider. Only the first choice is read; the
// order extractor never asks for more than one.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.backend.Completion(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("anyllm: response has no choices")
	}

	out := &llm.CompletionResponse{Content: resp.Choices[0].Message.ContentString()}
	if u := resp.Usage; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return out, nil
}

// Capabilities implements llm.Provider for the default model.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return llm.CapabilitiesFor(p.model)
}

// buildParams translates req. Temperature is always sent because zero is the
// usual extraction setting and a nil pointer would let the backend pick its
// own default. MaxTokens is clamped to the model's output limit.
func (p *Provider) buildParams(req llm.CompletionRequest) anyllmlib.CompletionParams {
	model := cmp.Or(req.Model, p.model)

	messages := make([]anyllmlib.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, convertMessage(m))
	}

	temp := req.Temperature
	params := anyllmlib.CompletionParams{
		Model:       model,
		Messages:    messages,
		Temperature: &temp,
	}
	if req.MaxTokens > 0 {
		maxTokens := llm.ClampMaxTokens(model, req.MaxTokens)
		params.MaxTokens = &maxTokens
	}
	return params
}

func convertMessage(m llm.Message) anyllmlib.Message {
	return anyllmlib.Message{Role: m.Role, Content: m.Content}
}
