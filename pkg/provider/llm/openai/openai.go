// Package openai implements [llm.Provider] on the OpenAI chat completions
// API. Any server speaking the same protocol (vLLM, LiteLLM, Azure gateways)
// works through [WithBaseURL].
package openai

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/salesnote/pkg/provider/llm"
)

// Provider sends one chat completion per Complete call. The SDK's own
// retries are disabled: a failed extraction is reported, never repeated.
type Provider struct {
	client oai.Client
	model  string
	seed   int64
}

// Option configures a [Provider].
type Option func(*settings)

type settings struct {
	requestOpts []option.RequestOption
	seed        int64
}

// WithBaseURL points the client at an OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(s *settings) { s.requestOpts = append(s.requestOpts, option.WithBaseURL(url)) }
}

// WithOrganization sends the OpenAI-Organization header.
func WithOrganization(org string) Option {
	return func(s *settings) { s.requestOpts = append(s.requestOpts, option.WithOrganization(org)) }
}

// WithTimeout bounds each HTTP request. Without it only the caller's
// context limits a completion.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.requestOpts = append(s.requestOpts, option.WithHTTPClient(&http.Client{Timeout: d}))
	}
}

// WithSeed asks the backend for reproducible sampling. Zero leaves it unset.
func WithSeed(seed int64) Option {
	return func(s *settings) { s.seed = seed }
}

// New returns a Provider that authenticates with apiKey and defaults to model.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, errors.New("openai: model must not be empty")
	}

	s := settings{requestOpts: []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}}
	for _, o := range opts {
		o(&s)
	}
	return &Provider{client: oai.NewClient(s.requestOpts...), model: model, seed: s.seed}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: response has no choices")
	}

	u := resp.Usage
	return &llm.CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: llm.Usage{
			PromptTokens:     int(u.PromptTokens),
			CompletionTokens: int(u.CompletionTokens),
			TotalTokens:      int(u.TotalTokens),
		},
	}, nil
}

// Capabilities implements llm.Provider for the default model.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return llm.CapabilitiesFor(p.model)
}

func (p *Provider) buildParams(req llm.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	model := cmp.Or(req.Model, p.model)

	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, oai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		messages = append(messages, msg)
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
		// Zero is a legitimate extraction temperature, so it is always sent.
		Temperature: param.NewOpt(req.Temperature),
	}
	if n := llm.ClampMaxTokens(model, req.MaxTokens); n > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(n))
	}
	if p.seed != 0 {
		params.Seed = param.NewOpt(p.seed)
	}
	return params, nil
}

func convertMessage(m llm.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case "system":
		return oai.SystemMessage(m.Content), nil
	case "user":
		return oai.UserMessage(m.Content), nil
	case "assistant":
		return oai.AssistantMessage(m.Content), nil
	}
	return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("openai: unsupported message role %q", m.Role)
}
