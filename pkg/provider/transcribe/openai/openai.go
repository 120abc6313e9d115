// Package openai provides a transcription provider backed by the OpenAI audio
// transcription API (whisper-1, gpt-4o-transcribe and compatible gateways).
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/salesnote/pkg/provider/transcribe"
)

const defaultModel = oai.AudioModelWhisper1

// Compile-time assertion that Provider implements transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

// Provider implements transcribe.Provider using the OpenAI audio API.
type Provider struct {
	client oai.Client
	model  string
}

type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a Provider. model may be empty, in which case whisper-1 is used.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		model = defaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Transcribe implements transcribe.Provider.
func (p *Provider) Transcribe(ctx context.Context, audio transcribe.Audio) (string, error) {
	if len(audio.Data) == 0 {
		return "", transcribe.ErrEmptyAudio
	}

	params := p.buildParams(audio)
	res, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: transcription: %w", err)
	}
	return strings.TrimSpace(res.Text), nil
}

// buildParams converts a clip into OpenAI SDK params.
func (p *Provider) buildParams(audio transcribe.Audio) oai.AudioTranscriptionNewParams {
	params := oai.AudioTranscriptionNewParams{
		Model: oai.AudioModel(p.model),
		File:  oai.File(bytes.NewReader(audio.Container()), audio.Filename(), audio.MIMEType()),
	}
	if lang := primaryLanguage(audio.Language); lang != "" {
		params.Language = param.NewOpt(lang)
	}
	return params
}

// primaryLanguage reduces a BCP-47 tag to the ISO-639-1 code the API accepts.
func primaryLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}
