// Package gemini provides a transcription provider that sends the clip to a
// Gemini model as inline audio and asks for a verbatim transcript.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "google.golang.org/genai"

	"github.com/MrWong99/salesnote/pkg/provider/transcribe"
)

const (
	defaultModel = "gemini-2.5-flash"

	transcribeInstruction = "Transcribe this audio verbatim. Return only the spoken words as plain text, " +
		"without commentary, speaker labels or timestamps. Keep numbers, prices and product codes exactly as spoken."
)

// Compile-time assertion that Provider implements transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

// generator is the subset of the genai Models service used by Provider.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Provider implements transcribe.Provider against the Gemini API.
type Provider struct {
	models generator
	model  string
}

// New creates a Provider. When apiKey is empty the genai client falls back to
// the GEMINI_API_KEY / GOOGLE_API_KEY environment variables.
func New(ctx context.Context, apiKey, model string) (*Provider, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newWithGenerator(cli.Models, model), nil
}

func newWithGenerator(g generator, model string) *Provider {
	if model == "" {
		model = defaultModel
	}
	return &Provider{models: g, model: model}
}

// Transcribe implements transcribe.Provider.
func (p *Provider) Transcribe(ctx context.Context, audio transcribe.Audio) (string, error) {
	if len(audio.Data) == 0 {
		return "", transcribe.ErrEmptyAudio
	}

	instruction := transcribeInstruction
	if audio.Language != "" {
		instruction += " The speaker's language is " + audio.Language + "."
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: instruction},
			{InlineData: &genai.Blob{MIMEType: audio.MIMEType(), Data: audio.Container()}},
		},
	}}

	resp, err := p.models.GenerateContent(ctx, p.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("gemini: empty candidates in response")
	}
	return strings.TrimSpace(resp.Text()), nil
}
