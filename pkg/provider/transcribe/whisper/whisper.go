// Package whisper provides a transcription provider backed by a running
// whisper.cpp server (the whisper-server binary), which exposes a REST API at
// POST /inference.
//
//	p, err := whisper.New("http://localhost:8178", whisper.WithLanguage("de"))
//	note, err := p.Transcribe(ctx, transcribe.Audio{Data: wav, Encoding: "wav"})
package whisper

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/salesnote/pkg/provider/transcribe"
)

const defaultLanguage = "en"

// Compile-time assertion that Provider implements transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the default language code sent to the server when the
// clip carries no hint. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithHTTPClient replaces the HTTP client used for inference requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements transcribe.Provider against a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a new Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// inferenceReply is the JSON body of POST /inference. whisper.cpp reports
// failures as {"error": "..."}.
type inferenceReply struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// maxReplyBytes bounds how much of a reply is read. A dictated note is a
// few kilobytes of text.
const maxReplyBytes = 1 << 20

// Transcribe posts the clip to /inference and returns the trimmed text.
func (p *Provider) Transcribe(ctx context.Context, audio transcribe.Audio) (string, error) {
	if len(audio.Data) == 0 {
		return "", transcribe.ErrEmptyAudio
	}

	body, contentType, err := p.form(audio)
	if err != nil {
		return "", fmt.Errorf("whisper: build form: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	var reply inferenceReply
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBytes)).Decode(&reply)
	switch {
	case resp.StatusCode != http.StatusOK && reply.Error != "":
		return "", fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, reply.Error)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	case decodeErr != nil:
		return "", fmt.Errorf("whisper: parse JSON response: %w", decodeErr)
	case reply.Error != "":
		return "", fmt.Errorf("whisper: inference failed: %s", reply.Error)
	}
	return strings.TrimSpace(reply.Text), nil
}

// form encodes audio and the request options as multipart/form-data.
func (p *Provider) form(audio transcribe.Audio) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", audio.Filename())
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(audio.Container()); err != nil {
		return nil, "", err
	}

	fields := [][2]string{
		{"language", cmp.Or(audio.Language, p.language)},
		{"model", p.model},
		{"response_format", "json"},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
