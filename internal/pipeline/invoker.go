package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/salesnote/internal/observe"
	"github.com/MrWong99/salesnote/internal/resilience"
	"github.com/MrWong99/salesnote/pkg/provider/llm"
	"github.com/MrWong99/salesnote/pkg/provider/transcribe"
)

const (
	// DefaultTemperature is used when Params.Temperature is not positive.
	DefaultTemperature = 0.2

	// MaxTemperature caps Params.Temperature. Higher values make the model
	// rewrite the salesperson's literal prices and quantities.
	MaxTemperature = 0.3
)

// Params tunes a single completion request.
type Params struct {
	// Model overrides the provider's default model when non-empty.
	Model string

	// Temperature is clamped to (0, MaxTemperature]; zero or negative
	// selects DefaultTemperature.
	Temperature float64

	// MaxTokens caps the reply length; zero leaves it to the provider.
	MaxTokens int
}

// Normalized returns p with the temperature defaulted and clamped.
func (p Params) Normalized() Params {
	switch {
	case p.Temperature <= 0:
		p.Temperature = DefaultTemperature
	case p.Temperature > MaxTemperature:
		p.Temperature = MaxTemperature
	}
	if p.MaxTokens < 0 {
		p.MaxTokens = 0
	}
	return p
}

// CompletionFailure is the single error surfaced for any completion
// service problem. Message is shown to the user and carries the first line
// of the upstream error.
type CompletionFailure struct {
	Message string
	Err     error
}

func (e *CompletionFailure) Error() string {
	return "pipeline: completion failed: " + e.Err.Error()
}

func (e *CompletionFailure) Unwrap() error { return e.Err }

// TranscriptionFailure is the single error surfaced for any transcription
// service problem. Message is shown to the user like
// [CompletionFailure.Message].
type TranscriptionFailure struct {
	Message string
	Err     error
}

func (e *TranscriptionFailure) Error() string {
	return "pipeline: transcription failed: " + e.Err.Error()
}

func (e *TranscriptionFailure) Unwrap() error { return e.Err }

// InvokerOption configures an [Invoker] or [Transcriber].
type InvokerOption func(*invokerConfig)

type invokerConfig struct {
	name    string
	breaker *resilience.CircuitBreaker
	metrics *observe.Metrics
}

// WithProviderName labels metrics and log lines. Default: "llm" or
// "transcription".
func WithProviderName(name string) InvokerOption {
	return func(c *invokerConfig) { c.name = name }
}

// WithBreaker guards calls with cb.
func WithBreaker(cb *resilience.CircuitBreaker) InvokerOption {
	return func(c *invokerConfig) { c.breaker = cb }
}

// WithMetrics records latency and outcomes on m. Default:
// observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) InvokerOption {
	return func(c *invokerConfig) { c.metrics = m }
}

func newInvokerConfig(defaultName string, opts []InvokerOption) invokerConfig {
	c := invokerConfig{name: defaultName}
	for _, o := range opts {
		o(&c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	if c.breaker == nil {
		c.breaker = resilience.NewCircuitBreaker(resilience.Config{Name: c.name})
	}
	return c
}

// Invoker sends one prompt to the completion service per call. It never
// retries; an open circuit breaker fails fast.
type Invoker struct {
	provider llm.Provider
	cfg      invokerConfig
}

// NewInvoker wraps p.
func NewInvoker(p llm.Provider, opts ...InvokerOption) *Invoker {
	return &Invoker{provider: p, cfg: newInvokerConfig("llm", opts)}
}

// Invoke sends prompt as a single user message and returns the reply text.
// Every failure is a [*CompletionFailure].
func (i *Invoker) Invoke(ctx context.Context, prompt string, params Params) (string, error) {
	params = params.Normalized()
	req := llm.CompletionRequest{
		Messages:    []llm.Message{llm.UserMessage(prompt)},
		Model:       params.Model,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}

	if caps := i.provider.Capabilities(); caps.ContextWindow > 0 {
		if need := llm.EstimateTokens(prompt) + params.MaxTokens; need > caps.ContextWindow {
			observe.Logger(ctx).Warn("prompt may exceed model context window",
				"provider", i.cfg.name, "estimated_tokens", need, "context_window", caps.ContextWindow)
		}
	}

	start := time.Now()
	resp, err := resilience.Call(ctx, i.cfg.breaker, func(ctx context.Context) (*llm.CompletionResponse, error) {
		resp, err := i.provider.Complete(ctx, req)
		if err == nil && resp == nil {
			err = errors.New("provider returned no response")
		}
		return resp, err
	})
	i.cfg.metrics.CompletionDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		i.cfg.metrics.RecordProviderRequest(ctx, i.cfg.name, "llm", "error")
		i.cfg.metrics.RecordProviderError(ctx, i.cfg.name, "llm")
		observe.Logger(ctx).Warn("completion failed", "provider", i.cfg.name, "err", err)
		return "", &CompletionFailure{Message: failureMessage("completion", err), Err: err}
	}
	i.cfg.metrics.RecordProviderRequest(ctx, i.cfg.name, "llm", "ok")
	return resp.Content, nil
}

// Transcriber turns one audio clip into text per call, with the same
// single-attempt and fail-fast behaviour as [Invoker].
type Transcriber struct {
	provider transcribe.Provider
	cfg      invokerConfig
}

// NewTranscriber wraps p.
func NewTranscriber(p transcribe.Provider, opts ...InvokerOption) *Transcriber {
	return &Transcriber{provider: p, cfg: newInvokerConfig("transcription", opts)}
}

// Transcribe returns the recognised text. Every failure, including an empty
// clip, is a [*TranscriptionFailure].
func (t *Transcriber) Transcribe(ctx context.Context, audio transcribe.Audio) (string, error) {
	if len(audio.Data) == 0 {
		return "", &TranscriptionFailure{Message: "The recording is empty.", Err: transcribe.ErrEmptyAudio}
	}

	start := time.Now()
	text, err := resilience.Call(ctx, t.cfg.breaker, func(ctx context.Context) (string, error) {
		return t.provider.Transcribe(ctx, audio)
	})
	t.cfg.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		t.cfg.metrics.RecordProviderRequest(ctx, t.cfg.name, "transcription", "error")
		t.cfg.metrics.RecordProviderError(ctx, t.cfg.name, "transcription")
		observe.Logger(ctx).Warn("transcription failed", "provider", t.cfg.name, "err", err)
		return "", &TranscriptionFailure{Message: failureMessage("transcription", err), Err: err}
	}
	t.cfg.metrics.RecordProviderRequest(ctx, t.cfg.name, "transcription", "ok")
	return text, nil
}

func failureMessage(service string, err error) string {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return fmt.Sprintf("The %s service is temporarily unavailable. Please try again shortly.", service)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("The %s request was cancelled.", service)
	default:
		return fmt.Sprintf("The %s service could not process the request (%s). Please try again.", service, upstreamDetail(err))
	}
}

// maxDetailRunes bounds the upstream text echoed in a failure message.
const maxDetailRunes = 160

// upstreamDetail is the first line of err, shortened for display.
func upstreamDetail(err error) string {
	line, _, _ := strings.Cut(err.Error(), "\n")
	line = strings.TrimSpace(line)
	if r := []rune(line); len(r) > maxDetailRunes {
		line = string(r[:maxDetailRunes]) + "..."
	}
	return line
}
