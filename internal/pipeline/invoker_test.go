package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/salesnote/internal/pipeline"
	"github.com/MrWong99/salesnote/internal/resilience"
	"github.com/MrWong99/salesnote/pkg/provider/llm"
	llmmock "github.com/MrWong99/salesnote/pkg/provider/llm/mock"
	"github.com/MrWong99/salesnote/pkg/provider/transcribe"
	transcribemock "github.com/MrWong99/salesnote/pkg/provider/transcribe/mock"
)

func TestParams_Normalized(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero defaults", 0, pipeline.DefaultTemperature},
		{"negative defaults", -1, pipeline.DefaultTemperature},
		{"in range kept", 0.1, 0.1},
		{"cap kept", pipeline.MaxTemperature, pipeline.MaxTemperature},
		{"above cap clamped", 0.9, pipeline.MaxTemperature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := pipeline.Params{Temperature: tt.in}.Normalized()
			if got.Temperature != tt.want {
				t.Errorf("Temperature = %v, want %v", got.Temperature, tt.want)
			}
		})
	}
}

func TestInvoker_SendsSinglePrompt(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "reply"}}
	inv := pipeline.NewInvoker(p)

	got, err := inv.Invoke(context.Background(), "the prompt", pipeline.Params{Model: "m", Temperature: 0.8, MaxTokens: 500})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "reply" {
		t.Errorf("reply = %q, want %q", got, "reply")
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	req := calls[0].Req
	if len(req.Messages) != 1 || req.Messages[0].Content != "the prompt" || req.Messages[0].Role != "user" {
		t.Errorf("messages = %+v, want one user message", req.Messages)
	}
	if req.Temperature != pipeline.MaxTemperature {
		t.Errorf("Temperature = %v, want %v", req.Temperature, pipeline.MaxTemperature)
	}
	if req.Model != "m" || req.MaxTokens != 500 {
		t.Errorf("Model/MaxTokens = %q/%d", req.Model, req.MaxTokens)
	}
}

func TestInvoker_OversizedPromptStillSent(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse:  &llm.CompletionResponse{Content: "ok"},
		ModelCapabilities: llm.ModelCapabilities{ContextWindow: 10, MaxOutputTokens: 10},
	}
	inv := pipeline.NewInvoker(p)

	if _, err := inv.Invoke(context.Background(), strings.Repeat("note ", 100), pipeline.Params{}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(p.Calls()) != 1 {
		t.Errorf("calls = %d, want 1", len(p.Calls()))
	}
}

func TestInvoker_FailureIsNotRetried(t *testing.T) {
	t.Parallel()

	upstream := errors.New("503 from upstream")
	p := &llmmock.Provider{CompleteErr: upstream}
	inv := pipeline.NewInvoker(p)

	_, err := inv.Invoke(context.Background(), "x", pipeline.Params{})
	var cf *pipeline.CompletionFailure
	if !errors.As(err, &cf) {
		t.Fatalf("err = %v, want *CompletionFailure", err)
	}
	if !errors.Is(err, upstream) {
		t.Error("CompletionFailure does not wrap the upstream error")
	}
	if !strings.Contains(cf.Message, "could not process") || !strings.Contains(cf.Message, "503 from upstream") {
		t.Errorf("Message = %q, want a user-facing text with the upstream error", cf.Message)
	}
	if n := len(p.Calls()); n != 1 {
		t.Errorf("calls = %d, want exactly 1", n)
	}
}

func TestInvoker_FailureMessageShortensUpstreamText(t *testing.T) {
	t.Parallel()

	long := "429 Too Many Requests: " + strings.Repeat("quota exceeded ", 40) + "\n{\"error\":{\"type\":\"rate_limit\"}}"
	inv := pipeline.NewInvoker(&llmmock.Provider{CompleteErr: errors.New(long)})

	_, err := inv.Invoke(context.Background(), "x", pipeline.Params{})
	var cf *pipeline.CompletionFailure
	if !errors.As(err, &cf) {
		t.Fatalf("err = %v, want *CompletionFailure", err)
	}
	if !strings.Contains(cf.Message, "429 Too Many Requests") {
		t.Errorf("Message = %q, want the upstream status", cf.Message)
	}
	if strings.Contains(cf.Message, "rate_limit") || strings.Contains(cf.Message, "\n") {
		t.Errorf("Message = %q, want only the first upstream line", cf.Message)
	}
	if len(cf.Message) > 300 {
		t.Errorf("Message length = %d, want the upstream text shortened", len(cf.Message))
	}
}

func TestInvoker_NilResponseIsFailure(t *testing.T) {
	t.Parallel()

	inv := pipeline.NewInvoker(&llmmock.Provider{})
	_, err := inv.Invoke(context.Background(), "x", pipeline.Params{})
	var cf *pipeline.CompletionFailure
	if !errors.As(err, &cf) {
		t.Fatalf("err = %v, want *CompletionFailure", err)
	}
}

func TestInvoker_OpenBreakerFailsFast(t *testing.T) {
	t.Parallel()

	cb := resilience.NewCircuitBreaker(resilience.Config{Name: "llm", MaxFailures: 1, ResetTimeout: time.Hour})
	p := &llmmock.Provider{CompleteErr: errors.New("down")}
	inv := pipeline.NewInvoker(p, pipeline.WithBreaker(cb))

	_, _ = inv.Invoke(context.Background(), "x", pipeline.Params{})
	_, err := inv.Invoke(context.Background(), "x", pipeline.Params{})

	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	var cf *pipeline.CompletionFailure
	if !errors.As(err, &cf) || !strings.Contains(cf.Message, "temporarily unavailable") {
		t.Errorf("failure = %+v, want unavailable message", cf)
	}
	if n := len(p.Calls()); n != 1 {
		t.Errorf("calls = %d, want 1 (second call rejected by breaker)", n)
	}
}

func TestTranscriber_EmptyAudio(t *testing.T) {
	t.Parallel()

	p := &transcribemock.Provider{Text: "never"}
	tr := pipeline.NewTranscriber(p)

	_, err := tr.Transcribe(context.Background(), transcribe.Audio{})
	var tf *pipeline.TranscriptionFailure
	if !errors.As(err, &tf) {
		t.Fatalf("err = %v, want *TranscriptionFailure", err)
	}
	if !errors.Is(err, transcribe.ErrEmptyAudio) {
		t.Error("want ErrEmptyAudio in chain")
	}
	if p.CallCount() != 0 {
		t.Error("provider called for empty audio")
	}
}

func TestTranscriber_PassesText(t *testing.T) {
	t.Parallel()

	p := &transcribemock.Provider{Text: "Acme Corp, 10 Widget A at $12"}
	tr := pipeline.NewTranscriber(p, pipeline.WithProviderName("whisper"))

	got, err := tr.Transcribe(context.Background(), transcribe.Audio{Data: []byte{1, 2}, Encoding: transcribe.EncodingWAV})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != p.Text {
		t.Errorf("text = %q, want %q", got, p.Text)
	}
}
