// Package llm defines the Provider interface for the text completion backend.
//
// A provider wraps a remote or local model API (OpenAI, Anthropic, Gemini, a
// local Ollama instance, ...) and exposes one blocking completion call. The
// extraction pipeline sends exactly one request per processing run and
// consumes only the returned text, so the interface deliberately carries no
// streaming or tool-calling surface.
//
// Implementors must be safe for concurrent use.
package llm

import "context"

// CompletionRequest carries everything the model needs to produce a response.
// Callers should treat a zero-value request as invalid; at minimum Messages
// must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The extraction pipeline sends a
	// single "user" message holding the composed prompt.
	Messages []Message

	// SystemPrompt is an optional high-priority instruction injected before the
	// messages. Providers without a dedicated system field prepend it as a
	// "system"-role message.
	SystemPrompt string

	// Model optionally overrides the model the provider was constructed with.
	// Empty means use the provider default.
	Model string

	// Temperature controls output randomness in the range [0.0, 2.0]. The
	// extraction pipeline keeps it low so the model preserves literal values.
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default.
	MaxTokens int
}

// CompletionResponse is returned by [Provider.Complete].
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Usage holds token accounting information returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Provider is the abstraction over any completion backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled before the
	// completion arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata about the configured model. The
	// result is constant for the lifetime of the provider.
	Capabilities() ModelCapabilities
}
