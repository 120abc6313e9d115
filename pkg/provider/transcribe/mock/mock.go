// Package mock provides a test double for the transcribe.Provider interface.
//
// Example:
//
//	p := &mock.Provider{Text: "Acme Corp, 10 Widget A at $12"}
//	text, _ := p.Transcribe(ctx, audio)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/salesnote/pkg/provider/transcribe"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Audio is the clip passed to Transcribe.
	Audio transcribe.Audio
}

// Provider is a mock implementation of transcribe.Provider.
type Provider struct {
	mu sync.Mutex

	// Text is returned by Transcribe.
	Text string

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Calls records every invocation of Transcribe in order.
	Calls []TranscribeCall
}

// Transcribe records the call and returns Text, Err.
func (p *Provider) Transcribe(ctx context.Context, audio transcribe.Audio) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, TranscribeCall{Ctx: ctx, Audio: audio})
	if p.Err != nil {
		return "", p.Err
	}
	return p.Text, nil
}

// CallCount returns how many times Transcribe was called.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Response configuration is not changed.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

var _ transcribe.Provider = (*Provider)(nil)
