package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/MrWong99/salesnote/pkg/provider/transcribe"
)

// NoteBuffer accumulates a note from typed text and dictated clips before
// it is processed. It is safe for concurrent use.
type NoteBuffer struct {
	mu   sync.Mutex
	text string
}

// Set replaces the buffered text.
func (b *NoteBuffer) Set(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = strings.TrimSpace(text)
}

// Append adds text on a new line. Blank text is ignored.
func (b *NoteBuffer) Append(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.text == "" {
		b.text = text
		return
	}
	b.text += "\n" + text
}

// String returns the buffered note.
func (b *NoteBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// Take returns the buffered note and empties the buffer.
func (b *NoteBuffer) Take() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.text
	b.text = ""
	return s
}

// AppendTranscription transcribes audio and appends the text. On failure
// the buffer is left exactly as it was and the error is a
// [*TranscriptionFailure].
func (b *NoteBuffer) AppendTranscription(ctx context.Context, t *Transcriber, audio transcribe.Audio) (string, error) {
	text, err := t.Transcribe(ctx, audio)
	if err != nil {
		return "", err
	}
	b.Append(text)
	return text, nil
}
