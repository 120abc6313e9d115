package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/salesnote/internal/pipeline"
	"github.com/MrWong99/salesnote/pkg/provider/transcribe"
	transcribemock "github.com/MrWong99/salesnote/pkg/provider/transcribe/mock"
)

func TestNoteBuffer_AppendAndTake(t *testing.T) {
	t.Parallel()

	var b pipeline.NoteBuffer
	b.Set("  Acme Corp ")
	b.Append("")
	b.Append("10 Widget A at $12")

	if got, want := b.String(), "Acme Corp\n10 Widget A at $12"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := b.Take(); got != "Acme Corp\n10 Widget A at $12" {
		t.Errorf("Take() = %q", got)
	}
	if b.String() != "" {
		t.Error("buffer not empty after Take")
	}
}

func TestNoteBuffer_AppendTranscription(t *testing.T) {
	t.Parallel()

	p := &transcribemock.Provider{Text: "follow up Friday"}
	tr := pipeline.NewTranscriber(p)

	var b pipeline.NoteBuffer
	b.Set("Acme Corp")
	text, err := b.AppendTranscription(context.Background(), tr, transcribe.Audio{Data: []byte{0}})
	if err != nil {
		t.Fatalf("AppendTranscription: %v", err)
	}
	if text != "follow up Friday" {
		t.Errorf("text = %q", text)
	}
	if got := b.String(); got != "Acme Corp\nfollow up Friday" {
		t.Errorf("buffer = %q", got)
	}
}

func TestNoteBuffer_FailedTranscriptionLeavesBuffer(t *testing.T) {
	t.Parallel()

	p := &transcribemock.Provider{Err: errors.New("service down")}
	tr := pipeline.NewTranscriber(p)

	var b pipeline.NoteBuffer
	b.Set("typed so far")
	_, err := b.AppendTranscription(context.Background(), tr, transcribe.Audio{Data: []byte{0}})

	var tf *pipeline.TranscriptionFailure
	if !errors.As(err, &tf) {
		t.Fatalf("err = %v, want *TranscriptionFailure", err)
	}
	if got := b.String(); got != "typed so far" {
		t.Errorf("buffer = %q, want unchanged", got)
	}
}
