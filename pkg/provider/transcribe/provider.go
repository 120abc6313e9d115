// Package transcribe defines the Provider interface for batch speech-to-text
// backends used to turn a dictated sales note into text.
//
// A transcription is a single request/response: the caller hands over a
// complete audio clip and receives the recognised text. There are no partial
// results. Implementations must be safe for concurrent use.
package transcribe

import (
	"context"
	"errors"
	"strings"
)

// Supported audio encodings.
const (
	// EncodingPCM16 is raw 16-bit signed little-endian PCM. SampleRate and
	// Channels on Audio describe its layout.
	EncodingPCM16 = "pcm16"
	EncodingWAV   = "wav"
	EncodingMP3   = "mp3"
	EncodingOGG   = "ogg"
	EncodingWebM  = "webm"
	EncodingM4A   = "m4a"
	EncodingFLAC  = "flac"
)

// ErrEmptyAudio is returned when a clip carries no data.
var ErrEmptyAudio = errors.New("transcribe: audio is empty")

// Audio is a complete recorded clip.
type Audio struct {
	// Data holds the encoded audio bytes.
	Data []byte

	// Encoding names the container/codec of Data (see the Encoding constants).
	// An empty value is treated as EncodingWAV.
	Encoding string

	// SampleRate in Hz. Only consulted for EncodingPCM16; zero means 16000.
	SampleRate int

	// Channels count. Only consulted for EncodingPCM16; zero means mono.
	Channels int

	// Language is an optional BCP-47 hint ("en", "de-DE"). Empty lets the
	// provider auto-detect.
	Language string
}

// Provider is the abstraction over any transcription backend.
type Provider interface {
	// Transcribe converts the clip to text. The returned text is trimmed. An
	// empty string with a nil error means the clip contained no speech.
	Transcribe(ctx context.Context, audio Audio) (string, error)
}

// NormalizedEncoding returns the lower-cased encoding, defaulting to wav.
func (a Audio) NormalizedEncoding() string {
	enc := strings.ToLower(strings.TrimSpace(a.Encoding))
	if enc == "" {
		return EncodingWAV
	}
	return enc
}

// MIMEType returns the MIME type for the clip's encoding. Raw PCM is reported
// as audio/wav because providers receive it wrapped in a WAV container.
func (a Audio) MIMEType() string {
	switch a.NormalizedEncoding() {
	case EncodingPCM16, EncodingWAV:
		return "audio/wav"
	case EncodingMP3:
		return "audio/mpeg"
	case EncodingOGG:
		return "audio/ogg"
	case EncodingWebM:
		return "audio/webm"
	case EncodingM4A:
		return "audio/mp4"
	case EncodingFLAC:
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

// Filename returns a synthetic upload filename whose extension matches the
// encoding. Multipart APIs use the extension to sniff the format.
func (a Audio) Filename() string {
	enc := a.NormalizedEncoding()
	if enc == EncodingPCM16 {
		enc = EncodingWAV
	}
	return "note." + enc
}

// Container returns the clip ready for upload. Raw PCM is wrapped in a WAV
// header; every other encoding is returned unchanged.
func (a Audio) Container() []byte {
	if a.NormalizedEncoding() != EncodingPCM16 {
		return a.Data
	}
	sr := a.SampleRate
	if sr <= 0 {
		sr = 16000
	}
	ch := a.Channels
	if ch <= 0 {
		ch = 1
	}
	return EncodeWAV(a.Data, sr, ch)
}
