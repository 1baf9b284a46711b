package chatports

import (
	"context"

	"github.com/murmurvoice/murmur/murmur/audio"
)

// Segment is one timed span of a transcript.
type Segment struct {
	Text       string
	Start      float64 // seconds from clip start
	End        float64
	Confidence float64
}

// Transcript is the text produced from one clip.
type Transcript struct {
	Text     string
	Language string
	Segments []Segment
}

// Transcriber converts a PCM clip to text. One stateless call per clip, no
// streaming. A successful result always carries non-empty text; anything
// else wraps ErrTranscriptionFailed.
type Transcriber interface {
	Transcribe(ctx context.Context, clip audio.Clip) (Transcript, error)
}
