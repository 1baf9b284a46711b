//go:build !portaudio

package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/murmurvoice/murmur/murmur/audio"
	chatports "github.com/murmurvoice/murmur/murmur/chat/ports"
)

// Microphone stub for builds without the portaudio tag. Capture always
// fails; file input via --audio-file still works.
type Microphone struct {
	sampleRate int
}

func NewMicrophone(sampleRate int) *Microphone {
	return &Microphone{sampleRate: sampleRate}
}

func (m *Microphone) Capture(ctx context.Context, duration time.Duration) (audio.Clip, error) {
	return audio.Clip{}, fmt.Errorf("%w: built without portaudio support (rebuild with -tags portaudio)", chatports.ErrAudioUnavailable)
}

var _ chatports.AudioSource = (*Microphone)(nil)
