//go:build portaudio

package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/murmurvoice/murmur/murmur/audio"
	chatports "github.com/murmurvoice/murmur/murmur/chat/ports"
)

const micFrameSize = 1024

// Microphone is an AudioSource backed by the default PortAudio input device.
// Capture blocks for the requested duration and honors ctx cancellation
// between frames, so an interrupt aborts cleanly with nothing recorded.
type Microphone struct {
	sampleRate int
}

// NewMicrophone creates a microphone source recording at the given rate.
func NewMicrophone(sampleRate int) *Microphone {
	return &Microphone{sampleRate: sampleRate}
}

// Capture records duration worth of mono PCM-16 samples.
func (m *Microphone) Capture(ctx context.Context, duration time.Duration) (audio.Clip, error) {
	if duration <= 0 {
		return audio.Clip{}, fmt.Errorf("%w: capture duration must be positive", chatports.ErrAudioUnavailable)
	}

	if err := portaudio.Initialize(); err != nil {
		return audio.Clip{}, fmt.Errorf("%w: portaudio init: %v", chatports.ErrAudioUnavailable, err)
	}
	defer portaudio.Terminate()

	frame := make([]int16, micFrameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), len(frame), frame)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("%w: opening input stream: %v", chatports.ErrAudioUnavailable, err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return audio.Clip{}, fmt.Errorf("%w: starting input stream: %v", chatports.ErrAudioUnavailable, err)
	}
	defer stream.Stop()

	want := int(float64(m.sampleRate) * duration.Seconds())
	samples := make([]int16, 0, want)

	for len(samples) < want {
		if err := ctx.Err(); err != nil {
			return audio.Clip{}, err
		}
		if err := stream.Read(); err != nil {
			return audio.Clip{}, fmt.Errorf("%w: reading input stream: %v", chatports.ErrAudioUnavailable, err)
		}
		samples = append(samples, frame...)
	}

	return audio.Clip{Samples: samples[:want], SampleRate: m.sampleRate}, nil
}

var _ chatports.AudioSource = (*Microphone)(nil)
