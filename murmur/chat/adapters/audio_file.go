// Package adapters provides the concrete backends behind the chat ports:
// audio capture, whisper transcription, LLM providers, turn stores, and the
// zerolog tracer.
package adapters

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/murmurvoice/murmur/murmur/audio"
	chatports "github.com/murmurvoice/murmur/murmur/chat/ports"
)

// FileSource is an AudioSource that decodes a complete WAV file. The capture
// duration is ignored; the whole file is returned, resampled to the target
// rate the transcriber expects.
type FileSource struct {
	path       string
	targetRate int
}

// NewFileSource creates a file-backed audio source.
func NewFileSource(path string, targetRate int) *FileSource {
	return &FileSource{path: path, targetRate: targetRate}
}

// Capture reads and decodes the configured file.
func (s *FileSource) Capture(ctx context.Context, _ time.Duration) (audio.Clip, error) {
	if err := ctx.Err(); err != nil {
		return audio.Clip{}, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("%w: reading %s: %v", chatports.ErrAudioUnavailable, s.path, err)
	}

	clip, err := audio.DecodeWAV(data)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("%w: decoding %s: %v", chatports.ErrAudioUnavailable, s.path, err)
	}

	if s.targetRate > 0 && clip.SampleRate != s.targetRate {
		clip = clip.Resample(s.targetRate)
	}

	return clip, nil
}

var _ chatports.AudioSource = (*FileSource)(nil)
