// Package chatports defines the backend contracts the conversation manager
// orchestrates. Each port has at least one adapter plus a test stub; the
// manager depends only on what is declared here.
package chatports

import (
	"context"
	"time"

	"github.com/murmurvoice/murmur/murmur/audio"
)

// AudioSource produces one PCM clip per capture.
//
// The microphone variant blocks for the requested duration at the sample
// rate agreed with the transcriber; the file variant decodes a complete WAV
// file and ignores duration. Failures wrap ErrAudioUnavailable. Cancelling
// ctx aborts a capture in progress without side effects.
type AudioSource interface {
	Capture(ctx context.Context, duration time.Duration) (audio.Clip, error)
}
