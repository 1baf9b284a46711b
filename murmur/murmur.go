// Package murmur holds application-wide constants shared by the CLI and the
// chat pipeline packages.
package murmur

const (
	DefaultAppName    = "murmur"
	DefaultConfigName = "murmur.toml"

	// DefaultSampleRate is the PCM sample rate agreed between audio capture
	// and transcription. Whisper models expect 16 kHz mono int16.
	DefaultSampleRate = 16000
	DefaultChannels   = 1

	// DefaultCaptureSeconds is how long the microphone records when the
	// caller does not pass --duration.
	DefaultCaptureSeconds = 5
)

// Version is stamped at build time via -ldflags.
var Version = "dev"
