package chatports

import "errors"

// Failure taxonomy for the pipeline. Adapters wrap the matching sentinel so
// the manager can classify failures with errors.Is regardless of backend.
var (
	// ErrAudioUnavailable means the capture device could not be opened or
	// the audio file could not be decoded.
	ErrAudioUnavailable = errors.New("audio unavailable")

	// ErrTranscriptionFailed means the speech model could not produce text.
	// Never retried: the same samples cannot transcribe differently.
	ErrTranscriptionFailed = errors.New("transcription failed")

	// ErrLLMUnreachable is a transport-level failure talking to the model
	// endpoint. The manager retries it a bounded number of times.
	ErrLLMUnreachable = errors.New("llm unreachable")

	// ErrLLMRejected means the endpoint answered with a non-success status.
	// Never retried: a malformed request will not fix itself.
	ErrLLMRejected = errors.New("llm rejected request")

	// ErrPersistence means the turn record could not be committed. Fatal for
	// the invocation; the prior on-disk state is left unchanged.
	ErrPersistence = errors.New("persistence failed")
)
