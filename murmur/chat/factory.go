package chat

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/murmurvoice/murmur/murmur/chat/adapters"
	chatports "github.com/murmurvoice/murmur/murmur/chat/ports"
	"github.com/murmurvoice/murmur/murmur/config"
)

// Factory wires concrete backends from configuration.
type Factory struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// NewFactory creates a factory for the given configuration.
func NewFactory(cfg *config.Config, logger zerolog.Logger) *Factory {
	return &Factory{cfg: cfg, logger: logger}
}

// CreateBackends builds the full backend set. A non-empty audioFile selects
// the file audio source; otherwise the microphone is used.
func (f *Factory) CreateBackends(audioFile string) (Backends, error) {
	transcriber, err := f.createTranscriber()
	if err != nil {
		return Backends{}, err
	}

	provider, err := f.createProvider()
	if err != nil {
		return Backends{}, err
	}

	store, err := f.createStore()
	if err != nil {
		return Backends{}, err
	}

	return Backends{
		Source:      f.createSource(audioFile),
		Transcriber: transcriber,
		Provider:    provider,
		Store:       store,
		Tracer:      adapters.NewZerologTracer(f.logger),
	}, nil
}

// CreatePolicy builds the retry policy from configuration.
func (f *Factory) CreatePolicy() Policy {
	policy := Policy{
		LLMRetries:   f.cfg.Chat.LLMRetries,
		RetryBackoff: f.cfg.Chat.RetryBackoff,
	}
	if policy.RetryBackoff <= 0 {
		policy.RetryBackoff = DefaultPolicy().RetryBackoff
	}
	return policy
}

// CreateOptions builds the decoding options from configuration.
func (f *Factory) CreateOptions() chatports.Options {
	return chatports.Options{
		Temperature: f.cfg.LMStudio.Temperature,
		MaxTokens:   f.cfg.LMStudio.MaxTokens,
	}
}

func (f *Factory) createSource(audioFile string) chatports.AudioSource {
	if audioFile != "" {
		return adapters.NewFileSource(audioFile, f.cfg.Audio.SampleRate)
	}
	return adapters.NewMicrophone(f.cfg.Audio.SampleRate)
}

func (f *Factory) createTranscriber() (chatports.Transcriber, error) {
	timeout := f.cfg.Whisper.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	transcriber, err := adapters.NewWhisperTranscriber(f.cfg.Whisper.BaseURL, f.cfg.Whisper.Model, f.cfg.Whisper.Language, timeout)
	if err != nil {
		return nil, fmt.Errorf("creating transcriber: %w", err)
	}
	return transcriber, nil
}

func (f *Factory) createProvider() (chatports.Provider, error) {
	switch f.cfg.Chat.Provider {
	case "llama":
		provider, err := adapters.NewLlamaProvider(f.cfg.Llama.ModelPath, f.cfg.Llama.ContextSize)
		if err != nil {
			return nil, fmt.Errorf("creating llama provider: %w", err)
		}
		return provider, nil
	default:
		timeout := f.cfg.LMStudio.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		return adapters.NewLMStudioProvider(f.cfg.LMStudio.BaseURL, f.cfg.LMStudio.Model, timeout), nil
	}
}

func (f *Factory) createStore() (chatports.TurnStore, error) {
	switch f.cfg.Storage.Backend {
	case "libsql":
		path := f.cfg.Storage.LibSQLPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(f.cfg.Logging.OutputDir, path)
		}
		store, err := adapters.OpenLibSQLTurnStore(path)
		if err != nil {
			return nil, fmt.Errorf("opening libsql store: %w", err)
		}
		return store, nil
	default:
		store, err := adapters.NewTOMLTurnStore(f.cfg.Logging.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("opening toml store: %w", err)
		}
		return store, nil
	}
}
