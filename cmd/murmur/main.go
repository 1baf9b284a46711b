// Command murmur is a voice chat CLI for locally hosted models: it records
// speech, transcribes it through a whisper server, queries LM Studio, and
// appends the exchange to a per-conversation record.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/murmurvoice/murmur/murmur"
	"github.com/murmurvoice/murmur/murmur/chat"
	"github.com/murmurvoice/murmur/murmur/chat/adapters"
	chatports "github.com/murmurvoice/murmur/murmur/chat/ports"
	"github.com/murmurvoice/murmur/murmur/config"
)

var (
	flagConfig         string
	flagAudioFile      string
	flagDuration       float64
	flagSystemPrompt   string
	flagConversationID string
)

func main() {
	root := &cobra.Command{
		Use:           murmur.DefaultAppName,
		Short:         "Voice chat against locally hosted models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Record one utterance, query the model, persist the exchange",
		RunE:  runChat,
	}
	chatCmd.Flags().StringVar(&flagConfig, "config", "", "path to the TOML configuration file")
	chatCmd.Flags().StringVar(&flagAudioFile, "audio-file", "", "WAV file used instead of the microphone")
	chatCmd.Flags().Float64Var(&flagDuration, "duration", murmur.DefaultCaptureSeconds, "seconds to capture from the microphone (ignored for audio files)")
	chatCmd.Flags().StringVar(&flagSystemPrompt, "system-prompt", "", "system prompt sent once ahead of the conversation")
	chatCmd.Flags().StringVar(&flagConversationID, "conversation-id", "", "identifier for the conversation session (generated when absent)")
	chatCmd.MarkFlagRequired("config")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the murmur version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(murmur.Version)
		},
	}

	root.AddCommand(chatCmd, versionCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(flagConfig)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging.Level)

	// SIGINT during capture aborts cleanly: nothing transcribed, nothing
	// persisted.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory := chat.NewFactory(cfg, logger)
	if err := factory.Probe(ctx); err != nil {
		return err
	}

	backends, err := factory.CreateBackends(flagAudioFile)
	if err != nil {
		return err
	}

	conversationID := flagConversationID
	if conversationID == "" {
		conversationID = chat.NewConversationID()
	}
	logger.Info().Str("conversation_id", conversationID).Msg("starting turn")

	manager := chat.NewConversationManager(conversationID, backends, factory.CreatePolicy(), factory.CreateOptions(), flagSystemPrompt)
	if err := manager.Resume(ctx); err != nil {
		return err
	}

	duration := time.Duration(flagDuration * float64(time.Second))
	exchange, err := manager.RunTurn(ctx, duration)

	// The reply belongs to the user even when committing it failed.
	if exchange != nil {
		fmt.Println("User:", exchange.User.Content)
		fmt.Println("Assistant:", exchange.Assistant.Content)
	}
	if err != nil {
		return describeFailure(err)
	}

	if store, ok := backends.Store.(*adapters.TOMLTurnStore); ok {
		fmt.Println("Conversation saved to", store.Path(conversationID))
	}
	return nil
}

// describeFailure prefixes the error with its taxonomy kind so the CLI
// reports what failed, not just how.
func describeFailure(err error) error {
	switch {
	case errors.Is(err, chatports.ErrAudioUnavailable):
		return fmt.Errorf("audio capture failed: %w", err)
	case errors.Is(err, chatports.ErrTranscriptionFailed):
		return fmt.Errorf("transcription failed: %w", err)
	case errors.Is(err, chatports.ErrLLMUnreachable):
		return fmt.Errorf("model endpoint unreachable after retries: %w", err)
	case errors.Is(err, chatports.ErrLLMRejected):
		return fmt.Errorf("model endpoint rejected the request: %w", err)
	case errors.Is(err, chatports.ErrPersistence):
		return fmt.Errorf("failed to persist the exchange: %w", err)
	}
	return err
}

func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(writer).Level(parsed).With().Timestamp().Logger()
}
