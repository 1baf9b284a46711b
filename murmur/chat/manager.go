// Package chat implements the conversation orchestration layer: one manager
// owns a session's history and sequences capture, transcription, the LLM
// query, and persistence across pluggable backends.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	chatports "github.com/murmurvoice/murmur/murmur/chat/ports"
)

// State tracks where a turn is in the pipeline.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateTranscribing
	StateQuerying
	StatePersisting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateTranscribing:
		return "transcribing"
	case StateQuerying:
		return "querying"
	case StatePersisting:
		return "persisting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Policy bounds the manager's retry behavior. Only ErrLLMUnreachable is ever
// retried; everything else fails the turn on first occurrence.
type Policy struct {
	LLMRetries   int           // attempts beyond the first
	RetryBackoff time.Duration // fixed delay between attempts
}

// DefaultPolicy returns the stock retry bounds.
func DefaultPolicy() Policy {
	return Policy{LLMRetries: 2, RetryBackoff: 500 * time.Millisecond}
}

// Backends groups the ports a manager orchestrates.
type Backends struct {
	Source      chatports.AudioSource
	Transcriber chatports.Transcriber
	Provider    chatports.Provider
	Store       chatports.TurnStore
	Tracer      chatports.Tracer
}

// Exchange is the user/assistant turn pair produced by one successful query.
type Exchange struct {
	User      chatports.Turn
	Assistant chatports.Turn
}

// ConversationManager owns one session's history for the process lifetime.
// It is not safe for concurrent use; the pipeline is strictly sequential.
type ConversationManager struct {
	id       string
	backends Backends
	policy   Policy
	options  chatports.Options
	system   string

	history []chatports.Turn
	state   State
}

// NewConversationManager creates a manager for the given session. The system
// prompt, when non-empty, is sent once per completion ahead of the history
// and is never persisted.
func NewConversationManager(conversationID string, b Backends, policy Policy, options chatports.Options, systemPrompt string) *ConversationManager {
	if b.Tracer == nil {
		b.Tracer = nopTracer{}
	}
	return &ConversationManager{
		id:       conversationID,
		backends: b,
		policy:   policy,
		options:  options,
		system:   strings.TrimSpace(systemPrompt),
		state:    StateIdle,
	}
}

// ConversationID returns the session's identifier.
func (m *ConversationManager) ConversationID() string { return m.id }

// State returns the manager's current pipeline state.
func (m *ConversationManager) State() State { return m.state }

// History returns a copy of the in-memory history.
func (m *ConversationManager) History() []chatports.Turn {
	out := make([]chatports.Turn, len(m.history))
	copy(out, m.history)
	return out
}

// Resume seeds the in-memory history from the persisted record, so a session
// spanning several CLI invocations extends one dialogue instead of starting
// over. A missing record leaves the history empty.
func (m *ConversationManager) Resume(ctx context.Context) error {
	turns, err := m.backends.Store.Load(ctx, m.id)
	if err != nil {
		return fmt.Errorf("resuming conversation %s: %w", m.id, err)
	}
	m.history = turns
	return nil
}

// RunTurn executes one full pipeline pass: capture, transcribe, query,
// persist. On success the returned exchange has been committed to the store.
// A persistence failure still returns the exchange (the reply was already
// generated and belongs to the caller) alongside the error, with the
// in-memory history rolled back so a retried invocation does not carry a
// dangling user turn.
func (m *ConversationManager) RunTurn(ctx context.Context, captureDuration time.Duration) (*Exchange, error) {
	if m.state != StateIdle && m.state != StateDone {
		return nil, fmt.Errorf("turn already in progress (state %s)", m.state)
	}

	ctx, finish := m.backends.Tracer.StartSpan(ctx, "turn", map[string]any{
		"conversation_id": m.id,
		"history_len":     len(m.history),
	})

	exchange, err := m.runTurn(ctx, captureDuration)
	finish(err)
	return exchange, err
}

func (m *ConversationManager) runTurn(ctx context.Context, captureDuration time.Duration) (*Exchange, error) {
	// Capturing
	m.state = StateCapturing
	captureCtx, finishCapture := m.backends.Tracer.StartSpan(ctx, "capture", map[string]any{"duration": captureDuration.String()})
	clip, err := m.backends.Source.Capture(captureCtx, captureDuration)
	finishCapture(err)
	if err != nil {
		return nil, m.fail(err)
	}

	// Transcribing
	m.state = StateTranscribing
	transcribeCtx, finishTranscribe := m.backends.Tracer.StartSpan(ctx, "transcribe", map[string]any{"clip_duration": clip.Duration().String()})
	transcript, err := m.backends.Transcriber.Transcribe(transcribeCtx, clip)
	finishTranscribe(err)
	if err != nil {
		return nil, m.fail(err)
	}
	if strings.TrimSpace(transcript.Text) == "" {
		return nil, m.fail(fmt.Errorf("%w: transcriber returned empty text", chatports.ErrTranscriptionFailed))
	}

	// Querying
	m.state = StateQuerying
	checkpoint := len(m.history)
	userTurn := chatports.Turn{Role: chatports.RoleUser, Content: transcript.Text, CreatedAt: time.Now().UTC()}
	m.history = append(m.history, userTurn)

	completion, err := m.complete(ctx)
	if err != nil {
		m.history = m.history[:checkpoint]
		return nil, m.fail(err)
	}

	// Persisting
	m.state = StatePersisting
	assistantTurn := chatports.Turn{Role: chatports.RoleAssistant, Content: completion.Text, CreatedAt: time.Now().UTC()}
	m.history = append(m.history, assistantTurn)
	exchange := &Exchange{User: userTurn, Assistant: assistantTurn}

	persistCtx, finishPersist := m.backends.Tracer.StartSpan(ctx, "persist", map[string]any{"turns": 2})
	err = m.backends.Store.Append(persistCtx, m.id, userTurn, assistantTurn)
	finishPersist(err)
	if err != nil {
		m.history = m.history[:checkpoint]
		return exchange, m.fail(err)
	}

	m.state = StateDone
	return exchange, nil
}

// complete calls the provider with the full ordered history, retrying only
// transport failures, a bounded number of times with a fixed backoff.
func (m *ConversationManager) complete(ctx context.Context) (chatports.Completion, error) {
	input := chatports.PromptInput{System: m.system, Messages: m.promptMessages()}

	var completion chatports.Completion
	backoff := retry.WithMaxRetries(uint64(m.policy.LLMRetries), retry.NewConstant(m.policy.RetryBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		queryCtx, finishQuery := m.backends.Tracer.StartSpan(ctx, "query", map[string]any{"messages": len(input.Messages)})
		result, err := m.backends.Provider.Complete(queryCtx, input, m.options)
		finishQuery(err)
		if err != nil {
			if errors.Is(err, chatports.ErrLLMUnreachable) {
				return retry.RetryableError(err)
			}
			return err
		}
		completion = result
		return nil
	})
	if err != nil {
		return chatports.Completion{}, err
	}
	return completion, nil
}

func (m *ConversationManager) promptMessages() []chatports.PromptMessage {
	messages := make([]chatports.PromptMessage, 0, len(m.history))
	for _, turn := range m.history {
		messages = append(messages, chatports.PromptMessage{Role: turn.Role, Content: turn.Content})
	}
	return messages
}

func (m *ConversationManager) fail(err error) error {
	m.state = StateFailed
	return err
}

// nopTracer keeps the manager's tracing calls unconditional.
type nopTracer struct{}

func (nopTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	return ctx, func(error) {}
}

func (nopTracer) Event(ctx context.Context, name string, attrs map[string]any) {}
