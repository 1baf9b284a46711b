package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murmurvoice/murmur/murmur/audio"
	chatports "github.com/murmurvoice/murmur/murmur/chat/ports"
)

type stubSource struct {
	clip audio.Clip
	err  error
}

func (s *stubSource) Capture(ctx context.Context, duration time.Duration) (audio.Clip, error) {
	return s.clip, s.err
}

type stubTranscriber struct {
	text string
	err  error
}

func (s *stubTranscriber) Transcribe(ctx context.Context, clip audio.Clip) (chatports.Transcript, error) {
	if s.err != nil {
		return chatports.Transcript{}, s.err
	}
	return chatports.Transcript{Text: s.text}, nil
}

type stubProvider struct {
	reply string
	errs  []error // consumed one per call; nil entry means success
	calls []chatports.PromptInput
}

func (s *stubProvider) Complete(ctx context.Context, in chatports.PromptInput, opts chatports.Options) (chatports.Completion, error) {
	s.calls = append(s.calls, in)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return chatports.Completion{}, err
		}
	}
	return chatports.Completion{Text: s.reply}, nil
}

type memoryStore struct {
	turns     map[string][]chatports.Turn
	appendErr error
	loadErr   error
	appends   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{turns: map[string][]chatports.Turn{}}
}

func (s *memoryStore) Append(ctx context.Context, conversationID string, turns ...chatports.Turn) error {
	s.appends++
	if s.appendErr != nil {
		return s.appendErr
	}
	s.turns[conversationID] = append(s.turns[conversationID], turns...)
	return nil
}

func (s *memoryStore) Load(ctx context.Context, conversationID string) ([]chatports.Turn, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.turns[conversationID], nil
}

func testClip() audio.Clip {
	return audio.Clip{Samples: make([]int16, 16000), SampleRate: 16000}
}

func newTestManager(b Backends, system string) *ConversationManager {
	policy := Policy{LLMRetries: 2, RetryBackoff: time.Millisecond}
	return NewConversationManager("conv-1", b, policy, chatports.Options{}, system)
}

func TestRunTurnHappyPath(t *testing.T) {
	store := newMemoryStore()
	b := Backends{
		Source:      &stubSource{clip: testClip()},
		Transcriber: &stubTranscriber{text: "hello there"},
		Provider:    &stubProvider{reply: "hi, how can I help?"},
		Store:       store,
	}

	m := newTestManager(b, "")
	exchange, err := m.RunTurn(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, exchange)

	assert.Equal(t, StateDone, m.State())
	assert.Equal(t, chatports.RoleUser, exchange.User.Role)
	assert.Equal(t, "hello there", exchange.User.Content)
	assert.Equal(t, chatports.RoleAssistant, exchange.Assistant.Role)
	assert.Equal(t, "hi, how can I help?", exchange.Assistant.Content)

	persisted := store.turns["conv-1"]
	require.Len(t, persisted, 2)
	assert.Equal(t, exchange.User, persisted[0])
	assert.Equal(t, exchange.Assistant, persisted[1])
	assert.Len(t, m.History(), 2)
}

func TestRunTurnAudioUnavailable(t *testing.T) {
	store := newMemoryStore()
	b := Backends{
		Source:      &stubSource{err: fmt.Errorf("%w: no default device", chatports.ErrAudioUnavailable)},
		Transcriber: &stubTranscriber{text: "unused"},
		Provider:    &stubProvider{reply: "unused"},
		Store:       store,
	}

	m := newTestManager(b, "")
	exchange, err := m.RunTurn(context.Background(), time.Second)
	require.Error(t, err)
	assert.Nil(t, exchange)
	assert.ErrorIs(t, err, chatports.ErrAudioUnavailable)
	assert.Equal(t, StateFailed, m.State())
	assert.Zero(t, store.appends)
}

func TestRunTurnTranscriptionFailedNotRetried(t *testing.T) {
	transcriber := &stubTranscriber{err: fmt.Errorf("%w: decode error", chatports.ErrTranscriptionFailed)}
	provider := &stubProvider{reply: "unused"}
	b := Backends{
		Source:      &stubSource{clip: testClip()},
		Transcriber: transcriber,
		Provider:    provider,
		Store:       newMemoryStore(),
	}

	m := newTestManager(b, "")
	_, err := m.RunTurn(context.Background(), time.Second)
	assert.ErrorIs(t, err, chatports.ErrTranscriptionFailed)
	assert.Equal(t, StateFailed, m.State())
	assert.Empty(t, provider.calls)
	assert.Empty(t, m.History())
}

func TestRunTurnEmptyTranscriptFailsTurn(t *testing.T) {
	b := Backends{
		Source:      &stubSource{clip: testClip()},
		Transcriber: &stubTranscriber{text: "   \n"},
		Provider:    &stubProvider{reply: "unused"},
		Store:       newMemoryStore(),
	}

	m := newTestManager(b, "")
	_, err := m.RunTurn(context.Background(), time.Second)
	assert.ErrorIs(t, err, chatports.ErrTranscriptionFailed)
	assert.Equal(t, StateFailed, m.State())
}

func TestRunTurnUnreachableRetriedThenFails(t *testing.T) {
	unreachable := fmt.Errorf("%w: connection refused", chatports.ErrLLMUnreachable)
	provider := &stubProvider{errs: []error{unreachable, unreachable, unreachable}}
	store := newMemoryStore()
	b := Backends{
		Source:      &stubSource{clip: testClip()},
		Transcriber: &stubTranscriber{text: "hello"},
		Provider:    provider,
		Store:       store,
	}

	m := newTestManager(b, "")
	exchange, err := m.RunTurn(context.Background(), time.Second)
	require.Error(t, err)
	assert.Nil(t, exchange)
	assert.ErrorIs(t, err, chatports.ErrLLMUnreachable)

	// Initial attempt plus LLMRetries.
	assert.Len(t, provider.calls, 3)
	assert.Zero(t, store.appends)
	assert.Empty(t, m.History(), "user turn must be rolled back")
	assert.Equal(t, StateFailed, m.State())
}

func TestRunTurnUnreachableRecoversWithinRetryLimit(t *testing.T) {
	unreachable := fmt.Errorf("%w: connection refused", chatports.ErrLLMUnreachable)
	provider := &stubProvider{reply: "recovered", errs: []error{unreachable, nil}}
	store := newMemoryStore()
	b := Backends{
		Source:      &stubSource{clip: testClip()},
		Transcriber: &stubTranscriber{text: "hello"},
		Provider:    provider,
		Store:       store,
	}

	m := newTestManager(b, "")
	exchange, err := m.RunTurn(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "recovered", exchange.Assistant.Content)
	assert.Len(t, provider.calls, 2)
	assert.Len(t, store.turns["conv-1"], 2)
}

func TestRunTurnRejectedNeverRetried(t *testing.T) {
	rejected := fmt.Errorf("%w: status 400", chatports.ErrLLMRejected)
	provider := &stubProvider{errs: []error{rejected}}
	b := Backends{
		Source:      &stubSource{clip: testClip()},
		Transcriber: &stubTranscriber{text: "hello"},
		Provider:    provider,
		Store:       newMemoryStore(),
	}

	m := newTestManager(b, "")
	_, err := m.RunTurn(context.Background(), time.Second)
	assert.ErrorIs(t, err, chatports.ErrLLMRejected)
	assert.Len(t, provider.calls, 1)
	assert.Empty(t, m.History())
}

func TestRunTurnPersistFailureReturnsExchange(t *testing.T) {
	store := newMemoryStore()
	store.appendErr = fmt.Errorf("%w: disk full", chatports.ErrPersistence)
	b := Backends{
		Source:      &stubSource{clip: testClip()},
		Transcriber: &stubTranscriber{text: "hello"},
		Provider:    &stubProvider{reply: "hi"},
		Store:       store,
	}

	m := newTestManager(b, "")
	exchange, err := m.RunTurn(context.Background(), time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, chatports.ErrPersistence)

	// The reply was already generated; the caller still gets it.
	require.NotNil(t, exchange)
	assert.Equal(t, "hi", exchange.Assistant.Content)

	assert.Empty(t, m.History(), "unpersisted turns must not linger in memory")
	assert.Equal(t, StateFailed, m.State())
}

func TestRunTurnPromptCarriesOrderedHistoryAndSystem(t *testing.T) {
	provider := &stubProvider{reply: "second reply"}
	store := newMemoryStore()
	store.turns["conv-1"] = []chatports.Turn{
		{Role: chatports.RoleUser, Content: "first question", CreatedAt: time.Now().UTC()},
		{Role: chatports.RoleAssistant, Content: "first answer", CreatedAt: time.Now().UTC()},
	}

	b := Backends{
		Source:      &stubSource{clip: testClip()},
		Transcriber: &stubTranscriber{text: "second question"},
		Provider:    provider,
		Store:       store,
	}

	m := newTestManager(b, "be terse")
	require.NoError(t, m.Resume(context.Background()))

	_, err := m.RunTurn(context.Background(), time.Second)
	require.NoError(t, err)

	require.Len(t, provider.calls, 1)
	input := provider.calls[0]
	assert.Equal(t, "be terse", input.System)

	require.Len(t, input.Messages, 3)
	assert.Equal(t, chatports.RoleUser, input.Messages[0].Role)
	assert.Equal(t, "first question", input.Messages[0].Content)
	assert.Equal(t, chatports.RoleAssistant, input.Messages[1].Role)
	assert.Equal(t, "first answer", input.Messages[1].Content)
	assert.Equal(t, "second question", input.Messages[2].Content)

	// System prompt lives outside the record.
	for _, turn := range store.turns["conv-1"] {
		assert.NotEqual(t, chatports.RoleSystem, turn.Role)
	}
}

func TestRunTurnTwiceExtendsHistory(t *testing.T) {
	provider := &stubProvider{reply: "reply"}
	store := newMemoryStore()
	b := Backends{
		Source:      &stubSource{clip: testClip()},
		Transcriber: &stubTranscriber{text: "question"},
		Provider:    provider,
		Store:       store,
	}

	m := newTestManager(b, "")
	_, err := m.RunTurn(context.Background(), time.Second)
	require.NoError(t, err)
	_, err = m.RunTurn(context.Background(), time.Second)
	require.NoError(t, err)

	assert.Len(t, m.History(), 4)
	assert.Len(t, store.turns["conv-1"], 4)

	// The second query saw the first exchange.
	require.Len(t, provider.calls, 2)
	assert.Len(t, provider.calls[1].Messages, 3)
}

func TestRunTurnRejectsWhileInFlight(t *testing.T) {
	m := newTestManager(Backends{Store: newMemoryStore()}, "")
	m.state = StateCapturing

	_, err := m.RunTurn(context.Background(), time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "turn already in progress")
}

func TestResumePropagatesStoreError(t *testing.T) {
	store := newMemoryStore()
	store.loadErr = errors.New("corrupt record")
	m := newTestManager(Backends{Store: store}, "")

	err := m.Resume(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conv-1")
}

func TestNewConversationIDUnique(t *testing.T) {
	a := NewConversationID()
	b := NewConversationID()
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^\d{8}T\d{6}-[0-9a-f]{8}$`, a)
}
