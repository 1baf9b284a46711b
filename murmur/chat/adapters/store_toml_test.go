package adapters

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chatports "github.com/murmurvoice/murmur/murmur/chat/ports"
)

func turnAt(role chatports.Role, content string, at time.Time) chatports.Turn {
	return chatports.Turn{Role: role, Content: content, CreatedAt: at}
}

func TestTOMLStoreRoundTrip(t *testing.T) {
	store, err := NewTOMLTurnStore(t.TempDir())
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	user := turnAt(chatports.RoleUser, "what is the weather", now)
	assistant := turnAt(chatports.RoleAssistant, "no idea, I live in a box", now.Add(time.Second))

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "conv-a", user, assistant))

	turns, err := store.Load(ctx, "conv-a")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, user.Role, turns[0].Role)
	assert.Equal(t, user.Content, turns[0].Content)
	assert.True(t, user.CreatedAt.Equal(turns[0].CreatedAt))
	assert.Equal(t, assistant.Content, turns[1].Content)
}

func TestTOMLStoreAppendAcrossInvocations(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	first, err := NewTOMLTurnStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Append(ctx, "conv-a",
		turnAt(chatports.RoleUser, "one", base),
		turnAt(chatports.RoleAssistant, "two", base.Add(time.Second))))

	// A fresh store over the same directory models a second CLI run.
	second, err := NewTOMLTurnStore(dir)
	require.NoError(t, err)
	require.NoError(t, second.Append(ctx, "conv-a",
		turnAt(chatports.RoleUser, "three", base.Add(2*time.Second)),
		turnAt(chatports.RoleAssistant, "four", base.Add(3*time.Second))))

	turns, err := second.Load(ctx, "conv-a")
	require.NoError(t, err)
	require.Len(t, turns, 4)
	for i, want := range []string{"one", "two", "three", "four"} {
		assert.Equal(t, want, turns[i].Content)
	}
}

func TestTOMLStoreLoadMissingRecord(t *testing.T) {
	store, err := NewTOMLTurnStore(t.TempDir())
	require.NoError(t, err)

	turns, err := store.Load(context.Background(), "never-written")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestTOMLStoreRejectsBadConversationID(t *testing.T) {
	store, err := NewTOMLTurnStore(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"", "../escape", `a/b`, `a\b`} {
		err := store.Append(context.Background(), id, turnAt(chatports.RoleUser, "x", time.Now()))
		assert.ErrorIs(t, err, chatports.ErrPersistence, "id %q", id)
	}
}

func TestTOMLStoreRejectsBadRole(t *testing.T) {
	store, err := NewTOMLTurnStore(t.TempDir())
	require.NoError(t, err)

	err = store.Append(context.Background(), "conv-a", chatports.Turn{Role: "narrator", Content: "x", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, chatports.ErrPersistence)
}

func TestTOMLStoreFailedCommitLeavesRecordIntact(t *testing.T) {
	dir := t.TempDir()
	store, err := NewTOMLTurnStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.Append(ctx, "conv-a", turnAt(chatports.RoleUser, "kept", now)))

	// Make the directory unwritable so the temp file cannot be created.
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	err = store.Append(ctx, "conv-a", turnAt(chatports.RoleUser, "lost", now))
	require.ErrorIs(t, err, chatports.ErrPersistence)

	require.NoError(t, os.Chmod(dir, 0o755))
	turns, err := store.Load(ctx, "conv-a")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "kept", turns[0].Content)
}

func TestTOMLStoreRecordIsReadableTOML(t *testing.T) {
	dir := t.TempDir()
	store, err := NewTOMLTurnStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Append(context.Background(), "conv-a",
		turnAt(chatports.RoleUser, "hello", time.Now().UTC())))

	data, err := os.ReadFile(store.Path("conv-a"))
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "[conversation]")
	assert.Contains(t, text, "[[turns]]")
	assert.Contains(t, text, "conv-a")
	assert.True(t, strings.Contains(text, "role = 'user'") || strings.Contains(text, `role = "user"`))
}
