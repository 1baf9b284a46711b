package chatports

import (
	"context"
	"time"
)

// Role tags a turn's speaker.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the three recognized values.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is one role-tagged utterance in a conversation. Immutable once
// created; persisted turns are append-only.
type Turn struct {
	Role      Role      `json:"role" toml:"role"`
	Content   string    `json:"content" toml:"content"`
	CreatedAt time.Time `json:"created_at" toml:"created_at"`
}

// TurnStore persists conversation records keyed by conversation id.
//
// Append commits all given turns as one unit: either every turn lands or the
// prior persisted bytes are unchanged. The record is created on first write
// and extended on later writes. Failures wrap ErrPersistence.
//
// Load replays a record in chronological order; a missing record yields an
// empty slice, not an error.
type TurnStore interface {
	Append(ctx context.Context, conversationID string, turns ...Turn) error
	Load(ctx context.Context, conversationID string) ([]Turn, error)
}
