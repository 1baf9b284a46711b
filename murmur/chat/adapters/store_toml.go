package adapters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	chatports "github.com/murmurvoice/murmur/murmur/chat/ports"
)

// TOMLTurnStore persists one human-readable TOML record per conversation id
// under a configured directory. Writes are all-or-nothing: the new document
// is rendered to a temp file in the same directory, fsynced, then renamed
// over the record, so an interrupted write leaves the prior bytes untouched.
type TOMLTurnStore struct {
	dir string
}

// tomlRecord is the on-disk document shape.
type tomlRecord struct {
	Conversation tomlHeader       `toml:"conversation"`
	Turns        []chatports.Turn `toml:"turns"`
}

type tomlHeader struct {
	ID        string    `toml:"id"`
	CreatedAt time.Time `toml:"created_at"`
}

// NewTOMLTurnStore creates the store, making the output directory if needed.
func NewTOMLTurnStore(dir string) (*TOMLTurnStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating output dir %s: %v", chatports.ErrPersistence, dir, err)
	}
	return &TOMLTurnStore{dir: dir}, nil
}

// Path returns the record file for a conversation id.
func (s *TOMLTurnStore) Path(conversationID string) string {
	return filepath.Join(s.dir, conversationID+".toml")
}

// Append commits the given turns to the conversation's record as one unit.
func (s *TOMLTurnStore) Append(ctx context.Context, conversationID string, turns ...chatports.Turn) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", chatports.ErrPersistence, err)
	}
	if err := validateConversationID(conversationID); err != nil {
		return err
	}
	for _, turn := range turns {
		if !turn.Role.Valid() {
			return fmt.Errorf("%w: invalid role %q", chatports.ErrPersistence, turn.Role)
		}
	}

	record, err := s.read(conversationID)
	if err != nil {
		return err
	}
	if record == nil {
		record = &tomlRecord{Conversation: tomlHeader{ID: conversationID, CreatedAt: time.Now().UTC()}}
	}
	record.Turns = append(record.Turns, turns...)

	return s.commit(conversationID, record)
}

// Load replays a persisted record in chronological order. A missing record
// yields an empty history.
func (s *TOMLTurnStore) Load(ctx context.Context, conversationID string) ([]chatports.Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", chatports.ErrPersistence, err)
	}
	if err := validateConversationID(conversationID); err != nil {
		return nil, err
	}

	record, err := s.read(conversationID)
	if err != nil || record == nil {
		return nil, err
	}
	return record.Turns, nil
}

func (s *TOMLTurnStore) read(conversationID string) (*tomlRecord, error) {
	data, err := os.ReadFile(s.Path(conversationID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading record: %v", chatports.ErrPersistence, err)
	}

	var record tomlRecord
	if err := toml.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: decoding record: %v", chatports.ErrPersistence, err)
	}
	return &record, nil
}

// commit renders the record and swaps it into place atomically.
func (s *TOMLTurnStore) commit(conversationID string, record *tomlRecord) error {
	data, err := toml.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: encoding record: %v", chatports.ErrPersistence, err)
	}

	tmp, err := os.CreateTemp(s.dir, conversationID+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", chatports.ErrPersistence, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: writing record: %v", chatports.ErrPersistence, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: syncing record: %v", chatports.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: closing record: %v", chatports.ErrPersistence, err)
	}

	if err := os.Rename(tmpName, s.Path(conversationID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: committing record: %v", chatports.ErrPersistence, err)
	}
	return nil
}

func validateConversationID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: unusable conversation id %q", chatports.ErrPersistence, id)
	}
	return nil
}

var _ chatports.TurnStore = (*TOMLTurnStore)(nil)
