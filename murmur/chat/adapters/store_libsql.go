package adapters

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "github.com/tursodatabase/go-libsql"

	chatports "github.com/murmurvoice/murmur/murmur/chat/ports"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// LibSQLTurnStore persists turns in an embedded libsql database. The
// user/assistant pair of an exchange is inserted inside one transaction, so
// a crash mid-write rolls back and the record never holds half an exchange.
type LibSQLTurnStore struct {
	db *sql.DB
}

// OpenLibSQLTurnStore opens (creating if needed) the database at path and
// runs pending schema migrations.
func OpenLibSQLTurnStore(path string) (*LibSQLTurnStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating database directory: %v", chatports.ErrPersistence, err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL&_synchronous=NORMAL", path)
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", chatports.ErrPersistence, path, err)
	}

	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: loading migrations: %v", chatports.ErrPersistence, err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: preparing migrations: %v", chatports.ErrPersistence, err)
	}
	if _, err := provider.Up(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrating schema: %v", chatports.ErrPersistence, err)
	}

	return &LibSQLTurnStore{db: db}, nil
}

// NewLibSQLTurnStore wraps an already-opened database, assumed migrated.
func NewLibSQLTurnStore(db *sql.DB) *LibSQLTurnStore {
	return &LibSQLTurnStore{db: db}
}

// Append inserts the given turns in a single transaction.
func (s *LibSQLTurnStore) Append(ctx context.Context, conversationID string, turns ...chatports.Turn) error {
	if err := validateConversationID(conversationID); err != nil {
		return err
	}
	for _, turn := range turns {
		if !turn.Role.Valid() {
			return fmt.Errorf("%w: invalid role %q", chatports.ErrPersistence, turn.Role)
		}
	}
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", chatports.ErrPersistence, err)
	}

	const insert = `
		INSERT INTO conversation_turns (conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
	`
	for _, turn := range turns {
		if _, err := tx.ExecContext(ctx, insert, conversationID, string(turn.Role), turn.Content, turn.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: inserting turn: %v", chatports.ErrPersistence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing turns: %v", chatports.ErrPersistence, err)
	}
	return nil
}

// Load returns the conversation's turns in insertion order.
func (s *LibSQLTurnStore) Load(ctx context.Context, conversationID string) ([]chatports.Turn, error) {
	if err := validateConversationID(conversationID); err != nil {
		return nil, err
	}

	const query = `
		SELECT role, content, created_at FROM conversation_turns
		WHERE conversation_id = ?
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: querying turns: %v", chatports.ErrPersistence, err)
	}
	defer rows.Close()

	var turns []chatports.Turn
	for rows.Next() {
		var role, content, createdAt string
		if err := rows.Scan(&role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scanning turn: %v", chatports.ErrPersistence, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing timestamp %q: %v", chatports.ErrPersistence, createdAt, err)
		}
		turns = append(turns, chatports.Turn{Role: chatports.Role(role), Content: content, CreatedAt: ts})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating turns: %v", chatports.ErrPersistence, err)
	}

	return turns, nil
}

// Close releases the underlying database handle.
func (s *LibSQLTurnStore) Close() error { return s.db.Close() }

var _ chatports.TurnStore = (*LibSQLTurnStore)(nil)
