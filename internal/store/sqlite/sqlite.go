package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/chatrelay/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	room_key        TEXT NOT NULL,
	sender_id       TEXT NOT NULL DEFAULT '',
	sender_nickname TEXT NOT NULL DEFAULT '',
	text            TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL,
	next_node_key   TEXT
);

CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages(room_key, created_at, id);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function
// instead of the built-in schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps
	// ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AppendMessage persists a message to storage.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	if err := store.Stamp(msg); err != nil {
		return store.Wrap("append", fmt.Errorf("generate id: %w", err))
	}

	query := `
		INSERT INTO messages (id, room_key, sender_id, sender_nickname, text, created_at, next_node_key)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	var nextNodeKey sql.NullString
	if msg.NextNodeKey != nil {
		nextNodeKey = sql.NullString{String: *msg.NextNodeKey, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.RoomKey,
		msg.Sender.ID,
		msg.Sender.Nickname,
		msg.Text,
		msg.CreatedAt.UnixNano(),
		nextNodeKey,
	)
	if err != nil {
		return store.Wrap("append", fmt.Errorf("insert message: %w", err))
	}
	return nil
}

// ListRecentMessages retrieves the newest messages of a room in chronological order.
func (s *SQLiteStore) ListRecentMessages(ctx context.Context, roomKey string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		return []*store.Message{}, nil
	}

	query := `
		SELECT id, room_key, sender_id, sender_nickname, text, created_at, next_node_key
		FROM messages
		WHERE room_key = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, roomKey, limit)
	if err != nil {
		return nil, store.Wrap("query recent", fmt.Errorf("query messages: %w", err))
	}
	defer rows.Close()

	messages := make([]*store.Message, 0, limit)
	for rows.Next() {
		var (
			msg         store.Message
			createdAt   int64
			nextNodeKey sql.NullString
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.RoomKey,
			&msg.Sender.ID,
			&msg.Sender.Nickname,
			&msg.Text,
			&createdAt,
			&nextNodeKey,
		); err != nil {
			return nil, store.Wrap("query recent", fmt.Errorf("scan message: %w", err))
		}
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		if nextNodeKey.Valid {
			msg.NextNodeKey = &nextNodeKey.String
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("query recent", err)
	}

	// Reverse to get chronological order
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, nil
}
