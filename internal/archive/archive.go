// Package archive persists conversation transcripts to SQLite. Writes are
// best-effort and decoupled from the chat flow: an unavailable archive is
// logged, never surfaced.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/minirag/supportchat/internal/conversation"
)

// persistTimeout bounds each archive write so a wedged disk cannot stall a
// chat flow that has already moved on.
const persistTimeout = 5 * time.Second

// Store is a SQLite-backed transcript archive. It implements
// conversation.Recorder.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

var _ conversation.Recorder = (*Store)(nil)

// Open opens (creating if needed) the archive database at path. A nil logger
// falls back to slog.Default().
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db, logger: logger}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
id TEXT PRIMARY KEY,
started_at TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS messages (
id TEXT PRIMARY KEY,
conversation_id TEXT NOT NULL,
role TEXT NOT NULL,
content TEXT NOT NULL,
status TEXT NOT NULL,
citations TEXT,
created_at TIMESTAMP NOT NULL,
FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordMessage mirrors one appended message into the archive, creating the
// conversation row on first use. Failures are logged and swallowed.
func (s *Store) RecordMessage(ctx context.Context, sessionID string, msg conversation.Message) {
	if sessionID == "" {
		return
	}

	// Detach from the flow's context so a finished or cancelled flow does
	// not drop the transcript write; keep a short deadline of our own.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	_, err := s.db.ExecContext(persistCtx,
		"INSERT INTO conversations (id, started_at) VALUES (?, ?) ON CONFLICT(id) DO NOTHING",
		sessionID, msg.CreatedAt.UTC(),
	)
	if err != nil {
		s.logger.Error("failed to create archived conversation",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return
	}

	var citations []byte
	if len(msg.Citations) > 0 {
		citations, err = json.Marshal(msg.Citations)
		if err != nil {
			s.logger.Error("failed to encode citations",
				slog.String("message_id", msg.ID),
				slog.String("error", err.Error()),
			)
			citations = nil
		}
	}

	_, err = s.db.ExecContext(persistCtx,
		`INSERT INTO messages (id, conversation_id, role, content, status, citations, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		msg.ID, sessionID, string(msg.Role), msg.Content, string(msg.Status),
		nullableString(citations), msg.CreatedAt.UTC(),
	)
	if err != nil {
		s.logger.Error("failed to archive message",
			slog.String("session_id", sessionID),
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
	}
}

// archivedMessage is the row shape of the messages table.
type archivedMessage struct {
	ID        string         `db:"id"`
	Role      string         `db:"role"`
	Content   string         `db:"content"`
	Status    string         `db:"status"`
	Citations sql.NullString `db:"citations"`
	CreatedAt time.Time      `db:"created_at"`
}

// Messages returns the archived transcript for a session in append order.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]conversation.Message, error) {
	var rows []archivedMessage
	err := s.db.SelectContext(ctx, &rows,
		"SELECT id, role, content, status, citations, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at, id",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read archived messages: %w", err)
	}

	messages := make([]conversation.Message, 0, len(rows))
	for _, row := range rows {
		msg := conversation.Message{
			ID:        row.ID,
			Role:      conversation.Role(row.Role),
			Content:   row.Content,
			Status:    conversation.DeliveryStatus(row.Status),
			CreatedAt: row.CreatedAt,
		}
		if row.Citations.Valid && row.Citations.String != "" {
			if err := json.Unmarshal([]byte(row.Citations.String), &msg.Citations); err != nil {
				s.logger.Warn("failed to decode archived citations",
					slog.String("message_id", row.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// DeleteSession removes a session's archived conversation. Messages go with
// it via the foreign key cascade. Deleting an unknown session is not an error.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete archived conversation: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
