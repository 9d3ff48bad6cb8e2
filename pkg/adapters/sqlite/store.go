// Package sqlite implements ports.ConversationStore on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/pageflow/pkg/domain"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so that timestamps compare as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store keeps one row per conversation, keyed by session and conversation id.
//
// It expects an *sql.DB that uses a SQLite driver. Open registers
// "modernc.org/sqlite"; callers bringing their own *sql.DB must import a driver.
type Store struct {
	db    *sql.DB
	owned bool
}

// Open opens (or creates) the database at dsn and prepares the schema.
// Use a file path; ":memory:" databases are per connection, so Open pins the
// pool to a single connection.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)

	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New initializes the required schema in db and returns a Store.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to prepare sqlite schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			session_id TEXT NOT NULL,
			id TEXT NOT NULL,
			flow_id TEXT NOT NULL,
			current TEXT NOT NULL,
			previous TEXT NOT NULL DEFAULT '',
			history BLOB,
			attributes BLOB,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (session_id, id)
		);`,
	)
	return err
}

// DB exposes the underlying database.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database when the Store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Save inserts or replaces the record.
func (s *Store) Save(ctx context.Context, sessionID string, record domain.Record) error {
	history, err := json.Marshal(record.History)
	if err != nil {
		return fmt.Errorf("failed to marshal history of %s: %w", record.ID, err)
	}
	attrs, err := json.Marshal(record.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes of %s: %w", record.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (session_id, id, flow_id, current, previous, history, attributes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, id) DO UPDATE SET
			flow_id = excluded.flow_id,
			current = excluded.current,
			previous = excluded.previous,
			history = excluded.history,
			attributes = excluded.attributes,
			updated_at = excluded.updated_at`,
		sessionID,
		record.ID,
		record.FlowID,
		record.Current,
		record.Previous,
		history,
		attrs,
		record.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save to sqlite: %w", err)
	}
	return nil
}

// Load reads a record.
func (s *Store) Load(ctx context.Context, sessionID, conversationID string) (domain.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, flow_id, current, previous, history, attributes, updated_at
		FROM conversations
		WHERE session_id = ? AND id = ?`,
		sessionID, conversationID,
	)

	var (
		rec            domain.Record
		history, attrs []byte
		updated        string
	)
	if err := row.Scan(&rec.ID, &rec.FlowID, &rec.Current, &rec.Previous, &history, &attrs, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Record{}, domain.ErrConversationNotFound
		}
		return domain.Record{}, fmt.Errorf("failed to load from sqlite: %w", err)
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &rec.History); err != nil {
			return domain.Record{}, fmt.Errorf("failed to unmarshal history of %s: %w", conversationID, err)
		}
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &rec.Attributes); err != nil {
			return domain.Record{}, fmt.Errorf("failed to unmarshal attributes of %s: %w", conversationID, err)
		}
	}
	if t, err := time.Parse(timeLayout, updated); err == nil {
		rec.UpdatedAt = t
	}
	return rec, nil
}

// Delete removes the record. Deleting a missing record is not an error.
func (s *Store) Delete(ctx context.Context, sessionID, conversationID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE session_id = ? AND id = ?`, sessionID, conversationID); err != nil {
		return fmt.Errorf("failed to delete from sqlite: %w", err)
	}
	return nil
}

// List returns the conversation ids of a session, sorted.
func (s *Store) List(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM conversations WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list from sqlite: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Purge deletes conversations not updated since before. It returns the number
// of removed rows. SQLite has no key expiry, so hosts call it periodically.
func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE updated_at < ?`, before.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to purge sqlite: %w", err)
	}
	return res.RowsAffected()
}
