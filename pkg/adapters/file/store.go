package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/pageflow/pkg/domain"
)

// DefaultDir is used when New is given an empty base path.
var DefaultDir = filepath.Join(".pageflow", "sessions")

// maxCreateAttempts bounds how often Save recreates a session directory
// removed under it.
const maxCreateAttempts = 5

// ErrInvalidID is returned when a session id cannot name a directory.
var ErrInvalidID = errors.New("invalid id for file store")

// Store implements ports.ConversationStore using the local filesystem.
// Each session is a directory and each conversation a JSON file inside it.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
func New(basePath string) *Store {
	if basePath == "" {
		basePath = DefaultDir
	}
	return &Store{BasePath: basePath}
}

// Save persists the record atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Save(ctx context.Context, sessionID string, record domain.Record) error {
	if !validID(sessionID) || !validID(record.ID) {
		return fmt.Errorf("%w: session %q conversation %q", ErrInvalidID, sessionID, record.ID)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation %s: %w", record.ID, err)
	}

	// 1. Create Temp File in the same directory (rename must not cross filesystems)
	tmpFile, err := s.createTemp(s.sessionDir(sessionID), record.ID)
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	// 2. Write Data
	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	// 3. Fsync to ensure durability
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}

	// 4. Close File (cannot rename open file on Windows)
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// 5. Atomic Rename
	if err := os.Rename(tmpPath, s.recordPath(sessionID, record.ID)); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// createTemp creates the temp file of a record, recreating the session
// directory when a concurrent Delete of its last record removed it.
func (s *Store) createTemp(dir, conversationID string) (*os.File, error) {
	var err error
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to ensure session directory: %w", err)
		}
		var f *os.File
		f, err = os.CreateTemp(dir, "tmp-"+conversationID+"-*")
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			break
		}
	}
	return nil, fmt.Errorf("failed to create temp file: %w", err)
}

// Load reads a record. Ids that cannot name a file are reported as misses:
// conversation ids come straight from requests.
func (s *Store) Load(ctx context.Context, sessionID, conversationID string) (domain.Record, error) {
	if !validID(sessionID) || !validID(conversationID) {
		return domain.Record{}, domain.ErrConversationNotFound
	}

	data, err := os.ReadFile(s.recordPath(sessionID, conversationID))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Record{}, domain.ErrConversationNotFound
		}
		return domain.Record{}, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var rec domain.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.Record{}, fmt.Errorf("failed to unmarshal conversation %s: %w", conversationID, err)
	}
	return rec, nil
}

// Delete removes the record. The session directory goes with its last record.
func (s *Store) Delete(ctx context.Context, sessionID, conversationID string) error {
	if !validID(sessionID) || !validID(conversationID) {
		return nil
	}

	err := os.Remove(s.recordPath(sessionID, conversationID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete conversation file: %w", err)
	}

	// Fails while other records remain.
	_ = os.Remove(s.sessionDir(sessionID))
	return nil
}

// List returns the conversation ids of a session, sorted.
func (s *Store) List(ctx context.Context, sessionID string) ([]string, error) {
	if !validID(sessionID) {
		return []string{}, nil
	}

	entries, err := os.ReadDir(s.sessionDir(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) sessionDir(sessionID string) string {
	return filepath.Join(s.BasePath, sessionID)
}

func (s *Store) recordPath(sessionID, conversationID string) string {
	return filepath.Join(s.sessionDir(sessionID), conversationID+".json")
}

// validID accepts ids made of letters, digits, '-' and '_'.
func validID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
