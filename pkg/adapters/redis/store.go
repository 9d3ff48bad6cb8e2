package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/pageflow/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "pageflow:session:"

// Store implements ports.ConversationStore using Redis.
// Each session is one hash: field = conversation id, value = JSON record.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the idle expiration of a session's conversations.
// The TTL is refreshed on every Save.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Client exposes the underlying client (e.g. to share it with a Locker).
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}

// Save persists the record to the session hash.
func (s *Store) Save(ctx context.Context, sessionID string, record domain.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation %s: %w", record.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(sessionID), record.ID, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(sessionID), s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves a record from the session hash.
func (s *Store) Load(ctx context.Context, sessionID, conversationID string) (domain.Record, error) {
	val, err := s.client.HGet(ctx, s.key(sessionID), conversationID).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.Record{}, domain.ErrConversationNotFound
		}
		return domain.Record{}, fmt.Errorf("failed to get from redis: %w", err)
	}

	var record domain.Record
	if err := json.Unmarshal(val, &record); err != nil {
		return domain.Record{}, fmt.Errorf("failed to unmarshal conversation %s: %w", conversationID, err)
	}
	return record, nil
}

// Delete removes a conversation. Redis drops the hash once it is empty.
func (s *Store) Delete(ctx context.Context, sessionID, conversationID string) error {
	if err := s.client.HDel(ctx, s.key(sessionID), conversationID).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// List returns the conversation ids of a session, sorted.
func (s *Store) List(ctx context.Context, sessionID string) ([]string, error) {
	ids, err := s.client.HKeys(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
