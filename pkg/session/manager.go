package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/pageflow/internal/logging"
	"github.com/aretw0/pageflow/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds a one-slot semaphore and the reference count.
type lockEntry struct {
	sem  chan struct{}
	refs int
}

// ReleaseFunc releases a lock obtained from Acquire. It is safe to call more than once.
type ReleaseFunc func()

// Manager hands out per-key locks (typically "session/conversation").
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker ports.DistributedLocker // Optional distributed locker
	ttl    time.Duration
	logger *slog.Logger // Logger for internal events (like deferred errors)
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL for distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new lock Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		locks:  make(map[string]*lockEntry),
		ttl:    DefaultLockTTL,
		logger: logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Key builds the lock key of a conversation inside a session.
func Key(sessionID, conversationID string) string {
	return sessionID + "/" + conversationID
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST fill entry.sem, and then call release(key) after draining it.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// Acquire blocks until the lock for key is held and returns its release function.
// It gives up with ctx's error when ctx is done first.
func (m *Manager) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	entry := m.acquire(key)
	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key)
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, ctx.Err())
	}

	local := func() {
		<-entry.sem
		m.release(key)
	}

	if m.locker == nil {
		return once(local), nil
	}

	unlock, err := m.locker.Lock(ctx, key, m.ttl)
	if err != nil {
		local()
		return nil, fmt.Errorf("failed to acquire distributed lock: %w", err)
	}

	return once(func() {
		// The request context may already be canceled; releasing must still happen.
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
				"key", key,
				"err", err,
			)
		}
		local()
	}), nil
}

// WithLock executes a function while holding the lock for key.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	release, err := m.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()

	return fn(ctx)
}

// Held returns the number of keys currently locked or awaited.
func (m *Manager) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

func once(fn func()) ReleaseFunc {
	var o sync.Once
	return func() { o.Do(fn) }
}
