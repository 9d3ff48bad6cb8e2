package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/pageflow/pkg/adapters/redis"
	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/aretw0/pageflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "Failed to start miniredis")
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := setup(t)

	store := redis.NewFromClient(client)
	ports.RunConversationStoreContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := setup(t)

	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	rec := domain.Record{
		ID:         "conv-ttl",
		FlowID:     "signup",
		Current:    "start",
		Attributes: map[string]any{"foo": "bar"},
	}

	// 1. Save
	require.NoError(t, store.Save(ctx, "session-ttl", rec))
	ids, err := store.List(ctx, "session-ttl")
	require.NoError(t, err)
	assert.Equal(t, []string{"conv-ttl"}, ids)

	// 2. Fast Forward time in miniredis (for Key Expiration)
	mr.FastForward(2 * time.Second)

	// 3. Verify Load (should fail)
	_, err = store.Load(ctx, "session-ttl", "conv-ttl")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)

	ids, err = store.List(ctx, "session-ttl")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := setup(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	err := store.Save(ctx, "my-session", domain.Record{ID: "c1", FlowID: "signup", Current: "start"})
	require.NoError(t, err)

	// Key should be "custom:app:my-session" holding one field per conversation
	assert.True(t, mr.Exists("custom:app:my-session"), "Expected key with custom prefix to exist")
	fields, err := mr.HKeys("custom:app:my-session")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, fields)

	// Removing the last conversation removes the session hash
	require.NoError(t, store.Delete(ctx, "my-session", "c1"))
	assert.False(t, mr.Exists("custom:app:my-session"))
}

func TestRedisStore_AttributesSurviveAsJSON(t *testing.T) {
	_, client := setup(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	rec := domain.Record{
		ID:         "c1",
		FlowID:     "signup",
		Current:    "review",
		Previous:   "start",
		History:    []string{"start", "review"},
		Attributes: map[string]any{"count": 5, "tags": []string{"a", "b"}},
	}
	require.NoError(t, store.Save(ctx, "s", rec))

	loaded, err := store.Load(ctx, "s", "c1")
	require.NoError(t, err)
	assert.Equal(t, float64(5), loaded.Attributes["count"])
	assert.Equal(t, []any{"a", "b"}, loaded.Attributes["tags"])
	assert.Equal(t, []string{"start", "review"}, loaded.History)
}
