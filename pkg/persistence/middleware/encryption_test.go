package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/aretw0/pageflow/pkg/adapters/memory"
	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/aretw0/pageflow/pkg/persistence/middleware"
	"github.com/aretw0/pageflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func record() domain.Record {
	return domain.Record{
		ID:         "conv-1",
		FlowID:     "signup",
		Current:    "review",
		Previous:   "start",
		History:    []string{"start", "review"},
		Attributes: map[string]any{"email": "ada@example.com"},
	}
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunConversationStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)

	// 1. Save
	require.NoError(t, secure.Save(ctx, "s1", record()))

	// 2. The underlying store only sees the envelope
	stored, err := underlying.Load(ctx, "s1", "conv-1")
	require.NoError(t, err)
	assert.NotContains(t, stored.Attributes, "email")
	assert.Contains(t, stored.Attributes, middleware.EnvelopeKey)
	assert.Equal(t, "review", stored.Current, "the cursor stays readable")

	// 3. Load through the middleware decrypts
	loaded, err := secure.Load(ctx, "s1", "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", loaded.Attributes["email"])
	assert.Equal(t, []string{"start", "review"}, loaded.History)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)

	old := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, old.Save(ctx, "s1", record()))

	rotated := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)
	loaded, err := rotated.Load(ctx, "s1", "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", loaded.Attributes["email"])

	strictNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: newKey})(underlying)
	_, err = strictNew.Load(ctx, "s1", "conv-1")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_BoundToRecord(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	require.NoError(t, secure.Save(ctx, "victim", record()))

	// Copy the sealed blob into another session
	stolen, err := underlying.Load(ctx, "victim", "conv-1")
	require.NoError(t, err)
	require.NoError(t, underlying.Save(ctx, "attacker", stolen))

	_, err = secure.Load(ctx, "attacker", "conv-1")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_Errors(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)

	t.Run("plain record", func(t *testing.T) {
		require.NoError(t, underlying.Save(ctx, "s1", record()))
		_, err := secure.Load(ctx, "s1", "conv-1")
		assert.ErrorContains(t, err, "envelope")
	})

	t.Run("miss keeps the store error", func(t *testing.T) {
		_, err := secure.Load(ctx, "s1", "nope")
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	})

	t.Run("invalid key", func(t *testing.T) {
		cfg := middleware.EncryptionConfig{ActiveKey: []byte("short")}
		assert.Error(t, cfg.Validate())
		assert.Panics(t, func() { middleware.NewEncryptionMiddleware(cfg) })
	})
}

func TestChain(t *testing.T) {
	var order []string
	tag := func(name string) middleware.Middleware {
		return func(next ports.ConversationStore) ports.ConversationStore {
			order = append(order, name)
			return next
		}
	}
	middleware.Chain(memory.NewStore(), tag("outer"), tag("inner"))
	assert.Equal(t, []string{"inner", "outer"}, order)
}
