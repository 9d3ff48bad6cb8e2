package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunConversationStoreContract runs a suite of tests to verify that a
// ConversationStore implementation adheres to the defined interface contract.
func RunConversationStoreContract(t *testing.T, store ConversationStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	newRecord := func(id string) domain.Record {
		return domain.Record{
			ID:        id,
			FlowID:    "signup",
			Current:   "start",
			History:   []string{"start"},
			UpdatedAt: time.Now().UTC().Truncate(time.Second),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		// 1. Create a record
		rec := newRecord("conv-1")
		rec.Current = "review"
		rec.Previous = "start"
		rec.Attributes = map[string]any{"foo": "bar", "count": 42}

		// 2. Save
		err := store.Save(ctx, sessionID, rec)
		require.NoError(t, err, "Save should not return error")

		// 3. Load
		loaded, err := store.Load(ctx, sessionID, "conv-1")
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, "conv-1", loaded.ID)
		assert.Equal(t, "signup", loaded.FlowID)
		assert.Equal(t, "review", loaded.Current)
		assert.Equal(t, "start", loaded.Previous)
		assert.Equal(t, "bar", loaded.Attributes["foo"])
		// JSON backed stores turn ints into float64; only check existence.
		assert.NotNil(t, loaded.Attributes["count"])
	})

	t.Run("Load is isolated from caller mutation", func(t *testing.T) {
		rec := newRecord("conv-iso")
		rec.Attributes = map[string]any{"k": "v"}
		require.NoError(t, store.Save(ctx, sessionID, rec))

		rec.Attributes["k"] = "mutated"
		loaded, err := store.Load(ctx, sessionID, "conv-iso")
		require.NoError(t, err)
		assert.Equal(t, "v", loaded.Attributes["k"])

		loaded.Attributes["k"] = "mutated"
		again, err := store.Load(ctx, sessionID, "conv-iso")
		require.NoError(t, err)
		assert.Equal(t, "v", again.Attributes["k"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, sessionID, "non-existent")
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	})

	t.Run("Session isolation", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sessionID, newRecord("conv-private")))

		_, err := store.Load(ctx, "other-"+sessionID, "conv-private")
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		// Setup
		err := store.Save(ctx, sessionID, newRecord("conv-del"))
		require.NoError(t, err)

		// Delete
		err = store.Delete(ctx, sessionID, "conv-del")
		require.NoError(t, err, "Delete should not return error")

		// Verify gone
		_, err = store.Load(ctx, sessionID, "conv-del")
		assert.ErrorIs(t, err, domain.ErrConversationNotFound, "Load after Delete should return ErrConversationNotFound")

		// Deleting again is a no-op
		assert.NoError(t, store.Delete(ctx, sessionID, "conv-del"))
	})

	t.Run("List", func(t *testing.T) {
		listSession := sessionID + "-list"
		_ = store.Save(ctx, listSession, newRecord("a"))
		_ = store.Save(ctx, listSession, newRecord("b"))

		defer func() {
			_ = store.Delete(ctx, listSession, "a")
			_ = store.Delete(ctx, listSession, "b")
		}()

		ids, err := store.List(ctx, listSession)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b"}, ids)
	})
}
