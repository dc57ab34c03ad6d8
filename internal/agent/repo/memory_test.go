package repo

import (
	"context"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative-realty/leadbot/internal/agent/model"
	errx "github.com/chative-realty/leadbot/internal/core/error"
)

func TestMemorySessionStore_CAS(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	st, err := store.Load(ctx, "s-1")
	require.NoError(t, err)

	saved, err := store.Save(ctx, st, st.Version)
	require.NoError(t, err)
	assert.EqualValues(t, 1, saved.Version)

	_, err = store.Save(ctx, st, st.Version)
	assert.ErrorIs(t, err, errx.ErrStaleState)
}

func TestMemorySessionStore_LoadReturnsCopy(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	st := model.NewSessionState("s-1")
	st.LastShown = []string{"p1"}
	_, err := store.Save(ctx, st, 0)
	require.NoError(t, err)

	loaded, err := store.Load(ctx, "s-1")
	require.NoError(t, err)
	loaded.LastShown[0] = "mutated"

	again, err := store.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "p1", again.LastShown[0])
}

func TestMemoryConversationRepository_Limit(t *testing.T) {
	repo := NewMemoryConversationRepository()
	ctx := context.Background()
	for _, m := range []string{"a", "b", "c"} {
		require.NoError(t, repo.AddMessage(ctx, "s", schema.UserMessage(m)))
	}

	h, err := repo.LoadHistory(ctx, "s", 2)
	require.NoError(t, err)
	require.Len(t, h.Messages, 2)
	assert.Equal(t, "b", h.Messages[0].Content)
}

func TestMemorySessionIndex_ExpiresAfterWindow(t *testing.T) {
	idx := NewMemorySessionIndex(30 * time.Minute)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	idx.now = func() time.Time { return now }
	ctx := context.Background()

	id, err := idx.ActiveSession(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, idx.TouchSession(ctx, "u-1", "s-1"))
	now = now.Add(29 * time.Minute)
	id, err = idx.ActiveSession(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "s-1", id)

	now = now.Add(time.Minute)
	id, err = idx.ActiveSession(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, id)
}
