package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client), mr
}

func liveToken(id string) *Token {
	return &Token{
		ID:        id,
		Subject:   "sub-1",
		Username:  "alice",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestStore_CreateGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, liveToken("s1")))

	record, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", record.ID)
	assert.Equal(t, "alice", record.Username)

	exists, err := store.Exists(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_Get_Missing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStore_Create_RejectsExpiredToken(t *testing.T) {
	store, _ := newTestStore(t)

	token := liveToken("s1")
	token.ExpiresAt = time.Now().Add(-time.Minute)

	err := store.Create(context.Background(), token)
	assert.ErrorContains(t, err, "expired")
}

func TestStore_Delete_Idempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, liveToken("s1")))
	require.NoError(t, store.Delete(ctx, "s1"))

	exists, err := store.Exists(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, exists)

	// Logging out twice is fine.
	assert.NoError(t, store.Delete(ctx, "s1"))
}

func TestStore_RecordExpiresWithToken(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	token := liveToken("s1")
	token.ExpiresAt = time.Now().Add(time.Minute)
	require.NoError(t, store.Create(ctx, token))

	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStore_Count(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Create(ctx, liveToken(id)))
	}

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
