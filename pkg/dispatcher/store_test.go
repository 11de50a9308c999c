package dispatcher

import (
	"context"
	"testing"
	"time"

	"HeadTurner/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryFor(key string, created time.Time, ttl time.Duration) *Entry {
	return &Entry{
		Key:       key,
		Result:    entity.PoseResult{Image: &entity.Image{Data: []byte(key)}},
		CreatedAt: created,
		ExpiresAt: created.Add(ttl),
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("set replaces wholesale", func(t *testing.T) {
		s := NewMemoryStore(0)
		first := entryFor("k", now, time.Hour)
		second := entryFor("k", now.Add(time.Minute), time.Hour)

		require.NoError(t, s.Set(ctx, first))
		require.NoError(t, s.Set(ctx, second))

		got, ok := s.Get(ctx, "k")
		require.True(t, ok)
		assert.Same(t, second, got)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("capacity evicts oldest insert", func(t *testing.T) {
		s := NewMemoryStore(2)
		require.NoError(t, s.Set(ctx, entryFor("a", now, time.Hour)))
		require.NoError(t, s.Set(ctx, entryFor("b", now, time.Hour)))
		require.NoError(t, s.Set(ctx, entryFor("c", now, time.Hour)))

		_, ok := s.Get(ctx, "a")
		assert.False(t, ok)
		_, ok = s.Get(ctx, "c")
		assert.True(t, ok)
		assert.Equal(t, 2, s.Len())
	})

	t.Run("sweep drops expired", func(t *testing.T) {
		s := NewMemoryStore(0)
		require.NoError(t, s.Set(ctx, entryFor("old", now, time.Minute)))
		require.NoError(t, s.Set(ctx, entryFor("new", now, time.Hour)))

		removed := s.Sweep(now.Add(2 * time.Minute))

		assert.Equal(t, 1, removed)
		_, ok := s.Get(ctx, "new")
		assert.True(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		s := NewMemoryStore(0)
		require.NoError(t, s.Set(ctx, entryFor("k", now, time.Hour)))
		require.NoError(t, s.Delete(ctx, "k"))
		require.NoError(t, s.Delete(ctx, "missing"))

		assert.Equal(t, 0, s.Len())
	})
}

func TestTieredStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	local := NewMemoryStore(0)
	shared := NewMemoryStore(0)
	tiered := NewTieredStore(local, shared)

	require.NoError(t, shared.Set(ctx, entryFor("remote", now, time.Hour)))

	got, ok := tiered.Get(ctx, "remote")
	require.True(t, ok)
	assert.Equal(t, "remote", got.Key)
	assert.Equal(t, 1, local.Len())

	require.NoError(t, tiered.Set(ctx, entryFor("both", now, time.Hour)))
	assert.Equal(t, 2, local.Len())
	assert.Equal(t, 2, shared.Len())

	require.NoError(t, tiered.Delete(ctx, "both"))
	_, ok = shared.Get(ctx, "both")
	assert.False(t, ok)
}

func TestKeyString(t *testing.T) {
	req := poseRequest("portrait", -12, 7)
	key := NewKey(req)

	assert.Len(t, key.ImageHash, 64)
	assert.Equal(t, "pose:"+key.ImageHash+":-12:7", key.String())
	assert.NotEqual(t, key, NewKey(poseRequest("portrait", -12, 8)))
}
