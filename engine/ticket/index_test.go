package ticket

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_Contract(t *testing.T) {
	for name, newIndex := range indexes(t) {
		t.Run("Should honor conditional semantics with "+name+" index", func(t *testing.T) {
			ctx := t.Context()
			idx := newIndex()

			ok, err := idx.ConditionalInsert(ctx, "k", "a", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = idx.ConditionalInsert(ctx, "k", "b", time.Minute)
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = idx.CompareAndSwap(ctx, "k", "wrong", "c", 0)
			require.NoError(t, err)
			assert.False(t, ok)
			ok, err = idx.CompareAndSwap(ctx, "k", "a", "c", 0)
			require.NoError(t, err)
			assert.True(t, ok)

			v, found, err := idx.Lookup(ctx, "k")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "c", v)

			ok, err = idx.CompareAndDelete(ctx, "k", "a")
			require.NoError(t, err)
			assert.False(t, ok)
			ok, err = idx.CompareAndDelete(ctx, "k", "c")
			require.NoError(t, err)
			assert.True(t, ok)
			_, found, err = idx.Lookup(ctx, "k")
			require.NoError(t, err)
			assert.False(t, found)
		})
	}

	t.Run("Should expire redis claims", func(t *testing.T) {
		s := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: s.Addr()})
		idx := NewRedisIndex(client)
		ok, err := idx.ConditionalInsert(t.Context(), "k", "pending:x", time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		s.FastForward(2 * time.Second)
		ok, err = idx.ConditionalInsert(t.Context(), "k", "pending:y", time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Should keep the retention ttl after a swap", func(t *testing.T) {
		s := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: s.Addr()})
		idx := NewRedisIndex(client)
		_, err := idx.ConditionalInsert(t.Context(), "k", "pending:x", time.Second)
		require.NoError(t, err)
		ok, err := idx.CompareAndSwap(t.Context(), "k", "pending:x", "done", time.Hour)
		require.NoError(t, err)
		require.True(t, ok)
		assert.InDelta(t, time.Hour.Seconds(), s.TTL("k").Seconds(), 1)
	})
}

func TestDecodeEntry(t *testing.T) {
	t.Run("Should distinguish pending, committed and corrupt values", func(t *testing.T) {
		_, committed, err := decodeEntry("pending:abc")
		require.NoError(t, err)
		assert.False(t, committed)

		value, err := encodeCommitted("MM-1", time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		e, committed, err := decodeEntry(value)
		require.NoError(t, err)
		assert.True(t, committed)
		assert.Equal(t, "MM-1", e.Key)

		_, _, err = decodeEntry("{not json")
		assert.Error(t, err)
	})
}
