package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	m, err := NewManager(Config{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return NewRedisStorage(m), mr
}

func TestRedisStorage_Series(t *testing.T) {
	s, mr := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "series", 1000, "a", time.Hour))
	require.NoError(t, s.Append(ctx, "series", 2000, "b", time.Hour))
	require.NoError(t, s.Append(ctx, "series", 3000, "c", time.Hour))

	count, err := s.Count(ctx, "series", 1500, 3000)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	members, err := s.Range(ctx, "series", 0, 2000)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, members)

	assert.Equal(t, time.Hour, mr.TTL("series"))
	mr.FastForward(2 * time.Hour)
	count, err = s.Count(ctx, "series", 0, 5000)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRedisStorage_Keys(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	for _, key := range []string{"events:a:x", "events:a:y", "events:b:x", "other"} {
		require.NoError(t, s.Append(ctx, key, 1, "m", 0))
	}
	keys, err := s.Keys(ctx, "events:a:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"events:a:x", "events:a:y"}, keys)
}

func TestRedisStorage_GetSetDelete(t *testing.T) {
	s, mr := newTestStorage(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))
	val, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	require.NoError(t, s.Set(ctx, "forever", "v", 0))
	assert.Zero(t, mr.TTL("forever"))

	require.NoError(t, s.Delete(ctx, "k"))
	assert.ErrorIs(t, s.Delete(ctx, "k"), ErrNotFound)
}

func TestRedisStorage_ReconnectsAfterFailure(t *testing.T) {
	s, mr := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "v", 0))

	mr.Close()
	_, err := s.Get(ctx, "k")
	require.Error(t, err)
	assert.Equal(t, StateDisconnected, s.Manager().State())

	require.NoError(t, mr.Restart())
	require.NoError(t, s.Set(ctx, "k", "v2", 0))
	assert.Equal(t, StateReady, s.Manager().State())
}

type seriesItem struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

func TestSeries_PrefixAndJSON(t *testing.T) {
	s, mr := newTestStorage(t)
	ctx := context.Background()
	series := NewSeries[seriesItem](s, "ns:")

	base := time.UnixMilli(1_700_000_000_000)
	for i := 0; i < 3; i++ {
		item := seriesItem{ID: string(rune('a' + i)), Value: i}
		require.NoError(t, series.Append(ctx, "key", base.Add(time.Duration(i)*time.Second), item, time.Hour))
	}
	assert.True(t, mr.Exists("ns:key"))

	items, err := series.Range(ctx, "key", base, base.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, 1, items[1].Value)

	count, err := series.Count(ctx, "key", base.Add(time.Second), base.Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	keys, err := series.Keys(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, []string{"key"}, keys)
}

func TestEscapePattern(t *testing.T) {
	assert.Equal(t, `a\*b\?c\[d\]`, EscapePattern("a*b?c[d]"))
	assert.Equal(t, "::1", EscapePattern("::1"))
}
