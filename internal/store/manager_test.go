package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDialer struct {
	calls atomic.Int32
}

func (d *countingDialer) dial(opts *redis.Options) redis.UniversalClient {
	d.calls.Add(1)
	return redis.NewClient(opts)
}

func newTestManager(t *testing.T, mr *miniredis.Miniredis, dialer *countingDialer) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		URL:                 "redis://" + mr.Addr(),
		ConnectTimeout:      200 * time.Millisecond,
		InitialBackoff:      5 * time.Millisecond,
		MaxBackoff:          20 * time.Millisecond,
		HealthCheckInterval: 10 * time.Millisecond,
	}, WithDialer(dialer.dial))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestNewManager_MissingURL(t *testing.T) {
	_, err := NewManager(Config{})
	assert.ErrorIs(t, err, ErrMissingURL)

	_, err = NewManager(Config{URL: "http://not-redis"})
	assert.Error(t, err)
}

func TestManager_GetClient(t *testing.T) {
	mr := miniredis.RunT(t)
	dialer := &countingDialer{}
	m := newTestManager(t, mr, dialer)
	assert.Equal(t, StateDisconnected, m.State())

	client, err := m.GetClient(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateReady, m.State())
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())

	again, err := m.GetClient(context.Background())
	require.NoError(t, err)
	assert.Same(t, client, again)
	assert.EqualValues(t, 1, dialer.calls.Load())
}

func TestManager_ConcurrentCallersShareAttempt(t *testing.T) {
	mr := miniredis.RunT(t)
	dialer := &countingDialer{}
	m := newTestManager(t, mr, dialer)

	const callers = 32
	clients := make([]redis.UniversalClient, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := m.GetClient(context.Background())
			assert.NoError(t, err)
			clients[i] = c
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, dialer.calls.Load())
	for _, c := range clients {
		assert.Same(t, clients[0], c)
	}
}

func TestManager_GivesUpAfterRetries(t *testing.T) {
	mr := miniredis.RunT(t)
	dialer := &countingDialer{}
	m := newTestManager(t, mr, dialer)
	mr.Close()

	_, err := m.GetClient(context.Background())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.EqualValues(t, 3, dialer.calls.Load())
	assert.Equal(t, StateDisconnected, m.State())

	// a later call restarts the whole sequence
	require.NoError(t, mr.Restart())
	_, err = m.GetClient(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, dialer.calls.Load())
}

func TestManager_Invalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	dialer := &countingDialer{}
	m := newTestManager(t, mr, dialer)

	first, err := m.GetClient(context.Background())
	require.NoError(t, err)
	m.Invalidate(first)
	assert.Equal(t, StateDisconnected, m.State())

	second, err := m.GetClient(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	// a stale client does not reset the new connection
	m.Invalidate(first)
	assert.Equal(t, StateReady, m.State())
}

func TestManager_HealthCheckResetsDeadConnection(t *testing.T) {
	mr := miniredis.RunT(t)
	dialer := &countingDialer{}
	m := newTestManager(t, mr, dialer)

	_, err := m.GetClient(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartHealthCheck(ctx)
	mr.Close()

	assert.Eventually(t, func() bool {
		return m.State() == StateDisconnected
	}, time.Second, 10*time.Millisecond)
}

func TestManager_Closed(t *testing.T) {
	mr := miniredis.RunT(t)
	m := newTestManager(t, mr, &countingDialer{})
	require.NoError(t, m.Close())
	_, err := m.GetClient(context.Background())
	assert.ErrorIs(t, err, ErrManagerClosed)
}
