package kvstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonesrussell/linkbio/internal/kvstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*kvstore.Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return kvstore.NewRedis(client, ttl), mr
}

func TestStores_GetSetDelete(t *testing.T) {
	t.Parallel()

	redisStore, _ := newRedisStore(t, 0)
	stores := map[string]kvstore.Store{
		"memory": kvstore.NewMemory(0),
		"redis":  redisStore,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			_, ok, err := store.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(ctx, "k", "v"))
			v, ok, err := store.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "v", v)

			require.NoError(t, store.Delete(ctx, "k", "never-set"))
			_, ok, err = store.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestScope_IsolatesVisitors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	base := kvstore.NewMemory(0)
	alice := kvstore.Scope(base, kvstore.ProfilePrefix("alice"))
	bob := kvstore.Scope(base, kvstore.ProfilePrefix("bob"))

	require.NoError(t, alice.Set(ctx, "analytics_consent", "accepted"))

	_, ok, err := bob.Get(ctx, "analytics_consent")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := base.Get(ctx, "profile:alice:analytics_consent")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "accepted", v)

	require.NoError(t, alice.Delete(ctx, "analytics_consent"))
	_, ok, err = base.Get(ctx, "profile:alice:analytics_consent")
	require.NoError(t, err)
	assert.False(t, ok)
}

// fakeClock is advanced by tests only while no other goroutine reads it.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newMemory(ttl time.Duration) (*kvstore.Memory, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return kvstore.NewMemory(ttl, kvstore.WithClock(clock.Now)), clock
}

func TestMemory_TTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, clock := newMemory(30 * time.Minute)
	require.NoError(t, m.Set(ctx, "analytics_session_id", "abc"))

	clock.Advance(31 * time.Minute)

	_, ok, err := m.Get(ctx, "analytics_session_id")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_ReadsExtendTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, clock := newMemory(30 * time.Minute)
	require.NoError(t, m.Set(ctx, "analytics_session_id", "abc"))

	clock.Advance(20 * time.Minute)
	v, ok, err := m.Get(ctx, "analytics_session_id")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", v)

	// 35 minutes after the write, 15 after the last read
	clock.Advance(15 * time.Minute)
	v, ok, err = m.Get(ctx, "analytics_session_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	clock.Advance(31 * time.Minute)
	_, ok, err = m.Get(ctx, "analytics_session_id")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_ExpiredReadKeepsConcurrentWrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for range 200 {
		m, clock := newMemory(time.Minute)
		require.NoError(t, m.Set(ctx, "k", "stale"))
		clock.Advance(2 * time.Minute)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, _ = m.Get(ctx, "k")
		}()
		go func() {
			defer wg.Done()
			_ = m.Set(ctx, "k", "fresh")
		}()
		wg.Wait()

		v, ok, err := m.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "fresh", v)
	}
}

func TestMemory_Sweep(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, clock := newMemory(time.Minute)
	require.NoError(t, m.Set(ctx, "a", "1"))
	require.NoError(t, m.Set(ctx, "b", "2"))

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 2, m.Sweep())
}

func TestRedis_TTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, mr := newRedisStore(t, 30*time.Minute)
	require.NoError(t, store.Set(ctx, "session:s1:analytics_session_id", "abc"))

	assert.Equal(t, 30*time.Minute, mr.TTL("session:s1:analytics_session_id"))

	mr.FastForward(31 * time.Minute)
	_, ok, err := store.Get(ctx, "session:s1:analytics_session_id")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_ReadsExtendTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	const key = "session:s1:analytics_session_id"
	store, mr := newRedisStore(t, 30*time.Minute)
	require.NoError(t, store.Set(ctx, key, "abc"))

	mr.FastForward(20 * time.Minute)
	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, mr.TTL(key))

	mr.FastForward(15 * time.Minute)
	v, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
}
