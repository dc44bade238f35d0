package counter_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonesrussell/linkbio/internal/counter"
	"github.com/jonesrussell/linkbio/internal/kvstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCounter(t *testing.T) (*counter.Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return counter.NewRedis(client, kvstore.ProfilePrefix("p1"), 24*time.Hour), mr
}

func stores(t *testing.T) map[string]counter.Store {
	t.Helper()

	r, _ := newRedisCounter(t)
	return map[string]counter.Store{
		"kv":    counter.NewKV(kvstore.NewMemory(0)),
		"redis": r,
	}
}

func TestStore_IncrementIsMonotonic(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			n, err := store.Get(ctx, "github")
			require.NoError(t, err)
			assert.Zero(t, n)

			for want := 1; want <= 3; want++ {
				got, incErr := store.Increment(ctx, "github")
				require.NoError(t, incErr)
				assert.Equal(t, want, got)
			}

			_, err = store.Increment(ctx, "blog")
			require.NoError(t, err)

			all, err := store.All(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[string]int{"github": 3, "blog": 1}, all)
		})
	}
}

func TestStore_Reset(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			_, err := store.Increment(ctx, "github")
			require.NoError(t, err)
			require.NoError(t, store.Reset(ctx))

			n, err := store.Get(ctx, "github")
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestKV_StoresJSONUnderCanonicalKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mem := kvstore.NewMemory(0)
	kv := counter.NewKV(mem)
	_, err := kv.Increment(ctx, "github")
	require.NoError(t, err)

	raw, ok, err := mem.Get(ctx, counter.Key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"github":1}`, raw)
}

func TestKV_CorruptTallyStartsOver(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mem := kvstore.NewMemory(0)
	require.NoError(t, mem.Set(ctx, counter.Key, "{not json"))

	n, err := counter.NewKV(mem).Increment(ctx, "github")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestKV_SharedInstanceSerializesWriters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	kv := counter.NewKV(kvstore.NewMemory(0))

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			_, _ = kv.Increment(ctx, "github")
		})
	}
	wg.Wait()

	n, err := kv.Get(ctx, "github")
	require.NoError(t, err)
	assert.Equal(t, 50, n)
}

func TestRedis_ConcurrentIncrementsAcrossInstances(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			// a fresh instance per writer, like one per request
			_, _ = counter.NewRedis(client, kvstore.ProfilePrefix("p1"), 0).Increment(ctx, "github")
		})
	}
	wg.Wait()

	n, err := counter.NewRedis(client, kvstore.ProfilePrefix("p1"), 0).Get(ctx, "github")
	require.NoError(t, err)
	assert.Equal(t, 50, n)
}

func TestRedis_IncrementRefreshesTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r, mr := newRedisCounter(t)
	key := kvstore.ProfilePrefix("p1") + counter.Key

	_, err := r.Increment(ctx, "github")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, mr.TTL(key))

	mr.FastForward(23 * time.Hour)
	n, err := r.Increment(ctx, "github")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 24*time.Hour, mr.TTL(key))

	mr.FastForward(25 * time.Hour)
	n, err = r.Get(ctx, "github")
	require.NoError(t, err)
	assert.Zero(t, n)
}
