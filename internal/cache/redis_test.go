package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), RedisConfig{Address: mr.Addr(), Prefix: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	_, ok, err := store.Load(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, "goal:a:1", sampleResult(70), time.Minute))
	assert.True(t, mr.Exists("test:result:goal:a:1"))

	got, ok, err := store.Load(ctx, "goal:a:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 70.0, got.SuccessProbability)
	assert.Equal(t, []float64{1, 2, 3}, got.PercentilePaths.P50)

	mr.FastForward(2 * time.Minute)
	_, ok, err = store.Load(ctx, "goal:a:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreDeletePrefixAndFlush(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	require.NoError(t, store.Save(ctx, "goal:a:1", sampleResult(1), time.Minute))
	require.NoError(t, store.Save(ctx, "goal:a:2", sampleResult(2), time.Minute))
	require.NoError(t, store.Save(ctx, "goal:b:1", sampleResult(3), time.Minute))
	require.NoError(t, mr.Set("other:key", "untouched"))

	n, err := store.DeletePrefix(ctx, "goal:a:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, mr.Exists("test:result:goal:b:1"))

	require.NoError(t, store.Delete(ctx, "goal:b:1"))
	assert.False(t, mr.Exists("test:result:goal:b:1"))

	require.NoError(t, store.Save(ctx, "goal:c:1", sampleResult(4), time.Minute))
	require.NoError(t, store.Flush(ctx))
	assert.False(t, mr.Exists("test:result:goal:c:1"))
	assert.True(t, mr.Exists("other:key"))
}

func TestRedisStoreDeletePrefixTreatsGlobCharactersLiterally(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	require.NoError(t, store.Save(ctx, "goal:a*:1", sampleResult(1), time.Minute))
	require.NoError(t, store.Save(ctx, "goal:ab:1", sampleResult(2), time.Minute))
	require.NoError(t, store.Save(ctx, "goal:[a]:1", sampleResult(3), time.Minute))
	require.NoError(t, store.Save(ctx, "goal:a:1", sampleResult(4), time.Minute))

	n, err := store.DeletePrefix(ctx, "goal:a*:")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, mr.Exists("test:result:goal:a*:1"))
	assert.True(t, mr.Exists("test:result:goal:ab:1"))

	n, err = store.DeletePrefix(ctx, "goal:[a]:")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, mr.Exists("test:result:goal:a:1"))
	assert.True(t, mr.Exists("test:result:goal:ab:1"))
}

func TestCacheFallsBackToRedisTier(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	writer := New(zap.NewNop(), Options{Store: store})
	writer.Set(ctx, "goal:a:1", sampleResult(55))

	// A fresh process with an empty memory tier still finds the result.
	reader := New(zap.NewNop(), Options{Store: store})
	got, ok := reader.Get(ctx, "goal:a:1")
	require.True(t, ok)
	assert.Equal(t, 55.0, got.SuccessProbability)
	assert.Equal(t, uint64(1), reader.Stats().StoreHits)
	assert.Equal(t, 1, reader.Len())

	reader.InvalidatePrefix(ctx, "goal:a:")
	_, ok = New(zap.NewNop(), Options{Store: store}).Get(ctx, "goal:a:1")
	assert.False(t, ok)
}

func TestNewRedisStoreFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(context.Background(), RedisConfig{Address: addr})
	assert.Error(t, err)
}

func TestNewRedisStoreFromClientDefaultsPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	defer store.Close()
	require.NoError(t, store.Save(context.Background(), "k", sampleResult(1), time.Minute))
	assert.True(t, mr.Exists("goalprob:result:k"))
}

func TestJanitorPurgesExpiredEntries(t *testing.T) {
	clk := &clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(zap.NewNop(), Options{TTL: time.Minute, Now: clk.Now})
	c.Set(context.Background(), "a", sampleResult(1))
	clk.now = clk.now.Add(time.Hour)

	j, err := StartJanitor(zap.NewNop(), c, "@every 1s")
	require.NoError(t, err)
	defer j.Stop()

	assert.Eventually(t, func() bool { return c.Len() == 0 }, 5*time.Second, 50*time.Millisecond)
}

func TestJanitorRejectsBadSchedule(t *testing.T) {
	_, err := StartJanitor(zap.NewNop(), New(zap.NewNop(), Options{}), "not a schedule")
	assert.Error(t, err)
}
