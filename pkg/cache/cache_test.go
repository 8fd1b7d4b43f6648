package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(t *testing.T, opts ...MemoryOption) (*MemoryCache, *time.Time) {
	t.Helper()
	mc := NewMemoryCache(opts...)
	t.Cleanup(func() { _ = mc.Close() })
	clock := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return clock }
	return mc, &clock
}

func TestMemoryCache_GetSetExpire(t *testing.T) {
	ctx := context.Background()
	mc, clock := newTestMemory(t)

	_, err := mc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	value := []byte("page")
	require.NoError(t, mc.Set(ctx, "k", value, time.Minute))
	value[0] = 'P'

	got, err := mc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("page"), got, "stored value is a copy")

	*clock = clock.Add(2 * time.Minute)
	_, err = mc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Zero(t, mc.Len())
}

func TestMemoryCache_DefaultTTL(t *testing.T) {
	ctx := context.Background()
	mc, clock := newTestMemory(t, WithMemoryDefaultTTL(10*time.Second))

	require.NoError(t, mc.Set(ctx, "k", []byte("v"), 0))
	*clock = clock.Add(11 * time.Second)
	_, err := mc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc, clock := newTestMemory(t, WithMemoryMaxSize(2))

	require.NoError(t, mc.Set(ctx, "a", []byte("1"), time.Hour))
	*clock = clock.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "b", []byte("2"), time.Hour))
	*clock = clock.Add(time.Second)
	_, err := mc.Get(ctx, "a")
	require.NoError(t, err)
	*clock = clock.Add(time.Second)

	require.NoError(t, mc.Set(ctx, "c", []byte("3"), time.Hour))
	assert.Equal(t, 2, mc.Len())

	_, err = mc.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = mc.Get(ctx, "a")
	assert.NoError(t, err)
}

func TestMemoryCache_DeleteAndRemoveExpired(t *testing.T) {
	ctx := context.Background()
	mc, clock := newTestMemory(t)

	require.NoError(t, mc.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, mc.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, mc.Delete(ctx, "b"))

	*clock = clock.Add(2 * time.Minute)
	mc.removeExpired()
	assert.Zero(t, mc.Len())
	assert.NoError(t, mc.Close())
	assert.NoError(t, mc.Close(), "close is idempotent")
}

type brokenRemote struct{}

func (brokenRemote) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection reset")
}

func (brokenRemote) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection reset")
}

func (brokenRemote) Delete(context.Context, ...string) error { return nil }

func (brokenRemote) Close() error { return nil }

func TestLayeredCache(t *testing.T) {
	ctx := context.Background()
	l1, _ := newTestMemory(t)
	l2, _ := newTestMemory(t)
	lc := NewLayeredCache(l1, l2, time.Minute)

	require.NoError(t, l2.Set(ctx, "shared", []byte("from l2"), time.Hour))
	got, err := lc.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, []byte("from l2"), got)

	got, err = l1.Get(ctx, "shared")
	require.NoError(t, err, "filled into L1")
	assert.Equal(t, []byte("from l2"), got)

	require.NoError(t, lc.Set(ctx, "new", []byte("v"), time.Hour))
	_, err = l2.Get(ctx, "new")
	assert.NoError(t, err)

	require.NoError(t, lc.Delete(ctx, "new"))
	_, err = lc.Get(ctx, "new")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLayeredCache_RemoteOutage(t *testing.T) {
	ctx := context.Background()
	l1, _ := newTestMemory(t)
	lc := NewLayeredCache(l1, brokenRemote{}, time.Minute)

	_, err := lc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	assert.Error(t, lc.Set(ctx, "k", []byte("v"), time.Hour))
	got, err := lc.Get(ctx, "k")
	require.NoError(t, err, "L1 still serves")
	assert.Equal(t, []byte("v"), got)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()

	rc, err := NewRedisCache(WithRedisAddr(addr), WithRedisPrefix("earnpull-test"))
	require.NoError(t, err)
	defer rc.Close()

	require.NoError(t, rc.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := rc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, rc.Delete(ctx, "k"))
	_, err = rc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "page:abc", GenerateKey("page", "abc"))
	assert.Len(t, HashKey("/stocks.asp?symbol=AAPL"), 32)
}
