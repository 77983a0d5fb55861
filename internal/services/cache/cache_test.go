package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ragchat-api-go/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) Service {
	t.Helper()
	cfg := &config.Config{}
	cfg.Cache.Enabled = true
	cfg.Cache.Backend = "memory"
	cfg.Cache.TTL = time.Minute

	logger := logrus.New()
	svc, err := New(cfg, logger)
	require.NoError(t, err)
	return svc
}

func TestCache_SetAndGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "search", "k1", "v1", time.Minute))

	got, found := c.Get(ctx, "search", "k1")
	assert.True(t, found)
	assert.Equal(t, "v1", got)

	_, found = c.Get(ctx, "search", "missing")
	assert.False(t, found)
}

func TestCache_NamespacesAreIsolated(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "k", "from-a", time.Minute))
	require.NoError(t, c.Set(ctx, "b", "k", "from-b", time.Minute))

	got, _ := c.Get(ctx, "a", "k")
	assert.Equal(t, "from-a", got)
	got, _ = c.Get(ctx, "b", "k")
	assert.Equal(t, "from-b", got)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ns", "k", "v", 30*time.Millisecond))

	_, found := c.Get(ctx, "ns", "k")
	assert.True(t, found)

	time.Sleep(50 * time.Millisecond)
	_, found = c.Get(ctx, "ns", "k")
	assert.False(t, found, "entry should expire after its TTL")
}

func TestCache_GetOrSet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	calls := 0
	factory := func(ctx context.Context) (string, error) {
		calls++
		return "computed", nil
	}

	got, err := c.GetOrSet(ctx, "ns", "k", time.Minute, factory)
	require.NoError(t, err)
	assert.Equal(t, "computed", got)
	assert.Equal(t, 1, calls)

	// Second call is served from cache.
	got, err = c.GetOrSet(ctx, "ns", "k", time.Minute, factory)
	require.NoError(t, err)
	assert.Equal(t, "computed", got)
	assert.Equal(t, 1, calls)
}

func TestCache_GetOrSet_FactoryErrorNotCached(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	boom := errors.New("factory failed")
	_, err := c.GetOrSet(ctx, "ns", "k", time.Minute, func(ctx context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)

	_, found := c.Get(ctx, "ns", "k")
	assert.False(t, found)
}

func TestCache_ClearNamespace(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "search", "k1", "v1", time.Minute))
	require.NoError(t, c.Set(ctx, "search", "k2", "v2", time.Minute))
	require.NoError(t, c.Set(ctx, "other", "k1", "v3", time.Minute))

	require.NoError(t, c.Clear(ctx, "search"))

	_, found := c.Get(ctx, "search", "k1")
	assert.False(t, found)
	_, found = c.Get(ctx, "other", "k1")
	assert.True(t, found)

	require.NoError(t, c.Clear(ctx, ""))
	_, found = c.Get(ctx, "other", "k1")
	assert.False(t, found)
}

func TestCache_Stats(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "search", "k1", "v1", time.Minute))
	require.NoError(t, c.Set(ctx, "llm", "k2", "v2", time.Minute))

	stats := c.Stats(ctx)
	assert.Equal(t, 2, stats.Size)
	assert.ElementsMatch(t, []string{"search", "llm"}, stats.Namespaces)
}

func TestCache_DisabledIsNoop(t *testing.T) {
	cfg := &config.Config{}
	cfg.Cache.Enabled = false

	c, err := New(cfg, logrus.New())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "ns", "k", "v", time.Minute))
	_, found := c.Get(ctx, "ns", "k")
	assert.False(t, found)

	calls := 0
	got, err := c.GetOrSet(ctx, "ns", "k", time.Minute, func(ctx context.Context) (string, error) {
		calls++
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
	assert.Equal(t, 1, calls)
}

func TestKey_IsStable(t *testing.T) {
	k1 := Key("query", "d1,d2", "5")
	k2 := Key("query", "d1,d2", "5")
	k3 := Key("query", "d1,d2", "6")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, 64)
}
