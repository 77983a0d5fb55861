package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/ragchat-api-go/internal/config"
	"github.com/sirupsen/logrus"
)

// memoryCache is the in-process backend. Expired entries are dropped lazily
// on read and swept periodically by the underlying store.
type memoryCache struct {
	cache      *gocache.Cache
	defaultTTL time.Duration
	logger     *logrus.Logger
}

func newMemoryCache(cfg *config.Config, logger *logrus.Logger) *memoryCache {
	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	sweep := cfg.Cache.SweepInterval
	if sweep <= 0 {
		sweep = time.Minute
	}

	return &memoryCache{
		cache:      gocache.New(ttl, sweep),
		defaultTTL: ttl,
		logger:     logger,
	}
}

func (c *memoryCache) Get(ctx context.Context, namespace, key string) (string, bool) {
	val, found := c.cache.Get(buildKey(namespace, key))
	if !found {
		return "", false
	}
	return val.(string), true
}

func (c *memoryCache) Set(ctx context.Context, namespace, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.cache.Set(buildKey(namespace, key), value, ttl)
	return nil
}

func (c *memoryCache) GetOrSet(ctx context.Context, namespace, key string, ttl time.Duration, factory func(ctx context.Context) (string, error)) (string, error) {
	return getOrSet(ctx, c, namespace, key, ttl, factory)
}

func (c *memoryCache) Delete(ctx context.Context, namespace, key string) error {
	c.cache.Delete(buildKey(namespace, key))
	return nil
}

func (c *memoryCache) Clear(ctx context.Context, namespace string) error {
	if namespace == "" {
		c.cache.Flush()
		return nil
	}

	prefix := namespace + ":"
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Delete(key)
		}
	}
	return nil
}

func (c *memoryCache) Stats(ctx context.Context) Stats {
	namespaces := make(map[string]struct{})
	for key := range c.cache.Items() {
		if i := strings.IndexByte(key, ':'); i > 0 {
			namespaces[key[:i]] = struct{}{}
		}
	}

	names := make([]string, 0, len(namespaces))
	for ns := range namespaces {
		names = append(names, ns)
	}

	return Stats{
		Size:       c.cache.ItemCount(),
		Namespaces: names,
	}
}
