package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/ragchat-api-go/internal/config"
	"github.com/sirupsen/logrus"
)

// keyPrefix scopes all cache keys so a shared Redis instance can be flushed
// safely.
const keyPrefix = "ragchat:cache:"

// redisCache is the shared backend for multi-instance deployments.
type redisCache struct {
	client     *redis.Client
	defaultTTL time.Duration
	logger     *logrus.Logger
}

func newRedisCache(cfg *config.Config, logger *logrus.Logger) (*redisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &redisCache{
		client:     client,
		defaultTTL: ttl,
		logger:     logger,
	}, nil
}

func (c *redisCache) Get(ctx context.Context, namespace, key string) (string, bool) {
	val, err := c.client.Get(ctx, keyPrefix+buildKey(namespace, key)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.logger.WithError(err).Warn("Cache read failed")
		return "", false
	}
	return val, true
}

func (c *redisCache) Set(ctx context.Context, namespace, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	return c.client.Set(ctx, keyPrefix+buildKey(namespace, key), value, ttl).Err()
}

func (c *redisCache) GetOrSet(ctx context.Context, namespace, key string, ttl time.Duration, factory func(ctx context.Context) (string, error)) (string, error) {
	return getOrSet(ctx, c, namespace, key, ttl, factory)
}

func (c *redisCache) Delete(ctx context.Context, namespace, key string) error {
	return c.client.Del(ctx, keyPrefix+buildKey(namespace, key)).Err()
}

func (c *redisCache) Clear(ctx context.Context, namespace string) error {
	pattern := keyPrefix + "*"
	if namespace != "" {
		pattern = keyPrefix + namespace + ":*"
	}

	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (c *redisCache) Stats(ctx context.Context) Stats {
	namespaces := make(map[string]struct{})
	size := 0

	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		size++
		rest := iter.Val()[len(keyPrefix):]
		for i := 0; i < len(rest); i++ {
			if rest[i] == ':' {
				namespaces[rest[:i]] = struct{}{}
				break
			}
		}
	}

	names := make([]string, 0, len(namespaces))
	for ns := range namespaces {
		names = append(names, ns)
	}

	return Stats{Size: size, Namespaces: names}
}
