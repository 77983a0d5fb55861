// Package cache provides the namespaced TTL store used to memoize expensive
// external calls. Values are strings; callers serialize structured results
// themselves so the memory and Redis backends behave identically.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ragchat-api-go/internal/config"
	"github.com/sirupsen/logrus"
)

// DefaultTTL applies when a caller passes a non-positive TTL.
const DefaultTTL = 5 * time.Minute

// Stats reports cache occupancy.
type Stats struct {
	Size       int
	Namespaces []string
}

// Service defines cache operations.
//
// GetOrSet is best-effort only: concurrent callers missing on the same key
// may each invoke the factory. No mutual exclusion is guaranteed; the last
// write wins. Callers needing single-flight semantics must layer it above.
type Service interface {
	Get(ctx context.Context, namespace, key string) (string, bool)
	Set(ctx context.Context, namespace, key, value string, ttl time.Duration) error
	GetOrSet(ctx context.Context, namespace, key string, ttl time.Duration, factory func(ctx context.Context) (string, error)) (string, error)
	Delete(ctx context.Context, namespace, key string) error
	Clear(ctx context.Context, namespace string) error
	Stats(ctx context.Context) Stats
}

// New selects the cache backend from configuration. A disabled cache returns
// a no-op implementation so callers never branch.
func New(cfg *config.Config, logger *logrus.Logger) (Service, error) {
	if !cfg.Cache.Enabled {
		return &noopCache{}, nil
	}

	switch cfg.Cache.Backend {
	case "redis":
		return newRedisCache(cfg, logger)
	case "", "memory":
		return newMemoryCache(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Cache.Backend)
	}
}

// Key builds a stable compound cache key from its parts.
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(hash[:])
}

func buildKey(namespace, key string) string {
	if namespace == "" {
		return key
	}
	return namespace + ":" + key
}

func getOrSet(ctx context.Context, s Service, namespace, key string, ttl time.Duration, factory func(ctx context.Context) (string, error)) (string, error) {
	if value, found := s.Get(ctx, namespace, key); found {
		return value, nil
	}

	value, err := factory(ctx)
	if err != nil {
		return "", err
	}

	if err := s.Set(ctx, namespace, key, value, ttl); err != nil {
		return value, err
	}
	return value, nil
}

// noopCache is used when caching is disabled.
type noopCache struct{}

func (n *noopCache) Get(ctx context.Context, namespace, key string) (string, bool) { return "", false }
func (n *noopCache) Set(ctx context.Context, namespace, key, value string, ttl time.Duration) error {
	return nil
}
func (n *noopCache) GetOrSet(ctx context.Context, namespace, key string, ttl time.Duration, factory func(ctx context.Context) (string, error)) (string, error) {
	return factory(ctx)
}
func (n *noopCache) Delete(ctx context.Context, namespace, key string) error { return nil }
func (n *noopCache) Clear(ctx context.Context, namespace string) error       { return nil }
func (n *noopCache) Stats(ctx context.Context) Stats                         { return Stats{} }
