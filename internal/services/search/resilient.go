package search

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/ragchat-api-go/internal/resilience"
	"github.com/ragchat-api-go/internal/services/cache"
	"github.com/sirupsen/logrus"
)

const cacheNamespace = "search"

// Resilient wraps a search client with a circuit breaker and result
// memoization. Cached entries bypass the breaker entirely.
type Resilient struct {
	inner    Service
	breaker  *resilience.CircuitBreaker
	cache    cache.Service
	cacheTTL time.Duration
	logger   *logrus.Logger
}

// NewResilient decorates the given search client.
func NewResilient(inner Service, breaker *resilience.CircuitBreaker, cacheSvc cache.Service, cacheTTL time.Duration, logger *logrus.Logger) *Resilient {
	return &Resilient{
		inner:    inner,
		breaker:  breaker,
		cache:    cacheSvc,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

func searchCacheKey(query string, scope []string, limit int) string {
	return cache.Key(query, strings.Join(scope, ","), strconv.Itoa(limit))
}

func (r *Resilient) Search(ctx context.Context, query string, scope []string, limit int) (*Result, error) {
	key := searchCacheKey(query, scope, limit)

	if cached, found := r.cache.Get(ctx, cacheNamespace, key); found {
		var result Result
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			r.logger.WithField("query", query).Debug("Search served from cache")
			return &result, nil
		}
		// Unreadable entry, fall through to a fresh search.
		r.cache.Delete(ctx, cacheNamespace, key)
	}

	var result *Result
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = r.inner.Search(ctx, query, scope, limit)
		return innerErr
	})
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(result); err == nil {
		if err := r.cache.Set(ctx, cacheNamespace, key, string(encoded), r.cacheTTL); err != nil {
			r.logger.WithError(err).Warn("Failed to cache search result")
		}
	}
	return result, nil
}

// Delete invalidates the whole search namespace since any cached query may
// have matched the removed document.
func (r *Resilient) Delete(ctx context.Context, documentID string) error {
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.inner.Delete(ctx, documentID)
	})
	if err != nil {
		return err
	}
	if err := r.cache.Clear(ctx, cacheNamespace); err != nil {
		r.logger.WithError(err).Warn("Failed to invalidate search cache")
	}
	return nil
}

// Health bypasses breaker and cache.
func (r *Resilient) Health(ctx context.Context) error {
	return r.inner.Health(ctx)
}
