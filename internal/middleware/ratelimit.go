package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ragchat-api-go/internal/config"
	"github.com/ragchat-api-go/internal/i18n"
	"github.com/ragchat-api-go/internal/resilience"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ClientLimiter smooths per-client request bursts at the HTTP edge. It sits
// in front of the windowed quota, which enforces the hard per-window cap.
type ClientLimiter struct {
	enabled  bool
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rpm      int
	burst    int
	logger   *logrus.Logger
}

// NewClientLimiter creates a new per-client token bucket limiter
func NewClientLimiter(cfg *config.Config, logger *logrus.Logger) *ClientLimiter {
	if !cfg.RateLimit.Enabled {
		return &ClientLimiter{enabled: false}
	}

	cl := &ClientLimiter{
		enabled:  true,
		limiters: make(map[string]*rate.Limiter),
		rpm:      cfg.RateLimit.RequestsPerMinute,
		burst:    cfg.RateLimit.Burst,
		logger:   logger,
	}

	go cl.cleanup()

	return cl
}

// Allow checks if a client may make a request right now
func (c *ClientLimiter) Allow(client string) bool {
	if !c.enabled {
		return true
	}
	return c.getLimiter(client).Allow()
}

func (c *ClientLimiter) getLimiter(client string) *rate.Limiter {
	c.mu.RLock()
	limiter, exists := c.limiters[client]
	c.mu.RUnlock()

	if exists {
		return limiter
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if limiter, exists := c.limiters[client]; exists {
		return limiter
	}

	rps := float64(c.rpm) / 60.0
	limiter = rate.NewLimiter(rate.Limit(rps), c.burst)
	c.limiters[client] = limiter

	return limiter
}

func (c *ClientLimiter) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		if len(c.limiters) > 10000 {
			c.logger.Warn("Client limiter map size exceeded threshold, clearing")
			c.limiters = make(map[string]*rate.Limiter)
		}
		c.mu.Unlock()
	}
}

// clientKey identifies the caller, preferring the forwarded address when the
// service runs behind a proxy.
func clientKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit rejects callers that exceed either the per-client token bucket
// or the per-window request quota with a localized 429 response.
func RateLimit(limiter *ClientLimiter, quota *resilience.RateLimiter, localizer *i18n.Localizer, metrics *Metrics, logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientKey(r)

			allowed := limiter.Allow(client)
			if allowed && quota != nil {
				allowed = quota.Allow(client)
			}

			if !allowed {
				logger.WithFields(logrus.Fields{
					"client": client,
					"path":   r.URL.Path,
				}).Warn("Rate limit exceeded")
				metrics.RecordRateLimitExceeded(client)

				lang := r.Header.Get("Accept-Language")
				if !strings.HasPrefix(lang, "ja") {
					lang = "en"
				} else {
					lang = "ja"
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": localizer.Get(lang, i18n.MsgRateLimited),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
