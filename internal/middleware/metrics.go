package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragchat_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ragchat_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// Chat pipeline metrics
	chatRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragchat_chat_requests_total",
		Help: "Total number of chat requests",
	}, []string{"path", "status"})

	chatStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ragchat_chat_stage_duration_seconds",
		Help:    "Duration of chat pipeline stages",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	// LLM metrics
	llmRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragchat_llm_requests_total",
		Help: "Total number of language model requests",
	}, []string{"status"})

	// Cache metrics
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ragchat_cache_hits_total",
		Help: "Total number of cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ragchat_cache_misses_total",
		Help: "Total number of cache misses",
	})

	// Rate limit metrics
	rateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ragchat_rate_limit_exceeded_total",
		Help: "Total number of rate limit exceeded events",
	}, []string{"client"})

	// Breaker state gauge, one series per protected dependency
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ragchat_circuit_breaker_open",
		Help: "Whether a circuit breaker is currently open (1) or not (0)",
	}, []string{"name"})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordChatRequest records a completed chat request
func (m *Metrics) RecordChatRequest(path, status string) {
	chatRequestsTotal.WithLabelValues(path, status).Inc()
}

// RecordChatStage records the duration of one pipeline stage
func (m *Metrics) RecordChatStage(stage string, duration time.Duration) {
	chatStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordLLMRequest records a language model request
func (m *Metrics) RecordLLMRequest(status string) {
	llmRequestsTotal.WithLabelValues(status).Inc()
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit() {
	cacheHits.Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss() {
	cacheMisses.Inc()
}

// RecordRateLimitExceeded records a rate limit exceeded event
func (m *Metrics) RecordRateLimitExceeded(client string) {
	rateLimitExceeded.WithLabelValues(client).Inc()
}

// SetBreakerOpen flags a breaker as open or closed
func (m *Metrics) SetBreakerOpen(name string, open bool) {
	value := 0.0
	if open {
		value = 1.0
	}
	breakerState.WithLabelValues(name).Set(value)
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPMetrics instruments every request with a counter and duration histogram
func HTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if template, err := route.GetPathTemplate(); err == nil {
				path = template
			}
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// StartMetricsServer starts the metrics HTTP server
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
