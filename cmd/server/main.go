package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/ragchat-api-go/internal/config"
	"github.com/ragchat-api-go/internal/formatter"
	"github.com/ragchat-api-go/internal/handlers"
	"github.com/ragchat-api-go/internal/i18n"
	"github.com/ragchat-api-go/internal/middleware"
	"github.com/ragchat-api-go/internal/resilience"
	"github.com/ragchat-api-go/internal/services/cache"
	"github.com/ragchat-api-go/internal/services/chat"
	"github.com/ragchat-api-go/internal/services/health"
	"github.com/ragchat-api-go/internal/services/llm"
	"github.com/ragchat-api-go/internal/services/rag"
	"github.com/ragchat-api-go/internal/services/search"
	"github.com/ragchat-api-go/pkg/logger"
	"github.com/sirupsen/logrus"
)

const version = "1.0.0"

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// Load .env file if exists
	if err := godotenv.Load(*envFile); err != nil {
		// It's okay if .env doesn't exist
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting chat API server...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize i18n
	localizer, err := i18n.NewLocalizer(cfg.I18n.DefaultLanguage, cfg.I18n.Dir)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Initialize cache
	cacheService, err := cache.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize cache")
	}

	// Initialize resilience primitives, one breaker per external dependency
	retryPolicy := resilience.RetryPolicy{
		MaxAttempts:       cfg.Resilience.Retry.MaxAttempts,
		BaseDelay:         cfg.Resilience.Retry.BaseDelay,
		MaxDelay:          cfg.Resilience.Retry.MaxDelay,
		BackoffMultiplier: cfg.Resilience.Retry.BackoffMultiplier,
		JitterFraction:    cfg.Resilience.Retry.JitterFraction,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			log.WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   delay.String(),
				"error":   err.Error(),
			}).Warn("External call failed, retrying")
		},
	}
	llmBreaker := resilience.NewCircuitBreaker("llm", cfg.Resilience.LLMBreaker.Threshold, cfg.Resilience.LLMBreaker.ResetTimeout, log)
	searchBreaker := resilience.NewCircuitBreaker("solr", cfg.Resilience.SearchBreaker.Threshold, cfg.Resilience.SearchBreaker.ResetTimeout, log)
	var quota *resilience.RateLimiter
	if cfg.RateLimit.Enabled {
		quota = resilience.NewRateLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	}

	// Initialize external clients with their resilient decorators
	gateway := llm.NewGateway(&cfg.LLM, log)
	llmService := llm.NewResilient(gateway, retryPolicy, llmBreaker)

	solrClient := search.NewClient(&cfg.Solr, log)
	searchService := search.NewResilient(solrClient, searchBreaker, cacheService, cfg.Cache.TTL, log)

	// Initialize domain services
	ragService := rag.New(searchService, llmService, localizer, log)

	metrics := middleware.NewMetrics()
	processor := chat.NewProcessor(ragService, llmService, formatter.New(localizer), metrics, log)

	// Health checker probes the raw clients so breaker state never masks a
	// recovered dependency
	checker := health.NewChecker(version, log,
		health.Probe{Name: "solr", Critical: true, Check: solrClient.Health},
		health.Probe{Name: "llm", Critical: true, Check: gateway.Health},
	)
	go checker.RunPeriodic(ctx, time.Minute)

	// Start metrics server if enabled
	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	// Initialize handlers
	chatHandler := handlers.NewChatHandler(processor, log)
	healthHandler := handlers.NewHealthHandler(checker, log)
	documentHandler := handlers.NewDocumentHandler(searchService, log)

	clientLimiter := middleware.NewClientLimiter(cfg, log)
	rateLimit := middleware.RateLimit(clientLimiter, quota, localizer, metrics, log)

	// Setup router
	router := mux.NewRouter()
	router.Use(middleware.HTTPMetrics)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(rateLimit)
	api.HandleFunc("/chat", chatHandler.Chat).Methods("POST")
	api.HandleFunc("/chat/title", chatHandler.Title).Methods("POST")
	api.HandleFunc("/documents/{id}", documentHandler.Delete).Methods("DELETE")

	router.HandleFunc("/health", healthHandler.Quick).Methods("GET")
	router.HandleFunc("/health/detailed", healthHandler.Detailed).Methods("GET")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.WithField("port", cfg.Server.Port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-sigChan
	log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}

	cancel()
	log.Info("Server stopped")
}
