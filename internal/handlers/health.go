package handlers

import (
	"net/http"

	"github.com/ragchat-api-go/internal/services/health"
	"github.com/sirupsen/logrus"
)

// HealthHandler serves the health endpoints
type HealthHandler struct {
	checker *health.Checker
	logger  *logrus.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker *health.Checker, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		logger:  logger,
	}
}

// Quick handles GET /health
func (h *HealthHandler) Quick(w http.ResponseWriter, r *http.Request) {
	status := h.checker.Quick(r.Context())
	code := http.StatusOK
	if status.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// Detailed handles GET /health/detailed
func (h *HealthHandler) Detailed(w http.ResponseWriter, r *http.Request) {
	status := h.checker.Check(r.Context())
	code := http.StatusOK
	if status.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
