// Package handlers exposes the HTTP surface of the service.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ragchat-api-go/internal/formatter"
	"github.com/ragchat-api-go/internal/models"
	"github.com/ragchat-api-go/internal/resilience"
	"github.com/ragchat-api-go/internal/services/chat"
	"github.com/ragchat-api-go/pkg/markdown"
	"github.com/sirupsen/logrus"
)

const maxPromptLength = 4096

// ChatHandler serves the chat endpoints
type ChatHandler struct {
	processor chat.Service
	logger    *logrus.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(processor chat.Service, logger *logrus.Logger) *ChatHandler {
	return &ChatHandler{
		processor: processor,
		logger:    logger,
	}
}

type chatResponse struct {
	models.ChatOutput
	ContentHTML string `json:"contentHTML,omitempty"`
}

type titleRequest struct {
	Prompt string `json:"prompt"`
}

type titleResponse struct {
	Title string `json:"title"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var input models.ChatInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input.Prompt = strings.TrimSpace(input.Prompt)
	if input.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if len(input.Prompt) > maxPromptLength {
		writeError(w, http.StatusBadRequest, "prompt too long")
		return
	}

	output, err := h.processor.Process(r.Context(), input)
	if err != nil {
		h.logger.WithError(err).Error("Chat processing failed")
		if errors.Is(err, resilience.ErrCircuitOpen) {
			writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "failed to generate a response")
		return
	}

	response := chatResponse{ChatOutput: *output}
	if envelope := formatter.ParseEnvelope(output.Content); envelope != nil {
		response.ContentHTML = markdown.ToSafeHTML(envelope.Translated)
	}

	writeJSON(w, http.StatusOK, response)
}

// Title handles POST /api/chat/title
func (h *ChatHandler) Title(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	title := h.processor.GenerateTitle(r.Context(), req.Prompt)
	writeJSON(w, http.StatusOK, titleResponse{Title: title})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
