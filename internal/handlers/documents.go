package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/ragchat-api-go/internal/services/search"
	"github.com/sirupsen/logrus"
)

// DocumentHandler serves document administration endpoints
type DocumentHandler struct {
	search search.Service
	logger *logrus.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(searchSvc search.Service, logger *logrus.Logger) *DocumentHandler {
	return &DocumentHandler{
		search: searchSvc,
		logger: logger,
	}
}

// Delete handles DELETE /api/documents/{id}
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	if err := h.search.Delete(r.Context(), id); err != nil {
		h.logger.WithError(err).WithField("documentID", id).Error("Document deletion failed")
		writeError(w, http.StatusBadGateway, "failed to delete document")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
