package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/combat-engine/pkg/storage"
)

// TemplateHandler serves the combatant template library.
type TemplateHandler struct {
	logger  *slog.Logger
	storage storage.Storage
}

func NewTemplateHandler(logger *slog.Logger, storage storage.Storage) *TemplateHandler {
	return &TemplateHandler{
		logger:  logger,
		storage: storage,
	}
}

func (h *TemplateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if r.URL.Path == "/v1/templates" || r.URL.Path == "/v1/templates/" {
			h.ListTemplates(w, r)
		} else {
			h.GetTemplate(w, r)
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.storage.ListTemplates(r.Context())
	if err != nil {
		h.logger.Error("Failed to list templates", "error", err)
		http.Error(w, "Failed to list templates", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"templates": templates,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/templates/")
	templateID := strings.TrimSpace(path)

	if templateID == "" || templateID == "/" {
		http.Error(w, "Template ID is required in URL path (e.g., /v1/templates/goblin)", http.StatusBadRequest)
		return
	}

	if strings.Contains(templateID, "..") || strings.Contains(templateID, "/") {
		http.Error(w, "Invalid template ID", http.StatusBadRequest)
		return
	}

	spec, err := h.storage.GetTemplate(r.Context(), templateID)
	if err != nil {
		h.logger.Error("Failed to get template", "templateID", templateID, "error", err)
		http.Error(w, "Combatant template not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(spec); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}
