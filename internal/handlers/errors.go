package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/combat-engine/pkg/combatant"
	"github.com/jwebster45206/combat-engine/pkg/encounter"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError sends a JSON error body with the given status
func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		logger.Error("Failed to encode error response", "error", err)
	}
}

// writeEngineError maps engine sentinel errors to HTTP statuses.
// Configuration problems are the caller's fault (400), invariant
// violations describe a state the rules forbid (422), and unknown
// combatants are 404.
func writeEngineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, encounter.ErrNotFound):
		writeError(w, logger, http.StatusNotFound, err.Error())
	case errors.Is(err, combatant.ErrConfiguration):
		writeError(w, logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, combatant.ErrInvariant):
		writeError(w, logger, http.StatusUnprocessableEntity, err.Error())
	default:
		logger.Error("Unexpected engine error", "error", err)
		writeError(w, logger, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON sends a JSON response with the given status
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}
