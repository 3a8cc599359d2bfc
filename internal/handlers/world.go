package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mlundquist/saga-engine/internal/storage"
)

// WorldHandler serves GET /v1/worlds, the world-variant listing.
type WorldHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

func NewWorldHandler(storage storage.Storage, logger *slog.Logger) *WorldHandler {
	return &WorldHandler{
		storage: storage,
		logger:  logger,
	}
}

func (h *WorldHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET", "")
		return
	}

	worlds, err := h.storage.ListWorlds(r.Context())
	if err != nil {
		h.logger.Error("Failed to list worlds", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to list worlds", "")
		return
	}

	if err := json.NewEncoder(w).Encode(worlds); err != nil {
		h.logger.Error("Failed to encode worlds response", "error", err)
	}
}
