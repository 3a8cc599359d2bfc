package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mlundquist/saga-engine/internal/engine"
	"github.com/mlundquist/saga-engine/pkg/economy"
)

// CampaignHandler serves the campaign lifecycle.
// Routes:
// POST /v1/campaigns          - Create a new campaign
// GET /v1/campaigns/{id}      - Read campaign state
// DELETE /v1/campaigns/{id}   - Delete a campaign
type CampaignHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func NewCampaignHandler(engine *engine.Engine, logger *slog.Logger) *CampaignHandler {
	return &CampaignHandler{
		engine: engine,
		logger: logger,
	}
}

type CreateCampaignRequest struct {
	UserID  string `json:"user_id"`
	WorldID string `json:"world_id"`
	Tier    string `json:"tier,omitempty"`
}

func (h *CampaignHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	path := strings.TrimPrefix(r.URL.Path, "/v1/campaigns")
	var campaignID uuid.UUID
	if path != "" && path != "/" {
		idStr := strings.Trim(path, "/")
		var err error
		campaignID, err = uuid.Parse(idStr)
		if err != nil {
			h.logger.Warn("Invalid campaign ID", "id", idStr, "error", err)
			writeError(w, h.logger, http.StatusBadRequest, "Invalid campaign ID format", engine.CodeValidation)
			return
		}
	}

	switch r.Method {
	case http.MethodPost:
		h.handleCreate(w, r)
	case http.MethodGet:
		if campaignID == uuid.Nil {
			writeError(w, h.logger, http.StatusBadRequest, "Campaign ID is required for GET requests", engine.CodeValidation)
			return
		}
		h.handleRead(w, r, campaignID)
	case http.MethodDelete:
		if campaignID == uuid.Nil {
			writeError(w, h.logger, http.StatusBadRequest, "Campaign ID is required for DELETE requests", engine.CodeValidation)
			return
		}
		h.handleDelete(w, r, campaignID)
	default:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST, GET, DELETE", "")
	}
}

func (h *CampaignHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body", engine.CodeValidation)
		return
	}

	tier, err := economy.ParseTier(req.Tier)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error(), engine.CodeValidation)
		return
	}

	gs, err := h.engine.CreateCampaign(r.Context(), req.UserID, req.WorldID, tier)
	if err != nil {
		code := engine.Code(err)
		h.logger.Warn("Campaign creation failed", "user_id", req.UserID, "error", err)
		writeError(w, h.logger, statusFor(code), err.Error(), code)
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(gs); err != nil {
		h.logger.Error("Failed to encode campaign response", "error", err)
	}
}

func (h *CampaignHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	gs, err := h.engine.GetCampaign(r.Context(), id)
	if err != nil {
		code := engine.Code(err)
		writeError(w, h.logger, statusFor(code), err.Error(), code)
		return
	}

	if err := json.NewEncoder(w).Encode(gs); err != nil {
		h.logger.Error("Failed to encode campaign response", "error", err)
	}
}

func (h *CampaignHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.engine.DeleteCampaign(r.Context(), id); err != nil {
		writeError(w, h.logger, http.StatusInternalServerError, err.Error(), engine.CodeInternal)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
