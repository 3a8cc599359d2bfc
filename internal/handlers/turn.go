package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mlundquist/saga-engine/internal/engine"
)

// ErrorResponse is the JSON error body every handler writes on failure.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// TurnHandler serves POST /v1/turn, the resolveTurn operation.
type TurnHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func NewTurnHandler(engine *engine.Engine, logger *slog.Logger) *TurnHandler {
	return &TurnHandler{
		engine: engine,
		logger: logger,
	}
}

func (h *TurnHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST", "")
		return
	}

	var req engine.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid turn request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body", engine.CodeValidation)
		return
	}

	resp, err := h.engine.ResolveTurn(r.Context(), req)
	if err != nil {
		code := engine.Code(err)
		h.logger.Warn("Turn failed",
			"campaign_id", req.CampaignID, "code", code, "error", err)
		writeError(w, h.logger, statusFor(code), err.Error(), code)
		return
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode turn response", "error", err)
	}
}

// statusFor maps pipeline error codes to HTTP statuses.
func statusFor(code string) int {
	switch code {
	case engine.CodeValidation:
		return http.StatusBadRequest
	case engine.CodeNotFound, engine.CodeWorldNotFound:
		return http.StatusNotFound
	case engine.CodeConflict:
		return http.StatusConflict
	case engine.CodeInsufficient:
		return http.StatusPaymentRequired
	case engine.CodeProviderFail, engine.CodeInvalidResp:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, message, code string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code}); err != nil {
		logger.Error("Failed to encode error response", "error", err)
	}
}
