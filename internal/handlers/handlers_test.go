package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlundquist/saga-engine/internal/engine"
	"github.com/mlundquist/saga-engine/internal/services"
	"github.com/mlundquist/saga-engine/internal/storage"
	"github.com/mlundquist/saga-engine/pkg/brain"
	"github.com/mlundquist/saga-engine/pkg/chat"
	"github.com/mlundquist/saga-engine/pkg/economy"
	"github.com/mlundquist/saga-engine/pkg/state"
	"github.com/mlundquist/saga-engine/pkg/voice"
	"github.com/mlundquist/saga-engine/pkg/world"
)

type fixedSource struct{ face int }

func (s fixedSource) Intn(int) int { return s.face - 1 }

type testEnv struct {
	engine *engine.Engine
	store  *storage.MockStorage
	gs     *state.GameState
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	store := storage.NewMockStorage()
	store.AddWorld(&world.World{
		ID:       "fantasy",
		Name:     "Fantasy",
		Rules:    "A low-magic fantasy realm.",
		TurnCost: 10,
	})

	gs := state.NewGameState("user-1", "fantasy")
	require.NoError(t, store.SaveGameState(context.Background(), gs))
	_, err := store.EnsureLedger(context.Background(), "user-1", 100)
	require.NoError(t, err)

	brainLLM := services.NewMockLLM()
	brainLLM.ChatFunc = func(_ context.Context, _ []chat.Message) (*chat.Completion, error) {
		return &chat.Completion{Text: `{"narrative_cues": ["The door opens."]}`}, nil
	}
	voiceLLM := services.NewMockLLM()
	voiceLLM.ChatFunc = func(_ context.Context, _ []chat.Message) (*chat.Completion, error) {
		return &chat.Completion{Text: "The door swings wide."}, nil
	}

	eng := engine.New(engine.Config{
		Storage: store,
		Brain:   brain.New(brainLLM, logger),
		Voice:   voice.New(voiceLLM, logger),
		Source:  fixedSource{face: 10},
		Logger:  logger,
	})

	return &testEnv{engine: eng, store: store, gs: gs}
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestTurnHandler_Success(t *testing.T) {
	env := setupEnv(t)
	h := NewTurnHandler(env.engine, slog.New(slog.DiscardHandler))

	w := postJSON(t, h, "/v1/turn", engine.TurnRequest{
		CampaignID: env.gs.ID,
		UserID:     "user-1",
		Input:      "I open the door",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp engine.TurnResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "The door swings wide.", resp.Narrative)
	assert.Equal(t, int64(10), resp.Cost)
	assert.Equal(t, int64(90), resp.Balance)
}

func TestTurnHandler_ErrorMapping(t *testing.T) {
	env := setupEnv(t)
	h := NewTurnHandler(env.engine, slog.New(slog.DiscardHandler))

	// Drain the balance below the turn cost.
	_, err := env.store.ChargeTurn(context.Background(), "user-1", economy.Charge{Cost: 95})
	require.NoError(t, err)

	w := postJSON(t, h, "/v1/turn", engine.TurnRequest{
		CampaignID: env.gs.ID,
		UserID:     "user-1",
		Input:      "I open the door",
	})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, engine.CodeInsufficient, errResp.Code)
}

func TestTurnHandler_ValidationError(t *testing.T) {
	env := setupEnv(t)
	h := NewTurnHandler(env.engine, slog.New(slog.DiscardHandler))

	w := postJSON(t, h, "/v1/turn", engine.TurnRequest{UserID: "user-1", Input: "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTurnHandler_MethodNotAllowed(t *testing.T) {
	env := setupEnv(t)
	h := NewTurnHandler(env.engine, slog.New(slog.DiscardHandler))

	req := httptest.NewRequest(http.MethodGet, "/v1/turn", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestTurnHandler_NotCharged(t *testing.T) {
	env := setupEnv(t)
	h := NewTurnHandler(env.engine, slog.New(slog.DiscardHandler))

	env.store.ChargeTurnFunc = func(_ context.Context, _ string, _ economy.Charge) (*economy.Ledger, error) {
		return nil, errors.New("ledger write failed")
	}

	w := postJSON(t, h, "/v1/turn", engine.TurnRequest{
		CampaignID: env.gs.ID,
		UserID:     "user-1",
		Input:      "I open the door",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, engine.CodeNotCharged, errResp.Code)
	assert.Contains(t, errResp.Error, "not charged")
}

func TestCampaignHandler_Lifecycle(t *testing.T) {
	env := setupEnv(t)
	h := NewCampaignHandler(env.engine, slog.New(slog.DiscardHandler))

	w := postJSON(t, h, "/v1/campaigns", CreateCampaignRequest{
		UserID:  "user-2",
		WorldID: "fantasy",
		Tier:    "standard",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created state.GameState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "user-2", created.UserID)
	assert.Equal(t, "fantasy", created.WorldID)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/v1/campaigns/%s", created.ID), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/v1/campaigns/%s", created.ID), nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/v1/campaigns/%s", created.ID), nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCampaignHandler_BadID(t *testing.T) {
	env := setupEnv(t)
	h := NewCampaignHandler(env.engine, slog.New(slog.DiscardHandler))

	req := httptest.NewRequest(http.MethodGet, "/v1/campaigns/not-a-uuid", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCampaignHandler_UnknownWorld(t *testing.T) {
	env := setupEnv(t)
	h := NewCampaignHandler(env.engine, slog.New(slog.DiscardHandler))

	w := postJSON(t, h, "/v1/campaigns", CreateCampaignRequest{
		UserID:  "user-2",
		WorldID: "nope",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWorldHandler(t *testing.T) {
	env := setupEnv(t)
	h := NewWorldHandler(env.store, slog.New(slog.DiscardHandler))

	req := httptest.NewRequest(http.MethodGet, "/v1/worlds", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var worlds []*world.World
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &worlds))
	require.Len(t, worlds, 1)
	assert.Equal(t, "fantasy", worlds[0].ID)
}

func TestHealthHandler(t *testing.T) {
	env := setupEnv(t)
	h := NewHealthHandler(env.store, slog.New(slog.DiscardHandler))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Components["storage"])
}

func TestHealthHandler_Degraded(t *testing.T) {
	env := setupEnv(t)
	env.store.PingFunc = func(context.Context) error { return errors.New("down") }
	h := NewHealthHandler(env.store, slog.New(slog.DiscardHandler))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
