package state

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mlundquist/saga-engine/pkg/chat"
	"github.com/mlundquist/saga-engine/pkg/fate"
)

// GameState is the authoritative record of one campaign. The semi-structured
// game document lives in Data and is mutated only through the Merger; typed
// fields around it (quests, fate state, transcript, pending input) are
// managed by the pipeline.
type GameState struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	WorldID   string    `json:"world_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Data is the game document: character, inventory, npcs, abilities,
	// gold, location and whatever else the world variant tracks.
	Data map[string]any `json:"data"`

	Quests          []Quest `json:"quests,omitempty"`
	SuggestedQuests []Quest `json:"suggested_quests,omitempty"`

	Fate fate.EngineState `json:"fate"`

	ChatHistory []chat.Message `json:"chat_history,omitempty"`

	PendingRoll   *PendingRoll   `json:"pending_roll,omitempty"`
	PendingChoice *PendingChoice `json:"pending_choice,omitempty"`
}

// NewGameState creates a fresh campaign record.
func NewGameState(userID, worldID string) *GameState {
	now := time.Now().UTC()
	return &GameState{
		ID:        uuid.New(),
		UserID:    userID,
		WorldID:   worldID,
		CreatedAt: now,
		UpdatedAt: now,
		Data:      map[string]any{},
		Fate:      *fate.NewEngineState(),
	}
}

// DeepCopy returns an independent copy of the game state via a JSON
// round-trip, safe to hand to a background goroutine.
func (gs *GameState) DeepCopy() (*GameState, error) {
	data, err := json.Marshal(gs)
	if err != nil {
		return nil, err
	}
	var out GameState
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Character returns the character sub-document, or an empty map when the
// campaign has none yet.
func (gs *GameState) Character() map[string]any {
	if c, ok := gs.Data["character"].(map[string]any); ok {
		return c
	}
	return map[string]any{}
}

// ClearPending discards any pending roll or choice. Called once the next
// turn consumes (or abandons) the request.
func (gs *GameState) ClearPending() {
	gs.PendingRoll = nil
	gs.PendingChoice = nil
}
