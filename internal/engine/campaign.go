package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mlundquist/saga-engine/pkg/economy"
	"github.com/mlundquist/saga-engine/pkg/state"
)

// CreateCampaign starts a new campaign in the given world, seeding the
// game document from the world's starting data and the user's ledger from
// their tier's starting balance.
func (e *Engine) CreateCampaign(ctx context.Context, userID, worldID string, tier economy.Tier) (*state.GameState, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	w, err := e.store.GetWorld(ctx, worldID)
	if err != nil {
		return nil, fmt.Errorf("resolving world: %w", err)
	}
	if w == nil {
		return nil, fmt.Errorf("world %q: %w", worldID, ErrWorldNotFound)
	}

	gs := state.NewGameState(userID, worldID)
	for k, v := range w.StartingData {
		gs.Data[k] = v
	}

	if _, err := e.store.EnsureLedger(ctx, userID, economy.StartingBalance(tier)); err != nil {
		return nil, fmt.Errorf("seeding ledger: %w", err)
	}
	if err := e.store.SaveGameState(ctx, gs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	e.logger.Info("Campaign created",
		"campaign_id", gs.ID, "user_id", userID, "world_id", worldID)
	return gs, nil
}

// GetCampaign loads a campaign's state.
func (e *Engine) GetCampaign(ctx context.Context, id uuid.UUID) (*state.GameState, error) {
	gs, err := e.store.LoadGameState(ctx, id)
	if err != nil {
		return nil, err
	}
	if gs == nil {
		return nil, fmt.Errorf("campaign %s: %w", id, ErrCampaignNotFound)
	}
	return gs, nil
}

// DeleteCampaign removes a campaign's state.
func (e *Engine) DeleteCampaign(ctx context.Context, id uuid.UUID) error {
	return e.store.DeleteGameState(ctx, id)
}
