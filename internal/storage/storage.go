package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mlundquist/saga-engine/pkg/economy"
	"github.com/mlundquist/saga-engine/pkg/state"
	"github.com/mlundquist/saga-engine/pkg/world"
)

// ErrInsufficientBalance is returned by ChargeTurn when the transactional
// balance check fails.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Storage is the persistence contract the pipeline consumes. Game state and
// ledgers are Redis-backed; world definitions live on the filesystem.
type Storage interface {
	Ping(ctx context.Context) error
	Close() error

	// SaveGameState persists a campaign's full state and transcript.
	SaveGameState(ctx context.Context, gs *state.GameState) error

	// LoadGameState returns a campaign's state, or nil when it does not
	// exist.
	LoadGameState(ctx context.Context, id uuid.UUID) (*state.GameState, error)

	DeleteGameState(ctx context.Context, id uuid.UUID) error

	// GetWorld returns a world definition, or nil when unknown.
	GetWorld(ctx context.Context, id string) (*world.World, error)
	ListWorlds(ctx context.Context) ([]*world.World, error)

	// GetLedger returns a user's ledger, or nil when the user has none.
	GetLedger(ctx context.Context, userID string) (*economy.Ledger, error)

	// EnsureLedger creates a ledger with the given starting balance if the
	// user has none, and returns the current ledger either way.
	EnsureLedger(ctx context.Context, userID string, startingBalance int64) (*economy.Ledger, error)

	// ChargeTurn atomically re-validates the balance against the charge's
	// cost, debits it and accumulates usage counters. It returns
	// ErrInsufficientBalance without side effects when the balance no
	// longer covers the cost.
	ChargeTurn(ctx context.Context, userID string, charge economy.Charge) (*economy.Ledger, error)
}
