package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mlundquist/saga-engine/pkg/economy"
	"github.com/mlundquist/saga-engine/pkg/state"
	"github.com/mlundquist/saga-engine/pkg/world"
)

// MockStorage is an in-memory Storage for tests. Any function field that is
// set overrides the default in-memory behavior.
type MockStorage struct {
	mu         sync.Mutex
	gameStates map[uuid.UUID]*state.GameState
	ledgers    map[string]*economy.Ledger
	worlds     map[string]*world.World

	PingFunc          func(ctx context.Context) error
	SaveGameStateFunc func(ctx context.Context, gs *state.GameState) error
	LoadGameStateFunc func(ctx context.Context, id uuid.UUID) (*state.GameState, error)
	GetWorldFunc      func(ctx context.Context, id string) (*world.World, error)
	ChargeTurnFunc    func(ctx context.Context, userID string, charge economy.Charge) (*economy.Ledger, error)
}

var _ Storage = (*MockStorage)(nil)

func NewMockStorage() *MockStorage {
	return &MockStorage{
		gameStates: make(map[uuid.UUID]*state.GameState),
		ledgers:    make(map[string]*economy.Ledger),
		worlds:     make(map[string]*world.World),
	}
}

// AddWorld registers a world definition for GetWorld and ListWorlds.
func (m *MockStorage) AddWorld(w *world.World) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.worlds[w.ID] = w
}

func (m *MockStorage) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *MockStorage) Close() error { return nil }

func (m *MockStorage) SaveGameState(ctx context.Context, gs *state.GameState) error {
	if m.SaveGameStateFunc != nil {
		return m.SaveGameStateFunc(ctx, gs)
	}
	cp, err := gs.DeepCopy()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gameStates[gs.ID] = cp
	return nil
}

func (m *MockStorage) LoadGameState(ctx context.Context, id uuid.UUID) (*state.GameState, error) {
	if m.LoadGameStateFunc != nil {
		return m.LoadGameStateFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	gs, ok := m.gameStates[id]
	if !ok {
		return nil, nil
	}
	return gs.DeepCopy()
}

func (m *MockStorage) DeleteGameState(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.gameStates, id)
	return nil
}

func (m *MockStorage) GetWorld(ctx context.Context, id string) (*world.World, error) {
	if m.GetWorldFunc != nil {
		return m.GetWorldFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.worlds[id], nil
}

func (m *MockStorage) ListWorlds(_ context.Context) ([]*world.World, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	worlds := make([]*world.World, 0, len(m.worlds))
	for _, w := range m.worlds {
		worlds = append(worlds, w)
	}
	return worlds, nil
}

func (m *MockStorage) GetLedger(_ context.Context, userID string) (*economy.Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.ledgers[userID]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (m *MockStorage) EnsureLedger(_ context.Context, userID string, startingBalance int64) (*economy.Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.ledgers[userID]; ok {
		cp := *l
		return &cp, nil
	}
	l := &economy.Ledger{UserID: userID, Balance: startingBalance}
	m.ledgers[userID] = l
	cp := *l
	return &cp, nil
}

func (m *MockStorage) ChargeTurn(ctx context.Context, userID string, charge economy.Charge) (*economy.Ledger, error) {
	if m.ChargeTurnFunc != nil {
		return m.ChargeTurnFunc(ctx, userID, charge)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.ledgers[userID]
	if !ok {
		return nil, ErrInsufficientBalance
	}
	if l.Balance < charge.Cost {
		return nil, ErrInsufficientBalance
	}
	l.Apply(charge)
	cp := *l
	return &cp, nil
}
