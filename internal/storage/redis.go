package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mlundquist/saga-engine/pkg/economy"
	"github.com/mlundquist/saga-engine/pkg/state"
)

const chargeTxRetries = 5

// RedisStorage implements Storage using Redis for game state and ledgers,
// and the filesystem for world definitions.
type RedisStorage struct {
	client  *redis.Client
	logger  *slog.Logger
	dataDir string
}

var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a Redis storage instance. dataDir is the root of
// the world definition files.
func NewRedisStorage(redisAddr, dataDir string, logger *slog.Logger) *RedisStorage {
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	if dataDir == "" {
		dataDir = "./data"
	}

	return &RedisStorage{
		client:  rdb,
		logger:  logger,
		dataDir: dataDir,
	}
}

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	return nil
}

// WaitForConnection waits for Redis to become available during startup.
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}
		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

func gameStateKey(id uuid.UUID) string {
	return "gamestate:" + id.String()
}

func ledgerKey(userID string) string {
	return "ledger:" + userID
}

func (r *RedisStorage) SaveGameState(ctx context.Context, gs *state.GameState) error {
	gs.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(gs)
	if err != nil {
		return fmt.Errorf("failed to marshal gamestate: %w", err)
	}

	if err := r.client.Set(ctx, gameStateKey(gs.ID), data, 0).Err(); err != nil {
		r.logger.Error("Failed to save gamestate", "campaign_id", gs.ID, "error", err)
		return fmt.Errorf("failed to save gamestate: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadGameState(ctx context.Context, id uuid.UUID) (*state.GameState, error) {
	data, err := r.client.Get(ctx, gameStateKey(id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load gamestate: %w", err)
	}

	var gs state.GameState
	if err := json.Unmarshal([]byte(data), &gs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gamestate: %w", err)
	}
	return &gs, nil
}

func (r *RedisStorage) DeleteGameState(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, gameStateKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete gamestate: %w", err)
	}
	return nil
}

func (r *RedisStorage) GetLedger(ctx context.Context, userID string) (*economy.Ledger, error) {
	data, err := r.client.Get(ctx, ledgerKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	var l economy.Ledger
	if err := json.Unmarshal([]byte(data), &l); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger: %w", err)
	}
	return &l, nil
}

func (r *RedisStorage) EnsureLedger(ctx context.Context, userID string, startingBalance int64) (*economy.Ledger, error) {
	l := economy.Ledger{UserID: userID, Balance: startingBalance}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ledger: %w", err)
	}

	// SETNX keeps an existing ledger untouched.
	created, err := r.client.SetNX(ctx, ledgerKey(userID), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger: %w", err)
	}
	if created {
		return &l, nil
	}
	return r.GetLedger(ctx, userID)
}

// ChargeTurn runs the economy debit as a WATCH transaction: read the
// ledger, verify the balance still covers the cost, apply the charge and
// write back. A concurrent write to the same ledger retries the
// transaction.
func (r *RedisStorage) ChargeTurn(ctx context.Context, userID string, charge economy.Charge) (*economy.Ledger, error) {
	key := ledgerKey(userID)
	var result *economy.Ledger

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return fmt.Errorf("no ledger for user %q: %w", userID, ErrInsufficientBalance)
		}
		if err != nil {
			return fmt.Errorf("failed to read ledger: %w", err)
		}

		var l economy.Ledger
		if err := json.Unmarshal([]byte(data), &l); err != nil {
			return fmt.Errorf("failed to unmarshal ledger: %w", err)
		}
		if l.Balance < charge.Cost {
			return fmt.Errorf("balance %d below cost %d: %w", l.Balance, charge.Cost, ErrInsufficientBalance)
		}

		l.Apply(charge)
		updated, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("failed to marshal ledger: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		if err == nil {
			result = &l
		}
		return err
	}

	for i := 0; i < chargeTxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if err == redis.TxFailedErr {
			r.logger.Debug("Charge transaction conflicted, retrying", "user_id", userID, "attempt", i+1)
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("charge transaction for user %q kept conflicting", userID)
}
