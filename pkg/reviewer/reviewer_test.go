package reviewer

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlundquist/saga-engine/internal/services"
	"github.com/mlundquist/saga-engine/pkg/chat"
	"github.com/mlundquist/saga-engine/pkg/state"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestReviewer_ProposesCorrections(t *testing.T) {
	mock := services.NewMockLLM()
	mock.ChatFunc = func(ctx context.Context, messages []chat.Message) (*chat.Completion, error) {
		return &chat.Completion{Text: `{"inventory":{"removed":["torch"]}}`}, nil
	}

	r := New(mock, testLogger())
	gs := state.NewGameState("user-1", "fantasy")

	corrections := r.Review(context.Background(), gs, "The torch gutters out and is gone.")
	require.NotNil(t, corrections)
	assert.Contains(t, corrections, "inventory")
}

func TestReviewer_CooldownLimitsCalls(t *testing.T) {
	mock := services.NewMockLLM()
	mock.ChatFunc = func(ctx context.Context, messages []chat.Message) (*chat.Completion, error) {
		return &chat.Completion{Text: `{"gold":1}`}, nil
	}

	r := New(mock, testLogger()).WithCooldown(time.Hour)
	gs := state.NewGameState("user-1", "fantasy")

	assert.NotNil(t, r.Review(context.Background(), gs, "narrative"))
	assert.Nil(t, r.Review(context.Background(), gs, "narrative"))
	assert.Equal(t, 1, mock.CallCount())

	// A different campaign has its own cooldown slot.
	other := state.NewGameState("user-2", "fantasy")
	assert.NotNil(t, r.Review(context.Background(), other, "narrative"))
}

func TestReviewer_FailuresAreSwallowed(t *testing.T) {
	tests := []struct {
		name string
		fn   func(ctx context.Context, messages []chat.Message) (*chat.Completion, error)
	}{
		{"provider error", func(ctx context.Context, messages []chat.Message) (*chat.Completion, error) {
			return nil, errors.New("boom")
		}},
		{"unparseable", func(ctx context.Context, messages []chat.Message) (*chat.Completion, error) {
			return &chat.Completion{Text: "no json at all"}, nil
		}},
		{"empty corrections", func(ctx context.Context, messages []chat.Message) (*chat.Completion, error) {
			return &chat.Completion{Text: "{}"}, nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := services.NewMockLLM()
			mock.ChatFunc = tt.fn

			r := New(mock, testLogger()).WithCooldown(0)
			gs := state.NewGameState("user-1", "fantasy")
			assert.Nil(t, r.Review(context.Background(), gs, "narrative"))
		})
	}
}

func TestReviewer_SkipsEmptyNarrative(t *testing.T) {
	mock := services.NewMockLLM()
	r := New(mock, testLogger())
	assert.Nil(t, r.Review(context.Background(), state.NewGameState("u", "w"), "  "))
	assert.Equal(t, 0, mock.CallCount())
}
