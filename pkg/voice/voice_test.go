package voice

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlundquist/saga-engine/internal/services"
	"github.com/mlundquist/saga-engine/pkg/chat"
	"github.com/mlundquist/saga-engine/pkg/fate"
	"github.com/mlundquist/saga-engine/pkg/world"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testWorld() *world.World {
	return &world.World{ID: "fantasy", Name: "Emberfall", Rules: "rules", WordLimit: 180}
}

func TestVoice_Narrate(t *testing.T) {
	mock := services.NewMockLLM()
	mock.ChatFunc = func(ctx context.Context, messages []chat.Message) (*chat.Completion, error) {
		require.Len(t, messages, 2)
		assert.Contains(t, messages[0].Content, "at most 180 words")
		assert.Contains(t, messages[1].Content, "The arrow strikes true.")
		assert.Contains(t, messages[1].Content, "1d20")
		return &chat.Completion{Text: "Your arrow sails across the clearing.", Usage: chat.Usage{PromptTokens: 50}}, nil
	}

	v := New(mock, testLogger())
	ok := true
	prose, usage, err := v.Narrate(context.Background(), testWorld(),
		[]string{"The arrow strikes true."},
		[]*fate.Record{{Notation: "1d20", Purpose: "attack", Adjusted: 17, Total: 20, Success: &ok}},
		[]string{"gold: 12 -> 5"})
	require.NoError(t, err)

	assert.Equal(t, "Your arrow sails across the clearing.", prose)
	assert.Equal(t, 50, usage.PromptTokens)
}

func TestVoice_ErrorSurfacesForFallback(t *testing.T) {
	mock := services.NewMockLLM()
	mock.ChatFunc = func(ctx context.Context, messages []chat.Message) (*chat.Completion, error) {
		return nil, errors.New("narrator offline")
	}

	v := New(mock, testLogger())
	_, _, err := v.Narrate(context.Background(), testWorld(), []string{"cue"}, nil, nil)
	assert.Error(t, err)

	assert.Equal(t, "cue one cue two", v.Fallback(testWorld(), []string{"cue one", "cue two"}))
}

func TestVoice_EmptyProseIsError(t *testing.T) {
	mock := services.NewMockLLM()
	mock.ChatFunc = func(ctx context.Context, messages []chat.Message) (*chat.Completion, error) {
		return &chat.Completion{Text: "   "}, nil
	}

	v := New(mock, testLogger())
	_, _, err := v.Narrate(context.Background(), testWorld(), []string{"cue"}, nil, nil)
	assert.Error(t, err)
}

func TestVoice_RatingAppliesFilter(t *testing.T) {
	mock := services.NewMockLLM()
	mock.ChatFunc = func(ctx context.Context, messages []chat.Message) (*chat.Completion, error) {
		return &chat.Completion{Text: "Damn, that hurt."}, nil
	}

	w := testWorld()
	w.Rating = world.RatingTeen

	v := New(mock, testLogger())
	prose, _, err := v.Narrate(context.Background(), w, []string{"cue"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Dang, that hurt.", prose)
}
