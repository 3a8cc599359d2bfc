// Package brain implements the rules-interpreting stage: it turns the
// player's action plus the campaign state into a structured action result
// by prompting an LLM provider and parsing its output.
package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mlundquist/saga-engine/pkg/chat"
	"github.com/mlundquist/saga-engine/pkg/parser"
	"github.com/mlundquist/saga-engine/pkg/prompts"
	"github.com/mlundquist/saga-engine/pkg/state"
	"github.com/mlundquist/saga-engine/pkg/world"
)

// ErrBrainFailure covers both an empty provider response and an
// unrecoverable parse: either way the turn aborts before any state
// mutation or charge.
var ErrBrainFailure = errors.New("rules interpreter failed")

// LLM is the provider contract the Brain consumes.
type LLM interface {
	Name() string
	Chat(ctx context.Context, messages []chat.Message) (*chat.Completion, error)
}

const historyLimit = 10

// Brain is the rules-interpreting stage.
type Brain struct {
	llm    LLM
	logger *slog.Logger
}

// New creates a Brain backed by the given provider.
func New(llm LLM, logger *slog.Logger) *Brain {
	return &Brain{llm: llm, logger: logger}
}

// Turn is everything one interpretation needs.
type Turn struct {
	State           *state.GameState
	World           *world.World
	Knowledge       []string
	UserInput       string
	PriorRoll       *state.RollResult
	InteractiveDice bool
	ShowChoices     bool
}

// Interpret invokes the provider and returns the parsed action result plus
// the call's token usage.
func (b *Brain) Interpret(ctx context.Context, turn Turn) (*parser.ActionResult, chat.Usage, error) {
	messages, err := prompts.New().
		WithGameState(turn.State).
		WithWorldRules(turn.World.Rules + "\n\n" + responseContract).
		WithKnowledge(turn.Knowledge).
		WithUserInput(turn.UserInput).
		WithPriorRoll(turn.PriorRoll).
		WithHistoryLimit(historyLimit).
		WithInteractiveDice(turn.InteractiveDice).
		WithChoices(turn.ShowChoices).
		Build()
	if err != nil {
		return nil, chat.Usage{}, fmt.Errorf("failed to build brain prompt: %w", err)
	}

	completion, err := b.llm.Chat(ctx, messages)
	if err != nil {
		return nil, chat.Usage{}, fmt.Errorf("%w: provider call: %w", ErrBrainFailure, err)
	}
	if strings.TrimSpace(completion.Text) == "" {
		return nil, completion.Usage, fmt.Errorf("%w: provider returned no content", ErrBrainFailure)
	}

	result, err := parser.Parse(completion.Text)
	if err != nil {
		b.logger.Error("Brain response unparseable",
			"provider", b.llm.Name(), "error", err)
		return nil, completion.Usage, fmt.Errorf("%w: %w", ErrBrainFailure, err)
	}

	return result, completion.Usage, nil
}

// responseContract instructs the model to answer in the ActionResult schema.
const responseContract = `Respond with a single JSON object and nothing else:
{
  "narrative_cues": ["short factual statements of what happens"],
  "state_updates": {"field": "new value", "inventory": {"added": [], "removed": []}},
  "roll_request": {"purpose": "...", "stat": "...", "difficulty": 12},
  "choice": {"prompt": "...", "options": ["..."]},
  "quest_updates": [{"action": "suggest", "quest_id": "...", "title": "..."}]
}
Omit any field you do not need. Array-valued state fields may be plain
arrays (additions) or {"added": [...], "removed": [...]} objects.`
