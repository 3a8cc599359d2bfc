// Package reviewer implements the optional consistency pass: a second model
// re-reads the turn's narrative against the post-merge state and proposes
// corrections the Brain's structured delta missed. The pass is strictly
// best-effort; nothing here may fail the turn.
package reviewer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mlundquist/saga-engine/pkg/chat"
	"github.com/mlundquist/saga-engine/pkg/parser"
	"github.com/mlundquist/saga-engine/pkg/prompts"
	"github.com/mlundquist/saga-engine/pkg/state"
)

// LLM is the provider contract the Reviewer consumes.
type LLM interface {
	Name() string
	Chat(ctx context.Context, messages []chat.Message) (*chat.Completion, error)
}

// DefaultCooldown is the minimum gap between reviews of one campaign.
const DefaultCooldown = 2 * time.Minute

// Reviewer is the consistency-review stage.
type Reviewer struct {
	llm      LLM
	logger   *slog.Logger
	cooldown time.Duration

	mu       sync.Mutex
	lastSeen map[uuid.UUID]time.Time
	now      func() time.Time
}

// New creates a Reviewer with the default per-campaign cooldown.
func New(llm LLM, logger *slog.Logger) *Reviewer {
	return &Reviewer{
		llm:      llm,
		logger:   logger,
		cooldown: DefaultCooldown,
		lastSeen: make(map[uuid.UUID]time.Time),
		now:      time.Now,
	}
}

// WithCooldown overrides the per-campaign cooldown.
func (r *Reviewer) WithCooldown(d time.Duration) *Reviewer {
	r.cooldown = d
	return r
}

// Review asks the model for corrections the narrative implies but the delta
// omitted. It returns a correction delta for the Merger, or nil when the
// campaign is inside its cooldown, the call fails, or nothing needs fixing.
// Corrections are subject to the same merge policy table as Brain deltas,
// so a reviewer can never shrink a protected field.
func (r *Reviewer) Review(ctx context.Context, gs *state.GameState, narrative string) map[string]any {
	if r.llm == nil || gs == nil || strings.TrimSpace(narrative) == "" {
		return nil
	}
	if !r.take(gs.ID) {
		return nil
	}

	ledger, err := prompts.Ledger(gs)
	if err != nil {
		r.logger.Warn("Reviewer skipped, ledger build failed", "error", err, "campaign_id", gs.ID)
		return nil
	}

	system := "You are a consistency reviewer for a roleplaying game. Compare the narrative to the recorded state. " +
		"Respond with a single JSON object of state corrections the narrative implies but the state is missing, " +
		`using the same field shapes as state updates (arrays may be {"added": [...], "removed": [...]}). ` +
		"Respond with {} when the state already matches the narrative.\n\n" + ledger

	completion, err := r.llm.Chat(ctx, []chat.Message{
		{Role: chat.RoleSystem, Content: system},
		{Role: chat.RoleUser, Content: "Narrative:\n" + narrative},
	})
	if err != nil {
		r.logger.Warn("Reviewer call failed, ignoring", "error", err, "campaign_id", gs.ID)
		return nil
	}

	obj, _, err := parser.Extract(completion.Text)
	if err != nil {
		r.logger.Warn("Reviewer response unparseable, ignoring", "error", err, "campaign_id", gs.ID)
		return nil
	}

	var corrections map[string]any
	if err := json.Unmarshal([]byte(obj), &corrections); err != nil {
		r.logger.Warn("Reviewer corrections undecodable, ignoring", "error", err, "campaign_id", gs.ID)
		return nil
	}
	if len(corrections) == 0 {
		return nil
	}

	r.logger.Debug("Reviewer proposed corrections",
		"campaign_id", gs.ID, "fields", fmt.Sprintf("%d", len(corrections)))
	return corrections
}

// take consumes the campaign's review slot if its cooldown has elapsed.
func (r *Reviewer) take(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if last, ok := r.lastSeen[id]; ok && now.Sub(last) < r.cooldown {
		return false
	}
	r.lastSeen[id] = now
	return true
}
