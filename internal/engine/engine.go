// Package engine sequences one player turn through the full pipeline:
// validate the request, resolve world and cost, interpret the action,
// resolve dice, merge the proposed delta, narrate, review, persist and
// finally charge. The charge runs only after a successful save, so a turn
// is never billed without its state on disk.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mlundquist/saga-engine/internal/storage"
	"github.com/mlundquist/saga-engine/pkg/brain"
	"github.com/mlundquist/saga-engine/pkg/chat"
	"github.com/mlundquist/saga-engine/pkg/economy"
	"github.com/mlundquist/saga-engine/pkg/fate"
	"github.com/mlundquist/saga-engine/pkg/parser"
	"github.com/mlundquist/saga-engine/pkg/reviewer"
	"github.com/mlundquist/saga-engine/pkg/state"
	"github.com/mlundquist/saga-engine/pkg/voice"
	"github.com/mlundquist/saga-engine/pkg/world"
)

// knowledgeLimit caps reference snippets injected into the Brain prompt.
const knowledgeLimit = 3

// Config wires the pipeline's collaborators. Reviewer may be nil to
// disable the consistency pass.
type Config struct {
	Storage  storage.Storage
	Brain    *brain.Brain
	Voice    *voice.Voice
	Reviewer *reviewer.Reviewer
	Source   fate.Source
	Logger   *slog.Logger

	// BrainModel and VoiceModel label token usage in the ledger.
	BrainModel string
	VoiceModel string
}

// Engine is the turn pipeline orchestrator.
type Engine struct {
	store    storage.Storage
	brain    *brain.Brain
	voice    *voice.Voice
	reviewer *reviewer.Reviewer
	merger   *state.Merger
	src      fate.Source
	logger   *slog.Logger

	brainModel string
	voiceModel string

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

// New creates an Engine. The store is an explicit dependency rather than a
// package-level handle so the pipeline can be tested without a live Redis.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	brainModel := cfg.BrainModel
	if brainModel == "" {
		brainModel = "brain"
	}
	voiceModel := cfg.VoiceModel
	if voiceModel == "" {
		voiceModel = "voice"
	}
	return &Engine{
		store:      cfg.Storage,
		brain:      cfg.Brain,
		voice:      cfg.Voice,
		reviewer:   cfg.Reviewer,
		merger:     state.NewMerger(logger),
		src:        cfg.Source,
		logger:     logger,
		brainModel: brainModel,
		voiceModel: voiceModel,
		inFlight:   make(map[uuid.UUID]struct{}),
	}
}

// TurnRequest is one player action against a campaign.
type TurnRequest struct {
	CampaignID      uuid.UUID          `json:"campaign_id"`
	UserID          string             `json:"user_id"`
	Input           string             `json:"input"`
	Tier            economy.Tier       `json:"tier,omitempty"`
	InteractiveDice bool               `json:"interactive_dice,omitempty"`
	ShowChoices     bool               `json:"show_choices,omitempty"`
	PriorRoll       *state.RollResult  `json:"prior_roll,omitempty"`
	ChoiceIndex     *int               `json:"choice_index,omitempty"`
}

// TurnResponse is the resolved turn.
type TurnResponse struct {
	Success   bool           `json:"success"`
	Narrative string         `json:"narrative,omitempty"`
	Delta     map[string]any `json:"delta,omitempty"`
	Rolls     []*fate.Record `json:"rolls,omitempty"`

	SystemMessages []string `json:"system_messages,omitempty"`

	RequiresUserInput bool                 `json:"requires_user_input,omitempty"`
	PendingRoll       *state.PendingRoll   `json:"pending_roll,omitempty"`
	PendingChoice     *state.PendingChoice `json:"pending_choice,omitempty"`

	Balance int64 `json:"balance"`
	Cost    int64 `json:"cost"`
}

// ResolveTurn runs one full turn. Any error before the Persisting stage
// leaves state and balance untouched.
func (e *Engine) ResolveTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	if !e.acquire(req.CampaignID) {
		return nil, fmt.Errorf("campaign %s: %w", req.CampaignID, ErrTurnInFlight)
	}
	defer e.release(req.CampaignID)

	tier, err := economy.ParseTier(string(req.Tier))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	// Game state and ledger are independent reads.
	var (
		gs     *state.GameState
		ledger *economy.Ledger
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		gs, err = e.store.LoadGameState(gctx, req.CampaignID)
		return err
	})
	g.Go(func() error {
		var err error
		ledger, err = e.store.EnsureLedger(gctx, req.UserID, economy.StartingBalance(tier))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolving turn inputs: %w", err)
	}
	if gs == nil {
		return nil, fmt.Errorf("campaign %s: %w", req.CampaignID, ErrCampaignNotFound)
	}
	if gs.UserID != req.UserID {
		return nil, fmt.Errorf("%w: campaign belongs to another user", ErrValidation)
	}

	w, err := e.store.GetWorld(ctx, gs.WorldID)
	if err != nil {
		return nil, fmt.Errorf("resolving world: %w", err)
	}
	if w == nil {
		return nil, fmt.Errorf("world %q: %w", gs.WorldID, ErrWorldNotFound)
	}

	cost := economy.TurnCost(w.TurnCost, tier)

	// Advisory balance check. The authoritative one happens inside the
	// Charging transaction after the save.
	if ledger.Balance < cost {
		return nil, fmt.Errorf("balance %d below turn cost %d: %w",
			ledger.Balance, cost, storage.ErrInsufficientBalance)
	}

	input, rolls, priorRoll := e.consumePending(gs, req)

	turn := brain.Turn{
		State:           gs,
		World:           w,
		Knowledge:       w.MatchKnowledge(input, knowledgeLimit),
		UserInput:       input,
		PriorRoll:       priorRoll,
		InteractiveDice: req.InteractiveDice,
		ShowChoices:     req.ShowChoices,
	}

	result, brainUsage, err := e.brain.Interpret(ctx, turn)
	if err != nil {
		return nil, err
	}

	usage := map[string]economy.TokenUsage{}
	addUsage(usage, e.brainModel, brainUsage)

	// Interactive dice mode: the Brain's roll request suspends the turn.
	// The pending descriptor is persisted so the next call can validate
	// the round-trip, but nothing is charged.
	if req.InteractiveDice && result.RollRequest != nil {
		return e.suspendForRoll(ctx, gs, w, input, result, ledger.Balance)
	}
	if req.ShowChoices && result.Choice != nil && len(result.Choice.Options) > 0 {
		return e.suspendForChoice(ctx, gs, w, input, result, ledger.Balance)
	}

	var messages []string

	if result.RollRequest != nil {
		rec, next, err := e.resolveRoll(gs, result.RollRequest)
		if err != nil {
			messages = append(messages, fmt.Sprintf("roll request dropped: %v", err))
		} else {
			gs.Fate = next
			rolls = append(rolls, rec)
		}
	}

	delta := result.StateUpdates
	merged, warnings := e.merger.Apply(gs.Data, delta)
	gs.Data = merged
	messages = append(messages, warnings...)

	messages = append(messages, e.applyQuestUpdates(gs, result.QuestUpdates)...)
	messages = append(messages, result.SystemNotes...)

	narrative, voiceUsage, err := e.voice.Narrate(ctx, w, result.NarrativeCues, rolls, changeSummary(delta))
	if err != nil {
		// Narration never fails the turn; the cue text stands in.
		e.logger.Warn("Narrator failed, using cue fallback",
			"campaign_id", gs.ID, "error", err)
		narrative = e.voice.Fallback(w, result.NarrativeCues)
	}
	addUsage(usage, e.voiceModel, voiceUsage)

	if e.reviewer != nil {
		if corrections := e.reviewer.Review(ctx, gs, narrative); corrections != nil {
			reviewed, warns := e.merger.Apply(gs.Data, corrections)
			gs.Data = reviewed
			messages = append(messages, warns...)
		}
	}

	gs.ClearPending()
	gs.ChatHistory = append(gs.ChatHistory,
		chat.Message{Role: chat.RoleUser, Content: input},
		chat.Message{Role: chat.RoleAssistant, Content: narrative},
	)

	if err := e.store.SaveGameState(ctx, gs); err != nil {
		e.logger.Error("Persist failed", "campaign_id", gs.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	charged, err := e.store.ChargeTurn(ctx, req.UserID, economy.Charge{
		Cost:          cost,
		TokensByModel: usage,
	})
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientBalance) {
			return nil, err
		}
		e.logger.Error("Charge failed after persist",
			"campaign_id", gs.ID, "user_id", req.UserID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNotCharged, err)
	}

	return &TurnResponse{
		Success:        true,
		Narrative:      narrative,
		Delta:          appliedDelta(gs.Data, delta),
		Rolls:          rolls,
		SystemMessages: messages,
		Balance:        charged.Balance,
		Cost:           cost,
	}, nil
}

func validate(req TurnRequest) error {
	if req.CampaignID == uuid.Nil {
		return fmt.Errorf("%w: campaign id is required", ErrValidation)
	}
	if req.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if strings.TrimSpace(req.Input) == "" && req.PriorRoll == nil && req.ChoiceIndex == nil {
		return fmt.Errorf("%w: input is required", ErrValidation)
	}
	return nil
}

func (e *Engine) acquire(id uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, held := e.inFlight[id]; held {
		return false
	}
	e.inFlight[id] = struct{}{}
	return true
}

func (e *Engine) release(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, id)
}

// consumePending folds a pending roll or choice answer into the effective
// player input. A player-reported roll becomes both the Brain's prior-roll
// context and a roll record on the response.
func (e *Engine) consumePending(gs *state.GameState, req TurnRequest) (string, []*fate.Record, *state.RollResult) {
	input := req.Input

	if gs.PendingChoice != nil && req.ChoiceIndex != nil {
		i := *req.ChoiceIndex
		if i >= 0 && i < len(gs.PendingChoice.Options) {
			input = gs.PendingChoice.Options[i]
		}
	}

	if gs.PendingRoll == nil || req.PriorRoll == nil {
		return input, nil, nil
	}

	pending := gs.PendingRoll
	prior := &state.RollResult{Type: req.PriorRoll.Type, Result: req.PriorRoll.Result}
	if prior.Type == "" {
		prior.Type = pending.Type
	}
	if strings.TrimSpace(input) == "" {
		input = fmt.Sprintf("I follow through on the %s.", pending.Purpose)
	}

	rec := &fate.Record{
		Notation: prior.Type,
		Purpose:  pending.Purpose,
		Rolls:    []int{prior.Result},
		Base:     prior.Result,
		Adjusted: prior.Result,
		Modifier: pending.Modifier,
		Total:    prior.Result + pending.Modifier,
	}
	if pending.Difficulty != nil {
		rec.Difficulty = pending.Difficulty
		ok := rec.Total >= *pending.Difficulty
		rec.Success = &ok
	}
	return input, []*fate.Record{rec}, prior
}

// suspendForRoll persists the pending-roll descriptor and returns with no
// charge. The descriptor round-trips unchanged through the caller.
func (e *Engine) suspendForRoll(ctx context.Context, gs *state.GameState, w *world.World, input string, result *parser.ActionResult, balance int64) (*TurnResponse, error) {
	d := result.RollRequest
	pending := &state.PendingRoll{
		Type:       d.Type,
		Purpose:    d.Purpose,
		Stat:       d.Stat,
		Difficulty: d.Difficulty,
		Modifier:   e.rollModifier(gs, d),
	}
	if pending.Type == "" {
		pending.Type = "1d20"
	}

	narrative := e.voice.Fallback(w, result.NarrativeCues)

	gs.PendingRoll = pending
	gs.PendingChoice = nil
	gs.ChatHistory = append(gs.ChatHistory,
		chat.Message{Role: chat.RoleUser, Content: input},
		chat.Message{Role: chat.RoleAssistant, Content: narrative},
	)
	if err := e.store.SaveGameState(ctx, gs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return &TurnResponse{
		Success:           true,
		Narrative:         narrative,
		RequiresUserInput: true,
		PendingRoll:       pending,
		Balance:           balance,
		Cost:              0,
	}, nil
}

// suspendForChoice mirrors suspendForRoll for an enumerated option set.
func (e *Engine) suspendForChoice(ctx context.Context, gs *state.GameState, w *world.World, input string, result *parser.ActionResult, balance int64) (*TurnResponse, error) {
	pending := &state.PendingChoice{
		Prompt:  result.Choice.Prompt,
		Options: result.Choice.Options,
	}

	narrative := e.voice.Fallback(w, result.NarrativeCues)

	gs.PendingChoice = pending
	gs.PendingRoll = nil
	gs.ChatHistory = append(gs.ChatHistory,
		chat.Message{Role: chat.RoleUser, Content: input},
		chat.Message{Role: chat.RoleAssistant, Content: narrative},
	)
	if err := e.store.SaveGameState(ctx, gs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return &TurnResponse{
		Success:           true,
		Narrative:         narrative,
		RequiresUserInput: true,
		PendingChoice:     pending,
		Balance:           balance,
		Cost:              0,
	}, nil
}

// resolveRoll turns the Brain's roll directive into a fate request using
// the campaign's character sheet for the stat and proficiency values.
func (e *Engine) resolveRoll(gs *state.GameState, d *parser.RollDirective) (*fate.Record, fate.EngineState, error) {
	statValue, proficiency := e.characterNumbers(gs, d.Stat, d.Proficient)

	return fate.Resolve(e.src, fate.Request{
		Purpose:      d.Purpose,
		Stat:         d.Stat,
		StatValue:    statValue,
		Proficiency:  proficiency,
		ItemBonus:    d.ItemBonus,
		Situational:  d.Situational,
		Difficulty:   d.Difficulty,
		Advantage:    d.Advantage,
		Disadvantage: d.Disadvantage,
	}, gs.Fate)
}

// rollModifier precomputes the flat modifier shown on a pending-roll
// descriptor so the caller can display "roll 1d20+3".
func (e *Engine) rollModifier(gs *state.GameState, d *parser.RollDirective) int {
	statValue, proficiency := e.characterNumbers(gs, d.Stat, d.Proficient)
	return fate.Modifiers{
		Stat:        fate.StatModifier(statValue),
		Proficiency: proficiency,
		Item:        d.ItemBonus,
		Situational: d.Situational,
	}.Total()
}

// characterNumbers reads the stat value and proficiency bonus from the
// campaign's character document. A campaign without a character sheet
// rolls unmodified.
func (e *Engine) characterNumbers(gs *state.GameState, stat string, proficient bool) (int, int) {
	doc := gs.Character()
	if doc == nil {
		return 10, 0
	}
	c, err := state.ParseCharacter(doc)
	if err != nil {
		e.logger.Warn("Character sheet unreadable, rolling unmodified",
			"campaign_id", gs.ID, "error", err)
		return 10, 0
	}
	proficiency := 0
	if proficient {
		proficiency = c.ProficiencyBonus()
	}
	return c.Stat(stat), proficiency
}

// applyQuestUpdates routes the Brain's quest operations through the game
// state's quest log. Bad operations degrade to system messages.
func (e *Engine) applyQuestUpdates(gs *state.GameState, updates []parser.QuestUpdate) []string {
	var messages []string
	for _, u := range updates {
		var err error
		switch u.Action {
		case "suggest":
			q := state.Quest{ID: u.QuestID, Title: u.Title, Description: u.Description}
			for _, o := range u.Objectives {
				q.Objectives = append(q.Objectives, state.Objective{Description: o})
			}
			gs.SuggestQuest(q)
		case "accept":
			err = gs.AcceptQuest(u.QuestID)
		case "decline":
			err = gs.DeclineQuest(u.QuestID)
		case "complete_objective":
			err = gs.CompleteObjective(u.QuestID, u.ObjectiveIndex)
		case "complete":
			err = gs.SetQuestStatus(u.QuestID, state.QuestCompleted)
		case "fail":
			err = gs.SetQuestStatus(u.QuestID, state.QuestFailed)
		default:
			err = fmt.Errorf("unknown quest action %q", u.Action)
		}
		if err != nil {
			messages = append(messages, fmt.Sprintf("quest update ignored: %v", err))
		}
	}
	return messages
}

func addUsage(usage map[string]economy.TokenUsage, model string, u chat.Usage) {
	if u.PromptTokens == 0 && u.CompletionTokens == 0 {
		return
	}
	t := usage[model]
	t.PromptTokens += int64(u.PromptTokens)
	t.CompletionTokens += int64(u.CompletionTokens)
	usage[model] = t
}

// appliedDelta projects the merged state over the keys the Brain proposed.
// The response reports what actually changed, which can differ from the
// proposal when merge policies reject removals or protected writes.
func appliedDelta(merged, proposed map[string]any) map[string]any {
	if len(proposed) == 0 {
		return proposed
	}
	applied := make(map[string]any, len(proposed))
	for k := range proposed {
		if v, ok := merged[k]; ok {
			applied[k] = v
		}
	}
	return applied
}

// changeSummary names the top-level fields a delta touches, for the
// narrator's state-change context.
func changeSummary(delta map[string]any) []string {
	if len(delta) == 0 {
		return nil
	}
	keys := make([]string, 0, len(delta))
	for k := range delta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	changes := make([]string, 0, len(keys))
	for _, k := range keys {
		changes = append(changes, k+" changed")
	}
	return changes
}
