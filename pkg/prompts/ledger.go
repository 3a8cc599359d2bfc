package prompts

import (
	"encoding/json"
	"fmt"

	"github.com/mlundquist/saga-engine/pkg/state"
)

// ledgerState is the denormalized game summary injected into the Brain's
// system prompt. It is deliberately smaller than the full game state: only
// what the model is allowed to reference.
type ledgerState struct {
	Character map[string]any   `json:"character,omitempty"`
	Location  any              `json:"location,omitempty"`
	Gold      any              `json:"gold,omitempty"`
	Inventory any              `json:"inventory,omitempty"`
	Party     any              `json:"party,omitempty"`
	NPCs      any              `json:"npcs,omitempty"`
	Abilities any              `json:"abilities,omitempty"`
	Spells    any              `json:"spells,omitempty"`
	Essences  any              `json:"essences,omitempty"`
	Quests    []ledgerQuest    `json:"active_quests,omitempty"`
	Suggested []ledgerQuest    `json:"suggested_quests,omitempty"`
}

type ledgerQuest struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Objectives []string `json:"objectives,omitempty"`
}

// Ledger renders the state summary the model may draw on. The surrounding
// instruction marks it as exhaustive to keep the model from inventing
// unlisted items, abilities or companions.
func Ledger(gs *state.GameState) (string, error) {
	if gs == nil {
		return "", fmt.Errorf("gamestate is required")
	}

	ls := ledgerState{
		Character: gs.Character(),
		Location:  gs.Data["location"],
		Gold:      gs.Data["gold"],
		Inventory: gs.Data["inventory"],
		Party:     gs.Data["party"],
		NPCs:      gs.Data["npcs"],
		Abilities: gs.Data["abilities"],
		Spells:    gs.Data["spells"],
		Essences:  gs.Data["essences"],
	}
	for _, q := range gs.Quests {
		if q.Status != state.QuestActive {
			continue
		}
		ls.Quests = append(ls.Quests, toLedgerQuest(q))
	}
	for _, q := range gs.SuggestedQuests {
		ls.Suggested = append(ls.Suggested, toLedgerQuest(q))
	}

	data, err := json.Marshal(ls)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state ledger: %w", err)
	}

	return "Current game state (the ONLY items, abilities, companions and quests that exist; never reference anything not listed here):\n```json\n" +
		string(data) + "\n```", nil
}

func toLedgerQuest(q state.Quest) ledgerQuest {
	lq := ledgerQuest{ID: q.ID, Title: q.Title}
	for _, o := range q.Objectives {
		marker := "[ ] "
		if o.Completed {
			marker = "[x] "
		}
		lq.Objectives = append(lq.Objectives, marker+o.Description)
	}
	return lq
}
