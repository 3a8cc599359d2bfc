package state

import (
	"fmt"
	"time"
)

// Quest lifecycle statuses.
const (
	QuestActive    = "active"
	QuestCompleted = "completed"
	QuestFailed    = "failed"
)

// Objective is one step of a quest.
type Objective struct {
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

// Quest is a campaign quest. New quests land in the suggested holding area
// and only move to the active log through an explicit accept; they are
// never silently promoted.
type Quest struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Objectives  []Objective `json:"objectives,omitempty"`
	Status      string      `json:"status"`

	SuggestedAt time.Time  `json:"suggested_at,omitempty"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
}

// SuggestQuest adds a quest to the holding area. Duplicate ids (in either
// the holding area or the active log) are ignored.
func (gs *GameState) SuggestQuest(q Quest) {
	if gs.findQuest(q.ID) != nil || gs.findSuggested(q.ID) >= 0 {
		return
	}
	q.Status = ""
	q.SuggestedAt = time.Now().UTC()
	gs.SuggestedQuests = append(gs.SuggestedQuests, q)
}

// AcceptQuest moves a suggested quest into the active log.
func (gs *GameState) AcceptQuest(id string) error {
	i := gs.findSuggested(id)
	if i < 0 {
		return fmt.Errorf("no suggested quest %q", id)
	}
	q := gs.SuggestedQuests[i]
	gs.SuggestedQuests = append(gs.SuggestedQuests[:i], gs.SuggestedQuests[i+1:]...)

	now := time.Now().UTC()
	q.Status = QuestActive
	q.AcceptedAt = &now
	gs.Quests = append(gs.Quests, q)
	return nil
}

// DeclineQuest drops a suggested quest.
func (gs *GameState) DeclineQuest(id string) error {
	i := gs.findSuggested(id)
	if i < 0 {
		return fmt.Errorf("no suggested quest %q", id)
	}
	gs.SuggestedQuests = append(gs.SuggestedQuests[:i], gs.SuggestedQuests[i+1:]...)
	return nil
}

// CompleteObjective marks one objective of an active quest done. When all
// objectives are done the quest completes.
func (gs *GameState) CompleteObjective(questID string, index int) error {
	q := gs.findQuest(questID)
	if q == nil {
		return fmt.Errorf("no active quest %q", questID)
	}
	if index < 0 || index >= len(q.Objectives) {
		return fmt.Errorf("quest %q has no objective %d", questID, index)
	}
	q.Objectives[index].Completed = true

	for _, o := range q.Objectives {
		if !o.Completed {
			return nil
		}
	}
	return gs.SetQuestStatus(questID, QuestCompleted)
}

// SetQuestStatus transitions an active quest to completed or failed,
// stamping the transition time.
func (gs *GameState) SetQuestStatus(id, status string) error {
	q := gs.findQuest(id)
	if q == nil {
		return fmt.Errorf("no active quest %q", id)
	}
	now := time.Now().UTC()
	switch status {
	case QuestCompleted:
		q.Status = QuestCompleted
		q.CompletedAt = &now
	case QuestFailed:
		q.Status = QuestFailed
		q.FailedAt = &now
	default:
		return fmt.Errorf("invalid quest status %q", status)
	}
	return nil
}

func (gs *GameState) findQuest(id string) *Quest {
	for i := range gs.Quests {
		if gs.Quests[i].ID == id {
			return &gs.Quests[i]
		}
	}
	return nil
}

func (gs *GameState) findSuggested(id string) int {
	for i := range gs.SuggestedQuests {
		if gs.SuggestedQuests[i].ID == id {
			return i
		}
	}
	return -1
}
