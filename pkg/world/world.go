// Package world defines the game-world variants the engine can run:
// static rules text for the Brain, narrator style for the Voice, costs,
// and the reference knowledge base. Variants are authored as YAML files
// and validated on load.
package world

import (
	"fmt"
	"strings"
)

// Ratings supported by the narrator content filter.
const (
	RatingEveryone = "everyone"
	RatingTeen     = "teen"
	RatingMature   = "mature"
)

// KnowledgeEntry is one reference snippet, matched against player input by
// its topics.
type KnowledgeEntry struct {
	Topics []string `yaml:"topics" json:"topics"`
	Text   string   `yaml:"text" json:"text"`
}

// World is one game-world variant.
type World struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Rules is the static rules text prepended to every Brain prompt.
	Rules string `yaml:"rules" json:"-"`

	// VoiceStyle describes the narrator persona for the Voice prompt.
	VoiceStyle string `yaml:"voice_style,omitempty" json:"-"`

	// WordLimit is the narrator's word budget, enforced by prompt
	// instruction.
	WordLimit int `yaml:"word_limit,omitempty" json:"-"`

	Rating string `yaml:"rating,omitempty" json:"rating,omitempty"`

	// TurnCost is the economy cost of one resolved turn.
	TurnCost int64 `yaml:"turn_cost" json:"turn_cost"`

	// StartingData seeds a new campaign's game document.
	StartingData map[string]any `yaml:"starting_data,omitempty" json:"-"`

	Knowledge []KnowledgeEntry `yaml:"knowledge,omitempty" json:"-"`
}

// DefaultWordLimit applies when a world does not set its own.
const DefaultWordLimit = 220

// Validate checks a world definition for the fields the pipeline requires.
func (w *World) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("world id is required")
	}
	if w.Name == "" {
		return fmt.Errorf("world %q: name is required", w.ID)
	}
	if strings.TrimSpace(w.Rules) == "" {
		return fmt.Errorf("world %q: rules text is required", w.ID)
	}
	if w.TurnCost < 0 {
		return fmt.Errorf("world %q: turn cost cannot be negative", w.ID)
	}
	switch w.Rating {
	case "", RatingEveryone, RatingTeen, RatingMature:
	default:
		return fmt.Errorf("world %q: unknown rating %q", w.ID, w.Rating)
	}
	for i, k := range w.Knowledge {
		if len(k.Topics) == 0 {
			return fmt.Errorf("world %q: knowledge entry %d has no topics", w.ID, i)
		}
		if strings.TrimSpace(k.Text) == "" {
			return fmt.Errorf("world %q: knowledge entry %d has no text", w.ID, i)
		}
	}
	return nil
}

// Words returns the narrator word budget.
func (w *World) Words() int {
	if w.WordLimit > 0 {
		return w.WordLimit
	}
	return DefaultWordLimit
}

// MatchKnowledge returns the text of entries whose topics appear in the
// player input, up to limit entries.
func (w *World) MatchKnowledge(input string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	lowered := strings.ToLower(input)
	var out []string
	for _, entry := range w.Knowledge {
		for _, topic := range entry.Topics {
			if strings.Contains(lowered, strings.ToLower(topic)) {
				out = append(out, entry.Text)
				break
			}
		}
		if len(out) >= limit {
			break
		}
	}
	return out
}
