// Package parser converts raw model text into a validated ActionResult.
// Models wrap their JSON in prose, code fences and half-valid shapes, so
// extraction runs an ordered chain of recovery strategies; only when every
// strategy fails is the response rejected outright.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrInvalidResponse is returned when no recovery strategy could extract a
// structured object from the model output.
var ErrInvalidResponse = errors.New("no structured object recovered from model response")

// FallbackNarrative is the guaranteed non-empty narrative used when a
// recovered object carries no usable cues.
const FallbackNarrative = "The world holds its breath; nothing decisive happens."

// RollDirective is the Brain's request for a die roll.
type RollDirective struct {
	Type         string   `json:"type,omitempty"` // die notation, defaults to 1d20
	Purpose      string   `json:"purpose"`
	Stat         string   `json:"stat,omitempty"`
	Proficient   bool     `json:"proficient,omitempty"`
	ItemBonus    int      `json:"item_bonus,omitempty"`
	Situational  int      `json:"situational,omitempty"`
	Difficulty   *int     `json:"difficulty,omitempty"`
	Advantage    []string `json:"advantage,omitempty"`
	Disadvantage []string `json:"disadvantage,omitempty"`
}

// ChoiceDirective is the Brain's request for the player to pick an option.
type ChoiceDirective struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// QuestUpdate is one quest operation proposed by the Brain.
type QuestUpdate struct {
	Action         string   `json:"action"` // suggest, accept, decline, complete_objective, complete, fail
	QuestID        string   `json:"quest_id"`
	Title          string   `json:"title,omitempty"`
	Description    string   `json:"description,omitempty"`
	Objectives     []string `json:"objectives,omitempty"`
	ObjectiveIndex int      `json:"objective_index,omitempty"`
}

// ActionResult is the schema the Brain's model is instructed to produce.
type ActionResult struct {
	NarrativeCues []string         `json:"narrative_cues"`
	StateUpdates  map[string]any   `json:"state_updates,omitempty"`
	RollRequest   *RollDirective   `json:"roll_request,omitempty"`
	Choice        *ChoiceDirective `json:"choice,omitempty"`
	QuestUpdates  []QuestUpdate    `json:"quest_updates,omitempty"`
	SystemNotes   []string         `json:"system_notes,omitempty"`
}

// characteristic keys used by the co-occurrence strategy.
const (
	keyNarrativeCues = "narrative_cues"
	keyStateUpdates  = "state_updates"
)

// Strategy names, reported so callers can log which recovery path fired.
const (
	StrategyDirect     = "direct"
	StrategyFenced     = "fenced"
	StrategyKeyPattern = "key-pattern"
	StrategyBraceScan  = "brace-scan"
)

type strategy struct {
	name    string
	extract func(raw string) (string, bool)
}

// strategies is the ordered recovery chain.
var strategies = []strategy{
	{StrategyDirect, extractDirect},
	{StrategyFenced, extractFenced},
	{StrategyKeyPattern, extractKeyPattern},
	{StrategyBraceScan, extractBraceScan},
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Extract runs the recovery chain and returns the first valid JSON object
// found, plus the name of the strategy that recovered it.
func Extract(raw string) (string, string, error) {
	for _, s := range strategies {
		if obj, ok := s.extract(raw); ok && gjson.Valid(obj) {
			return obj, s.name, nil
		}
	}
	return "", "", ErrInvalidResponse
}

// Parse extracts and validates an ActionResult from raw model text. Schema
// mismatches degrade to field-by-field extraction; the returned result
// always carries at least one non-empty narrative cue.
func Parse(raw string) (*ActionResult, error) {
	obj, _, err := Extract(raw)
	if err != nil {
		return nil, err
	}

	result, err := decode(obj)
	if err != nil {
		// Partial schema mismatch: salvage what is salvageable rather
		// than rejecting the whole turn.
		result = salvage(obj)
	}

	normalize(result)
	return result, nil
}

func decode(obj string) (*ActionResult, error) {
	var result ActionResult
	if err := json.Unmarshal([]byte(obj), &result); err != nil {
		// narrative_cues may arrive as a bare string; retry with a
		// loose intermediate before giving up on the whole object.
		var loose struct {
			NarrativeCues json.RawMessage  `json:"narrative_cues"`
			StateUpdates  map[string]any   `json:"state_updates"`
			RollRequest   *RollDirective   `json:"roll_request"`
			Choice        *ChoiceDirective `json:"choice"`
			QuestUpdates  []QuestUpdate    `json:"quest_updates"`
			SystemNotes   []string         `json:"system_notes"`
		}
		if err2 := json.Unmarshal([]byte(obj), &loose); err2 != nil {
			return nil, fmt.Errorf("schema validation failed: %w", err)
		}
		result = ActionResult{
			NarrativeCues: decodeCues(loose.NarrativeCues),
			StateUpdates:  loose.StateUpdates,
			RollRequest:   loose.RollRequest,
			Choice:        loose.Choice,
			QuestUpdates:  loose.QuestUpdates,
			SystemNotes:   loose.SystemNotes,
		}
		return &result, nil
	}
	return &result, nil
}

func decodeCues(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}

// salvage pulls fields one by one with gjson after whole-object decoding
// failed, keeping whatever conforms.
func salvage(obj string) *ActionResult {
	result := &ActionResult{}

	cues := gjson.Get(obj, keyNarrativeCues)
	switch {
	case cues.IsArray():
		for _, c := range cues.Array() {
			if s := c.String(); s != "" {
				result.NarrativeCues = append(result.NarrativeCues, s)
			}
		}
	case cues.Type == gjson.String:
		result.NarrativeCues = []string{cues.String()}
	}

	if updates := gjson.Get(obj, keyStateUpdates); updates.IsObject() {
		var m map[string]any
		if err := json.Unmarshal([]byte(updates.Raw), &m); err == nil {
			result.StateUpdates = m
		}
	}

	if roll := gjson.Get(obj, "roll_request"); roll.IsObject() {
		var r RollDirective
		if err := json.Unmarshal([]byte(roll.Raw), &r); err == nil {
			result.RollRequest = &r
		}
	}

	if choice := gjson.Get(obj, "choice"); choice.IsObject() {
		var c ChoiceDirective
		if err := json.Unmarshal([]byte(choice.Raw), &c); err == nil {
			result.Choice = &c
		}
	}

	return result
}

// normalize fills contract guarantees: a non-empty cue list and a die type
// on roll requests.
func normalize(r *ActionResult) {
	cues := r.NarrativeCues[:0]
	for _, c := range r.NarrativeCues {
		if strings.TrimSpace(c) != "" {
			cues = append(cues, c)
		}
	}
	r.NarrativeCues = cues
	if len(r.NarrativeCues) == 0 {
		r.NarrativeCues = []string{FallbackNarrative}
	}
	if r.RollRequest != nil && r.RollRequest.Type == "" {
		r.RollRequest.Type = "1d20"
	}
}

func extractDirect(raw string) (string, bool) {
	t := strings.TrimSpace(raw)
	if strings.HasPrefix(t, "{") && strings.HasSuffix(t, "}") {
		return t, true
	}
	return "", false
}

func extractFenced(raw string) (string, bool) {
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		return m[1], true
	}
	return "", false
}

// extractKeyPattern fires when both characteristic keys co-occur: it scans
// from the nearest opening brace before the earlier key.
func extractKeyPattern(raw string) (string, bool) {
	ni := strings.Index(raw, `"`+keyNarrativeCues+`"`)
	si := strings.Index(raw, `"`+keyStateUpdates+`"`)
	if ni < 0 || si < 0 {
		return "", false
	}
	first := min(ni, si)
	start := strings.LastIndex(raw[:first], "{")
	if start < 0 {
		return "", false
	}
	return scanBalanced(raw[start:])
}

func extractBraceScan(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	if start < 0 {
		return "", false
	}
	return scanBalanced(raw[start:])
}

// scanBalanced walks from the leading brace to its string-aware balanced
// close and returns the spanned object.
func scanBalanced(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false

	for i, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[:i+1], true
				}
			}
		}
	}
	return "", false
}
