// Package voice implements the narrating stage: it converts the Brain's
// structured cues and the turn's dice results into player-facing prose.
package voice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mlundquist/saga-engine/pkg/chat"
	"github.com/mlundquist/saga-engine/pkg/fate"
	"github.com/mlundquist/saga-engine/pkg/textfilter"
	"github.com/mlundquist/saga-engine/pkg/world"
)

// LLM is the provider contract the Voice consumes. It may be a different
// provider than the Brain's.
type LLM interface {
	Name() string
	Chat(ctx context.Context, messages []chat.Message) (*chat.Completion, error)
}

// Voice is the narrating stage.
type Voice struct {
	llm    LLM
	logger *slog.Logger
}

// New creates a Voice backed by the given provider.
func New(llm LLM, logger *slog.Logger) *Voice {
	return &Voice{llm: llm, logger: logger}
}

// Narrate produces prose from the Brain's cues, the resolved rolls and the
// turn's state-change summary. The word budget is enforced by prompt
// instruction, not truncation. On provider failure the error is returned;
// callers fall back to Fallback so the player always gets a response.
func (v *Voice) Narrate(ctx context.Context, w *world.World, cues []string, rolls []*fate.Record, changes []string) (string, chat.Usage, error) {
	var system strings.Builder
	if w.VoiceStyle != "" {
		system.WriteString(w.VoiceStyle)
	} else {
		system.WriteString("You are the narrator of a roleplaying game.")
	}
	fmt.Fprintf(&system, "\nNarrate the events below as a single passage of at most %d words. Never invent events, items or outcomes beyond what is listed.", w.Words())

	var user strings.Builder
	user.WriteString("Events:\n")
	for _, c := range cues {
		user.WriteString("- ")
		user.WriteString(c)
		user.WriteString("\n")
	}
	for _, r := range rolls {
		user.WriteString("- ")
		user.WriteString(describeRoll(r))
		user.WriteString("\n")
	}
	if len(changes) > 0 {
		user.WriteString("State changes:\n")
		for _, c := range changes {
			user.WriteString("- ")
			user.WriteString(c)
			user.WriteString("\n")
		}
	}

	completion, err := v.llm.Chat(ctx, []chat.Message{
		{Role: chat.RoleSystem, Content: system.String()},
		{Role: chat.RoleUser, Content: user.String()},
	})
	if err != nil {
		return "", chat.Usage{}, fmt.Errorf("narrator call failed: %w", err)
	}

	prose := strings.TrimSpace(completion.Text)
	if prose == "" {
		return "", completion.Usage, fmt.Errorf("narrator returned no content")
	}

	return v.rated(w, prose), completion.Usage, nil
}

// Fallback is the terse narration used when the provider fails: the Brain's
// cue text joined into a passage.
func (v *Voice) Fallback(w *world.World, cues []string) string {
	return v.rated(w, strings.Join(cues, " "))
}

// rated applies the content filter required by the world's rating.
func (v *Voice) rated(w *world.World, prose string) string {
	switch w.Rating {
	case world.RatingEveryone, world.RatingTeen:
		return textfilter.Clean(prose)
	default:
		return prose
	}
}

func describeRoll(r *fate.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Dice: %s for %s came up %d (total %d with modifiers)", r.Notation, r.Purpose, r.Adjusted, r.Total)
	switch {
	case r.Critical:
		sb.WriteString(", a critical success")
	case r.Fumble:
		sb.WriteString(", a fumble")
	case r.Success != nil && *r.Success:
		sb.WriteString(", a success")
	case r.Success != nil:
		sb.WriteString(", a failure")
	}
	return sb.String()
}
