package prompts

import (
	"fmt"
	"strings"

	"github.com/mlundquist/saga-engine/pkg/chat"
	"github.com/mlundquist/saga-engine/pkg/state"
)

const defaultHistoryLimit = 10

// Builder assembles the Brain's message array using a fluent interface,
// keeping prompt construction separate from game state management.
type Builder struct {
	gs           *state.GameState
	rules        string
	snippets     []string
	userInput    string
	priorRoll    *state.RollResult
	historyLimit int
	interactive  bool
	showChoices  bool
}

// New creates a prompt builder with default settings.
func New() *Builder {
	return &Builder{historyLimit: defaultHistoryLimit}
}

// WithGameState sets the campaign state backing the ledger and history.
func (b *Builder) WithGameState(gs *state.GameState) *Builder {
	b.gs = gs
	return b
}

// WithWorldRules sets the static rules text for the active world variant.
func (b *Builder) WithWorldRules(rules string) *Builder {
	b.rules = rules
	return b
}

// WithKnowledge injects reference snippets fetched for this turn.
func (b *Builder) WithKnowledge(snippets []string) *Builder {
	b.snippets = snippets
	return b
}

// WithUserInput sets the player's action text.
func (b *Builder) WithUserInput(input string) *Builder {
	b.userInput = input
	return b
}

// WithPriorRoll supplies the player's answer to a pending roll.
func (b *Builder) WithPriorRoll(r *state.RollResult) *Builder {
	b.priorRoll = r
	return b
}

// WithHistoryLimit sets the transcript window size.
func (b *Builder) WithHistoryLimit(limit int) *Builder {
	b.historyLimit = limit
	return b
}

// WithInteractiveDice toggles interactive-roll mode instructions.
func (b *Builder) WithInteractiveDice(on bool) *Builder {
	b.interactive = on
	return b
}

// WithChoices toggles whether the model may offer suggested choice options.
func (b *Builder) WithChoices(on bool) *Builder {
	b.showChoices = on
	return b
}

// Build constructs the final message array for the Brain call.
func (b *Builder) Build() ([]chat.Message, error) {
	if b.gs == nil {
		return nil, fmt.Errorf("gamestate is required")
	}
	if b.rules == "" {
		return nil, fmt.Errorf("world rules are required")
	}
	if strings.TrimSpace(b.userInput) == "" {
		return nil, fmt.Errorf("user input is required")
	}

	ledger, err := Ledger(b.gs)
	if err != nil {
		return nil, fmt.Errorf("error building state ledger: %w", err)
	}

	var system strings.Builder
	system.WriteString(b.rules)
	system.WriteString("\n\n")
	system.WriteString(ledger)

	if len(b.snippets) > 0 {
		system.WriteString("\n\nReference material for this turn:\n")
		for _, s := range b.snippets {
			system.WriteString("- ")
			system.WriteString(s)
			system.WriteString("\n")
		}
	}

	system.WriteString("\n")
	system.WriteString(b.modeInstructions())

	messages := []chat.Message{{Role: chat.RoleSystem, Content: system.String()}}
	messages = append(messages, chat.Window(b.gs.ChatHistory, b.historyLimit)...)

	user := b.userInput
	if b.priorRoll != nil {
		user = fmt.Sprintf("%s\n\n[The player rolled %s: %d]", user, b.priorRoll.Type, b.priorRoll.Result)
	}
	messages = append(messages, chat.Message{Role: chat.RoleUser, Content: user})

	return messages, nil
}

func (b *Builder) modeInstructions() string {
	var sb strings.Builder
	if b.interactive {
		sb.WriteString("Dice mode: interactive. When an action's outcome is uncertain, respond with a roll_request and WAIT; do not assume a result.")
	} else {
		sb.WriteString("Dice mode: automatic. When an action's outcome is uncertain, respond with a roll_request; the engine rolls and you will see the outcome next turn.")
	}
	sb.WriteString("\n")
	if b.showChoices {
		sb.WriteString("You may offer the player an enumerated set of suggested actions via the choice field.")
	} else {
		sb.WriteString("Do not offer enumerated choice menus; let the player act freely.")
	}
	return sb.String()
}
