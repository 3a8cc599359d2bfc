// Package economy defines the turn-credit accounting types: user tiers,
// per-turn costs and the per-user ledger entry. The atomic debit itself is
// a storage concern; this package only describes what is charged.
package economy

import "fmt"

// Tier is a user's subscription tier.
type Tier string

const (
	TierFree     Tier = "free"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// startingBalance seeds a new user's credit balance by tier.
var startingBalance = map[Tier]int64{
	TierFree:     50,
	TierStandard: 500,
	TierPremium:  2000,
}

// costMultiplier scales a world's base turn cost by tier, in percent.
var costMultiplier = map[Tier]int64{
	TierFree:     100,
	TierStandard: 100,
	TierPremium:  80,
}

// ParseTier validates a tier string, defaulting empty to free.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case "":
		return TierFree, nil
	case TierFree, TierStandard, TierPremium:
		return Tier(s), nil
	default:
		return "", fmt.Errorf("unknown tier %q", s)
	}
}

// StartingBalance returns the initial credit balance for a tier.
func StartingBalance(tier Tier) int64 {
	if b, ok := startingBalance[tier]; ok {
		return b
	}
	return startingBalance[TierFree]
}

// TurnCost computes the credit cost of one turn for a tier.
func TurnCost(baseCost int64, tier Tier) int64 {
	m, ok := costMultiplier[tier]
	if !ok {
		m = 100
	}
	return baseCost * m / 100
}

// TokenUsage accumulates prompt and completion token counts for one model.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// Ledger is one user's balance and usage counters. It is read and written
// only inside the storage layer's atomic transaction.
type Ledger struct {
	UserID        string                `json:"user_id"`
	Balance       int64                 `json:"balance"`
	TurnsUsed     int64                 `json:"turns_used"`
	TokensByModel map[string]TokenUsage `json:"tokens_by_model,omitempty"`
}

// Charge is the usage to record for one successfully persisted turn.
type Charge struct {
	Cost          int64
	TokensByModel map[string]TokenUsage
}

// Apply debits the charge and accumulates counters. The caller must have
// already verified the balance inside its transaction.
func (l *Ledger) Apply(c Charge) {
	l.Balance -= c.Cost
	l.TurnsUsed++
	if len(c.TokensByModel) > 0 && l.TokensByModel == nil {
		l.TokensByModel = make(map[string]TokenUsage, len(c.TokensByModel))
	}
	for model, usage := range c.TokensByModel {
		t := l.TokensByModel[model]
		t.PromptTokens += usage.PromptTokens
		t.CompletionTokens += usage.CompletionTokens
		l.TokensByModel[model] = t
	}
}
