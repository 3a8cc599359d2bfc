package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTier(t *testing.T) {
	tier, err := ParseTier("")
	require.NoError(t, err)
	assert.Equal(t, TierFree, tier)

	tier, err = ParseTier("premium")
	require.NoError(t, err)
	assert.Equal(t, TierPremium, tier)

	_, err = ParseTier("platinum")
	assert.Error(t, err)
}

func TestTurnCost(t *testing.T) {
	assert.Equal(t, int64(10), TurnCost(10, TierFree))
	assert.Equal(t, int64(10), TurnCost(10, TierStandard))
	assert.Equal(t, int64(8), TurnCost(10, TierPremium))
}

func TestLedger_Apply(t *testing.T) {
	l := Ledger{UserID: "u1", Balance: 100}

	l.Apply(Charge{
		Cost: 10,
		TokensByModel: map[string]TokenUsage{
			"claude": {PromptTokens: 900, CompletionTokens: 120},
		},
	})
	l.Apply(Charge{
		Cost: 10,
		TokensByModel: map[string]TokenUsage{
			"claude": {PromptTokens: 100, CompletionTokens: 30},
			"gpt":    {PromptTokens: 40, CompletionTokens: 10},
		},
	})

	assert.Equal(t, int64(80), l.Balance)
	assert.Equal(t, int64(2), l.TurnsUsed)
	assert.Equal(t, TokenUsage{PromptTokens: 1000, CompletionTokens: 150}, l.TokensByModel["claude"])
	assert.Equal(t, TokenUsage{PromptTokens: 40, CompletionTokens: 10}, l.TokensByModel["gpt"])
}
