package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerger_ImmutableFieldsNeverShrink(t *testing.T) {
	m := NewMerger(nil)

	current := map[string]any{
		"abilities": []any{"parry", "track"},
	}
	delta := map[string]any{
		"abilities": map[string]any{
			"added":   []any{"riposte"},
			"removed": []any{"parry", "track"},
		},
	}

	merged, warnings := m.Apply(current, delta)
	assert.ElementsMatch(t, []any{"parry", "track", "riposte"}, merged["abilities"])
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "immutable")
}

func TestMerger_ImmutablePlainArrayUnion(t *testing.T) {
	m := NewMerger(nil)

	// First turn: no prior essences.
	merged, _ := m.Apply(map[string]any{}, map[string]any{
		"character": map[string]any{"essences": []any{"Fire"}},
	})
	char := merged["character"].(map[string]any)
	assert.Equal(t, []any{"Fire"}, char["essences"])

	// Second turn: a plain array is a union, never a replacement.
	merged, _ = m.Apply(merged, map[string]any{
		"character": map[string]any{"essences": []any{"Water"}},
	})
	char = merged["character"].(map[string]any)
	assert.Equal(t, []any{"Fire", "Water"}, char["essences"])
}

func TestMerger_ProtectedAddedRemoved(t *testing.T) {
	m := NewMerger(nil)

	current := map[string]any{
		"inventory": []any{"rope", "torch", "dagger"},
	}
	delta := map[string]any{
		"inventory": map[string]any{
			"added":   []any{"lantern", "torch"},
			"removed": []any{"dagger"},
		},
	}

	merged, warnings := m.Apply(current, delta)
	// Exactly (pre ∪ added) \ removed.
	assert.Equal(t, []any{"rope", "torch", "lantern"}, merged["inventory"])
	assert.Empty(t, warnings)
}

func TestMerger_ProtectedPlainArrayWarnsAddOnly(t *testing.T) {
	m := NewMerger(nil)

	current := map[string]any{"inventory": []any{"rope"}}
	delta := map[string]any{"inventory": []any{"torch"}}

	merged, warnings := m.Apply(current, delta)
	assert.Equal(t, []any{"rope", "torch"}, merged["inventory"])
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "add-only")
}

func TestMerger_ProtectedIdempotentReplay(t *testing.T) {
	m := NewMerger(nil)

	current := map[string]any{"party": []any{"Mira"}}
	delta := map[string]any{
		"party": map[string]any{"added": []any{"Doran"}, "removed": []any{"Mira"}},
	}

	once, _ := m.Apply(current, delta)
	twice, _ := m.Apply(once, delta)
	assert.Equal(t, once["party"], twice["party"])
}

func TestMerger_IdentityProtectedFirstWriteWins(t *testing.T) {
	m := NewMerger(nil)

	merged, warnings := m.Apply(map[string]any{}, map[string]any{
		"character": map[string]any{"name": "Kael"},
	})
	assert.Empty(t, warnings)

	merged, warnings = m.Apply(merged, map[string]any{
		"character": map[string]any{"name": "Lord Kael the Undying", "rank": "Initiate"},
	})
	char := merged["character"].(map[string]any)
	assert.Equal(t, "Kael", char["name"])
	assert.Equal(t, "Initiate", char["rank"]) // rank was unset, first write lands
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "identity")
}

func TestMerger_ShallowMergeNestedObjects(t *testing.T) {
	m := NewMerger(nil)

	current := map[string]any{
		"reputation": map[string]any{
			"guild":  map[string]any{"standing": "neutral", "favor": 2.0},
			"temple": map[string]any{"standing": "honored"},
		},
	}
	delta := map[string]any{
		"reputation": map[string]any{
			"guild": map[string]any{"favor": 5.0},
		},
	}

	merged, warnings := m.Apply(current, delta)
	assert.Empty(t, warnings)
	rep := merged["reputation"].(map[string]any)
	guild := rep["guild"].(map[string]any)
	assert.Equal(t, "neutral", guild["standing"]) // unspecified keys untouched
	assert.Equal(t, 5.0, guild["favor"])
	assert.Contains(t, rep, "temple")
}

func TestMerger_ScalarReplace(t *testing.T) {
	m := NewMerger(nil)

	current := map[string]any{"gold": 100.0, "location": "Harbor District"}
	delta := map[string]any{"gold": 85.0, "location": "The Rusty Anchor", "experience": 40.0}

	merged, warnings := m.Apply(current, delta)
	assert.Empty(t, warnings)
	assert.Equal(t, 85.0, merged["gold"])
	assert.Equal(t, "The Rusty Anchor", merged["location"])
	assert.Equal(t, 40.0, merged["experience"])
}

func TestMerger_ShapeMismatchFallsBackWithWarning(t *testing.T) {
	m := NewMerger(nil)

	current := map[string]any{"inventory": []any{"rope"}}
	delta := map[string]any{"inventory": "a rope and a torch"}

	merged, warnings := m.Apply(current, delta)
	assert.Equal(t, "a rope and a torch", merged["inventory"])
	require.Len(t, warnings, 1)
}

func TestMerger_DoesNotMutateInputs(t *testing.T) {
	m := NewMerger(nil)

	current := map[string]any{"inventory": []any{"rope"}}
	delta := map[string]any{"inventory": map[string]any{"added": []any{"torch"}}}

	_, _ = m.Apply(current, delta)
	assert.Equal(t, []any{"rope"}, current["inventory"])
}

func TestMerger_DeterministicSupersetProperty(t *testing.T) {
	m := NewMerger(nil)

	current := map[string]any{"spells": []any{"ignite", "mend"}}
	deltas := []map[string]any{
		{"spells": []any{"gust"}},
		{"spells": map[string]any{"removed": []any{"ignite"}}},
		{"spells": map[string]any{"added": []any{"mend", "ward"}, "removed": []any{"ward"}}},
	}

	merged := current
	for _, d := range deltas {
		merged, _ = m.Apply(merged, d)
		for _, pre := range current["spells"].([]any) {
			assert.Contains(t, merged["spells"], pre, "immutable field shrank")
		}
	}
	assert.Equal(t, []any{"ignite", "mend", "gust", "ward"}, merged["spells"])
}
