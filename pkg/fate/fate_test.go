package fate

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource returns preset die faces in order. Values are faces (1-20),
// not Intn results.
type scriptedSource struct {
	faces []int
	i     int
}

func (s *scriptedSource) Intn(n int) int {
	if s.i >= len(s.faces) {
		panic("scriptedSource exhausted")
	}
	v := s.faces[s.i]
	s.i++
	return v - 1
}

func intPtr(n int) *int { return &n }

func TestResolve_StraightRoll(t *testing.T) {
	src := &scriptedSource{faces: []int{14}}
	rec, next, err := Resolve(src, Request{Purpose: "attack", StatValue: 16, Difficulty: intPtr(15)}, EngineState{})
	require.NoError(t, err)

	assert.Equal(t, "1d20", rec.Notation)
	assert.Equal(t, []int{14}, rec.Rolls)
	assert.Equal(t, 14, rec.Base)
	assert.Equal(t, 14, rec.Adjusted)
	assert.Equal(t, 3, rec.Modifier) // floor((16-10)/2)
	assert.Equal(t, 17, rec.Total)
	require.NotNil(t, rec.Success)
	assert.True(t, *rec.Success)
	assert.Equal(t, 0, next.Momentum) // 14 > 12 resets
}

func TestResolve_AdvantageSelectsMax(t *testing.T) {
	src := &scriptedSource{faces: []int{4, 17}}
	rec, _, err := Resolve(src, Request{Advantage: []string{"flanking"}, StatValue: 10}, EngineState{})
	require.NoError(t, err)

	assert.Equal(t, "2d20kh", rec.Notation)
	assert.Equal(t, 17, rec.Base)
	assert.True(t, rec.Advantage)
}

func TestResolve_DisadvantageSelectsMin(t *testing.T) {
	src := &scriptedSource{faces: []int{4, 17}}
	rec, _, err := Resolve(src, Request{Disadvantage: []string{"darkness"}, StatValue: 10}, EngineState{})
	require.NoError(t, err)

	assert.Equal(t, "2d20kl", rec.Notation)
	assert.Equal(t, 4, rec.Base)
	assert.True(t, rec.Disadvantage)
}

func TestResolve_AdvantageAndDisadvantageCancel(t *testing.T) {
	src := &scriptedSource{faces: []int{11}}
	rec, _, err := Resolve(src, Request{
		Advantage:    []string{"high ground"},
		Disadvantage: []string{"wounded"},
		StatValue:    10,
	}, EngineState{})
	require.NoError(t, err)

	assert.Equal(t, "1d20", rec.Notation)
	assert.False(t, rec.Advantage)
	assert.False(t, rec.Disadvantage)
}

func TestResolve_MomentumBuildsAndCaps(t *testing.T) {
	st := EngineState{}
	for i := 0; i < 10; i++ {
		src := &scriptedSource{faces: []int{2}}
		_, next, err := Resolve(src, Request{StatValue: 10}, st)
		require.NoError(t, err)
		st = next
		assert.LessOrEqual(t, st.Momentum, 10)
		assert.GreaterOrEqual(t, st.Momentum, 0)
	}
	assert.Equal(t, 10, st.Momentum)

	// Any unmodified roll above 12 resets to zero.
	src := &scriptedSource{faces: []int{13}}
	_, st, err := Resolve(src, Request{StatValue: 10}, st)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Momentum)
}

func TestResolve_MomentumAdjustsButNeverManufacturesTwenty(t *testing.T) {
	src := &scriptedSource{faces: []int{18}}
	rec, _, err := Resolve(src, Request{StatValue: 10}, EngineState{Momentum: 6})
	require.NoError(t, err)

	assert.Equal(t, 18, rec.Base)
	assert.Equal(t, 20, rec.Adjusted) // capped at 20
	assert.False(t, rec.Critical)     // adjusted 20 is not a natural 20
}

func TestResolve_NaturalTwentyAlwaysCritical(t *testing.T) {
	src := &scriptedSource{faces: []int{20}}
	rec, next, err := Resolve(src, Request{StatValue: 10}, EngineState{TurnsSinceCritical: 3})
	require.NoError(t, err)

	assert.True(t, rec.Critical)
	assert.False(t, rec.PityCrit)
	assert.Equal(t, 0, next.TurnsSinceCritical)
}

func TestResolve_PityCrit(t *testing.T) {
	tests := []struct {
		name         string
		turnsSince   int
		wantCritical bool
	}{
		{"below gap", 40, false},
		{"above gap", 41, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &scriptedSource{faces: []int{19}}
			rec, _, err := Resolve(src, Request{StatValue: 10}, EngineState{TurnsSinceCritical: tt.turnsSince})
			require.NoError(t, err)
			assert.Equal(t, tt.wantCritical, rec.Critical)
			assert.Equal(t, tt.wantCritical, rec.PityCrit)
		})
	}
}

func TestResolve_FumbleWithoutMomentum(t *testing.T) {
	src := &scriptedSource{faces: []int{1}}
	rec, _, err := Resolve(src, Request{StatValue: 10}, EngineState{Momentum: 4})
	require.NoError(t, err)

	assert.True(t, rec.Fumble)
	assert.False(t, rec.Rerolled)
}

func TestResolve_FumbleProtectionReroll(t *testing.T) {
	src := &scriptedSource{faces: []int{1, 11}}
	rec, _, err := Resolve(src, Request{StatValue: 10}, EngineState{Momentum: 5})
	require.NoError(t, err)

	assert.True(t, rec.Rerolled)
	assert.False(t, rec.Fumble)
	assert.Equal(t, []int{1, 11}, rec.Rolls)
	assert.Equal(t, 11, rec.Base)
}

func TestResolve_FumbleProtectionRerollOnlyOnce(t *testing.T) {
	// The reroll's own natural 1 is an unconditional fumble.
	src := &scriptedSource{faces: []int{1, 1}}
	rec, _, err := Resolve(src, Request{StatValue: 10}, EngineState{Momentum: 8})
	require.NoError(t, err)

	assert.True(t, rec.Rerolled)
	assert.True(t, rec.Fumble)
	assert.Equal(t, 1, rec.Base)
}

func TestResolve_RerollNaturalTwentyIsCritical(t *testing.T) {
	src := &scriptedSource{faces: []int{1, 20}}
	rec, _, err := Resolve(src, Request{StatValue: 10}, EngineState{Momentum: 8})
	require.NoError(t, err)

	assert.True(t, rec.Rerolled)
	assert.True(t, rec.Critical)
}

func TestResolve_ModifierStack(t *testing.T) {
	src := &scriptedSource{faces: []int{10}}
	rec, _, err := Resolve(src, Request{
		StatValue:   14,
		Proficiency: 2,
		ItemBonus:   1,
		Situational: -2,
	}, EngineState{})
	require.NoError(t, err)

	assert.Equal(t, Modifiers{Stat: 2, Proficiency: 2, Item: 1, Situational: -2}, rec.Modifiers)
	assert.Equal(t, 3, rec.Modifier)
	assert.Equal(t, 13, rec.Total)
}

func TestResolve_InvalidInput(t *testing.T) {
	src := &scriptedSource{faces: []int{10}}

	_, _, err := Resolve(nil, Request{StatValue: 10}, EngineState{})
	assert.Error(t, err)

	_, _, err = Resolve(src, Request{StatValue: -1}, EngineState{})
	assert.Error(t, err)

	_, _, err = Resolve(src, Request{StatValue: 10, Difficulty: intPtr(-5)}, EngineState{})
	assert.Error(t, err)
}

func TestStatModifier(t *testing.T) {
	tests := []struct {
		stat, want int
	}{
		{1, -5}, {8, -1}, {9, -1}, {10, 0}, {11, 0}, {12, 1}, {15, 2}, {16, 3}, {20, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatModifier(tt.stat), "stat %d", tt.stat)
	}
}

func TestLockedSource_ConcurrentResolve(t *testing.T) {
	src := NewLockedSource(rand.New(rand.NewSource(42)))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st := EngineState{}
			for i := 0; i < 200; i++ {
				rec, next, err := Resolve(src, Request{StatValue: 12}, st)
				require.NoError(t, err)
				require.GreaterOrEqual(t, rec.Base, 1)
				require.LessOrEqual(t, rec.Base, 20)
				st = next
			}
		}()
	}
	wg.Wait()
}

func TestResolve_MomentumBoundsProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	st := EngineState{}
	for i := 0; i < 500; i++ {
		_, next, err := Resolve(rng, Request{StatValue: 10}, st)
		require.NoError(t, err)
		require.GreaterOrEqual(t, next.Momentum, 0)
		require.LessOrEqual(t, next.Momentum, 10)
		st = next
	}
}
