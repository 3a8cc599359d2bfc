// Package fate implements the dice mechanics for turn resolution: straight
// and advantage/disadvantage d20 rolls with momentum (bad-luck protection),
// pity criticals and fumble protection. The resolver is a pure function over
// its inputs plus an injected randomness source, so results are reproducible
// in tests.
package fate

import (
	"fmt"
	"math/rand"
	"sync"
)

const (
	dieSides = 20

	momentumCap       = 10
	momentumStep      = 2
	momentumLowRoll   = 8  // raw < 8 builds momentum
	momentumHighRoll  = 12 // raw > 12 resets momentum
	fumbleGuard       = 4  // momentum > 4 rerolls a natural 1
	pityCritTurnGap   = 40 // nat 19 promotes to crit after this many turns
	naturalCrit       = 20
	pityCritRoll      = 19
	naturalFumble     = 1
)

// EngineState is the small persistent fate record kept per campaign.
// It is created once at campaign initialization and mutated only by Resolve.
type EngineState struct {
	Momentum           int  `json:"momentum"`
	TurnsSinceCritical int  `json:"turns_since_critical"`
	DirectorCooldown   bool `json:"director_cooldown"`
}

// NewEngineState returns the initial fate record for a new campaign.
func NewEngineState() *EngineState {
	return &EngineState{}
}

// Source is the randomness provider for rolls. The stdlib *rand.Rand
// satisfies it.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	Intn(n int) int
}

var _ Source = (*rand.Rand)(nil)

// LockedSource serializes access to an underlying Source. A *rand.Rand is
// not safe for concurrent use, and turns for different campaigns run in
// parallel, so the shared production source must be wrapped.
type LockedSource struct {
	mu  sync.Mutex
	src Source
}

// NewLockedSource wraps src for concurrent use.
func NewLockedSource(src Source) *LockedSource {
	return &LockedSource{src: src}
}

func (s *LockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Intn(n)
}

// Request describes one roll the Brain asked for.
type Request struct {
	Purpose     string `json:"purpose"`
	Stat        string `json:"stat,omitempty"`
	StatValue   int    `json:"stat_value"`
	Proficiency int    `json:"proficiency"`  // flat bonus when proficient, else 0
	ItemBonus   int    `json:"item_bonus"`
	Situational int    `json:"situational"`
	Difficulty  *int   `json:"difficulty,omitempty"`

	// Advantage and Disadvantage list the sources granting each. Both
	// present cancels to a straight roll.
	Advantage    []string `json:"advantage,omitempty"`
	Disadvantage []string `json:"disadvantage,omitempty"`
}

// Modifiers is the per-component breakdown of the roll's modifier stack.
type Modifiers struct {
	Stat        int `json:"stat"`
	Proficiency int `json:"proficiency"`
	Item        int `json:"item"`
	Situational int `json:"situational"`
}

// Total returns the summed modifier stack.
func (m Modifiers) Total() int {
	return m.Stat + m.Proficiency + m.Item + m.Situational
}

// Record is the fully annotated result of one resolved roll.
type Record struct {
	Notation string `json:"notation"` // "1d20", "2d20kh", "2d20kl"
	Purpose  string `json:"purpose,omitempty"`

	Rolls    []int `json:"rolls"`    // raw dice as rolled
	Base     int   `json:"base"`     // selected raw die
	Momentum int   `json:"momentum"` // momentum applied to the base
	Adjusted int   `json:"adjusted"` // min(20, base+momentum)

	Modifiers Modifiers `json:"modifiers"`
	Modifier  int       `json:"modifier"` // Modifiers.Total(), denormalized for callers
	Total     int       `json:"total"`    // adjusted + modifier

	Advantage    bool `json:"advantage"`
	Disadvantage bool `json:"disadvantage"`
	Critical     bool `json:"critical"`
	PityCrit     bool `json:"pity_crit"`
	Fumble       bool `json:"fumble"`
	Rerolled     bool `json:"rerolled"` // fumble protection consumed

	Difficulty *int  `json:"difficulty,omitempty"`
	Success    *bool `json:"success,omitempty"`
}

// StatModifier converts an ability score to its roll modifier,
// floor((stat-10)/2) with correct rounding for odd scores below 10.
func StatModifier(stat int) int {
	// Go integer division truncates toward zero; floor division is needed
	// so a stat of 9 yields -1, not 0.
	n := stat - 10
	if n < 0 {
		return -((-n + 1) / 2)
	}
	return n / 2
}

// Resolve rolls one request against the current engine state. It returns the
// annotated record and the updated state. The input state is not mutated.
func Resolve(src Source, req Request, st EngineState) (*Record, EngineState, error) {
	if src == nil {
		return nil, st, fmt.Errorf("fate: nil randomness source")
	}
	if req.StatValue < 0 {
		return nil, st, fmt.Errorf("fate: negative stat value %d", req.StatValue)
	}
	if req.Difficulty != nil && *req.Difficulty < 0 {
		return nil, st, fmt.Errorf("fate: negative difficulty %d", *req.Difficulty)
	}

	adv := len(req.Advantage) > 0
	dis := len(req.Disadvantage) > 0
	if adv && dis {
		// Opposing sources cancel to a straight roll.
		adv, dis = false, false
	}

	rec := &Record{
		Purpose:      req.Purpose,
		Advantage:    adv,
		Disadvantage: dis,
		Difficulty:   req.Difficulty,
	}

	switch {
	case adv:
		rec.Notation = "2d20kh"
		a, b := roll(src), roll(src)
		rec.Rolls = []int{a, b}
		rec.Base = max(a, b)
	case dis:
		rec.Notation = "2d20kl"
		a, b := roll(src), roll(src)
		rec.Rolls = []int{a, b}
		rec.Base = min(a, b)
	default:
		rec.Notation = "1d20"
		a := roll(src)
		rec.Rolls = []int{a}
		rec.Base = a
	}

	// Fumble protection: a natural 1 under high momentum is rerolled once.
	// The reroll's own natural results apply with no further protection.
	if rec.Base == naturalFumble && st.Momentum > fumbleGuard {
		rec.Rerolled = true
		r := roll(src)
		rec.Rolls = append(rec.Rolls, r)
		rec.Base = r
	}

	rec.Momentum = st.Momentum
	rec.Adjusted = rec.Base + st.Momentum
	if rec.Adjusted > dieSides {
		rec.Adjusted = dieSides
	}

	switch {
	case rec.Base == naturalCrit:
		rec.Critical = true
	case rec.Base == pityCritRoll && st.TurnsSinceCritical > pityCritTurnGap:
		rec.Critical = true
		rec.PityCrit = true
	case rec.Base == naturalFumble:
		rec.Fumble = true
	}

	rec.Modifiers = Modifiers{
		Stat:        StatModifier(req.StatValue),
		Proficiency: req.Proficiency,
		Item:        req.ItemBonus,
		Situational: req.Situational,
	}
	rec.Modifier = rec.Modifiers.Total()
	rec.Total = rec.Adjusted + rec.Modifier

	if req.Difficulty != nil {
		ok := rec.Total >= *req.Difficulty
		rec.Success = &ok
	}

	next := st
	switch {
	case rec.Base < momentumLowRoll:
		next.Momentum += momentumStep
		if next.Momentum > momentumCap {
			next.Momentum = momentumCap
		}
	case rec.Base > momentumHighRoll:
		next.Momentum = 0
	}
	if rec.Critical {
		next.TurnsSinceCritical = 0
	} else {
		next.TurnsSinceCritical++
	}

	return rec, next, nil
}

func roll(src Source) int {
	return src.Intn(dieSides) + 1
}
