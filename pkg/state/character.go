package state

import (
	"encoding/json"
	"fmt"

	"github.com/jwebster45206/d20"
)

// ResourcePool is a current/max pair such as health or mana.
type ResourcePool struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// Character is the typed view of the character sub-document. Identity
// fields are write-once after creation (enforced by the Merger's policy
// table); the stat block semantics vary by world variant but are always a
// flat name -> integer mapping.
type Character struct {
	Name      string                  `json:"name"`
	Class     string                  `json:"class,omitempty"`
	Rank      string                  `json:"rank,omitempty"`
	Level     int                     `json:"level,omitempty"`
	Stats     map[string]int          `json:"stats,omitempty"`
	Resources map[string]ResourcePool `json:"resources,omitempty"`
	Essences  []string                `json:"essences,omitempty"`
	Abilities []string                `json:"abilities,omitempty"`
	Spells    []string                `json:"spells,omitempty"`

	CombatModifiers map[string]int `json:"combat_modifiers,omitempty"`
	ArmorClass      int            `json:"armor_class,omitempty"`

	// Actor is the validated runtime representation, built on load.
	Actor *d20.Actor `json:"-"`
}

// ParseCharacter decodes the character sub-document and builds its runtime
// actor. Building the actor validates the stat block before the pipeline
// uses it for roll resolution.
func ParseCharacter(doc map[string]any) (*Character, error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("character document is empty")
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode character document: %w", err)
	}
	var c Character
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode character document: %w", err)
	}
	if c.Name == "" {
		return nil, fmt.Errorf("character has no name")
	}

	if err := c.buildActor(); err != nil {
		return nil, err
	}
	return &c, nil
}

// buildActor constructs the d20 actor from the character's stats and
// resource pools.
func (c *Character) buildActor() error {
	maxHP := 1
	curHP := 0
	if hp, ok := c.Resources["health"]; ok {
		if hp.Max > 0 {
			maxHP = hp.Max
		}
		curHP = hp.Current
	}
	ac := c.ArmorClass
	if ac <= 0 {
		ac = 10
	}

	actor, err := d20.NewActor(c.Name).
		WithHP(maxHP).
		WithAC(ac).
		WithAttributes(c.Stats).
		WithCombatModifiers(c.CombatModifiers).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build actor: %w", err)
	}

	if curHP > 0 && curHP != maxHP {
		if err := actor.SetHP(curHP); err != nil {
			return fmt.Errorf("failed to set HP: %w", err)
		}
	}

	c.Actor = actor
	return nil
}

// Stat returns the named stat value, defaulting to 10 (no modifier) when
// the world variant does not track it. The actor is the authoritative read
// once built; the raw map covers characters constructed without one.
func (c *Character) Stat(name string) int {
	if c.Actor != nil {
		if v, ok := c.Actor.Attribute(name); ok {
			return v
		}
	}
	if v, ok := c.Stats[name]; ok {
		return v
	}
	return 10
}

// HP returns the actor's current hit points.
func (c *Character) HP() int {
	if c.Actor == nil {
		return 0
	}
	return c.Actor.HP()
}

// MaxHP returns the actor's maximum hit points.
func (c *Character) MaxHP() int {
	if c.Actor == nil {
		return 0
	}
	return c.Actor.MaxHP()
}

// AC returns the actor's armor class.
func (c *Character) AC() int {
	if c.Actor == nil {
		return 10
	}
	return c.Actor.AC()
}

// ProficiencyBonus derives the flat proficiency bonus from level the way
// level-derived systems do: 2 + (level-1)/4.
func (c *Character) ProficiencyBonus() int {
	if c.Level <= 0 {
		return 2
	}
	return 2 + (c.Level-1)/4
}
