// Package character turns YAML character and ability content into battle
// characters whose abilities run CEL formulas, effect definitions and Lua
// scripts.
package character

import (
	"fmt"
	"time"

	"github.com/cory-johannsen/raid/internal/game/combat"
	"github.com/cory-johannsen/raid/internal/game/stats"
)

// Template is the static definition of a playable or enemy character.
//
// Precondition: ID and Name must be non-empty after loading.
type Template struct {
	ID        string      `yaml:"id"`
	Name      string      `yaml:"name"`
	BaseStats stats.Block `yaml:"base_stats"`
	Abilities []string    `yaml:"abilities"`
	// Talents are effect ids applied as permanent effects when the
	// character is built.
	Talents   []string    `yaml:"talents"`
	AI        string      `yaml:"ai"` // HTN domain id; empty uses action-bar order
}

// Validate checks the template's own fields. References to abilities and
// effects are checked by Library.Validate.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("template: id must not be empty")
	}
	if t.Name == "" {
		return fmt.Errorf("template %q: name must not be empty", t.ID)
	}
	for k := range t.BaseStats {
		if !stats.IsKnown(k) {
			return fmt.Errorf("template %q: unknown base stat %q", t.ID, k)
		}
	}
	return nil
}

// DamageSpec is the damage part of an ability.
type DamageSpec struct {
	// Formula is a CEL expression over caster, target and turn.
	Formula      string `yaml:"formula"`
	Type         string `yaml:"type"` // physical | magical | pure
	SkipDodge    bool   `yaml:"skip_dodge"`
	IgnoreArmor  bool   `yaml:"ignore_armor"`
	IgnoreShield bool   `yaml:"ignore_shield"`
	CanCrit      bool   `yaml:"can_crit"`
}

// HealSpec is the healing part of an ability.
type HealSpec struct {
	Formula string `yaml:"formula"`
	CanCrit bool   `yaml:"can_crit"`
}

// AbilityDef is the static definition of an ability. Every hit applies, in
// order, damage, healing and apply_effects to each resolved target; a script
// runs once before the hits.
type AbilityDef struct {
	ID             string        `yaml:"id"`
	Name           string        `yaml:"name"`
	ManaCost       float64       `yaml:"mana_cost"`
	Cooldown       int           `yaml:"cooldown"`
	TargetType     string        `yaml:"target_type"`
	Damage         *DamageSpec   `yaml:"damage"`
	Heal           *HealSpec     `yaml:"heal"`
	Hits           int           `yaml:"hits"`
	HitDelay       time.Duration `yaml:"hit_delay"`
	ApplyEffects   []string      `yaml:"apply_effects"`
	Script         string        `yaml:"script"`
	DoesNotEndTurn bool          `yaml:"does_not_end_turn"`
	Description    string        `yaml:"description"`
}

// Validate checks the definition's structural invariants.
//
// Postcondition: Returns nil iff ID and Name are set, costs are non-negative,
// the target and damage types parse, and the ability does something.
func (d *AbilityDef) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("ability: id must not be empty")
	}
	if d.Name == "" {
		return fmt.Errorf("ability %q: name must not be empty", d.ID)
	}
	if d.ManaCost < 0 || d.Cooldown < 0 || d.Hits < 0 || d.HitDelay < 0 {
		return fmt.Errorf("ability %q: mana_cost, cooldown, hits and hit_delay must be >= 0", d.ID)
	}
	if _, err := combat.ParseTargetType(d.TargetType); err != nil {
		return fmt.Errorf("ability %q: %w", d.ID, err)
	}
	if d.Damage != nil {
		if d.Damage.Formula == "" {
			return fmt.Errorf("ability %q: damage.formula must not be empty", d.ID)
		}
		if _, err := combat.ParseDamageType(d.Damage.Type); err != nil {
			return fmt.Errorf("ability %q: %w", d.ID, err)
		}
	}
	if d.Heal != nil && d.Heal.Formula == "" {
		return fmt.Errorf("ability %q: heal.formula must not be empty", d.ID)
	}
	if d.Damage == nil && d.Heal == nil && len(d.ApplyEffects) == 0 && d.Script == "" {
		return fmt.Errorf("ability %q: needs damage, heal, apply_effects or script", d.ID)
	}
	return nil
}

func (d *AbilityDef) hitCount() int {
	if d.Hits < 1 {
		return 1
	}
	return d.Hits
}

func (d *AbilityDef) declarative() bool {
	return d.Damage != nil || d.Heal != nil || len(d.ApplyEffects) > 0
}
