// Package combat implements the battle core: characters, the buff/debuff
// engine, damage and heal resolution, and ability scheduling.
package combat

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTarget is carried by a result when the target reference is nil.
	ErrNoTarget = errors.New("combat: no target")
	// ErrInvalidDamageType is carried by a result when the damage type is not recognised.
	ErrInvalidDamageType = errors.New("combat: invalid damage type")
	// ErrNotInBattle is returned when an operation needs a battle the character has not joined.
	ErrNotInBattle = errors.New("combat: character has not joined a battle")
	// ErrEffectReused is returned when an effect instance that already left Pending is added again.
	ErrEffectReused = errors.New("combat: effect instance is not pending")
	// ErrCharacterDead is returned when an effect is added to a dead character.
	ErrCharacterDead = errors.New("combat: character is dead")
	// ErrUnknownAbility is returned when the acting character has no ability with the requested id.
	ErrUnknownAbility = errors.New("combat: unknown ability")
	// ErrBattleOver is returned when a turn operation is requested after the battle ended.
	ErrBattleOver = errors.New("combat: battle is over")
	// ErrNoTurn is returned when an in-turn operation is requested between turns.
	ErrNoTurn = errors.New("combat: no turn in progress")
	// ErrTurnInProgress is returned when BeginTurn is called before the previous turn ended.
	ErrTurnInProgress = errors.New("combat: turn already in progress")
)

// DamageType selects which defensive stat mitigates a hit.
// The zero value (DamageUnknown) is intentionally invalid.
type DamageType int

const (
	DamageUnknown DamageType = iota
	DamagePhysical
	DamageMagical
	DamagePure
)

// String returns "physical", "magical", "pure" or "unknown".
func (d DamageType) String() string {
	switch d {
	case DamagePhysical:
		return "physical"
	case DamageMagical:
		return "magical"
	case DamagePure:
		return "pure"
	default:
		return "unknown"
	}
}

// Valid reports whether d is one of the three real damage types.
func (d DamageType) Valid() bool {
	return d == DamagePhysical || d == DamageMagical || d == DamagePure
}

// ParseDamageType maps a content string to a DamageType.
//
// Postcondition: Returns a valid DamageType or a non-nil error.
func ParseDamageType(s string) (DamageType, error) {
	switch s {
	case "physical":
		return DamagePhysical, nil
	case "magical":
		return DamageMagical, nil
	case "pure":
		return DamagePure, nil
	default:
		return DamageUnknown, fmt.Errorf("%w: %q", ErrInvalidDamageType, s)
	}
}

// TargetType is who an ability may be aimed at.
// The zero value (TargetUnknown) is intentionally invalid.
type TargetType int

const (
	TargetUnknown TargetType = iota
	TargetSelf
	TargetAlly
	TargetEnemy
	TargetAllAllies
	TargetAllEnemies
	TargetAnyExceptSelf
)

var targetTypeNames = map[TargetType]string{
	TargetSelf:          "self",
	TargetAlly:          "ally",
	TargetEnemy:         "enemy",
	TargetAllAllies:     "all_allies",
	TargetAllEnemies:    "all_enemies",
	TargetAnyExceptSelf: "any_except_self",
}

// String returns the content name of t, e.g. "all_enemies".
func (t TargetType) String() string {
	if n, ok := targetTypeNames[t]; ok {
		return n
	}
	return "unknown"
}

// ParseTargetType maps a content string to a TargetType.
//
// Postcondition: Returns a valid TargetType or a non-nil error.
func ParseTargetType(s string) (TargetType, error) {
	for t, n := range targetTypeNames {
		if n == s {
			return t, nil
		}
	}
	return TargetUnknown, fmt.Errorf("combat: unknown target type %q", s)
}

// Rules holds the battle-wide numeric constants.
type Rules struct {
	// DefaultCritMultiplier applies when the source's critMultiplier is <= 1.
	DefaultCritMultiplier float64
	// MaxMitigation caps the fraction of a hit armor or shield may absorb.
	MaxMitigation float64
	// ManaRegenPerTurn is restored at every turn start on top of the manaRegen stat.
	ManaRegenPerTurn float64
}

// DefaultRules returns the rules used when a battle is created without WithRules.
func DefaultRules() Rules {
	return Rules{
		DefaultCritMultiplier: 1.5,
		MaxMitigation:         1,
		ManaRegenPerTurn:      0,
	}
}
