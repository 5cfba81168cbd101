// Package stats defines character attribute blocks and the arithmetic that
// folds effect modifiers onto base attributes.
package stats

import (
	"fmt"
	"sort"
)

// Key names one numeric character attribute.
type Key string

const (
	MaxHP          Key = "maxHp"
	MaxMana        Key = "maxMana"
	PhysicalDamage Key = "physicalDamage"
	MagicalDamage  Key = "magicalDamage"
	// Armor and MagicalShield are percentage points: 20 reduces incoming
	// damage of the matching type by 20%.
	Armor         Key = "armor"
	MagicalShield Key = "magicalShield"
	// The chance, multiplier and power keys below are fractions, never
	// pre-multiplied by 100.
	CritChance     Key = "critChance"
	CritMultiplier Key = "critMultiplier"
	DodgeChance    Key = "dodgeChance"
	Lifesteal      Key = "lifesteal"
	HealingPower   Key = "healingPower"
	DamageBonus    Key = "damageBonus"
	ManaRegen      Key = "manaRegen"
)

var known = map[Key]bool{
	MaxHP: true, MaxMana: true, PhysicalDamage: true, MagicalDamage: true,
	Armor: true, MagicalShield: true, CritChance: true, CritMultiplier: true,
	DodgeChance: true, Lifesteal: true, HealingPower: true, DamageBonus: true,
	ManaRegen: true,
}

// IsKnown reports whether k is one of the attribute keys the engine reads.
func IsKnown(k Key) bool { return known[k] }

// Keys returns every known key in lexical order.
func Keys() []Key {
	out := make([]Key, 0, len(known))
	for k := range known {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Defaults returns the value a template gets for a key it does not set.
// Multiplier-style stats default to their identity value.
func Defaults() Block {
	return Block{
		CritMultiplier: 1.5,
		HealingPower:   1,
	}
}

// Block maps attribute keys to values. A missing key reads as zero.
type Block map[Key]float64

// Get returns the value for k, or 0 when absent.
func (b Block) Get(k Key) float64 { return b[k] }

// Clone returns an independent copy of b.
//
// Postcondition: mutating the result never affects b.
func (b Block) Clone() Block {
	out := make(Block, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Operation is how a Modifier combines with the attribute it targets.
type Operation string

const (
	OpAdd      Operation = "add"
	OpMultiply Operation = "multiply"
	OpSet      Operation = "set"
)

// Valid reports whether o is a recognised operation.
func (o Operation) Valid() bool {
	switch o {
	case OpAdd, OpMultiply, OpSet:
		return true
	default:
		return false
	}
}

// Modifier is one contribution from an effect to an attribute.
type Modifier struct {
	Stat  Key       `yaml:"stat"`
	Value float64   `yaml:"value"`
	Op    Operation `yaml:"op"`
}

// String renders the modifier for logs, e.g. "armor add -5".
func (m Modifier) String() string {
	return fmt.Sprintf("%s %s %g", m.Stat, m.Op, m.Value)
}
