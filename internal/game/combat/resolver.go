package combat

import (
	"math"

	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/game/dice"
	"github.com/cory-johannsen/raid/internal/game/event"
	"github.com/cory-johannsen/raid/internal/game/stats"
)

// DamageOptions adjusts a single ApplyDamage call.
type DamageOptions struct {
	SkipDodge    bool
	IgnoreArmor  bool
	IgnoreShield bool
	NoCrit       bool
	NoLifesteal  bool
	// CritMultiplier overrides the source's critMultiplier when > 1.
	CritMultiplier float64
}

// DamageResult is the committed outcome of one ApplyDamage call. It is the only
// way a caller learns how much damage was actually applied.
type DamageResult struct {
	Damage     float64
	Mitigated  float64
	IsCritical bool
	IsDodged   bool
	// IsBlocked is set when armor or shield absorbed the whole hit.
	IsBlocked bool
	Killed    bool
	Err       error
}

// HealOptions adjusts a single Heal call.
type HealOptions struct {
	// CanCrit lets the heal roll the healer's critChance.
	CanCrit bool
}

// HealResult is the committed outcome of one Heal call.
type HealResult struct {
	HealAmount float64
	IsCritical bool
	Err        error
}

// Resolver computes and commits damage, healing and mana restoration for one battle.
type Resolver struct {
	battle *Battle
	roller *dice.Roller
	rules  Rules
	logger *zap.Logger
}

// ApplyDamage resolves raw damage of type typ from source against target.
//
// Order: untargetable/dead/NaN short-circuit, dodge, source outgoing multipliers,
// armor or shield mitigation, target damage-taken multipliers, critical roll,
// HP commit (floored at 0), death, damageDealt event, lifesteal.
//
// Precondition: none; source may be nil for environmental damage.
// Postcondition: 0 <= target.HP() <= target.MaxHP(). A nil target or invalid
// type yields a result with Err set and no side effects. A NaN raw is logged
// and ignored; a hit that is still infinite after mitigation is lethal.
func (r *Resolver) ApplyDamage(target *Character, raw float64, typ DamageType, source *Character, opts DamageOptions) DamageResult {
	if target == nil {
		r.logger.Warn("damage with no target", zap.String("source", nameOf(source)))
		return DamageResult{Err: ErrNoTarget}
	}
	if !typ.Valid() {
		r.logger.Warn("damage with invalid type", zap.String("target", target.Name), zap.Int("type", int(typ)))
		return DamageResult{Err: ErrInvalidDamageType}
	}
	if math.IsNaN(raw) {
		r.logger.Warn("damage amount is not a number", zap.String("target", target.Name), zap.String("source", nameOf(source)))
		return DamageResult{}
	}
	if target.dead || target.Capabilities().Untargetable || raw <= 0 {
		return DamageResult{}
	}

	if !opts.SkipDodge && r.roller.Chance("dodge", target.Stat(stats.DodgeChance)) {
		r.battle.publish(event.Event{
			Type:       event.DamageDealt,
			SourceID:   sourceID(source),
			TargetID:   target.InstanceID,
			DamageType: typ.String(),
			IsDodged:   true,
		})
		return DamageResult{IsDodged: true}
	}

	amount := raw
	if source != nil {
		amount *= 1 + source.Stat(stats.DamageBonus) + source.Capabilities().DamageDealt
		if amount < 0 {
			amount = 0
		}
	}

	reduction := 0.0
	switch {
	case typ == DamagePhysical && !opts.IgnoreArmor:
		reduction = r.mitigation(target.Stat(stats.Armor))
	case typ == DamageMagical && !opts.IgnoreShield:
		reduction = r.mitigation(target.Stat(stats.MagicalShield))
	}
	absorbed := 0.0
	if reduction > 0 {
		absorbed = amount * reduction
		amount -= absorbed
	}

	caps := target.Capabilities()
	amount *= 1 + caps.DamageTaken
	amount *= 1 - clamp(caps.DamageReduction, 0, 1)

	crit := false
	if source != nil && !opts.NoCrit && amount > 0 && r.roller.Chance("crit", source.Stat(stats.CritChance)) {
		amount *= r.critMultiplier(source, opts.CritMultiplier)
		crit = true
	}

	damage := math.Round(amount)
	if !finite(damage) || !finite(absorbed) {
		if !math.IsInf(raw, 1) {
			r.logger.Warn("damage is not finite", zap.String("target", target.Name), zap.String("source", nameOf(source)))
			return DamageResult{}
		}
		damage, absorbed = target.currentHP, 0
	}
	target.currentHP = math.Max(0, target.currentHP-damage)

	res := DamageResult{
		Damage:     damage,
		Mitigated:  absorbed,
		IsCritical: crit,
		IsBlocked:  absorbed > 0 && damage == 0,
	}

	if target.currentHP == 0 {
		res.Killed = r.battle.kill(target, source)
	}

	r.battle.publish(event.Event{
		Type:       event.DamageDealt,
		SourceID:   sourceID(source),
		TargetID:   target.InstanceID,
		Amount:     damage,
		DamageType: typ.String(),
		IsCritical: crit,
		IsBlocked:  res.IsBlocked,
	})

	if damage > 0 && source != nil && !source.dead && !opts.NoLifesteal {
		if ls := source.Stat(stats.Lifesteal); ls > 0 {
			r.Heal(source, damage*ls, source, HealOptions{})
		}
	}
	return res
}

// Heal restores HP on target. The healer's healingPower multiplies raw before
// clamping to missing HP; the healer is source, or target when source is nil.
//
// Postcondition: 0 <= target.HP() <= target.MaxHP().
func (r *Resolver) Heal(target *Character, raw float64, source *Character, opts HealOptions) HealResult {
	if target == nil {
		r.logger.Warn("heal with no target", zap.String("source", nameOf(source)))
		return HealResult{Err: ErrNoTarget}
	}
	if math.IsNaN(raw) {
		r.logger.Warn("heal amount is not a number", zap.String("target", target.Name), zap.String("source", nameOf(source)))
		return HealResult{}
	}
	if target.dead || raw <= 0 {
		return HealResult{}
	}
	healer := source
	if healer == nil {
		healer = target
	}

	amount := raw * healer.Stat(stats.HealingPower)
	crit := false
	if opts.CanCrit && amount > 0 && r.roller.Chance("heal crit", healer.Stat(stats.CritChance)) {
		amount *= r.critMultiplier(healer, 0)
		crit = true
	}

	missing := target.MaxHP() - target.currentHP
	heal := clamp(math.Round(amount), 0, missing)
	if math.IsNaN(heal) {
		r.logger.Warn("heal is not a number", zap.String("target", target.Name), zap.String("healer", healer.Name))
		return HealResult{}
	}
	target.currentHP += heal

	r.battle.publish(event.Event{
		Type:       event.HealingDone,
		SourceID:   sourceID(source),
		TargetID:   target.InstanceID,
		Amount:     heal,
		IsCritical: crit,
	})
	return HealResult{HealAmount: heal, IsCritical: crit}
}

// RestoreMana adds mana to target unless an active effect forbids it.
//
// Postcondition: Returns the amount restored; 0 <= target.Mana() <= target.MaxMana().
func (r *Resolver) RestoreMana(target *Character, amount float64, source *Character) float64 {
	if target == nil || target.dead || !(amount > 0) {
		return 0
	}
	if target.Capabilities().CantRestoreMana {
		r.logger.Debug("mana restore blocked", zap.String("character", target.Name))
		return 0
	}
	gain := clamp(amount, 0, target.MaxMana()-target.currentMana)
	if gain == 0 {
		return 0
	}
	target.currentMana += gain
	r.battle.publish(event.Event{
		Type:     event.ManaRestored,
		SourceID: sourceID(source),
		TargetID: target.InstanceID,
		Amount:   gain,
	})
	return gain
}

// mitigation converts armor or shield percentage points into the absorbed
// fraction of a hit, capped by Rules.MaxMitigation. Negative values mitigate nothing.
func (r *Resolver) mitigation(points float64) float64 {
	return clamp(points/100, 0, clamp(r.rules.MaxMitigation, 0, 1))
}

func (r *Resolver) critMultiplier(c *Character, override float64) float64 {
	if override > 1 {
		return override
	}
	if m := c.Stat(stats.CritMultiplier); m > 1 {
		return m
	}
	return r.rules.DefaultCritMultiplier
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nameOf(c *Character) string {
	if c == nil {
		return ""
	}
	return c.Name
}
