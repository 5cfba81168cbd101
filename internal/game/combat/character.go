package combat

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/game/effect"
	"github.com/cory-johannsen/raid/internal/game/stats"
)

// Character is one battle copy of a character template.
//
// Invariant: stats == stats.Compute(baseStats, modifiers of active effects in
// insertion order); 0 <= currentHP <= maxHp; 0 <= currentMana <= maxMana.
// A Character is not safe for concurrent use; its battle serialises access.
type Character struct {
	// ID is the template key shared by every copy of the same template.
	ID string
	// InstanceID distinguishes copies of the same template within a battle.
	InstanceID string
	Name       string
	Team       string

	baseStats   stats.Block
	stats       stats.Block
	currentHP   float64
	currentMana float64
	effects     []*Effect
	abilities   []*Ability
	dead        bool

	battle *Battle

	// turn-boundary guards: the battle turn each step last ran for this character
	startTickedAt int
	endTickedAt   int
	advancedAt    int
	cooldownsAt   int
}

// NewCharacter creates a living character at full HP and mana.
// Keys missing from base take their value from stats.Defaults.
//
// Precondition: id must be non-empty.
// Postcondition: InstanceID is a fresh UUID; CurrentHP() == MaxHP().
func NewCharacter(id, name, team string, base stats.Block) *Character {
	b := stats.Defaults()
	for k, v := range base {
		b[k] = v
	}
	c := &Character{
		ID:         id,
		InstanceID: uuid.New().String(),
		Name:       name,
		Team:       team,
		baseStats:  b,

		startTickedAt: -1,
		endTickedAt:   -1,
		advancedAt:    -1,
		cooldownsAt:   -1,
	}
	c.stats = stats.Compute(b, nil, nil)
	c.currentHP = c.stats.Get(stats.MaxHP)
	c.currentMana = c.stats.Get(stats.MaxMana)
	return c
}

// Battle returns the battle this character joined, or nil.
func (c *Character) Battle() *Battle { return c.battle }

// Stat returns the current effective value of k.
func (c *Character) Stat(k stats.Key) float64 { return c.stats.Get(k) }

// Stats returns a copy of the effective attribute block.
func (c *Character) Stats() stats.Block { return c.stats.Clone() }

// BaseStats returns a copy of the unmodified attribute block.
func (c *Character) BaseStats() stats.Block { return c.baseStats.Clone() }

func (c *Character) HP() float64 { return c.currentHP }
func (c *Character) MaxHP() float64 { return c.stats.Get(stats.MaxHP) }
func (c *Character) Mana() float64 { return c.currentMana }
func (c *Character) MaxMana() float64 { return c.stats.Get(stats.MaxMana) }

// IsDead reports whether the character has reached 0 HP. Death is terminal.
func (c *Character) IsDead() bool { return c.dead }

// Refill sets a living character's HP and mana to their maxima without
// publishing events. Builders call it once talents have changed the maxima.
func (c *Character) Refill() {
	if c.dead {
		return
	}
	c.currentHP = c.MaxHP()
	c.currentMana = c.MaxMana()
}

// Effects returns the active effects in the order they were applied.
func (c *Character) Effects() []*Effect {
	out := make([]*Effect, len(c.effects))
	copy(out, c.effects)
	return out
}

// Buffs returns the active beneficial effects in application order.
func (c *Character) Buffs() []*Effect { return c.filter(false) }

// Debuffs returns the active harmful effects in application order.
func (c *Character) Debuffs() []*Effect { return c.filter(true) }

func (c *Character) filter(debuff bool) []*Effect {
	var out []*Effect
	for _, e := range c.effects {
		if e.IsDebuff == debuff {
			out = append(out, e)
		}
	}
	return out
}

// FindEffect returns the first active effect with the given content id, or nil.
// Content that wants a non-stacking effect checks this before adding.
func (c *Character) FindEffect(id string) *Effect {
	for _, e := range c.effects {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Capabilities returns the composition of every active effect's capability flags.
func (c *Character) Capabilities() effect.Capabilities {
	var caps effect.Capabilities
	for _, e := range c.effects {
		caps = caps.Merge(e.Capabilities)
	}
	return caps
}

// CanAct reports whether the character is alive and not incapacitated.
func (c *Character) CanAct() bool {
	return !c.dead && !c.Capabilities().CantAct
}

// AddAbility appends a to the action bar.
//
// Precondition: a must not be nil.
func (c *Character) AddAbility(a *Ability) {
	a.owner = c
	c.abilities = append(c.abilities, a)
}

// Abilities returns the abilities in action-bar order.
func (c *Character) Abilities() []*Ability {
	out := make([]*Ability, len(c.abilities))
	copy(out, c.abilities)
	return out
}

// Ability returns the ability with the given id, or nil.
func (c *Character) Ability(id string) *Ability {
	for _, a := range c.abilities {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// ApplyDamage resolves a hit on c through its battle's Resolver.
func (c *Character) ApplyDamage(amount float64, typ DamageType, source *Character, opts DamageOptions) DamageResult {
	if c.battle == nil {
		return DamageResult{Err: ErrNotInBattle}
	}
	return c.battle.resolver.ApplyDamage(c, amount, typ, source, opts)
}

// Heal resolves a heal on c through its battle's Resolver.
func (c *Character) Heal(amount float64, source *Character, opts HealOptions) HealResult {
	if c.battle == nil {
		return HealResult{Err: ErrNotInBattle}
	}
	return c.battle.resolver.Heal(c, amount, source, opts)
}

// RestoreMana restores mana on c through its battle's Resolver and returns
// the amount actually restored.
func (c *Character) RestoreMana(amount float64, source *Character) float64 {
	if c.battle == nil {
		return 0
	}
	return c.battle.resolver.RestoreMana(c, amount, source)
}

// AddEffect activates e on c, filing it under buffs or debuffs by e.IsDebuff.
func (c *Character) AddEffect(e *Effect) error {
	if c.battle == nil {
		return ErrNotInBattle
	}
	return c.battle.addEffect(c, e)
}

// AddBuff activates e on c as a buff.
func (c *Character) AddBuff(e *Effect) error {
	if e != nil {
		e.IsDebuff = false
	}
	return c.AddEffect(e)
}

// AddDebuff activates e on c as a debuff.
func (c *Character) AddDebuff(e *Effect) error {
	if e != nil {
		e.IsDebuff = true
	}
	return c.AddEffect(e)
}

// RemoveDebuff removes every active debuff with content id and returns how
// many were removed. Each one runs its normal removal path.
func (c *Character) RemoveDebuff(id string) int { return c.removeByID(id, true) }

// RemoveBuff removes every active buff with content id and returns how many
// were removed.
func (c *Character) RemoveBuff(id string) int { return c.removeByID(id, false) }

func (c *Character) removeByID(id string, debuff bool) int {
	if c.battle == nil {
		return 0
	}
	var matched []*Effect
	for _, e := range c.effects {
		if e.ID == id && e.IsDebuff == debuff {
			matched = append(matched, e)
		}
	}
	return c.battle.removeEffects(c, matched, ReasonRemoved)
}

// RemoveEffect removes the single effect instance with the given instance id.
// Removing an instance that is no longer active is a no-op.
func (c *Character) RemoveEffect(instanceID string) bool {
	if c.battle == nil {
		return false
	}
	for _, e := range c.effects {
		if e.InstanceID == instanceID {
			return c.battle.removeEffects(c, []*Effect{e}, ReasonRemoved) == 1
		}
	}
	return false
}

// Cleanse removes every non-permanent debuff and returns how many were removed.
func (c *Character) Cleanse() int {
	if c.battle == nil {
		return 0
	}
	var matched []*Effect
	for _, e := range c.effects {
		if e.IsDebuff && !e.Permanent() {
			matched = append(matched, e)
		}
	}
	return c.battle.removeEffects(c, matched, ReasonCleansed)
}

// recompute rebuilds stats from baseStats and the active effects, then
// clamps current HP and mana into their (possibly reduced) maxima.
func (c *Character) recompute(logger *zap.Logger) {
	var mods []stats.Modifier
	for _, e := range c.effects {
		mods = append(mods, e.StatModifiers...)
	}
	c.stats = stats.Compute(c.baseStats, mods, logger.With(zap.String("character", c.Name)))
	if c.currentHP > c.MaxHP() {
		c.currentHP = c.MaxHP()
	}
	if c.currentMana > c.MaxMana() {
		c.currentMana = c.MaxMana()
	}
}
