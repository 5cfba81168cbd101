package combat

import (
	"github.com/google/uuid"

	"github.com/cory-johannsen/raid/internal/game/effect"
	"github.com/cory-johannsen/raid/internal/game/event"
	"github.com/cory-johannsen/raid/internal/game/stats"
)

// EffectState is the lifecycle position of one Effect instance.
// Transitions only move forward: Pending -> Active -> Removed.
type EffectState int

const (
	EffectPending EffectState = iota
	EffectActive
	EffectRemoved
)

// String returns "pending", "active" or "removed".
func (s EffectState) String() string {
	switch s {
	case EffectPending:
		return "pending"
	case EffectActive:
		return "active"
	default:
		return "removed"
	}
}

// RemoveReason records why an effect left the Active state.
type RemoveReason string

const (
	ReasonExpired  RemoveReason = "expired"
	ReasonRemoved  RemoveReason = "removed"
	ReasonCleansed RemoveReason = "cleansed"
	ReasonDeath    RemoveReason = "death"
)

// Hook is a side-effecting callback bound to an effect's lifecycle.
type Hook func(owner *Character, e *Effect)

// Listener is a bus subscription that lives exactly as long as its effect is Active.
type Listener struct {
	Type   event.Type
	Handle func(owner *Character, e *Effect, ev event.Event)
}

// Effect is one buff or debuff instance attached to a Character.
type Effect struct {
	ID         string
	InstanceID string
	Name       string
	Icon       string
	IsDebuff   bool
	// Duration is the number of turn boundaries remaining, or effect.Permanent.
	Duration      int
	StatModifiers []stats.Modifier
	Capabilities  effect.Capabilities
	// Source is the character that applied the effect; may be nil.
	Source *Character

	OnApply     Hook
	OnRemove    Hook
	OnTurnStart Hook
	OnTurnEnd   Hook
	Listeners   []Listener

	state  EffectState
	owner  *Character
	reason RemoveReason
	subs   []event.Subscription
}

// NewEffect creates a Pending effect with a fresh instance id.
//
// Precondition: duration >= 1 or duration == effect.Permanent.
func NewEffect(id, name string, duration int) *Effect {
	return &Effect{
		ID:         id,
		InstanceID: uuid.New().String(),
		Name:       name,
		Duration:   duration,
	}
}

// FromDef creates a Pending effect from content. Periodic ticks are bound to
// the owner's Resolver; Lua hooks are bound to the owner's battle scripts
// when the battle has any.
//
// Precondition: def must not be nil.
func FromDef(def *effect.Def, source *Character) *Effect {
	e := NewEffect(def.ID, def.Name, def.Duration)
	e.Icon = def.Icon
	e.IsDebuff = def.IsDebuff
	e.StatModifiers = append([]stats.Modifier(nil), def.StatModifiers...)
	e.Capabilities = def.Capabilities
	e.Source = source

	if p := def.Periodic; p != nil {
		tick := periodicHook(*p)
		if p.Phase == effect.PhaseTurnStart {
			e.OnTurnStart = tick
		} else {
			e.OnTurnEnd = tick
		}
	}
	if def.LuaOnApply != "" {
		e.OnApply = chain(e.OnApply, scriptHook(def.LuaOnApply))
	}
	if def.LuaOnRemove != "" {
		e.OnRemove = chain(e.OnRemove, scriptHook(def.LuaOnRemove))
	}
	if def.LuaOnTick != "" {
		e.OnTurnEnd = chain(e.OnTurnEnd, scriptHook(def.LuaOnTick))
	}
	return e
}

func periodicHook(p effect.Periodic) Hook {
	return func(owner *Character, e *Effect) {
		switch p.Kind {
		case effect.PeriodicDamage:
			typ, err := ParseDamageType(p.DamageType)
			if err != nil {
				owner.battle.logger.Warn("periodic damage with bad type; using pure",
					zapEffect(e), zapErr(err))
				typ = DamagePure
			}
			owner.ApplyDamage(p.Amount, typ, e.Source, DamageOptions{SkipDodge: true, NoCrit: true, NoLifesteal: true})
		case effect.PeriodicHeal:
			owner.Heal(p.Amount, e.Source, HealOptions{})
		case effect.PeriodicMana:
			owner.RestoreMana(p.Amount, e.Source)
		}
	}
}

func scriptHook(name string) Hook {
	return func(owner *Character, e *Effect) {
		if owner.battle == nil || owner.battle.scripts == nil {
			return
		}
		owner.battle.scripts.CallEffectHook(name, owner, e)
	}
}

func chain(first, second Hook) Hook {
	if first == nil {
		return second
	}
	return func(owner *Character, e *Effect) {
		first(owner, e)
		second(owner, e)
	}
}

// State returns the lifecycle state.
func (e *Effect) State() EffectState { return e.state }

// Owner returns the character the effect is (or was) attached to.
func (e *Effect) Owner() *Character { return e.owner }

// RemovedBecause returns why the effect left Active, or "" while it has not.
func (e *Effect) RemovedBecause() RemoveReason { return e.reason }

// Permanent reports whether the effect is exempt from duration countdown.
func (e *Effect) Permanent() bool { return e.Duration == effect.Permanent }

// Refresh resets the remaining duration of an active, timed effect.
// Content uses it for effects that refresh instead of stacking.
//
// Postcondition: Returns false and changes nothing unless e is Active and not permanent.
func (e *Effect) Refresh(turns int) bool {
	if e.state != EffectActive || e.Permanent() || turns < 1 {
		return false
	}
	e.Duration = turns
	return true
}
