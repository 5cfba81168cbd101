package combat

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/game/effect"
	"github.com/cory-johannsen/raid/internal/game/event"
)

func zapEffect(e *Effect) zap.Field {
	return zap.Dict("effect",
		zap.String("id", e.ID),
		zap.String("instance", e.InstanceID),
		zap.Bool("debuff", e.IsDebuff),
	)
}

func zapErr(err error) zap.Field { return zap.Error(err) }

// addEffect moves e from Pending to Active on c.
//
// Precondition: c has joined b.
// Postcondition: on success e is the last element of c.Effects(), c's stats
// include e's modifiers, e's listeners are subscribed, the applied event has
// been published and OnApply has run once.
func (b *Battle) addEffect(c *Character, e *Effect) error {
	if e == nil {
		b.logger.Warn("ignoring nil effect", zap.String("character", c.Name))
		return nil
	}
	if e.state != EffectPending {
		return ErrEffectReused
	}
	if c.dead {
		return ErrCharacterDead
	}
	if e.Duration != effect.Permanent && e.Duration < 1 {
		b.logger.Warn("effect with non-positive duration applied; treating as 1 turn", zapEffect(e))
		e.Duration = 1
	}

	e.state = EffectActive
	e.owner = c
	c.effects = append(c.effects, e)
	c.recompute(b.logger)

	for _, l := range e.Listeners {
		l := l
		id := b.bus.Subscribe(l.Type, func(ev event.Event) {
			if e.state == EffectActive {
				l.Handle(c, e, ev)
			}
		})
		e.subs = append(e.subs, id)
	}

	typ := event.BuffApplied
	if e.IsDebuff {
		typ = event.DebuffApplied
	}
	b.publish(event.Event{Type: typ, TargetID: c.InstanceID, SourceID: sourceID(e.Source), EffectID: e.ID})

	if e.OnApply != nil {
		e.OnApply(c, e)
	}
	return nil
}

// removeEffects moves every still-Active effect in list to Removed, runs each
// OnRemove exactly once, and recomputes c's stats once at the end.
//
// Postcondition: Returns the number of effects that actually transitioned;
// effects already Removed are skipped.
func (b *Battle) removeEffects(c *Character, list []*Effect, reason RemoveReason) int {
	removed := 0
	for _, e := range list {
		if b.deactivate(c, e, reason) {
			removed++
		}
	}
	if removed > 0 {
		c.recompute(b.logger)
	}
	return removed
}

// deactivate performs the Active -> Removed transition without recomputing stats.
func (b *Battle) deactivate(c *Character, e *Effect, reason RemoveReason) bool {
	if e.state != EffectActive || e.owner != c {
		return false
	}
	e.state = EffectRemoved
	e.reason = reason
	for _, id := range e.subs {
		b.bus.Unsubscribe(id)
	}
	e.subs = nil
	for i, x := range c.effects {
		if x == e {
			c.effects = append(c.effects[:i:i], c.effects[i+1:]...)
			break
		}
	}

	if e.OnRemove != nil {
		e.OnRemove(c, e)
	}

	typ := event.BuffRemoved
	if e.IsDebuff {
		typ = event.DebuffRemoved
	}
	b.publish(event.Event{Type: typ, TargetID: c.InstanceID, SourceID: sourceID(e.Source), EffectID: e.ID, Reason: string(reason)})
	return true
}

// TurnStart runs every active effect's turn-start hook on c. It is the only
// place turn-start periodic damage and healing happen, and it runs at most
// once per character per turn.
func (b *Battle) TurnStart(c *Character) {
	if c.startTickedAt == b.turn {
		return
	}
	c.startTickedAt = b.turn
	b.runPeriodic(c, func(e *Effect) Hook { return e.OnTurnStart })
}

// TurnEnd runs every active effect's turn-end hook on c, at most once per
// character per turn. Durations are not touched; see AdvanceDurations.
func (b *Battle) TurnEnd(c *Character) {
	if c.endTickedAt == b.turn {
		return
	}
	c.endTickedAt = b.turn
	b.runPeriodic(c, func(e *Effect) Hook { return e.OnTurnEnd })
}

func (b *Battle) runPeriodic(c *Character, pick func(*Effect) Hook) {
	for _, e := range c.Effects() {
		if c.dead {
			return
		}
		if e.state != EffectActive {
			continue
		}
		if h := pick(e); h != nil {
			h(c, e)
		}
	}
}

// AdvanceDurations decrements every active timed effect on c and removes the
// ones that reach zero, running their OnRemove once. Stats are recomputed once
// for the whole pass. Repeated calls within the same turn are no-ops.
func (b *Battle) AdvanceDurations(c *Character) {
	if c.advancedAt == b.turn {
		return
	}
	c.advancedAt = b.turn

	var expired []*Effect
	for _, e := range c.Effects() {
		if e.state != EffectActive || e.Permanent() {
			continue
		}
		e.Duration--
		if e.Duration <= 0 {
			expired = append(expired, e)
		}
	}
	b.removeEffects(c, expired, ReasonExpired)
}

func sourceID(c *Character) string {
	if c == nil {
		return ""
	}
	return c.InstanceID
}
