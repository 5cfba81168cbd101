package combat

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/game/event"
)

// Reason explains why an ability cannot be used. ReasonNone means it can.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonCasterDead
	ReasonOnCooldown
	ReasonDisabled
	ReasonIncapacitated
	ReasonInsufficientMana
	ReasonNoValidTargets
)

var reasonNames = [...]string{
	ReasonNone:             "none",
	ReasonCasterDead:       "dead",
	ReasonOnCooldown:       "on_cooldown",
	ReasonDisabled:         "disabled",
	ReasonIncapacitated:    "incapacitated",
	ReasonInsufficientMana: "insufficient_mana",
	ReasonNoValidTargets:   "no_valid_targets",
}

func (r Reason) String() string {
	if r >= 0 && int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// Check is the answer to "can this ability be used now".
type Check struct {
	OK     bool
	Reason Reason
}

// UseResult reports one Use call. When Check.OK is false nothing was deducted.
type UseResult struct {
	Check   Check
	Targets []*Character
	Outcome Outcome
	// Err is the error returned by the ability's Action, if any. Cost and
	// cooldown are not rolled back when it is set.
	Err error
}

// Scheduler gates ability use on mana, cooldown, disable and incapacitation,
// and advances cooldown and disable timers at turn boundaries.
type Scheduler struct {
	battle *Battle
	logger *zap.Logger
}

// CanUse reports whether c may use a right now. Checks run in the order dead,
// on cooldown, disabled, incapacitated, insufficient mana; the first failure wins.
//
// Precondition: a must not be nil.
func (s *Scheduler) CanUse(c *Character, a *Ability) Check {
	switch {
	case c.dead:
		return Check{Reason: ReasonCasterDead}
	case a.currentCooldown > 0:
		return Check{Reason: ReasonOnCooldown}
	case a.disabled:
		return Check{Reason: ReasonDisabled}
	case c.Capabilities().CantAct:
		return Check{Reason: ReasonIncapacitated}
	case c.currentMana < a.ManaCost:
		return Check{Reason: ReasonInsufficientMana}
	}
	return Check{OK: true}
}

// Use re-validates a, resolves its targets, deducts mana, starts the cooldown
// and runs the ability's Action.
//
// Precondition: a must not be nil.
// Postcondition: on rejection no state changed and abilityRejected was
// published; otherwise Mana() decreased by ManaCost (floored at 0),
// CurrentCooldown() == Cooldown, and abilityUsed was published before Action ran.
func (s *Scheduler) Use(c *Character, a *Ability, requested []*Character) UseResult {
	check := s.CanUse(c, a)
	var targets []*Character
	if check.OK {
		targets = s.resolveTargets(c, a.TargetType, requested)
		if len(targets) == 0 {
			check = Check{Reason: ReasonNoValidTargets}
		}
	}
	if !check.OK {
		s.logger.Info("ability rejected",
			zap.String("caster", c.Name),
			zap.String("ability", a.ID),
			zap.Stringer("reason", check.Reason),
		)
		s.battle.publish(event.Event{
			Type:      event.AbilityRejected,
			SourceID:  c.InstanceID,
			AbilityID: a.ID,
			Reason:    check.Reason.String(),
		})
		return UseResult{Check: check}
	}

	c.currentMana -= a.ManaCost
	if c.currentMana < 0 {
		c.currentMana = 0
	}
	a.currentCooldown = a.Cooldown

	tid := ""
	if len(targets) == 1 {
		tid = targets[0].InstanceID
	}
	s.battle.publish(event.Event{
		Type:      event.AbilityUsed,
		SourceID:  c.InstanceID,
		TargetID:  tid,
		AbilityID: a.ID,
		Amount:    a.ManaCost,
	})

	res := UseResult{Check: check, Targets: targets}
	if a.Action == nil {
		return res
	}
	res.Outcome, res.Err = a.Action(&ActionContext{Battle: s.battle, Caster: c, Ability: a, Targets: targets})
	if res.Err != nil {
		s.logger.Warn("ability action failed",
			zap.String("caster", c.Name),
			zap.String("ability", a.ID),
			zap.Error(res.Err),
		)
	}
	return res
}

// resolveTargets filters requested down to the targets a of type tt may hit.
// Self and the all_* types ignore requested and derive targets from the roster.
// Single-target types keep the first valid requested character.
func (s *Scheduler) resolveTargets(c *Character, tt TargetType, requested []*Character) []*Character {
	b := s.battle
	switch tt {
	case TargetSelf:
		return []*Character{c}
	case TargetAllAllies:
		return b.Allies(c)
	case TargetAllEnemies:
		var out []*Character
		for _, e := range b.Enemies(c) {
			if !e.Capabilities().Untargetable {
				out = append(out, e)
			}
		}
		return out
	}
	for _, t := range requested {
		if t == nil || t.dead || t.battle != b {
			continue
		}
		ally := t.Team == c.Team
		hostileOK := ally || !t.Capabilities().Untargetable
		switch {
		case tt == TargetAlly && ally,
			tt == TargetEnemy && !ally && hostileOK,
			tt == TargetAnyExceptSelf && t != c && hostileOK:
			return []*Character{t}
		}
	}
	return nil
}

// AdvanceCooldowns decrements every cooldown and disable timer on c's
// abilities, floored at 0. A disabled ability is re-enabled exactly when its
// timer reaches 0. Repeated calls within the same turn are no-ops.
func (s *Scheduler) AdvanceCooldowns(c *Character) {
	if c.cooldownsAt == s.battle.turn {
		return
	}
	c.cooldownsAt = s.battle.turn
	for _, a := range c.abilities {
		if a.currentCooldown > 0 {
			a.currentCooldown--
			if a.currentCooldown == 0 {
				s.modified(a, "ready")
			}
		}
		if a.disabled {
			a.disabledDuration--
			if a.disabledDuration <= 0 {
				a.disabledDuration = 0
				a.disabled = false
				s.modified(a, "enabled")
			}
		}
	}
}

// Disable makes a unusable for turns turn boundaries. A shorter disable never
// shortens a longer one already in place.
func (s *Scheduler) Disable(a *Ability, turns int) {
	if turns < 1 {
		s.logger.Warn("ignoring disable with non-positive duration", zap.String("ability", a.ID), zap.Int("turns", turns))
		return
	}
	a.disabled = true
	if turns > a.disabledDuration {
		a.disabledDuration = turns
	}
	s.modified(a, "disabled")
}

// ReduceCooldown shortens a's remaining cooldown by turns, floored at 0.
func (s *Scheduler) ReduceCooldown(a *Ability, turns int) {
	if turns < 1 || a.currentCooldown == 0 {
		return
	}
	a.currentCooldown -= turns
	if a.currentCooldown < 0 {
		a.currentCooldown = 0
	}
	s.modified(a, "cooldown_reduced")
}

// ResetCooldown makes a ready immediately.
func (s *Scheduler) ResetCooldown(a *Ability) {
	if a.currentCooldown == 0 {
		return
	}
	a.currentCooldown = 0
	s.modified(a, "cooldown_reset")
}

func (s *Scheduler) modified(a *Ability, reason string) {
	s.battle.publish(event.Event{
		Type:      event.AbilityModified,
		SourceID:  sourceID(a.owner),
		AbilityID: a.ID,
		Reason:    reason,
	})
}
