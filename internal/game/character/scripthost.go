package character

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/game/combat"
	"github.com/cory-johannsen/raid/internal/game/effect"
	"github.com/cory-johannsen/raid/internal/scripting"
)

// ErrNoHook is returned when a scripted ability names a function no loaded
// script defines.
var ErrNoHook = errors.New("character: script function not defined")

// ScriptHost runs content scripts for one battle through a scripting.Manager
// and routes the engine.* callbacks back into that battle.
//
// Ability scripts are called as fn(caster_id, target_ids, ability_id) and may
// return a table with does_not_end_turn = true. Effect hooks are called as
// fn(owner_id, effect) where effect carries id, instance_id, name, duration,
// is_debuff and source.
type ScriptHost struct {
	battle  *combat.Battle
	mgr     *scripting.Manager
	effects *effect.Registry
	scope   string
	logger  *zap.Logger
}

// NewScriptHost creates a host and installs its callbacks on mgr. Scripts are
// looked up in scripting.GlobalScope.
//
// Precondition: b, mgr and effects must not be nil; mgr must serve only b.
func NewScriptHost(b *combat.Battle, mgr *scripting.Manager, effects *effect.Registry, logger *zap.Logger) *ScriptHost {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &ScriptHost{battle: b, mgr: mgr, effects: effects, scope: scripting.GlobalScope, logger: logger}
	h.install()
	return h
}

// CallAbility implements combat.ScriptHost.
func (h *ScriptHost) CallAbility(name string, ctx *combat.ActionContext) (combat.Outcome, error) {
	if !h.mgr.HasHook(h.scope, name) {
		return combat.Outcome{}, fmt.Errorf("%w: %q", ErrNoHook, name)
	}
	ret, err := h.mgr.CallHookArgs(h.scope, name, func(L *lua.LState) []lua.LValue {
		targets := L.NewTable()
		for _, t := range ctx.Targets {
			targets.Append(lua.LString(t.InstanceID))
		}
		return []lua.LValue{lua.LString(ctx.Caster.InstanceID), targets, lua.LString(ctx.Ability.ID)}
	})
	if err != nil {
		return combat.Outcome{}, err
	}
	var out combat.Outcome
	if t, ok := ret.(*lua.LTable); ok {
		out.DoesNotEndTurn = lua.LVAsBool(t.RawGetString("does_not_end_turn"))
	}
	return out, nil
}

// CallEffectHook implements combat.ScriptHost.
func (h *ScriptHost) CallEffectHook(name string, owner *combat.Character, e *combat.Effect) {
	source := ""
	if e.Source != nil {
		source = e.Source.InstanceID
	}
	_, err := h.mgr.CallHookArgs(h.scope, name, func(L *lua.LState) []lua.LValue {
		t := L.NewTable()
		L.SetField(t, "id", lua.LString(e.ID))
		L.SetField(t, "instance_id", lua.LString(e.InstanceID))
		L.SetField(t, "name", lua.LString(e.Name))
		L.SetField(t, "duration", lua.LNumber(e.Duration))
		L.SetField(t, "is_debuff", lua.LBool(e.IsDebuff))
		L.SetField(t, "source", lua.LString(source))
		return []lua.LValue{lua.LString(owner.InstanceID), t}
	})
	if err != nil {
		h.logger.Warn("effect hook failed", zap.String("hook", name), zap.String("effect", e.ID), zap.Error(err))
	}
}

func (h *ScriptHost) install() {
	b := h.battle
	m := h.mgr

	m.GetCharacter = func(id string) *scripting.CharacterInfo {
		c := b.Character(id)
		if c == nil {
			return nil
		}
		info := &scripting.CharacterInfo{
			ID:         c.ID,
			InstanceID: c.InstanceID,
			Name:       c.Name,
			Team:       c.Team,
			HP:         c.HP(),
			MaxHP:      c.MaxHP(),
			Mana:       c.Mana(),
			MaxMana:    c.MaxMana(),
			Dead:       c.IsDead(),
			Stats:      StatVars(c),
		}
		for _, e := range c.Effects() {
			info.Effects = append(info.Effects, e.ID)
		}
		return info
	}
	m.ListAllies = func(id string) []string { return h.ids(id, b.Allies) }
	m.ListEnemies = func(id string) []string { return h.ids(id, b.Enemies) }

	m.ApplyDamage = func(req scripting.DamageRequest) (scripting.DamageOutcome, error) {
		target := b.Character(req.TargetID)
		if target == nil {
			return scripting.DamageOutcome{}, fmt.Errorf("%w: %q", combat.ErrNoTarget, req.TargetID)
		}
		typ, err := combat.ParseDamageType(req.DamageType)
		if err != nil {
			return scripting.DamageOutcome{}, err
		}
		res := target.ApplyDamage(req.Amount, typ, b.Character(req.SourceID), combat.DamageOptions{
			SkipDodge: req.SkipDodge,
			NoCrit:    req.NoCrit,
		})
		return scripting.DamageOutcome{
			Damage:   res.Damage,
			Critical: res.IsCritical,
			Dodged:   res.IsDodged,
			Blocked:  res.IsBlocked,
			Killed:   res.Killed,
		}, res.Err
	}
	m.Heal = func(target string, amount float64, source string) float64 {
		c := b.Character(target)
		if c == nil {
			return 0
		}
		return c.Heal(amount, b.Character(source), combat.HealOptions{}).HealAmount
	}
	m.RestoreMana = func(target string, amount float64, source string) float64 {
		c := b.Character(target)
		if c == nil {
			return 0
		}
		return c.RestoreMana(amount, b.Character(source))
	}
	m.ApplyEffect = func(target, effectID, source string) (string, error) {
		c := b.Character(target)
		if c == nil {
			return "", fmt.Errorf("%w: %q", combat.ErrNoTarget, target)
		}
		def, ok := h.effects.Get(effectID)
		if !ok {
			return "", fmt.Errorf("unknown effect %q", effectID)
		}
		e := combat.FromDef(def, b.Character(source))
		if err := c.AddEffect(e); err != nil {
			return "", err
		}
		return e.InstanceID, nil
	}
	m.RemoveEffect = func(target, effectID string) int {
		c := b.Character(target)
		if c == nil {
			return 0
		}
		return c.RemoveBuff(effectID) + c.RemoveDebuff(effectID)
	}
	m.DisableAbility = func(target, abilityID string, turns int) error {
		c := b.Character(target)
		if c == nil {
			return fmt.Errorf("%w: %q", combat.ErrNoTarget, target)
		}
		a := c.Ability(abilityID)
		if a == nil {
			return fmt.Errorf("%w: %q", combat.ErrUnknownAbility, abilityID)
		}
		b.Scheduler().Disable(a, turns)
		return nil
	}
}

func (h *ScriptHost) ids(id string, list func(*combat.Character) []*combat.Character) []string {
	c := h.battle.Character(id)
	if c == nil {
		return nil
	}
	var out []string
	for _, x := range list(c) {
		out = append(out, x.InstanceID)
	}
	return out
}
