package scripting

import (
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules registers the engine.* Lua tables into L:
//
//	engine.log.{debug,info,warn,error}(msg)
//	engine.dice.roll(expr) -> {total, dice, modifier}
//	engine.character.get(id) -> table | nil
//	engine.character.allies(id), engine.character.enemies(id) -> {ids}
//	engine.combat.damage(target, amount, type, source [, opts]) -> {damage, critical, dodged, blocked, killed}
//	engine.combat.heal(target, amount [, source]) -> healed
//	engine.combat.restore_mana(target, amount [, source]) -> restored
//	engine.combat.apply_effect(target, effect_id [, source]) -> instance id | nil
//	engine.combat.remove_effect(target, effect_id) -> removed count
//	engine.combat.disable_ability(target, ability_id, turns) -> bool
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetField(engine, "log", m.logModule(L))
	L.SetField(engine, "dice", m.diceModule(L))
	L.SetField(engine, "character", m.characterModule(L))
	L.SetField(engine, "combat", m.combatModule(L))
	L.SetGlobal("engine", engine)
}

func (m *Manager) logModule(L *lua.LState) *lua.LTable {
	levels := map[string]func(string, ...zap.Field){
		"debug": m.logger.Debug,
		"info":  m.logger.Info,
		"warn":  m.logger.Warn,
		"error": m.logger.Error,
	}
	mod := L.NewTable()
	for name, fn := range levels {
		fn := fn
		L.SetField(mod, name, L.NewFunction(func(L *lua.LState) int {
			fn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	return mod
}

func (m *Manager) diceModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "roll", L.NewFunction(func(L *lua.LState) int {
		res, err := m.roller.Roll(L.CheckString(1))
		if err != nil {
			L.RaiseError("engine.dice.roll: %v", err)
			return 0
		}
		t := L.NewTable()
		dice := L.NewTable()
		for _, d := range res.Kept {
			dice.Append(lua.LNumber(d))
		}
		L.SetField(t, "total", lua.LNumber(res.Total()))
		L.SetField(t, "dice", dice)
		L.SetField(t, "modifier", lua.LNumber(res.Modifier))
		L.Push(t)
		return 1
	}))
	return mod
}

func (m *Manager) characterModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "get", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		if m.GetCharacter == nil {
			L.Push(lua.LNil)
			return 1
		}
		info := m.GetCharacter(id)
		if info == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(characterToTable(L, info))
		return 1
	}))
	L.SetField(mod, "allies", L.NewFunction(func(L *lua.LState) int {
		L.Push(idList(L, m.ListAllies, L.CheckString(1)))
		return 1
	}))
	L.SetField(mod, "enemies", L.NewFunction(func(L *lua.LState) int {
		L.Push(idList(L, m.ListEnemies, L.CheckString(1)))
		return 1
	}))
	return mod
}

func idList(L *lua.LState, fn func(string) []string, id string) *lua.LTable {
	t := L.NewTable()
	if fn == nil {
		return t
	}
	for _, x := range fn(id) {
		t.Append(lua.LString(x))
	}
	return t
}

func characterToTable(L *lua.LState, c *CharacterInfo) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "id", lua.LString(c.InstanceID))
	L.SetField(t, "template", lua.LString(c.ID))
	L.SetField(t, "name", lua.LString(c.Name))
	L.SetField(t, "team", lua.LString(c.Team))
	L.SetField(t, "hp", lua.LNumber(c.HP))
	L.SetField(t, "max_hp", lua.LNumber(c.MaxHP))
	L.SetField(t, "mana", lua.LNumber(c.Mana))
	L.SetField(t, "max_mana", lua.LNumber(c.MaxMana))
	L.SetField(t, "dead", lua.LBool(c.Dead))

	st := L.NewTable()
	keys := make([]string, 0, len(c.Stats))
	for k := range c.Stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		L.SetField(st, k, lua.LNumber(c.Stats[k]))
	}
	L.SetField(t, "stats", st)

	effects := L.NewTable()
	for _, e := range c.Effects {
		effects.Append(lua.LString(e))
	}
	L.SetField(t, "effects", effects)
	return t
}

func (m *Manager) combatModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "damage", L.NewFunction(func(L *lua.LState) int {
		req := DamageRequest{
			TargetID:   L.CheckString(1),
			Amount:     float64(L.CheckNumber(2)),
			DamageType: L.OptString(3, "physical"),
			SourceID:   L.OptString(4, ""),
		}
		if opts := L.OptTable(5, nil); opts != nil {
			req.SkipDodge = lua.LVAsBool(opts.RawGetString("skip_dodge"))
			req.NoCrit = lua.LVAsBool(opts.RawGetString("no_crit"))
		}
		if m.ApplyDamage == nil {
			L.Push(lua.LNil)
			return 1
		}
		out, err := m.ApplyDamage(req)
		if err != nil {
			m.logger.Warn("engine.combat.damage failed", zap.String("target", req.TargetID), zap.Error(err))
			L.Push(lua.LNil)
			return 1
		}
		t := L.NewTable()
		L.SetField(t, "damage", lua.LNumber(out.Damage))
		L.SetField(t, "critical", lua.LBool(out.Critical))
		L.SetField(t, "dodged", lua.LBool(out.Dodged))
		L.SetField(t, "blocked", lua.LBool(out.Blocked))
		L.SetField(t, "killed", lua.LBool(out.Killed))
		L.Push(t)
		return 1
	}))
	L.SetField(mod, "heal", L.NewFunction(func(L *lua.LState) int {
		target, amount, source := L.CheckString(1), float64(L.CheckNumber(2)), L.OptString(3, "")
		if m.Heal == nil {
			L.Push(lua.LNumber(0))
			return 1
		}
		L.Push(lua.LNumber(m.Heal(target, amount, source)))
		return 1
	}))
	L.SetField(mod, "restore_mana", L.NewFunction(func(L *lua.LState) int {
		target, amount, source := L.CheckString(1), float64(L.CheckNumber(2)), L.OptString(3, "")
		if m.RestoreMana == nil {
			L.Push(lua.LNumber(0))
			return 1
		}
		L.Push(lua.LNumber(m.RestoreMana(target, amount, source)))
		return 1
	}))
	L.SetField(mod, "apply_effect", L.NewFunction(func(L *lua.LState) int {
		target, effectID, source := L.CheckString(1), L.CheckString(2), L.OptString(3, "")
		if m.ApplyEffect == nil {
			L.Push(lua.LNil)
			return 1
		}
		id, err := m.ApplyEffect(target, effectID, source)
		if err != nil {
			m.logger.Warn("engine.combat.apply_effect failed",
				zap.String("target", target),
				zap.String("effect", effectID),
				zap.Error(err),
			)
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(id))
		return 1
	}))
	L.SetField(mod, "remove_effect", L.NewFunction(func(L *lua.LState) int {
		target, effectID := L.CheckString(1), L.CheckString(2)
		if m.RemoveEffect == nil {
			L.Push(lua.LNumber(0))
			return 1
		}
		L.Push(lua.LNumber(m.RemoveEffect(target, effectID)))
		return 1
	}))
	L.SetField(mod, "disable_ability", L.NewFunction(func(L *lua.LState) int {
		target, abilityID, turns := L.CheckString(1), L.CheckString(2), L.CheckInt(3)
		if m.DisableAbility == nil {
			L.Push(lua.LFalse)
			return 1
		}
		if err := m.DisableAbility(target, abilityID, turns); err != nil {
			m.logger.Warn("engine.combat.disable_ability failed",
				zap.String("target", target),
				zap.String("ability", abilityID),
				zap.Error(err),
			)
			L.Push(lua.LFalse)
			return 1
		}
		L.Push(lua.LTrue)
		return 1
	}))
	return mod
}
