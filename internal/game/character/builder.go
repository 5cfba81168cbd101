package character

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/game/ai"
	"github.com/cory-johannsen/raid/internal/game/combat"
	"github.com/cory-johannsen/raid/internal/game/effect"
	"github.com/cory-johannsen/raid/internal/game/stats"
	"github.com/cory-johannsen/raid/internal/rules"
	"github.com/cory-johannsen/raid/internal/scripting"
)

var (
	// ErrUnknownTemplate is returned when a template id is not in the library.
	ErrUnknownTemplate = errors.New("character: unknown template")
	// ErrNoScripts is returned by a scripted ability used in a battle with no script host.
	ErrNoScripts = errors.New("character: battle has no script host")
)

// Builder turns library templates into battle characters. A Builder only
// reads its library and the shared formula compiler, so one Builder serves
// every battle concurrently.
type Builder struct {
	lib      *Library
	compiler *rules.Compiler
	logger   *zap.Logger
}

// NewBuilder creates a Builder.
//
// Precondition: lib and compiler must not be nil.
func NewBuilder(lib *Library, compiler *rules.Compiler, logger *zap.Logger) *Builder {
	if lib == nil || compiler == nil {
		panic("character.NewBuilder: precondition violated: lib and compiler must be non-nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{lib: lib, compiler: compiler, logger: logger}
}

// Library returns the content the builder reads.
func (bl *Builder) Library() *Library { return bl.lib }

// Spawner builds characters into one battle. Its formula evaluator rolls the
// battle's dice, so a Spawner must not outlive or be shared across battles.
type Spawner struct {
	lib    *Library
	battle *combat.Battle
	eval   *rules.Evaluator
	mgr    *scripting.Manager
	logger *zap.Logger
}

// ForBattle binds the builder to b. When mgr is non-nil a ScriptHost over mgr
// becomes b's script host.
//
// Precondition: b must not be nil.
// Postcondition: Returns a Spawner whose characters join b, or an error if
// the formula environment cannot be built.
func (bl *Builder) ForBattle(b *combat.Battle, mgr *scripting.Manager) (*Spawner, error) {
	roller := b.Roller()
	eval, err := bl.compiler.Evaluator(func(expr string) (int, error) {
		res, err := roller.Roll(expr)
		if err != nil {
			return 0, err
		}
		return res.Total(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("battle %s: %w", b.ID, err)
	}
	if mgr != nil {
		b.SetScripts(NewScriptHost(b, mgr, bl.lib.Effects, b.Logger()))
	}
	return &Spawner{lib: bl.lib, battle: b, eval: eval, mgr: mgr, logger: b.Logger()}, nil
}

// Spawn creates a character from templateID on team and joins it to the
// battle. Talents are applied as permanent effects, then HP and mana are
// filled to the resulting maxima.
//
// Postcondition: Returns a living, joined character with every template
// ability on its action bar, or a non-nil error.
func (s *Spawner) Spawn(templateID, team string) (*combat.Character, error) {
	t, ok := s.lib.Templates[templateID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, templateID)
	}
	c := combat.NewCharacter(t.ID, t.Name, team, t.BaseStats)
	if err := s.battle.Join(c); err != nil {
		return nil, err
	}

	for _, id := range t.Talents {
		def, ok := s.lib.Effects.Get(id)
		if !ok {
			s.logger.Warn("skipping unknown talent", zap.String("template", t.ID), zap.String("effect", id))
			continue
		}
		e := combat.FromDef(def, c)
		e.Duration = effect.Permanent
		if err := c.AddEffect(e); err != nil {
			return nil, fmt.Errorf("template %q: talent %q: %w", t.ID, id, err)
		}
	}
	c.Refill()

	for _, id := range t.Abilities {
		def, ok := s.lib.Abilities[id]
		if !ok {
			s.logger.Warn("skipping unknown ability", zap.String("template", t.ID), zap.String("ability", id))
			continue
		}
		a, err := s.Ability(def)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", t.ID, err)
		}
		c.AddAbility(a)
	}
	return c, nil
}

// Agent returns the turn-taking policy for c. Its template's AI domain is
// planned against the battle's scripts and formula dice; a template with no
// domain falls back to action-bar order.
func (s *Spawner) Agent(c *combat.Character) *ai.Agent {
	t, ok := s.lib.Templates[c.ID]
	if !ok || t.AI == "" {
		return ai.NewAgent(nil)
	}
	d, ok := s.lib.Domains.Domain(t.AI)
	if !ok {
		s.logger.Warn("unknown ai domain", zap.String("template", t.ID), zap.String("domain", t.AI))
		return ai.NewAgent(nil)
	}
	var caller ai.ScriptCaller
	if s.mgr != nil {
		caller = s.mgr
	}
	return ai.NewAgent(ai.NewPlanner(d, caller, s.eval, scripting.GlobalScope, s.logger))
}

// Ability builds a combat ability whose Action runs def.
func (s *Spawner) Ability(def *AbilityDef) (*combat.Ability, error) {
	tt, err := combat.ParseTargetType(def.TargetType)
	if err != nil {
		return nil, fmt.Errorf("ability %q: %w", def.ID, err)
	}
	return combat.NewAbility(def.ID, def.Name, def.ManaCost, def.Cooldown, tt, s.action(def)), nil
}

// action runs the script first, then one chain of def.Hits steps per target.
// Content errors from any step are joined into the returned error; the
// remaining steps still run.
func (s *Spawner) action(def *AbilityDef) combat.Action {
	return func(ctx *combat.ActionContext) (combat.Outcome, error) {
		out := combat.Outcome{DoesNotEndTurn: def.DoesNotEndTurn}
		var errs []error

		if def.Script != "" {
			host := ctx.Battle.Scripts()
			if host == nil {
				errs = append(errs, fmt.Errorf("ability %q: script %q: %w", def.ID, def.Script, ErrNoScripts))
			} else {
				o, err := host.CallAbility(def.Script, ctx)
				if err != nil {
					errs = append(errs, fmt.Errorf("ability %q: %w", def.ID, err))
				}
				out.DoesNotEndTurn = out.DoesNotEndTurn || o.DoesNotEndTurn
			}
		}

		if def.declarative() {
			for _, t := range ctx.Targets {
				steps := make([]combat.Step, def.hitCount())
				for i := range steps {
					steps[i].Apply = func() {
						if err := s.hit(ctx, def, t); err != nil {
							errs = append(errs, err)
						}
					}
					if i > 0 {
						steps[i].Delay = def.HitDelay
					}
				}
				ctx.Battle.Chain(ctx.Caster, steps...)
			}
		}
		return out, errors.Join(errs...)
	}
}

// hit applies one hit of def to t: damage, then healing, then effects. A
// dodged damage roll ends the hit.
func (s *Spawner) hit(ctx *combat.ActionContext, def *AbilityDef, t *combat.Character) error {
	var errs []error
	vars := rules.Vars{Caster: StatVars(ctx.Caster), Target: StatVars(t), Turn: ctx.Battle.Turn()}

	if d := def.Damage; d != nil {
		amount, err := s.eval.Eval(d.Formula, vars)
		if err != nil {
			errs = append(errs, fmt.Errorf("ability %q: damage: %w", def.ID, err))
		} else {
			typ, _ := combat.ParseDamageType(d.Type)
			res := t.ApplyDamage(amount, typ, ctx.Caster, combat.DamageOptions{
				SkipDodge:    d.SkipDodge,
				IgnoreArmor:  d.IgnoreArmor,
				IgnoreShield: d.IgnoreShield,
				NoCrit:       !d.CanCrit,
			})
			if res.Err != nil {
				errs = append(errs, fmt.Errorf("ability %q: damage: %w", def.ID, res.Err))
			}
			if res.IsDodged {
				return errors.Join(errs...)
			}
		}
	}

	if h := def.Heal; h != nil {
		amount, err := s.eval.Eval(h.Formula, vars)
		if err != nil {
			errs = append(errs, fmt.Errorf("ability %q: heal: %w", def.ID, err))
		} else if res := t.Heal(amount, ctx.Caster, combat.HealOptions{CanCrit: h.CanCrit}); res.Err != nil {
			errs = append(errs, fmt.Errorf("ability %q: heal: %w", def.ID, res.Err))
		}
	}

	for _, id := range def.ApplyEffects {
		if t.IsDead() {
			break
		}
		ed, ok := s.lib.Effects.Get(id)
		if !ok {
			errs = append(errs, fmt.Errorf("ability %q: unknown effect %q", def.ID, id))
			continue
		}
		if err := t.AddEffect(combat.FromDef(ed, ctx.Caster)); err != nil {
			errs = append(errs, fmt.Errorf("ability %q: effect %q: %w", def.ID, id, err))
		}
	}
	return errors.Join(errs...)
}

// StatVars is the formula view of c: every known stat by key, plus the
// current "hp" and "mana".
func StatVars(c *combat.Character) map[string]float64 {
	out := make(map[string]float64, len(stats.Keys())+2)
	for _, k := range stats.Keys() {
		out[string(k)] = c.Stat(k)
	}
	out["hp"] = c.HP()
	out["mana"] = c.Mana()
	return out
}
