package combat_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/raid/internal/game/combat"
	"github.com/cory-johannsen/raid/internal/game/effect"
	"github.com/cory-johannsen/raid/internal/game/event"
	"github.com/cory-johannsen/raid/internal/game/stats"
)

func strike(result *combat.DamageResult) *combat.Ability {
	return combat.NewAbility("strike", "Strike", 0, 0, combat.TargetEnemy, func(ctx *combat.ActionContext) (combat.Outcome, error) {
		for _, tgt := range ctx.Targets {
			*result = tgt.ApplyDamage(50+ctx.Caster.Stat(stats.PhysicalDamage), combat.DamagePhysical, ctx.Caster, combat.DamageOptions{})
		}
		return combat.Outcome{}, nil
	})
}

func TestApplyDamage_BasicAttack(t *testing.T) {
	b, a, tgt := duel(t, neverRoll, stats.Block{stats.PhysicalDamage: 100}, hp(1000))
	var res combat.DamageResult
	a.AddAbility(strike(&res))

	_, err := b.BeginTurn()
	require.NoError(t, err)
	use, err := b.Act("strike", tgt)
	require.NoError(t, err)
	require.True(t, use.Check.OK)

	assert.Equal(t, 150.0, res.Damage)
	assert.False(t, res.IsCritical)
	assert.False(t, res.IsDodged)
	assert.Equal(t, 850.0, tgt.HP())
}

func TestApplyDamage_ArmorMitigation(t *testing.T) {
	b, a, tgt := duel(t, neverRoll, stats.Block{stats.PhysicalDamage: 100}, stats.Block{stats.MaxHP: 1000, stats.Armor: 20})
	var res combat.DamageResult
	a.AddAbility(strike(&res))

	_, err := b.BeginTurn()
	require.NoError(t, err)
	_, err = b.Act("strike", tgt)
	require.NoError(t, err)

	assert.Equal(t, 120.0, res.Damage)
	assert.Equal(t, 30.0, res.Mitigated)
	assert.Equal(t, 880.0, tgt.HP())
}

func TestApplyDamage_ArmorDebuffsStackAdditively(t *testing.T) {
	_, a, tgt := duel(t, neverRoll, nil, stats.Block{stats.MaxHP: 1000, stats.Armor: 20})
	shred := stats.Modifier{Stat: stats.Armor, Value: -5, Op: stats.OpAdd}
	require.NoError(t, tgt.AddDebuff(debuff("armor_shred", 3, shred)))
	require.NoError(t, tgt.AddDebuff(debuff("armor_shred", 3, shred)))

	assert.Equal(t, 10.0, tgt.Stat(stats.Armor))
	res := tgt.ApplyDamage(100, combat.DamagePhysical, a, combat.DamageOptions{})
	assert.Equal(t, 90.0, res.Damage)
}

func TestApplyDamage_MagicalUsesShieldAndPureIgnoresBoth(t *testing.T) {
	_, a, tgt := duel(t, neverRoll, nil, stats.Block{stats.MaxHP: 1000, stats.Armor: 50, stats.MagicalShield: 25})

	assert.Equal(t, 75.0, tgt.ApplyDamage(100, combat.DamageMagical, a, combat.DamageOptions{}).Damage)
	assert.Equal(t, 100.0, tgt.ApplyDamage(100, combat.DamagePure, a, combat.DamageOptions{}).Damage)
	assert.Equal(t, 100.0, tgt.ApplyDamage(100, combat.DamagePhysical, a, combat.DamageOptions{IgnoreArmor: true}).Damage)
	assert.Equal(t, 100.0, tgt.ApplyDamage(100, combat.DamageMagical, a, combat.DamageOptions{IgnoreShield: true}).Damage)
}

func TestApplyDamage_FullMitigationIsBlocked(t *testing.T) {
	_, a, tgt := duel(t, neverRoll, nil, stats.Block{stats.MaxHP: 1000, stats.Armor: 150})
	res := tgt.ApplyDamage(100, combat.DamagePhysical, a, combat.DamageOptions{})
	assert.Equal(t, 0.0, res.Damage)
	assert.True(t, res.IsBlocked)
	assert.Equal(t, 1000.0, tgt.HP())
}

func TestApplyDamage_MitigationCapFromRules(t *testing.T) {
	b := newBattle(t, neverRoll, combat.WithRules(combat.Rules{MaxMitigation: 0.5}))
	a := join(t, b, "A", "red", nil)
	tgt := join(t, b, "B", "blue", stats.Block{stats.MaxHP: 1000, stats.Armor: 90})
	assert.Equal(t, 50.0, tgt.ApplyDamage(100, combat.DamagePhysical, a, combat.DamageOptions{}).Damage)
}

func TestApplyDamage_DamageTakenAfterMitigation(t *testing.T) {
	_, a, tgt := duel(t, neverRoll, nil, stats.Block{stats.MaxHP: 1000, stats.Armor: 20})
	mark := debuff("mark", 2)
	mark.Capabilities = effect.Capabilities{DamageTaken: 1.25}
	require.NoError(t, tgt.AddDebuff(mark))

	// 100 * 0.8 * 2.25
	assert.Equal(t, 180.0, tgt.ApplyDamage(100, combat.DamagePhysical, a, combat.DamageOptions{}).Damage)
}

func TestApplyDamage_SourceBonusBeforeMitigation(t *testing.T) {
	_, a, tgt := duel(t, neverRoll, stats.Block{stats.DamageBonus: 0.5}, stats.Block{stats.MaxHP: 1000, stats.Armor: 20})
	fury := combat.NewEffect("fury", "Fury", 2)
	fury.Capabilities = effect.Capabilities{DamageDealt: 0.5}
	require.NoError(t, a.AddBuff(fury))

	// 100 * 2.0 * 0.8
	assert.Equal(t, 160.0, tgt.ApplyDamage(100, combat.DamagePhysical, a, combat.DamageOptions{}).Damage)
}

func TestApplyDamage_DamageReductionCapped(t *testing.T) {
	_, a, tgt := duel(t, neverRoll, nil, hp(1000))
	for i := 0; i < 3; i++ {
		ward := combat.NewEffect("ward", "Ward", 2)
		ward.Capabilities = effect.Capabilities{DamageReduction: 0.5}
		require.NoError(t, tgt.AddBuff(ward))
	}
	assert.Equal(t, 0.0, tgt.ApplyDamage(100, combat.DamagePure, a, combat.DamageOptions{}).Damage)
	assert.Equal(t, 1000.0, tgt.HP())
}

func TestApplyDamage_Critical(t *testing.T) {
	_, a, tgt := duel(t, alwaysRoll, stats.Block{stats.CritChance: 0.3}, hp(1000))

	res := tgt.ApplyDamage(100, combat.DamagePure, a, combat.DamageOptions{})
	assert.True(t, res.IsCritical)
	assert.Equal(t, 150.0, res.Damage)

	res = tgt.ApplyDamage(100, combat.DamagePure, a, combat.DamageOptions{CritMultiplier: 3})
	assert.Equal(t, 300.0, res.Damage)

	res = tgt.ApplyDamage(100, combat.DamagePure, a, combat.DamageOptions{NoCrit: true})
	assert.False(t, res.IsCritical)
	assert.Equal(t, 100.0, res.Damage)
}

func TestApplyDamage_SourceCritMultiplier(t *testing.T) {
	_, a, tgt := duel(t, alwaysRoll, stats.Block{stats.CritChance: 0.3, stats.CritMultiplier: 2}, hp(1000))
	assert.Equal(t, 200.0, tgt.ApplyDamage(100, combat.DamagePure, a, combat.DamageOptions{}).Damage)
}

func TestApplyDamage_DodgeShortCircuits(t *testing.T) {
	b, a, tgt := duel(t, alwaysRoll,
		stats.Block{stats.MaxHP: 1000, stats.Lifesteal: 1, stats.CritChance: 0.5},
		stats.Block{stats.MaxHP: 1000, stats.DodgeChance: 0.2},
	)
	a.ApplyDamage(500, combat.DamagePure, nil, combat.DamageOptions{})
	rec := record(b)

	res := tgt.ApplyDamage(300, combat.DamagePhysical, a, combat.DamageOptions{})

	assert.True(t, res.IsDodged)
	assert.Equal(t, 0.0, res.Damage)
	assert.False(t, res.IsCritical)
	assert.Equal(t, 1000.0, tgt.HP())
	assert.Equal(t, 500.0, a.HP(), "no lifesteal on a dodge")
	require.Len(t, rec.events, 1)
	assert.Equal(t, event.DamageDealt, rec.events[0].Type)
	assert.True(t, rec.events[0].IsDodged)
	assert.Zero(t, rec.events[0].Amount)
	assert.Empty(t, rec.of(event.HealingDone))
}

func TestApplyDamage_SkipDodge(t *testing.T) {
	_, a, tgt := duel(t, alwaysRoll, nil, stats.Block{stats.MaxHP: 1000, stats.DodgeChance: 0.9})
	res := tgt.ApplyDamage(100, combat.DamagePure, a, combat.DamageOptions{SkipDodge: true})
	assert.False(t, res.IsDodged)
	assert.Equal(t, 100.0, res.Damage)
}

func TestApplyDamage_Lifesteal(t *testing.T) {
	b, a, tgt := duel(t, neverRoll, stats.Block{stats.MaxHP: 1000, stats.Lifesteal: 0.5}, hp(1000))
	a.ApplyDamage(500, combat.DamagePure, nil, combat.DamageOptions{})
	rec := record(b)

	tgt.ApplyDamage(100, combat.DamagePure, a, combat.DamageOptions{})

	assert.Equal(t, 550.0, a.HP())
	assert.Equal(t, []event.Type{event.DamageDealt, event.HealingDone}, rec.types())

	tgt.ApplyDamage(100, combat.DamagePure, a, combat.DamageOptions{NoLifesteal: true})
	assert.Equal(t, 550.0, a.HP())
}

func TestApplyDamage_EventAfterCommit(t *testing.T) {
	b, a, tgt := duel(t, neverRoll, nil, hp(1000))
	var seen float64
	b.Bus().Subscribe(event.DamageDealt, func(event.Event) { seen = tgt.HP() })

	tgt.ApplyDamage(250, combat.DamagePure, a, combat.DamageOptions{})
	assert.Equal(t, 750.0, seen)
}

func TestApplyDamage_LethalOverkill(t *testing.T) {
	b, a, tgt := duel(t, neverRoll, nil, hp(300))
	rec := record(b)

	res := tgt.ApplyDamage(1_000_000, combat.DamagePure, a, combat.DamageOptions{})
	assert.Equal(t, 1_000_000.0, res.Damage, "overkill is reported")
	assert.True(t, res.Killed)
	assert.Zero(t, tgt.HP())
	assert.True(t, tgt.IsDead())

	again := tgt.ApplyDamage(1_000_000, combat.DamagePure, a, combat.DamageOptions{})
	assert.Equal(t, combat.DamageResult{}, again)
	assert.Len(t, rec.of(event.CharacterDied), 1)
	assert.Len(t, rec.of(event.DamageDealt), 1)
	assert.Zero(t, tgt.HP())
}

func TestApplyDamage_InfiniteIsLethal(t *testing.T) {
	for _, armor := range []float64{0, 30} {
		b, a, tgt := duel(t, neverRoll, stats.Block{stats.DamageBonus: 0.5}, stats.Block{stats.MaxHP: 800, stats.Armor: armor})
		rec := record(b)

		res := tgt.ApplyDamage(math.Inf(1), combat.DamagePhysical, a, combat.DamageOptions{SkipDodge: true})
		assert.Equal(t, 800.0, res.Damage, "armor %v", armor)
		assert.Zero(t, res.Mitigated)
		assert.True(t, res.Killed)
		assert.True(t, tgt.IsDead())
		assert.Zero(t, tgt.HP())
		require.Len(t, rec.of(event.DamageDealt), 1)
		assert.Equal(t, 800.0, rec.of(event.DamageDealt)[0].Amount)
	}
}

func TestApplyDamage_NaNIsIgnored(t *testing.T) {
	b, a, tgt := duel(t, neverRoll, nil, hp(1000))
	rec := record(b)

	assert.Equal(t, combat.DamageResult{}, tgt.ApplyDamage(math.NaN(), combat.DamagePure, a, combat.DamageOptions{}))
	assert.Equal(t, combat.HealResult{}, tgt.Heal(math.NaN(), a, combat.HealOptions{}))
	assert.Zero(t, tgt.RestoreMana(math.NaN(), a))
	assert.Empty(t, rec.events)
	assert.Equal(t, 1000.0, tgt.HP())

	res := tgt.ApplyDamage(10_000, combat.DamagePure, a, combat.DamageOptions{})
	assert.True(t, res.Killed)
	assert.True(t, tgt.IsDead())
}

func TestHeal_InfiniteFillsMissingHP(t *testing.T) {
	_, a, tgt := duel(t, neverRoll, nil, hp(1000))
	tgt.ApplyDamage(400, combat.DamagePure, a, combat.DamageOptions{})

	res := tgt.Heal(math.Inf(1), a, combat.HealOptions{})
	assert.Equal(t, 400.0, res.HealAmount)
	assert.Equal(t, 1000.0, tgt.HP())

	_, a, tgt = duel(t, neverRoll, stats.Block{stats.HealingPower: 0}, hp(1000))
	tgt.ApplyDamage(400, combat.DamagePure, a, combat.DamageOptions{})
	assert.Equal(t, combat.HealResult{}, tgt.Heal(math.Inf(1), a, combat.HealOptions{}))
	assert.Equal(t, 600.0, tgt.HP())
}

func TestApplyDamage_UntargetableIsNoop(t *testing.T) {
	b, a, tgt := duel(t, neverRoll, nil, hp(1000))
	veil := combat.NewEffect("veil", "Veil", 1)
	veil.Capabilities = effect.Capabilities{Untargetable: true}
	require.NoError(t, tgt.AddBuff(veil))
	rec := record(b)

	assert.Equal(t, combat.DamageResult{}, tgt.ApplyDamage(100, combat.DamagePure, a, combat.DamageOptions{}))
	assert.Empty(t, rec.events)
	assert.Equal(t, 1000.0, tgt.HP())
}

func TestApplyDamage_HardFailures(t *testing.T) {
	b, a, tgt := duel(t, neverRoll, nil, hp(1000))
	rec := record(b)

	res := b.Resolver().ApplyDamage(nil, 10, combat.DamagePure, a, combat.DamageOptions{})
	assert.ErrorIs(t, res.Err, combat.ErrNoTarget)

	res = tgt.ApplyDamage(10, combat.DamageUnknown, a, combat.DamageOptions{})
	assert.ErrorIs(t, res.Err, combat.ErrInvalidDamageType)
	assert.Equal(t, 1000.0, tgt.HP())
	assert.Empty(t, rec.events)

	loner := combat.NewCharacter("x", "X", "red", nil)
	assert.ErrorIs(t, loner.ApplyDamage(1, combat.DamagePure, nil, combat.DamageOptions{}).Err, combat.ErrNotInBattle)
	assert.ErrorIs(t, loner.Heal(1, nil, combat.HealOptions{}).Err, combat.ErrNotInBattle)
}

func TestHeal_ClampsToMissingHP(t *testing.T) {
	b, a, _ := duel(t, neverRoll, hp(1000), hp(1000))
	a.ApplyDamage(300, combat.DamagePure, nil, combat.DamageOptions{})
	rec := record(b)

	res := a.Heal(500, nil, combat.HealOptions{})
	assert.Equal(t, 300.0, res.HealAmount)
	assert.Equal(t, 1000.0, a.HP())
	require.Len(t, rec.of(event.HealingDone), 1)
	assert.Equal(t, 300.0, rec.of(event.HealingDone)[0].Amount)
}

func TestHeal_HealingPowerOfHealer(t *testing.T) {
	_, a, tgt := duel(t, neverRoll, stats.Block{stats.HealingPower: 1.5}, hp(1000))
	tgt.ApplyDamage(500, combat.DamagePure, nil, combat.DamageOptions{})

	assert.Equal(t, 150.0, tgt.Heal(100, a, combat.HealOptions{}).HealAmount)
	assert.Equal(t, 100.0, tgt.Heal(100, nil, combat.HealOptions{}).HealAmount, "target heals itself with its own power")
}

func TestHeal_CriticalOnlyWhenRequested(t *testing.T) {
	_, a, tgt := duel(t, alwaysRoll, stats.Block{stats.CritChance: 0.5}, hp(1000))
	tgt.ApplyDamage(500, combat.DamagePure, nil, combat.DamageOptions{SkipDodge: true})

	plain := tgt.Heal(100, a, combat.HealOptions{})
	assert.False(t, plain.IsCritical)
	assert.Equal(t, 100.0, plain.HealAmount)

	crit := tgt.Heal(100, a, combat.HealOptions{CanCrit: true})
	assert.True(t, crit.IsCritical)
	assert.Equal(t, 150.0, crit.HealAmount)
}

func TestHeal_DeadTargetIsNoop(t *testing.T) {
	_, a, tgt := duel(t, neverRoll, nil, hp(100))
	tgt.ApplyDamage(500, combat.DamagePure, a, combat.DamageOptions{})
	assert.Equal(t, combat.HealResult{}, tgt.Heal(100, a, combat.HealOptions{}))
	assert.Zero(t, tgt.HP())
}

func TestRestoreMana(t *testing.T) {
	b, a, _ := duel(t, neverRoll, stats.Block{stats.MaxMana: 100}, nil)
	drain := combat.NewAbility("drain", "Drain", 80, 0, combat.TargetSelf, nil)
	a.AddAbility(drain)
	require.True(t, b.Scheduler().Use(a, drain, nil).Check.OK)
	require.Equal(t, 20.0, a.Mana())

	assert.Equal(t, 50.0, a.RestoreMana(50, nil))
	assert.Equal(t, 30.0, a.RestoreMana(50, nil), "clamped to max")
	assert.Zero(t, a.RestoreMana(50, nil))

	require.True(t, b.Scheduler().Use(a, drain, nil).Check.OK)
	silence := debuff("silence", 2)
	silence.Capabilities = effect.Capabilities{CantRestoreMana: true}
	require.NoError(t, a.AddDebuff(silence))
	assert.Zero(t, a.RestoreMana(50, nil))
	assert.Equal(t, 20.0, a.Mana())
}

func TestMaxHPReduction_ClampsCurrent(t *testing.T) {
	_, _, tgt := duel(t, neverRoll, nil, hp(1000))
	wither := debuff("wither", 2, stats.Modifier{Stat: stats.MaxHP, Value: -0.5, Op: stats.OpMultiply})
	require.NoError(t, tgt.AddDebuff(wither))
	assert.Equal(t, 500.0, tgt.MaxHP())
	assert.Equal(t, 500.0, tgt.HP())

	tgt.RemoveDebuff("wither")
	assert.Equal(t, 1000.0, tgt.MaxHP())
	assert.Equal(t, 500.0, tgt.HP(), "removing a max reduction does not refill")
}

func TestProperty_HPStaysInBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Uint64().Draw(rt, "seed")
		b := newBattle(t, diceSeeded(seed))
		a := join(t, b, "A", "red", stats.Block{
			stats.MaxHP:      2000,
			stats.CritChance: rapid.Float64Range(0, 1).Draw(rt, "crit"),
			stats.Lifesteal:  rapid.Float64Range(0, 2).Draw(rt, "lifesteal"),
		})
		maxHP := rapid.Float64Range(1, 5000).Draw(rt, "maxHp")
		tgt := join(t, b, "B", "blue", stats.Block{
			stats.MaxHP:       maxHP,
			stats.Armor:       rapid.Float64Range(-50, 150).Draw(rt, "armor"),
			stats.DodgeChance: rapid.Float64Range(0, 1).Draw(rt, "dodge"),
		})
		ops := rapid.SliceOfN(rapid.Float64Range(-3000, 3000), 1, 40).Draw(rt, "ops")
		for _, amt := range ops {
			for _, c := range []*combat.Character{a, tgt} {
				if amt >= 0 {
					c.ApplyDamage(amt, combat.DamagePhysical, a, combat.DamageOptions{})
				} else {
					c.Heal(-amt, a, combat.HealOptions{CanCrit: true})
				}
				if c.HP() < 0 || c.HP() > c.MaxHP() {
					rt.Fatalf("%s hp %v outside [0, %v]", c.Name, c.HP(), c.MaxHP())
				}
				if c.IsDead() != (c.HP() == 0) {
					rt.Fatalf("%s dead=%v with hp %v", c.Name, c.IsDead(), c.HP())
				}
			}
		}
	})
}

func TestProperty_NonFiniteAmountsKeepDeathConsistent(t *testing.T) {
	amounts := rapid.OneOf(
		rapid.Float64Range(-3000, 3000),
		rapid.SampledFrom([]float64{math.Inf(1), math.Inf(-1), math.NaN()}),
	)
	rapid.Check(t, func(rt *rapid.T) {
		b := newBattle(t, diceSeeded(rapid.Uint64().Draw(rt, "seed")))
		a := join(t, b, "A", "red", stats.Block{stats.MaxHP: 2000, stats.CritChance: 0.5})
		tgt := join(t, b, "B", "blue", stats.Block{
			stats.MaxHP: 3000,
			stats.Armor: rapid.Float64Range(0, 100).Draw(rt, "armor"),
		})
		for _, amt := range rapid.SliceOfN(amounts, 1, 20).Draw(rt, "ops") {
			if rapid.Bool().Draw(rt, "heal") {
				tgt.Heal(amt, a, combat.HealOptions{CanCrit: true})
			} else {
				tgt.ApplyDamage(amt, combat.DamagePhysical, a, combat.DamageOptions{})
			}
			if math.IsNaN(tgt.HP()) || tgt.HP() < 0 || tgt.HP() > tgt.MaxHP() {
				rt.Fatalf("hp %v outside [0, %v]", tgt.HP(), tgt.MaxHP())
			}
			if tgt.IsDead() != (tgt.HP() == 0) {
				rt.Fatalf("dead=%v with hp %v", tgt.IsDead(), tgt.HP())
			}
		}
	})
}
