package character_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/combat"
	"github.com/cory-johannsen/raid/internal/game/event"
	"github.com/cory-johannsen/raid/internal/game/stats"
	"github.com/cory-johannsen/raid/internal/rules"
)

func TestNewBuilder_PanicsOnNil(t *testing.T) {
	compiler, err := rules.NewCompiler()
	require.NoError(t, err)
	assert.Panics(t, func() { character.NewBuilder(nil, compiler, nil) })
	assert.Panics(t, func() { character.NewBuilder(character.NewLibrary(), nil, nil) })
}

func TestSpawn_UnknownTemplate(t *testing.T) {
	f := newFixture(t, testLibrary(), nil)
	_, err := f.spawner.Spawn("lich", "red")
	assert.ErrorIs(t, err, character.ErrUnknownTemplate)
}

func TestSpawn_JoinsWithAbilities(t *testing.T) {
	f := newFixture(t, testLibrary(), nil)
	c := f.spawn(t, "warrior", "red")

	assert.Same(t, f.battle, c.Battle())
	assert.Equal(t, "warrior", c.ID)
	assert.Equal(t, "red", c.Team)
	require.Len(t, c.Abilities(), 1)
	assert.Equal(t, "strike", c.Abilities()[0].ID)
	assert.Equal(t, combat.TargetEnemy, c.Abilities()[0].TargetType)
}

func TestSpawn_TwoCopiesOfOneTemplate(t *testing.T) {
	f := newFixture(t, testLibrary(), nil)
	a := f.spawn(t, "dummy", "blue")
	b := f.spawn(t, "dummy", "blue")
	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.InstanceID, b.InstanceID)
	assert.Len(t, f.battle.Roster(), 2)
}

func TestSpawn_TalentsArePermanentAndFillHP(t *testing.T) {
	lib := testLibrary()
	lib.Templates["dummy"].Talents = []string{"toughness"}
	f := newFixture(t, lib, nil)
	c := f.spawn(t, "dummy", "blue")

	require.Len(t, c.Effects(), 1)
	assert.True(t, c.Effects()[0].Permanent())
	assert.Equal(t, 1500.0, c.MaxHP())
	assert.Equal(t, 1500.0, c.HP())
	assert.Equal(t, 1000.0, c.BaseStats()[stats.MaxHP])
}

func TestSpawn_UnknownTalentSkipped(t *testing.T) {
	lib := testLibrary()
	lib.Templates["dummy"].Talents = []string{"missing"}
	f := newFixture(t, lib, nil)
	c := f.spawn(t, "dummy", "blue")
	assert.Empty(t, c.Effects())
}

func TestAbility_BasicAttackDeals150(t *testing.T) {
	f := newFixture(t, testLibrary(), nil)
	a := f.spawn(t, "warrior", "red")
	b := f.spawn(t, "dummy", "blue")

	actor, err := f.battle.BeginTurn()
	require.NoError(t, err)
	require.Same(t, a, actor)
	res, err := f.battle.Act("strike", b)
	require.NoError(t, err)
	require.True(t, res.Check.OK)
	require.NoError(t, res.Err)

	assert.Equal(t, 850.0, b.HP())
	assert.False(t, f.battle.InTurn())
}

func TestAbility_MultiHitChainPacing(t *testing.T) {
	f := newFixture(t, testLibrary(), nil)
	a := f.spawn(t, "warrior", "red")
	b := f.spawn(t, "dummy", "blue")
	f.give(t, a, &character.AbilityDef{
		ID: "flurry", Name: "Flurry", TargetType: "enemy", Hits: 3, HitDelay: 200 * time.Millisecond,
		Damage: &character.DamageSpec{Formula: "10.0", Type: "pure"},
	})
	events := f.record()

	_, err := f.battle.BeginTurn()
	require.NoError(t, err)
	res, err := f.battle.Act("flurry", b)
	require.NoError(t, err)
	require.NoError(t, res.Err)

	assert.Equal(t, 970.0, b.HP())
	steps := ofType(*events, event.ChainStep)
	require.Len(t, steps, 3)
	for i, want := range []time.Duration{0, 200 * time.Millisecond, 400 * time.Millisecond} {
		assert.Equal(t, float64(i+1), steps[i].Amount)
		assert.Equal(t, want, steps[i].Delay)
	}
	assert.Len(t, ofType(*events, event.DamageDealt), 3)
}

func TestAbility_AllEnemiesChainsPerTarget(t *testing.T) {
	f := newFixture(t, testLibrary(), nil)
	a := f.spawn(t, "warrior", "red")
	b1 := f.spawn(t, "dummy", "blue")
	b2 := f.spawn(t, "dummy", "blue")
	f.give(t, a, &character.AbilityDef{
		ID: "cleave", Name: "Cleave", TargetType: "all_enemies", Hits: 2,
		Damage: &character.DamageSpec{Formula: "target.maxHp * 0.1", Type: "pure"},
	})

	_, err := f.battle.BeginTurn()
	require.NoError(t, err)
	res, err := f.battle.Act("cleave")
	require.NoError(t, err)
	require.NoError(t, res.Err)

	assert.Equal(t, 800.0, b1.HP())
	assert.Equal(t, 800.0, b2.HP())
}

func TestAbility_AppliesEffectsWithCasterAsSource(t *testing.T) {
	f := newFixture(t, testLibrary(), nil)
	a := f.spawn(t, "warrior", "red")
	b := f.spawn(t, "dummy", "blue")
	f.give(t, a, &character.AbilityDef{
		ID: "sunder", Name: "Sunder", TargetType: "enemy", ApplyEffects: []string{"sunder", "sunder"},
	})

	_, err := f.battle.BeginTurn()
	require.NoError(t, err)
	res, err := f.battle.Act("sunder", b)
	require.NoError(t, err)
	require.NoError(t, res.Err)

	require.Len(t, b.Debuffs(), 2)
	assert.Same(t, a, b.Debuffs()[0].Source)
	assert.Equal(t, -10.0, b.Stat(stats.Armor))
}

func TestAbility_HealUsesTargetStats(t *testing.T) {
	f := newFixture(t, testLibrary(), nil)
	a := f.spawn(t, "warrior", "red")
	ally := f.spawn(t, "dummy", "red")
	f.spawn(t, "dummy", "blue")
	ally.ApplyDamage(500, combat.DamagePure, nil, combat.DamageOptions{SkipDodge: true})
	f.give(t, a, &character.AbilityDef{
		ID: "mend", Name: "Mend", TargetType: "ally",
		Heal: &character.HealSpec{Formula: "(target.maxHp - target.hp) / 2.0"},
	})

	_, err := f.battle.BeginTurn()
	require.NoError(t, err)
	res, err := f.battle.Act("mend", ally)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, 750.0, ally.HP())
}

func TestAbility_FormulaRollsBattleDice(t *testing.T) {
	f := newFixture(t, testLibrary(), nil)
	a := f.spawn(t, "warrior", "red")
	b := f.spawn(t, "dummy", "blue")
	f.give(t, a, &character.AbilityDef{
		ID: "smash", Name: "Smash", TargetType: "enemy",
		Damage: &character.DamageSpec{Formula: `roll("2d6") * 10.0`, Type: "pure"},
	})

	_, err := f.battle.BeginTurn()
	require.NoError(t, err)
	_, err = f.battle.Act("smash", b)
	require.NoError(t, err)
	// neverRoll rolls the top face: 2d6 == 12.
	assert.Equal(t, 880.0, b.HP())
}

func TestAbility_FormulaErrorKeepsCost(t *testing.T) {
	f := newFixture(t, testLibrary(), nil)
	a := f.spawn(t, "warrior", "red")
	b := f.spawn(t, "dummy", "blue")
	f.give(t, a, &character.AbilityDef{
		ID: "broken", Name: "Broken", TargetType: "enemy", ManaCost: 30, Cooldown: 2, DoesNotEndTurn: true,
		Damage:       &character.DamageSpec{Formula: "caster.strength * 2.0", Type: "physical"},
		ApplyEffects: []string{"sunder"},
	})

	_, err := f.battle.BeginTurn()
	require.NoError(t, err)
	res, err := f.battle.Act("broken", b)
	require.NoError(t, err)

	assert.True(t, res.Check.OK)
	assert.Error(t, res.Err)
	assert.Equal(t, 70.0, a.Mana())
	assert.Equal(t, 2, a.Ability("broken").CurrentCooldown())
	assert.Equal(t, 1000.0, b.HP())
	assert.Len(t, b.Debuffs(), 1, "later parts of the hit still apply")
}

func TestAbility_DodgedHitAppliesNothingElse(t *testing.T) {
	lib := testLibrary()
	lib.Templates["dummy"].BaseStats[stats.DodgeChance] = 1
	f := newFixture(t, lib, nil)
	a := f.spawn(t, "warrior", "red")
	b := f.spawn(t, "dummy", "blue")
	f.give(t, a, &character.AbilityDef{
		ID: "rend", Name: "Rend", TargetType: "enemy",
		Damage:       &character.DamageSpec{Formula: "10.0", Type: "physical"},
		ApplyEffects: []string{"sunder"},
	})
	events := f.record()

	_, err := f.battle.BeginTurn()
	require.NoError(t, err)
	res, err := f.battle.Act("rend", b)
	require.NoError(t, err)
	require.True(t, res.Check.OK)
	require.NoError(t, res.Err)

	assert.Equal(t, 1000.0, b.HP())
	assert.Empty(t, b.Debuffs())
	assert.Zero(t, b.Stat(stats.Armor))
	dealt := ofType(*events, event.DamageDealt)
	require.Len(t, dealt, 1)
	assert.True(t, dealt[0].IsDodged)
}

func TestAbility_NaNFormulaIsAContentError(t *testing.T) {
	f := newFixture(t, testLibrary(), nil)
	a := f.spawn(t, "warrior", "red")
	b := f.spawn(t, "dummy", "blue")
	f.give(t, a, &character.AbilityDef{
		ID: "void", Name: "Void", TargetType: "enemy",
		Damage: &character.DamageSpec{Formula: "target.armor / target.armor", Type: "pure"},
	})

	_, err := f.battle.BeginTurn()
	require.NoError(t, err)
	res, err := f.battle.Act("void", b)
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, rules.ErrNotANumber)
	assert.Equal(t, 1000.0, b.HP())
	assert.False(t, b.IsDead())
}

func TestAbility_InfiniteFormulaKills(t *testing.T) {
	f := newFixture(t, testLibrary(), nil)
	a := f.spawn(t, "warrior", "red")
	b := f.spawn(t, "dummy", "blue")
	f.give(t, a, &character.AbilityDef{
		ID: "smite", Name: "Smite", TargetType: "enemy",
		Damage: &character.DamageSpec{Formula: "100.0 / target.armor", Type: "physical"},
	})

	_, err := f.battle.BeginTurn()
	require.NoError(t, err)
	res, err := f.battle.Act("smite", b)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.True(t, b.IsDead())
	assert.Zero(t, b.HP())
}

func TestAbility_ScriptWithoutHost(t *testing.T) {
	f := newFixture(t, testLibrary(), nil)
	a := f.spawn(t, "warrior", "red")
	b := f.spawn(t, "dummy", "blue")
	f.give(t, a, &character.AbilityDef{ID: "hex", Name: "Hex", TargetType: "enemy", Script: "hex"})

	_, err := f.battle.BeginTurn()
	require.NoError(t, err)
	res, err := f.battle.Act("hex", b)
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, character.ErrNoScripts)
}

func TestAbility_DoesNotEndTurn(t *testing.T) {
	f := newFixture(t, testLibrary(), nil)
	a := f.spawn(t, "warrior", "red")
	f.spawn(t, "dummy", "blue")
	f.give(t, a, &character.AbilityDef{
		ID: "brace", Name: "Brace", TargetType: "self", ApplyEffects: []string{"toughness"}, DoesNotEndTurn: true,
	})

	_, err := f.battle.BeginTurn()
	require.NoError(t, err)
	_, err = f.battle.Act("brace")
	require.NoError(t, err)
	assert.True(t, f.battle.InTurn())
	assert.Equal(t, 1500.0, a.MaxHP())
}

func TestStatVars_HasEveryKey(t *testing.T) {
	f := newFixture(t, testLibrary(), nil)
	c := f.spawn(t, "warrior", "red")
	rapid.Check(t, func(rt *rapid.T) {
		k := rapid.SampledFrom(stats.Keys()).Draw(rt, "key")
		vars := character.StatVars(c)
		v, ok := vars[string(k)]
		if !ok || v != c.Stat(k) {
			rt.Fatalf("%s: got %v (present %v), want %v", k, v, ok, c.Stat(k))
		}
		if vars["hp"] != c.HP() || vars["mana"] != c.Mana() {
			rt.Fatalf("hp/mana mismatch")
		}
	})
}
