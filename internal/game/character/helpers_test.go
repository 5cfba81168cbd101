package character_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/combat"
	"github.com/cory-johannsen/raid/internal/game/dice"
	"github.com/cory-johannsen/raid/internal/game/effect"
	"github.com/cory-johannsen/raid/internal/game/event"
	"github.com/cory-johannsen/raid/internal/game/stats"
	"github.com/cory-johannsen/raid/internal/rules"
	"github.com/cory-johannsen/raid/internal/scripting"
)

const contentDir = "../../../content"

// fixedSource always returns val, clamped into [0, n).
type fixedSource struct{ val int }

func (f fixedSource) Intn(n int) int {
	if f.val >= n {
		return n - 1
	}
	return f.val
}

// neverRoll fails every chance roll with p < 1 and rolls the top face of every die.
var neverRoll = fixedSource{val: 999_999}

// testLibrary holds a warrior ("red") and a dummy ("blue") with no crit or dodge.
func testLibrary() *character.Library {
	lib := character.NewLibrary()
	lib.AddTemplate(&character.Template{
		ID:        "warrior",
		Name:      "Warrior",
		BaseStats: stats.Block{stats.MaxHP: 1000, stats.MaxMana: 100, stats.PhysicalDamage: 100},
		Abilities: []string{"strike"},
	})
	lib.AddTemplate(&character.Template{
		ID:        "dummy",
		Name:      "Dummy",
		BaseStats: stats.Block{stats.MaxHP: 1000},
	})
	lib.AddAbility(&character.AbilityDef{
		ID:         "strike",
		Name:       "Strike",
		TargetType: "enemy",
		Damage:     &character.DamageSpec{Formula: "50.0 + caster.physicalDamage", Type: "physical"},
	})
	lib.Effects.Register(&effect.Def{
		ID: "toughness", Name: "Toughness", Duration: 3,
		StatModifiers: []stats.Modifier{{Stat: stats.MaxHP, Value: 500, Op: stats.OpAdd}},
	})
	lib.Effects.Register(&effect.Def{
		ID: "sunder", Name: "Sunder", IsDebuff: true, Duration: 2,
		StatModifiers: []stats.Modifier{{Stat: stats.Armor, Value: -5, Op: stats.OpAdd}},
	})
	return lib
}

type fixture struct {
	battle  *combat.Battle
	spawner *character.Spawner
	lib     *character.Library
}

func newFixture(t *testing.T, lib *character.Library, mgr *scripting.Manager) *fixture {
	t.Helper()
	logger := zap.NewNop()
	compiler, err := rules.NewCompiler()
	require.NoError(t, err)
	b := combat.NewBattle("", dice.NewLoggedRoller(neverRoll, logger), logger)
	s, err := character.NewBuilder(lib, compiler, logger).ForBattle(b, mgr)
	require.NoError(t, err)
	return &fixture{battle: b, spawner: s, lib: lib}
}

func (f *fixture) spawn(t *testing.T, template, team string) *combat.Character {
	t.Helper()
	c, err := f.spawner.Spawn(template, team)
	require.NoError(t, err)
	return c
}

// give adds def to c's action bar.
func (f *fixture) give(t *testing.T, c *combat.Character, def *character.AbilityDef) {
	t.Helper()
	require.NoError(t, def.Validate())
	a, err := f.spawner.Ability(def)
	require.NoError(t, err)
	c.AddAbility(a)
}

func (f *fixture) record() *[]event.Event {
	var out []event.Event
	f.battle.Bus().SubscribeAll(func(e event.Event) { out = append(out, e) })
	return &out
}

func ofType(events []event.Event, t event.Type) []event.Event {
	var out []event.Event
	for _, e := range events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
