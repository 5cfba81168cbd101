package combat_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/game/combat"
	"github.com/cory-johannsen/raid/internal/game/dice"
	"github.com/cory-johannsen/raid/internal/game/event"
	"github.com/cory-johannsen/raid/internal/game/stats"
)

// fixedSource always returns val, clamped into [0, n).
type fixedSource struct{ val int }

func (f fixedSource) Intn(n int) int {
	if f.val >= n {
		return n - 1
	}
	return f.val
}

// neverRoll makes every chance roll with p < 1 fail.
var neverRoll = fixedSource{val: 999_999}

// alwaysRoll makes every chance roll with p > 0 succeed.
var alwaysRoll = fixedSource{val: 0}

func newBattle(t *testing.T, src dice.Source, opts ...combat.Option) *combat.Battle {
	t.Helper()
	logger := zap.NewNop()
	return combat.NewBattle("", dice.NewLoggedRoller(src, logger), logger, opts...)
}

func join(t *testing.T, b *combat.Battle, name, team string, base stats.Block) *combat.Character {
	t.Helper()
	c := combat.NewCharacter(name, name, team, base)
	require.NoError(t, b.Join(c))
	return c
}

// duel returns a battle with A on team "red" and B on team "blue".
func duel(t *testing.T, src dice.Source, a, b stats.Block) (*combat.Battle, *combat.Character, *combat.Character) {
	t.Helper()
	bt := newBattle(t, src)
	return bt, join(t, bt, "A", "red", a), join(t, bt, "B", "blue", b)
}

type recorder struct{ events []event.Event }

func record(b *combat.Battle) *recorder {
	r := &recorder{}
	b.Bus().SubscribeAll(func(e event.Event) { r.events = append(r.events, e) })
	return r
}

func (r *recorder) of(t event.Type) []event.Event {
	var out []event.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) types() []event.Type {
	out := make([]event.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func hp(v float64) stats.Block { return stats.Block{stats.MaxHP: v} }

// round plays one full round in which every living character passes.
func round(t *testing.T, b *combat.Battle) {
	t.Helper()
	for range b.Living() {
		_, err := b.BeginTurn()
		require.NoError(t, err)
		require.NoError(t, b.Pass())
	}
}

func debuff(id string, duration int, mods ...stats.Modifier) *combat.Effect {
	e := combat.NewEffect(id, id, duration)
	e.IsDebuff = true
	e.StatModifiers = mods
	return e
}

func diceSeeded(seed uint64) dice.Source { return dice.NewSeededSource(seed) }

func nopLogger() *zap.Logger { return zap.NewNop() }
