package stats_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/raid/internal/game/stats"
)

func base() stats.Block {
	return stats.Block{
		stats.MaxHP:          1000,
		stats.MaxMana:        200,
		stats.PhysicalDamage: 100,
		stats.Armor:          20,
		stats.CritChance:     0.1,
	}
}

func TestCompute_NoModifiers_EqualsBase(t *testing.T) {
	out := stats.Compute(base(), nil, nil)
	assert.Equal(t, base(), out)
}

func TestCompute_AddsSum(t *testing.T) {
	out := stats.Compute(base(), []stats.Modifier{
		{Stat: stats.Armor, Value: -5, Op: stats.OpAdd},
		{Stat: stats.Armor, Value: -5, Op: stats.OpAdd},
	}, nil)
	// two -5 debuffs shred 10 points, not 5 and not compounded
	assert.Equal(t, 10.0, out.Get(stats.Armor))
}

func TestCompute_MultipliesSumBeforeApplying(t *testing.T) {
	out := stats.Compute(base(), []stats.Modifier{
		{Stat: stats.PhysicalDamage, Value: 0.5, Op: stats.OpMultiply},
		{Stat: stats.PhysicalDamage, Value: 0.5, Op: stats.OpMultiply},
	}, nil)
	assert.Equal(t, 200.0, out.Get(stats.PhysicalDamage))
}

func TestCompute_AddThenMultiply(t *testing.T) {
	out := stats.Compute(base(), []stats.Modifier{
		{Stat: stats.PhysicalDamage, Value: 0.5, Op: stats.OpMultiply},
		{Stat: stats.PhysicalDamage, Value: 20, Op: stats.OpAdd},
	}, nil)
	assert.Equal(t, 180.0, out.Get(stats.PhysicalDamage))
}

func TestCompute_LastSetWins(t *testing.T) {
	out := stats.Compute(base(), []stats.Modifier{
		{Stat: stats.Armor, Value: 50, Op: stats.OpAdd},
		{Stat: stats.Armor, Value: 0, Op: stats.OpSet},
		{Stat: stats.Armor, Value: 3, Op: stats.OpSet},
		{Stat: stats.Armor, Value: 2, Op: stats.OpMultiply},
	}, nil)
	assert.Equal(t, 3.0, out.Get(stats.Armor))
}

func TestCompute_MaxFlooredAtOne(t *testing.T) {
	out := stats.Compute(base(), []stats.Modifier{
		{Stat: stats.MaxHP, Value: -5000, Op: stats.OpAdd},
		{Stat: stats.MaxMana, Value: 0, Op: stats.OpSet},
	}, nil)
	assert.Equal(t, 1.0, out.Get(stats.MaxHP))
	assert.Equal(t, 1.0, out.Get(stats.MaxMana))
}

func TestCompute_UnknownStat_WarnsAndSkips(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	out := stats.Compute(base(), []stats.Modifier{
		{Stat: "armour", Value: 99, Op: stats.OpAdd},
		{Stat: stats.Armor, Value: 1, Op: "divide"},
	}, zap.New(core))
	assert.Equal(t, base(), out)
	require.Equal(t, 2, logs.Len())
	for _, e := range logs.All() {
		assert.Equal(t, zapcore.WarnLevel, e.Level)
	}
}

func TestCompute_DoesNotMutateBase(t *testing.T) {
	b := base()
	_ = stats.Compute(b, []stats.Modifier{{Stat: stats.Armor, Value: 10, Op: stats.OpAdd}}, nil)
	assert.Equal(t, 20.0, b.Get(stats.Armor))
}

func genModifier() *rapid.Generator[stats.Modifier] {
	return rapid.Custom(func(t *rapid.T) stats.Modifier {
		return stats.Modifier{
			Stat:  rapid.SampledFrom(stats.Keys()).Draw(t, "stat"),
			Value: rapid.Float64Range(-50, 50).Draw(t, "value"),
			Op:    rapid.SampledFrom([]stats.Operation{stats.OpAdd, stats.OpMultiply, stats.OpSet}).Draw(t, "op"),
		}
	})
}

func TestPropertyCompute_Deterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		mods := rapid.SliceOfN(genModifier(), 0, 20).Draw(t, "mods")
		first := stats.Compute(base(), mods, nil)
		second := stats.Compute(base(), mods, nil)
		assert.Equal(t, first, second, "Compute must be a pure function of its inputs")
	})
}

func TestPropertyCompute_MaximaNeverBelowOne(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		mods := rapid.SliceOfN(genModifier(), 0, 20).Draw(t, "mods")
		out := stats.Compute(base(), mods, nil)
		assert.GreaterOrEqual(t, out.Get(stats.MaxHP), 1.0)
		assert.GreaterOrEqual(t, out.Get(stats.MaxMana), 1.0)
	})
}

func TestPropertyCompute_AddOrderIrrelevant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		values := rapid.SliceOfN(rapid.IntRange(-20, 20), 1, 8).Draw(t, "values")
		var fwd, rev []stats.Modifier
		for i := range values {
			fwd = append(fwd, stats.Modifier{Stat: stats.Armor, Value: float64(values[i]), Op: stats.OpAdd})
			rev = append(rev, stats.Modifier{Stat: stats.Armor, Value: float64(values[len(values)-1-i]), Op: stats.OpAdd})
		}
		assert.Equal(t, stats.Compute(base(), fwd, nil), stats.Compute(base(), rev, nil))
	})
}
