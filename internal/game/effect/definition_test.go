package effect_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/raid/internal/game/effect"
	"github.com/cory-johannsen/raid/internal/game/stats"
)

func TestRegistry_Get_Found(t *testing.T) {
	reg := effect.NewRegistry()
	def := &effect.Def{ID: "burn", Name: "Burn", Duration: 3, IsDebuff: true}
	reg.Register(def)
	got, ok := reg.Get("burn")
	require.True(t, ok)
	assert.Equal(t, def, got)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_IDs_Sorted(t *testing.T) {
	reg := effect.NewRegistry()
	for _, id := range []string{"stun", "burn", "regen"} {
		reg.Register(&effect.Def{ID: id, Name: id, Duration: 1})
	}
	assert.Equal(t, []string{"burn", "regen", "stun"}, reg.IDs())
}

func TestRegistry_Get_NotFound(t *testing.T) {
	reg := effect.NewRegistry()
	_, ok := reg.Get("nonexistent")
	assert.False(t, ok)
}

func TestRegistry_Register_NilPanics(t *testing.T) {
	reg := effect.NewRegistry()
	assert.Panics(t, func() { reg.Register(nil) })
	assert.Panics(t, func() { reg.Register(&effect.Def{Name: "no id"}) })
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "burn.yaml"), []byte(`
id: burn
name: Burn
icon: flame
is_debuff: true
duration: 3
periodic:
  phase: turn_end
  kind: damage
  amount: 40
  damage_type: magical
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shred.yaml"), []byte(`
id: armor_shred
name: Armor Shred
is_debuff: true
duration: 2
stat_modifiers:
  - stat: armor
    value: -5
    op: add
capabilities:
  damage_taken: 0.25
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	reg, err := effect.LoadDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	burn, ok := reg.Get("burn")
	require.True(t, ok)
	require.NotNil(t, burn.Periodic)
	assert.Equal(t, effect.PhaseTurnEnd, burn.Periodic.Phase)
	assert.Equal(t, effect.PeriodicDamage, burn.Periodic.Kind)
	assert.Equal(t, 40.0, burn.Periodic.Amount)

	shred, ok := reg.Get("armor_shred")
	require.True(t, ok)
	require.Len(t, shred.StatModifiers, 1)
	assert.Equal(t, stats.Modifier{Stat: stats.Armor, Value: -5, Op: stats.OpAdd}, shred.StatModifiers[0])
	assert.Equal(t, 0.25, shred.Capabilities.DamageTaken)
}

func TestLoadDirectory_UnknownField_Error(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(`
id: bad
name: Bad
duration: 1
stacks_forever: true
`), 0644))
	_, err := effect.LoadDirectory(dir)
	assert.Error(t, err)
}

func TestLoadDirectory_InvalidDef_Error(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zero.yaml"), []byte(`
id: zero
name: Zero
duration: 0
`), 0644))
	_, err := effect.LoadDirectory(dir)
	assert.Error(t, err)
}

func TestLoadDirectory_MissingDir_Error(t *testing.T) {
	_, err := effect.LoadDirectory(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestDef_Validate(t *testing.T) {
	cases := []struct {
		name string
		def  effect.Def
		ok   bool
	}{
		{"permanent", effect.Def{ID: "a", Name: "A", Duration: effect.Permanent}, true},
		{"no id", effect.Def{Name: "A", Duration: 1}, false},
		{"no name", effect.Def{ID: "a", Duration: 1}, false},
		{"bad op", effect.Def{ID: "a", Name: "A", Duration: 1, StatModifiers: []stats.Modifier{{Stat: stats.Armor, Op: "pow"}}}, false},
		{"bad phase", effect.Def{ID: "a", Name: "A", Duration: 1, Periodic: &effect.Periodic{Phase: "noon", Kind: effect.PeriodicHeal}}, false},
		{"bad kind", effect.Def{ID: "a", Name: "A", Duration: 1, Periodic: &effect.Periodic{Phase: effect.PhaseTurnEnd, Kind: "drain"}}, false},
		{"negative amount", effect.Def{ID: "a", Name: "A", Duration: 1, Periodic: &effect.Periodic{Phase: effect.PhaseTurnEnd, Kind: effect.PeriodicHeal, Amount: -1}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.def.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCapabilities_Merge(t *testing.T) {
	stun := effect.Capabilities{CantAct: true}
	mark := effect.Capabilities{DamageTaken: 1.25}
	guard := effect.Capabilities{DamageReduction: 0.3}
	got := stun.Merge(mark).Merge(guard)
	assert.True(t, got.CantAct)
	assert.False(t, got.Untargetable)
	assert.Equal(t, 1.25, got.DamageTaken)
	assert.Equal(t, 0.3, got.DamageReduction)
}

func TestPropertyCapabilities_MergeCommutative(t *testing.T) {
	gen := rapid.Custom(func(t *rapid.T) effect.Capabilities {
		return effect.Capabilities{
			CantAct:         rapid.Bool().Draw(t, "cant_act"),
			CantRestoreMana: rapid.Bool().Draw(t, "cant_restore_mana"),
			Untargetable:    rapid.Bool().Draw(t, "untargetable"),
			DamageTaken:     float64(rapid.IntRange(0, 4).Draw(t, "taken")) / 4,
			DamageReduction: float64(rapid.IntRange(0, 4).Draw(t, "reduction")) / 4,
			DamageDealt:     float64(rapid.IntRange(0, 4).Draw(t, "dealt")) / 4,
		}
	})
	rapid.Check(t, func(t *rapid.T) {
		a := gen.Draw(t, "a")
		b := gen.Draw(t, "b")
		assert.Equal(t, a.Merge(b), b.Merge(a))
	})
}
