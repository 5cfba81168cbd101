// Package effect defines buff and debuff content records and their registry.
package effect

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/raid/internal/game/stats"
)

// Permanent is the duration of an effect that never expires on its own.
const Permanent = -1

// Phase selects the turn boundary a periodic effect ticks on.
type Phase string

const (
	PhaseTurnStart Phase = "turn_start"
	PhaseTurnEnd   Phase = "turn_end"
)

// PeriodicKind selects what a periodic tick does to its owner.
type PeriodicKind string

const (
	PeriodicDamage PeriodicKind = "damage"
	PeriodicHeal   PeriodicKind = "heal"
	PeriodicMana   PeriodicKind = "mana"
)

// Periodic describes a damage-over-time or restore-over-time tick.
type Periodic struct {
	Phase      Phase        `yaml:"phase"`
	Kind       PeriodicKind `yaml:"kind"`
	Amount     float64      `yaml:"amount"`
	DamageType string       `yaml:"damage_type"` // physical | magical | pure; damage ticks only
}

// Capabilities are the typed flags the resolver and scheduler read from
// every active effect. They compose across effects.
type Capabilities struct {
	CantAct         bool `yaml:"cant_act"`
	CantRestoreMana bool `yaml:"cant_restore_mana"`
	Untargetable    bool `yaml:"untargetable"`
	// DamageTaken is a fraction added to incoming damage after mitigation;
	// 1.25 means +125% damage taken.
	DamageTaken float64 `yaml:"damage_taken"`
	// DamageReduction is a fraction removed from incoming damage after
	// mitigation; summed across effects and capped at 1.
	DamageReduction float64 `yaml:"damage_reduction"`
	// DamageDealt is a fraction added to outgoing damage before mitigation.
	DamageDealt float64 `yaml:"damage_dealt"`
}

// Merge returns the composition of c and o.
func (c Capabilities) Merge(o Capabilities) Capabilities {
	return Capabilities{
		CantAct:         c.CantAct || o.CantAct,
		CantRestoreMana: c.CantRestoreMana || o.CantRestoreMana,
		Untargetable:    c.Untargetable || o.Untargetable,
		DamageTaken:     c.DamageTaken + o.DamageTaken,
		DamageReduction: c.DamageReduction + o.DamageReduction,
		DamageDealt:     c.DamageDealt + o.DamageDealt,
	}
}

// Def is the static definition of a buff or debuff, loaded from YAML.
type Def struct {
	ID            string           `yaml:"id"`
	Name          string           `yaml:"name"`
	Icon          string           `yaml:"icon"`
	Description   string           `yaml:"description"`
	IsDebuff      bool             `yaml:"is_debuff"`
	Duration      int              `yaml:"duration"` // turns; Permanent (-1) never expires
	StatModifiers []stats.Modifier `yaml:"stat_modifiers"`
	Capabilities  Capabilities     `yaml:"capabilities"`
	Periodic      *Periodic        `yaml:"periodic"`
	LuaOnApply    string           `yaml:"lua_on_apply"`
	LuaOnRemove   string           `yaml:"lua_on_remove"`
	LuaOnTick     string           `yaml:"lua_on_tick"`
}

// Validate checks the definition's structural invariants. Unknown stat keys
// are not rejected here: they are content errors logged when stats are
// recomputed.
//
// Postcondition: Returns nil iff ID and Name are set, Duration is Permanent or
// >= 1, every modifier operation is known, and Periodic (when set) is well formed.
func (d *Def) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("effect: id must not be empty")
	}
	if d.Name == "" {
		return fmt.Errorf("effect %q: name must not be empty", d.ID)
	}
	if d.Duration != Permanent && d.Duration < 1 {
		return fmt.Errorf("effect %q: duration must be >= 1 or %d (permanent), got %d", d.ID, Permanent, d.Duration)
	}
	for i, m := range d.StatModifiers {
		if !m.Op.Valid() {
			return fmt.Errorf("effect %q: stat_modifiers[%d]: unknown op %q", d.ID, i, m.Op)
		}
	}
	if p := d.Periodic; p != nil {
		if p.Phase != PhaseTurnStart && p.Phase != PhaseTurnEnd {
			return fmt.Errorf("effect %q: periodic.phase must be turn_start or turn_end, got %q", d.ID, p.Phase)
		}
		switch p.Kind {
		case PeriodicDamage, PeriodicHeal, PeriodicMana:
		default:
			return fmt.Errorf("effect %q: periodic.kind must be damage, heal or mana, got %q", d.ID, p.Kind)
		}
		if p.Amount < 0 {
			return fmt.Errorf("effect %q: periodic.amount must be >= 0", d.ID)
		}
	}
	return nil
}

// Registry holds all known Defs keyed by ID.
type Registry struct {
	defs map[string]*Def
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Def)}
}

// Register adds def to the registry, overwriting any existing entry with the same ID.
// Precondition: def must not be nil and def.ID must not be empty.
func (r *Registry) Register(def *Def) {
	if def == nil || def.ID == "" {
		panic("effect.Registry.Register: precondition violated: def must be non-nil with an id")
	}
	r.defs[def.ID] = def
}

// Get returns the Def for id, or (nil, false) if not found.
func (r *Registry) Get(id string) (*Def, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int { return len(r.defs) }

// IDs returns every registered id in lexical order.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.defs))
	for id := range r.defs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LoadDirectory reads every *.yaml file in dir, parses each as a Def, and
// returns a populated Registry.
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error if any file fails to parse or validate.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading effect dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var def Def
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("validating %q: %w", path, err)
		}
		reg.Register(&def)
	}
	return reg, nil
}
