package character

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/raid/internal/game/ai"
	"github.com/cory-johannsen/raid/internal/game/effect"
)

// Content directory layout read by LoadLibrary.
const (
	TemplatesDir = "templates"
	AbilitiesDir = "abilities"
	EffectsDir   = "effects"
	AIDir        = "ai"
)

// Library holds every template, ability, effect and AI domain of one content tree.
type Library struct {
	Templates map[string]*Template
	Abilities map[string]*AbilityDef
	Effects   *effect.Registry
	Domains   *ai.Registry
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{
		Templates: make(map[string]*Template),
		Abilities: make(map[string]*AbilityDef),
		Effects:   effect.NewRegistry(),
		Domains:   ai.NewRegistry(),
	}
}

// AddTemplate registers t, replacing any template with the same id.
// Precondition: t must not be nil and t.ID must not be empty.
func (l *Library) AddTemplate(t *Template) {
	if t == nil || t.ID == "" {
		panic("character.Library.AddTemplate: precondition violated: template must be non-nil with an id")
	}
	l.Templates[t.ID] = t
}

// AddAbility registers d, replacing any ability with the same id.
// Precondition: d must not be nil and d.ID must not be empty.
func (l *Library) AddAbility(d *AbilityDef) {
	if d == nil || d.ID == "" {
		panic("character.Library.AddAbility: precondition violated: ability must be non-nil with an id")
	}
	l.Abilities[d.ID] = d
}

// TemplateIDs returns every template id in lexical order.
func (l *Library) TemplateIDs() []string {
	out := make([]string, 0, len(l.Templates))
	for id := range l.Templates {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Validate checks that every ability, talent and AI domain a template names
// exists, and that every ability an AI domain uses exists.
//
// Postcondition: Returns nil, or one error listing every dangling reference.
func (l *Library) Validate() error {
	var errs []error
	for _, id := range l.TemplateIDs() {
		t := l.Templates[id]
		for _, a := range t.Abilities {
			if _, ok := l.Abilities[a]; !ok {
				errs = append(errs, fmt.Errorf("template %q: unknown ability %q", id, a))
			}
		}
		for _, e := range t.Talents {
			if _, ok := l.Effects.Get(e); !ok {
				errs = append(errs, fmt.Errorf("template %q: unknown talent effect %q", id, e))
			}
		}
		if t.AI != "" {
			if _, ok := l.Domains.Domain(t.AI); !ok {
				errs = append(errs, fmt.Errorf("template %q: unknown ai domain %q", id, t.AI))
			}
		}
	}
	for _, id := range l.Domains.IDs() {
		d, _ := l.Domains.Domain(id)
		for _, op := range d.Operators {
			if op.Action != ai.ActionUse {
				continue
			}
			if _, ok := l.Abilities[op.Ability]; !ok {
				errs = append(errs, fmt.Errorf("ai domain %q operator %q: unknown ability %q", id, op.ID, op.Ability))
			}
		}
	}
	ids := make([]string, 0, len(l.Abilities))
	for id := range l.Abilities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, e := range l.Abilities[id].ApplyEffects {
			if _, ok := l.Effects.Get(e); !ok {
				errs = append(errs, fmt.Errorf("ability %q: unknown effect %q", id, e))
			}
		}
	}
	return errors.Join(errs...)
}

// LoadLibrary reads templates/, abilities/, effects/ and ai/ under root. A missing
// subdirectory contributes nothing.
//
// Precondition: root must be a readable directory.
// Postcondition: Returns a validated Library or a non-nil error.
func LoadLibrary(root string) (*Library, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("reading content dir %q: %w", root, err)
	}
	lib := NewLibrary()

	if dir := filepath.Join(root, EffectsDir); exists(dir) {
		reg, err := effect.LoadDirectory(dir)
		if err != nil {
			return nil, err
		}
		lib.Effects = reg
	}

	domains, err := ai.LoadRegistry(filepath.Join(root, AIDir))
	if err != nil {
		return nil, err
	}
	lib.Domains = domains

	tmpls, err := LoadTemplates(filepath.Join(root, TemplatesDir))
	if err != nil {
		return nil, err
	}
	for _, t := range tmpls {
		lib.AddTemplate(t)
	}

	abilities, err := LoadAbilities(filepath.Join(root, AbilitiesDir))
	if err != nil {
		return nil, err
	}
	for _, a := range abilities {
		lib.AddAbility(a)
	}

	if err := lib.Validate(); err != nil {
		return nil, fmt.Errorf("validating content %q: %w", root, err)
	}
	return lib, nil
}

// LoadTemplates parses every .yaml file in dir as a Template. A missing dir
// yields no templates.
//
// Postcondition: Returns all validated templates or a non-nil error.
func LoadTemplates(dir string) ([]*Template, error) {
	var out []*Template
	err := eachYAML(dir, func(path string, dec *yaml.Decoder) error {
		var t Template
		if err := dec.Decode(&t); err != nil {
			return fmt.Errorf("parsing template file %s: %w", path, err)
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("validating %s: %w", path, err)
		}
		out = append(out, &t)
		return nil
	})
	return out, err
}

// LoadAbilities parses every .yaml file in dir as an AbilityDef. A missing dir
// yields no abilities.
//
// Postcondition: Returns all validated definitions or a non-nil error.
func LoadAbilities(dir string) ([]*AbilityDef, error) {
	var out []*AbilityDef
	err := eachYAML(dir, func(path string, dec *yaml.Decoder) error {
		var d AbilityDef
		if err := dec.Decode(&d); err != nil {
			return fmt.Errorf("parsing ability file %s: %w", path, err)
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("validating %s: %w", path, err)
		}
		out = append(out, &d)
		return nil
	})
	return out, err
}

func eachYAML(dir string, fn func(path string, dec *yaml.Decoder) error) error {
	if !exists(dir) {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := fn(path, dec); err != nil {
			return err
		}
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
