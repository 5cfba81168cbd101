// Package ai picks what a computer-controlled character does on its turn.
//
// A Domain is a small hierarchical task network: the planner expands RootTask
// through the first applicable method of each task until it reaches
// operators, and each operator names an ability and a target token. Method
// applicability is a Lua precondition, a CEL condition, or both.
package ai

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RootTask is the task every plan starts from.
const RootTask = "behave"

// ErrInvalidDomain is wrapped by every Validate failure.
var ErrInvalidDomain = errors.New("ai: invalid domain")

// Task is a goal expanded by its methods.
type Task struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
}

// Method is one way to expand TaskID. Subtasks are task or operator IDs and
// run in order. Precondition names a Lua function; Condition is a CEL
// boolean such as "caster.hpPct < 0.5". An empty one always passes.
type Method struct {
	TaskID       string   `yaml:"task"`
	ID           string   `yaml:"id"`
	Precondition string   `yaml:"precondition"`
	Condition    string   `yaml:"condition"`
	Subtasks     []string `yaml:"subtasks"`
}

// Operator actions.
const (
	ActionUse  = "use"
	ActionPass = "pass"
)

// Operator is a leaf of the network: use Ability on Target, or pass.
type Operator struct {
	ID      string `yaml:"id"`
	Action  string `yaml:"action"`
	Ability string `yaml:"ability"`
	Target  string `yaml:"target"` // see ValidTarget
}

// Domain is one AI personality, loaded from a file under content/ai.
//
// Invariant: after Validate, IDs are unique per kind, RootTask is declared,
// every task has a method and every subtask resolves.
type Domain struct {
	ID          string      `yaml:"id"`
	Description string      `yaml:"description"`
	Tasks       []*Task     `yaml:"tasks"`
	Methods     []*Method   `yaml:"methods"`
	Operators   []*Operator `yaml:"operators"`
}

// Validate reports every problem of d at once.
//
// Postcondition: a non-nil error wraps ErrInvalidDomain and joins one line per
// problem.
func (d *Domain) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	if d.ID == "" {
		add("id must not be empty")
	}

	tasks := make(map[string]bool, len(d.Tasks))
	for i, t := range d.Tasks {
		switch {
		case t == nil || t.ID == "":
			add("task %d: id must not be empty", i)
		case tasks[t.ID]:
			add("duplicate task %q", t.ID)
		default:
			tasks[t.ID] = true
		}
	}
	if !tasks[RootTask] {
		add("root task %q is not declared", RootTask)
	}

	ops := make(map[string]bool, len(d.Operators))
	for i, op := range d.Operators {
		if op == nil || op.ID == "" {
			add("operator %d: id must not be empty", i)
			continue
		}
		if ops[op.ID] {
			add("duplicate operator %q", op.ID)
		}
		if tasks[op.ID] {
			add("operator %q shadows a task", op.ID)
		}
		ops[op.ID] = true
		switch op.Action {
		case ActionPass:
		case ActionUse:
			if op.Ability == "" {
				add("operator %q: use requires an ability", op.ID)
			}
			if !ValidTarget(op.Target) {
				add("operator %q: unknown target %q", op.ID, op.Target)
			}
		default:
			add("operator %q: unknown action %q", op.ID, op.Action)
		}
	}

	methods := make(map[string]bool, len(d.Methods))
	expanded := make(map[string]bool, len(d.Tasks))
	for i, m := range d.Methods {
		if m == nil || m.ID == "" {
			add("method %d: id must not be empty", i)
			continue
		}
		if methods[m.ID] {
			add("duplicate method %q", m.ID)
		}
		methods[m.ID] = true
		if !tasks[m.TaskID] {
			add("method %q: unknown task %q", m.ID, m.TaskID)
		}
		expanded[m.TaskID] = true
		if len(m.Subtasks) == 0 {
			add("method %q: subtasks must not be empty", m.ID)
		}
		for _, sub := range m.Subtasks {
			if !tasks[sub] && !ops[sub] {
				add("method %q: subtask %q is neither a task nor an operator", m.ID, sub)
			}
		}
	}
	for _, t := range d.Tasks {
		if t != nil && t.ID != "" && !expanded[t.ID] {
			add("task %q has no method", t.ID)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w %q:\n  %s", ErrInvalidDomain, d.ID, strings.Join(problems, "\n  "))
}

// OperatorByID returns the operator with the given ID, or false if not found.
func (d *Domain) OperatorByID(id string) (*Operator, bool) {
	for _, op := range d.Operators {
		if op.ID == id {
			return op, true
		}
	}
	return nil, false
}

// MethodsForTask returns the methods of taskID in declaration order, which is
// the order the planner tries them.
func (d *Domain) MethodsForTask(taskID string) []*Method {
	var out []*Method
	for _, m := range d.Methods {
		if m.TaskID == taskID {
			out = append(out, m)
		}
	}
	return out
}

type domainFile struct {
	Domain *Domain `yaml:"domain"`
}

// decodeDomain strictly decodes one file: unknown keys are errors.
func decodeDomain(name string, data []byte) (*Domain, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f domainFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if f.Domain == nil {
		return nil, fmt.Errorf("%s: missing top-level 'domain' key", name)
	}
	if err := f.Domain.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return f.Domain, nil
}

// LoadDomains loads every *.yaml file of dir in name order.
//
// Postcondition: a missing dir yields (nil, nil); otherwise the error joins
// the failure of every bad file and no domains are returned.
func LoadDomains(dir string) ([]*Domain, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ai.LoadDomains: %w", err)
	}
	var (
		domains []*Domain
		errs    []error
	)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		d, err := decodeDomain(e.Name(), data)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		domains = append(domains, d)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("ai.LoadDomains: %w", errors.Join(errs...))
	}
	return domains, nil
}
