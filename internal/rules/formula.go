// Package rules evaluates ability formulas written in CEL.
//
// A formula sees the caster's and target's effective stats as maps of
// doubles and may call roll("2d6"), which returns the rolled total as a
// double. All arithmetic is in doubles: write 50.0, not 50.
package rules

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// ErrNotANumber is returned by Eval when a formula produces NaN, such as
// 0.0 / 0.0. Infinite results are returned as they are.
var ErrNotANumber = errors.New("rules: formula produced NaN")

// RollFunc rolls a dice expression and returns its total.
type RollFunc func(expr string) (int, error)

// Vars is the activation a formula is evaluated against.
type Vars struct {
	Caster map[string]float64
	Target map[string]float64
	Turn   int
}

func (v Vars) activation() map[string]any {
	caster, target := v.Caster, v.Target
	if caster == nil {
		caster = map[string]float64{}
	}
	if target == nil {
		target = map[string]float64{}
	}
	return map[string]any{"caster": caster, "target": target, "turn": v.Turn}
}

func newEnv(roll RollFunc) (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("caster", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Variable("target", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Variable("turn", cel.IntType),
		cel.Function("roll",
			cel.Overload("roll_string",
				[]*cel.Type{cel.StringType},
				cel.DoubleType,
				cel.UnaryBinding(func(arg ref.Val) ref.Val {
					s, ok := arg.Value().(string)
					if !ok {
						return types.NewErr("roll: expected string, got %s", arg.Type())
					}
					n, err := roll(s)
					if err != nil {
						return types.NewErr("roll(%q): %v", s, err)
					}
					return types.Double(n)
				}),
			),
		),
	)
}

// Compiler type-checks formulas once and caches the result. It is safe for
// concurrent use and is shared by every battle.
type Compiler struct {
	env *cel.Env

	mu   sync.RWMutex
	asts map[string]*cel.Ast
}

// NewCompiler builds the shared formula environment.
//
// Postcondition: Returns a non-nil Compiler or an error.
func NewCompiler() (*Compiler, error) {
	env, err := newEnv(func(string) (int, error) {
		return 0, fmt.Errorf("no roller bound")
	})
	if err != nil {
		return nil, fmt.Errorf("building formula environment: %w", err)
	}
	return &Compiler{env: env, asts: make(map[string]*cel.Ast)}, nil
}

// Compile type-checks expr and caches it.
//
// Postcondition: Returns an error if expr does not parse, does not type-check,
// or does not produce a number.
func (c *Compiler) Compile(expr string) (*cel.Ast, error) {
	return c.compile(expr, "a number", "double", "int", "dyn")
}

// CompileCondition is Compile for expressions that must yield a bool.
func (c *Compiler) CompileCondition(expr string) (*cel.Ast, error) {
	return c.compile(expr, "a bool", "bool", "dyn")
}

func (c *Compiler) compile(expr, want string, accept ...string) (*cel.Ast, error) {
	c.mu.RLock()
	ast, ok := c.asts[expr]
	c.mu.RUnlock()
	if !ok {
		var iss *cel.Issues
		ast, iss = c.env.Compile(expr)
		if iss.Err() != nil {
			return nil, fmt.Errorf("compiling formula %q: %w", expr, iss.Err())
		}
		c.mu.Lock()
		c.asts[expr] = ast
		c.mu.Unlock()
	}
	out := ast.OutputType().String()
	for _, a := range accept {
		if out == a {
			return ast, nil
		}
	}
	return nil, fmt.Errorf("formula %q yields %s, want %s", expr, ast.OutputType(), want)
}

// Evaluator runs formulas with one battle's dice. It is not safe for
// concurrent use.
type Evaluator struct {
	compiler *Compiler
	env      *cel.Env
	programs map[string]cel.Program
	// rollErr is the first roll() failure of the evaluation in progress.
	rollErr error
}

// Evaluator returns a formula evaluator whose roll() uses roll.
//
// Precondition: roll must not be nil.
// Postcondition: an evaluation failing in roll() returns an error wrapping
// the error roll returned.
func (c *Compiler) Evaluator(roll RollFunc) (*Evaluator, error) {
	ev := &Evaluator{compiler: c, programs: make(map[string]cel.Program)}
	env, err := newEnv(func(expr string) (int, error) {
		n, err := roll(expr)
		if err != nil && ev.rollErr == nil {
			ev.rollErr = err
		}
		return n, err
	})
	if err != nil {
		return nil, fmt.Errorf("building formula environment: %w", err)
	}
	ev.env = env
	return ev, nil
}

// Eval evaluates expr against vars.
//
// Postcondition: Returns the numeric result, or an error for a bad formula,
// a NaN result, or a runtime failure such as a missing stat key.
func (e *Evaluator) Eval(expr string, vars Vars) (float64, error) {
	out, err := e.run(expr, vars, e.compiler.Compile)
	if err != nil {
		return 0, err
	}
	switch v := out.(type) {
	case float64:
		if math.IsNaN(v) {
			return 0, fmt.Errorf("formula %q: %w", expr, ErrNotANumber)
		}
		return v, nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("formula %q produced %T, want a number", expr, v)
	}
}

// Test evaluates a boolean condition such as "caster.hp < caster.maxHp * 0.5".
func (e *Evaluator) Test(expr string, vars Vars) (bool, error) {
	out, err := e.run(expr, vars, e.compiler.CompileCondition)
	if err != nil {
		return false, err
	}
	v, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q produced %T, want a bool", expr, out)
	}
	return v, nil
}

func (e *Evaluator) run(expr string, vars Vars, compile func(string) (*cel.Ast, error)) (any, error) {
	prg, ok := e.programs[expr]
	if !ok {
		ast, err := compile(expr)
		if err != nil {
			return nil, err
		}
		prg, err = e.env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("planning formula %q: %w", expr, err)
		}
		e.programs[expr] = prg
	}
	e.rollErr = nil
	out, _, err := prg.Eval(vars.activation())
	if err != nil {
		if e.rollErr != nil {
			return nil, fmt.Errorf("evaluating formula %q: %w", expr, e.rollErr)
		}
		return nil, fmt.Errorf("evaluating formula %q: %w", expr, err)
	}
	return out.Value(), nil
}
