package ai

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/rules"
)

// ScriptCaller is the interface required by the Planner to evaluate Lua preconditions.
type ScriptCaller interface {
	// CallHook calls a named Lua function in the given scope's VM.
	// Returns (LNil, nil) if the function is not defined.
	CallHook(scope, hook string, args ...lua.LValue) (lua.LValue, error)
}

// ConditionTester evaluates CEL method conditions. *rules.Evaluator satisfies it.
type ConditionTester interface {
	Test(expr string, vars rules.Vars) (bool, error)
}

// PlannedAction is one primitive action produced by the planner.
type PlannedAction struct {
	Operator string
	Action   string // ActionUse or ActionPass
	Ability  string // empty for pass
	Target   string // resolved instance id; empty for pass or self-less abilities
}

// Planner evaluates an HTN domain for one character and produces an ordered
// list of candidate actions for its turn. The caller uses the first one that
// can actually be taken.
//
// Invariant: domain must not be nil.
type Planner struct {
	domain *Domain
	caller ScriptCaller
	cond   ConditionTester
	scope  string
	logger *zap.Logger
}

// NewPlanner constructs a Planner. A method whose Lua precondition or CEL
// condition cannot be evaluated, because caller or cond is nil or the call
// fails, is treated as not applicable.
//
// Precondition: domain must not be nil.
func NewPlanner(domain *Domain, caller ScriptCaller, cond ConditionTester, scope string, logger *zap.Logger) *Planner {
	if domain == nil {
		panic("ai.NewPlanner: domain must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{domain: domain, caller: caller, cond: cond, scope: scope, logger: logger}
}

// Domain returns the domain the planner evaluates.
func (p *Planner) Domain() *Domain { return p.domain }

// Plan evaluates the HTN domain against state and returns an ordered plan.
//
// Precondition: state and state.Self must not be nil.
// Postcondition: returns non-nil slice (may be empty); never returns error for
// script or condition failures (they are treated as precondition-false).
func (p *Planner) Plan(state *WorldState) ([]PlannedAction, error) {
	if state == nil || state.Self == nil {
		return nil, fmt.Errorf("ai.Planner.Plan: state and state.Self must not be nil")
	}

	taskQueue := []string{RootTask}
	var result []PlannedAction

	const maxDepth = 32 // guard against infinite loops
	steps := 0

	for len(taskQueue) > 0 && steps < maxDepth {
		steps++
		current := taskQueue[0]
		taskQueue = taskQueue[1:]

		// Primitive operator: resolve and emit.
		if op, ok := p.domain.OperatorByID(current); ok {
			pa := PlannedAction{Operator: op.ID, Action: op.Action}
			if op.Action == ActionUse {
				pa.Ability = op.Ability
				pa.Target = state.ResolveTarget(op.Target)
			}
			result = append(result, pa)
			continue
		}

		// Abstract task: find applicable method.
		method := p.findApplicableMethod(current, state)
		if method == nil {
			continue
		}

		// Prepend subtasks (preserves ordered decomposition).
		taskQueue = append(append([]string(nil), method.Subtasks...), taskQueue...)
	}

	if result == nil {
		result = []PlannedAction{}
	}
	return result, nil
}

// findApplicableMethod returns the first Method for taskID whose precondition
// and condition pass, or nil if none applies.
//
// Methods are tried in declaration order.
func (p *Planner) findApplicableMethod(taskID string, state *WorldState) *Method {
	for _, m := range p.domain.MethodsForTask(taskID) {
		if p.passes(m, state) {
			return m
		}
	}
	return nil
}

func (p *Planner) passes(m *Method, state *WorldState) bool {
	if m.Precondition != "" {
		if p.caller == nil {
			return false
		}
		val, err := p.caller.CallHook(p.scope, m.Precondition, lua.LString(state.Self.UID))
		if err != nil {
			p.logger.Debug("precondition failed",
				zap.String("domain", p.domain.ID), zap.String("method", m.ID), zap.Error(err))
			return false
		}
		if val != lua.LTrue {
			return false
		}
	}
	if m.Condition != "" {
		if p.cond == nil {
			return false
		}
		vars := rules.Vars{Caster: state.Self.vars(), Turn: state.Turn}
		if e := state.NearestEnemy(state.Self.UID); e != nil {
			vars.Target = e.vars()
		}
		ok, err := p.cond.Test(m.Condition, vars)
		if err != nil {
			p.logger.Debug("condition failed",
				zap.String("domain", p.domain.ID), zap.String("method", m.ID), zap.Error(err))
			return false
		}
		return ok
	}
	return true
}
