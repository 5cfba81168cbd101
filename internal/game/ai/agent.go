package ai

import (
	"github.com/cory-johannsen/raid/internal/game/combat"
)

// maxActionsPerTurn bounds the abilities one turn may chain through
// does_not_end_turn before the agent passes.
const maxActionsPerTurn = 8

// Agent takes turns for a computer-controlled character. With a planner it
// follows the HTN plan; without one it uses the first ready ability on its
// action bar.
type Agent struct {
	planner *Planner
}

// NewAgent returns an Agent. A nil planner selects the action-bar order policy.
func NewAgent(planner *Planner) *Agent {
	return &Agent{planner: planner}
}

// TakeTurn acts for c during its open turn and always leaves the turn closed.
//
// Precondition: c must be b's current actor and the turn must be open.
// Postcondition: b.InTurn() is false on a nil return.
func (a *Agent) TakeTurn(b *combat.Battle, c *combat.Character) error {
	for i := 0; i < maxActionsPerTurn; i++ {
		if !b.InTurn() {
			return nil
		}
		if b.Over() || !c.CanAct() {
			return b.Pass()
		}
		plan, err := a.plan(BuildWorldState(b, c), c)
		if err != nil {
			return err
		}
		acted, err := execute(b, c, plan)
		if err != nil {
			return err
		}
		if !acted {
			return b.Pass()
		}
	}
	if b.InTurn() {
		return b.Pass()
	}
	return nil
}

func (a *Agent) plan(ws *WorldState, c *combat.Character) ([]PlannedAction, error) {
	if a.planner != nil {
		return a.planner.Plan(ws)
	}
	var plan []PlannedAction
	for _, ab := range c.Abilities() {
		plan = append(plan, PlannedAction{
			Action:  ActionUse,
			Ability: ab.ID,
			Target:  ws.ResolveTarget(targetFor(ab.TargetType)),
		})
	}
	return plan, nil
}

// targetFor is the default target token for an ability's target type.
func targetFor(tt combat.TargetType) string {
	switch tt {
	case combat.TargetEnemy, combat.TargetAnyExceptSelf:
		return TargetWeakestEnemy
	case combat.TargetAlly:
		return TargetWeakestAlly
	}
	return TargetNone
}

// execute takes the first action of plan that the scheduler accepts.
//
// Postcondition: acted is false when no action was taken; the turn is then
// still open.
func execute(b *combat.Battle, c *combat.Character, plan []PlannedAction) (acted bool, err error) {
	for _, pa := range plan {
		switch pa.Action {
		case ActionPass:
			return true, b.Pass()
		case ActionUse:
			ab := c.Ability(pa.Ability)
			if ab == nil || !b.Scheduler().CanUse(c, ab).OK {
				continue
			}
			var targets []*combat.Character
			if t := b.Character(pa.Target); t != nil {
				targets = append(targets, t)
			}
			res, err := b.Act(ab.ID, targets...)
			if err != nil {
				return true, err
			}
			if res.Check.OK {
				return true, nil
			}
		}
	}
	return false, nil
}
