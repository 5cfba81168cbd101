package ai

import (
	"github.com/cory-johannsen/raid/internal/game/combat"
)

// BuildWorldState constructs a WorldState snapshot of b for self.
//
// Precondition: b and self must not be nil; self must be on b's roster.
// Postcondition: ws.Self.UID == self.InstanceID; every roster member is represented.
func BuildWorldState(b *combat.Battle, self *combat.Character) *WorldState {
	ws := &WorldState{Turn: b.Turn()}
	for _, c := range b.Roster() {
		cs := &CombatantState{
			UID:     c.InstanceID,
			Name:    c.Name,
			Team:    c.Team,
			HP:      c.HP(),
			MaxHP:   c.MaxHP(),
			Mana:    c.Mana(),
			MaxMana: c.MaxMana(),
			Dead:    c.IsDead(),
		}
		if c == self {
			ws.Self = cs
		}
		ws.Combatants = append(ws.Combatants, cs)
	}
	return ws
}
