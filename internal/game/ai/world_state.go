package ai

// Target tokens understood by ResolveTarget.
const (
	TargetNone           = ""
	TargetSelf           = "self"
	TargetNearestEnemy   = "nearest_enemy"
	TargetWeakestEnemy   = "weakest_enemy"
	TargetStrongestEnemy = "strongest_enemy"
	TargetWeakestAlly    = "weakest_ally"
)

// ValidTarget reports whether token is a recognised target token.
func ValidTarget(token string) bool {
	switch token {
	case TargetNone, TargetSelf, TargetNearestEnemy, TargetWeakestEnemy, TargetStrongestEnemy, TargetWeakestAlly:
		return true
	}
	return false
}

// CombatantState captures a character's combat-relevant state at planning time.
type CombatantState struct {
	UID     string
	Name    string
	Team    string
	HP      float64
	MaxHP   float64
	Mana    float64
	MaxMana float64
	Dead    bool
}

// HPPercent returns current HP as a percentage of MaxHP; 0 if MaxHP == 0.
func (c *CombatantState) HPPercent() float64 {
	if c.MaxHP <= 0 {
		return 0
	}
	return c.HP / c.MaxHP * 100
}

// vars exposes the state to CEL conditions.
func (c *CombatantState) vars() map[string]float64 {
	if c == nil {
		return nil
	}
	return map[string]float64{
		"hp":      c.HP,
		"maxHp":   c.MaxHP,
		"mana":    c.Mana,
		"maxMana": c.MaxMana,
		"hpPct":   c.HPPercent(),
	}
}

// WorldState is the snapshot passed to the HTN planner for one character.
//
// Invariant: Self must not be nil and must also appear in Combatants.
type WorldState struct {
	Self       *CombatantState
	Turn       int
	Combatants []*CombatantState // the whole roster in join order
}

// EnemiesOf returns all living combatants on a different team from uid.
//
// Postcondition: returned slice contains no dead combatants and no same-team combatants.
func (ws *WorldState) EnemiesOf(uid string) []*CombatantState {
	team := ws.teamOf(uid)
	var out []*CombatantState
	for _, c := range ws.Combatants {
		if !c.Dead && c.UID != uid && c.Team != team {
			out = append(out, c)
		}
	}
	return out
}

// AlliesOf returns all living combatants on uid's team, excluding uid.
func (ws *WorldState) AlliesOf(uid string) []*CombatantState {
	team := ws.teamOf(uid)
	var out []*CombatantState
	for _, c := range ws.Combatants {
		if !c.Dead && c.UID != uid && c.Team == team {
			out = append(out, c)
		}
	}
	return out
}

func (ws *WorldState) teamOf(uid string) string {
	for _, c := range ws.Combatants {
		if c.UID == uid {
			return c.Team
		}
	}
	return ws.Self.Team
}

// HasLivingEnemies returns true when at least one living enemy exists.
//
// Postcondition: equivalent to len(EnemiesOf(uid)) > 0.
func (ws *WorldState) HasLivingEnemies(uid string) bool {
	return len(ws.EnemiesOf(uid)) > 0
}

// NearestEnemy returns the first living enemy (by Combatants order), or nil.
func (ws *WorldState) NearestEnemy(uid string) *CombatantState {
	enemies := ws.EnemiesOf(uid)
	if len(enemies) == 0 {
		return nil
	}
	return enemies[0]
}

// WeakestEnemy returns the living enemy with the lowest HP percentage, or nil.
//
// Postcondition: ties broken by order in Combatants.
func (ws *WorldState) WeakestEnemy(uid string) *CombatantState {
	return pick(ws.EnemiesOf(uid), func(a, b *CombatantState) bool { return a.HPPercent() < b.HPPercent() })
}

// StrongestEnemy returns the living enemy with the most current HP, or nil.
func (ws *WorldState) StrongestEnemy(uid string) *CombatantState {
	return pick(ws.EnemiesOf(uid), func(a, b *CombatantState) bool { return a.HP > b.HP })
}

// WeakestAlly returns the living ally, uid included, with the lowest HP
// percentage. uid wins ties.
func (ws *WorldState) WeakestAlly(uid string) *CombatantState {
	var self *CombatantState
	for _, c := range ws.Combatants {
		if c.UID == uid && !c.Dead {
			self = c
		}
	}
	cands := ws.AlliesOf(uid)
	if self != nil {
		cands = append([]*CombatantState{self}, cands...)
	}
	return pick(cands, func(a, b *CombatantState) bool { return a.HPPercent() < b.HPPercent() })
}

// pick returns the first element no other element is better than.
func pick(cs []*CombatantState, better func(a, b *CombatantState) bool) *CombatantState {
	if len(cs) == 0 {
		return nil
	}
	best := cs[0]
	for _, c := range cs[1:] {
		if better(c, best) {
			best = c
		}
	}
	return best
}

// ResolveTarget maps a target token to a combatant UID.
//
// Precondition: ws.Self must not be nil.
// Postcondition: returns "" for TargetNone and when no combatant matches.
func (ws *WorldState) ResolveTarget(token string) string {
	var c *CombatantState
	switch token {
	case TargetSelf:
		c = ws.Self
	case TargetNearestEnemy:
		c = ws.NearestEnemy(ws.Self.UID)
	case TargetWeakestEnemy:
		c = ws.WeakestEnemy(ws.Self.UID)
	case TargetStrongestEnemy:
		c = ws.StrongestEnemy(ws.Self.UID)
	case TargetWeakestAlly:
		c = ws.WeakestAlly(ws.Self.UID)
	}
	if c == nil {
		return ""
	}
	return c.UID
}
