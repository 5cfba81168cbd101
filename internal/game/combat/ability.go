package combat

// Outcome is what an ability's Action reports back to the turn loop.
type Outcome struct {
	// DoesNotEndTurn keeps the caster's turn open after the ability resolves.
	DoesNotEndTurn bool
}

// ActionContext is handed to an ability's Action once cost and cooldown are committed.
type ActionContext struct {
	Battle  *Battle
	Caster  *Character
	Ability *Ability
	// Targets are the validated targets, never empty.
	Targets []*Character
}

// Action is the content-supplied behaviour of an ability. It mutates battle
// state only through the Character and Battle API.
type Action func(ctx *ActionContext) (Outcome, error)

// Ability is one entry on a character's action bar.
type Ability struct {
	ID         string
	Name       string
	ManaCost   float64
	Cooldown   int
	TargetType TargetType
	Action     Action

	currentCooldown  int
	disabled         bool
	disabledDuration int
	owner            *Character
}

// NewAbility creates a ready ability.
//
// Precondition: id must be non-empty; cooldown >= 0.
func NewAbility(id, name string, manaCost float64, cooldown int, target TargetType, action Action) *Ability {
	if cooldown < 0 {
		cooldown = 0
	}
	return &Ability{
		ID:         id,
		Name:       name,
		ManaCost:   manaCost,
		Cooldown:   cooldown,
		TargetType: target,
		Action:     action,
	}
}

// Owner returns the character whose action bar holds the ability, or nil.
func (a *Ability) Owner() *Character { return a.owner }

// CurrentCooldown returns the turns remaining until the ability is ready; 0 means ready.
func (a *Ability) CurrentCooldown() int { return a.currentCooldown }

// IsDisabled reports whether an external effect has disabled the ability.
func (a *Ability) IsDisabled() bool { return a.disabled }

// DisabledDuration returns the turns remaining on the disable, or 0.
func (a *Ability) DisabledDuration() int { return a.disabledDuration }
