package combat

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/game/dice"
	"github.com/cory-johannsen/raid/internal/game/event"
	"github.com/cory-johannsen/raid/internal/game/stats"
)

// ScriptHost runs named content scripts on behalf of a battle.
type ScriptHost interface {
	// CallAbility runs the script bound to an ability use.
	CallAbility(name string, ctx *ActionContext) (Outcome, error)
	// CallEffectHook runs an effect lifecycle script. Script errors are
	// logged by the host and never propagate.
	CallEffectHook(name string, owner *Character, e *Effect)
}

// Option configures a Battle at construction.
type Option func(*Battle)

// WithRules replaces DefaultRules. A critical multiplier <= 1 falls back to
// the default and a mitigation cap outside (0, 1] becomes 1.
func WithRules(r Rules) Option {
	return func(b *Battle) {
		def := DefaultRules()
		if r.DefaultCritMultiplier <= 1 {
			r.DefaultCritMultiplier = def.DefaultCritMultiplier
		}
		if r.MaxMitigation <= 0 || r.MaxMitigation > 1 {
			r.MaxMitigation = def.MaxMitigation
		}
		if r.ManaRegenPerTurn < 0 {
			r.ManaRegenPerTurn = 0
		}
		b.rules = r
	}
}

// WithScripts binds a script host for Lua-backed abilities and effect hooks.
func WithScripts(h ScriptHost) Option {
	return func(b *Battle) { b.scripts = h }
}

// Battle owns one roster of characters, their effects, the event bus and the
// turn order. A Battle is single-threaded: every method must be called from
// the goroutine driving the battle.
type Battle struct {
	ID string

	rules     Rules
	logger    *zap.Logger
	bus       *event.Bus
	roller    *dice.Roller
	resolver  *Resolver
	scheduler *Scheduler
	scripts   ScriptHost

	roster    []*Character
	turnIndex int
	turn      int
	current   *Character
	inTurn    bool
	over      bool
	winner    string
}

// NewBattle creates an empty battle. An empty id is replaced by a fresh UUID.
//
// Precondition: roller must not be nil.
// Postcondition: Returns a battle with turn 0 and no characters.
func NewBattle(id string, roller *dice.Roller, logger *zap.Logger, opts ...Option) *Battle {
	if id == "" {
		id = uuid.New().String()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Battle{
		ID:     id,
		rules:  DefaultRules(),
		logger: logger.With(zap.String("battle", id)),
		bus:    event.NewBus(),
		roller: roller,
	}
	for _, o := range opts {
		o(b)
	}
	b.resolver = &Resolver{battle: b, roller: roller, rules: b.rules, logger: b.logger}
	b.scheduler = &Scheduler{battle: b, logger: b.logger}
	return b
}

// SetScripts binds a script host after construction. Content builders that
// need the battle to exist before their host can be created use this.
func (b *Battle) SetScripts(h ScriptHost) { b.scripts = h }

func (b *Battle) Bus() *event.Bus { return b.bus }
func (b *Battle) Resolver() *Resolver { return b.resolver }
func (b *Battle) Scheduler() *Scheduler { return b.scheduler }
func (b *Battle) Roller() *dice.Roller { return b.roller }
func (b *Battle) Rules() Rules { return b.rules }
func (b *Battle) Logger() *zap.Logger { return b.logger }
func (b *Battle) Scripts() ScriptHost { return b.scripts }
func (b *Battle) Turn() int { return b.turn }
func (b *Battle) Current() *Character { return b.current }
func (b *Battle) Over() bool { return b.over }
func (b *Battle) InTurn() bool { return b.inTurn }

// Winner returns the winning team, or "" while the battle runs or when every
// team died at once.
func (b *Battle) Winner() string { return b.winner }

func (b *Battle) publish(ev event.Event) {
	ev.Turn = b.turn
	b.bus.Publish(ev)
}

// Join adds c to the roster. Turn order is join order.
//
// Precondition: c must not be nil.
// Postcondition: c.Battle() == b, or an error if c belongs to another battle.
func (b *Battle) Join(c *Character) error {
	if c.battle == b {
		return nil
	}
	if c.battle != nil {
		return fmt.Errorf("character %q already joined battle %q", c.Name, c.battle.ID)
	}
	c.battle = b
	b.roster = append(b.roster, c)
	b.logger.Debug("character joined",
		zap.String("character", c.Name),
		zap.String("instance", c.InstanceID),
		zap.String("team", c.Team),
	)
	return nil
}

// Roster returns every character in join order, dead ones included.
func (b *Battle) Roster() []*Character {
	out := make([]*Character, len(b.roster))
	copy(out, b.roster)
	return out
}

// Character returns the character with the given instance id, or nil.
func (b *Battle) Character(instanceID string) *Character {
	for _, c := range b.roster {
		if c.InstanceID == instanceID {
			return c
		}
	}
	return nil
}

// Living returns the characters that are not dead, in join order.
func (b *Battle) Living() []*Character {
	var out []*Character
	for _, c := range b.roster {
		if !c.dead {
			out = append(out, c)
		}
	}
	return out
}

// Allies returns the living members of c's team, c included.
func (b *Battle) Allies(c *Character) []*Character {
	var out []*Character
	for _, x := range b.roster {
		if !x.dead && x.Team == c.Team {
			out = append(out, x)
		}
	}
	return out
}

// Enemies returns the living characters on every other team.
func (b *Battle) Enemies(c *Character) []*Character {
	var out []*Character
	for _, x := range b.roster {
		if !x.dead && x.Team != c.Team {
			out = append(out, x)
		}
	}
	return out
}

// BeginTurn hands the turn to the next living character in join order, runs
// its turn-start effects, restores manaRegen + Rules.ManaRegenPerTurn mana and
// publishes turnStart.
//
// Postcondition: Returns the acting character. The actor may have died to a
// turn-start effect; the caller still ends the turn.
func (b *Battle) BeginTurn() (*Character, error) {
	if b.over {
		return nil, ErrBattleOver
	}
	if b.inTurn {
		return nil, ErrTurnInProgress
	}
	var actor *Character
	for range b.roster {
		c := b.roster[b.turnIndex%len(b.roster)]
		if !c.dead {
			actor = c
			break
		}
		b.turnIndex = (b.turnIndex + 1) % len(b.roster)
	}
	if actor == nil {
		return nil, ErrBattleOver
	}

	b.turn++
	b.inTurn = true
	b.current = actor

	b.TurnStart(actor)
	if regen := actor.Stat(stats.ManaRegen) + b.rules.ManaRegenPerTurn; regen > 0 {
		b.resolver.RestoreMana(actor, regen, actor)
	}
	b.publish(event.Event{Type: event.TurnStart, SourceID: actor.InstanceID})
	return actor, nil
}

// Act uses the current actor's ability abilityID. A successful use ends the
// turn unless the ability reports DoesNotEndTurn; a rejected use leaves the
// turn open.
func (b *Battle) Act(abilityID string, targets ...*Character) (UseResult, error) {
	if b.over {
		return UseResult{}, ErrBattleOver
	}
	if !b.inTurn {
		return UseResult{}, ErrNoTurn
	}
	a := b.current.Ability(abilityID)
	if a == nil {
		return UseResult{}, fmt.Errorf("%w: %q", ErrUnknownAbility, abilityID)
	}
	res := b.scheduler.Use(b.current, a, targets)
	if res.Check.OK && !res.Outcome.DoesNotEndTurn {
		if err := b.EndTurn(); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Pass ends the current turn without acting.
func (b *Battle) Pass() error { return b.EndTurn() }

// EndTurn runs the actor's turn-end effects, advances its effect durations and
// ability cooldowns, publishes turnEnd and moves the turn pointer on.
func (b *Battle) EndTurn() error {
	if !b.inTurn {
		return ErrNoTurn
	}
	c := b.current
	b.TurnEnd(c)
	b.AdvanceDurations(c)
	b.scheduler.AdvanceCooldowns(c)
	b.publish(event.Event{Type: event.TurnEnd, SourceID: c.InstanceID})
	b.inTurn = false
	b.turnIndex = (b.turnIndex + 1) % len(b.roster)
	return nil
}

// kill marks c dead, removes its effects and publishes characterDied.
//
// Postcondition: Returns true only on the first call for c.
func (b *Battle) kill(c, killer *Character) bool {
	if c.dead {
		return false
	}
	c.dead = true
	c.currentHP = 0
	b.removeEffects(c, c.Effects(), ReasonDeath)
	b.logger.Info("character died", zap.String("character", c.Name), zap.String("killer", nameOf(killer)))
	b.publish(event.Event{Type: event.CharacterDied, SourceID: sourceID(killer), TargetID: c.InstanceID})
	b.checkOver()
	return true
}

func (b *Battle) checkOver() {
	if b.over {
		return
	}
	alive := map[string]bool{}
	teams := map[string]bool{}
	for _, c := range b.roster {
		teams[c.Team] = true
		if !c.dead {
			alive[c.Team] = true
		}
	}
	if len(teams) < 2 || len(alive) > 1 {
		return
	}
	b.over = true
	for t := range alive {
		b.winner = t
	}
	b.logger.Info("battle ended", zap.String("winner", b.winner), zap.Int("turn", b.turn))
	b.publish(event.Event{Type: event.BattleEnded, Reason: b.winner})
}
