// Package statistics aggregates a battle's published events into
// per-character totals for reporting and persistence.
package statistics

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/game/combat"
	"github.com/cory-johannsen/raid/internal/game/event"
)

// Totals are one character's figures for one battle, or one template's
// figures across battles when produced by ByTemplate.
type Totals struct {
	InstanceID string
	TemplateID string
	Name       string
	Team       string

	DamageDealt     float64
	DamageTaken     float64
	HealingDone     float64
	HealingReceived float64
	ManaRestored    float64

	Crits             int
	Dodges            int
	Kills             int
	Deaths            int
	AbilitiesUsed     int
	AbilitiesRejected int
}

func (t *Totals) add(o Totals) {
	t.DamageDealt += o.DamageDealt
	t.DamageTaken += o.DamageTaken
	t.HealingDone += o.HealingDone
	t.HealingReceived += o.HealingReceived
	t.ManaRestored += o.ManaRestored
	t.Crits += o.Crits
	t.Dodges += o.Dodges
	t.Kills += o.Kills
	t.Deaths += o.Deaths
	t.AbilitiesUsed += o.AbilitiesUsed
	t.AbilitiesRejected += o.AbilitiesRejected
}

// Summary is the record of one finished (or abandoned) battle.
type Summary struct {
	BattleID   string
	Winner     string
	Turns      int
	Characters []Totals
}

// Store persists battle summaries.
type Store interface {
	SaveBattle(ctx context.Context, s Summary) error
}

// Tracker subscribes to one battle's bus and accumulates Totals. Like the
// battle it observes, a Tracker is not safe for concurrent use.
type Tracker struct {
	battle *combat.Battle
	logger *zap.Logger
	totals map[string]*Totals
	sub    event.Subscription
	closed bool
}

// NewTracker starts tracking b.
//
// Precondition: b must not be nil.
// Postcondition: every event b publishes from now until Close is counted.
func NewTracker(b *combat.Battle, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{battle: b, logger: logger, totals: make(map[string]*Totals)}
	t.sub = b.Bus().SubscribeAll(t.handle)
	return t
}

// Close stops tracking. Totals gathered so far stay readable.
func (t *Tracker) Close() {
	if t.closed {
		return
	}
	t.closed = true
	t.battle.Bus().Unsubscribe(t.sub)
}

func (t *Tracker) handle(ev event.Event) {
	switch ev.Type {
	case event.DamageDealt:
		if ev.IsDodged {
			if tgt := t.entry(ev.TargetID); tgt != nil {
				tgt.Dodges++
			}
			return
		}
		if src := t.entry(ev.SourceID); src != nil {
			src.DamageDealt += ev.Amount
			if ev.IsCritical {
				src.Crits++
			}
		}
		if tgt := t.entry(ev.TargetID); tgt != nil {
			tgt.DamageTaken += ev.Amount
		}
	case event.HealingDone:
		if src := t.entry(ev.SourceID); src != nil {
			src.HealingDone += ev.Amount
			if ev.IsCritical {
				src.Crits++
			}
		}
		if tgt := t.entry(ev.TargetID); tgt != nil {
			tgt.HealingReceived += ev.Amount
		}
	case event.ManaRestored:
		if tgt := t.entry(ev.TargetID); tgt != nil {
			tgt.ManaRestored += ev.Amount
		}
	case event.CharacterDied:
		if tgt := t.entry(ev.TargetID); tgt != nil {
			tgt.Deaths++
		}
		if src := t.entry(ev.SourceID); src != nil && ev.SourceID != ev.TargetID {
			src.Kills++
		}
	case event.AbilityUsed:
		if src := t.entry(ev.SourceID); src != nil {
			src.AbilitiesUsed++
		}
	case event.AbilityRejected:
		if src := t.entry(ev.SourceID); src != nil {
			src.AbilitiesRejected++
		}
	}
}

// entry returns the totals for instanceID, or nil for environmental events
// and ids that are not on the roster.
func (t *Tracker) entry(instanceID string) *Totals {
	if instanceID == "" {
		return nil
	}
	if e, ok := t.totals[instanceID]; ok {
		return e
	}
	c := t.battle.Character(instanceID)
	if c == nil {
		t.logger.Debug("event for unknown character", zap.String("instance", instanceID))
		return nil
	}
	e := &Totals{InstanceID: c.InstanceID, TemplateID: c.ID, Name: c.Name, Team: c.Team}
	t.totals[instanceID] = e
	return e
}

// Snapshot returns the battle summary so far. Every roster member appears,
// sorted by name and then instance id.
func (t *Tracker) Snapshot() Summary {
	s := Summary{BattleID: t.battle.ID, Winner: t.battle.Winner(), Turns: t.battle.Turn()}
	for _, c := range t.battle.Roster() {
		s.Characters = append(s.Characters, *t.entry(c.InstanceID))
	}
	sortTotals(s.Characters)
	return s
}

// Flush saves the current snapshot to store.
//
// Postcondition: Returns nil once store accepted the summary.
func (t *Tracker) Flush(ctx context.Context, store Store) error {
	s := t.Snapshot()
	if err := store.SaveBattle(ctx, s); err != nil {
		return fmt.Errorf("saving statistics for battle %s: %w", s.BattleID, err)
	}
	t.logger.Debug("battle statistics saved", zap.String("battle", s.BattleID), zap.Int("characters", len(s.Characters)))
	return nil
}

// ByTemplate folds the characters of every summary into one Totals per
// template id, sorted by name. InstanceID and Team are left empty.
func ByTemplate(summaries ...Summary) []Totals {
	agg := make(map[string]*Totals)
	for _, s := range summaries {
		for _, c := range s.Characters {
			e, ok := agg[c.TemplateID]
			if !ok {
				e = &Totals{TemplateID: c.TemplateID, Name: c.Name}
				agg[c.TemplateID] = e
			}
			e.add(c)
		}
	}
	out := make([]Totals, 0, len(agg))
	for _, e := range agg {
		out = append(out, *e)
	}
	sortTotals(out)
	return out
}

func sortTotals(ts []Totals) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Name != ts[j].Name {
			return ts[i].Name < ts[j].Name
		}
		if ts[i].InstanceID != ts[j].InstanceID {
			return ts[i].InstanceID < ts[j].InstanceID
		}
		return ts[i].TemplateID < ts[j].TemplateID
	})
}
