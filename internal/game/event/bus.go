// Package event provides the synchronous battle event bus.
package event

import "time"

// Type identifies a published battle event.
type Type string

const (
	TurnStart       Type = "turnStart"
	TurnEnd         Type = "turnEnd"
	DamageDealt     Type = "damageDealt"
	HealingDone     Type = "healingDone"
	ManaRestored    Type = "manaRestored"
	CharacterDied   Type = "characterDied"
	AbilityUsed     Type = "abilityUsed"
	AbilityRejected Type = "abilityRejected"
	AbilityModified Type = "abilityModified"
	BuffApplied     Type = "buffApplied"
	BuffRemoved     Type = "buffRemoved"
	DebuffApplied   Type = "debuffApplied"
	DebuffRemoved   Type = "debuffRemoved"
	ChainStep       Type = "chainStep"
	BattleEnded     Type = "battleEnded"
)

// Event is an immutable record of something the battle core committed.
// Fields that do not apply to a Type are left at their zero value.
type Event struct {
	Type       Type
	Turn       int
	SourceID   string // instance id of the acting character, if any
	TargetID   string // instance id of the affected character, if any
	Amount     float64
	DamageType string
	IsCritical bool
	IsDodged   bool
	IsBlocked  bool
	AbilityID  string
	EffectID   string
	Reason     string
	// Delay is the visual offset of a chain step from the start of its chain.
	Delay time.Duration
}

// Handler reacts to a published Event.
type Handler func(Event)

// Subscription identifies a registered handler for Unsubscribe.
type Subscription uint64

type entry struct {
	id      Subscription
	typ     Type // empty = every type
	handler Handler
}

// Bus dispatches events synchronously, in subscription order, on the
// caller's goroutine. It is not safe for concurrent use; each battle owns one.
type Bus struct {
	next    Subscription
	entries []entry
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h for events of type t.
//
// Precondition: h must not be nil.
// Postcondition: h receives every later Publish of type t until Unsubscribe.
func (b *Bus) Subscribe(t Type, h Handler) Subscription {
	b.next++
	b.entries = append(b.entries, entry{id: b.next, typ: t, handler: h})
	return b.next
}

// SubscribeAll registers h for every event type.
func (b *Bus) SubscribeAll(h Handler) Subscription {
	return b.Subscribe("", h)
}

// Unsubscribe removes the handler registered under id. Unknown ids are a no-op.
//
// Postcondition: the handler receives no further events, including the rest
// of a dispatch that is currently in progress.
func (b *Bus) Unsubscribe(id Subscription) {
	for i, e := range b.entries {
		if e.id == id {
			b.entries = append(b.entries[:i:i], b.entries[i+1:]...)
			return
		}
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int { return len(b.entries) }

// Publish delivers e to every matching handler in subscription order.
// Handlers registered during the dispatch do not see e.
func (b *Bus) Publish(e Event) {
	snapshot := b.entries
	for _, s := range snapshot {
		if s.typ != "" && s.typ != e.Type {
			continue
		}
		if !b.live(s.id) {
			continue
		}
		s.handler(e)
	}
}

func (b *Bus) live(id Subscription) bool {
	for _, e := range b.entries {
		if e.id == id {
			return true
		}
	}
	return false
}
