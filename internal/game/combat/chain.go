package combat

import (
	"time"

	"github.com/cory-johannsen/raid/internal/game/event"
)

// Step is one hit of a multi-hit chain. Delay is the visual pacing before the
// step relative to the previous one; it never delays the state mutation.
type Step struct {
	Delay time.Duration
	Apply func()
}

// Chain applies steps synchronously in issuing order, so no other ability can
// interleave between hits. Each applied step publishes chainStep carrying its
// 1-based index in Amount and the cumulative Delay for renderers.
// The chain stops early when source dies or the battle ends.
//
// Postcondition: Returns the number of steps applied.
func (b *Battle) Chain(source *Character, steps ...Step) int {
	var at time.Duration
	applied := 0
	for i, s := range steps {
		if b.over || (source != nil && source.dead) {
			break
		}
		at += s.Delay
		if s.Apply != nil {
			s.Apply()
		}
		applied++
		b.publish(event.Event{
			Type:     event.ChainStep,
			SourceID: sourceID(source),
			Amount:   float64(i + 1),
			Delay:    at,
		})
	}
	return applied
}
