package combat

import (
	"fmt"
	"sync"
)

// Engine tracks independent live battles keyed by battle ID.
// All methods are safe for concurrent use; each Battle itself is not.
type Engine struct {
	mu      sync.RWMutex
	battles map[string]*Battle
}

// NewEngine creates an empty Engine.
//
// Postcondition: Returns a non-nil Engine ready for use.
func NewEngine() *Engine {
	return &Engine{battles: make(map[string]*Battle)}
}

// Start registers b.
//
// Precondition: b must not be nil.
// Postcondition: Returns an error if a battle with the same ID is already registered.
func (e *Engine) Start(b *Battle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.battles[b.ID]; exists {
		return fmt.Errorf("battle %q already running", b.ID)
	}
	e.battles[b.ID] = b
	return nil
}

// Get returns the battle registered under id.
//
// Postcondition: Returns (battle, true) if found, or (nil, false) otherwise.
func (e *Engine) Get(id string) (*Battle, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.battles[id]
	return b, ok
}

// End removes the battle registered under id. Ending an unknown id is a no-op.
func (e *Engine) End(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.battles, id)
}

// Len returns the number of registered battles.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.battles)
}
