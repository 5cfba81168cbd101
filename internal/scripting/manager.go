package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/game/dice"
)

// GlobalScope is the reserved key for shared scripts loaded via LoadGlobal.
// CallHook falls back to this VM when no scope VM is found or the scope VM
// does not define the hook.
const GlobalScope = "__global__"

// CharacterInfo is a snapshot of a character's state passed to Lua.
type CharacterInfo struct {
	ID         string
	InstanceID string
	Name       string
	Team       string
	HP         float64
	MaxHP      float64
	Mana       float64
	MaxMana    float64
	Dead       bool
	Stats      map[string]float64
	Effects    []string
}

// DamageRequest is what engine.combat.damage asks the battle to resolve.
type DamageRequest struct {
	TargetID   string
	SourceID   string
	Amount     float64
	DamageType string
	SkipDodge  bool
	NoCrit     bool
}

// DamageOutcome is the committed result handed back to Lua.
type DamageOutcome struct {
	Damage   float64
	Critical bool
	Dodged   bool
	Blocked  bool
	Killed   bool
}

type vm struct {
	L     *lua.LState
	limit int
	// depth counts hook calls in progress; a hook that re-enters the VM
	// through an engine.* callback shares the outermost call's budget.
	depth int
}

// Manager owns one sandboxed LState per scope and exposes hook dispatch.
// A scope is typically a character template id; shared scripts live in
// GlobalScope.
//
// A Manager belongs to one battle and is not safe for concurrent CallHook.
// Hooks may re-enter the Manager through engine.* callbacks.
type Manager struct {
	mu     sync.RWMutex
	states map[string]*vm
	roller *dice.Roller
	logger *zap.Logger

	// Injected after construction. nil = no-op in engine.* modules.
	GetCharacter   func(instanceID string) *CharacterInfo
	ListAllies     func(instanceID string) []string
	ListEnemies    func(instanceID string) []string
	ApplyDamage    func(req DamageRequest) (DamageOutcome, error)
	Heal           func(targetID string, amount float64, sourceID string) float64
	RestoreMana    func(targetID string, amount float64, sourceID string) float64
	ApplyEffect    func(targetID, effectID, sourceID string) (string, error)
	RemoveEffect   func(targetID, effectID string) int
	DisableAbility func(targetID, abilityID string, turns int) error
}

// NewManager creates a Manager.
//
// Precondition: roller and logger must be non-nil; NewManager panics otherwise.
// Postcondition: Returns a non-nil Manager with no VMs.
func NewManager(roller *dice.Roller, logger *zap.Logger) *Manager {
	if roller == nil {
		panic("scripting: NewManager requires a roller")
	}
	if logger == nil {
		panic("scripting: NewManager requires a logger")
	}
	return &Manager{
		states: make(map[string]*vm),
		roller: roller,
		logger: logger,
	}
}

// LoadScope creates a sandboxed VM for scope, registers all engine.* modules,
// then executes every *.lua file in scriptDir in lexicographic order.
//
// Precondition: scope must be non-empty; scriptDir must be a readable directory.
// Postcondition: The scope VM is registered, replacing any previous one;
// returns error on Lua load failure.
func (m *Manager) LoadScope(scope, scriptDir string, instLimit int) error {
	return m.loadInto(scope, scriptDir, instLimit)
}

// LoadGlobal creates the GlobalScope VM for shared ability and effect scripts.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: Global VM is registered; returns error on Lua load failure.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.loadInto(GlobalScope, scriptDir, instLimit)
}

// HasScope reports whether a VM is registered for scope.
func (m *Manager) HasScope(scope string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.states[scope]
	return ok
}

func (m *Manager) loadInto(key, scriptDir string, instLimit int) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	L := NewSandboxedState(instLimit, m.roller)
	m.RegisterModules(L)
	for _, path := range luaFiles {
		cancel := SetInstructionBudget(L, instLimit)
		err := L.DoFile(path)
		cancel()
		if err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	if old, ok := m.states[key]; ok {
		old.L.Close()
	}
	m.states[key] = &vm{L: L, limit: instLimit}
	m.mu.Unlock()
	return nil
}

// lookup returns the VM defining hook, preferring scope over GlobalScope.
func (m *Manager) lookup(scope, hook string) (*vm, lua.LValue) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, key := range []string{scope, GlobalScope} {
		v, ok := m.states[key]
		if !ok {
			continue
		}
		if fn := v.L.GetGlobal(hook); fn.Type() == lua.LTFunction {
			return v, fn
		}
	}
	return nil, lua.LNil
}

// HasHook reports whether hook is defined in scope or GlobalScope.
func (m *Manager) HasHook(scope, hook string) bool {
	v, _ := m.lookup(scope, hook)
	return v != nil
}

// CallHook calls the named Lua global function in scope's VM, falling back to
// the GlobalScope VM. Returns (LNil, nil) if the hook is not defined anywhere.
// Lua runtime errors, including an exhausted instruction budget, are logged at
// Warn level and never propagated.
//
// Precondition: args must be scalar lua.LValue instances; use CallHookArgs
// for tables.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(scope, hook string, args ...lua.LValue) (lua.LValue, error) {
	return m.CallHookArgs(scope, hook, func(*lua.LState) []lua.LValue { return args })
}

// CallHookArgs is CallHook with the arguments built by build inside the VM
// that runs the hook, so tables are created by that VM.
func (m *Manager) CallHookArgs(scope, hook string, build func(L *lua.LState) []lua.LValue) (lua.LValue, error) {
	v, fn := m.lookup(scope, hook)
	if v == nil {
		m.logger.Debug("scripting: hook not defined",
			zap.String("scope", scope),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}

	if v.depth == 0 {
		cancel := SetInstructionBudget(v.L, v.limit)
		defer cancel()
	}
	v.depth++
	defer func() { v.depth-- }()

	if err := v.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, build(v.L)...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("scope", scope),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}

	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret, nil
}

// Close releases every VM. Subsequent CallHook calls return LNil.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.states {
		v.L.Close()
		delete(m.states, k)
	}
}
